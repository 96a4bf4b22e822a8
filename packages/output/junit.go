package output

import (
	"encoding/xml"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/restbench/packages/core/runner"
	"github.com/abdul-hamid-achik/restbench/packages/ingest"
)

type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Name       string           `xml:"name,attr,omitempty"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Skipped    int              `xml:"skipped,attr"`
	Time       float64          `xml:"time,attr"`
	Timestamp  string           `xml:"timestamp,attr,omitempty"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite is one collection run.
type JUnitTestSuite struct {
	XMLName   xml.Name        `xml:"testsuite"`
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Errors    int             `xml:"errors,attr"`
	Skipped   int             `xml:"skipped,attr"`
	Time      float64         `xml:"time,attr"`
	Timestamp string          `xml:"timestamp,attr,omitempty"`
	TestCases []JUnitTestCase `xml:"testcase"`
}

// JUnitTestCase is one request. Its checks are folded into a single
// failure element.
type JUnitTestCase struct {
	XMLName    xml.Name         `xml:"testcase"`
	Name       string           `xml:"name,attr"`
	ClassName  string           `xml:"classname,attr"`
	Time       float64          `xml:"time,attr"`
	Properties *JUnitProperties `xml:"properties,omitempty"`
	Failure    *JUnitProblem    `xml:"failure,omitempty"`
	Error      *JUnitProblem    `xml:"error,omitempty"`
	Skipped    *JUnitSkipped    `xml:"skipped,omitempty"`
	SystemOut  string           `xml:"system-out,omitempty"`
}

type JUnitProperties struct {
	Properties []JUnitProperty `xml:"property"`
}

type JUnitProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// JUnitProblem is the body of a failure or error element.
type JUnitProblem struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

type JUnitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// JUnitFormatter buffers suites and writes the document on Flush.
type JUnitFormatter struct {
	writer     io.Writer
	testSuites []JUnitTestSuite
	loadErrors []JUnitTestCase
}

type JUnitOption func(*JUnitFormatter)

func NewJUnitFormatter(opts ...JUnitOption) *JUnitFormatter {
	f := &JUnitFormatter{writer: os.Stdout}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JUnitWithWriter(w io.Writer) JUnitOption {
	return func(f *JUnitFormatter) {
		f.writer = w
	}
}

func (f *JUnitFormatter) FormatResult(result *runner.RunResult) {
	suite := JUnitTestSuite{
		Name:      result.Collection,
		Tests:     len(result.Results),
		Time:      result.Duration.Seconds(),
		Timestamp: time.Now().Format(time.RFC3339),
		TestCases: make([]JUnitTestCase, 0, len(result.Results)),
	}

	for _, r := range result.Results {
		tc := junitCase(result.Collection, r)
		switch {
		case tc.Skipped != nil:
			suite.Skipped++
		case tc.Error != nil:
			suite.Errors++
		case tc.Failure != nil:
			suite.Failures++
		}
		suite.TestCases = append(suite.TestCases, tc)
	}

	f.testSuites = append(f.testSuites, suite)
}

func junitCase(collection string, r *runner.RequestResult) JUnitTestCase {
	classname := collection
	if dir := parentPath(r.Path); dir != "" {
		classname = strings.ReplaceAll(dir, " / ", ".")
	}
	tc := JUnitTestCase{
		Name:       r.Name,
		ClassName:  classname,
		Time:       r.Duration.Seconds(),
		Properties: junitProperties(r),
		SystemOut:  junitSystemOut(r),
	}

	switch {
	case r.Skipped:
		tc.Skipped = &JUnitSkipped{Message: r.SkipReason}
	case r.Error != nil:
		tc.Error = &JUnitProblem{Message: r.Error.Error(), Type: "Error"}
	case !r.Passed:
		failed := failedTests(r)
		var content strings.Builder
		for _, t := range failed {
			fmt.Fprintf(&content, "%s: %s\n", t.Name, t.Message)
		}
		message := "Check failed"
		switch {
		case len(failed) > 1:
			message = fmt.Sprintf("%d checks failed", len(failed))
		case len(failed) == 0 && r.Response != nil:
			message = "Unexpected status " + r.Response.Status
		}
		tc.Failure = &JUnitProblem{Message: message, Type: "AssertionError", Content: content.String()}
	}
	return tc
}

func junitProperties(r *runner.RequestResult) *JUnitProperties {
	var props []JUnitProperty
	add := func(name, value string) {
		if value != "" {
			props = append(props, JUnitProperty{Name: name, Value: value})
		}
	}
	if r.Request != nil {
		add("method", r.Request.Method)
		add("url", r.Request.URL)
	}
	if resp := r.Response; resp != nil {
		add("status", fmt.Sprint(resp.StatusCode))
		add("contentType", resp.ContentType)
		add("category", resp.Category.String())
	}
	if r.Attempts > 1 {
		add("attempts", fmt.Sprint(r.Attempts))
	}
	if len(props) == 0 {
		return nil
	}
	return &JUnitProperties{Properties: props}
}

// junitSystemOut carries the notes a reader needs when a body was not kept
// inline, plus any captured variables.
func junitSystemOut(r *runner.RequestResult) string {
	var b strings.Builder
	if resp := r.Response; resp != nil {
		if resp.Notice != "" {
			b.WriteString(resp.Notice + "\n")
		}
		if resp.BodyKind == ingest.BodyFile && resp.FilePath != "" {
			b.WriteString("saved to " + resp.FilePath + "\n")
		}
	}
	for _, name := range slices.Sorted(maps.Keys(r.Captures)) {
		fmt.Fprintf(&b, "captured %s = %s\n", name, formatValue(r.Captures[name], 200))
	}
	return b.String()
}

// FormatError records collections that failed before any request ran.
func (f *JUnitFormatter) FormatError(err error) {
	f.loadErrors = append(f.loadErrors, JUnitTestCase{
		Name:      "load",
		ClassName: "restbench",
		Error:     &JUnitProblem{Message: err.Error(), Type: "LoadError"},
	})
}

func (f *JUnitFormatter) FormatHeader(version string) {}

// Flush writes the accumulated document.
func (f *JUnitFormatter) Flush(totalDuration time.Duration) error {
	suites := f.testSuites
	if len(f.loadErrors) > 0 {
		suites = append(suites, JUnitTestSuite{
			Name:      "restbench",
			Tests:     len(f.loadErrors),
			Errors:    len(f.loadErrors),
			Timestamp: time.Now().Format(time.RFC3339),
			TestCases: f.loadErrors,
		})
	}

	root := JUnitTestSuites{
		Name:       "restbench",
		Time:       totalDuration.Seconds(),
		Timestamp:  time.Now().Format(time.RFC3339),
		TestSuites: suites,
	}
	for _, s := range suites {
		root.Tests += s.Tests
		root.Failures += s.Failures
		root.Errors += s.Errors
		root.Skipped += s.Skipped
	}

	if _, err := io.WriteString(f.writer, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(f.writer)
	enc.Indent("", "  ")
	if err := enc.Encode(root); err != nil {
		return err
	}
	_, err := io.WriteString(f.writer, "\n")
	return err
}

// parentPath returns the folder part of an item path.
func parentPath(path string) string {
	if i := strings.LastIndex(path, " / "); i > 0 {
		return path[:i]
	}
	return ""
}
