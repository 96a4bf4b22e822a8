package assertions

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/abdul-hamid-achik/restbench/packages/collection"
	"github.com/abdul-hamid-achik/restbench/packages/core/inherit"
	"github.com/abdul-hamid-achik/restbench/packages/expect"
	"github.com/abdul-hamid-achik/restbench/packages/ingest"
	"github.com/tidwall/gjson"
)

var bracketIndex = regexp.MustCompile(`\[(\d+)\]`)

type Evaluator struct {
	response *ingest.Response
	request  *inherit.EffectiveRequest
	baseDir  string // schema files are resolved against and confined to it

	bodyLoaded bool
	body       []byte
	bodyErr    error
	bodyJSON   gjson.Result
}

// EvaluatorOption is a functional option for configuring an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithBaseDir sets the directory that schema file paths are relative to.
func WithBaseDir(dir string) EvaluatorOption {
	return func(e *Evaluator) {
		e.baseDir = dir
	}
}

// WithRequest exposes the resolved request to request.* subjects.
func WithRequest(req *inherit.EffectiveRequest) EvaluatorOption {
	return func(e *Evaluator) {
		e.request = req
	}
}

func NewEvaluator(resp *ingest.Response, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{response: resp}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs one check.
func (e *Evaluator) Evaluate(check collection.Check) expect.TestResult {
	return expect.Run(checkName(check), func() error {
		actual, err := e.actualValue(check.Subject)
		if err != nil {
			return err
		}
		exp := expect.Of(actual)

		name := strings.ToLower(strings.TrimSpace(check.Assert))
		negate := check.Not
		for {
			rest, ok := strings.CutPrefix(name, "not.")
			if !ok {
				break
			}
			name = rest
			negate = !negate
		}
		if negate {
			exp = exp.Not()
		}
		return e.apply(exp, name, check.Args)
	})
}

// EvaluateAll runs every check in order.
func (e *Evaluator) EvaluateAll(checks []collection.Check) []expect.TestResult {
	results := make([]expect.TestResult, 0, len(checks))
	for _, c := range checks {
		results = append(results, e.Evaluate(c))
	}
	return results
}

// Evaluate runs the checks of req against resp.
func Evaluate(resp *ingest.Response, req *inherit.EffectiveRequest, opts ...EvaluatorOption) []expect.TestResult {
	if req == nil {
		return nil
	}
	opts = append([]EvaluatorOption{WithRequest(req)}, opts...)
	return NewEvaluator(resp, opts...).EvaluateAll(req.Checks)
}

func checkName(c collection.Check) string {
	if c.Name != "" {
		return c.Name
	}
	parts := []string{c.Subject}
	if c.Not {
		parts = append(parts, "not")
	}
	parts = append(parts, c.Assert)
	for _, a := range c.Args {
		parts = append(parts, fmt.Sprintf("%v", a))
	}
	return strings.Join(parts, " ")
}

// Subject returns the value a check on subject would test.
func (e *Evaluator) Subject(subject string) (expect.Value, error) {
	return e.actualValue(subject)
}

func (e *Evaluator) actualValue(subject string) (expect.Value, error) {
	subject = strings.TrimSpace(subject)
	resp := e.response
	switch {
	case subject == "status":
		return expect.Number(float64(resp.StatusCode)), nil
	case subject == "statusText":
		return expect.String(resp.Status), nil
	case subject == "duration":
		return expect.Number(float64(resp.DurationMs())), nil
	case subject == "size":
		return expect.Number(float64(resp.BodySize)), nil
	case subject == "protocol":
		return expect.String(resp.Proto), nil
	case subject == "contentType":
		return expect.String(resp.ContentType), nil
	case subject == "notice":
		if resp.Notice == "" {
			return expect.Null(), nil
		}
		return expect.String(resp.Notice), nil
	case subject == "headers":
		return expect.ValueOf(resp.Headers), nil
	case strings.HasPrefix(subject, "header "):
		name := strings.TrimSpace(strings.TrimPrefix(subject, "header "))
		values := resp.HeaderValues(name)
		if len(values) == 0 {
			return expect.Null(), nil
		}
		return expect.String(strings.Join(values, ", ")), nil
	case strings.HasPrefix(subject, "request."):
		return e.requestValue(strings.TrimPrefix(subject, "request."))
	case subject == "body" || strings.HasPrefix(subject, "body.") || strings.HasPrefix(subject, "body["):
		return e.bodyValue(strings.TrimPrefix(subject, "body"))
	case strings.HasPrefix(subject, "jsonpath"):
		return e.jsonPathValue(strings.TrimSpace(strings.TrimPrefix(subject, "jsonpath")))
	default:
		return e.bodyValue("." + subject)
	}
}

func (e *Evaluator) requestValue(field string) (expect.Value, error) {
	if e.request == nil {
		return expect.Null(), fmt.Errorf("no request bound to subject request.%s", field)
	}
	switch {
	case field == "method":
		return expect.String(e.request.Method), nil
	case field == "url":
		return expect.String(e.request.URL), nil
	case field == "name":
		return expect.String(e.request.Name), nil
	case strings.HasPrefix(field, "header "):
		v, ok := e.request.Header(strings.TrimSpace(strings.TrimPrefix(field, "header ")))
		if !ok {
			return expect.Null(), nil
		}
		return expect.String(v), nil
	default:
		return expect.Null(), fmt.Errorf("unknown request subject: request.%s", field)
	}
}

// loadBody reads the payload once. Bodies saved to a file are read back.
func (e *Evaluator) loadBody() {
	if e.bodyLoaded {
		return
	}
	e.bodyLoaded = true
	e.body, e.bodyErr = e.response.BodyBytes()
	if e.bodyErr == nil && gjson.ValidBytes(e.body) {
		e.bodyJSON = gjson.ParseBytes(e.body)
	}
}

// convertBracketNotation converts array bracket notation to gjson dot notation
// e.g., "[0].id" -> "0.id", "items[0].tags[1]" -> "items.0.tags.1"
func convertBracketNotation(path string) string {
	return strings.TrimPrefix(bracketIndex.ReplaceAllString(path, ".$1"), ".")
}

func (e *Evaluator) bodyValue(path string) (expect.Value, error) {
	e.loadBody()
	if e.bodyErr != nil {
		return expect.Null(), fmt.Errorf("reading response body: %w", e.bodyErr)
	}
	path = strings.TrimPrefix(path, ".")
	if !e.bodyJSON.Exists() {
		if path == "" {
			return expect.String(string(e.body)), nil
		}
		return expect.Null(), nil
	}
	if path == "" {
		return expect.FromResult(e.bodyJSON), nil
	}
	return expect.FromResult(e.bodyJSON.Get(convertBracketNotation(path))), nil
}

func (e *Evaluator) jsonPathValue(path string) (expect.Value, error) {
	e.loadBody()
	if e.bodyErr != nil {
		return expect.Null(), fmt.Errorf("reading response body: %w", e.bodyErr)
	}
	if !e.bodyJSON.Exists() {
		return expect.Null(), fmt.Errorf("response body is not JSON")
	}
	path = strings.TrimPrefix(strings.TrimPrefix(path, "$"), ".")
	if path == "" {
		return expect.FromResult(e.bodyJSON), nil
	}
	return expect.FromResult(e.bodyJSON.Get(convertBracketNotation(path))), nil
}

// assertionNames lists every name apply understands, aliases included.
var assertionNames = map[string]bool{
	"equal": true, "equals": true, "eql": true, "eq": true,
	"include": true, "includes": true, "contain": true, "contains": true,
	"startswith": true, "endswith": true,
	"property": true, "haskey": true,
	"match": true, "matches": true,
	"above": true, "gt": true, "below": true, "lt": true,
	"least": true, "gte": true, "most": true, "lte": true,
	"within": true, "between": true,
	"length": true, "len": true,
	"ok": true, "truthy": true, "exist": true, "exists": true, "empty": true,
	"a": true, "an": true, "type": true,
	"true": true, "false": true, "null": true, "undefined": true, "nan": true,
	"oneof": true, "in": true,
	"schema": true, "jsonschema": true,
	"each": true,
}

// Known reports whether name, with any "not." prefixes, is an assertion
// the evaluator can run.
func Known(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	for {
		rest, ok := strings.CutPrefix(name, "not.")
		if !ok {
			break
		}
		name = rest
	}
	return assertionNames[name]
}

func (e *Evaluator) apply(exp expect.Expectation, name string, args []any) error {
	switch name {
	case "equal", "equals", "eql", "eq":
		if err := wantArgs(name, args, 1); err != nil {
			return err
		}
		return exp.Equal(args[0])
	case "include", "includes", "contain", "contains":
		if err := wantArgs(name, args, 1); err != nil {
			return err
		}
		return exp.Include(args[0])
	case "startswith":
		if err := wantArgs(name, args, 1); err != nil {
			return err
		}
		return exp.Match(regexp.MustCompile("^" + regexp.QuoteMeta(fmt.Sprintf("%v", args[0]))))
	case "endswith":
		if err := wantArgs(name, args, 1); err != nil {
			return err
		}
		return exp.Match(regexp.MustCompile(regexp.QuoteMeta(fmt.Sprintf("%v", args[0])) + "$"))
	case "property", "haskey":
		if err := wantArgs(name, args, 1); err != nil {
			return err
		}
		return exp.Property(fmt.Sprintf("%v", args[0]))
	case "match", "matches":
		if err := wantArgs(name, args, 1); err != nil {
			return err
		}
		return exp.MatchLiteral(fmt.Sprintf("%v", args[0]))
	case "above", "gt":
		return numeric(name, args, exp.Above)
	case "below", "lt":
		return numeric(name, args, exp.Below)
	case "least", "gte":
		return numeric(name, args, exp.Least)
	case "most", "lte":
		return numeric(name, args, exp.Most)
	case "within", "between":
		if err := wantArgs(name, args, 2); err != nil {
			return err
		}
		lo, ok1 := toFloat64(args[0])
		hi, ok2 := toFloat64(args[1])
		if !ok1 || !ok2 {
			return fmt.Errorf("%s: bounds must be numbers, got %v and %v", name, args[0], args[1])
		}
		return exp.Within(lo, hi)
	case "length", "len":
		if err := wantArgs(name, args, 1); err != nil {
			return err
		}
		n, ok := toInt(args[0])
		if !ok {
			return fmt.Errorf("expected length must be a number, got %v", args[0])
		}
		return exp.Length(n)
	case "ok", "truthy":
		return exp.Ok()
	case "exist", "exists":
		return exp.Exist()
	case "empty":
		return exp.Empty()
	case "a", "an", "type":
		if err := wantArgs(name, args, 1); err != nil {
			return err
		}
		return exp.A(fmt.Sprintf("%v", args[0]))
	case "true":
		return exp.True()
	case "false":
		return exp.False()
	case "null", "undefined":
		return exp.Null()
	case "nan":
		return exp.NaN()
	case "oneof", "in":
		return exp.OneOf(flatten(args)...)
	case "schema", "jsonschema":
		if err := wantArgs(name, args, 1); err != nil {
			return err
		}
		schema, err := e.loadSchema(fmt.Sprintf("%v", args[0]))
		if err != nil {
			return err
		}
		return exp.JSONSchema(schema)
	case "each":
		return e.each(exp, args)
	default:
		return fmt.Errorf("unknown assertion: %s", name)
	}
}

// each applies a nested assertion to every element of a list. The first
// argument names the assertion and the rest are its arguments.
func (e *Evaluator) each(exp expect.Expectation, args []any) error {
	if err := wantArgs("each", args, 1); err != nil {
		return err
	}
	actual := exp.Actual()
	if actual.Type() != expect.TypeList {
		return fmt.Errorf("each: expected an array, got %s", actual.Type())
	}
	name := strings.ToLower(fmt.Sprintf("%v", args[0]))
	negate := exp.Negated()
	if rest, ok := strings.CutPrefix(name, "not."); ok {
		name = rest
		negate = !negate
	}
	for i, item := range actual.Items() {
		inner := expect.Of(item)
		if negate {
			inner = inner.Not()
		}
		if err := e.apply(inner, name, args[1:]); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}

func (e *Evaluator) loadSchema(ref string) (string, error) {
	trimmed := strings.TrimSpace(ref)
	if strings.HasPrefix(trimmed, "{") {
		return trimmed, nil
	}

	path := trimmed
	if !filepath.IsAbs(path) && e.baseDir != "" {
		path = filepath.Join(e.baseDir, path)
	}
	if err := validatePathWithinBase(path, e.baseDir); err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read schema file: %w", err)
	}
	return string(data), nil
}

// validatePathWithinBase rejects schema paths that escape baseDir.
func validatePathWithinBase(path, baseDir string) error {
	if baseDir == "" {
		return nil
	}
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return fmt.Errorf("resolving base dir: %w", err)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}
	rel, err := filepath.Rel(absBase, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path traversal detected: %s is outside allowed directory %s", path, baseDir)
	}
	return nil
}

func wantArgs(name string, args []any, n int) error {
	if len(args) < n {
		return fmt.Errorf("%s: expected %d argument(s), got %d", name, n, len(args))
	}
	return nil
}

func numeric(name string, args []any, fn func(float64) error) error {
	if err := wantArgs(name, args, 1); err != nil {
		return err
	}
	n, ok := toFloat64(args[0])
	if !ok {
		return fmt.Errorf("%s: expected a number, got %v", name, args[0])
	}
	return fn(n)
}

// flatten lets oneOf take either a list of arguments or a single list.
func flatten(args []any) []any {
	if len(args) == 1 {
		if list, ok := args[0].([]any); ok {
			return list
		}
	}
	return args
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		return int(n), true
	case float32:
		return int(n), true
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i, true
		}
	}
	return 0, false
}
