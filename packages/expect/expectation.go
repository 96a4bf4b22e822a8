package expect

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// Expectation pairs an actual value with a polarity. It is a value type:
// every method works on a copy.
type Expectation struct {
	actual  Value
	negated bool
}

// That starts an expectation on any Go value.
func That(actual any) Expectation {
	return Expectation{actual: ValueOf(actual)}
}

// Of starts an expectation on an existing Value.
func Of(v Value) Expectation {
	return Expectation{actual: v}
}

func (e Expectation) Actual() Value { return e.actual }

func (e Expectation) Negated() bool { return e.negated }

// Not inverts the polarity of the returned copy.
func (e Expectation) Not() Expectation {
	e.negated = !e.negated
	return e
}

func (e Expectation) To() Expectation    { return e }
func (e Expectation) Be() Expectation    { return e }
func (e Expectation) Been() Expectation  { return e }
func (e Expectation) Is() Expectation    { return e }
func (e Expectation) That() Expectation  { return e }
func (e Expectation) Which() Expectation { return e }
func (e Expectation) And() Expectation   { return e }
func (e Expectation) Has() Expectation   { return e }
func (e Expectation) Have() Expectation  { return e }
func (e Expectation) With() Expectation  { return e }
func (e Expectation) At() Expectation    { return e }
func (e Expectation) Of() Expectation    { return e }
func (e Expectation) Same() Expectation  { return e }
func (e Expectation) Does() Expectation  { return e }
func (e Expectation) Still() Expectation { return e }

// verdict applies polarity. The message reads "expected <actual> to
// [not ]<phrase>".
func (e Expectation) verdict(pass bool, kind Kind, expected, actual any, phrase string) error {
	if pass != e.negated {
		return nil
	}
	not := ""
	if e.negated {
		not = "not "
	}
	return &AssertionError{
		Kind:     kind,
		Expected: expected,
		Actual:   actual,
		Negated:  e.negated,
		Message:  fmt.Sprintf("expected %s to %s%s", e.actual.Repr(), not, phrase),
	}
}

// mismatch fails no matter the polarity.
func (e Expectation) mismatch(want string) error {
	return &AssertionError{
		Kind:     KindTypeMismatch,
		Expected: want,
		Actual:   e.actual.Type().String(),
		Negated:  e.negated,
		Message:  fmt.Sprintf("expected %s to be %s, got %s", e.actual.Repr(), want, e.actual.Type()),
	}
}

func (e Expectation) Eql(expected any) error {
	want := ValueOf(expected)
	return e.verdict(e.actual.Equal(want), KindEqual, want.Interface(), e.actual.Interface(),
		"equal "+want.Repr())
}

func (e Expectation) Equal(expected any) error {
	return e.Eql(expected)
}

// Include checks that the text form of the actual value contains the text
// form of x.
func (e Expectation) Include(x any) error {
	needle := ValueOf(x).String()
	return e.verdict(strings.Contains(e.actual.String(), needle), KindInclude, needle, e.actual.String(),
		fmt.Sprintf("include %q", needle))
}

func (e Expectation) Contain(x any) error {
	return e.Include(x)
}

func (e Expectation) Property(name string) error {
	if e.actual.Type() != TypeMap {
		return e.mismatch("an object")
	}
	_, ok := e.actual.Get(name)
	return e.verdict(ok, KindProperty, name, e.actual.Keys(), fmt.Sprintf("have property %q", name))
}

func (e Expectation) Match(re *regexp.Regexp) error {
	if re == nil {
		return &AssertionError{Kind: KindInvalidPattern, Negated: e.negated, Message: "no pattern given"}
	}
	text := e.actual.String()
	return e.verdict(re.MatchString(text), KindMatch, re.String(), text, "match /"+re.String()+"/")
}

// MatchLiteral compiles pattern and matches it. A pattern written as
// /body/flags has its delimiters stripped; the flags are ignored.
func (e Expectation) MatchLiteral(pattern string) error {
	re, err := regexp.Compile(stripSlashes(pattern))
	if err != nil {
		return &AssertionError{
			Kind:     KindInvalidPattern,
			Expected: pattern,
			Negated:  e.negated,
			Message:  fmt.Sprintf("invalid pattern %q: %v", pattern, err),
		}
	}
	return e.Match(re)
}

func stripSlashes(pattern string) string {
	if len(pattern) < 2 || pattern[0] != '/' {
		return pattern
	}
	end := strings.LastIndexByte(pattern, '/')
	if end == 0 {
		return pattern
	}
	return pattern[1:end]
}

func (e Expectation) compare(n float64, op string, kind Kind, fn func(a, b float64) bool) error {
	a, ok := e.actual.Number()
	if !ok {
		return e.mismatch("a number")
	}
	return e.verdict(fn(a, n), kind, n, a, fmt.Sprintf("be %s %s", op, formatNumber(n)))
}

// Above is a strict greater-than.
func (e Expectation) Above(n float64) error {
	return e.compare(n, "above", KindCompare, func(a, b float64) bool { return a > b })
}

// Below is a strict less-than.
func (e Expectation) Below(n float64) error {
	return e.compare(n, "below", KindCompare, func(a, b float64) bool { return a < b })
}

// Least is an inclusive lower bound.
func (e Expectation) Least(n float64) error {
	return e.compare(n, "at least", KindCompare, func(a, b float64) bool { return a >= b })
}

// Most is an inclusive upper bound.
func (e Expectation) Most(n float64) error {
	return e.compare(n, "at most", KindCompare, func(a, b float64) bool { return a <= b })
}

// Within checks min <= actual <= max.
func (e Expectation) Within(min, max float64) error {
	a, ok := e.actual.Number()
	if !ok {
		return e.mismatch("a number")
	}
	return e.verdict(a >= min && a <= max, KindCompare, []float64{min, max}, a,
		fmt.Sprintf("be within %s..%s", formatNumber(min), formatNumber(max)))
}

// Length compares the rune count of a string or the size of a list or map.
func (e Expectation) Length(n int) error {
	l, ok := e.actual.Len()
	if !ok {
		return e.mismatch("a string, array or object")
	}
	return e.verdict(l == n, KindLength, n, l, fmt.Sprintf("have length %d but got %d", n, l))
}

func (e Expectation) Ok() error {
	return e.verdict(e.actual.Truthy(), KindTruthy, true, e.actual.Truthy(), "be ok")
}

func (e Expectation) Exist() error {
	return e.verdict(!e.actual.IsNull(), KindExist, nil, e.actual.Interface(), "exist")
}

// Empty holds for null and for empty strings, lists and maps.
func (e Expectation) Empty() error {
	if e.actual.IsNull() {
		return e.verdict(true, KindEmpty, 0, 0, "be empty")
	}
	l, ok := e.actual.Len()
	if !ok {
		return e.mismatch("a string, array or object")
	}
	return e.verdict(l == 0, KindEmpty, 0, l, "be empty")
}

// A checks the canonical type name: null, string, number, boolean, array
// or object. Case is ignored.
func (e Expectation) A(typeName string) error {
	got := e.actual.Type().String()
	return e.verdict(strings.EqualFold(got, typeName), KindType, strings.ToLower(typeName), got,
		"be a "+strings.ToLower(typeName))
}

func (e Expectation) An(typeName string) error {
	return e.A(typeName)
}

func (e Expectation) True() error {
	b, ok := e.actual.Bool()
	return e.verdict(ok && b, KindBoolean, true, e.actual.Interface(), "be true")
}

func (e Expectation) False() error {
	b, ok := e.actual.Bool()
	return e.verdict(ok && !b, KindBoolean, false, e.actual.Interface(), "be false")
}

func (e Expectation) Null() error {
	return e.verdict(e.actual.IsNull(), KindNull, nil, e.actual.Interface(), "be null")
}

// Undefined is Null; there is no separate undefined value.
func (e Expectation) Undefined() error {
	return e.Null()
}

func (e Expectation) NaN() error {
	n, ok := e.actual.Number()
	return e.verdict(ok && math.IsNaN(n), KindNaN, "NaN", e.actual.Interface(), "be NaN")
}

// OneOf passes when the actual value equals any of values.
func (e Expectation) OneOf(values ...any) error {
	wants := make([]any, len(values))
	found := false
	for i, v := range values {
		want := ValueOf(v)
		wants[i] = want.Interface()
		if e.actual.Equal(want) {
			found = true
		}
	}
	return e.verdict(found, KindOneOf, wants, e.actual.Interface(), fmt.Sprintf("be one of %v", wants))
}
