package expect

import "errors"

// Kind classifies an assertion failure.
type Kind int

const (
	KindEqual Kind = iota
	KindInclude
	KindProperty
	KindMatch
	KindCompare
	KindTypeMismatch
	KindLength
	KindTruthy
	KindExist
	KindEmpty
	KindType
	KindBoolean
	KindNull
	KindNaN
	KindSchema
	KindOneOf
	KindInvalidPattern
)

var kindNames = [...]string{
	KindEqual:          "equal",
	KindInclude:        "include",
	KindProperty:       "property",
	KindMatch:          "match",
	KindCompare:        "compare",
	KindTypeMismatch:   "type mismatch",
	KindLength:         "length",
	KindTruthy:         "ok",
	KindExist:          "exist",
	KindEmpty:          "empty",
	KindType:           "type",
	KindBoolean:        "boolean",
	KindNull:           "null",
	KindNaN:            "NaN",
	KindSchema:         "schema",
	KindOneOf:          "one of",
	KindInvalidPattern: "invalid pattern",
}

func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// AssertionError is returned by a failing terminal method.
type AssertionError struct {
	Kind     Kind
	Expected any
	Actual   any
	Negated  bool
	Message  string
}

func (e *AssertionError) Error() string {
	return e.Message
}

// AsAssertionError unwraps err into an *AssertionError when it is one.
func AsAssertionError(err error) (*AssertionError, bool) {
	var ae *AssertionError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
