// Package expect is a fluent assertion engine for response values.
//
// An Expectation wraps one actual Value and a polarity:
//
//	err := expect.That(resp.StatusCode).To().Equal(200)
//	err = expect.That(body).Not().To().Be().Empty()
//
// Chaining words return the receiver unchanged. Terminal methods return nil
// on success or an *AssertionError describing the failure. Expectations are
// values; Not returns a copy, so the same Expectation can be reused and
// shared between goroutines.
package expect
