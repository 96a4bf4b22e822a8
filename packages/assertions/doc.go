// Package assertions evaluates the declarative checks attached to a request.
//
// A check names a subject and an expectation:
//
//	checks:
//	  - subject: status
//	    assert: oneOf
//	    args: [200, 201]
//	  - subject: body.items
//	    assert: not.empty
//	  - subject: header Content-Type
//	    assert: include
//	    args: [application/json]
//
// Subjects: status, statusText, duration, size, protocol, contentType,
// notice, header <name>, body, body.<path> and jsonpath <path>. Any other
// subject is looked up as a path in the JSON body.
//
// Every check becomes one expect.TestResult; a failing check never stops
// the remaining ones.
package assertions
