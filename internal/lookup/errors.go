// File: internal/lookup/errors.go
package lookup

import (
	"errors"
	"fmt"
)

// ErrMalformedResponse marks a 2xx response whose payload did not match the
// expected shape. Callers treat it like a transport failure: safe-disable and
// show the generic message.
var ErrMalformedResponse = errors.New("lookup: malformed response payload")

// genericFailureMessage is shown when the backend gave no usable detail.
const genericFailureMessage = "Could not load the available options. Please try again."

// TransportError covers network failures and non-2xx responses from the
// allowed-options endpoint. It carries an optional server-supplied detail
// extracted from a 500 body.
type TransportError struct {
	StatusCode int    // zero when the request never completed
	Detail     string // server-supplied error detail, if any
	Err        error  // underlying cause, if any
}

func (e *TransportError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("lookup request failed: %v", e.Err)
	case e.Detail != "":
		return fmt.Sprintf("lookup request failed with status %d: %s", e.StatusCode, e.Detail)
	default:
		return fmt.Sprintf("lookup request failed with status %d", e.StatusCode)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// UserMessage returns the text fit for the widget's feedback node: the server
// detail when one was parsed, the generic message otherwise.
func (e *TransportError) UserMessage() string {
	if e.Detail != "" {
		return e.Detail
	}
	return genericFailureMessage
}

// FailureMessage maps any lookup error onto feedback text. Malformed payloads
// deliberately collapse into the generic transport message.
func FailureMessage(err error) string {
	var te *TransportError
	if errors.As(err, &te) {
		return te.UserMessage()
	}
	return genericFailureMessage
}
