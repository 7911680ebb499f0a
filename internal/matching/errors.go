package matching

import (
	"errors"
	"fmt"
)

// Code classifies failures for logs and metrics. Values are stable.
type Code int

const (
	CodeUnexpected       Code = 313001
	CodeServer           Code = 313002
	CodeExternalResource Code = 313003
	CodeInvalidPayload   Code = 313004
	CodeProcessing       Code = 313005
	CodeEventLog         Code = 313006
	CodeMatching         Code = 313007
	CodeDatabase         Code = 313008
)

var codeNames = map[Code]string{
	CodeUnexpected:       "UNEXPECTED_ERROR",
	CodeServer:           "SERVER_ERROR",
	CodeExternalResource: "EXTERNAL_RESOURCE_ERROR",
	CodeInvalidPayload:   "INVALID_PAYLOAD",
	CodeProcessing:       "PROCESSING_ERROR",
	CodeEventLog:         "EVENT_LOG_ERROR",
	CodeMatching:         "MATCHING_ERROR",
	CodeDatabase:         "DATABASE_ERROR",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("CODE_%d", int(c))
}

// ErrAnnouncementNotFound reports that the announcement named by an event
// does not exist. Such events are dropped.
var ErrAnnouncementNotFound = errors.New("announcement not found")

// Error attaches a classification code to an operation failure.
type Error struct {
	Code Code
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code Code, op string, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}

// CodeOf returns the code of the outermost *Error in err's chain, or
// CodeUnexpected when there is none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnexpected
}
