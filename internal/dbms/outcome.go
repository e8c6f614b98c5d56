package dbms

import "fmt"

// Outcome is the backend-independent meaning of a native result code.
type Outcome int

const (
	// OutcomeOther is any failure without a specific meaning.
	OutcomeOther Outcome = iota
	OutcomeSuccessful
	// OutcomeNotFound means the operation matched no row. It is not an error.
	OutcomeNotFound
	// OutcomeLocked means the resource is busy; the caller may retry.
	OutcomeLocked
	// OutcomeLostConnection means the session is unusable and must be recovered.
	OutcomeLostConnection
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccessful:
		return "successful"
	case OutcomeNotFound:
		return "not-found"
	case OutcomeLocked:
		return "locked"
	case OutcomeLostConnection:
		return "lost-connection"
	default:
		return "other"
	}
}

// ResultCode is a classified native result.
type ResultCode struct {
	Code    int
	Message string
	Outcome Outcome
}

// Success is the ResultCode of a call that completed normally.
func Success() ResultCode {
	return ResultCode{Outcome: OutcomeSuccessful}
}

func (rc ResultCode) Successful() bool     { return rc.Outcome == OutcomeSuccessful }
func (rc ResultCode) NotFound() bool       { return rc.Outcome == OutcomeNotFound }
func (rc ResultCode) Locked() bool         { return rc.Outcome == OutcomeLocked }
func (rc ResultCode) LostConnection() bool { return rc.Outcome == OutcomeLostConnection }

// Failed reports whether the result counts as a failure for rollback
// purposes: anything except Successful and NotFound.
func (rc ResultCode) Failed() bool {
	return rc.Outcome != OutcomeSuccessful && rc.Outcome != OutcomeNotFound
}

func (rc ResultCode) String() string {
	if rc.Message == "" {
		return fmt.Sprintf("%s (%d)", rc.Outcome, rc.Code)
	}
	return fmt.Sprintf("%s (%d): %s", rc.Outcome, rc.Code, rc.Message)
}

// ErrorCodeInterpreter maps a backend's native result code to an Outcome.
// Implementations must be pure.
type ErrorCodeInterpreter interface {
	Classify(code int) Outcome
}

// CodeTable is an ErrorCodeInterpreter backed by a fixed table. Codes absent
// from the table classify as OutcomeOther.
type CodeTable map[int]Outcome

// Classify implements ErrorCodeInterpreter.
func (t CodeTable) Classify(code int) Outcome {
	if o, ok := t[code]; ok {
		return o
	}
	return OutcomeOther
}

// InterpreterFunc adapts a function to ErrorCodeInterpreter.
type InterpreterFunc func(code int) Outcome

// Classify implements ErrorCodeInterpreter.
func (f InterpreterFunc) Classify(code int) Outcome { return f(code) }

// classify turns err into a ResultCode using in. A nil error is Successful.
func classify(in ErrorCodeInterpreter, err error) ResultCode {
	if err == nil {
		return Success()
	}
	code, msg, ok := nativeCode(err)
	if !ok {
		return ResultCode{Code: code, Message: msg, Outcome: OutcomeOther}
	}
	return ResultCode{Code: code, Message: msg, Outcome: in.Classify(code)}
}
