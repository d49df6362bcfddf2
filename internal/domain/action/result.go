package action

import "encoding/json"

// Result is the uniform envelope returned by every dispatch.
type Result struct {
	Success bool
	Data    any
	Err     error
}

// Succeed builds a successful result.
func Succeed(data any) Result {
	return Result{Success: true, Data: data}
}

// Fail builds a failed result.
func Fail(err error) Result {
	return Result{Success: false, Err: err}
}

// FailWithData builds a failed result that still carries partial data.
func FailWithData(err error, data any) Result {
	return Result{Success: false, Err: err, Data: data}
}

// Results is the data type of composite results.
type Results []Result

// AllSucceeded reports whether every result succeeded.
func (rs Results) AllSucceeded() bool {
	for _, r := range rs {
		if !r.Success {
			return false
		}
	}
	return true
}

// ConditionOutcome is the data of a conditional that had no branch to run.
type ConditionOutcome struct {
	ConditionMet bool `json:"conditionMet"`
	Executed     bool `json:"executed"`
}

// ErrorMessage returns the error text of a failed result, or "".
func (r Result) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

type resultJSON struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *errorJSON `json:"error,omitempty"`
}

type errorJSON struct {
	Code    ErrorCode `json:"code,omitempty"`
	Message string    `json:"message"`
}

// MarshalJSON renders the envelope with the error reduced to code and text.
func (r Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{Success: r.Success, Data: r.Data}
	if r.Err != nil {
		out.Error = &errorJSON{Code: CodeOf(r.Err), Message: r.Err.Error()}
	}
	return json.Marshal(out)
}
