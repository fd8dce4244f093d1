package domain

import "encoding/json"

// ErrorCode classifies the outcome of a service operation.
type ErrorCode int

const (
	NoError ErrorCode = iota
	UserNameAlreadyTaken
	EmailAlreadyTaken
	InvalidEntity
	IdentityErrorCode
	EmailOrPasswordIncorrect
	EmailNotFound
	EmailNotConfirmed
	RoleNotFound
	EmailAlreadyConfirmed
	RoleAlreadyExists
	InvalidPolicy
	PolicyAlreadyAssignedToRole
	UserNotFound
	UserDoesntHaveRole
)

var errorCodeNames = [...]string{
	NoError:                     "NoError",
	UserNameAlreadyTaken:        "UserNameAlreadyTaken",
	EmailAlreadyTaken:           "EmailAlreadyTaken",
	InvalidEntity:               "InvalidEntity",
	IdentityErrorCode:           "IdentityError",
	EmailOrPasswordIncorrect:    "EmailOrPasswordIncorrect",
	EmailNotFound:               "EmailNotFound",
	EmailNotConfirmed:           "EmailNotConfirmed",
	RoleNotFound:                "RoleNotFound",
	EmailAlreadyConfirmed:       "EmailAlreadyConfirmed",
	RoleAlreadyExists:           "RoleAlreadyExists",
	InvalidPolicy:               "InvalidPolicy",
	PolicyAlreadyAssignedToRole: "PolicyAlreadyAssignedToRole",
	UserNotFound:                "UserNotFound",
	UserDoesntHaveRole:          "UserDoesntHaveRole",
}

func (c ErrorCode) String() string {
	if c < 0 || int(c) >= len(errorCodeNames) {
		return "Unknown"
	}
	return errorCodeNames[c]
}

// None is the payload of operations that return no data.
type None struct{}

// Result is the envelope every service operation returns for expected outcomes.
// Errors is never nil and only carries messages for InvalidEntity, IdentityError
// and explicit single-value failures such as InvalidPolicy.
type Result[T any] struct {
	ErrorCode ErrorCode
	Errors    []string
	Data      T
}

// Status is the payload-less form of Result.
type Status = Result[None]

// Success reports whether the operation completed without error.
func (r Result[T]) Success() bool {
	return r.ErrorCode == NoError
}

// Ok wraps data as a successful result.
func Ok[T any](data T) Result[T] {
	return Result[T]{ErrorCode: NoError, Errors: []string{}, Data: data}
}

// Done is the successful payload-less result.
func Done() Status {
	return Ok(None{})
}

// Fail builds a code-only failure.
func Fail[T any](code ErrorCode) Result[T] {
	return Result[T]{ErrorCode: code, Errors: []string{}}
}

// FailWith builds a failure carrying explicit values, e.g. the offending claim.
func FailWith[T any](code ErrorCode, values ...string) Result[T] {
	errs := make([]string, len(values))
	copy(errs, values)
	return Result[T]{ErrorCode: code, Errors: errs}
}

// Invalid builds an InvalidEntity failure from validation messages.
func Invalid[T any](violations []string) Result[T] {
	return FailWith[T](InvalidEntity, violations...)
}

// Rejected builds an IdentityError failure from a credential store rejection.
func Rejected[T any](rej *IdentityError) Result[T] {
	if rej == nil {
		return Fail[T](IdentityErrorCode)
	}
	return FailWith[T](IdentityErrorCode, rej.Descriptions...)
}

// Convert carries a failure over to a result with a different payload type.
func Convert[T, U any](r Result[U]) Result[T] {
	return FailWith[T](r.ErrorCode, r.Errors...)
}

type resultJSON[T any] struct {
	Success   bool      `json:"success"`
	ErrorCode ErrorCode `json:"errorCode"`
	Errors    []string  `json:"errors"`
	Data      *T        `json:"data,omitempty"`
}

func (r Result[T]) MarshalJSON() ([]byte, error) {
	out := resultJSON[T]{
		Success:   r.Success(),
		ErrorCode: r.ErrorCode,
		Errors:    r.Errors,
	}
	if out.Errors == nil {
		out.Errors = []string{}
	}
	if r.Success() {
		data := r.Data
		out.Data = &data
	}
	return json.Marshal(out)
}
