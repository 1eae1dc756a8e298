// Package errors provides structured error handling with machine-readable codes.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Connection-level authentication errors
	CodeAuthRequired   Code = "AUTH_REQUIRED"
	CodeAuthInvalid    Code = "AUTH_INVALID"
	CodeAuthExpired    Code = "AUTH_EXPIRED"
	CodeAuthUnverified Code = "AUTH_UNVERIFIED"

	// Per-operation errors
	CodeNotAuthorized     Code = "NOT_AUTHORIZED"
	CodeNotFound          Code = "NOT_FOUND"
	CodeEditWindowExpired Code = "EDIT_WINDOW_EXPIRED"
	CodeInvalidArgument   Code = "INVALID_ARGUMENT"

	// Storage-layer errors
	CodeStorageFailure Code = "STORAGE_FAILURE"
)

// wsCodes maps platform error codes to the code string carried on
// message-error frames. Unlisted codes surface as UNKNOWN.
var wsCodes = map[Code]string{
	CodeAuthRequired:      "AUTH_REQUIRED",
	CodeAuthInvalid:       "AUTH_INVALID",
	CodeAuthExpired:       "AUTH_EXPIRED",
	CodeAuthUnverified:    "AUTH_UNVERIFIED",
	CodeNotAuthorized:     "NOT_AUTHORIZED",
	CodeNotFound:          "NOT_FOUND",
	CodeEditWindowExpired: "EDIT_WINDOW_EXPIRED",
	CodeInvalidArgument:   "INVALID_ARGUMENT",
	CodeStorageFailure:    "STORAGE_FAILURE",
}

// WireCode returns the protocol code string for this error code.
func (c Code) WireCode() string {
	if wire, ok := wsCodes[c]; ok {
		return wire
	}
	return string(CodeUnknown)
}
