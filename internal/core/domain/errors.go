package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business domain error with a structured error code.
// Codes have the form WM-<AREA>-<NNNN>.
type DomainError struct {
	Code    string // Error code (e.g., "WM-ROOM-4040")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches on the error code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{Code: e.Code, Message: e.Message, Details: details, Cause: e.Cause}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{Code: e.Code, Message: e.Message, Details: e.Details, Cause: cause}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return code == "" || de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Authentication errors.
var (
	ErrAuthMalformed     = NewDomainError("WM-AUTH-4000", "malformed credentials")
	ErrAuthBadSignature  = NewDomainError("WM-AUTH-4010", "signature mismatch")
	ErrAuthUnknownUser   = NewDomainError("WM-AUTH-4011", "unknown user")
	ErrAuthUserDisabled  = NewDomainError("WM-AUTH-4012", "user disabled")
	ErrAuthClockSkew     = NewDomainError("WM-AUTH-4014", "nonce timestamp out of acceptable window")
	ErrAuthReplay        = NewDomainError("WM-AUTH-4015", "nonce replay detected")
	ErrAuthNoCredentials = NewDomainError("WM-AUTH-4016", "no credentials")
)

// Connection errors.
var (
	ErrConnUntrustedOrigin = NewDomainError("WM-CONN-4030", "untrusted origin")
	ErrConnRejected        = NewDomainError("WM-CONN-4031", "connection rejected")
	ErrConnNotFound        = NewDomainError("WM-CONN-4040", "connection not found")
	ErrConnClosed          = NewDomainError("WM-CONN-4100", "connection closed")
	ErrConnSendQueueFull   = NewDomainError("WM-CONN-5030", "send queue full")
)

// Room errors.
var (
	ErrRoomNotFound     = NewDomainError("WM-ROOM-4040", "room not found")
	ErrRoomAccessDenied = NewDomainError("WM-ROOM-4030", "room access denied")
	ErrRoomPostDenied   = NewDomainError("WM-ROOM-4031", "posting to room not allowed")
	ErrRoomNotMember    = NewDomainError("WM-ROOM-4032", "not subscribed to room")
)

// Peer link errors.
var (
	ErrPeerNotConnected = NewDomainError("WM-PEER-5030", "peer link not connected")
	ErrPeerStopped      = NewDomainError("WM-PEER-4100", "peer link stopped")
	ErrPeerHandshake    = NewDomainError("WM-PEER-4010", "peer handshake rejected")
	ErrPeerNotFound     = NewDomainError("WM-PEER-4040", "peer not found")
)

// Store and argument errors.
var (
	ErrUserNotFound    = NewDomainError("WM-USER-4040", "user not found")
	ErrGroupNotFound   = NewDomainError("WM-GRP-4040", "group not found")
	ErrInvalidArgument = NewDomainError("WM-ARG-1001", "invalid argument")
	ErrStorage         = NewDomainError("WM-SYS-5001", "storage error")
)
