package transfer

import (
	"errors"
	"fmt"
	"net/http"
)

// Receive-side errors. Each maps to a protocol status code via HTTPStatus.
var (
	ErrEmptyFiles         = errors.New("Request must contain at least one file")
	ErrInvalidParameters  = errors.New("Missing parameters")
	ErrInvalidRecipient   = errors.New("Recipient is in wrong state")
	ErrInvalidSessionID   = errors.New("Invalid session id")
	ErrInvalidServerState = errors.New("Server is in invalid state")
	ErrInvalidToken       = errors.New("Invalid token")
	ErrNothingSelected    = errors.New("Nothing selected")
	ErrSaveFileFailed     = errors.New("Could not save file")
	ErrSessionBlocked     = errors.New("Blocked by another session")
	ErrSessionDeclined    = errors.New("File request declined by recipient")
	ErrSessionNotExists   = errors.New("No session")
	ErrCancelled          = errors.New("Cancelled")
)

// Send-side errors.
var (
	ErrRejected            = errors.New("The recipient has rejected the request")
	ErrRecipientBusy       = errors.New("The recipient is busy with another request")
	ErrCancelledByReceiver = errors.New("Cancelled by receiver")
	ErrNoPermission        = errors.New("No permission")
)

// InvalidIPError keeps the offending address in the message while still
// matching ErrInvalidIP via errors.Is.
type InvalidIPError struct {
	IP string
}

func (e *InvalidIPError) Error() string {
	return fmt.Sprintf("Invalid IP address: %s", e.IP)
}

func (e *InvalidIPError) Is(target error) bool {
	return target == ErrInvalidIP
}

var ErrInvalidIP = errors.New("Invalid IP address")

// UnknownStatusError reports an unexpected HTTP status from a peer.
type UnknownStatusError struct {
	Code int
}

func (e *UnknownStatusError) Error() string {
	return fmt.Sprintf("Unknown response status code: %d", e.Code)
}

// HTTPStatus maps a transfer error onto the wire status code. Unknown errors
// become 500 and are reported as a generic internal error.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrCancelled):
		return http.StatusOK
	case errors.Is(err, ErrEmptyFiles), errors.Is(err, ErrInvalidParameters):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidIP),
		errors.Is(err, ErrInvalidSessionID),
		errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrSessionDeclined),
		errors.Is(err, ErrNoPermission):
		return http.StatusForbidden
	case errors.Is(err, ErrNothingSelected):
		return http.StatusNoContent
	case errors.Is(err, ErrInvalidRecipient),
		errors.Is(err, ErrSessionBlocked),
		errors.Is(err, ErrSessionNotExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
