package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/medvault/medvault/internal/platform/validate"
)

// Kind classifies a client failure.
type Kind int

const (
	// KindTransport covers network failures, cancellation and unreadable bodies.
	KindTransport Kind = iota + 1
	// KindStatus is a non-2xx response from the backend.
	KindStatus
	// KindValidation is a form rejected before any request was sent.
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindStatus:
		return "status"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindStatus:
		return fmt.Sprintf("%d: %s", e.Status, e.Message)
	case e.Kind == KindTransport && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	default:
		return e.Message
	}
}

func (e *Error) Unwrap() error { return e.Err }

// statusError picks the message of a failed response: {message}, then
// {error}, then the body text, then the status text.
func statusError(status int, contentType string, raw []byte) *Error {
	msg := ""
	if strings.HasPrefix(contentType, "application/json") {
		var body struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if json.Unmarshal(raw, &body) == nil {
			msg = body.Message
			if msg == "" {
				msg = body.Error
			}
		}
	}
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &Error{Kind: KindStatus, Status: status, Message: msg}
}

// check validates a form locally. A failure never reaches the network.
func check(form interface{}) error {
	if err := validate.Struct(form); err != nil {
		return &Error{Kind: KindValidation, Message: err.Error(), Err: err}
	}
	return nil
}

func invalid(format string, args ...interface{}) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func hasStatus(err error, status int) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindStatus && e.Status == status
}

func IsUnauthorized(err error) bool { return hasStatus(err, http.StatusUnauthorized) }
func IsForbidden(err error) bool    { return hasStatus(err, http.StatusForbidden) }
func IsNotFound(err error) bool     { return hasStatus(err, http.StatusNotFound) }
func IsConflict(err error) bool     { return hasStatus(err, http.StatusConflict) }

func IsValidation(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindValidation
}

func IsTransport(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindTransport
}
