package client

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// Kind is the category of a failed call.
type Kind int

const (
	KindUnknown Kind = iota
	KindNetwork
	KindUnauthorized
	KindNoToken
	KindForbidden
	KindNotFound
	KindValidation
	KindServer
)

var kindNames = map[Kind]string{
	KindUnknown:      "unknown",
	KindNetwork:      "network",
	KindUnauthorized: "unauthorized",
	KindNoToken:      "no_token",
	KindForbidden:    "forbidden",
	KindNotFound:     "not_found",
	KindValidation:   "validation",
	KindServer:       "server",
}

var kindMessages = map[Kind]string{
	KindUnknown:      "An unexpected error occurred. Please try again.",
	KindNetwork:      "Network error. Please check your connection and try again.",
	KindUnauthorized: "Your session has expired. Please log in again.",
	KindNoToken:      "You are not logged in. Please log in to continue.",
	KindForbidden:    "You do not have permission to perform this action.",
	KindNotFound:     "The requested resource was not found.",
	KindValidation:   "Some of the submitted data is invalid.",
	KindServer:       "Something went wrong on our side. Please try again later.",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return kindNames[KindUnknown]
}

// Message is the human-readable default for the kind.
func (k Kind) Message() string {
	if s, ok := kindMessages[k]; ok {
		return s
	}
	return kindMessages[KindUnknown]
}

// Auth reports whether the kind means the stored token is unusable.
func (k Kind) Auth() bool {
	return k == KindUnauthorized || k == KindNoToken
}

// Error is a classified failure. Message prefers the server's own message.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Body    []byte
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Status > 0:
		return fmt.Sprintf("client: %s (%d): %s", e.Kind, e.Status, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("client: %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("client: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err, KindUnknown when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// MessageOf returns the human-readable message for any error.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return KindUnknown.Message()
}

// envelope inspects the backend's {success, message} wrapper.
type envelope struct {
	present bool
	success bool
	message string
}

func inspect(body []byte) envelope {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return envelope{}
	}
	res := gjson.GetManyBytes(body, "success", "message")
	return envelope{
		present: res[0].Exists(),
		success: res[0].Bool(),
		message: res[1].String(),
	}
}

// missingTokenPhrases are the ways the backend's auth middleware says the
// session token is absent, invalid or expired. Other messages that merely
// mention a token (reset or invite tokens) are not session failures.
var missingTokenPhrases = []string{
	"no token",
	"token missing",
	"token is missing",
	"missing token",
	"token not provided",
	"token required",
	"token is required",
	"invalid token",
	"token is not valid",
	"jwt expired",
	"jwt malformed",
}

func mentionsToken(msg string) bool {
	msg = strings.ToLower(msg)
	for _, p := range missingTokenPhrases {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// classify returns nil for a successful response.
func classify(status int, body []byte) *Error {
	env := inspect(body)
	failed := env.present && !env.success

	var kind Kind
	switch {
	case status == http.StatusUnauthorized:
		kind = KindUnauthorized
	case failed && mentionsToken(env.message):
		kind = KindNoToken
	case status == http.StatusForbidden:
		kind = KindForbidden
	case status == http.StatusNotFound:
		kind = KindNotFound
	case status == http.StatusUnprocessableEntity:
		kind = KindValidation
	case status >= 500:
		kind = KindServer
	case status >= 200 && status < 300 && !failed:
		return nil
	default:
		kind = KindUnknown
	}

	msg := env.message
	if msg == "" {
		msg = kind.Message()
	}
	return &Error{
		Kind:    kind,
		Status:  status,
		Message: msg,
		Body:    body,
	}
}

// Outcome tags the result of a call for callers that branch on it.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeAuthError
	OutcomeFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeAuthError:
		return "auth_error"
	}
	return "failure"
}

type Result struct {
	Outcome Outcome
	Err     error
}

func ResultOf(err error) Result {
	switch {
	case err == nil:
		return Result{Outcome: OutcomeOK}
	case KindOf(err).Auth():
		return Result{Outcome: OutcomeAuthError, Err: err}
	}
	return Result{Outcome: OutcomeFailure, Err: err}
}

func (r Result) OK() bool { return r.Outcome == OutcomeOK }
