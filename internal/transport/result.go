package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/tbourn/go-storefront-client/internal/domain"
)

// Kind classifies the outcome of a remote call.
type Kind int

const (
	// OK is any 2xx response.
	OK Kind = iota
	// Transport covers network failures, timeouts, 5xx, an open breaker and
	// payloads that do not decode or validate. Only this kind triggers
	// fallback.
	Transport
	// NotFound is a 404: the resource is definitively absent.
	NotFound
	// Rejected is any other 4xx: the server refused the request.
	Rejected
	// AuthExpired means the credentials could not be refreshed and were
	// cleared.
	AuthExpired
)

func (k Kind) String() string {
	switch k {
	case OK:
		return "ok"
	case Transport:
		return "transport"
	case NotFound:
		return "not_found"
	case Rejected:
		return "rejected"
	case AuthExpired:
		return "auth_expired"
	}
	return "unknown"
}

// Sentinel errors matching each failure kind, usable with errors.Is.
var (
	ErrTransport   = errors.New("remote unavailable")
	ErrNotFound    = errors.New("not found")
	ErrRejected    = errors.New("rejected by server")
	ErrAuthExpired = errors.New("authentication expired")
)

// RejectedError carries the server's refusal.
type RejectedError struct {
	Status  int
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("rejected by server (%d)", e.Status)
	}
	return fmt.Sprintf("rejected by server (%d): %s", e.Status, e.Message)
}

// Unwrap lets errors.Is(err, ErrRejected) match.
func (e *RejectedError) Unwrap() error { return ErrRejected }

// Result is the explicit outcome of Client.Do.
type Result struct {
	Kind    Kind
	Status  int
	Body    []byte
	Message string
	Cause   error
}

// OK reports whether the call succeeded.
func (r Result) OK() bool { return r.Kind == OK }

// Err maps the result to nil or a sentinel-wrapping error.
func (r Result) Err() error {
	switch r.Kind {
	case OK:
		return nil
	case NotFound:
		return ErrNotFound
	case Rejected:
		return &RejectedError{Status: r.Status, Message: r.Message}
	case AuthExpired:
		return ErrAuthExpired
	}
	switch {
	case r.Cause != nil:
		return fmt.Errorf("%w: %v", ErrTransport, r.Cause)
	case r.Status != 0:
		return fmt.Errorf("%w: status %d", ErrTransport, r.Status)
	}
	return ErrTransport
}

// Decode unmarshals the body into v, unwrapping a {"data": ...} envelope,
// then normalizes and validates v. An empty body leaves v untouched.
func (r Result) Decode(v any) error {
	body := bytes.TrimSpace(r.Body)
	if len(body) == 0 {
		return nil
	}
	if body[0] == '{' {
		var env map[string]json.RawMessage
		if err := json.Unmarshal(body, &env); err == nil {
			if data, ok := env["data"]; ok {
				body = data
			}
		}
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	return domain.Check(v)
}

// classify maps an HTTP status to a kind. 401 is resolved by the caller.
func classify(status int) Kind {
	switch {
	case status >= 200 && status < 300:
		return OK
	case status == http.StatusNotFound:
		return NotFound
	case status >= 400 && status < 500:
		return Rejected
	}
	return Transport
}

// serverMessage extracts a human message from an error body.
func serverMessage(body []byte, status int) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return http.StatusText(status)
}
