// Package coreerr implements the error taxonomy shared by every engine
// subsystem (spec §7): a small set of Kinds the dispatcher and adapters
// branch on, plus a sanitized view safe to hand back to callers.
package coreerr

import "fmt"

// Kind classifies a core error for dispatchers and transport adapters.
type Kind string

const (
	KindNotFound         Kind = "not_found"
	KindInputValidation  Kind = "input_validation"
	KindOutputValidation Kind = "output_validation"
	KindUnauthenticated  Kind = "unauthenticated"
	KindUnauthorized     Kind = "unauthorized"
	KindConflict         Kind = "conflict"
	KindRateLimited      Kind = "rate_limited"
	KindExpired          Kind = "expired"
	KindExternalService  Kind = "external_service"
	KindInternal         Kind = "internal"
)

// Error is the typed error every subsystem returns across package
// boundaries. Field and Provider/UpstreamStatus are populated only for the
// Kinds that use them (validation, external service calls).
type Error struct {
	Kind           Kind
	Message        string
	Field          string
	Provider       string
	UpstreamStatus int
	Err            error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field=%s)", e.Kind, e.Message, e.Field)
	}
	if e.Provider != "" {
		return fmt.Sprintf("%s: %s (provider=%s, status=%d)", e.Kind, e.Message, e.Provider, e.UpstreamStatus)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func NotFound(message string) *Error { return New(KindNotFound, message) }

func InputValidation(field, message string) *Error {
	return &Error{Kind: KindInputValidation, Message: message, Field: field}
}

func OutputValidation(field, message string) *Error {
	return &Error{Kind: KindOutputValidation, Message: message, Field: field}
}

func Unauthenticated(message string) *Error { return New(KindUnauthenticated, message) }

func Unauthorized(message string) *Error { return New(KindUnauthorized, message) }

func Conflict(message string) *Error { return New(KindConflict, message) }

func RateLimited(message string) *Error { return New(KindRateLimited, message) }

func Expired(message string) *Error { return New(KindExpired, message) }

func ExternalService(provider, message string, upstreamStatus int, err error) *Error {
	return &Error{Kind: KindExternalService, Message: message, Provider: provider, UpstreamStatus: upstreamStatus, Err: err}
}

func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// Of returns the Kind of err, or KindInternal if err is not a *Error.
func Of(err error) Kind {
	var e *Error
	if ce, ok := err.(*Error); ok {
		e = ce
		return e.Kind
	}
	return KindInternal
}

// Sanitize strips anything that should never cross a transport boundary
// (stack traces, raw keys, hashes, the wrapped cause) and returns the view
// an adapter is allowed to serialize back to a caller.
func Sanitize(err error) map[string]any {
	if err == nil {
		return nil
	}
	ce, ok := err.(*Error)
	if !ok {
		return map[string]any{"kind": string(KindInternal), "message": "internal error"}
	}
	view := map[string]any{
		"kind":    string(ce.Kind),
		"message": ce.Message,
	}
	if ce.Field != "" {
		view["field"] = ce.Field
	}
	if ce.Provider != "" {
		view["provider"] = ce.Provider
	}
	return view
}
