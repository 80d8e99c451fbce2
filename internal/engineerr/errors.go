// Package engineerr defines the error taxonomy surfaced by the engine (§7
// of the specification): errors that fail a query before any stream begins,
// errors that are retried transparently, and errors that never reach the
// caller because a fallback absorbed them.
package engineerr

import "fmt"

// Kind classifies an engine error for callers that need to branch on it
// (e.g. the HTTP surface deciding between a structured pre-stream error and
// a terminal stream chunk).
type Kind string

const (
	KindValidation Kind = "validation"
	KindAcquire    Kind = "acquisition"
	KindIngestion  Kind = "ingestion"
	KindTransient  Kind = "provider_transient"
	KindAuth       Kind = "provider_auth"
	KindTokenLimit Kind = "token_limit_exceeded"
	KindCancelled  Kind = "cancelled"
)

// Error is a typed engine error. Message must never contain a credential;
// callers that build one from a lower-level error are responsible for
// scrubbing first (see Scrub).
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target has the same Kind, satisfying errors.Is when
// target is a *Error with only Kind set.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newf(k Kind, format string, args ...any) *Error {
	return &Error{Kind: k, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error { return newf(KindValidation, format, args...) }

func Acquisition(err error, format string, args ...any) *Error {
	e := newf(KindAcquire, format, args...)
	e.Err = err
	return e
}

func Ingestion(err error, format string, args ...any) *Error {
	e := newf(KindIngestion, format, args...)
	e.Err = err
	return e
}

func Transient(err error, format string, args ...any) *Error {
	e := newf(KindTransient, format, args...)
	e.Err = err
	return e
}

func Auth(format string, args ...any) *Error { return newf(KindAuth, format, args...) }

func TokenLimit(err error) *Error {
	e := newf(KindTokenLimit, "provider reported a context-length error")
	e.Err = err
	return e
}

func Cancelled() *Error { return newf(KindCancelled, "request cancelled by caller") }

// Sentinel kind markers for errors.Is(err, engineerr.ErrValidation) style
// checks without constructing a message.
var (
	ErrValidation = &Error{Kind: KindValidation}
	ErrAcquire    = &Error{Kind: KindAcquire}
	ErrIngestion  = &Error{Kind: KindIngestion}
	ErrTransient  = &Error{Kind: KindTransient}
	ErrAuth       = &Error{Kind: KindAuth}
	ErrTokenLimit = &Error{Kind: KindTokenLimit}
	ErrCancelled  = &Error{Kind: KindCancelled}
)

// Scrub removes a known credential value from an error message before it is
// ever logged or surfaced to a caller.
func Scrub(msg, credential string) string {
	if credential == "" {
		return msg
	}
	return scrub(msg, credential)
}

func scrub(msg, credential string) string {
	const mask = "***"
	out := msg
	for {
		idx := indexOf(out, credential)
		if idx < 0 {
			return out
		}
		out = out[:idx] + mask + out[idx+len(credential):]
	}
}

func indexOf(s, sub string) int {
	if sub == "" {
		return -1
	}
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
