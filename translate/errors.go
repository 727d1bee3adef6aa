package translate

import (
	"errors"

	"github.com/minios-linux/glosa/i18n"
)

// Kind classifies a translation failure.
type Kind string

const (
	KindConfigLoad            Kind = "ConfigLoadError"
	KindConfiguration         Kind = "ConfigurationError"
	KindProviderNotRegistered Kind = "ProviderNotRegistered"
	KindNetwork               Kind = "NetworkError"
	KindNonSuccessStatus      Kind = "NonSuccessStatus"
	KindEmptyResponse         Kind = "EmptyResponse"
	KindDetection             Kind = "DetectionError"
	KindUnknownAction         Kind = "UnknownAction"
	KindInvalidRequest        Kind = "InvalidRequest"
	KindNotReady              Kind = "NotReady"
)

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrConfigLoad            = &Error{Kind: KindConfigLoad}
	ErrConfiguration         = &Error{Kind: KindConfiguration}
	ErrProviderNotRegistered = &Error{Kind: KindProviderNotRegistered}
	ErrNetwork               = &Error{Kind: KindNetwork}
	ErrNonSuccessStatus      = &Error{Kind: KindNonSuccessStatus}
	ErrEmptyResponse         = &Error{Kind: KindEmptyResponse}
	ErrDetection             = &Error{Kind: KindDetection}
	ErrUnknownAction         = &Error{Kind: KindUnknownAction}
	ErrInvalidRequest        = &Error{Kind: KindInvalidRequest}
	ErrNotReady              = &Error{Kind: KindNotReady}
)

// Error is a classified failure. Message is safe to show to a user; Err
// keeps the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
	// DetectedSourceLanguage is set when detection succeeded before the
	// failure.
	DetectedSourceLanguage string
}

// NewError builds an *Error.
func NewError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.DetectedSourceLanguage == "" && t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// UserMessage returns the display message of err. Unclassified errors
// never leak their text.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Error()
	}
	if err == nil {
		return ""
	}
	return i18n.T("Unexpected error")
}
