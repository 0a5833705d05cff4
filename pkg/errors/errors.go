package errors

import (
	stdErrors "errors"
	"fmt"
)

// Kind identifies one failure class in the closed checkout taxonomy.
type Kind string

const (
	KindCardIncomplete Kind = "CARD_INCOMPLETE"
	KindCardInvalid    Kind = "CARD_INVALID"
	KindCardDeclined   Kind = "CARD_DECLINED"
	KindProcessorError Kind = "PROCESSOR_ERROR"
	KindInvalidOrder   Kind = "INVALID_ORDER"
	KindServerError    Kind = "SERVER_ERROR"
	KindValidation     Kind = "VALIDATION"
	KindUnknown        Kind = "UNKNOWN"
)

// Recovery describes how the checkout flow may continue after a failure.
type Recovery string

const (
	// RecoveryResettable clears the payment widget and allows resubmission
	// after a short delay; the user stays on the payment step.
	RecoveryResettable Recovery = "resettable"
	// RecoveryStep requires the user to go back one step.
	RecoveryStep Recovery = "fatal-to-step"
	// RecoverySession requires the user to restart checkout.
	RecoverySession Recovery = "fatal-to-session"
)

type Metadata struct {
	Recovery      Recovery
	Retryable     bool
	PublicMessage string
}

var metadataByKind = map[Kind]Metadata{
	KindCardIncomplete: {
		Recovery:      RecoveryResettable,
		Retryable:     true,
		PublicMessage: "complete the card details before paying",
	},
	KindCardInvalid: {
		Recovery:      RecoveryResettable,
		Retryable:     true,
		PublicMessage: "card details are invalid",
	},
	KindCardDeclined: {
		Recovery:      RecoveryResettable,
		Retryable:     true,
		PublicMessage: "card was declined",
	},
	KindProcessorError: {
		Recovery:      RecoveryStep,
		Retryable:     false,
		PublicMessage: "payment processor is unavailable",
	},
	KindInvalidOrder: {
		Recovery:      RecoveryStep,
		Retryable:     false,
		PublicMessage: "no active order for this checkout",
	},
	KindServerError: {
		Recovery:      RecoveryStep,
		Retryable:     true,
		PublicMessage: "server error, please try again",
	},
	KindValidation: {
		Recovery:      RecoveryStep,
		Retryable:     true,
		PublicMessage: "validation failed",
	},
	KindUnknown: {
		Recovery:      RecoveryStep,
		Retryable:     false,
		PublicMessage: "unexpected error",
	},
}

// MetadataFor returns the recovery policy for a kind. Unknown kinds resolve
// to the UNKNOWN policy so lookups are total.
func MetadataFor(kind Kind) Metadata {
	if meta, ok := metadataByKind[kind]; ok {
		return meta
	}
	return metadataByKind[KindUnknown]
}

// CardLevel reports whether a kind is recovered locally on the payment step.
func CardLevel(kind Kind) bool {
	switch kind {
	case KindCardIncomplete, KindCardInvalid, KindCardDeclined:
		return true
	default:
		return false
	}
}

type Error struct {
	kind    Kind
	message string
	details any
	cause   error
}

func New(kind Kind, message string) *Error {
	return &Error{kind: kind, message: message}
}

func Wrap(kind Kind, err error, message string) *Error {
	if err == nil {
		return New(kind, message)
	}
	return &Error{kind: kind, message: message, cause: err}
}

func (e *Error) Kind() Kind {
	if e == nil {
		return KindUnknown
	}
	return e.kind
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.kind, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// Classify maps any failure into exactly one kind of the closed taxonomy.
// Already-classified errors keep their kind; everything else is UNKNOWN.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	if typed := As(err); typed != nil {
		return typed
	}
	return Wrap(KindUnknown, err, "unexpected failure")
}

// KindOf is a convenience over Classify for callers that only branch on kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return Classify(err).Kind()
}
