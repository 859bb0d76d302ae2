package cycle

import (
	"errors"
	"fmt"
)

// Kind classifies how the cycle driver should react to an error.
type Kind int

const (
	// KindWarning is logged and the cycle continues.
	KindWarning Kind = iota
	// KindDegraded means a collaborator is unavailable and the cycle
	// continues with fallback behaviour.
	KindDegraded
	// KindFatal aborts the rest of the cycle.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindWarning:
		return "warning"
	case KindDegraded:
		return "degraded"
	case KindFatal:
		return "fatal"
	}
	return "unknown"
}

type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindFatal, Err: err}
}

func Fatalf(format string, args ...any) error {
	return &Error{Kind: KindFatal, Err: fmt.Errorf(format, args...)}
}

func Degraded(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindDegraded, Err: err}
}

func Degradedf(format string, args ...any) error {
	return &Error{Kind: KindDegraded, Err: fmt.Errorf(format, args...)}
}

func Warningf(format string, args ...any) error {
	return &Error{Kind: KindWarning, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the classification of err. Unclassified errors are
// treated as fatal so nothing slips through by accident.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindFatal
}

func IsFatal(err error) bool {
	return err != nil && KindOf(err) == KindFatal
}
