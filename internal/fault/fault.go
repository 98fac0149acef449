// Package fault classifies run failures into the job's error taxonomy and
// maps each class to a process exit status.
package fault

import (
	"context"
	"errors"
	"net"
	"strings"
)

type Class string

const (
	ClassConfiguration Class = "configuration"
	ClassTransport     Class = "transport"
	ClassIntegrity     Class = "integrity"
	ClassDecode        Class = "decode"
	ClassSink          Class = "sink"
	ClassUnknown       Class = "unknown"
)

// Classed is implemented by typed errors that know their own class.
type Classed interface {
	error
	FaultClass() Class
}

type classifiedError struct {
	err   error
	class Class
}

func (e *classifiedError) Error() string {
	return e.err.Error()
}

func (e *classifiedError) Unwrap() error {
	return e.err
}

func (e *classifiedError) FaultClass() Class {
	return e.class
}

func mark(err error, class Class) error {
	if err == nil {
		return nil
	}
	return &classifiedError{err: err, class: class}
}

func Configuration(err error) error { return mark(err, ClassConfiguration) }
func Transport(err error) error     { return mark(err, ClassTransport) }
func Integrity(err error) error     { return mark(err, ClassIntegrity) }
func Decode(err error) error        { return mark(err, ClassDecode) }
func Sink(err error) error          { return mark(err, ClassSink) }

// Classify resolves the class of err. Explicit markers and typed errors win;
// otherwise transport-looking failures are recognised from their shape.
func Classify(err error) Class {
	if err == nil {
		return ClassUnknown
	}

	var classed Classed
	if errors.As(err, &classed) {
		return classed.FaultClass()
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ClassTransport
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassTransport
	}

	lower := strings.ToLower(err.Error())
	if containsAny(lower, transportMessageTokens) {
		return ClassTransport
	}

	return ClassUnknown
}

// ExitCode maps a class to the process exit status.
func ExitCode(class Class) int {
	switch class {
	case ClassConfiguration:
		return 2
	case ClassTransport:
		return 3
	case ClassIntegrity:
		return 4
	case ClassDecode:
		return 5
	case ClassSink:
		return 6
	default:
		return 1
	}
}

func containsAny(msg string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(msg, token) {
			return true
		}
	}
	return false
}

var transportMessageTokens = []string{
	"timeout",
	"timed out",
	"connection reset",
	"connection refused",
	"broken pipe",
	"no such host",
	"too many requests",
	"execution reverted",
	"http status",
	"http request",
}
