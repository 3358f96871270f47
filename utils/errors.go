package utils

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies the failures that cross the pipeline boundary.
type Kind int

const (
	KindGeneric Kind = iota
	KindInputMissing
	KindNoImages
	KindNoUsableData
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindInputMissing:
		return "input_missing"
	case KindNoImages:
		return "no_images"
	case KindNoUsableData:
		return "no_usable_data"
	case KindCancelled:
		return "cancelled"
	default:
		return "generic"
	}
}

// Error is the value-level failure returned by the pipeline entry points.
type Error struct {
	Kind    Kind
	Message string
	// Scanned is the number of files or rows inspected before giving up.
	// Only meaningful for KindNoUsableData.
	Scanned int
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrCancelled) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// Kind sentinels for errors.Is.
var (
	ErrInputMissing = &Error{Kind: KindInputMissing}
	ErrNoImages     = &Error{Kind: KindNoImages}
	ErrNoUsableData = &Error{Kind: KindNoUsableData}
	ErrCancelled    = &Error{Kind: KindCancelled}
)

func InputMissing(path string) *Error {
	return &Error{Kind: KindInputMissing, Message: fmt.Sprintf("input path does not exist: %s", path)}
}

func NoImages(dir string) *Error {
	return &Error{Kind: KindNoImages, Message: fmt.Sprintf("no supported images (jpg, png, heic) found in %s", dir)}
}

func NoUsableData(scanned int, source string) *Error {
	return &Error{
		Kind:    KindNoUsableData,
		Scanned: scanned,
		Message: fmt.Sprintf("no usable GPS data in the %d items scanned from %s; check that GPS was enabled on the camera", scanned, source),
	}
}

func Cancelled() *Error {
	return &Error{Kind: KindCancelled, Message: "process cancelled by user"}
}

// Wrap turns any error into a pipeline error. Errors that already carry a
// kind are returned as they are and context errors become KindCancelled.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindCancelled, Message: "process cancelled by user", Cause: err}
	}
	return &Error{Kind: KindGeneric, Message: message, Cause: err}
}

// KindOf reports the kind of err. Plain errors are KindGeneric.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}
	return KindGeneric
}
