// Package stegerr defines the error kinds shared by every deepscene stage.
//
// Each failure carries a Kind (where in the taxonomy it belongs), a human
// readable detail and an optional cause. Kinds compare with errors.Is:
//
//	if errors.Is(err, stegerr.ErrValidation) {
//		// bad user input
//	}
package stegerr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind categorizes the error
type Kind string

const (
	KindIO          Kind = "io"          // filesystem failure
	KindImage       Kind = "image"       // image decode/encode failure
	KindEncryption  Kind = "encryption"  // key derivation, authentication, malformed blob
	KindCompression Kind = "compression" // malformed compressed stream
	KindValidation  Kind = "validation"  // bad user input
	KindData        Kind = "data"        // malformed embedded structure
)

// Sentinels for errors.Is comparisons against a kind.
var (
	ErrIO          = &Error{Kind: KindIO}
	ErrImage       = &Error{Kind: KindImage}
	ErrEncryption  = &Error{Kind: KindEncryption}
	ErrCompression = &Error{Kind: KindCompression}
	ErrValidation  = &Error{Kind: KindValidation}
	ErrData        = &Error{Kind: KindData}
)

var titles = map[Kind]string{
	KindIO:          "IO",
	KindImage:       "Image",
	KindEncryption:  "Encryption",
	KindCompression: "Compression",
	KindValidation:  "Validation",
	KindData:        "Data",
}

// Error is the structured error returned by all deepscene packages
type Error struct {
	Cause  error
	Kind   Kind
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	title, ok := titles[e.Kind]
	if !ok {
		title = string(e.Kind)
	}
	b.WriteString(title)
	b.WriteString(" error")

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}

	return b.String()
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports a match when target is an *Error of the same kind.
// A target with a detail must also match the detail exactly.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Detail == "" || t.Detail == e.Detail
}

func newf(kind Kind, format string, args []any) *Error {
	detail := format
	if len(args) > 0 {
		detail = fmt.Sprintf(format, args...)
	}
	return &Error{Kind: kind, Detail: detail}
}

// IO creates a filesystem error
func IO(cause error, format string, args ...any) *Error {
	e := newf(KindIO, format, args)
	e.Cause = cause
	return e
}

// Image creates an image codec error
func Image(cause error, format string, args ...any) *Error {
	e := newf(KindImage, format, args)
	e.Cause = cause
	return e
}

// Encryption creates a crypto error
func Encryption(format string, args ...any) *Error {
	return newf(KindEncryption, format, args)
}

// Compression creates a compression error
func Compression(cause error, format string, args ...any) *Error {
	e := newf(KindCompression, format, args)
	e.Cause = cause
	return e
}

// Validation creates a user input error
func Validation(format string, args ...any) *Error {
	return newf(KindValidation, format, args)
}

// Data creates an embedded structure error
func Data(format string, args ...any) *Error {
	return newf(KindData, format, args)
}

// Wrap wraps an existing error with a kind and detail
func Wrap(kind Kind, cause error, detail string) *Error {
	return &Error{
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
