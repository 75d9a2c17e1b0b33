package site

import (
	"errors"
	"fmt"
)

// Kind classifies a build failure.
type Kind string

const (
	// KindConfig covers invalid settings and unusable input such as an empty corpus.
	KindConfig Kind = "config"
	// KindGeneration covers failures of the chain model while training or sampling.
	KindGeneration Kind = "generation"
	// KindIO covers filesystem failures while clearing or writing the output.
	KindIO Kind = "io"
)

// Error is the error type returned by every operation in this package.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s error: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by Kind when the target carries no Op or cause,
// so errors.Is(err, &Error{Kind: KindIO}) tests the category.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Err == nil
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func configError(op string, err error) error {
	return &Error{Kind: KindConfig, Op: op, Err: err}
}

func generationError(op string, err error) error {
	return &Error{Kind: KindGeneration, Op: op, Err: err}
}

func ioError(op string, err error) error {
	return &Error{Kind: KindIO, Op: op, Err: err}
}
