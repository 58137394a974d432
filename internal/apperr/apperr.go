// Package apperr holds the error classes shared by the storage, auth and
// HTTP layers. Callers classify errors with errors.Is against the sentinels.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrAuth       = errors.New("authentication failed")
	ErrNotFound   = errors.New("resource not found")
	ErrConflict   = errors.New("resource already exists")
	ErrStale      = errors.New("resource was modified concurrently")
)

// silentWrap formats as its own message but unwraps to a sentinel.
type silentWrap struct {
	msg string
	err error
}

func (w silentWrap) Error() string { return w.msg }

func (w silentWrap) Unwrap() error { return w.err }

func wrapf(sentinel error, format string, args ...any) error {
	if len(args) == 0 {
		return silentWrap{msg: format, err: sentinel}
	}
	return silentWrap{msg: fmt.Sprintf(format, args...), err: sentinel}
}

// Validationf reports malformed or missing input.
func Validationf(format string, args ...any) error { return wrapf(ErrValidation, format, args...) }

// Authf reports bad credentials or an unusable token.
func Authf(format string, args ...any) error { return wrapf(ErrAuth, format, args...) }

// NotFoundf reports an unknown id.
func NotFoundf(format string, args ...any) error { return wrapf(ErrNotFound, format, args...) }

// Conflictf reports a uniqueness violation such as a duplicate email.
func Conflictf(format string, args ...any) error { return wrapf(ErrConflict, format, args...) }

// Stalef reports a version mismatch on an optimistic update.
func Stalef(format string, args ...any) error { return wrapf(ErrStale, format, args...) }
