package domain

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind classifies failures surfaced by the catalog core.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindInvalidArgument
	KindNotFound
	KindForbidden
	KindUploadFailed
	KindUnauthorized
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindUploadFailed:
		return "upload_failed"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "unknown"
	}
}

// Error is a catalog failure tagged with its kind.
type Error struct {
	Kind     ErrorKind
	Resource string
	Detail   string
	Err      error
}

func (e Error) Error() string {
	msg := e.Detail
	if msg == "" {
		switch e.Kind {
		case KindNotFound:
			msg = "not found"
			if e.Resource != "" {
				msg = fmt.Sprintf("%s not found", e.Resource)
			}
		default:
			msg = e.Kind.String()
		}
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e Error) Unwrap() error { return e.Err }

// Is matches any Error of the same kind.
func (e Error) Is(target error) bool {
	switch t := target.(type) {
	case Error:
		return t.Kind == e.Kind
	case *Error:
		return t != nil && t.Kind == e.Kind
	}
	return false
}

var (
	ErrInvalidArgument = Error{Kind: KindInvalidArgument}
	ErrNotFound        = Error{Kind: KindNotFound}
	ErrForbidden       = Error{Kind: KindForbidden}
	ErrUploadFailed    = Error{Kind: KindUploadFailed}
	ErrUnauthorized    = Error{Kind: KindUnauthorized}
)

func NotFoundError(resource string) error {
	return Error{Kind: KindNotFound, Resource: resource}
}

func InvalidArgumentError(detail string) error {
	return Error{Kind: KindInvalidArgument, Detail: detail}
}

func ForbiddenError(detail string) error {
	return Error{Kind: KindForbidden, Detail: detail}
}

func UploadFailedError(err error) error {
	return Error{Kind: KindUploadFailed, Detail: "failed to upload video file", Err: err}
}

func UnauthorizedError(detail string) error {
	return Error{Kind: KindUnauthorized, Detail: detail}
}

// KindOf reports the kind of the first Error in err's chain.
func KindOf(err error) ErrorKind {
	var e Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var pe *Error
	if errors.As(err, &pe) && pe != nil {
		return pe.Kind
	}
	return KindUnknown
}
