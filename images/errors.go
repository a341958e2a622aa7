package images

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoSuchImage is the engine's ResourceNotFound: no record matched, or a
// record matched but its backing blob was gone and the record has been
// removed.  The two cases are deliberately indistinguishable.
var ErrNoSuchImage = errors.New("no such image")

// InvalidNameError reports a user-supplied string that cannot be parsed as
// [registry/]repo[:tag|@digest].
type InvalidNameError struct {
	Name string
	Err  error
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid image name %q: %v", e.Name, e.Err)
}

func (e *InvalidNameError) Unwrap() error { return e.Err }

// AmbiguousIDError reports an ID prefix that matched exactly one docker_id
// across more than one registry host.  The records may hold genuinely
// different content, so the engine refuses to pick one.
type AmbiguousIDError struct {
	Prefix     string
	IndexNames []string
}

func (e *AmbiguousIDError) Error() string {
	return fmt.Sprintf("image id %q is ambiguous: it is registered against multiple registry hosts (%s)",
		e.Prefix, strings.Join(e.IndexNames, ", "))
}

// ConflictError reports a deletion blocked by the image's current state:
// a live workload uses it, multiple tags reference it and the request was
// not forced, or a non-head v1 image was targeted directly.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

func conflictf(format string, args ...any) error {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// InvalidFilterError reports an unknown catalog filter field.
type InvalidFilterError struct {
	Err error
}

func (e *InvalidFilterError) Error() string {
	return fmt.Sprintf("invalid filter: %v", e.Err)
}

func (e *InvalidFilterError) Unwrap() error { return e.Err }
