package feedsync

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is; a *RemoteError matches the sentinel of its Kind.
var (
	ErrNetwork    = errors.New("feedsync: network error")
	ErrNotFound   = errors.New("feedsync: not found")
	ErrValidation = errors.New("feedsync: validation failed")
	ErrStaleWrite = errors.New("feedsync: stale write")
)

// Kind classifies a RemoteError.
type Kind uint8

const (
	KindNetwork Kind = iota + 1
	KindNotFound
	KindValidation
	KindStaleWrite
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindStaleWrite:
		return "stale_write"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindNetwork:
		return ErrNetwork
	case KindNotFound:
		return ErrNotFound
	case KindValidation:
		return ErrValidation
	case KindStaleWrite:
		return ErrStaleWrite
	default:
		return nil
	}
}

// RemoteError describes a failure at the remote collection boundary.
type RemoteError struct {
	Kind     Kind
	Op       string // fetchPage, search, mutate:<op>, getById
	Resource string
	ID       string // optional entity id
	Err      error  // optional cause
}

func (e *RemoteError) Error() string {
	target := e.Resource
	if e.ID != "" {
		target += "/" + e.ID
	}
	switch {
	case e.Err != nil && target != "":
		return fmt.Sprintf("%s %s: %s: %v", e.Op, target, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case target != "":
		return fmt.Sprintf("%s %s: %s", e.Op, target, e.Kind)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

// Is reports whether target is the sentinel for e.Kind.
func (e *RemoteError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

func (e *RemoteError) Unwrap() error { return e.Err }

func NetworkError(op, resource string, cause error) error {
	return &RemoteError{Kind: KindNetwork, Op: op, Resource: resource, Err: cause}
}

func NotFoundError(op, resource, id string) error {
	return &RemoteError{Kind: KindNotFound, Op: op, Resource: resource, ID: id}
}

func ValidationError(op, resource string, cause error) error {
	return &RemoteError{Kind: KindValidation, Op: op, Resource: resource, Err: cause}
}

func StaleWriteError(op, resource, id string, cause error) error {
	return &RemoteError{Kind: KindStaleWrite, Op: op, Resource: resource, ID: id, Err: cause}
}

// KindOf returns the Kind carried by err, or 0 when err is not a RemoteError
// and matches none of the sentinels.
func KindOf(err error) Kind {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Kind
	}
	switch {
	case errors.Is(err, ErrNetwork):
		return KindNetwork
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrStaleWrite):
		return KindStaleWrite
	}
	return 0
}
