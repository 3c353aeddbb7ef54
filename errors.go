package gofib

import (
	"errors"
	"fmt"
	"syscall"
)

// ErrResourceExhausted is returned when the fd context pool has no free
// slot left. The pool never grows; close an FD to make room.
var ErrResourceExhausted = errors.New("gofib: fd context pool exhausted")

// OsError carries the failing syscall, its errno and the fd involved.
type OsError struct {
	Syscall string
	Fd      int
	Errno   syscall.Errno
}

func (e *OsError) Error() string {
	return fmt.Sprintf("gofib: %s fd=%d: %s", e.Syscall, e.Fd, e.Errno.Error())
}

func (e *OsError) Unwrap() error {
	return e.Errno
}

func newOsError(call string, fd int, err error) *OsError {
	errno, ok := err.(syscall.Errno)
	if !ok {
		errno = syscall.EINVAL
	}
	return &OsError{Syscall: call, Fd: fd, Errno: errno}
}

// TooFarAheadError reports a timer entry whose deadline lies beyond the
// wheel's span. It carries the wheel state for diagnosis.
type TooFarAheadError struct {
	TimePoint  TscTimePoint
	BaseTime   TscTimePoint
	PoppedTime TscTimePoint
	Offset     uint64
	Resolution int64
}

func (e *TooFarAheadError) Error() string {
	return fmt.Sprintf("gofib: timer entry too far ahead: tp=%d base=%d popped=%d offset=%d resolution=%d",
		e.TimePoint, e.BaseTime, e.PoppedTime, e.Offset, e.Resolution)
}
