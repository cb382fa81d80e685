package redstruct

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a key, field or member is absent from the
// store. It is always distinguishable from a legitimately empty value.
var ErrNotFound = errors.New("not found")

// ErrUnsupported is returned by operations that are invalid for a given
// container variant (e.g. per-element TTLs on Dict, whose length counter
// lives on a shared bucket key and cannot observe expirations).
var ErrUnsupported = errors.New("operation not supported")

// CodecError reports a payload that could not be encoded or decoded.
type CodecError struct {
	Data []byte
	Err  error
	Msg  string
}

func codecErrf(data []byte, err error, format string, args ...any) error {
	return &CodecError{data, err, fmt.Sprintf(format, args...)}
}

func (e *CodecError) Unwrap() error {
	return e.Err
}

func (e *CodecError) Error() string {
	const prefixLen = 64
	const suffixLen = 32
	n := len(e.Data)
	if n <= prefixLen+suffixLen {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x", e.Msg, e.Err, n, e.Data)
		} else {
			return fmt.Sprintf("%s: (%d) %x", e.Msg, n, e.Data)
		}
	} else {
		p, s := e.Data[:prefixLen], e.Data[n-suffixLen:]
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x...%x", e.Msg, e.Err, n, p, s)
		} else {
			return fmt.Sprintf("%s: (%d) %x...%x", e.Msg, n, p, s)
		}
	}
}

// BatchError identifies the command within a batch that failed, so that a
// caller can tell which logical sub-operation is now inconsistent (say,
// a bucket counter versus the element it was supposed to track). Commands
// before Index have been applied, and commands after it may have been too:
// batches do not roll back.
type BatchError struct {
	Index int
	Cmd   Cmd
	Err   error
}

func batchErrf(index int, cmd Cmd, err error) error {
	return &BatchError{Index: index, Cmd: cmd, Err: err}
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch command %d (%s %s): %v", e.Index, e.Cmd.Op, e.Cmd.Key, e.Err)
}
