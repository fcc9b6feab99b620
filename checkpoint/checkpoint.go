// Package checkpoint decorates errors with the file and line of the caller,
// which results in something similar to a stacktrace. Every error attached to
// a checkpoint stays visible to errors.Is and errors.As.
package checkpoint

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"
)

// From wraps an error by a new checkpoint carrying the caller information.
// It returns nil if err is nil.
func From(err error) error {
	// io.EOF must stay comparable by ==.
	// https://github.com/golang/go/issues/39155
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return err
	}
	if err == nil {
		return nil
	}

	return newCheckpoint(err, nil)
}

// Wrap adds a checkpoint with caller information to prev and attaches an
// additional error describing the checkpoint itself. It returns nil if prev
// is nil.
//
// This allows predefining sentinel errors and attaching them on the way up:
//  var ErrCardRead = errors.New("could not read a block from the card")
//
//  func readBlock() error {
//  	err := lowLevelRead()
//  	return checkpoint.Wrap(err, ErrCardRead)
//  }
// The result matches both the original error of lowLevelRead and ErrCardRead
// when checked with errors.Is.
func Wrap(prev, err error) error {
	if prev == io.EOF {
		return io.EOF
	}
	if prev == nil {
		return nil
	}

	return newCheckpoint(err, prev)
}

type checkpoint struct {
	err  error
	prev error

	callerOk bool
	file     string
	line     int
}

func newCheckpoint(err, prev error) *checkpoint {
	// Skip newCheckpoint and From/Wrap itself.
	_, file, line, ok := runtime.Caller(2)

	return &checkpoint{
		err:  err,
		prev: prev,

		callerOk: ok,
		file:     filepath.Base(file),
		line:     line,
	}
}

func (e *checkpoint) Error() string {
	location := "File: unknown"
	if e.callerOk {
		location = fmt.Sprintf("File: %s:%d", e.file, e.line)
	}

	if e.prev == nil {
		return fmt.Sprintf("%s\n\t%v", location, e.err)
	}

	// Indent the previous error unless it is a checkpoint itself and already
	// carries its own location line.
	prevErrString := e.prev.Error()
	if _, ok := e.prev.(*checkpoint); !ok {
		prevErrString = "File: unknown\n\t" + strings.ReplaceAll(prevErrString, "\n", "\n\t")
	}

	if e.err == nil {
		return fmt.Sprintf("%s\n%v", location, prevErrString)
	}
	return fmt.Sprintf("%s\n\t%v\n%v", location, e.err, prevErrString)
}

func (e *checkpoint) Unwrap() error {
	return e.prev
}

func (e *checkpoint) Is(target error) bool {
	return errors.Is(e.err, target)
}

func (e *checkpoint) As(target interface{}) bool {
	if e.err == nil {
		return false
	}
	return errors.As(e.err, target)
}
