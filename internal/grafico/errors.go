package grafico

import (
	"errors"
	"fmt"
	"os"
)

// SerializationError reports a graph node that cannot be written in the
// Grafico format. Nothing is written when it is returned.
type SerializationError struct {
	ID     string
	Type   string
	Reason string
}

func (e *SerializationError) Error() string {
	if e.ID == "" {
		return "grafico: cannot serialize model: " + e.Reason
	}
	return fmt.Sprintf("grafico: cannot serialize %s %q: %s", e.Type, e.ID, e.Reason)
}

// ParseError reports a Grafico file that is corrupt or uses a schema version
// this codec does not understand.
type ParseError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("grafico: parse %s: %s", e.Path, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// ReferenceError reports a relationship endpoint that names no node after
// every file has been read.
type ReferenceError struct {
	Path string
	ID   string // relationship holding the reference
	Ref  string // identifier that could not be resolved
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("grafico: %s: relationship %q references unknown node %q", e.Path, e.ID, e.Ref)
}

// IsNoModel reports whether err comes from importing a working tree that
// holds no model at all.
func IsNoModel(err error) bool {
	var perr *ParseError
	return errors.As(err, &perr) && perr.Path == ModelFile && errors.Is(perr.Err, os.ErrNotExist)
}
