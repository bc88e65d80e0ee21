package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies resolution failures.
type ErrorKind int

const (
	NotFound ErrorKind = iota + 1
	Opaque
	UnresolvedCommandName
	MissingSignature
	UnknownPosition
	MissingSplatSource
	SplatSourceNotFound
	AmbiguousSplatSource
)

var (
	ErrNotFound              = errors.New("function not found")
	ErrOpaque                = errors.New("command has no inspectable body")
	ErrUnresolvedCommandName = errors.New("command name is not a static literal")
	ErrMissingSignature      = errors.New("no signature available for positional argument")
	ErrUnknownPosition       = errors.New("no parameter declared at position")
	ErrMissingSplatSource    = errors.New("no scope available to resolve splat")
	ErrSplatSourceNotFound   = errors.New("splat source not found")
	ErrAmbiguousSplatSource  = errors.New("ambiguous splat source")
)

var errorKinds = map[ErrorKind]struct {
	name     string
	sentinel error
}{
	NotFound:              {"NotFound", ErrNotFound},
	Opaque:                {"Opaque", ErrOpaque},
	UnresolvedCommandName: {"UnresolvedCommandName", ErrUnresolvedCommandName},
	MissingSignature:      {"MissingSignature", ErrMissingSignature},
	UnknownPosition:       {"UnknownPosition", ErrUnknownPosition},
	MissingSplatSource:    {"MissingSplatSource", ErrMissingSplatSource},
	SplatSourceNotFound:   {"SplatSourceNotFound", ErrSplatSourceNotFound},
	AmbiguousSplatSource:  {"AmbiguousSplatSource", ErrAmbiguousSplatSource},
}

func (k ErrorKind) String() string {
	if e, ok := errorKinds[k]; ok {
		return e.name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Sentinel returns the error value errors.Is matches for the kind.
func (k ErrorKind) Sentinel() error {
	return errorKinds[k].sentinel
}

// ResolutionError is a failure to analyze a function or resolve one of its
// invocations.
type ResolutionError struct {
	Kind     ErrorKind
	Function string
	Command  string
	Pos      Position
	Detail   string
	// Err is an underlying cause, such as a signature provider failure.
	Err error
}

// NewError builds a ResolutionError located at inv.
func NewError(kind ErrorKind, inv *Invocation, format string, args ...interface{}) *ResolutionError {
	e := &ResolutionError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
	if inv != nil {
		e.Function = inv.Parent
		e.Command = inv.Command
		e.Pos = inv.Pos
	}
	return e
}

// Message returns the error text without its location.
func (e *ResolutionError) Message() string {
	msg := e.Kind.String()
	if s := e.Kind.Sentinel(); s != nil {
		msg = s.Error()
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ResolutionError) Error() string {
	msg := e.Message()
	switch {
	case e.Command != "":
		return fmt.Sprintf("%s: %s -> %s: %s", e.Pos, e.Function, e.Command, msg)
	case e.Function != "":
		return fmt.Sprintf("%s: %s", e.Function, msg)
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *ResolutionError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Kind.Sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// KindOf returns the kind of the first ResolutionError in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var re *ResolutionError
	if errors.As(err, &re) {
		return re.Kind, true
	}
	return 0, false
}
