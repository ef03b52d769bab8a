package lirc

import "errors"

var (
	// ErrSyntax is returned for unbalanced begin/end blocks.
	ErrSyntax = errors.New("lirc: syntax error")

	// ErrInvalidValue is returned when a typed field cannot be parsed.
	ErrInvalidValue = errors.New("lirc: invalid value")

	// ErrNoRemote is returned when a definition holds no remote section.
	ErrNoRemote = errors.New("lirc: no remote section")

	// ErrUnknownCode is returned when a button name has no code.
	ErrUnknownCode = errors.New("lirc: unknown code")

	// ErrProfileNotFound is returned when a named profile does not exist.
	ErrProfileNotFound = errors.New("lirc: profile not found")
)
