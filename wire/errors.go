package wire

import "errors"

// Parse failure kinds. The exact message text is part of the wire contract:
// callers (the termination controller, end-to-end tests) match on
// substrings, so wording must not be tightened without checking what the
// affected scenarios expect.
var (
	ErrIntegerTooLong    = errors.New("wire: integer too long")
	ErrStringTooLong     = errors.New("wire: string too long")
	ErrUnexpectedInteger = errors.New("wire: unexpected integer")
	ErrUnexpectedString  = errors.New("wire: unexpected string")
	ErrUnexpectedDict    = errors.New("wire: unexpected dictionary")
	ErrUnexpectedList    = errors.New("wire: unexpected list")
	ErrUnexpectedEnd     = errors.New("wire: unexpected end")
	ErrUnknownKey        = errors.New("wire: unknown key")
	ErrTrailingList      = errors.New("wire: unexpected list: trailing data after top-level message")
	ErrMalformedInteger  = errors.New("wire: malformed integer literal")
	ErrInvalidArgument   = errors.New("wire: invalid argument")
)
