package message

import "errors"

// Message layer errors. ErrUnknownMessage and ErrMalformedMessage are kept
// distinct because they map to different response status codes.
var (
	// ErrUnknownMessage is returned when no shape is registered for an id.
	ErrUnknownMessage = errors.New("message: unknown message id")

	// ErrMalformedMessage is returned when a registered shape cannot be
	// decoded from the available bytes.
	ErrMalformedMessage = errors.New("message: malformed message")

	// ErrFrameTooShort is returned for frames below the minimum wire size.
	ErrFrameTooShort = errors.New("message: frame too short")

	// ErrLengthMismatch is returned when the LENGTH field disagrees with
	// the actual frame size.
	ErrLengthMismatch = errors.New("message: length field mismatch")

	// ErrUnknownField is the panic value raised when a field name is not
	// part of the message's shape. Field names are static catalog
	// constants, so hitting it is a programming error.
	ErrUnknownField = errors.New("message: unknown field")

	// ErrShapeConflict is returned when two shapes register the same
	// (layer, id) pair.
	ErrShapeConflict = errors.New("message: shape already registered")

	// ErrBadShape is returned when a shape declares more than one
	// variable-size field.
	ErrBadShape = errors.New("message: shape has multiple variable-size fields")
)
