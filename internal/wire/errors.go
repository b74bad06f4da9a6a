// Package wire implements the ring node's binary frame codec: parsing and
// serializing the fixed-layout PDUs exchanged over the tracker UDP channel
// and the predecessor/successor TCP links.
package wire

import "errors"

var (
	// ErrShortBuffer means the buffer does not yet hold a complete frame.
	// Callers should wait for more bytes rather than treat this as malformed
	// input.
	ErrShortBuffer = errors.New("wire: short buffer")

	// ErrUnknownType means the leading type byte does not match any known
	// frame. Callers discard one byte and resynchronize.
	ErrUnknownType = errors.New("wire: unknown frame type")

	// ErrOutOfRange means a VAL_* frame's SSN hashes outside the range the
	// local node currently owns.
	ErrOutOfRange = errors.New("wire: hash outside owned range")

	// ErrFieldTooLong means a variable-length field (name or email) exceeds
	// the 255-byte limit its 1-byte length prefix can express.
	ErrFieldTooLong = errors.New("wire: field exceeds 255 bytes")
)
