package codec

import "fmt"

// LengthError reports a buffer shorter than the schema being decoded
// requires. Schema names the region or account family so a short read is
// unambiguous about what was being parsed.
type LengthError struct {
	Schema string
	Need   int
	Got    int
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("%s: buffer too short: need %d bytes, got %d", e.Schema, e.Need, e.Got)
}

// FormatError reports bytes that are well within bounds but not a valid
// encoding: a magic mismatch, or a buffer length no known layout produces.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return "format: " + e.Reason
}

// RangeError reports a slot index outside [0, Capacity).
type RangeError struct {
	Index    int
	Capacity int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("slot index %d out of range [0, %d)", e.Index, e.Capacity)
}
