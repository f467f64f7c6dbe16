package timeline

import (
	"errors"
	"fmt"
)

// Structural invariant violations, rejected synchronously at edit time.
var (
	ErrNotFound           = errors.New("entity not found")
	ErrDuplicateID        = errors.New("duplicate id")
	ErrUnknownTrackType   = errors.New("unknown track type")
	ErrUnknownBackground  = errors.New("unknown background type")
	ErrNotMediaTrack      = errors.New("track does not hold media clips")
	ErrNotEffectTrack     = errors.New("track does not hold effect clips")
	ErrWrongTrackKind     = errors.New("effect clip kind does not match track type")
	ErrClipOverlap        = errors.New("clip overlaps an existing clip on the track")
	ErrBadInterval        = errors.New("invalid time interval")
	ErrDanglingTarget     = errors.New("target track does not exist")
	ErrIncompatibleTarget = errors.New("target track type is incompatible")
	ErrBadReorder         = errors.New("reorder list does not match track set")
)

// ModelError wraps an invariant violation with the operation and entity
// that triggered it.
type ModelError struct {
	Op  string
	ID  string
	Err error
}

func (e *ModelError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.ID, e.Err)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}
