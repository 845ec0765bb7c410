package keyword

import (
	"context"
	"errors"
)

// ErrEmptyText is returned by Add when the trimmed keyword text is empty.
var ErrEmptyText = errors.New("keyword text is empty")

// ErrCapacity is returned by Add when the list already holds the maximum
// number of keywords.
var ErrCapacity = errors.New("keyword list is full")

// ErrDuplicate is returned by Add and Edit when another record already
// carries the same text (case-insensitive).
var ErrDuplicate = errors.New("keyword already exists")

// ErrTooLong is returned by Add and Edit when the text exceeds the
// charset-dependent length limit.
var ErrTooLong = errors.New("keyword text too long")

// ErrNotFound is returned by Edit when no record with the given ID exists.
var ErrNotFound = errors.New("keyword not found")

// IsValidationError reports whether err is one of the keyword validation
// sentinels. Validation failures leave the store unchanged and are reported
// inline to the user rather than as processing errors.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrEmptyText) ||
		errors.Is(err, ErrCapacity) ||
		errors.Is(err, ErrDuplicate) ||
		errors.Is(err, ErrTooLong)
}

// Store manages the ordered keyword list.
//
// All implementations must be safe for concurrent use.
type Store interface {
	// Add creates a record with a fresh ID and zeroed match fields and
	// inserts it at the front of the list (newest first).
	// Returns [ErrEmptyText], [ErrCapacity], [ErrDuplicate], or
	// [ErrTooLong] on validation failure; the store is unchanged then.
	Add(ctx context.Context, text string) (Keyword, error)

	// Edit replaces a record's text and resets its match fields. A
	// newText that trims to empty is a cancelled edit: no change, nil
	// error. The duplicate check excludes the record being edited.
	// Returns [ErrNotFound] when no record with that ID exists.
	Edit(ctx context.Context, id, newText string) (Keyword, error)

	// Remove deletes a record by ID. Removing an absent ID is a no-op.
	Remove(ctx context.Context, id string) error

	// ResetMatches zeroes the match fields on every record without
	// altering texts or ordering.
	ResetMatches(ctx context.Context) error

	// ApplyMatches writes reconciliation results into the matching
	// records. Updates for unknown IDs are ignored. Detected is derived
	// from the update's MatchCount.
	ApplyMatches(ctx context.Context, updates map[string]MatchUpdate) error

	// List returns a copy of all records in list order (newest first).
	List(ctx context.Context) ([]Keyword, error)

	// Stats returns aggregate match statistics for the current list.
	Stats(ctx context.Context) (Stats, error)
}
