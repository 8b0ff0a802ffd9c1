package visibility

import (
	"fmt"
	"strings"
)

// Level is an effective disclosure level for a person in a rendering context.
type Level string

const (
	// LevelApproved discloses the person's full canonical name.
	LevelApproved Level = "approved"
	// LevelPending means the person has not yet chosen; displayed like
	// anonymized but distinguishable so UIs can prompt them to decide.
	LevelPending Level = "pending"
	// LevelAnonymized shows only the relationship to the subject.
	LevelAnonymized Level = "anonymized"
	// LevelBlurred shows initials derived from the display name.
	LevelBlurred Level = "blurred"
	// LevelRemoved hides the reference entirely from every reader except the
	// note's author managing their own payload.
	LevelRemoved Level = "removed"
)

// ParseLevel validates a raw visibility string from storage or client input.
func ParseLevel(raw string) (Level, error) {
	level := Level(strings.ToLower(strings.TrimSpace(raw)))
	switch level {
	case LevelApproved, LevelPending, LevelAnonymized, LevelBlurred, LevelRemoved:
		return level, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidVisibility, raw)
	}
}

// Scope names how far a visibility choice applies when written.
type Scope string

const (
	// ScopeThisNote writes only the override on the single reference row.
	ScopeThisNote Scope = "this_note"
	// ScopeByAuthor upserts a preference keyed by (person, author) and syncs
	// the current reference override so a stale override cannot shadow it.
	ScopeByAuthor Scope = "by_author"
	// ScopeAllNotes upserts the global preference, refreshes the person's
	// base visibility cache and syncs the current reference override.
	ScopeAllNotes Scope = "all_notes"
)

// NormalizeScope maps client input to a known scope. Unknown values degrade
// to ScopeThisNote, the scope with the smallest blast radius.
func NormalizeScope(raw string) Scope {
	switch Scope(strings.ToLower(strings.TrimSpace(raw))) {
	case ScopeThisNote, ScopeByAuthor, ScopeAllNotes:
		return Scope(strings.ToLower(strings.TrimSpace(raw)))
	default:
		return ScopeThisNote
	}
}
