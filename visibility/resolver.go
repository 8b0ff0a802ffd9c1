package visibility

// Preference is one stored visibility preference row for a person.
// A nil ContributorID is the person's global default; a non-nil value scopes
// the preference to notes authored by that contributor.
type Preference struct {
	ContributorID *uint
	Level         Level
}

// Source records which precedence layer produced a resolution, so UIs and
// audit paths can explain a decision.
type Source string

const (
	SourceReferenceOverride Source = "reference_override"
	SourceAuthorPreference  Source = "author_preference"
	SourceGlobalPreference  Source = "global_preference"
	SourceBaseVisibility    Source = "base_visibility"
	SourceDefault           Source = "default"
)

// Resolution is the outcome of one precedence evaluation.
type Resolution struct {
	Level  Level
	Source Source
}

// ResolveInput carries everything the precedence ladder needs for one
// (person, note, viewer) triple. All rows are already fetched; resolution is
// pure computation.
type ResolveInput struct {
	// ReferenceOverride is the per-reference override from the specific
	// EventReference being rendered, if any.
	ReferenceOverride *Level
	// NoteAuthorID is the contributor who authored the note, if known.
	NoteAuthorID *uint
	// Preferences are the person's stored preference rows, any order.
	Preferences []Preference
	// Base is the person's base visibility fallback; empty means unset.
	Base Level
}

// resolveRule is one precedence layer. It returns a resolution and whether it
// applies; the first applying rule stops evaluation.
type resolveRule func(ResolveInput) (Resolution, bool)

// precedenceLadder is ordered highest-first. Adding a layer means inserting a
// rule here, not editing callers.
var precedenceLadder = []resolveRule{
	referenceOverrideRule,
	authorPreferenceRule,
	globalPreferenceRule,
	baseVisibilityRule,
}

// Resolve computes the effective disclosure level for one person in the
// context of one note. It always returns a usable level; when nothing
// resolves, the literal default is pending.
func Resolve(in ResolveInput) Resolution {
	for _, rule := range precedenceLadder {
		if resolution, ok := rule(in); ok {
			return resolution
		}
	}
	return Resolution{Level: LevelPending, Source: SourceDefault}
}

func referenceOverrideRule(in ResolveInput) (Resolution, bool) {
	if in.ReferenceOverride == nil {
		return Resolution{}, false
	}
	return Resolution{Level: *in.ReferenceOverride, Source: SourceReferenceOverride}, true
}

func authorPreferenceRule(in ResolveInput) (Resolution, bool) {
	if in.NoteAuthorID == nil {
		return Resolution{}, false
	}
	for _, pref := range in.Preferences {
		if pref.ContributorID != nil && *pref.ContributorID == *in.NoteAuthorID {
			return Resolution{Level: pref.Level, Source: SourceAuthorPreference}, true
		}
	}
	return Resolution{}, false
}

func globalPreferenceRule(in ResolveInput) (Resolution, bool) {
	for _, pref := range in.Preferences {
		if pref.ContributorID == nil {
			return Resolution{Level: pref.Level, Source: SourceGlobalPreference}, true
		}
	}
	return Resolution{}, false
}

func baseVisibilityRule(in ResolveInput) (Resolution, bool) {
	if in.Base == "" {
		return Resolution{}, false
	}
	return Resolution{Level: in.Base, Source: SourceBaseVisibility}, true
}
