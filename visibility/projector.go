package visibility

import (
	"strings"
	"unicode"

	"github.com/Novakiki/kindredbackend/models"
)

// AnonymousLabel is shown when an anonymized person has no recorded
// relationship to the subject. A person whose identity cannot be resolved
// sees this placeholder, never an error.
const AnonymousLabel = "Someone"

// ResolvedReference pairs a reference with its resolved effective visibility.
type ResolvedReference struct {
	Ref        models.EventReference
	Resolution Resolution
}

// ProjectOptions controls projection behavior per call site.
type ProjectOptions struct {
	// IncludeAuthorPayload keeps removed references in the output, nameless,
	// so a note's author can manage rows for people who opted out. Every
	// other caller gets removed references dropped entirely.
	IncludeAuthorPayload bool
}

// ProjectedReference is the render-safe shape every read surface consumes:
// note page, editor, graph, chat context and claim flow.
type ProjectedReference struct {
	ReferenceID uint    `json:"reference_id"`
	NoteID      uint    `json:"note_id"`
	Type        string  `json:"type"`
	PersonID    *uint   `json:"person_id,omitempty"`
	Role        string  `json:"role,omitempty"`
	URL         *string `json:"url,omitempty"`

	// IdentityState mirrors the resolved level; pending is distinguishable
	// from anonymized here even though both render the same label.
	IdentityState Level  `json:"identity_state"`
	Source        Source `json:"source"`
	RenderLabel   string `json:"render_label"`

	// maskNames are the literal strings that must not survive in prose for
	// this reference. Unexported: only the masker consumes them.
	maskNames []string
}

// Project maps resolved references to their render-safe projection. It is a
// pure function with no side effects.
func Project(refs []ResolvedReference, opts ProjectOptions) []ProjectedReference {
	projected := make([]ProjectedReference, 0, len(refs))
	for _, resolved := range refs {
		ref := resolved.Ref
		if !ref.IsPerson() {
			projected = append(projected, projectLink(ref))
			continue
		}
		level := resolved.Resolution.Level
		if level == LevelRemoved && !opts.IncludeAuthorPayload {
			continue
		}
		projected = append(projected, projectPerson(ref, resolved.Resolution))
	}
	return projected
}

func projectLink(ref models.EventReference) ProjectedReference {
	label := ""
	if ref.DisplayName != nil {
		label = *ref.DisplayName
	}
	if label == "" && ref.URL != nil {
		label = *ref.URL
	}
	return ProjectedReference{
		ReferenceID:   ref.ID,
		NoteID:        ref.NoteID,
		Type:          ref.Type,
		URL:           ref.URL,
		IdentityState: LevelApproved,
		Source:        SourceDefault,
		RenderLabel:   label,
	}
}

func projectPerson(ref models.EventReference, resolution Resolution) ProjectedReference {
	displayName := referenceDisplayName(&ref)
	out := ProjectedReference{
		ReferenceID:   ref.ID,
		NoteID:        ref.NoteID,
		Type:          ref.Type,
		PersonID:      ref.PersonID,
		Role:          ref.Role,
		IdentityState: resolution.Level,
		Source:        resolution.Source,
	}

	switch resolution.Level {
	case LevelApproved:
		out.RenderLabel = displayName
		return out
	case LevelBlurred:
		out.RenderLabel = initialsLabel(displayName)
	case LevelAnonymized, LevelPending, LevelRemoved:
		out.RenderLabel = relationshipLabel(ref)
	default:
		out.RenderLabel = AnonymousLabel
	}

	out.maskNames = maskNamesFor(ref)
	return out
}

func relationshipLabel(ref models.EventReference) string {
	if ref.RelationshipToSubject != nil && strings.TrimSpace(*ref.RelationshipToSubject) != "" {
		return strings.TrimSpace(*ref.RelationshipToSubject)
	}
	return AnonymousLabel
}

// initialsLabel derives initials from up to the first two name tokens,
// upper-cased with trailing periods, e.g. "Sarah Mitchell" -> "S.M.".
func initialsLabel(name string) string {
	tokens := strings.Fields(name)
	if len(tokens) == 0 {
		return AnonymousLabel
	}
	if len(tokens) > 2 {
		tokens = tokens[:2]
	}
	var b strings.Builder
	for _, token := range tokens {
		first := []rune(token)[0]
		b.WriteRune(unicode.ToUpper(first))
		b.WriteRune('.')
	}
	return b.String()
}

// maskNamesFor collects every literal string that could name the person in
// prose: canonical name, known aliases and the reference display name.
func maskNamesFor(ref models.EventReference) []string {
	seen := make(map[string]struct{})
	names := make([]string, 0, 4)
	add := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		names = append(names, name)
	}
	if ref.Person != nil {
		add(ref.Person.CanonicalName)
		for _, alias := range ref.Person.Aliases {
			add(alias.Name)
		}
	}
	if ref.DisplayName != nil {
		add(*ref.DisplayName)
	}
	return names
}
