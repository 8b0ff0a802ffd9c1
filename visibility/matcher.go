package visibility

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/Novakiki/kindredbackend/models"
)

// MatchKind names the ladder rung that produced a match.
type MatchKind string

const (
	MatchHint      MatchKind = "hint"      // explicit person id supplied by the caller
	MatchExact     MatchKind = "exact"     // case-insensitive equality
	MatchPartial   MatchKind = "partial"   // containment either direction
	MatchToken     MatchKind = "token"     // first-name token overlap
	MatchSingleton MatchKind = "singleton" // sole person reference on the note
)

// matchStrategy is one rung of the ladder. Strategies are tried in order and
// the first success wins, so new rungs can be added and tested independently.
type matchStrategy struct {
	kind  MatchKind
	match func(recipient string, candidate string) bool
}

var matchLadder = []matchStrategy{
	{kind: MatchExact, match: matchExact},
	{kind: MatchPartial, match: matchPartial},
	{kind: MatchToken, match: matchToken},
}

// MatchReference resolves a free-text recipient name to the person reference
// it refers to on one note. References must be passed in original result
// order; ties are broken by that order. A non-nil personIDHint (e.g. from a
// claim token) short-circuits to an id equality check before the ladder runs.
//
// Returns ErrNotFound when the note has no person references at all, and
// ErrAmbiguousMatch when references exist but none can be defensibly chosen.
func MatchReference(recipientName string, personIDHint *uint, refs []models.EventReference) (*models.EventReference, MatchKind, error) {
	people := make([]*models.EventReference, 0, len(refs))
	for i := range refs {
		if refs[i].IsPerson() {
			people = append(people, &refs[i])
		}
	}
	if len(people) == 0 {
		return nil, "", ErrNotFound
	}

	if personIDHint != nil {
		for _, ref := range people {
			if ref.PersonID != nil && *ref.PersonID == *personIDHint {
				return ref, MatchHint, nil
			}
		}
	}

	recipient := foldName(recipientName)
	if recipient != "" {
		for _, ref := range people {
			for _, strategy := range matchLadder {
				if strategyMatches(strategy, recipient, ref) {
					return ref, strategy.kind, nil
				}
			}
		}
	}

	// Last-resort singleton fallback: a note mentioning exactly one person
	// leaves no room for choosing the wrong one.
	if len(people) == 1 {
		return people[0], MatchSingleton, nil
	}
	return nil, "", ErrAmbiguousMatch
}

func strategyMatches(strategy matchStrategy, recipient string, ref *models.EventReference) bool {
	candidate := foldName(referenceDisplayName(ref))
	if candidate == "" {
		return false
	}
	return strategy.match(recipient, candidate)
}

// referenceDisplayName picks the name a candidate is known by: the linked
// person's canonical name, then the reference's free-text display name, then
// the contributor who added it.
func referenceDisplayName(ref *models.EventReference) string {
	if ref.Person != nil && strings.TrimSpace(ref.Person.CanonicalName) != "" {
		return ref.Person.CanonicalName
	}
	if ref.DisplayName != nil && strings.TrimSpace(*ref.DisplayName) != "" {
		return *ref.DisplayName
	}
	return ref.AddedBy.DisplayName
}

func matchExact(recipient, candidate string) bool {
	return candidate == recipient
}

func matchPartial(recipient, candidate string) bool {
	return strings.Contains(candidate, recipient) || strings.Contains(recipient, candidate)
}

func matchToken(recipient, candidate string) bool {
	candidateTokens := strings.Fields(candidate)
	for _, token := range strings.Fields(recipient) {
		for _, candidateToken := range candidateTokens {
			if token == candidateToken {
				return true
			}
		}
	}
	return false
}

// foldName normalizes a name for comparison: trimmed and case-folded so that
// matching survives casing differences beyond ASCII.
func foldName(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}
