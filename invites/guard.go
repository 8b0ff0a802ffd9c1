package invites

import (
	"errors"
	"fmt"

	"github.com/Novakiki/kindredbackend/models"
)

// ErrPropagationLimitExceeded indicates an invite chain would exceed the
// configured depth or use ceiling. The guard must be consulted before any
// Invite row is persisted, never after.
var ErrPropagationLimitExceeded = errors.New("invites: propagation limit exceeded")

// Limits bounds how far an invitation chain may fan out from an original
// note. Invites are voluntary referrals ("you were mentioned — invite the
// person who told you this story"); without a bound the chain could recurse
// indefinitely and disclose the note to an unbounded audience.
type Limits struct {
	// MaxDepth is the number of chain levels allowed; a root sits at depth 0
	// and children at parent.depth + 1, so MaxDepth 3 permits depths 0-2.
	MaxDepth int
	// MaxUses caps how many child invites any single invite may spawn, and
	// is inherited from the root down the chain.
	MaxUses int
}

// ChainContext is the graph position a new invite will occupy if persisted.
type ChainContext struct {
	ParentInviteID *uint
	Depth          int
	MaxUses        int
}

// Child validates extending the chain from the given parent (nil for a new
// root) and returns the context the child invite must be created with, or
// ErrPropagationLimitExceeded if the chain would violate the bounds.
func (l Limits) Child(parent *models.Invite) (ChainContext, error) {
	if parent == nil {
		return ChainContext{Depth: 0, MaxUses: l.MaxUses}, nil
	}

	depth := parent.Depth + 1
	if depth >= l.MaxDepth {
		return ChainContext{}, fmt.Errorf("%w: depth %d reaches the maximum of %d",
			ErrPropagationLimitExceeded, depth, l.MaxDepth)
	}

	maxUses := parent.MaxUses
	if maxUses <= 0 || maxUses > l.MaxUses {
		maxUses = l.MaxUses
	}
	if parent.Uses >= maxUses {
		return ChainContext{}, fmt.Errorf("%w: invite %d already spent its %d uses",
			ErrPropagationLimitExceeded, parent.ID, maxUses)
	}

	parentID := parent.ID
	return ChainContext{ParentInviteID: &parentID, Depth: depth, MaxUses: maxUses}, nil
}
