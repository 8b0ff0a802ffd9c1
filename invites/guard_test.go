package invites_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Novakiki/kindredbackend/invites"
	"github.com/Novakiki/kindredbackend/models"
)

func TestLimitsChild(t *testing.T) {
	limits := invites.Limits{MaxDepth: 3, MaxUses: 5}

	t.Run("root_invite_starts_at_depth_zero", func(t *testing.T) {
		chain, err := limits.Child(nil)
		require.NoError(t, err)
		assert.Nil(t, chain.ParentInviteID)
		assert.Equal(t, 0, chain.Depth)
		assert.Equal(t, 5, chain.MaxUses)
	})

	t.Run("child_extends_depth_by_one", func(t *testing.T) {
		parent := &models.Invite{ID: 1, Depth: 0, MaxUses: 5, Uses: 0}
		chain, err := limits.Child(parent)
		require.NoError(t, err)
		require.NotNil(t, chain.ParentInviteID)
		assert.Equal(t, uint(1), *chain.ParentInviteID)
		assert.Equal(t, 1, chain.Depth)
	})

	t.Run("depth_limit_rejects_the_chain", func(t *testing.T) {
		parent := &models.Invite{ID: 2, Depth: 2, MaxUses: 5}
		_, err := limits.Child(parent)
		assert.ErrorIs(t, err, invites.ErrPropagationLimitExceeded)
	})

	t.Run("spent_parent_rejects_the_chain", func(t *testing.T) {
		parent := &models.Invite{ID: 3, Depth: 0, MaxUses: 5, Uses: 5}
		_, err := limits.Child(parent)
		assert.ErrorIs(t, err, invites.ErrPropagationLimitExceeded)
	})

	t.Run("children_inherit_the_parent_use_ceiling", func(t *testing.T) {
		parent := &models.Invite{ID: 4, Depth: 0, MaxUses: 2, Uses: 1}
		chain, err := limits.Child(parent)
		require.NoError(t, err)
		assert.Equal(t, 2, chain.MaxUses)
	})

	t.Run("unset_parent_ceiling_falls_back_to_configured", func(t *testing.T) {
		parent := &models.Invite{ID: 5, Depth: 0, MaxUses: 0, Uses: 0}
		chain, err := limits.Child(parent)
		require.NoError(t, err)
		assert.Equal(t, 5, chain.MaxUses)
	})
}

// Walking a chain to the configured depth: each level is admitted until the
// guard refuses the first node past the bound.
func TestLimitsChainWalk(t *testing.T) {
	limits := invites.Limits{MaxDepth: 3, MaxUses: 5}

	chain, err := limits.Child(nil)
	require.NoError(t, err)

	var parent *models.Invite
	admitted := 1
	for id := uint(1); ; id++ {
		parent = &models.Invite{ID: id, Depth: chain.Depth, MaxUses: chain.MaxUses}
		chain, err = limits.Child(parent)
		if err != nil {
			break
		}
		admitted++
	}

	assert.ErrorIs(t, err, invites.ErrPropagationLimitExceeded)
	// Depths 0, 1 and 2 fit under MaxDepth 3.
	assert.Equal(t, 3, admitted)
}
