package repository_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Novakiki/kindredbackend/models"
	"github.com/Novakiki/kindredbackend/repository"
)

func seedParentInvite(t *testing.T, repo repository.InviteRepositoryInterface, uses, maxUses int) *models.Invite {
	t.Helper()
	parent := &models.Invite{
		RecipientName:    "Maria Santos",
		RecipientContact: "maria@example.com",
		Channel:          "email",
		Status:           models.InviteStatusPending,
		Depth:            0,
		Uses:             uses,
		MaxUses:          maxUses,
		CreatedByID:      1,
	}
	require.NoError(t, repo.Create(parent))
	return parent
}

func childOf(parent *models.Invite) *models.Invite {
	parentID := parent.ID
	return &models.Invite{
		RecipientName:    "Peter Okafor",
		RecipientContact: "+15550100",
		Channel:          "sms",
		Status:           models.InviteStatusPending,
		ParentInviteID:   &parentID,
		Depth:            parent.Depth + 1,
		MaxUses:          parent.MaxUses,
		CreatedByID:      2,
	}
}

func TestCreateChildSpendsParentUse(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewGormInviteRepository(db)
	parent := seedParentInvite(t, repo, 0, 2)

	child := childOf(parent)
	require.NoError(t, repo.CreateChild(child, parent.ID, parent.MaxUses))
	assert.NotZero(t, child.ID)

	reloaded, err := repo.GetByID(parent.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.Uses)
}

func TestCreateChildRejectsSpentParent(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewGormInviteRepository(db)
	parent := seedParentInvite(t, repo, 2, 2)

	// The guarded update claims a use only while one is left; a parent spent
	// by the time of the write gets no child row, regardless of what an
	// earlier read of the parent said.
	err := repo.CreateChild(childOf(parent), parent.ID, parent.MaxUses)
	assert.ErrorIs(t, err, repository.ErrParentInviteSpent)

	children, err := repo.ListChildren(parent.ID)
	require.NoError(t, err)
	assert.Empty(t, children)

	reloaded, err := repo.GetByID(parent.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.Uses)
}
