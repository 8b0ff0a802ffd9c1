package invites_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Novakiki/kindredbackend/invites"
	"github.com/Novakiki/kindredbackend/models"
	"github.com/Novakiki/kindredbackend/repository"
)

// fakeInviteRepo is an in-memory InviteRepositoryInterface that records how
// many rows were created.
type fakeInviteRepo struct {
	rows    map[uint]*models.Invite
	nextID  uint
	creates int
}

func newFakeInviteRepo() *fakeInviteRepo {
	return &fakeInviteRepo{rows: map[uint]*models.Invite{}, nextID: 1}
}

func (f *fakeInviteRepo) Create(invite *models.Invite) error {
	invite.ID = f.nextID
	f.nextID++
	f.creates++
	if invite.Status == "" {
		invite.Status = models.InviteStatusPending
	}
	stored := *invite
	f.rows[invite.ID] = &stored
	return nil
}

func (f *fakeInviteRepo) GetByID(id uint) (*models.Invite, error) {
	invite, ok := f.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *invite
	return &copied, nil
}

func (f *fakeInviteRepo) GetByCode(code string) (*models.Invite, error) {
	for _, invite := range f.rows {
		if invite.Code == code {
			copied := *invite
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeInviteRepo) ListChildren(parentInviteID uint) ([]models.Invite, error) {
	children := []models.Invite{}
	for _, invite := range f.rows {
		if invite.ParentInviteID != nil && *invite.ParentInviteID == parentInviteID {
			children = append(children, *invite)
		}
	}
	return children, nil
}

func (f *fakeInviteRepo) ListAll() ([]models.Invite, error) {
	all := []models.Invite{}
	for _, invite := range f.rows {
		all = append(all, *invite)
	}
	return all, nil
}

func (f *fakeInviteRepo) UpdateStatus(id uint, status string) error {
	invite, ok := f.rows[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	invite.Status = status
	return nil
}

func (f *fakeInviteRepo) CreateChild(invite *models.Invite, parentID uint, maxUses int) error {
	parent, ok := f.rows[parentID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if parent.Uses >= maxUses {
		return repository.ErrParentInviteSpent
	}
	parent.Uses++
	return f.Create(invite)
}

func TestServiceCreateRoot(t *testing.T) {
	repo := newFakeInviteRepo()
	svc := invites.NewService(invites.Limits{MaxDepth: 3, MaxUses: 5}, repo)

	invite, err := svc.Create(invites.CreateInput{
		RecipientName:    "Maria Santos",
		RecipientContact: "maria@example.com",
		Channel:          "email",
		CreatedByID:      1,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, invite.Depth)
	assert.Equal(t, 5, invite.MaxUses)
	assert.Nil(t, invite.ParentInviteID)
	assert.Equal(t, models.InviteStatusPending, invite.Status)
	require.NotNil(t, invite.ExpiresAt)
	assert.True(t, invite.ExpiresAt.After(time.Now()))
}

func TestServiceCreateChild(t *testing.T) {
	repo := newFakeInviteRepo()
	svc := invites.NewService(invites.Limits{MaxDepth: 3, MaxUses: 5}, repo)

	root, err := svc.Create(invites.CreateInput{
		RecipientName:    "Maria Santos",
		RecipientContact: "maria@example.com",
		CreatedByID:      1,
	})
	require.NoError(t, err)

	child, err := svc.Create(invites.CreateInput{
		RecipientName:    "Peter Okafor",
		RecipientContact: "+15550100",
		Channel:          "sms",
		ParentInviteID:   &root.ID,
		CreatedByID:      2,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, child.Depth)
	require.NotNil(t, child.ParentInviteID)
	assert.Equal(t, root.ID, *child.ParentInviteID)

	// Creating the child spends one parent use.
	reloaded, err := repo.GetByID(root.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.Uses)
}

// staleReadRepo under-reports the parent's use count on reads, the way a
// concurrent creation can make the guard's earlier read stale by write time.
type staleReadRepo struct {
	*fakeInviteRepo
}

func (s *staleReadRepo) GetByID(id uint) (*models.Invite, error) {
	invite, err := s.fakeInviteRepo.GetByID(id)
	if err == nil && invite.Uses > 0 {
		invite.Uses--
	}
	return invite, err
}

func TestServiceCreateChildSpentAtWriteTime(t *testing.T) {
	inner := newFakeInviteRepo()
	svc := invites.NewService(invites.Limits{MaxDepth: 3, MaxUses: 2}, &staleReadRepo{inner})

	root, err := svc.Create(invites.CreateInput{
		RecipientName:    "Maria Santos",
		RecipientContact: "maria@example.com",
		CreatedByID:      1,
	})
	require.NoError(t, err)
	inner.rows[root.ID].Uses = 2
	createsBefore := inner.creates

	_, err = svc.Create(invites.CreateInput{
		RecipientName:    "Peter Okafor",
		RecipientContact: "peter@example.com",
		ParentInviteID:   &root.ID,
		CreatedByID:      2,
	})
	assert.ErrorIs(t, err, invites.ErrPropagationLimitExceeded)
	assert.Equal(t, createsBefore, inner.creates)
	assert.Equal(t, 2, inner.rows[root.ID].Uses)
}

func TestServiceCreateRejectedPersistsNothing(t *testing.T) {
	repo := newFakeInviteRepo()
	svc := invites.NewService(invites.Limits{MaxDepth: 1, MaxUses: 5}, repo)

	root, err := svc.Create(invites.CreateInput{
		RecipientName:    "Maria Santos",
		RecipientContact: "maria@example.com",
		CreatedByID:      1,
	})
	require.NoError(t, err)
	createsBefore := repo.creates

	_, err = svc.Create(invites.CreateInput{
		RecipientName:    "Peter Okafor",
		RecipientContact: "peter@example.com",
		ParentInviteID:   &root.ID,
		CreatedByID:      2,
	})
	assert.ErrorIs(t, err, invites.ErrPropagationLimitExceeded)
	assert.Equal(t, createsBefore, repo.creates)

	reloaded, err := repo.GetByID(root.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, reloaded.Uses)
}

func TestServiceLifecycle(t *testing.T) {
	repo := newFakeInviteRepo()
	svc := invites.NewService(invites.Limits{MaxDepth: 3, MaxUses: 5}, repo)

	invite, err := svc.Create(invites.CreateInput{
		RecipientName:    "Maria Santos",
		RecipientContact: "maria@example.com",
		CreatedByID:      1,
	})
	require.NoError(t, err)
	repo.rows[invite.ID].Code = "test-code"

	opened, err := svc.MarkOpened("test-code")
	require.NoError(t, err)
	assert.Equal(t, models.InviteStatusOpened, opened.Status)

	require.NoError(t, svc.MarkContributed(invite.ID))

	// Contributed is terminal: a spent invite cannot be opened again.
	_, err = svc.MarkOpened("test-code")
	assert.Error(t, err)
}
