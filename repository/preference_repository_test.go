package repository_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Novakiki/kindredbackend/database"
	"github.com/Novakiki/kindredbackend/models"
	"github.com/Novakiki/kindredbackend/repository"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.AutoMigrateModels(db))
	return db
}

func seedPerson(t *testing.T, db *gorm.DB) (*models.Contributor, *models.Person) {
	t.Helper()
	contributor := &models.Contributor{Email: "dana@example.com", DisplayName: "Dana"}
	require.NoError(t, contributor.SetPassword("secret"))
	require.NoError(t, db.Create(contributor).Error)

	person := &models.Person{CanonicalName: "Sarah Mitchell", Visibility: models.VisibilityPending, CreatedByID: contributor.ID}
	require.NoError(t, db.Create(person).Error)
	return contributor, person
}

func TestPreferenceUpsertScoped(t *testing.T) {
	db := setupTestDB(t)
	contributor, person := seedPerson(t, db)
	repo := repository.NewVisibilityPreferenceRepository(db)

	pref := &models.VisibilityPreference{
		PersonID:      person.ID,
		ContributorID: &contributor.ID,
		Visibility:    models.VisibilityApproved,
	}
	require.NoError(t, repo.Upsert(pref))

	// Upserting the same key again replaces the level instead of adding a
	// second row.
	again := &models.VisibilityPreference{
		PersonID:      person.ID,
		ContributorID: &contributor.ID,
		Visibility:    models.VisibilityBlurred,
	}
	require.NoError(t, repo.Upsert(again))

	rows, err := repo.ListByPersonID(person.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.VisibilityBlurred, rows[0].Visibility)
}

func TestPreferenceUpsertGlobal(t *testing.T) {
	db := setupTestDB(t)
	_, person := seedPerson(t, db)
	repo := repository.NewVisibilityPreferenceRepository(db)

	require.NoError(t, repo.Upsert(&models.VisibilityPreference{
		PersonID: person.ID, Visibility: models.VisibilityAnonymized,
	}))
	require.NoError(t, repo.Upsert(&models.VisibilityPreference{
		PersonID: person.ID, Visibility: models.VisibilityRemoved,
	}))

	// SQLite treats NULLs as distinct in unique indexes, so the global slot
	// has its own find-then-write path; it must still end up as one row.
	global, err := repo.GetGlobal(person.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VisibilityRemoved, global.Visibility)

	rows, err := repo.ListByPersonID(person.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestPreferenceGlobalAndScopedCoexist(t *testing.T) {
	db := setupTestDB(t)
	contributor, person := seedPerson(t, db)
	repo := repository.NewVisibilityPreferenceRepository(db)

	require.NoError(t, repo.Upsert(&models.VisibilityPreference{
		PersonID: person.ID, Visibility: models.VisibilityAnonymized,
	}))
	require.NoError(t, repo.Upsert(&models.VisibilityPreference{
		PersonID: person.ID, ContributorID: &contributor.ID, Visibility: models.VisibilityApproved,
	}))

	rows, err := repo.ListByPersonID(person.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	global, err := repo.GetGlobal(person.ID)
	require.NoError(t, err)
	assert.Nil(t, global.ContributorID)
	assert.Equal(t, models.VisibilityAnonymized, global.Visibility)
}
