package visibility_test

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
	"github.com/Novakiki/kindredbackend/visibility"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// Each sql connection gets its own in-memory database, so the pool must
	// be pinned to a single connection.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.AutoMigrateModels(db))
	return db
}

// seedNote creates an author, a person with an alias, and one note mentioning
// the person.
func seedNote(t *testing.T, db *gorm.DB) (*models.Contributor, *models.Person, *models.Note) {
	t.Helper()

	author := &models.Contributor{Email: "dana@example.com", DisplayName: "Dana"}
	require.NoError(t, author.SetPassword("secret"))
	require.NoError(t, db.Create(author).Error)

	person := &models.Person{CanonicalName: "Sarah Mitchell", Visibility: models.VisibilityPending, CreatedByID: author.ID}
	require.NoError(t, db.Create(person).Error)
	require.NoError(t, db.Create(&models.PersonAlias{PersonID: person.ID, Name: "Sally"}).Error)

	relationship := "her cousin"
	note := &models.Note{
		Title:    "The lake house summer",
		Content:  "Sarah Mitchell taught us all to swim.",
		AuthorID: author.ID,
		References: []models.EventReference{{
			Type:                  models.ReferenceTypePerson,
			PersonID:              &person.ID,
			Role:                  models.RoleWitness,
			RelationshipToSubject: &relationship,
			AddedByID:             author.ID,
		}},
	}
	require.NoError(t, db.Create(note).Error)

	loaded, err := repository.NewNoteRepository(db).GetByID(note.ID)
	require.NoError(t, err)
	*note = *loaded
	return author, person, note
}

func TestApplyChoiceThisNote(t *testing.T) {
	db := setupTestDB(t)
	author, person, note := seedNote(t, db)
	svc := visibility.NewService(db)

	err := svc.ApplyChoice(visibility.Choice{
		PersonID:    person.ID,
		ReferenceID: note.References[0].ID,
		AuthorID:    author.ID,
		Scope:       visibility.ScopeThisNote,
		Level:       visibility.LevelBlurred,
	})
	require.NoError(t, err)

	var ref models.EventReference
	require.NoError(t, db.First(&ref, note.References[0].ID).Error)
	require.NotNil(t, ref.Visibility)
	assert.Equal(t, "blurred", *ref.Visibility)

	// No preference rows and no base change: the choice stays on this note.
	var prefCount int64
	require.NoError(t, db.Model(&models.VisibilityPreference{}).Count(&prefCount).Error)
	assert.Equal(t, int64(0), prefCount)

	var reloaded models.Person
	require.NoError(t, db.First(&reloaded, person.ID).Error)
	assert.Equal(t, models.VisibilityPending, reloaded.Visibility)
}

func TestApplyChoiceByAuthor(t *testing.T) {
	db := setupTestDB(t)
	author, person, note := seedNote(t, db)
	svc := visibility.NewService(db)

	err := svc.ApplyChoice(visibility.Choice{
		PersonID:    person.ID,
		ReferenceID: note.References[0].ID,
		AuthorID:    author.ID,
		Scope:       visibility.ScopeByAuthor,
		Level:       visibility.LevelApproved,
	})
	require.NoError(t, err)

	var pref models.VisibilityPreference
	require.NoError(t, db.Where("person_id = ? AND contributor_id = ?", person.ID, author.ID).First(&pref).Error)
	assert.Equal(t, "approved", pref.Visibility)

	// The current reference override is synced too, so the note the person
	// is looking at reflects the choice immediately.
	var ref models.EventReference
	require.NoError(t, db.First(&ref, note.References[0].ID).Error)
	require.NotNil(t, ref.Visibility)
	assert.Equal(t, "approved", *ref.Visibility)
}

func TestApplyChoiceAllNotes(t *testing.T) {
	db := setupTestDB(t)
	author, person, note := seedNote(t, db)
	svc := visibility.NewService(db)

	err := svc.ApplyChoice(visibility.Choice{
		PersonID:    person.ID,
		ReferenceID: note.References[0].ID,
		AuthorID:    author.ID,
		Scope:       visibility.ScopeAllNotes,
		Level:       visibility.LevelAnonymized,
	})
	require.NoError(t, err)

	var global models.VisibilityPreference
	require.NoError(t, db.Where("person_id = ? AND contributor_id IS NULL", person.ID).First(&global).Error)
	assert.Equal(t, "anonymized", global.Visibility)

	var reloaded models.Person
	require.NoError(t, db.First(&reloaded, person.ID).Error)
	assert.Equal(t, "anonymized", reloaded.Visibility)
}

func TestApplyChoiceFailsClosed(t *testing.T) {
	db := setupTestDB(t)
	author, person, note := seedNote(t, db)
	svc := visibility.NewService(db)

	t.Run("unknown_person_writes_nothing", func(t *testing.T) {
		err := svc.ApplyChoice(visibility.Choice{
			PersonID:    9999,
			ReferenceID: note.References[0].ID,
			AuthorID:    author.ID,
			Scope:       visibility.ScopeAllNotes,
			Level:       visibility.LevelApproved,
		})
		assert.ErrorIs(t, err, visibility.ErrNotFound)

		var prefCount int64
		require.NoError(t, db.Model(&models.VisibilityPreference{}).Count(&prefCount).Error)
		assert.Equal(t, int64(0), prefCount)
	})

	t.Run("unknown_reference_rolls_back_the_preference", func(t *testing.T) {
		err := svc.ApplyChoice(visibility.Choice{
			PersonID:    person.ID,
			ReferenceID: 9999,
			AuthorID:    author.ID,
			Scope:       visibility.ScopeAllNotes,
			Level:       visibility.LevelApproved,
		})
		assert.ErrorIs(t, err, visibility.ErrNotFound)

		// The multi-row write is atomic: the failed override write unwinds
		// the preference and the base cache refresh with it.
		var prefCount int64
		require.NoError(t, db.Model(&models.VisibilityPreference{}).Count(&prefCount).Error)
		assert.Equal(t, int64(0), prefCount)

		var reloaded models.Person
		require.NoError(t, db.First(&reloaded, person.ID).Error)
		assert.Equal(t, models.VisibilityPending, reloaded.Visibility)
	})

	t.Run("invalid_level_is_rejected", func(t *testing.T) {
		err := svc.ApplyChoice(visibility.Choice{
			PersonID:    person.ID,
			ReferenceID: note.References[0].ID,
			AuthorID:    author.ID,
			Scope:       visibility.ScopeThisNote,
			Level:       visibility.Level("sparkly"),
		})
		assert.ErrorIs(t, err, visibility.ErrInvalidVisibility)
	})
}

func TestApplyChoiceIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	author, person, note := seedNote(t, db)
	svc := visibility.NewService(db)

	choice := visibility.Choice{
		PersonID:    person.ID,
		ReferenceID: note.References[0].ID,
		AuthorID:    author.ID,
		Scope:       visibility.ScopeAllNotes,
		Level:       visibility.LevelBlurred,
	}
	require.NoError(t, svc.ApplyChoice(choice))
	require.NoError(t, svc.ApplyChoice(choice))

	var prefCount int64
	require.NoError(t, db.Model(&models.VisibilityPreference{}).
		Where("person_id = ? AND contributor_id IS NULL", person.ID).Count(&prefCount).Error)
	assert.Equal(t, int64(1), prefCount)
}

func TestResolveReferencesEndToEnd(t *testing.T) {
	db := setupTestDB(t)
	author, person, note := seedNote(t, db)
	svc := visibility.NewService(db)

	// Before any choice the person resolves to pending from their base.
	resolved, err := svc.ResolveReferences(note)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, visibility.LevelPending, resolved[0].Resolution.Level)
	assert.Equal(t, visibility.SourceBaseVisibility, resolved[0].Resolution.Source)

	// An author-scoped grant escalates resolution on this author's note.
	require.NoError(t, svc.ApplyChoice(visibility.Choice{
		PersonID:    person.ID,
		ReferenceID: note.References[0].ID,
		AuthorID:    author.ID,
		Scope:       visibility.ScopeByAuthor,
		Level:       visibility.LevelApproved,
	}))

	reloaded, err := repository.NewNoteRepository(db).GetByID(note.ID)
	require.NoError(t, err)
	resolved, err = svc.ResolveReferences(reloaded)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, visibility.LevelApproved, resolved[0].Resolution.Level)
	// The synced override now sits above the preference in precedence.
	assert.Equal(t, visibility.SourceReferenceOverride, resolved[0].Resolution.Source)

	projected := visibility.Project(resolved, visibility.ProjectOptions{})
	require.Len(t, projected, 1)
	assert.Equal(t, "Sarah Mitchell", projected[0].RenderLabel)
	assert.Equal(t, note.Content, visibility.MaskContent(note.Content, projected))
}

func TestSetGlobalPreference(t *testing.T) {
	db := setupTestDB(t)
	_, person, _ := seedNote(t, db)
	svc := visibility.NewService(db)

	require.NoError(t, svc.SetGlobalPreference(person.ID, visibility.LevelBlurred))
	require.NoError(t, svc.SetGlobalPreference(person.ID, visibility.LevelRemoved))

	var prefCount int64
	require.NoError(t, db.Model(&models.VisibilityPreference{}).
		Where("person_id = ? AND contributor_id IS NULL", person.ID).Count(&prefCount).Error)
	assert.Equal(t, int64(1), prefCount)

	var reloaded models.Person
	require.NoError(t, db.First(&reloaded, person.ID).Error)
	assert.Equal(t, models.VisibilityRemoved, reloaded.Visibility)

	assert.ErrorIs(t, svc.SetGlobalPreference(9999, visibility.LevelApproved), visibility.ErrNotFound)
}
