package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Novakiki/kindredbackend/database"
	"github.com/Novakiki/kindredbackend/handlers"
	"github.com/Novakiki/kindredbackend/models"
	"github.com/Novakiki/kindredbackend/repository"
	"github.com/Novakiki/kindredbackend/visibility"
)

type noteFixture struct {
	db     *gorm.DB
	router chi.Router
	author *models.Contributor
	other  *models.Contributor
	person *models.Person
}

// setupNoteFixture seeds a person who has opted out entirely, so any surface
// echoing raw rows would leak a name that must stay hidden.
func setupNoteFixture(t *testing.T) *noteFixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.AutoMigrateModels(db))

	author := &models.Contributor{Email: "dana@example.com", DisplayName: "Dana"}
	require.NoError(t, author.SetPassword("secret"))
	require.NoError(t, db.Create(author).Error)

	other := &models.Contributor{Email: "sam@example.com", DisplayName: "Sam"}
	require.NoError(t, other.SetPassword("secret"))
	require.NoError(t, db.Create(other).Error)

	person := &models.Person{CanonicalName: "Robert Grant", Visibility: models.VisibilityRemoved, CreatedByID: author.ID}
	require.NoError(t, db.Create(person).Error)
	require.NoError(t, db.Create(&models.PersonAlias{PersonID: person.ID, Name: "Bobby"}).Error)

	personRepo := repository.NewPersonRepository(db)
	noteRepo := repository.NewNoteRepository(db)
	visibilitySvc := visibility.NewService(db)
	noteHandler := &handlers.NoteHandler{NoteRepo: noteRepo, VisibilitySvc: visibilitySvc}
	referenceHandler := &handlers.ReferenceHandler{
		NoteRepo:      noteRepo,
		ReferenceRepo: repository.NewReferenceRepository(db),
		VisibilitySvc: visibilitySvc,
	}
	personHandler := &handlers.PersonHandler{PersonRepo: personRepo, VisibilitySvc: visibilitySvc}

	r := chi.NewRouter()
	r.Post("/notes", noteHandler.CreateNote)
	r.Post("/notes/{note_id}/references", referenceHandler.AddReference)
	r.Put("/people/{person_id}/visibility", personHandler.SetVisibility)

	return &noteFixture{db: db, router: r, author: author, other: other, person: person}
}

func jsonUint(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func (fx *noteFixture) serve(t *testing.T, contributor *models.Contributor, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contributor != nil {
		req = req.WithContext(context.WithValue(req.Context(), handlers.UserContextKey, contributor))
	}
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)
	return rec
}

func TestCreateNoteResponseIsProjected(t *testing.T) {
	fx := setupNoteFixture(t)

	relationship := "a neighbor"
	payload, err := json.Marshal(handlers.CreateNotePayload{
		Title:   "The card game",
		Content: "Robert Grant taught us the rules that winter.",
		References: []handlers.ReferenceInput{{
			Type:                  models.ReferenceTypePerson,
			PersonID:              &fx.person.ID,
			Role:                  models.RoleWitness,
			RelationshipToSubject: &relationship,
		}},
	})
	require.NoError(t, err)

	rec := fx.serve(t, fx.author, "POST", "/notes", string(payload))
	require.Equal(t, http.StatusCreated, rec.Code)

	// The creation echo is projected like any other read: no canonical name,
	// no alias, no stored reference row in the body.
	body := rec.Body.String()
	assert.NotContains(t, body, "Robert Grant")
	assert.NotContains(t, body, "Bobby")
	assert.NotContains(t, body, "canonical_name")

	var resp handlers.NoteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "The card game", resp.Title)
	require.Len(t, resp.References, 1)
	assert.Equal(t, visibility.LevelRemoved, resp.References[0].IdentityState)
}

func TestAddReferenceResponseIsProjected(t *testing.T) {
	fx := setupNoteFixture(t)

	note := &models.Note{Title: "The card game", Content: "We played all winter.", AuthorID: fx.author.ID}
	require.NoError(t, fx.db.Create(note).Error)

	rec := fx.serve(t, fx.author, "POST", "/notes/"+jsonUint(note.ID)+"/references",
		`{"type": "person", "person_id": `+jsonUint(fx.person.ID)+`, "role": "witness"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	body := rec.Body.String()
	assert.NotContains(t, body, "Robert Grant")
	assert.NotContains(t, body, "Bobby")

	var projected visibility.ProjectedReference
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &projected))
	assert.NotZero(t, projected.ReferenceID)
	assert.Equal(t, visibility.LevelRemoved, projected.IdentityState)
}

func TestSetVisibilityRequiresCreator(t *testing.T) {
	fx := setupNoteFixture(t)
	target := "/people/" + jsonUint(fx.person.ID) + "/visibility"

	// A contributor who did not record the person cannot rewrite their
	// disclosure choice.
	rec := fx.serve(t, fx.other, "PUT", target, `{"visibility": "approved"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	var prefCount int64
	require.NoError(t, fx.db.Model(&models.VisibilityPreference{}).Count(&prefCount).Error)
	assert.Equal(t, int64(0), prefCount)

	rec = fx.serve(t, fx.author, "PUT", target, `{"visibility": "blurred"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var global models.VisibilityPreference
	require.NoError(t, fx.db.Where("person_id = ? AND contributor_id IS NULL", fx.person.ID).First(&global).Error)
	assert.Equal(t, models.VisibilityBlurred, global.Visibility)
}
