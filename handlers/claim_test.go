package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
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

type claimFixture struct {
	db     *gorm.DB
	router chi.Router
	note   *models.Note
	person *models.Person
	token  *models.ClaimToken
}

func setupClaimFixture(t *testing.T) *claimFixture {
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

	person := &models.Person{CanonicalName: "Sarah Mitchell", Visibility: models.VisibilityPending, CreatedByID: author.ID}
	require.NoError(t, db.Create(person).Error)

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

	token := &models.ClaimToken{NoteID: note.ID, RecipientName: "Sarah Mitchell"}
	claimTokenRepo := repository.NewGormClaimTokenRepository(db)
	require.NoError(t, claimTokenRepo.Create(token))

	noteRepo := repository.NewNoteRepository(db)
	handler := &handlers.ClaimHandler{
		ClaimTokenRepo: claimTokenRepo,
		NoteRepo:       noteRepo,
		ReferenceRepo:  repository.NewReferenceRepository(db),
		VisibilitySvc:  visibility.NewService(db),
	}

	r := chi.NewRouter()
	r.Route("/claims/{token}", func(r chi.Router) {
		r.Get("/", handler.VerifyClaim)
		r.Post("/respond", handler.RespondClaim)
	})

	return &claimFixture{db: db, router: r, note: note, person: person, token: token}
}

func TestVerifyClaim(t *testing.T) {
	fx := setupClaimFixture(t)

	req := httptest.NewRequest("GET", "/claims/"+fx.token.Token, nil)
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var view handlers.ClaimView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "The lake house summer", view.NoteTitle)
	// The person has decided nothing yet, so their name does not appear in
	// the rendered content.
	assert.NotContains(t, view.NoteContent, "Sarah Mitchell")
	assert.Equal(t, visibility.LevelPending, view.Match.IdentityState)
	assert.Equal(t, visibility.MatchExact, view.MatchKind)
}

func TestVerifyClaimUnknownToken(t *testing.T) {
	fx := setupClaimFixture(t)

	req := httptest.NewRequest("GET", "/claims/not-a-token", nil)
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRespondClaim(t *testing.T) {
	fx := setupClaimFixture(t)

	body := strings.NewReader(`{"visibility": "approved", "scope": "all_notes"}`)
	req := httptest.NewRequest("POST", "/claims/"+fx.token.Token+"/respond", body)
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var person models.Person
	require.NoError(t, fx.db.First(&person, fx.person.ID).Error)
	assert.Equal(t, models.VisibilityApproved, person.Visibility)

	var global models.VisibilityPreference
	require.NoError(t, fx.db.Where("person_id = ? AND contributor_id IS NULL", fx.person.ID).First(&global).Error)
	assert.Equal(t, models.VisibilityApproved, global.Visibility)

	// The token is spent: a second response is refused.
	body = strings.NewReader(`{"visibility": "removed", "scope": "all_notes"}`)
	req = httptest.NewRequest("POST", "/claims/"+fx.token.Token+"/respond", body)
	rec = httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusGone, rec.Code)
}

func TestRespondClaimUnknownScopeDegrades(t *testing.T) {
	fx := setupClaimFixture(t)

	body := strings.NewReader(`{"visibility": "blurred", "scope": "everything_forever"}`)
	req := httptest.NewRequest("POST", "/claims/"+fx.token.Token+"/respond", body)
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "this_note", resp["scope"])

	// Narrow scope: the reference override is set but no preference row and
	// no base change were written.
	var ref models.EventReference
	require.NoError(t, fx.db.Where("note_id = ?", fx.note.ID).First(&ref).Error)
	require.NotNil(t, ref.Visibility)
	assert.Equal(t, "blurred", *ref.Visibility)

	var prefCount int64
	require.NoError(t, fx.db.Model(&models.VisibilityPreference{}).Count(&prefCount).Error)
	assert.Equal(t, int64(0), prefCount)
}
