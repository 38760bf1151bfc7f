package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aristath/dreamengine/internal/events"
	"github.com/aristath/dreamengine/internal/modules/dreams"
	testingpkg "github.com/aristath/dreamengine/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T) (chi.Router, *dreams.Repository, *events.Bus) {
	t.Helper()
	db, cleanup := testingpkg.NewTestDB(t, "dreams")
	t.Cleanup(cleanup)

	repo := dreams.NewRepository(db.Conn(), zerolog.Nop())
	bus := events.NewBus(zerolog.Nop())
	router := chi.NewRouter()
	NewHandler(repo, bus, zerolog.Nop()).RegisterRoutes(router)
	return router, repo, bus
}

func doJSON(router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleCreate(t *testing.T) {
	router, repo, bus := setupRouter(t)
	_, sub := bus.Subscribe(4)

	rec := doJSON(router, http.MethodPost, "/api/dreams", map[string]string{
		"user_id":     "u1",
		"title":       "Teleportation",
		"description": "Move matter instantly between two points",
		"category":    "physics",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created dreams.Dream
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, dreams.StatusActive, created.Status)

	stored, err := repo.GetByID(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Teleportation", stored.Title)

	select {
	case e := <-sub:
		assert.Equal(t, events.DreamCreated, e.Type)
	case <-time.After(time.Second):
		t.Fatal("no dream created event")
	}
}

func TestHandleCreate_Invalid(t *testing.T) {
	router, _, _ := setupRouter(t)

	rec := doJSON(router, http.MethodPost, "/api/dreams", map[string]string{"user_id": "u1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/dreams", bytes.NewBufferString("{not json"))
	raw := httptest.NewRecorder()
	router.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)
}

func TestHandleGet(t *testing.T) {
	router, repo, _ := setupRouter(t)
	d := &dreams.Dream{UserID: "u1", Title: "Cure aging"}
	require.NoError(t, repo.Create(d))

	rec := doJSON(router, http.MethodGet, "/api/dreams/"+d.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(router, http.MethodGet, "/api/dreams/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleList(t *testing.T) {
	router, repo, _ := setupRouter(t)
	require.NoError(t, repo.Create(&dreams.Dream{UserID: "u1", Title: "A"}))
	require.NoError(t, repo.Create(&dreams.Dream{UserID: "u1", Title: "B"}))
	require.NoError(t, repo.Create(&dreams.Dream{UserID: "u2", Title: "C"}))

	rec := doJSON(router, http.MethodGet, "/api/dreams?user_id=u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Dreams []dreams.Dream `json:"dreams"`
		Count  int            `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)

	rec = doJSON(router, http.MethodGet, "/api/dreams", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleUpdateStatus(t *testing.T) {
	router, repo, _ := setupRouter(t)
	d := &dreams.Dream{UserID: "u1", Title: "Fly"}
	require.NoError(t, repo.Create(d))

	rec := doJSON(router, http.MethodPut, "/api/dreams/"+d.ID+"/status", map[string]string{"status": "paused"})
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := repo.GetByID(d.ID)
	require.NoError(t, err)
	assert.Equal(t, dreams.StatusPaused, stored.Status)

	rec = doJSON(router, http.MethodPut, "/api/dreams/"+d.ID+"/status", map[string]string{"status": "deleted"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(router, http.MethodPut, "/api/dreams/missing/status", map[string]string{"status": "active"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
