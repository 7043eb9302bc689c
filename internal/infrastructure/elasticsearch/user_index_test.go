package elasticsearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yhensel/burgers-api/internal/domain/entity"
)

type recorded struct {
	method, path string
	body         map[string]any
}

func newTestIndex(t *testing.T, status int) (*UserIndex, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.Path}
		_ = json.NewDecoder(r.Body).Decode(&rec.body)
		calls = append(calls, rec)
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)

	client, err := es.NewClient(es.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return NewUserIndex(client, "users"), &calls
}

func TestUserIndex_IndexUser(t *testing.T) {
	idx, calls := newTestIndex(t, http.StatusCreated)
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	err := idx.IndexUser(context.Background(), &entity.User{ID: "u1", Name: "Ann", Email: "ann@x.com", Password: "hash", CreatedAt: ts, UpdatedAt: ts})
	require.NoError(t, err)
	require.Len(t, *calls, 1)

	c := (*calls)[0]
	assert.Equal(t, http.MethodPut, c.method)
	assert.Equal(t, "/users/_doc/u1", c.path)
	assert.Equal(t, "ann@x.com", c.body["email"])
	assert.NotContains(t, c.body, "password")
	assert.NotContains(t, c.body, "password_hash")
}

func TestUserIndex_IndexUserErrorStatus(t *testing.T) {
	idx, _ := newTestIndex(t, http.StatusBadRequest)
	err := idx.IndexUser(context.Background(), &entity.User{ID: "u1"})
	assert.Error(t, err)
}

func TestUserIndex_DeleteUser(t *testing.T) {
	idx, calls := newTestIndex(t, http.StatusOK)
	require.NoError(t, idx.DeleteUser(context.Background(), "u1"))
	assert.Equal(t, http.MethodDelete, (*calls)[0].method)
	assert.Equal(t, "/users/_doc/u1", (*calls)[0].path)

	missing, _ := newTestIndex(t, http.StatusNotFound)
	assert.NoError(t, missing.DeleteUser(context.Background(), "gone"))

	broken, _ := newTestIndex(t, http.StatusInternalServerError)
	assert.Error(t, broken.DeleteUser(context.Background(), "u1"))
}
