package handler

import (
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heirloom/internal/identity/service"
	"heirloom/internal/identity/store/person"
	"heirloom/pkg/testutil"
)

func newRouter() http.Handler {
	svc := service.New(person.NewInMemory())
	h := New(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func TestHandleRegister(t *testing.T) {
	router := newRouter()

	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/persons", map[string]string{"email": " Quinn@Example.com "}))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := testutil.DecodeJSON[PersonResponse](t, rr)
	assert.Equal(t, "quinn@example.com", created.Email)
	assert.Equal(t, "active", created.AccountStatus)

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/persons", map[string]string{"email": "quinn@example.com"}))
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/persons/"+created.ID, nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHandleRegister_Validation(t *testing.T) {
	rr := testutil.DoRequest(newRouter(), testutil.NewJSONRequest(t, http.MethodPost, "/persons", map[string]string{"email": "nope"}))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "validation_error", testutil.ErrorCode(t, rr))
}

func TestHandleGet_BadID(t *testing.T) {
	rr := testutil.DoRequest(newRouter(), testutil.NewJSONRequest(t, http.MethodGet, "/persons/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
