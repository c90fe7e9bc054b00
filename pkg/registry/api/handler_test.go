package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/media-registry/pkg/registry"
	"github.com/tendant/media-registry/pkg/registry/api"
	"github.com/tendant/media-registry/pkg/registry/repo/memory"
)

func newTestRouter(t *testing.T, opts ...api.HandlerOption) http.Handler {
	t.Helper()
	reg, err := registry.New(
		registry.WithStore(memory.New()),
		registry.WithMasterAuthority("root"),
		registry.WithClock(registry.NewManualClock(42)),
	)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Mount("/api/v1", api.NewRegistryHandler(reg, opts...).Routes())
	return r
}

func doJSON(t *testing.T, h http.Handler, method, path, principal string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	if principal != "" {
		req.Header.Set(api.PrincipalHeader, principal)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func validBody() api.ContentRequest {
	return api.ContentRequest{
		Title:       "Launch video",
		SizeBytes:   5000,
		Description: "Product launch recording",
		Tags:        []string{"video", "launch"},
	}
}

func registerContent(t *testing.T, h http.Handler, principal string) uint64 {
	t.Helper()
	rr := doJSON(t, h, http.MethodPost, "/api/v1/contents", principal, validBody())
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[api.RegisterResponse](t, rr).ContentID
}

func assertError(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	assert.Equal(t, status, rr.Code, rr.Body.String())
	assert.Equal(t, code, decode[api.ErrorResponse](t, rr).Error.Code)
}

func TestRegisterAndRetrieve(t *testing.T) {
	h := newTestRouter(t)

	id := registerContent(t, h, "alice")
	assert.Equal(t, uint64(1), id)
	assert.Equal(t, uint64(2), registerContent(t, h, "alice"))

	rr := doJSON(t, h, http.MethodGet, "/api/v1/contents/1", "alice", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	record := decode[registry.ContentRecord](t, rr)
	assert.Equal(t, registry.ContentRecord{
		ID:          1,
		Title:       "Launch video",
		Owner:       "alice",
		SizeBytes:   5000,
		CreatedAt:   42,
		Description: "Product launch recording",
		Tags:        []string{"video", "launch"},
	}, record)

	rr = doJSON(t, h, http.MethodGet, "/api/v1/contents/1", "bob", nil)
	assertError(t, rr, http.StatusForbidden, registry.CodeViewingRestricted)

	rr = doJSON(t, h, http.MethodGet, "/api/v1/contents/99", "alice", nil)
	assertError(t, rr, http.StatusNotFound, registry.CodeContentMissing)
}

func TestValidationErrors(t *testing.T) {
	h := newTestRouter(t)

	tests := []struct {
		name   string
		mutate func(*api.ContentRequest)
		code   string
	}{
		{"empty title", func(b *api.ContentRequest) { b.Title = "" }, registry.CodeInvalidMetadata},
		{"zero size", func(b *api.ContentRequest) { b.SizeBytes = 0 }, registry.CodeFileSizeViolation},
		{"no tags", func(b *api.ContentRequest) { b.Tags = nil }, registry.CodeTagValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := validBody()
			tt.mutate(&body)
			rr := doJSON(t, h, http.MethodPost, "/api/v1/contents", "alice", body)
			assertError(t, rr, http.StatusBadRequest, tt.code)
		})
	}

	rr := doJSON(t, h, http.MethodGet, "/api/v1/statistics", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, registry.Statistics{TotalRegistered: 0, MasterAuthority: "root"}, decode[registry.Statistics](t, rr))
}

func TestMalformedRequests(t *testing.T) {
	h := newTestRouter(t)

	rr := doJSON(t, h, http.MethodGet, "/api/v1/contents/abc", "alice", nil)
	assertError(t, rr, http.StatusBadRequest, api.CodeBadRequest)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/contents", bytes.NewReader([]byte("{oops")))
	req.Header.Set(api.PrincipalHeader, "alice")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assertError(t, rec, http.StatusBadRequest, api.CodeBadRequest)

	id := registerContent(t, h, "alice")
	rr = doJSON(t, h, http.MethodPut, "/api/v1/contents/1/permissions/bob", "alice", map[string]any{})
	assertError(t, rr, http.StatusBadRequest, api.CodeBadRequest)
	rr = doJSON(t, h, http.MethodPost, "/api/v1/contents/1/transfer", "alice", api.TransferRequest{NewOwner: " "})
	assertError(t, rr, http.StatusBadRequest, api.CodeBadRequest)
	assert.Equal(t, uint64(1), id)
}

func TestMissingPrincipal(t *testing.T) {
	h := newTestRouter(t)

	rr := doJSON(t, h, http.MethodPost, "/api/v1/contents", "", validBody())
	assertError(t, rr, http.StatusUnauthorized, api.CodeUnauthenticated)

	// read queries need no identity
	rr = doJSON(t, h, http.MethodGet, "/api/v1/statistics", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestOwnershipLifecycle(t *testing.T) {
	h := newTestRouter(t)
	require.Equal(t, uint64(1), registerContent(t, h, "alice"))

	modify := validBody()
	modify.Title = "Launch video (final)"

	rr := doJSON(t, h, http.MethodPut, "/api/v1/contents/1", "bob", modify)
	assertError(t, rr, http.StatusForbidden, registry.CodeOwnershipMismatch)

	rr = doJSON(t, h, http.MethodPut, "/api/v1/contents/1", "alice", modify)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, map[string]bool{"updated": true}, decode[map[string]bool](t, rr))

	rr = doJSON(t, h, http.MethodPost, "/api/v1/contents/1/transfer", "alice", api.TransferRequest{NewOwner: "bob"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = doJSON(t, h, http.MethodGet, "/api/v1/contents/1/owner", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, registry.Principal("bob"), decode[api.OwnerResponse](t, rr).Owner)

	rr = doJSON(t, h, http.MethodPut, "/api/v1/contents/1", "alice", modify)
	assertError(t, rr, http.StatusForbidden, registry.CodeOwnershipMismatch)

	rr = doJSON(t, h, http.MethodGet, "/api/v1/contents/1/permissions/alice", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, registry.PermissionReport{HasExplicitPermission: true, IsOwner: false, CanAccess: true},
		decode[registry.PermissionReport](t, rr))

	rr = doJSON(t, h, http.MethodPut, "/api/v1/contents/1/permissions/carol", "bob", map[string]bool{"allowed": true})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rr = doJSON(t, h, http.MethodGet, "/api/v1/contents/1", "carol", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, h, http.MethodDelete, "/api/v1/contents/1", "alice", nil)
	assertError(t, rr, http.StatusForbidden, registry.CodeOwnershipMismatch)

	rr = doJSON(t, h, http.MethodDelete, "/api/v1/contents/1", "bob", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, map[string]bool{"deleted": true}, decode[map[string]bool](t, rr))

	rr = doJSON(t, h, http.MethodDelete, "/api/v1/contents/1", "bob", nil)
	assertError(t, rr, http.StatusNotFound, registry.CodeContentMissing)

	rr = doJSON(t, h, http.MethodGet, "/api/v1/contents/1/permissions/alice", "", nil)
	assertError(t, rr, http.StatusNotFound, registry.CodeContentMissing)
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}
