package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/prato-delivery/internal/domain/auth"
)

var testPepper = []byte("test-pepper")

type stubKeys struct {
	byHash map[string]*auth.APIKeyInfo
}

func (s *stubKeys) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	if info, ok := s.byHash[hash]; ok {
		return info, nil
	}
	return nil, errors.New("key not found")
}

func hashKey(key string) string {
	mac := hmac.New(sha256.New, testPepper)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

func authServer(keys *stubKeys) (http.Handler, *auth.Actor) {
	var seen auth.Actor
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a, ok := auth.ActorFromContext(r.Context()); ok {
			seen = a
		}
		w.WriteHeader(http.StatusOK)
	})
	return APIKeyAuth(keys, testPepper)(inner), &seen
}

func TestAPIKeyAuth_ValidKeyResolvesActor(t *testing.T) {
	keys := &stubKeys{byHash: map[string]*auth.APIKeyInfo{
		hashKey("secret-1"): {
			ID:      "k1",
			KeyHash: hashKey("secret-1"),
			Name:    "Carlos",
			Phone:   "11999999999",
			Role:    auth.RoleCustomer,
		},
	}}
	h, seen := authServer(keys)

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set(apiKeyHeader, "secret-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Carlos", seen.Name)
	assert.Equal(t, auth.RoleCustomer, seen.Role)
}

func TestAPIKeyAuth_QueryParamFallback(t *testing.T) {
	keys := &stubKeys{byHash: map[string]*auth.APIKeyInfo{
		hashKey("secret-1"): {ID: "k1", KeyHash: hashKey("secret-1"), Name: "Carlos", Role: auth.RoleCustomer},
	}}
	h, seen := authServer(keys)

	req := httptest.NewRequest(http.MethodGet, "/ws?api_key=secret-1", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Carlos", seen.Name)
}

func TestAPIKeyAuth_MissingKey(t *testing.T) {
	h, _ := authServer(&stubKeys{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPIKeyAuth_UnknownKey(t *testing.T) {
	h, _ := authServer(&stubKeys{})

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set(apiKeyHeader, "wrong")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPIKeyAuth_StaleStoredHashRejected(t *testing.T) {
	// Repository returns a row whose stored hash does not match the computed
	// one; the constant-time comparison must reject it.
	keys := &stubKeys{byHash: map[string]*auth.APIKeyInfo{
		hashKey("secret-1"): {ID: "k1", KeyHash: hashKey("other"), Name: "Carlos", Role: auth.RoleCustomer},
	}}
	h, _ := authServer(keys)

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set(apiKeyHeader, "secret-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
