package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminMiddleware(t *testing.T) {
	secret := "test-secret"
	var seenSubject string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenSubject = Subject(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	h := AdminMiddleware(secret)(next)

	call := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/TRX-1/resend", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	t.Run("MissingHeader", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, call("").Code)
	})

	t.Run("WrongScheme", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, call("Basic abc").Code)
	})

	t.Run("BadSignature", func(t *testing.T) {
		token, err := GenerateJWT([]byte("other"), "ops", RoleAdmin, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, call("Bearer "+token).Code)
	})

	t.Run("Expired", func(t *testing.T) {
		token, err := GenerateJWT([]byte(secret), "ops", RoleAdmin, -time.Minute)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, call("Bearer "+token).Code)
	})

	t.Run("WrongRole", func(t *testing.T) {
		token, err := GenerateJWT([]byte(secret), "merchant-1", "merchant", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, call("Bearer "+token).Code)
	})

	t.Run("Admin", func(t *testing.T) {
		token, err := GenerateJWT([]byte(secret), "ops", RoleAdmin, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, call("Bearer "+token).Code)
		assert.Equal(t, "ops", seenSubject)
	})
}

func TestGenerateJWT_EmptySecret(t *testing.T) {
	_, err := GenerateJWT(nil, "ops", RoleAdmin, time.Minute)
	assert.Error(t, err)
}
