package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fthabet1/Kaizen-sub000/internal/apperr"
)

func TestIssueParseRoundTrip(t *testing.T) {
	tokens := NewTokens("test-secret", time.Hour)

	signed, err := tokens.Issue(42, "kai@example.com")
	require.NoError(t, err)

	claims, err := tokens.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "kai@example.com", claims.Email)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	signed, err := NewTokens("secret-a", time.Hour).Issue(1, "a@example.com")
	require.NoError(t, err)

	_, err = NewTokens("secret-b", time.Hour).Parse(signed)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestParseRejectsTampered(t *testing.T) {
	tokens := NewTokens("test-secret", time.Hour)
	signed, err := tokens.Issue(1, "a@example.com")
	require.NoError(t, err)

	parts := strings.Split(signed, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "X." + parts[2]

	_, err = tokens.Parse(tampered)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestParseRejectsExpired(t *testing.T) {
	tokens := NewTokens("test-secret", -time.Minute)
	signed, err := tokens.Issue(1, "a@example.com")
	require.NoError(t, err)

	_, err = tokens.Parse(signed)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := NewTokens("test-secret", time.Hour).Parse("not-a-token")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("hunter22pass")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22pass", hash)

	assert.NoError(t, CheckPassword(hash, "hunter22pass"))
	assert.ErrorIs(t, CheckPassword(hash, "wrong-password"), apperr.ErrUnauthorized)
}

func TestHashPasswordTooShort(t *testing.T) {
	_, err := HashPassword("short")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestMiddleware(t *testing.T) {
	tokens := NewTokens("test-secret", time.Hour)

	var gotID int64
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, _ = UserID(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	// Refusals route through the injected error writer.
	var refusal error
	writeErr := func(w http.ResponseWriter, r *http.Request, err error) {
		refusal = err
		http.Error(w, err.Error(), apperr.HTTPStatus(err))
	}
	handler := tokens.Middleware(writeErr)(next)

	t.Run("valid bearer token", func(t *testing.T) {
		signed, err := tokens.Issue(42, "a@example.com")
		require.NoError(t, err)

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+signed)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, int64(42), gotID)
	})

	t.Run("missing header", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.ErrorIs(t, refusal, apperr.ErrUnauthorized)
	})

	t.Run("malformed header", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Token abc")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.ErrorIs(t, refusal, apperr.ErrUnauthorized)
	})
}
