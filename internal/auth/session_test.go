package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret")

func TestSessionValid(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name string
		s    *Session
		want bool
	}{
		{"nil", nil, false},
		{"no user", &Session{Token: "t"}, false},
		{"no token", &Session{UserID: "u1"}, false},
		{"no expiry", &Session{UserID: "u1", Token: "t"}, true},
		{"future expiry", &Session{UserID: "u1", Token: "t", ExpiresAt: now.Add(time.Minute)}, true},
		{"expired", &Session{UserID: "u1", Token: "t", ExpiresAt: now.Add(-time.Second)}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.s.Valid(now))
		})
	}
}

func TestIssueAndFromToken(t *testing.T) {
	tok, err := Issue(secret, "u-42", RoleAdmin, time.Hour)
	require.NoError(t, err)

	s, err := FromToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "u-42", s.UserID)
	assert.True(t, s.IsAdmin())
	assert.True(t, s.Valid(time.Now()))
	assert.False(t, s.Valid(time.Now().Add(2*time.Hour)))

	claims, err := Verify(secret, tok)
	require.NoError(t, err)
	assert.Equal(t, "u-42", claims.Subject)

	_, err = Verify([]byte("other"), tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = FromToken("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware(secret))
	r.GET("/me", func(c *gin.Context) { c.String(http.StatusOK, ClaimsFrom(c).Subject) })
	r.GET("/admin", RequireRole(RoleAdmin), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	customer, _ := Issue(secret, "u1", RoleCustomer, time.Hour)
	admin, _ := Issue(secret, "op", RoleAdmin, time.Hour)

	do := func(path, token string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusUnauthorized, do("/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do("/me", "garbage").Code)

	w := do("/me", customer)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", w.Body.String())

	assert.Equal(t, http.StatusForbidden, do("/admin", customer).Code)
	assert.Equal(t, http.StatusNoContent, do("/admin", admin).Code)
}
