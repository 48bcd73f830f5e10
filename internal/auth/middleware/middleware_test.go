package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	auth "github.com/mind-engage/mindsprint/internal/auth/middleware"
	"github.com/mind-engage/mindsprint/internal/db/dbtest"
	"github.com/mind-engage/mindsprint/internal/rbac"
	"github.com/mind-engage/mindsprint/internal/users"
)

func TestIssueAndParse(t *testing.T) {
	a := auth.NewAuthService("secret", time.Hour)
	tok, err := a.IssueJWT("u1", "admin")
	require.NoError(t, err)

	c, err := a.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", c.Subject)
	assert.Equal(t, "admin", c.Role)

	_, err = auth.NewAuthService("other", time.Hour).Parse(tok)
	require.Error(t, err)
	_, err = a.Parse("garbage")
	require.Error(t, err)
}

func TestExpiredTokenRejected(t *testing.T) {
	a := auth.NewAuthService("secret", time.Nanosecond)
	tok, err := a.IssueJWT("u1", "student")
	require.NoError(t, err)
	time.Sleep(1100 * time.Millisecond)
	_, err = a.Parse(tok)
	require.Error(t, err)
}

func echoIdentity(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte(auth.SubjectFromContext(r.Context()) + "/" + rbac.RoleFromContext(r.Context())))
}

func TestJWTMiddleware(t *testing.T) {
	a := auth.NewAuthService("secret", time.Hour)
	h := auth.JWTMiddleware(a)(http.HandlerFunc(echoIdentity))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	tok, err := a.IssueJWT("u1", "student")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1/student", rec.Body.String())
}

func TestLoginAndAttachRole(t *testing.T) {
	store := users.NewSQLStore(dbtest.Open(t)).WithHashCost(bcrypt.MinCost)
	u, err := store.Create(context.Background(), users.NewUser{Username: "root", Password: "pw", Role: "admin"})
	require.NoError(t, err)
	a := auth.NewAuthService("secret", time.Hour)
	login := auth.LoginHandler(a, store)

	rec := httptest.NewRecorder()
	login(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"root","password":"no"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	login(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"root","password":"pw"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))

	// the stored role wins over the token's claim
	forged, err := a.IssueJWT(u.ID, "student")
	require.NoError(t, err)
	h := auth.JWTMiddleware(a)(auth.AttachRoleFromStore(store)(http.HandlerFunc(echoIdentity)))
	for tok, want := range map[string]string{out.AccessToken: u.ID + "/admin", forged: u.ID + "/admin"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Body.String())
	}

	ghost, err := a.IssueJWT("ghost", "admin")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+ghost)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
