package handler

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcffuta/elib-api/internal/models"
	appErrors "github.com/rcffuta/elib-api/pkg/errors"
)

type fakeAuthService struct {
	loginErr      error
	loggedOut     []string
	currentUserID string
}

func (f *fakeAuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &models.LoginResponse{AccessToken: "access-" + req.Email, RefreshToken: "refresh", User: models.UserInfo{ID: "u1", Email: req.Email}}, nil
}

func (f *fakeAuthService) RefreshToken(ctx context.Context, req models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	return &models.RefreshTokenResponse{AccessToken: "rotated", RefreshToken: "refresh-2"}, nil
}

func (f *fakeAuthService) Logout(ctx context.Context, refreshToken, userID string) error {
	f.loggedOut = append(f.loggedOut, userID+":"+refreshToken)
	return nil
}

func (f *fakeAuthService) CurrentUser(ctx context.Context, userID string) (*models.UserInfo, error) {
	if userID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	f.currentUserID = userID
	return &models.UserInfo{ID: userID, FirstName: "Ada"}, nil
}

var testCookie = CookieConfig{Name: "elib_access_token", MaxAge: 604800, Secure: true}

func TestAuthHandlerLoginSetsCookie(t *testing.T) {
	h := NewAuthHandler(&fakeAuthService{}, testCookie)
	c, w := newGinContext(http.MethodPost, "/auth/login", mustJSON(t, map[string]string{"email": "ada@example.com", "password": "pw"}))

	h.Login(c)

	assertStatus(t, w, http.StatusOK)
	cookie := w.Header().Get("Set-Cookie")
	assert.True(t, strings.HasPrefix(cookie, "elib_access_token="+url.QueryEscape("access-ada@example.com")+";"), cookie)
	assert.Contains(t, cookie, "HttpOnly")
	assert.Contains(t, cookie, "Secure")
	assert.Contains(t, cookie, "Max-Age=604800")
}

func TestAuthHandlerLoginFailure(t *testing.T) {
	h := NewAuthHandler(&fakeAuthService{loginErr: appErrors.ErrInvalidCredentials}, testCookie)
	c, w := newGinContext(http.MethodPost, "/auth/login", mustJSON(t, map[string]string{"email": "ada@example.com", "password": "bad"}))

	h.Login(c)

	assertStatus(t, w, http.StatusUnauthorized)
	assert.Empty(t, w.Header().Get("Set-Cookie"))
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, decode(t, w).Error.Code)
}

func TestAuthHandlerLoginBadPayload(t *testing.T) {
	h := NewAuthHandler(&fakeAuthService{}, testCookie)
	c, w := newGinContext(http.MethodPost, "/auth/login", []byte("{"))

	h.Login(c)
	assertStatus(t, w, http.StatusBadRequest)
}

func TestAuthHandlerLogoutClearsCookie(t *testing.T) {
	svc := &fakeAuthService{}
	h := NewAuthHandler(svc, testCookie)
	c, w := newGinContext(http.MethodPost, "/auth/logout", mustJSON(t, map[string]string{"refresh_token": "rt"}))
	asUser(c, "u1", models.RoleUser)

	h.Logout(c)
	c.Writer.WriteHeaderNow()

	assertStatus(t, w, http.StatusNoContent)
	assert.Equal(t, []string{"u1:rt"}, svc.loggedOut)
	assert.Contains(t, w.Header().Get("Set-Cookie"), "Max-Age=0")
}

func TestAuthHandlerLogoutWithoutBody(t *testing.T) {
	svc := &fakeAuthService{}
	h := NewAuthHandler(svc, testCookie)
	c, w := newGinContext(http.MethodPost, "/auth/logout", nil)
	asUser(c, "u1", models.RoleUser)

	h.Logout(c)
	c.Writer.WriteHeaderNow()

	assertStatus(t, w, http.StatusNoContent)
	assert.Equal(t, []string{"u1:"}, svc.loggedOut)
}

func TestAuthHandlerMe(t *testing.T) {
	svc := &fakeAuthService{}
	h := NewAuthHandler(svc, testCookie)

	c, w := newGinContext(http.MethodGet, "/auth/me", nil)
	asUser(c, "u1", models.RoleUser)
	h.Me(c)
	assertStatus(t, w, http.StatusOK)
	assert.Equal(t, "u1", svc.currentUserID)

	c, w = newGinContext(http.MethodGet, "/auth/me", nil)
	h.Me(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandlerRefresh(t *testing.T) {
	h := NewAuthHandler(&fakeAuthService{}, testCookie)
	c, w := newGinContext(http.MethodPost, "/auth/refresh", mustJSON(t, map[string]string{"refresh_token": "refresh"}))

	h.Refresh(c)

	assertStatus(t, w, http.StatusOK)
	assert.Contains(t, w.Header().Get("Set-Cookie"), "elib_access_token=rotated")
}
