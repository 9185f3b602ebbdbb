package handler_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backend/internal/models"
)

var adminEndpoints = []struct {
	method string
	path   string
}{
	{"GET", "/api/users"},
	{"POST", "/api/users"},
	{"GET", "/api/users/1"},
	{"PUT", "/api/users/1"},
	{"DELETE", "/api/users/1"},
}

func TestAdminEndpointsRequireToken(t *testing.T) {
	router, _, _ := newTestServer(t)

	for _, ep := range adminEndpoints {
		w := doRequest(t, router, ep.method, ep.path, map[string]string{}, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code,
			"%s %s without a token", ep.method, ep.path)
	}
}

func TestAdminEndpointsRejectGarbledToken(t *testing.T) {
	router, _, _ := newTestServer(t)

	for _, ep := range adminEndpoints {
		w := doRequest(t, router, ep.method, ep.path, map[string]string{}, "garbage.token.value")
		assert.Equal(t, http.StatusForbidden, w.Code,
			"%s %s with a garbled token", ep.method, ep.path)
	}
}

func TestAdminEndpointsRejectExpiredToken(t *testing.T) {
	router, repo, _ := newTestServer(t)
	admin := seedUser(t, repo, "admin", "admin@example.com", "admin123", "admin")

	token := expiredAccessTokenFor(t, admin.ID)
	for _, ep := range adminEndpoints {
		w := doRequest(t, router, ep.method, ep.path, map[string]string{}, token)
		assert.Equal(t, http.StatusUnauthorized, w.Code,
			"%s %s with an expired token", ep.method, ep.path)
	}
}

func TestAdminEndpointsRejectUserRole(t *testing.T) {
	router, repo, _ := newTestServer(t)
	user := seedUser(t, repo, "bob", "bob@example.com", "password123", "user")

	token := accessTokenFor(t, user.ID)
	for _, ep := range adminEndpoints {
		w := doRequest(t, router, ep.method, ep.path, map[string]string{}, token)
		assert.Equal(t, http.StatusForbidden, w.Code,
			"%s %s with a user-role token", ep.method, ep.path)
	}
}

func TestStaleTokenForDeletedUser(t *testing.T) {
	router, repo, _ := newTestServer(t)
	admin := seedUser(t, repo, "admin", "admin@example.com", "admin123", "admin")
	token := accessTokenFor(t, admin.ID)
	require.NoError(t, repo.Delete(admin.ID))

	w := doRequest(t, router, "GET", "/api/users", nil, token)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRoleChangeTakesEffectOnNextRequest(t *testing.T) {
	router, repo, _ := newTestServer(t)
	admin := seedUser(t, repo, "admin", "admin@example.com", "admin123", "admin")
	token := accessTokenFor(t, admin.ID)

	w := doRequest(t, router, "GET", "/api/users", nil, token)
	require.Equal(t, http.StatusOK, w.Code)

	role := "user"
	_, err := repo.Update(admin.ID, models.UserUpdate{Role: &role})
	require.NoError(t, err)

	// Same still-valid token, demoted account.
	w = doRequest(t, router, "GET", "/api/users", nil, token)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestListUsers(t *testing.T) {
	router, repo, _ := newTestServer(t)
	admin := seedUser(t, repo, "admin", "admin@example.com", "admin123", "admin")
	seedUser(t, repo, "bob", "bob@example.com", "password123", "user")

	w := doRequest(t, router, "GET", "/api/users", nil, accessTokenFor(t, admin.ID))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "admin@example.com")
	assert.Contains(t, w.Body.String(), "bob@example.com")
	assert.NotContains(t, w.Body.String(), "password_hash")
}

func TestCreateUser(t *testing.T) {
	router, repo, _ := newTestServer(t)
	admin := seedUser(t, repo, "admin", "admin@example.com", "admin123", "admin")
	token := accessTokenFor(t, admin.ID)

	w := doRequest(t, router, "POST", "/api/users", map[string]string{
		"name": "Carol", "username": "carol", "email": "carol@example.com", "password": "password123",
	}, token)
	require.Equal(t, http.StatusCreated, w.Code)

	user := decodeBody(t, w)["user"].(map[string]interface{})
	assert.Equal(t, "carol", user["username"])
	assert.Equal(t, "user", user["role"])
}

func TestCreateUserMissingFields(t *testing.T) {
	router, repo, _ := newTestServer(t)
	admin := seedUser(t, repo, "admin", "admin@example.com", "admin123", "admin")

	w := doRequest(t, router, "POST", "/api/users",
		map[string]string{"name": "Carol"}, accessTokenFor(t, admin.ID))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateUserConflictNamesField(t *testing.T) {
	router, repo, _ := newTestServer(t)
	admin := seedUser(t, repo, "admin", "admin@example.com", "admin123", "admin")
	seedUser(t, repo, "bob", "bob@example.com", "password123", "user")
	token := accessTokenFor(t, admin.ID)

	w := doRequest(t, router, "POST", "/api/users", map[string]string{
		"name": "Bob Two", "username": "bob", "email": "bob2@example.com", "password": "password123",
	}, token)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "username")

	w = doRequest(t, router, "POST", "/api/users", map[string]string{
		"name": "Bob Two", "username": "bob2", "email": "bob@example.com", "password": "password123",
	}, token)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "email")
}

func TestGetUser(t *testing.T) {
	router, repo, _ := newTestServer(t)
	admin := seedUser(t, repo, "admin", "admin@example.com", "admin123", "admin")
	bob := seedUser(t, repo, "bob", "bob@example.com", "password123", "user")
	token := accessTokenFor(t, admin.ID)

	w := doRequest(t, router, "GET", fmt.Sprintf("/api/users/%d", bob.ID), nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "bob", decodeBody(t, w)["username"])

	w = doRequest(t, router, "GET", "/api/users/999", nil, token)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateUser(t *testing.T) {
	router, repo, _ := newTestServer(t)
	admin := seedUser(t, repo, "admin", "admin@example.com", "admin123", "admin")
	bob := seedUser(t, repo, "bob", "bob@example.com", "password123", "user")
	token := accessTokenFor(t, admin.ID)

	w := doRequest(t, router, "PUT", fmt.Sprintf("/api/users/%d", bob.ID),
		map[string]string{"name": "Robert"}, token)
	require.Equal(t, http.StatusOK, w.Code)

	user := decodeBody(t, w)["user"].(map[string]interface{})
	assert.Equal(t, "Robert", user["name"])
	assert.Equal(t, "bob", user["username"])

	w = doRequest(t, router, "PUT", "/api/users/999", map[string]string{"name": "Ghost"}, token)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateUserRejectsEmptyFields(t *testing.T) {
	router, repo, _ := newTestServer(t)
	admin := seedUser(t, repo, "admin", "admin@example.com", "admin123", "admin")
	bob := seedUser(t, repo, "bob", "bob@example.com", "password123", "user")
	token := accessTokenFor(t, admin.ID)

	for _, body := range []map[string]string{
		{"email": ""},
		{"username": ""},
		{"name": ""},
	} {
		w := doRequest(t, router, "PUT", fmt.Sprintf("/api/users/%d", bob.ID), body, token)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}

	stored, err := repo.FindByID(bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", stored.Username)
	assert.Equal(t, "bob@example.com", stored.Email)
}

func TestUpdateUserConflict(t *testing.T) {
	router, repo, _ := newTestServer(t)
	admin := seedUser(t, repo, "admin", "admin@example.com", "admin123", "admin")
	bob := seedUser(t, repo, "bob", "bob@example.com", "password123", "user")
	token := accessTokenFor(t, admin.ID)

	w := doRequest(t, router, "PUT", fmt.Sprintf("/api/users/%d", bob.ID),
		map[string]string{"email": "admin@example.com"}, token)
	assert.Equal(t, http.StatusConflict, w.Code)

	// A no-op update to the user's own email succeeds.
	w = doRequest(t, router, "PUT", fmt.Sprintf("/api/users/%d", bob.ID),
		map[string]string{"email": "bob@example.com"}, token)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDeleteUser(t *testing.T) {
	router, repo, _ := newTestServer(t)
	admin := seedUser(t, repo, "admin", "admin@example.com", "admin123", "admin")
	bob := seedUser(t, repo, "bob", "bob@example.com", "password123", "user")
	token := accessTokenFor(t, admin.ID)

	w := doRequest(t, router, "DELETE", fmt.Sprintf("/api/users/%d", bob.ID), nil, token)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, router, "DELETE", fmt.Sprintf("/api/users/%d", bob.ID), nil, token)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestChangePassword(t *testing.T) {
	router, repo, _ := newTestServer(t)
	bob := seedUser(t, repo, "bob", "bob@example.com", "password123", "user")
	token := accessTokenFor(t, bob.ID)

	w := doRequest(t, router, "PUT", "/api/users/change-password",
		map[string]string{"oldPassword": "password123", "newPassword": "newpassword"}, token)
	require.Equal(t, http.StatusOK, w.Code)

	login := doRequest(t, router, "POST", "/api/auth/login",
		map[string]string{"username": "bob", "password": "newpassword"}, "")
	assert.Equal(t, http.StatusOK, login.Code)
}

func TestChangePasswordWrongOld(t *testing.T) {
	router, repo, _ := newTestServer(t)
	bob := seedUser(t, repo, "bob", "bob@example.com", "password123", "user")

	w := doRequest(t, router, "PUT", "/api/users/change-password",
		map[string]string{"oldPassword": "wrong", "newPassword": "newpassword"}, accessTokenFor(t, bob.ID))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestChangePasswordMissingFields(t *testing.T) {
	router, repo, _ := newTestServer(t)
	bob := seedUser(t, repo, "bob", "bob@example.com", "password123", "user")

	w := doRequest(t, router, "PUT", "/api/users/change-password",
		map[string]string{"oldPassword": "password123"}, accessTokenFor(t, bob.ID))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChangePasswordRequiresToken(t *testing.T) {
	router, _, _ := newTestServer(t)

	w := doRequest(t, router, "PUT", "/api/users/change-password",
		map[string]string{"oldPassword": "a", "newPassword": "newpassword"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestChangePasswordDoesNotRequireAdmin(t *testing.T) {
	router, repo, _ := newTestServer(t)
	bob := seedUser(t, repo, "bob", "bob@example.com", "password123", "user")

	w := doRequest(t, router, "PUT", "/api/users/change-password",
		map[string]string{"oldPassword": "password123", "newPassword": "newpassword"}, accessTokenFor(t, bob.ID))
	assert.Equal(t, http.StatusOK, w.Code, "self-service operations need authentication only")
}

func TestPreflightBypassesAuthGate(t *testing.T) {
	router, _, _ := newTestServer(t)

	req, err := http.NewRequest("OPTIONS", "/api/users", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:8000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	req.Header.Set("Access-Control-Request-Headers", "Authorization")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code, "preflight must not hit the authorization gate")
	assert.Equal(t, "http://localhost:8000", w.Header().Get("Access-Control-Allow-Origin"))
}
