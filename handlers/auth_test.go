package handlers

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"nightboard/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLogin(t *testing.T) {
	app := setupTestApp(t)
	server := setupServer(t, app)
	defer server.Close()
	client := newTestClient(t, server.URL, "198.51.100.7")

	token, answer := solveChallenge(app.challenges)
	resp := client.postForm("/register/", url.Values{
		"username":         {"alice"},
		"email":            {"alice@example.com"},
		"password1":        {"correct horse"},
		"password2":        {"correct horse"},
		"challenge_token":  {token},
		"challenge_answer": {answer},
	})
	resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login/", resp.Header.Get("Location"))

	user, err := app.db.GetUserByUsername("alice")
	require.NoError(t, err)
	profile, err := app.db.GetProfile(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "198.51.100.7", profile.IPAddress)
	assert.Equal(t, "198.51.100.7", profile.LastLoginIP)

	client.ip = "198.51.100.8"
	client.login("alice", "correct horse")

	profile, err = app.db.GetProfile(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "198.51.100.7", profile.IPAddress, "registration IP never changes")
	assert.Equal(t, "198.51.100.8", profile.LastLoginIP)

	status, body := client.getBody("/")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "alice")
}

func TestRegisterValidation(t *testing.T) {
	app := setupTestApp(t)
	server := setupServer(t, app)
	defer server.Close()
	client := newTestClient(t, server.URL, "198.51.100.7")
	createUser(t, app, "taken", "password123", "198.51.100.1", false)

	tests := []struct {
		name     string
		form     url.Values
		expected string
	}{
		{
			name:     "mismatched passwords",
			form:     url.Values{"username": {"bob"}, "password1": {"password123"}, "password2": {"password124"}},
			expected: "password fields",
		},
		{
			name:     "bad username characters",
			form:     url.Values{"username": {"bob smith"}, "password1": {"password123"}, "password2": {"password123"}},
			expected: "Enter a valid username.",
		},
		{
			name:     "short password",
			form:     url.Values{"username": {"bob"}, "password1": {"short"}, "password2": {"short"}},
			expected: "at least 8 characters",
		},
		{
			name:     "username already taken",
			form:     url.Values{"username": {"taken"}, "password1": {"password123"}, "password2": {"password123"}},
			expected: "A user with that username already exists.",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			token, answer := solveChallenge(app.challenges)
			tc.form.Set("challenge_token", token)
			tc.form.Set("challenge_answer", answer)
			resp := client.postForm("/register/", tc.form)
			body := readBody(t, resp)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Contains(t, body, tc.expected)
		})
	}

	count, err := app.db.CountUsers()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRegisterWrongChallenge(t *testing.T) {
	app := setupTestApp(t)
	server := setupServer(t, app)
	defer server.Close()
	client := newTestClient(t, server.URL, "198.51.100.7")

	token, _ := solveChallenge(app.challenges)
	resp := client.postForm("/register/", url.Values{
		"username": {"bob"}, "password1": {"password123"}, "password2": {"password123"},
		"challenge_token": {token}, "challenge_answer": {"-1"},
	})
	body := readBody(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "anti-spam question")
}

func TestRegisterFromBlockedIP(t *testing.T) {
	app := setupTestApp(t)
	server := setupServer(t, app)
	defer server.Close()
	_, err := app.db.BlockIP(0, "203.0.113.9", "spam wave")
	require.NoError(t, err)

	client := newTestClient(t, server.URL, "203.0.113.9")

	// A perfectly valid submission is still refused.
	token, answer := solveChallenge(app.challenges)
	resp := client.postForm("/register/", url.Values{
		"username": {"mallory"}, "password1": {"password123"}, "password2": {"password123"},
		"challenge_token": {token}, "challenge_answer": {answer},
	})
	resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login/", resp.Header.Get("Location"))

	_, err = app.db.GetUserByUsername("mallory")
	assert.Error(t, err, "no account may be created from a blocked address")

	// The redirect target shows the reason; it is itself a login page on a
	// blocked address, hence 403.
	status, body := client.getBody("/login/")
	assert.Equal(t, http.StatusForbidden, status)
	assert.Contains(t, body, "Registration is not allowed from a blocked IP address. (Reason: spam wave)")

	// Merely opening the form is refused too.
	resp = client.get("/register/")
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
}

func TestLoginFromBlockedIP(t *testing.T) {
	app := setupTestApp(t)
	server := setupServer(t, app)
	defer server.Close()
	createUser(t, app, "alice", "password123", "198.51.100.7", false)
	_, err := app.db.BlockIP(0, "203.0.113.9", "")
	require.NoError(t, err)

	client := newTestClient(t, server.URL, "203.0.113.9")
	resp := client.postForm("/login/", url.Values{"username": {"alice"}, "password": {"password123"}})
	body := readBody(t, resp)

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, body, "Login is not allowed from a blocked IP address. (Reason: "+config.DefaultBlockReason+")")
	for _, c := range resp.Cookies() {
		assert.NotEqual(t, config.SessionCookieName, c.Name, "no session may be issued")
	}
}

func TestLoginFailures(t *testing.T) {
	app := setupTestApp(t)
	server := setupServer(t, app)
	defer server.Close()
	u := createUser(t, app, "alice", "password123", "198.51.100.7", false)
	client := newTestClient(t, server.URL, "198.51.100.7")

	t.Run("Wrong password", func(t *testing.T) {
		resp := client.postForm("/login/", url.Values{"username": {"alice"}, "password": {"nope"}})
		body := readBody(t, resp)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, "Invalid username or password.")
	})

	t.Run("Unknown user", func(t *testing.T) {
		resp := client.postForm("/login/", url.Values{"username": {"nobody"}, "password": {"password123"}})
		body := readBody(t, resp)
		assert.Contains(t, body, "Invalid username or password.")
	})

	t.Run("Inactive user", func(t *testing.T) {
		require.NoError(t, app.db.ToggleUserFlag(u.ID, u.ID, "active"))
		resp := client.postForm("/login/", url.Values{"username": {"alice"}, "password": {"password123"}})
		body := readBody(t, resp)
		assert.Contains(t, body, "Invalid username or password.")
	})
}

func TestLoginHealsMissingProfile(t *testing.T) {
	app := setupTestApp(t)
	server := setupServer(t, app)
	defer server.Close()
	u := createUser(t, app, "legacy", "password123", "198.51.100.7", false)
	_, err := app.db.DB.Exec("DELETE FROM profiles WHERE user_id = ?", u.ID)
	require.NoError(t, err)

	client := newTestClient(t, server.URL, "198.51.100.50")
	client.login("legacy", "password123")

	profile, err := app.db.GetProfile(u.ID)
	require.NoError(t, err)
	assert.Equal(t, "198.51.100.50", profile.IPAddress)
	assert.Equal(t, "198.51.100.50", profile.LastLoginIP)
}

func TestLoginRedirectsToNext(t *testing.T) {
	app := setupTestApp(t)
	server := setupServer(t, app)
	defer server.Close()
	createUser(t, app, "alice", "password123", "198.51.100.7", false)
	client := newTestClient(t, server.URL, "198.51.100.7")

	resp := client.get("/posts/")
	resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login/?next=%2Fposts%2F", resp.Header.Get("Location"))

	resp = client.postForm("/login/", url.Values{"username": {"alice"}, "password": {"password123"}, "next": {"/posts/"}})
	resp.Body.Close()
	assert.Equal(t, "/posts/", resp.Header.Get("Location"))
}

func TestLogout(t *testing.T) {
	app := setupTestApp(t)
	server := setupServer(t, app)
	defer server.Close()
	createUser(t, app, "alice", "password123", "198.51.100.7", false)
	client := newTestClient(t, server.URL, "198.51.100.7")
	client.login("alice", "password123")

	resp := client.postForm("/logout/", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login/", resp.Header.Get("Location"))

	status, body := client.getBody("/login/")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "You have been logged out safely.")

	resp = client.get("/")
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode, "session must be gone")
}

func TestSafeNext(t *testing.T) {
	tests := map[string]string{
		"":                 "/",
		"/posts/":          "/posts/",
		"//evil.example":   "/",
		"https://evil.com": "/",
		"/\\evil.example":  "/",
	}
	for in, want := range tests {
		assert.Equal(t, want, safeNext(in), "safeNext(%q)", in)
	}
}

func TestForwardingHeadersFromUntrustedPeerAreIgnored(t *testing.T) {
	app := setupTestApp(t)
	app.settings.TrustedProxies = nil
	server := setupServer(t, app)
	defer server.Close()
	createUser(t, app, "alice", "password123", "198.51.100.7", false)
	_, err := app.db.BlockIP(0, "127.0.0.1", "local abuse")
	require.NoError(t, err)

	client := newTestClient(t, server.URL, "")
	spoofed := func(path string, form url.Values) *http.Response {
		form.Set("csrf_token", client.csrf)
		req, err := http.NewRequest(http.MethodPost, server.URL+path, strings.NewReader(form.Encode()))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("X-Forwarded-For", "198.51.100.1")
		req.Header.Set("X-Real-IP", "198.51.100.1")
		req.Header.Set("CF-Connecting-IP", "198.51.100.1")
		return client.do(req)
	}

	resp := spoofed("/login/", url.Values{"username": {"alice"}, "password": {"password123"}})
	body := readBody(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, body, "(Reason: local abuse)")
	for _, c := range resp.Cookies() {
		assert.NotEqual(t, config.SessionCookieName, c.Name, "no session may be issued")
	}

	token, answer := solveChallenge(app.challenges)
	resp = spoofed("/register/", url.Values{
		"username": {"mallory"}, "password1": {"password123"}, "password2": {"password123"},
		"challenge_token": {token}, "challenge_answer": {answer},
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	_, err = app.db.GetUserByUsername("mallory")
	assert.Error(t, err)
}

func TestAuthRefusedWhenBlocklistUnavailable(t *testing.T) {
	app := setupTestApp(t)
	server := setupServer(t, app)
	defer server.Close()
	createUser(t, app, "alice", "password123", "198.51.100.7", false)
	client := newTestClient(t, server.URL, "198.51.100.7")

	_, err := app.db.DB.Exec("ALTER TABLE blocked_ips RENAME TO blocked_ips_gone")
	require.NoError(t, err)

	resp := client.postForm("/login/", url.Values{"username": {"alice"}, "password": {"password123"}})
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	for _, c := range resp.Cookies() {
		assert.NotEqual(t, config.SessionCookieName, c.Name, "no session may be issued")
	}

	token, answer := solveChallenge(app.challenges)
	resp = client.postForm("/register/", url.Values{
		"username": {"bob"}, "password1": {"password123"}, "password2": {"password123"},
		"challenge_token": {token}, "challenge_answer": {answer},
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	_, err = app.db.GetUserByUsername("bob")
	assert.Error(t, err)
}
