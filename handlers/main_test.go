package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"nightboard/config"
	"nightboard/database"
	"nightboard/models"
	"nightboard/utils"

	"github.com/stretchr/testify/require"
)

// MockApplication holds dependencies for handler tests.
type MockApplication struct {
	db          *database.DatabaseService
	rateLimiter *models.RateLimiter
	challenges  *models.ChallengeStore
	storage     models.StorageService
	settings    *config.Settings
	logger      *slog.Logger
}

func (a *MockApplication) DB() *database.DatabaseService      { return a.db }
func (a *MockApplication) RateLimiter() *models.RateLimiter   { return a.rateLimiter }
func (a *MockApplication) Challenges() *models.ChallengeStore { return a.challenges }
func (a *MockApplication) Logger() *slog.Logger               { return a.logger }
func (a *MockApplication) Storage() models.StorageService     { return a.storage }
func (a *MockApplication) Settings() *config.Settings         { return a.settings }

// setupTestApp creates a full application stack with a test database for integration testing.
func setupTestApp(t *testing.T) *MockApplication {
	t.Helper()
	require.NoError(t, LoadTemplates())

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	dir := t.TempDir()
	dbService, err := database.InitDB(filepath.Join(dir, "test.db?_journal_mode=WAL&_foreign_keys=on"), logger)
	require.NoError(t, err, "Failed to initialize test database")

	mediaDir := filepath.Join(dir, "media")
	storage, err := utils.NewLocalStorage(mediaDir)
	require.NoError(t, err)

	app := &MockApplication{
		db:          dbService,
		rateLimiter: models.NewRateLimiter(0, 1000, 0, 0),
		challenges:  models.NewChallengeStore(),
		storage:     storage,
		settings: &config.Settings{
			AdminPath: "/admin",
			MediaDir:  mediaDir,
			BackupDir: filepath.Join(dir, "backups"),
			// The test server is reached over loopback, so X-Real-IP from
			// testClient is believed.
			TrustedProxies: []string{"127.0.0.1", "::1"},
		},
		logger: logger,
	}

	t.Cleanup(func() { app.db.Close() })
	return app
}

func solveChallenge(cs *models.ChallengeStore) (string, string) {
	token, question := cs.GenerateChallenge()
	parts := strings.Fields(question)
	num1, _ := strconv.Atoi(parts[2])
	num2Str := strings.TrimSuffix(parts[4], "?")
	num2, _ := strconv.Atoi(num2Str)
	answer := strconv.Itoa(num1 + num2)
	return token, answer
}

// newTestRequest builds a request that already carries the given user.
func newTestRequest(_ *testing.T, method, path string, body io.Reader, user *models.User) *http.Request {
	req := httptest.NewRequest(method, path, body)
	ctx := context.WithValue(req.Context(), CSRFTokenKey, "test-token")
	if user != nil {
		ctx = context.WithValue(ctx, UserKey, user)
	}
	return req.WithContext(ctx)
}

func setupServer(_ *testing.T, app *MockApplication) *httptest.Server {
	mux := SetupRouter(app)
	finalHandler := AppContextMiddleware(app, CSRFMiddleware(NewSecurityHeadersMiddleware("", false)(mux)))
	return httptest.NewServer(finalHandler)
}

// testClient is a browser stand-in: a cookie jar, no redirect following and
// a fixed client address sent as X-Real-IP through the trusted loopback peer.
type testClient struct {
	t    *testing.T
	http *http.Client
	base string
	ip   string
	csrf string
}

func newTestClient(t *testing.T, serverURL, ip string) *testClient {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	c := &testClient{
		t: t,
		http: &http.Client{
			Jar: jar,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		base: serverURL,
		ip:   ip,
	}

	resp := c.get("/login/")
	resp.Body.Close()

	u, _ := url.Parse(serverURL)
	for _, cookie := range jar.Cookies(u) {
		if cookie.Name == "csrf_token" {
			c.csrf = cookie.Value
		}
	}
	require.NotEmpty(t, c.csrf, "CSRF token cookie not found in jar")
	return c
}

func (c *testClient) do(req *http.Request) *http.Response {
	c.t.Helper()
	if c.ip != "" {
		req.Header.Set("X-Real-IP", c.ip)
	}
	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	return resp
}

func (c *testClient) get(path string) *http.Response {
	c.t.Helper()
	req, err := http.NewRequest(http.MethodGet, c.base+path, nil)
	require.NoError(c.t, err)
	return c.do(req)
}

// getBody fetches path and returns status and body.
func (c *testClient) getBody(path string) (int, string) {
	c.t.Helper()
	resp := c.get(path)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp.StatusCode, string(body)
}

// postForm submits form with the CSRF token filled in.
func (c *testClient) postForm(path string, form url.Values) *http.Response {
	c.t.Helper()
	if form == nil {
		form = url.Values{}
	}
	form.Set("csrf_token", c.csrf)
	req, err := http.NewRequest(http.MethodPost, c.base+path, strings.NewReader(form.Encode()))
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

// createUser registers an account straight through the database.
func createUser(t *testing.T, app *MockApplication, username, password, ip string, admin bool) *models.User {
	t.Helper()
	hash, err := utils.HashPassword(password)
	require.NoError(t, err)
	u, err := app.db.CreateUser(username, "", hash, ip, admin)
	require.NoError(t, err)
	return u
}

// login signs the client in and fails the test unless it is redirected.
func (c *testClient) login(username, password string) {
	c.t.Helper()
	resp := c.postForm("/login/", url.Values{"username": {username}, "password": {password}})
	resp.Body.Close()
	require.Equal(c.t, http.StatusFound, resp.StatusCode, "login should redirect")
}
