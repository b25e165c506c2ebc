package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"ticketdesk/internal/config"
	"ticketdesk/internal/logger"
	"ticketdesk/internal/models"
	"ticketdesk/internal/server"
	"ticketdesk/internal/testutil"
)

// testApp holds the full application stack for integration tests.
type testApp struct {
	DB     *gorm.DB
	Router *gin.Engine
	Config *config.Config
}

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
}

// setupApp creates the production router backed by an isolated in-memory SQLite.
func setupApp(t *testing.T) *testApp {
	t.Helper()
	return setupAppWithConfig(t, testConfig())
}

func setupAppWithConfig(t *testing.T, cfg *config.Config) *testApp {
	t.Helper()

	db := testutil.SetupTestDB(t)
	svc, err := server.NewServices(db, cfg)
	if err != nil {
		t.Fatalf("failed to build services: %v", err)
	}
	return &testApp{DB: db, Router: server.NewRouter(svc, cfg), Config: cfg}
}

func testConfig() *config.Config {
	return &config.Config{
		Port:             "0",
		Env:              "test",
		JWTSecret:        "integration-secret",
		JWTIssuer:        "ticketdesk-test",
		JWTExpirationDur: time.Hour,
		BcryptCost:       bcrypt.MinCost,
	}
}

// request makes an HTTP request to the test router and returns the recorder.
func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

// parseJSONArray parses the response body into a slice of objects.
func parseJSONArray(t *testing.T, rec *httptest.ResponseRecorder) []map[string]interface{} {
	t.Helper()
	var result []map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON array: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

// registerUser registers username with the given role through the public endpoint.
func (app *testApp) registerUser(t *testing.T, username string, role models.Role) {
	t.Helper()
	body := fmt.Sprintf(`{"username":%q,"email":"%s@example.com","password":%q,"role":%q}`,
		username, username, testutil.TestPassword, role)
	expectStatus(t, app.request(http.MethodPost, "/auth/register", body, ""), http.StatusCreated)
}

// loginUser logs in and returns the access token.
func (app *testApp) loginUser(t *testing.T, username string) string {
	t.Helper()
	body := fmt.Sprintf(`{"username":%q,"password":%q}`, username, testutil.TestPassword)
	rec := app.request(http.MethodPost, "/auth/login", body, "")
	expectStatus(t, rec, http.StatusOK)
	return parseJSON(t, rec)["access_token"].(string)
}

// signUp registers and logs in a regular user, returning the token and user id.
func (app *testApp) signUp(t *testing.T, username string) (string, uint) {
	t.Helper()
	app.registerUser(t, username, models.RoleUser)
	token := app.loginUser(t, username)

	rec := app.request(http.MethodGet, "/auth/me", "", token)
	expectStatus(t, rec, http.StatusOK)
	return token, uint(parseJSON(t, rec)["id"].(float64))
}

// adminToken seeds an admin directly in the store and logs them in.
func (app *testApp) adminToken(t *testing.T, username string) (string, uint) {
	t.Helper()
	admin := testutil.CreateTestUserWithRole(t, app.DB, username, models.RoleAdmin)
	return app.loginUser(t, username), admin.ID
}

// createTicket posts a valid ticket and returns its id.
func (app *testApp) createTicket(t *testing.T, token, title string) uint {
	t.Helper()
	body := fmt.Sprintf(`{"title":%q,"description":"Something is broken and needs fixing"}`, title)
	rec := app.request(http.MethodPost, "/tickets", body, token)
	expectStatus(t, rec, http.StatusCreated)
	return uint(parseJSON(t, rec)["id"].(float64))
}
