package integration

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"ticketdesk/internal/models"
)

func TestRegisterLoginMe(t *testing.T) {
	app := setupApp(t)

	token, id := app.signUp(t, "alice")
	if token == "" || id == 0 {
		t.Fatalf("expected token and id, got %q %d", token, id)
	}

	rec := app.request(http.MethodGet, "/auth/me", "", token)
	expectStatus(t, rec, http.StatusOK)
	body := parseJSON(t, rec)
	if body["username"] != "alice" || body["email"] != "alice@example.com" || body["role"] != "user" {
		t.Errorf("unexpected profile %v", body)
	}
	if _, ok := body["password"]; ok {
		t.Error("password hash must never be returned")
	}
}

func TestRegister_Duplicate(t *testing.T) {
	app := setupApp(t)
	app.registerUser(t, "alice", models.RoleUser)

	rec := app.request(http.MethodPost, "/auth/register",
		`{"username":"alice","email":"other@example.com","password":"password123","role":"user"}`, "")
	expectStatus(t, rec, http.StatusConflict)

	rec = app.request(http.MethodPost, "/auth/register",
		`{"username":"alice2","email":"ALICE@example.com","password":"password123","role":"user"}`, "")
	expectStatus(t, rec, http.StatusConflict)
}

func TestRegister_InvalidInput(t *testing.T) {
	app := setupApp(t)

	rec := app.request(http.MethodPost, "/auth/register",
		`{"username":"al","email":"not-an-email","password":"123","role":"root"}`, "")
	expectStatus(t, rec, http.StatusBadRequest)

	errs, ok := parseJSON(t, rec)["errors"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected field errors, got %s", rec.Body.String())
	}
	for _, field := range []string{"username", "email", "password", "role"} {
		if _, ok := errs[field]; !ok {
			t.Errorf("expected error for %s", field)
		}
	}
}

func TestRegister_PasswordLongerThanBcryptAccepts(t *testing.T) {
	app := setupApp(t)

	tests := map[string]string{
		"ascii":     strings.Repeat("x", 73),
		"multibyte": strings.Repeat("é", 40),
	}
	for name, password := range tests {
		t.Run(name, func(t *testing.T) {
			body := fmt.Sprintf(`{"username":"alice","email":"alice@example.com","password":%q,"role":"user"}`, password)
			rec := app.request(http.MethodPost, "/auth/register", body, "")
			expectStatus(t, rec, http.StatusBadRequest)

			errs, _ := parseJSON(t, rec)["errors"].(map[string]interface{})
			if _, ok := errs["password"]; !ok {
				t.Errorf("expected password error, got %s", rec.Body.String())
			}
		})
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	app := setupApp(t)
	app.registerUser(t, "alice", models.RoleUser)

	rec := app.request(http.MethodPost, "/auth/login", `{"username":"alice","password":"wrong-password"}`, "")
	expectStatus(t, rec, http.StatusUnauthorized)

	rec = app.request(http.MethodPost, "/auth/login", `{"username":"nobody","password":"password123"}`, "")
	expectStatus(t, rec, http.StatusUnauthorized)

	rec = app.request(http.MethodPost, "/auth/login", `{"username":"alice"}`, "")
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestAdminSelfRegistration(t *testing.T) {
	body := `{"username":"eve","email":"eve@example.com","password":"password123","role":"admin"}`

	t.Run("anonymous_refused", func(t *testing.T) {
		app := setupApp(t)
		rec := app.request(http.MethodPost, "/auth/register", body, "")
		expectStatus(t, rec, http.StatusForbidden)
		if msg := parseJSON(t, rec)["msg"]; msg != "Forbidden: Admins only" {
			t.Errorf("unexpected message %v", msg)
		}
	})

	t.Run("non_admin_token_refused", func(t *testing.T) {
		app := setupApp(t)
		token, _ := app.signUp(t, "alice")
		expectStatus(t, app.request(http.MethodPost, "/auth/register", body, token), http.StatusForbidden)
	})

	t.Run("admin_token_allowed", func(t *testing.T) {
		app := setupApp(t)
		token, _ := app.adminToken(t, "root")
		expectStatus(t, app.request(http.MethodPost, "/auth/register", body, token), http.StatusCreated)

		rec := app.request(http.MethodGet, "/auth/me", "", app.loginUser(t, "eve"))
		if role := parseJSON(t, rec)["role"]; role != "admin" {
			t.Errorf("expected admin role, got %v", role)
		}
	})

	t.Run("allowed_by_config", func(t *testing.T) {
		cfg := testConfig()
		cfg.AllowAdminSelfRegistration = true
		app := setupAppWithConfig(t, cfg)
		expectStatus(t, app.request(http.MethodPost, "/auth/register", body, ""), http.StatusCreated)
	})
}

func TestProtectedRoutes_RequireToken(t *testing.T) {
	app := setupApp(t)

	for _, path := range []string{"/auth/me", "/tickets", "/admin/users"} {
		rec := app.request(http.MethodGet, path, "", "")
		expectStatus(t, rec, http.StatusUnauthorized)
	}

	rec := app.request(http.MethodGet, "/tickets", "", "not-a-token")
	expectStatus(t, rec, http.StatusUnauthorized)
}

func TestRoleFixedUntilNextLogin(t *testing.T) {
	app := setupApp(t)
	adminToken, _ := app.adminToken(t, "root")
	oldToken, aliceID := app.signUp(t, "alice")

	expectStatus(t, app.request(http.MethodGet, "/admin/users", "", oldToken), http.StatusForbidden)

	rec := app.request(http.MethodPut, "/admin/users/"+itoa(aliceID), `{"role":"admin"}`, adminToken)
	expectStatus(t, rec, http.StatusOK)

	// The earlier token still carries the role it was issued with.
	expectStatus(t, app.request(http.MethodGet, "/admin/users", "", oldToken), http.StatusForbidden)

	newToken := app.loginUser(t, "alice")
	expectStatus(t, app.request(http.MethodGet, "/admin/users", "", newToken), http.StatusOK)
}

func TestNonNumericSubject(t *testing.T) {
	app := setupApp(t)
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "alice",
		"role": "user",
		"iss":  app.Config.JWTIssuer,
	}).SignedString([]byte(app.Config.JWTSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	rec := app.request(http.MethodGet, "/auth/me", "", forged)
	expectStatus(t, rec, http.StatusBadRequest)
	if code := parseJSON(t, rec)["code"]; code != "INVALID_SUBJECT" {
		t.Errorf("expected INVALID_SUBJECT, got %v", code)
	}

	expectStatus(t, app.request(http.MethodGet, "/tickets", "", forged), http.StatusUnauthorized)
	expectStatus(t, app.request(http.MethodGet, "/admin/users", "", forged), http.StatusUnauthorized)
}

func TestUnknownRoute(t *testing.T) {
	app := setupApp(t)
	rec := app.request(http.MethodGet, "/nope", "", "")
	expectStatus(t, rec, http.StatusNotFound)
	if code := parseJSON(t, rec)["code"]; code != "NOT_FOUND" {
		t.Errorf("expected NOT_FOUND, got %v", code)
	}
}

func TestHealth(t *testing.T) {
	app := setupApp(t)
	rec := app.request(http.MethodGet, "/health", "", "")
	expectStatus(t, rec, http.StatusOK)
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected a request id header")
	}
}
