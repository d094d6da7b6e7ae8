package telltale_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	tt "github.com/telltale-app/telltale"
	"github.com/telltale-app/telltale/stores"
)

// setupLocalAuth creates a LocalAuth over a file store in a temp dir. The
// HandleUser callback answers with a small JSON body so tests can see which
// user authenticated.
func setupLocalAuth(t *testing.T) (*tt.LocalAuth, *stores.FSUserStore) {
	t.Helper()
	store := stores.NewFSUserStore(t.TempDir())
	auth := &tt.LocalAuth{
		Store: store,
		HandleUser: func(userId string, w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{"user_id": userId})
		},
	}
	return auth, store
}

func postForm(t *testing.T, handler http.HandlerFunc, target string, form map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	values := url.Values{}
	for k, v := range form {
		values.Set(k, v)
	}
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}

func TestRegisterFlow(t *testing.T) {
	auth, _ := setupLocalAuth(t)

	tests := []struct {
		name           string
		formData       map[string]string
		expectedStatus int
		expectedLoc    string
	}{
		{
			name:           "successful registration",
			formData:       map[string]string{"username": "alice", "password": "hunter2"},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "duplicate username",
			formData:       map[string]string{"username": "alice", "password": "different"},
			expectedStatus: http.StatusFound,
			expectedLoc:    "/register",
		},
		{
			name:           "missing password",
			formData:       map[string]string{"username": "bob"},
			expectedStatus: http.StatusFound,
			expectedLoc:    "/register",
		},
		{
			name:           "missing username",
			formData:       map[string]string{"password": "hunter2"},
			expectedStatus: http.StatusFound,
			expectedLoc:    "/register",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := postForm(t, auth.HandleRegister, "/register", tc.formData)
			if rr.Code != tc.expectedStatus {
				t.Errorf("expected status %d, got %d. Body: %s", tc.expectedStatus, rr.Code, rr.Body.String())
			}
			if tc.expectedLoc != "" && rr.Header().Get("Location") != tc.expectedLoc {
				t.Errorf("expected redirect to %q, got %q", tc.expectedLoc, rr.Header().Get("Location"))
			}
		})
	}
}

func TestRegisterStoresHashNotPassword(t *testing.T) {
	auth, store := setupLocalAuth(t)

	rr := postForm(t, auth.HandleRegister, "/register", map[string]string{
		"username": "alice", "password": "hunter2",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("registration failed: %d %s", rr.Code, rr.Body.String())
	}

	user, err := store.GetUserByUsername("alice")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if user.PasswordHash == "hunter2" {
		t.Error("password stored in plaintext")
	}
	if !strings.HasPrefix(user.PasswordHash, "$2") {
		t.Errorf("expected a bcrypt hash, got %q", user.PasswordHash)
	}
}

func TestLoginFlow(t *testing.T) {
	auth, _ := setupLocalAuth(t)

	rr := postForm(t, auth.HandleRegister, "/register", map[string]string{
		"username": "alice", "password": "hunter2",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("registration failed: %d", rr.Code)
	}

	tests := []struct {
		name           string
		formData       map[string]string
		expectedStatus int
		expectedLoc    string
	}{
		{
			name:           "correct credentials",
			formData:       map[string]string{"username": "alice", "password": "hunter2"},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "wrong password",
			formData:       map[string]string{"username": "alice", "password": "wrong"},
			expectedStatus: http.StatusFound,
			expectedLoc:    "/login",
		},
		{
			name:           "unknown username",
			formData:       map[string]string{"username": "mallory", "password": "hunter2"},
			expectedStatus: http.StatusFound,
			expectedLoc:    "/login",
		},
		{
			name:           "empty form",
			formData:       map[string]string{},
			expectedStatus: http.StatusFound,
			expectedLoc:    "/login",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := postForm(t, auth.HandleLogin, "/login", tc.formData)
			if rr.Code != tc.expectedStatus {
				t.Errorf("expected status %d, got %d. Body: %s", tc.expectedStatus, rr.Code, rr.Body.String())
			}
			if tc.expectedLoc != "" && rr.Header().Get("Location") != tc.expectedLoc {
				t.Errorf("expected redirect to %q, got %q", tc.expectedLoc, rr.Header().Get("Location"))
			}
		})
	}
}

// Wrong-password and unknown-username failures must be the same error so a
// caller cannot probe for account existence.
func TestVerifyCredentialsIndistinguishableFailures(t *testing.T) {
	auth, _ := setupLocalAuth(t)
	if _, err := auth.CreateLocalUser("alice", "hunter2"); err != nil {
		t.Fatalf("CreateLocalUser: %v", err)
	}

	_, errWrongPass := auth.VerifyCredentials("alice", "wrong")
	_, errNoUser := auth.VerifyCredentials("nobody", "hunter2")

	if errWrongPass != tt.ErrInvalidCredentials {
		t.Errorf("wrong password: expected ErrInvalidCredentials, got %v", errWrongPass)
	}
	if errNoUser != tt.ErrInvalidCredentials {
		t.Errorf("unknown user: expected ErrInvalidCredentials, got %v", errNoUser)
	}
}

func TestCustomFieldNames(t *testing.T) {
	store := stores.NewFSUserStore(t.TempDir())
	auth := &tt.LocalAuth{
		Store:         store,
		UsernameField: "email",
		PasswordField: "pass",
		HandleUser: func(userId string, w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		},
	}

	rr := postForm(t, auth.HandleRegister, "/register", map[string]string{
		"email": "alice@example.com", "pass": "hunter2",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if _, err := store.GetUserByUsername("alice@example.com"); err != nil {
		t.Errorf("user not created under custom field name: %v", err)
	}
}
