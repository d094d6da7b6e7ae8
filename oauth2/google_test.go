package oauth2

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"golang.org/x/oauth2"
)

func newTestGoogle(t *testing.T, handleUser HandleUserFunc) *GoogleOAuth2 {
	t.Helper()
	return NewGoogleOAuth2("client-id", "client-secret", "http://localhost/auth/google/secrets", handleUser)
}

func TestHandleBeginSetsStateAndRedirects(t *testing.T) {
	g := newTestGoogle(t, nil)

	rr := httptest.NewRecorder()
	g.HandleBegin(rr, httptest.NewRequest(http.MethodGet, "/auth/google", nil))

	if rr.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rr.Code)
	}

	loc, err := url.Parse(rr.Header().Get("Location"))
	if err != nil {
		t.Fatal(err)
	}
	state := loc.Query().Get("state")
	if state == "" {
		t.Fatal("consent URL missing state")
	}
	if got := loc.Query().Get("client_id"); got != "client-id" {
		t.Errorf("expected client_id in consent URL, got %q", got)
	}
	if !strings.Contains(loc.Query().Get("scope"), "userinfo.profile") {
		t.Errorf("expected profile scope, got %q", loc.Query().Get("scope"))
	}

	// The state in the URL must match the state cookie.
	var stateCookie *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == stateCookieName {
			stateCookie = c
		}
	}
	if stateCookie == nil {
		t.Fatal("state cookie not set")
	}
	if stateCookie.Value != state {
		t.Errorf("cookie state %q != URL state %q", stateCookie.Value, state)
	}
}

func TestHandleCallbackStateChecks(t *testing.T) {
	tests := []struct {
		name   string
		cookie string
		state  string
	}{
		{name: "missing cookie", cookie: "", state: "abc"},
		{name: "mismatched state", cookie: "abc", state: "xyz"},
		{name: "missing state param", cookie: "abc", state: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g := newTestGoogle(t, func(provider string, token *oauth2.Token, userInfo map[string]any, w http.ResponseWriter, r *http.Request) {
				t.Error("HandleUser called despite bad state")
			})

			req := httptest.NewRequest(http.MethodGet, "/auth/google/secrets?state="+tc.state+"&code=any", nil)
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: stateCookieName, Value: tc.cookie})
			}
			rr := httptest.NewRecorder()
			g.HandleCallback(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rr.Code)
			}
		})
	}
}

func TestHandleCallbackSuccess(t *testing.T) {
	// Fake Google: one mux serving both the token exchange and userinfo.
	fakeMux := http.NewServeMux()
	fakeMux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "fake-access-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	fakeMux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.RawQuery, "fake-access-token") {
			http.Error(w, "bad token", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"id": "google-user-123", "name": "Alice"})
	})
	fake := httptest.NewServer(fakeMux)
	defer fake.Close()

	var gotProvider, gotId string
	g := newTestGoogle(t, func(provider string, token *oauth2.Token, userInfo map[string]any, w http.ResponseWriter, r *http.Request) {
		gotProvider = provider
		gotId, _ = userInfo["id"].(string)
		fmt.Fprint(w, "ok")
	})
	g.oauthConfig.Endpoint = oauth2.Endpoint{
		AuthURL:  fake.URL + "/auth",
		TokenURL: fake.URL + "/token",
	}
	g.userInfoURL = fake.URL + "/userinfo?access_token="

	req := httptest.NewRequest(http.MethodGet, "/auth/google/secrets?state=good&code=auth-code", nil)
	req.AddCookie(&http.Cookie{Name: stateCookieName, Value: "good"})
	rr := httptest.NewRecorder()
	g.HandleCallback(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d. Body: %s", rr.Code, rr.Body.String())
	}
	if gotProvider != "google" {
		t.Errorf("expected provider google, got %q", gotProvider)
	}
	if gotId != "google-user-123" {
		t.Errorf("expected google user id to reach HandleUser, got %q", gotId)
	}
}

func TestHandleCallbackExchangeFailureRedirects(t *testing.T) {
	fake := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_grant", http.StatusBadRequest)
	}))
	defer fake.Close()

	g := newTestGoogle(t, func(provider string, token *oauth2.Token, userInfo map[string]any, w http.ResponseWriter, r *http.Request) {
		t.Error("HandleUser called despite failed exchange")
	})
	g.oauthConfig.Endpoint = oauth2.Endpoint{
		AuthURL:  fake.URL + "/auth",
		TokenURL: fake.URL + "/token",
	}

	req := httptest.NewRequest(http.MethodGet, "/auth/google/secrets?state=good&code=bad-code", nil)
	req.AddCookie(&http.Cookie{Name: stateCookieName, Value: "good"})
	rr := httptest.NewRecorder()
	g.HandleCallback(rr, req)

	if rr.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/login" {
		t.Errorf("expected redirect to /login, got %q", loc)
	}
}
