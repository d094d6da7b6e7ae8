package oauth2

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo?access_token="

// GoogleOAuth2 runs the Google authorization-code flow: HandleBegin redirects
// the browser to Google, HandleCallback exchanges the code, fetches the user
// info and hands it to the HandleUser callback.
type GoogleOAuth2 struct {
	ClientId     string
	ClientSecret string
	CallbackURL  string

	// HandleUser is called with the verified user info after a successful
	// exchange.
	HandleUser HandleUserFunc

	// FailureURL is where the callback redirects when the flow fails.
	FailureURL string

	oauthConfig oauth2.Config

	// userInfoURL is the userinfo endpoint, overridable in tests.
	userInfoURL string
}

func NewGoogleOAuth2(clientId string, clientSecret string, callbackUrl string, handleUser HandleUserFunc) *GoogleOAuth2 {
	if clientId == "" {
		clientId = os.Getenv("GOOGLE_CLIENT_ID")
	}
	if clientSecret == "" {
		clientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	}
	if callbackUrl == "" {
		callbackUrl = os.Getenv("GOOGLE_CALLBACK_URL")
	}

	return &GoogleOAuth2{
		ClientId:     clientId,
		ClientSecret: clientSecret,
		CallbackURL:  callbackUrl,
		HandleUser:   handleUser,
		userInfoURL:  googleUserInfoURL,
		oauthConfig: oauth2.Config{
			ClientID:     clientId,
			ClientSecret: clientSecret,
			RedirectURL:  callbackUrl,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
	}
}

// HandleBegin starts the flow: sets the state cookie and redirects to
// Google's consent page.
func (g *GoogleOAuth2) HandleBegin(w http.ResponseWriter, r *http.Request) {
	oauthState := generateStateOauthCookie(w)
	u := g.oauthConfig.AuthCodeURL(oauthState)
	http.Redirect(w, r, u, http.StatusFound)
}

// HandleCallback finishes the flow. A missing or mismatched state is a bad
// request; any later failure redirects to FailureURL.
func (g *GoogleOAuth2) HandleCallback(w http.ResponseWriter, r *http.Request) {
	oauthState, _ := r.Cookie(stateCookieName)
	if oauthState == nil {
		log.Println("oauth state cookie is missing")
		http.Error(w, "missing oauth state", http.StatusBadRequest)
		return
	}
	if r.FormValue("state") != oauthState.Value {
		http.SetCookie(w, &http.Cookie{
			Name:   stateCookieName,
			MaxAge: 0,
		})
		http.Error(w, "invalid oauth state", http.StatusBadRequest)
		return
	}

	code := r.FormValue("code")
	token, err := g.oauthConfig.Exchange(context.Background(), code)
	if err != nil {
		log.Println("code exchange failed: ", err)
		http.Redirect(w, r, g.getFailureURL(), http.StatusFound)
		return
	}

	userInfo, err := g.fetchUserInfo(token)
	if err != nil {
		log.Println("error fetching google user info: ", err)
		http.Redirect(w, r, g.getFailureURL(), http.StatusFound)
		return
	}

	g.HandleUser("google", token, userInfo, w, r)
}

func (g *GoogleOAuth2) fetchUserInfo(token *oauth2.Token) (map[string]any, error) {
	response, err := http.Get(g.userInfoURL + token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed getting user info: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo endpoint returned %d", response.StatusCode)
	}

	contents, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed reading userinfo response: %w", err)
	}

	var userInfo map[string]any
	if err := json.Unmarshal(contents, &userInfo); err != nil {
		return nil, fmt.Errorf("failed decoding userinfo response: %w", err)
	}
	return userInfo, nil
}

func (g *GoogleOAuth2) getFailureURL() string {
	if g.FailureURL != "" {
		return g.FailureURL
	}
	return "/login"
}
