package oauth2

import (
	"crypto/rand"
	"encoding/base64"
	"log"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// HandleUserFunc is called by the callback handler with the auth token and
// user info after a successful flow.
type HandleUserFunc func(provider string, token *oauth2.Token, userInfo map[string]any, w http.ResponseWriter, r *http.Request)

const stateCookieName = "oauthstate"

func generateStateOauthCookie(w http.ResponseWriter) string {
	var expiration = time.Now().Add(20 * time.Minute)
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		log.Println("Error generating rand: ", err)
	}
	state := base64.URLEncoding.EncodeToString(b)
	cookie := http.Cookie{Name: stateCookieName, Value: state, Path: "/", Expires: expiration}
	http.SetCookie(w, &cookie)
	return state
}
