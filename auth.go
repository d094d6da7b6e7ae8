package telltale

import (
	"log"
	"log/slog"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"golang.org/x/oauth2"
)

// SessionUserKey is the session variable holding the logged in user id. The
// session token handed to the browser is an opaque scs token; the user id
// only ever lives server-side.
const SessionUserKey = "loggedInUserId"

// Auth binds authenticated users to sessions and tears sessions down on
// logout. The session lifecycle is: anonymous (no bound user) until LogIn,
// authenticated until LogOut, after which the old token is no longer
// resolvable.
type Auth struct {
	Session *scs.SessionManager
	Store   UserStore

	// SuccessURL is where login/registration/OAuth flows land on success.
	// Defaults to "/secrets".
	SuccessURL string

	// FailureURL is where the OAuth callback lands on failure.
	// Defaults to "/login".
	FailureURL string
}

// LogIn promotes the request's session to authenticated for userId. The
// session token is rotated so a pre-login token cannot be replayed into an
// authenticated session.
func (a *Auth) LogIn(userId string, r *http.Request) error {
	if err := a.Session.RenewToken(r.Context()); err != nil {
		return err
	}
	a.Session.Put(r.Context(), SessionUserKey, userId)
	return nil
}

// LogOut destroys the request's session. The old token stops resolving; a
// later request starts a fresh anonymous session.
func (a *Auth) LogOut(r *http.Request) error {
	return a.Session.Destroy(r.Context())
}

// HandleUser implements HandleUserFunc for local login and registration:
// bind the session and redirect to the success page.
func (a *Auth) HandleUser(userId string, w http.ResponseWriter, r *http.Request) {
	if err := a.LogIn(userId, r); err != nil {
		slog.Warn("error binding session", "err", err)
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, a.getSuccessURL(), http.StatusFound)
}

// HandleGoogleUser is called by the OAuth callback with the verified Google
// user info. It resolves (or creates) the local user for the Google account
// id, binds the session and redirects. The redirect is only sent after the
// store operation completed.
func (a *Auth) HandleGoogleUser(provider string, token *oauth2.Token, userInfo map[string]any, w http.ResponseWriter, r *http.Request) {
	googleId, _ := userInfo["id"].(string)
	if googleId == "" {
		log.Println("google userinfo carried no id, redirecting")
		http.Redirect(w, r, a.getFailureURL(), http.StatusFound)
		return
	}

	user, err := a.Store.EnsureGoogleUser(googleId)
	if err != nil {
		log.Println("error resolving google user: ", err)
		http.Redirect(w, r, a.getFailureURL(), http.StatusFound)
		return
	}

	a.HandleUser(user.Id, w, r)
}

// HandleLogout terminates the session and redirects to the landing page.
func (a *Auth) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := a.LogOut(r); err != nil {
		slog.Warn("error destroying session", "err", err)
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (a *Auth) getSuccessURL() string {
	if a.SuccessURL != "" {
		return a.SuccessURL
	}
	return "/secrets"
}

func (a *Auth) getFailureURL() string {
	if a.FailureURL != "" {
		return a.FailureURL
	}
	return "/login"
}
