package telltale

import (
	"context"
	"net/http"
)

type userParamNameKey string

// Middleware resolves the request's session to a logged-in user id and
// gates handlers that require an authenticated user.
type Middleware struct {
	// SessionGetter reads a value from the request's session state.
	SessionGetter func(r *http.Request, param string) any

	// UserParamName is the session variable holding the user id.
	// Defaults to "loggedInUserId".
	UserParamName string

	// LoginURL is where unauthenticated requests to guarded routes are
	// redirected. Defaults to "/login".
	LoginURL string
}

// GetLoggedInUserId returns the id of the logged in user for the current
// request, or "" for an anonymous session.
func (m *Middleware) GetLoggedInUserId(r *http.Request) string {
	if v := r.Context().Value(userParamNameKey(m.getUserParamName())); v != nil {
		if userId, ok := v.(string); ok && userId != "" {
			return userId
		}
	}
	return m.getLoggedInUserId(r)
}

// IsAuthenticated reports whether the request's session is bound to a user.
func (m *Middleware) IsAuthenticated(r *http.Request) bool {
	return m.GetLoggedInUserId(r) != ""
}

// ExtractUser loads the logged in user id (if any) into the request context
// for downstream handlers. It never redirects; use EnsureUser to enforce a
// login.
func (m *Middleware) ExtractUser(next http.Handler) http.Handler {
	return http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			userId := m.getLoggedInUserId(r)
			next.ServeHTTP(w, m.setLoggedInUserId(userId, r))
		},
	)
}

// EnsureUser guards a handler: authenticated requests pass through with the
// user id in context, anonymous ones are redirected to the login page.
func (m *Middleware) EnsureUser(next http.Handler) http.Handler {
	return http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			userId := m.getLoggedInUserId(r)
			if userId == "" {
				http.Redirect(w, r, m.getLoginURL(), http.StatusFound)
				return
			}
			next.ServeHTTP(w, m.setLoggedInUserId(userId, r))
		},
	)
}

// Gets the logged in user from the session
func (m *Middleware) getLoggedInUserId(r *http.Request) string {
	out := m.SessionGetter(r, m.getUserParamName())
	if out == nil {
		return ""
	}
	userId, _ := out.(string)
	return userId
}

// Set the logged in user id into the request's context so it is available
// to all handlers downstream.
func (m *Middleware) setLoggedInUserId(userId string, r *http.Request) *http.Request {
	ctx := context.WithValue(r.Context(), userParamNameKey(m.getUserParamName()), userId)
	return r.WithContext(ctx)
}

// Defaults are resolved on read; request-path methods never mutate the
// Middleware, so it is safe to share across handlers.
func (m *Middleware) getUserParamName() string {
	if m.UserParamName != "" {
		return m.UserParamName
	}
	return "loggedInUserId"
}

func (m *Middleware) getLoginURL() string {
	if m.LoginURL != "" {
		return m.LoginURL
	}
	return "/login"
}
