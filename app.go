package telltale

import (
	"embed"
	"errors"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/gorilla/mux"

	googleoauth "github.com/telltale-app/telltale/oauth2"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed public
var publicFS embed.FS

// App wires the session manager, authentication flows and the secret
// service into the HTTP route table.
type App struct {
	Config  *Config
	Session *scs.SessionManager
	Store   UserStore

	Auth       *Auth
	Local      *LocalAuth
	Google     *googleoauth.GoogleOAuth2
	SecretsSvc *SecretService
	API        *APIAuth
	Middleware *Middleware

	router    *mux.Router
	templates *template.Template
}

// NewApp builds a fully wired application on top of the given store.
func NewApp(cfg *Config, store UserStore) *App {
	session := scs.New()
	session.Lifetime = 24 * time.Hour

	app := &App{
		Config:  cfg,
		Session: session,
		Store:   store,
	}

	app.Auth = &Auth{
		Session:    session,
		Store:      store,
		SuccessURL: "/secrets",
		FailureURL: "/login",
	}
	app.Local = &LocalAuth{
		Store:      store,
		HandleUser: app.Auth.HandleUser,
	}
	app.Google = googleoauth.NewGoogleOAuth2(
		cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleCallbackURL,
		app.Auth.HandleGoogleUser,
	)
	app.SecretsSvc = &SecretService{Store: store}
	app.API = &APIAuth{
		Local:        app.Local,
		SecretsSvc:   app.SecretsSvc,
		JWTSecretKey: cfg.SessionSecret,
		JWTIssuer:    "telltale",
	}
	app.Middleware = &Middleware{
		SessionGetter: func(r *http.Request, param string) any {
			return session.Get(r.Context(), param)
		},
		LoginURL: "/login",
	}

	app.templates = template.Must(template.ParseFS(templatesFS, "templates/*.html"))
	app.setupRoutes()
	return app
}

// Handler returns the root handler, with session loading wrapped around the
// router so every handler sees the request's session state.
func (app *App) Handler() http.Handler {
	return app.Session.LoadAndSave(app.router)
}

func (app *App) setupRoutes() {
	r := mux.NewRouter()

	r.HandleFunc("/", app.handleHome).Methods(http.MethodGet)

	r.HandleFunc("/auth/google", app.Google.HandleBegin).Methods(http.MethodGet)
	r.HandleFunc("/auth/google/secrets", app.Google.HandleCallback).Methods(http.MethodGet)

	r.HandleFunc("/login", app.handleLoginForm).Methods(http.MethodGet)
	r.HandleFunc("/login", app.Local.HandleLogin).Methods(http.MethodPost)
	r.HandleFunc("/register", app.handleRegisterForm).Methods(http.MethodGet)
	r.HandleFunc("/register", app.Local.HandleRegister).Methods(http.MethodPost)
	r.HandleFunc("/logout", app.Auth.HandleLogout).Methods(http.MethodGet)

	r.HandleFunc("/secrets", app.handleSecrets).Methods(http.MethodGet)
	r.Handle("/submit", app.Middleware.EnsureUser(http.HandlerFunc(app.handleSubmitForm))).Methods(http.MethodGet)
	r.Handle("/submit", app.Middleware.EnsureUser(http.HandlerFunc(app.handleSubmit))).Methods(http.MethodPost)
	r.Handle("/submit/delete", app.Middleware.EnsureUser(http.HandlerFunc(app.handleDelete))).Methods(http.MethodPost)

	r.HandleFunc("/api/login", app.API.HandleLogin).Methods(http.MethodPost)
	r.Handle("/api/secrets", app.API.RequireToken(http.HandlerFunc(app.API.HandleListSecrets))).Methods(http.MethodGet)

	assets, err := fs.Sub(publicFS, "public")
	if err != nil {
		panic(err)
	}
	r.PathPrefix("/public/").Handler(http.StripPrefix("/public/", http.FileServer(http.FS(assets))))

	app.router = r
}

func (app *App) handleHome(w http.ResponseWriter, r *http.Request) {
	app.render(w, "home.html", nil)
}

func (app *App) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	app.render(w, "login.html", nil)
}

func (app *App) handleRegisterForm(w http.ResponseWriter, r *http.Request) {
	app.render(w, "register.html", nil)
}

// handleSecrets renders the public secrets feed. It is not guarded: anyone
// may read the (anonymous) secrets.
func (app *App) handleSecrets(w http.ResponseWriter, r *http.Request) {
	secrets, err := app.SecretsSvc.ListPublicSecrets()
	if err != nil {
		log.Println("error listing secrets: ", err)
		http.Error(w, "secrets temporarily unavailable", http.StatusBadGateway)
		return
	}
	app.render(w, "secrets.html", map[string]any{
		"UsersWithSecrets": secrets,
		"LoggedIn":         app.Middleware.IsAuthenticated(r),
	})
}

func (app *App) handleSubmitForm(w http.ResponseWriter, r *http.Request) {
	app.render(w, "submit.html", nil)
}

func (app *App) handleSubmit(w http.ResponseWriter, r *http.Request) {
	userId := app.Middleware.GetLoggedInUserId(r)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	if err := app.SecretsSvc.AppendSecret(userId, r.FormValue("secret")); err != nil {
		app.secretError(w, err)
		return
	}
	http.Redirect(w, r, "/secrets", http.StatusFound)
}

func (app *App) handleDelete(w http.ResponseWriter, r *http.Request) {
	userId := app.Middleware.GetLoggedInUserId(r)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	if err := app.SecretsSvc.RemoveSecret(userId, r.FormValue("secret")); err != nil {
		app.secretError(w, err)
		return
	}
	http.Redirect(w, r, "/submit", http.StatusFound)
}

// secretError maps a secret mutation failure onto a response. Not-found
// conditions are surfaced explicitly rather than swallowed.
func (app *App) secretError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrSecretNotFound):
		http.Error(w, "no such secret", http.StatusNotFound)
	case errors.Is(err, ErrUserNotFound):
		http.Error(w, "no such user", http.StatusNotFound)
	default:
		log.Println("error updating secrets: ", err)
		http.Error(w, "secrets temporarily unavailable", http.StatusBadGateway)
	}
}

func (app *App) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := app.templates.ExecuteTemplate(w, name, data); err != nil {
		log.Println("error rendering template: ", name, err)
	}
}
