package telltale

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// HandleUserFunc is called after a successful authentication with the id of
// the authenticated user. It is responsible for binding the session and
// sending the response (typically a redirect).
type HandleUserFunc func(userId string, w http.ResponseWriter, r *http.Request)

// LocalAuth handles username/password login and registration.
type LocalAuth struct {
	// Store holds the user accounts. Must be set.
	Store UserStore

	// Handler called after successful login or registration
	HandleUser HandleUserFunc

	// LoginURL is the redirect target when login fails
	LoginURL string

	// RegisterURL is the redirect target when registration fails
	RegisterURL string

	// Form field names
	UsernameField string
	PasswordField string
}

// VerifyCredentials validates a username/password pair and returns the user.
// An unknown username and a wrong password both fail with
// ErrInvalidCredentials so the two cases are indistinguishable to a caller.
func (a *LocalAuth) VerifyCredentials(username, password string) (*User, error) {
	user, err := a.Store.GetUserByUsername(username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Burn a hash comparison anyway so the miss costs the same
			// as a mismatch.
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// dummyHash is a bcrypt hash of an unguessable value, compared against when
// the username does not exist.
var dummyHash = func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("telltale-no-such-user"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return h
}()

// HandleLogin handles login form submissions
func (a *LocalAuth) HandleLogin(w http.ResponseWriter, r *http.Request) {
	username, password, err := a.parseCredentials(r)
	if err != nil {
		http.Redirect(w, r, a.getLoginURL(), http.StatusFound)
		return
	}

	user, err := a.VerifyCredentials(username, password)
	if err != nil {
		if !errors.Is(err, ErrInvalidCredentials) {
			log.Println("error verifying credentials: ", err)
			http.Error(w, "login temporarily unavailable", http.StatusBadGateway)
			return
		}
		http.Redirect(w, r, a.getLoginURL(), http.StatusFound)
		return
	}

	a.HandleUser(user.Id, w, r)
}

// HandleRegister handles registration form submissions. The plaintext
// password is hashed here; the store only ever sees the hash.
func (a *LocalAuth) HandleRegister(w http.ResponseWriter, r *http.Request) {
	username, password, err := a.parseCredentials(r)
	if err != nil {
		http.Redirect(w, r, a.getRegisterURL(), http.StatusFound)
		return
	}

	user, err := a.CreateLocalUser(username, password)
	if err != nil {
		if errors.Is(err, ErrDuplicateUsername) {
			http.Redirect(w, r, a.getRegisterURL(), http.StatusFound)
			return
		}
		log.Println("error creating user: ", err)
		http.Error(w, "registration temporarily unavailable", http.StatusBadGateway)
		return
	}

	a.HandleUser(user.Id, w, r)
}

// CreateLocalUser derives the password hash and creates the account.
func (a *LocalAuth) CreateLocalUser(username, password string) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return a.Store.CreateLocalUser(username, string(hash))
}

func (a *LocalAuth) parseCredentials(r *http.Request) (username, password string, err error) {
	if err := r.ParseForm(); err != nil {
		return "", "", fmt.Errorf("error parsing form")
	}
	username = r.FormValue(a.getUsernameField())
	password = r.FormValue(a.getPasswordField())
	if username == "" || password == "" {
		return "", "", fmt.Errorf("username and password required")
	}
	return username, password, nil
}

func (a *LocalAuth) getLoginURL() string {
	if a.LoginURL != "" {
		return a.LoginURL
	}
	return "/login"
}

func (a *LocalAuth) getRegisterURL() string {
	if a.RegisterURL != "" {
		return a.RegisterURL
	}
	return "/register"
}

func (a *LocalAuth) getUsernameField() string {
	if a.UsernameField != "" {
		return a.UsernameField
	}
	return "username"
}

func (a *LocalAuth) getPasswordField() string {
	if a.PasswordField != "" {
		return a.PasswordField
	}
	return "password"
}
