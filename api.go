package telltale

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// APIAuth handles token-based access for programmatic clients: a password
// grant that issues a short-lived JWT access token, and middleware that
// validates Bearer tokens on API routes.
//
// Browser sessions never use these tokens; the session reference stays an
// opaque server-side token. API tokens exist only for clients that
// explicitly ask for one.
type APIAuth struct {
	// Local validates the username/password on the password grant.
	Local *LocalAuth

	// SecretsSvc serves the authenticated secrets endpoint.
	SecretsSvc *SecretService

	// JWT configuration
	JWTSecretKey string
	JWTIssuer    string

	// AccessTokenExpiry defaults to 15 minutes.
	AccessTokenExpiry time.Duration
}

// TokenRequest is the login request body.
type TokenRequest struct {
	GrantType string `json:"grant_type"`
	Username  string `json:"username"`
	Password  string `json:"password"`
}

// TokenResponse is the successful login response body.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// TokenError is an OAuth 2.0 style error response.
type TokenError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

type apiContextKey string

const apiUserIdKey apiContextKey = "api_user_id"

// APIUserId returns the authenticated user id placed in the context by
// RequireToken, or "".
func APIUserId(ctx context.Context) string {
	if v := ctx.Value(apiUserIdKey); v != nil {
		if userId, ok := v.(string); ok {
			return userId
		}
	}
	return ""
}

// HandleLogin handles POST /api/login with the password grant.
func (a *APIAuth) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.errorResponse(w, "invalid_request", "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.errorResponse(w, "invalid_request", "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.GrantType != "password" {
		a.errorResponse(w, "unsupported_grant_type", "Grant type not supported", http.StatusBadRequest)
		return
	}

	user, err := a.Local.VerifyCredentials(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			a.errorResponse(w, "invalid_grant", "Invalid credentials", http.StatusUnauthorized)
			return
		}
		log.Printf("error validating credentials: %v", err)
		a.errorResponse(w, "server_error", "Failed to validate credentials", http.StatusInternalServerError)
		return
	}

	accessToken, expiresIn, err := a.createAccessToken(user.Id)
	if err != nil {
		log.Printf("error creating access token: %v", err)
		a.errorResponse(w, "server_error", "Failed to create token", http.StatusInternalServerError)
		return
	}

	resp := TokenResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   expiresIn,
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	json.NewEncoder(w).Encode(resp)
}

// HandleListSecrets handles GET /api/secrets: the caller's own secrets.
func (a *APIAuth) HandleListSecrets(w http.ResponseWriter, r *http.Request) {
	userId := APIUserId(r.Context())
	if userId == "" {
		a.errorResponse(w, "unauthorized", "Authentication required", http.StatusUnauthorized)
		return
	}

	user, err := a.Local.Store.GetUserById(userId)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			a.errorResponse(w, "not_found", "User not found", http.StatusNotFound)
			return
		}
		log.Printf("error loading user: %v", err)
		a.errorResponse(w, "server_error", "Failed to load secrets", http.StatusInternalServerError)
		return
	}

	secrets := user.Secrets
	if secrets == nil {
		secrets = []string{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(PublicSecrets{UserID: user.Id, Secrets: secrets})
}

// RequireToken validates the Bearer token and puts the user id into the
// request context.
func (a *APIAuth) RequireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userId, err := a.validateRequest(r)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
			a.errorResponse(w, "unauthorized", err.Error(), http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), apiUserIdKey, userId)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *APIAuth) validateRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", fmt.Errorf("missing authorization header")
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", fmt.Errorf("invalid authorization header format")
	}
	return a.ValidateAccessToken(strings.TrimSpace(parts[1]))
}

// createAccessToken creates a signed JWT access token
func (a *APIAuth) createAccessToken(userId string) (string, int64, error) {
	expiry := a.AccessTokenExpiry
	if expiry == 0 {
		expiry = 15 * time.Minute
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  userId,
		"type": "access",
		"iat":  now.Unix(),
		"exp":  now.Add(expiry).Unix(),
	}
	if a.JWTIssuer != "" {
		claims["iss"] = a.JWTIssuer
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(a.JWTSecretKey))
	if err != nil {
		return "", 0, fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, int64(expiry.Seconds()), nil
}

// ValidateAccessToken validates a JWT access token and returns the subject.
func (a *APIAuth) ValidateAccessToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(a.JWTSecretKey), nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("claims is not a map")
	}
	if tokenType, ok := claims["type"].(string); !ok || tokenType != "access" {
		return "", fmt.Errorf("invalid token type")
	}
	if a.JWTIssuer != "" {
		if iss, ok := claims["iss"].(string); !ok || iss != a.JWTIssuer {
			return "", fmt.Errorf("invalid issuer")
		}
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("subject not found")
	}
	return sub, nil
}

// errorResponse sends an OAuth 2.0 compliant error response
func (a *APIAuth) errorResponse(w http.ResponseWriter, errorCode, description string, statusCode int) {
	resp := TokenError{
		Error:            errorCode,
		ErrorDescription: description,
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}
