package fakeapi

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"
)

type fakeUser struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash []byte
}

type authService struct {
	mu      sync.Mutex
	secret  []byte
	ttl     time.Duration
	now     func() time.Time
	users   map[string]*fakeUser // by email
	refresh map[string]string    // refresh token -> user id
	revoked map[string]bool      // user id -> signed out
}

func newAuthService(secret string) *authService {
	return &authService{
		secret:  []byte(secret),
		ttl:     time.Hour,
		now:     time.Now,
		users:   map[string]*fakeUser{},
		refresh: map[string]string{},
		revoked: map[string]bool{},
	}
}

// AddUser registers a user directly, bypassing /signup
func (s *Server) AddUser(email, password, name string) (string, error) {
	return s.auth.addUser(email, password, name)
}

// IssueToken signs an access token for a registered user with a custom expiry
func (s *Server) IssueToken(email string, expiresAt time.Time) (string, error) {
	s.auth.mu.Lock()
	u, ok := s.auth.users[strings.ToLower(email)]
	s.auth.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("unknown user %s", email)
	}
	return s.auth.sign(u, expiresAt)
}

// IssueRefreshToken creates a refresh token for a registered user
func (s *Server) IssueRefreshToken(email string) (string, error) {
	s.auth.mu.Lock()
	defer s.auth.mu.Unlock()
	u, ok := s.auth.users[strings.ToLower(email)]
	if !ok {
		return "", fmt.Errorf("unknown user %s", email)
	}
	return s.auth.newRefreshLocked(u.ID), nil
}

func (a *authService) addUser(email, password, name string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || len(password) < 6 {
		return "", fmt.Errorf("email and a password of at least 6 characters are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.users[email]; exists {
		return "", fmt.Errorf("user already registered")
	}
	u := &fakeUser{ID: uuid.NewString(), Email: email, DisplayName: name, PasswordHash: hash}
	a.users[email] = u
	return u.ID, nil
}

func (a *authService) sign(u *fakeUser, expiresAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub":           u.ID,
		"email":         u.Email,
		"role":          "authenticated",
		"user_metadata": map[string]any{"display_name": u.DisplayName},
		"iat":           a.now().Unix(),
		"exp":           expiresAt.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a *authService) newRefreshLocked(userID string) string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	tok := hex.EncodeToString(b)
	a.refresh[tok] = userID
	return tok
}

func (a *authService) userByID(id string) *fakeUser {
	for _, u := range a.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func userJSON(u *fakeUser) map[string]any {
	return map[string]any{
		"id":            u.ID,
		"email":         u.Email,
		"user_metadata": map[string]any{"display_name": u.DisplayName},
	}
}

func (a *authService) tokenResponse(u *fakeUser) (map[string]any, error) {
	exp := a.now().Add(a.ttl)
	access, err := a.sign(u, exp)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	delete(a.revoked, u.ID)
	refresh := a.newRefreshLocked(u.ID)
	a.mu.Unlock()
	return map[string]any{
		"access_token":  access,
		"token_type":    "bearer",
		"expires_in":    int64(a.ttl.Seconds()),
		"expires_at":    exp.Unix(),
		"refresh_token": refresh,
		"user":          userJSON(u),
	}, nil
}

func (s *Server) registerAuthRoutes(r *mux.Router) {
	r.HandleFunc("/token", s.handleToken).Methods(http.MethodPost)
	r.HandleFunc("/signup", s.handleSignup).Methods(http.MethodPost)
	r.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)
	r.HandleFunc("/user", s.handleUser).Methods(http.MethodGet)
}

func writeAuthError(w http.ResponseWriter, status int, code, desc string) {
	writeJSON(w, status, map[string]string{"error": code, "error_description": desc})
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email        string `json:"email"`
		Password     string `json:"password"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeAuthError(w, http.StatusBadRequest, "invalid_request", "malformed body")
		return
	}

	a := s.auth
	var u *fakeUser
	switch r.URL.Query().Get("grant_type") {
	case "password":
		a.mu.Lock()
		u = a.users[strings.ToLower(strings.TrimSpace(body.Email))]
		a.mu.Unlock()
		if u == nil || bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(body.Password)) != nil {
			writeAuthError(w, http.StatusBadRequest, "invalid_grant", "Invalid login credentials")
			return
		}
	case "refresh_token":
		a.mu.Lock()
		id, ok := a.refresh[body.RefreshToken]
		if ok {
			delete(a.refresh, body.RefreshToken)
			u = a.userByID(id)
		}
		a.mu.Unlock()
		if u == nil {
			writeAuthError(w, http.StatusBadRequest, "invalid_grant", "Invalid Refresh Token")
			return
		}
	default:
		writeAuthError(w, http.StatusBadRequest, "unsupported_grant_type", "grant_type must be password or refresh_token")
		return
	}

	resp, err := a.tokenResponse(u)
	if err != nil {
		writeAuthError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string            `json:"email"`
		Password string            `json:"password"`
		Data     map[string]string `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeAuthError(w, http.StatusBadRequest, "invalid_request", "malformed body")
		return
	}
	if _, err := s.auth.addUser(body.Email, body.Password, body.Data["display_name"]); err != nil {
		writeAuthError(w, http.StatusUnprocessableEntity, "signup_failed", err.Error())
		return
	}

	s.auth.mu.Lock()
	u := s.auth.users[strings.ToLower(strings.TrimSpace(body.Email))]
	s.auth.mu.Unlock()

	resp, err := s.auth.tokenResponse(u)
	if err != nil {
		writeAuthError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// bearerUser validates the Authorization header and returns its user
func (s *Server) bearerUser(r *http.Request) (*fakeUser, error) {
	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if raw == "" {
		return nil, fmt.Errorf("missing bearer token")
	}
	a := s.auth
	claims := jwt.MapClaims{}
	parser := jwt.NewParser(jwt.WithTimeFunc(a.now))
	_, err := parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}
	sub, _ := claims.GetSubject()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.revoked[sub] {
		return nil, fmt.Errorf("session revoked")
	}
	u := a.userByID(sub)
	if u == nil {
		return nil, fmt.Errorf("user not found")
	}
	return u, nil
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	u, err := s.bearerUser(r)
	if err != nil {
		writeAuthError(w, http.StatusUnauthorized, "invalid_token", err.Error())
		return
	}
	a := s.auth
	a.mu.Lock()
	a.revoked[u.ID] = true
	for tok, id := range a.refresh {
		if id == u.ID {
			delete(a.refresh, tok)
		}
	}
	a.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.bearerUser(r)
	if err != nil {
		writeAuthError(w, http.StatusUnauthorized, "invalid_token", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, userJSON(u))
}
