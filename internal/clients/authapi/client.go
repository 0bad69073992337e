// Package authapi provides a client for the GoTrue style auth backend
package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bobmcallan/tradeonly/internal/common"
	"github.com/bobmcallan/tradeonly/internal/interfaces"
	"github.com/bobmcallan/tradeonly/internal/models"
)

const (
	PathPrefix     = "/auth/v1"
	DefaultTimeout = 10 * time.Second
)

var (
	// ErrSessionInvalid means the stored session is corrupt, expired beyond
	// refresh, or rejected. Callers treat it as signed out.
	ErrSessionInvalid = errors.New("session invalid")
	// ErrNoSession is returned by operations that need a signed-in user
	ErrNoSession = errors.New("no session")
)

var _ interfaces.AuthBackend = (*Client)(nil)

// Client talks to the auth backend and owns the local session
type Client struct {
	baseURL    string
	apiKey     string
	jwtSecret  []byte
	httpClient *http.Client
	store      TokenStore
	publisher  interfaces.AuthEventPublisher
	logger     *common.Logger
	now        func() time.Time
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the auth origin. /auth/v1 is appended.
func WithBaseURL(origin string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(strings.TrimSpace(origin), "/") + PathPrefix
	}
}

// WithAPIKey sets the apikey header value
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithJWTSecret enables HS256 verification of access tokens
func WithJWTSecret(secret string) ClientOption {
	return func(c *Client) {
		if secret != "" {
			c.jwtSecret = []byte(secret)
		}
	}
}

// WithTokenStore sets where the session is kept
func WithTokenStore(store TokenStore) ClientOption {
	return func(c *Client) {
		c.store = store
	}
}

// WithPublisher sets where auth changes are announced
func WithPublisher(p interfaces.AuthEventPublisher) ClientOption {
	return func(c *Client) {
		c.publisher = p
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithClock overrides the time source used for expiry checks
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates an auth client. Without a token store the session is
// kept in memory.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    common.DefaultAPIOrigin + PathPrefix,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		store:      NewMemoryTokenStore(),
		logger:     common.NewSilentLogger(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewClientFromConfig builds the client from the [auth] config section
func NewClientFromConfig(cfg common.AuthConfig, publisher interfaces.AuthEventPublisher, logger *common.Logger) *Client {
	var store TokenStore = NewMemoryTokenStore()
	if cfg.SessionFile != "" {
		store = NewFileTokenStore(cfg.SessionFile)
	}
	return NewClient(
		WithBaseURL(cfg.BaseURL),
		WithAPIKey(cfg.APIKey),
		WithJWTSecret(cfg.JWTSecret),
		WithTimeout(cfg.GetTimeout()),
		WithTokenStore(store),
		WithPublisher(publisher),
		WithLogger(logger),
	)
}

// APIError is a non-2xx response from the auth backend
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("auth API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	RefreshToken string       `json:"refresh_token"`
	User         userResponse `json:"user"`
}

type userResponse struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

func (u userResponse) toUser() *models.User {
	if u.ID == "" {
		return nil
	}
	return &models.User{ID: u.ID, Email: u.Email, DisplayName: displayName(u.UserMetadata)}
}

func displayName(meta map[string]any) string {
	for _, key := range []string{"display_name", "full_name", "name"} {
		if s, ok := meta[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func (c *Client) toSession(tr *tokenResponse) *models.Session {
	s := &models.Session{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		User:         tr.User.toUser(),
	}
	switch {
	case tr.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(tr.ExpiresAt, 0).UTC()
	case tr.ExpiresIn > 0:
		s.ExpiresAt = c.now().Add(time.Duration(tr.ExpiresIn) * time.Second).UTC()
	}
	return s
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, bearer string, body, out any) error {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", common.UserAgent())
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &APIError{StatusCode: resp.StatusCode, Message: authErrorMessage(raw, resp.StatusCode), Endpoint: path}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func authErrorMessage(raw []byte, status int) string {
	var envelope map[string]any
	if json.Unmarshal(raw, &envelope) == nil {
		for _, key := range []string{"error_description", "msg", "message", "error"} {
			if s, ok := envelope[key].(string); ok && s != "" {
				return s
			}
		}
	}
	if s := strings.TrimSpace(string(raw)); s != "" {
		return s
	}
	return http.StatusText(status)
}

func (c *Client) publish(ctx context.Context, t models.AuthEventType, s *models.Session) {
	if c.publisher == nil {
		return
	}
	ev := models.AuthEvent{Type: t, Session: s, At: c.now().UTC()}
	if err := c.publisher.Publish(ctx, ev); err != nil {
		c.logger.Warn().Err(err).Str("type", string(t)).Msg("Failed to publish auth event")
	}
}

// SignInWithPassword exchanges credentials for a session and stores it
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	var tr tokenResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/token", url.Values{"grant_type": {"password"}}, "", body, &tr); err != nil {
		return nil, err
	}
	s := c.toSession(&tr)
	if s.AccessToken == "" || s.User == nil {
		return nil, fmt.Errorf("sign-in returned no session")
	}
	if err := c.store.Save(s); err != nil {
		return nil, err
	}
	c.logger.Info().Str("user_id", s.User.ID).Msg("Signed in")
	c.publish(ctx, models.AuthSignedIn, s)
	return s, nil
}

// SignUp registers a user. When the backend confirms immediately the new
// session is stored and returned with a token; otherwise only User is set.
func (c *Client) SignUp(ctx context.Context, email, password, name string) (*models.Session, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
		"data":     map[string]string{"display_name": name},
	}
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/signup", nil, "", body, &raw); err != nil {
		return nil, err
	}

	var tr tokenResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		return nil, fmt.Errorf("failed to decode signup response: %w", err)
	}
	if tr.AccessToken == "" {
		// pending confirmation: the body is the bare user
		var u userResponse
		if err := json.Unmarshal(raw, &u); err != nil {
			return nil, fmt.Errorf("failed to decode signup user: %w", err)
		}
		return &models.Session{User: u.toUser()}, nil
	}

	s := c.toSession(&tr)
	if err := c.store.Save(s); err != nil {
		return nil, err
	}
	c.publish(ctx, models.AuthSignedIn, s)
	return s, nil
}

// GetSession returns the stored session, refreshing an expired access token.
// No stored session returns (nil, nil).
func (c *Client) GetSession(ctx context.Context) (*models.Session, error) {
	s, err := c.store.Load()
	if err != nil {
		c.invalidate()
		return nil, fmt.Errorf("%w: %v", ErrSessionInvalid, err)
	}
	if s == nil {
		return nil, nil
	}

	user, expired, err := c.parseAccessToken(s.AccessToken)
	if err != nil {
		c.invalidate()
		return nil, fmt.Errorf("%w: %v", ErrSessionInvalid, err)
	}
	if s.User == nil {
		s.User = user
	}
	if !expired && !s.ExpiredAt(c.now()) {
		return s, nil
	}

	refreshed, err := c.refresh(ctx, s.RefreshToken)
	if err != nil {
		c.invalidate()
		return nil, fmt.Errorf("%w: refresh failed: %v", ErrSessionInvalid, err)
	}
	return refreshed, nil
}

func (c *Client) refresh(ctx context.Context, refreshToken string) (*models.Session, error) {
	if refreshToken == "" {
		return nil, errors.New("no refresh token")
	}
	var tr tokenResponse
	body := map[string]string{"refresh_token": refreshToken}
	if err := c.do(ctx, http.MethodPost, "/token", url.Values{"grant_type": {"refresh_token"}}, "", body, &tr); err != nil {
		return nil, err
	}
	s := c.toSession(&tr)
	if s.AccessToken == "" {
		return nil, errors.New("refresh returned no access token")
	}
	if s.User == nil {
		if u, _, err := c.parseAccessToken(s.AccessToken); err == nil {
			s.User = u
		}
	}
	if err := c.store.Save(s); err != nil {
		return nil, err
	}
	c.logger.Debug().Msg("Access token refreshed")
	c.publish(ctx, models.AuthTokenRefreshed, s)
	return s, nil
}

// parseAccessToken reads the user from the token claims and reports whether
// the token is expired. Signatures are verified when a secret is configured.
func (c *Client) parseAccessToken(token string) (*models.User, bool, error) {
	if token == "" {
		return nil, false, errors.New("empty access token")
	}

	claims := jwt.MapClaims{}
	expired := false
	if len(c.jwtSecret) > 0 {
		parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(c.now))
		_, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return c.jwtSecret, nil
		})
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			expired = true
		case err != nil:
			return nil, false, err
		}
	} else {
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			return nil, false, err
		}
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			expired = !c.now().Before(exp.Time)
		}
	}

	sub, _ := claims.GetSubject()
	if sub == "" {
		return nil, false, errors.New("token has no subject")
	}
	email, _ := claims["email"].(string)
	meta, _ := claims["user_metadata"].(map[string]any)
	return &models.User{ID: sub, Email: email, DisplayName: displayName(meta)}, expired, nil
}

func (c *Client) invalidate() {
	if err := c.store.Clear(); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to clear stored session")
	}
}

// SignOut ends the remote session. The stored session is cleared and a
// SIGNED_OUT event published regardless of the remote outcome.
func (c *Client) SignOut(ctx context.Context) error {
	s, _ := c.store.Load()
	defer func() {
		c.invalidate()
		// ctx may already be done when the remote call timed out
		c.publish(context.WithoutCancel(ctx), models.AuthSignedOut, nil)
	}()

	if s == nil || s.AccessToken == "" {
		return nil
	}
	if err := c.do(ctx, http.MethodPost, "/logout", nil, s.AccessToken, nil, nil); err != nil {
		return fmt.Errorf("remote sign-out failed: %w", err)
	}
	return nil
}

// GetUser fetches the signed-in user from the backend
func (c *Client) GetUser(ctx context.Context) (*models.User, error) {
	s, err := c.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrNoSession
	}
	var u userResponse
	if err := c.do(ctx, http.MethodGet, "/user", nil, s.AccessToken, nil, &u); err != nil {
		return nil, err
	}
	return u.toUser(), nil
}
