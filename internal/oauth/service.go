// Package oauth implements the PKCE and device-code OAuth flows that connect a user to
// an AI provider's OAuth-backed chat backend (OpenAI Codex, Google, Anthropic), and the
// at-rest encryption of the resulting tokens.
package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/hyperjump/labnoted/internal/ai"
	"github.com/hyperjump/labnoted/internal/apperr"
	"github.com/hyperjump/labnoted/internal/config"
	"github.com/hyperjump/labnoted/internal/models"
	"github.com/hyperjump/labnoted/internal/storage"
)

const pendingStateTTL = 10 * time.Minute

// pendingAuth is the short-lived record kept between BuildAuthorizeURL and ExchangeCode.
type pendingAuth struct {
	userHandle string
	provider   string
	verifier   string
	expiresAt  time.Time
}

// AuthorizeResult is returned by BuildAuthorizeURL.
type AuthorizeResult struct {
	AuthorizationURL string
	State            string
}

// StatusResult describes a user's connection to a provider.
type StatusResult struct {
	Connected bool
	Provider  string
	Email     string
	ExpiresAt *time.Time
}

// ExchangeResult is returned by ExchangeCode.
type ExchangeResult struct {
	Connected bool
	Provider  string
	Email     string
}

// devicePending is a device-authorization grant awaiting completion, tracked between
// StartDeviceFlow and PollDeviceTokenByCode.
type devicePending struct {
	provider   string
	userHandle string
	auth       *DeviceAuthResult
	expiresAt  time.Time
}

// Service implements the OAuth connect/status/disconnect operations behind §6's
// /oauth/{provider}/* endpoints.
type Service struct {
	cfg    *config.OAuthConfig
	store  storage.Storage
	cipher *tokenCipher

	mu      sync.Mutex
	pending map[string]pendingAuth

	deviceMu sync.Mutex
	device   map[string]*devicePending
}

// NewService builds the OAuth service from the configured per-provider client settings
// and the token encryption key (empty key = plaintext dev mode).
func NewService(cfg *config.OAuthConfig, store storage.Storage) (*Service, error) {
	c, err := newTokenCipher(cfg.TokenEncryptionKey)
	if err != nil {
		return nil, err
	}
	return &Service{
		cfg:     cfg,
		store:   store,
		cipher:  c,
		pending: make(map[string]pendingAuth),
		device:  make(map[string]*devicePending),
	}, nil
}

// ConfigStatus reports whether provider has OAuth client credentials configured, and
// which authorization mode it uses ("device" when a device-authorization endpoint is
// configured, "pkce" otherwise). Returns (false, "") for an unconfigured provider.
func (s *Service) ConfigStatus(provider string) (configured bool, authMode string) {
	pc, ok := s.cfg.Providers[provider]
	if !ok || pc.ClientID == "" {
		return false, ""
	}
	if pc.DeviceAuthURL != "" {
		return true, "device"
	}
	return true, "pkce"
}

func (s *Service) providerConfig(provider string) (config.OAuthProvider, error) {
	pc, ok := s.cfg.Providers[provider]
	if !ok {
		return config.OAuthProvider{}, apperr.InvalidInput("unsupported oauth provider: %s", provider)
	}
	return pc, nil
}

func (s *Service) oauth2Config(pc config.OAuthProvider) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     pc.ClientID,
		ClientSecret: pc.ClientSecret,
		RedirectURL:  pc.RedirectURI,
		Scopes:       pc.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:       pc.AuthURL,
			TokenURL:      pc.TokenURL,
			DeviceAuthURL: pc.DeviceAuthURL,
		},
	}
}

func (s *Service) gc() {
	now := time.Now()
	for k, v := range s.pending {
		if now.After(v.expiresAt) {
			delete(s.pending, k)
		}
	}
}

// BuildAuthorizeURL generates a PKCE verifier/challenge and state, stashes them keyed by
// state, and returns the provider's authorization URL.
func (s *Service) BuildAuthorizeURL(ctx context.Context, provider, userHandle string) (*AuthorizeResult, error) {
	pc, err := s.providerConfig(provider)
	if err != nil {
		return nil, err
	}

	verifier, err := generateVerifier()
	if err != nil {
		return nil, apperr.Internal(err)
	}
	state, err := generateState()
	if err != nil {
		return nil, apperr.Internal(err)
	}
	challenge := challengeFromVerifier(verifier)

	s.mu.Lock()
	s.gc()
	s.pending[state] = pendingAuth{
		userHandle: userHandle,
		provider:   provider,
		verifier:   verifier,
		expiresAt:  time.Now().Add(pendingStateTTL),
	}
	s.mu.Unlock()

	oc := s.oauth2Config(pc)
	url := oc.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", challenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
	return &AuthorizeResult{AuthorizationURL: url, State: state}, nil
}

// ExchangeCode completes the flow: looks up the pending state, exchanges the code for
// tokens, fetches identity where possible, encrypts and persists the record.
func (s *Service) ExchangeCode(ctx context.Context, provider, code, state string) (*ExchangeResult, error) {
	s.mu.Lock()
	s.gc()
	pending, ok := s.pending[state]
	if ok {
		delete(s.pending, state)
	}
	s.mu.Unlock()

	if !ok {
		return nil, apperr.InvalidInput("unknown or expired oauth state")
	}
	if pending.provider != provider {
		return nil, apperr.InvalidInput("state does not match provider")
	}

	pc, err := s.providerConfig(provider)
	if err != nil {
		return nil, err
	}
	oc := s.oauth2Config(pc)

	token, err := oc.Exchange(ctx, code, oauth2.SetAuthURLParam("code_verifier", pending.verifier))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindProviderFailure, "oauth code exchange failed", err)
	}

	email := fetchEmail(ctx, oc, token, provider)

	if err := s.persistToken(ctx, pending.userHandle, provider, token, email, ""); err != nil {
		return nil, err
	}

	return &ExchangeResult{Connected: true, Provider: provider, Email: email}, nil
}

func (s *Service) persistToken(ctx context.Context, userHandle, provider string, token *oauth2.Token, email, accountID string) error {
	encAccess, err := s.cipher.Encrypt(token.AccessToken)
	if err != nil {
		return apperr.Internal(err)
	}
	encRefresh, err := s.cipher.Encrypt(token.RefreshToken)
	if err != nil {
		return apperr.Internal(err)
	}

	rec := &models.OAuthTokenRecord{
		UserHandle:   userHandle,
		Provider:     provider,
		AccessToken:  encAccess,
		RefreshToken: encRefresh,
		Email:        email,
		AccountID:    accountID,
	}
	if !token.Expiry.IsZero() {
		rec.ExpiresAt = &token.Expiry
	}
	if err := s.store.UpsertOAuthToken(ctx, rec); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// userInfoEndpoints maps provider name to the identity endpoint used after token
// exchange, for providers that expose one.
var userInfoEndpoints = map[string]string{
	"google": "https://www.googleapis.com/oauth2/v3/userinfo",
}

func fetchEmail(ctx context.Context, oc *oauth2.Config, token *oauth2.Token, provider string) string {
	endpoint, ok := userInfoEndpoints[provider]
	if !ok {
		return ""
	}
	client := oc.Client(ctx, token)
	resp, err := client.Get(endpoint)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}
	var info struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return ""
	}
	return info.Email
}

// Status reports whether userHandle has a connected token for provider.
func (s *Service) Status(ctx context.Context, userHandle, provider string) (*StatusResult, error) {
	rec, err := s.store.GetOAuthToken(ctx, userHandle, provider)
	if err != nil {
		return &StatusResult{Connected: false, Provider: provider}, nil
	}
	return &StatusResult{Connected: true, Provider: provider, Email: rec.Email, ExpiresAt: rec.ExpiresAt}, nil
}

// DisconnectResult is returned by Revoke.
type DisconnectResult struct {
	Disconnected bool
}

// Revoke deletes the stored token record.
func (s *Service) Revoke(ctx context.Context, userHandle, provider string) (*DisconnectResult, error) {
	if err := s.store.DeleteOAuthToken(ctx, userHandle, provider); err != nil {
		return nil, apperr.Internal(err)
	}
	return &DisconnectResult{Disconnected: true}, nil
}

// DecryptedToken returns userHandle's stored access token for provider, decrypted.
func (s *Service) DecryptedToken(ctx context.Context, userHandle, provider string) (string, string, error) {
	rec, err := s.store.GetOAuthToken(ctx, userHandle, provider)
	if err != nil {
		return "", "", apperr.NotFound("no stored oauth token for %s/%s", userHandle, provider)
	}
	access, err := s.cipher.Decrypt(rec.AccessToken)
	if err != nil {
		return "", "", apperr.Internal(err)
	}
	return access, rec.AccountID, nil
}

// DeviceAuthResult is returned by StartDeviceFlow.
type DeviceAuthResult struct {
	VerificationURI string
	UserCode        string
	DeviceCode      string
	ExpiresIn       int
	Interval        int
}

// StartDeviceFlow begins the device-authorization grant for headless CLI-style login,
// and remembers the pending request (keyed by device code) for a later
// PollDeviceTokenByCode call.
func (s *Service) StartDeviceFlow(ctx context.Context, provider, userHandle string) (*DeviceAuthResult, error) {
	pc, err := s.providerConfig(provider)
	if err != nil {
		return nil, err
	}
	oc := s.oauth2Config(pc)

	resp, err := oc.DeviceAuth(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindProviderFailure, "device authorization request failed", err)
	}
	result := &DeviceAuthResult{
		VerificationURI: resp.VerificationURI,
		UserCode:        resp.UserCode,
		DeviceCode:      resp.DeviceCode,
		ExpiresIn:       int(time.Until(resp.Expiry).Seconds()),
		Interval:        int(resp.Interval),
	}

	s.deviceMu.Lock()
	s.device[result.DeviceCode] = &devicePending{
		provider:   provider,
		userHandle: userHandle,
		auth:       result,
		expiresAt:  resp.Expiry,
	}
	s.deviceMu.Unlock()

	return result, nil
}

// PollDeviceToken polls until the user completes the out-of-band approval or the device
// code expires, then persists the resulting token.
func (s *Service) PollDeviceToken(ctx context.Context, provider, userHandle string, auth *DeviceAuthResult) (*ExchangeResult, error) {
	pc, err := s.providerConfig(provider)
	if err != nil {
		return nil, err
	}
	oc := s.oauth2Config(pc)

	deviceAuth := &oauth2.DeviceAuthResponse{
		DeviceCode:      auth.DeviceCode,
		UserCode:        auth.UserCode,
		VerificationURI: auth.VerificationURI,
		Expiry:          time.Now().Add(time.Duration(auth.ExpiresIn) * time.Second),
		Interval:        int64(auth.Interval),
	}

	token, err := oc.DeviceAccessToken(ctx, deviceAuth)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindProviderFailure, "device token poll failed", err)
	}

	accountID := ""
	if provider == "openai-codex" {
		if id, err := ai.ExtractAccountID(token.AccessToken); err == nil {
			accountID = id
		}
	}
	if err := s.persistToken(ctx, userHandle, provider, token, "", accountID); err != nil {
		return nil, err
	}
	return &ExchangeResult{Connected: true, Provider: provider}, nil
}

// PollDeviceTokenByCode looks up the pending device authorization started by
// StartDeviceFlow and polls it to completion. The pending record is removed whether
// the poll succeeds or fails, since x/oauth2's DeviceAccessToken already blocks for the
// full poll loop (respecting the grant's interval) rather than returning a "still
// pending" status per call.
func (s *Service) PollDeviceTokenByCode(ctx context.Context, deviceCode string) (*ExchangeResult, error) {
	s.deviceMu.Lock()
	pending, ok := s.device[deviceCode]
	if ok {
		delete(s.device, deviceCode)
	}
	s.deviceMu.Unlock()

	if !ok {
		return nil, apperr.InvalidInput("unknown or already-completed device code")
	}
	if time.Now().After(pending.expiresAt) {
		return nil, apperr.InvalidInput("device code expired")
	}

	return s.PollDeviceToken(ctx, pending.provider, pending.userHandle, pending.auth)
}
