package twitch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/waddlebot/core/pkg/storage"
)

// DefaultRefreshBuffer is how far ahead of expiry a token is refreshed,
// grounded on the action pusher's token manager (get_token buffer_seconds).
const DefaultRefreshBuffer = 300 * time.Second

const tokenURL = "https://id.twitch.tv/oauth2/token"

// TokenManager keeps one broadcaster's OAuth access token fresh, refreshing
// it against Twitch's token endpoint ahead of expiry.
type TokenManager struct {
	repo         *storage.TokenRepo
	httpClient   *http.Client
	tokenURL     string
	clientID     string
	clientSecret string
	buffer       time.Duration
	log          *slog.Logger
}

// NewTokenManager builds a TokenManager for one app registration.
func NewTokenManager(repo *storage.TokenRepo, clientID, clientSecret string, log *slog.Logger) *TokenManager {
	if log == nil {
		log = slog.Default()
	}
	return &TokenManager{
		repo:         repo,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		buffer:       DefaultRefreshBuffer,
		log:          log,
	}
}

// AccessToken returns a valid access token for accountID, refreshing it
// first if it expires within the refresh buffer.
func (m *TokenManager) AccessToken(ctx context.Context, accountID string) (string, error) {
	tok, err := m.repo.Get(ctx, "twitch", accountID)
	if err != nil {
		return "", fmt.Errorf("receivers/twitch: no stored token for %s: %w", accountID, err)
	}

	if time.Until(tok.ExpiresAt) > m.buffer {
		return tok.AccessToken, nil
	}

	m.log.InfoContext(ctx, "refreshing twitch token", "account_id", accountID)
	refreshed, err := m.refresh(ctx, tok)
	if err != nil {
		return "", err
	}
	if err := m.repo.Upsert(ctx, refreshed); err != nil {
		return "", fmt.Errorf("receivers/twitch: store refreshed token for %s: %w", accountID, err)
	}
	return refreshed.AccessToken, nil
}

func (m *TokenManager) refresh(ctx context.Context, tok storage.OAuthToken) (storage.OAuthToken, error) {
	form := url.Values{
		"client_id":     {m.clientID},
		"client_secret": {m.clientSecret},
		"grant_type":    {"refresh_token"},
		"refresh_token": {tok.RefreshToken},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenURL, nil)
	if err != nil {
		return storage.OAuthToken{}, err
	}
	req.URL.RawQuery = form.Encode()

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return storage.OAuthToken{}, fmt.Errorf("receivers/twitch: refresh request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return storage.OAuthToken{}, fmt.Errorf("receivers/twitch: refresh failed: status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken  string   `json:"access_token"`
		RefreshToken string   `json:"refresh_token"`
		ExpiresIn    int64    `json:"expires_in"`
		Scope        []string `json:"scope"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return storage.OAuthToken{}, fmt.Errorf("receivers/twitch: decode refresh response: %w", err)
	}

	next := tok
	next.AccessToken = body.AccessToken
	if body.RefreshToken != "" {
		next.RefreshToken = body.RefreshToken
	}
	next.ExpiresAt = time.Now().Add(time.Duration(body.ExpiresIn) * time.Second)
	next.Scopes = body.Scope
	return next, nil
}

