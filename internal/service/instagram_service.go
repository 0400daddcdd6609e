package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	config "github.com/adcraft/postpilot/configs"
	"github.com/adcraft/postpilot/internal/models"
	"github.com/adcraft/postpilot/internal/repository"
	"github.com/adcraft/postpilot/internal/transfer"
	"github.com/adcraft/postpilot/pkg/utils"
)

const (
	defaultGraphURL     = "https://graph.instagram.com/v21.0"
	defaultGraphRootURL = "https://graph.instagram.com"

	containerStatusInProgress = "IN_PROGRESS"
	containerStatusFinished   = "FINISHED"
	containerStatusPublished  = "PUBLISHED"
	containerStatusError      = "ERROR"
	containerStatusExpired    = "EXPIRED"
)

// InstagramService wraps the platform's three-step publish protocol
// (create container, poll status, publish container) plus the account
// connect and token refresh flows.
type InstagramService interface {
	PublishMedia(ctx context.Context, assetURL, caption, subtype string, acc *models.SocialAccount) (string, error)
	InstagramCallback(ctx context.Context, code string, userID, orgID int64) error
	RefreshInstagramToken(ctx context.Context, accountID int64, refreshToken string) error
}

type instagramService struct {
	cfg    config.Config
	sa     repository.SocialAccountRepository
	client *http.Client

	graphURL       string
	graphRootURL   string
	pollInterval   time.Duration
	maxStatusPolls int
}

func NewInstagramService(cfg config.Config, sa repository.SocialAccountRepository) InstagramService {
	return &instagramService{
		cfg:            cfg,
		sa:             sa,
		client:         http.DefaultClient,
		graphURL:       defaultGraphURL,
		graphRootURL:   defaultGraphRootURL,
		pollInterval:   time.Second,
		maxStatusPolls: 60,
	}
}

// InstagramOAuthConfig builds the OAuth2 config for the account connect
// flow. Instagram wants client credentials in the POST body, not basic
// auth.
func InstagramOAuthConfig(cfg config.Config) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.InstagramClientID,
		ClientSecret: cfg.InstagramClientSecret,
		RedirectURL:  cfg.InstagramRedirectURI,
		Scopes:       []string{"instagram_business_basic", "instagram_business_content_publish"},
		Endpoint: oauth2.Endpoint{
			AuthURL:   "https://www.instagram.com/oauth/authorize",
			TokenURL:  "https://api.instagram.com/oauth/access_token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// PublishMedia runs the full protocol and returns the published media
// id. Each returned error is one of the sentinel protocol errors so the
// orchestrator can persist a meaningful failure reason.
func (s *instagramService) PublishMedia(ctx context.Context, assetURL, caption, subtype string, acc *models.SocialAccount) (string, error) {
	accessToken, err := utils.Decrypt(acc.AccessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return "", fmt.Errorf("decrypting access token: %w", err)
	}

	containerID, err := s.createContainer(ctx, assetURL, caption, subtype, acc.AccountID, accessToken)
	if err != nil {
		return "", err
	}

	if err := s.waitForContainer(ctx, containerID, accessToken); err != nil {
		return "", err
	}

	mediaID, err := s.publishContainer(ctx, acc.AccountID, containerID, accessToken)
	if err != nil {
		return "", err
	}

	return mediaID, nil
}

// createContainer submits the asset and returns the opaque container
// id. The payload shape depends on the content subtype: stories carry
// no caption, reels submit a video URL.
func (s *instagramService) createContainer(ctx context.Context, assetURL, caption, subtype, igUserID, accessToken string) (string, error) {
	payload := map[string]interface{}{
		"access_token": accessToken,
	}

	switch subtype {
	case models.SubtypePhoto:
		payload["image_url"] = assetURL
		payload["caption"] = caption
	case models.SubtypeReel:
		payload["video_url"] = assetURL
		payload["media_type"] = "REELS"
		payload["caption"] = caption
	case models.SubtypeStory:
		payload["image_url"] = assetURL
		payload["media_type"] = "STORIES"
	default:
		return "", fmt.Errorf("unknown content subtype %q", subtype)
	}

	url := fmt.Sprintf("%s/%s/media", s.graphURL, igUserID)
	body, err := s.postJSON(ctx, url, payload)
	if err != nil {
		return "", err
	}

	containerID, ok := extractField(body, "id", "media_id", "container_id")
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrContainerCreationFailed, truncate(body))
	}

	return containerID, nil
}

// waitForContainer polls the container status once per pollInterval
// until it leaves IN_PROGRESS, bounded to maxStatusPolls attempts.
// Transient polling errors are logged and retried inside the bound;
// they never consume the orchestrator's retry budget.
func (s *instagramService) waitForContainer(ctx context.Context, containerID, accessToken string) error {
	for attempt := 0; attempt < s.maxStatusPolls; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.pollInterval):
			}
		}

		status, err := s.containerStatus(ctx, containerID, accessToken)
		if err != nil {
			slog.Info("container status poll failed, retrying", "container_id", containerID, "err", err.Error())
			continue
		}

		switch status {
		case containerStatusFinished, containerStatusPublished:
			return nil
		case containerStatusError, containerStatusExpired:
			return fmt.Errorf("%w: container %s reported %s", ErrContainerRejected, containerID, status)
		case containerStatusInProgress:
		default:
			slog.Info("unrecognized container status, treating as in progress", "status", status)
		}
	}

	return fmt.Errorf("%w: container %s after %d polls", ErrPublishTimeout, containerID, s.maxStatusPolls)
}

func (s *instagramService) containerStatus(ctx context.Context, containerID, accessToken string) (string, error) {
	url := fmt.Sprintf("%s/%s?fields=status_code&access_token=%s", s.graphURL, containerID, accessToken)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status poll returned %d: %s", resp.StatusCode, truncate(respBody))
	}

	var status transfer.InstagramContainerStatus
	if err := json.Unmarshal(respBody, &status); err != nil {
		return "", err
	}

	return status.StatusCode, nil
}

func (s *instagramService) publishContainer(ctx context.Context, igUserID, containerID, accessToken string) (string, error) {
	url := fmt.Sprintf("%s/%s/media_publish", s.graphURL, igUserID)
	payload := map[string]interface{}{
		"creation_id":  containerID,
		"access_token": accessToken,
	}

	body, err := s.postJSON(ctx, url, payload)
	if err != nil {
		return "", err
	}

	mediaID, ok := extractField(body, "id", "media_id")
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrPublishRejected, truncate(body))
	}

	return mediaID, nil
}

// postJSON performs one platform call and classifies the transport
// errors the platform is known to surface (429, 401) into the
// orchestrator's taxonomy.
func (s *instagramService) postJSON(ctx context.Context, url string, payload map[string]interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("error marshalling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return respBody, nil
	case http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: %s", ErrRateLimited, platformErrorMessage(respBody))
	case http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: %s", ErrAuthFailed, platformErrorMessage(respBody))
	default:
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, platformErrorMessage(respBody))
	}
}

// extractField probes a loosely structured platform response for the
// first candidate field carrying a non-empty id. The platform's
// success-field naming varies by call, so callers pass the plausible
// names in preference order.
func extractField(body []byte, keys ...string) (string, bool) {
	dec := json.NewDecoder(bytes.NewReader(body))
	// Ids can exceed float64 precision; keep numbers verbatim.
	dec.UseNumber()

	var payload map[string]interface{}
	if err := dec.Decode(&payload); err != nil {
		return "", false
	}

	for _, key := range keys {
		switch v := payload[key].(type) {
		case string:
			if v != "" {
				return v, true
			}
		case json.Number:
			return v.String(), true
		}
	}
	return "", false
}

func platformErrorMessage(body []byte) string {
	var errResp transfer.InstagramErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		return errResp.Error.Message
	}
	return string(truncate(body))
}

func truncate(body []byte) []byte {
	const max = 256
	if len(body) > max {
		return body[:max]
	}
	return body
}

func (s *instagramService) InstagramCallback(ctx context.Context, code string, userID, orgID int64) error {
	if code == "" {
		err := errors.New("authorization code is empty")
		slog.Info(err.Error())
		return err
	}

	if userID == 0 {
		err := errors.New("user not found")
		slog.Info(err.Error())
		return err
	}

	token, err := s.exchangeCodeForToken(ctx, code)
	if err != nil {
		return err
	}

	userInfo, err := s.getInstagramUserInfo(ctx, token.LongLivedToken)
	if err != nil {
		return err
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(token.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	accountInfo := &models.SocialAccount{
		UserID:          userID,
		Platform:        "instagram",
		AccountID:       userInfo.UserID,
		AccountName:     userInfo.Name,
		AccountUsername: userInfo.Username,
		ProfilePicture:  userInfo.ProfilePicture,
		AccessToken:     encryptedAccessToken,
		RefreshToken:    encryptedAccessToken,
		TokenExpiresAt:  token.ExpiresAt,
	}
	if orgID != 0 {
		accountInfo.OrgID = sql.NullInt64{Int64: orgID, Valid: true}
	}

	_, err = s.sa.Create(ctx, nil, accountInfo)
	if err != nil {
		return err
	}

	return nil
}

func (s *instagramService) exchangeCodeForToken(ctx context.Context, code string) (*transfer.InstagramToken, error) {
	shortLived, err := InstagramOAuthConfig(s.cfg).Exchange(ctx, code)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to get short-lived token: %w", err)
	}

	longLivedToken, expiresAt, err := s.getLongLivedToken(ctx, shortLived.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to get long-lived token: %w", err)
	}

	return &transfer.InstagramToken{
		AccessToken:    longLivedToken,
		LongLivedToken: longLivedToken,
		ExpiresAt:      expiresAt,
	}, nil
}

func (s *instagramService) getLongLivedToken(ctx context.Context, shortLivedToken string) (string, time.Time, error) {
	url := fmt.Sprintf(
		"%s/access_token?grant_type=ig_exchange_token&client_secret=%s&access_token=%s",
		s.graphRootURL,
		s.cfg.InstagramClientSecret,
		shortLivedToken,
	)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", time.Time{}, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return "", time.Time{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", time.Time{}, fmt.Errorf("error response from Instagram: %s (status code: %d)", body, resp.StatusCode)
	}

	var result struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return "", time.Time{}, err
	}

	return result.AccessToken, time.Now().Add(time.Second * time.Duration(result.ExpiresIn)), nil
}

func (s *instagramService) getInstagramUserInfo(ctx context.Context, accessToken string) (*transfer.InstagramUserInfo, error) {
	var userInfo transfer.InstagramUserInfo

	reqUrl := fmt.Sprintf(
		"%s/me?fields=id,username,name,account_type,profile_picture_url&access_token=%s",
		s.graphURL,
		accessToken,
	)

	req, err := http.NewRequestWithContext(ctx, "GET", reqUrl, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return &userInfo, nil
}

func (s *instagramService) RefreshInstagramToken(ctx context.Context, accountID int64, refreshToken string) error {
	decryptedRefreshToken, err := utils.Decrypt(refreshToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	url := fmt.Sprintf(
		"%s/refresh_access_token?grant_type=ig_refresh_token&access_token=%s",
		s.graphRootURL,
		decryptedRefreshToken,
	)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return err
	}

	expiresAt := time.Now().Add(time.Second * time.Duration(result.ExpiresIn))

	encryptedAccessToken, err := utils.Encrypt([]byte(result.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	socialAccount := models.SocialAccount{
		AccessToken:    encryptedAccessToken,
		RefreshToken:   encryptedAccessToken,
		TokenExpiresAt: expiresAt,
	}

	return s.sa.SetToken(ctx, accountID, refreshToken, &socialAccount)
}
