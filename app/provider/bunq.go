package provider

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const notificationCategoryBunqMeTab = "BUNQME_TAB"

var ErrNoAPIContext = errors.New("bunq api context is not configured")

type BunqConfig struct {
	APIBaseURL        string
	SandboxAPIBaseURL string
	HTTPTimeout       time.Duration
	DeviceDescription string
}

type BunqClient struct {
	cfg    BunqConfig
	client *http.Client
}

func NewBunqClient(cfg BunqConfig) *BunqClient {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.bunq.com"
	}
	if cfg.SandboxAPIBaseURL == "" {
		cfg.SandboxAPIBaseURL = "https://public-api.sandbox.bunq.com"
	}
	if cfg.DeviceDescription == "" {
		cfg.DeviceDescription = "bunq-gateway"
	}

	return &BunqClient{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

// apiContext is the wire shape of the serialized session blob. Everything
// outside this package treats the blob as an opaque string.
type apiContext struct {
	BaseURL      string `json:"base_url"`
	SessionToken string `json:"session_token"`
	UserID       int64  `json:"user_id"`
	ClientKeyPEM string `json:"client_key_pem"`
}

func (c *BunqClient) CreateAPIContext(ctx context.Context, apiKey string, sandbox bool) (string, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return "", errors.New("bunq api key is empty")
	}

	baseURL := c.cfg.APIBaseURL
	if sandbox {
		baseURL = c.cfg.SandboxAPIBaseURL
	}

	clientKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return "", err
	}
	publicDER, err := x509.MarshalPKIXPublicKey(&clientKey.PublicKey)
	if err != nil {
		return "", err
	}
	publicPEM := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: publicDER}))
	privatePEM := string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(clientKey)}))

	installation, err := c.doJSON(ctx, http.MethodPost, baseURL+"/v1/installation", "", map[string]interface{}{
		"client_public_key": publicPEM,
	})
	if err != nil {
		return "", err
	}
	installationToken, err := parseToken(installation)
	if err != nil {
		return "", err
	}

	_, err = c.doJSON(ctx, http.MethodPost, baseURL+"/v1/device-server", installationToken, map[string]interface{}{
		"description":   c.cfg.DeviceDescription,
		"secret":        apiKey,
		"permitted_ips": []string{"*"},
	})
	if err != nil {
		return "", err
	}

	session, err := c.doJSON(ctx, http.MethodPost, baseURL+"/v1/session-server", installationToken, map[string]interface{}{
		"secret": apiKey,
	})
	if err != nil {
		return "", err
	}
	sessionToken, err := parseToken(session)
	if err != nil {
		return "", err
	}
	userID, err := parseSessionUserID(session)
	if err != nil {
		return "", err
	}

	blob, err := json.Marshal(apiContext{
		BaseURL:      baseURL,
		SessionToken: sessionToken,
		UserID:       userID,
		ClientKeyPEM: privatePEM,
	})
	if err != nil {
		return "", err
	}

	return string(blob), nil
}

func (c *BunqClient) CreateBunqMeTab(ctx context.Context, apiContextBlob string, input *CreateTabInput) (*CreateTabOutput, error) {
	session, err := restoreContext(apiContextBlob)
	if err != nil {
		return nil, err
	}

	accountID, err := c.resolveAccountID(ctx, session, input.MonetaryAccountID)
	if err != nil {
		return nil, err
	}

	createURL := fmt.Sprintf("%s/v1/user/%d/monetary-account/%d/bunqme-tab", session.BaseURL, session.UserID, accountID)
	created, err := c.doJSON(ctx, http.MethodPost, createURL, session.SessionToken, map[string]interface{}{
		"bunqme_tab_entry": map[string]interface{}{
			"amount_inquired": map[string]string{
				"value":    input.Amount.Value,
				"currency": input.Amount.Currency,
			},
			"description":  input.Description,
			"redirect_url": input.RedirectURL,
		},
	})
	if err != nil {
		return nil, err
	}

	raw, ok := findResponseObject(created, "Id")
	if !ok {
		return nil, errors.New("bunq create bunqme tab: missing Id object")
	}
	var idObject struct {
		ID json.Number `json:"id"`
	}
	if err := json.Unmarshal(raw, &idObject); err != nil {
		return nil, err
	}
	tabID := idObject.ID.String()
	if tabID == "" {
		return nil, errors.New("bunq create bunqme tab: empty id")
	}

	// The create response only carries the id; fetch the tab to get the
	// shareable hosted-page URL.
	tab, err := c.getTab(ctx, session, accountID, tabID)
	if err != nil {
		return nil, err
	}

	return &CreateTabOutput{ID: tab.ID, ShareURL: tab.ShareURL}, nil
}

func (c *BunqClient) GetBunqMeTab(ctx context.Context, apiContextBlob string, tabID string, monetaryAccountID *int64) (*BunqMeTab, error) {
	session, err := restoreContext(apiContextBlob)
	if err != nil {
		return nil, err
	}

	accountID, err := c.resolveAccountID(ctx, session, monetaryAccountID)
	if err != nil {
		return nil, err
	}

	return c.getTab(ctx, session, accountID, tabID)
}

func (c *BunqClient) ListMonetaryAccounts(ctx context.Context, apiContextBlob string) ([]MonetaryAccount, error) {
	session, err := restoreContext(apiContextBlob)
	if err != nil {
		return nil, err
	}
	return c.listAccounts(ctx, session)
}

// EnsureNotificationFilters registers the BUNQME_TAB webhook target for the
// given account. Safe to call repeatedly: an already-registered target is
// left untouched.
func (c *BunqClient) EnsureNotificationFilters(ctx context.Context, apiContextBlob string, monetaryAccountID *int64, targetURL string) error {
	session, err := restoreContext(apiContextBlob)
	if err != nil {
		return err
	}
	targetURL = strings.TrimSpace(targetURL)
	if targetURL == "" {
		return errors.New("bunq notification target url is empty")
	}

	accountID, err := c.resolveAccountID(ctx, session, monetaryAccountID)
	if err != nil {
		return err
	}

	filtersURL := fmt.Sprintf("%s/v1/user/%d/monetary-account/%d/notification-filter-url", session.BaseURL, session.UserID, accountID)

	existing, err := c.doJSON(ctx, http.MethodGet, filtersURL, session.SessionToken, nil)
	if err != nil {
		return err
	}
	for _, item := range existing.Response {
		raw, ok := item["NotificationFilterUrl"]
		if !ok {
			continue
		}
		var filter struct {
			Category           string `json:"category"`
			NotificationTarget string `json:"notification_target"`
		}
		if json.Unmarshal(raw, &filter) != nil {
			continue
		}
		if filter.Category == notificationCategoryBunqMeTab && filter.NotificationTarget == targetURL {
			return nil
		}
	}

	_, err = c.doJSON(ctx, http.MethodPost, filtersURL, session.SessionToken, map[string]interface{}{
		"notification_filters": []map[string]string{
			{
				"category":            notificationCategoryBunqMeTab,
				"notification_target": targetURL,
			},
		},
	})
	return err
}

func (c *BunqClient) getTab(ctx context.Context, session *apiContext, accountID int64, tabID string) (*BunqMeTab, error) {
	tabURL := fmt.Sprintf("%s/v1/user/%d/monetary-account/%d/bunqme-tab/%s", session.BaseURL, session.UserID, accountID, url.PathEscape(tabID))
	env, err := c.doJSON(ctx, http.MethodGet, tabURL, session.SessionToken, nil)
	if err != nil {
		return nil, err
	}

	raw, ok := findResponseObject(env, "BunqMeTab")
	if !ok {
		return nil, errors.New("bunq get bunqme tab: missing BunqMeTab object")
	}

	var payload struct {
		ID              json.Number `json:"id"`
		ShareURL        string      `json:"bunqme_tab_share_url"`
		Status          string      `json:"status"`
		ResultInquiries []struct {
			Payment struct {
				Payment struct {
					ID     json.Number `json:"id"`
					Amount struct {
						Value    string `json:"value"`
						Currency string `json:"currency"`
					} `json:"amount"`
				} `json:"Payment"`
			} `json:"payment"`
		} `json:"result_inquiries"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}

	tab := &BunqMeTab{
		ID:       payload.ID.String(),
		ShareURL: payload.ShareURL,
		Status:   payload.Status,
	}
	for _, inquiry := range payload.ResultInquiries {
		payment := inquiry.Payment.Payment
		if payment.ID.String() == "" {
			continue
		}
		tab.Payments = append(tab.Payments, TabPayment{
			ID: payment.ID.String(),
			Amount: Amount{
				Value:    payment.Amount.Value,
				Currency: payment.Amount.Currency,
			},
		})
	}

	return tab, nil
}

func (c *BunqClient) listAccounts(ctx context.Context, session *apiContext) ([]MonetaryAccount, error) {
	accountsURL := fmt.Sprintf("%s/v1/user/%d/monetary-account", session.BaseURL, session.UserID)
	env, err := c.doJSON(ctx, http.MethodGet, accountsURL, session.SessionToken, nil)
	if err != nil {
		return nil, err
	}

	accounts := make([]MonetaryAccount, 0, len(env.Response))
	for _, item := range env.Response {
		raw, ok := item["MonetaryAccountBank"]
		if !ok {
			continue
		}
		var payload struct {
			ID          json.Number `json:"id"`
			Description string      `json:"description"`
			Currency    string      `json:"currency"`
			Status      string      `json:"status"`
		}
		if json.Unmarshal(raw, &payload) != nil {
			continue
		}
		id, err := payload.ID.Int64()
		if err != nil {
			continue
		}
		accounts = append(accounts, MonetaryAccount{
			ID:          id,
			Description: payload.Description,
			Currency:    payload.Currency,
			Status:      payload.Status,
		})
	}

	return accounts, nil
}

func (c *BunqClient) resolveAccountID(ctx context.Context, session *apiContext, monetaryAccountID *int64) (int64, error) {
	if monetaryAccountID != nil && *monetaryAccountID > 0 {
		return *monetaryAccountID, nil
	}

	accounts, err := c.listAccounts(ctx, session)
	if err != nil {
		return 0, err
	}
	for _, account := range accounts {
		if account.Status == "ACTIVE" {
			return account.ID, nil
		}
	}

	return 0, errors.New("bunq: no active monetary account available")
}

type responseEnvelope struct {
	Response []map[string]json.RawMessage `json:"Response"`
	Error    []struct {
		ErrorDescription string `json:"error_description"`
	} `json:"Error"`
}

func (c *BunqClient) doJSON(ctx context.Context, method, requestURL, token string, body interface{}) (*responseEnvelope, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.cfg.DeviceDescription)
	req.Header.Set("X-Bunq-Client-Request-Id", uuid.NewString())
	req.Header.Set("X-Bunq-Language", "en_US")
	req.Header.Set("X-Bunq-Region", "nl_NL")
	req.Header.Set("X-Bunq-Geolocation", "0 0 0 0 000")
	if token != "" {
		req.Header.Set("X-Bunq-Client-Authentication", token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	env := &responseEnvelope{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, env); err != nil && resp.StatusCode < 400 {
			return nil, err
		}
	}

	if resp.StatusCode >= 400 {
		description := ""
		if len(env.Error) > 0 {
			description = env.Error[0].ErrorDescription
		}
		if description == "" {
			description = string(raw)
		}
		return nil, fmt.Errorf("bunq request failed: method=%s url=%s status=%d error=%s", method, requestURL, resp.StatusCode, description)
	}

	return env, nil
}

func findResponseObject(env *responseEnvelope, key string) (json.RawMessage, bool) {
	for _, item := range env.Response {
		if raw, ok := item[key]; ok {
			return raw, true
		}
	}
	return nil, false
}

func parseToken(env *responseEnvelope) (string, error) {
	raw, ok := findResponseObject(env, "Token")
	if !ok {
		return "", errors.New("bunq response: missing Token object")
	}
	var token struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(raw, &token); err != nil {
		return "", err
	}
	if strings.TrimSpace(token.Token) == "" {
		return "", errors.New("bunq response: empty token")
	}
	return token.Token, nil
}

func parseSessionUserID(env *responseEnvelope) (int64, error) {
	for _, key := range []string{"UserPerson", "UserCompany", "UserApiKey"} {
		raw, ok := findResponseObject(env, key)
		if !ok {
			continue
		}
		var user struct {
			ID json.Number `json:"id"`
		}
		if err := json.Unmarshal(raw, &user); err != nil {
			return 0, err
		}
		if id, err := user.ID.Int64(); err == nil && id > 0 {
			return id, nil
		}
	}
	return 0, errors.New("bunq session response: missing user object")
}

func restoreContext(blob string) (*apiContext, error) {
	blob = strings.TrimSpace(blob)
	if blob == "" {
		return nil, ErrNoAPIContext
	}
	session := &apiContext{}
	if err := json.Unmarshal([]byte(blob), session); err != nil {
		return nil, fmt.Errorf("bunq api context is not restorable: %w", err)
	}
	if session.BaseURL == "" || session.SessionToken == "" || session.UserID <= 0 {
		return nil, ErrNoAPIContext
	}
	return session, nil
}
