package service

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-bunq-gateway/app/entity"
	"github.com/vibast-solutions/ms-go-bunq-gateway/app/provider"
	"github.com/vibast-solutions/ms-go-bunq-gateway/app/types"
)

const webhookPath = "/webhooks/bunq"

func (s *GatewayService) GetSettings(ctx context.Context) (*entity.GatewaySettings, error) {
	return s.activeSettings(ctx)
}

// SaveSettings persists the gateway configuration. Saving an API key
// regenerates the matching mode's API context through the bunq client and
// stores the returned blob verbatim; it is never parsed here. Notification
// filters are then ensured for the webhook URL, except when the callback
// base points at a loopback host bunq could never reach.
func (s *GatewayService) SaveSettings(ctx context.Context, req *types.UpdateSettingsRequest) (*entity.GatewaySettings, error) {
	settings, err := s.activeSettings(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if settings.CreatedAt.IsZero() {
		settings.CreatedAt = now
	}

	settings.Enabled = req.Enabled
	settings.Title = req.Title
	settings.Description = req.Description
	settings.Testmode = req.Testmode
	settings.APIKey = req.APIKey
	settings.TestAPIKey = req.TestAPIKey
	if req.MonetaryAccountID > 0 {
		accountID := req.MonetaryAccountID
		settings.MonetaryAccountID = &accountID
	} else {
		settings.MonetaryAccountID = nil
	}
	settings.UpdatedAt = now

	apiKey := settings.ActiveAPIKey()
	if apiKey != "" {
		blob, err := s.bunq.CreateAPIContext(ctx, apiKey, settings.Testmode)
		if err != nil {
			s.logger.WithError(err).Error("bunq api context creation failed")
			return nil, ErrNotConfigured
		}
		settings.SetActiveAPIContext(blob)
	}

	if err := s.settings.Save(ctx, settings); err != nil {
		return nil, err
	}

	if apiKey != "" {
		if err := s.SetupNotificationFilters(ctx); err != nil {
			s.logger.WithError(err).Warn("notification filter setup failed")
		}
	}

	return settings, nil
}

// SetupNotificationFilters registers the webhook target with bunq for the
// configured account. Idempotent; skipped when the callback base URL is a
// loopback address the provider cannot deliver to.
func (s *GatewayService) SetupNotificationFilters(ctx context.Context) error {
	settings, err := s.activeSettings(ctx)
	if err != nil {
		return err
	}
	apiContext := settings.ActiveAPIContext()
	if apiContext == "" {
		return ErrNotConfigured
	}

	callbackBase := strings.TrimRight(s.gatewayCfg.CallbackBaseURL, "/")
	if callbackBase == "" {
		return ErrNotConfigured
	}
	if isLoopbackURL(callbackBase) {
		s.logger.WithField("callback_base_url", callbackBase).Info("skipping notification filter setup for loopback callback url")
		return nil
	}

	return s.bunq.EnsureNotificationFilters(ctx, apiContext, settings.MonetaryAccountID, callbackBase+webhookPath)
}

func (s *GatewayService) ListBankAccounts(ctx context.Context) ([]provider.MonetaryAccount, error) {
	settings, err := s.activeSettings(ctx)
	if err != nil {
		return nil, err
	}
	apiContext := settings.ActiveAPIContext()
	if apiContext == "" {
		return nil, ErrNotConfigured
	}

	return s.bunq.ListMonetaryAccounts(ctx, apiContext)
}

func isLoopbackURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := parsed.Hostname()
	return host == "127.0.0.1" || host == "::1" || host == "localhost"
}
