package repository

import (
	"context"
	"database/sql"

	"github.com/vibast-solutions/ms-go-bunq-gateway/app/entity"
)

const gatewaySettingsRowID = 1

type SettingsRepository struct {
	db DBTX
}

func NewSettingsRepository(db DBTX) *SettingsRepository {
	return &SettingsRepository{db: db}
}

func (r *SettingsRepository) Get(ctx context.Context) (*entity.GatewaySettings, error) {
	query := `
		SELECT id, enabled, title, description, testmode,
			api_key, test_api_key, monetary_account_id,
			api_context, test_api_context, created_at, updated_at
		FROM gateway_settings
		WHERE id = ?
	`

	settings := &entity.GatewaySettings{}
	var monetaryAccountID sql.NullInt64
	var apiContext sql.NullString
	var testAPIContext sql.NullString

	err := r.db.QueryRowContext(ctx, query, gatewaySettingsRowID).Scan(
		&settings.ID,
		&settings.Enabled,
		&settings.Title,
		&settings.Description,
		&settings.Testmode,
		&settings.APIKey,
		&settings.TestAPIKey,
		&monetaryAccountID,
		&apiContext,
		&testAPIContext,
		&settings.CreatedAt,
		&settings.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	settings.MonetaryAccountID = int64PtrFromNull(monetaryAccountID)
	settings.APIContext = stringPtrFromNull(apiContext)
	settings.TestAPIContext = stringPtrFromNull(testAPIContext)

	return settings, nil
}

func (r *SettingsRepository) Save(ctx context.Context, settings *entity.GatewaySettings) error {
	query := `
		INSERT INTO gateway_settings (
			id, enabled, title, description, testmode,
			api_key, test_api_key, monetary_account_id,
			api_context, test_api_context, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			enabled = VALUES(enabled),
			title = VALUES(title),
			description = VALUES(description),
			testmode = VALUES(testmode),
			api_key = VALUES(api_key),
			test_api_key = VALUES(test_api_key),
			monetary_account_id = VALUES(monetary_account_id),
			api_context = VALUES(api_context),
			test_api_context = VALUES(test_api_context),
			updated_at = VALUES(updated_at)
	`

	_, err := r.db.ExecContext(ctx, query,
		gatewaySettingsRowID,
		settings.Enabled,
		settings.Title,
		settings.Description,
		settings.Testmode,
		settings.APIKey,
		settings.TestAPIKey,
		nullableInt64Value(settings.MonetaryAccountID),
		nullableStringValue(settings.APIContext),
		nullableStringValue(settings.TestAPIContext),
		settings.CreatedAt,
		settings.UpdatedAt,
	)
	if err != nil {
		return err
	}

	settings.ID = gatewaySettingsRowID
	return nil
}
