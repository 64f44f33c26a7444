package mapper

import (
	"time"

	"github.com/vibast-solutions/ms-go-bunq-gateway/app/entity"
	"github.com/vibast-solutions/ms-go-bunq-gateway/app/provider"
	"github.com/vibast-solutions/ms-go-bunq-gateway/app/types"
)

func OrderToResponse(order *entity.Order, notes []*entity.OrderNote) *types.OrderResponse {
	if order == nil {
		return nil
	}

	noteEntries := make([]types.OrderNoteEntry, 0, len(notes))
	for _, note := range notes {
		noteEntries = append(noteEntries, types.OrderNoteEntry{
			Note:      note.Note,
			CreatedAt: note.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	return &types.OrderResponse{
		ID:               order.ID,
		Number:           order.Number,
		CustomerRef:      order.CustomerRef,
		Total:            order.Total,
		Currency:         order.Currency,
		Status:           order.Status,
		PaymentRequestID: derefString(order.PaymentRequestID),
		PaymentID:        derefString(order.PaymentID),
		Notes:            noteEntries,
		CreatedAt:        order.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:        order.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func SettingsToResponse(settings *entity.GatewaySettings) *types.SettingsResponse {
	if settings == nil {
		return nil
	}

	return &types.SettingsResponse{
		Enabled:           settings.Enabled,
		Title:             settings.Title,
		Description:       settings.Description,
		Testmode:          settings.Testmode,
		APIKey:            settings.APIKey,
		TestAPIKey:        settings.TestAPIKey,
		MonetaryAccountID: derefInt64(settings.MonetaryAccountID),
		APIContext:        derefString(settings.APIContext),
		TestAPIContext:    derefString(settings.TestAPIContext),
	}
}

func AccountsToResponse(accounts []provider.MonetaryAccount) *types.BankAccountsResponse {
	items := make([]types.BankAccount, 0, len(accounts))
	for _, account := range accounts {
		items = append(items, types.BankAccount{
			ID:          account.ID,
			Description: account.Description,
			Currency:    account.Currency,
			Status:      account.Status,
		})
	}
	return &types.BankAccountsResponse{Accounts: items}
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func derefInt64(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
