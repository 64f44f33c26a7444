package provider

import "context"

type Amount struct {
	Value    string
	Currency string
}

type CreateTabInput struct {
	Amount      Amount
	Description string
	RedirectURL string

	MonetaryAccountID *int64
}

type CreateTabOutput struct {
	ID       string
	ShareURL string
}

type TabPayment struct {
	ID     string
	Amount Amount
}

type BunqMeTab struct {
	ID       string
	ShareURL string
	Status   string
	Payments []TabPayment
}

type MonetaryAccount struct {
	ID          int64
	Description string
	Currency    string
	Status      string
}

// Client is the outbound boundary to the bunq API. API contexts are opaque
// serialized session blobs: callers store and pass them back verbatim,
// only the client ever looks inside.
type Client interface {
	CreateAPIContext(ctx context.Context, apiKey string, sandbox bool) (string, error)
	CreateBunqMeTab(ctx context.Context, apiContext string, input *CreateTabInput) (*CreateTabOutput, error)
	GetBunqMeTab(ctx context.Context, apiContext string, tabID string, monetaryAccountID *int64) (*BunqMeTab, error)
	ListMonetaryAccounts(ctx context.Context, apiContext string) ([]MonetaryAccount, error)
	EnsureNotificationFilters(ctx context.Context, apiContext string, monetaryAccountID *int64, targetURL string) error
}
