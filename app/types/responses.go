package types

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type OrderResponse struct {
	ID               uint64           `json:"id"`
	Number           string           `json:"number"`
	CustomerRef      string           `json:"customer_ref"`
	Total            string           `json:"total"`
	Currency         string           `json:"currency"`
	Status           string           `json:"status"`
	PaymentRequestID string           `json:"payment_request_id,omitempty"`
	PaymentID        string           `json:"payment_id,omitempty"`
	Notes            []OrderNoteEntry `json:"notes,omitempty"`
	CreatedAt        string           `json:"created_at"`
	UpdatedAt        string           `json:"updated_at"`
}

type OrderNoteEntry struct {
	Note      string `json:"note"`
	CreatedAt string `json:"created_at"`
}

type CheckoutResponse struct {
	Result   string `json:"result"`
	Redirect string `json:"redirect,omitempty"`
}

type SettingsResponse struct {
	Enabled           bool   `json:"enabled"`
	Title             string `json:"title"`
	Description       string `json:"description"`
	Testmode          bool   `json:"testmode"`
	APIKey            string `json:"api_key"`
	TestAPIKey        string `json:"test_api_key"`
	MonetaryAccountID int64  `json:"monetary_account_id"`
	APIContext        string `json:"api_context"`
	TestAPIContext    string `json:"test_api_context"`
}

type BankAccount struct {
	ID          int64  `json:"id"`
	Description string `json:"description"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
}

type BankAccountsResponse struct {
	Accounts []BankAccount `json:"accounts"`
}
