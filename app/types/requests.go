package types

import (
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

const (
	NotificationCategoryBunqMeTab             = "BUNQME_TAB"
	NotificationEventTypeResultInquiryCreated = "BUNQME_TAB_RESULT_INQUIRY_CREATED"
)

type CreateOrderRequest struct {
	Number   string           `json:"number"`
	Total    string           `json:"total"`
	Currency string           `json:"currency"`
	Items    map[string]int64 `json:"items"`
}

func NewCreateOrderRequestFromContext(ctx echo.Context) (*CreateOrderRequest, error) {
	var body CreateOrderRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.Number = strings.TrimSpace(body.Number)
	body.Total = strings.TrimSpace(body.Total)
	body.Currency = strings.ToUpper(strings.TrimSpace(body.Currency))

	return &body, nil
}

func (r *CreateOrderRequest) Validate() error {
	if r.Number == "" {
		return errors.New("number is required")
	}
	if r.Total == "" {
		return errors.New("total is required")
	}
	total, err := decimal.NewFromString(r.Total)
	if err != nil {
		return errors.New("total must be a decimal amount")
	}
	if total.IsNegative() {
		return errors.New("total must be >= 0")
	}
	if len(r.Currency) != 3 {
		return errors.New("currency must be 3 letters")
	}
	return nil
}

type GetOrderRequest struct {
	ID uint64
}

func NewGetOrderRequestFromContext(ctx echo.Context) (*GetOrderRequest, error) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return nil, err
	}
	return &GetOrderRequest{ID: id}, nil
}

func (r *GetOrderRequest) Validate() error {
	if r.ID == 0 {
		return errors.New("invalid order id")
	}
	return nil
}

type CheckoutRequest struct {
	OrderID uint64 `json:"order_id"`
}

func NewCheckoutRequestFromContext(ctx echo.Context) (*CheckoutRequest, error) {
	var body CheckoutRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	return &body, nil
}

func (r *CheckoutRequest) Validate() error {
	if r.OrderID == 0 {
		return errors.New("order_id is required")
	}
	return nil
}

// BunqNotification is the minimal projection of an inbound bunq webhook
// push this gateway cares about. Notifications are never persisted.
type BunqNotification struct {
	Category         string
	EventType        string
	PaymentRequestID string
}

// NewBunqNotificationFromContext parses the provider push from the JSON
// body, falling back to request parameters when the body is empty. bunq
// serializes the tab id as a JSON number; it is normalized to a string.
func NewBunqNotificationFromContext(ctx echo.Context) (*BunqNotification, error) {
	rawBody, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return nil, err
	}

	if len(strings.TrimSpace(string(rawBody))) == 0 {
		notification := &BunqNotification{
			Category:         strings.TrimSpace(paramValue(ctx, "category")),
			EventType:        strings.TrimSpace(paramValue(ctx, "event_type")),
			PaymentRequestID: strings.TrimSpace(paramValue(ctx, "bunq_me_tab_id")),
		}
		if notification.Category == "" && notification.EventType == "" {
			return nil, errors.New("empty notification payload")
		}
		return notification, nil
	}

	var payload struct {
		NotificationUrl struct {
			Category  string `json:"category"`
			EventType string `json:"event_type"`
			Object    struct {
				BunqMeTabResultInquiry struct {
					BunqMeTabID opaqueID `json:"bunq_me_tab_id"`
				} `json:"BunqMeTabResultInquiry"`
			} `json:"object"`
		} `json:"NotificationUrl"`
	}
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return nil, err
	}

	return &BunqNotification{
		Category:         strings.TrimSpace(payload.NotificationUrl.Category),
		EventType:        strings.TrimSpace(payload.NotificationUrl.EventType),
		PaymentRequestID: strings.TrimSpace(string(payload.NotificationUrl.Object.BunqMeTabResultInquiry.BunqMeTabID)),
	}, nil
}

// opaqueID is a provider-assigned identifier that bunq serializes sometimes
// as a JSON number and sometimes as a string. Either form is accepted and
// normalized to its literal text.
type opaqueID string

func (id *opaqueID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = opaqueID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = opaqueID(n.String())
	return nil
}

// Actionable reports whether this notification is a BunqMe tab result
// inquiry; anything else is acknowledged and discarded.
func (n *BunqNotification) Actionable() bool {
	return n.Category == NotificationCategoryBunqMeTab &&
		n.EventType == NotificationEventTypeResultInquiryCreated &&
		n.PaymentRequestID != ""
}

type UpdateSettingsRequest struct {
	Enabled           bool   `json:"enabled"`
	Title             string `json:"title"`
	Description       string `json:"description"`
	Testmode          bool   `json:"testmode"`
	APIKey            string `json:"api_key"`
	TestAPIKey        string `json:"test_api_key"`
	MonetaryAccountID int64  `json:"monetary_account_id"`
}

func NewUpdateSettingsRequestFromContext(ctx echo.Context) (*UpdateSettingsRequest, error) {
	var body UpdateSettingsRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.Title = strings.TrimSpace(body.Title)
	body.Description = strings.TrimSpace(body.Description)
	body.APIKey = strings.TrimSpace(body.APIKey)
	body.TestAPIKey = strings.TrimSpace(body.TestAPIKey)

	return &body, nil
}

func (r *UpdateSettingsRequest) Validate() error {
	if r.MonetaryAccountID < 0 {
		return errors.New("monetary_account_id must be >= 0")
	}
	if r.Enabled {
		if r.Testmode && r.TestAPIKey == "" {
			return errors.New("test_api_key is required in test mode")
		}
		if !r.Testmode && r.APIKey == "" {
			return errors.New("api_key is required in live mode")
		}
	}
	return nil
}

func paramValue(ctx echo.Context, name string) string {
	if v := ctx.FormValue(name); v != "" {
		return v
	}
	return ctx.QueryParam(name)
}
