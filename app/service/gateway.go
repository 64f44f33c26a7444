package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-bunq-gateway/app/entity"
	"github.com/vibast-solutions/ms-go-bunq-gateway/app/factory"
	"github.com/vibast-solutions/ms-go-bunq-gateway/app/provider"
	"github.com/vibast-solutions/ms-go-bunq-gateway/app/repository"
	"github.com/vibast-solutions/ms-go-bunq-gateway/app/types"
	"github.com/vibast-solutions/ms-go-bunq-gateway/config"
)

type orderRepository interface {
	Create(ctx context.Context, order *entity.Order) error
	Update(ctx context.Context, order *entity.Order) error
	FindByID(ctx context.Context, id uint64) (*entity.Order, error)
	FindByPaymentRequestID(ctx context.Context, requestID string) ([]*entity.Order, error)
	MarkPaid(ctx context.Context, id uint64, now time.Time) error
}

type orderNoteRepository interface {
	Create(ctx context.Context, note *entity.OrderNote) error
	ListByOrderID(ctx context.Context, orderID uint64) ([]*entity.OrderNote, error)
}

type cartRepository interface {
	Create(ctx context.Context, cart *entity.Cart) error
	FindByCustomerRef(ctx context.Context, customerRef string) (*entity.Cart, error)
	EmptyByCustomerRef(ctx context.Context, customerRef string, now time.Time) error
}

type settingsRepository interface {
	Get(ctx context.Context) (*entity.GatewaySettings, error)
	Save(ctx context.Context, settings *entity.GatewaySettings) error
}

type GatewayService struct {
	orders     orderRepository
	notes      orderNoteRepository
	carts      cartRepository
	settings   settingsRepository
	bunq       provider.Client
	gatewayCfg config.GatewayConfig
	logger     logrus.FieldLogger
}

func NewGatewayService(
	orders orderRepository,
	notes orderNoteRepository,
	carts cartRepository,
	settings settingsRepository,
	bunq provider.Client,
	gatewayCfg config.GatewayConfig,
) *GatewayService {
	return &GatewayService{
		orders:     orders,
		notes:      notes,
		carts:      carts,
		settings:   settings,
		bunq:       bunq,
		gatewayCfg: gatewayCfg,
		logger:     factory.NewModuleLogger("gateway-service"),
	}
}

func (s *GatewayService) CreateOrder(ctx context.Context, req *types.CreateOrderRequest) (*entity.Order, error) {
	now := time.Now().UTC()
	customerRef := uuid.NewString()

	cart := &entity.Cart{
		CustomerRef: customerRef,
		Items:       req.Items,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.carts.Create(ctx, cart); err != nil {
		return nil, err
	}

	order := &entity.Order{
		Number:      req.Number,
		CustomerRef: customerRef,
		Total:       req.Total,
		Currency:    req.Currency,
		Status:      entity.OrderStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		if errors.Is(err, repository.ErrOrderAlreadyExists) {
			return nil, ErrOrderAlreadyExists
		}
		return nil, err
	}

	return order, nil
}

func (s *GatewayService) GetOrder(ctx context.Context, id uint64) (*entity.Order, []*entity.OrderNote, error) {
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if order == nil {
		return nil, nil, ErrOrderNotFound
	}

	notes, err := s.notes.ListByOrderID(ctx, order.ID)
	if err != nil {
		return nil, nil, err
	}

	return order, notes, nil
}

type IssueResult struct {
	RequestID   string
	RedirectURL string
}

// IssuePaymentRequest creates a hosted BunqMe tab for the order and binds
// the tab id to the order before the shopper is redirected. The binding is
// the correlation key used later by webhook reconciliation, so a failure to
// persist it fails the whole checkout attempt.
func (s *GatewayService) IssuePaymentRequest(ctx context.Context, orderID uint64) (*IssueResult, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.Status != entity.OrderStatusPending {
		return nil, fmt.Errorf("%w: order %s is %s", ErrInvalidStatus, order.Number, order.Status)
	}

	settings, err := s.activeSettings(ctx)
	if err != nil {
		return nil, err
	}
	if !settings.Enabled {
		return nil, ErrGatewayDisabled
	}
	apiContext := settings.ActiveAPIContext()
	if apiContext == "" {
		return nil, ErrNotConfigured
	}

	total, err := decimal.NewFromString(order.Total)
	if err != nil || total.IsNegative() {
		return nil, fmt.Errorf("%w: order %s has invalid total %q", ErrInvalidRequest, order.Number, order.Total)
	}

	tab, err := s.bunq.CreateBunqMeTab(ctx, apiContext, &provider.CreateTabInput{
		Amount:            provider.Amount{Value: order.Total, Currency: order.Currency},
		Description:       "#" + order.Number,
		RedirectURL:       s.returnURL(order),
		MonetaryAccountID: settings.MonetaryAccountID,
	})
	if err != nil {
		s.logger.WithError(err).WithField("order", order.Number).Error("bunq payment request creation failed")
		return nil, ErrIssueFailed
	}

	s.addNote(ctx, order.ID, "bunq payment_request created "+tab.ID)

	now := time.Now().UTC()
	order.PaymentRequestID = &tab.ID
	order.UpdatedAt = now
	if err := s.orders.Update(ctx, order); err != nil {
		// The shopper must never be redirected to a tab the order does
		// not reference; without the stored id the payment could not be
		// reconciled.
		s.logger.WithError(err).WithField("order", order.Number).Error("failed to persist payment request id")
		return nil, ErrIssueFailed
	}

	return &IssueResult{RequestID: tab.ID, RedirectURL: tab.ShareURL}, nil
}

func (s *GatewayService) returnURL(order *entity.Order) string {
	base := strings.TrimRight(s.gatewayCfg.ReturnURLBase, "/")
	if base == "" {
		return ""
	}
	return base + "/" + order.Number
}

func (s *GatewayService) addNote(ctx context.Context, orderID uint64, text string) {
	err := s.notes.Create(ctx, &entity.OrderNote{
		OrderID:   orderID,
		Note:      text,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Warn("failed to record order note")
	}
}

func (s *GatewayService) activeSettings(ctx context.Context) (*entity.GatewaySettings, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		return defaultSettings(), nil
	}
	return settings, nil
}

func defaultSettings() *entity.GatewaySettings {
	return &entity.GatewaySettings{
		Title:       "iDEAL, Credit Card or Sofort",
		Description: "Pay with iDEAL, Credit Card or Sofort",
		Testmode:    true,
	}
}
