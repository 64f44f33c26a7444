package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-bunq-gateway/app/entity"
	"github.com/vibast-solutions/ms-go-bunq-gateway/app/provider"
	"github.com/vibast-solutions/ms-go-bunq-gateway/app/repository"
	"github.com/vibast-solutions/ms-go-bunq-gateway/app/types"
	"github.com/vibast-solutions/ms-go-bunq-gateway/config"
)

type serviceOrderRepo struct {
	orders    map[uint64]*entity.Order
	nextID    uint64
	updateErr error
}

func newServiceOrderRepo() *serviceOrderRepo {
	return &serviceOrderRepo{
		orders: map[uint64]*entity.Order{},
		nextID: 1,
	}
}

func (r *serviceOrderRepo) Create(_ context.Context, order *entity.Order) error {
	id := r.nextID
	r.nextID++
	copyItem := *order
	copyItem.ID = id
	r.orders[id] = &copyItem
	order.ID = id
	return nil
}

func (r *serviceOrderRepo) Update(_ context.Context, order *entity.Order) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, ok := r.orders[order.ID]; !ok {
		return errors.New("order not found")
	}
	copyItem := *order
	r.orders[order.ID] = &copyItem
	return nil
}

func (r *serviceOrderRepo) FindByID(_ context.Context, id uint64) (*entity.Order, error) {
	item, ok := r.orders[id]
	if !ok {
		return nil, nil
	}
	copyItem := *item
	return &copyItem, nil
}

func (r *serviceOrderRepo) FindByPaymentRequestID(_ context.Context, requestID string) ([]*entity.Order, error) {
	items := make([]*entity.Order, 0)
	for _, item := range r.orders {
		if item.PaymentRequestID != nil && *item.PaymentRequestID == requestID {
			copyItem := *item
			items = append(items, &copyItem)
		}
	}
	return items, nil
}

func (r *serviceOrderRepo) MarkPaid(_ context.Context, id uint64, now time.Time) error {
	item, ok := r.orders[id]
	if !ok || item.Status != entity.OrderStatusPending {
		return repository.ErrOrderNotPending
	}
	item.Status = entity.OrderStatusPaid
	item.UpdatedAt = now
	return nil
}

type serviceNoteRepo struct {
	notes []*entity.OrderNote
}

func (r *serviceNoteRepo) Create(_ context.Context, note *entity.OrderNote) error {
	copyItem := *note
	r.notes = append(r.notes, &copyItem)
	return nil
}

func (r *serviceNoteRepo) ListByOrderID(_ context.Context, orderID uint64) ([]*entity.OrderNote, error) {
	items := make([]*entity.OrderNote, 0)
	for _, note := range r.notes {
		if note.OrderID == orderID {
			copyItem := *note
			items = append(items, &copyItem)
		}
	}
	return items, nil
}

type serviceCartRepo struct {
	carts      map[string]*entity.Cart
	emptyCalls int
}

func newServiceCartRepo() *serviceCartRepo {
	return &serviceCartRepo{carts: map[string]*entity.Cart{}}
}

func (r *serviceCartRepo) Create(_ context.Context, cart *entity.Cart) error {
	copyItem := *cart
	r.carts[cart.CustomerRef] = &copyItem
	return nil
}

func (r *serviceCartRepo) FindByCustomerRef(_ context.Context, customerRef string) (*entity.Cart, error) {
	item, ok := r.carts[customerRef]
	if !ok {
		return nil, nil
	}
	copyItem := *item
	return &copyItem, nil
}

func (r *serviceCartRepo) EmptyByCustomerRef(_ context.Context, customerRef string, now time.Time) error {
	r.emptyCalls++
	if item, ok := r.carts[customerRef]; ok {
		item.Items = map[string]int64{}
		item.UpdatedAt = now
	}
	return nil
}

type serviceSettingsRepo struct {
	settings *entity.GatewaySettings
	saveErr  error
}

func (r *serviceSettingsRepo) Get(_ context.Context) (*entity.GatewaySettings, error) {
	if r.settings == nil {
		return nil, nil
	}
	copyItem := *r.settings
	return &copyItem, nil
}

func (r *serviceSettingsRepo) Save(_ context.Context, settings *entity.GatewaySettings) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	copyItem := *settings
	r.settings = &copyItem
	return nil
}

type fakeBunqClient struct {
	contextBlob        string
	contextErr         error
	contextCalls       int
	lastContextSandbox bool

	createTabOutput *provider.CreateTabOutput
	createTabErr    error

	tab         *provider.BunqMeTab
	getTabErr   error
	getTabCalls int

	accounts []provider.MonetaryAccount
	listErr  error

	ensureCalls   int
	ensureTargets []string
	ensureErr     error
}

func (c *fakeBunqClient) CreateAPIContext(_ context.Context, _ string, sandbox bool) (string, error) {
	c.contextCalls++
	c.lastContextSandbox = sandbox
	if c.contextErr != nil {
		return "", c.contextErr
	}
	if c.contextBlob != "" {
		return c.contextBlob, nil
	}
	return `{"base_url":"https://api.bunq.test","session_token":"tok","user_id":1}`, nil
}

func (c *fakeBunqClient) CreateBunqMeTab(_ context.Context, _ string, _ *provider.CreateTabInput) (*provider.CreateTabOutput, error) {
	if c.createTabErr != nil {
		return nil, c.createTabErr
	}
	if c.createTabOutput != nil {
		return c.createTabOutput, nil
	}
	return &provider.CreateTabOutput{ID: "req-1", ShareURL: "https://pay.example/req-1"}, nil
}

func (c *fakeBunqClient) GetBunqMeTab(_ context.Context, _ string, tabID string, _ *int64) (*provider.BunqMeTab, error) {
	c.getTabCalls++
	if c.getTabErr != nil {
		return nil, c.getTabErr
	}
	if c.tab != nil {
		return c.tab, nil
	}
	return &provider.BunqMeTab{ID: tabID, Status: "WAITING_FOR_PAYMENT"}, nil
}

func (c *fakeBunqClient) ListMonetaryAccounts(_ context.Context, _ string) ([]provider.MonetaryAccount, error) {
	if c.listErr != nil {
		return nil, c.listErr
	}
	return c.accounts, nil
}

func (c *fakeBunqClient) EnsureNotificationFilters(_ context.Context, _ string, _ *int64, targetURL string) error {
	c.ensureCalls++
	c.ensureTargets = append(c.ensureTargets, targetURL)
	return c.ensureErr
}

func configuredSettings() *entity.GatewaySettings {
	blob := `{"base_url":"https://api.bunq.test","session_token":"tok","user_id":1}`
	return &entity.GatewaySettings{
		ID:          1,
		Enabled:     true,
		Title:       "iDEAL, Credit Card or Sofort",
		Description: "Pay with iDEAL, Credit Card or Sofort",
		Testmode:    false,
		APIKey:      "live-key",
		APIContext:  &blob,
	}
}

func newGatewayServiceForTest(
	orders *serviceOrderRepo,
	notes *serviceNoteRepo,
	carts *serviceCartRepo,
	settingsRepo *serviceSettingsRepo,
	bunq provider.Client,
	gatewayCfg config.GatewayConfig,
) *GatewayService {
	if gatewayCfg.ReturnURLBase == "" {
		gatewayCfg.ReturnURLBase = "https://shop.example/thank-you"
	}
	return NewGatewayService(orders, notes, carts, settingsRepo, bunq, gatewayCfg)
}

func pendingOrder(orders *serviceOrderRepo, number, total, currency string) *entity.Order {
	order := &entity.Order{
		Number:      number,
		CustomerRef: "cart-" + number,
		Total:       total,
		Currency:    currency,
		Status:      entity.OrderStatusPending,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	_ = orders.Create(context.Background(), order)
	return order
}

func issuedOrder(orders *serviceOrderRepo, number, total, currency, requestID string) *entity.Order {
	order := pendingOrder(orders, number, total, currency)
	order.PaymentRequestID = &requestID
	_ = orders.Update(context.Background(), order)
	return order
}

func TestIssuePaymentRequestStoresCorrelationBeforeRedirect(t *testing.T) {
	orders := newServiceOrderRepo()
	notes := &serviceNoteRepo{}
	carts := newServiceCartRepo()
	settingsRepo := &serviceSettingsRepo{settings: configuredSettings()}
	svc := newGatewayServiceForTest(orders, notes, carts, settingsRepo, &fakeBunqClient{}, config.GatewayConfig{})

	order := pendingOrder(orders, "1023", "49.95", "EUR")

	result, err := svc.IssuePaymentRequest(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if result.RequestID != "req-1" || result.RedirectURL != "https://pay.example/req-1" {
		t.Fatalf("unexpected issue result: %+v", result)
	}

	matches, _ := orders.FindByPaymentRequestID(context.Background(), "req-1")
	if len(matches) != 1 || matches[0].ID != order.ID {
		t.Fatalf("expected exactly the issued order to correlate, got %d matches", len(matches))
	}
	if len(notes.notes) != 1 || notes.notes[0].Note != "bunq payment_request created req-1" {
		t.Fatalf("expected issuance note, got %+v", notes.notes)
	}
}

func TestIssuePaymentRequestFailsWhenCorrelationCannotBePersisted(t *testing.T) {
	orders := newServiceOrderRepo()
	orders.updateErr = errors.New("storage unavailable")
	settingsRepo := &serviceSettingsRepo{settings: configuredSettings()}
	svc := newGatewayServiceForTest(orders, &serviceNoteRepo{}, newServiceCartRepo(), settingsRepo, &fakeBunqClient{}, config.GatewayConfig{})

	order := pendingOrder(orders, "1023", "49.95", "EUR")

	_, err := svc.IssuePaymentRequest(context.Background(), order.ID)
	if !errors.Is(err, ErrIssueFailed) {
		t.Fatalf("expected ErrIssueFailed, got %v", err)
	}
}

func TestIssuePaymentRequestProviderErrorFailsCheckout(t *testing.T) {
	orders := newServiceOrderRepo()
	settingsRepo := &serviceSettingsRepo{settings: configuredSettings()}
	bunq := &fakeBunqClient{createTabErr: errors.New("bunq unreachable")}
	svc := newGatewayServiceForTest(orders, &serviceNoteRepo{}, newServiceCartRepo(), settingsRepo, bunq, config.GatewayConfig{})

	order := pendingOrder(orders, "1023", "49.95", "EUR")

	_, err := svc.IssuePaymentRequest(context.Background(), order.ID)
	if !errors.Is(err, ErrIssueFailed) {
		t.Fatalf("expected ErrIssueFailed, got %v", err)
	}

	stored, _ := orders.FindByID(context.Background(), order.ID)
	if stored.PaymentRequestID != nil {
		t.Fatal("expected no payment request id after failed issuance")
	}
}

func TestIssuePaymentRequestRequiresEnabledConfiguredGateway(t *testing.T) {
	orders := newServiceOrderRepo()
	disabled := configuredSettings()
	disabled.Enabled = false
	svc := newGatewayServiceForTest(orders, &serviceNoteRepo{}, newServiceCartRepo(), &serviceSettingsRepo{settings: disabled}, &fakeBunqClient{}, config.GatewayConfig{})

	order := pendingOrder(orders, "1023", "49.95", "EUR")
	if _, err := svc.IssuePaymentRequest(context.Background(), order.ID); !errors.Is(err, ErrGatewayDisabled) {
		t.Fatalf("expected ErrGatewayDisabled, got %v", err)
	}

	unconfigured := configuredSettings()
	unconfigured.APIContext = nil
	svc = newGatewayServiceForTest(orders, &serviceNoteRepo{}, newServiceCartRepo(), &serviceSettingsRepo{settings: unconfigured}, &fakeBunqClient{}, config.GatewayConfig{})
	if _, err := svc.IssuePaymentRequest(context.Background(), order.ID); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestReconcileCompletesOrderExactlyOnce(t *testing.T) {
	orders := newServiceOrderRepo()
	notes := &serviceNoteRepo{}
	carts := newServiceCartRepo()
	settingsRepo := &serviceSettingsRepo{settings: configuredSettings()}
	bunq := &fakeBunqClient{tab: &provider.BunqMeTab{
		ID: "req-1",
		Payments: []provider.TabPayment{
			{ID: "pay-9", Amount: provider.Amount{Value: "49.95", Currency: "EUR"}},
		},
	}}
	svc := newGatewayServiceForTest(orders, notes, carts, settingsRepo, bunq, config.GatewayConfig{})

	order := issuedOrder(orders, "1023", "49.95", "EUR", "req-1")
	_ = carts.Create(context.Background(), &entity.Cart{CustomerRef: order.CustomerRef, Items: map[string]int64{"sku-1": 2}})

	outcome, err := svc.Reconcile(context.Background(), "req-1")
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if outcome != OutcomeCompleted {
		t.Fatalf("expected completed outcome, got %s", outcome)
	}

	stored, _ := orders.FindByID(context.Background(), order.ID)
	if stored.PaymentID == nil || *stored.PaymentID != "pay-9" {
		t.Fatalf("expected payment id pay-9, got %+v", stored.PaymentID)
	}
	if stored.Status != entity.OrderStatusPaid {
		t.Fatalf("expected paid status, got %s", stored.Status)
	}
	cart, _ := carts.FindByCustomerRef(context.Background(), order.CustomerRef)
	if len(cart.Items) != 0 {
		t.Fatalf("expected emptied cart, got %+v", cart.Items)
	}

	// A redelivered notification must not re-complete the order.
	outcome, err = svc.Reconcile(context.Background(), "req-1")
	if err != nil {
		t.Fatalf("replayed reconcile failed: %v", err)
	}
	if outcome != OutcomeAlreadyCompleted {
		t.Fatalf("expected already-completed outcome, got %s", outcome)
	}
	if carts.emptyCalls != 1 {
		t.Fatalf("expected cart to be emptied once, got %d", carts.emptyCalls)
	}
	replayNotes, _ := notes.ListByOrderID(context.Background(), order.ID)
	if len(replayNotes) != 1 {
		t.Fatalf("expected a single payment note, got %d", len(replayNotes))
	}
}

func TestReconcilePersistenceFailureWritesNoNote(t *testing.T) {
	orders := newServiceOrderRepo()
	notes := &serviceNoteRepo{}
	settingsRepo := &serviceSettingsRepo{settings: configuredSettings()}
	bunq := &fakeBunqClient{tab: &provider.BunqMeTab{
		ID:       "req-1",
		Payments: []provider.TabPayment{{ID: "pay-9", Amount: provider.Amount{Value: "49.95", Currency: "EUR"}}},
	}}
	svc := newGatewayServiceForTest(orders, notes, newServiceCartRepo(), settingsRepo, bunq, config.GatewayConfig{})

	issuedOrder(orders, "1023", "49.95", "EUR", "req-1")
	orders.updateErr = errors.New("storage unavailable")

	if _, err := svc.Reconcile(context.Background(), "req-1"); err == nil {
		t.Fatal("expected reconcile to fail")
	}
	if len(notes.notes) != 0 {
		t.Fatalf("expected no payment note for an incomplete order, got %+v", notes.notes)
	}
}

func TestReconcileAmountMismatchLeavesOrderPending(t *testing.T) {
	orders := newServiceOrderRepo()
	settingsRepo := &serviceSettingsRepo{settings: configuredSettings()}
	bunq := &fakeBunqClient{tab: &provider.BunqMeTab{
		ID: "req-1",
		Payments: []provider.TabPayment{
			{ID: "pay-9", Amount: provider.Amount{Value: "40.00", Currency: "EUR"}},
		},
	}}
	svc := newGatewayServiceForTest(orders, &serviceNoteRepo{}, newServiceCartRepo(), settingsRepo, bunq, config.GatewayConfig{})

	order := issuedOrder(orders, "1023", "49.95", "EUR", "req-1")

	outcome, err := svc.Reconcile(context.Background(), "req-1")
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if outcome != OutcomeAmountMismatch {
		t.Fatalf("expected amount mismatch, got %s", outcome)
	}

	stored, _ := orders.FindByID(context.Background(), order.ID)
	if stored.Status != entity.OrderStatusPending || stored.PaymentID != nil {
		t.Fatalf("expected untouched pending order, got status=%s payment=%v", stored.Status, stored.PaymentID)
	}
}

func TestReconcileAmountMatchIsExact(t *testing.T) {
	cases := []struct {
		name     string
		settled  provider.Amount
		total    string
		currency string
		outcome  ReconcileOutcome
	}{
		{"off by a cent", provider.Amount{Value: "10.00", Currency: "EUR"}, "10.01", "EUR", OutcomeAmountMismatch},
		{"wrong currency", provider.Amount{Value: "10.00", Currency: "EUR"}, "10.00", "USD", OutcomeAmountMismatch},
		{"normalized decimal", provider.Amount{Value: "10.0", Currency: "EUR"}, "10.00", "EUR", OutcomeCompleted},
		{"unparsable settled amount", provider.Amount{Value: "ten", Currency: "EUR"}, "10.00", "EUR", OutcomeAmountMismatch},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			orders := newServiceOrderRepo()
			settingsRepo := &serviceSettingsRepo{settings: configuredSettings()}
			bunq := &fakeBunqClient{tab: &provider.BunqMeTab{
				ID:       "req-1",
				Payments: []provider.TabPayment{{ID: "pay-9", Amount: tc.settled}},
			}}
			svc := newGatewayServiceForTest(orders, &serviceNoteRepo{}, newServiceCartRepo(), settingsRepo, bunq, config.GatewayConfig{})

			issuedOrder(orders, "1023", tc.total, tc.currency, "req-1")

			outcome, err := svc.Reconcile(context.Background(), "req-1")
			if err != nil {
				t.Fatalf("reconcile failed: %v", err)
			}
			if outcome != tc.outcome {
				t.Fatalf("expected %s, got %s", tc.outcome, outcome)
			}
		})
	}
}

func TestReconcileStopsAtFirstMatchingPayment(t *testing.T) {
	orders := newServiceOrderRepo()
	settingsRepo := &serviceSettingsRepo{settings: configuredSettings()}
	bunq := &fakeBunqClient{tab: &provider.BunqMeTab{
		ID: "req-1",
		Payments: []provider.TabPayment{
			{ID: "pay-1", Amount: provider.Amount{Value: "49.95", Currency: "EUR"}},
			{ID: "pay-2", Amount: provider.Amount{Value: "49.95", Currency: "EUR"}},
		},
	}}
	svc := newGatewayServiceForTest(orders, &serviceNoteRepo{}, newServiceCartRepo(), settingsRepo, bunq, config.GatewayConfig{})

	order := issuedOrder(orders, "1023", "49.95", "EUR", "req-1")

	outcome, err := svc.Reconcile(context.Background(), "req-1")
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if outcome != OutcomeCompleted {
		t.Fatalf("expected completed outcome, got %s", outcome)
	}

	stored, _ := orders.FindByID(context.Background(), order.ID)
	if stored.PaymentID == nil || *stored.PaymentID != "pay-1" {
		t.Fatalf("expected first matching payment to win, got %v", stored.PaymentID)
	}
}

func TestReconcileAmbiguousCorrelationTakesNoAction(t *testing.T) {
	orders := newServiceOrderRepo()
	settingsRepo := &serviceSettingsRepo{settings: configuredSettings()}
	bunq := &fakeBunqClient{}
	svc := newGatewayServiceForTest(orders, &serviceNoteRepo{}, newServiceCartRepo(), settingsRepo, bunq, config.GatewayConfig{})

	outcome, err := svc.Reconcile(context.Background(), "req-unknown")
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if outcome != OutcomeNotFound {
		t.Fatalf("expected not-found outcome for zero matches, got %s", outcome)
	}

	issuedOrder(orders, "1023", "49.95", "EUR", "req-dup")
	issuedOrder(orders, "1024", "12.00", "EUR", "req-dup")

	outcome, err = svc.Reconcile(context.Background(), "req-dup")
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if outcome != OutcomeNotFound {
		t.Fatalf("expected not-found outcome for ambiguous matches, got %s", outcome)
	}
	if bunq.getTabCalls != 0 {
		t.Fatalf("expected no provider lookup on ambiguous correlation, got %d", bunq.getTabCalls)
	}

	for _, id := range []uint64{1, 2} {
		stored, _ := orders.FindByID(context.Background(), id)
		if stored.Status != entity.OrderStatusPending || stored.PaymentID != nil {
			t.Fatalf("expected order %d untouched", id)
		}
	}
}

func TestHandleNotificationFiltersNonActionableEvents(t *testing.T) {
	orders := newServiceOrderRepo()
	settingsRepo := &serviceSettingsRepo{settings: configuredSettings()}
	bunq := &fakeBunqClient{}
	svc := newGatewayServiceForTest(orders, &serviceNoteRepo{}, newServiceCartRepo(), settingsRepo, bunq, config.GatewayConfig{})

	cases := []*types.BunqNotification{
		{Category: "OTHER", EventType: types.NotificationEventTypeResultInquiryCreated, PaymentRequestID: "req-1"},
		{Category: types.NotificationCategoryBunqMeTab, EventType: "BUNQME_TAB_CREATED", PaymentRequestID: "req-1"},
	}
	for _, notification := range cases {
		outcome, err := svc.HandleNotification(context.Background(), notification)
		if err != nil {
			t.Fatalf("handle notification failed: %v", err)
		}
		if outcome != OutcomeIgnored {
			t.Fatalf("expected ignored outcome, got %s", outcome)
		}
	}
	if bunq.getTabCalls != 0 {
		t.Fatalf("expected reconciler not to be invoked, got %d provider lookups", bunq.getTabCalls)
	}
}

func TestHandleNotificationReconcilesMatchingEvent(t *testing.T) {
	orders := newServiceOrderRepo()
	settingsRepo := &serviceSettingsRepo{settings: configuredSettings()}
	bunq := &fakeBunqClient{tab: &provider.BunqMeTab{
		ID:       "req-1",
		Payments: []provider.TabPayment{{ID: "pay-9", Amount: provider.Amount{Value: "49.95", Currency: "EUR"}}},
	}}
	svc := newGatewayServiceForTest(orders, &serviceNoteRepo{}, newServiceCartRepo(), settingsRepo, bunq, config.GatewayConfig{})

	issuedOrder(orders, "1023", "49.95", "EUR", "req-1")

	outcome, err := svc.HandleNotification(context.Background(), &types.BunqNotification{
		Category:         types.NotificationCategoryBunqMeTab,
		EventType:        types.NotificationEventTypeResultInquiryCreated,
		PaymentRequestID: "req-1",
	})
	if err != nil {
		t.Fatalf("handle notification failed: %v", err)
	}
	if outcome != OutcomeCompleted {
		t.Fatalf("expected completed outcome, got %s", outcome)
	}
}

func TestCreateOrderAssignsCustomerRefAndCart(t *testing.T) {
	orders := newServiceOrderRepo()
	carts := newServiceCartRepo()
	svc := newGatewayServiceForTest(orders, &serviceNoteRepo{}, carts, &serviceSettingsRepo{}, &fakeBunqClient{}, config.GatewayConfig{})

	order, err := svc.CreateOrder(context.Background(), &types.CreateOrderRequest{
		Number:   "1023",
		Total:    "49.95",
		Currency: "EUR",
		Items:    map[string]int64{"sku-1": 2},
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	if order.CustomerRef == "" {
		t.Fatal("expected customer ref to be assigned")
	}
	if order.Status != entity.OrderStatusPending {
		t.Fatalf("expected pending order, got %s", order.Status)
	}

	cart, _ := carts.FindByCustomerRef(context.Background(), order.CustomerRef)
	if cart == nil || cart.Items["sku-1"] != 2 {
		t.Fatalf("expected cart with items, got %+v", cart)
	}
}

func TestSaveSettingsRegeneratesAPIContextForActiveMode(t *testing.T) {
	bunq := &fakeBunqClient{contextBlob: `{"base_url":"https://sandbox.bunq.test","session_token":"tok","user_id":2}`}
	settingsRepo := &serviceSettingsRepo{}
	svc := newGatewayServiceForTest(newServiceOrderRepo(), &serviceNoteRepo{}, newServiceCartRepo(), settingsRepo, bunq, config.GatewayConfig{
		CallbackBaseURL: "https://shop.example",
	})

	saved, err := svc.SaveSettings(context.Background(), &types.UpdateSettingsRequest{
		Enabled:    true,
		Title:      "iDEAL, Credit Card or Sofort",
		Testmode:   true,
		TestAPIKey: "sandbox-key",
	})
	if err != nil {
		t.Fatalf("save settings failed: %v", err)
	}

	if bunq.contextCalls != 1 || !bunq.lastContextSandbox {
		t.Fatalf("expected one sandbox api context creation, calls=%d sandbox=%v", bunq.contextCalls, bunq.lastContextSandbox)
	}
	if saved.TestAPIContext == nil || *saved.TestAPIContext != bunq.contextBlob {
		t.Fatal("expected test api context blob to be stored verbatim")
	}
	if saved.APIContext != nil {
		t.Fatal("expected live api context to stay empty")
	}
	if bunq.ensureCalls != 1 || bunq.ensureTargets[0] != "https://shop.example/webhooks/bunq" {
		t.Fatalf("expected notification filter for webhook url, got %+v", bunq.ensureTargets)
	}
}

func TestSaveSettingsSkipsNotificationFiltersForLoopback(t *testing.T) {
	bunq := &fakeBunqClient{}
	settingsRepo := &serviceSettingsRepo{}
	svc := newGatewayServiceForTest(newServiceOrderRepo(), &serviceNoteRepo{}, newServiceCartRepo(), settingsRepo, bunq, config.GatewayConfig{
		CallbackBaseURL: "http://localhost:8080",
	})

	_, err := svc.SaveSettings(context.Background(), &types.UpdateSettingsRequest{
		Enabled:    true,
		Testmode:   true,
		TestAPIKey: "sandbox-key",
	})
	if err != nil {
		t.Fatalf("save settings failed: %v", err)
	}
	if bunq.ensureCalls != 0 {
		t.Fatalf("expected filter setup to be skipped for loopback, got %d calls", bunq.ensureCalls)
	}
}

func TestListBankAccountsRequiresConfiguredContext(t *testing.T) {
	svc := newGatewayServiceForTest(newServiceOrderRepo(), &serviceNoteRepo{}, newServiceCartRepo(), &serviceSettingsRepo{}, &fakeBunqClient{}, config.GatewayConfig{})

	if _, err := svc.ListBankAccounts(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
