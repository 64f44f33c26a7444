package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-bunq-gateway/app/factory"
	"github.com/vibast-solutions/ms-go-bunq-gateway/app/mapper"
	"github.com/vibast-solutions/ms-go-bunq-gateway/app/service"
	"github.com/vibast-solutions/ms-go-bunq-gateway/app/types"
)

type GatewayController struct {
	gatewayService *service.GatewayService
	logger         logrus.FieldLogger
}

func NewGatewayController(gatewayService *service.GatewayService) *GatewayController {
	return &GatewayController{
		gatewayService: gatewayService,
		logger:         factory.NewModuleLogger("gateway-controller"),
	}
}

func (c *GatewayController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

func (c *GatewayController) CreateOrder(ctx echo.Context) error {
	req, err := types.NewCreateOrderRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	order, err := c.gatewayService.CreateOrder(ctx.Request().Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderAlreadyExists):
			return c.writeError(ctx, http.StatusConflict, err.Error())
		case errors.Is(err, service.ErrInvalidRequest):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		default:
			c.logger.WithError(err).Error("Create order failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusCreated, mapper.OrderToResponse(order, nil))
}

func (c *GatewayController) GetOrder(ctx echo.Context) error {
	req, err := types.NewGetOrderRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	order, notes, err := c.gatewayService.GetOrder(ctx.Request().Context(), req.ID)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			return c.writeError(ctx, http.StatusNotFound, "order not found")
		}
		c.logger.WithError(err).Error("Get order failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, mapper.OrderToResponse(order, notes))
}

// Checkout issues a bunq payment request for a pending order and returns
// the hosted page the shopper should be redirected to. Failures come back
// as result "failure" so the storefront can fall back to an error page.
func (c *GatewayController) Checkout(ctx echo.Context) error {
	req, err := types.NewCheckoutRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	result, err := c.gatewayService.IssuePaymentRequest(ctx.Request().Context(), req.OrderID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			return c.writeError(ctx, http.StatusNotFound, "order not found")
		case errors.Is(err, service.ErrInvalidStatus), errors.Is(err, service.ErrInvalidRequest):
			return c.writeFailure(ctx, http.StatusConflict)
		case errors.Is(err, service.ErrGatewayDisabled), errors.Is(err, service.ErrNotConfigured):
			return c.writeFailure(ctx, http.StatusServiceUnavailable)
		case errors.Is(err, service.ErrIssueFailed):
			return c.writeFailure(ctx, http.StatusBadGateway)
		default:
			c.logger.WithError(err).Error("Checkout failed")
			return c.writeFailure(ctx, http.StatusInternalServerError)
		}
	}

	return ctx.JSON(http.StatusOK, &types.CheckoutResponse{Result: "success", Redirect: result.RedirectURL})
}

// HandleBunqNotification acknowledges every webhook push with 200 so bunq
// never goes into redelivery storms over payloads this gateway rejects.
// Parse failures and reconciliation problems are logged, not surfaced.
func (c *GatewayController) HandleBunqNotification(ctx echo.Context) error {
	logger := factory.LoggerWithContext(c.logger, ctx)

	notification, err := types.NewBunqNotificationFromContext(ctx)
	if err != nil {
		logger.WithError(err).Warn("Discarding unparsable bunq notification")
		return ctx.NoContent(http.StatusOK)
	}

	outcome, err := c.gatewayService.HandleNotification(ctx.Request().Context(), notification)
	if err != nil {
		logger.WithError(err).Error("Bunq notification handling failed")
		return ctx.NoContent(http.StatusOK)
	}

	logger.WithFields(logrus.Fields{
		"category":           notification.Category,
		"event_type":         notification.EventType,
		"payment_request_id": notification.PaymentRequestID,
		"outcome":            string(outcome),
	}).Info("Bunq notification processed")

	return ctx.NoContent(http.StatusOK)
}

func (c *GatewayController) GetSettings(ctx echo.Context) error {
	settings, err := c.gatewayService.GetSettings(ctx.Request().Context())
	if err != nil {
		c.logger.WithError(err).Error("Get settings failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, mapper.SettingsToResponse(settings))
}

func (c *GatewayController) UpdateSettings(ctx echo.Context) error {
	req, err := types.NewUpdateSettingsRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	settings, err := c.gatewayService.SaveSettings(ctx.Request().Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrNotConfigured) {
			return c.writeError(ctx, http.StatusBadRequest, "bunq rejected the api key")
		}
		c.logger.WithError(err).Error("Update settings failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, mapper.SettingsToResponse(settings))
}

func (c *GatewayController) ListBankAccounts(ctx echo.Context) error {
	accounts, err := c.gatewayService.ListBankAccounts(ctx.Request().Context())
	if err != nil {
		if errors.Is(err, service.ErrNotConfigured) {
			return c.writeError(ctx, http.StatusServiceUnavailable, "gateway is not configured")
		}
		c.logger.WithError(err).Error("List bank accounts failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, mapper.AccountsToResponse(accounts))
}

func (c *GatewayController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}

func (c *GatewayController) writeFailure(ctx echo.Context, statusCode int) error {
	return ctx.JSON(statusCode, &types.CheckoutResponse{Result: "failure"})
}
