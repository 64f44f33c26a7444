package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-bunq-gateway/app/repository"
	"github.com/vibast-solutions/ms-go-bunq-gateway/app/types"
)

type ReconcileOutcome string

const (
	OutcomeCompleted        ReconcileOutcome = "completed"
	OutcomeAlreadyCompleted ReconcileOutcome = "already_completed"
	OutcomeAmountMismatch   ReconcileOutcome = "amount_mismatch"
	OutcomeNotFound         ReconcileOutcome = "not_found"
	OutcomeIgnored          ReconcileOutcome = "ignored"
)

// HandleNotification filters an inbound bunq push and reconciles the
// referenced payment request. Non-actionable notifications are discarded
// without error; the provider only ever sees an acknowledgment.
func (s *GatewayService) HandleNotification(ctx context.Context, notification *types.BunqNotification) (ReconcileOutcome, error) {
	if !notification.Actionable() {
		s.logger.WithFields(logrus.Fields{
			"category":   notification.Category,
			"event_type": notification.EventType,
		}).Debug("notification discarded")
		return OutcomeIgnored, nil
	}

	return s.Reconcile(ctx, notification.PaymentRequestID)
}

// Reconcile looks up the order bound to a payment request, validates the
// settled payments reported by bunq against the order's exact total and
// currency, and completes the order at most once.
func (s *GatewayService) Reconcile(ctx context.Context, requestID string) (ReconcileOutcome, error) {
	orders, err := s.orders.FindByPaymentRequestID(ctx, requestID)
	if err != nil {
		return OutcomeNotFound, err
	}
	if len(orders) != 1 {
		// 0 matches means an unknown tab; 2+ means the correlation key is
		// ambiguous. Neither permits any safe action.
		s.logger.WithFields(logrus.Fields{
			"payment_request_id": requestID,
			"matches":            len(orders),
		}).Warn("payment request does not correlate to exactly one order")
		return OutcomeNotFound, nil
	}
	order := orders[0]

	if order.PaymentID != nil {
		return OutcomeAlreadyCompleted, nil
	}

	settings, err := s.activeSettings(ctx)
	if err != nil {
		return OutcomeNotFound, err
	}
	apiContext := settings.ActiveAPIContext()
	if apiContext == "" {
		return OutcomeNotFound, ErrNotConfigured
	}

	tab, err := s.bunq.GetBunqMeTab(ctx, apiContext, requestID, settings.MonetaryAccountID)
	if err != nil {
		return OutcomeNotFound, err
	}

	for _, payment := range tab.Payments {
		if payment.Amount.Currency != order.Currency {
			continue
		}
		if !amountsEqual(payment.Amount.Value, order.Total) {
			continue
		}

		now := time.Now().UTC()

		paymentID := payment.ID
		order.PaymentID = &paymentID
		order.UpdatedAt = now
		if err := s.orders.Update(ctx, order); err != nil {
			return OutcomeNotFound, err
		}

		if err := s.orders.MarkPaid(ctx, order.ID, now); err != nil {
			if errors.Is(err, repository.ErrOrderNotPending) {
				// A concurrent delivery won the compare-and-set.
				return OutcomeAlreadyCompleted, nil
			}
			return OutcomeNotFound, err
		}

		// The note records a completion, so it is only written once the
		// compare-and-set has actually completed the order.
		s.addNote(ctx, order.ID, "bunq payment received "+payment.ID)

		if err := s.carts.EmptyByCustomerRef(ctx, order.CustomerRef, now); err != nil {
			s.logger.WithError(err).WithField("order", order.Number).Warn("failed to empty cart after payment")
		}

		s.logger.WithFields(logrus.Fields{
			"order":              order.Number,
			"payment_request_id": requestID,
			"payment_id":         payment.ID,
		}).Info("order completed")

		return OutcomeCompleted, nil
	}

	s.logger.WithFields(logrus.Fields{
		"order":              order.Number,
		"payment_request_id": requestID,
		"settled_payments":   len(tab.Payments),
	}).Warn("no settled payment matches order amount and currency")

	return OutcomeAmountMismatch, nil
}

// amountsEqual compares two decimal amount strings at full precision, so
// "10.0" equals "10.00" but never "10.01". Unparsable values never match.
func amountsEqual(a, b string) bool {
	left, err := decimal.NewFromString(a)
	if err != nil {
		return false
	}
	right, err := decimal.NewFromString(b)
	if err != nil {
		return false
	}
	return left.Equal(right)
}
