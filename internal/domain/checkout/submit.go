package checkout

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Submit runs the two-phase submission protocol from the review step:
//
//  1. Create the order on the commerce backend. A failure aborts — no
//     payment attempt is made without an order id.
//  2. Create the payment preference referencing the new order. A failure is
//     surfaced but the order stands: the known inconsistency window is
//     recorded in the submission log instead of auto-rolled back.
//  3. On full success the cart is cleared, the session is marked complete,
//     and the payment redirect URL is exposed on the view. Cart clearing
//     strictly follows the preference response, never precedes it.
//
// Each submission chain carries a request id persisted before the order
// call; a retry after step 1 succeeded reuses the recorded order id and only
// re-attempts the preference. Concurrent submissions for one session are
// rejected while one is in flight.
func (m *Machine) Submit(ctx context.Context, id string) (*View, error) {
	m.mu.Lock()
	s := m.get(id)
	if s.completed {
		m.mu.Unlock()
		return nil, ErrCheckoutCompleted
	}
	if s.step != StepReview {
		m.mu.Unlock()
		return nil, ErrNotAtReview
	}
	if s.submitting {
		m.mu.Unlock()
		return nil, ErrSubmitInFlight
	}
	for step := firstStep; step < StepReview; step++ {
		if serr := validateAt(s, step); serr != nil {
			m.mu.Unlock()
			return nil, serr
		}
	}
	s.submitting = true
	billing, sel, payment := s.billing, s.shipping, s.payment
	orderID, requestID := s.orderID, s.requestID
	m.mu.Unlock()

	finish := func() {
		m.mu.Lock()
		s.submitting = false
		m.mu.Unlock()
	}

	c, err := m.carts.Get(ctx, id)
	if err != nil {
		finish()
		return nil, err
	}
	if len(c.Lines) == 0 {
		finish()
		return nil, ErrEmptyCart
	}

	items := make([]OrderItem, len(c.Lines))
	for i, line := range c.Lines {
		items[i] = OrderItem{
			ProductID: line.ProductID,
			Name:      line.Name,
			Quantity:  line.Quantity,
			Price:     line.Price,
		}
	}
	summary := Totals(c.Subtotal(), sel)

	lg := zctx.From(ctx)

	// Phase 1: order creation, skipped when resuming after a preference
	// failure left us with an order id already.
	if orderID == 0 {
		requestID = m.newID()
		if err := m.log.Create(ctx, &Submission{
			RequestID:     requestID,
			SessionID:     id,
			PaymentMethod: payment,
			ShippingCost:  summary.Shipping,
			Total:         summary.Total,
			Status:        SubmissionPending,
		}); err != nil {
			finish()
			return nil, errors.Wrap(err, "record submission")
		}

		orderID, err = m.backend.CreateOrder(ctx, OrderRequest{
			Name:         billing.Name,
			Email:        billing.Email,
			Phone:        billing.Phone,
			ShippingCost: summary.Shipping,
			Items:        items,
		})
		if err != nil {
			if logErr := m.log.SetStatus(ctx, requestID, SubmissionOrderFailed, ""); logErr != nil {
				lg.Warn("Submission log update failed", zap.Error(logErr))
			}
			finish()
			return nil, &OrderCreateError{Err: err}
		}

		m.mu.Lock()
		s.requestID = requestID
		s.orderID = orderID
		m.mu.Unlock()

		if logErr := m.log.SetOrder(ctx, requestID, orderID); logErr != nil {
			lg.Warn("Submission log update failed", zap.Error(logErr))
		}
	}

	// Phase 2: payment preference for the created order.
	initPoint, err := m.backend.CreatePaymentPreference(ctx, PreferenceRequest{
		OrderID:       orderID,
		PaymentMethod: payment,
		ShippingCost:  summary.Shipping,
		Items:         items,
	})
	if err != nil {
		if logErr := m.log.SetStatus(ctx, requestID, SubmissionPaymentFailed, ""); logErr != nil {
			lg.Warn("Submission log update failed", zap.Error(logErr))
		}
		finish()
		return nil, &PreferenceError{OrderID: orderID, Err: err}
	}

	if logErr := m.log.SetStatus(ctx, requestID, SubmissionCompleted, initPoint); logErr != nil {
		lg.Warn("Submission log update failed", zap.Error(logErr))
	}

	// Cart clearing strictly follows the successful preference response.
	if err := m.carts.Clear(ctx, id); err != nil {
		lg.Warn("Cart clear after submission failed", zap.Error(err))
	}

	m.mu.Lock()
	s.completed = true
	s.initPoint = initPoint
	s.submitting = false
	// Billing and payment choices are scoped to one checkout and do not
	// survive completion.
	s.billing = BillingData{}
	s.payment = ""
	m.mu.Unlock()

	return m.view(ctx, s)
}
