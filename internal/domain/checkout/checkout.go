// Package checkout implements the multi-step checkout flow: a five-step
// wizard holding billing data, shipping selection, and payment choice, with
// per-step preconditions, total calculation, and the two-phase order
// submission protocol.
package checkout

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/velaluna/storefront-api/internal/domain/shipping"
)

// Step identifies a position in the checkout wizard.
type Step int

const (
	// StepShippingMethod selects the coarse delivery method.
	StepShippingMethod Step = 1
	// StepShippingQuote obtains a cost quote (and carrier, for freight).
	StepShippingQuote Step = 2
	// StepBilling collects personal and address data. For free methods only
	// name, phone, and email are required ("simple mode").
	StepBilling Step = 3
	// StepPayment selects the payment method.
	StepPayment Step = 4
	// StepReview shows the order summary and triggers submission.
	StepReview Step = 5
)

// First and last steps of the wizard.
const (
	firstStep = StepShippingMethod
	lastStep  = StepReview
)

// Known payment methods. The machine only requires a non-empty selection;
// unknown values are passed through to the backend, which owns the
// authoritative list.
const (
	PaymentMercadoPago   = "mercadopago"
	PaymentCredito       = "credito"
	PaymentDebito        = "debito"
	PaymentTransferencia = "transferencia"
)

// BillingData holds the personal and address fields collected at StepBilling.
// It is scoped to one checkout session and discarded on restart or
// completion.
type BillingData struct {
	Name       string `json:"name"`
	Address    string `json:"address"`
	City       string `json:"city"`
	Province   string `json:"province"`
	PostalCode string `json:"postal_code"`
	Phone      string `json:"phone"`
	Extra      string `json:"extra"`
	Email      string `json:"email"`
}

// Customer is a backend customer profile used to prefill billing data.
type Customer struct {
	Name       string
	Email      string
	Phone      string
	Address    string
	Extra      string
	Province   string
	PostalCode string
}

// Sentinel errors for checkout flow control.
var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrNotAtReview        = errors.New("submission is only possible from the review step")
	ErrSubmitInFlight     = errors.New("submission already in progress")
	ErrCheckoutCompleted  = errors.New("checkout already completed")
	ErrQuoteMethodMissing = errors.New("shipping method required")
)

// OrderCreateError indicates the backend rejected or failed order creation.
// No payment attempt was made.
type OrderCreateError struct {
	Err error
}

func (e *OrderCreateError) Error() string {
	return fmt.Sprintf("order creation failed: %v", e.Err)
}

func (e *OrderCreateError) Unwrap() error { return e.Err }

// PreferenceError indicates payment preference creation failed after the
// order was already created. OrderID identifies the order left without a
// payment attempt.
type PreferenceError struct {
	OrderID int64
	Err     error
}

func (e *PreferenceError) Error() string {
	return fmt.Sprintf("payment preference for order %d failed: %v", e.OrderID, e.Err)
}

func (e *PreferenceError) Unwrap() error { return e.Err }

// StepError is a user-visible validation failure blocking a step transition.
type StepError struct {
	Step    Step
	Message string
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d: %s", e.Step, e.Message)
}

// OrderItem is one line of an order submission.
type OrderItem struct {
	ProductID string
	Name      string
	Quantity  int
	Price     decimal.Decimal
}

// OrderRequest is the payload for order creation on the commerce backend.
type OrderRequest struct {
	Name         string
	Email        string
	Phone        string
	ShippingCost decimal.Decimal
	Items        []OrderItem
}

// PreferenceRequest is the payload for creating a payment preference
// referencing a created order.
type PreferenceRequest struct {
	OrderID       int64
	PaymentMethod string
	ShippingCost  decimal.Decimal
	Items         []OrderItem
}

// Backend is the slice of the commerce backend the checkout flow consumes.
// Order creation strictly precedes preference creation; the returned init
// point is the external payment redirect URL.
type Backend interface {
	CreateOrder(ctx context.Context, req OrderRequest) (int64, error)
	CreatePaymentPreference(ctx context.Context, req PreferenceRequest) (string, error)
	FetchCustomer(ctx context.Context) (*Customer, error)
}

// SubmissionStatus tracks the lifecycle of one submission attempt.
type SubmissionStatus string

const (
	SubmissionPending       SubmissionStatus = "pending"
	SubmissionOrderCreated  SubmissionStatus = "order_created"
	SubmissionCompleted     SubmissionStatus = "completed"
	SubmissionOrderFailed   SubmissionStatus = "order_failed"
	SubmissionPaymentFailed SubmissionStatus = "payment_failed"
)

// Submission is the audit record for one submission attempt. OrderID stays
// zero until the backend assigns one; a payment_failed record with a non-zero
// OrderID marks the known inconsistency window where an order exists with no
// payment attempt.
type Submission struct {
	RequestID     string
	SessionID     string
	OrderID       int64
	InitPoint     string
	PaymentMethod string
	ShippingCost  decimal.Decimal
	Total         decimal.Decimal
	Status        SubmissionStatus
}

// SubmissionLog persists submission attempts for audit and idempotent resume.
type SubmissionLog interface {
	Create(ctx context.Context, sub *Submission) error
	SetOrder(ctx context.Context, requestID string, orderID int64) error
	SetStatus(ctx context.Context, requestID string, status SubmissionStatus, initPoint string) error
}

// Summary holds the totals shown at every step.
type Summary struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
}

// Totals computes the order summary as a pure function of the cart subtotal
// and the shipping selection. Free methods contribute zero shipping no matter
// what cost value is held.
func Totals(subtotal decimal.Decimal, sel shipping.Selection) Summary {
	ship := sel.EffectiveCost()
	return Summary{
		Subtotal: subtotal,
		Shipping: ship,
		Total:    subtotal.Add(ship),
	}
}
