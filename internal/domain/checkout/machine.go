package checkout

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/velaluna/storefront-api/internal/domain/cart"
	"github.com/velaluna/storefront-api/internal/domain/shipping"
)

// session is the mutable wizard state for one storefront session. All access
// goes through Machine, which holds the lock.
type session struct {
	id       string
	step     Step
	billing  BillingData
	shipping shipping.Selection
	payment  string

	// quotePostal is the postal code used for shipping quotes at step 2,
	// entered before the billing address exists.
	quotePostal string

	completed bool
	initPoint string

	// Submission idempotency: requestID is generated once per submission
	// attempt chain; orderID is recorded after a successful order creation so
	// a retry resumes at the payment preference instead of creating a second
	// order.
	requestID  string
	orderID    int64
	submitting bool

	// lastSeen drives idle eviction; see Machine.sweep.
	lastSeen time.Time
}

// View is a read-only snapshot of a checkout session, including totals
// recomputed from the live cart on every call.
type View struct {
	SessionID     string             `json:"session_id"`
	Step          Step               `json:"step"`
	Billing       BillingData        `json:"billing"`
	Shipping      shipping.Selection `json:"shipping"`
	PaymentMethod string             `json:"payment_method"`
	Completed     bool               `json:"completed"`
	OrderID       int64              `json:"order_id,omitempty"`
	InitPoint     string             `json:"init_point,omitempty"`
	Summary       Summary            `json:"summary"`
}

// Machine drives checkout sessions: step transitions with per-step
// preconditions, shipping quotes, and order submission. It is safe for
// concurrent use.
type Machine struct {
	carts    *cart.Store
	resolver *shipping.Resolver
	backend  Backend
	log      SubmissionLog
	newID    func() string

	mu       sync.Mutex
	sessions map[string]*session
}

// NewMachine creates a Machine with the given collaborators. newID generates
// submission request ids (uuid in production).
func NewMachine(carts *cart.Store, resolver *shipping.Resolver, backend Backend, log SubmissionLog, newID func() string) *Machine {
	return &Machine{
		carts:    carts,
		resolver: resolver,
		backend:  backend,
		log:      log,
		newID:    newID,
		sessions: make(map[string]*session),
	}
}

// get returns the session for id, creating it at the first step when absent.
// Caller must hold m.mu.
func (m *Machine) get(id string) *session {
	s, ok := m.sessions[id]
	if !ok {
		s = &session{id: id, step: firstStep}
		m.sessions[id] = s
	}
	s.lastSeen = time.Now()
	return s
}

// sweep drops sessions idle for at least ttl. An in-flight submission keeps
// its session alive regardless of age.
func (m *Machine) sweep(now time.Time, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.submitting {
			continue
		}
		if now.Sub(s.lastSeen) >= ttl {
			delete(m.sessions, id)
		}
	}
}

// RunEviction sweeps idle sessions every interval until ctx is cancelled.
// Carts in Redis carry their own TTL; this bounds only the in-memory wizard
// state, so an evicted visitor restarts the checkout at the first step with
// the cart intact.
func (m *Machine) RunEviction(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.sweep(now, ttl)
		}
	}
}

// view snapshots the session under the lock, then fetches the cart without
// it to recompute totals. Callers must not hold m.mu.
func (m *Machine) view(ctx context.Context, s *session) (*View, error) {
	m.mu.Lock()
	v := &View{
		SessionID:     s.id,
		Step:          s.step,
		Billing:       s.billing,
		Shipping:      s.shipping,
		PaymentMethod: s.payment,
		Completed:     s.completed,
		OrderID:       s.orderID,
		InitPoint:     s.initPoint,
	}
	m.mu.Unlock()

	c, err := m.carts.Get(ctx, v.SessionID)
	if err != nil {
		return nil, err
	}
	v.Summary = Totals(c.Subtotal(), v.Shipping)
	return v, nil
}

// Session returns the current view for id, creating a fresh session when
// none exists.
func (m *Machine) Session(ctx context.Context, id string) (*View, error) {
	m.mu.Lock()
	s := m.get(id)
	m.mu.Unlock()
	return m.view(ctx, s)
}

// Reset discards the session's state and starts over at the first step.
// Billing data does not survive a restart.
func (m *Machine) Reset(ctx context.Context, id string) (*View, error) {
	m.mu.Lock()
	s := &session{id: id, step: firstStep, lastSeen: time.Now()}
	m.sessions[id] = s
	m.mu.Unlock()
	return m.view(ctx, s)
}

// validateAt checks the advance precondition for the given step. It returns
// nil when the step may be left via Next.
func validateAt(s *session, step Step) *StepError {
	switch step {
	case StepShippingMethod:
		if s.shipping.Method == shipping.MethodNone {
			return &StepError{Step: step, Message: "select a shipping method"}
		}
	case StepShippingQuote:
		if s.shipping.Method.NeedsQuote() && !s.shipping.Cost.IsPositive() {
			return &StepError{Step: step, Message: "calculate the shipping cost before continuing"}
		}
	case StepBilling:
		if missing := missingBillingFields(s); len(missing) > 0 {
			return &StepError{
				Step:    step,
				Message: "complete the required fields: " + strings.Join(missing, ", "),
			}
		}
	case StepPayment:
		if s.payment == "" {
			return &StepError{Step: step, Message: "select a payment method"}
		}
	case StepReview:
		// Review always passes; leaving it means submitting.
	}
	return nil
}

// missingBillingFields lists empty required billing fields for the session's
// mode. Free shipping methods suppress the address fields ("simple mode").
func missingBillingFields(s *session) []string {
	var missing []string
	require := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	require("name", s.billing.Name)
	require("phone", s.billing.Phone)
	require("email", s.billing.Email)
	if !s.shipping.Method.Free() {
		require("address", s.billing.Address)
		require("postal_code", s.billing.PostalCode)
		require("province", s.billing.Province)
	}
	return missing
}

// Next validates the current step and advances to the following one. From
// the review step it triggers submission instead of incrementing. A failed
// precondition returns a *StepError and leaves the step unchanged.
func (m *Machine) Next(ctx context.Context, id string) (*View, error) {
	m.mu.Lock()
	s := m.get(id)
	if s.step == StepReview {
		m.mu.Unlock()
		return m.Submit(ctx, id)
	}
	if serr := validateAt(s, s.step); serr != nil {
		m.mu.Unlock()
		return nil, serr
	}
	s.step++
	m.mu.Unlock()
	return m.view(ctx, s)
}

// Back moves to the previous step. The first step is terminal going
// backwards. From the payment step with a free shipping method the wizard
// skips straight to the quote step, since the billing step showed no address
// fields in that mode.
func (m *Machine) Back(ctx context.Context, id string) (*View, error) {
	m.mu.Lock()
	s := m.get(id)
	switch {
	case s.step <= firstStep:
		// no-op
	case s.step == StepPayment && s.shipping.Method.Free():
		s.step = StepShippingQuote
	default:
		s.step--
	}
	m.mu.Unlock()
	return m.view(ctx, s)
}

// SetShippingMethod updates the delivery method. Any change resets the
// quoted cost to zero and clears the carrier: a stale quote must never
// survive a method change.
func (m *Machine) SetShippingMethod(ctx context.Context, id string, method shipping.Method) (*View, error) {
	m.mu.Lock()
	s := m.get(id)
	if s.shipping.Method != method {
		s.shipping = shipping.Selection{Method: method, Cost: decimal.Zero}
		s.quotePostal = ""
	}
	m.mu.Unlock()
	return m.view(ctx, s)
}

// SetCarrier updates the freight carrier. Switching carriers invalidates the
// previous carrier's quote.
func (m *Machine) SetCarrier(ctx context.Context, id string, carrier shipping.Carrier) (*View, error) {
	m.mu.Lock()
	s := m.get(id)
	if s.shipping.Carrier != carrier {
		s.shipping.Carrier = carrier
		s.shipping.Cost = decimal.Zero
		s.quotePostal = ""
	}
	m.mu.Unlock()
	return m.view(ctx, s)
}

// SetBilling replaces the session's billing data.
func (m *Machine) SetBilling(ctx context.Context, id string, b BillingData) (*View, error) {
	m.mu.Lock()
	s := m.get(id)
	s.billing = b
	m.mu.Unlock()
	return m.view(ctx, s)
}

// SetPaymentMethod records the payment choice. Validation happens when
// leaving the payment step, not here.
func (m *Machine) SetPaymentMethod(ctx context.Context, id, method string) (*View, error) {
	m.mu.Lock()
	s := m.get(id)
	s.payment = method
	m.mu.Unlock()
	return m.view(ctx, s)
}

// Quote resolves the shipping cost for the session's current method and
// carrier using the given postal code, and stores the result on success. A
// failed re-quote for the same postal code keeps the previous cost; a failed
// quote for a different postal code clears it, so a price quoted for one
// destination never applies to another.
func (m *Machine) Quote(ctx context.Context, id, postalCode string) (*View, error) {
	m.mu.Lock()
	s := m.get(id)
	method, carrier := s.shipping.Method, s.shipping.Carrier
	m.mu.Unlock()

	if method == shipping.MethodNone {
		return nil, ErrQuoteMethodMissing
	}

	cost, err := m.resolver.Quote(ctx, postalCode, method, carrier)
	if err != nil {
		m.mu.Lock()
		if s.shipping.Method == method && s.shipping.Carrier == carrier &&
			s.quotePostal != "" && s.quotePostal != postalCode {
			s.shipping.Cost = decimal.Zero
			s.quotePostal = ""
		}
		m.mu.Unlock()
		return nil, err
	}

	m.mu.Lock()
	// The method may have changed while the quote was in flight; a stale
	// quote must not overwrite the reset cost.
	if s.shipping.Method == method && s.shipping.Carrier == carrier {
		s.shipping.Cost = cost
		s.quotePostal = postalCode
	}
	m.mu.Unlock()
	return m.view(ctx, s)
}

// Prefill fills empty billing fields from the backend customer profile. A
// missing profile is not an error; explicit user input is never overwritten.
func (m *Machine) Prefill(ctx context.Context, id string) (*View, error) {
	cust, err := m.backend.FetchCustomer(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fetch customer")
	}

	m.mu.Lock()
	s := m.get(id)
	if cust != nil {
		fill := func(dst *string, v string) {
			if *dst == "" {
				*dst = v
			}
		}
		fill(&s.billing.Name, cust.Name)
		fill(&s.billing.Email, cust.Email)
		fill(&s.billing.Phone, cust.Phone)
		fill(&s.billing.Address, cust.Address)
		fill(&s.billing.Extra, cust.Extra)
		fill(&s.billing.Province, cust.Province)
		fill(&s.billing.PostalCode, cust.PostalCode)
	}
	m.mu.Unlock()
	return m.view(ctx, s)
}
