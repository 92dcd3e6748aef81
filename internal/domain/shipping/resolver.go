package shipping

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// Quoter fetches a raw cost quote from the commerce backend. The tipo
// argument is the backend's quote endpoint selector: "correo" for postal
// shipping or a carrier name for freight.
type Quoter interface {
	QuoteShipping(ctx context.Context, postalCode string, tipo string) (decimal.Decimal, error)
}

// Resolver applies the shipping policy table and delegates to a Quoter for
// methods that need a network quote. Concurrent quotes for the same
// (postal code, tipo) pair are coalesced into a single backend call.
type Resolver struct {
	quoter Quoter
	group  singleflight.Group
}

// NewResolver creates a Resolver backed by quoter.
func NewResolver(quoter Quoter) *Resolver {
	return &Resolver{quoter: quoter}
}

// Quote resolves the cost for the given selection.
//
// Pickup and arranged delivery are always free and never hit the network.
// Postal shipping requires a postal code; freight additionally requires a
// carrier. Precondition failures return the matching sentinel error without
// a backend call, leaving the caller's cost untouched.
func (r *Resolver) Quote(ctx context.Context, postalCode string, method Method, carrier Carrier) (decimal.Decimal, error) {
	switch method {
	case MethodPickup, MethodArrange:
		return decimal.Zero, nil
	case MethodCorreo:
		if postalCode == "" {
			return decimal.Zero, ErrPostalCodeRequired
		}
		return r.fetch(ctx, postalCode, "correo")
	case MethodTransporte:
		if postalCode == "" {
			return decimal.Zero, ErrPostalCodeRequired
		}
		if carrier == CarrierNone {
			return decimal.Zero, ErrCarrierRequired
		}
		return r.fetch(ctx, postalCode, string(carrier))
	default:
		return decimal.Zero, errors.Wrapf(ErrUnknownMethod, "%q", method)
	}
}

func (r *Resolver) fetch(ctx context.Context, postalCode, tipo string) (decimal.Decimal, error) {
	v, err, _ := r.group.Do(postalCode+"|"+tipo, func() (any, error) {
		return r.quoter.QuoteShipping(ctx, postalCode, tipo)
	})
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "quote shipping")
	}

	cost := v.(decimal.Decimal)
	// The backend occasionally returns quotes without a usable price. Fail
	// soft to zero: the review step shows the actual number and the user can
	// retry, while a negative or absent price must never block checkout with
	// a nonsense total.
	if cost.IsNegative() {
		return decimal.Zero, nil
	}
	return cost, nil
}
