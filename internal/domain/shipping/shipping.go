// Package shipping maps a delivery selection to a quoted cost.
package shipping

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Method is the coarse delivery method chosen at checkout.
type Method string

const (
	// MethodNone is the zero selection before the user picks a method.
	MethodNone Method = ""
	// MethodCorreo ships via the postal service.
	MethodCorreo Method = "correo"
	// MethodTransporte ships via a freight carrier (requires a Carrier).
	MethodTransporte Method = "transporte"
	// MethodPickup is in-store pickup; always free.
	MethodPickup Method = "pickup"
	// MethodArrange is delivery arranged manually with the seller; always free.
	MethodArrange Method = "arrange"
)

// Carrier is a freight provider, meaningful only under MethodTransporte.
type Carrier string

const (
	CarrierNone     Carrier = ""
	CarrierViacargo Carrier = "viacargo"
	CarrierCata     Carrier = "cata"
	CarrierAndesmar Carrier = "andesmar"
)

var (
	// ErrUnknownMethod is returned for a method outside the supported set.
	ErrUnknownMethod = errors.New("unknown shipping method")
	// ErrUnknownCarrier is returned for a carrier outside the supported set.
	ErrUnknownCarrier = errors.New("unknown shipping carrier")
	// ErrPostalCodeRequired is returned when a quote needs a postal code.
	ErrPostalCodeRequired = errors.New("postal code required")
	// ErrCarrierRequired is returned for a freight quote without a carrier.
	ErrCarrierRequired = errors.New("carrier required for freight shipping")
)

// ParseMethod validates s as a shipping method. The empty string is valid
// and means no selection.
func ParseMethod(s string) (Method, error) {
	switch m := Method(s); m {
	case MethodNone, MethodCorreo, MethodTransporte, MethodPickup, MethodArrange:
		return m, nil
	default:
		return MethodNone, errors.Wrapf(ErrUnknownMethod, "%q", s)
	}
}

// ParseCarrier validates s as a carrier. The empty string is valid and means
// no selection.
func ParseCarrier(s string) (Carrier, error) {
	switch c := Carrier(s); c {
	case CarrierNone, CarrierViacargo, CarrierCata, CarrierAndesmar:
		return c, nil
	default:
		return CarrierNone, errors.Wrapf(ErrUnknownCarrier, "%q", s)
	}
}

// Free reports whether the method never incurs a shipping cost.
func (m Method) Free() bool {
	return m == MethodPickup || m == MethodArrange
}

// NeedsQuote reports whether advancing past the quote step requires a
// positive quoted cost for this method.
func (m Method) NeedsQuote() bool {
	return m == MethodCorreo || m == MethodTransporte
}

// Selection is the complete shipping choice held by a checkout session.
// Cost must be reset to zero whenever Method changes so a stale quote can
// never survive a method change.
type Selection struct {
	Method  Method          `json:"method"`
	Carrier Carrier         `json:"carrier"`
	Cost    decimal.Decimal `json:"cost"`
}

// Cost returns the effective shipping cost for the selection: zero for free
// methods regardless of any quoted value.
func (s Selection) EffectiveCost() decimal.Decimal {
	if s.Method.Free() {
		return decimal.Zero
	}
	return s.Cost
}
