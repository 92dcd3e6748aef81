package backend

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/velaluna/storefront-api/internal/domain/checkout"
)

// FetchCustomer returns the authenticated customer's profile, or nil when the
// backend has no profile for the token.
func (c *Client) FetchCustomer(ctx context.Context) (*checkout.Customer, error) {
	data, err := c.do(ctx, "fetch customer", http.MethodGet, "/usuario", nil)
	if err != nil {
		return nil, err
	}

	d := jx.DecodeBytes(data)
	if d.Next() == jx.Null {
		return nil, nil
	}

	var cust checkout.Customer
	err = d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "nombre":
			cust.Name, err = d.Str()
			return err
		case "email":
			cust.Email, err = d.Str()
			return err
		case "telefono":
			cust.Phone, err = d.Str()
			return err
		case "direccion":
			if d.Next() == jx.Null {
				return d.Null()
			}
			return d.Obj(func(d *jx.Decoder, key string) error {
				switch key {
				case "calle":
					cust.Address, err = d.Str()
					return err
				case "departamento":
					cust.Extra, err = d.Str()
					return err
				case "provincia":
					cust.Province, err = d.Str()
					return err
				case "codigo_postal":
					cust.PostalCode, err = d.Str()
					return err
				default:
					return d.Skip()
				}
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, &DecodeError{Op: "fetch customer", Err: err}
	}
	return &cust, nil
}

// QuoteShipping fetches a shipping cost for the postal code via the given
// quote endpoint selector ("correo" or a carrier name). A response without a
// numeric precio yields zero rather than an error: the review step shows the
// actual figure and the user can retry, so a soft zero must never surface as
// NaN or block the flow.
func (c *Client) QuoteShipping(ctx context.Context, postalCode, tipo string) (decimal.Decimal, error) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("codigo_postal")
	e.Str(postalCode)
	e.FieldStart("tipo_envio")
	e.Str(tipo)
	e.ObjEnd()

	data, err := c.do(ctx, "quote shipping", http.MethodPost, "/envios/cotizar", e.Bytes())
	if err != nil {
		return decimal.Zero, err
	}

	cost := decimal.Zero
	d := jx.DecodeBytes(data)
	if d.Next() == jx.Null {
		return cost, nil
	}
	err = d.Obj(func(d *jx.Decoder, key string) error {
		if key != "precio" {
			return d.Skip()
		}
		if d.Next() != jx.Number {
			return d.Skip()
		}
		f, err := d.Float64()
		if err != nil {
			return err
		}
		cost = decimal.NewFromFloat(f)
		return nil
	})
	if err != nil {
		return decimal.Zero, &DecodeError{Op: "quote shipping", Err: err}
	}
	return cost, nil
}

// CreateOrder creates an order on the backend and returns its assigned id.
func (c *Client) CreateOrder(ctx context.Context, req checkout.OrderRequest) (int64, error) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("nombre")
	e.Str(req.Name)
	e.FieldStart("email")
	e.Str(req.Email)
	e.FieldStart("telefono")
	e.Str(req.Phone)
	e.FieldStart("costo_envio")
	e.Float64(req.ShippingCost.InexactFloat64())
	e.FieldStart("detalles")
	e.ArrStart()
	for _, item := range req.Items {
		e.ObjStart()
		e.FieldStart("producto_id")
		e.Str(item.ProductID)
		e.FieldStart("cantidad")
		e.Int(item.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()

	data, err := c.do(ctx, "create order", http.MethodPost, "/pedidos", e.Bytes())
	if err != nil {
		return 0, err
	}

	var id int64
	d := jx.DecodeBytes(data)
	err = d.Obj(func(d *jx.Decoder, key string) error {
		if key != "id" {
			return d.Skip()
		}
		id, err = d.Int64()
		return err
	})
	if err != nil {
		return 0, &DecodeError{Op: "create order", Err: err}
	}
	if id == 0 {
		return 0, &DecodeError{Op: "create order", Err: errors.New("missing order id")}
	}
	return id, nil
}

// CreatePaymentPreference creates a payment preference for an existing order
// and returns the external checkout redirect URL.
func (c *Client) CreatePaymentPreference(ctx context.Context, req checkout.PreferenceRequest) (string, error) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("pedido_id")
	e.Int64(req.OrderID)
	e.FieldStart("tipo_pago")
	e.Str(req.PaymentMethod)
	e.FieldStart("costo_envio")
	e.Float64(req.ShippingCost.InexactFloat64())
	e.FieldStart("items")
	e.ArrStart()
	for _, item := range req.Items {
		e.ObjStart()
		e.FieldStart("producto_id")
		e.Str(item.ProductID)
		e.FieldStart("nombre")
		e.Str(item.Name)
		e.FieldStart("cantidad")
		e.Int(item.Quantity)
		e.FieldStart("precio")
		e.Float64(item.Price.InexactFloat64())
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()

	data, err := c.do(ctx, "create payment preference", http.MethodPost, "/pagos/preferencias", e.Bytes())
	if err != nil {
		return "", err
	}

	var initPoint string
	d := jx.DecodeBytes(data)
	err = d.Obj(func(d *jx.Decoder, key string) error {
		if key != "init_point" {
			return d.Skip()
		}
		initPoint, err = d.Str()
		return err
	})
	if err != nil {
		return "", &DecodeError{Op: "create payment preference", Err: err}
	}
	if initPoint == "" {
		return "", &DecodeError{Op: "create payment preference", Err: errors.New("missing init_point")}
	}
	return initPoint, nil
}
