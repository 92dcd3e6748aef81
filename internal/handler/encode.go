package handler

import (
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/velaluna/storefront-api/internal/catalog"
	"github.com/velaluna/storefront-api/internal/domain/cart"
	"github.com/velaluna/storefront-api/internal/domain/checkout"
)

// Money is encoded as a JSON number with the backend's float convention.
func encodeMoney(e *jx.Encoder, d decimal.Decimal) {
	e.Float64(d.InexactFloat64())
}

func encodeProduct(e *jx.Encoder, p catalog.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("price")
	encodeMoney(e, p.Price)
	e.FieldStart("category")
	e.Str(p.Category)
	e.FieldStart("image")
	e.Str(p.Image)
	e.FieldStart("stock")
	if p.Stock == nil {
		e.Null()
	} else {
		e.Int(*p.Stock)
	}
	e.ObjEnd()
}

func encodeCart(e *jx.Encoder, c *cart.Cart) {
	e.ObjStart()
	e.FieldStart("items")
	e.ArrStart()
	for _, line := range c.Lines {
		e.ObjStart()
		e.FieldStart("product_id")
		e.Str(line.ProductID)
		e.FieldStart("name")
		e.Str(line.Name)
		e.FieldStart("price")
		encodeMoney(e, line.Price)
		e.FieldStart("image")
		e.Str(line.Image)
		e.FieldStart("quantity")
		e.Int(line.Quantity)
		e.FieldStart("stock")
		if line.Stock == nil {
			e.Null()
		} else {
			e.Int(*line.Stock)
		}
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("total_items")
	e.Int(c.TotalItems())
	e.FieldStart("subtotal")
	encodeMoney(e, c.Subtotal())
	e.ObjEnd()
}

func encodeView(e *jx.Encoder, v *checkout.View) {
	e.ObjStart()
	e.FieldStart("step")
	e.Int(int(v.Step))
	e.FieldStart("completed")
	e.Bool(v.Completed)

	e.FieldStart("shipping")
	e.ObjStart()
	e.FieldStart("method")
	e.Str(string(v.Shipping.Method))
	e.FieldStart("carrier")
	e.Str(string(v.Shipping.Carrier))
	e.FieldStart("cost")
	encodeMoney(e, v.Shipping.Cost)
	e.ObjEnd()

	e.FieldStart("billing")
	e.ObjStart()
	e.FieldStart("name")
	e.Str(v.Billing.Name)
	e.FieldStart("address")
	e.Str(v.Billing.Address)
	e.FieldStart("city")
	e.Str(v.Billing.City)
	e.FieldStart("province")
	e.Str(v.Billing.Province)
	e.FieldStart("postal_code")
	e.Str(v.Billing.PostalCode)
	e.FieldStart("phone")
	e.Str(v.Billing.Phone)
	e.FieldStart("extra")
	e.Str(v.Billing.Extra)
	e.FieldStart("email")
	e.Str(v.Billing.Email)
	e.ObjEnd()

	e.FieldStart("payment_method")
	e.Str(v.PaymentMethod)

	e.FieldStart("summary")
	e.ObjStart()
	e.FieldStart("subtotal")
	encodeMoney(e, v.Summary.Subtotal)
	e.FieldStart("shipping")
	encodeMoney(e, v.Summary.Shipping)
	e.FieldStart("total")
	encodeMoney(e, v.Summary.Total)
	e.ObjEnd()

	if v.OrderID != 0 {
		e.FieldStart("order_id")
		e.Int64(v.OrderID)
	}
	if v.InitPoint != "" {
		e.FieldStart("init_point")
		e.Str(v.InitPoint)
	}
	e.ObjEnd()
}
