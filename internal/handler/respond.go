package handler

import (
	"bytes"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/velaluna/storefront-api/internal/backend"
	"github.com/velaluna/storefront-api/internal/catalog"
	"github.com/velaluna/storefront-api/internal/domain/cart"
	"github.com/velaluna/storefront-api/internal/domain/checkout"
	"github.com/velaluna/storefront-api/internal/domain/shipping"
	"github.com/velaluna/storefront-api/pkg/httpmiddleware"
)

// respond writes a JSON body built by fn with the given status code.
func respond(w http.ResponseWriter, code int, fn func(e *jx.Encoder)) {
	var e jx.Encoder
	fn(&e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}

// writeError maps a domain error to an HTTP status and writes the standard
// {code, message} body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	msg := "internal error"

	var stepErr *checkout.StepError
	var orderErr *checkout.OrderCreateError
	var prefErr *checkout.PreferenceError
	var statusErr *backend.StatusError
	var decodeErr *backend.DecodeError

	switch {
	case errors.As(err, &stepErr):
		code, msg = http.StatusUnprocessableEntity, stepErr.Message
	case errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, cart.ErrNotFound):
		code, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, shipping.ErrUnknownMethod),
		errors.Is(err, shipping.ErrUnknownCarrier),
		errors.Is(err, shipping.ErrPostalCodeRequired),
		errors.Is(err, shipping.ErrCarrierRequired),
		errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, checkout.ErrNotAtReview),
		errors.Is(err, checkout.ErrCheckoutCompleted),
		errors.Is(err, checkout.ErrQuoteMethodMissing):
		code, msg = http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, checkout.ErrSubmitInFlight):
		code, msg = http.StatusConflict, err.Error()
	case errors.Is(err, backend.ErrBreakerOpen):
		code, msg = http.StatusServiceUnavailable, "store backend is temporarily unavailable"
	case errors.As(err, &orderErr):
		code, msg = http.StatusBadGateway, "order could not be created"
	case errors.As(err, &prefErr):
		code, msg = http.StatusBadGateway, "payment preference could not be created"
	case errors.Is(err, backend.ErrUnauthorized),
		errors.As(err, &statusErr),
		errors.As(err, &decodeErr):
		code, msg = http.StatusBadGateway, "store backend request failed"
	}

	if code == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
	}

	respond(w, code, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("code")
		e.Int(code)
		e.FieldStart("message")
		e.Str(msg)
		e.ObjEnd()
	})
}

// sessionID extracts the storefront session id set by the session middleware.
func sessionID(r *http.Request) (string, bool) {
	id := httpmiddleware.SessionIDFromContext(r.Context())
	return id, id != ""
}

// decodeBody parses the request body as a JSON object, dispatching each key
// to fn. An empty body is treated as an empty object; any other non-object
// body is an error.
func decodeBody(r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	data, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err != nil {
		return errors.Wrap(err, "read body")
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	d := jx.DecodeBytes(data)
	if d.Next() != jx.Object {
		return errors.New("expected a JSON object")
	}
	return d.Obj(fn)
}
