// Stub store backend for integration tests. It speaks the same wire protocol
// as the real backend: customer profile, shipping quotes, orders, and payment
// preferences, guarded by a bearer token.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
)

var orderSeq atomic.Int64

func main() {
	var (
		addr  string
		token string
	)
	flag.StringVar(&addr, "addr", ":9090", "listen address")
	flag.StringVar(&token, "token", "stub-token", "expected bearer token")
	flag.Parse()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /usuario", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"nombre":   "Ana Pérez",
			"email":    "ana@example.com",
			"telefono": "261-555-0101",
			"direccion": map[string]any{
				"calle":         "San Martín 123",
				"departamento":  "4B",
				"provincia":     "Mendoza",
				"codigo_postal": "5500",
			},
		})
	})
	mux.HandleFunc("POST /envios/cotizar", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			PostalCode string `json:"codigo_postal"`
			Tipo       string `json:"tipo_envio"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PostalCode == "" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		precio := 1540.50
		if req.Tipo != "correo" {
			precio = 2890.00
		}
		writeJSON(w, map[string]any{"precio": precio})
	})
	mux.HandleFunc("POST /pedidos", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Detalles []json.RawMessage `json:"detalles"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Detalles) == 0 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		writeJSON(w, map[string]any{"id": orderSeq.Add(1)})
	})
	mux.HandleFunc("POST /pagos/preferencias", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			OrderID int64 `json:"pedido_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == 0 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		writeJSON(w, map[string]any{
			"init_point": fmt.Sprintf("https://pago.example/init/%d", req.OrderID),
		})
	})

	slog.Info("stub backend listening", slog.String("addr", addr))
	if err := http.ListenAndServe(addr, requireToken(token, mux)); err != nil {
		slog.Error("stub backend failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func requireToken(token string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
