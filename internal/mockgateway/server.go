// Package mockgateway is an in-memory stand-in for the payment gateway's
// invoice and disbursement APIs, used for local runs and end-to-end tests.
package mockgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/josh-kwaku/crowdfund-payments/internal/gateway"
	"github.com/josh-kwaku/crowdfund-payments/internal/logging"
)

type Config struct {
	// PublicURL prefixes generated checkout links.
	PublicURL string
	// CallbackURL is the base URL of the service receiving callbacks.
	CallbackURL   string
	CallbackToken string
}

type Server struct {
	cfg    Config
	client *http.Client

	mu            sync.Mutex
	invoices      map[string]*gateway.Invoice
	disbursements map[string]*gateway.Disbursement
	idempotency   map[string]string
}

func New(cfg Config) *Server {
	return &Server{
		cfg:           cfg,
		client:        &http.Client{Timeout: 10 * time.Second},
		invoices:      make(map[string]*gateway.Invoice),
		disbursements: make(map[string]*gateway.Disbursement),
		idempotency:   make(map[string]string),
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(requireSecretKey)
		r.Post("/v2/invoices", s.createInvoice)
		r.Get("/v2/invoices/{id}", s.getInvoice)
		r.Post("/v2/invoices/{id}/expire!", s.expireInvoice)
		r.Post("/disbursements", s.createDisbursement)
		r.Get("/disbursements/{id}", s.getDisbursement)
	})

	r.Post("/simulate/invoices/{id}/{status}", s.simulateInvoice)
	r.Post("/simulate/disbursements/{id}/{status}", s.simulateDisbursement)
	return r
}

func requireSecretKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, _, ok := r.BasicAuth()
		if !ok || key == "" {
			writeError(w, http.StatusUnauthorized, "INVALID_API_KEY")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type invoiceRequest struct {
	ExternalID      string `json:"external_id"`
	Amount          int64  `json:"amount"`
	InvoiceDuration int64  `json:"invoice_duration"`
}

func (s *Server) createInvoice(w http.ResponseWriter, r *http.Request) {
	var req invoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ExternalID == "" || req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "API_VALIDATION_ERROR")
		return
	}
	if req.InvoiceDuration <= 0 {
		req.InvoiceDuration = int64((24 * time.Hour).Seconds())
	}

	id := "inv_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	inv := &gateway.Invoice{
		ID:         id,
		ExternalID: req.ExternalID,
		Status:     "PENDING",
		Amount:     req.Amount,
		InvoiceURL: strings.TrimRight(s.cfg.PublicURL, "/") + "/pay/" + id,
		ExpiryDate: time.Now().UTC().Add(time.Duration(req.InvoiceDuration) * time.Second),
	}

	s.mu.Lock()
	s.invoices[id] = inv
	out := *inv
	s.mu.Unlock()

	logging.FromContext(r.Context()).Info("invoice created", "invoice_id", id, "external_id", req.ExternalID, "amount", req.Amount)
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getInvoice(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	inv, ok := s.invoices[chi.URLParam(r, "id")]
	var out gateway.Invoice
	if ok {
		out = *inv
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "INVOICE_NOT_FOUND_ERROR")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) expireInvoice(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	inv, ok := s.invoices[chi.URLParam(r, "id")]
	var out gateway.Invoice
	if ok {
		if inv.Status == "PENDING" {
			inv.Status = "EXPIRED"
		}
		out = *inv
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "INVOICE_NOT_FOUND_ERROR")
		return
	}
	if out.Status != "EXPIRED" {
		writeError(w, http.StatusBadRequest, "INVOICE_ALREADY_"+out.Status)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type disbursementRequest struct {
	ExternalID    string `json:"external_id"`
	Amount        int64  `json:"amount"`
	BankCode      string `json:"bank_code"`
	AccountNumber string `json:"account_number"`
}

func (s *Server) createDisbursement(w http.ResponseWriter, r *http.Request) {
	var req disbursementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ExternalID == "" || req.Amount <= 0 || req.BankCode == "" || req.AccountNumber == "" {
		writeError(w, http.StatusBadRequest, "API_VALIDATION_ERROR")
		return
	}
	key := r.Header.Get("X-IDEMPOTENCY-KEY")

	s.mu.Lock()
	if id, seen := s.idempotency[key]; key != "" && seen {
		out := *s.disbursements[id]
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, out)
		return
	}
	id := "disb_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	d := &gateway.Disbursement{
		ID:         id,
		ExternalID: req.ExternalID,
		Status:     "PENDING",
		Amount:     req.Amount,
	}
	s.disbursements[id] = d
	if key != "" {
		s.idempotency[key] = id
	}
	out := *d
	s.mu.Unlock()

	logging.FromContext(r.Context()).Info("disbursement created", "disbursement_id", id, "external_id", req.ExternalID, "amount", req.Amount)
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getDisbursement(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	d, ok := s.disbursements[chi.URLParam(r, "id")]
	var out gateway.Disbursement
	if ok {
		out = *d
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "DISBURSEMENT_NOT_FOUND")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// simulateInvoice settles, expires or fails a pending invoice and delivers
// the matching callback.
func (s *Server) simulateInvoice(w http.ResponseWriter, r *http.Request) {
	status := strings.ToUpper(chi.URLParam(r, "status"))
	if status != "PAID" && status != "EXPIRED" && status != "FAILED" {
		writeError(w, http.StatusBadRequest, "UNSUPPORTED_STATUS")
		return
	}

	s.mu.Lock()
	inv, ok := s.invoices[chi.URLParam(r, "id")]
	var out gateway.Invoice
	if ok {
		inv.Status = status
		if status == "PAID" {
			now := time.Now().UTC()
			inv.PaidAt = &now
		}
		out = *inv
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "INVOICE_NOT_FOUND_ERROR")
		return
	}
	s.deliver(w, r, "/api/v1/webhooks/invoices", out)
}

func (s *Server) simulateDisbursement(w http.ResponseWriter, r *http.Request) {
	status := strings.ToUpper(chi.URLParam(r, "status"))
	if status != "COMPLETED" && status != "FAILED" {
		writeError(w, http.StatusBadRequest, "UNSUPPORTED_STATUS")
		return
	}

	s.mu.Lock()
	d, ok := s.disbursements[chi.URLParam(r, "id")]
	var out gateway.Disbursement
	if ok {
		d.Status = status
		if status == "FAILED" {
			d.FailureCode = r.URL.Query().Get("failure_code")
			if d.FailureCode == "" {
				d.FailureCode = "INVALID_DESTINATION"
			}
		}
		out = *d
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "DISBURSEMENT_NOT_FOUND")
		return
	}
	s.deliver(w, r, "/api/v1/webhooks/disbursements", out)
}

func (s *Server) deliver(w http.ResponseWriter, r *http.Request, path string, body any) {
	status, err := s.sendCallback(r.Context(), path, body)
	if err != nil {
		logging.FromContext(r.Context()).Error("callback delivery failed", "path", path, "error", err)
		writeError(w, http.StatusBadGateway, "CALLBACK_FAILED")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"delivered": body, "callback_status": status})
}

func (s *Server) sendCallback(ctx context.Context, path string, body any) (int, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("marshal callback: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(s.cfg.CallbackURL, "/")+path, bytes.NewReader(b))
	if err != nil {
		return 0, fmt.Errorf("build callback: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Callback-Token", s.cfg.CallbackToken)
	req.Header.Set("Webhook-Id", uuid.NewString())

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("send callback: %w", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error_code": code})
}
