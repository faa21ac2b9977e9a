package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/josh-kwaku/crowdfund-payments/internal/domain"
	"github.com/josh-kwaku/crowdfund-payments/internal/logging"
)

var ErrInvoiceNotFound = errors.New("invoice not found at gateway")

type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

func NewClient(baseURL, secretKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:   baseURL,
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type InvoiceRequest struct {
	ExternalID         string
	Amount             int64
	Currency           string
	Description        string
	PayerName          string
	PayerEmail         string
	PaymentMethod      domain.PaymentMethod
	Duration           time.Duration
	SuccessRedirectURL string
	FailureRedirectURL string
}

type Invoice struct {
	ID         string     `json:"id"`
	ExternalID string     `json:"external_id"`
	Status     string     `json:"status"`
	Amount     int64      `json:"amount"`
	InvoiceURL string     `json:"invoice_url"`
	ExpiryDate time.Time  `json:"expiry_date"`
	PaidAt     *time.Time `json:"paid_at,omitempty"`
}

type DisbursementRequest struct {
	ExternalID    string
	Amount        int64
	BankCode      string
	AccountNumber string
	HolderName    string
	Description   string
}

type Disbursement struct {
	ID          string `json:"id"`
	ExternalID  string `json:"external_id"`
	Status      string `json:"status"`
	Amount      int64  `json:"amount"`
	FailureCode string `json:"failure_code,omitempty"`
}

type invoicePayload struct {
	ExternalID         string   `json:"external_id"`
	Amount             int64    `json:"amount"`
	Currency           string   `json:"currency"`
	Description        string   `json:"description"`
	InvoiceDuration    int64    `json:"invoice_duration"`
	PayerEmail         string   `json:"payer_email,omitempty"`
	Customer           customer `json:"customer"`
	PaymentMethods     []string `json:"payment_methods"`
	SuccessRedirectURL string   `json:"success_redirect_url,omitempty"`
	FailureRedirectURL string   `json:"failure_redirect_url,omitempty"`
}

type customer struct {
	GivenNames string `json:"given_names"`
	Email      string `json:"email,omitempty"`
}

type disbursementPayload struct {
	ExternalID        string `json:"external_id"`
	Amount            int64  `json:"amount"`
	BankCode          string `json:"bank_code"`
	AccountHolderName string `json:"account_holder_name"`
	AccountNumber     string `json:"account_number"`
	Description       string `json:"description"`
}

func (c *Client) CreateInvoice(ctx context.Context, req InvoiceRequest) (*Invoice, error) {
	payload := invoicePayload{
		ExternalID:      req.ExternalID,
		Amount:          req.Amount,
		Currency:        req.Currency,
		Description:     req.Description,
		InvoiceDuration: int64(req.Duration / time.Second),
		PayerEmail:      req.PayerEmail,
		Customer: customer{
			GivenNames: req.PayerName,
			Email:      req.PayerEmail,
		},
		PaymentMethods:     []string{methodCode(req.PaymentMethod)},
		SuccessRedirectURL: req.SuccessRedirectURL,
		FailureRedirectURL: req.FailureRedirectURL,
	}

	var inv Invoice
	status, err := c.do(ctx, http.MethodPost, "/v2/invoices", payload, "", &inv)
	if err != nil {
		return nil, fmt.Errorf("CreateInvoice: %w", err)
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return nil, fmt.Errorf("CreateInvoice: unexpected status %d: %w", status, domain.ErrGateway)
	}
	if inv.ID == "" || inv.InvoiceURL == "" {
		return nil, fmt.Errorf("CreateInvoice: incomplete invoice in response: %w", domain.ErrGateway)
	}
	return &inv, nil
}

// ExpireInvoice cancels an open invoice. It returns ErrInvoiceNotFound when
// the gateway no longer knows the invoice.
func (c *Client) ExpireInvoice(ctx context.Context, invoiceID string) error {
	path := "/v2/invoices/" + url.PathEscape(invoiceID) + "/expire!"
	status, err := c.do(ctx, http.MethodPost, path, nil, "", nil)
	if err != nil {
		return fmt.Errorf("ExpireInvoice: %w", err)
	}
	switch {
	case status == http.StatusNotFound:
		return fmt.Errorf("ExpireInvoice: %w", ErrInvoiceNotFound)
	case status != http.StatusOK:
		return fmt.Errorf("ExpireInvoice: unexpected status %d: %w", status, domain.ErrGateway)
	}
	return nil
}

func (c *Client) GetInvoice(ctx context.Context, invoiceID string) (*Invoice, error) {
	var inv Invoice
	status, err := c.do(ctx, http.MethodGet, "/v2/invoices/"+url.PathEscape(invoiceID), nil, "", &inv)
	if err != nil {
		return nil, fmt.Errorf("GetInvoice: %w", err)
	}
	switch {
	case status == http.StatusNotFound:
		return nil, fmt.Errorf("GetInvoice: %w", ErrInvoiceNotFound)
	case status != http.StatusOK:
		return nil, fmt.Errorf("GetInvoice: unexpected status %d: %w", status, domain.ErrGateway)
	}
	return &inv, nil
}

func (c *Client) CreateDisbursement(ctx context.Context, req DisbursementRequest) (*Disbursement, error) {
	payload := disbursementPayload{
		ExternalID:        req.ExternalID,
		Amount:            req.Amount,
		BankCode:          req.BankCode,
		AccountHolderName: req.HolderName,
		AccountNumber:     req.AccountNumber,
		Description:       req.Description,
	}

	var d Disbursement
	status, err := c.do(ctx, http.MethodPost, "/disbursements", payload, req.ExternalID, &d)
	if err != nil {
		return nil, fmt.Errorf("CreateDisbursement: %w", err)
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return nil, fmt.Errorf("CreateDisbursement: unexpected status %d: %w", status, domain.ErrGateway)
	}
	if d.ID == "" {
		return nil, fmt.Errorf("CreateDisbursement: missing disbursement id: %w", domain.ErrGateway)
	}
	return &d, nil
}

func (c *Client) GetDisbursement(ctx context.Context, disbursementID string) (*Disbursement, error) {
	var d Disbursement
	status, err := c.do(ctx, http.MethodGet, "/disbursements/"+url.PathEscape(disbursementID), nil, "", &d)
	if err != nil {
		return nil, fmt.Errorf("GetDisbursement: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("GetDisbursement: unexpected status %d: %w", status, domain.ErrGateway)
	}
	return &d, nil
}

// do sends one request and decodes a 2xx body into out. Transport failures,
// including timeouts, are reported as domain.ErrGateway.
func (c *Client) do(ctx context.Context, method, path string, body any, idempotencyKey string, out any) (int, error) {
	log := logging.FromContext(ctx)

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	httpReq.SetBasicAuth(c.secretKey, "")
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		httpReq.Header.Set("X-IDEMPOTENCY-KEY", idempotencyKey)
	}

	start := time.Now()
	log.Info("gateway request sent", "method", method, "path", path)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("send: %v: %w", err, domain.ErrGateway)
	}
	defer resp.Body.Close()

	log.Info("gateway response received",
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.Warn("gateway rejected request", "path", path, "status", resp.StatusCode, "body", string(respBody))
		return resp.StatusCode, nil
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %v: %w", err, domain.ErrGateway)
		}
	}
	return resp.StatusCode, nil
}

func methodCode(m domain.PaymentMethod) string {
	switch m {
	case domain.PaymentMethodQRIS:
		return "QRIS"
	default:
		return string(m)
	}
}
