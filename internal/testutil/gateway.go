package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/josh-kwaku/crowdfund-payments/internal/domain"
	"github.com/josh-kwaku/crowdfund-payments/internal/gateway"
)

// FakeGateway records calls and answers like the payment processor would.
// Set the *Err fields to make the matching call fail.
type FakeGateway struct {
	mu sync.Mutex

	CreateInvoiceErr      error
	ExpireInvoiceErr      error
	CreateDisbursementErr error
	GetInvoiceErr         error

	Invoices      map[string]*gateway.Invoice
	Disbursements map[string]*gateway.Disbursement

	InvoiceRequests      []gateway.InvoiceRequest
	DisbursementRequests []gateway.DisbursementRequest
	ExpiredInvoices      []string

	seq int
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		Invoices:      make(map[string]*gateway.Invoice),
		Disbursements: make(map[string]*gateway.Disbursement),
	}
}

func (g *FakeGateway) CreateInvoice(_ context.Context, req gateway.InvoiceRequest) (*gateway.Invoice, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.InvoiceRequests = append(g.InvoiceRequests, req)
	if g.CreateInvoiceErr != nil {
		return nil, g.CreateInvoiceErr
	}

	g.seq++
	inv := &gateway.Invoice{
		ID:         fmt.Sprintf("inv_%d", g.seq),
		ExternalID: req.ExternalID,
		Status:     "PENDING",
		Amount:     req.Amount,
		InvoiceURL: fmt.Sprintf("https://checkout.test/inv_%d", g.seq),
		ExpiryDate: time.Now().UTC().Add(req.Duration),
	}
	g.Invoices[inv.ID] = inv
	cp := *inv
	return &cp, nil
}

func (g *FakeGateway) ExpireInvoice(_ context.Context, invoiceID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.ExpireInvoiceErr != nil {
		return g.ExpireInvoiceErr
	}
	inv, ok := g.Invoices[invoiceID]
	if !ok {
		return fmt.Errorf("ExpireInvoice: %w", gateway.ErrInvoiceNotFound)
	}
	inv.Status = "EXPIRED"
	g.ExpiredInvoices = append(g.ExpiredInvoices, invoiceID)
	return nil
}

func (g *FakeGateway) GetInvoice(_ context.Context, invoiceID string) (*gateway.Invoice, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.GetInvoiceErr != nil {
		return nil, g.GetInvoiceErr
	}
	inv, ok := g.Invoices[invoiceID]
	if !ok {
		return nil, fmt.Errorf("GetInvoice: %w", gateway.ErrInvoiceNotFound)
	}
	cp := *inv
	return &cp, nil
}

// SetInvoiceStatus changes what later GetInvoice calls report.
func (g *FakeGateway) SetInvoiceStatus(invoiceID, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if inv, ok := g.Invoices[invoiceID]; ok {
		inv.Status = status
		if status == "PAID" {
			now := time.Now().UTC()
			inv.PaidAt = &now
		}
	}
}

func (g *FakeGateway) CreateDisbursement(_ context.Context, req gateway.DisbursementRequest) (*gateway.Disbursement, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.DisbursementRequests = append(g.DisbursementRequests, req)
	if g.CreateDisbursementErr != nil {
		return nil, g.CreateDisbursementErr
	}

	g.seq++
	d := &gateway.Disbursement{
		ID:         fmt.Sprintf("disb_%d", g.seq),
		ExternalID: req.ExternalID,
		Status:     "PENDING",
		Amount:     req.Amount,
	}
	g.Disbursements[d.ID] = d
	cp := *d
	return &cp, nil
}

func (g *FakeGateway) GetDisbursement(_ context.Context, disbursementID string) (*gateway.Disbursement, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	d, ok := g.Disbursements[disbursementID]
	if !ok {
		return nil, fmt.Errorf("GetDisbursement: %w", domain.ErrGateway)
	}
	cp := *d
	return &cp, nil
}

func (g *FakeGateway) SetDisbursementStatus(disbursementID, status, failureCode string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if d, ok := g.Disbursements[disbursementID]; ok {
		d.Status = status
		d.FailureCode = failureCode
	}
}

// Calls returns how many invoices and disbursements were requested.
func (g *FakeGateway) Calls() (invoices, disbursements int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.InvoiceRequests), len(g.DisbursementRequests)
}
