package donation_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/crowdfund-payments/internal/config"
	"github.com/josh-kwaku/crowdfund-payments/internal/domain"
	"github.com/josh-kwaku/crowdfund-payments/internal/gateway"
	"github.com/josh-kwaku/crowdfund-payments/internal/repository"
	"github.com/josh-kwaku/crowdfund-payments/internal/service/donation"
	"github.com/josh-kwaku/crowdfund-payments/internal/testutil"
)

type fixture struct {
	db       *sql.DB
	svc      *donation.Service
	gw       *testutil.FakeGateway
	campaign *domain.Campaign
	donor    *domain.User
}

type invoiceGateway interface {
	CreateInvoice(ctx context.Context, req gateway.InvoiceRequest) (*gateway.Invoice, error)
	ExpireInvoice(ctx context.Context, invoiceID string) error
}

func setup(t *testing.T, goal, current int64) *fixture {
	t.Helper()
	gw := testutil.NewFakeGateway()
	f := setupWithGateway(t, goal, current, gw)
	f.gw = gw
	return f
}

func setupWithGateway(t *testing.T, goal, current int64, gw invoiceGateway) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)

	svc := donation.NewService(
		repository.NewDonationRepository(db),
		repository.NewCampaignRepository(db),
		repository.NewUserRepository(db),
		repository.NewLedgerRepository(db),
		repository.NewLifecycleEventRepository(db),
		repository.NewDB(db),
		gw,
		&config.Config{
			Currency:          "IDR",
			InvoiceDuration:   24 * time.Hour,
			MinDonationAmount: 1000,
			MaxMessageLength:  500,
			FrontendURL:       "https://crowdfund.test",
		},
	)

	creator := testutil.SeedUser(t, db, "creator@test.com", "Creator", domain.UserRoleCreator)
	donor := testutil.SeedUser(t, db, "donor@test.com", "Budi", domain.UserRoleDonor)
	campaign := testutil.SeedCampaign(t, db, creator.ID, "Clean Water", goal, current)

	return &fixture{db: db, svc: svc, campaign: campaign, donor: donor}
}

func (f *fixture) donate(t *testing.T, amount int64) *domain.Donation {
	t.Helper()
	d, err := f.svc.Create(context.Background(), donation.CreateRequest{
		CampaignID:    f.campaign.ID,
		DonorID:       f.donor.ID,
		Amount:        amount,
		PaymentMethod: domain.PaymentMethodQRIS,
	})
	require.NoError(t, err)
	return d
}

func paidEvent(d *domain.Donation) domain.InvoiceEvent {
	paidAt := time.Now().UTC().Truncate(time.Microsecond)
	raw, _ := json.Marshal(map[string]string{"external_id": d.ExternalID, "status": "PAID"})
	return domain.InvoiceEvent{
		ExternalID: d.ExternalID,
		InvoiceID:  d.GatewayInvoiceID,
		Status:     domain.DonationStatusPaid,
		PaidAt:     &paidAt,
		Raw:        raw,
	}
}

func statusEvent(d *domain.Donation, status domain.DonationStatus) domain.InvoiceEvent {
	return domain.InvoiceEvent{
		ExternalID: d.ExternalID,
		InvoiceID:  d.GatewayInvoiceID,
		Status:     status,
		Raw:        json.RawMessage(`{}`),
	}
}

func TestCreate_HappyPath(t *testing.T) {
	f := setup(t, 1_000_000, 0)

	d, err := f.svc.Create(context.Background(), donation.CreateRequest{
		CampaignID:    f.campaign.ID,
		DonorID:       f.donor.ID,
		Amount:        50_000,
		PaymentMethod: domain.PaymentMethodQRIS,
		Message:       "Get well soon",
		IsAnonymous:   true,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.DonationStatusPending, d.Status)
	assert.Regexp(t, `^DON_\d+_[0-9A-F]{12}$`, d.Reference)
	assert.Equal(t, d.Reference+"_"+f.campaign.ID.String(), d.ExternalID)
	assert.Equal(t, "inv_1", d.GatewayInvoiceID)
	assert.NotEmpty(t, d.GatewayInvoiceURL)
	require.NotNil(t, d.Message)
	assert.Equal(t, "Get well soon", *d.Message)

	require.Len(t, f.gw.InvoiceRequests, 1)
	req := f.gw.InvoiceRequests[0]
	assert.Equal(t, int64(50_000), req.Amount)
	assert.Equal(t, "IDR", req.Currency)
	assert.Equal(t, "Donation for Clean Water from Anonymous", req.Description)
	assert.Equal(t, d.ExternalID, req.ExternalID)

	stored, err := f.svc.Get(context.Background(), d.Reference)
	require.NoError(t, err)
	assert.Equal(t, d.ID, stored.ID)
	assert.True(t, stored.IsAnonymous)

	// donations do not touch the aggregate until paid
	c := testutil.GetCampaign(t, f.db, f.campaign.ID)
	assert.Equal(t, int64(0), c.CurrentAmount)
}

func TestCreate_Rejections(t *testing.T) {
	f := setup(t, 1_000_000, 0)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, donation.CreateRequest{
		CampaignID: uuid.New(), DonorID: f.donor.ID, Amount: 5000, PaymentMethod: domain.PaymentMethodQRIS,
	})
	assert.ErrorIs(t, err, domain.ErrCampaignNotFound)

	_, err = f.svc.Create(ctx, donation.CreateRequest{
		CampaignID: f.campaign.ID, DonorID: uuid.New(), Amount: 5000, PaymentMethod: domain.PaymentMethodQRIS,
	})
	assert.ErrorIs(t, err, domain.ErrDonorNotFound)

	_, err = f.svc.Create(ctx, donation.CreateRequest{
		CampaignID: f.campaign.ID, DonorID: f.donor.ID, Amount: 500, PaymentMethod: domain.PaymentMethodQRIS,
	})
	assert.ErrorIs(t, err, domain.ErrAmountBelowMinimum)

	invoices, _ := f.gw.Calls()
	assert.Equal(t, 0, invoices)
	assert.Equal(t, 0, testutil.CountDonations(t, f.db, f.campaign.ID))
}

func TestCreate_CompletedCampaignRejected(t *testing.T) {
	f := setup(t, 100_000, 100_000)

	_, err := f.svc.Create(context.Background(), donation.CreateRequest{
		CampaignID: f.campaign.ID, DonorID: f.donor.ID, Amount: 5000, PaymentMethod: domain.PaymentMethodQRIS,
	})
	assert.ErrorIs(t, err, domain.ErrCampaignCompleted)
}

func TestCreate_GatewayFailurePersistsNothing(t *testing.T) {
	f := setup(t, 1_000_000, 0)
	f.gw.CreateInvoiceErr = fmt.Errorf("CreateInvoice: %w", domain.ErrGateway)
	req := donation.CreateRequest{
		CampaignID: f.campaign.ID, DonorID: f.donor.ID, Amount: 5000, PaymentMethod: domain.PaymentMethodQRIS,
	}

	_, err := f.svc.Create(context.Background(), req)
	require.ErrorIs(t, err, domain.ErrGateway)
	assert.Equal(t, 0, testutil.CountDonations(t, f.db, f.campaign.ID))

	f.gw.CreateInvoiceErr = nil
	d, err := f.svc.Create(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, f.gw.InvoiceRequests, 2)
	failedID := f.gw.InvoiceRequests[0].ExternalID
	assert.NotEqual(t, failedID, d.ExternalID)
	assert.Equal(t, d.ExternalID, f.gw.InvoiceRequests[1].ExternalID)
	assert.Equal(t, 1, testutil.CountDonations(t, f.db, f.campaign.ID))
}

// slowInvoiceServer answers POST /v2/invoices, stalling the first call past
// any short client timeout. It records the external id of every call.
type slowInvoiceServer struct {
	mu          sync.Mutex
	externalIDs []string
}

func (s *slowInvoiceServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ExternalID string `json:"external_id"`
		Amount     int64  `json:"amount"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	s.mu.Lock()
	s.externalIDs = append(s.externalIDs, body.ExternalID)
	call := len(s.externalIDs)
	s.mu.Unlock()

	if call == 1 {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(gateway.Invoice{
		ID:         fmt.Sprintf("inv_%d", call),
		ExternalID: body.ExternalID,
		Status:     "PENDING",
		Amount:     body.Amount,
		InvoiceURL: "https://checkout.test/inv",
		ExpiryDate: time.Now().Add(time.Hour),
	})
}

func (s *slowInvoiceServer) ids() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.externalIDs...)
}

func TestScenario_GatewayTimeoutThenRetry(t *testing.T) {
	processor := &slowInvoiceServer{}
	srv := httptest.NewServer(processor)
	t.Cleanup(srv.Close)

	client := gateway.NewClient(srv.URL, "xnd_test", 100*time.Millisecond)
	f := setupWithGateway(t, 1_000_000, 0, client)
	req := donation.CreateRequest{
		CampaignID: f.campaign.ID, DonorID: f.donor.ID, Amount: 25_000, PaymentMethod: domain.PaymentMethodQRIS,
	}

	_, err := f.svc.Create(context.Background(), req)
	require.ErrorIs(t, err, domain.ErrGateway)
	assert.Equal(t, 0, testutil.CountDonations(t, f.db, f.campaign.ID))

	d, err := f.svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "inv_2", d.GatewayInvoiceID)

	ids := processor.ids()
	require.Len(t, ids, 2)
	assert.NotEqual(t, ids[0], ids[1])
	assert.Equal(t, ids[1], d.ExternalID)
	assert.Equal(t, 1, testutil.CountDonations(t, f.db, f.campaign.ID))
}

func TestScenario_TwoDonationsReachGoal(t *testing.T) {
	f := setup(t, 1_000_000, 0)
	ctx := context.Background()

	first := f.donate(t, 600_000)
	_, err := f.svc.ApplyWebhook(ctx, paidEvent(first))
	require.NoError(t, err)

	c := testutil.GetCampaign(t, f.db, f.campaign.ID)
	assert.Equal(t, int64(600_000), c.CurrentAmount)
	assert.Equal(t, domain.CampaignStatusFundraising, c.Status)

	// redelivery of the same paid callback
	outcome, err := f.svc.ApplyWebhook(ctx, paidEvent(first))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeIgnored, outcome)
	assert.Equal(t, int64(600_000), testutil.GetCampaign(t, f.db, f.campaign.ID).CurrentAmount)

	second := f.donate(t, 400_000)
	_, err = f.svc.ApplyWebhook(ctx, paidEvent(second))
	require.NoError(t, err)

	c = testutil.GetCampaign(t, f.db, f.campaign.ID)
	assert.Equal(t, int64(1_000_000), c.CurrentAmount)
	assert.Equal(t, domain.CampaignStatusCompleted, c.Status)
	assert.Equal(t, 2, testutil.CountLedgerEntries(t, f.db, f.campaign.ID))
}

func TestApplyWebhook_PaidCreditsCampaign(t *testing.T) {
	f := setup(t, 1_000_000, 0)
	ctx := context.Background()
	d := f.donate(t, 250_000)

	outcome, err := f.svc.ApplyWebhook(ctx, paidEvent(d))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeApplied, outcome)

	status, paidAt := testutil.GetDonationStatus(t, f.db, d.Reference)
	assert.Equal(t, domain.DonationStatusPaid, status)
	assert.NotNil(t, paidAt)

	c := testutil.GetCampaign(t, f.db, f.campaign.ID)
	assert.Equal(t, int64(250_000), c.CurrentAmount)
	assert.Equal(t, domain.CampaignStatusFundraising, c.Status)
	assert.Equal(t, f.campaign.Version+1, c.Version)

	entries, err := repository.NewLedgerRepository(f.db).GetByCampaignID(ctx, f.campaign.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.EntryTypeCredit, entries[0].EntryType)
	assert.Equal(t, int64(0), entries[0].BalanceBefore)
	assert.Equal(t, int64(250_000), entries[0].BalanceAfter)

	events, err := repository.NewLifecycleEventRepository(f.db).GetBySubject(ctx, domain.SourceTypeDonation, d.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.LifecycleEventCreated, events[0].EventType)
	assert.Equal(t, domain.LifecycleEventPaid, events[1].EventType)
	assert.Equal(t, domain.ActorGateway, events[1].Actor)
}

func TestApplyWebhook_PaidReachingGoalCompletesCampaign(t *testing.T) {
	f := setup(t, 100_000, 60_000)
	ctx := context.Background()
	d := f.donate(t, 50_000)

	_, err := f.svc.ApplyWebhook(ctx, paidEvent(d))
	require.NoError(t, err)

	c := testutil.GetCampaign(t, f.db, f.campaign.ID)
	assert.Equal(t, int64(110_000), c.CurrentAmount)
	assert.Equal(t, domain.CampaignStatusCompleted, c.Status)
}

func TestApplyWebhook_DuplicatePaidCreditsOnce(t *testing.T) {
	f := setup(t, 1_000_000, 0)
	ctx := context.Background()
	d := f.donate(t, 10_000)
	ev := paidEvent(d)

	first, err := f.svc.ApplyWebhook(ctx, ev)
	require.NoError(t, err)
	second, err := f.svc.ApplyWebhook(ctx, ev)
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeApplied, first)
	assert.Equal(t, domain.OutcomeIgnored, second)
	assert.Equal(t, int64(10_000), testutil.GetCampaign(t, f.db, f.campaign.ID).CurrentAmount)
	assert.Equal(t, 1, testutil.CountLedgerEntries(t, f.db, f.campaign.ID))
}

func TestApplyWebhook_ConcurrentDeliveriesCreditOnce(t *testing.T) {
	f := setup(t, 10_000_000, 0)
	ctx := context.Background()
	d := f.donate(t, 75_000)
	ev := paidEvent(d)

	const workers = 8
	var wg sync.WaitGroup
	outcomes := make(chan domain.Outcome, workers)
	errs := make(chan error, workers)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o, err := f.svc.ApplyWebhook(ctx, ev)
			if err != nil {
				errs <- err
				return
			}
			outcomes <- o
		}()
	}
	wg.Wait()
	close(outcomes)
	close(errs)

	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}

	applied := 0
	for o := range outcomes {
		if o == domain.OutcomeApplied {
			applied++
		}
	}
	assert.Equal(t, 1, applied)
	assert.Equal(t, int64(75_000), testutil.GetCampaign(t, f.db, f.campaign.ID).CurrentAmount)
	assert.Equal(t, 1, testutil.CountLedgerEntries(t, f.db, f.campaign.ID))
}

func TestApplyWebhook_ConcurrentDonationsToSameCampaign(t *testing.T) {
	f := setup(t, 10_000_000, 0)
	ctx := context.Background()

	var donations []*domain.Donation
	for range 5 {
		donations = append(donations, f.donate(t, 20_000))
	}

	var wg sync.WaitGroup
	for _, d := range donations {
		wg.Add(1)
		go func(d *domain.Donation) {
			defer wg.Done()
			_, err := f.svc.ApplyWebhook(ctx, paidEvent(d))
			assert.NoError(t, err)
		}(d)
	}
	wg.Wait()

	c := testutil.GetCampaign(t, f.db, f.campaign.ID)
	assert.Equal(t, int64(100_000), c.CurrentAmount)
	assert.Equal(t, f.campaign.Version+5, c.Version)
	assert.Equal(t, 5, testutil.CountLedgerEntries(t, f.db, f.campaign.ID))
}

func TestApplyWebhook_ExpiredThenPaidIgnored(t *testing.T) {
	f := setup(t, 1_000_000, 0)
	ctx := context.Background()
	d := f.donate(t, 10_000)

	outcome, err := f.svc.ApplyWebhook(ctx, statusEvent(d, domain.DonationStatusExpired))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeApplied, outcome)

	outcome, err = f.svc.ApplyWebhook(ctx, paidEvent(d))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeIgnored, outcome)

	status, paidAt := testutil.GetDonationStatus(t, f.db, d.Reference)
	assert.Equal(t, domain.DonationStatusExpired, status)
	assert.Nil(t, paidAt)
	assert.Equal(t, int64(0), testutil.GetCampaign(t, f.db, f.campaign.ID).CurrentAmount)
}

func TestApplyWebhook_FailedAndPendingEvents(t *testing.T) {
	f := setup(t, 1_000_000, 0)
	ctx := context.Background()
	d := f.donate(t, 10_000)

	outcome, err := f.svc.ApplyWebhook(ctx, statusEvent(d, domain.DonationStatusPending))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeIgnored, outcome)

	outcome, err = f.svc.ApplyWebhook(ctx, statusEvent(d, domain.DonationStatusFailed))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeApplied, outcome)

	status, _ := testutil.GetDonationStatus(t, f.db, d.Reference)
	assert.Equal(t, domain.DonationStatusFailed, status)
}

func TestApplyWebhook_UnknownDonation(t *testing.T) {
	f := setup(t, 1_000_000, 0)

	_, err := f.svc.ApplyWebhook(context.Background(), domain.InvoiceEvent{
		ExternalID: "DON_1_ABCDEF123456_" + uuid.NewString(),
		Status:     domain.DonationStatusPaid,
		Raw:        json.RawMessage(`{}`),
	})
	assert.ErrorIs(t, err, domain.ErrDonationNotFound)
}

func TestReconcile_RecordsReconcilerActor(t *testing.T) {
	f := setup(t, 1_000_000, 0)
	ctx := context.Background()
	d := f.donate(t, 10_000)

	outcome, err := f.svc.Reconcile(ctx, paidEvent(d))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeApplied, outcome)

	events, err := repository.NewLifecycleEventRepository(f.db).GetBySubject(ctx, domain.SourceTypeDonation, d.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.ActorReconciler, events[1].Actor)
}

func TestCancel(t *testing.T) {
	f := setup(t, 1_000_000, 0)
	ctx := context.Background()

	t.Run("pending donation is cancelled and invoice expired", func(t *testing.T) {
		d := f.donate(t, 10_000)

		cancelled, err := f.svc.Cancel(ctx, d.Reference, f.donor.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.DonationStatusCancelled, cancelled.Status)
		assert.Contains(t, f.gw.ExpiredInvoices, d.GatewayInvoiceID)

		status, _ := testutil.GetDonationStatus(t, f.db, d.Reference)
		assert.Equal(t, domain.DonationStatusCancelled, status)

		_, err = f.svc.Cancel(ctx, d.Reference, f.donor.ID)
		assert.ErrorIs(t, err, domain.ErrDonationNotPending)
		var stateErr *domain.DonationStateError
		require.ErrorAs(t, err, &stateErr)
		assert.Equal(t, domain.DonationStatusCancelled, stateErr.Status)
	})

	t.Run("other donor is forbidden", func(t *testing.T) {
		d := f.donate(t, 10_000)

		_, err := f.svc.Cancel(ctx, d.Reference, uuid.New())
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("unknown reference", func(t *testing.T) {
		_, err := f.svc.Cancel(ctx, "DON_0_000000000000", f.donor.ID)
		assert.ErrorIs(t, err, domain.ErrDonationNotFound)
	})

	t.Run("invoice unknown at gateway still cancels", func(t *testing.T) {
		d := f.donate(t, 10_000)
		delete(f.gw.Invoices, d.GatewayInvoiceID)

		cancelled, err := f.svc.Cancel(ctx, d.Reference, f.donor.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.DonationStatusCancelled, cancelled.Status)
	})

	t.Run("gateway failure keeps donation pending", func(t *testing.T) {
		d := f.donate(t, 10_000)
		f.gw.ExpireInvoiceErr = fmt.Errorf("ExpireInvoice: %w", domain.ErrGateway)
		defer func() { f.gw.ExpireInvoiceErr = nil }()

		_, err := f.svc.Cancel(ctx, d.Reference, f.donor.ID)
		require.ErrorIs(t, err, domain.ErrGateway)

		status, _ := testutil.GetDonationStatus(t, f.db, d.Reference)
		assert.Equal(t, domain.DonationStatusPending, status)
	})

	t.Run("paid donation cannot be cancelled", func(t *testing.T) {
		d := f.donate(t, 10_000)
		_, err := f.svc.ApplyWebhook(ctx, paidEvent(d))
		require.NoError(t, err)

		_, err = f.svc.Cancel(ctx, d.Reference, f.donor.ID)
		assert.ErrorIs(t, err, domain.ErrDonationNotPending)
		var stateErr *domain.DonationStateError
		require.ErrorAs(t, err, &stateErr)
		assert.Equal(t, domain.DonationStatusPaid, stateErr.Status)
	})
}

// payOnExpireGateway lets a paid callback land between Cancel's read and its
// transition.
type payOnExpireGateway struct {
	*testutil.FakeGateway
	onExpire func()
}

func (g *payOnExpireGateway) ExpireInvoice(ctx context.Context, invoiceID string) error {
	if g.onExpire != nil {
		g.onExpire()
	}
	return g.FakeGateway.ExpireInvoice(ctx, invoiceID)
}

func TestCancel_PaidMidCancelReportsPaid(t *testing.T) {
	gw := &payOnExpireGateway{FakeGateway: testutil.NewFakeGateway()}
	f := setupWithGateway(t, 1_000_000, 0, gw)
	f.gw = gw.FakeGateway
	ctx := context.Background()

	d := f.donate(t, 10_000)
	gw.onExpire = func() {
		_, err := f.svc.ApplyWebhook(ctx, paidEvent(d))
		require.NoError(t, err)
	}

	_, err := f.svc.Cancel(ctx, d.Reference, f.donor.ID)
	require.ErrorIs(t, err, domain.ErrDonationNotPending)
	var stateErr *domain.DonationStateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, domain.DonationStatusPaid, stateErr.Status)

	status, _ := testutil.GetDonationStatus(t, f.db, d.Reference)
	assert.Equal(t, domain.DonationStatusPaid, status)
	assert.Equal(t, int64(10_000), testutil.GetCampaign(t, f.db, f.campaign.ID).CurrentAmount)
}

func TestHistoryAndCampaignDonations(t *testing.T) {
	f := setup(t, 1_000_000, 0)
	ctx := context.Background()

	paid := f.donate(t, 10_000)
	_, err := f.svc.ApplyWebhook(ctx, paidEvent(paid))
	require.NoError(t, err)

	anon, err := f.svc.Create(ctx, donation.CreateRequest{
		CampaignID: f.campaign.ID, DonorID: f.donor.ID, Amount: 20_000,
		PaymentMethod: domain.PaymentMethodQRIS, IsAnonymous: true,
	})
	require.NoError(t, err)
	_, err = f.svc.ApplyWebhook(ctx, paidEvent(anon))
	require.NoError(t, err)

	f.donate(t, 30_000)

	all, total, err := f.svc.History(ctx, f.donor.ID, nil, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, all, 3)

	pending := domain.DonationStatusPending
	onlyPending, total, err := f.svc.History(ctx, f.donor.ID, &pending, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, onlyPending, 1)
	assert.Equal(t, int64(30_000), onlyPending[0].Amount)

	bogus := domain.DonationStatus("refunded")
	_, _, err = f.svc.History(ctx, f.donor.ID, &bogus, 1, 10)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	public, total, err := f.svc.CampaignDonations(ctx, f.campaign.ID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, public, 2)

	names := map[int64]string{}
	for _, p := range public {
		names[p.Amount] = p.DonorName
	}
	assert.Equal(t, "Budi", names[10_000])
	assert.Equal(t, domain.AnonymousDonorName, names[20_000])

	_, _, err = f.svc.CampaignDonations(ctx, uuid.New(), 1, 10)
	assert.ErrorIs(t, err, domain.ErrCampaignNotFound)
}
