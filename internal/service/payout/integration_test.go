package payout_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/crowdfund-payments/internal/config"
	"github.com/josh-kwaku/crowdfund-payments/internal/domain"
	"github.com/josh-kwaku/crowdfund-payments/internal/notify"
	"github.com/josh-kwaku/crowdfund-payments/internal/repository"
	"github.com/josh-kwaku/crowdfund-payments/internal/service/payout"
	"github.com/josh-kwaku/crowdfund-payments/internal/testutil"
)

type recordingNotifier struct {
	mu     sync.Mutex
	err    error
	events []notify.PayoutCompleted
}

func (n *recordingNotifier) NotifyPayoutCompleted(_ context.Context, ev notify.PayoutCompleted) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return n.err
}

func (n *recordingNotifier) sent() []notify.PayoutCompleted {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.PayoutCompleted(nil), n.events...)
}

type fixture struct {
	db       *sql.DB
	svc      *payout.Service
	gw       *testutil.FakeGateway
	notifier *recordingNotifier
	locker   *repository.CampaignLocker
	creator  *domain.User
	campaign *domain.Campaign
	entry    *domain.BankEntry
}

func setup(t *testing.T, goal, current int64) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	gw := testutil.NewFakeGateway()
	n := &recordingNotifier{}
	locker := repository.NewCampaignLocker(db)

	svc := payout.NewService(payout.Deps{
		Payouts:   repository.NewPayoutRepository(db),
		Campaigns: repository.NewCampaignRepository(db),
		Banks:     repository.NewBankAccountRepository(db),
		Users:     repository.NewUserRepository(db),
		Ledger:    repository.NewLedgerRepository(db),
		Events:    repository.NewLifecycleEventRepository(db),
		Tx:        repository.NewDB(db),
		Locker:    locker,
		Gateway:   gw,
		Notifier:  n,
	}, &config.Config{NotifyTimeout: 2 * time.Second})

	creator := testutil.SeedUser(t, db, "creator@test.com", "Siti", domain.UserRoleCreator)
	campaign := testutil.SeedCampaign(t, db, creator.ID, "School Roof", goal, current)
	entry := testutil.SeedBankEntry(t, db, creator.ID, "BCA", "1234567890", "Siti Rahma")

	return &fixture{db: db, svc: svc, gw: gw, notifier: n, locker: locker, creator: creator, campaign: campaign, entry: entry}
}

func (f *fixture) request(t *testing.T, amount int64) (*domain.Payout, error) {
	t.Helper()
	return f.svc.Create(context.Background(), payout.CreateRequest{
		CampaignID:  f.campaign.ID,
		BankEntryID: f.entry.ID,
		RequesterID: f.creator.ID,
		Amount:      amount,
	})
}

func disbursementEvent(p *domain.Payout, status domain.PayoutStatus, failureCode string) domain.DisbursementEvent {
	raw, _ := json.Marshal(map[string]string{"id": p.GatewayDisbursementID, "status": string(status)})
	return domain.DisbursementEvent{
		DisbursementID: p.GatewayDisbursementID,
		ExternalID:     p.ExternalID,
		Status:         status,
		FailureCode:    failureCode,
		Raw:            raw,
	}
}

func TestCreate_HappyPath(t *testing.T) {
	f := setup(t, 1_000_000, 400_000)

	p, err := f.request(t, 150_000)
	require.NoError(t, err)

	assert.Equal(t, domain.PayoutStatusPending, p.Status)
	assert.Equal(t, "disb_1", p.GatewayDisbursementID)
	assert.Regexp(t, `^PAY_\d+_[0-9A-F]{8}_`+f.campaign.ID.String()+`$`, p.ExternalID)

	require.Len(t, f.gw.DisbursementRequests, 1)
	req := f.gw.DisbursementRequests[0]
	assert.Equal(t, "BCA", req.BankCode)
	assert.Equal(t, "1234567890", req.AccountNumber)
	assert.Equal(t, "Siti Rahma", req.HolderName)
	assert.Equal(t, "Payout for School Roof", req.Description)

	// funds leave current_amount only when the processor confirms
	c := testutil.GetCampaign(t, f.db, f.campaign.ID)
	assert.Equal(t, int64(400_000), c.CurrentAmount)

	summary, err := f.svc.FundingSummary(context.Background(), f.campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(150_000), summary.Outstanding)
	assert.Equal(t, int64(250_000), summary.Withdrawable)
}

func TestCreate_ExactlyWithdrawable(t *testing.T) {
	f := setup(t, 1_000_000, 300_000)

	_, err := f.request(t, 100_000)
	require.NoError(t, err)

	_, err = f.request(t, 200_001)
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)

	_, err = f.request(t, 200_000)
	require.NoError(t, err)

	_, err = f.request(t, 1)
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)

	assert.Equal(t, 2, testutil.CountPayouts(t, f.db, f.campaign.ID))
	_, disbursements := f.gw.Calls()
	assert.Equal(t, 2, disbursements)
}

func TestCreate_Rejections(t *testing.T) {
	f := setup(t, 1_000_000, 300_000)
	ctx := context.Background()

	_, err := f.request(t, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.svc.Create(ctx, payout.CreateRequest{
		CampaignID: uuid.New(), BankEntryID: f.entry.ID, RequesterID: f.creator.ID, Amount: 1000,
	})
	assert.ErrorIs(t, err, domain.ErrCampaignNotFound)

	stranger := testutil.SeedUser(t, f.db, "stranger@test.com", "Stranger", domain.UserRoleCreator)
	_, err = f.svc.Create(ctx, payout.CreateRequest{
		CampaignID: f.campaign.ID, BankEntryID: f.entry.ID, RequesterID: stranger.ID, Amount: 1000,
	})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	otherEntry := testutil.SeedBankEntry(t, f.db, stranger.ID, "BNI", "999", "Stranger")
	_, err = f.svc.Create(ctx, payout.CreateRequest{
		CampaignID: f.campaign.ID, BankEntryID: otherEntry.ID, RequesterID: f.creator.ID, Amount: 1000,
	})
	assert.ErrorIs(t, err, domain.ErrBankEntryNotFound)

	_, disbursements := f.gw.Calls()
	assert.Equal(t, 0, disbursements)
}

func TestCreate_LockHeldByAnotherRequest(t *testing.T) {
	f := setup(t, 1_000_000, 300_000)

	unlock, err := f.locker.TryLock(context.Background(), f.campaign.ID)
	require.NoError(t, err)

	_, err = f.request(t, 1000)
	require.ErrorIs(t, err, domain.ErrPayoutInProgress)

	unlock()

	_, err = f.request(t, 1000)
	require.NoError(t, err)
}

func TestCreate_ConcurrentRequestsNeverOverdraw(t *testing.T) {
	f := setup(t, 1_000_000, 100_000)

	const workers = 6
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.request(t, 60_000)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t,
			errors.Is(err, domain.ErrPayoutInProgress) || errors.Is(err, domain.ErrInsufficientBalance),
			"unexpected error: %v", err)
	}
	assert.LessOrEqual(t, succeeded, 1)

	summary, err := f.svc.FundingSummary(context.Background(), f.campaign.ID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, summary.Withdrawable, int64(0))
	assert.LessOrEqual(t, summary.Outstanding, int64(100_000))
}

func TestCreate_GatewayFailurePersistsNothing(t *testing.T) {
	f := setup(t, 1_000_000, 300_000)
	f.gw.CreateDisbursementErr = fmt.Errorf("CreateDisbursement: %w", domain.ErrGateway)

	_, err := f.request(t, 1000)
	require.ErrorIs(t, err, domain.ErrGateway)
	assert.Equal(t, 0, testutil.CountPayouts(t, f.db, f.campaign.ID))

	f.gw.CreateDisbursementErr = nil
	_, err = f.request(t, 1000)
	require.NoError(t, err)
}

func TestApplyWebhook_CompletedDebitsAndNotifies(t *testing.T) {
	f := setup(t, 1_000_000, 500_000)
	ctx := context.Background()

	p, err := f.request(t, 200_000)
	require.NoError(t, err)

	outcome, err := f.svc.ApplyWebhook(ctx, disbursementEvent(p, domain.PayoutStatusCompleted, ""))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeApplied, outcome)

	assert.Equal(t, domain.PayoutStatusCompleted, testutil.GetPayoutStatus(t, f.db, p.ID))

	c := testutil.GetCampaign(t, f.db, f.campaign.ID)
	assert.Equal(t, int64(300_000), c.CurrentAmount)
	assert.Equal(t, int64(200_000), c.PayoutAmount)

	entries, err := repository.NewLedgerRepository(f.db).GetByCampaignID(ctx, f.campaign.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.EntryTypeDebit, entries[0].EntryType)
	assert.Equal(t, int64(500_000), entries[0].BalanceBefore)
	assert.Equal(t, int64(300_000), entries[0].BalanceAfter)

	sent := f.notifier.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "creator@test.com", sent[0].CreatorEmail)
	assert.Equal(t, "Siti", sent[0].CreatorName)
	assert.Equal(t, "School Roof", sent[0].CampaignTitle)
	assert.Equal(t, p.ID, sent[0].PayoutID)
	assert.Contains(t, sent[0].Body, "Rp200.000")

	summary, err := f.svc.FundingSummary(ctx, f.campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), summary.Outstanding)
	assert.Equal(t, int64(300_000), summary.Withdrawable)
}

func TestApplyWebhook_DuplicateCompletionDebitsOnce(t *testing.T) {
	f := setup(t, 1_000_000, 500_000)
	ctx := context.Background()

	p, err := f.request(t, 100_000)
	require.NoError(t, err)
	ev := disbursementEvent(p, domain.PayoutStatusCompleted, "")

	_, err = f.svc.ApplyWebhook(ctx, ev)
	require.NoError(t, err)
	outcome, err := f.svc.ApplyWebhook(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeIgnored, outcome)

	c := testutil.GetCampaign(t, f.db, f.campaign.ID)
	assert.Equal(t, int64(400_000), c.CurrentAmount)
	assert.Equal(t, int64(100_000), c.PayoutAmount)
	assert.Len(t, f.notifier.sent(), 1)
	assert.Equal(t, 1, testutil.CountLedgerEntries(t, f.db, f.campaign.ID))
}

func TestApplyWebhook_ProcessingThenFailed(t *testing.T) {
	f := setup(t, 1_000_000, 500_000)
	ctx := context.Background()

	p, err := f.request(t, 100_000)
	require.NoError(t, err)

	outcome, err := f.svc.ApplyWebhook(ctx, disbursementEvent(p, domain.PayoutStatusProcessing, ""))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeApplied, outcome)
	assert.Equal(t, domain.PayoutStatusProcessing, testutil.GetPayoutStatus(t, f.db, p.ID))

	outcome, err = f.svc.ApplyWebhook(ctx, disbursementEvent(p, domain.PayoutStatusProcessing, ""))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeIgnored, outcome)

	outcome, err = f.svc.ApplyWebhook(ctx, disbursementEvent(p, domain.PayoutStatusFailed, "INVALID_DESTINATION"))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeApplied, outcome)
	assert.Equal(t, domain.PayoutStatusFailed, testutil.GetPayoutStatus(t, f.db, p.ID))

	c := testutil.GetCampaign(t, f.db, f.campaign.ID)
	assert.Equal(t, int64(500_000), c.CurrentAmount)
	assert.Equal(t, int64(0), c.PayoutAmount)
	assert.Empty(t, f.notifier.sent())

	// a late completion for a failed payout changes nothing
	outcome, err = f.svc.ApplyWebhook(ctx, disbursementEvent(p, domain.PayoutStatusCompleted, ""))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeIgnored, outcome)
	assert.Equal(t, int64(500_000), testutil.GetCampaign(t, f.db, f.campaign.ID).CurrentAmount)

	summary, err := f.svc.FundingSummary(ctx, f.campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500_000), summary.Withdrawable)

	payouts, err := f.svc.ListForCampaign(ctx, f.campaign.ID, f.creator.ID)
	require.NoError(t, err)
	require.Len(t, payouts, 1)
	require.NotNil(t, payouts[0].FailureReason)
	assert.Equal(t, "INVALID_DESTINATION", *payouts[0].FailureReason)
}

func TestApplyWebhook_NotifierFailureKeepsCompletion(t *testing.T) {
	f := setup(t, 1_000_000, 500_000)
	f.notifier.err = errors.New("broker unavailable")

	p, err := f.request(t, 100_000)
	require.NoError(t, err)

	outcome, err := f.svc.ApplyWebhook(context.Background(), disbursementEvent(p, domain.PayoutStatusCompleted, ""))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeApplied, outcome)
	assert.Equal(t, domain.PayoutStatusCompleted, testutil.GetPayoutStatus(t, f.db, p.ID))
	assert.Equal(t, int64(400_000), testutil.GetCampaign(t, f.db, f.campaign.ID).CurrentAmount)
}

func TestApplyWebhook_UnknownDisbursement(t *testing.T) {
	f := setup(t, 1_000_000, 0)

	_, err := f.svc.ApplyWebhook(context.Background(), domain.DisbursementEvent{
		DisbursementID: "disb_missing",
		Status:         domain.PayoutStatusCompleted,
		Raw:            json.RawMessage(`{}`),
	})
	assert.ErrorIs(t, err, domain.ErrPayoutNotFound)
}

func TestListForCampaign_CreatorOnly(t *testing.T) {
	f := setup(t, 1_000_000, 500_000)
	ctx := context.Background()

	_, err := f.request(t, 1000)
	require.NoError(t, err)

	payouts, err := f.svc.ListForCampaign(ctx, f.campaign.ID, f.creator.ID)
	require.NoError(t, err)
	assert.Len(t, payouts, 1)

	_, err = f.svc.ListForCampaign(ctx, f.campaign.ID, uuid.New())
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.ListForCampaign(ctx, uuid.New(), f.creator.ID)
	assert.ErrorIs(t, err, domain.ErrCampaignNotFound)
}

func TestScenario_SecondPayoutBeforeFirstCompletes(t *testing.T) {
	f := setup(t, 1_000_000, 1_000_000)
	ctx := context.Background()

	first, err := f.request(t, 700_000)
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutStatusPending, first.Status)

	_, err = f.request(t, 400_000)
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)

	summary, err := f.svc.FundingSummary(ctx, f.campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), summary.CurrentAmount)
	assert.Equal(t, int64(700_000), summary.Outstanding)
	assert.Equal(t, int64(300_000), summary.Withdrawable)

	// completion moves the funds without changing what is withdrawable
	_, err = f.svc.ApplyWebhook(ctx, disbursementEvent(first, domain.PayoutStatusCompleted, ""))
	require.NoError(t, err)

	_, err = f.request(t, 400_000)
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)

	summary, err = f.svc.FundingSummary(ctx, f.campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(300_000), summary.CurrentAmount)
	assert.Equal(t, int64(700_000), summary.PayoutAmount)
	assert.Equal(t, int64(300_000), summary.Withdrawable)

	_, err = f.request(t, 300_000)
	require.NoError(t, err)
	assert.Equal(t, 2, testutil.CountPayouts(t, f.db, f.campaign.ID))
}

func TestCreate_RacingCompletionNeverOverdraws(t *testing.T) {
	f := setup(t, 1_000_000, 1_000_000)
	ctx := context.Background()

	for i := range 5 {
		campaign := testutil.SeedCampaign(t, f.db, f.creator.ID, fmt.Sprintf("Round %d", i), 1_000_000, 1_000_000)
		first, err := f.svc.Create(ctx, payout.CreateRequest{
			CampaignID: campaign.ID, BankEntryID: f.entry.ID, RequesterID: f.creator.ID, Amount: 700_000,
		})
		require.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := f.svc.ApplyWebhook(ctx, disbursementEvent(first, domain.PayoutStatusCompleted, ""))
			assert.NoError(t, err)
		}()
		var overdraw error
		go func() {
			defer wg.Done()
			_, overdraw = f.svc.Create(ctx, payout.CreateRequest{
				CampaignID: campaign.ID, BankEntryID: f.entry.ID, RequesterID: f.creator.ID, Amount: 1_000_000,
			})
		}()
		wg.Wait()

		require.ErrorIs(t, overdraw, domain.ErrInsufficientBalance, "round %d", i)

		c := testutil.GetCampaign(t, f.db, campaign.ID)
		assert.Equal(t, int64(300_000), c.CurrentAmount)
		assert.Equal(t, int64(700_000), c.PayoutAmount)
	}
}
