package billing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/DenialAppealPro/appealpro/app/models"
	"github.com/DenialAppealPro/appealpro/internal/pkg/database/databasetest"
	"github.com/DenialAppealPro/appealpro/internal/pkg/gate"
	"github.com/DenialAppealPro/appealpro/internal/pkg/ledger"
	"github.com/DenialAppealPro/appealpro/internal/pkg/pipeline"
)

func newService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := databasetest.New(t)
	return NewServiceFromDB(db), db
}

func account(t *testing.T, db *gorm.DB, email string) *models.Account {
	t.Helper()
	acct, err := ledger.FindAccountByEmail(db, email)
	require.NoError(t, err)
	return acct
}

func TestSubscriptionPurchaseCreatesAccountAndSetsPool(t *testing.T) {
	svc, db := newService(t)

	out, err := svc.Reconcile(context.Background(), NormalizedEvent{
		EventID:      "evt_sub_1",
		Kind:         KindSubscriptionPurchased,
		AccountEmail: "Clinic@Example.com",
		CustomerID:   "cus_1",
		Tier:         "growth",
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.OutcomeApplied, out)

	acct := account(t, db, "clinic@example.com")
	assert.Equal(t, models.TierGrowth, acct.Tier())
	assert.Equal(t, 75, acct.SubscriptionCredits)
	assert.Equal(t, 0, acct.BulkCredits)
	assert.Equal(t, "cus_1", acct.ProcessorCustomerID)
}

func TestRenewalOverwritesSubscriptionPool(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	acct := &models.Account{Email: "renew@example.com", ProcessorCustomerID: "cus_r", SubscriptionCredits: 5, BulkCredits: 50}
	tier := models.TierStarter
	acct.SubscriptionTier = &tier
	require.NoError(t, db.Create(acct).Error)

	_, err := svc.Reconcile(ctx, NormalizedEvent{EventID: "evt_renew_1", Kind: KindSubscriptionRenewed, CustomerID: "cus_r"})
	require.NoError(t, err)

	got := account(t, db, "renew@example.com")
	assert.Equal(t, 20, got.SubscriptionCredits, "overwritten, not 25")
	assert.Equal(t, 50, got.BulkCredits)
}

func TestRenewalBeforePurchaseIsRetried(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	renewal := NormalizedEvent{EventID: "evt_early_renew", Kind: KindSubscriptionRenewed, AccountEmail: "late@example.com"}
	_, err := svc.Reconcile(ctx, renewal)
	assert.ErrorIs(t, err, ErrNoActiveSubscription)

	var n int64
	require.NoError(t, db.Model(&models.ProcessedEvent{}).Where("event_id = ?", "evt_early_renew").Count(&n).Error)
	assert.Equal(t, int64(0), n, "failed renewal must not be recorded")

	_, err = svc.Reconcile(ctx, NormalizedEvent{EventID: "evt_purchase", Kind: KindSubscriptionPurchased, AccountEmail: "late@example.com", Tier: "pro"})
	require.NoError(t, err)

	out, err := svc.Reconcile(ctx, renewal)
	require.NoError(t, err)
	assert.Equal(t, ledger.OutcomeApplied, out)
	assert.Equal(t, 200, account(t, db, "late@example.com").SubscriptionCredits)
}

func TestBulkPacksAccumulate(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	for i, credits := range []int{50, 100, 250} {
		_, err := svc.Reconcile(ctx, NormalizedEvent{
			EventID:      "evt_pack_" + string(rune('a'+i)),
			Kind:         KindBulkPackPurchased,
			AccountEmail: "bulk@example.com",
			Credits:      credits,
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 400, account(t, db, "bulk@example.com").BulkCredits)
}

func TestDuplicatePackDeliveryGrantsOnce(t *testing.T) {
	svc, db := newService(t)
	ev := NormalizedEvent{EventID: "evt_dup", Kind: KindBulkPackPurchased, AccountEmail: "dup@example.com", Credits: 25}

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Reconcile(context.Background(), ev)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	out, err := svc.Reconcile(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, ledger.OutcomeDuplicate, out)
	assert.Equal(t, 25, account(t, db, "dup@example.com").BulkCredits)
}

func TestCancellationKeepsCredits(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	_, err := svc.Reconcile(ctx, NormalizedEvent{EventID: "evt_s", Kind: KindSubscriptionPurchased, AccountEmail: "c@example.com", CustomerID: "cus_c", Tier: "starter"})
	require.NoError(t, err)
	_, err = svc.Reconcile(ctx, NormalizedEvent{EventID: "evt_c", Kind: KindSubscriptionCanceled, CustomerID: "cus_c"})
	require.NoError(t, err)

	acct := account(t, db, "c@example.com")
	assert.Equal(t, models.TierNone, acct.Tier())
	assert.Equal(t, 20, acct.SubscriptionCredits)

	// A renewal after cancellation has no tier to renew.
	_, err = svc.Reconcile(ctx, NormalizedEvent{EventID: "evt_r", Kind: KindSubscriptionRenewed, CustomerID: "cus_c"})
	assert.ErrorIs(t, err, ErrNoActiveSubscription)
}

func TestCancellationForUnknownAccountIsRecorded(t *testing.T) {
	svc, _ := newService(t)
	out, err := svc.Reconcile(context.Background(), NormalizedEvent{EventID: "evt_x", Kind: KindSubscriptionCanceled, CustomerID: "cus_missing"})
	require.NoError(t, err)
	assert.Equal(t, ledger.OutcomeApplied, out)
}

func TestRetailPaymentFundsUnitOnce(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	wu := &models.WorkUnit{
		UUID:              "11111111-2222-3333-4444-555555555555",
		FundingMode:       models.FundingModeRetailToken,
		Status:            models.WorkUnitStatusPending,
		PayerName:         "Cigna",
		PlanType:          "commercial",
		ClaimNumber:       "C-1",
		PatientID:         "P-1",
		ProviderNPI:       "1234567890",
		DateOfService:     time.Now(),
		DenialDate:        time.Now(),
		DenialReasonCodes: "CO-16",
		SubmissionChannel: "mail",
	}
	require.NoError(t, db.Create(wu).Error)

	_, err := svc.Reconcile(ctx, NormalizedEvent{EventID: "evt_retail_1", Kind: KindRetailPaid, WorkUnitID: wu.UUID})
	require.NoError(t, err)

	var stored models.WorkUnit
	require.NoError(t, db.Where("uuid = ?", wu.UUID).First(&stored).Error)
	assert.Equal(t, models.WorkUnitStatusFunded, stored.Status)
	require.NotNil(t, stored.RetailPaidAt)

	// Generated units ignore further payments, even under a new event id.
	require.NoError(t, db.Model(&models.WorkUnit{}).Where("id = ?", stored.ID).
		Updates(map[string]interface{}{"status": models.WorkUnitStatusGenerated, "token_used": true}).Error)
	out, err := svc.Reconcile(ctx, NormalizedEvent{EventID: "evt_retail_2", Kind: KindRetailPaid, WorkUnitID: wu.UUID})
	require.NoError(t, err)
	assert.Equal(t, ledger.OutcomeApplied, out)

	require.NoError(t, db.Where("uuid = ?", wu.UUID).First(&stored).Error)
	assert.Equal(t, models.WorkUnitStatusGenerated, stored.Status)
	assert.True(t, stored.TokenUsed)
}

type flakyGenerator struct {
	err error
}

func (g *flakyGenerator) Generate(_ context.Context, d pipeline.AppealData) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return "appeals/test/" + d.UUID + ".html", nil
}

func TestRetailPaymentAfterFailedGenerationRearmsUnit(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	gen := &flakyGenerator{err: errors.New("renderer down")}
	g := gate.New(db, ledger.New(db), gen, gate.DefaultConfig())

	wu, err := g.CreateWorkUnit(ctx, &models.WorkUnit{
		FundingMode:       models.FundingModeRetailToken,
		PayerName:         "Cigna",
		PlanType:          "commercial",
		ClaimNumber:       "C-2",
		PatientID:         "P-2",
		ProviderNPI:       "1234567890",
		DateOfService:     time.Now(),
		DenialDate:        time.Now(),
		DenialReasonCodes: "CO-16",
		SubmissionChannel: "fax",
	}, "")
	require.NoError(t, err)

	_, err = svc.Reconcile(ctx, NormalizedEvent{EventID: "evt_pay_1", Kind: KindRetailPaid, WorkUnitID: wu.UUID})
	require.NoError(t, err)

	_, err = g.RequestGeneration(ctx, wu.UUID)
	require.ErrorIs(t, err, gate.ErrPipelineFailed)
	_, err = g.RequestGeneration(ctx, wu.UUID)
	require.ErrorIs(t, err, gate.ErrPaymentRequired)

	out, err := svc.Reconcile(ctx, NormalizedEvent{EventID: "evt_pay_2", Kind: KindRetailPaid, WorkUnitID: wu.UUID})
	require.NoError(t, err)
	assert.Equal(t, ledger.OutcomeApplied, out)

	var stored models.WorkUnit
	require.NoError(t, db.Where("uuid = ?", wu.UUID).First(&stored).Error)
	assert.Equal(t, models.WorkUnitStatusFunded, stored.Status)
	assert.False(t, stored.TokenUsed)

	gen.err = nil
	res, err := g.RequestGeneration(ctx, wu.UUID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkUnitStatusGenerated, res.Status)

	// Redelivery of the second payment stays a duplicate.
	out, err = svc.Reconcile(ctx, NormalizedEvent{EventID: "evt_pay_2", Kind: KindRetailPaid, WorkUnitID: wu.UUID})
	require.NoError(t, err)
	assert.Equal(t, ledger.OutcomeDuplicate, out)
}

func TestRetailPaymentForUnknownUnitIsRetried(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Reconcile(context.Background(), NormalizedEvent{EventID: "evt_r404", Kind: KindRetailPaid, WorkUnitID: "missing"})
	assert.ErrorIs(t, err, gate.ErrNotFound)
}

func TestReconcileRejectsMalformedEvents(t *testing.T) {
	svc, _ := newService(t)
	tests := []NormalizedEvent{
		{Kind: KindBulkPackPurchased, AccountEmail: "a@example.com", Credits: 5},
		{EventID: "e1", Kind: KindBulkPackPurchased, AccountEmail: "a@example.com"},
		{EventID: "e2", Kind: KindSubscriptionPurchased, AccountEmail: "a@example.com"},
		{EventID: "e3", Kind: KindRetailPaid},
		{EventID: "e4", Kind: "refund"},
	}
	for _, ev := range tests {
		_, err := svc.Reconcile(context.Background(), ev)
		assert.ErrorIs(t, err, ErrMalformedEvent, "%+v", ev)
	}
}

func TestRenewalTier(t *testing.T) {
	assert.Equal(t, "pro", renewalTier("PRO", "starter"))
	assert.Equal(t, "starter", renewalTier("", "starter"))
	assert.Equal(t, "", renewalTier("gold", ""))
}
