package rules

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/DenialAppealPro/appealpro/app/models"
	"github.com/DenialAppealPro/appealpro/internal/pkg/database/databasetest"
	"github.com/DenialAppealPro/appealpro/internal/pkg/metrics"
)

var today = time.Date(2026, 3, 1, 15, 30, 0, 0, time.UTC)

func newEngine(t *testing.T) (*Engine, *gorm.DB) {
	t.Helper()
	db := databasetest.New(t)
	e := NewEngine(db)
	e.now = func() time.Time { return today }
	return e, db
}

func date(s string) time.Time {
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func intake(denial string) *models.WorkUnit {
	return &models.WorkUnit{
		PayerName:         "Aetna",
		PlanType:          "commercial",
		ClaimNumber:       "CLM-9",
		DateOfService:     date(denial).AddDate(0, 0, -20),
		DenialDate:        date(denial),
		SubmissionChannel: "fax",
	}
}

func seedGenerated(t *testing.T, db *gorm.DB, claim, payer string, at time.Time) {
	t.Helper()
	require.NoError(t, db.Create(&models.WorkUnit{
		UUID:              uuid.NewString(),
		FundingMode:       models.FundingModeRetailToken,
		Status:            models.WorkUnitStatusGenerated,
		GenerationCount:   1,
		LastGeneratedAt:   &at,
		PayerName:         payer,
		PlanType:          "commercial",
		ClaimNumber:       claim,
		PatientID:         "P-1",
		ProviderNPI:       "1234567890",
		DateOfService:     at,
		DenialDate:        at,
		DenialReasonCodes: "CO-50",
		SubmissionChannel: "fax",
	}).Error)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in       string
		level    int
		external bool
	}{
		{"", 1, false},
		{"1", 1, false},
		{"Level 2", 2, false},
		{"level_2", 2, false},
		{"LEVEL3", 3, false},
		{"External Review", 0, true},
		{"external_review", 0, true},
		{"first", 1, false},
		{"0", 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			level, external := ParseLevel(tt.in)
			assert.Equal(t, tt.level, level)
			assert.Equal(t, tt.external, external)
		})
	}
}

func TestDefaultDeadlineByLevel(t *testing.T) {
	e, _ := newEngine(t)

	a, err := e.Evaluate(context.Background(), intake("2026-01-01"))
	require.NoError(t, err)
	assert.Nil(t, a.PayerRuleID)
	assert.Equal(t, "2026-06-30", a.TimelyFiling.Deadline)
	assert.Equal(t, 180, a.TimelyFiling.DeadlineDays)
	assert.Equal(t, 121, a.TimelyFiling.DaysRemaining)
	assert.Equal(t, "ACTIVE", a.TimelyFiling.Status)
	assert.Equal(t, "low", a.TimelyFiling.Urgency)
	require.NotNil(t, a.Deadline())
	assert.Equal(t, date("2026-06-30"), *a.Deadline())

	wu := intake("2026-01-01")
	wu.AppealLevel = "Level 2"
	a, err = e.Evaluate(context.Background(), wu)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-02", a.TimelyFiling.Deadline)
	assert.Equal(t, "URGENT", a.TimelyFiling.Status)
	assert.Equal(t, "critical", a.TimelyFiling.Urgency)

	wu = intake("2026-01-01")
	wu.AppealLevel = "External Review"
	a, err = e.Evaluate(context.Background(), wu)
	require.NoError(t, err)
	assert.Equal(t, 120, a.TimelyFiling.DeadlineDays)
	assert.True(t, a.AppealLevel.Valid)
}

func TestDeadlineDayIsStillCompliant(t *testing.T) {
	e, _ := newEngine(t)

	// 2025-09-02 + 180 days is 2026-03-01.
	a, err := e.Evaluate(context.Background(), intake("2025-09-02"))
	require.NoError(t, err)
	assert.Equal(t, 0, a.TimelyFiling.DaysRemaining)
	assert.True(t, a.TimelyFiling.Compliant)
}

func TestMissedDeadlineIsHardStop(t *testing.T) {
	e, _ := newEngine(t)
	before := testutil.ToFloat64(metrics.IntakeRejections.WithLabelValues(RuleTimelyFiling))

	a, err := e.Evaluate(context.Background(), intake("2025-06-01"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRuleViolation))

	var v *Violation
	require.True(t, errors.As(err, &v))
	assert.Equal(t, RuleTimelyFiling, v.Rule)
	assert.Equal(t, "HARD STOP: Appeal deadline (2025-11-28) has passed", v.Message)

	require.NotNil(t, a)
	assert.False(t, a.TimelyFiling.Compliant)
	assert.Equal(t, "EXPIRED", a.TimelyFiling.Status)
	assert.Nil(t, a.AppealLevel, "evaluation stops at the first hard stop")
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.IntakeRejections.WithLabelValues(RuleTimelyFiling)))
}

func TestPayerRuleOverridesDefaults(t *testing.T) {
	e, db := newEngine(t)
	rule := &models.PayerRule{
		PayerName:            "Medicaid",
		PlanType:             "medicaid",
		AppealDeadlineDays:   60,
		MaxAppealLevels:      2,
		SupportsFax:          true,
		SupportsMail:         true,
		RequiresResubmission: true,
	}
	rule.SetDocuments([]string{"Original denial letter", "Medicaid card copy"})
	require.NoError(t, db.Create(rule).Error)

	wu := intake("2026-01-15")
	wu.PayerName = "MEDICAID"
	wu.PlanType = "medicaid"
	a, err := e.Evaluate(context.Background(), wu)
	require.NoError(t, err)
	require.NotNil(t, a.PayerRuleID)
	assert.Equal(t, rule.ID, *a.PayerRuleID)
	assert.Equal(t, "2026-03-16", a.TimelyFiling.Deadline)
	assert.Equal(t, "APPROACHING", a.TimelyFiling.Status)
	assert.True(t, a.SubmissionType.RequiresResubmission)
	assert.Equal(t, []string{"Original denial letter", "Medicaid card copy"}, a.RequiredDocuments)

	wu.SubmissionChannel = "portal"
	a, err = e.Evaluate(context.Background(), wu)
	var v *Violation
	require.True(t, errors.As(err, &v))
	assert.Equal(t, RuleSubmissionChannel, v.Rule)
	assert.Equal(t, "Channel 'portal' not supported. Use: fax, mail", v.Message)
	assert.False(t, a.SubmissionChannel.Valid)
}

func TestDefaultChannels(t *testing.T) {
	e, _ := newEngine(t)

	wu := intake("2026-02-01")
	wu.SubmissionChannel = "portal"
	_, err := e.Evaluate(context.Background(), wu)
	var v *Violation
	require.True(t, errors.As(err, &v))
	assert.Equal(t, RuleSubmissionChannel, v.Rule)

	wu.SubmissionChannel = "mail"
	a, err := e.Evaluate(context.Background(), wu)
	require.NoError(t, err)
	assert.Equal(t, "Channel 'mail' allowed (default)", a.SubmissionChannel.Message)
	assert.Equal(t, defaultDocuments, a.RequiredDocuments)
	assert.False(t, a.SubmissionType.RequiresResubmission)
}

func TestAppealLevelLimits(t *testing.T) {
	e, db := newEngine(t)

	wu := intake("2026-02-01")
	wu.AppealLevel = "3"
	_, err := e.Evaluate(context.Background(), wu)
	var v *Violation
	require.True(t, errors.As(err, &v))
	assert.Equal(t, RuleAppealLevel, v.Rule)
	assert.Equal(t, "HARD STOP: Appeal levels exhausted (max: 2)", v.Message)

	// Two letters already generated for the claim use up both levels.
	seedGenerated(t, db, "CLM-9", "aetna", today.AddDate(0, 0, -90))
	seedGenerated(t, db, "CLM-9", "Aetna", today.AddDate(0, 0, -45))
	wu.AppealLevel = "2"
	_, err = e.Evaluate(context.Background(), wu)
	require.True(t, errors.As(err, &v))
	assert.Equal(t, RuleAppealLevel, v.Rule)
	assert.Contains(t, v.Message, "Maximum appeal attempts (2)")

	// Other claims are unaffected.
	wu.ClaimNumber = "CLM-10"
	a, err := e.Evaluate(context.Background(), wu)
	require.NoError(t, err)
	assert.Equal(t, "Appeal level 2 of 2 allowed", a.AppealLevel.Message)
}

func TestRecentAppealIsDuplicate(t *testing.T) {
	e, db := newEngine(t)
	seedGenerated(t, db, "CLM-9", "Aetna", today.AddDate(0, 0, -5))

	a, err := e.Evaluate(context.Background(), intake("2026-02-01"))
	var v *Violation
	require.True(t, errors.As(err, &v))
	assert.Equal(t, RuleDuplicateCheck, v.Rule)
	assert.Equal(t, "HARD STOP: Duplicate appeal detected (generated 5 days ago)", v.Message)
	assert.True(t, a.AppealLevel.Valid)
}

func TestOldAppealIsNotDuplicate(t *testing.T) {
	e, db := newEngine(t)
	seedGenerated(t, db, "CLM-9", "Aetna", today.AddDate(0, 0, -31))

	wu := intake("2026-02-01")
	wu.AppealLevel = "2"
	a, err := e.Evaluate(context.Background(), wu)
	require.NoError(t, err)
	assert.True(t, a.DuplicateCheck.Valid)
}

func TestAppliedJSON(t *testing.T) {
	e, _ := newEngine(t)
	a, err := e.Evaluate(context.Background(), intake("2026-02-01"))
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(a.JSON()), &decoded))
	assert.Contains(t, decoded, "timely_filing")
	assert.Contains(t, decoded, "submission_channel")
	assert.Contains(t, decoded, "required_documents")
	assert.NotContains(t, decoded, "payer_rule_id")
}
