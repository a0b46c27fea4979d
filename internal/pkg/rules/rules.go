// Package rules checks appeal intake against payer filing rules before a work
// unit is stored. The checks are deterministic and run in a fixed order; the
// first hard stop ends the evaluation.
package rules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/DenialAppealPro/appealpro/app/models"
	"github.com/DenialAppealPro/appealpro/internal/pkg/metrics"
)

const (
	// DefaultMaxLevels applies when no payer rule is configured.
	DefaultMaxLevels = 2
	// DuplicateWindow blocks a new appeal for a claim generated this recently.
	DuplicateWindow = 30 * 24 * time.Hour

	dateLayout = "2006-01-02"
	day        = 24 * time.Hour
)

// Rule names as reported in Applied and Violation.
const (
	RuleTimelyFiling      = "timely_filing"
	RuleAppealLevel       = "appeal_level"
	RuleDuplicateCheck    = "duplicate_check"
	RuleSubmissionChannel = "submission_channel"
)

// Appeal windows in days from the denial date, used when the payer has no rule.
var levelWindows = map[int]int{
	1: 180,
	2: 60,
}

const externalReviewWindow = 120

var defaultDocuments = []string{
	"Original denial letter",
	"Claim form",
	"Medical records (if applicable)",
	"Itemized bill",
}

var ErrRuleViolation = errors.New("rules: hard stop")

// Violation is a hard stop raised by one rule.
type Violation struct {
	Rule    string
	Message string
}

func (v *Violation) Error() string { return v.Message }

func (v *Violation) Is(target error) bool { return target == ErrRuleViolation }

func hardStop(format string, args ...interface{}) string {
	return "HARD STOP: " + fmt.Sprintf(format, args...)
}

type Check struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

// TimelyFiling is the deadline analysis of one intake.
type TimelyFiling struct {
	Deadline      string `json:"deadline"`
	DeadlineDays  int    `json:"deadline_days"`
	DaysRemaining int    `json:"days_remaining"`
	Compliant     bool   `json:"compliant"`
	Status        string `json:"status"`
	Urgency       string `json:"urgency"`
	Message       string `json:"message"`
}

type SubmissionType struct {
	RequiresResubmission bool   `json:"requires_resubmission"`
	Message              string `json:"message"`
}

// Applied records the rules evaluated for one intake, in evaluation order.
type Applied struct {
	PayerRuleID       *uint           `json:"payer_rule_id,omitempty"`
	TimelyFiling      *TimelyFiling   `json:"timely_filing,omitempty"`
	AppealLevel       *Check          `json:"appeal_level,omitempty"`
	DuplicateCheck    *Check          `json:"duplicate_check,omitempty"`
	SubmissionType    *SubmissionType `json:"submission_type,omitempty"`
	SubmissionChannel *Check          `json:"submission_channel,omitempty"`
	RequiredDocuments []string        `json:"required_documents,omitempty"`

	deadline time.Time
}

// Deadline returns the appeal deadline, or nil before timely filing ran.
func (a *Applied) Deadline() *time.Time {
	if a == nil || a.deadline.IsZero() {
		return nil
	}
	d := a.deadline
	return &d
}

// JSON encodes a for storage on the work unit.
func (a *Applied) JSON() models.RawJSON {
	raw, err := json.Marshal(a)
	if err != nil {
		return ""
	}
	return models.RawJSON(raw)
}

// Engine evaluates intake against the payer_rules table and earlier work units.
type Engine struct {
	db  *gorm.DB
	now func() time.Time
}

func NewEngine(db *gorm.DB) *Engine {
	return &Engine{db: db, now: time.Now}
}

// Evaluate runs every check on wu. On a hard stop it returns the rules applied
// so far together with a *Violation.
func (e *Engine) Evaluate(ctx context.Context, wu *models.WorkUnit) (*Applied, error) {
	rule, err := e.lookup(ctx, wu.PayerName, wu.PlanType)
	if err != nil {
		return nil, err
	}

	a := &Applied{}
	if rule != nil {
		a.PayerRuleID = &rule.ID
	}

	err = e.evaluate(ctx, a, rule, wu)
	var v *Violation
	if errors.As(err, &v) {
		metrics.IntakeRejections.WithLabelValues(v.Rule).Inc()
		log.Infof("[Rules] Intake for claim %s rejected by %s: %s", wu.ClaimNumber, v.Rule, v.Message)
		return a, v
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (e *Engine) evaluate(ctx context.Context, a *Applied, rule *models.PayerRule, wu *models.WorkUnit) error {
	level, external := ParseLevel(wu.AppealLevel)
	today := truncateDay(e.now())

	tf := timelyFiling(rule, wu.DenialDate, level, external, today)
	a.TimelyFiling = &tf
	a.deadline = truncateDay(wu.DenialDate).Add(time.Duration(tf.DeadlineDays) * day)
	if !tf.Compliant {
		return &Violation{Rule: RuleTimelyFiling, Message: tf.Message}
	}

	check, err := e.appealLevel(ctx, rule, wu, level, external)
	if err != nil {
		return err
	}
	a.AppealLevel = check
	if !check.Valid {
		return &Violation{Rule: RuleAppealLevel, Message: check.Message}
	}

	check, err = e.duplicate(ctx, wu)
	if err != nil {
		return err
	}
	a.DuplicateCheck = check
	if !check.Valid {
		return &Violation{Rule: RuleDuplicateCheck, Message: check.Message}
	}

	a.SubmissionType = submissionType(rule)

	check = submissionChannel(rule, wu.SubmissionChannel)
	a.SubmissionChannel = check
	if !check.Valid {
		return &Violation{Rule: RuleSubmissionChannel, Message: check.Message}
	}

	a.RequiredDocuments = RequiredDocuments(rule)
	return nil
}

// lookup returns the rule for payer and plan, or nil. Payer names match
// case-insensitively.
func (e *Engine) lookup(ctx context.Context, payer, plan string) (*models.PayerRule, error) {
	var rule models.PayerRule
	err := e.db.WithContext(ctx).
		Where("LOWER(payer_name) = ? AND plan_type = ?", strings.ToLower(strings.TrimSpace(payer)), strings.ToLower(strings.TrimSpace(plan))).
		First(&rule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load payer rule: %w", err)
	}
	return &rule, nil
}

func timelyFiling(rule *models.PayerRule, denial time.Time, level int, external bool, today time.Time) TimelyFiling {
	days := levelWindows[1]
	switch {
	case rule != nil:
		days = rule.AppealDeadlineDays
	case external:
		days = externalReviewWindow
	default:
		if w, ok := levelWindows[level]; ok {
			days = w
		}
	}

	deadline := truncateDay(denial).Add(time.Duration(days) * day)
	remaining := int(deadline.Sub(today) / day)
	tf := TimelyFiling{
		Deadline:      deadline.Format(dateLayout),
		DeadlineDays:  days,
		DaysRemaining: remaining,
		Compliant:     remaining >= 0,
	}
	tf.Status, tf.Urgency = urgency(remaining)
	if !tf.Compliant {
		tf.Message = hardStop("Appeal deadline (%s) has passed", tf.Deadline)
	} else {
		tf.Message = fmt.Sprintf("Deadline: %s (%d days from denial)", tf.Deadline, days)
	}
	return tf
}

// urgency classifies the days left before the deadline.
func urgency(remaining int) (status, level string) {
	switch {
	case remaining < 0:
		return "EXPIRED", "critical"
	case remaining <= 7:
		return "URGENT", "critical"
	case remaining <= 30:
		return "APPROACHING", "high"
	case remaining <= 60:
		return "ACTIVE", "medium"
	default:
		return "ACTIVE", "low"
	}
}

// appealLevel rejects levels above the payer maximum and claims that already
// used every level. External review sits outside the payer's internal levels.
func (e *Engine) appealLevel(ctx context.Context, rule *models.PayerRule, wu *models.WorkUnit, level int, external bool) (*Check, error) {
	maxLevels := DefaultMaxLevels
	if rule != nil && rule.MaxAppealLevels > 0 {
		maxLevels = rule.MaxAppealLevels
	}
	if external {
		return &Check{Valid: true, Message: "External review"}, nil
	}
	if level > maxLevels {
		return &Check{Message: hardStop("Appeal levels exhausted (max: %d)", maxLevels)}, nil
	}

	var prior int64
	err := e.claimUnits(ctx, wu).
		Where("status = ?", models.WorkUnitStatusGenerated).
		Count(&prior).Error
	if err != nil {
		return nil, fmt.Errorf("count prior appeals: %w", err)
	}
	if prior >= int64(maxLevels) {
		return &Check{Message: hardStop("Maximum appeal attempts (%d) reached for this claim", maxLevels)}, nil
	}
	return &Check{Valid: true, Message: fmt.Sprintf("Appeal level %d of %d allowed", level, maxLevels)}, nil
}

// duplicate rejects a claim whose appeal was generated within DuplicateWindow.
func (e *Engine) duplicate(ctx context.Context, wu *models.WorkUnit) (*Check, error) {
	var last models.WorkUnit
	err := e.claimUnits(ctx, wu).
		Where("status = ? AND last_generated_at IS NOT NULL", models.WorkUnitStatusGenerated).
		Order("last_generated_at DESC").
		First(&last).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &Check{Valid: true, Message: "No duplicate detected"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("check duplicate appeal: %w", err)
	}

	since := e.now().Sub(*last.LastGeneratedAt)
	if since < DuplicateWindow {
		return &Check{Message: hardStop("Duplicate appeal detected (generated %d days ago)", int(since/day))}, nil
	}
	return &Check{Valid: true, Message: "No duplicate detected"}, nil
}

func (e *Engine) claimUnits(ctx context.Context, wu *models.WorkUnit) *gorm.DB {
	return e.db.WithContext(ctx).Model(&models.WorkUnit{}).
		Where("claim_number = ? AND LOWER(payer_name) = ?", wu.ClaimNumber, strings.ToLower(strings.TrimSpace(wu.PayerName)))
}

func submissionType(rule *models.PayerRule) *SubmissionType {
	if rule != nil && rule.RequiresResubmission {
		return &SubmissionType{RequiresResubmission: true, Message: "Resubmission required"}
	}
	return &SubmissionType{Message: "Appeal process"}
}

// submissionChannel checks channel against the payer rule. Without a rule only
// fax and mail are accepted.
func submissionChannel(rule *models.PayerRule, channel string) *Check {
	channel = strings.ToLower(strings.TrimSpace(channel))
	if rule == nil {
		if channel == models.ChannelFax || channel == models.ChannelMail {
			return &Check{Valid: true, Message: fmt.Sprintf("Channel '%s' allowed (default)", channel)}
		}
		return &Check{Message: fmt.Sprintf("Channel '%s' not supported (use fax or mail)", channel)}
	}

	supported := rule.Channels()
	for _, c := range supported {
		if c == channel {
			return &Check{Valid: true, Message: fmt.Sprintf("Channel '%s' supported", channel)}
		}
	}
	switch channel {
	case models.ChannelPortal, models.ChannelFax, models.ChannelMail:
		return &Check{Message: fmt.Sprintf("Channel '%s' not supported. Use: %s", channel, strings.Join(supported, ", "))}
	default:
		return &Check{Message: fmt.Sprintf("Invalid channel: %s", channel)}
	}
}

// RequiredDocuments returns the payer's document list or the default list.
func RequiredDocuments(rule *models.PayerRule) []string {
	if rule != nil {
		if docs := rule.Documents(); len(docs) > 0 {
			return docs
		}
	}
	return append([]string(nil), defaultDocuments...)
}

var levelDigits = regexp.MustCompile(`\d+`)

// ParseLevel reads free-form appeal levels such as "2", "Level 2", "level_2"
// or "External Review". Anything unreadable is level 1.
func ParseLevel(s string) (level int, external bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if strings.Contains(s, "external") {
		return 0, true
	}
	if m := levelDigits.FindString(s); m != "" {
		if n, err := strconv.Atoi(m); err == nil && n > 0 {
			return n, false
		}
	}
	return 1, false
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
