package models

import (
	"time"
)

const (
	FundingModeCredit      = "credit"
	FundingModeRetailToken = "retail_token"
)

const (
	WorkUnitStatusPending   = "pending"
	WorkUnitStatusFunded    = "funded"
	WorkUnitStatusGenerated = "generated"
	WorkUnitStatusFailed    = "failed"
)

// WorkUnit is one billable appeal generation request.
type WorkUnit struct {
	ID               uint       `gorm:"primaryKey" json:"-"`
	UUID             string     `gorm:"type:char(36);not null;uniqueIndex:ux_work_units_uuid" json:"uuid"`
	AccountID        *uint      `gorm:"index" json:"account_id,omitempty"`
	FundingMode      string     `gorm:"type:varchar(20);not null" json:"funding_mode" validate:"oneof=credit retail_token"`
	Status           string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	GenerationCount  int        `gorm:"not null;default:0" json:"generation_count"`
	TokenUsed        bool       `gorm:"not null;default:false" json:"token_used"`
	FundedPool       string     `gorm:"type:varchar(20);not null;default:''" json:"-"`
	RetailPaidAt     *time.Time `gorm:"type:timestamp;default:null" json:"retail_paid_at,omitempty"`
	AttemptID        string     `gorm:"type:varchar(36);not null;default:''" json:"-"`
	AttemptStartedAt *time.Time `gorm:"type:timestamp;default:null" json:"-"`
	LastGeneratedAt  *time.Time `gorm:"type:timestamp;default:null" json:"last_generated_at,omitempty"`
	FailureReason    string     `gorm:"type:text" json:"failure_reason,omitempty"`
	DocumentKey      string     `gorm:"type:varchar(255);not null;default:''" json:"-"`

	// Intake data
	ContactEmail      string    `gorm:"type:varchar(200);not null;default:''" json:"contact_email" validate:"omitempty,email,max=200"`
	PayerName         string    `gorm:"type:varchar(200);not null" json:"payer_name" validate:"required,max=200"`
	PlanType          string    `gorm:"type:varchar(50);not null" json:"plan_type" validate:"required,oneof=commercial medicare medicaid"`
	ClaimNumber       string    `gorm:"type:varchar(100);not null;index" json:"claim_number" validate:"required,max=100"`
	PatientID         string    `gorm:"type:varchar(100);not null" json:"patient_id" validate:"required,max=100"`
	ProviderNPI       string    `gorm:"type:varchar(20);not null" json:"provider_npi" validate:"required,numeric,len=10"`
	DateOfService     time.Time `gorm:"type:date;not null" json:"date_of_service" validate:"required"`
	DenialDate        time.Time `gorm:"type:date;not null" json:"denial_date" validate:"required"`
	DenialReasonCodes string    `gorm:"type:text;not null" json:"denial_reason_codes" validate:"required"`
	AppealLevel       string    `gorm:"type:varchar(50);not null;default:''" json:"appeal_level"`
	SubmissionChannel string    `gorm:"type:varchar(50);not null" json:"submission_channel" validate:"required,oneof=portal fax mail"`

	// Intake rule results
	AppealDeadline *time.Time `gorm:"type:date;default:null" json:"appeal_deadline,omitempty"`
	RulesApplied   RawJSON    `gorm:"type:text" json:"rules_applied,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (w *WorkUnit) Validate() error {
	return validate.Struct(w)
}

// IsTerminal reports whether the unit can never be generated again.
func (w *WorkUnit) IsTerminal() bool {
	return w.Status == WorkUnitStatusGenerated
}

// RawJSON is JSON text kept in a TEXT column and emitted as-is.
type RawJSON string

func (r RawJSON) MarshalJSON() ([]byte, error) {
	if r == "" {
		return []byte("null"), nil
	}
	return []byte(r), nil
}
