package models

import (
	"encoding/json"
	"time"
)

const (
	ChannelPortal = "portal"
	ChannelFax    = "fax"
	ChannelMail   = "mail"
)

// PayerRule holds the filing rules of one payer and plan type.
type PayerRule struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`
	PayerName            string    `gorm:"type:varchar(200);not null;uniqueIndex:ux_payer_rules_payer_plan,priority:1" json:"payer_name" validate:"required,max=200"`
	PlanType             string    `gorm:"type:varchar(50);not null;uniqueIndex:ux_payer_rules_payer_plan,priority:2" json:"plan_type" validate:"required,oneof=commercial medicare medicaid"`
	AppealDeadlineDays   int       `gorm:"not null" json:"appeal_deadline_days" validate:"min=1,max=3650"`
	MaxAppealLevels      int       `gorm:"not null" json:"max_appeal_levels" validate:"min=1,max=10"`
	SupportsPortal       bool      `gorm:"not null" json:"supports_portal"`
	SupportsFax          bool      `gorm:"not null" json:"supports_fax"`
	SupportsMail         bool      `gorm:"not null" json:"supports_mail"`
	RequiredDocuments    string    `gorm:"type:text" json:"-"`
	RequiresResubmission bool      `gorm:"not null" json:"requires_resubmission"`
	SpecialInstructions  string    `gorm:"type:text" json:"special_instructions,omitempty"`
	CreatedAt            time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (r *PayerRule) Validate() error {
	return validate.Struct(r)
}

// Documents returns the required document list, or nil when none is stored.
func (r *PayerRule) Documents() []string {
	if r.RequiredDocuments == "" {
		return nil
	}
	var docs []string
	if err := json.Unmarshal([]byte(r.RequiredDocuments), &docs); err != nil {
		return nil
	}
	return docs
}

func (r *PayerRule) SetDocuments(docs []string) {
	if len(docs) == 0 {
		r.RequiredDocuments = ""
		return
	}
	raw, _ := json.Marshal(docs)
	r.RequiredDocuments = string(raw)
}

// Channels lists the submission channels the payer accepts.
func (r *PayerRule) Channels() []string {
	var out []string
	if r.SupportsPortal {
		out = append(out, ChannelPortal)
	}
	if r.SupportsFax {
		out = append(out, ChannelFax)
	}
	if r.SupportsMail {
		out = append(out, ChannelMail)
	}
	return out
}

// MarshalJSON adds the decoded document list.
func (r PayerRule) MarshalJSON() ([]byte, error) {
	type plain PayerRule
	return json.Marshal(struct {
		plain
		RequiredDocuments []string `json:"required_documents"`
	}{plain(r), r.Documents()})
}
