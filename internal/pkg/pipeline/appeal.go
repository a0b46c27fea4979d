// Package pipeline renders appeal letters and stores them in the blob store.
package pipeline

import (
	"strings"
	"time"

	"github.com/DenialAppealPro/appealpro/app/models"
)

// AppealData is the one normalized intake shape the renderer understands.
type AppealData struct {
	UUID              string
	PayerName         string
	PlanType          string
	ClaimNumber       string
	PatientID         string
	ProviderNPI       string
	DateOfService     time.Time
	DenialDate        time.Time
	DenialReasonCodes []string
	AppealLevel       string
	SubmissionChannel string
}

// FromWorkUnit maps a stored work unit onto AppealData.
func FromWorkUnit(wu *models.WorkUnit) AppealData {
	return AppealData{
		UUID:              wu.UUID,
		PayerName:         strings.TrimSpace(wu.PayerName),
		PlanType:          wu.PlanType,
		ClaimNumber:       strings.TrimSpace(wu.ClaimNumber),
		PatientID:         strings.TrimSpace(wu.PatientID),
		ProviderNPI:       strings.TrimSpace(wu.ProviderNPI),
		DateOfService:     wu.DateOfService,
		DenialDate:        wu.DenialDate,
		DenialReasonCodes: SplitCodes(wu.DenialReasonCodes),
		AppealLevel:       appealLevel(wu.AppealLevel),
		SubmissionChannel: wu.SubmissionChannel,
	}
}

// SplitCodes splits a comma or whitespace separated code list and upper-cases it.
func SplitCodes(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\n' || r == '\t'
	})
	out := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		c := strings.ToUpper(strings.TrimSpace(f))
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

func appealLevel(level string) string {
	if strings.TrimSpace(level) == "" {
		return "Level 1"
	}
	return level
}

// forbiddenPhrases keeps letters procedural; no medical or legal claims.
var forbiddenPhrases = []string{
	"medical necessity",
	"medically necessary",
	"patient rights",
	"legal obligation",
	"entitled to",
	"must cover",
	"should cover",
	"required to pay",
	"guarantee",
	"expect approval",
	"wrongful",
}

// CheckLanguage returns the first forbidden phrase found in text, or "".
func CheckLanguage(text string) string {
	lower := strings.ToLower(text)
	for _, p := range forbiddenPhrases {
		if strings.Contains(lower, p) {
			return p
		}
	}
	return ""
}
