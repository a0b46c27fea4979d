package pipeline

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/a-h/templ"
)

// Common CARC codes; unknown codes are listed without a description.
var denialDescriptions = map[string]string{
	"CO-4":   "The procedure code is inconsistent with the modifier used.",
	"CO-11":  "The diagnosis is inconsistent with the procedure.",
	"CO-16":  "Claim lacks information or has submission or billing errors.",
	"CO-18":  "Exact duplicate claim or service.",
	"CO-22":  "This care may be covered by another payer per coordination of benefits.",
	"CO-29":  "The time limit for filing has expired.",
	"CO-50":  "These are non-covered services because this is not deemed a medical necessity by the payer.",
	"CO-96":  "Non-covered charge(s).",
	"CO-97":  "The benefit for this service is included in the payment for another service.",
	"CO-197": "Precertification, notification or authorization absent.",
}

// DenialDescription returns the payer-facing description of a code, accepting
// bare numbers such as "50" for "CO-50".
func DenialDescription(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if d, ok := denialDescriptions[code]; ok {
		return d
	}
	if d, ok := denialDescriptions["CO-"+code]; ok {
		return d
	}
	return ""
}

// DenialCode is one entry of the known code list.
type DenialCode struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// DenialCodes lists the known codes in numeric order.
func DenialCodes() []DenialCode {
	out := make([]DenialCode, 0, len(denialDescriptions))
	for code, desc := range denialDescriptions {
		out = append(out, DenialCode{Code: code, Description: desc})
	}
	sort.Slice(out, func(i, j int) bool {
		return codeNumber(out[i].Code) < codeNumber(out[j].Code)
	})
	return out
}

func codeNumber(code string) int {
	n, _ := strconv.Atoi(strings.TrimPrefix(code, "CO-"))
	return n
}

// Letter renders the appeal as a standalone HTML document.
func Letter(d AppealData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_ = ctx
		var b strings.Builder
		b.WriteString("<!DOCTYPE html><html><head><meta charset=\"utf-8\"><title>Appeal Submission</title></head><body>")
		b.WriteString("<h1>APPEAL SUBMISSION</h1>")
		b.WriteString("<table>")
		row(&b, "Payer", d.PayerName)
		row(&b, "Plan type", d.PlanType)
		row(&b, "Claim number", d.ClaimNumber)
		row(&b, "Patient ID", d.PatientID)
		row(&b, "Provider NPI", d.ProviderNPI)
		row(&b, "Date of service", d.DateOfService.Format("2006-01-02"))
		row(&b, "Denial date", d.DenialDate.Format("2006-01-02"))
		row(&b, "Appeal level", d.AppealLevel)
		row(&b, "Submission channel", d.SubmissionChannel)
		b.WriteString("</table>")

		b.WriteString("<h2>Request for reconsideration</h2>")
		fmt.Fprintf(&b, "<p>We request reconsideration of claim %s, denied on %s, under the payer's %s appeal process.</p>",
			templ.EscapeString(d.ClaimNumber), d.DenialDate.Format("January 2, 2006"), templ.EscapeString(strings.ToLower(d.AppealLevel)))

		b.WriteString("<h2>Denial reasons addressed</h2><ul>")
		for _, code := range d.DenialReasonCodes {
			desc := DenialDescription(code)
			if desc == "" {
				fmt.Fprintf(&b, "<li>%s</li>", templ.EscapeString(code))
				continue
			}
			fmt.Fprintf(&b, "<li><strong>%s</strong>: %s</li>", templ.EscapeString(code), templ.EscapeString(desc))
		}
		b.WriteString("</ul>")

		b.WriteString("<p>Supporting documentation is enclosed. Please review the claim against the enclosed records and the payer's published policy.</p>")
		b.WriteString("<p>Sincerely,<br>Billing Department</p>")
		b.WriteString("</body></html>")

		_, err := io.WriteString(w, b.String())
		return err
	})
}

func row(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, "<tr><th>%s</th><td>%s</td></tr>", templ.EscapeString(label), templ.EscapeString(value))
}
