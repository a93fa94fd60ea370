package scheduler

import (
	"strings"

	"github.com/welldanyogia/webrana-dripmail-backend/internal/models"
	"github.com/welldanyogia/webrana-dripmail-backend/internal/validator"
)

// RenderedStep is a step template with lead context substituted.
type RenderedStep struct {
	Subject  string
	BodyText string
	BodyHTML string
}

// renderStep substitutes {{lead_name}}, {{lead_email}} and
// {{sender_name}} in the step templates. Unknown placeholders pass
// through untouched so a typo is visible in the delivered mail instead
// of silently vanishing.
func renderStep(step *models.CampaignStep, lead *models.CampaignLead, account *models.MailAccount) RenderedStep {
	name := lead.LeadName
	if name == "" {
		name = lead.LeadEmail
	}

	replacer := strings.NewReplacer(
		"{{lead_name}}", name,
		"{{lead_email}}", lead.LeadEmail,
		"{{sender_name}}", account.Name,
	)

	// The subject ends up in a message header, so lead-supplied
	// values must not smuggle in line breaks.
	return RenderedStep{
		Subject:  validator.SanitizeHeaderValue(replacer.Replace(step.SubjectTemplate)),
		BodyText: replacer.Replace(step.BodyTextTemplate),
		BodyHTML: replacer.Replace(step.BodyHTMLTemplate),
	}
}
