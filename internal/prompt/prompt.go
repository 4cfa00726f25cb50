// Package prompt renders the live system instruction for the speech model.
//
// The builder is a pure function over the session's structured state and
// missing-field list: no randomness, no clocks, no I/O. Identical inputs
// produce byte-identical output, which keeps it trivially testable and keeps
// the speech model's grounding reproducible across instruction pushes.
package prompt

import (
	"fmt"
	"strings"

	"github.com/sondelabs/sonde/pkg/forms"
)

const preamble = `You are a friendly, concise voice assistant conducting a structured business conversation. Speak naturally, one question at a time, and never read field names aloud verbatim.`

const discoveryGoal = `You are running a discovery intake: capture the ideal customer profile (company and role), a product description, key features, the problems the product solves, and the open unknowns.`

const postSalesGoal = `You are capturing post-sales call notes: the customer company, who was on the call, topics discussed, customer needs, open questions, objections, next steps, and the opportunity stage and size.`

// placeholders used in the field dump.
const (
	missingMark = "(missing)"
	noneMark    = "(none)"
)

// Build renders the system instruction for the given session snapshot.
// missing must be the output of the missing-field calculator for the same
// snapshot; it is rendered verbatim in the trailing instruction block.
func Build(mode forms.Mode, discovery forms.DiscoveryData, postSales forms.PostSalesData, missing []string) string {
	var b strings.Builder
	b.WriteString(preamble)
	b.WriteString("\n\n")

	switch mode {
	case forms.ModeDiscovery:
		b.WriteString(discoveryGoal)
		b.WriteString("\n\nCaptured so far:\n")
		writeScalar(&b, "ICP company", discovery.ICPCompany)
		writeScalar(&b, "ICP role", discovery.ICPRole)
		writeScalar(&b, "Product description", discovery.ProductDescription)
		writeList(&b, "Key features", discovery.KeyFeatures, missingMark)
		writeList(&b, "Problems", discovery.Problems, missingMark)
		writeList(&b, "Unknowns", discovery.Unknowns, missingMark)

	case forms.ModePostSales:
		b.WriteString(postSalesGoal)
		b.WriteString("\n\nCaptured so far:\n")
		writeScalar(&b, "Company", postSales.CompanyName)
		writeParticipants(&b, postSales.Participants)
		writeList(&b, "Topics", postSales.Topics, missingMark)
		writeList(&b, "Needs", postSales.Needs, missingMark)
		writeList(&b, "Open questions", postSales.OpenQuestions, noneMark)
		writeList(&b, "Objections", postSales.Objections, noneMark)
		writeList(&b, "Next steps", postSales.NextSteps, noneMark)
		writeScalar(&b, "Opportunity stage", postSales.OpportunityStage)
		writeScalar(&b, "Opportunity size", postSales.OpportunitySize)
	}

	b.WriteString("\n")
	if len(missing) == 0 {
		b.WriteString("All required data has been captured. Thank the user for their time and wrap up the conversation.")
	} else {
		fmt.Fprintf(&b, "Ask concise follow-up questions to fill the %d missing fields: %s.",
			len(missing), strings.Join(missing, ", "))
	}

	return b.String()
}

func writeScalar(b *strings.Builder, label, value string) {
	if strings.TrimSpace(value) == "" {
		value = missingMark
	}
	fmt.Fprintf(b, "- %s: %s\n", label, value)
}

func writeList(b *strings.Builder, label string, values []string, empty string) {
	if len(values) == 0 {
		fmt.Fprintf(b, "- %s: %s\n", label, empty)
		return
	}
	fmt.Fprintf(b, "- %s: %s\n", label, strings.Join(values, "; "))
}

func writeParticipants(b *strings.Builder, participants []forms.Participant) {
	if len(participants) == 0 {
		fmt.Fprintf(b, "- Participants: %s\n", missingMark)
		return
	}
	rendered := make([]string, len(participants))
	for i, p := range participants {
		if p.Title == "" {
			rendered[i] = p.Name
		} else {
			rendered[i] = fmt.Sprintf("%s (%s)", p.Name, p.Title)
		}
	}
	fmt.Fprintf(b, "- Participants: %s\n", strings.Join(rendered, "; "))
}
