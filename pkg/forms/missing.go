package forms

import (
	"fmt"
	"strings"
)

// discoveryRequired lists the required Discovery fields in declaration order.
// The order is load-bearing: it is rendered verbatim into prompts and the UI.
var discoveryRequired = []string{
	"icpCompany",
	"icpRole",
	"productDescription",
	"keyFeatures",
	"problems",
	"unknowns",
}

// postSalesRequired lists the required Post-Sales fields in declaration order.
// openQuestions, objections, and nextSteps are deliberately absent: a call
// may legitimately surface none of them.
var postSalesRequired = []string{
	"companyName",
	"participants",
	"topics",
	"needs",
	"opportunityStage",
	"opportunitySize",
}

// MissingFields computes which required fields are still unset for the given
// mode. A scalar field is missing when it is empty after trimming; a list
// field is missing only when it has no entries. The result is stable and
// declaration-ordered, and the computation is pure: calling it repeatedly
// with the same inputs yields identical results and mutates nothing.
//
// Only the data matching mode is consulted; the other shape is ignored.
func MissingFields(mode Mode, discovery DiscoveryData, postSales PostSalesData) []string {
	switch mode {
	case ModeDiscovery:
		return missingDiscovery(discovery)
	case ModePostSales:
		return missingPostSales(postSales)
	}
	return nil
}

func missingDiscovery(d DiscoveryData) []string {
	present := map[string]bool{
		"icpCompany":         hasText(d.ICPCompany),
		"icpRole":            hasText(d.ICPRole),
		"productDescription": hasText(d.ProductDescription),
		"keyFeatures":        len(d.KeyFeatures) > 0,
		"problems":           len(d.Problems) > 0,
		"unknowns":           len(d.Unknowns) > 0,
	}
	return collectMissing(discoveryRequired, present)
}

func missingPostSales(p PostSalesData) []string {
	present := map[string]bool{
		"companyName":      hasText(p.CompanyName),
		"participants":     len(p.Participants) > 0,
		"topics":           len(p.Topics) > 0,
		"needs":            len(p.Needs) > 0,
		"opportunityStage": hasText(p.OpportunityStage),
		"opportunitySize":  hasText(p.OpportunitySize),
	}
	return collectMissing(postSalesRequired, present)
}

func collectMissing(order []string, present map[string]bool) []string {
	missing := []string{}
	for _, f := range order {
		if !present[f] {
			missing = append(missing, f)
		}
	}
	return missing
}

// RequiredFieldsDescription returns a one-line textual reminder of the
// fields the extraction model must fill for the given mode. Used verbatim
// in the extraction request.
func RequiredFieldsDescription(mode Mode) string {
	switch mode {
	case ModeDiscovery:
		return fmt.Sprintf("Required discovery fields: %s.", strings.Join(discoveryRequired, ", "))
	case ModePostSales:
		return fmt.Sprintf("Required post-sales fields: %s. Optional: openQuestions, objections, nextSteps.",
			strings.Join(postSalesRequired, ", "))
	}
	return ""
}
