// Package forms defines the structured-data shapes a Sonde voice session
// collects, the merge rules for applying partial extraction deltas, and the
// missing-field calculator that drives follow-up questioning.
//
// Two shapes exist: [DiscoveryData] for pre-sales intake conversations and
// [PostSalesData] for post-call CRM notes. Both obey the same hygiene
// invariants — scalar fields are either empty or non-empty trimmed strings,
// and list fields never contain duplicate or empty entries.
package forms

import "strings"

// Mode selects which structured-data shape a voice session collects.
type Mode string

const (
	// ModeDiscovery captures pre-sales intake: ideal customer profile,
	// product description, key features, problems, and unknowns.
	ModeDiscovery Mode = "discovery"

	// ModePostSales captures post-call CRM notes: company, participants,
	// topics, needs, objections, next steps, and deal stage/size.
	ModePostSales Mode = "post_sales"
)

// IsValid reports whether m is a recognised session mode.
func (m Mode) IsValid() bool {
	return m == ModeDiscovery || m == ModePostSales
}

// DiscoveryData holds intake answers about a prospective customer's profile
// and product context. The zero value is not fully initialised; use
// [NewDiscoveryData] so list fields start as empty (non-nil) slices.
type DiscoveryData struct {
	// ICPCompany describes the ideal customer's company profile.
	ICPCompany string `json:"icpCompany"`

	// ICPRole is the role or title of the ideal buyer.
	ICPRole string `json:"icpRole"`

	// ProductDescription is a short description of the product being sold.
	ProductDescription string `json:"productDescription"`

	// KeyFeatures lists the product capabilities surfaced so far.
	KeyFeatures []string `json:"keyFeatures"`

	// Problems lists the customer problems the product addresses.
	Problems []string `json:"problems"`

	// Unknowns lists open questions the seller still needs answered.
	Unknowns []string `json:"unknowns"`
}

// NewDiscoveryData returns an empty, fully-initialised [DiscoveryData].
func NewDiscoveryData() DiscoveryData {
	return DiscoveryData{
		KeyFeatures: []string{},
		Problems:    []string{},
		Unknowns:    []string{},
	}
}

// Clone returns a deep copy of d. Mutating the copy never affects the original.
func (d DiscoveryData) Clone() DiscoveryData {
	out := d
	out.KeyFeatures = cloneList(d.KeyFeatures)
	out.Problems = cloneList(d.Problems)
	out.Unknowns = cloneList(d.Unknowns)
	return out
}

// Participant identifies one person on a post-sales call.
type Participant struct {
	// Name is the participant's name as spoken on the call.
	Name string `json:"name"`

	// Title is the participant's role or title. May be empty if not mentioned.
	Title string `json:"title"`
}

// PostSalesData holds structured notes from a post-sale customer call.
// Use [NewPostSalesData] so list fields start as empty (non-nil) slices.
type PostSalesData struct {
	// CompanyName is the customer company discussed on the call.
	CompanyName string `json:"companyName"`

	// Participants lists everyone on the call. Deduplicated on the
	// (lowercased name, exact title) pair, not on name alone.
	Participants []Participant `json:"participants"`

	// Topics lists subjects discussed.
	Topics []string `json:"topics"`

	// Needs lists the customer needs that surfaced.
	Needs []string `json:"needs"`

	// OpenQuestions lists unresolved questions. Legitimately empty if the
	// conversation surfaced none.
	OpenQuestions []string `json:"openQuestions"`

	// Objections lists pushback raised by the customer. May stay empty.
	Objections []string `json:"objections"`

	// NextSteps lists agreed follow-up actions. May stay empty.
	NextSteps []string `json:"nextSteps"`

	// OpportunityStage is the current deal stage (e.g., "evaluation").
	OpportunityStage string `json:"opportunityStage"`

	// OpportunitySize is the estimated deal size.
	OpportunitySize string `json:"opportunitySize"`
}

// NewPostSalesData returns an empty, fully-initialised [PostSalesData].
func NewPostSalesData() PostSalesData {
	return PostSalesData{
		Participants:  []Participant{},
		Topics:        []string{},
		Needs:         []string{},
		OpenQuestions: []string{},
		Objections:    []string{},
		NextSteps:     []string{},
	}
}

// Clone returns a deep copy of p.
func (p PostSalesData) Clone() PostSalesData {
	out := p
	out.Participants = append([]Participant{}, p.Participants...)
	out.Topics = cloneList(p.Topics)
	out.Needs = cloneList(p.Needs)
	out.OpenQuestions = cloneList(p.OpenQuestions)
	out.Objections = cloneList(p.Objections)
	out.NextSteps = cloneList(p.NextSteps)
	return out
}

func cloneList(in []string) []string {
	return append([]string{}, in...)
}

// hasText reports whether s is non-empty after trimming whitespace.
func hasText(s string) bool {
	return strings.TrimSpace(s) != ""
}
