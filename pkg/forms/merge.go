package forms

import "strings"

// MergeDiscovery applies a partial delta onto dst in place.
//
// Scalar fields follow last-write-wins: a non-empty trimmed incoming value
// overwrites the existing one, since extraction grows monotonically more
// informed as the conversation progresses. List fields are union-merged:
// existing entries are kept and new non-empty trimmed entries are appended
// only when not already present (case-sensitive exact match), preserving
// first-seen order.
func MergeDiscovery(dst *DiscoveryData, delta DiscoveryData) {
	mergeScalar(&dst.ICPCompany, delta.ICPCompany)
	mergeScalar(&dst.ICPRole, delta.ICPRole)
	mergeScalar(&dst.ProductDescription, delta.ProductDescription)
	dst.KeyFeatures = mergeList(dst.KeyFeatures, delta.KeyFeatures)
	dst.Problems = mergeList(dst.Problems, delta.Problems)
	dst.Unknowns = mergeList(dst.Unknowns, delta.Unknowns)
}

// MergePostSales applies a partial delta onto dst in place, with the same
// scalar and list rules as [MergeDiscovery]. Participants are union-merged
// on the (lowercased name, exact title) key: an incoming participant whose
// key is already present is a no-op, never an update.
func MergePostSales(dst *PostSalesData, delta PostSalesData) {
	mergeScalar(&dst.CompanyName, delta.CompanyName)
	dst.Participants = mergeParticipants(dst.Participants, delta.Participants)
	dst.Topics = mergeList(dst.Topics, delta.Topics)
	dst.Needs = mergeList(dst.Needs, delta.Needs)
	dst.OpenQuestions = mergeList(dst.OpenQuestions, delta.OpenQuestions)
	dst.Objections = mergeList(dst.Objections, delta.Objections)
	dst.NextSteps = mergeList(dst.NextSteps, delta.NextSteps)
	mergeScalar(&dst.OpportunityStage, delta.OpportunityStage)
	mergeScalar(&dst.OpportunitySize, delta.OpportunitySize)
}

// mergeScalar overwrites *dst with the trimmed incoming value when it is
// non-empty. Empty or whitespace-only incoming values are ignored so a
// sparse delta never clears previously captured data.
func mergeScalar(dst *string, incoming string) {
	if v := strings.TrimSpace(incoming); v != "" {
		*dst = v
	}
}

// mergeList unions incoming entries into existing. Entries are trimmed;
// empty results and exact duplicates (case-sensitive, against both the
// existing list and earlier incoming entries) are dropped.
func mergeList(existing, incoming []string) []string {
	if len(incoming) == 0 {
		return existing
	}
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	for _, e := range existing {
		seen[e] = struct{}{}
	}
	out := existing
	for _, raw := range incoming {
		v := strings.TrimSpace(raw)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// mergeParticipants unions incoming participants into existing, keyed on
// (lowercased name, exact title). Participants without a name are dropped.
func mergeParticipants(existing, incoming []Participant) []Participant {
	if len(incoming) == 0 {
		return existing
	}
	seen := make(map[participantKey]struct{}, len(existing)+len(incoming))
	for _, p := range existing {
		seen[keyOf(p)] = struct{}{}
	}
	out := existing
	for _, raw := range incoming {
		p := Participant{
			Name:  strings.TrimSpace(raw.Name),
			Title: strings.TrimSpace(raw.Title),
		}
		if p.Name == "" {
			continue
		}
		k := keyOf(p)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, p)
	}
	return out
}

// participantKey is the dedup key for [Participant] entries: the name is
// compared case-insensitively, the title exactly.
type participantKey struct {
	name  string
	title string
}

func keyOf(p Participant) participantKey {
	return participantKey{name: strings.ToLower(p.Name), title: p.Title}
}
