package forms

import (
	"reflect"
	"testing"
)

func TestMergeDiscovery(t *testing.T) {
	t.Parallel()

	t.Run("scalar last-write-wins", func(t *testing.T) {
		t.Parallel()
		d := NewDiscoveryData()
		MergeDiscovery(&d, DiscoveryData{ICPCompany: "Acme Corp"})
		MergeDiscovery(&d, DiscoveryData{ICPCompany: "Acme Corporation"})
		if d.ICPCompany != "Acme Corporation" {
			t.Fatalf("want Acme Corporation, got %q", d.ICPCompany)
		}
	})

	t.Run("empty scalar never clears", func(t *testing.T) {
		t.Parallel()
		d := NewDiscoveryData()
		MergeDiscovery(&d, DiscoveryData{ICPRole: "VP Sales"})
		MergeDiscovery(&d, DiscoveryData{ICPRole: "   "})
		if d.ICPRole != "VP Sales" {
			t.Fatalf("want VP Sales, got %q", d.ICPRole)
		}
	})

	t.Run("scalar values are trimmed", func(t *testing.T) {
		t.Parallel()
		d := NewDiscoveryData()
		MergeDiscovery(&d, DiscoveryData{ProductDescription: "  interview platform  "})
		if d.ProductDescription != "interview platform" {
			t.Fatalf("want trimmed value, got %q", d.ProductDescription)
		}
	})

	t.Run("list union keeps first-seen order without duplicates", func(t *testing.T) {
		t.Parallel()
		d := NewDiscoveryData()
		MergeDiscovery(&d, DiscoveryData{KeyFeatures: []string{"fast onboarding", "live transcripts"}})
		MergeDiscovery(&d, DiscoveryData{KeyFeatures: []string{"live transcripts", "crm sync", "fast onboarding"}})
		want := []string{"fast onboarding", "live transcripts", "crm sync"}
		if !reflect.DeepEqual(d.KeyFeatures, want) {
			t.Fatalf("want %v, got %v", want, d.KeyFeatures)
		}
	})

	t.Run("list dedup is case-sensitive", func(t *testing.T) {
		t.Parallel()
		d := NewDiscoveryData()
		MergeDiscovery(&d, DiscoveryData{Problems: []string{"slow follow-up"}})
		MergeDiscovery(&d, DiscoveryData{Problems: []string{"Slow follow-up"}})
		if len(d.Problems) != 2 {
			t.Fatalf("case-sensitive dedup should keep both variants, got %v", d.Problems)
		}
	})

	t.Run("empty and whitespace list entries dropped", func(t *testing.T) {
		t.Parallel()
		d := NewDiscoveryData()
		MergeDiscovery(&d, DiscoveryData{Unknowns: []string{"", "  ", "budget owner"}})
		want := []string{"budget owner"}
		if !reflect.DeepEqual(d.Unknowns, want) {
			t.Fatalf("want %v, got %v", want, d.Unknowns)
		}
	})

	t.Run("duplicate entries within one delta collapse", func(t *testing.T) {
		t.Parallel()
		d := NewDiscoveryData()
		MergeDiscovery(&d, DiscoveryData{Problems: []string{"churn", "churn"}})
		if len(d.Problems) != 1 {
			t.Fatalf("want single entry, got %v", d.Problems)
		}
	})
}

func TestMergePostSalesParticipants(t *testing.T) {
	t.Parallel()

	t.Run("dedup on lowercased name plus exact title", func(t *testing.T) {
		t.Parallel()
		p := NewPostSalesData()
		MergePostSales(&p, PostSalesData{Participants: []Participant{{Name: "jane doe", Title: "VP"}}})
		MergePostSales(&p, PostSalesData{Participants: []Participant{{Name: "Jane Doe", Title: "VP"}}})
		if len(p.Participants) != 1 {
			t.Fatalf("want 1 participant, got %v", p.Participants)
		}
		// The first-seen entry is kept verbatim; a matching key is a no-op, not an update.
		if p.Participants[0].Name != "jane doe" {
			t.Fatalf("want first-seen name kept, got %q", p.Participants[0].Name)
		}
	})

	t.Run("same name different title is a new entry", func(t *testing.T) {
		t.Parallel()
		p := NewPostSalesData()
		MergePostSales(&p, PostSalesData{Participants: []Participant{
			{Name: "Jane Doe", Title: "VP"},
			{Name: "Jane Doe", Title: "CTO"},
		}})
		if len(p.Participants) != 2 {
			t.Fatalf("want 2 participants, got %v", p.Participants)
		}
	})

	t.Run("nameless participants dropped", func(t *testing.T) {
		t.Parallel()
		p := NewPostSalesData()
		MergePostSales(&p, PostSalesData{Participants: []Participant{{Name: "  ", Title: "VP"}}})
		if len(p.Participants) != 0 {
			t.Fatalf("want no participants, got %v", p.Participants)
		}
	})
}

func TestCloneIsolation(t *testing.T) {
	t.Parallel()

	d := NewDiscoveryData()
	MergeDiscovery(&d, DiscoveryData{KeyFeatures: []string{"a"}})
	cp := d.Clone()
	MergeDiscovery(&cp, DiscoveryData{KeyFeatures: []string{"b"}})
	if len(d.KeyFeatures) != 1 {
		t.Fatalf("mutating clone leaked into original: %v", d.KeyFeatures)
	}
}
