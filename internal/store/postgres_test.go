package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/sondelabs/sonde/internal/session"
	"github.com/sondelabs/sonde/pkg/forms"
)

// testDSN returns the test database DSN from the environment, or skips the
// test if SONDE_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("SONDE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SONDE_TEST_POSTGRES_DSN not set — skipping PostgreSQL integration tests")
	}
	return dsn
}

// newTestStore creates a [PostgresStore] against the test database with a
// clean interviews table.
func newTestStore(t *testing.T) *PostgresStore {
	t.Helper()
	ctx := context.Background()

	s, err := NewPostgresStore(ctx, testDSN(t))
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}
	t.Cleanup(s.Close)

	if _, err := s.pool.Exec(ctx, "TRUNCATE interviews"); err != nil {
		t.Fatalf("truncate interviews: %v", err)
	}
	return s
}

func sampleInterview() Interview {
	data := forms.NewDiscoveryData()
	data.ICPCompany = "Acme Robotics"
	return Interview{
		SessionID: "sess-1",
		Mode:      forms.ModeDiscovery,
		AccountID: "acct-1",
		ProjectID: "proj-1",
		UserID:    "user-1",
		Data:      data,
		Transcript: []session.Turn{
			{Role: session.RoleUser, Text: "We target robotics companies."},
			{Role: session.RoleAssistant, Text: "Got it. What size are they?"},
		},
		StartedAt: time.Now().UTC().Truncate(time.Microsecond),
		EndedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestPostgresStore_SaveAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Save(ctx, sampleInterview())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if id == "" {
		t.Fatal("Save returned an empty id")
	}

	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.SessionID != "sess-1" || got.Mode != forms.ModeDiscovery {
		t.Errorf("interview = %+v", got)
	}
	data, ok := got.Data.(forms.DiscoveryData)
	if !ok {
		t.Fatalf("data is %T, want forms.DiscoveryData", got.Data)
	}
	if data.ICPCompany != "Acme Robotics" {
		t.Errorf("ICPCompany = %q", data.ICPCompany)
	}
	if len(got.Transcript) != 2 || got.Transcript[0].Role != session.RoleUser {
		t.Errorf("transcript = %+v", got.Transcript)
	}
}

func TestPostgresStore_SaveTwiceUpdates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	iv := sampleInterview()
	id, err := s.Save(ctx, iv)
	if err != nil {
		t.Fatalf("first Save: %v", err)
	}

	iv.ID = id
	iv.Completed = true
	iv.Transcript = append(iv.Transcript, session.Turn{Role: session.RoleUser, Text: "That's everything."})
	if _, err := s.Save(ctx, iv); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.Completed {
		t.Error("Completed was not updated")
	}
	if len(got.Transcript) != 3 {
		t.Errorf("transcript turns = %d, want 3", len(got.Transcript))
	}
}

func TestPostgresStore_GetNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "11111111-2222-3333-4444-555555555555")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDecodeFormData(t *testing.T) {
	t.Parallel()

	t.Run("discovery", func(t *testing.T) {
		t.Parallel()
		got, err := decodeFormData(forms.ModeDiscovery, []byte(`{"icpCompany":"Acme"}`))
		if err != nil {
			t.Fatalf("decodeFormData: %v", err)
		}
		data, ok := got.(forms.DiscoveryData)
		if !ok {
			t.Fatalf("got %T, want forms.DiscoveryData", got)
		}
		if data.ICPCompany != "Acme" {
			t.Errorf("ICPCompany = %q", data.ICPCompany)
		}
	})

	t.Run("post sales", func(t *testing.T) {
		t.Parallel()
		got, err := decodeFormData(forms.ModePostSales, []byte(`{}`))
		if err != nil {
			t.Fatalf("decodeFormData: %v", err)
		}
		if _, ok := got.(forms.PostSalesData); !ok {
			t.Fatalf("got %T, want forms.PostSalesData", got)
		}
	})

	t.Run("unknown mode", func(t *testing.T) {
		t.Parallel()
		if _, err := decodeFormData(forms.Mode("retrospective"), []byte(`{}`)); err == nil {
			t.Fatal("expected error for unknown mode")
		}
	})
}
