package events

import (
	"encoding/json"
	"testing"
	"time"
)

// The wire field names are a compatibility contract with the client UI.
func TestWireShapes(t *testing.T) {
	t.Parallel()

	t.Run("turn", func(t *testing.T) {
		t.Parallel()
		ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		data, err := json.Marshal(NewTurnEvent("user", "hello", ts))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, key := range []string{"type", "role", "text", "timestamp"} {
			if _, ok := m[key]; !ok {
				t.Errorf("missing wire field %q in %s", key, data)
			}
		}
		if m["type"] != "turn" {
			t.Errorf("want type turn, got %v", m["type"])
		}
	})

	t.Run("summary always carries an array", func(t *testing.T) {
		t.Parallel()
		data, err := json.Marshal(NewSummaryEvent(false, nil))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := `{"type":"summary","completed":false,"missingFields":[]}`
		if string(data) != want {
			t.Errorf("want %s, got %s", want, data)
		}
	})

	t.Run("form_update", func(t *testing.T) {
		t.Parallel()
		data, err := json.Marshal(NewFormUpdateEvent("discovery", map[string]any{"icpCompany": "Acme Corp"}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if m["mode"] != "discovery" {
			t.Errorf("want mode discovery, got %v", m["mode"])
		}
		if _, ok := m["data"]; !ok {
			t.Error("missing data field")
		}
	})

	t.Run("session", func(t *testing.T) {
		t.Parallel()
		data, err := json.Marshal(NewSessionEvent("iv-42"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := `{"type":"session","interviewId":"iv-42"}`
		if string(data) != want {
			t.Errorf("want %s, got %s", want, data)
		}
	})
}
