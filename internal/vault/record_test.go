package vault

import (
	"strings"
	"testing"
	"time"
)

func TestRecordRoundTrip(t *testing.T) {
	created := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	rec := &Record{
		ID:          "item-42",
		Kind:        KindFileDrop,
		Payload:     "Files/invoice.pdf",
		ContentHash: "deadbeef",
		Priority:    PriorityNormal,
		CreatedAt:   created,
		Attempts:    2,
		LastError:   "engine timed out",
		Body:        "# File Drop for Processing\n\nA new file was dropped.\n",
	}

	data, err := rec.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	got, err := UnmarshalRecord(data)
	if err != nil {
		t.Fatalf("UnmarshalRecord: %v", err)
	}

	if got.ID != rec.ID {
		t.Errorf("ID = %q, want %q", got.ID, rec.ID)
	}
	if got.ContentHash != rec.ContentHash {
		t.Errorf("ContentHash = %q, want %q", got.ContentHash, rec.ContentHash)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created)
	}
	if got.Kind != KindFileDrop || got.Priority != PriorityNormal {
		t.Errorf("kind/priority = %q/%q, want file_drop/normal", got.Kind, got.Priority)
	}
	if got.Attempts != 2 || got.LastError != "engine timed out" {
		t.Errorf("attempts/last_error = %d/%q", got.Attempts, got.LastError)
	}
	if got.Body != rec.Body {
		t.Errorf("Body = %q, want %q", got.Body, rec.Body)
	}
}

func TestRecordApprovalFields(t *testing.T) {
	expiry := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Second)
	rec := NewRecord(KindApprovalRequest, PriorityHigh)
	rec.ActionType = "send_email"
	rec.Justification = "client asked for the report"
	rec.Expiry = &expiry
	rec.Decision = DecisionPending

	data, err := rec.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := UnmarshalRecord(data)
	if err != nil {
		t.Fatalf("UnmarshalRecord: %v", err)
	}

	if got.ActionType != "send_email" {
		t.Errorf("ActionType = %q", got.ActionType)
	}
	if got.Expiry == nil || !got.Expiry.Equal(expiry) {
		t.Errorf("Expiry = %v, want %v", got.Expiry, expiry)
	}
	if got.Decision != DecisionPending {
		t.Errorf("Decision = %q, want pending", got.Decision)
	}
}

func TestIsExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		rec  Record
		want bool
	}{
		{"pending past expiry", Record{Kind: KindApprovalRequest, Expiry: &past, Decision: DecisionPending}, true},
		{"no decision field", Record{Kind: KindApprovalRequest, Expiry: &past}, true},
		{"not yet expired", Record{Kind: KindApprovalRequest, Expiry: &future, Decision: DecisionPending}, false},
		{"already decided", Record{Kind: KindApprovalRequest, Expiry: &past, Decision: DecisionApproved}, false},
		{"no expiry", Record{Kind: KindApprovalRequest, Decision: DecisionPending}, false},
		{"not an approval request", Record{Kind: KindFileDrop, Expiry: &past}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rec.IsExpired(now); got != tt.want {
				t.Errorf("IsExpired = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUnmarshalRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"no frontmatter":           "# just markdown\n",
		"unterminated frontmatter": "---\nid: x\n",
		"missing id":               "---\nkind: manual\n---\n",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := UnmarshalRecord([]byte(input)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestNewRecordGeneratesUniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		rec := NewRecord(KindManual, PriorityNormal)
		if rec.ID == "" {
			t.Fatal("empty id")
		}
		if seen[rec.ID] {
			t.Fatalf("duplicate id %s", rec.ID)
		}
		seen[rec.ID] = true
		if !strings.HasSuffix(rec.Filename(), ".md") {
			t.Errorf("Filename = %q, want .md suffix", rec.Filename())
		}
	}
}
