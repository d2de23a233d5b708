package engine

import (
	"strings"
	"testing"

	"github.com/tbonner/vaultd/internal/errors"
	"github.com/tbonner/vaultd/internal/vault"
)

func TestParseOutcome(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   Outcome
	}{
		{
			name:   "done with inline summary",
			output: "working...\nRESULT: done replied to the sender\n",
			want:   Outcome{Class: ClassSuccess, Summary: "replied to the sender"},
		},
		{
			name:   "success alias",
			output: "RESULT: success",
			want:   Outcome{Class: ClassSuccess},
		},
		{
			name:   "done without inline summary uses body",
			output: "drafted the reply\nRESULT: done",
			want:   Outcome{Class: ClassSuccess, Summary: "drafted the reply"},
		},
		{
			name:   "needs approval",
			output: "RESULT: needs-approval action=send_email justification=external recipient",
			want: Outcome{
				Class:         ClassNeedsApproval,
				ActionType:    "send_email",
				Justification: "external recipient",
			},
		},
		{
			name:   "needs approval without justification",
			output: "RESULT: needs-approval action=delete_files",
			want:   Outcome{Class: ClassNeedsApproval, ActionType: "delete_files"},
		},
		{
			name:   "error verdict",
			output: "RESULT: error the attachment is corrupt",
			want:   Outcome{Class: ClassPermanent, Detail: "the attachment is corrupt"},
		},
		{
			name:   "last result line wins",
			output: "RESULT: error first try\nretrying inline\nRESULT: done recovered",
			want:   Outcome{Class: ClassSuccess, Summary: "recovered"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOutcome("item-1", tt.output)
			if err != nil {
				t.Fatalf("ParseOutcome: %v", err)
			}
			if *got != tt.want {
				t.Errorf("outcome = %+v, want %+v", *got, tt.want)
			}
		})
	}
}

func TestParseOutcomeClassificationFailures(t *testing.T) {
	tests := []struct {
		name   string
		output string
	}{
		{"no result line", "I did some things but forgot the contract"},
		{"empty output", ""},
		{"unknown verdict", "RESULT: maybe"},
		{"needs approval without action", "RESULT: needs-approval justification=because"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOutcome("item-1", tt.output)
			if !errors.IsClassification(err) {
				t.Fatalf("err = %v, want ClassificationError", err)
			}
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	rec := vault.NewRecord(vault.KindMessage, vault.PriorityHigh)
	rec.Body = "Reply to the billing question from yesterday."
	rec.Payload = "Files/invoice.pdf"

	prompt := BuildPrompt(rec)
	for _, want := range []string{rec.ID, "message", "high", "Files/invoice.pdf", "billing question", "RESULT:"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}
