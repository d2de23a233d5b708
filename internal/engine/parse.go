package engine

import (
	"fmt"
	"strings"

	"github.com/tbonner/vaultd/internal/errors"
	"github.com/tbonner/vaultd/internal/vault"
)

const resultMarker = "RESULT:"

// ParseOutcome extracts the verdict from engine output. The last RESULT:
// line wins, so the engine may think out loud before committing. Output
// with no parseable verdict is a ClassificationError.
func ParseOutcome(itemID, output string) (*Outcome, error) {
	verdict := ""
	lines := strings.Split(output, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if strings.HasPrefix(line, resultMarker) {
			verdict = strings.TrimSpace(strings.TrimPrefix(line, resultMarker))
			break
		}
	}
	if verdict == "" {
		return nil, errors.NewClassificationError(itemID, "no RESULT line in engine output")
	}

	kind, rest, _ := strings.Cut(verdict, " ")
	switch strings.ToLower(kind) {
	case "done", "success":
		return &Outcome{Class: ClassSuccess, Summary: summaryFrom(output, rest)}, nil

	case "needs-approval":
		action, justification := parseApprovalFields(rest)
		if action == "" {
			return nil, errors.NewClassificationError(itemID, "needs-approval verdict without action field")
		}
		return &Outcome{
			Class:         ClassNeedsApproval,
			ActionType:    action,
			Justification: justification,
		}, nil

	case "error":
		return &Outcome{Class: ClassPermanent, Detail: rest}, nil

	default:
		return nil, errors.NewClassificationError(itemID, fmt.Sprintf("unknown verdict %q", kind))
	}
}

// parseApprovalFields reads key=value fields from a needs-approval verdict.
// The justification field consumes the remainder of the line so it may
// contain spaces.
func parseApprovalFields(rest string) (action, justification string) {
	for rest != "" {
		rest = strings.TrimSpace(rest)
		key, after, ok := strings.Cut(rest, "=")
		if !ok {
			break
		}
		switch strings.TrimSpace(key) {
		case "action":
			action, rest, _ = strings.Cut(after, " ")
		case "justification":
			justification = strings.TrimSpace(after)
			rest = ""
		default:
			_, rest, _ = strings.Cut(after, " ")
		}
	}
	return action, justification
}

// summaryFrom prefers the verdict's inline text, falling back to the body
// of the output above the RESULT line.
func summaryFrom(output, inline string) string {
	if inline != "" {
		return inline
	}
	if i := strings.LastIndex(output, resultMarker); i >= 0 {
		output = output[:i]
	}
	return strings.TrimSpace(output)
}

// BuildPrompt renders a vault record as an engine prompt. The record's body
// carries the item description written at intake.
func BuildPrompt(rec *vault.Record) string {
	if rec == nil {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Process this %s task from the vault.\n\n", rec.Kind)
	fmt.Fprintf(&b, "Item ID: %s\n", rec.ID)
	fmt.Fprintf(&b, "Priority: %s\n", rec.Priority)
	if rec.Payload != "" {
		fmt.Fprintf(&b, "Artifact: %s\n", rec.Payload)
	}
	if rec.Body != "" {
		fmt.Fprintf(&b, "\n%s\n", strings.TrimSpace(rec.Body))
	}
	b.WriteString("\nWhen finished, print exactly one line starting with RESULT:\n")
	b.WriteString("  RESULT: done <short summary>\n")
	b.WriteString("  RESULT: needs-approval action=<type> justification=<why>\n")
	b.WriteString("  RESULT: error <detail>\n")
	return b.String()
}
