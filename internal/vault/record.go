package vault

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Kind tags the origin of an item.
type Kind string

const (
	// KindFileDrop marks items produced by the drop-folder watcher.
	KindFileDrop Kind = "file_drop"

	// KindMessage marks items produced by a message-source watcher.
	KindMessage Kind = "message"

	// KindManual marks items deposited by a human.
	KindManual Kind = "manual"

	// KindApprovalRequest marks records representing a pending sensitive action.
	KindApprovalRequest Kind = "approval_request"
)

// Priority orders items for human attention. It does not affect claim order.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityNormal Priority = "normal"
)

// Decision states for approval requests.
const (
	DecisionPending  = "pending"
	DecisionApproved = "approved"
	DecisionRejected = "rejected"
)

// DecisionReasonExpired is the reason recorded when the expiry sweep
// auto-rejects a request. Manual rejections must supply their own reason.
const DecisionReasonExpired = "expired"

// Record is the unit of work. It is serialized as a markdown file with a
// YAML frontmatter block, so every record carries its own metadata and the
// store needs no external index.
//
// ID is globally unique and immutable for the record's lifetime. The
// record's stage is not a field here: it is the directory the file lives in.
type Record struct {
	ID          string    `yaml:"id"`
	Kind        Kind      `yaml:"kind"`
	Payload     string    `yaml:"payload,omitempty"` // path to the copied artifact, if any
	ContentHash string    `yaml:"content_hash,omitempty"`
	Priority    Priority  `yaml:"priority"`
	CreatedAt   time.Time `yaml:"created_at"`

	Owner     string     `yaml:"owner,omitempty"`
	ClaimedAt *time.Time `yaml:"claimed_at,omitempty"`
	Attempts  int        `yaml:"attempts"`
	LastError string     `yaml:"last_error,omitempty"`

	// Approval request fields, set only when Kind is KindApprovalRequest.
	ActionType     string     `yaml:"action_type,omitempty"`
	Justification  string     `yaml:"justification,omitempty"`
	Expiry         *time.Time `yaml:"expiry,omitempty"`
	Decision       string     `yaml:"decision,omitempty"`
	DecisionReason string     `yaml:"decision_reason,omitempty"`

	// Body is the free-form markdown content below the frontmatter.
	Body string `yaml:"-"`
}

// NewRecord creates a Record with a generated id and the current time.
func NewRecord(kind Kind, priority Priority) *Record {
	return &Record{
		ID:        uuid.NewString(),
		Kind:      kind,
		Priority:  priority,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

// Filename returns the record's on-disk name.
func (r *Record) Filename() string {
	return r.ID + ".md"
}

// IsExpired reports whether the record is an undecided approval request
// whose expiry has elapsed.
func (r *Record) IsExpired(now time.Time) bool {
	if r.Kind != KindApprovalRequest || r.Expiry == nil {
		return false
	}
	if r.Decision != "" && r.Decision != DecisionPending {
		return false
	}
	return now.After(*r.Expiry)
}

const frontmatterDelim = "---"

// Marshal serializes the record as YAML frontmatter followed by the body.
func (r *Record) Marshal() ([]byte, error) {
	if r.ID == "" {
		return nil, fmt.Errorf("marshal record: id is required")
	}

	meta, err := yaml.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal record %s: %w", r.ID, err)
	}

	var buf bytes.Buffer
	buf.WriteString(frontmatterDelim + "\n")
	buf.Write(meta)
	buf.WriteString(frontmatterDelim + "\n")
	if r.Body != "" {
		buf.WriteString("\n")
		buf.WriteString(r.Body)
		if !strings.HasSuffix(r.Body, "\n") {
			buf.WriteString("\n")
		}
	}
	return buf.Bytes(), nil
}

// UnmarshalRecord parses a record file. Content before the closing
// frontmatter delimiter is metadata; everything after is the body.
func UnmarshalRecord(data []byte) (*Record, error) {
	text := string(data)
	if !strings.HasPrefix(text, frontmatterDelim+"\n") {
		return nil, fmt.Errorf("unmarshal record: missing frontmatter")
	}

	rest := text[len(frontmatterDelim)+1:]
	end := strings.Index(rest, "\n"+frontmatterDelim)
	if end < 0 {
		return nil, fmt.Errorf("unmarshal record: unterminated frontmatter")
	}

	var rec Record
	if err := yaml.Unmarshal([]byte(rest[:end]), &rec); err != nil {
		return nil, fmt.Errorf("unmarshal record frontmatter: %w", err)
	}
	if rec.ID == "" {
		return nil, fmt.Errorf("unmarshal record: id is required")
	}

	body := rest[end+len("\n"+frontmatterDelim):]
	body = strings.TrimPrefix(body, "\n")
	body = strings.TrimPrefix(body, "\n")
	rec.Body = body

	return &rec, nil
}
