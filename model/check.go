package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
)

// CheckRecord is the central entity flowing through the deposit pipeline.
// The JSON keys match the documents the stage stores exchange.
type CheckRecord struct {
	ID             string `json:"_id"`
	FileName       string `json:"fileName"`
	Email          string `json:"email"`
	ToAccount      string `json:"toAccount"`
	FromAccount    string `json:"fromAccount,omitempty"`
	RoutingNumber  string `json:"routingNumber,omitempty"`
	Amount         string `json:"amount"`
	Timestamp      int64  `json:"timestamp,omitempty"`
	AttachmentName string `json:"attachmentName,omitempty"`
	ContentType    string `json:"contentType,omitempty"`
	Status         string `json:"status"`
}

// Status constants. Transitions are monotonic forward; Rejected and
// Processed are terminal.
const (
	StatusIncoming  = "incoming"
	StatusAudited   = "audited"
	StatusParsed    = "parsed"
	StatusRejected  = "rejected"
	StatusProcessed = "processed"
)

// statusRank orders the lifecycle. Parsed and Rejected share a rank: they
// are mutually exclusive outcomes of the same step.
var statusRank = map[string]int{
	StatusIncoming:  0,
	StatusAudited:   1,
	StatusParsed:    2,
	StatusRejected:  2,
	StatusProcessed: 3,
}

// DeriveID returns the stable record id for a source file name. The same
// file always maps to the same id, which is what makes re-ingestion and
// stage replay idempotent.
func DeriveID(fileName string) string {
	sum := sha256.Sum256([]byte(fileName))
	return hex.EncodeToString(sum[:])[:32]
}

// FromObjectKey builds a new Incoming record from an object storage key of
// the form "email^toAccount^amount.ext". A key that does not carry all
// three fields is a contract violation, not something the pipeline can
// retry its way out of.
func FromObjectKey(key string) (*CheckRecord, error) {
	base := strings.TrimSuffix(key, filepath.Ext(key))
	parts := strings.Split(base, "^")
	if len(parts) < 3 {
		return nil, fmt.Errorf("malformed source file name %q: want email^toAccount^amount", key)
	}

	return &CheckRecord{
		ID:        DeriveID(key),
		FileName:  key,
		Email:     parts[0],
		ToAccount: parts[1],
		Amount:    parts[2],
		Status:    StatusIncoming,
	}, nil
}

// Advance moves the record to the next status. It refuses reverts, repeats,
// and any transition out of a terminal status other than Parsed→Processed.
func (r *CheckRecord) Advance(next string) error {
	nextRank, ok := statusRank[next]
	if !ok {
		return fmt.Errorf("unknown status %q", next)
	}
	curRank, ok := statusRank[r.Status]
	if !ok {
		return fmt.Errorf("record %s has unknown status %q", r.ID, r.Status)
	}
	if nextRank <= curRank {
		return fmt.Errorf("record %s: cannot move %s -> %s", r.ID, r.Status, next)
	}
	if next == StatusProcessed && r.Status != StatusParsed {
		return fmt.Errorf("record %s: only parsed records can be processed, not %s", r.ID, r.Status)
	}
	r.Status = next
	return nil
}

// Terminal reports whether no further pipeline stage acts on the record.
func (r *CheckRecord) Terminal() bool {
	return r.Status == StatusRejected || r.Status == StatusProcessed
}
