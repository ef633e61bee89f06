package domain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Audited actions. Metadata values are strings so a stored event hashes the
// same after it is read back.
const (
	ActionProjectCreated = "project.created"
	ActionTaskCreated    = "task.created"
	ActionCostAdded      = "billing.cost_added"
	ActionRateSet        = "billing.rate_set"
	ActionRateRuleAdded  = "billing.rate_rule_added"
	ActionRatesSynced    = "billing.rates_synced"
	ActionTimeLogged     = "billing.time_logged"
	ActionTimeEdited     = "billing.time_edited"
	ActionTimeDeleted    = "billing.time_deleted"
	ActionTimerStarted   = "billing.timer_started"
	ActionTimerStopped   = "billing.timer_stopped"
)

// AuditLogger records billing actions. Services depend on this rather than
// on the audit store.
type AuditLogger interface {
	Log(action string, actor string, metadata map[string]interface{}) error
}

// AuditRepository appends to and reads the hash-chained audit trail.
type AuditRepository interface {
	RecordEvent(ctx context.Context, event Event) error
	LoadEvents(ctx context.Context) ([]Event, error)
}

// Event is one entry of the audit trail.
type Event struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	Action    string                 `json:"action"`
	Actor     string                 `json:"actor"` // acting user id, or "system"
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	PrevHash  string                 `json:"prev_hash,omitempty"`
	Hash      string                 `json:"hash,omitempty"`
}

// CalculateHash returns the SHA256 over the previous hash and the event
// content. encoding/json sorts map keys, so metadata order does not matter.
func (e *Event) CalculateHash() string {
	h := sha256.New()
	h.Write([]byte(e.PrevHash))
	h.Write([]byte(e.ID))
	h.Write([]byte(e.Timestamp.UTC().Format(time.RFC3339Nano)))
	h.Write([]byte(e.Action))
	h.Write([]byte(e.Actor))
	if len(e.Metadata) > 0 {
		meta, _ := json.Marshal(e.Metadata)
		h.Write(meta)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Seal links the event after prevHash and stamps its own hash.
func (e *Event) Seal(prevHash string) {
	e.PrevHash = prevHash
	e.Hash = e.CalculateHash()
}

// VerifyChain walks events in append order and describes every broken link
// or altered event. An intact trail yields no violations.
func VerifyChain(events []Event) []string {
	var violations []string
	lastHash := ""
	for i := range events {
		e := &events[i]
		if e.PrevHash != lastHash {
			violations = append(violations, fmt.Sprintf("event %d (%s): prev_hash does not match the preceding event", i, e.ID))
		}
		if e.Hash != e.CalculateHash() {
			violations = append(violations, fmt.Sprintf("event %d (%s): content hash mismatch, event was altered", i, e.ID))
		}
		lastHash = e.Hash
	}
	return violations
}
