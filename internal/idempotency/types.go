package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Status values for idempotency entries
const (
	StatusInProgress = "IN_PROGRESS"
	StatusDone       = "DONE"
	StatusFailed     = "FAILED"
)

// IdempotencyRecord is the shape persisted in the idempotency DynamoDB table.
// The key is scoped by owner: "<owner_id>#<Idempotency-Key header>".
type IdempotencyRecord struct {
	IdempotencyKey string    `dynamodbav:"idempotency_key"` // PK
	Status         string    `dynamodbav:"status"`
	RequestHash    string    `dynamodbav:"request_hash,omitempty"` // Fingerprint of the claiming request
	OrderID        string    `dynamodbav:"order_id,omitempty"`
	ResponseBody   string    `dynamodbav:"response_body,omitempty"`   // replayed verbatim on duplicates
	ResponseStatus int       `dynamodbav:"response_status,omitempty"` // e.g., 201
	CreatedAt      time.Time `dynamodbav:"created_at"`
	UpdatedAt      time.Time `dynamodbav:"updated_at"`
	ExpiresAt      int64     `dynamodbav:"expires_at"` // TTL epoch seconds
	Note           string    `dynamodbav:"note,omitempty"`
}

// Expired reports whether the TTL has passed; DynamoDB deletes lazily.
func (r IdempotencyRecord) Expired(now time.Time) bool {
	return r.ExpiresAt > 0 && now.Unix() >= r.ExpiresAt
}

// Key scopes a client supplied idempotency key to one owner.
func Key(ownerID, clientKey string) string {
	return ownerID + "#" + clientKey
}

// Fingerprint hashes the parts of a request that must match for a replay.
func Fingerprint(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Matches reports whether fingerprint belongs to the request that claimed the
// record. Records written before fingerprints existed match anything.
func (r IdempotencyRecord) Matches(fingerprint string) bool {
	return r.RequestHash == "" || r.RequestHash == fingerprint
}
