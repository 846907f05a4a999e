package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func TestClaim_Get_MarkDone_MarkFailed(t *testing.T) {
	mock := newSimpleMock()
	s := NewStore(mock, "idempotency-table", 48*time.Hour)

	ctx := context.Background()
	key := Key("user-1", "test-key-1")
	fp := Fingerprint("user-1", `{"side":"BUY"}`)

	claimed, err := s.Claim(ctx, key, fp)
	if err != nil {
		t.Fatalf("Claim error: %v", err)
	}
	if !claimed {
		t.Fatalf("expected claimed=true")
	}

	// second claim should return claimed=false (in progress)
	claimed2, err := s.Claim(ctx, key, fp)
	if err != nil {
		t.Fatalf("second Claim error: %v", err)
	}
	if claimed2 {
		t.Fatalf("expected claimed=false on duplicate claim")
	}

	rec, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if rec == nil {
		t.Fatalf("expected record, got nil")
	}
	if rec.Status != StatusInProgress {
		t.Fatalf("expected IN_PROGRESS, got %s", rec.Status)
	}

	err = s.MarkDone(ctx, key, "order-123", "{\"ok\":true}", 201)
	if err != nil {
		t.Fatalf("MarkDone error: %v", err)
	}

	rec, err = s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get after MarkDone error: %v", err)
	}
	if rec.Status != StatusDone || rec.OrderID != "order-123" || rec.ResponseStatus != 201 {
		t.Fatalf("unexpected record after MarkDone: %+v", rec)
	}
	if rec.ResponseBody != "{\"ok\":true}" {
		t.Fatalf("response_body not set correctly: %q", rec.ResponseBody)
	}

	// a DONE record is never re-claimed inside its TTL
	if claimed, _ := s.Claim(ctx, key, fp); claimed {
		t.Fatalf("expected DONE record to block claim")
	}

	if rec.RequestHash != fp || !rec.Matches(fp) {
		t.Fatalf("request hash not kept: %+v", rec)
	}

	// a finished record cannot be released
	if err := s.MarkFailed(ctx, key, "late"); !errors.Is(err, ErrNotInProgress) {
		t.Fatalf("expected ErrNotInProgress, got %v", err)
	}

	other := Key("user-1", "test-key-2")
	if claimed, err := s.Claim(ctx, other, fp); err != nil || !claimed {
		t.Fatalf("claim second key: %v, %v", claimed, err)
	}
	err = s.MarkFailed(ctx, other, "failed-reason")
	if err != nil {
		t.Fatalf("MarkFailed error: %v", err)
	}
	item := mock.table[other]
	if st, ok := item["status"].(*types.AttributeValueMemberS); !ok || st.Value != StatusFailed {
		t.Fatalf("status not updated to FAILED, got %+v", item["status"])
	}
	if n, ok := item["note"].(*types.AttributeValueMemberS); !ok || n.Value != "failed-reason" {
		t.Fatalf("note not set, got %+v", item["note"])
	}

	// failed attempts can be retried
	claimed, err = s.Claim(ctx, other, fp)
	if err != nil || !claimed {
		t.Fatalf("expected FAILED record to be re-claimable, got %v, %v", claimed, err)
	}
}

func TestMarkDone_UnknownKey(t *testing.T) {
	s := NewStore(newSimpleMock(), "idempotency-table", time.Hour)
	if err := s.MarkDone(context.Background(), "missing", "o1", "{}", 201); err == nil {
		t.Fatalf("expected error for unclaimed key")
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("user-1", `{"qty":1}`)
	if a != Fingerprint("user-1", `{"qty":1}`) {
		t.Fatalf("fingerprint not stable")
	}
	if a == Fingerprint("user-1", `{"qty":2}`) || a == Fingerprint("user-1{", `"qty":1}`) {
		t.Fatalf("distinct requests share a fingerprint")
	}
	legacy := IdempotencyRecord{}
	if !legacy.Matches(a) {
		t.Fatalf("record without hash should match any request")
	}
	if (IdempotencyRecord{RequestHash: a}).Matches(Fingerprint("x")) {
		t.Fatalf("mismatched fingerprint accepted")
	}
}

func TestClaim_ExpiredRecordIsReclaimable(t *testing.T) {
	mock := newSimpleMock()
	s := NewStore(mock, "idempotency-table", time.Hour)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.nowFunc = func() time.Time { return start }

	if claimed, err := s.Claim(context.Background(), "k", ""); err != nil || !claimed {
		t.Fatalf("first claim: %v, %v", claimed, err)
	}
	s.nowFunc = func() time.Time { return start.Add(30 * time.Minute) }
	if claimed, _ := s.Claim(context.Background(), "k", ""); claimed {
		t.Fatalf("expected live record to block claim")
	}
	s.nowFunc = func() time.Time { return start.Add(2 * time.Hour) }
	if claimed, err := s.Claim(context.Background(), "k", ""); err != nil || !claimed {
		t.Fatalf("expected expired record to be re-claimable, got %v, %v", claimed, err)
	}

	rec, _ := s.Get(context.Background(), "k")
	if rec.Expired(start.Add(2*time.Hour)) || !rec.Expired(start.Add(4*time.Hour)) {
		t.Fatalf("unexpected expiry for %+v", rec)
	}
}

func TestClaim_PropagatesOtherErrors(t *testing.T) {
	mock := newSimpleMock()
	mock.putErr = errors.New("throttled")
	s := NewStore(mock, "idempotency-table", time.Hour)
	if _, err := s.Claim(context.Background(), "k", ""); err == nil {
		t.Fatalf("expected error")
	}
}

func TestKeyIsOwnerScoped(t *testing.T) {
	if Key("a", "k") == Key("b", "k") {
		t.Fatalf("keys of different owners must differ")
	}
}

func TestAttributevalueMarshal_Unmarshal(t *testing.T) {
	// ensure our types marshal/unmarshal cleanly
	rec := IdempotencyRecord{
		IdempotencyKey: "k1",
		Status:         StatusInProgress,
		OrderID:        "o1",
		CreatedAt:      time.Now().Round(time.Second),
		UpdatedAt:      time.Now().Round(time.Second),
		ExpiresAt:      time.Now().Add(24 * time.Hour).Unix(),
	}
	m, err := attributevalue.MarshalMap(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out IdempotencyRecord
	if err := attributevalue.UnmarshalMap(m, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.IdempotencyKey != rec.IdempotencyKey || out.ExpiresAt != rec.ExpiresAt {
		t.Fatalf("unmarshal mismatch")
	}
}
