package client

import (
	"testing"
	"time"
)

func TestLedgerKeyMigrationOnRequestCompletion(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ledger := NewLedger(store)

	if err := ledger.StorePending(StorePendingInput{RequestID: "id-1", Method: "tools/call"}); err != nil {
		t.Fatalf("StorePending: %v", err)
	}
	if _, ok := ledger.GetPending("id-1"); !ok {
		t.Fatalf("expected pending:id-1 to exist before completion")
	}

	ledger.MarkRequestCompleted("id-1", nil)

	if _, ok := ledger.GetPending("id-1"); ok {
		t.Fatalf("pending:id-1 must be deleted on rekey, found it still present")
	}
	record, ok := ledger.Get("id-1")
	if !ok {
		t.Fatalf("expected id-1 to exist after rekey")
	}
	if record.RequestStatus != StatusCompleted {
		t.Fatalf("requestStatus = %q, want completed", record.RequestStatus)
	}
}

func TestLedgerKeyMigrationOnTerminalPaymentUpdate(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ledger := NewLedger(store)

	if err := ledger.StorePending(StorePendingInput{RequestID: "id-2"}); err != nil {
		t.Fatalf("StorePending: %v", err)
	}

	ledger.UpdatePaymentStatus("id-2", PaymentCompleted, UpdatePaymentStatusInput{TxHash: "0xabc"})

	if _, ok := ledger.GetPending("id-2"); ok {
		t.Fatalf("pending:id-2 must be deleted once paymentStatus leaves pending")
	}
	record, ok := ledger.Get("id-2")
	if !ok {
		t.Fatalf("expected id-2 to exist after rekey")
	}
	if record.PaymentStatus != PaymentCompleted || record.TxHash != "0xabc" {
		t.Fatalf("unexpected record after terminal update: %+v", record)
	}
}

func TestLedgerNonTerminalPaymentUpdateStaysPending(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ledger := NewLedger(store)

	if err := ledger.StorePending(StorePendingInput{RequestID: "id-3"}); err != nil {
		t.Fatalf("StorePending: %v", err)
	}

	ledger.UpdatePaymentStatus("id-3", PaymentPending, UpdatePaymentStatusInput{Payer: "0xpayer"})

	if _, ok := ledger.GetPending("id-3"); !ok {
		t.Fatalf("expected pending:id-3 to remain while paymentStatus is still pending")
	}
	if _, ok := ledger.Get("id-3"); ok {
		t.Fatalf("id-3 should not exist in the terminal namespace yet")
	}
}

func TestLedgerStorePendingRejectsEmptyID(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ledger := NewLedger(store)

	if err := ledger.StorePending(StorePendingInput{RequestID: ""}); err == nil {
		t.Fatalf("expected an error for an empty requestId")
	}
}

func TestMemoryStoreEvictsOldestTenPercentOnCapacity(t *testing.T) {
	original := now
	defer func() { now = original }()

	tick := time.Unix(0, 0)
	now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}

	store := NewMemoryStoreWithCapacity(10)
	defer store.Close()

	for i := 0; i < 11; i++ {
		store.Set(keyFor(i), AuditRecord{RequestID: keyFor(i)}, 0)
	}

	if _, ok := store.Get(keyFor(0)); ok {
		t.Fatalf("expected the oldest entry to be evicted once capacity was exceeded")
	}
	for i := 1; i < 11; i++ {
		if _, ok := store.Get(keyFor(i)); !ok {
			t.Fatalf("expected entry %d to survive eviction", i)
		}
	}
}

func TestMemoryStoreExpiresOnTTL(t *testing.T) {
	original := now
	defer func() { now = original }()

	base := time.Unix(0, 0)
	now = func() time.Time { return base }

	store := NewMemoryStoreWithCapacity(10)
	defer store.Close()

	store.Set("k", AuditRecord{RequestID: "k"}, time.Minute)
	if _, ok := store.Get("k"); !ok {
		t.Fatalf("expected entry to exist before expiry")
	}

	now = func() time.Time { return base.Add(2 * time.Minute) }
	if _, ok := store.Get("k"); ok {
		t.Fatalf("expected entry to be gone after its TTL elapsed")
	}
}

func keyFor(i int) string {
	return "k" + string(rune('a'+i))
}
