// Package client implements the client-side half of the payment
// mediation core: the RPC Audit Ledger, the Payment Responder, the
// Guardrails Engine, and the Settlement Notification Reconciler (spec
// §4.4-§4.7).
package client

import (
	"log"
	"sort"
	"sync"
	"time"
)

// RequestStatus and PaymentStatus enumerate the Audit Record's two
// independent lifecycles (spec §3).
type RequestStatus string
type PaymentStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusCompleted RequestStatus = "completed"
	StatusFailed    RequestStatus = "failed"
)

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// AuditRecord is the client-side per-RPC entry (spec §3).
type AuditRecord struct {
	RequestID   string
	ServerID    string
	Method      string
	Params      map[string]any

	RequestStatus RequestStatus
	PaymentStatus PaymentStatus

	CreatedAt           time.Time
	RequestCompletedAt  *time.Time
	PaymentCompletedAt  *time.Time

	TxHash       string
	PayerAddress string
	ErrorReason  string

	PaymentAmount  float64
	PaymentNetwork string
	PaymentAsset   string
	PaymentPayTo   string
}

// Store is the generic key/value interface the Ledger is built on
// (spec §3). Values carry an optional per-entry TTL.
type Store interface {
	Get(key string) (AuditRecord, bool)
	Set(key string, record AuditRecord, ttl time.Duration)
	Has(key string) bool
	Delete(key string)
	Clear()
}

// DefaultTTL is the ledger's default per-record TTL (spec §3).
const DefaultTTL = 24 * time.Hour

// pendingPrefix keys the "worklist" namespace (spec §3/§4.4).
const pendingPrefix = "pending:"

// Ledger maps requestId -> AuditRecord, backed by a Store (spec §4.4).
type Ledger struct {
	store  Store
	Logger *log.Logger
}

// NewLedger builds a Ledger over store.
func NewLedger(store Store) *Ledger {
	return &Ledger{store: store, Logger: log.Default()}
}

// StorePendingInput is the argument to StorePending.
type StorePendingInput struct {
	RequestID      string
	ServerID       string
	Method         string
	Params         map[string]any
	PaymentAmount  float64
	PaymentNetwork string
	PaymentAsset   string
	PaymentPayTo   string
}

// StorePending inserts a new record under pending:<id>.
func (l *Ledger) StorePending(in StorePendingInput) error {
	if in.RequestID == "" {
		return newInvalidRequest("ledger: requestId must not be empty")
	}
	record := AuditRecord{
		RequestID:      in.RequestID,
		ServerID:       in.ServerID,
		Method:         in.Method,
		Params:         in.Params,
		RequestStatus:  StatusPending,
		PaymentStatus:  PaymentPending,
		CreatedAt:      now(),
		PaymentAmount:  in.PaymentAmount,
		PaymentNetwork: in.PaymentNetwork,
		PaymentAsset:   in.PaymentAsset,
		PaymentPayTo:   in.PaymentPayTo,
	}
	l.store.Set(pendingPrefix+in.RequestID, record, DefaultTTL)
	return nil
}

// GetPending reads the record at pending:<id>.
func (l *Ledger) GetPending(id string) (AuditRecord, bool) {
	return l.store.Get(pendingPrefix + id)
}

// Get reads the record at <id> (the rekeyed, terminal namespace).
func (l *Ledger) Get(id string) (AuditRecord, bool) {
	return l.store.Get(id)
}

// MarkRequestCompleted transitions a pending record's requestStatus
// to completed, stamps requestCompletedAt, and moves it out of the
// pending namespace. It deletes the original pending:<id> entry on
// rekey, per spec §9's explicit correction of the source's orphan-key
// behavior.
func (l *Ledger) MarkRequestCompleted(id string, when *time.Time) {
	record, ok := l.store.Get(pendingPrefix + id)
	if !ok {
		record, ok = l.store.Get(id)
		if !ok {
			return
		}
	}
	record.RequestStatus = StatusCompleted
	ts := whenOrNow(when)
	record.RequestCompletedAt = &ts
	l.rekey(id, record)
}

// MarkRequestFailed is the failure-path analogue of
// MarkRequestCompleted, used by the send interceptor when the
// outbound RPC itself errors before any payment flow begins.
func (l *Ledger) MarkRequestFailed(id string, reason string, when *time.Time) {
	record, ok := l.store.Get(pendingPrefix + id)
	if !ok {
		record, ok = l.store.Get(id)
		if !ok {
			return
		}
	}
	record.RequestStatus = StatusFailed
	record.ErrorReason = reason
	ts := whenOrNow(when)
	record.RequestCompletedAt = &ts
	l.rekey(id, record)
}

// UpdatePaymentStatusInput is the argument to UpdatePaymentStatus.
type UpdatePaymentStatusInput struct {
	TxHash      string
	Payer       string
	ErrorReason string
	When        *time.Time
}

// UpdatePaymentStatus updates the record's payment fields. If status
// is not PaymentPending the record is rekeyed to <id> (deleting the
// pending:<id> entry); otherwise it stays in the pending namespace.
func (l *Ledger) UpdatePaymentStatus(id string, status PaymentStatus, in UpdatePaymentStatusInput) {
	record, ok := l.store.Get(pendingPrefix + id)
	fromPending := ok
	if !ok {
		record, ok = l.store.Get(id)
		if !ok {
			return
		}
	}

	record.PaymentStatus = status
	if in.TxHash != "" {
		record.TxHash = in.TxHash
	}
	if in.Payer != "" {
		record.PayerAddress = in.Payer
	}
	if in.ErrorReason != "" {
		record.ErrorReason = in.ErrorReason
	}
	if status != PaymentPending {
		ts := whenOrNow(in.When)
		record.PaymentCompletedAt = &ts
		l.rekey(id, record)
		return
	}
	if fromPending {
		l.store.Set(pendingPrefix+id, record, DefaultTTL)
	} else {
		l.store.Set(id, record, DefaultTTL)
	}
}

// RemovePending deletes the rekeyed <id> entry (not the pending
// prefix), matching spec §4.4's literal operation name.
func (l *Ledger) RemovePending(id string) {
	l.store.Delete(id)
}

func (l *Ledger) rekey(id string, record AuditRecord) {
	l.store.Set(id, record, DefaultTTL)
	l.store.Delete(pendingPrefix + id)
}

func newInvalidRequest(msg string) error {
	return &ledgerError{msg: msg}
}

type ledgerError struct{ msg string }

func (e *ledgerError) Error() string { return e.msg }

func whenOrNow(when *time.Time) time.Time {
	if when != nil {
		return *when
	}
	return now()
}

// now is overridable in tests that need deterministic timestamps.
var now = time.Now

// MemoryStore is an in-memory Store with TTL expiry and capacity-based
// eviction (spec §3: default 24h TTL, evict oldest 10% on capacity).
type MemoryStore struct {
	mu       sync.Mutex
	entries  map[string]memoryEntry
	capacity int
	stop     chan struct{}
	stopped  bool
}

type memoryEntry struct {
	record    AuditRecord
	expiresAt time.Time
	insertedAt time.Time
}

// DefaultCapacity bounds a MemoryStore before eviction kicks in.
const DefaultCapacity = 10000

// NewMemoryStore builds a MemoryStore with DefaultCapacity and starts
// its background TTL sweep. Call Close to stop the sweep.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithCapacity(DefaultCapacity)
}

// NewMemoryStoreWithCapacity builds a MemoryStore with a custom
// eviction capacity.
func NewMemoryStoreWithCapacity(capacity int) *MemoryStore {
	s := &MemoryStore{
		entries:  make(map[string]memoryEntry),
		capacity: capacity,
		stop:     make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

func (s *MemoryStore) sweepLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweepExpired()
		}
	}
}

func (s *MemoryStore) sweepExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now()
	for key, entry := range s.entries {
		if !entry.expiresAt.IsZero() && entry.expiresAt.Before(cutoff) {
			delete(s.entries, key)
		}
	}
}

// Close stops the background sweep goroutine.
func (s *MemoryStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	close(s.stop)
}

func (s *MemoryStore) Get(key string) (AuditRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return AuditRecord{}, false
	}
	if !entry.expiresAt.IsZero() && entry.expiresAt.Before(now()) {
		delete(s.entries, key)
		return AuditRecord{}, false
	}
	return entry.record, true
}

func (s *MemoryStore) Set(key string, record AuditRecord, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = now().Add(ttl)
	}
	s.entries[key] = memoryEntry{record: record, expiresAt: expiresAt, insertedAt: now()}
	s.evictIfOverCapacityLocked()
}

func (s *MemoryStore) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

func (s *MemoryStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]memoryEntry)
}

// evictIfOverCapacityLocked drops the oldest 10% of entries by
// insertion time once the store exceeds its configured capacity.
// Callers must hold s.mu.
func (s *MemoryStore) evictIfOverCapacityLocked() {
	if len(s.entries) <= s.capacity {
		return
	}
	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return s.entries[keys[i]].insertedAt.Before(s.entries[keys[j]].insertedAt)
	})
	evictCount := len(keys) / 10
	if evictCount == 0 {
		evictCount = 1
	}
	for _, key := range keys[:evictCount] {
		delete(s.entries, key)
	}
}
