// Package testutil provides in-memory repository implementations used by
// service tests. They satisfy the consumer-side ports declared in the
// service packages and keep everything behind a single mutex, which is
// enough to exercise the engine's own concurrency control.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dialerops/callgate-backend/internal/domain/account"
	"github.com/dialerops/callgate-backend/internal/domain/call"
	"github.com/dialerops/callgate-backend/internal/domain/compliance"
	"github.com/dialerops/callgate-backend/internal/domain/dnc"
	"github.com/dialerops/callgate-backend/internal/domain/errors"
	"github.com/dialerops/callgate-backend/internal/domain/events"
	"github.com/dialerops/callgate-backend/internal/domain/reporting"
	"github.com/dialerops/callgate-backend/internal/domain/values"
)

// AccountStore is an in-memory ledger.AccountRepository.
type AccountStore struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*account.Account

	// FailReads simulates an unreachable store for fail-closed tests.
	FailReads bool
}

func NewAccountStore() *AccountStore {
	return &AccountStore{accounts: make(map[uuid.UUID]*account.Account)}
}

func (s *AccountStore) Put(a *account.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.accounts[a.ID] = &cp
}

func (s *AccountStore) GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailReads {
		return nil, errors.NewInternalError("store down")
	}

	a, ok := s.accounts[id]
	if !ok {
		return nil, errors.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *AccountStore) IncrementUsage(ctx context.Context, id uuid.UUID, minutes int64) (*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, errors.ErrAccountNotFound
	}
	if err := a.ApplyUsage(minutes); err != nil {
		return nil, err
	}
	cp := *a
	return &cp, nil
}

// DNCStore is an in-memory suppression list.
type DNCStore struct {
	mu      sync.Mutex
	entries map[string]*dnc.Entry // accountID|phone

	FailReads bool
}

func NewDNCStore() *DNCStore {
	return &DNCStore{entries: make(map[string]*dnc.Entry)}
}

func dncKey(accountID uuid.UUID, phone values.PhoneNumber) string {
	return accountID.String() + "|" + phone.String()
}

func (s *DNCStore) Put(e *dnc.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[dncKey(e.AccountID, e.PhoneNumber)] = e
}

func (s *DNCStore) FindActive(ctx context.Context, accountID uuid.UUID, phone values.PhoneNumber) (*dnc.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailReads {
		return nil, errors.NewInternalError("store down")
	}

	e, ok := s.entries[dncKey(accountID, phone)]
	if !ok || !e.IsActive() {
		return nil, nil
	}
	return e, nil
}

// ConsentStore is an in-memory consent ledger.
type ConsentStore struct {
	mu      sync.Mutex
	records map[string]*compliance.ConsentRecord
}

func NewConsentStore() *ConsentStore {
	return &ConsentStore{records: make(map[string]*compliance.ConsentRecord)}
}

func (s *ConsentStore) Put(c *compliance.ConsentRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[c.AccountID.String()+"|"+c.PhoneNumber.String()] = c
}

func (s *ConsentStore) FindActive(ctx context.Context, accountID uuid.UUID, phone values.PhoneNumber) (*compliance.ConsentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.records[accountID.String()+"|"+phone.String()]
	if !ok || !c.IsActive() {
		return nil, nil
	}
	return c, nil
}

// RuleStore is an in-memory rule set.
type RuleStore struct {
	mu    sync.Mutex
	rules map[uuid.UUID][]*compliance.Rule
}

func NewRuleStore() *RuleStore {
	return &RuleStore{rules: make(map[uuid.UUID][]*compliance.Rule)}
}

func (s *RuleStore) Put(r *compliance.Rule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[r.AccountID] = append(s.rules[r.AccountID], r)
}

func (s *RuleStore) ListEnabled(ctx context.Context, accountID uuid.UUID) ([]*compliance.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var enabled []*compliance.Rule
	for _, r := range s.rules[accountID] {
		if r.Enabled {
			enabled = append(enabled, r)
		}
	}
	return enabled, nil
}

// ViolationStore collects recorded violations.
type ViolationStore struct {
	mu         sync.Mutex
	violations []*compliance.Violation

	FailWrites bool
}

func NewViolationStore() *ViolationStore {
	return &ViolationStore{}
}

func (s *ViolationStore) Save(ctx context.Context, v *compliance.Violation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailWrites {
		return errors.NewInternalError("store down")
	}
	s.violations = append(s.violations, v)
	return nil
}

func (s *ViolationStore) CountInWindow(ctx context.Context, accountID uuid.UUID, from, to time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, v := range s.violations {
		if v.AccountID == accountID && !v.CreatedAt.Before(from) && v.CreatedAt.Before(to) {
			n++
		}
	}
	return n, nil
}

func (s *ViolationStore) All() []*compliance.Violation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*compliance.Violation, len(s.violations))
	copy(out, s.violations)
	return out
}

// CallStore collects call records.
type CallStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*call.Record
}

func NewCallStore() *CallStore {
	return &CallStore{records: make(map[uuid.UUID]*call.Record)}
}

func (s *CallStore) Save(ctx context.Context, r *call.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.ID] = r
	return nil
}

func (s *CallStore) GetByReservation(ctx context.Context, reservationID uuid.UUID) (*call.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.ReservationID == reservationID {
			return r, nil
		}
	}
	return nil, errors.NewNotFoundError("call record")
}

func (s *CallStore) ListFinalized(ctx context.Context, accountID uuid.UUID, from, to time.Time) ([]*call.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*call.Record
	for _, r := range s.records {
		if r.AccountID == accountID && r.Finalized() &&
			!r.StartTime.Before(from) && r.StartTime.Before(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *CallStore) All() []*call.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*call.Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	return out
}

// ActivityLog is an in-memory sliding-window destination history.
type ActivityLog struct {
	mu    sync.Mutex
	calls map[string][]time.Time

	// FailWrites simulates an unreachable log for fail-closed tests.
	FailWrites bool
}

func NewActivityLog() *ActivityLog {
	return &ActivityLog{calls: make(map[string][]time.Time)}
}

func (l *ActivityLog) Count(ctx context.Context, accountID uuid.UUID, phone values.PhoneNumber, window time.Duration) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-window)
	var n int
	for _, t := range l.calls[dncKey(accountID, phone)] {
		if t.After(cutoff) {
			n++
		}
	}
	return n, nil
}

func (l *ActivityLog) Record(ctx context.Context, accountID uuid.UUID, phone values.PhoneNumber, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.FailWrites {
		return errors.NewInternalError("store down")
	}

	key := dncKey(accountID, phone)
	l.calls[key] = append(l.calls[key], at)
	return nil
}

// EventRecorder captures published events for assertions.
type EventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func NewEventRecorder() *EventRecorder {
	return &EventRecorder{}
}

func (r *EventRecorder) Publish(ctx context.Context, e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *EventRecorder) Events() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *EventRecorder) OfType(eventType string) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, e := range r.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// KPIStore is an in-memory reporting.KPIRepository.
type KPIStore struct {
	mu      sync.Mutex
	targets map[uuid.UUID]*reporting.KPITarget
}

func NewKPIStore() *KPIStore {
	return &KPIStore{targets: make(map[uuid.UUID]*reporting.KPITarget)}
}

func (s *KPIStore) Save(ctx context.Context, t *reporting.KPITarget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets[t.ID] = t
	return nil
}

func (s *KPIStore) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*reporting.KPITarget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*reporting.KPITarget
	for _, t := range s.targets {
		if t.AccountID == accountID {
			out = append(out, t)
		}
	}
	return out, nil
}

// InsightStore is an in-memory reporting.InsightRepository.
type InsightStore struct {
	mu       sync.Mutex
	insights map[uuid.UUID][]*reporting.PredictiveInsight
}

func NewInsightStore() *InsightStore {
	return &InsightStore{insights: make(map[uuid.UUID][]*reporting.PredictiveInsight)}
}

func (s *InsightStore) Replace(ctx context.Context, accountID uuid.UUID, insights []*reporting.PredictiveInsight) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insights[accountID] = insights
	return nil
}

func (s *InsightStore) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*reporting.PredictiveInsight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insights[accountID], nil
}

// ReportStore is an in-memory reporting.ReportRepository.
type ReportStore struct {
	mu      sync.Mutex
	reports []*reporting.ComplianceReport
}

func NewReportStore() *ReportStore {
	return &ReportStore{}
}

func (s *ReportStore) SaveReport(ctx context.Context, r *reporting.ComplianceReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, r)
	return nil
}

func (s *ReportStore) Reports() []*reporting.ComplianceReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*reporting.ComplianceReport, len(s.reports))
	copy(out, s.reports)
	return out
}
