package saga

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/banking-transfer-saga/internal/config"
	"github.com/banking-transfer-saga/internal/domain/outbox"
	"github.com/banking-transfer-saga/internal/domain/reconciliation"
	"github.com/banking-transfer-saga/internal/domain/shared"
	"github.com/banking-transfer-saga/internal/domain/transfer"
	"github.com/banking-transfer-saga/internal/platform/messaging"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var testTopics = config.TopicConfig{
	TransferRequested: "initiate-transfer",
	DebitAccount:      "debit-account",
	CreditAccount:     "credit-account",
	RevertDebit:       "revert-debit",
	AccountDebited:    "account-debited",
	DebitFailed:       "debit-failed",
	AccountCredited:   "account-credited",
	CreditFailed:      "credit-failed",
	TransferFailed:    "transfer-failed",
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTx only supports ending the transaction; nothing else is called on it
type fakeTx struct {
	pgx.Tx
	db *fakeDB
}

func (tx *fakeTx) Commit(context.Context) error {
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()
	tx.db.commits++
	return nil
}

func (tx *fakeTx) Rollback(context.Context) error {
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()
	tx.db.rollbacks++
	return nil
}

type fakeDB struct {
	mu        sync.Mutex
	commits   int
	rollbacks int
}

func (db *fakeDB) Begin(context.Context) (pgx.Tx, error) {
	return &fakeTx{db: db}, nil
}

// memTransfers is a saga store that hands out copies, like a database would
type memTransfers struct {
	mu        sync.Mutex
	seq       int64
	byID      map[uuid.UUID]*transfer.Transfer
	order     []uuid.UUID
	updateErr error
}

func newMemTransfers() *memTransfers {
	return &memTransfers{byID: make(map[uuid.UUID]*transfer.Transfer)}
}

func (m *memTransfers) CreateIfAbsent(_ context.Context, t *transfer.Transfer) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[t.TransferID]; ok {
		return false, nil
	}
	m.seq++
	t.ID = m.seq
	cp := *t
	m.byID[t.TransferID] = &cp
	m.order = append(m.order, t.TransferID)
	return true, nil
}

func (m *memTransfers) GetByTransferID(_ context.Context, id uuid.UUID) (*transfer.Transfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return nil, transfer.ErrTransferNotFound{TransferID: id}
	}
	cp := *t
	return &cp, nil
}

func (m *memTransfers) LockByTransferID(ctx context.Context, id uuid.UUID) (*transfer.Transfer, error) {
	return m.GetByTransferID(ctx, id)
}

func (m *memTransfers) LockLatestBySource(_ context.Context, account string, state transfer.State) (*transfer.Transfer, error) {
	return m.latest(func(t *transfer.Transfer) bool { return t.SourceAccount == account && t.State == state })
}

func (m *memTransfers) LockLatestByDestination(_ context.Context, account string, state transfer.State) (*transfer.Transfer, error) {
	return m.latest(func(t *transfer.Transfer) bool { return t.DestinationAccount == account && t.State == state })
}

func (m *memTransfers) latest(match func(*transfer.Transfer) bool) (*transfer.Transfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.order) - 1; i >= 0; i-- {
		if t := m.byID[m.order[i]]; match(t) {
			cp := *t
			return &cp, nil
		}
	}
	return nil, transfer.ErrTransferNotFound{}
}

func (m *memTransfers) ListExpired(_ context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var open []*transfer.Transfer
	for _, t := range m.byID {
		if !t.IsTerminal() && t.DeadlineAt.Before(now) {
			open = append(open, t)
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i].DeadlineAt.Before(open[j].DeadlineAt) })
	var ids []uuid.UUID
	for _, t := range open {
		if len(ids) == limit {
			break
		}
		ids = append(ids, t.TransferID)
	}
	return ids, nil
}

func (m *memTransfers) Update(_ context.Context, t *transfer.Transfer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.byID[t.TransferID]; !ok {
		return transfer.ErrTransferNotFound{TransferID: t.TransferID}
	}
	cp := *t
	m.byID[t.TransferID] = &cp
	return nil
}

func (m *memTransfers) WithTx(pgx.Tx) transfer.Repository {
	return m
}

func (m *memTransfers) get(id uuid.UUID) *transfer.Transfer {
	t, err := m.GetByTransferID(context.Background(), id)
	if err != nil {
		panic(err)
	}
	return t
}

// force overwrites a stored transfer, for tests that start mid-saga
func (m *memTransfers) force(t *transfer.Transfer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.byID[t.TransferID] = &cp
}

type memOutbox struct {
	mu       sync.Mutex
	seq      int64
	messages []*outbox.Message
}

func (m *memOutbox) Create(_ context.Context, msg *outbox.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	msg.ID = m.seq
	cp := *msg
	m.messages = append(m.messages, &cp)
	return nil
}

func (m *memOutbox) GetPending(_ context.Context, olderThan time.Time, limit int) ([]*outbox.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var pending []*outbox.Message
	for _, msg := range m.messages {
		if msg.Status == shared.OutboxStatusPending && msg.CreatedAt.Before(olderThan) && len(pending) < limit {
			cp := *msg
			pending = append(pending, &cp)
		}
	}
	return pending, nil
}

func (m *memOutbox) GetByTransferID(_ context.Context, id uuid.UUID) ([]*outbox.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*outbox.Message
	for _, msg := range m.messages {
		if msg.TransferID == id {
			cp := *msg
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memOutbox) UpdateStatus(_ context.Context, id int64, status shared.OutboxStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.messages {
		if msg.ID == id {
			msg.Status = status
			return nil
		}
	}
	return outbox.ErrMessageNotFound{ID: id}
}

func (m *memOutbox) IncrementAttempts(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.messages {
		if msg.ID == id {
			msg.IncrementAttempts()
			return nil
		}
	}
	return outbox.ErrMessageNotFound{ID: id}
}

func (m *memOutbox) WithTx(pgx.Tx) outbox.Repository {
	return m
}

func (m *memOutbox) withStatus(status shared.OutboxStatus) []*outbox.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*outbox.Message
	for _, msg := range m.messages {
		if msg.Status == status {
			out = append(out, msg)
		}
	}
	return out
}

type memHistory struct {
	mu      sync.Mutex
	entries []*transfer.HistoryEntry
}

func (m *memHistory) Append(_ context.Context, entry *transfer.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memHistory) ListByTransferID(_ context.Context, id uuid.UUID) ([]*transfer.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*transfer.HistoryEntry
	for _, e := range m.entries {
		if e.TransferID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

type memUnmatched struct {
	mu      sync.Mutex
	events  []*reconciliation.UnmatchedEvent
	holdErr error
}

func (m *memUnmatched) Hold(_ context.Context, evt *reconciliation.UnmatchedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.holdErr != nil {
		return m.holdErr
	}
	m.events = append(m.events, evt)
	return nil
}

func (m *memUnmatched) List(_ context.Context, limit, offset int) ([]*reconciliation.UnmatchedEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if offset >= len(m.events) {
		return nil, nil
	}
	end := min(offset+limit, len(m.events))
	return m.events[offset:end], nil
}

func (m *memUnmatched) Count(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.events)), nil
}

func (m *memUnmatched) reasons() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.events {
		out = append(out, e.Reason)
	}
	return out
}

type published struct {
	topic string
	key   string
	event *shared.Event
}

// recordingPublisher keeps everything handed to it and fails while err is set
type recordingPublisher struct {
	mu     sync.Mutex
	router *messaging.Router
	sent   []published
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, topic, key string, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	evt, err := shared.DecodeEvent(value, "")
	if err != nil {
		return err
	}
	p.sent = append(p.sent, published{topic: topic, key: key, event: evt})
	return nil
}

func (p *recordingPublisher) PublishEvent(ctx context.Context, evt *shared.Event) error {
	topic, err := p.router.Topic(evt.Type)
	if err != nil {
		return err
	}
	value, err := evt.Encode()
	if err != nil {
		return err
	}
	return p.Publish(ctx, topic, evt.Key(), value)
}

func (p *recordingPublisher) Close() error {
	return nil
}

func (p *recordingPublisher) ofType(typ shared.EventType) []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []published
	for _, m := range p.sent {
		if m.event.Type == typ {
			out = append(out, m)
		}
	}
	return out
}

func (p *recordingPublisher) fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}
