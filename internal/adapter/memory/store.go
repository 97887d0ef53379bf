// Package memory implements every workflow repository over in-process maps.
// It backs the embedded/dev storage driver and the end-to-end tests.
//
// Transactions lock rows, not the store. Every write locks the rows it
// touches until the transaction ends, and GetByIDForUpdate locks the
// manuscript row, so transitions on one manuscript are linearized while
// transitions on different manuscripts run in parallel. Each write journals
// the prior value of its rows; a failed or panicking transaction replays the
// journal backwards. Readers outside a transaction may observe writes of a
// transaction that later rolls back.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/heartmarshall/journal-backend/internal/domain"
)

type txKey struct{}

type tables struct {
	users       map[uuid.UUID]domain.User
	manuscripts map[uuid.UUID]domain.Manuscript
	assignments map[uuid.UUID]domain.ReviewAssignment
	drafts      map[uuid.UUID]domain.DecisionDraft
	cycles      map[uuid.UUID]domain.ProductionCycle
	tasks       map[uuid.UUID]domain.InternalTask
	audit       []domain.AuditRecord
	outbox      map[uuid.UUID]domain.OutboxMessage
}

func newTables() tables {
	return tables{
		users:       make(map[uuid.UUID]domain.User),
		manuscripts: make(map[uuid.UUID]domain.Manuscript),
		assignments: make(map[uuid.UUID]domain.ReviewAssignment),
		drafts:      make(map[uuid.UUID]domain.DecisionDraft),
		cycles:      make(map[uuid.UUID]domain.ProductionCycle),
		tasks:       make(map[uuid.UUID]domain.InternalTask),
		outbox:      make(map[uuid.UUID]domain.OutboxMessage),
	}
}

type table uint8

const (
	tableUsers table = iota
	tableManuscripts
	tableAssignments
	tableDrafts
	tableCycles
	tableTasks
	tableAudit
	tableOutbox
)

// rowKey identifies one row for locking and journaling.
type rowKey struct {
	table table
	id    uuid.UUID
}

// save returns a func that puts row k back to its current state.
func (t *tables) save(k rowKey) func() {
	switch k.table {
	case tableUsers:
		return saveRow(t.users, k.id, cloneUser)
	case tableManuscripts:
		return saveRow(t.manuscripts, k.id, domain.Manuscript.Clone)
	case tableAssignments:
		return saveRow(t.assignments, k.id, cloneAssignment)
	case tableDrafts:
		return saveRow(t.drafts, k.id, cloneDraft)
	case tableCycles:
		return saveRow(t.cycles, k.id, domain.ProductionCycle.Clone)
	case tableTasks:
		return saveRow(t.tasks, k.id, cloneTask)
	case tableOutbox:
		return saveRow(t.outbox, k.id, cloneMessage)
	case tableAudit:
		// Audit rows are append-only.
		return func() {
			t.audit = slices.DeleteFunc(t.audit, func(r domain.AuditRecord) bool { return r.ID == k.id })
		}
	}
	panic("memory: unknown table")
}

func saveRow[V any](m map[uuid.UUID]V, id uuid.UUID, clone func(V) V) func() {
	prev, ok := m[id]
	if !ok {
		return func() { delete(m, id) }
	}
	prev = clone(prev)
	return func() { m[id] = prev }
}

// rowLock is a lock on one row. refs counts holders and waiters so the entry
// can be dropped once nobody uses it.
type rowLock struct {
	ch   chan struct{}
	refs int
}

// Store holds all tables of the in-memory driver.
type Store struct {
	mu    sync.RWMutex // guards data
	data  tables
	clock clockwork.Clock

	lockMu sync.Mutex
	locks  map[rowKey]*rowLock
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used to stamp rows written without a timestamp.
func WithClock(c clockwork.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		data:  newTables(),
		clock: clockwork.NewRealClock(),
		locks: make(map[rowKey]*rowLock),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// txState is one open transaction: the row locks it holds and the journal of
// prior row values, oldest first.
type txState struct {
	store *Store

	mu      sync.Mutex
	held    map[rowKey]*rowLock
	journal []func()
}

func (s *Store) newTx() *txState {
	return &txState{store: s, held: make(map[rowKey]*rowLock)}
}

// txFromCtx returns the transaction on s carried by ctx, if any.
func (s *Store) txFromCtx(ctx context.Context) *txState {
	tx, ok := ctx.Value(txKey{}).(*txState)
	if !ok || tx.store != s {
		return nil
	}
	return tx
}

// begin joins the transaction on ctx or starts a single-write one that the
// returned func ends.
func (s *Store) begin(ctx context.Context) (*txState, func()) {
	if tx := s.txFromCtx(ctx); tx != nil {
		return tx, func() {}
	}
	tx := s.newTx()
	return tx, tx.release
}

func (s *Store) ref(k rowKey) *rowLock {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	l, ok := s.locks[k]
	if !ok {
		l = &rowLock{ch: make(chan struct{}, 1)}
		s.locks[k] = l
	}
	l.refs++
	return l
}

func (s *Store) unref(k rowKey, l *rowLock) {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, k)
	}
}

// lock blocks until tx holds k or ctx is done.
func (tx *txState) lock(ctx context.Context, k rowKey) error {
	tx.mu.Lock()
	_, ok := tx.held[k]
	tx.mu.Unlock()
	if ok {
		return nil
	}

	l := tx.store.ref(k)
	select {
	case l.ch <- struct{}{}:
		tx.mu.Lock()
		tx.held[k] = l
		tx.mu.Unlock()
		return nil
	case <-ctx.Done():
		tx.store.unref(k, l)
		return ctx.Err()
	}
}

// tryLock takes k without waiting and reports whether tx holds it.
func (tx *txState) tryLock(k rowKey) bool {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if _, ok := tx.held[k]; ok {
		return true
	}
	l := tx.store.ref(k)
	select {
	case l.ch <- struct{}{}:
		tx.held[k] = l
		return true
	default:
		tx.store.unref(k, l)
		return false
	}
}

func (tx *txState) release() {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	for k, l := range tx.held {
		<-l.ch
		tx.store.unref(k, l)
	}
	clear(tx.held)
}

// record journals the current value of k. Callers hold store.mu.
func (tx *txState) record(k rowKey) {
	tx.mu.Lock()
	tx.journal = append(tx.journal, tx.store.data.save(k))
	tx.mu.Unlock()
}

// undo replays the journal back to mark. Callers hold store.mu.
func (tx *txState) undo(mark int) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	for i := len(tx.journal) - 1; i >= mark; i-- {
		tx.journal[i]()
	}
	tx.journal = tx.journal[:mark]
}

func (tx *txState) mark() int {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return len(tx.journal)
}

// lockForUpdate locks k until the transaction on ctx ends. Outside a
// transaction it is a no-op.
func (s *Store) lockForUpdate(ctx context.Context, k rowKey) error {
	tx := s.txFromCtx(ctx)
	if tx == nil {
		return nil
	}
	return tx.lock(ctx, k)
}

// read runs fn with shared access to the tables.
func (s *Store) read(fn func(t *tables)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(&s.data)
}

// write locks keys, journals them and runs fn with exclusive access to the
// tables. A failing fn leaves the rows as they were. Outside a transaction
// the locks are released when write returns.
func (s *Store) write(ctx context.Context, keys []rowKey, fn func(t *tables) error) error {
	tx, done := s.begin(ctx)
	defer done()
	for _, k := range keys {
		if err := tx.lock(ctx, k); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	mark := tx.mark()
	for _, k := range keys {
		tx.record(k)
	}
	if err := fn(&s.data); err != nil {
		tx.undo(mark)
		return err
	}
	return nil
}

// TxManager runs callbacks atomically against a Store.
type TxManager struct {
	store *Store
}

// NewTxManager creates a TxManager for store.
func NewTxManager(store *Store) *TxManager {
	return &TxManager{store: store}
}

// RunInTx executes fn in a transaction. A nested call joins the outer
// transaction. If fn returns an error or panics, every change made since the
// outermost RunInTx began is undone before its row locks are released.
func (m *TxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	s := m.store
	if s.txFromCtx(ctx) != nil {
		return fn(ctx)
	}

	tx := s.newTx()
	defer func() {
		p := recover()
		if p != nil || err != nil {
			s.mu.Lock()
			tx.undo(0)
			s.mu.Unlock()
		}
		tx.release()
		if p != nil {
			panic(p)
		}
	}()

	return fn(context.WithValue(ctx, txKey{}, tx))
}
