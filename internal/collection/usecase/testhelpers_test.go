package usecase_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"content-sync/internal/collection/domain/model"
	"content-sync/internal/collection/domain/repository"
	"content-sync/internal/shared/errors"

	"github.com/stretchr/testify/mock"
)

// MockBackend is a testify mock of repository.Backend.
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) Select(ctx context.Context, q model.SelectQuery) ([]model.Record, error) {
	args := m.Called(ctx, q)
	records, _ := args.Get(0).([]model.Record)
	return records, args.Error(1)
}

func (m *MockBackend) Insert(ctx context.Context, collection string, records []model.Record) ([]model.Record, error) {
	args := m.Called(ctx, collection, records)
	stored, _ := args.Get(0).([]model.Record)
	return stored, args.Error(1)
}

func (m *MockBackend) Update(ctx context.Context, collection, id string, patch model.Record) (model.Record, error) {
	args := m.Called(ctx, collection, id, patch)
	stored, _ := args.Get(0).(model.Record)
	return stored, args.Error(1)
}

func (m *MockBackend) Delete(ctx context.Context, collection string, filter model.Filter) (int64, error) {
	args := m.Called(ctx, collection, filter)
	return int64(args.Int(0)), args.Error(1)
}

func orderedBy(field string) interface{} {
	return mock.MatchedBy(func(q model.SelectQuery) bool {
		return q.OrderBy != nil && q.OrderBy.Field == field
	})
}

func unordered() interface{} {
	return mock.MatchedBy(func(q model.SelectQuery) bool { return q.OrderBy == nil })
}

// memBackend is a small in-memory backend. A collection listed in columns
// only accepts ordering by those columns; others accept any column.
type memBackend struct {
	mu           sync.Mutex
	rows         map[string][]model.Record
	columns      map[string]map[string]bool
	selects      []model.SelectQuery
	deletes      int
	failDeleteAt int
	seq          int
}

func newMemBackend() *memBackend {
	return &memBackend{
		rows:    make(map[string][]model.Record),
		columns: make(map[string]map[string]bool),
	}
}

func (b *memBackend) withColumns(collection string, cols ...string) *memBackend {
	set := make(map[string]bool, len(cols))
	for _, c := range cols {
		set[c] = true
	}
	b.columns[collection] = set
	return b
}

func (b *memBackend) seed(collection string, records ...model.Record) *memBackend {
	for _, r := range records {
		b.rows[collection] = append(b.rows[collection], r.Clone())
	}
	return b
}

func (b *memBackend) count(collection string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.rows[collection])
}

func (b *memBackend) Select(ctx context.Context, q model.SelectQuery) ([]model.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.selects = append(b.selects, q)

	out := make([]model.Record, 0, len(b.rows[q.Collection]))
	for _, r := range b.rows[q.Collection] {
		out = append(out, r.Clone())
	}
	if q.OrderBy == nil {
		return out, nil
	}
	if cols, ok := b.columns[q.Collection]; ok && !cols[q.OrderBy.Field] {
		return nil, errors.NewSchemaMismatchError(q.Collection, q.OrderBy.Field)
	}
	field := q.OrderBy.Field
	sort.SliceStable(out, func(i, j int) bool { return out[i].String(field) > out[j].String(field) })
	return out, nil
}

func (b *memBackend) Insert(ctx context.Context, collection string, records []model.Record) ([]model.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	stored := make([]model.Record, 0, len(records))
	for _, r := range records {
		rec := r.Clone()
		if rec.ID() == "" {
			b.seq++
			rec[model.FieldID] = fmt.Sprintf("%s-%d", collection, b.seq)
		}
		b.rows[collection] = append(b.rows[collection], rec)
		stored = append(stored, rec.Clone())
	}
	return stored, nil
}

func (b *memBackend) Update(ctx context.Context, collection, id string, patch model.Record) (model.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range b.rows[collection] {
		if r.ID() == id {
			for k, v := range patch {
				r[k] = v
			}
			return r.Clone(), nil
		}
	}
	return nil, errors.NewNotFoundError("record " + id)
}

func (b *memBackend) Delete(ctx context.Context, collection string, filter model.Filter) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deletes++
	if b.failDeleteAt > 0 && b.deletes == b.failDeleteAt {
		return 0, errors.NewAuthorizationError("permission denied for " + fmt.Sprint(filter.Value))
	}
	kept := b.rows[collection][:0]
	var n int64
	for _, r := range b.rows[collection] {
		if filter.Operator == model.OpAll || r.ID() == filter.Value {
			n++
			continue
		}
		kept = append(kept, r)
	}
	b.rows[collection] = kept
	return n, nil
}

// fakePush is a PushChannel whose events are emitted by the test.
type fakePush struct {
	mu           sync.Mutex
	live         map[int]func(model.ChangeEvent)
	liveColl     map[int]string
	everyHandler []func(model.ChangeEvent)
	unsubscribes map[string]int
	next         int
	failWith     error
}

func newFakePush() *fakePush {
	return &fakePush{
		live:         make(map[int]func(model.ChangeEvent)),
		liveColl:     make(map[int]string),
		unsubscribes: make(map[string]int),
	}
}

func (p *fakePush) Subscribe(ctx context.Context, collection string, onChange func(model.ChangeEvent)) (repository.Unsubscribe, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return nil, p.failWith
	}
	id := p.next
	p.next++
	p.live[id] = onChange
	p.liveColl[id] = collection
	p.everyHandler = append(p.everyHandler, onChange)
	return func() error {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.unsubscribes[collection]++
		delete(p.live, id)
		delete(p.liveColl, id)
		return nil
	}, nil
}

// emit delivers an event to every live subscriber of the collection.
func (p *fakePush) emit(collection string, kind model.ChangeKind) {
	p.mu.Lock()
	var handlers []func(model.ChangeEvent)
	for id, h := range p.live {
		if p.liveColl[id] == collection {
			handlers = append(handlers, h)
		}
	}
	p.mu.Unlock()
	for _, h := range handlers {
		h(model.NewChangeEvent(collection, kind, ""))
	}
}

// emitLate delivers to every handler ever registered, as a channel that keeps
// delivering briefly after unsubscribe would.
func (p *fakePush) emitLate(collection string) {
	p.mu.Lock()
	handlers := append([]func(model.ChangeEvent){}, p.everyHandler...)
	p.mu.Unlock()
	for _, h := range handlers {
		h(model.NewChangeEvent(collection, model.ChangeUpdate, ""))
	}
}

func (p *fakePush) unsubscribeCount(collection string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.unsubscribes[collection]
}

func (p *fakePush) liveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.live)
}

// gatedResolver blocks every Resolve until the test releases it with a result.
type gatedResolver struct {
	started chan *gatedCall
}

type gatedCall struct {
	release chan struct{}
	records []model.Record
	err     error
}

func newGatedResolver() *gatedResolver {
	return &gatedResolver{started: make(chan *gatedCall, 16)}
}

func (r *gatedResolver) Resolve(ctx context.Context, collection string) ([]model.Record, error) {
	call := &gatedCall{release: make(chan struct{})}
	r.started <- call
	<-call.release
	return call.records, call.err
}

func (c *gatedCall) complete(records []model.Record, err error) {
	c.records = records
	c.err = err
	close(c.release)
}

// scriptedResolver returns queued results in order, repeating the last one.
type scriptedResolver struct {
	mu      sync.Mutex
	results []scripted
	calls   int
}

type scripted struct {
	records []model.Record
	err     error
}

func (r *scriptedResolver) Resolve(ctx context.Context, collection string) ([]model.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.calls
	if i >= len(r.results) {
		i = len(r.results) - 1
	}
	r.calls++
	return r.results[i].records, r.results[i].err
}

func (r *scriptedResolver) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// countingResolver sleeps for delay and returns one more record on every call.
type countingResolver struct {
	delay time.Duration
	mu    sync.Mutex
	calls int
}

func (r *countingResolver) Resolve(ctx context.Context, collection string) ([]model.Record, error) {
	r.mu.Lock()
	r.calls++
	n := r.calls
	r.mu.Unlock()

	time.Sleep(r.delay)
	records := make([]model.Record, n)
	for i := range records {
		records[i] = model.Record{"id": fmt.Sprintf("r%d", i)}
	}
	return records, nil
}
