package collab

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"notecollab/backend/internal/auth"
	"notecollab/backend/internal/cache"
	"notecollab/backend/internal/notes"
)

const testSecret = "test-secret"

func signToken(t *testing.T, userID string) string {
	t.Helper()
	claims := auth.Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(30 * time.Minute)),
	}}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

type memStore struct {
	mu        sync.Mutex
	notes     map[string]*notes.Note
	updateErr error
	finds     int
	updates   int
}

func newMemStore(ns ...*notes.Note) *memStore {
	m := &memStore{notes: make(map[string]*notes.Note)}
	for _, n := range ns {
		m.notes[n.NoteID] = n
	}
	return m
}

func (m *memStore) FindOne(_ context.Context, noteID string) (*notes.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finds++
	n, ok := m.notes[noteID]
	if !ok {
		return nil, notes.ErrNoteNotFound
	}
	cp := *n
	cp.AllowedUsers = slices.Clone(n.AllowedUsers)
	return &cp, nil
}

func (m *memStore) UpdateContent(_ context.Context, noteID, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	n, ok := m.notes[noteID]
	if !ok {
		return notes.ErrNoteNotFound
	}
	m.updates++
	n.Content = content
	return nil
}

func (m *memStore) Create(_ context.Context, n *notes.Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes[n.NoteID] = n
	return nil
}

func (m *memStore) Delete(_ context.Context, noteID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.notes, noteID)
	return nil
}

func (m *memStore) AddAllowedUser(_ context.Context, noteID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes[noteID].AllowedUsers = append(m.notes[noteID].AllowedUsers, userID)
	return nil
}

func (m *memStore) RemoveAllowedUser(_ context.Context, noteID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.notes[noteID]
	n.AllowedUsers = slices.DeleteFunc(n.AllowedUsers, func(u string) bool { return u == userID })
	return nil
}

func (m *memStore) content(noteID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.notes[noteID].Content
}

type memCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	getErr  error
	setErr  error
	sets    int
	deletes int
}

func newMemCache() *memCache { return &memCache{data: make(map[string][]byte)} }

func (c *memCache) Get(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return false, c.getErr
	}
	b, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *memCache) Set(_ context.Context, key string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	if c.setErr != nil {
		return c.setErr
	}
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = b
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes++
	delete(c.data, key)
	return nil
}

func (c *memCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

// hookCache 在下一次 Get 之前执行一次 onGet
type hookCache struct {
	*memCache
	mu    sync.Mutex
	onGet func()
}

func (h *hookCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	h.mu.Lock()
	fn := h.onGet
	h.onGet = nil
	h.mu.Unlock()
	if fn != nil {
		fn()
	}
	return h.memCache.Get(ctx, key, dst)
}

func (h *hookCache) hook(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onGet = fn
}

type sent struct {
	event   string
	payload any
}

type recorder struct {
	mu   sync.Mutex
	msgs []sent
	full bool
}

func (r *recorder) Send(event string, payload any) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return false
	}
	r.msgs = append(r.msgs, sent{event: event, payload: payload})
	return true
}

func (r *recorder) events(name string) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []any
	for _, m := range r.msgs {
		if m.event == name {
			out = append(out, m.payload)
		}
	}
	return out
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

type memPublisher struct {
	mu     sync.Mutex
	events []NoteEvent
	err    error
}

func (p *memPublisher) Enqueue(_ context.Context, evt NoteEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, evt)
	return nil
}

var errBoom = errors.New("boom")

type fixture struct {
	gw    *Gateway
	hub   *Hub
	store *memStore
	cache *memCache
	pub   *memPublisher
}

func newFixture(t *testing.T, opt Options, ns ...*notes.Note) *fixture {
	t.Helper()
	return newFixtureWithCache(t, opt, func(c *memCache) cache.ContentCache { return c }, ns...)
}

// newFixtureWithCache 允许测试包装网关看到的缓存
func newFixtureWithCache(t *testing.T, opt Options, wrap func(*memCache) cache.ContentCache, ns ...*notes.Note) *fixture {
	t.Helper()
	st := newMemStore(ns...)
	c := newMemCache()
	hub := NewHub(zap.NewNop())
	pub := &memPublisher{}
	gw, err := NewGateway(Deps{
		Guard:     auth.NewGuard(testSecret, st),
		Store:     st,
		Cache:     wrap(c),
		Hub:       hub,
		Publisher: pub,
		Logger:    zap.NewNop(),
		Options:   opt,
	})
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	return &fixture{gw: gw, hub: hub, store: st, cache: c, pub: pub}
}

func (f *fixture) connect() (*Session, *recorder) {
	r := &recorder{}
	return f.gw.Connect(r), r
}

func raw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}
