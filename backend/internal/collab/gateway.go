package collab

import (
	"context"
	"encoding/json"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"notecollab/backend/internal/cache"
	"notecollab/backend/internal/notes"
)

const (
	ScopeGlobal = "global"
	ScopeRoom   = "room"

	DefaultCallTimeout = 3 * time.Second
	// 变更事件队列满时最多等这么久，超过就丢弃
	enqueueWait        = 20 * time.Millisecond
)

// Authorizer 校验令牌并确认用户在笔记的 allowedUsers 中
type Authorizer interface {
	Authorize(ctx context.Context, noteID, token string) (string, error)
}

// Publisher 变更事件的出口，入队即返回
type Publisher interface {
	Enqueue(ctx context.Context, evt NoteEvent) error
}

type Options struct {
	MaxContentLength int
	CallTimeout      time.Duration
	MaxInflight      int
	UserLeftScope    string
}

type Deps struct {
	Guard     Authorizer
	Store     notes.Store
	Cache     cache.ContentCache
	Hub       *Hub
	Publisher Publisher // 可以为 nil
	Logger    *zap.Logger
	Options   Options
}

type handlerFunc func(g *Gateway, s *Session, raw json.RawMessage) *Failure

// 事件表只在包初始化时构建一次，连接重复打开笔记也不会叠加处理器
var handlers = map[string]handlerFunc{
	EventOpenNote:      (*Gateway).openNote,
	EventContentChange: (*Gateway).contentChange,
}

// Gateway 会话网关：把入站事件路由到处理器，失败统一交给 policy
type Gateway struct {
	guard    Authorizer
	store    notes.Store
	cache    cache.ContentCache
	hub      *Hub
	pub      Publisher
	resolver *ContentResolver
	log      *zap.Logger
	sem      *SemaphoreControl
	opt      Options
}

func NewGateway(d Deps) (*Gateway, error) {
	if d.Guard == nil || d.Store == nil || d.Cache == nil || d.Hub == nil {
		return nil, errors.New("collab: guard, store, cache and hub are required")
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	opt := d.Options
	if opt.MaxContentLength <= 0 {
		opt.MaxContentLength = notes.MaxContentLength
	}
	if opt.CallTimeout <= 0 {
		opt.CallTimeout = DefaultCallTimeout
	}
	if opt.UserLeftScope != ScopeRoom {
		opt.UserLeftScope = ScopeGlobal
	}
	return &Gateway{
		guard:    d.Guard,
		store:    d.Store,
		cache:    d.Cache,
		hub:      d.Hub,
		pub:      d.Publisher,
		resolver: NewContentResolver(d.Cache, d.Store, d.Logger),
		log:      d.Logger,
		sem:      NewSemaphoreControl(opt.MaxInflight),
		opt:      opt,
	}, nil
}

// Connect 新连接建立时调用，不向任何连接发送事件
func (g *Gateway) Connect(t Transport) *Session {
	s := newSession(uuid.NewString(), t)
	g.hub.Register(s)
	g.log.Debug("session connected", zap.String("session", s.ID()))
	return s
}

// Dispatch 同一连接上的事件由读循环顺序调用
func (g *Gateway) Dispatch(s *Session, event string, raw json.RawMessage) {
	h, ok := handlers[event]
	if !ok {
		g.drop(s, fail(KindValidation, event, "", ErrUnknownEvent))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), g.opt.CallTimeout)
	defer cancel()
	if err := g.sem.Acquire(ctx); err != nil {
		g.drop(s, fail(KindInternal, event, "", err))
		return
	}
	defer func() { _ = g.sem.Release() }()

	g.drop(s, h(g, s, raw))
}

// Disconnect 退出房间并通知 userLeft，载荷是连接 id
func (g *Gateway) Disconnect(s *Session) {
	room := g.hub.Unregister(s.ID())
	s.close()

	if g.opt.UserLeftScope == ScopeRoom {
		if room != "" {
			g.hub.BroadcastRoom(room, EventUserLeft, s.ID())
		}
	} else {
		g.hub.BroadcastGlobal(EventUserLeft, s.ID())
	}
	g.log.Debug("session disconnected", zap.String("session", s.ID()), zap.String("note", room))
}

// callContext 存储和缓存调用的超时不跟随连接，断开不会取消进行中的调用
func (g *Gateway) callContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), g.opt.CallTimeout)
}

func (g *Gateway) openNote(s *Session, raw json.RawMessage) *Failure {
	var req OpenNoteRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return fail(KindValidation, EventOpenNote, "", ErrBadPayload)
	}
	if req.NoteID == "" {
		return fail(KindValidation, EventOpenNote, "", ErrBadPayload)
	}

	ctx, cancel := g.callContext()
	defer cancel()

	userID, err := g.guard.Authorize(ctx, req.NoteID, req.Token)
	if err != nil {
		return classify(EventOpenNote, req.NoteID, err)
	}

	// 先进房间再取内容：取内容期间的编辑会以 contentUpdate 到达，不会丢
	if !g.hub.Join(req.NoteID, s.ID()) {
		return fail(KindInternal, EventOpenNote, req.NoteID, errors.New("session not registered"))
	}
	g.hub.BroadcastExcluding(req.NoteID, s.ID(), EventNewUser, NewUser{
		Message:  "User connected: " + userID,
		UserID:   userID,
		SocketID: s.ID(),
	})

	content, err := g.resolver.ResolveContent(ctx, req.NoteID)
	if err != nil {
		// 取不到内容就退出房间，不留下半加入的连接
		g.hub.Leave(s.ID())
		s.close()
		return classify(EventOpenNote, req.NoteID, err)
	}

	g.hub.SendTo(s.ID(), EventNoteOpened, NoteOpened{
		Content: content,
		NoteID:  req.NoteID,
		UserID:  userID,
	})
	s.open(req.NoteID, userID)
	return nil
}

func (g *Gateway) contentChange(s *Session, raw json.RawMessage) *Failure {
	var req ContentChangeRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return fail(KindValidation, EventContentChange, "", ErrBadPayload)
	}
	if open, _ := s.State(); open == "" || open != req.NoteID {
		return fail(KindValidation, EventContentChange, req.NoteID, ErrNoteNotOpen)
	}

	ctx, cancel := g.callContext()
	defer cancel()

	// 每次编辑都重新走完整授权，中途被移出 allowedUsers 立即生效
	userID, err := g.guard.Authorize(ctx, req.NoteID, req.Token)
	if err != nil {
		return classify(EventContentChange, req.NoteID, err)
	}

	n := utf8.RuneCountInString(req.Content)
	if n >= g.opt.MaxContentLength {
		return fail(KindValidation, EventContentChange, req.NoteID, ErrContentTooLong)
	}

	if err := g.store.UpdateContent(ctx, req.NoteID, req.Content); err != nil {
		return classify(EventContentChange, req.NoteID, err)
	}

	if err := g.cache.Set(ctx, req.NoteID, req.Content); err != nil {
		// 已经落库，缓存失效后由读路径回源，广播照常进行
		g.log.Error("content cache write failed", zap.String("note", req.NoteID), zap.Error(err))
		if err := g.cache.Delete(ctx, req.NoteID); err != nil {
			g.log.Error("content cache invalidate failed", zap.String("note", req.NoteID), zap.Error(err))
		}
	}

	g.hub.BroadcastExcluding(req.NoteID, s.ID(), EventContentUpdate, ContentUpdate{
		Content: req.Content,
		NoteID:  req.NoteID,
	})

	if g.pub != nil {
		evt := NoteEvent{
			EventType: EventTypeContentUpdated,
			NoteID:    req.NoteID,
			AuthorID:  userID,
			SessionID: s.ID(),
			Length:    n,
			Content:   req.Content,
			AppliedAt: time.Now().UTC(),
		}
		qctx, qcancel := context.WithTimeout(ctx, enqueueWait)
		err := g.pub.Enqueue(qctx, evt)
		qcancel()
		if err != nil {
			g.log.Warn("change feed enqueue failed", zap.String("note", req.NoteID), zap.Error(err))
		}
	}
	return nil
}
