package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"notecollab/backend/internal/auth"
	"notecollab/backend/internal/cache"
	"notecollab/backend/internal/notes"
)

// NoteHandlers 笔记管理接口，所有路由都挂在 auth.Middleware 之后
type NoteHandlers struct {
	store   notes.Store
	users   notes.UserDirectory
	cache   cache.ContentCache
	log     *zap.Logger
	timeout time.Duration
}

func NewNoteHandlers(store notes.Store, users notes.UserDirectory, c cache.ContentCache, log *zap.Logger) *NoteHandlers {
	if log == nil {
		log = zap.NewNop()
	}
	return &NoteHandlers{store: store, users: users, cache: c, log: log, timeout: 3 * time.Second}
}

func (h *NoteHandlers) Register(r gin.IRoutes) {
	r.POST("/createNote", h.CreateNote)
	r.POST("/deleteNote", h.DeleteNote)
	r.POST("/addUser", h.AddUser)
	r.POST("/removeUser", h.RemoveUser)
}

type createNoteRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Content     string `json:"content"`
}

type deleteNoteRequest struct {
	NoteID string `json:"noteId" binding:"required"`
}

type addUserRequest struct {
	NoteID    string `json:"noteId" binding:"required"`
	UserToAdd string `json:"userToAdd" binding:"required,email"`
}

type removeUserRequest struct {
	NoteID       string `json:"noteId" binding:"required"`
	UserToRemove string `json:"userToRemove" binding:"required,email"`
}

func (h *NoteHandlers) CreateNote(c *gin.Context) {
	userID := c.GetString(auth.ContextUserID)
	var req createNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if utf8.RuneCountInString(req.Content) > notes.MaxContentLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content too long"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	note := &notes.Note{
		NoteID:       uuid.NewString(),
		Name:         req.Name,
		Description:  req.Description,
		Content:      req.Content,
		OwnerID:      userID,
		AllowedUsers: []string{userID},
	}
	if err := h.store.Create(ctx, note); err != nil {
		h.fail(c, "createNote", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Note created successfully", "noteId": note.NoteID})
}

func (h *NoteHandlers) DeleteNote(c *gin.Context) {
	var req deleteNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	if !h.requireOwner(ctx, c, req.NoteID) {
		return
	}
	if err := h.store.Delete(ctx, req.NoteID); err != nil {
		h.fail(c, "deleteNote", err)
		return
	}
	if err := h.cache.Delete(ctx, req.NoteID); err != nil {
		// 缓存最多再存活一个 TTL，删除本身已经成功
		h.log.Warn("content cache delete failed", zap.String("note", req.NoteID), zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"message": "Note deleted successfully", "noteId": req.NoteID})
}

func (h *NoteHandlers) AddUser(c *gin.Context) {
	var req addUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	if !h.requireOwner(ctx, c, req.NoteID) {
		return
	}
	target, err := h.users.FindOne(ctx, req.UserToAdd)
	if err != nil {
		h.fail(c, "addUser", err)
		return
	}
	if err := h.store.AddAllowedUser(ctx, req.NoteID, target); err != nil {
		h.fail(c, "addUser", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User added successfully", "noteId": req.NoteID})
}

func (h *NoteHandlers) RemoveUser(c *gin.Context) {
	var req removeUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	if !h.requireOwner(ctx, c, req.NoteID) {
		return
	}
	target, err := h.users.FindOne(ctx, req.UserToRemove)
	if err != nil {
		h.fail(c, "removeUser", err)
		return
	}
	if err := h.store.RemoveAllowedUser(ctx, req.NoteID, target); err != nil {
		h.fail(c, "removeUser", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User removed successfully", "noteId": req.NoteID})
}

// requireOwner 只有笔记所有者可以删除笔记或修改成员；已写出响应时返回 false
func (h *NoteHandlers) requireOwner(ctx context.Context, c *gin.Context, noteID string) bool {
	note, err := h.store.FindOne(ctx, noteID)
	if err != nil {
		h.fail(c, "findNote", err)
		return false
	}
	if note.OwnerID != c.GetString(auth.ContextUserID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the note owner can do this"})
		return false
	}
	return true
}

func (h *NoteHandlers) fail(c *gin.Context, op string, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("note api failed", zap.String("op", op), zap.Error(err))
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, auth.ErrAuthentication):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrAuthorization), errors.Is(err, notes.ErrOwnerRequired):
		return http.StatusForbidden
	case errors.Is(err, notes.ErrNoteNotFound), errors.Is(err, notes.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, notes.ErrDuplicate), errors.Is(err, notes.ErrAlreadyMember):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
