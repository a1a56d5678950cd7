package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"notecollab/backend/internal/entity"
	"notecollab/backend/internal/notes"
)

type NoteStore struct{ db *gorm.DB }

// 确保 NoteStore 实现了 notes.Store 接口
var _ notes.Store = (*NoteStore)(nil)

func NewNoteStore(db *gorm.DB) *NoteStore {
	return &NoteStore{db: db}
}

func (s *NoteStore) FindOne(ctx context.Context, noteID string) (*notes.Note, error) {
	var n entity.Note
	err := s.db.WithContext(ctx).Preload("Members").Where("note_id = ?", noteID).First(&n).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notes.ErrNoteNotFound
		}
		return nil, fmt.Errorf("find note %s: %w", noteID, err)
	}
	return toNote(&n), nil
}

// UpdateContent 整体覆盖内容（last writer wins）
func (s *NoteStore) UpdateContent(ctx context.Context, noteID string, content string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// MySQL 的 RowsAffected 在内容未变化时为 0，不能用来判断是否存在
		var n entity.Note
		if err := tx.Select("note_id").Where("note_id = ?", noteID).First(&n).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notes.ErrNoteNotFound
			}
			return err
		}
		if err := tx.Model(&entity.Note{}).Where("note_id = ?", noteID).Update("content", content).Error; err != nil {
			return fmt.Errorf("update note %s: %w", noteID, err)
		}
		return nil
	})
}

func (s *NoteStore) Create(ctx context.Context, note *notes.Note) error {
	n := entity.Note{
		NoteID:      note.NoteID,
		Name:        note.Name,
		Description: note.Description,
		Content:     note.Content,
		OwnerID:     note.OwnerID,
		Members:     []entity.NoteMember{{NoteID: note.NoteID, UserID: note.OwnerID}},
	}
	if err := s.db.WithContext(ctx).Create(&n).Error; err != nil {
		if isDuplicate(err) {
			return notes.ErrDuplicate
		}
		return fmt.Errorf("create note: %w", err)
	}
	note.AllowedUsers = []string{note.OwnerID}
	return nil
}

func (s *NoteStore) Delete(ctx context.Context, noteID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("note_id = ?", noteID).Delete(&entity.NoteMember{}).Error; err != nil {
			return err
		}
		res := tx.Where("note_id = ?", noteID).Delete(&entity.Note{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return notes.ErrNoteNotFound
		}
		return nil
	})
}

func (s *NoteStore) AddAllowedUser(ctx context.Context, noteID, userID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n entity.Note
		if err := tx.Select("note_id").Where("note_id = ?", noteID).First(&n).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notes.ErrNoteNotFound
			}
			return err
		}
		if err := tx.Create(&entity.NoteMember{NoteID: noteID, UserID: userID}).Error; err != nil {
			if isDuplicate(err) {
				return notes.ErrAlreadyMember
			}
			return err
		}
		return nil
	})
}

func (s *NoteStore) RemoveAllowedUser(ctx context.Context, noteID, userID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n entity.Note
		if err := tx.Select("note_id", "owner_id").Where("note_id = ?", noteID).First(&n).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notes.ErrNoteNotFound
			}
			return err
		}
		// allowedUsers 必须始终包含 owner
		if n.OwnerID == userID {
			return notes.ErrOwnerRequired
		}
		return tx.Where("note_id = ? AND user_id = ?", noteID, userID).Delete(&entity.NoteMember{}).Error
	})
}

func toNote(n *entity.Note) *notes.Note {
	allowed := make([]string, 0, len(n.Members))
	for _, m := range n.Members {
		allowed = append(allowed, m.UserID)
	}
	return &notes.Note{
		NoteID:       n.NoteID,
		Name:         n.Name,
		Description:  n.Description,
		Content:      n.Content,
		OwnerID:      n.OwnerID,
		AllowedUsers: allowed,
	}
}
