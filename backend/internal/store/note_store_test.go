package store

import (
	"errors"
	"fmt"
	"slices"
	"testing"

	mysqldriver "github.com/go-sql-driver/mysql"

	"notecollab/backend/internal/entity"
)

func TestIsDuplicate(t *testing.T) {
	dup := &mysqldriver.MySQLError{Number: errDuplicateEntry, Message: "Duplicate entry 'plan' for key 'name'"}
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"duplicate", dup, true},
		{"wrapped duplicate", fmt.Errorf("create: %w", dup), true},
		{"other mysql error", &mysqldriver.MySQLError{Number: 1452}, false},
		{"plain error", errors.New("boom"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isDuplicate(tt.err); got != tt.want {
				t.Fatalf("isDuplicate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestToNote(t *testing.T) {
	n := toNote(&entity.Note{
		NoteID:  "n1",
		Name:    "plan",
		Content: "body",
		OwnerID: "alice",
		Members: []entity.NoteMember{{NoteID: "n1", UserID: "alice"}, {NoteID: "n1", UserID: "bob"}},
	})
	if n.NoteID != "n1" || n.Content != "body" || n.OwnerID != "alice" {
		t.Fatalf("toNote() = %+v", n)
	}
	if !slices.Equal(n.AllowedUsers, []string{"alice", "bob"}) {
		t.Fatalf("allowed = %v", n.AllowedUsers)
	}
	if !n.Allows("bob") || n.Allows("carol") || n.Allows("") {
		t.Fatal("Allows() mismatch")
	}
}
