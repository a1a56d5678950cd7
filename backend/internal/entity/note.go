package entity

import "time"

type Note struct {
	NoteID      string `gorm:"primaryKey;type:varchar(64)"`
	Name        string `gorm:"type:varchar(255);uniqueIndex"`
	Description string `gorm:"type:text"`
	Content     string `gorm:"type:mediumtext"`
	OwnerID     string `gorm:"type:varchar(64);index"`
	// 允许访问的用户，创建时必含 owner
	Members   []NoteMember `gorm:"foreignKey:NoteID;references:NoteID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type NoteMember struct {
	NoteID    string `gorm:"primaryKey;type:varchar(64)"`
	UserID    string `gorm:"primaryKey;type:varchar(64)"`
	CreatedAt time.Time
}

type User struct {
	UserID      string `gorm:"primaryKey;type:varchar(64)"`
	Email       string `gorm:"type:varchar(255);uniqueIndex"`
	DisplayName string `gorm:"type:varchar(255)"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
