package store

import "time"

// GORM models used for persistence.
type UserModel struct {
	ID             string    `gorm:"primaryKey"`
	Email          string    `gorm:"uniqueIndex;not null"`
	PasswordDigest string    `gorm:"not null"`
	CreatedAt      time.Time `gorm:"not null"`
}

// NodeModel stores folders, files and images. ParentID is empty for nodes
// at the root; ContentRef is empty for folders.
type NodeModel struct {
	ID         string    `gorm:"primaryKey"`
	OwnerID    string    `gorm:"not null;index:idx_node_owner_parent,priority:1"`
	ParentID   string    `gorm:"not null;default:'';index:idx_node_owner_parent,priority:2"`
	Name       string    `gorm:"not null"`
	Kind       string    `gorm:"not null"`
	IsPublic   bool      `gorm:"not null;default:false"`
	ContentRef string    `gorm:"not null;default:''"`
	CreatedAt  time.Time `gorm:"not null;index"`
}
