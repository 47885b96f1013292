package store

import (
	"context"
	"errors"

	"filesmanager/pkg/domain"
)

// ErrDuplicateEmail is returned by CreateUser when the email is taken.
var ErrDuplicateEmail = errors.New("email already registered")

// ErrNodeNotFound is returned by mutations that target a missing node.
var ErrNodeNotFound = errors.New("node not found")

// Store persists users and file nodes. Lookups report absence through the
// bool result and reserve the error for backend failures.
type Store interface {
	// users
	CreateUser(ctx context.Context, u domain.User) error
	GetUserByEmail(ctx context.Context, email string) (domain.User, bool, error)
	GetUserByID(ctx context.Context, id string) (domain.User, bool, error)
	UserCount(ctx context.Context) (int64, error)

	// nodes
	CreateNode(ctx context.Context, n domain.FileNode) error
	GetNode(ctx context.Context, id string) (domain.FileNode, bool, error)
	// ListChildren returns ownerID's direct children of parent ordered by
	// creation time then id.
	ListChildren(ctx context.Context, ownerID string, parent domain.Parent, offset, limit int) ([]domain.FileNode, error)
	SetNodeVisibility(ctx context.Context, id string, isPublic bool) error
	NodeCount(ctx context.Context) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// SessionStore maps opaque tokens to user ids with a fixed lifetime.
type SessionStore interface {
	NewSession(ctx context.Context, userID string) (string, error)
	GetUserIDByToken(ctx context.Context, token string) (string, bool, error)
	DeleteSession(ctx context.Context, token string) error
	Ping(ctx context.Context) error
}
