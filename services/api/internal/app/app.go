package app

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"filesmanager/internal/metrics"
	"filesmanager/internal/util"
	"filesmanager/pkg/auth"
	"filesmanager/pkg/domain"
	"filesmanager/pkg/storage"
	"filesmanager/pkg/store"
)

// PageSize is the number of nodes per listing page.
const PageSize = 20

// JobProducer hands thumbnail work to the worker fleet.
type JobProducer interface {
	Enqueue(ctx context.Context, job domain.ThumbnailJob) (domain.JobState, error)
}

// Config wires the collaborators of App. All fields are required.
type Config struct {
	Store    store.Store
	Sessions store.SessionStore
	Content  storage.ContentStore
	Jobs     JobProducer
}

// App holds the token auth manager and the file metadata tree.
type App struct {
	store    store.Store
	sessions store.SessionStore
	content  storage.ContentStore
	jobs     JobProducer
	now      func() time.Time
}

// New constructs the application from already opened backends.
func New(cfg Config) (*App, error) {
	switch {
	case cfg.Store == nil:
		return nil, errors.New("metadata store required")
	case cfg.Sessions == nil:
		return nil, errors.New("session store required")
	case cfg.Content == nil:
		return nil, errors.New("content store required")
	case cfg.Jobs == nil:
		return nil, errors.New("job producer required")
	}
	return &App{
		store:    cfg.Store,
		sessions: cfg.Sessions,
		content:  cfg.Content,
		jobs:     cfg.Jobs,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Register creates a user with the legacy password digest.
func (a *App) Register(ctx context.Context, email, password string) (domain.User, error) {
	if email == "" {
		return domain.User{}, ErrMissingEmail
	}
	if password == "" {
		return domain.User{}, ErrMissingPassword
	}
	_, exists, err := a.store.GetUserByEmail(ctx, email)
	if err != nil {
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if exists {
		return domain.User{}, ErrAlreadyExists
	}
	user := domain.User{
		ID:             util.NewID(),
		Email:          email,
		PasswordDigest: auth.DigestPassword(password),
		CreatedAt:      a.now(),
	}
	if err := a.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return domain.User{}, ErrAlreadyExists
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// IssueToken checks credentials and opens a session.
func (a *App) IssueToken(ctx context.Context, email, password string) (string, error) {
	user, ok, err := a.store.GetUserByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("lookup user: %w", err)
	}
	if !ok || !auth.CheckPassword(password, user.PasswordDigest) {
		return "", ErrUnauthenticated
	}
	token, err := a.sessions.NewSession(ctx, user.ID)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return token, nil
}

// ValidateToken resolves a token to its user id.
func (a *App) ValidateToken(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrUnauthenticated
	}
	userID, ok, err := a.sessions.GetUserIDByToken(ctx, token)
	if err != nil {
		return "", fmt.Errorf("lookup session: %w", err)
	}
	if !ok {
		return "", ErrUnauthenticated
	}
	return userID, nil
}

// RevokeToken ends a session. Revoking twice is fine.
func (a *App) RevokeToken(ctx context.Context, token string) error {
	if err := a.sessions.DeleteSession(ctx, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// CurrentUser returns the user behind a validated session.
func (a *App) CurrentUser(ctx context.Context, userID string) (domain.User, error) {
	user, ok, err := a.store.GetUserByID(ctx, userID)
	if err != nil {
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrUnauthenticated
	}
	return user, nil
}

// CreateNodeInput is an upload request. A zero Parent means the root.
type CreateNodeInput struct {
	Name     string
	Type     string
	Parent   domain.Parent
	IsPublic bool
	// Data is the base64 encoded content; ignored for folders.
	Data string
}

// CreateNode validates and stores a folder, file or image. Image uploads
// also schedule thumbnail generation.
func (a *App) CreateNode(ctx context.Context, ownerID string, in CreateNodeInput) (domain.FileNode, error) {
	if in.Name == "" {
		return domain.FileNode{}, ErrMissingName
	}
	kind, ok := domain.ParseNodeKind(in.Type)
	if !ok {
		return domain.FileNode{}, ErrMissingType
	}
	if in.Data == "" && kind.HasContent() {
		return domain.FileNode{}, ErrMissingData
	}
	if parentID, ok := in.Parent.FolderID(); ok {
		parent, found, err := a.store.GetNode(ctx, parentID)
		if err != nil {
			return domain.FileNode{}, fmt.Errorf("lookup parent: %w", err)
		}
		if !found || parent.OwnerID != ownerID {
			return domain.FileNode{}, ErrParentNotFound
		}
		if parent.Kind != domain.KindFolder {
			return domain.FileNode{}, ErrParentNotFolder
		}
	}

	node := domain.FileNode{
		ID:        util.NewID(),
		OwnerID:   ownerID,
		Name:      in.Name,
		Kind:      kind,
		IsPublic:  in.IsPublic,
		Parent:    in.Parent,
		CreatedAt: a.now(),
	}
	if kind.HasContent() {
		data, err := decodeBase64(in.Data)
		if err != nil {
			return domain.FileNode{}, ErrInvalidData
		}
		if len(data) == 0 {
			return domain.FileNode{}, ErrMissingData
		}
		node.ContentRef = util.NewUUID()
		if err := a.content.Put(ctx, node.ContentRef, data, contentTypeByName(in.Name)); err != nil {
			return domain.FileNode{}, fmt.Errorf("write content: %w", err)
		}
	}
	if err := a.store.CreateNode(ctx, node); err != nil {
		if node.ContentRef != "" {
			if derr := a.content.Delete(ctx, node.ContentRef); derr != nil {
				util.LoggerFromContext(ctx).Warn("orphaned content left behind", "key", node.ContentRef, "err", derr)
			}
		}
		return domain.FileNode{}, fmt.Errorf("save node: %w", err)
	}
	metrics.NodeCreated(string(kind))

	if kind == domain.KindImage {
		a.enqueueThumbnails(ctx, node)
	}
	return node, nil
}

// enqueueThumbnails never fails the upload: the original is already stored
// and readable, only its variants will be missing.
func (a *App) enqueueThumbnails(ctx context.Context, node domain.FileNode) {
	job, err := a.jobs.Enqueue(ctx, domain.ThumbnailJob{
		FileID:      node.ID,
		UserID:      node.OwnerID,
		RequestedAt: a.now(),
	})
	logger := util.LoggerFromContext(ctx)
	if err != nil {
		logger.Error("enqueue thumbnail job failed", "file_id", node.ID, "err", err)
		return
	}
	logger.Info("thumbnail job enqueued", "file_id", node.ID, "job_id", job.ID)
}

// GetNode returns a node owned by requesterID.
func (a *App) GetNode(ctx context.Context, requesterID, id string) (domain.FileNode, error) {
	node, ok, err := a.store.GetNode(ctx, id)
	if err != nil {
		return domain.FileNode{}, fmt.Errorf("lookup node: %w", err)
	}
	if !ok || node.OwnerID != requesterID {
		return domain.FileNode{}, ErrNotFound
	}
	return node, nil
}

// ListChildren returns one page of requesterID's nodes directly under parent.
// Negative pages are read as the first page.
func (a *App) ListChildren(ctx context.Context, requesterID string, parent domain.Parent, page int) ([]domain.FileNode, error) {
	if page < 0 {
		page = 0
	}
	// No node can sit that far out; the offset would overflow.
	if page > math.MaxInt/PageSize {
		return []domain.FileNode{}, nil
	}
	nodes, err := a.store.ListChildren(ctx, requesterID, parent, page*PageSize, PageSize)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	return nodes, nil
}

// SetVisibility publishes or unpublishes a node. Repeating a call has no
// further effect.
func (a *App) SetVisibility(ctx context.Context, requesterID, id string, isPublic bool) (domain.FileNode, error) {
	node, err := a.GetNode(ctx, requesterID, id)
	if err != nil {
		return domain.FileNode{}, err
	}
	if node.IsPublic == isPublic {
		return node, nil
	}
	if err := a.store.SetNodeVisibility(ctx, id, isPublic); err != nil {
		if errors.Is(err, store.ErrNodeNotFound) {
			return domain.FileNode{}, ErrNotFound
		}
		return domain.FileNode{}, fmt.Errorf("update visibility: %w", err)
	}
	node.IsPublic = isPublic
	return node, nil
}

// Content is a blob ready to be served.
type Content struct {
	Name        string
	ContentType string
	Data        []byte
}

// ReadContent returns the bytes of a node, or of one of its thumbnails when
// width is non-zero. requesterID is empty for anonymous callers. Private
// nodes of other users are reported exactly like missing ones.
func (a *App) ReadContent(ctx context.Context, requesterID, id string, width int) (Content, error) {
	node, ok, err := a.store.GetNode(ctx, id)
	if err != nil {
		return Content{}, fmt.Errorf("lookup node: %w", err)
	}
	if !ok || !node.VisibleTo(requesterID) {
		return Content{}, ErrNotFound
	}
	if node.Kind == domain.KindFolder {
		return Content{}, ErrFolderHasNoContent
	}
	key := node.ContentRef
	if width != 0 {
		if !domain.IsThumbnailWidth(width) {
			return Content{}, ErrNotFound
		}
		key = storage.VariantKey(key, width)
	}
	data, err := a.content.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return Content{}, ErrNotFound
	}
	if err != nil {
		return Content{}, fmt.Errorf("read content: %w", err)
	}

	contentType := ""
	if width == 0 {
		contentType = contentTypeByName(node.Name)
	}
	if contentType == "" {
		// Variants may be re-encoded, so trust the bytes over the name.
		contentType = mimetype.Detect(data).String()
	}
	return Content{Name: node.Name, ContentType: contentType, Data: data}, nil
}

// Status reports whether both backing stores answer.
func (a *App) Status(ctx context.Context) domain.Health {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return domain.Health{
		SessionStoreAlive:  a.sessions.Ping(ctx) == nil,
		MetadataStoreAlive: a.store.Ping(ctx) == nil,
	}
}

// Stats counts users and nodes.
func (a *App) Stats(ctx context.Context) (domain.Stats, error) {
	users, err := a.store.UserCount(ctx)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("count users: %w", err)
	}
	files, err := a.store.NodeCount(ctx)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("count nodes: %w", err)
	}
	return domain.Stats{Users: users, Files: files}, nil
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if data, err := base64.StdEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}

func contentTypeByName(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return ""
	}
	return mime.TypeByExtension(ext)
}
