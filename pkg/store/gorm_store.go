package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"filesmanager/pkg/domain"
)

const migrateLockID int64 = 51966204

// sqliteScheme selects the embedded SQLite driver instead of Postgres.
const sqliteScheme = "sqlite://"

// GormStore implements Store using GORM on Postgres or SQLite.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the database named by dsn and runs auto-migrations.
// DSNs starting with sqlite:// open a SQLite file (":memory:" works too);
// anything else is handed to the Postgres driver.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	dialector, isPostgres := openDialector(dsn)
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog, TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	migrate := func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&UserModel{}, &NodeModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}
	if isPostgres {
		err = withMigrationLock(db, migrate)
	} else {
		err = migrate(db)
	}
	if err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func openDialector(dsn string) (gorm.Dialector, bool) {
	if path, ok := strings.CutPrefix(dsn, sqliteScheme); ok {
		return sqlite.Open(path), false
	}
	return postgres.Open(dsn), true
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// CreateUser inserts a new user. A taken email yields ErrDuplicateEmail.
func (s *GormStore) CreateUser(ctx context.Context, u domain.User) error {
	model := userToModel(u)
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(ctx context.Context, email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(ctx context.Context, id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

func (s *GormStore) UserCount(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&UserModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CreateNode inserts a node. Nodes are never rewritten, so a conflicting id
// is left untouched.
func (s *GormStore) CreateNode(ctx context.Context, n domain.FileNode) error {
	model := nodeToModel(n)
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&model).Error
}

func (s *GormStore) GetNode(ctx context.Context, id string) (domain.FileNode, bool, error) {
	var model NodeModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.FileNode{}, false, nil
		}
		return domain.FileNode{}, false, err
	}
	return nodeFromModel(model), true, nil
}

// ListChildren pages through a single directory level.
func (s *GormStore) ListChildren(ctx context.Context, ownerID string, parent domain.Parent, offset, limit int) ([]domain.FileNode, error) {
	parentID, _ := parent.FolderID()
	var models []NodeModel
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND parent_id = ?", ownerID, parentID).
		Order("created_at ASC").
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	res := make([]domain.FileNode, 0, len(models))
	for _, m := range models {
		res = append(res, nodeFromModel(m))
	}
	return res, nil
}

// SetNodeVisibility updates is_public. Setting the current value again is
// not an error.
func (s *GormStore) SetNodeVisibility(ctx context.Context, id string, isPublic bool) error {
	res := s.db.WithContext(ctx).Model(&NodeModel{}).Where("id = ?", id).Update("is_public", isPublic)
	if res.Error != nil {
		return res.Error
	}
	// Both drivers count matched rows, so an unchanged value still reports 1.
	if res.RowsAffected == 0 {
		return ErrNodeNotFound
	}
	return nil
}

func (s *GormStore) NodeCount(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&NodeModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Ping checks the database connection.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:             u.ID,
		Email:          u.Email,
		PasswordDigest: u.PasswordDigest,
		CreatedAt:      u.CreatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:             m.ID,
		Email:          m.Email,
		PasswordDigest: m.PasswordDigest,
		CreatedAt:      m.CreatedAt,
	}
}

func nodeToModel(n domain.FileNode) NodeModel {
	parentID, _ := n.Parent.FolderID()
	return NodeModel{
		ID:         n.ID,
		OwnerID:    n.OwnerID,
		ParentID:   parentID,
		Name:       n.Name,
		Kind:       string(n.Kind),
		IsPublic:   n.IsPublic,
		ContentRef: n.ContentRef,
		CreatedAt:  n.CreatedAt,
	}
}

func nodeFromModel(m NodeModel) domain.FileNode {
	return domain.FileNode{
		ID:         m.ID,
		OwnerID:    m.OwnerID,
		Name:       m.Name,
		Kind:       domain.NodeKind(m.Kind),
		IsPublic:   m.IsPublic,
		Parent:     domain.InFolder(m.ParentID),
		ContentRef: m.ContentRef,
		CreatedAt:  m.CreatedAt,
	}
}
