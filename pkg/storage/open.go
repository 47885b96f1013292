package storage

import (
	"fmt"
	"strings"
)

const (
	BackendLocal = "local"
	BackendMinio = "minio"
)

// Config selects and configures a ContentStore backend.
type Config struct {
	Backend        string
	FolderPath     string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
}

// Open builds the configured backend. An empty backend means local disk.
func Open(cfg Config) (ContentStore, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendLocal:
		path := cfg.FolderPath
		if strings.TrimSpace(path) == "" {
			path = DefaultFolderPath
		}
		return NewFileStore(path)
	case BackendMinio:
		return NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
