package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

type NodeKind string

const (
	KindFolder NodeKind = "folder"
	KindFile   NodeKind = "file"
	KindImage  NodeKind = "image"
)

// ParseNodeKind accepts the three wire names of a node type.
func ParseNodeKind(raw string) (NodeKind, bool) {
	switch k := NodeKind(raw); k {
	case KindFolder, KindFile, KindImage:
		return k, true
	default:
		return "", false
	}
}

// HasContent reports whether nodes of this kind carry bytes in the content store.
func (k NodeKind) HasContent() bool {
	return k == KindFile || k == KindImage
}

// ErrInvalidParent is returned when a parentId value is neither the root
// sentinel nor a folder id.
var ErrInvalidParent = errors.New("invalid parentId")

// rootWire is the wire value of the top-level parent.
const rootWire = "0"

// Parent is either the root of a user's tree or a folder id. The zero value is Root.
type Parent struct {
	folderID string
}

// Root is the top-level parent.
var Root = Parent{}

// InFolder returns a parent pointing at the folder with the given id.
// An empty id or the root sentinel yields Root.
func InFolder(id string) Parent {
	return ParseParent(id)
}

// ParseParent reads the textual form used in query strings and storage.
func ParseParent(raw string) Parent {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == rootWire {
		return Root
	}
	return Parent{folderID: raw}
}

func (p Parent) IsRoot() bool { return p.folderID == "" }

// FolderID returns the parent folder id, false for Root.
func (p Parent) FolderID() (string, bool) {
	return p.folderID, p.folderID != ""
}

// String returns "0" for Root and the folder id otherwise.
func (p Parent) String() string {
	if p.IsRoot() {
		return rootWire
	}
	return p.folderID
}

// MarshalJSON writes Root as the number 0 and folders as their id string.
func (p Parent) MarshalJSON() ([]byte, error) {
	if p.IsRoot() {
		return []byte(rootWire), nil
	}
	return json.Marshal(p.folderID)
}

// UnmarshalJSON accepts null, 0, "0" and "" as Root and any other string
// as a folder id.
func (p *Parent) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(data) {
	case "null", rootWire:
		*p = Root
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return ErrInvalidParent
	}
	*p = ParseParent(s)
	return nil
}

type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	PasswordDigest string    `json:"-"`
	CreatedAt      time.Time `json:"-"`
}

// FileNode is a folder, file or image in a user's tree. ContentRef is set
// exactly when Kind has content.
type FileNode struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"userId"`
	Name       string    `json:"name"`
	Kind       NodeKind  `json:"type"`
	IsPublic   bool      `json:"isPublic"`
	Parent     Parent    `json:"parentId"`
	ContentRef string    `json:"-"`
	CreatedAt  time.Time `json:"-"`
}

// VisibleTo reports whether requesterID may read the node's content.
// Anonymous requesters pass an empty id.
func (n FileNode) VisibleTo(requesterID string) bool {
	return n.IsPublic || (requesterID != "" && requesterID == n.OwnerID)
}

// ThumbnailWidths are the variant widths produced for every image.
var ThumbnailWidths = []int{500, 250, 100}

// IsThumbnailWidth reports whether w is one of ThumbnailWidths.
func IsThumbnailWidth(w int) bool {
	for _, tw := range ThumbnailWidths {
		if tw == w {
			return true
		}
	}
	return false
}

// ThumbnailJob asks the worker to derive variants for one image node.
type ThumbnailJob struct {
	FileID      string    `json:"fileId"`
	UserID      string    `json:"userId"`
	RequestedAt time.Time `json:"requestedAt"`
}

type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// JobState is the observable status of a queued job.
type JobState struct {
	ID        string    `json:"id"`
	FileID    string    `json:"fileId"`
	UserID    string    `json:"userId"`
	Status    JobStatus `json:"status"`
	Attempts  int       `json:"attempts"`
	ErrorKind string    `json:"errorKind,omitempty"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Stats is the global counter pair served on /stats.
type Stats struct {
	Users int64 `json:"users"`
	Files int64 `json:"files"`
}

// Health reports reachability of the two backing stores.
type Health struct {
	SessionStoreAlive  bool `json:"sessionStoreAlive"`
	MetadataStoreAlive bool `json:"metadataStoreAlive"`
}
