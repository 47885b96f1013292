package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParentUnmarshal(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantRoot bool
		wantID   string
		wantErr  bool
	}{
		{name: "number zero", body: `0`, wantRoot: true},
		{name: "string zero", body: `"0"`, wantRoot: true},
		{name: "empty string", body: `""`, wantRoot: true},
		{name: "null", body: `null`, wantRoot: true},
		{name: "folder id", body: `"abc123"`, wantID: "abc123"},
		{name: "other number", body: `7`, wantErr: true},
		{name: "object", body: `{}`, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var p Parent
			err := json.Unmarshal([]byte(tc.body), &p)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidParent) {
					t.Fatalf("expected ErrInvalidParent, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if p.IsRoot() != tc.wantRoot {
				t.Fatalf("IsRoot = %v, want %v", p.IsRoot(), tc.wantRoot)
			}
			if id, _ := p.FolderID(); id != tc.wantID {
				t.Fatalf("folder id = %q, want %q", id, tc.wantID)
			}
		})
	}
}

func TestParentAbsentFieldIsRoot(t *testing.T) {
	var in struct {
		Parent Parent `json:"parentId"`
	}
	if err := json.Unmarshal([]byte(`{}`), &in); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !in.Parent.IsRoot() {
		t.Fatalf("absent parentId should be Root")
	}
}

func TestFileNodeWireShape(t *testing.T) {
	node := FileNode{
		ID:         "n1",
		OwnerID:    "u1",
		Name:       "a.png",
		Kind:       KindImage,
		Parent:     Root,
		ContentRef: "secret-key",
	}
	raw, err := json.Marshal(node)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"id":"n1","userId":"u1","name":"a.png","type":"image","isPublic":false,"parentId":0}`
	if string(raw) != want {
		t.Fatalf("wire shape:\n got %s\nwant %s", raw, want)
	}

	node.Parent = InFolder("f1")
	raw, _ = json.Marshal(node)
	want = `{"id":"n1","userId":"u1","name":"a.png","type":"image","isPublic":false,"parentId":"f1"}`
	if string(raw) != want {
		t.Fatalf("wire shape:\n got %s\nwant %s", raw, want)
	}
}

func TestVisibleTo(t *testing.T) {
	private := FileNode{OwnerID: "u1"}
	if !private.VisibleTo("u1") {
		t.Fatalf("owner should see private node")
	}
	if private.VisibleTo("u2") || private.VisibleTo("") {
		t.Fatalf("private node leaked to non-owner")
	}
	public := FileNode{OwnerID: "u1", IsPublic: true}
	if !public.VisibleTo("") {
		t.Fatalf("public node should be visible anonymously")
	}
}

func TestIsThumbnailWidth(t *testing.T) {
	for _, w := range []int{500, 250, 100} {
		if !IsThumbnailWidth(w) {
			t.Fatalf("%d should be a thumbnail width", w)
		}
	}
	for _, w := range []int{0, 50, 1000} {
		if IsThumbnailWidth(w) {
			t.Fatalf("%d should not be a thumbnail width", w)
		}
	}
}
