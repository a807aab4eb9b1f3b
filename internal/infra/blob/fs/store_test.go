package fs

import (
	"context"
	"io"
	"strings"
	"testing"

	"blockcore/internal/infra/blob/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func TestFSPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	info, err := s.Put(ctx, "projects/p1/cloud-variables.json", strings.NewReader(`{"x":1}`), core.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"sync_id": "s1"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 7 || info.ETag == "" {
		t.Fatalf("put info: %+v", info)
	}

	got, rc, err := s.Get(ctx, "projects/p1/cloud-variables.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != `{"x":1}` {
		t.Fatalf("content: %q", data)
	}
	if got.ContentType != "application/json" || got.Metadata["sync_id"] != "s1" {
		t.Fatalf("sidecar metadata: %+v", got)
	}
}

func TestFSPutOverwrites(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	if _, err := s.Put(ctx, "key", strings.NewReader("first"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := s.Put(ctx, "key", strings.NewReader("second"), core.PutOptions{}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	_, rc, err := s.Get(ctx, "key")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "second" {
		t.Fatalf("overwrite lost: %q", data)
	}
}

func TestFSDeleteAndList(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	for _, key := range []string{"projects/p1/a", "projects/p1/b", "other/c"} {
		if _, err := s.Put(ctx, key, strings.NewReader("x"), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}

	infos, err := s.List(ctx, "projects/p1/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 || infos[0].Key != "projects/p1/a" {
		t.Fatalf("list: %+v", infos)
	}

	if ok, err := s.Delete(ctx, "projects/p1/a"); err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	if ok, _ := s.Delete(ctx, "projects/p1/a"); ok {
		t.Fatal("second delete must report false")
	}
	if _, err := s.Head(ctx, "projects/p1/a"); err == nil {
		t.Fatal("head after delete must fail")
	}
}

func TestFSRejectsTraversalKeys(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	for _, key := range []string{"", "../escape", "/absolute", "a/../../b"} {
		if _, err := s.Put(ctx, key, strings.NewReader("x"), core.PutOptions{}); err == nil {
			t.Fatalf("key %q accepted", key)
		}
	}
}
