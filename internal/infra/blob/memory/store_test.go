package memory

import (
	"context"
	"io"
	"strings"
	"testing"

	"blockcore/internal/infra/blob/core"
)

func TestMemoryPutGetOverwrite(t *testing.T) {
	ctx := context.Background()
	s := New()

	info, err := s.Put(ctx, "projects/p1/cloud-variables.json", strings.NewReader("first"), core.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"sync_id": "s1"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 5 || info.ContentType != "application/json" {
		t.Fatalf("info: %+v", info)
	}

	if _, err := s.Put(ctx, "projects/p1/cloud-variables.json", strings.NewReader("second"), core.PutOptions{}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, rc, err := s.Get(ctx, "projects/p1/cloud-variables.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "second" {
		t.Fatalf("overwrite lost: %q", data)
	}
	if got.Size != 6 {
		t.Fatalf("overwritten info: %+v", got)
	}
}

func TestMemoryHeadDeleteList(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, key := range []string{"projects/p1/a", "projects/p1/b", "projects/p2/a"} {
		if _, err := s.Put(ctx, key, strings.NewReader("x"), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}

	if _, err := s.Head(ctx, "projects/p1/a"); err != nil {
		t.Fatalf("head: %v", err)
	}
	if _, err := s.Head(ctx, "missing"); err == nil {
		t.Fatal("head of missing key must fail")
	}

	infos, err := s.List(ctx, "projects/p1/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 || infos[0].Key != "projects/p1/a" || infos[1].Key != "projects/p1/b" {
		t.Fatalf("list result: %+v", infos)
	}

	if ok, err := s.Delete(ctx, "projects/p1/a"); err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	if ok, _ := s.Delete(ctx, "projects/p1/a"); ok {
		t.Fatal("second delete must report false")
	}
}

func TestMemoryGetReturnsIsolatedMetadata(t *testing.T) {
	ctx := context.Background()
	s := New()
	if _, err := s.Put(ctx, "k", strings.NewReader("x"), core.PutOptions{Metadata: map[string]string{"a": "1"}}); err != nil {
		t.Fatalf("put: %v", err)
	}
	info, rc, _ := s.Get(ctx, "k")
	rc.Close()
	info.Metadata["a"] = "mutated"
	again, _ := s.Head(ctx, "k")
	if again.Metadata["a"] != "1" {
		t.Fatal("metadata map is shared with callers")
	}
}
