package cache

import (
	"context"
	"testing"
	"time"

	"github.com/lyricore/lyricore/core/ir"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testDocument(source string) *ir.Document {
	line := ir.Line{StartMS: 0, EndMS: 1000}
	at := line.EnsureTrack(ir.ContentMain)
	at.Content = ir.NewTextTrack("cached line", 0, 1000)
	return &ir.Document{
		Lines:      []ir.Line{line},
		Agents:     ir.NewAgentStore(),
		SourceHash: ir.HashString(source),
	}
}

func TestPutGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	doc := testDocument("source A")

	if err := s.Put(ctx, doc); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	got, ok, err := s.Get(ctx, doc.SourceHash)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if !ok {
		t.Fatal("Get missed a stored document")
	}
	if len(got.Lines) != 1 || got.Lines[0].MainTrack().Content.DisplayText() != "cached line" {
		t.Errorf("cached document = %+v, want the stored one", got)
	}

	if _, ok, err := s.Get(ctx, ir.HashString("other")); err != nil || ok {
		t.Errorf("Get on a miss = ok=%v err=%v, want a clean miss", ok, err)
	}
}

func TestPutOverwrites(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	doc := testDocument("source A")
	if err := s.Put(ctx, doc); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	doc.Lines[0].MainTrack().Content = ir.NewTextTrack("replaced", 0, 1000)
	if err := s.Put(ctx, doc); err != nil {
		t.Fatalf("second Put error: %v", err)
	}

	got, ok, _ := s.Get(ctx, doc.SourceHash)
	if !ok || got.Lines[0].MainTrack().Content.DisplayText() != "replaced" {
		t.Errorf("overwrite lost: %+v", got)
	}
	if n, _ := s.Len(ctx); n != 1 {
		t.Errorf("Len = %d, want 1 after overwrite", n)
	}
}

func TestPutRequiresHash(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, nil); err == nil {
		t.Error("Put accepted a nil document")
	}
	if err := s.Put(ctx, &ir.Document{}); err == nil {
		t.Error("Put accepted a document without a source hash")
	}
}

func TestDeleteAndLen(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a, b := testDocument("a"), testDocument("b")
	for _, doc := range []*ir.Document{a, b} {
		if err := s.Put(ctx, doc); err != nil {
			t.Fatalf("Put error: %v", err)
		}
	}
	if n, _ := s.Len(ctx); n != 2 {
		t.Fatalf("Len = %d, want 2", n)
	}

	if err := s.Delete(ctx, a.SourceHash); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, ok, _ := s.Get(ctx, a.SourceHash); ok {
		t.Error("deleted entry still present")
	}
	if n, _ := s.Len(ctx); n != 1 {
		t.Errorf("Len = %d, want 1 after delete", n)
	}

	// Deleting a missing hash is a no-op.
	if err := s.Delete(ctx, "nope"); err != nil {
		t.Errorf("Delete of a missing hash error: %v", err)
	}
}

func TestPrune(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	doc := testDocument("old")
	if err := s.Put(ctx, doc); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	// Everything was just written, so a generous window keeps it.
	n, err := s.Prune(ctx, time.Hour)
	if err != nil {
		t.Fatalf("Prune error: %v", err)
	}
	if n != 0 {
		t.Errorf("Prune removed %d fresh entries", n)
	}

	// A negative window puts the cutoff in the future and drops everything.
	n, err = s.Prune(ctx, -time.Hour)
	if err != nil {
		t.Fatalf("Prune error: %v", err)
	}
	if n != 1 {
		t.Errorf("Prune removed %d entries, want 1", n)
	}
	if count, _ := s.Len(ctx); count != 0 {
		t.Errorf("Len = %d after pruning everything", count)
	}
}
