package audit

import (
	"context"
	"testing"

	"github.com/smartcs/smartcs-backend/internal"
)

func TestMemoryRecorder(t *testing.T) {
	r, err := NewRecorder(StoreTypeMemory)
	if err != nil {
		t.Fatal(err)
	}

	e := Stamp(Entry{
		SessionID: "s1",
		Role:      internal.RoleAssistant,
		Content:   "好的",
		Source:    "fixed",
		Category:  "greeting",
	})
	if e.ID == "" || e.CreatedAt.IsZero() {
		t.Fatal("Stamp must fill in id and timestamp")
	}

	if err := r.Record(context.Background(), e); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	mem := r.(*memoryRecorder)
	entries := mem.Entries("s1")
	if len(entries) != 1 || entries[0].Content != "好的" {
		t.Fatalf("unexpected entries %+v", entries)
	}
	if len(mem.Entries("other")) != 0 {
		t.Fatal("entries leaked across sessions")
	}
}

func TestNopRecorder(t *testing.T) {
	r, err := NewRecorder(StoreTypeNop)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Record(context.Background(), Entry{SessionID: "s1"}); err != nil {
		t.Fatalf("nop recorder must never fail: %v", err)
	}
}

func TestFactoryValidation(t *testing.T) {
	if _, err := NewRecorder(StoreType("bogus")); err != ErrInvalidStoreType {
		t.Fatalf("expected ErrInvalidStoreType, got %v", err)
	}
	if _, err := NewRecorder(StoreTypeRedis); err != ErrInvalidConfig {
		t.Fatalf("redis without a client: expected ErrInvalidConfig, got %v", err)
	}
}
