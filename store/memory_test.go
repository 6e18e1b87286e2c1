package store

import (
	"context"
	"testing"
	"time"

	"github.com/rushteam/bizrank/core"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, err := s.Get(ctx, "missing"); !core.IsStoreNotFound(err) {
		t.Fatalf("want not found, got %v", err)
	}

	v := []byte("a")
	if err := s.Set(ctx, "k", v); err != nil {
		t.Fatal(err)
	}
	v[0] = 'z'
	got, err := s.Get(ctx, "k")
	if err != nil || string(got) != "a" {
		t.Fatalf("Get = %q, %v (value must be copied)", got, err)
	}

	if err := s.BatchSet(ctx, map[string][]byte{"x": []byte("1"), "y": []byte("2")}); err != nil {
		t.Fatal(err)
	}
	batch, err := s.BatchGet(ctx, []string{"x", "y", "nope"})
	if err != nil || len(batch) != 2 || string(batch["y"]) != "2" {
		t.Fatalf("BatchGet = %v, %v", batch, err)
	}

	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "k"); !core.IsStoreNotFound(err) {
		t.Errorf("deleted key still present")
	}
}

func TestMemoryStoreTTL(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	_ = s.Set(ctx, "short", []byte("v"), 10)
	_ = s.Set(ctx, "forever", []byte("v"))

	now = now.Add(9 * time.Second)
	if _, err := s.Get(ctx, "short"); err != nil {
		t.Fatalf("expired too early: %v", err)
	}
	now = now.Add(2 * time.Second)
	if _, err := s.Get(ctx, "short"); !core.IsStoreNotFound(err) {
		t.Errorf("want expired, got %v", err)
	}
	if _, err := s.Get(ctx, "forever"); err != nil {
		t.Errorf("no ttl key expired: %v", err)
	}
}

func TestMemoryStoreHash(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_ = s.HSet(ctx, "pins:candle", "3", []byte("0"))
	_ = s.HSet(ctx, "pins:candle", "7", []byte("2"))

	v, err := s.HGet(ctx, "pins:candle", "7")
	if err != nil || string(v) != "2" {
		t.Fatalf("HGet = %q, %v", v, err)
	}
	if _, err := s.HGet(ctx, "pins:candle", "9"); !core.IsStoreNotFound(err) {
		t.Errorf("want not found, got %v", err)
	}
	all, err := s.HGetAll(ctx, "pins:candle")
	if err != nil || len(all) != 2 {
		t.Fatalf("HGetAll = %v, %v", all, err)
	}
	empty, err := s.HGetAll(ctx, "pins:none")
	if err != nil || len(empty) != 0 {
		t.Errorf("HGetAll missing = %v, %v", empty, err)
	}
}
