package correlate

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryStorePutGetAndDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Put(ctx, testRecord("r1"), time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, ok, err := store.GetAndDelete(ctx, "r1")
	if err != nil {
		t.Fatalf("get-and-delete: %v", err)
	}
	if !ok {
		t.Fatal("record should be present")
	}
	if got.ChatID != "42" {
		t.Errorf("chat_id: got %q, want %q", got.ChatID, "42")
	}

	_, ok, _ = store.GetAndDelete(ctx, "r1")
	if ok {
		t.Error("record observed twice")
	}
}

func TestMemoryStoreLazyExpiry(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Put(ctx, testRecord("r1"), 10*time.Millisecond); err != nil {
		t.Fatalf("put: %v", err)
	}
	time.Sleep(30 * time.Millisecond)

	if exists, _ := store.Exists(ctx, "r1"); exists {
		t.Error("record survived past TTL")
	}
	if _, ok, _ := store.GetAndDelete(ctx, "r1"); ok {
		t.Error("expired record still resolvable")
	}
}

func TestMemoryStoreConcurrentGetAndDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Put(ctx, testRecord("r1"), time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}

	const racers = 16
	var wg sync.WaitGroup
	hits := make(chan bool, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, _ := store.GetAndDelete(ctx, "r1")
			hits <- ok
		}()
	}
	wg.Wait()
	close(hits)

	winners := 0
	for ok := range hits {
		if ok {
			winners++
		}
	}
	if winners != 1 {
		t.Errorf("winners: got %d, want exactly 1", winners)
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Put(ctx, testRecord("r1"), time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Delete(ctx, "r1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if exists, _ := store.Exists(ctx, "r1"); exists {
		t.Error("record still present after delete")
	}
}
