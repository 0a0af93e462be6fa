package srv

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestWordInputBuffer_PutThenGet(t *testing.T) {
	buf := NewWordInputBuffer()
	id := uuid.New()
	if !buf.Put(id, "apple") {
		t.Fatal("expected Put to succeed on an empty buffer")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	gotID, word, ok := buf.Get(ctx)
	if !ok {
		t.Fatal("expected Get to succeed")
	}
	if gotID != id || word != "apple" {
		t.Fatalf("got (%v, %q), want (%v, apple)", gotID, word, id)
	}
}

func TestWordInputBuffer_PutOverwritesUnconsumedSlot(t *testing.T) {
	buf := NewWordInputBuffer()
	first := uuid.New()
	second := uuid.New()
	if !buf.Put(first, "apple") {
		t.Fatal("expected first Put to succeed")
	}
	if buf.Put(second, "banana") {
		t.Fatal("expected second Put to report it overwrote the first")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	gotID, word, ok := buf.Get(ctx)
	if !ok || gotID != second || word != "banana" {
		t.Fatalf("got (%v, %q, %v), want last writer (%v, banana, true)", gotID, word, ok, second)
	}
}

func TestWordInputBuffer_GetTimesOutOnEmptyBuffer(t *testing.T) {
	buf := NewWordInputBuffer()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, ok := buf.Get(ctx)
	if ok {
		t.Fatal("expected Get to fail on an empty, cancelled context")
	}
}

func TestWordInputBuffer_Drain(t *testing.T) {
	buf := NewWordInputBuffer()
	id := uuid.New()
	buf.Put(id, "apple")
	buf.Drain()
	if !buf.Put(uuid.New(), "banana") {
		t.Fatal("expected Put to succeed after Drain frees the slot")
	}
}
