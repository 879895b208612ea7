package ws

import (
	"sync"
	"testing"
	"time"

	"github.com/obsidianstack/licensewatch/server/internal/store"
)

func TestBroadcast_ConcurrentUnregister(t *testing.T) {
	h := New(store.New(nil), time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 500; i++ {
		c := &client{send: make(chan []byte, sendBufSize)}
		h.register(c)

		wg.Add(2)
		go func() {
			defer wg.Done()
			h.unregister(c)
		}()
		go func() {
			defer wg.Done()
			h.broadcast()
		}()
	}
	wg.Wait()

	if n := h.Count(); n != 0 {
		t.Errorf("clients left = %d, want 0", n)
	}
}

func TestBroadcast_DropsSlowClient(t *testing.T) {
	h := New(store.New(nil), time.Hour)
	slow := &client{send: make(chan []byte)} // unbuffered, nobody reading
	fast := &client{send: make(chan []byte, 1)}
	h.register(slow)
	h.register(fast)

	h.broadcast()

	if n := h.Count(); n != 1 {
		t.Fatalf("clients = %d, want 1", n)
	}
	if _, ok := <-slow.send; ok {
		t.Error("slow client channel still open")
	}
	select {
	case msg := <-fast.send:
		if len(msg) == 0 {
			t.Error("empty broadcast")
		}
	default:
		t.Error("fast client got nothing")
	}
}
