package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/itemdesk/internal/itemstore"
	"github.com/starford/itemdesk/internal/models"
)

func drain(ch chan []byte) []string {
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func countType(msgs []string, typ string) int {
	n := 0
	for _, m := range msgs {
		if strings.Contains(m, "event: "+typ+"\n") {
			n++
		}
	}
	return n
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "custom", Data: map[string]string{"k": "v"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.HasPrefix(s, "id: 1\n") {
			t.Errorf("missing sequence id in %q", s)
		}
		if !strings.Contains(s, "event: custom") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"k":"v"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestNotify_InvalidateThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	it := models.Item{ID: 7, Name: "seven", Priority: models.PriorityLow}
	b.Notify(itemstore.Change{Kind: itemstore.ChangeCreated, Item: it})
	b.Notify(itemstore.Change{Kind: itemstore.ChangeUpdated, Item: it})
	b.Notify(itemstore.Change{Kind: itemstore.ChangeDeleted, Item: it})

	time.Sleep(50 * time.Millisecond)
	msgs := drain(ch)

	for _, typ := range []string{TypeItemCreated, TypeItemUpdated, TypeItemDeleted} {
		if got := countType(msgs, typ); got != 1 {
			t.Errorf("%s events = %d, want 1", typ, got)
		}
	}
	if got := countType(msgs, TypeListInvalidated); got != 1 {
		t.Errorf("list.invalidated events = %d, want 1 (throttled)", got)
	}
	if !strings.Contains(msgs[0], `"id":7`) || !strings.Contains(msgs[0], `"name":"seven"`) {
		t.Errorf("created payload = %q", msgs[0])
	}
}

func TestNotify_ReloadAlwaysInvalidates(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Notify(itemstore.Change{Kind: itemstore.ChangeCreated, Item: models.Item{ID: 1}})
	b.Notify(itemstore.Change{Kind: itemstore.ChangeReloaded})

	time.Sleep(50 * time.Millisecond)
	msgs := drain(ch)
	if got := countType(msgs, TypeItemsReloaded); got != 1 {
		t.Errorf("items.reloaded events = %d, want 1", got)
	}
	if got := countType(msgs, TypeListInvalidated); got != 2 {
		t.Errorf("list.invalidated events = %d, want 2", got)
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100*time.Millisecond, WithKeepAlive(0))
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.Notify(itemstore.Change{Kind: itemstore.ChangeDeleted, Item: models.Item{ID: 3}})
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: item.deleted") {
		t.Errorf("handler output missing event: %q", body)
	}
	if got := w.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("content type = %q", got)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestSSEHandler_KeepAlive(t *testing.T) {
	b := NewBroker(time.Second, WithKeepAlive(20*time.Millisecond))
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	b.ServeHTTP(w, req)

	if !strings.Contains(w.Body.String(), ": ping") {
		t.Errorf("expected keep-alive ping, got %q", w.Body.String())
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Buffer holds 64; the rest must be dropped without blocking.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	b.Publish(Event{Type: "x"})
	b.Notify(itemstore.Change{Kind: itemstore.ChangeUpdated})
}
