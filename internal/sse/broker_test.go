package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

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

	b.Publish(Event{Type: EventDocumentIngested, Data: map[string]string{"path": "a.py"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: document.ingested") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"path":"a.py"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishDocumentEvent_CatalogThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// First event should trigger catalog.updated.
	b.PublishDocumentEvent("ingested", "a.py")
	// Second event immediately should NOT trigger another catalog.updated.
	b.PublishDocumentEvent("removed", "b.ipynb")

	// Drain and count events.
	time.Sleep(50 * time.Millisecond)
	catalogCount := 0
	docCount := 0
loop:
	for {
		select {
		case msg := <-ch:
			s := string(msg)
			if strings.Contains(s, EventCatalogUpdated) {
				catalogCount++
			} else {
				docCount++
			}
		default:
			break loop
		}
	}

	if docCount != 2 {
		t.Errorf("document events = %d, want 2", docCount)
	}
	if catalogCount != 1 {
		t.Errorf("catalog events = %d, want 1 (throttled)", catalogCount)
	}
}

func TestPublishDocumentEvent_FailedSkipsCatalog(t *testing.T) {
	b := NewBroker(time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishDocumentEvent("failed", "bad.ipynb")

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: document.failed") || !strings.Contains(s, `"path":"bad.ipynb"`) {
			t.Errorf("unexpected message %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}

	time.Sleep(50 * time.Millisecond)
	select {
	case msg := <-ch:
		t.Errorf("unexpected extra message %q", msg)
	default:
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	// Start handler in background.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.Publish(Event{Type: EventDocumentRemoved, Data: map[string]string{"path": "x.py"}})
	time.Sleep(50 * time.Millisecond)

	// Cancel context to disconnect.
	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: document.removed") {
		t.Errorf("handler output missing event: %q", body)
	}

	// Client should be cleaned up.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Fill buffer (capacity 64) and then one more should not block.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
	// If we reach here without deadlock, the test passes.
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

	// Should be safe no-op after close.
	b.Publish(Event{Type: EventDocumentRemoved, Data: map[string]string{"path": "x.py"}})
	b.PublishDocumentEvent("removed", "x.py")
}

func TestSubscribeFiltersByType(t *testing.T) {
	b := NewBroker(time.Millisecond)
	defer b.Close()
	graded := b.Subscribe(EventSubmissionGraded)
	defer b.Unsubscribe(graded)
	all := b.Subscribe()
	defer b.Unsubscribe(all)

	next := func(ch chan []byte) string {
		t.Helper()
		select {
		case msg := <-ch:
			return string(msg)
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for frame")
			return ""
		}
	}

	b.PublishDocumentEvent("ingested", "a.py")
	for i, want := range []string{"id: 1\nevent: document.ingested", "id: 2\nevent: catalog.updated"} {
		if msg := next(all); !strings.HasPrefix(msg, want) {
			t.Errorf("frame %d = %q, want prefix %q", i, msg, want)
		}
	}
	b.Publish(Event{Type: EventSubmissionGraded, Data: map[string]string{"path": "a.py"}})
	if msg := next(all); !strings.HasPrefix(msg, "id: 3\nevent: submission.graded") {
		t.Errorf("frame 3 = %q", msg)
	}

	select {
	case msg := <-graded:
		if !strings.Contains(string(msg), "event: submission.graded") {
			t.Errorf("filtered client got %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for graded event")
	}
	select {
	case msg := <-graded:
		t.Errorf("filtered client got extra %q", msg)
	case <-time.After(50 * time.Millisecond):
	}

}

func TestSSEHandler_TypesQueryAndKeepAlive(t *testing.T) {
	b := NewBroker(time.Second)
	b.keepAlive = 20 * time.Millisecond
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/events?types=document.removed,%20catalog.updated", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	b.Publish(Event{Type: EventDocumentIngested, Data: map[string]string{"path": "skip.py"}})
	b.Publish(Event{Type: EventDocumentRemoved, Data: map[string]string{"path": "x.py"}})
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := w.Body.String()
	if !strings.HasPrefix(body, "retry: 3000\n\n") {
		t.Errorf("missing retry hint: %q", body)
	}
	if !strings.Contains(body, "event: document.removed") || strings.Contains(body, "skip.py") {
		t.Errorf("type filter not applied: %q", body)
	}
	if !strings.Contains(body, ": ping\n\n") {
		t.Errorf("missing keepalive: %q", body)
	}
}

func TestParseTypes(t *testing.T) {
	if got := parseTypes(""); got != nil {
		t.Errorf("empty = %v", got)
	}
	got := parseTypes(" a , ,b")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("got %v", got)
	}
}
