package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/virek/vroom/internal/registry"
)

type fakeNotifier struct {
	mu         sync.Mutex
	subs       map[string]registry.PushSubscription
	broadcasts []string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{subs: make(map[string]registry.PushSubscription)}
}

func (f *fakeNotifier) PublicKey() string { return "vapid-public" }

func (f *fakeNotifier) Subscribe(sub registry.PushSubscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[sub.Endpoint] = sub
	return nil
}

func (f *fakeNotifier) Unsubscribe(endpoint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, endpoint)
	return nil
}

func (f *fakeNotifier) Broadcast(title, body string, data map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcasts = append(f.broadcasts, body)
}

func (f *fakeNotifier) broadcastCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.broadcasts)
}

func TestPushEndpointsUnavailableWithoutNotifier(t *testing.T) {
	vendor := &fakeVendor{sessionID: "sess-1"}
	_, r := newTestRouter(vendor, &memRecorder{})

	for _, tc := range []struct {
		method, path string
	}{
		{http.MethodGet, "/api/push/public-key"},
		{http.MethodPost, "/api/push/subscribe"},
		{http.MethodPost, "/api/push/unsubscribe"},
	} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(tc.method, tc.path, nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s %s: status = %d, expected 503", tc.method, tc.path, w.Code)
		}
	}
}

func TestGetPushPublicKey(t *testing.T) {
	vendor := &fakeVendor{sessionID: "sess-1"}
	h, r := newTestRouter(vendor, &memRecorder{})
	h.SetNotifier(newFakeNotifier())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/push/public-key", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp struct {
		PublicKey string `json:"publicKey"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.PublicKey != "vapid-public" {
		t.Fatalf("publicKey = %q", resp.PublicKey)
	}
}

func TestSubscribeAndUnsubscribePush(t *testing.T) {
	vendor := &fakeVendor{sessionID: "sess-1"}
	h, r := newTestRouter(vendor, &memRecorder{})
	notifier := newFakeNotifier()
	h.SetNotifier(notifier)

	body := `{"endpoint":"https://push.example.com/ep-1","keys":{"p256dh":"key","auth":"auth"}}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/push/subscribe", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("subscribe status = %d, body %s", w.Code, w.Body.String())
	}
	if _, ok := notifier.subs["https://push.example.com/ep-1"]; !ok {
		t.Fatalf("subscription not stored")
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/push/unsubscribe", strings.NewReader(`{"endpoint":"https://push.example.com/ep-1"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("unsubscribe status = %d, body %s", w.Code, w.Body.String())
	}
	if len(notifier.subs) != 0 {
		t.Fatalf("subscription should be gone")
	}
}

func TestSubscribePushRejectsPartialKeys(t *testing.T) {
	vendor := &fakeVendor{sessionID: "sess-1"}
	h, r := newTestRouter(vendor, &memRecorder{})
	h.SetNotifier(newFakeNotifier())

	body := `{"endpoint":"https://push.example.com/ep-1","keys":{"p256dh":"key"}}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/push/subscribe", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, expected 400", w.Code)
	}
}

func TestCreateMeetingBroadcastsToSubscribers(t *testing.T) {
	vendor := &fakeVendor{sessionID: "sess-1"}
	h, r := newTestRouter(vendor, &memRecorder{})
	notifier := newFakeNotifier()
	h.SetNotifier(notifier)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/create-meeting", strings.NewReader(`{"userData":{"name":"Grace"}}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	// The broadcast runs off the request goroutine.
	deadline := time.Now().Add(2 * time.Second)
	for notifier.broadcastCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("no broadcast after meeting creation")
		}
		time.Sleep(5 * time.Millisecond)
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if got := notifier.broadcasts[0]; got != "Grace started a meeting" {
		t.Fatalf("broadcast body = %q", got)
	}
}
