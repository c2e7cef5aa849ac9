package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/virek/vroom/internal/config"
	"github.com/virek/vroom/internal/opentok"
	"github.com/virek/vroom/internal/registry"
)

type fakeVendor struct {
	sessionID  string
	createErr  error
	tokenErr   error
	lastTokenOpts opentok.TokenOptions
	lastSessionID string
}

func (f *fakeVendor) APIKey() string { return "project-key" }

func (f *fakeVendor) CreateSession(ctx context.Context, opts opentok.SessionOptions) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	return f.sessionID, nil
}

func (f *fakeVendor) GenerateToken(sessionID string, opts opentok.TokenOptions) (string, error) {
	if f.tokenErr != nil {
		return "", f.tokenErr
	}
	f.lastSessionID = sessionID
	f.lastTokenOpts = opts
	return "T1==fake", nil
}

type memRecorder struct {
	meetings []registry.Meeting
	err      error
}

func (m *memRecorder) Record(rec registry.Meeting) error {
	if m.err != nil {
		return m.err
	}
	m.meetings = append(m.meetings, rec)
	return nil
}

func newTestRouter(vendor *fakeVendor, rec Recorder) (*Handlers, *gin.Engine) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		ClientURL: "https://meet.example.com",
		TokenTTL:  24 * time.Hour,
	}
	h := New(cfg, vendor, rec, nil, nil)
	h.nowFn = func() time.Time { return time.Unix(1_700_000_000, 0) }
	r := gin.New()
	h.RegisterRoutes(r)
	return h, r
}

func TestCreateMeeting(t *testing.T) {
	vendor := &fakeVendor{sessionID: "2_MX4sess"}
	rec := &memRecorder{}
	_, r := newTestRouter(vendor, rec)

	body := `{"userData":{"name":"Grace"}}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/create-meeting", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp createMeetingResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.SessionID != "2_MX4sess" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.MeetingURL != "https://meet.example.com/meeting/2_MX4sess" {
		t.Fatalf("meeting url = %q", resp.MeetingURL)
	}

	if len(rec.meetings) != 1 {
		t.Fatalf("meeting not recorded: %+v", rec.meetings)
	}
	if rec.meetings[0].Creator != "Grace" || rec.meetings[0].SessionID != "2_MX4sess" {
		t.Fatalf("unexpected record %+v", rec.meetings[0])
	}
}

func TestCreateMeetingVendorFailure(t *testing.T) {
	vendor := &fakeVendor{createErr: errors.New("upstream 403")}
	_, r := newTestRouter(vendor, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/create-meeting", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["success"] != false || resp["message"] != "Failed to create meeting" {
		t.Fatalf("unexpected body %v", resp)
	}
}

func TestCreateMeetingRecorderFailureIsNotFatal(t *testing.T) {
	vendor := &fakeVendor{sessionID: "sess"}
	rec := &memRecorder{err: errors.New("disk full")}
	_, r := newTestRouter(vendor, rec)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/create-meeting", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("registry trouble must not fail the request, status = %d", w.Code)
	}
}

func TestIssueToken(t *testing.T) {
	vendor := &fakeVendor{}
	_, r := newTestRouter(vendor, nil)

	body := `{"sessionId":"sess-1","userType":"moderator","userData":{"name":"Grace","role":"host"}}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/token", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp tokenResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.APIKey != "project-key" || resp.SessionID != "sess-1" || resp.Token == "" {
		t.Fatalf("unexpected response %+v", resp)
	}

	if vendor.lastSessionID != "sess-1" {
		t.Fatalf("token minted for wrong session %q", vendor.lastSessionID)
	}
	if string(vendor.lastTokenOpts.Role) != "moderator" {
		t.Fatalf("role = %q", vendor.lastTokenOpts.Role)
	}
	if vendor.lastTokenOpts.ExpireIn != 24*time.Hour {
		t.Fatalf("ttl = %v", vendor.lastTokenOpts.ExpireIn)
	}
	if !bytes.Contains([]byte(vendor.lastTokenOpts.Data), []byte(`"Grace"`)) {
		t.Fatalf("user data not embedded: %q", vendor.lastTokenOpts.Data)
	}
}

func TestIssueTokenUnknownRoleDefaultsToPublisher(t *testing.T) {
	vendor := &fakeVendor{}
	_, r := newTestRouter(vendor, nil)

	body := `{"sessionId":"sess-1","userType":"superadmin"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/token", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if string(vendor.lastTokenOpts.Role) != "publisher" {
		t.Fatalf("role = %q", vendor.lastTokenOpts.Role)
	}
}

func TestIssueTokenMissingSessionID(t *testing.T) {
	_, r := newTestRouter(&fakeVendor{}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/token", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Session ID is required") {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
}

func TestSimpleTokenBeforeSessionExists(t *testing.T) {
	_, r := newTestRouter(&fakeVendor{sessionID: "shared"}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/token?user=Ada", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d before the shared session exists", w.Code)
	}
}

func TestSimpleTokenAfterStartup(t *testing.T) {
	vendor := &fakeVendor{sessionID: "shared"}
	h, r := newTestRouter(vendor, nil)

	if err := h.EnsureSimpleSession(context.Background()); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/token?user=Ada", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp tokenResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.SessionID != "shared" || resp.Token == "" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if !strings.Contains(vendor.lastTokenOpts.Data, "Ada") {
		t.Fatalf("user name not embedded: %q", vendor.lastTokenOpts.Data)
	}
}

func TestTurnConfigWithoutRelay(t *testing.T) {
	_, r := newTestRouter(&fakeVendor{}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/turn-config", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d with the relay disabled", w.Code)
	}
}
