package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hopewhisperer/hope-whisperer/internal/credential"
	model "github.com/hopewhisperer/hope-whisperer/internal/model/session"
	"github.com/hopewhisperer/hope-whisperer/internal/permission"
	"github.com/hopewhisperer/hope-whisperer/internal/service/chat"
	sessionService "github.com/hopewhisperer/hope-whisperer/internal/service/session"
	"github.com/hopewhisperer/hope-whisperer/internal/service/session/sessiontest"
	"github.com/hopewhisperer/hope-whisperer/internal/shell"
)

func setupRouter(t *testing.T, micAllowed bool) (*chi.Mux, *shell.Shell, *sessiontest.Transport) {
	t.Helper()

	gate := permission.NewGate(permission.ProberFunc(func(context.Context) error {
		if micAllowed {
			return nil
		}
		return errors.New("no input device")
	}))
	transport := sessiontest.NewTransport()
	adapter := sessionService.NewAdapter(transport, gate)
	sh := shell.New(credential.NewStore(credential.NewMemoryBackend()), gate, adapter, chat.NewService(), 0.8)
	sh.Init(context.Background())
	if err := sh.SubmitCredential(context.Background(), "abc123"); err != nil {
		t.Fatalf("SubmitCredential err: %v", err)
	}

	r := chi.NewRouter()
	New(sh).RegisterRoutes(r)
	return r, sh, transport
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func decodeView(t *testing.T, resp *httptest.ResponseRecorder) shell.View {
	t.Helper()
	var v shell.View
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	return v
}

func TestGetState(t *testing.T) {
	r, _, _ := setupRouter(t, true)

	resp := do(r, http.MethodGet, "/state", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	v := decodeView(t, resp)
	if v.Mode != shell.ModeConversation || v.Status != model.StatusDisconnected || v.Volume != 0.8 {
		t.Fatalf("unexpected view %+v", v)
	}
}

func TestSetAgentAndStart(t *testing.T) {
	r, _, transport := setupRouter(t, true)

	resp := do(r, http.MethodPut, "/session/agent", `{"agentId":"agent_1"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if v := decodeView(t, resp); !v.CanStart {
		t.Fatalf("expected start enabled, got %+v", v)
	}

	resp = do(r, http.MethodPost, "/session/start", "")
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.Code)
	}
	if v := decodeView(t, resp); v.Status != model.StatusConnecting {
		t.Fatalf("expected connecting, got %s", v.Status)
	}
	if starts := transport.Starts(); len(starts) != 1 || starts[0].APIKey != "abc123" {
		t.Fatalf("unexpected starts %+v", starts)
	}

	if resp := do(r, http.MethodPost, "/session/start", ""); resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 for second start, got %d", resp.Code)
	}
	if resp := do(r, http.MethodPut, "/session/agent", `{"agentId":"other"}`); resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 for agent change, got %d", resp.Code)
	}

	resp = do(r, http.MethodPost, "/session/end", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if v := decodeView(t, resp); v.Status != model.StatusDisconnected {
		t.Fatalf("expected disconnected, got %s", v.Status)
	}
}

func TestStartErrorsMapToStatus(t *testing.T) {
	t.Run("missing agent", func(t *testing.T) {
		r, _, _ := setupRouter(t, true)
		if resp := do(r, http.MethodPost, "/session/start", ""); resp.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", resp.Code)
		}
	})

	t.Run("permission denied", func(t *testing.T) {
		r, _, _ := setupRouter(t, false)
		do(r, http.MethodPut, "/session/agent", `{"agentId":"agent_1"}`)
		if resp := do(r, http.MethodPost, "/session/start", ""); resp.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", resp.Code)
		}
	})

	t.Run("transport failure", func(t *testing.T) {
		r, _, transport := setupRouter(t, true)
		transport.FailStarts(errors.New("dial refused"))
		do(r, http.MethodPut, "/session/agent", `{"agentId":"agent_1"}`)
		if resp := do(r, http.MethodPost, "/session/start", ""); resp.Code != http.StatusBadGateway {
			t.Fatalf("expected 502, got %d", resp.Code)
		}
	})
}

func TestSetVolumeValidation(t *testing.T) {
	r, _, _ := setupRouter(t, true)

	cases := map[string]int{
		`{"volume":0.25}`: http.StatusOK,
		`{"volume":0}`:    http.StatusOK,
		`{}`:              http.StatusBadRequest,
		`{"volume":2}`:    http.StatusBadRequest,
		`{"level":0.5}`:   http.StatusBadRequest,
	}
	for body, want := range cases {
		if resp := do(r, http.MethodPut, "/session/volume", body); resp.Code != want {
			t.Fatalf("%s: expected %d, got %d", body, want, resp.Code)
		}
	}
}

func TestPermissionAndNotices(t *testing.T) {
	r, _, _ := setupRouter(t, false)

	resp := do(r, http.MethodPost, "/permission", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	v := decodeView(t, resp)
	if v.PermissionGranted || len(v.Notices) != 1 || v.Notices[0].Title != "Microphone Access Required" {
		t.Fatalf("unexpected view %+v", v)
	}

	if resp := do(r, http.MethodDelete, "/notices/"+v.Notices[0].ID, ""); resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if resp := do(r, http.MethodDelete, "/notices/"+v.Notices[0].ID, ""); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}
