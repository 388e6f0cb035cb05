package channel

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"multibot/internal/dispatch"
	"multibot/internal/message"
	"multibot/internal/session"
	"multibot/internal/store"
)

func testFactory(t *testing.T) Factory {
	t.Helper()
	reg := &dispatch.Registry{Interactive: []dispatch.Entry{
		{Name: "intro", New: func(userID string) session.Session {
			return session.NewIntro(userID)
		}},
		{Name: "caller", New: func(userID string) session.Session {
			return newCaller(userID)
		}},
	}}
	backing := store.NewMemory()
	return func() (*dispatch.Dispatcher, error) {
		return dispatch.New(dispatch.Config{Registry: reg, Store: backing})
	}
}

// caller emits a platform call, then relays the result it gets back.
type caller struct {
	session.Base
}

func newCaller(userID string) *caller {
	s := &caller{Base: session.NewBase(userID, "caller")}
	s.StrictTriggers = []string{"call"}
	return s
}

func (s *caller) Handle(req *message.Request) ([]message.Output, error) {
	return []message.Output{message.NewPlatformCall("ban_user", map[string]any{"id": "7"})}, nil
}

func (s *caller) ProcessOutput(output any) ([]message.Output, error) {
	s.Deactivate()
	return []message.Output{message.NewMsg("call result: " + output.(string))}, nil
}

func TestConsoleRoundTrip(t *testing.T) {
	in := strings.NewReader("hello\n/quit\n")
	var out bytes.Buffer
	console := NewConsole(ConsoleConfig{Factory: testFactory(t), In: in, Out: &out})

	if err := console.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "MultiBot") {
		t.Fatalf("greeting missing from output:\n%s", out.String())
	}
	// The intro session answers "hello".
	if !strings.Contains(out.String(), "plugin list") {
		t.Fatalf("intro response missing:\n%s", out.String())
	}
}

func TestDeliverFeedsCallResultsBack(t *testing.T) {
	factory := testFactory(t)
	d, err := factory()
	if err != nil {
		t.Fatal(err)
	}

	var sent []string
	responses := d.Handle(&message.Request{Platform: PlatformConsole, UserID: "0", Msg: "call"})
	Deliver(d, responses, func(resp message.Response) {
		sent = append(sent, RenderText(resp))
	}, func(call *message.PlatformCall) any {
		return call.Func + " done"
	})

	if len(sent) != 1 || !strings.Contains(sent[0], "ban_user done") {
		t.Fatalf("platform call result did not flow back: %v", sent)
	}
}

func TestDeliverWithoutExecStillDrains(t *testing.T) {
	factory := testFactory(t)
	d, err := factory()
	if err != nil {
		t.Fatal(err)
	}

	var sent []string
	Deliver(d, d.Handle(&message.Request{Platform: PlatformConsole, UserID: "0", Msg: "call"}), func(resp message.Response) {
		sent = append(sent, RenderText(resp))
	}, nil)

	if len(sent) != 1 || !strings.Contains(sent[0], "not supported") {
		t.Fatalf("expected the unsupported notice to flow back: %v", sent)
	}
}

func TestWebhookHandle(t *testing.T) {
	w := NewWebhook(WebhookConfig{Factory: testFactory(t)})

	body, _ := json.Marshal(map[string]string{"user_id": "9", "msg": "hello"})
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	w.handle(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var reply struct {
		Responses []webhookReply `json:"responses"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &reply); err != nil {
		t.Fatal(err)
	}
	if len(reply.Responses) != 1 || reply.Responses[0].Kind != "msg" || reply.Responses[0].To != "9" {
		t.Fatalf("unexpected reply: %+v", reply.Responses)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	w := NewWebhook(WebhookConfig{Factory: testFactory(t), Secret: "s3cret"})

	body, _ := json.Marshal(map[string]string{"user_id": "9", "msg": "hello"})
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("X-Signature-256", "sha256=deadbeef")
	rec := httptest.NewRecorder()
	w.handle(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad signature should be rejected, got %d", rec.Code)
	}

	// A correct signature passes.
	mac := hmac.New(sha256.New, []byte("s3cret"))
	mac.Write(body)
	req = httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("X-Signature-256", "sha256="+hex.EncodeToString(mac.Sum(nil)))
	rec = httptest.NewRecorder()
	w.handle(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid signature rejected: %d", rec.Code)
	}
}

func TestWebhookRejectsMissingUser(t *testing.T) {
	w := NewWebhook(WebhookConfig{Factory: testFactory(t)})

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"msg": "hi"}`))
	rec := httptest.NewRecorder()
	w.handle(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing user_id should be rejected, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/webhook", nil)
	rec = httptest.NewRecorder()
	w.handle(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET should be rejected, got %d", rec.Code)
	}
}
