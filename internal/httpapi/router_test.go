package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/poppy-relay/internal/ai"
	"github.com/suPer8Hu/poppy-relay/internal/chat"
	"github.com/suPer8Hu/poppy-relay/internal/config"
	"github.com/suPer8Hu/poppy-relay/internal/handoff"
	"github.com/suPer8Hu/poppy-relay/internal/httpapi/handlers"
	"github.com/suPer8Hu/poppy-relay/internal/notify"
	"github.com/suPer8Hu/poppy-relay/internal/platform/logger"
	"github.com/suPer8Hu/poppy-relay/internal/store/gormstore"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubProvider struct {
	reply string
	err   error
}

func (p stubProvider) Chat(ctx context.Context, messages []ai.Message) (string, error) {
	return p.reply, p.err
}

type keylessProvider struct{}

func (keylessProvider) Chat(ctx context.Context, messages []ai.Message) (string, error) {
	return "", ai.ErrNotConfigured
}

func (keylessProvider) Configured() bool { return false }

type cleanModerator struct{}

func (cleanModerator) Moderate(ctx context.Context, text string) (bool, error) { return false, nil }

type testEnv struct {
	router *gin.Engine
	store  *gormstore.Store
}

func newSlackServer(t *testing.T, failCode string) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		if failCode != "" {
			fmt.Fprintf(w, `{"ok":false,"error":%q}`, failCode)
			return
		}
		fmt.Fprintf(w, `{"ok":true,"channel":%q,"ts":"1700000000.000100"}`, r.FormValue("channel"))
	}))
	t.Cleanup(server.Close)
	return server.URL
}

func newTestEnv(t *testing.T, provider ai.Provider, slackCfg notify.Config) *testEnv {
	t.Helper()
	return newTestEnvWithOrigin(t, "*", provider, slackCfg)
}

func newTestEnvWithOrigin(t *testing.T, allowOrigin string, provider ai.Provider, slackCfg notify.Config) *testEnv {
	t.Helper()
	log := logger.Nop()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	store := gormstore.New(db)
	if err := store.Migrate(); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	slack := notify.NewSlack(log, slackCfg)
	chatSvc := chat.NewService(log, provider, cleanModerator{}, nil, slack, chat.Options{})
	handoffSvc := handoff.NewService(log, store, slack, nil)
	h := handlers.NewHandler(log, chatSvc, handoffSvc, slack)

	return &testEnv{
		router: NewRouter(config.Config{AllowOrigin: allowOrigin}, log, h),
		store:  store,
	}
}

func configuredSlack(t *testing.T, failCode string) notify.Config {
	return notify.Config{
		BotToken:      "xoxb-test",
		AlertsChannel: "C_ALERTS",
		TestChannel:   "C_TEST",
		APIURL:        newSlackServer(t, failCode),
	}
}

func (e *testEnv) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func TestChat_OK(t *testing.T) {
	env := newTestEnv(t, stubProvider{reply: "Rinse the seeds first."}, notify.Config{})

	w := env.do(http.MethodPost, "/api/poppy", `{"q":"how do I start?","history":[{"role":"user","content":"hi"}]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if got := decode(t, w)["reply"]; got != "Rinse the seeds first." {
		t.Fatalf("reply = %v", got)
	}
	if w.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("missing no-store header")
	}
	if !strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		t.Fatalf("content type = %q", w.Header().Get("Content-Type"))
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("missing request id")
	}
}

func TestChat_MissingQuery(t *testing.T) {
	env := newTestEnv(t, stubProvider{reply: "x"}, notify.Config{})

	for _, body := range []string{`{}`, `{"q":"   "}`, `not json`, ``, `{"q":"hi"`} {
		w := env.do(http.MethodPost, "/api/poppy", body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("body %q: status = %d", body, w.Code)
		}
		if decode(t, w)["error"] != "Missing q" {
			t.Fatalf("body %q: unexpected error body %s", body, w.Body.String())
		}
	}
}

func TestChat_NotConfigured(t *testing.T) {
	env := newTestEnv(t, keylessProvider{}, notify.Config{})

	w := env.do(http.MethodPost, "/api/poppy", `{"q":"hello"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestChat_UpstreamError(t *testing.T) {
	upErr := &ai.UpstreamError{Service: "openai", Status: 429, Body: `{"error":"rate limited"}`}
	env := newTestEnv(t, stubProvider{err: upErr}, notify.Config{})

	w := env.do(http.MethodPost, "/api/poppy", `{"q":"hello"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	out := decode(t, w)
	if out["error"] != "Upstream error" || out["detail"] != upErr.Body {
		t.Fatalf("unexpected body: %v", out)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, stubProvider{reply: "x"}, notify.Config{})

	for _, path := range []string{"/api/poppy", "/api/handoff-open", "/api/replies-poll"} {
		w := env.do(http.MethodGet, path, "")
		if w.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s: status = %d", path, w.Code)
		}
		if decode(t, w)["error"] != "Method not allowed" {
			t.Fatalf("%s: body = %s", path, w.Body.String())
		}
	}
}

func TestNotFound(t *testing.T) {
	env := newTestEnv(t, stubProvider{reply: "x"}, notify.Config{})
	if w := env.do(http.MethodPost, "/api/nope", "{}"); w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestPreflight(t *testing.T) {
	env := newTestEnv(t, stubProvider{reply: "x"}, notify.Config{})

	w := env.do(http.MethodOptions, "/api/poppy", "",
		"Origin", "https://widget.example",
		"Access-Control-Request-Method", "POST",
		"Access-Control-Request-Headers", "Content-Type",
	)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("allow origin = %q", w.Header().Get("Access-Control-Allow-Origin"))
	}
	if !strings.Contains(w.Header().Get("Access-Control-Allow-Methods"), "POST") {
		t.Fatalf("allow methods = %q", w.Header().Get("Access-Control-Allow-Methods"))
	}

	// no Origin header: falls through to the route
	if w := env.do(http.MethodOptions, "/api/handoff-open", ""); w.Code != http.StatusOK {
		t.Fatalf("plain OPTIONS status = %d", w.Code)
	}
}

func TestCORS_HeadersWithoutOrigin(t *testing.T) {
	env := newTestEnv(t, stubProvider{reply: "x"}, notify.Config{})

	w := env.do(http.MethodPost, "/api/poppy", `{"q":"hi"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("allow origin = %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Headers"); !strings.Contains(got, "Content-Type") {
		t.Fatalf("allow headers = %q", got)
	}

	// error responses carry the headers too
	w = env.do(http.MethodPost, "/api/poppy", `{}`)
	if w.Code != http.StatusBadRequest || w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("status = %d allow origin = %q", w.Code, w.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestCORS_ConfiguredOriginNeverRejects(t *testing.T) {
	const shop = "https://shop.example"
	env := newTestEnvWithOrigin(t, shop, stubProvider{reply: "Hello!"}, notify.Config{})

	w := env.do(http.MethodPost, "/api/poppy", `{"q":"hi"}`, "Origin", "https://other.example")
	if w.Code != http.StatusOK {
		t.Fatalf("foreign origin: status = %d body=%q", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != shop {
		t.Fatalf("allow origin = %q, want %q", got, shop)
	}

	w = env.do(http.MethodPost, "/api/replies-poll", `{}`, "Origin", "https://other.example")
	if w.Code != http.StatusBadRequest || !strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		t.Fatalf("foreign origin poll: status = %d content type = %q", w.Code, w.Header().Get("Content-Type"))
	}

	w = env.do(http.MethodOptions, "/api/poppy", "",
		"Origin", "https://other.example",
		"Access-Control-Request-Method", "POST",
	)
	if w.Code != http.StatusOK || w.Header().Get("Access-Control-Allow-Origin") != shop {
		t.Fatalf("preflight: status = %d allow origin = %q", w.Code, w.Header().Get("Access-Control-Allow-Origin"))
	}

	w = env.do(http.MethodPost, "/api/poppy", `{"q":"hi"}`)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != shop {
		t.Fatalf("no origin: allow origin = %q", got)
	}
}

func TestHandoffOpen(t *testing.T) {
	env := newTestEnv(t, stubProvider{reply: "x"}, configuredSlack(t, ""))

	w := env.do(http.MethodPost, "/api/handoff-open", `{"conversationId":"conv-1","summary":"wants a human"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	out := decode(t, w)
	slack, _ := out["slack"].(map[string]any)
	if out["ok"] != true || out["conversationId"] != "conv-1" || slack["channel"] != "C_ALERTS" || slack["thread_ts"] != "1700000000.000100" {
		t.Fatalf("unexpected body: %v", out)
	}
}

func TestHandoffOpen_Errors(t *testing.T) {
	env := newTestEnv(t, stubProvider{reply: "x"}, configuredSlack(t, "channel_not_found"))

	if w := env.do(http.MethodPost, "/api/handoff-open", `{}`); w.Code != http.StatusBadRequest {
		t.Fatalf("missing id: status = %d", w.Code)
	}

	w := env.do(http.MethodPost, "/api/handoff-open", `{"conversationId":"conv-1"}`)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("slack refusal: status = %d", w.Code)
	}
	out := decode(t, w)
	detail, _ := out["detail"].(map[string]any)
	if out["error"] != "Failed to post to Slack" || detail["error"] != "channel_not_found" || detail["ok"] != false {
		t.Fatalf("unexpected body: %v", out)
	}

	unconfigured := newTestEnv(t, stubProvider{reply: "x"}, notify.Config{})
	if w := unconfigured.do(http.MethodPost, "/api/handoff-open", `{"conversationId":"conv-1"}`); w.Code != http.StatusInternalServerError {
		t.Fatalf("unconfigured: status = %d", w.Code)
	}
}

func TestRepliesPoll(t *testing.T) {
	env := newTestEnv(t, stubProvider{reply: "x"}, notify.Config{})
	if _, err := env.store.AddReply(context.Background(), "conv-1", "sam", "On my way"); err != nil {
		t.Fatalf("add reply: %v", err)
	}

	w := env.do(http.MethodPost, "/api/replies-poll", `{"conversationId":"conv-1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	out := decode(t, w)
	replies, _ := out["replies"].([]any)
	if out["ok"] != true || len(replies) != 1 {
		t.Fatalf("unexpected body: %v", out)
	}
	first, _ := replies[0].(map[string]any)
	if first["text"] != "On my way" || first["conversation_id"] != "conv-1" {
		t.Fatalf("unexpected reply: %v", first)
	}

	w = env.do(http.MethodPost, "/api/replies-poll", `{"conversationId":"conv-1"}`)
	replies, _ = decode(t, w)["replies"].([]any)
	if replies == nil || len(replies) != 0 {
		t.Fatalf("second poll should return an empty list, got %s", w.Body.String())
	}

	if w := env.do(http.MethodPost, "/api/replies-poll", `{}`); w.Code != http.StatusBadRequest {
		t.Fatalf("missing id: status = %d", w.Code)
	}
}

func TestSlackTest(t *testing.T) {
	env := newTestEnv(t, stubProvider{reply: "x"}, notify.Config{})
	w := env.do(http.MethodGet, "/api/slack-test", "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	if out := decode(t, w); out["ok"] != false || out["error"] != "Missing env vars" {
		t.Fatalf("unexpected body: %v", out)
	}

	env = newTestEnv(t, stubProvider{reply: "x"}, configuredSlack(t, ""))
	w = env.do(http.MethodPost, "/api/slack-test", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if out := decode(t, w); out["ok"] != true || out["channel"] != "C_TEST" {
		t.Fatalf("unexpected body: %v", out)
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, stubProvider{reply: "x"}, notify.Config{})
	if w := env.do(http.MethodGet, "/healthz", ""); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}
