package channel

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"multibot/internal/message"
)

// PlatformWebhook tags requests arriving over the HTTP endpoint.
const PlatformWebhook = "Webhook"

// Webhook accepts HTTP POST requests and answers with the rendered
// response list in the reply body.
type Webhook struct {
	host    string
	port    int
	path    string
	secret  string
	factory Factory
	logger  *slog.Logger
	server  *http.Server
}

type WebhookConfig struct {
	Host    string
	Port    int
	Path    string
	Secret  string // HMAC secret for signature verification
	Factory Factory
	Logger  *slog.Logger
}

// webhookPayload is the expected JSON body.
type webhookPayload struct {
	UserID  string `json:"user_id"`
	GroupID string `json:"group_id,omitempty"`
	Msg     string `json:"msg,omitempty"`
	Img     string `json:"img,omitempty"`
}

// webhookReply is one rendered response in the reply body.
type webhookReply struct {
	Kind string `json:"kind"`
	To   string `json:"to"`
	Text string `json:"text"`
}

func NewWebhook(cfg WebhookConfig) *Webhook {
	if cfg.Path == "" {
		cfg.Path = "/webhook"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Webhook{
		host:    cfg.Host,
		port:    cfg.Port,
		path:    cfg.Path,
		secret:  cfg.Secret,
		factory: cfg.Factory,
		logger:  cfg.Logger,
	}
}

// Run serves until the context is cancelled.
func (w *Webhook) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc(w.path, w.handle)

	w.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", w.host, w.port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	w.logger.Info("webhook server starting", "addr", w.server.Addr, "path", w.path)

	errCh := make(chan error, 1)
	go func() {
		if err := w.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		w.logger.Info("webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return w.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("webhook server: %w", err)
	}
}

func (w *Webhook) handle(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(rw, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1MB max
	if err != nil {
		http.Error(rw, "Bad Request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if w.secret != "" && !w.verifySignature(body, r.Header.Get("X-Signature-256")) {
		http.Error(rw, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(rw, "Bad Request", http.StatusBadRequest)
		return
	}
	if payload.UserID == "" {
		http.Error(rw, "user_id is required", http.StatusBadRequest)
		return
	}

	d, err := w.factory()
	if err != nil {
		w.logger.Error("cannot build dispatcher", "error", err)
		http.Error(rw, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	req := &message.Request{
		Platform: PlatformWebhook,
		UserID:   payload.UserID,
		GroupID:  payload.GroupID,
		Msg:      payload.Msg,
		Img:      payload.Img,
	}
	var replies []webhookReply
	Deliver(d, d.Handle(req), func(resp message.Response) {
		replies = append(replies, webhookReply{
			Kind: kindOf(resp),
			To:   resp.Destination(),
			Text: RenderText(resp),
		})
	}, nil)

	rw.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(rw).Encode(map[string]any{"responses": replies}); err != nil {
		w.logger.Error("cannot write webhook reply", "error", err)
	}
}

func (w *Webhook) verifySignature(body []byte, header string) bool {
	mac := hmac.New(sha256.New, []byte(w.secret))
	mac.Write(body)
	want := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(header))
}

func kindOf(resp message.Response) string {
	switch resp.(type) {
	case *message.Msg:
		return "msg"
	case *message.GroupMsg:
		return "group_msg"
	case *message.Image:
		return "image"
	case *message.GroupImage:
		return "group_image"
	case *message.Music:
		return "music"
	case *message.PlatformCall:
		return "call"
	default:
		return "unknown"
	}
}
