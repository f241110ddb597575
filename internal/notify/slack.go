// Package notify posts team notifications to Slack.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/slack-go/slack"
	"github.com/suPer8Hu/poppy-relay/internal/platform/logger"
)

var ErrNotConfigured = errors.New("notify: slack not configured")

// PostError is a Slack post that did not succeed. Code is Slack's error string
// ("channel_not_found", "invalid_auth", ...) or the transport error text.
type PostError struct {
	Code string
	Err  error
}

func (e *PostError) Error() string { return "slack: " + e.Code }
func (e *PostError) Unwrap() error { return e.Err }

// Detail is the diagnostic payload attached to error responses.
func (e *PostError) Detail() map[string]any {
	return map[string]any{"ok": false, "error": e.Code}
}

type Config struct {
	BotToken      string
	AlertsChannel string
	TestChannel   string
	// APIURL overrides https://slack.com/api/ (tests, proxies).
	APIURL string
}

type Slack struct {
	log    *logger.Logger
	client *slack.Client
	cfg    Config
}

func NewSlack(log *logger.Logger, cfg Config) *Slack {
	s := &Slack{log: log.With("component", "slack"), cfg: cfg}
	if strings.TrimSpace(cfg.BotToken) == "" {
		return s
	}
	opts := []slack.Option{slack.OptionHTTPClient(&http.Client{Timeout: 15 * time.Second})}
	if cfg.APIURL != "" {
		u := cfg.APIURL
		if !strings.HasSuffix(u, "/") {
			u += "/"
		}
		opts = append(opts, slack.OptionAPIURL(u))
	}
	s.client = slack.New(cfg.BotToken, opts...)
	return s
}

// Configured reports whether handoff threads can be opened.
func (s *Slack) Configured() bool {
	return s.client != nil && s.cfg.AlertsChannel != ""
}

// Notify posts "*title*\ntext" to the alerts channel. It never fails the
// caller: errors are logged and dropped.
func (s *Slack) Notify(ctx context.Context, title, text string) {
	if !s.Configured() {
		return
	}
	msg := text
	if title != "" {
		msg = fmt.Sprintf("*%s*\n%s", title, text)
	}
	if _, _, err := s.post(ctx, s.cfg.AlertsChannel, msg); err != nil {
		s.log.Warn("notification dropped", "title", title, "err", err)
	}
}

// PostThreadParent posts to the alerts channel and returns the message's
// channel and timestamp, which together identify the thread.
func (s *Slack) PostThreadParent(ctx context.Context, text string) (string, string, error) {
	if !s.Configured() {
		return "", "", ErrNotConfigured
	}
	return s.post(ctx, s.cfg.AlertsChannel, text)
}

type TestResult struct {
	OK      bool   `json:"ok"`
	Channel string `json:"channel,omitempty"`
	TS      string `json:"ts,omitempty"`
	Error   string `json:"error,omitempty"`
}

// PostTest sends the connectivity check message to the test channel. A Slack
// API refusal is reported in the result; only transport failures and missing
// configuration return an error.
func (s *Slack) PostTest(ctx context.Context) (TestResult, error) {
	if s.client == nil || s.cfg.TestChannel == "" {
		return TestResult{}, ErrNotConfigured
	}
	channel, ts, err := s.post(ctx, s.cfg.TestChannel, "Poppy Slack test 🌱 if you see this, we're connected.")
	if err != nil {
		var pe *PostError
		if errors.As(err, &pe) && pe.Err == nil {
			return TestResult{OK: false, Error: pe.Code}, nil
		}
		return TestResult{}, err
	}
	return TestResult{OK: true, Channel: channel, TS: ts}, nil
}

func (s *Slack) post(ctx context.Context, channel, text string) (string, string, error) {
	ch, ts, err := s.client.PostMessageContext(ctx, channel, slack.MsgOptionText(text, false))
	if err == nil {
		return ch, ts, nil
	}
	var apiErr slack.SlackErrorResponse
	if errors.As(err, &apiErr) {
		return "", "", &PostError{Code: apiErr.Err}
	}
	return "", "", &PostError{Code: err.Error(), Err: err}
}
