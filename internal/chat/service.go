package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/suPer8Hu/poppy-relay/internal/ai"
	"github.com/suPer8Hu/poppy-relay/internal/platform/logger"
	"github.com/suPer8Hu/poppy-relay/internal/refdata"
	"golang.org/x/sync/errgroup"
)

const (
	SafetyReply   = "I can’t help with that, but I’m happy to answer questions about growing microgreens safely."
	FallbackReply = "Sorry, I didn’t catch that."
)

var (
	ErrMissingQuery  = errors.New("chat: missing q")
	ErrNotConfigured = errors.New("chat: completion provider not configured")
)

type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	Q         string `json:"q"`
	History   []Turn `json:"history"`
	Character string `json:"character"`
}

// RefData is the cached kit and booklet source.
type RefData interface {
	Kit(ctx context.Context, origin string) *refdata.Kit
	Book(ctx context.Context, origin string) *refdata.Book
}

// Notifier posts to the team channel. Implementations swallow failures.
type Notifier interface {
	Notify(ctx context.Context, title, text string)
}

type Options struct {
	SystemPrompt string
	AllowedLinks []string
}

type Service struct {
	log       *logger.Logger
	provider  ai.Provider
	moderator ai.Moderator
	refs      RefData
	notifier  Notifier
	opts      Options
}

func NewService(log *logger.Logger, provider ai.Provider, moderator ai.Moderator, refs RefData, notifier Notifier, opts Options) *Service {
	return &Service{
		log:       log.With("component", "chat"),
		provider:  provider,
		moderator: moderator,
		refs:      refs,
		notifier:  notifier,
		opts:      opts,
	}
}

// Reply runs one chat turn. origin is the public origin used to fetch the
// reference documents.
func (s *Service) Reply(ctx context.Context, req Request, origin string) (string, error) {
	q := strings.TrimSpace(req.Q)
	if q == "" {
		return "", ErrMissingQuery
	}
	if !ai.Configured(s.provider) {
		return "", ErrNotConfigured
	}

	q, kinds := Redact(q)
	if len(kinds) > 0 {
		s.log.Info("redacted personal data from query", "kinds", kinds)
	}
	history := redactHistory(req.History)

	// moderation and reference lookups are independent of each other
	kitQuestion := refdata.IsKitQuestion(q)
	var (
		flagged bool
		kit     *refdata.Kit
		book    *refdata.Book
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		flagged = s.moderate(gctx, q)
		return nil
	})
	if s.refs != nil {
		g.Go(func() error {
			book = s.refs.Book(gctx, origin)
			return nil
		})
		if kitQuestion {
			g.Go(func() error {
				kit = s.refs.Kit(gctx, origin)
				return nil
			})
		}
	}
	_ = g.Wait()

	if flagged {
		if s.notifier != nil {
			s.notifier.Notify(ctx, "Poppy flagged message", q)
		}
		return SafetyReply, nil
	}

	if kitQuestion && kit != nil && len(kit.Items) > 0 {
		return KitReply(kit), nil
	}

	system := SystemPrompt(s.opts.SystemPrompt, req.Character, refdata.FindRelevantExcerpts(q, book))
	reply, err := s.provider.Chat(ctx, Compose(system, history, q))
	if err != nil {
		if errors.Is(err, ai.ErrNotConfigured) {
			return "", ErrNotConfigured
		}
		return "", fmt.Errorf("chat: completion: %w", err)
	}
	if strings.TrimSpace(reply) == "" {
		return FallbackReply, nil
	}
	return PostProcess(reply, s.opts.AllowedLinks), nil
}

// moderate fails open: any moderation error counts as unflagged.
func (s *Service) moderate(ctx context.Context, text string) bool {
	if s.moderator == nil {
		return false
	}
	flagged, err := s.moderator.Moderate(ctx, text)
	if err != nil {
		s.log.Warn("moderation unavailable, continuing", "err", err)
		return false
	}
	return flagged
}

func KitReply(kit *refdata.Kit) string {
	var b strings.Builder
	b.WriteString("Here’s what’s in the kit:")
	for _, it := range kit.Items {
		b.WriteString("\n• ")
		b.WriteString(it)
	}
	if kit.Note != "" {
		b.WriteString("\n\n")
		b.WriteString(kit.Note)
	}
	return b.String()
}

func redactHistory(history []Turn) []Turn {
	if len(history) == 0 {
		return nil
	}
	out := make([]Turn, len(history))
	for i, t := range history {
		out[i] = t
		if t.Role == "user" {
			out[i].Content, _ = Redact(t.Content)
		}
	}
	return out
}
