// Package refdata loads the static kit and booklet documents that ground the
// chat prompt, and answers the two lookups made against them.
package refdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/suPer8Hu/poppy-relay/internal/platform/logger"
)

type Kit struct {
	Title string   `json:"title"`
	Items []string `json:"items"`
	Note  string   `json:"note,omitempty"`
}

type Section struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

type Book struct {
	Sections []Section `json:"sections"`
}

const (
	kitPath  = "/kit.json"
	bookPath = "/book.json"
)

// Loader memoizes the two documents for the life of the process. Only a
// successful fetch is cached; a failure leaves the slot empty so a later
// request tries again.
type Loader struct {
	log     *logger.Logger
	client  *http.Client
	baseURL string

	mu   sync.RWMutex
	kit  *Kit
	book *Book
}

// NewLoader builds a loader. When baseURL is empty the origin of each request
// is used instead.
func NewLoader(log *logger.Logger, baseURL string) *Loader {
	return &Loader{
		log:     log.With("component", "refdata"),
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (l *Loader) Kit(ctx context.Context, origin string) *Kit {
	l.mu.RLock()
	k := l.kit
	l.mu.RUnlock()
	if k != nil {
		return k
	}

	var fetched Kit
	if !l.fetch(ctx, origin, kitPath, &fetched) {
		return nil
	}
	l.mu.Lock()
	l.kit = &fetched
	l.mu.Unlock()
	return &fetched
}

func (l *Loader) Book(ctx context.Context, origin string) *Book {
	l.mu.RLock()
	b := l.book
	l.mu.RUnlock()
	if b != nil {
		return b
	}

	var fetched Book
	if !l.fetch(ctx, origin, bookPath, &fetched) {
		return nil
	}
	l.mu.Lock()
	l.book = &fetched
	l.mu.Unlock()
	return &fetched
}

// Reset drops both cached documents.
func (l *Loader) Reset() {
	l.mu.Lock()
	l.kit = nil
	l.book = nil
	l.mu.Unlock()
}

func (l *Loader) fetch(ctx context.Context, origin, path string, out any) bool {
	base := l.baseURL
	if base == "" {
		base = strings.TrimRight(origin, "/")
	}
	if base == "" {
		l.log.Debug("no origin for reference document", "path", path)
		return false
	}
	u := base + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		l.log.Debug("build reference request failed", "url", u, "err", err)
		return false
	}
	req.Header.Set("Cache-Control", "no-store")

	resp, err := l.client.Do(req)
	if err != nil {
		l.log.Debug("fetch reference document failed", "url", u, "err", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		l.log.Debug("reference document not available", "url", u, "status", resp.StatusCode)
		return false
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		l.log.Debug("parse reference document failed", "url", u, "err", err)
		return false
	}
	return true
}

// Origin works out the public origin of the deployment that served r: the
// Referer's scheme and host when present, otherwise X-Forwarded-Proto plus
// Host.
func Origin(r *http.Request) string {
	if ref := r.Header.Get("Referer"); ref != "" {
		if u, err := url.Parse(ref); err == nil && u.Scheme != "" && u.Host != "" {
			return fmt.Sprintf("%s://%s", u.Scheme, u.Host)
		}
	}
	host := r.Host
	if host == "" {
		return ""
	}
	proto := r.Header.Get("X-Forwarded-Proto")
	if proto == "" {
		proto = "https"
	}
	if i := strings.IndexByte(proto, ','); i >= 0 {
		proto = strings.TrimSpace(proto[:i])
	}
	return proto + "://" + host
}
