package favicon

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"
)

const (
	idealSize    = 16
	maxPageBytes = 64 * 1024
)

// Resolver finds favicons for video pages, cached by URL authority.
type Resolver struct {
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
	mu      sync.RWMutex
	cache   map[string]string
}

func NewResolver(client *http.Client, timeout time.Duration, logger *slog.Logger) *Resolver {
	if client == nil {
		client = http.DefaultClient
	}

	return &Resolver{
		client:  client,
		timeout: timeout,
		logger:  logger,
		cache:   make(map[string]string),
	}
}

// Initial returns a favicon without network access: the cached one for the
// authority of pageURL or its /favicon.ico.
func (r *Resolver) Initial(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return ""
	}

	r.mu.RLock()
	cached, ok := r.cache[u.Host]
	r.mu.RUnlock()
	if ok {
		return cached
	}

	return defaultFavicon(u)
}

// Resolve scrapes pageURL for <link rel="icon"> declarations and remembers the
// best match for the authority. Any failure yields /favicon.ico.
func (r *Resolver) Resolve(ctx context.Context, pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return ""
	}

	r.mu.RLock()
	cached, ok := r.cache[u.Host]
	r.mu.RUnlock()
	if ok {
		return cached
	}

	favicon, err := r.fetch(ctx, u)
	if err != nil {
		r.logger.DebugContext(ctx, "failed to fetch favicon", "url", pageURL, "error", err)
		return defaultFavicon(u)
	}

	r.mu.Lock()
	r.cache[u.Host] = favicon
	r.mu.Unlock()

	return favicon
}

func (r *Resolver) fetch(ctx context.Context, u *url.URL) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	doc, err := html.Parse(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", err
	}

	var best *icon
	for _, ic := range findIcons(doc, u) {
		if best == nil || ic.betterThan(*best) {
			best = &ic
		}
	}
	if best == nil {
		return defaultFavicon(u), nil
	}

	return best.href, nil
}

func defaultFavicon(u *url.URL) string {
	return u.ResolveReference(&url.URL{Path: "/favicon.ico"}).String()
}

type sizeKind int

const (
	sizeUnknown sizeKind = iota
	sizeFixed
	sizeAny
)

type icon struct {
	href string
	kind sizeKind
	size int
}

func (a icon) betterThan(b icon) bool {
	if a.kind != b.kind {
		return a.kind > b.kind
	}
	if a.kind != sizeFixed {
		return false
	}
	return compareSize(a.size, b.size) > 0
}

// compareSize orders sizes by closeness to the ideal, preferring larger icons
// over smaller ones.
func compareSize(a, b int) int {
	switch {
	case a == b:
		return 0
	case a == idealSize:
		return 1
	case b == idealSize:
		return -1
	case a < idealSize && b > idealSize:
		return -1
	case a > idealSize && b < idealSize:
		return 1
	case a < idealSize:
		return a - b
	default:
		return b - a
	}
}

func findIcons(n *html.Node, base *url.URL) []icon {
	var icons []icon
	if n.Type == html.ElementNode && n.Data == "link" {
		if ic, ok := parseIcon(n, base); ok {
			icons = append(icons, ic)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		icons = append(icons, findIcons(c, base)...)
	}
	return icons
}

func parseIcon(n *html.Node, base *url.URL) (icon, bool) {
	var rel, href, typ, sizes string
	hasSizes := false
	for _, attr := range n.Attr {
		switch attr.Key {
		case "rel":
			rel = strings.ToLower(strings.TrimSpace(attr.Val))
		case "href":
			href = attr.Val
		case "type":
			typ = attr.Val
		case "sizes":
			sizes, hasSizes = strings.ToLower(attr.Val), true
		}
	}
	if (rel != "icon" && rel != "shortcut icon") || href == "" {
		return icon{}, false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return icon{}, false
	}
	ic := icon{href: base.ResolveReference(ref).String()}
	isIco := strings.HasSuffix(href, ".ico")

	switch {
	case strings.HasPrefix(typ, "image/svg") || (sizes == "any" && !isIco):
		ic.kind = sizeAny
	case !hasSizes || sizes == "any":
		ic.kind = sizeUnknown
	default:
		best := 0
		for _, spec := range strings.Fields(sizes) {
			w, _, _ := strings.Cut(spec, "x")
			size, err := strconv.Atoi(w)
			if err != nil {
				continue
			}
			if best == 0 || compareSize(size, best) > 0 {
				best = size
			}
		}
		if best == 0 {
			ic.kind = sizeUnknown
		} else {
			ic.kind, ic.size = sizeFixed, best
		}
	}

	return ic, true
}
