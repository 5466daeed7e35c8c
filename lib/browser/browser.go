// Package browser wraps chromedp with the small surface the scrapers
// need: one shared browser process, independent tab contexts per unit of
// work, and cookie import/export for session persistence.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

type Options struct {
	Headless  bool
	ExecPath  string
	UserAgent string
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

type Browser struct {
	ctx          context.Context
	cancelCtx    context.CancelFunc
	cancelAlloc  context.CancelFunc
}

func New(ctx context.Context, opts Options) (*Browser, error) {
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}

	allocOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(opts.UserAgent),
		chromedp.WindowSize(1600, 1000),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, cancelCtx := chromedp.NewContext(allocCtx)

	// start the browser process eagerly so a broken chrome install fails
	// here instead of in the middle of a crawl
	if err := chromedp.Run(browserCtx); err != nil {
		cancelCtx()
		cancelAlloc()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	return &Browser{
		ctx:         browserCtx,
		cancelCtx:   cancelCtx,
		cancelAlloc: cancelAlloc,
	}, nil
}

// Page returns the browser's primary tab context, owned by the
// sequential navigation path.
func (b *Browser) Page() context.Context {
	return b.ctx
}

// NewPage opens an independent tab so concurrent units of work never
// share DOM state. The returned cancel must always be called.
func (b *Browser) NewPage() (context.Context, context.CancelFunc) {
	return chromedp.NewContext(b.ctx)
}

func (b *Browser) Close() {
	b.cancelCtx()
	b.cancelAlloc()
}

// Cookie is the serializable subset of a browser cookie kept in the
// session state file.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	Secure   bool    `json:"secure"`
	HTTPOnly bool    `json:"http_only"`
}

func (b *Browser) Cookies(ctx context.Context) ([]Cookie, error) {
	var cookies []Cookie
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		raw, err := network.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		for _, c := range raw {
			cookies = append(cookies, Cookie{
				Name:     c.Name,
				Value:    c.Value,
				Domain:   c.Domain,
				Path:     c.Path,
				Expires:  c.Expires,
				Secure:   c.Secure,
				HTTPOnly: c.HTTPOnly,
			})
		}
		return nil
	}))
	if err != nil {
		return nil, err
	}
	return cookies, nil
}

func (b *Browser) SetCookies(ctx context.Context, cookies []Cookie) error {
	params := make([]*network.CookieParam, len(cookies))
	for i, c := range cookies {
		expires := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
		params[i] = &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			Expires:  &expires,
		}
	}
	return chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return network.SetCookies(params).Do(ctx)
	}))
}

// HTTPCookies converts exported cookies to net/http form, so a plain
// http/resty client can reuse the authenticated browser session.
func HTTPCookies(cookies []Cookie) []*http.Cookie {
	out := make([]*http.Cookie, len(cookies))
	for i, c := range cookies {
		out[i] = &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		}
	}
	return out
}

// SaveCookies writes the session state file, overwriting any previous
// state.
func SaveCookies(path string, cookies []Cookie) error {
	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// LoadCookies reads a previously saved session state file. A missing
// file is reported via os.IsNotExist on the returned error.
func LoadCookies(path string) ([]Cookie, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cookies []Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("corrupt session state %s: %w", path, err)
	}
	slog.Debug("loaded session state", "path", path, "cookies", len(cookies))
	return cookies, nil
}
