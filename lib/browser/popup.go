package browser

import (
	"context"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
)

// dismissStrategy is one named way of closing a transient overlay. The
// strategies are tried in priority order; whichever fires is logged so
// selector rot is diagnosable.
type dismissStrategy struct {
	name     string
	selector string
}

var popupStrategies = []dismissStrategy{
	{"notice layer close", "div.layer_popup a.btn_close"},
	{"today-only close", "div.popup_wrap a[href*='closeToday']"},
	{"modal close button", "div.modal_popup button.close"},
	{"floating banner close", "div.float_banner .btn_x"},
}

// DismissPopups closes any transient overlays currently covering the
// page. A page with no popups is the common case and not an error.
func DismissPopups(ctx context.Context) {
	for _, strat := range popupStrategies {
		var nodes []*cdp.Node
		probe, cancel := context.WithTimeout(ctx, time.Millisecond*500)
		err := chromedp.Run(probe,
			chromedp.Nodes(strat.selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)),
		)
		cancel()
		if err != nil || len(nodes) == 0 {
			continue
		}

		click, cancel := context.WithTimeout(ctx, time.Second*2)
		err = chromedp.Run(click, chromedp.Click(strat.selector, chromedp.ByQuery))
		cancel()
		if err != nil {
			slog.DebugContext(ctx, "popup dismissal failed", "strategy", strat.name, "err", err)
			continue
		}
		slog.DebugContext(ctx, "dismissed popup", "strategy", strat.name)
	}
}

// WaitStable blocks until the given selector is visible or the timeout
// elapses. It is the single suspension point used before any
// extraction, so no wait is ever unbounded.
func WaitStable(ctx context.Context, selector string, timeout time.Duration) error {
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return chromedp.Run(wctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}
