package kpi

import (
	"context"
	"fmt"
	"time"

	"pricewatch-backend/lib/browser"

	"github.com/chromedp/chromedp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type Depth int

const (
	DepthMajor Depth = iota
	DepthMiddle
	DepthSub
)

// CategoryNode is one node of the live catalog tree. The tree is rebuilt
// from the site on every run, never persisted. Parent is a lookup-only
// back reference.
type CategoryNode struct {
	Name   string
	Code   string
	Depth  Depth
	Parent *CategoryNode
}

// Path renders the node's full category path for logs.
func (n CategoryNode) Path() string {
	if n.Parent == nil {
		return n.Name
	}
	return n.Parent.Path() + " > " + n.Name
}

type MiddleCategory struct {
	Node CategoryNode
	Subs []CategoryNode
}

const majorListJS = `
Array.from(document.querySelectorAll('div.category_menu ul.depth1 > li > a')).map(a => ({
	name: a.textContent.trim(),
	code: a.dataset.code || '',
}))`

const middleListJS = `
Array.from(document.querySelectorAll('div.category_menu ul.depth2 > li')).map(li => {
	const a = li.querySelector(':scope > a');
	return {
		name: a ? a.textContent.trim() : '',
		code: a ? (a.dataset.code || '') : '',
		subs: Array.from(li.querySelectorAll('ul.depth3 > li > a')).map(s => ({
			name: s.textContent.trim(),
			code: s.dataset.code || '',
		})),
	};
})`

type categoryEntry struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

type middleEntry struct {
	Name string          `json:"name"`
	Code string          `json:"code"`
	Subs []categoryEntry `json:"subs"`
}

// MajorCategories enumerates the top level of the catalog from the root
// category page. Runs on the session's primary page.
func (c *Client) MajorCategories(ctx context.Context) ([]CategoryNode, error) {
	ctx, span := tracer.Start(ctx, "client:MajorCategories")
	defer span.End()

	page := c.Browser.Page()
	nctx, cancel := context.WithTimeout(page, time.Second*30)
	defer cancel()

	err := chromedp.Run(nctx, chromedp.Navigate(c.absURL(probePath)))
	if err != nil {
		span.SetStatus(codes.Error, "failed to open category root")
		return nil, err
	}
	browser.DismissPopups(nctx)

	if err := browser.WaitStable(nctx, "div.category_menu ul.depth1", time.Second*15); err != nil {
		span.SetStatus(codes.Error, "category menu never became visible")
		return nil, err
	}

	var entries []categoryEntry
	if err := chromedp.Run(nctx, chromedp.Evaluate(majorListJS, &entries)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list major categories")
		return nil, err
	}

	nodes := make([]CategoryNode, 0, len(entries))
	for _, e := range entries {
		if e.Name == "" {
			continue
		}
		nodes = append(nodes, CategoryNode{Name: e.Name, Code: e.Code, Depth: DepthMajor})
	}
	span.SetAttributes(attribute.Int("majors", len(nodes)))
	return nodes, nil
}

// ExpandMajor opens a major category's page and triggers its "expand
// all" control so every middle and sub-category is addressable in the
// DOM without per-node navigation. Then the middle categories and their
// sub-category links are read in one pass.
func (c *Client) ExpandMajor(ctx context.Context, major CategoryNode) ([]MiddleCategory, error) {
	ctx, span := tracer.Start(ctx, "client:ExpandMajor")
	defer span.End()
	span.SetAttributes(attribute.String("major", major.Name))

	page := c.Browser.Page()
	nctx, cancel := context.WithTimeout(page, time.Second*45)
	defer cancel()

	target := c.absURL(probePath) + "?cate_code=" + major.Code
	err := chromedp.Run(nctx, chromedp.Navigate(target))
	if err != nil {
		span.SetStatus(codes.Error, "failed to open major category")
		return nil, err
	}
	browser.DismissPopups(nctx)

	if err := browser.WaitStable(nctx, "a.btn_open_all", time.Second*10); err != nil {
		span.SetStatus(codes.Error, "expand-all control missing")
		return nil, fmt.Errorf("expand-all control missing on %q: %w", major.Name, err)
	}
	if err := chromedp.Run(nctx, chromedp.Click("a.btn_open_all", chromedp.ByQuery)); err != nil {
		span.SetStatus(codes.Error, "expand-all click failed")
		return nil, err
	}
	if err := browser.WaitStable(nctx, "ul.depth3 > li > a", time.Second*15); err != nil {
		span.SetStatus(codes.Error, "tree did not expand")
		return nil, err
	}

	var entries []middleEntry
	if err := chromedp.Run(nctx, chromedp.Evaluate(middleListJS, &entries)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list middle categories")
		return nil, err
	}

	majorRef := major
	middles := make([]MiddleCategory, 0, len(entries))
	for _, e := range entries {
		if e.Name == "" {
			continue
		}
		m := MiddleCategory{
			Node: CategoryNode{Name: e.Name, Code: e.Code, Depth: DepthMiddle, Parent: &majorRef},
		}
		for _, s := range e.Subs {
			if s.Name == "" {
				continue
			}
			m.Subs = append(m.Subs, CategoryNode{
				Name:   s.Name,
				Code:   s.Code,
				Depth:  DepthSub,
				Parent: &m.Node,
			})
		}
		middles = append(middles, m)
	}
	span.SetAttributes(attribute.Int("middles", len(middles)))
	return middles, nil
}
