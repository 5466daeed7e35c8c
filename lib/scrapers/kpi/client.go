// Package kpi scrapes the materials-price catalog of the KPI site. The
// catalog is a fixed three-level hierarchy (major, middle, sub-category)
// rendered by javascript behind an authenticated session, so navigation
// goes through a real browser; the flat listing view is plain HTML and is
// fetched over HTTP with the browser's cookies.
package kpi

import (
	"context"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"time"

	"pricewatch-backend/lib/browser"
	"pricewatch-backend/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("scrapers/kpi")

type Client struct {
	BaseUrl *url.URL
	Browser *browser.Browser
	Http    *resty.Client
}

type ClientOptions struct {
	BaseUrl  string
	Headless bool
	ExecPath string
}

func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	if opts.BaseUrl == "" {
		opts.BaseUrl = "https://www.kpi.or.kr"
	}
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}

	b, err := browser.New(ctx, browser.Options{
		Headless: opts.Headless,
		ExecPath: opts.ExecPath,
	})
	if err != nil {
		return nil, fmt.Errorf("kpi: %w", err)
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		b.Close()
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	client.SetTimeout(time.Second * 30)

	telemetry.InstrumentResty(client, "scrapers/kpi/http")

	return &Client{
		BaseUrl: baseUrl,
		Browser: b,
		Http:    client,
	}, nil
}

func (c *Client) Close() {
	c.Browser.Close()
}

func (c *Client) absURL(path string) string {
	u := *c.BaseUrl
	u.Path = path
	return u.String()
}
