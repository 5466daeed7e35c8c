package kpi

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"pricewatch-backend/lib/browser"
	"pricewatch-backend/lib/retry"

	"github.com/chromedp/chromedp"
	"go.opentelemetry.io/otel/codes"
)

var ErrLoginFailed = fmt.Errorf("failed to login to the price catalog")
var ErrMissingCredentials = fmt.Errorf("missing catalog credentials")

const loginPath = "/member/login.php"
const probePath = "/price/category.php"

const loginAttempts = 3
const loginBackoff = time.Second * 5

type Credentials struct {
	Username string
	Password string
}

// EnsureSession makes the browser session authenticated: an existing
// state file is restored and validated first, full login is the
// fallback. Exhausting the login retries is fatal for the caller; no
// crawl may proceed without a session.
func (c *Client) EnsureSession(ctx context.Context, creds Credentials, statePath string) error {
	ctx, span := tracer.Start(ctx, "client:EnsureSession")
	defer span.End()

	if creds.Username == "" || creds.Password == "" {
		span.SetStatus(codes.Error, ErrMissingCredentials.Error())
		return ErrMissingCredentials
	}

	if statePath != "" {
		restored, err := c.restoreSession(ctx, statePath)
		if err != nil && !os.IsNotExist(err) {
			slog.WarnContext(ctx, "could not restore session state", "path", statePath, "err", err)
		}
		if restored {
			slog.InfoContext(ctx, "restored previous session", "path", statePath)
			return c.syncHttpCookies(ctx)
		}
	}

	err := retry.Do(ctx, retry.Options{
		Attempts: loginAttempts,
		Delay:    loginBackoff,
		Scale:    true,
		Name:     "kpi login",
	}, func(ctx context.Context) error {
		return c.login(ctx, creds)
	})
	if err != nil {
		span.SetStatus(codes.Error, "login retries exhausted")
		return err
	}

	if statePath != "" {
		cookies, err := c.Browser.Cookies(c.Browser.Page())
		if err == nil {
			err = browser.SaveCookies(statePath, cookies)
		}
		if err != nil {
			slog.WarnContext(ctx, "failed to persist session state", "path", statePath, "err", err)
		}
	}
	return c.syncHttpCookies(ctx)
}

// restoreSession loads saved cookies and probe-navigates: a probe that
// stays off the login page counts as a live session.
func (c *Client) restoreSession(ctx context.Context, statePath string) (bool, error) {
	cookies, err := browser.LoadCookies(statePath)
	if err != nil {
		return false, err
	}

	page := c.Browser.Page()
	if err := c.Browser.SetCookies(page, cookies); err != nil {
		return false, err
	}

	nctx, cancel := context.WithTimeout(page, time.Second*20)
	defer cancel()

	var location string
	err = chromedp.Run(nctx,
		chromedp.Navigate(c.absURL(probePath)),
		chromedp.Location(&location),
	)
	if err != nil {
		return false, err
	}
	return !strings.Contains(location, loginPath), nil
}

func (c *Client) login(ctx context.Context, creds Credentials) error {
	ctx, span := tracer.Start(ctx, "client:login")
	defer span.End()

	page := c.Browser.Page()
	nctx, cancel := context.WithTimeout(page, time.Second*30)
	defer cancel()

	loginURL := c.absURL(loginPath)
	err := chromedp.Run(nctx,
		chromedp.Navigate(loginURL),
		chromedp.WaitVisible("input#user_id", chromedp.ByQuery),
	)
	if err != nil {
		span.SetStatus(codes.Error, "login page did not load")
		return err
	}

	browser.DismissPopups(nctx)

	var location string
	err = chromedp.Run(nctx,
		chromedp.SetValue("input#user_id", creds.Username, chromedp.ByQuery),
		chromedp.SetValue("input#user_passwd", creds.Password, chromedp.ByQuery),
		chromedp.Click("button.btn_login", chromedp.ByQuery),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&location),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to submit login form")
		return err
	}

	// the only success signal the site gives is leaving the login page
	if strings.Contains(location, loginPath) {
		span.SetStatus(codes.Error, ErrLoginFailed.Error())
		return ErrLoginFailed
	}

	slog.InfoContext(ctx, "logged in", "user", creds.Username)
	return nil
}

// syncHttpCookies mirrors the browser's session cookies onto the resty
// client so the static listing view rides the same session.
func (c *Client) syncHttpCookies(ctx context.Context) error {
	cookies, err := c.Browser.Cookies(c.Browser.Page())
	if err != nil {
		return fmt.Errorf("export session cookies: %w", err)
	}
	c.Http.SetCookies(browser.HTTPCookies(cookies))
	return nil
}
