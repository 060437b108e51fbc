// Package broker drives a real browser through the site's dual
// authentication: the shield Basic Auth header on every request, then
// the application login form. It ends with the browser's cookies
// packed into a Session.
package broker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/Suggestic/amanda-scrapping/internal/config"
	"github.com/Suggestic/amanda-scrapping/internal/observability"
	"github.com/Suggestic/amanda-scrapping/internal/session"
)

// ErrLoginFailed marks a login attempt the site rejected, as opposed
// to infrastructure failures launching or driving the browser.
var ErrLoginFailed = errors.New("login failed")

type Broker struct {
	cfg       *config.Config
	selectors *config.LoginSelectors
	logger    *observability.Logger
}

func NewBroker(cfg *config.Config, selectors *config.LoginSelectors, logger *observability.Logger) *Broker {
	return &Broker{
		cfg:       cfg,
		selectors: selectors,
		logger:    logger,
	}
}

// Login performs the full browser login and returns the resulting
// session. Credentials are read from the config and never logged.
func (b *Broker) Login(ctx context.Context) (*session.Session, error) {
	browser, cleanup, err := b.launch()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	page, err := b.preparePage(browser)
	if err != nil {
		return nil, err
	}

	page = page.Context(ctx).Timeout(b.cfg.GetPageTimeout())

	loginURL := b.cfg.LoginURL()
	b.logger.Debug("Navigating to login page", "url", loginURL)

	if err := page.Navigate(loginURL); err != nil {
		return nil, fmt.Errorf("failed to open login page: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("login page did not load: %w", err)
	}
	b.settle()

	b.acceptConsent(page)
	b.clickTrigger(page)

	if err := b.fillAndSubmit(page); err != nil {
		return nil, err
	}
	b.settle()

	if err := b.checkOutcome(page); err != nil {
		return nil, err
	}

	cookies, err := b.extractCookies(browser)
	if err != nil {
		return nil, err
	}
	if len(cookies) == 0 {
		return nil, fmt.Errorf("%w: no cookies for site domain after login", ErrLoginFailed)
	}

	sess := session.New(cookies, b.cfg.Site.UserAgent, "browser", b.cfg.GetSessionDefaultTTL())

	b.logger.Info("Browser login succeeded",
		"cookies", len(sess.Cookies),
		"session_cookies", sess.SessionCookieNames(),
		"expires_at", sess.ExpiresAt,
	)

	return sess, nil
}

func (b *Broker) launch() (*rod.Browser, func(), error) {
	l := launcher.New().Headless(b.cfg.Browser.Headless)
	if b.cfg.Browser.ChromePath != "" {
		l = l.Bin(b.cfg.Browser.ChromePath)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	cleanup := func() {
		if err := browser.Close(); err != nil {
			b.logger.Warn("Failed to close browser", "error", err.Error())
		}
		l.Cleanup()
	}
	return browser, cleanup, nil
}

// preparePage creates the page with the shield header and the pinned
// User-Agent injected before any navigation.
func (b *Broker) preparePage(browser *rod.Browser) (*rod.Page, error) {
	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	if _, err := page.SetExtraHeaders([]string{"Authorization", b.cfg.BasicAuthHeader()}); err != nil {
		return nil, fmt.Errorf("failed to set shield header: %w", err)
	}

	if b.cfg.Site.UserAgent != "" {
		override := &proto.NetworkSetUserAgentOverride{UserAgent: b.cfg.Site.UserAgent}
		if err := page.SetUserAgent(override); err != nil {
			return nil, fmt.Errorf("failed to set user agent: %w", err)
		}
	}

	return page, nil
}

func (b *Broker) settle() {
	if delay := b.cfg.GetSettleDelay(); delay > 0 {
		time.Sleep(delay)
	}
}

// acceptConsent dismisses cookie/consent dialogs when present. Best
// effort, their absence is normal.
func (b *Broker) acceptConsent(page *rod.Page) {
	el, sel := b.findFirst(page, b.selectors.ConsentButtons)
	if el == nil {
		return
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		b.logger.Debug("Consent click failed", "selector", sel, "error", err.Error())
		return
	}
	b.logger.Debug("Accepted consent dialog", "selector", sel)
	b.settle()
}

// clickTrigger opens the login form when it sits behind a button or
// link instead of being rendered inline.
func (b *Broker) clickTrigger(page *rod.Page) {
	el, sel := b.findFirst(page, b.selectors.Triggers)
	if el == nil {
		return
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return
	}
	b.logger.Debug("Opened login form", "selector", sel)
	b.settle()
}

// findFirst returns the first VISIBLE element the selectors match.
// Pages keep hidden secondary forms and empty live regions in the DOM,
// so presence alone is not enough to act on.
func (b *Broker) findFirst(page *rod.Page, selectors []string) (*rod.Element, string) {
	for _, sel := range selectors {
		ok, el, err := page.Has(sel)
		if err != nil || !ok {
			continue
		}
		visible, err := el.Visible()
		if err != nil || !visible {
			continue
		}
		return el, sel
	}
	return nil, ""
}

func (b *Broker) fillAndSubmit(page *rod.Page) error {
	emailField, emailSel := b.findFirst(page, b.selectors.EmailFields)
	if emailField == nil {
		return fmt.Errorf("%w: no email field matched", ErrLoginFailed)
	}
	passwordField, passwordSel := b.findFirst(page, b.selectors.PasswordFields)
	if passwordField == nil {
		return fmt.Errorf("%w: no password field matched", ErrLoginFailed)
	}

	b.logger.Debug("Filling login form", "email_selector", emailSel, "password_selector", passwordSel)

	if err := emailField.Input(b.cfg.Login.Email); err != nil {
		return fmt.Errorf("failed to fill email field: %w", err)
	}
	if err := passwordField.Input(b.cfg.Login.Password); err != nil {
		return fmt.Errorf("failed to fill password field: %w", err)
	}

	if submit, sel := b.findFirst(page, b.selectors.SubmitButtons); submit != nil {
		if err := submit.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return fmt.Errorf("failed to click submit: %w", err)
		}
		b.logger.Debug("Submitted login form", "selector", sel)
	} else {
		// No submit button found, Enter in the password field.
		if err := passwordField.Type(input.Enter); err != nil {
			return fmt.Errorf("failed to submit with enter: %w", err)
		}
		b.logger.Debug("Submitted login form with enter key")
	}

	if err := page.WaitLoad(); err != nil {
		b.logger.Debug("Post-submit load wait failed", "error", err.Error())
	}
	return nil
}

// checkOutcome decides whether the login landed: error banners mean
// rejection, success markers or leaving the login path mean success.
func (b *Broker) checkOutcome(page *rod.Page) error {
	for _, sel := range b.selectors.ErrorBanners {
		ok, el, err := page.Has(sel)
		if err != nil || !ok {
			continue
		}
		visible, err := el.Visible()
		if err != nil {
			continue
		}
		text, err := el.Text()
		if err != nil {
			continue
		}
		if !isLiveBanner(visible, text) {
			continue
		}
		return fmt.Errorf("%w: %s", ErrLoginFailed, strings.TrimSpace(text))
	}

	if el, sel := b.findFirst(page, b.selectors.SuccessMarkers); el != nil {
		b.logger.Debug("Login success marker found", "selector", sel)
		return nil
	}

	info, err := page.Info()
	if err != nil {
		return fmt.Errorf("failed to read page info: %w", err)
	}
	b.logger.Debug("Checking post-login location", "url", info.URL, "title", info.Title)

	if !strings.Contains(info.URL, "/login") {
		return nil
	}
	return fmt.Errorf("%w: still on the login page", ErrLoginFailed)
}

// isLiveBanner reports whether an error banner should fail the login.
// Sites ship permanently present alert containers (aria live regions)
// that only get text when validation actually rejects the form, so a
// hidden match or an empty one is not an error.
func isLiveBanner(visible bool, text string) bool {
	return visible && strings.TrimSpace(text) != ""
}

func (b *Broker) extractCookies(browser *rod.Browser) ([]session.Cookie, error) {
	raw, err := browser.GetCookies()
	if err != nil {
		return nil, fmt.Errorf("failed to read browser cookies: %w", err)
	}
	return convertCookies(raw, b.cfg.Site.BaseURL), nil
}

// convertCookies keeps the cookies scoped to the site domain and maps
// them to the session type. A negative Expires means a browser
// session cookie, kept with zero expiry.
func convertCookies(raw []*proto.NetworkCookie, baseURL string) []session.Cookie {
	host := hostOf(baseURL)

	var out []session.Cookie
	for _, c := range raw {
		domain := strings.TrimPrefix(c.Domain, ".")
		if !(host == domain || strings.HasSuffix(host, "."+domain) || strings.HasSuffix(domain, "."+host)) {
			continue
		}

		cookie := session.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		}
		if c.Expires > 0 {
			cookie.Expiry = time.Unix(int64(c.Expires), 0).UTC()
		}
		out = append(out, cookie)
	}
	return out
}

func hostOf(baseURL string) string {
	host := baseURL
	if idx := strings.Index(host, "://"); idx > -1 {
		host = host[idx+3:]
	}
	if idx := strings.IndexAny(host, "/:"); idx > -1 {
		host = host[:idx]
	}
	return host
}
