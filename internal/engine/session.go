package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/IshaanNene/dealstalk/internal/browser"
	"github.com/IshaanNene/dealstalk/internal/config"
	"github.com/IshaanNene/dealstalk/internal/types"
)

// Session is an authenticated browsing context. Its page is the one the
// crawler drives.
type Session struct {
	Page          browser.Page
	EstablishedAt time.Time
}

// SessionManager runs the two-step sign-in flow.
type SessionManager struct {
	signInURL string
	email     browser.Selector
	cont      browser.Selector
	password  browser.Selector
	submit    browser.Selector
	timeouts  config.TimeoutConfig
	pacer     *Pacer
	logger    *slog.Logger
}

// NewSessionManager compiles the sign-in selectors.
func NewSessionManager(cfg *config.Config, pacer *Pacer, logger *slog.Logger) (*SessionManager, error) {
	m := &SessionManager{
		signInURL: cfg.Session.SignInURL,
		timeouts:  cfg.Timeouts,
		pacer:     pacer,
		logger:    logger.With("component", "session"),
	}
	for _, s := range []struct {
		dst *browser.Selector
		raw string
	}{
		{&m.email, cfg.Session.EmailSelector},
		{&m.cont, cfg.Session.ContinueSelector},
		{&m.password, cfg.Session.PasswordSelector},
		{&m.submit, cfg.Session.SubmitSelector},
	} {
		sel, err := browser.ParseSelector(s.raw)
		if err != nil {
			return nil, fmt.Errorf("session selector: %w", err)
		}
		*s.dst = sel
	}
	return m, nil
}

// Establish signs in on page: identifier, wait for the secret field, secret.
// Any failure is returned as an *types.AuthError. There is no retry.
func (m *SessionManager) Establish(ctx context.Context, page browser.Page, creds types.Credentials) (*Session, error) {
	fail := func(step string, err error) (*Session, error) {
		return nil, &types.AuthError{Step: step, Err: err}
	}

	err := m.pacer.Once(ctx, func(ctx context.Context) error {
		return page.Navigate(ctx, m.signInURL)
	})
	if err != nil {
		return fail("navigate", err)
	}
	if err := m.settle(ctx, browser.AllOf(browser.DocumentReady(page), browser.ElementPresent(page, m.email))); err != nil {
		return fail("navigate", err)
	}

	if err := m.fill(ctx, page, m.email, creds.Email); err != nil {
		return fail("identifier", err)
	}
	if err := m.click(ctx, page, m.cont); err != nil {
		return fail("continue", err)
	}
	if err := m.settle(ctx, browser.AllOf(browser.DocumentReady(page), browser.ElementPresent(page, m.password))); err != nil {
		return fail("continue", err)
	}

	if err := m.fill(ctx, page, m.password, creds.Password); err != nil {
		return fail("secret", err)
	}
	if err := m.click(ctx, page, m.submit); err != nil {
		return fail("submit", err)
	}
	if err := m.settle(ctx, browser.DocumentReady(page)); err != nil {
		return fail("submit", err)
	}

	m.logger.Debug("sign-in flow completed")
	return &Session{Page: page, EstablishedAt: time.Now()}, nil
}

func (m *SessionManager) fill(ctx context.Context, page browser.Page, sel browser.Selector, value string) error {
	el, err := page.Find(ctx, sel, m.timeouts.Element)
	if err != nil {
		return err
	}
	ictx, cancel := context.WithTimeout(ctx, m.timeouts.Element)
	defer cancel()
	if err := el.Input(ictx, value); err != nil {
		return fmt.Errorf("input %s: %w", sel, err)
	}
	return nil
}

func (m *SessionManager) click(ctx context.Context, page browser.Page, sel browser.Selector) error {
	el, err := page.Find(ctx, sel, m.timeouts.Element)
	if err != nil {
		return err
	}
	return m.pacer.Once(ctx, func(ctx context.Context) error {
		return activate(ctx, el, sel, m.timeouts)
	})
}

func (m *SessionManager) settle(ctx context.Context, cond browser.Condition) error {
	return browser.WaitUntil(ctx, m.timeouts.Settle, m.timeouts.Poll, cond)
}
