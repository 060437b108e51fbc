// Package verify checks that a cookie header (or a full session)
// actually grants access to authenticated content, and turns failures
// into the diagnoses of the operator playbook.
package verify

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Suggestic/amanda-scrapping/internal/config"
	"github.com/Suggestic/amanda-scrapping/internal/fetcher"
	"github.com/Suggestic/amanda-scrapping/internal/observability"
	"github.com/Suggestic/amanda-scrapping/internal/scraper"
	"github.com/Suggestic/amanda-scrapping/internal/session"
)

// Diagnosis classifies the outcome of a verification attempt.
type Diagnosis int

const (
	// DiagnosisAuthenticated is the only passing outcome: status 200
	// and a body that is not the login page.
	DiagnosisAuthenticated Diagnosis = iota
	// DiagnosisShieldOrFormat covers 401/403: either the shield
	// credentials are wrong or the cookie string is malformed.
	DiagnosisShieldOrFormat
	// DiagnosisExpired covers a 200 that renders the login page: the
	// cookies are formatted fine but the session is gone.
	DiagnosisExpired
	// DiagnosisConnection covers transport-level failures.
	DiagnosisConnection
	// DiagnosisUnexpectedStatus covers everything else.
	DiagnosisUnexpectedStatus
)

func (d Diagnosis) String() string {
	switch d {
	case DiagnosisAuthenticated:
		return "authenticated"
	case DiagnosisShieldOrFormat:
		return "rejected"
	case DiagnosisExpired:
		return "expired"
	case DiagnosisConnection:
		return "connection-failed"
	default:
		return "unexpected-status"
	}
}

// Advice is the operator-facing next step for each diagnosis.
func (d Diagnosis) Advice() string {
	switch d {
	case DiagnosisAuthenticated:
		return "session is valid"
	case DiagnosisShieldOrFormat:
		return "re-check the cookie string formatting (name1=value1; name2=value2) and the shield credentials"
	case DiagnosisExpired:
		return "the session cookies have expired; re-run login or re-extract cookies from the browser"
	case DiagnosisConnection:
		return "verify the shield credentials with a plain request before debugging cookies"
	default:
		return "unexpected response from the site; inspect the status code"
	}
}

// Result of a verification run.
type Result struct {
	Diagnosis     Diagnosis
	StatusCode    int
	ContentLength int
	URL           string
}

// OK reports whether the acceptance criterion holds.
func (r *Result) OK() bool {
	return r.Diagnosis == DiagnosisAuthenticated
}

type Verifier struct {
	cfg      *config.Config
	fetcher  *fetcher.Fetcher
	detector *scraper.LoginPageDetector
	logger   *observability.Logger
}

func NewVerifier(cfg *config.Config, f *fetcher.Fetcher, logger *observability.Logger) *Verifier {
	return &Verifier{
		cfg:      cfg,
		fetcher:  f,
		detector: scraper.NewLoginPageDetector(),
		logger:   logger,
	}
}

// VerifyHeader verifies a raw cookie header string, the contract of
// the verification command: one string, semicolon-separated
// name=value pairs.
func (v *Verifier) VerifyHeader(ctx context.Context, cookieHeader string) (*Result, error) {
	cookies, err := session.ParseHeader(cookieHeader)
	if err != nil {
		return nil, fmt.Errorf("invalid cookie header: %w", err)
	}
	sess := session.New(cookies, v.cfg.Site.UserAgent, "manual", v.cfg.GetSessionDefaultTTL())
	return v.VerifySession(ctx, sess)
}

// VerifySession fetches the site root with the session attached and
// classifies the response.
func (v *Verifier) VerifySession(ctx context.Context, sess *session.Session) (*Result, error) {
	target := v.cfg.Site.BaseURL

	v.logger.Info("Verifying session",
		"url", target,
		"cookies", len(sess.Cookies),
		"source", sess.Source,
	)

	resp, err := v.fetcher.Fetch(ctx, target, sess)
	if err != nil {
		v.logger.Error("Verification fetch failed", "url", target, "error", err.Error())
		return &Result{Diagnosis: DiagnosisConnection, URL: target}, nil
	}

	result := &Result{
		StatusCode:    resp.StatusCode,
		ContentLength: len(resp.Body),
		URL:           resp.URL,
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		result.Diagnosis = DiagnosisShieldOrFormat
	case resp.StatusCode == http.StatusOK:
		isLogin, err := v.detector.IsLoginPage(string(resp.Body))
		if err != nil {
			return nil, fmt.Errorf("failed to inspect response body: %w", err)
		}
		if isLogin {
			result.Diagnosis = DiagnosisExpired
		} else {
			result.Diagnosis = DiagnosisAuthenticated
		}
	default:
		result.Diagnosis = DiagnosisUnexpectedStatus
	}

	v.logger.Info("Verification result",
		"diagnosis", result.Diagnosis.String(),
		"status", result.StatusCode,
		"bytes", result.ContentLength,
	)

	return result, nil
}
