// Package relay implements the asynchronous callback correlation core:
// dispatch tracking, callback authentication and exactly-once resolution.
package relay

import (
	"net/http"
	"net/url"

	"github.com/tinyland-inc/relayclaw/pkg/logger"
	"github.com/tinyland-inc/relayclaw/pkg/secret"
)

// SourceKind says where a candidate secret may be found on an inbound
// callback.
type SourceKind int

const (
	SourceHeader SourceKind = iota
	SourceQuery
	SourceBody
)

// Source names one place to look for the secret. Sources are scanned in
// configuration order; the first non-empty candidate wins.
type Source struct {
	Kind SourceKind
	Name string
}

// Callback is an inbound result delivery from the executor, reduced to
// what authentication and resolution need.
type Callback struct {
	RequestID  string
	Result     Result
	RemoteAddr string

	Headers http.Header
	Query   url.Values
	// Fields holds the string-valued top-level body fields, so a secret
	// carried in the JSON payload can participate in the source scan.
	Fields map[string]string
}

// Result is the executor's outcome for a dispatched task.
type Result struct {
	Success bool
	Output  string
	Error   string
}

// Authenticator validates inbound callbacks against one expected secret.
type Authenticator struct {
	sources  []Source
	expected string
}

// NewAuthenticator builds an authenticator scanning the given sources in
// order. Construct once at startup; it is immutable afterwards.
func NewAuthenticator(sources []Source, expected string) *Authenticator {
	return &Authenticator{sources: sources, expected: expected}
}

// Authenticate extracts the candidate secret from the callback and
// delegates to the constant-time verifier. A candidate found nowhere is
// treated as the empty string. Rejections are logged with the remote
// address only; candidate and expected values never reach the logs.
func (a *Authenticator) Authenticate(cb *Callback) secret.Result {
	res := secret.Verify(a.candidate(cb), a.expected)
	switch {
	case res.Bypassed:
		logger.WarnCF("relay", "Callback accepted with authentication disabled", map[string]any{
			"remote_addr": cb.RemoteAddr,
			"request_id":  cb.RequestID,
		})
	case !res.Accepted:
		logger.WarnCF("relay", "Callback rejected: secret mismatch", map[string]any{
			"remote_addr": cb.RemoteAddr,
			"request_id":  cb.RequestID,
		})
	}
	return res
}

func (a *Authenticator) candidate(cb *Callback) string {
	for _, src := range a.sources {
		var v string
		switch src.Kind {
		case SourceHeader:
			if cb.Headers != nil {
				v = cb.Headers.Get(src.Name)
			}
		case SourceQuery:
			if cb.Query != nil {
				v = cb.Query.Get(src.Name)
			}
		case SourceBody:
			v = cb.Fields[src.Name]
		}
		if v != "" {
			return v
		}
	}
	return ""
}
