// Package secret verifies shared secrets presented by inbound callbacks.
package secret

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
)

// Result reports the outcome of a verification.
//
// Bypassed is set when the expected secret is unconfigured and the call
// was accepted without comparison. Callers must log that case distinctly:
// it means the surface is running with authentication disabled.
type Result struct {
	Accepted bool
	Bypassed bool
}

// Verify compares candidate against expected in constant time.
//
// An empty expected secret is the single sanctioned bypass: every
// candidate is accepted and Bypassed is set. Production configs refuse
// to start in that mode (config.Validate); the bypass exists for local
// development only.
func Verify(candidate, expected string) Result {
	if expected == "" {
		return Result{Accepted: true, Bypassed: true}
	}
	ok := subtle.ConstantTimeCompare([]byte(candidate), []byte(expected)) == 1
	return Result{Accepted: ok}
}

// Generate returns a hex-encoded random secret of n bytes.
func Generate(n int) (string, error) {
	if n <= 0 {
		n = 32
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
