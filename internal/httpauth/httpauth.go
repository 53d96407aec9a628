// Package httpauth provides pluggable HTTP request authentication for the
// URI resource fetcher, mirroring the teacher's layered authenticator chain
// (apphttp.NewNetrcAuthenticator): try the caller-supplied authenticator,
// fall through to anonymous if it declines.
package httpauth

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/jdx/go-netrc"
)

// Authenticator optionally adds credentials to req for the given host.
// SetAuth returns false if it has no credentials for host, letting the
// fetcher fall through to the next authenticator in the chain.
type Authenticator interface {
	SetAuth(req *http.Request, host string) bool
}

// AuthenticatorFunc adapts a function to an Authenticator.
type AuthenticatorFunc func(req *http.Request, host string) bool

func (f AuthenticatorFunc) SetAuth(req *http.Request, host string) bool { return f(req, host) }

// Chain tries each authenticator in order, stopping at the first one that
// reports success.
func Chain(authenticators ...Authenticator) Authenticator {
	return AuthenticatorFunc(func(req *http.Request, host string) bool {
		for _, a := range authenticators {
			if a.SetAuth(req, host) {
				return true
			}
		}
		return false
	})
}

// NewNetrcAuthenticator reads ~/.netrc (or the file at path, if non-empty)
// and returns an Authenticator that sets HTTP basic auth for hosts with a
// matching machine entry. A missing netrc file is not an error; the
// authenticator simply never matches.
func NewNetrcAuthenticator(path string) (Authenticator, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return noopAuthenticator{}, nil
		}
		candidate := filepath.Join(home, ".netrc")
		if _, err := os.Stat(candidate); err != nil {
			return noopAuthenticator{}, nil
		}
		path = candidate
	}
	n, err := netrc.ParseFile(path)
	if err != nil {
		return noopAuthenticator{}, nil
	}
	return &netrcAuthenticator{netrc: n}, nil
}

type netrcAuthenticator struct {
	netrc *netrc.Netrc
}

func (a *netrcAuthenticator) SetAuth(req *http.Request, host string) bool {
	host = strings.ToLower(host)
	machine := a.netrc.Machine(host)
	if machine == nil || machine.Login == "" {
		return false
	}
	req.SetBasicAuth(machine.Login, machine.Password)
	return true
}

type noopAuthenticator struct{}

func (noopAuthenticator) SetAuth(req *http.Request, host string) bool { return false }
