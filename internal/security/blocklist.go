// File: internal/security/blocklist.go

// Package security holds the URL blocklist applied to browser navigation
// results before they are reported back to the model.
package security

import (
	"fmt"
	"net/url"
	"strings"
)

// BlockedURLError reports a navigation that landed on a blocklisted domain.
type BlockedURLError struct {
	URL    string
	Domain string
}

func (e *BlockedURLError) Error() string {
	return fmt.Sprintf("blocked URL %q: domain %q is blocklisted", e.URL, e.Domain)
}

// Blocklist matches host names against a configured set of blocked domains.
// A domain entry blocks itself and every subdomain.
type Blocklist struct {
	domains []string
}

// New builds a Blocklist. Entries are normalized to lowercase without a
// leading dot.
func New(domains []string) *Blocklist {
	normalized := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(d)), ".")
		if d != "" {
			normalized = append(normalized, d)
		}
	}
	return &Blocklist{domains: normalized}
}

// Check returns a *BlockedURLError if rawURL's host is a blocked domain or a
// subdomain of one. Unparseable URLs pass; the model sees them either way.
func (b *Blocklist) Check(rawURL string) error {
	if len(b.domains) == 0 || rawURL == "" {
		return nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return nil
	}
	for _, d := range b.domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return &BlockedURLError{URL: rawURL, Domain: d}
		}
	}
	return nil
}
