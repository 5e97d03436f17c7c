// Package imagehost restricts listing image references to trusted storage hosts.
package imagehost

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultHosts is the storage host the frontend image loader accepts.
var DefaultHosts = []string{"firebasestorage.googleapis.com"}

// Policy is an allow-list of image hosts.
type Policy struct {
	hosts map[string]bool
}

// NewPolicy creates a policy from host names. Matching is case-insensitive;
// an empty list allows any https host.
func NewPolicy(hosts []string) *Policy {
	p := &Policy{hosts: make(map[string]bool, len(hosts))}
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			p.hosts[h] = true
		}
	}
	return p
}

// Hosts returns the allowed host names.
func (p *Policy) Hosts() []string {
	out := make([]string, 0, len(p.hosts))
	for h := range p.hosts {
		out = append(out, h)
	}
	return out
}

// Check validates a single image reference.
func (p *Policy) Check(ref string) error {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return fmt.Errorf("image %q is not a URL: %w", ref, err)
	}
	if u.Scheme != "https" {
		return fmt.Errorf("image %q must use https", ref)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("image %q has no host", ref)
	}
	if len(p.hosts) > 0 && !p.hosts[host] {
		return fmt.Errorf("image host %q is not allowed", host)
	}
	return nil
}

// CheckAll validates every reference and reports the first failure.
func (p *Policy) CheckAll(refs []string) error {
	for _, ref := range refs {
		if err := p.Check(ref); err != nil {
			return err
		}
	}
	return nil
}
