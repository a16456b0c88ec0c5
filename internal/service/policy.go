package service

import (
	"strings"

	apperrors "github.com/quayside/authgate/internal/errors"
	"golang.org/x/net/publicsuffix"
)

var (
	// ErrInvalidAddr is returned when an email has no extractable domain.
	ErrInvalidAddr = apperrors.Validation("email address has no extractable domain")
	// ErrDomainNotAllowed is returned when the email domain is not allowlisted.
	ErrDomainNotAllowed = apperrors.Forbidden("email domain is not in the allowlist")
)

// DomainPolicy decides which email domains may establish new accounts.
// Matching is case-insensitive. With AllowSubdomains set, an address under
// any subdomain of an allowlisted registrable domain also passes.
type DomainPolicy struct {
	domains         map[string]struct{}
	allowSubdomains bool
}

// NewDomainPolicy builds a policy from the allowlisted domains.
func NewDomainPolicy(domains []string, allowSubdomains bool) *DomainPolicy {
	set := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			set[d] = struct{}{}
		}
	}
	return &DomainPolicy{domains: set, allowSubdomains: allowSubdomains}
}

// Check validates the email's domain against the allowlist. It returns
// ErrInvalidAddr when no domain can be extracted and ErrDomainNotAllowed
// when the domain is absent from the allowlist.
func (p *DomainPolicy) Check(email string) error {
	domain, ok := emailDomain(email)
	if !ok {
		return ErrInvalidAddr
	}

	if _, found := p.domains[domain]; found {
		return nil
	}

	if p.allowSubdomains {
		// Reduce mail.corp.example.com to example.com before matching.
		if etld1, err := publicsuffix.EffectiveTLDPlusOne(domain); err == nil {
			if _, found := p.domains[etld1]; found {
				return nil
			}
		}
	}

	return ErrDomainNotAllowed
}

// emailDomain extracts the lowercased domain portion of an email address.
func emailDomain(email string) (string, bool) {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return "", false
	}
	domain := strings.ToLower(strings.TrimSpace(email[at+1:]))
	if domain == "" {
		return "", false
	}
	return domain, true
}
