package pipeline

import (
	"strings"

	"github.com/customeros/mailsherpa/mailvalidate"
	"golang.org/x/net/idna"

	"github.com/customeros/violationstack/internal/utils"
)

// asciiDomain folds internationalized domains to punycode so allow-list entries and senders
// compare in one form. Values idna rejects are only lowercased.
func asciiDomain(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return ""
	}
	prefix, domain := "", value
	if at := strings.LastIndex(value, "@"); at >= 0 {
		prefix, domain = value[:at+1], value[at+1:]
	}
	if ascii, err := idna.Lookup.ToASCII(domain); err == nil {
		domain = ascii
	}
	return prefix + domain
}

// SenderAddress extracts the bare lowercased address from a From value such as
// "Safety Team <noreply@amazon.com>".
func SenderAddress(from string) string {
	from = strings.ToLower(strings.TrimSpace(from))
	if start := strings.LastIndex(from, "<"); start >= 0 {
		if end := strings.Index(from[start:], ">"); end > 0 {
			from = strings.TrimSpace(from[start+1 : start+end])
		}
	}
	return from
}

// SenderAllowed reports whether from's domain is one of the allowed domains or a subdomain of
// one. An entry holding a full address admits only that address. An empty allow-list admits
// every sender.
func SenderAllowed(from string, domains []string) bool {
	allowed := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.TrimLeft(strings.TrimSpace(d), ".")
		if d = asciiDomain(d); d != "" {
			allowed = append(allowed, d)
		}
	}
	if len(allowed) == 0 {
		return true
	}

	address := asciiDomain(SenderAddress(from))
	domain := utils.ExtractDomainFromEmail(address)
	if validation := mailvalidate.ValidateEmailSyntax(address); validation.IsValid && validation.Domain != "" {
		domain = asciiDomain(validation.Domain)
	}
	if domain == "" {
		return false
	}

	for _, d := range allowed {
		switch {
		case strings.HasPrefix(d, "@"):
			if domain == d[1:] {
				return true
			}
		case strings.Contains(d, "@"):
			if address == d {
				return true
			}
		case domain == d, strings.HasSuffix(domain, "."+d):
			return true
		}
	}
	return false
}
