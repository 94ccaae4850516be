// Package classify decides whether a signup email belongs to a consumer
// mailbox or a company domain.
package classify

import (
	"strings"

	"github.com/sells-group/sdr-enrich/internal/model"
)

// personalDomains are the consumer mail providers treated as PERSONAL.
var personalDomains = map[string]struct{}{
	"gmail.com":      {},
	"yahoo.com":      {},
	"hotmail.com":    {},
	"outlook.com":    {},
	"aol.com":        {},
	"icloud.com":     {},
	"protonmail.com": {},
	"me.com":         {},
}

// Domain returns the lower-cased part after the last "@", or "" when the
// address has none.
func Domain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(email[at+1:]))
}

// LocalPart returns the part before the last "@", or the whole input when
// there is none.
func LocalPart(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return strings.TrimSpace(email)
	}
	return strings.TrimSpace(email[:at])
}

// Classify maps an email to PERSONAL when its domain is a known consumer
// provider and to COMPANY otherwise, including malformed input.
func Classify(email string) model.EmailType {
	if IsPersonalDomain(Domain(email)) {
		return model.EmailTypePersonal
	}
	return model.EmailTypeCompany
}

// IsPersonalDomain reports whether domain is a consumer mail provider.
func IsPersonalDomain(domain string) bool {
	_, ok := personalDomains[strings.ToLower(domain)]
	return ok
}
