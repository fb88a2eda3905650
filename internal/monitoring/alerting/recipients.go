package alerting

import (
	"sort"

	"github.com/proactivedb/fleetmon/internal/monitoring/settings"
)

// ResolveRecipients returns the union of the global admin addresses and the
// addresses of the customer owning targetID. When configuration maps a target
// to more than one customer only the first match contributes; admins are
// always included, so the alert itself is never lost to a mis-scoped mapping.
func ResolveRecipients(s *settings.Settings, targetID string) []string {
	seen := map[string]struct{}{}
	for _, e := range s.EmailSettings.AdminEmails {
		if e != "" {
			seen[e] = struct{}{}
		}
	}
	if cust, ok := s.CustomerFor(targetID); ok {
		for _, e := range cust.Emails {
			if e != "" {
				seen[e] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for e := range seen {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}
