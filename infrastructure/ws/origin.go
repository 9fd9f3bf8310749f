package ws

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/samber/lo"
)

// originPolicy decides which browser origins may open a websocket.
// An empty allow-list accepts every origin, including requests without one.
type originPolicy struct {
	log     *slog.Logger
	allowed []string
}

func newOriginPolicy(log *slog.Logger, origins []string) originPolicy {
	policy := originPolicy{log: log}
	for _, origin := range origins {
		normalized, ok := normalizeOrigin(strings.TrimSpace(origin))
		if !ok {
			log.Warn("Ignoring invalid origin in configuration", "origin", origin)
			continue
		}
		policy.allowed = append(policy.allowed, normalized)
	}
	return policy
}

func (p originPolicy) check(r *http.Request) bool {
	if len(p.allowed) == 0 {
		return true
	}
	normalized, ok := normalizeOrigin(r.Header.Get("Origin"))
	if ok && lo.Contains(p.allowed, normalized) {
		return true
	}
	p.log.Warn("Blocked websocket connection from disallowed origin", "origin", r.Header.Get("Origin"))
	return false
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}
