package api

import (
	"crypto/subtle"
	"errors"
	"strings"
	"sync"

	"courtbook/internal/config"

	"golang.org/x/time/rate"
)

const defaultBurst = 5

// clientLimiter keeps one token bucket per client key.
type clientLimiter struct {
	rps      rate.Limit
	burst    int
	limiters sync.Map // map[string]*rate.Limiter
}

func newClientLimiter(cfg config.APIRateLimitConfig) *clientLimiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultBurst
	}
	return &clientLimiter{rps: rate.Limit(cfg.RPS), burst: burst}
}

// allow reports whether key may make another request. A non-positive rate
// disables limiting.
func (l *clientLimiter) allow(key string) bool {
	if l.rps <= 0 {
		return true
	}
	if v, ok := l.limiters.Load(key); ok {
		return v.(*rate.Limiter).Allow()
	}
	actual, _ := l.limiters.LoadOrStore(key, rate.NewLimiter(l.rps, l.burst))
	return actual.(*rate.Limiter).Allow()
}

var (
	errMissingCredentials = errors.New("missing api key headers")
	errInvalidAPIKey      = errors.New("invalid api key")
	errInvalidExtra       = errors.New("invalid extra header")
	errPermissionDenied   = errors.New("permission denied")
)

// keyring verifies the API key pair sent by a client and its permissions.
type keyring struct {
	apiKeyHeader string
	extraHeader  string
	clients      map[string]config.APIClientKey
}

func newKeyring(cfg config.APIAuthConfig) *keyring {
	m := make(map[string]config.APIClientKey, len(cfg.APIKeys))
	for _, k := range cfg.APIKeys {
		m[k.Key] = k
	}
	return &keyring{apiKeyHeader: apiKeyHeader(cfg), extraHeader: extraHeader(cfg), clients: m}
}

func (k *keyring) verify(apiKey, extra, required string) (config.APIClientKey, error) {
	apiKey, extra = strings.TrimSpace(apiKey), strings.TrimSpace(extra)
	if apiKey == "" || extra == "" {
		return config.APIClientKey{}, errMissingCredentials
	}

	client, ok := k.clients[apiKey]
	if !ok {
		return config.APIClientKey{}, errInvalidAPIKey
	}
	if subtle.ConstantTimeCompare([]byte(client.Extra), []byte(extra)) != 1 {
		return config.APIClientKey{}, errInvalidExtra
	}
	if !hasPermission(client, required) {
		return client, errPermissionDenied
	}
	return client, nil
}

// hasPermission treats an empty permission list as allow-all.
func hasPermission(client config.APIClientKey, required string) bool {
	if required == "" || len(client.Permissions) == 0 {
		return true
	}
	for _, p := range client.Permissions {
		if strings.TrimSpace(p) == required {
			return true
		}
	}
	return false
}
