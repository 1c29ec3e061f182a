package ws

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func upgradeRequest(origin, host string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Host = host
	if origin != "" {
		r.Header.Set("Origin", origin)
	}
	return r
}

func TestOriginAllowed(t *testing.T) {
	// No Origin header: native apps and server-side clients.
	assert.True(t, originAllowed("", upgradeRequest("", "api.workbridge.dev")))

	// Same host always passes, configured or not.
	assert.True(t, originAllowed("", upgradeRequest("https://api.workbridge.dev", "api.workbridge.dev")))
	assert.True(t, originAllowed("https://app.workbridge.dev", upgradeRequest("https://api.workbridge.dev", "api.workbridge.dev")))

	// Cross-origin passes only when it matches the configured frontend.
	assert.True(t, originAllowed("https://app.workbridge.dev", upgradeRequest("https://app.workbridge.dev", "api.workbridge.dev")))
	assert.True(t, originAllowed("https://app.workbridge.dev/", upgradeRequest("https://app.workbridge.dev", "api.workbridge.dev")))
	assert.False(t, originAllowed("https://app.workbridge.dev", upgradeRequest("https://evil.example.com", "api.workbridge.dev")))

	// Unconfigured cross-origin is refused.
	assert.False(t, originAllowed("", upgradeRequest("https://evil.example.com", "api.workbridge.dev")))
}
