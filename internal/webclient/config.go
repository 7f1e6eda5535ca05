package webclient

import "time"

type Backend string

const (
	BackendNetHTTP  Backend = "nethttp"
	BackendChromedp Backend = "chromedp"
)

// Config selects and tunes a webclient backend.
type Config struct {
	Backend Backend

	// Timeout bounds a single fetch (nethttp backend).
	Timeout time.Duration

	// IdleAfter is how long the network must stay quiet before a page is
	// considered loaded (chromedp backend).
	IdleAfter time.Duration

	// Headless controls whether the browser window is shown (chromedp).
	Headless bool
}

// DefaultConfig returns sensible development defaults.
func DefaultConfig() Config {
	return Config{
		Backend:   BackendNetHTTP,
		Timeout:   30 * time.Second,
		IdleAfter: 2 * time.Second,
		Headless:  true,
	}
}
