// Package demosite serves a small website with planted audit findings:
// missing alt text, unlabeled form fields, absent security headers,
// loose cookies. Point a scan at it to see every dimension produce
// recommendations.
package demosite

import (
	"fmt"
	"net/http"
)

type pageDefinition struct {
	// Description says which findings the page plants.
	Description string
	ContentType string
	Headers     map[string]string
	Cookies     []*http.Cookie
	HTML        string
}

// DemoSite is a simple HTTP server that audits poorly on purpose.
type DemoSite struct {
	cfg   Config
	pages map[string]pageDefinition
}

// NewDemoSite creates a new demo site instance.
func NewDemoSite(cfg Config) *DemoSite {
	return &DemoSite{
		cfg:   cfg,
		pages: allPages(),
	}
}

// Handler returns the site as an http.Handler, for embedding in tests.
func (s *DemoSite) Handler() http.Handler {
	mux := http.NewServeMux()
	for path := range s.pages {
		p := path // capture for closure
		mux.HandleFunc(p, s.pageHandler(p))
	}
	return mux
}

// Start starts the demo site.
func (s *DemoSite) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	fmt.Printf("Demo site starting on http://localhost%s\n", addr)
	return http.ListenAndServe(addr, s.Handler())
}

func (s *DemoSite) pageHandler(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, ok := s.pages[path]
		if !ok || (path == "/" && r.URL.Path != "/") {
			http.NotFound(w, r)
			return
		}

		for k, v := range page.Headers {
			w.Header().Set(k, v)
		}
		for _, c := range page.Cookies {
			http.SetCookie(w, c)
		}

		contentType := page.ContentType
		if contentType == "" {
			contentType = "text/html"
		}
		w.Header().Set("Content-Type", contentType)

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(page.HTML))
	}
}

func allPages() map[string]pageDefinition {
	return map[string]pageDefinition{
		"/": {
			Description: "landing page: no meta description, loose session cookie, stack disclosure",
			Headers: map[string]string{
				"X-Powered-By": "DemoEngine/1.2.3",
			},
			Cookies: []*http.Cookie{
				{Name: "session", Value: "demo-session-token", Path: "/"},
			},
			HTML: `<!DOCTYPE html>
<html lang="en">
<head>
  <title>Acme Demo Shop</title>
  <meta name="viewport" content="width=device-width, initial-scale=1">
</head>
<body>
  <h1>Acme Demo Shop</h1>
  <p>Welcome to the demo storefront.</p>
  <nav>
    <a href="/products">Products</a>
    <a href="/about">About us</a>
    <a href="/contact">Contact</a>
  </nav>
</body>
</html>`,
		},
		"/products": {
			Description: "product listing: images without alt text, empty link",
			HTML: `<!DOCTYPE html>
<html lang="en">
<head>
  <title>Products - Acme Demo Shop</title>
  <meta name="description" content="Browse the demo product catalog.">
  <meta name="viewport" content="width=device-width, initial-scale=1">
</head>
<body>
  <h1>Products</h1>
  <ul>
    <li><img src="/static/widget.png"> Widget</li>
    <li><img src="/static/gadget.png"> Gadget</li>
  </ul>
  <a href="/products?page=2"></a>
</body>
</html>`,
		},
		"/about": {
			Description: "well-formed page, the control group",
			HTML: `<!DOCTYPE html>
<html lang="en">
<head>
  <title>About us - Acme Demo Shop</title>
  <meta name="description" content="The story behind the demo shop.">
  <meta name="viewport" content="width=device-width, initial-scale=1">
</head>
<body>
  <h1>About us</h1>
  <p>We sell demonstration widgets to demonstration customers.</p>
  <a href="/">Back home</a>
</body>
</html>`,
		},
		"/contact": {
			Description: "contact form: unlabeled inputs, no lang, zoom disabled",
			HTML: `<!DOCTYPE html>
<html>
<head>
  <title>Contact - Acme Demo Shop</title>
  <meta name="viewport" content="width=device-width, initial-scale=1, user-scalable=no">
</head>
<body>
  <h2>Contact us</h2>
  <form method="post" action="/contact">
    <input type="text" name="name" placeholder="Name">
    <input type="email" name="email" placeholder="Email">
    <textarea name="message"></textarea>
    <input type="submit" value="Send">
  </form>
</body>
</html>`,
		},
	}
}
