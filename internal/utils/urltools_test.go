package utils_test

import (
	"errors"
	"testing"

	"github.com/sitesense/sitesense/internal/utils"
)

func TestValidateScanURL_Accepts(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"https://example.com":          "https://example.com",
		"http://example.com/path/":     "http://example.com/path",
		"https://EXAMPLE.com:443/a#f":  "https://example.com/a",
		"  https://example.com/page ":  "https://example.com/page",
		"http://example.com:80":        "http://example.com",
		"https://example.com:8443/app": "https://example.com:8443/app",
	}
	for in, want := range cases {
		got, err := utils.ValidateScanURL(in)
		if err != nil {
			t.Errorf("ValidateScanURL(%q): unexpected error %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ValidateScanURL(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestValidateScanURL_Rejects(t *testing.T) {
	t.Parallel()
	for _, in := range []string{
		"",
		"   ",
		"notaurl",
		"ftp://example.com",
		"//example.com",
		"https://",
		"javascript:alert(1)",
	} {
		_, err := utils.ValidateScanURL(in)
		if err == nil {
			t.Errorf("ValidateScanURL(%q): expected error", in)
			continue
		}
		if !errors.Is(err, utils.ErrInvalidURL) {
			t.Errorf("ValidateScanURL(%q): expected ErrInvalidURL, got %v", in, err)
		}
	}
}

func TestURLTools_DomainIsSame(t *testing.T) {
	t.Parallel()
	a, err := utils.NewURLTools("https://example.com/page")
	if err != nil {
		t.Fatalf("NewURLTools: %v", err)
	}
	b, _ := utils.NewURLTools("https://example.com:8443/other")
	c, _ := utils.NewURLTools("https://elsewhere.example/")

	if !a.DomainIsSame(b) {
		t.Error("same host on different port should match")
	}
	if a.DomainIsSame(c) {
		t.Error("different hosts must not match")
	}
}

func TestURLTools_ResolveFullUrlString(t *testing.T) {
	t.Parallel()
	base, err := utils.NewURLTools("https://example.com/dir/page")
	if err != nil {
		t.Fatalf("NewURLTools: %v", err)
	}

	cases := map[string]string{
		"/abs":                     "https://example.com/abs",
		"rel":                      "https://example.com/dir/rel",
		"https://other.example/x":  "https://other.example/x",
		"  /trimmed ":              "https://example.com/trimmed",
		"frag#section":             "https://example.com/dir/frag",
		"HTTPS://EXAMPLE.COM/UP/":  "https://example.com/UP",
	}
	for in, want := range cases {
		got, err := base.ResolveFullUrlString(in)
		if err != nil {
			t.Errorf("ResolveFullUrlString(%q): unexpected error %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ResolveFullUrlString(%q): expected %q, got %q", in, want, got)
		}
	}
}
