// Command demosite starts a deliberately flawed website for demonstrating
// the SiteSense audit pipeline.
// Usage: go run ./cmd/demosite [port]
// Default port: 9999
package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/sitesense/sitesense/internal/demosite"
)

func main() {
	cfg := demosite.DefaultConfig()

	// Optional: custom port from command line
	if len(os.Args) > 1 {
		port, err := strconv.Atoi(os.Args[1])
		if err != nil || port < 1 || port > 65535 {
			log.Fatalf("Invalid port: %s", os.Args[1])
		}
		cfg.Port = port
	}

	fmt.Println("===========================================")
	fmt.Println("   SiteSense Demo Site - Audit Target")
	fmt.Println("===========================================")
	fmt.Println()
	fmt.Println("This site audits poorly on purpose. Start the API")
	fmt.Println("server and POST /scan with this site's URL to see")
	fmt.Println("every dimension produce findings:")
	fmt.Println()
	fmt.Println("  - SEO: missing meta descriptions and headings")
	fmt.Println("  - Accessibility: images without alt, unlabeled inputs")
	fmt.Println("  - Security: missing headers, loose cookies")
	fmt.Println()

	site := demosite.NewDemoSite(cfg)
	if err := site.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
