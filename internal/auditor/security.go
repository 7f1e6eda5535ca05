package auditor

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/sitesense/sitesense/internal/logging"
	"github.com/sitesense/sitesense/internal/model"
	"github.com/sitesense/sitesense/internal/snapshot"
)

// SecurityAuditor runs passive security checks: response header and
// cookie hygiene per endpoint plus DNS posture per host. With
// PassiveScanOnly disabled it additionally probes a short list of
// commonly exposed sensitive paths.
type SecurityAuditor struct {
	client    *http.Client
	dnsServer string
	logger    logging.Logger
}

func NewSecurityAuditor(client *http.Client, logger logging.Logger) *SecurityAuditor {
	if client == nil {
		client = &http.Client{
			Timeout: 15 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}
	return &SecurityAuditor{
		client:    client,
		dnsServer: resolverAddr(),
		logger:    logger.With(logging.Field{Key: "component", Value: "auditor.security"}),
	}
}

func resolverAddr() string {
	if cfg, err := dns.ClientConfigFromFile("/etc/resolv.conf"); err == nil && len(cfg.Servers) > 0 {
		return net.JoinHostPort(cfg.Servers[0], cfg.Port)
	}
	return "1.1.1.1:53"
}

// Audit inspects each endpoint within the configured timeout budget.
// The budget bounds this stage only; hitting it fails the stage.
func (a *SecurityAuditor) Audit(ctx context.Context, input model.SecurityInput) (*model.SecurityReport, error) {
	if input.Options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, input.Options.Timeout)
		defer cancel()
	}

	report := &model.SecurityReport{Websites: []model.WebsiteFindings{}}
	checkedHosts := make(map[string]bool)

	for _, endpoint := range input.Endpoints {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		issues := a.checkEndpoint(ctx, endpoint, input.Options.PassiveScanOnly)

		// DNS posture once per distinct host.
		if host := hostOf(endpoint); host != "" && !checkedHosts[host] {
			checkedHosts[host] = true
			issues = append(issues, a.checkDNS(ctx, host)...)
		}

		report.Websites = append(report.Websites, model.WebsiteFindings{
			URL:    endpoint,
			Issues: issues,
		})
	}

	report.Summary = summarizeFindings(report.Websites)

	if input.OutputTarget != "" {
		if err := snapshot.WriteMarshaled(input.OutputTarget, report); err != nil {
			a.logger.Warn("writing security snapshot",
				logging.Field{Key: "path", Value: input.OutputTarget},
				logging.Field{Key: "error", Value: err.Error()})
		}
	}

	return report, nil
}

type headerCheck struct {
	header      string
	title       string
	risk        string
	description string
	impact      int
	effort      string
}

var headerChecks = []headerCheck{
	{
		header:      "Content-Security-Policy",
		title:       "Content Security Policy header not set",
		risk:        "Medium",
		description: "Without a CSP the browser has no restriction on where scripts, styles and frames may load from, making XSS far easier to exploit.",
		impact:      6,
		effort:      "Medium",
	},
	{
		header:      "X-Content-Type-Options",
		title:       "X-Content-Type-Options header missing",
		risk:        "Low",
		description: "Responses can be MIME-sniffed into executable types. Set 'X-Content-Type-Options: nosniff'.",
		impact:      3,
		effort:      "Low",
	},
	{
		header:      "X-Frame-Options",
		title:       "Missing anti-clickjacking header",
		risk:        "Medium",
		description: "Neither X-Frame-Options nor a CSP frame-ancestors directive is set; the page can be framed by any site.",
		impact:      5,
		effort:      "Low",
	},
	{
		header:      "Referrer-Policy",
		title:       "Referrer-Policy header missing",
		risk:        "Informational",
		description: "Full URLs (possibly with tokens) leak to third parties via the Referer header.",
		impact:      1,
		effort:      "Low",
	},
}

func (a *SecurityAuditor) checkEndpoint(ctx context.Context, endpoint string, passiveOnly bool) []model.SecurityIssue {
	issues := []model.SecurityIssue{}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return issues
	}
	resp, err := a.client.Do(req)
	if err != nil {
		a.logger.Warn("security probe failed",
			logging.Field{Key: "url", Value: endpoint},
			logging.Field{Key: "error", Value: err.Error()})
		return issues
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if strings.HasPrefix(endpoint, "http://") {
		issues = append(issues, model.SecurityIssue{
			Title:       "Site served over plain HTTP",
			Risk:        "High",
			Description: "All traffic, including any credentials and session cookies, crosses the network unencrypted.",
			Impact:      8,
			Effort:      "Medium",
		})
	}

	for _, check := range headerChecks {
		if resp.Header.Get(check.header) != "" {
			continue
		}
		if check.header == "X-Frame-Options" &&
			strings.Contains(resp.Header.Get("Content-Security-Policy"), "frame-ancestors") {
			continue
		}
		issues = append(issues, model.SecurityIssue{
			Title:       check.title,
			Risk:        check.risk,
			Description: check.description,
			Impact:      check.impact,
			Effort:      check.effort,
		})
	}

	if strings.HasPrefix(endpoint, "https://") && resp.Header.Get("Strict-Transport-Security") == "" {
		issues = append(issues, model.SecurityIssue{
			Title:       "Strict-Transport-Security header not set",
			Risk:        "Low",
			Description: "Browsers may still attempt plain-HTTP connections to this host.",
			Impact:      3,
			Effort:      "Low",
		})
	}

	for _, cookie := range resp.Header.Values("Set-Cookie") {
		lower := strings.ToLower(cookie)
		name, _, _ := strings.Cut(cookie, "=")
		if !strings.Contains(lower, "httponly") {
			issues = append(issues, model.SecurityIssue{
				Title:       "Cookie without HttpOnly flag",
				Risk:        "Low",
				Description: "Cookie '" + name + "' is readable from JavaScript.",
				Impact:      3,
				Effort:      "Low",
			})
		}
		if strings.HasPrefix(endpoint, "https://") && !strings.Contains(lower, "secure") {
			issues = append(issues, model.SecurityIssue{
				Title:       "Cookie without Secure flag",
				Risk:        "Low",
				Description: "Cookie '" + name + "' may be sent over plain HTTP.",
				Impact:      3,
				Effort:      "Low",
			})
		}
	}

	if server := resp.Header.Get("Server"); server != "" && strings.ContainsAny(server, "0123456789") {
		issues = append(issues, model.SecurityIssue{
			Title:       "Server version disclosure",
			Risk:        "Informational",
			Description: "The Server header exposes version information: " + server,
			Impact:      1,
			Effort:      "Low",
		})
	}
	if powered := resp.Header.Get("X-Powered-By"); powered != "" {
		issues = append(issues, model.SecurityIssue{
			Title:       "X-Powered-By header disclosure",
			Risk:        "Informational",
			Description: "The X-Powered-By header exposes the technology stack: " + powered,
			Impact:      1,
			Effort:      "Low",
		})
	}

	if !passiveOnly {
		issues = append(issues, a.probeSensitivePaths(ctx, endpoint)...)
	}

	return issues
}

var sensitivePaths = []struct {
	path    string
	marker  string
	title   string
	descMsg string
}{
	{"/.git/config", "[core]", "Exposed git repository", "The .git directory is web-accessible; source code and history can be downloaded."},
	{"/.env", "=", "Exposed environment file", "A .env file is web-accessible and may contain credentials."},
}

func (a *SecurityAuditor) probeSensitivePaths(ctx context.Context, endpoint string) []model.SecurityIssue {
	base, err := url.Parse(endpoint)
	if err != nil {
		return nil
	}

	var issues []model.SecurityIssue
	for _, probe := range sensitivePaths {
		target := base.Scheme + "://" + base.Host + probe.path
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			continue
		}
		resp, err := a.client.Do(req)
		if err != nil {
			continue
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()

		if resp.StatusCode == http.StatusOK && strings.Contains(string(body), probe.marker) {
			issues = append(issues, model.SecurityIssue{
				Title:       probe.title,
				Risk:        "High",
				Description: probe.descMsg,
				Impact:      9,
				Effort:      "Low",
			})
		}
	}
	return issues
}

// checkDNS looks up email and certificate-issuance posture for a host.
// Lookup failures are logged and produce no findings.
func (a *SecurityAuditor) checkDNS(ctx context.Context, host string) []model.SecurityIssue {
	if net.ParseIP(host) != nil || host == "localhost" || strings.HasSuffix(host, ".local") {
		return nil
	}

	var issues []model.SecurityIssue
	client := &dns.Client{Timeout: 5 * time.Second}

	if txts, ok := a.queryTXT(ctx, client, host); ok {
		hasSPF := false
		for _, txt := range txts {
			if strings.HasPrefix(txt, "v=spf1") {
				hasSPF = true
				break
			}
		}
		if !hasSPF {
			issues = append(issues, model.SecurityIssue{
				Title:       "No SPF record",
				Risk:        "Low",
				Description: "Mail claiming to come from " + host + " cannot be verified by receivers.",
				Impact:      3,
				Effort:      "Low",
			})
		}
	}

	if txts, ok := a.queryTXT(ctx, client, "_dmarc."+host); !ok || len(txts) == 0 {
		issues = append(issues, model.SecurityIssue{
			Title:       "No DMARC record",
			Risk:        "Low",
			Description: "Without DMARC, spoofed mail from " + host + " is not rejected.",
			Impact:      3,
			Effort:      "Low",
		})
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), dns.TypeCAA)
	if in, _, err := client.ExchangeContext(ctx, msg, a.dnsServer); err == nil && len(in.Answer) == 0 {
		issues = append(issues, model.SecurityIssue{
			Title:       "No CAA record",
			Risk:        "Informational",
			Description: "Any certificate authority may issue certificates for " + host + ".",
			Impact:      1,
			Effort:      "Low",
		})
	}

	return issues
}

func (a *SecurityAuditor) queryTXT(ctx context.Context, client *dns.Client, name string) ([]string, bool) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), dns.TypeTXT)
	in, _, err := client.ExchangeContext(ctx, msg, a.dnsServer)
	if err != nil {
		a.logger.Debug("dns lookup failed",
			logging.Field{Key: "name", Value: name},
			logging.Field{Key: "error", Value: err.Error()})
		return nil, false
	}
	var out []string
	for _, rr := range in.Answer {
		if txt, ok := rr.(*dns.TXT); ok {
			out = append(out, strings.Join(txt.Txt, ""))
		}
	}
	return out, true
}

func hostOf(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

var riskRank = map[string]int{"high": 3, "medium": 2, "low": 1, "informational": 0}

// summarizeFindings builds the risk distribution and the deduplicated
// top-vulnerabilities list from the raw per-site issues.
func summarizeFindings(websites []model.WebsiteFindings) *model.SecuritySummary {
	summary := &model.SecuritySummary{TopVulnerabilities: []model.TopVulnerability{}}

	type group struct {
		vuln  model.TopVulnerability
		order int
	}
	groups := make(map[string]*group)

	for _, site := range websites {
		for _, issue := range site.Issues {
			switch strings.ToLower(issue.Risk) {
			case "high":
				summary.RiskDistribution.High++
			case "medium":
				summary.RiskDistribution.Medium++
			case "low":
				summary.RiskDistribution.Low++
			default:
				summary.RiskDistribution.Informational++
			}

			g, ok := groups[issue.Title]
			if !ok {
				g = &group{
					vuln: model.TopVulnerability{
						Title:  issue.Title,
						Risk:   issue.Risk,
						Impact: issue.Impact,
						Effort: issue.Effort,
					},
					order: len(groups),
				}
				groups[issue.Title] = g
			}
			g.vuln.Occurrences++
		}
	}

	sorted := make([]*group, 0, len(groups))
	for _, g := range groups {
		sorted = append(sorted, g)
	}
	sort.Slice(sorted, func(i, j int) bool {
		ri := riskRank[strings.ToLower(sorted[i].vuln.Risk)]
		rj := riskRank[strings.ToLower(sorted[j].vuln.Risk)]
		if ri != rj {
			return ri > rj
		}
		if sorted[i].vuln.Occurrences != sorted[j].vuln.Occurrences {
			return sorted[i].vuln.Occurrences > sorted[j].vuln.Occurrences
		}
		return sorted[i].order < sorted[j].order
	})
	for _, g := range sorted {
		summary.TopVulnerabilities = append(summary.TopVulnerabilities, g.vuln)
	}

	return summary
}
