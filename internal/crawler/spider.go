// Package crawler implements the crawler adapter contract with a
// same-origin breadth-first spider.
package crawler

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/sitesense/sitesense/internal/logging"
	"github.com/sitesense/sitesense/internal/model"
	"github.com/sitesense/sitesense/internal/utils"
	"github.com/sitesense/sitesense/internal/webclient"
)

// Spider crawls a site breadth-first up to a depth bound, staying on the
// target's host. Requests are rate limited so the audit itself doesn't
// distort the target's performance numbers.
type Spider struct {
	wc      webclient.WebClient
	limiter *rate.Limiter
	logger  logging.Logger
}

// NewSpider creates a spider fetching through wc at most reqPerSec
// requests per second (0 disables limiting).
func NewSpider(wc webclient.WebClient, reqPerSec float64, logger logging.Logger) *Spider {
	var limiter *rate.Limiter
	if reqPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(reqPerSec), 1)
	}
	return &Spider{
		wc:      wc,
		limiter: limiter,
		logger:  logger,
	}
}

type spiderHelper struct {
	spider   *Spider
	maxDepth int
	root     *utils.URLTools
	depth    map[string]int
	results  []string
	re       *regexp.Regexp
}

func newSpiderHelper(spider *Spider, root string, maxDepth int) (*spiderHelper, error) {
	rootURL, err := utils.NewURLTools(root)
	if err != nil {
		return nil, err
	}
	canonical := rootURL.URL.String()

	return &spiderHelper{
		spider:   spider,
		maxDepth: maxDepth,
		root:     rootURL,
		depth:    map[string]int{canonical: 0},
		results:  []string{canonical},
		re:       regexp.MustCompile(`https?://[^\s"'<>]+`),
	}, nil
}

func (sh *spiderHelper) resolveFullUrls(baseURL string, links []string) []string {
	base, err := utils.NewURLTools(baseURL)
	if err != nil {
		sh.spider.logger.Warn("couldn't parse base url",
			logging.Field{Key: "url", Value: baseURL},
			logging.Field{Key: "error", Value: err.Error()})
		return nil
	}

	var result []string
	for _, v := range links {
		resolved, err := base.ResolveFullUrlString(v)
		if err != nil {
			sh.spider.logger.Warn("couldn't resolve full url",
				logging.Field{Key: "url", Value: v},
				logging.Field{Key: "error", Value: err.Error()})
			continue
		}
		result = append(result, resolved)
	}
	return result
}

func (sh *spiderHelper) extractLinksHTML(node *html.Node, baseURL string, links *[]string) {
	if node.Type == html.ElementNode {
		var cLinks []string
		hasSrc := false

		for _, attr := range node.Attr {
			if attr.Key == "href" || attr.Key == "src" {
				cLinks = append(cLinks, attr.Val)
				hasSrc = true
			}
		}

		if node.Data == "script" && !hasSrc && node.FirstChild != nil && node.FirstChild.Type == html.TextNode {
			cLinks = append(cLinks, sh.re.FindAllString(node.FirstChild.Data, -1)...)
		}

		*links = append(*links, sh.resolveFullUrls(baseURL, cLinks)...)
	}

	for c := node.FirstChild; c != nil; c = c.NextSibling {
		sh.extractLinksHTML(c, baseURL, links)
	}
}

func (sh *spiderHelper) crawlPage(ctx context.Context, target string) ([]string, error) {
	if sh.spider.limiter != nil {
		if err := sh.spider.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	resp, err := sh.spider.wc.Do(ctx, &model.Request{
		Method:  http.MethodGet,
		URL:     target,
		Headers: http.Header{},
	})
	if err != nil {
		return nil, fmt.Errorf("error making http request: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("received 404 from target")
	}

	bodyStr := string(resp.Body)
	var links []string

	if strings.HasPrefix(resp.Headers.Get("Content-Type"), "text/html") {
		doc, err := html.Parse(strings.NewReader(bodyStr))
		if err != nil {
			return nil, fmt.Errorf("couldn't parse %s: %w", target, err)
		}
		sh.extractLinksHTML(doc, target, &links)
	} else {
		links = sh.re.FindAllString(bodyStr, -1)
	}

	return links, nil
}

func (sh *spiderHelper) appendPages(pages []string, lastDepth int) {
	for _, page := range pages {
		pageURL, err := utils.NewURLTools(page)
		if err != nil {
			sh.spider.logger.Warn("error parsing page url",
				logging.Field{Key: "url", Value: page},
				logging.Field{Key: "error", Value: err.Error()})
			continue
		}

		if !sh.root.DomainIsSame(pageURL) {
			continue
		}

		pageStr := pageURL.URL.String()
		if _, exists := sh.depth[pageStr]; !exists {
			sh.depth[pageStr] = lastDepth + 1
			sh.results = append(sh.results, pageStr)
		}
	}
}

func (sh *spiderHelper) run(ctx context.Context) error {
	currPage := 0

	for currPage < len(sh.results) {
		if err := ctx.Err(); err != nil {
			return err
		}

		target := sh.results[currPage]
		if depth, exists := sh.depth[target]; exists && depth > sh.maxDepth {
			break
		}

		crawledPages, err := sh.crawlPage(ctx, target)
		if err != nil {
			sh.spider.logger.Error("error while crawling page",
				logging.Field{Key: "url", Value: target},
				logging.Field{Key: "error", Value: err.Error()})
		}

		sh.appendPages(crawledPages, sh.depth[target])
		currPage++
	}

	return nil
}

// Crawl discovers same-origin endpoints reachable from url within
// maxDepth link hops. The target itself is always the first endpoint.
func (s *Spider) Crawl(ctx context.Context, url string, maxDepth int) (*model.CrawlResult, error) {
	helper, err := newSpiderHelper(s, url, maxDepth)
	if err != nil {
		return nil, err
	}

	if err := helper.run(ctx); err != nil {
		return nil, err
	}
	return &model.CrawlResult{Endpoints: helper.results}, nil
}
