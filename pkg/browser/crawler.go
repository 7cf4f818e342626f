package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"pinscraper/pkg/config"
	pserrors "pinscraper/pkg/errors"
	"pinscraper/pkg/ledger"
	"pinscraper/pkg/logger"
)

const categoryLinksJS = `() => JSON.stringify(Array.from(
	document.querySelectorAll('div[data-test-id="interestRepContainer"] a')
).map(a => a.href))`

const pinLinksJS = `() => JSON.stringify(Array.from(
	document.querySelectorAll('div[data-test-id="grid"] a[href*="/pin/"]')
).map(a => a.href))`

const scrollJS = `() => { window.scrollTo(0, 1000000); return "" }`

// Category is a browsable topic listed on the site root
type Category struct {
	Name string
	URL  string
}

// Crawler lists categories and discovers pin references
type Crawler struct {
	mgr        *Manager
	site       config.SiteConfig
	cfg        config.BrowserConfig
	logger     logger.Logger
	categories map[string]string
}

// NewCrawler creates a crawler on top of mgr
func NewCrawler(mgr *Manager, site config.SiteConfig, cfg config.BrowserConfig, log logger.Logger) *Crawler {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Crawler{mgr: mgr, site: site, cfg: cfg, logger: log, categories: map[string]string{}}
}

// Categories lists the categories linked from the site root
func (c *Crawler) Categories(ctx context.Context) ([]Category, error) {
	page, err := c.mgr.open(ctx, c.site.RootURL)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	raw, err := evalString(ctx, page, categoryLinksJS)
	if err != nil {
		return nil, err
	}
	var hrefs []string
	if err := json.Unmarshal([]byte(raw), &hrefs); err != nil {
		return nil, fmt.Errorf("browser: decode category links: %w", err)
	}

	cats := ParseCategories(c.site.RootURL, hrefs)
	for _, cat := range cats {
		c.categories[cat.Name] = cat.URL
	}
	c.logger.WithField("count", len(cats)).Info("Discovered categories")
	return cats, nil
}

// Discover opens category and collects pin references over scrolls passes.
// A pass that yields nothing is logged as a TransientCrawlError and the
// next pass continues. Zero references overall is not an error.
func (c *Crawler) Discover(ctx context.Context, category string, scrolls int) ([]ledger.ItemReference, error) {
	target, ok := c.categories[category]
	if !ok {
		target = CategoryURL(c.site.RootURL, category)
	}

	page, err := c.mgr.open(ctx, target)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	log := c.logger.WithField("category", category)
	seen := map[string]struct{}{}
	var refs []ledger.ItemReference

	for pass := 1; pass <= scrolls; pass++ {
		if _, err := evalString(ctx, page, scrollJS); err != nil {
			return refs, err
		}
		if err := sleep(ctx, c.cfg.ScrollDelay); err != nil {
			return refs, err
		}

		raw, err := evalString(ctx, page, pinLinksJS)
		if err != nil {
			return refs, err
		}
		var hrefs []string
		if err := json.Unmarshal([]byte(raw), &hrefs); err != nil || len(hrefs) == 0 {
			log.WithError(&pserrors.TransientCrawlError{Category: category, Pass: pass}).Warn("Scroll pass found no items")
			continue
		}

		added := 0
		for _, h := range hrefs {
			h = NormalizeHref(h)
			if _, dup := seen[h]; dup || h == "" {
				continue
			}
			seen[h] = struct{}{}
			refs = append(refs, ledger.ItemReference{Category: category, Href: h})
			added++
		}
		log.DebugWithFields("Scroll pass complete", map[string]interface{}{"pass": pass, "new": added, "total": len(refs)})
	}
	return refs, nil
}

// ParseCategories turns category links into named categories. The name is
// the path segment after the root path; links outside the root are skipped.
func ParseCategories(rootURL string, hrefs []string) []Category {
	seen := map[string]struct{}{}
	var out []Category
	for _, h := range hrefs {
		name := CategoryName(rootURL, h)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, Category{Name: name, URL: h})
	}
	return out
}

// CategoryName extracts the category from a link such as
// https://www.pinterest.co.uk/ideas/animals/925056443165/
func CategoryName(rootURL, href string) string {
	root, err := url.Parse(rootURL)
	if err != nil {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil || (u.Host != "" && u.Host != root.Host) {
		return ""
	}
	rest, ok := strings.CutPrefix(u.Path, strings.TrimSuffix(root.Path, "/")+"/")
	if !ok {
		return ""
	}
	name, _, _ := strings.Cut(rest, "/")
	return name
}

// CategoryURL builds the listing URL of a category not seen on the root page
func CategoryURL(rootURL, category string) string {
	return strings.TrimSuffix(rootURL, "/") + "/" + url.PathEscape(category) + "/"
}

// NormalizeHref drops query and fragment so the same pin always maps to
// the same reference.
func NormalizeHref(href string) string {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
