// File: internal/jobpage/capture.go

// Package jobpage turns the rendered landing page into a structured job
// posting: title, company, location, and a sanitized markdown body.
package jobpage

import (
	"context"
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/xkilldash9x/applypilot/api/schemas"
)

// companySelectors are tried in order before falling back to page metadata.
var companySelectors = []string{
	"[data-company]",
	".company",
	".organization",
	"header [itemprop='hiringOrganization']",
}

// PageSource is the slice of the browser session the capturer reads from.
type PageSource interface {
	Location(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
}

// Capturer scrapes job postings. Safe for reuse across pages; the sanitizer
// policy and markdown converter are read-only after construction.
type Capturer struct {
	sanitizer *bluemonday.Policy
	md        *converter.Converter
	logger    *zap.Logger
}

func NewCapturer(logger *zap.Logger) *Capturer {
	return &Capturer{
		sanitizer: bluemonday.UGCPolicy(),
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
		logger: logger.Named("jobpage"),
	}
}

// Capture reads the current page and parses it into a posting.
func (c *Capturer) Capture(ctx context.Context, page PageSource) (*schemas.JobPosting, error) {
	html, err := page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read page HTML: %w", err)
	}
	url, err := page.Location(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read page location: %w", err)
	}
	title, err := page.Title(ctx)
	if err != nil {
		c.logger.Debug("Page title unavailable", zap.Error(err))
		title = ""
	}
	return c.Parse(url, title, html)
}

// Parse extracts the posting from raw HTML. Split out from Capture so the
// scraping rules are testable without a browser.
func (c *Capturer) Parse(url, pageTitle, html string) (*schemas.JobPosting, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page HTML: %w", err)
	}

	posting := &schemas.JobPosting{URL: url}
	posting.Title = collapse(doc.Find("h1, h2").First().Text())
	posting.Company = findCompany(doc, pageTitle)
	posting.Location = findLocation(doc)
	posting.Markdown = c.renderBody(doc, url)
	return posting, nil
}

func findCompany(doc *goquery.Document, pageTitle string) string {
	for _, sel := range companySelectors {
		if t := collapse(doc.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	meta := doc.Find(`meta[property="og:site_name"], meta[name="og:site_name"]`).First()
	if content, ok := meta.Attr("content"); ok {
		if t := collapse(content); t != "" {
			return t
		}
	}
	// Job boards habitually render "<Company> | <Role>" titles.
	if pageTitle != "" {
		return collapse(strings.SplitN(pageTitle, "|", 2)[0])
	}
	return ""
}

// findLocation looks for a "Location" label element and reads the element
// right after it.
func findLocation(doc *goquery.Document) string {
	var location string
	doc.Find("span, div, dt, strong, label, b, h3, h4, p").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		label := strings.TrimSuffix(collapse(sel.Text()), ":")
		if !strings.EqualFold(label, "location") {
			return true
		}
		if next := collapse(sel.Next().Text()); next != "" {
			location = next
			return false
		}
		return true
	})
	return location
}

// renderBody sanitizes the main content and converts it to markdown, falling
// back to plain text when conversion fails.
func (c *Capturer) renderBody(doc *goquery.Document, url string) string {
	body := doc.Find("main").First()
	if body.Length() == 0 {
		body = doc.Find("body").First()
	}
	if body.Length() == 0 {
		return ""
	}

	raw, err := goquery.OuterHtml(body)
	if err != nil {
		c.logger.Debug("Body serialization failed", zap.Error(err))
		return collapse(body.Text())
	}
	clean := c.sanitizer.Sanitize(raw)

	md, err := c.md.ConvertString(clean, converter.WithDomain(url))
	if err != nil {
		c.logger.Warn("Markdown conversion failed, using plain text", zap.Error(err))
		return collapse(body.Text())
	}
	return strings.TrimSpace(md)
}

// collapse trims and folds internal whitespace runs into single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
