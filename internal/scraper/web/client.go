package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/llm-monitor/backend/pkg/logger"
	"github.com/llm-monitor/backend/pkg/utils"
)

const (
	noTitle          = "No title found"
	maxHeadings      = 20
	maxParagraphs    = 50
	minParagraphLen  = 20
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

var (
	ErrNoContent = errors.New("no main content found")

	contentSelectors = []string{
		"main", "article", ".content", "#content",
		".main-content", "#main-content", ".post-content",
		".entry-content", "section",
	}
)

type Options struct {
	Timeout         time.Duration
	ProbeTimeout    time.Duration
	UserAgent       string
	MaxContentChars int
	MaxLinks        int
	// ObserveDuration receives the wall time of every successful scrape.
	ObserveDuration func(time.Duration)
}

type Client struct {
	httpClient      *http.Client
	probeClient     *http.Client
	userAgent       string
	maxContentChars int
	maxLinks        int
	timeout         time.Duration
	observe         func(time.Duration)
}

type ScrapeResult struct {
	URL           string    `json:"url"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	Headings      []string  `json:"headings"`
	Paragraphs    []string  `json:"paragraphs"`
	ContentHash   string    `json:"content_hash"`
	StatusCode    int       `json:"status_code"`
	ContentLength int       `json:"content_length"`
	ScrapedAt     time.Time `json:"scraped_at"`
}

func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 10 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.MaxContentChars <= 0 {
		opts.MaxContentChars = 10000
	}
	if opts.MaxLinks <= 0 {
		opts.MaxLinks = 50
	}

	logger.Info("Web scraper initialized",
		zap.Duration("timeout", opts.Timeout),
		zap.Int("max_content_chars", opts.MaxContentChars),
	)

	return &Client{
		httpClient:      &http.Client{Timeout: opts.Timeout},
		probeClient:     &http.Client{Timeout: opts.ProbeTimeout},
		userAgent:       opts.UserAgent,
		maxContentChars: opts.MaxContentChars,
		maxLinks:        opts.MaxLinks,
		timeout:         opts.Timeout,
		observe:         opts.ObserveDuration,
	}
}

// Scrape fetches a single page and extracts its readable content. The content
// hash covers the full extracted text; Content is truncated afterwards.
func (c *Client) Scrape(ctx context.Context, pageURL string) (*ScrapeResult, error) {
	logger.Info("Scraping website", zap.String("url", pageURL))
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("request error: %s returned status %d", pageURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	result, err := c.extract(doc)
	if err != nil {
		logger.Warn("No main content found", zap.String("url", pageURL))
		return nil, err
	}
	result.URL = pageURL
	result.StatusCode = resp.StatusCode
	result.ScrapedAt = time.Now().UTC()

	elapsed := time.Since(start)
	if c.observe != nil {
		c.observe(elapsed)
	}

	logger.Info("Successfully scraped website",
		zap.String("url", pageURL),
		zap.String("title", result.Title),
		zap.Int("content_length", result.ContentLength),
		zap.Int("headings", len(result.Headings)),
		zap.Int("paragraphs", len(result.Paragraphs)),
		zap.Duration("duration", elapsed),
	)

	return result, nil
}

func (c *Client) extract(doc *goquery.Document) (*ScrapeResult, error) {
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = noTitle
	}

	doc.Find("script, style, nav, footer, header").Remove()

	var area *goquery.Selection
	for _, selector := range contentSelectors {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			area = sel
			break
		}
	}
	if area == nil {
		area = doc.Find("body").First()
	}

	text := nodeText(area)
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoContent
	}

	headings := make([]string, 0)
	area.Find("h1, h2, h3, h4, h5, h6").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if h := strings.TrimSpace(nodeText(s)); h != "" {
			headings = append(headings, h)
		}
		return len(headings) < maxHeadings
	})

	paragraphs := make([]string, 0)
	area.Find("p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if p := strings.TrimSpace(nodeText(s)); len([]rune(p)) > minParagraphLen {
			paragraphs = append(paragraphs, p)
		}
		return len(paragraphs) < maxParagraphs
	})

	return &ScrapeResult{
		Title:         title,
		Content:       utils.Truncate(text, c.maxContentChars),
		Headings:      headings,
		Paragraphs:    paragraphs,
		ContentHash:   utils.ContentHash(text),
		ContentLength: len([]rune(text)),
	}, nil
}

// nodeText concatenates the text nodes below sel, separated by spaces so
// adjacent block elements do not run together, and collapses whitespace.
func nodeText(sel *goquery.Selection) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
			return
		}
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return utils.CollapseWhitespace(b.String())
}

// CheckReachable issues a HEAD request and reports whether the URL answered
// with a non-error status.
func (c *Client) CheckReachable(ctx context.Context, pageURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, pageURL, nil)
	if err != nil {
		logger.Warn("URL validation failed", zap.String("url", pageURL), zap.Error(err))
		return false
	}
	c.setHeaders(req)

	resp, err := c.probeClient.Do(req)
	if err != nil {
		logger.Warn("URL validation failed", zap.String("url", pageURL), zap.Error(err))
		return false
	}
	resp.Body.Close()

	valid := resp.StatusCode < http.StatusBadRequest
	logger.Info("URL validation result",
		zap.String("url", pageURL),
		zap.Bool("valid", valid),
		zap.Int("status", resp.StatusCode),
	)
	return valid
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
}
