package web

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/gocolly/colly"
	"go.uber.org/zap"

	"github.com/llm-monitor/backend/pkg/logger"
)

var skipLinkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\.pdf$`),
	regexp.MustCompile(`(?i)\.doc$`),
	regexp.MustCompile(`(?i)\.zip$`),
	regexp.MustCompile(`(?i)\.jpg$`),
	regexp.MustCompile(`(?i)\.png$`),
	regexp.MustCompile(`(?i)\.gif$`),
	regexp.MustCompile(`(?i)/login`),
	regexp.MustCompile(`(?i)/logout`),
	regexp.MustCompile(`(?i)/admin`),
	regexp.MustCompile(`(?i)/search`),
	regexp.MustCompile(`#`),
}

// ExtractLinks lists the distinct http(s) links on a page in document order,
// skipping downloads, account pages, search pages and fragment links.
func (c *Client) ExtractLinks(ctx context.Context, pageURL string, sameDomainOnly bool) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse url: %w", err)
	}

	collector := colly.NewCollector(
		colly.UserAgent(c.userAgent),
		colly.IgnoreRobotsTxt(),
		colly.MaxDepth(1),
	)
	collector.SetRequestTimeout(c.timeout)

	seen := make(map[string]struct{})
	links := make([]string, 0)

	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		if len(links) >= c.maxLinks {
			return
		}
		href := e.Attr("href")
		// AbsoluteURL drops the fragment, so fragment links are checked raw.
		if skipLink(href) {
			return
		}
		link := e.Request.AbsoluteURL(href)
		if !strings.HasPrefix(link, "http://") && !strings.HasPrefix(link, "https://") {
			return
		}
		if sameDomainOnly {
			u, err := url.Parse(link)
			if err != nil || u.Host != base.Host {
				return
			}
		}
		if skipLink(link) {
			return
		}
		if _, ok := seen[link]; ok {
			return
		}
		seen[link] = struct{}{}
		links = append(links, link)
	})

	var visitErr error
	collector.OnError(func(r *colly.Response, err error) {
		visitErr = fmt.Errorf("request error: %s returned status %d: %w", pageURL, r.StatusCode, err)
	})

	if err := collector.Visit(pageURL); err != nil && visitErr == nil {
		visitErr = fmt.Errorf("request error: %w", err)
	}
	if visitErr != nil {
		logger.Warn("Failed to extract links", zap.String("url", pageURL), zap.Error(visitErr))
		return nil, visitErr
	}

	logger.Info("Extracted page links", zap.String("url", pageURL), zap.Int("links", len(links)))
	return links, nil
}

func skipLink(link string) bool {
	for _, pattern := range skipLinkPatterns {
		if pattern.MatchString(link) {
			return true
		}
	}
	return false
}
