package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"postwatch/internal/domain"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

// RSS reads the per-account RSS feed exposed by a Nitter instance.
type RSS struct {
	client
	parser *gofeed.Parser
}

func NewRSS(baseURL string, timeout time.Duration, log *slog.Logger) (*RSS, error) {
	c, err := newClient(baseURL, timeout, log)
	if err != nil {
		return nil, err
	}

	return &RSS{client: c, parser: gofeed.NewParser()}, nil
}

func (s *RSS) FetchLatest(ctx context.Context, handle string) (domain.Item, error) {
	resp, err := s.get(ctx, handle, "/rss")
	if err != nil {
		return domain.Item{}, err
	}
	defer s.closeBody(ctx, resp, resp.Request.URL.String())

	feed, err := s.parser.Parse(resp.Body)
	if err != nil {
		return domain.Item{}, domain.Transient("parse feed", err)
	}

	for _, item := range feed.Items {
		id := StatusID(item.Link)
		if id == "" {
			id = StatusID(item.GUID)
		}
		if id == "" {
			s.log.WarnContext(ctx, "Skipping feed item without status ID",
				"handle", handle,
				"link", item.Link,
				"guid", item.GUID)

			continue
		}

		return domain.Item{ID: id, Body: itemBody(item)}, nil
	}

	return domain.Item{}, domain.Transient(fmt.Sprintf("feed has no items (handle = %s)", handle), nil)
}

func itemBody(item *gofeed.Item) string {
	if title := strings.TrimSpace(item.Title); title != "" {
		return title
	}

	text, err := htmlText(item.Description)
	if err != nil {
		return strings.TrimSpace(item.Description)
	}

	return text
}

func htmlText(fragment string) (string, error) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return "", errors.New("fragment is empty")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", fmt.Errorf("create document from reader: %w", err)
	}

	doc.Find("br").Each(func(_ int, br *goquery.Selection) {
		br.ReplaceWithHtml("\n")
	})

	return strings.TrimSpace(doc.Text()), nil
}
