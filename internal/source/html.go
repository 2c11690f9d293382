package source

import (
	"context"
	"fmt"
	"log/slog"
	"postwatch/internal/domain"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// HTML scrapes the profile timeline page of a Nitter instance.
type HTML struct {
	client
}

func NewHTML(baseURL string, timeout time.Duration, log *slog.Logger) (*HTML, error) {
	c, err := newClient(baseURL, timeout, log)
	if err != nil {
		return nil, err
	}

	return &HTML{client: c}, nil
}

func (s *HTML) FetchLatest(ctx context.Context, handle string) (domain.Item, error) {
	resp, err := s.get(ctx, handle, "")
	if err != nil {
		return domain.Item{}, err
	}
	defer s.closeBody(ctx, resp, resp.Request.URL.String())

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return domain.Item{}, domain.Transient("create document from reader", err)
	}

	if panel := doc.Find(".error-panel"); panel.Length() > 0 {
		s.log.DebugContext(ctx, "Profile page reports an error",
			"handle", handle,
			"panel", strings.TrimSpace(panel.Text()))

		return domain.Item{}, fmt.Errorf("%w (handle = %s)", domain.ErrAccountNotFound, handle)
	}

	var (
		item  domain.Item
		found bool
	)

	doc.Find(".timeline-item").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.Find(".pinned").Length() > 0 {
			return true
		}

		href, ok := s.Find("a.tweet-link").Attr("href")
		if !ok {
			return true
		}

		id := StatusID(href)
		if id == "" {
			return true
		}

		content := s.Find(".tweet-content").First()
		content.Find("br").Each(func(_ int, br *goquery.Selection) {
			br.ReplaceWithHtml("\n")
		})

		item = domain.Item{ID: id, Body: strings.TrimSpace(content.Text())}
		found = true

		return false
	})

	if !found {
		return domain.Item{}, domain.Transient(fmt.Sprintf("timeline has no items (handle = %s)", handle), nil)
	}

	return item, nil
}
