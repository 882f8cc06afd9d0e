// Package youtube adapts the YouTube web pages and Data API v3 to catalog.Source.
package youtube

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	ytapi "google.golang.org/api/youtube/v3"

	"github.com/samvad-hq/samvad-audio-relay/internal/catalog"
	"github.com/samvad-hq/samvad-audio-relay/internal/domain"
	"github.com/samvad-hq/samvad-audio-relay/pkg/httpclient"
)

const (
	defaultWebURL  = "https://www.youtube.com"
	pageSize       = 50
	searchHitLimit = 5
)

var channelPath = regexp.MustCompile(`/channel/(UC[a-zA-Z0-9_-]{22})`)

// Config controls the adapter.
type Config struct {
	APIKey string
	// APIURL overrides the Data API endpoint; empty uses Google's.
	APIURL string
	WebURL string
}

// Client implements catalog.Source.
type Client struct {
	svc    *ytapi.Service
	web    httpclient.Client
	webURL string
}

// New builds a Client. The API key is required for catalog lookups.
func New(ctx context.Context, cfg Config, web httpclient.Client) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("youtube api key is empty")
	}
	if web == nil {
		return nil, errors.New("youtube web client is nil")
	}
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if endpoint := strings.TrimSpace(cfg.APIURL); endpoint != "" {
		opts = append(opts, option.WithEndpoint(strings.TrimRight(endpoint, "/")+"/"))
	}
	svc, err := ytapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}

	webURL := strings.TrimRight(strings.TrimSpace(cfg.WebURL), "/")
	if webURL == "" {
		webURL = defaultWebURL
	}
	return &Client{svc: svc, web: web, webURL: webURL}, nil
}

// ResolveHandle loads the public handle page and reads the channel id from its metadata.
func (c *Client) ResolveHandle(ctx context.Context, handle string) (string, error) {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	if handle == "" {
		return "", fmt.Errorf("empty handle: %w", domain.ErrNotFound)
	}

	resp, err := c.web.Get(ctx, c.webURL+"/@"+url.PathEscape(handle), map[string]string{
		"Accept-Language": "en",
	})
	if err != nil {
		return "", fmt.Errorf("fetch handle page: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return "", fmt.Errorf("handle %q: %w", handle, domain.ErrNotFound)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("fetch handle page: status %d", resp.StatusCode())
	}

	id, err := channelIDFromPage(resp.Body())
	if err != nil {
		return "", fmt.Errorf("handle %q: %w", handle, err)
	}
	return id, nil
}

// channelIDFromPage extracts the UC... channel id from a channel page.
func channelIDFromPage(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse handle page: %w", err)
	}

	for _, sel := range []string{`meta[itemprop="identifier"]`, `meta[itemprop="channelId"]`} {
		if id, ok := doc.Find(sel).First().Attr("content"); ok && strings.HasPrefix(id, "UC") {
			return id, nil
		}
	}
	for _, sel := range []string{`link[rel="canonical"]`, `meta[property="og:url"]`} {
		node := doc.Find(sel).First()
		ref, ok := node.Attr("href")
		if !ok {
			ref, ok = node.Attr("content")
		}
		if !ok {
			continue
		}
		if m := channelPath.FindStringSubmatch(ref); m != nil {
			return m[1], nil
		}
	}
	return "", domain.ErrNotFound
}

// SearchCatalogs returns channel ids matching query, best match first.
func (c *Client) SearchCatalogs(ctx context.Context, query string) ([]string, error) {
	resp, err := c.svc.Search.List([]string{"snippet"}).
		Q(query).
		Type("channel").
		MaxResults(searchHitLimit).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("search channels: %w", err)
	}
	ids := make([]string, 0, len(resp.Items))
	for _, item := range resp.Items {
		switch {
		case item.Id != nil && item.Id.ChannelId != "":
			ids = append(ids, item.Id.ChannelId)
		case item.Snippet != nil && item.Snippet.ChannelId != "":
			ids = append(ids, item.Snippet.ChannelId)
		}
	}
	return ids, nil
}

// Catalog looks a channel up by id and returns its uploads playlist.
func (c *Client) Catalog(ctx context.Context, id string) (catalog.Catalog, error) {
	resp, err := c.svc.Channels.List([]string{"snippet", "contentDetails"}).
		Id(id).
		Context(ctx).
		Do()
	if err != nil {
		if isNotFound(err) {
			return catalog.Catalog{}, fmt.Errorf("channel %s: %w", id, domain.ErrNotFound)
		}
		return catalog.Catalog{}, fmt.Errorf("lookup channel %s: %w", id, err)
	}
	if len(resp.Items) == 0 {
		return catalog.Catalog{}, fmt.Errorf("channel %s: %w", id, domain.ErrNotFound)
	}

	ch := resp.Items[0]
	out := catalog.Catalog{ID: ch.Id}
	if ch.Snippet != nil {
		out.Title = ch.Snippet.Title
	}
	if ch.ContentDetails != nil && ch.ContentDetails.RelatedPlaylists != nil {
		out.UploadsPlaylist = ch.ContentDetails.RelatedPlaylists.Uploads
	}
	if out.UploadsPlaylist == "" {
		return catalog.Catalog{}, fmt.Errorf("channel %s has no uploads playlist: %w", id, domain.ErrNotFound)
	}
	return out, nil
}

// ListPage fetches one page of the uploads playlist.
func (c *Client) ListPage(ctx context.Context, cat catalog.Catalog, token string) (catalog.Page, error) {
	call := c.svc.PlaylistItems.List([]string{"snippet", "contentDetails"}).
		PlaylistId(cat.UploadsPlaylist).
		MaxResults(pageSize).
		Context(ctx)
	if token != "" {
		call = call.PageToken(token)
	}
	resp, err := call.Do()
	if err != nil {
		return catalog.Page{}, fmt.Errorf("list playlist %s: %w", cat.UploadsPlaylist, err)
	}

	page := catalog.Page{NextToken: resp.NextPageToken, Items: make([]catalog.Entry, 0, len(resp.Items))}
	for _, item := range resp.Items {
		var entry catalog.Entry
		if item.ContentDetails != nil {
			entry.ItemID = item.ContentDetails.VideoId
		}
		if item.Snippet != nil {
			entry.Title = item.Snippet.Title
			if entry.ItemID == "" && item.Snippet.ResourceId != nil {
				entry.ItemID = item.Snippet.ResourceId.VideoId
			}
		}
		if entry.ItemID == "" {
			continue
		}
		page.Items = append(page.Items, entry)
	}
	return page, nil
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}

var _ catalog.Source = (*Client)(nil)
