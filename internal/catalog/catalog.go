// Package catalog resolves remote catalogs and enumerates their items lazily.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/iterator"

	"github.com/samvad-hq/samvad-audio-relay/internal/domain"
	"github.com/samvad-hq/samvad-audio-relay/internal/logger"
)

// Catalog identifies a resolved remote catalog.
type Catalog struct {
	ID              string
	Title           string
	UploadsPlaylist string
}

// Page is one page of catalog entries. An empty NextToken ends the listing.
type Page struct {
	Items     []Entry
	NextToken string
}

// Entry is a raw catalog entry as returned by the source.
type Entry struct {
	ItemID string
	Title  string
}

// Source is the remote catalog boundary.
type Source interface {
	ResolveHandle(ctx context.Context, handle string) (string, error)
	SearchCatalogs(ctx context.Context, query string) ([]string, error)
	Catalog(ctx context.Context, id string) (Catalog, error)
	ListPage(ctx context.Context, c Catalog, token string) (Page, error)
}

// Enumerator resolves catalogs and builds listings over a Source.
type Enumerator struct {
	src Source
	log logger.Logger
}

// NewEnumerator returns an Enumerator backed by src.
func NewEnumerator(src Source, log logger.Logger) *Enumerator {
	return &Enumerator{src: src, log: logger.Ensure(log)}
}

// NormalizeHandle trims whitespace and a leading @.
func NormalizeHandle(handle string) string {
	return strings.TrimPrefix(strings.TrimSpace(handle), "@")
}

// Resolve looks handle up directly and falls back to a text search, taking the
// first hit whose identifier resolves. domain.ErrNotFound when neither works.
func (e *Enumerator) Resolve(ctx context.Context, handle string) (Catalog, error) {
	handle = NormalizeHandle(handle)
	if handle == "" {
		return Catalog{}, fmt.Errorf("empty handle: %w", domain.ErrNotFound)
	}

	id, err := e.src.ResolveHandle(ctx, handle)
	if err == nil {
		c, lookupErr := e.src.Catalog(ctx, id)
		if lookupErr == nil {
			return c, nil
		}
		err = lookupErr
	}
	e.log.DebugObj("direct catalog lookup failed, searching", "catalog_resolve", map[string]any{
		"handle": handle,
		"error":  err.Error(),
	})

	if err := ctx.Err(); err != nil {
		return Catalog{}, err
	}

	ids, err := e.src.SearchCatalogs(ctx, handle)
	if err != nil {
		e.log.WarnObj("catalog search failed", "catalog_resolve", map[string]any{
			"handle": handle,
			"error":  err.Error(),
		})
		return Catalog{}, fmt.Errorf("catalog %q: %w", handle, domain.ErrNotFound)
	}
	for _, id := range ids {
		if c, err := e.src.Catalog(ctx, id); err == nil {
			return c, nil
		}
	}
	return Catalog{}, fmt.Errorf("catalog %q: %w", handle, domain.ErrNotFound)
}

// Items returns a fresh listing over c. Listings are not restartable.
func (e *Enumerator) Items(c Catalog) *Listing {
	return &Listing{src: e.src, catalog: c}
}

// Listing pulls catalog items page by page.
type Listing struct {
	src      Source
	catalog  Catalog
	buf      []Entry
	token    string
	started  bool
	position int
	err      error
}

// Next returns the next item, iterator.Done when the catalog is exhausted, or
// the page error. Once Next returns an error it keeps returning it.
func (l *Listing) Next(ctx context.Context) (domain.CatalogItem, error) {
	for len(l.buf) == 0 {
		if l.err != nil {
			return domain.CatalogItem{}, l.err
		}
		if l.started && l.token == "" {
			l.err = iterator.Done
			return domain.CatalogItem{}, l.err
		}
		page, err := l.src.ListPage(ctx, l.catalog, l.token)
		if err != nil {
			l.err = fmt.Errorf("list catalog %s: %w", l.catalog.ID, err)
			return domain.CatalogItem{}, l.err
		}
		l.started = true
		l.token = page.NextToken
		l.buf = page.Items
	}

	entry := l.buf[0]
	l.buf = l.buf[1:]
	l.position++
	return domain.CatalogItem{ItemID: entry.ItemID, Position: l.position, Title: entry.Title}, nil
}

// Collect drains l into a slice in remote order.
func Collect(ctx context.Context, l *Listing) ([]domain.CatalogItem, error) {
	var items []domain.CatalogItem
	for {
		item, err := l.Next(ctx)
		if errors.Is(err, iterator.Done) {
			return items, nil
		}
		if err != nil {
			return items, err
		}
		items = append(items, item)
	}
}
