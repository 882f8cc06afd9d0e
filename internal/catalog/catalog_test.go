package catalog

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"google.golang.org/api/iterator"

	"github.com/samvad-hq/samvad-audio-relay/internal/domain"
)

type fakeSource struct {
	handles  map[string]string
	catalogs map[string]Catalog
	search   []string
	pages    map[string]Page
	pageErr  map[string]error
	calls    []string
}

func (f *fakeSource) ResolveHandle(_ context.Context, handle string) (string, error) {
	f.calls = append(f.calls, "handle:"+handle)
	if id, ok := f.handles[handle]; ok {
		return id, nil
	}
	return "", errors.New("no such handle")
}

func (f *fakeSource) SearchCatalogs(_ context.Context, query string) ([]string, error) {
	f.calls = append(f.calls, "search:"+query)
	return f.search, nil
}

func (f *fakeSource) Catalog(_ context.Context, id string) (Catalog, error) {
	if c, ok := f.catalogs[id]; ok {
		return c, nil
	}
	return Catalog{}, fmt.Errorf("catalog %s: %w", id, domain.ErrNotFound)
}

func (f *fakeSource) ListPage(_ context.Context, _ Catalog, token string) (Page, error) {
	f.calls = append(f.calls, "page:"+token)
	if err := f.pageErr[token]; err != nil {
		return Page{}, err
	}
	return f.pages[token], nil
}

func entries(ids ...string) []Entry {
	out := make([]Entry, len(ids))
	for i, id := range ids {
		out[i] = Entry{ItemID: id, Title: "title " + id}
	}
	return out
}

func TestResolvePrefersDirectHandle(t *testing.T) {
	src := &fakeSource{
		handles:  map[string]string{"demo": "UC1"},
		catalogs: map[string]Catalog{"UC1": {ID: "UC1", Title: "Demo"}},
	}
	c, err := NewEnumerator(src, nil).Resolve(context.Background(), " @demo ")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if c.ID != "UC1" {
		t.Fatalf("unexpected catalog %#v", c)
	}
	for _, call := range src.calls {
		if call == "search:demo" {
			t.Fatalf("search must not run when the handle resolves")
		}
	}
}

func TestResolveFallsBackToFirstResolvableSearchHit(t *testing.T) {
	src := &fakeSource{
		catalogs: map[string]Catalog{"UC2": {ID: "UC2"}, "UC3": {ID: "UC3"}},
		search:   []string{"UCgone", "UC2", "UC3"},
	}
	c, err := NewEnumerator(src, nil).Resolve(context.Background(), "demo")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if c.ID != "UC2" {
		t.Fatalf("expected first resolvable hit UC2, got %s", c.ID)
	}
}

func TestResolveNotFound(t *testing.T) {
	src := &fakeSource{search: []string{"UCgone"}}
	_, err := NewEnumerator(src, nil).Resolve(context.Background(), "nobody")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := NewEnumerator(src, nil).Resolve(context.Background(), "@"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty handle, got %v", err)
	}
}

func TestListingFollowsContinuationTokens(t *testing.T) {
	src := &fakeSource{pages: map[string]Page{
		"":   {Items: entries("a", "b", "c"), NextToken: "p2"},
		"p2": {Items: entries("d", "e"), NextToken: "p3"},
		"p3": {Items: entries("f")},
	}}
	items, err := Collect(context.Background(), NewEnumerator(src, nil).Items(Catalog{ID: "UC1"}))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(items) != 6 {
		t.Fatalf("expected 6 items, got %d", len(items))
	}
	for i, item := range items {
		if item.Position != i+1 {
			t.Fatalf("item %d has position %d", i, item.Position)
		}
	}
	if items[3].ItemID != "d" || items[5].ItemID != "f" {
		t.Fatalf("remote order not preserved: %#v", items)
	}
}

func TestListingSkipsEmptyPagesWithToken(t *testing.T) {
	src := &fakeSource{pages: map[string]Page{
		"":   {NextToken: "p2"},
		"p2": {Items: entries("a")},
	}}
	items, err := Collect(context.Background(), NewEnumerator(src, nil).Items(Catalog{}))
	if err != nil || len(items) != 1 {
		t.Fatalf("expected one item, got %d err=%v", len(items), err)
	}
}

func TestListingTerminalStateIsSticky(t *testing.T) {
	src := &fakeSource{pages: map[string]Page{"": {Items: entries("a")}}}
	l := NewEnumerator(src, nil).Items(Catalog{})
	ctx := context.Background()

	if _, err := l.Next(ctx); err != nil {
		t.Fatalf("first Next: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := l.Next(ctx); !errors.Is(err, iterator.Done) {
			t.Fatalf("expected iterator.Done, got %v", err)
		}
	}
	pageCalls := 0
	for _, call := range src.calls {
		if call == "page:" {
			pageCalls++
		}
	}
	if pageCalls != 1 {
		t.Fatalf("exhausted listing must not refetch, got %d page calls", pageCalls)
	}
}

func TestListingPageFailureIsDistinctAndSticky(t *testing.T) {
	boom := errors.New("quota exceeded")
	src := &fakeSource{
		pages:   map[string]Page{"": {Items: entries("a"), NextToken: "p2"}},
		pageErr: map[string]error{"p2": boom},
	}
	l := NewEnumerator(src, nil).Items(Catalog{ID: "UC1"})
	items, err := Collect(context.Background(), l)
	if !errors.Is(err, boom) || errors.Is(err, iterator.Done) {
		t.Fatalf("expected page error, got %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected items gathered before the failure, got %d", len(items))
	}
	if _, again := l.Next(context.Background()); !errors.Is(again, boom) {
		t.Fatalf("expected sticky failure, got %v", again)
	}
}

func TestListingEmptyCatalog(t *testing.T) {
	src := &fakeSource{pages: map[string]Page{}}
	items, err := Collect(context.Background(), NewEnumerator(src, nil).Items(Catalog{}))
	if err != nil || len(items) != 0 {
		t.Fatalf("expected empty listing, got %d err=%v", len(items), err)
	}
}
