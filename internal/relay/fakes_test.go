package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/samvad-hq/samvad-audio-relay/internal/catalog"
	"github.com/samvad-hq/samvad-audio-relay/internal/domain"
	"github.com/samvad-hq/samvad-audio-relay/internal/storage"
	"github.com/samvad-hq/samvad-audio-relay/pkg/extractor"
	"github.com/samvad-hq/samvad-audio-relay/pkg/publishers"
	"github.com/samvad-hq/samvad-audio-relay/pkg/telegram"
)

type fakeStore struct {
	mu        sync.Mutex
	records   map[string]domain.RelayRecord
	existsErr error
	recordErr error
}

func newFakeStore(existing ...string) *fakeStore {
	s := &fakeStore{records: make(map[string]domain.RelayRecord)}
	for _, id := range existing {
		s.records[id] = domain.RelayRecord{ItemID: id}
	}
	return s
}

func (s *fakeStore) Exists(_ context.Context, itemID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.existsErr != nil {
		return false, s.existsErr
	}
	_, ok := s.records[itemID]
	return ok, nil
}

func (s *fakeStore) Record(_ context.Context, rec domain.RelayRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recordErr != nil {
		return s.recordErr
	}
	if _, ok := s.records[rec.ItemID]; ok {
		return fmt.Errorf("item %q: %w", rec.ItemID, storage.ErrDuplicate)
	}
	s.records[rec.ItemID] = rec
	return nil
}

func (s *fakeStore) get(id string) (domain.RelayRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	return rec, ok
}

type fakeFetcher struct {
	mu      sync.Mutex
	errs    map[string]error
	panics  map[string]bool
	onFetch func(itemID string)
	fetched []string
	cleaned []string
}

func (f *fakeFetcher) Fetch(_ context.Context, itemID string) (extractor.Result, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, itemID)
	hook := f.onFetch
	err := f.errs[itemID]
	panics := f.panics[itemID]
	f.mu.Unlock()

	if hook != nil {
		hook(itemID)
	}
	if panics {
		panic("extractor exploded on " + itemID)
	}
	if err != nil {
		return extractor.Result{Status: domain.OutcomeFor(err), ItemID: itemID}, err
	}
	return extractor.Result{
		Status:      domain.OutcomeSuccess,
		ItemID:      itemID,
		Title:       "Song " + itemID,
		Author:      "Artist",
		Duration:    200,
		Filename:    itemID + ".mp3",
		SizeBytes:   1024,
		DownloadURL: "http://extractor/files/" + itemID + ".mp3",
	}, nil
}

func (f *fakeFetcher) Cleanup(filename string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleaned = append(f.cleaned, filename)
}

func (f *fakeFetcher) fetchedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.fetched...)
}

type fakeSender struct {
	mu     sync.Mutex
	err    error
	nextID int64
	sent   []telegram.AudioUpload
}

func (s *fakeSender) SendAudio(_ context.Context, _ string, up telegram.AudioUpload) (telegram.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return telegram.Message{}, s.err
	}
	s.nextID++
	s.sent = append(s.sent, up)
	return telegram.Message{MessageID: 1000 + s.nextID}, nil
}

type fakeEvents struct {
	mu     sync.Mutex
	err    error
	events []publishers.Event
}

func (e *fakeEvents) Publish(_ context.Context, evt publishers.Event) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, evt)
	if e.err != nil {
		return 0, e.err
	}
	return 1, nil
}

func (e *fakeEvents) Size() int { return 1 }

type chatMessenger struct {
	mu     sync.Mutex
	nextID int64
	sent   []string
	edits  map[int64][]string
}

func newChatMessenger() *chatMessenger {
	return &chatMessenger{edits: make(map[int64][]string)}
}

func (m *chatMessenger) SendMessage(_ context.Context, _ string, text string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.sent = append(m.sent, text)
	return m.nextID, nil
}

func (m *chatMessenger) EditMessage(_ context.Context, _ string, id int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id <= 0 || id > m.nextID {
		return errors.New("unknown message")
	}
	m.edits[id] = append(m.edits[id], text)
	return nil
}

func (m *chatMessenger) sentTexts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}

func (m *chatMessenger) lastEdit(id int64) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	edits := m.edits[id]
	if len(edits) == 0 {
		return ""
	}
	return edits[len(edits)-1]
}

type pageSource struct {
	handle  string
	catalog catalog.Catalog
	items   []catalog.Entry
	pageErr error
}

func (p *pageSource) ResolveHandle(_ context.Context, handle string) (string, error) {
	if handle == p.handle {
		return p.catalog.ID, nil
	}
	return "", errors.New("unknown handle")
}

func (p *pageSource) SearchCatalogs(context.Context, string) ([]string, error) {
	return nil, nil
}

func (p *pageSource) Catalog(_ context.Context, id string) (catalog.Catalog, error) {
	if id == p.catalog.ID {
		return p.catalog, nil
	}
	return catalog.Catalog{}, domain.ErrNotFound
}

func (p *pageSource) ListPage(context.Context, catalog.Catalog, string) (catalog.Page, error) {
	if p.pageErr != nil {
		return catalog.Page{}, p.pageErr
	}
	return catalog.Page{Items: p.items}, nil
}

func channelWith(ids ...string) *pageSource {
	src := &pageSource{
		handle:  "lofi",
		catalog: catalog.Catalog{ID: "UC123", Title: "Lofi_Beats", UploadsPlaylist: "UU123"},
	}
	for _, id := range ids {
		src.items = append(src.items, catalog.Entry{ItemID: id, Title: "title " + id})
	}
	return src
}
