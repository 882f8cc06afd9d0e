//go:build integration

package steps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/cucumber/godog"

	"github.com/samvad-hq/samvad-audio-relay/internal/bot"
	"github.com/samvad-hq/samvad-audio-relay/internal/catalog"
	"github.com/samvad-hq/samvad-audio-relay/internal/domain"
	"github.com/samvad-hq/samvad-audio-relay/internal/relay"
	"github.com/samvad-hq/samvad-audio-relay/internal/session"
	"github.com/samvad-hq/samvad-audio-relay/internal/storage"
	"github.com/samvad-hq/samvad-audio-relay/pkg/extractor"
	"github.com/samvad-hq/samvad-audio-relay/pkg/httpclient"
	"github.com/samvad-hq/samvad-audio-relay/pkg/telegram"
)

const (
	featureChat    = "42"
	featureChannel = "-1001"
	maxPayload     = 20 * 1024 * 1024
)

type relayWorld struct {
	mu          sync.Mutex
	sizes       map[string]int64
	deleted     []string
	audios      []string
	texts       []string
	nextMessage int64
	cancelOn    string

	extractorSrv *httptest.Server
	telegramSrv  *httptest.Server
	extractor    *extractor.Client
	store        storage.Store
	sessions     *session.Registry
	source       *stubSource
	relayer      *relay.Relayer
	batcher      *relay.Batcher

	outcome domain.Outcome
	report  relay.Report
}

// InitializeRelayScenario wires a fresh pipeline against stub services for every scenario.
func InitializeRelayScenario(ctx *godog.ScenarioContext) {
	w := &relayWorld{}

	ctx.Before(func(c context.Context, _ *godog.Scenario) (context.Context, error) {
		return c, w.setup()
	})
	ctx.After(func(c context.Context, _ *godog.Scenario, err error) (context.Context, error) {
		w.teardown()
		return c, err
	})

	ctx.Step(`^item "([^"]*)" was already relayed$`, w.itemWasAlreadyRelayed)
	ctx.Step(`^the extraction service reports (\d+) bytes for "([^"]*)"$`, w.extractionReportsBytes)
	ctx.Step(`^the catalog "([^"]*)" lists (\d+) items$`, w.catalogListsItems)
	ctx.Step(`^the batch is cancelled while item "([^"]*)" is extracted$`, w.cancelWhileExtracting)
	ctx.Step(`^I relay item "([^"]*)"$`, w.relayItem)
	ctx.Step(`^I run a batch for "([^"]*)" with range "([^"]*)"$`, w.runBatch)
	ctx.Step(`^the outcome is "([^"]*)"$`, w.outcomeIs)
	ctx.Step(`^the channel received (\d+) audio posts?$`, w.channelReceived)
	ctx.Step(`^item "([^"]*)" is recorded$`, w.itemIsRecorded)
	ctx.Step(`^item "([^"]*)" is not recorded$`, w.itemIsNotRecorded)
	ctx.Step(`^the extraction service cleaned up "([^"]*)"$`, w.cleanedUp)
	ctx.Step(`^the batch status is "([^"]*)"$`, w.batchStatusIs)
	ctx.Step(`^the batch report shows (\d+) sent, (\d+) failed and (\d+) skipped$`, w.batchReportShows)
	ctx.Step(`^the chat shows "([^"]*)"$`, w.chatShows)
}

func (w *relayWorld) setup() error {
	w.mu.Lock()
	w.sizes = map[string]int64{}
	w.deleted = nil
	w.audios = nil
	w.texts = nil
	w.nextMessage = 0
	w.cancelOn = ""
	w.mu.Unlock()
	w.outcome = ""
	w.report = relay.Report{}

	w.sessions = session.NewRegistry()
	w.source = &stubSource{}
	w.extractorSrv = httptest.NewServer(http.HandlerFunc(w.serveExtractor))
	w.telegramSrv = httptest.NewServer(http.HandlerFunc(w.serveTelegram))

	var err error
	w.extractor, err = extractor.New(extractor.Config{
		BaseURL:         w.extractorSrv.URL,
		Timeout:         5 * time.Second,
		CleanupTimeout:  time.Second,
		MaxPayloadBytes: maxPayload,
	}, httpclient.NewRestyClient(0), nil)
	if err != nil {
		return err
	}
	tg, err := telegram.New(telegram.Config{Token: "1:feature", APIURL: w.telegramSrv.URL})
	if err != nil {
		return err
	}

	w.store = storage.NewMemoryStore()
	w.relayer = relay.NewRelayer(w.store, w.extractor, tg, featureChannel)
	w.batcher = relay.NewBatcher(w.relayer, catalog.NewEnumerator(w.source, nil), w.sessions,
		bot.NewMessenger(tg, telegram.ParseModeMarkdown), 0, nil)
	return nil
}

func (w *relayWorld) teardown() {
	if w.extractor != nil {
		w.extractor.Wait()
	}
	if w.extractorSrv != nil {
		w.extractorSrv.Close()
	}
	if w.telegramSrv != nil {
		w.telegramSrv.Close()
	}
}

func (w *relayWorld) serveExtractor(rw http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasPrefix(r.URL.Path, "/api/download/"):
		id := path.Base(r.URL.Path)
		w.mu.Lock()
		size, ok := w.sizes[id]
		cancelOn := w.cancelOn
		w.mu.Unlock()
		if !ok {
			size = 4 * 1024 * 1024
		}
		if id == cancelOn {
			w.sessions.Cancel(featureChat)
		}
		writeJSON(rw, map[string]any{
			"success":     true,
			"videoId":     id,
			"title":       "Song " + id,
			"artist":      "Feature Artist",
			"duration":    180,
			"filename":    id + ".mp3",
			"filesize":    size,
			"downloadUrl": "/files/" + id + ".mp3",
		})
	case strings.HasPrefix(r.URL.Path, "/api/delete/"):
		w.mu.Lock()
		w.deleted = append(w.deleted, path.Base(r.URL.Path))
		w.mu.Unlock()
		writeJSON(rw, map[string]any{"success": true})
	default:
		http.NotFound(rw, r)
	}
}

func (w *relayWorld) serveTelegram(rw http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(rw, err.Error(), http.StatusBadRequest)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	switch path.Base(r.URL.Path) {
	case "sendAudio":
		w.audios = append(w.audios, fmt.Sprint(body["audio"]))
	case "sendMessage", "editMessageText":
		w.texts = append(w.texts, fmt.Sprint(body["text"]))
		if path.Base(r.URL.Path) == "editMessageText" {
			writeJSON(rw, map[string]any{"ok": true, "result": true})
			return
		}
	}
	w.nextMessage++
	writeJSON(rw, map[string]any{"ok": true, "result": map[string]any{
		"message_id": w.nextMessage,
		"chat":       map[string]any{"id": 42, "type": "private"},
	}})
}

func (w *relayWorld) itemWasAlreadyRelayed(id string) error {
	return w.store.Record(context.Background(), domain.RelayRecord{ItemID: id, MessageRef: 1})
}

func (w *relayWorld) extractionReportsBytes(size int64, id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sizes[id] = size
	return nil
}

func (w *relayWorld) catalogListsItems(handle string, n int) error {
	w.source.handle = catalog.NormalizeHandle(handle)
	w.source.items = nil
	for i := 1; i <= n; i++ {
		w.source.items = append(w.source.items, catalog.Entry{ItemID: fmt.Sprintf("item%07d", i), Title: fmt.Sprintf("Track %d", i)})
	}
	return nil
}

func (w *relayWorld) cancelWhileExtracting(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cancelOn = id
	return nil
}

func (w *relayWorld) relayItem(id string) error {
	w.outcome, _ = w.relayer.Relay(context.Background(), id)
	return nil
}

func (w *relayWorld) runBatch(handle, expr string) error {
	rng, err := catalog.ParseRange(expr)
	if err != nil {
		return err
	}
	w.report, err = w.batcher.Run(context.Background(), relay.BatchRequest{
		SessionKey: featureChat,
		ChatID:     featureChat,
		Handle:     handle,
		Range:      rng,
	})
	return err
}

func (w *relayWorld) outcomeIs(want string) error {
	if string(w.outcome) != want {
		return fmt.Errorf("outcome %q, want %q", w.outcome, want)
	}
	return nil
}

func (w *relayWorld) channelReceived(n int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.audios) != n {
		return fmt.Errorf("channel received %d audio posts, want %d: %v", len(w.audios), n, w.audios)
	}
	return nil
}

func (w *relayWorld) itemIsRecorded(id string) error {
	rec, err := w.store.Get(context.Background(), id)
	if err != nil {
		return err
	}
	if rec.MessageRef == 0 {
		return fmt.Errorf("record for %s has no message ref", id)
	}
	return nil
}

func (w *relayWorld) itemIsNotRecorded(id string) error {
	_, err := w.store.Get(context.Background(), id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return fmt.Errorf("expected no record for %s, got err=%v", id, err)
}

func (w *relayWorld) cleanedUp(filename string) error {
	w.extractor.Wait()
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, d := range w.deleted {
		if d == filename {
			return nil
		}
	}
	return fmt.Errorf("%s was not cleaned up, deleted: %v", filename, w.deleted)
}

func (w *relayWorld) batchStatusIs(want string) error {
	if w.report.Status != want {
		return fmt.Errorf("batch status %q, want %q", w.report.Status, want)
	}
	return nil
}

func (w *relayWorld) batchReportShows(success, failed, skipped int) error {
	r := w.report
	if r.Success != success || r.Failed != failed || r.Skipped != skipped {
		return fmt.Errorf("report %d/%d/%d, want %d/%d/%d", r.Success, r.Failed, r.Skipped, success, failed, skipped)
	}
	return nil
}

func (w *relayWorld) chatShows(fragment string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, text := range w.texts {
		if strings.Contains(text, fragment) {
			return nil
		}
	}
	return fmt.Errorf("no chat message contains %q: %q", fragment, w.texts)
}

type stubSource struct {
	handle string
	items  []catalog.Entry
}

func (s *stubSource) ResolveHandle(_ context.Context, handle string) (string, error) {
	if handle != s.handle {
		return "", domain.ErrNotFound
	}
	return "UCfeature", nil
}

func (s *stubSource) SearchCatalogs(context.Context, string) ([]string, error) {
	return nil, nil
}

func (s *stubSource) Catalog(_ context.Context, id string) (catalog.Catalog, error) {
	if id != "UCfeature" {
		return catalog.Catalog{}, domain.ErrNotFound
	}
	return catalog.Catalog{ID: id, Title: "Feature Channel", UploadsPlaylist: "UUfeature"}, nil
}

func (s *stubSource) ListPage(context.Context, catalog.Catalog, string) (catalog.Page, error) {
	return catalog.Page{Items: s.items}, nil
}

func writeJSON(rw http.ResponseWriter, payload any) {
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(payload)
}
