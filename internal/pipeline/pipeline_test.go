package pipeline

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/pubvec/pubvec/internal/embedding"
	"github.com/pubvec/pubvec/internal/ledger"
	"github.com/pubvec/pubvec/internal/qdrant"
)

const testDocument = `<?xml version="1.0"?>
<PubmedArticleSet>
<PubmedArticle><MedlineCitation>
  <PMID>101</PMID>
  <Article>
    <Abstract><AbstractText>Withdrawn</AbstractText></Abstract>
  </Article>
  <CommentsCorrectionsList>
    <CommentsCorrections RefType="Retraction in"/>
  </CommentsCorrectionsList>
</MedlineCitation></PubmedArticle>
<PubmedArticle><MedlineCitation>
  <PMID>102</PMID>
  <Article><ArticleTitle>No abstract</ArticleTitle></Article>
</MedlineCitation></PubmedArticle>
<PubmedArticle><MedlineCitation>
  <PMID>100</PMID>
  <Article>
    <Abstract><AbstractText>Study of X</AbstractText></Abstract>
    <AuthorList><Author><LastName>Doe</LastName><ForeName>Jane</ForeName></Author></AuthorList>
  </Article>
</MedlineCitation></PubmedArticle>
</PubmedArticleSet>`

// fakeSource serves archives from memory.
type fakeSource struct {
	archives map[int][]byte
	sidecars map[int]string
}

func (f *fakeSource) FetchArchive(ctx context.Context, index int) ([]byte, error) {
	data, ok := f.archives[index]
	if !ok {
		return nil, fmt.Errorf("no archive %d", index)
	}
	return data, nil
}

func (f *fakeSource) FetchChecksum(ctx context.Context, index int) (string, error) {
	sidecar, ok := f.sidecars[index]
	if !ok {
		return "", fmt.Errorf("no sidecar %d", index)
	}
	return sidecar, nil
}

// countingProvider returns a fixed vector and counts calls.
type countingProvider struct {
	calls int
	fail  bool
}

func (p *countingProvider) Embed(ctx context.Context, text string) (embedding.Embedding, error) {
	p.calls++
	if p.fail {
		return embedding.Embedding{}, errors.New("model unavailable")
	}
	return embedding.Embedding{Vector: []float32{1, 0}}, nil
}

func (p *countingProvider) ModelName() string { return "fake" }
func (p *countingProvider) Dimensions() int   { return 2 }

// fakeStore records upserted points.
type fakeStore struct {
	points []qdrant.Point
	fail   bool
}

func (s *fakeStore) Upsert(ctx context.Context, collection string, points []qdrant.Point) error {
	if s.fail {
		return errors.New("store unavailable")
	}
	s.points = append(s.points, points...)
	return nil
}

// gzipDocument compresses a document and returns the bytes plus a valid
// checksum sidecar for them.
func gzipDocument(t *testing.T, document string) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := io.WriteString(zw, document); err != nil {
		t.Fatalf("compressing document: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing gzip writer: %v", err)
	}
	sum := md5.Sum(buf.Bytes())
	sidecar := fmt.Sprintf("MD5(pubmed24n0001.xml.gz)= %s\n", hex.EncodeToString(sum[:]))
	return buf.Bytes(), sidecar
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	led, err := ledger.Open(filepath.Join(t.TempDir(), "processed.txt"))
	if err != nil {
		t.Fatalf("opening ledger: %v", err)
	}
	return led
}

func newTestPipeline(source *fakeSource, provider *countingProvider, store *fakeStore, led *ledger.Ledger) *Pipeline {
	variants := []embedding.Variant{{Name: "bgem3_embedding", Provider: provider}}
	return New(source, variants, store, led, nil, testLogger(), Options{
		Collection: "pubmed",
		StartIndex: 1,
		EndIndex:   1,
	})
}

func TestRunIngestsValidRecords(t *testing.T) {
	data, sidecar := gzipDocument(t, testDocument)
	source := &fakeSource{
		archives: map[int][]byte{1: data},
		sidecars: map[int]string{1: sidecar},
	}
	provider := &countingProvider{}
	store := &fakeStore{}
	led := openLedger(t)

	stats, err := newTestPipeline(source, provider, store, led).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if stats.ArchivesProcessed != 1 {
		t.Errorf("expected 1 archive processed, got %d", stats.ArchivesProcessed)
	}
	if stats.RecordsExtracted != 1 {
		t.Errorf("expected 1 record extracted (retracted and abstract-less filtered), got %d", stats.RecordsExtracted)
	}
	if stats.RecordsIngested != 1 {
		t.Errorf("expected 1 record ingested, got %d", stats.RecordsIngested)
	}

	if len(store.points) != 1 {
		t.Fatalf("expected 1 upserted point, got %d", len(store.points))
	}
	if store.points[0].ID != 100 {
		t.Errorf("expected point id 100, got %d", store.points[0].ID)
	}
	if !led.Contains(100) {
		t.Error("ledger should contain 100 after successful ingestion")
	}
	if led.Contains(101) || led.Contains(102) {
		t.Error("filtered citations must never reach the ledger")
	}
}

func TestRunIsIdempotent(t *testing.T) {
	data, sidecar := gzipDocument(t, testDocument)
	source := &fakeSource{
		archives: map[int][]byte{1: data},
		sidecars: map[int]string{1: sidecar},
	}
	provider := &countingProvider{}
	store := &fakeStore{}
	led := openLedger(t)

	if _, err := newTestPipeline(source, provider, store, led).Run(context.Background()); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	firstEmbeds := provider.calls
	firstUpserts := len(store.points)

	stats, err := newTestPipeline(source, provider, store, led).Run(context.Background())
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if provider.calls != firstEmbeds {
		t.Errorf("second run performed %d extra embeds", provider.calls-firstEmbeds)
	}
	if len(store.points) != firstUpserts {
		t.Errorf("second run performed %d extra upserts", len(store.points)-firstUpserts)
	}
	if stats.RecordsSkipped != 1 {
		t.Errorf("expected 1 skipped duplicate, got %d", stats.RecordsSkipped)
	}
}

func TestRunSkipsLedgeredRecordsWithoutCapabilityCalls(t *testing.T) {
	data, sidecar := gzipDocument(t, testDocument)
	source := &fakeSource{
		archives: map[int][]byte{1: data},
		sidecars: map[int]string{1: sidecar},
	}
	provider := &countingProvider{}
	store := &fakeStore{}
	led := openLedger(t)
	if err := led.Commit(100); err != nil {
		t.Fatalf("seeding ledger: %v", err)
	}

	stats, err := newTestPipeline(source, provider, store, led).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if provider.calls != 0 {
		t.Errorf("expected zero embedding calls, got %d", provider.calls)
	}
	if len(store.points) != 0 {
		t.Errorf("expected zero upserts, got %d", len(store.points))
	}
	if stats.RecordsSkipped != 1 {
		t.Errorf("expected 1 skipped record, got %d", stats.RecordsSkipped)
	}
}

func TestRunAbortsMismatchedArchive(t *testing.T) {
	data, _ := gzipDocument(t, testDocument)
	source := &fakeSource{
		archives: map[int][]byte{1: data},
		sidecars: map[int]string{1: "MD5(pubmed24n0001.xml.gz)= ffffffffffffffffffffffffffffffff\n"},
	}
	provider := &countingProvider{}
	store := &fakeStore{}
	led := openLedger(t)

	stats, err := newTestPipeline(source, provider, store, led).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if stats.ArchivesAborted != 1 {
		t.Errorf("expected 1 aborted archive, got %d", stats.ArchivesAborted)
	}
	if stats.RecordsExtracted != 0 {
		t.Errorf("mismatched archive must not be parsed, got %d records", stats.RecordsExtracted)
	}
	if provider.calls != 0 || len(store.points) != 0 {
		t.Error("mismatched archive must not reach embedding or the store")
	}
	if len(stats.Archives) != 1 || stats.Archives[0].Status != "mismatched" {
		t.Errorf("unexpected archive stats: %+v", stats.Archives)
	}
}

func TestRunRecordsUnverifiedSidecarDistinctly(t *testing.T) {
	data, _ := gzipDocument(t, testDocument)
	source := &fakeSource{
		archives: map[int][]byte{1: data},
		sidecars: map[int]string{1: "not a checksum line\n"},
	}
	provider := &countingProvider{}
	store := &fakeStore{}
	led := openLedger(t)

	stats, err := newTestPipeline(source, provider, store, led).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if stats.ArchivesAborted != 1 {
		t.Errorf("expected 1 aborted archive, got %d", stats.ArchivesAborted)
	}
	if len(stats.Archives) != 1 || stats.Archives[0].Status != "unverified" {
		t.Errorf("corrupt sidecar should record status unverified, got %+v", stats.Archives)
	}
	if provider.calls != 0 || len(store.points) != 0 {
		t.Error("unverified archive must not reach embedding or the store")
	}
}

func TestRunRetriesEmbedFailureOnNextRun(t *testing.T) {
	document := `<PubmedArticleSet><PubmedArticle><MedlineCitation>
  <PMID>200</PMID>
  <Article><Abstract><AbstractText>Retryable</AbstractText></Abstract></Article>
</MedlineCitation></PubmedArticle></PubmedArticleSet>`
	data, sidecar := gzipDocument(t, document)
	source := &fakeSource{
		archives: map[int][]byte{1: data},
		sidecars: map[int]string{1: sidecar},
	}
	store := &fakeStore{}
	led := openLedger(t)

	// First run: embedding capability is down.
	failing := &countingProvider{fail: true}
	stats, err := newTestPipeline(source, failing, store, led).Run(context.Background())
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if stats.RecordsFailed != 1 {
		t.Errorf("expected 1 failed record, got %d", stats.RecordsFailed)
	}
	if led.Contains(200) {
		t.Fatal("failed record must not be committed to the ledger")
	}
	if len(store.points) != 0 {
		t.Fatal("failed record must not be upserted")
	}

	// Second run: capability recovered.
	working := &countingProvider{}
	stats, err = newTestPipeline(source, working, store, led).Run(context.Background())
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if stats.RecordsIngested != 1 {
		t.Errorf("expected record 200 ingested on retry, got %d", stats.RecordsIngested)
	}
	if !led.Contains(200) {
		t.Error("ledger should contain 200 after successful retry")
	}
}

func TestRunSkipsRecordOnUpsertFailure(t *testing.T) {
	data, sidecar := gzipDocument(t, testDocument)
	source := &fakeSource{
		archives: map[int][]byte{1: data},
		sidecars: map[int]string{1: sidecar},
	}
	provider := &countingProvider{}
	store := &fakeStore{fail: true}
	led := openLedger(t)

	stats, err := newTestPipeline(source, provider, store, led).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if stats.RecordsFailed != 1 {
		t.Errorf("expected 1 failed record, got %d", stats.RecordsFailed)
	}
	if led.Contains(100) {
		t.Error("record must not be committed when the upsert failed")
	}
}

func TestRunContinuesPastFailedArchive(t *testing.T) {
	data, sidecar := gzipDocument(t, testDocument)
	source := &fakeSource{
		// Archive 1 is missing entirely; archive 2 is valid.
		archives: map[int][]byte{2: data},
		sidecars: map[int]string{1: "MD5(x)= d41d8cd98f00b204e9800998ecf8427e", 2: sidecar},
	}
	provider := &countingProvider{}
	store := &fakeStore{}
	led := openLedger(t)

	variants := []embedding.Variant{{Name: "bgem3_embedding", Provider: provider}}
	p := New(source, variants, store, led, nil, testLogger(), Options{
		Collection: "pubmed",
		StartIndex: 1,
		EndIndex:   2,
	})

	stats, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if stats.ArchivesAborted != 1 || stats.ArchivesProcessed != 1 {
		t.Errorf("expected 1 aborted and 1 processed archive, got %+v", stats)
	}
	if stats.RecordsIngested != 1 {
		t.Errorf("expected archive 2 to be ingested, got %d records", stats.RecordsIngested)
	}
}

func TestRunLedgerFailureIsFatal(t *testing.T) {
	data, sidecar := gzipDocument(t, testDocument)
	source := &fakeSource{
		archives: map[int][]byte{1: data},
		sidecars: map[int]string{1: sidecar},
	}
	provider := &countingProvider{}
	store := &fakeStore{}

	// Block the ledger's temp file path with a directory so Commit fails.
	dir := t.TempDir()
	ledgerPath := filepath.Join(dir, "processed.txt")
	led, err := ledger.Open(ledgerPath)
	if err != nil {
		t.Fatalf("opening ledger: %v", err)
	}
	if err := os.MkdirAll(ledgerPath+".tmp", 0755); err != nil {
		t.Fatalf("blocking temp path: %v", err)
	}

	_, err = newTestPipeline(source, provider, store, led).Run(context.Background())
	if err == nil {
		t.Fatal("expected run to fail on ledger write failure")
	}
}

func TestRunHonorsContextCancellation(t *testing.T) {
	data, sidecar := gzipDocument(t, testDocument)
	source := &fakeSource{
		archives: map[int][]byte{1: data},
		sidecars: map[int]string{1: sidecar},
	}
	led := openLedger(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestPipeline(source, &countingProvider{}, &fakeStore{}, led).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
