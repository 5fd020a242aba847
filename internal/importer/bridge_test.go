package importer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"

	"oxygencrate/internal/metrics"
	"oxygencrate/internal/uithread"
)

// fakeResolver serves in-memory content.
type fakeResolver struct {
	name        string
	nameErr     error
	data        []byte
	openErr     error
	failAfter   int // bytes served before the stream errors; <0 disables
	permErr     error
	panicOnOpen bool
	panicOnName bool

	mu        sync.Mutex
	permFlags []GrantFlags
}

func (r *fakeResolver) TakePersistableReadPermission(_ string, flags GrantFlags) error {
	r.mu.Lock()
	r.permFlags = append(r.permFlags, flags)
	r.mu.Unlock()
	return r.permErr
}

func (r *fakeResolver) DisplayName(string) (string, error) {
	if r.panicOnName {
		panic("cursor exploded")
	}
	return r.name, r.nameErr
}

func (r *fakeResolver) Open(string) (io.ReadCloser, error) {
	if r.panicOnOpen {
		panic("resolver exploded")
	}
	if r.openErr != nil {
		return nil, r.openErr
	}
	var src io.Reader = bytes.NewReader(r.data)
	if r.failAfter >= 0 {
		src = io.MultiReader(io.LimitReader(bytes.NewReader(r.data), int64(r.failAfter)), errReader{})
	}
	return io.NopCloser(src), nil
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("stream reset") }

type launches struct {
	mu     sync.Mutex
	tokens []RequestToken
	err    error
}

func (l *launches) Launch(tok RequestToken) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tokens = append(l.tokens, tok)
	return l.err
}

type records struct {
	mu   sync.Mutex
	recs []Record
}

func (r *records) RecordImport(_ context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, rec)
	return nil
}

func (r *records) last(t *testing.T) Record {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.recs)
	return r.recs[len(r.recs)-1]
}

func importDir(t *testing.T) string {
	return filepath.Join(t.TempDir(), "Beisent", "OxygenCrate")
}

func newTestBridge(t *testing.T, dir string, res ContentResolver, opts ...Option) (*Bridge, *launches) {
	t.Helper()
	l := &launches{}
	b, err := NewBridge(dir, uithread.Immediate, l, res, opts...)
	require.NoError(t, err)
	return b, l
}

func TestBridge_ImportsNamedFile(t *testing.T) {
	dir := importDir(t)
	content := []byte("id,amount\n1,42\n")
	rec := &records{}
	b, l := newTestBridge(t, dir, &fakeResolver{name: "report.csv", data: content, failAfter: -1}, WithRecorder(rec))

	tok := b.RequestFilePicker()
	assert.Equal(t, FirstRequestToken, tok)
	assert.Equal(t, []RequestToken{tok}, l.tokens)
	assert.Equal(t, RequestAwaiting, b.State(tok))

	b.OnResult(Result{Token: tok, ContentRef: "content://docs/1", Flags: GrantRead | GrantWrite | GrantPersistable})
	assert.Equal(t, RequestResolved, b.State(tok))

	p := b.PollSelectedFile()
	require.NotEmpty(t, p)
	assert.True(t, filepath.IsAbs(p))
	assert.True(t, strings.HasSuffix(p, filepath.Join("Beisent", "OxygenCrate", "report.csv")), p)

	got, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, content, got)
	assert.Equal(t, "", b.PollSelectedFile())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files should remain")

	r := rec.last(t)
	sum := blake2b.Sum256(content)
	assert.Equal(t, OutcomeImported, r.Outcome)
	assert.Equal(t, "report.csv", r.DisplayName)
	assert.False(t, r.FallbackName)
	assert.Equal(t, int64(len(content)), r.Size)
	assert.Equal(t, sum[:], r.Digest)
	assert.Equal(t, p, r.Path)
}

func TestBridge_MasksGrantFlags(t *testing.T) {
	res := &fakeResolver{name: "a.txt", data: []byte("a"), failAfter: -1}
	b, _ := newTestBridge(t, importDir(t), res)

	tok := b.RequestFilePicker()
	b.OnResult(Result{Token: tok, ContentRef: "content://a", Flags: GrantRead | GrantWrite | GrantPersistable | 0x100})

	assert.Equal(t, []GrantFlags{GrantRead | GrantPersistable}, res.permFlags)
}

func TestBridge_MetadataFailureUsesGeneratedName(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	b, _ := newTestBridge(t, importDir(t),
		&fakeResolver{nameErr: errors.New("cursor empty"), data: []byte("x"), failAfter: -1},
		WithClock(func() time.Time { return now }))

	tok := b.RequestFilePicker()
	b.OnResult(Result{Token: tok, ContentRef: "content://x"})

	p := b.PollSelectedFile()
	require.NotEmpty(t, p)
	assert.Equal(t, "Imported_1700000000123", filepath.Base(p))
	assert.Equal(t, "", b.PollSelectedFile())
}

func TestBridge_UnusableNameUsesGeneratedName(t *testing.T) {
	for _, name := range []string{"", ".", "..", "/", "  "} {
		t.Run(name, func(t *testing.T) {
			b, _ := newTestBridge(t, importDir(t), &fakeResolver{name: name, data: []byte("x"), failAfter: -1})

			tok := b.RequestFilePicker()
			b.OnResult(Result{Token: tok, ContentRef: "content://x"})

			assert.Regexp(t, regexp.MustCompile(`^Imported_\d+$`), filepath.Base(b.PollSelectedFile()))
		})
	}
}

func TestBridge_CopyFailureLeavesNothing(t *testing.T) {
	dir := importDir(t)
	rec := &records{}
	b, _ := newTestBridge(t, dir,
		&fakeResolver{name: "big.bin", data: bytes.Repeat([]byte("z"), 4096), failAfter: 1000},
		WithRecorder(rec))

	tok := b.RequestFilePicker()
	b.OnResult(Result{Token: tok, ContentRef: "content://big"})

	assert.Equal(t, "", b.PollSelectedFile())
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	r := rec.last(t)
	assert.Equal(t, OutcomeFailed, r.Outcome)
	assert.Contains(t, r.Err, "stream reset")
	assert.Equal(t, RequestResolved, b.State(tok))
}

func TestBridge_OpenFailure(t *testing.T) {
	b, _ := newTestBridge(t, importDir(t), &fakeResolver{name: "a", openErr: os.ErrPermission})

	tok := b.RequestFilePicker()
	b.OnResult(Result{Token: tok, ContentRef: "content://a"})
	assert.Equal(t, "", b.PollSelectedFile())
}

func TestBridge_UncreatableDirectory(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "Beisent")
	require.NoError(t, os.WriteFile(blocker, []byte("not a dir"), 0o644))

	b, _ := newTestBridge(t, filepath.Join(blocker, "OxygenCrate"), &fakeResolver{name: "a", data: []byte("a"), failAfter: -1})

	tok := b.RequestFilePicker()
	assert.NotPanics(t, func() { b.OnResult(Result{Token: tok, ContentRef: "content://a"}) })
	assert.Equal(t, "", b.PollSelectedFile())
}

func TestBridge_CanceledAndEmptyResults(t *testing.T) {
	rec := &records{}
	b, _ := newTestBridge(t, importDir(t), &fakeResolver{name: "a", data: []byte("a"), failAfter: -1}, WithRecorder(rec))

	tok := b.RequestFilePicker()
	b.OnResult(Result{Token: tok, Canceled: true, ContentRef: "content://a"})
	assert.Equal(t, "", b.PollSelectedFile())
	assert.Equal(t, OutcomeCanceled, rec.last(t).Outcome)

	tok = b.RequestFilePicker()
	b.OnResult(Result{Token: tok})
	assert.Equal(t, "", b.PollSelectedFile())
	assert.Equal(t, RequestResolved, b.State(tok))
	assert.Equal(t, 0, b.Awaiting())
}

func TestBridge_IgnoresUnrelatedAndDuplicateResults(t *testing.T) {
	m := metrics.New("test")
	b, _ := newTestBridge(t, importDir(t), &fakeResolver{name: "a.txt", data: []byte("a"), failAfter: -1}, WithMetrics(m))

	b.OnResult(Result{Token: 7, ContentRef: "content://a"})
	assert.Equal(t, "", b.PollSelectedFile())

	tok := b.RequestFilePicker()
	b.OnResult(Result{Token: tok, ContentRef: "content://a"})
	b.OnResult(Result{Token: tok, ContentRef: "content://a"})

	assert.NotEmpty(t, b.PollSelectedFile())
	assert.Equal(t, "", b.PollSelectedFile())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Imports.WithLabelValues(metrics.ImportIgnored)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Imports.WithLabelValues(metrics.ImportImported)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PickerRequests))
}

func TestBridge_PermissionFailureIsNotFatal(t *testing.T) {
	b, _ := newTestBridge(t, importDir(t), &fakeResolver{name: "a.txt", data: []byte("a"), failAfter: -1, permErr: errors.New("no grant")})

	tok := b.RequestFilePicker()
	b.OnResult(Result{Token: tok, ContentRef: "content://a"})
	assert.Equal(t, "a.txt", filepath.Base(b.PollSelectedFile()))
}

func TestBridge_PanicInResolverIsAbsorbed(t *testing.T) {
	dir := importDir(t)
	rec := &records{}
	b, _ := newTestBridge(t, dir, &fakeResolver{name: "a.txt", panicOnOpen: true}, WithRecorder(rec))

	tok := b.RequestFilePicker()
	assert.NotPanics(t, func() { b.OnResult(Result{Token: tok, ContentRef: "content://a"}) })
	assert.Equal(t, "", b.PollSelectedFile())
	assert.Equal(t, RequestResolved, b.State(tok))
	assert.Equal(t, OutcomeFailed, rec.last(t).Outcome)
}

func TestBridge_PanicInDisplayNameUsesGeneratedName(t *testing.T) {
	now := time.UnixMilli(1700000000456)
	rec := &records{}
	b, _ := newTestBridge(t, importDir(t),
		&fakeResolver{panicOnName: true, data: []byte("payload"), failAfter: -1},
		WithRecorder(rec), WithClock(func() time.Time { return now }))

	tok := b.RequestFilePicker()
	assert.NotPanics(t, func() { b.OnResult(Result{Token: tok, ContentRef: "content://x"}) })

	p := b.PollSelectedFile()
	require.NotEmpty(t, p)
	assert.Equal(t, "Imported_1700000000456", filepath.Base(p))
	got, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))

	last := rec.last(t)
	assert.Equal(t, OutcomeImported, last.Outcome)
	assert.True(t, last.FallbackName)
	assert.Equal(t, RequestResolved, b.State(tok))
}

func TestBridge_LaunchFailureResolvesToken(t *testing.T) {
	rec := &records{}
	l := &launches{err: errors.New("no activity for intent")}
	b, err := NewBridge(importDir(t), uithread.Immediate, l, &fakeResolver{}, WithRecorder(rec))
	require.NoError(t, err)

	tok := b.RequestFilePicker()
	assert.Equal(t, RequestResolved, b.State(tok))
	assert.Equal(t, OutcomeFailed, rec.last(t).Outcome)

	// a late result for the failed launch is ignored
	b.OnResult(Result{Token: tok, ContentRef: "content://a"})
	assert.Equal(t, "", b.PollSelectedFile())
}

func TestBridge_RejectedPostResolvesToken(t *testing.T) {
	l := &launches{}
	reject := uithread.PosterFunc(func(func()) bool { return false })
	b, err := NewBridge(importDir(t), reject, l, &fakeResolver{})
	require.NoError(t, err)

	tok := b.RequestFilePicker()
	assert.Empty(t, l.tokens)
	assert.Equal(t, RequestResolved, b.State(tok))
}

func TestBridge_LaunchRunsOnLooper(t *testing.T) {
	looper := uithread.NewLooper()
	l := &launches{}
	b, err := NewBridge(importDir(t), looper, l, &fakeResolver{name: "a", data: []byte("a"), failAfter: -1})
	require.NoError(t, err)

	tok := b.RequestFilePicker()
	assert.Empty(t, l.tokens, "launch must wait for the UI thread")
	assert.Equal(t, 1, looper.Drain())
	assert.Equal(t, []RequestToken{tok}, l.tokens)
}

func TestBridge_ConcurrentPollersSeeEachPathOnce(t *testing.T) {
	b, _ := newTestBridge(t, importDir(t), &fakeResolver{nameErr: errors.New("none"), data: []byte("x"), failAfter: -1},
		WithClock(func() time.Time { return time.UnixMilli(1) }))

	const n = 20
	for i := 0; i < n; i++ {
		tok := b.RequestFilePicker()
		b.OnResult(Result{Token: tok, ContentRef: "content://x"})
	}
	require.Equal(t, n, b.Pending())

	var mu sync.Mutex
	seen := 0
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for b.PollSelectedFile() != "" {
				mu.Lock()
				seen++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, n, seen)
}

func TestNewBridge_RequiresCollaborators(t *testing.T) {
	l := &launches{}
	r := &fakeResolver{}
	_, err := NewBridge("", uithread.Immediate, l, r)
	assert.Error(t, err)
	_, err = NewBridge("d", nil, l, r)
	assert.Error(t, err)
	_, err = NewBridge("d", uithread.Immediate, nil, r)
	assert.Error(t, err)
	_, err = NewBridge("d", uithread.Immediate, l, nil)
	assert.Error(t, err)
}
