package poller

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"memovault/internal/capture"
	"memovault/internal/config"
	"memovault/internal/icloud"
	"memovault/internal/ledger"
	"memovault/internal/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeScanner struct {
	paths []string
	err   error
}

func (f *fakeScanner) Scan() ([]string, error) { return f.paths, f.err }

type fakeMaterializer struct {
	calls []string
	errs  map[string]error
}

func (f *fakeMaterializer) EnsureMaterialized(_ context.Context, path string) error {
	f.calls = append(f.calls, path)
	if f.errs != nil {
		return f.errs[path]
	}
	return nil
}

type fakeDedup struct {
	known   map[string]bool
	added   []string
	queried []string
}

func (f *fakeDedup) IsDuplicate(_ context.Context, fp string) (bool, error) {
	f.queried = append(f.queried, fp)
	return f.known[fp], nil
}

func (f *fakeDedup) AddFingerprint(_ context.Context, fp string) error {
	if f.known == nil {
		f.known = map[string]bool{}
	}
	f.known[fp] = true
	f.added = append(f.added, fp)
	return nil
}

type fakeEnqueuer struct {
	jobs []*queue.Job
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, job *queue.Job) error {
	f.jobs = append(f.jobs, job)
	return nil
}

// cycleHarness assembles a cycle over a real temp ledger and fake cloud and
// dedup collaborators.
type cycleHarness struct {
	dir      string
	ledger   *ledger.Ledger
	scanner  *fakeScanner
	material *fakeMaterializer
	dedup    *fakeDedup
	exports  *fakeEnqueuer
	fpCalls  []string
	cycle    *Cycle
}

func newHarness(t *testing.T) *cycleHarness {
	t.Helper()

	l, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	h := &cycleHarness{
		dir:      t.TempDir(),
		ledger:   l,
		scanner:  &fakeScanner{},
		material: &fakeMaterializer{},
		dedup:    &fakeDedup{known: map[string]bool{}},
		exports:  &fakeEnqueuer{},
	}

	fp := func(path string) (string, error) {
		h.fpCalls = append(h.fpCalls, path)
		return "fp-" + filepath.Base(path), nil
	}

	h.cycle = NewCycle(h.scanner, l, h.material, fp, h.dedup, capture.NewStager(l), h.exports)
	return h
}

// addFile creates a real file so the cursor filter can stat it.
func (h *cycleHarness) addFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(h.dir, name)
	require.NoError(t, os.WriteFile(path, []byte("audio "+name), 0o644))
	h.scanner.paths = append(h.scanner.paths, path)
	return path
}

func TestCycleEmptyFolderFirstRun(t *testing.T) {
	h := newHarness(t)

	res, err := h.cycle.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, res.FilesFound)
	assert.Equal(t, 0, res.FilesProcessed)
	assert.Equal(t, 0, res.DuplicatesSkipped)
	assert.Empty(t, res.Errors)
	assert.GreaterOrEqual(t, res.DurationMS, int64(0))

	// The watermark is written even for an empty cycle.
	value, ok, err := h.ledger.GetSyncState(context.Background(), config.WatermarkKey)
	require.NoError(t, err)
	require.True(t, ok)
	_, parsed := ledger.ParseCursor(value)
	assert.True(t, parsed)
}

func TestCycleStagesNewFiles(t *testing.T) {
	h := newHarness(t)
	a := h.addFile(t, "A.m4a")
	h.addFile(t, "B.m4a")
	h.addFile(t, "C.m4a")

	res, err := h.cycle.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, res.FilesFound)
	assert.Equal(t, 3, res.FilesProcessed)
	assert.Equal(t, 0, res.DuplicatesSkipped)
	assert.Empty(t, res.Errors)

	row, err := h.ledger.FindCaptureByNativeID(context.Background(), capture.ChannelVoice, a)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, capture.StatusStaged, row.Status)

	meta, err := capture.ParseMeta(row.MetaJSON)
	require.NoError(t, err)
	assert.Equal(t, a, meta.ChannelNativeID)
	assert.Equal(t, "fp-A.m4a", meta.AudioFP)

	// Fingerprints recorded and export jobs enqueued, once per staged file.
	assert.ElementsMatch(t, []string{"fp-A.m4a", "fp-B.m4a", "fp-C.m4a"}, h.dedup.added)
	assert.Len(t, h.exports.jobs, 3)
	assert.Equal(t, a, h.exports.jobs[0].Path)
}

func TestCycleSkipsContentDuplicate(t *testing.T) {
	h := newHarness(t)
	d := h.addFile(t, "D.m4a")
	h.dedup.known["fp-D.m4a"] = true // same bytes already captured under another path

	res, err := h.cycle.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.FilesFound)
	assert.Equal(t, 0, res.FilesProcessed)
	assert.Equal(t, 1, res.DuplicatesSkipped)
	assert.Empty(t, res.Errors)
	assert.Equal(t, []string{"fp-D.m4a"}, h.dedup.queried)

	row, err := h.ledger.FindCaptureByNativeID(context.Background(), capture.ChannelVoice, d)
	require.NoError(t, err)
	assert.Nil(t, row)
	assert.Empty(t, h.exports.jobs)
}

func TestCyclePathDuplicateSkipsHeavyWork(t *testing.T) {
	h := newHarness(t)
	a := h.addFile(t, "A.m4a")

	// Already staged in a previous cycle.
	_, created, err := capture.NewStager(h.ledger).Stage(context.Background(), a, "fp-A.m4a")
	require.NoError(t, err)
	require.True(t, created)

	res, err := h.cycle.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.DuplicatesSkipped)
	assert.Equal(t, 0, res.FilesProcessed)
	// L1 precedes all heavy work: no cloud touch, no fingerprint.
	assert.Empty(t, h.material.calls)
	assert.Empty(t, h.fpCalls)
}

func TestCycleConflictedFileIsSkippedAndRecorded(t *testing.T) {
	h := newHarness(t)
	f := h.addFile(t, "F.m4a")
	h.material.errs = map[string]error{f: icloud.ErrConflict}

	res, err := h.cycle.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, res.FilesProcessed)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, f, res.Errors[0].Path)
	assert.Contains(t, res.Errors[0].Message, "conflict")

	// Never fingerprinted, never staged.
	assert.Empty(t, h.fpCalls)
	row, err := h.ledger.FindCaptureByNativeID(context.Background(), capture.ChannelVoice, f)
	require.NoError(t, err)
	assert.Nil(t, row)

	// The cycle still completes and the watermark still advances.
	_, ok, err := h.ledger.GetSyncState(context.Background(), config.WatermarkKey)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCyclePerFileIsolation(t *testing.T) {
	h := newHarness(t)
	bad := h.addFile(t, "A.m4a")
	good := h.addFile(t, "B.m4a")
	h.material.errs = map[string]error{bad: icloud.ErrDownloadTimeout}

	res, err := h.cycle.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.FilesProcessed)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, bad, res.Errors[0].Path)

	row, err := h.ledger.FindCaptureByNativeID(context.Background(), capture.ChannelVoice, good)
	require.NoError(t, err)
	assert.NotNil(t, row)
}

func TestCycleCursorStrictInequality(t *testing.T) {
	h := newHarness(t)
	cursorTime := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	require.NoError(t, h.ledger.PutSyncState(context.Background(), config.WatermarkKey, "2026-08-24T10:00:00Z"))

	older := h.addFile(t, "H.m4a")
	newer := h.addFile(t, "I.m4a")
	require.NoError(t, os.Chtimes(older, cursorTime, cursorTime))
	require.NoError(t, os.Chtimes(newer, cursorTime, cursorTime.Add(time.Second)))

	res, err := h.cycle.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.FilesFound)
	assert.Equal(t, 1, res.FilesProcessed)
	// H (mtime == cursor) was never probed downstream.
	assert.Equal(t, []string{newer}, h.material.calls)
	assert.Equal(t, []string{newer}, h.fpCalls)
}

func TestCycleRetriedFileConvergesToOneRow(t *testing.T) {
	h := newHarness(t)
	a := h.addFile(t, "A.m4a")
	h.material.errs = map[string]error{a: icloud.ErrCloudCheckFailed}

	res, err := h.cycle.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)

	// Next cycle: cloud recovered. The cursor advanced past the mtime, but a
	// re-examined path is what L1 idempotency exists for, so replay the file
	// with a fresh mtime.
	h.material.errs = nil
	now := time.Now()
	require.NoError(t, os.Chtimes(a, now, now.Add(time.Hour)))

	res, err = h.cycle.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.FilesProcessed)
	assert.Empty(t, res.Errors)

	// A third pass changes nothing.
	require.NoError(t, os.Chtimes(a, now, now.Add(2*time.Hour)))
	res, err = h.cycle.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.FilesProcessed)
	assert.Equal(t, 1, res.DuplicatesSkipped)

	captures, err := h.ledger.RecentCaptures(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, captures, 1)
}

func TestCycleFolderUnavailable(t *testing.T) {
	h := newHarness(t)
	h.scanner.err = os.ErrPermission

	_, err := h.cycle.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "voice folder unavailable")
}

func TestCycleWatermarkMonotonic(t *testing.T) {
	h := newHarness(t)

	var previous time.Time
	for i := 0; i < 3; i++ {
		_, err := h.cycle.Run(context.Background())
		require.NoError(t, err)

		value, ok, err := h.ledger.GetSyncState(context.Background(), config.WatermarkKey)
		require.NoError(t, err)
		require.True(t, ok)
		cursor, parsed := ledger.ParseCursor(value)
		require.True(t, parsed)
		assert.False(t, cursor.Before(previous))
		previous = cursor
	}
}
