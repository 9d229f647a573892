package submission

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abduss/stopsurvey/internal/catalog"
	"github.com/abduss/stopsurvey/internal/clock"
	"github.com/abduss/stopsurvey/internal/ledger"
	"github.com/abduss/stopsurvey/internal/media"
	"github.com/abduss/stopsurvey/internal/objectstore"
	"github.com/abduss/stopsurvey/internal/survey"
)

const testSubmissionID = "3f2504e0-4f89-11d3-9a0c-0305e82c3301"

var ist = time.FixedZone("IST", 5*3600+1800)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New(
		[]catalog.Staff{{ID: "S100", Name: "Asha"}},
		[]catalog.Depot{{Name: "Depot 12", Routes: []catalog.Route{{Name: "500D", Stops: []string{"Silk Board", "HSR Layout"}}}}},
		[]string{"Majestic"},
	)
	require.NoError(t, err)
	return c
}

func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: 40, G: 90, B: 160, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func busStopRecord(t *testing.T, photos int) survey.Record {
	t.Helper()
	data := testJPEG(t)
	items := make([]survey.MediaItem, photos)
	for i := range items {
		items[i] = survey.MediaItem{Filename: fmt.Sprintf("p%d.jpg", i+1), ContentType: "image/jpeg", Data: data}
	}
	return survey.Record{
		Variant: "bus_stop",
		Answers: survey.Answers{
			"staff_id":   {"S100"},
			"depot":      {"Depot 12"},
			"route":      {"500D"},
			"stop":       {"Silk Board"},
			"condition":  {"Poor"},
			"activity":   {"Routine inspection"},
			"conditions": {"Garbage", "Poor lighting"},
		},
		Media: items,
	}
}

// recordingStore counts uploads and fails the calls listed in failOn (1-based).
// jpegTakenAt builds a JPEG whose APP1 segment carries a big-endian TIFF block with
// a single IFD0 DateTime entry.
func jpegTakenAt(t *testing.T, stamp string) []byte {
	t.Helper()
	plain := testJPEG(t)

	value := append([]byte(stamp), 0)
	tiff := new(bytes.Buffer)
	tiff.Write([]byte{'M', 'M', 0x00, 0x2A})
	_ = binary.Write(tiff, binary.BigEndian, uint32(8))
	_ = binary.Write(tiff, binary.BigEndian, uint16(1))
	_ = binary.Write(tiff, binary.BigEndian, uint16(0x0132))
	_ = binary.Write(tiff, binary.BigEndian, uint16(2))
	_ = binary.Write(tiff, binary.BigEndian, uint32(len(value)))
	_ = binary.Write(tiff, binary.BigEndian, uint32(26))
	_ = binary.Write(tiff, binary.BigEndian, uint32(0))
	tiff.Write(value)

	payload := append([]byte("Exif\x00\x00"), tiff.Bytes()...)
	segment := []byte{0xFF, 0xE1}
	segment = binary.BigEndian.AppendUint16(segment, uint16(len(payload)+2))
	segment = append(segment, payload...)

	out := append([]byte{}, plain[:2]...)
	out = append(out, segment...)
	return append(out, plain[2:]...)
}

type recordingStore struct {
	mu     sync.Mutex
	failOn map[int]error
	calls  int
	keys   []string
}

func (s *recordingStore) Upload(_ context.Context, key string, _ []byte, _ string) (objectstore.Reference, error) {
	s.mu.Lock()
	s.calls++
	n := s.calls
	s.mu.Unlock()

	if err := s.failOn[n]; err != nil {
		return objectstore.Reference{}, err
	}
	s.mu.Lock()
	s.keys = append(s.keys, key)
	s.mu.Unlock()
	return objectstore.Reference{Key: key, URL: "https://store.test/" + key}, nil
}

type downLedger struct{}

func (downLedger) EnsureTable(context.Context, string, []string) (ledger.Table, error) {
	return ledger.Table{}, fmt.Errorf("%w: sheets 503", ledger.ErrLedgerUnavailable)
}

func (downLedger) AppendRow(context.Context, ledger.Table, []string) error {
	return ledger.ErrLedgerUnavailable
}

func (downLedger) ReadRows(context.Context, ledger.Table) ([][]string, error) {
	return nil, ledger.ErrLedgerUnavailable
}

type fixture struct {
	orchestrator *Orchestrator
	store        *recordingStore
	ledger       ledger.Ledger
	clock        *clock.Stub
}

func newFixture(t *testing.T, store *recordingStore, l ledger.Ledger, concurrency int) fixture {
	t.Helper()
	if store == nil {
		store = &recordingStore{}
	}
	if l == nil {
		l = ledger.NewCSV(objectstore.NewMemory("ledgers"), objectstore.RetryPolicy{Attempts: 3, Interval: time.Millisecond}, "")
	}
	clk := clock.NewStub(time.Date(2024, 1, 15, 5, 0, 5, 0, time.UTC))
	stamper := media.NewStamper(media.Options{Location: ist, Clock: clk})
	o := NewOrchestrator(survey.NewValidator(testCatalog(t)), stamper, store, l, Options{
		Concurrency:   concurrency,
		StoreBackend:  "test",
		LedgerBackend: "csv",
		NewID:         func() string { return testSubmissionID },
	})
	return fixture{orchestrator: o, store: store, ledger: l, clock: clk}
}

func (f fixture) rows(t *testing.T, key string) [][]string {
	t.Helper()
	_, rows, err := f.orchestrator.Rows(context.Background(), "bus_stop", key)
	require.NoError(t, err)
	return rows
}

func TestSubmitThreePhotosReachesDone(t *testing.T) {
	f := newFixture(t, nil, nil, 1)

	res, err := f.orchestrator.Submit(context.Background(), busStopRecord(t, 3), nil)
	require.NoError(t, err)

	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, testSubmissionID, res.SubmissionID)
	assert.Equal(t, "Depot 12", res.LedgerKey)
	require.Len(t, res.References, 3)
	assert.Equal(t, []string{
		"Silk_Board_20240115_103005_3f2504e0_1.jpg",
		"Silk_Board_20240115_103005_3f2504e0_2.jpg",
		"Silk_Board_20240115_103005_3f2504e0_3.jpg",
	}, f.store.keys)

	require.Len(t, res.Row, len(res.Header))
	assert.Equal(t, "2024-01-15 10:30:05", res.Row[0])
	assert.Equal(t, "Garbage, Poor lighting", res.Row[7])
	assert.Equal(t, 3, len(strings.Split(res.Row[len(res.Row)-1], "\n")))

	rows := f.rows(t, "Depot 12")
	require.Len(t, rows, 1)
	assert.Equal(t, res.Row, rows[0])
}

func TestSubmitWithoutPhotosFailsValidationWithoutSideEffects(t *testing.T) {
	f := newFixture(t, nil, nil, 1)

	res, err := f.orchestrator.Submit(context.Background(), busStopRecord(t, 0), nil)
	require.Error(t, err)
	assert.Equal(t, StateFailed, res.State)

	failure, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, StateValidating, failure.Stage)
	assert.Empty(t, failure.References)

	first := survey.FirstViolation(err)
	require.NotNil(t, first)
	assert.Equal(t, "media", first.Field)

	assert.Zero(t, f.store.calls)
	assert.Empty(t, f.rows(t, "Depot 12"))
}

func TestSubmitSecondUploadFailureKeepsFirstReference(t *testing.T) {
	store := &recordingStore{failOn: map[int]error{2: fmt.Errorf("%w: quota", objectstore.ErrRejected)}}
	f := newFixture(t, store, nil, 1)

	_, err := f.orchestrator.Submit(context.Background(), busStopRecord(t, 3), nil)
	require.ErrorIs(t, err, objectstore.ErrRejected)

	failure, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, StateUploading, failure.Stage)
	require.Len(t, failure.References, 1)
	assert.Equal(t, 1, failure.References[0].Index)
	assert.Equal(t, "Silk_Board_20240115_103005_3f2504e0_1.jpg", failure.References[0].Key)

	assert.Equal(t, 2, store.calls, "no upload may start after a failure")
	assert.Empty(t, f.rows(t, "Depot 12"), "nothing may be appended after an upload failure")
}

func TestSubmitResumeSkipsPreservedUploads(t *testing.T) {
	store := &recordingStore{failOn: map[int]error{2: fmt.Errorf("%w: 503", objectstore.ErrUnavailable)}}
	f := newFixture(t, store, nil, 1)
	rec := busStopRecord(t, 3)

	_, err := f.orchestrator.Submit(context.Background(), rec, nil)
	failure, ok := AsFailure(err)
	require.True(t, ok)
	resume := failure.Resume()

	store.failOn = nil
	store.keys = nil
	res, err := f.orchestrator.Submit(context.Background(), rec, &resume)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Silk_Board_20240115_103005_3f2504e0_2.jpg",
		"Silk_Board_20240115_103005_3f2504e0_3.jpg",
	}, store.keys)
	require.Len(t, res.References, 3)
	assert.Equal(t, failure.References[0].Reference, res.References[0])
	assert.Equal(t, failure.EventTime, res.EventTime)
	assert.Len(t, f.rows(t, "Depot 12"), 1)
}

func TestSubmitLedgerFailureReportsAllReferences(t *testing.T) {
	f := newFixture(t, nil, downLedger{}, 1)

	_, err := f.orchestrator.Submit(context.Background(), busStopRecord(t, 3), nil)
	require.ErrorIs(t, err, ledger.ErrLedgerUnavailable)

	failure, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, StateAppending, failure.Stage)
	assert.Len(t, failure.References, 3)
}

func TestSubmitUnreadableImageStopsUploading(t *testing.T) {
	f := newFixture(t, nil, nil, 1)
	rec := busStopRecord(t, 3)
	rec.Media[1].Data = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0x01}

	_, err := f.orchestrator.Submit(context.Background(), rec, nil)
	require.ErrorIs(t, err, media.ErrUnreadableImage)

	failure, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, StateUploading, failure.Stage)
	require.Len(t, failure.References, 1)
	assert.Equal(t, 1, f.store.calls)
}

func TestSubmitParallelUploadsKeepAttachmentOrder(t *testing.T) {
	f := newFixture(t, nil, nil, 3)

	res, err := f.orchestrator.Submit(context.Background(), busStopRecord(t, 5), nil)
	require.NoError(t, err)
	require.Len(t, res.References, 5)
	for i, ref := range res.References {
		assert.True(t, strings.HasSuffix(ref.Key, fmt.Sprintf("_%d.jpg", i+1)), ref.Key)
	}
}

func TestSubmitUnknownVariant(t *testing.T) {
	f := newFixture(t, nil, nil, 1)
	rec := busStopRecord(t, 1)
	rec.Variant = "parking"

	_, err := f.orchestrator.Submit(context.Background(), rec, nil)
	require.ErrorIs(t, err, survey.ErrUnknownVariant)
}

func TestSubmitRejectsResumeOutOfRange(t *testing.T) {
	f := newFixture(t, nil, nil, 1)
	resume := &Resume{References: []MediaRef{{Index: 9, Reference: objectstore.Reference{Key: "x"}}}}

	_, err := f.orchestrator.Submit(context.Background(), busStopRecord(t, 2), resume)
	require.ErrorIs(t, err, ErrInvalidResume)
	assert.Zero(t, f.store.calls)
}

func TestFailureWrapsCause(t *testing.T) {
	cause := errors.New("boom")
	err := error(&Failure{Stage: StateAppending, Err: cause})
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "appending")
}

func TestSubmitEventTimeComesFromFirstPhoto(t *testing.T) {
	f := newFixture(t, nil, nil, 1)
	rec := busStopRecord(t, 3)
	rec.Media[0].Data = jpegTakenAt(t, "2024:01:14 07:45:10")
	rec.Media[1].Data = jpegTakenAt(t, "2024:01:14 08:00:00")
	rec.Media[2].Data = jpegTakenAt(t, "2024:01:14 09:30:00")

	res, err := f.orchestrator.Submit(context.Background(), rec, nil)
	require.NoError(t, err)

	assert.Equal(t, "2024-01-14 07:45:10", res.Row[0])
	assert.True(t, res.EventTime.Equal(time.Date(2024, 1, 14, 7, 45, 10, 0, ist)), res.EventTime.String())
	// Keys use the submission time, not the capture time.
	assert.Equal(t, "Silk_Board_20240115_103005_3f2504e0_1.jpg", f.store.keys[0])
}

func TestSubmitRejectsResumeWithForeignSubmissionID(t *testing.T) {
	f := newFixture(t, nil, nil, 1)

	for _, id := range []string{"/../../x", "not-a-uuid", "3f2504e0/../../etc"} {
		_, err := f.orchestrator.Submit(context.Background(), busStopRecord(t, 1), &Resume{SubmissionID: id})
		require.ErrorIs(t, err, ErrInvalidResume, id)
	}
	assert.Zero(t, f.store.calls)
}

func TestSubmitResumeKeepsKeysAfterClockMoves(t *testing.T) {
	store := &recordingStore{failOn: map[int]error{2: fmt.Errorf("%w: 503", objectstore.ErrUnavailable)}}
	f := newFixture(t, store, nil, 1)
	rec := busStopRecord(t, 2)

	_, err := f.orchestrator.Submit(context.Background(), rec, nil)
	failure, ok := AsFailure(err)
	require.True(t, ok)
	resume := failure.Resume()

	f.clock.Advance(90 * time.Second)
	store.failOn = nil
	store.keys = nil
	res, err := f.orchestrator.Submit(context.Background(), rec, &resume)
	require.NoError(t, err)

	assert.Equal(t, []string{"Silk_Board_20240115_103005_3f2504e0_2.jpg"}, store.keys)
	assert.True(t, res.SubmittedAt.Equal(failure.SubmittedAt))
}
