package submission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/abduss/stopsurvey/internal/ledger"
	"github.com/abduss/stopsurvey/internal/media"
	"github.com/abduss/stopsurvey/internal/metrics"
	"github.com/abduss/stopsurvey/internal/naming"
	"github.com/abduss/stopsurvey/internal/objectstore"
	"github.com/abduss/stopsurvey/internal/survey"
)

type stamper interface {
	Stamp(data []byte, contentType, label string) (media.Stamped, error)
	Now() time.Time
}

type validator interface {
	Validate(variant survey.Variant, rec survey.Record) error
}

// Options tunes an Orchestrator.
type Options struct {
	// Concurrency bounds parallel uploads; 1 uploads strictly in attachment order.
	Concurrency int
	// StoreBackend and LedgerBackend label metrics and logs.
	StoreBackend  string
	LedgerBackend string
	Logger        *zap.Logger
	// NewID overrides submission ID generation.
	NewID func() string
}

// Orchestrator drives one submission through validation, upload and ledger append.
// It keeps no per-submission state and may serve concurrent submissions.
type Orchestrator struct {
	validator     validator
	stamper       stamper
	store         objectstore.Store
	ledger        ledger.Ledger
	concurrency   int
	storeBackend  string
	ledgerBackend string
	logger        *zap.Logger
	newID         func() string
}

// NewOrchestrator wires the pipeline collaborators.
func NewOrchestrator(v validator, s stamper, store objectstore.Store, l ledger.Ledger, opts Options) *Orchestrator {
	o := &Orchestrator{
		validator:     v,
		stamper:       s,
		store:         store,
		ledger:        l,
		concurrency:   opts.Concurrency,
		storeBackend:  opts.StoreBackend,
		ledgerBackend: opts.LedgerBackend,
		logger:        opts.Logger,
		newID:         opts.NewID,
	}
	if o.concurrency < 1 {
		o.concurrency = 1
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.newID == nil {
		o.newID = func() string { return uuid.NewString() }
	}
	return o
}

// Submit runs the pipeline for one record. resume may be nil.
func (o *Orchestrator) Submit(ctx context.Context, rec survey.Record, resume *Resume) (Result, error) {
	result, err := o.submit(ctx, rec, resume)
	outcome := StateDone.String()
	if f, ok := AsFailure(err); ok {
		outcome = f.Stage.String()
	}
	label := "unknown"
	if v, ok := survey.Lookup(rec.Variant); ok {
		label = v.Name
	}
	metrics.ObserveSubmission(label, outcome)
	return result, err
}

func (o *Orchestrator) submit(ctx context.Context, rec survey.Record, resume *Resume) (Result, error) {
	// Validating.
	variant, ok := survey.Lookup(rec.Variant)
	if !ok {
		return failed(&Failure{Stage: StateValidating, Err: fmt.Errorf("%w: %q", survey.ErrUnknownVariant, rec.Variant)})
	}
	rec = survey.Prepare(rec)
	if err := o.validator.Validate(variant, rec); err != nil {
		o.logger.Info("submission rejected",
			zap.String("variant", variant.Name),
			zap.Int("violations", len(survey.Violations(err))),
			zap.Error(survey.FirstViolation(err)),
		)
		return failed(&Failure{Stage: StateValidating, Err: err})
	}

	preserved, err := preservedRefs(resume, len(rec.Media))
	if err != nil {
		return failed(&Failure{Stage: StateValidating, Err: err})
	}

	submissionID := o.newID()
	if resume != nil && resume.SubmissionID != "" {
		submissionID = resume.SubmissionID
	}
	submittedAt := o.stamper.Now()
	if resume != nil && !resume.SubmittedAt.IsZero() {
		submittedAt = resume.SubmittedAt.In(submittedAt.Location())
	}
	label := variant.Label(rec.Answers)
	log := o.logger.With(zap.String("submission_id", submissionID), zap.String("variant", variant.Name))

	// Uploading.
	var eventTime time.Time
	if resume != nil {
		eventTime = resume.EventTime
	}
	refs, eventTime, err := o.upload(ctx, log, rec.Media, label, naming.Context{
		Label:        label,
		SubmittedAt:  submittedAt,
		SubmissionID: submissionID,
	}, preserved, eventTime)
	if err != nil {
		log.Warn("media upload failed", zap.Int("committed", countRefs(refs)), zap.Error(err))
		return failed(&Failure{
			Stage:        StateUploading,
			SubmissionID: submissionID,
			SubmittedAt:  submittedAt,
			EventTime:    eventTime,
			References:   collect(refs),
			Err:          err,
		})
	}

	// Appending.
	links := make([]string, len(refs))
	for i, ref := range refs {
		links[i] = ref.Link()
	}
	header := variant.Header()
	row := variant.Row(rec.Answers, eventTime, links)
	key := variant.LedgerKey(rec.Answers)

	_, err = ledger.EnsureAndAppend(ctx, o.ledger, key, header, row)
	metrics.ObserveAppend(o.ledgerBackend, err)
	if err != nil {
		log.Error("ledger append failed", zap.String("ledger", key), zap.Error(err))
		return failed(&Failure{
			Stage:        StateAppending,
			SubmissionID: submissionID,
			SubmittedAt:  submittedAt,
			EventTime:    eventTime,
			References:   collect(refs),
			Err:          err,
		})
	}

	log.Info("submission recorded", zap.String("ledger", key), zap.Int("media", len(refs)))
	return Result{
		SubmissionID: submissionID,
		Variant:      variant.Name,
		State:        StateDone,
		LedgerKey:    key,
		Header:       header,
		Row:          row,
		References:   refs,
		EventTime:    eventTime,
		SubmittedAt:  submittedAt,
	}, nil
}

// upload stamps items in attachment order and uploads them with bounded parallelism.
// The first item's resolved time becomes the event time unless one is already known.
func (o *Orchestrator) upload(
	ctx context.Context,
	log *zap.Logger,
	items []survey.MediaItem,
	label string,
	nctx naming.Context,
	preserved map[int]objectstore.Reference,
	eventTime time.Time,
) ([]objectstore.Reference, time.Time, error) {
	refs := make([]objectstore.Reference, len(items))
	for i, ref := range preserved {
		refs[i] = ref
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	var stampErr error
	for i, item := range items {
		if gctx.Err() != nil {
			break
		}
		if _, done := preserved[i]; done && (i > 0 || !eventTime.IsZero()) {
			continue
		}

		stamped, err := o.stamper.Stamp(item.Data, item.ContentType, label)
		if err != nil {
			stampErr = fmt.Errorf("media %d (%s): %w", i+1, item.Filename, err)
			break
		}
		if i == 0 && eventTime.IsZero() {
			eventTime = stamped.CapturedAt
		}
		if _, done := preserved[i]; done {
			continue
		}

		index := i
		key := naming.BuildKey(nctx, index+1, stamped.ContentType)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ref, err := o.store.Upload(gctx, key, stamped.Data, stamped.ContentType)
			metrics.ObserveUpload(o.storeBackend, err)
			if err != nil {
				return fmt.Errorf("media %d: %w", index+1, err)
			}
			log.Debug("media uploaded", zap.Int("index", index+1), zap.String("key", key), zap.String("metadata", stamped.Metadata.String()))
			refs[index] = ref
			return nil
		})
	}

	uploadErr := g.Wait()
	if stampErr != nil {
		return refs, eventTime, stampErr
	}
	if uploadErr != nil {
		if errors.Is(uploadErr, context.Canceled) && ctx.Err() != nil {
			return refs, eventTime, ctx.Err()
		}
		return refs, eventTime, uploadErr
	}
	if err := ctx.Err(); err != nil {
		return refs, eventTime, err
	}
	return refs, eventTime, nil
}

func preservedRefs(resume *Resume, count int) (map[int]objectstore.Reference, error) {
	out := make(map[int]objectstore.Reference)
	if resume == nil {
		return out, nil
	}
	if resume.SubmissionID != "" {
		if _, err := uuid.Parse(resume.SubmissionID); err != nil {
			return nil, fmt.Errorf("%w: submission id %q", ErrInvalidResume, resume.SubmissionID)
		}
	}
	for _, ref := range resume.References {
		if ref.Index < 1 || ref.Index > count {
			return nil, fmt.Errorf("%w: index %d outside 1..%d", ErrInvalidResume, ref.Index, count)
		}
		if ref.Reference == (objectstore.Reference{}) {
			return nil, fmt.Errorf("%w: empty reference at index %d", ErrInvalidResume, ref.Index)
		}
		out[ref.Index-1] = ref.Reference
	}
	return out, nil
}

func collect(refs []objectstore.Reference) []MediaRef {
	out := make([]MediaRef, 0, len(refs))
	for i, ref := range refs {
		if ref == (objectstore.Reference{}) {
			continue
		}
		out = append(out, MediaRef{Index: i + 1, Reference: ref})
	}
	return out
}

func countRefs(refs []objectstore.Reference) int {
	n := 0
	for _, ref := range refs {
		if ref != (objectstore.Reference{}) {
			n++
		}
	}
	return n
}

func failed(f *Failure) (Result, error) {
	return Result{SubmissionID: f.SubmissionID, State: StateFailed}, f
}

// Rows reads back a variant's ledger.
func (o *Orchestrator) Rows(ctx context.Context, variantName, key string) (ledger.Table, [][]string, error) {
	variant, ok := survey.Lookup(variantName)
	if !ok {
		return ledger.Table{}, nil, fmt.Errorf("%w: %q", survey.ErrUnknownVariant, variantName)
	}
	table := ledger.Table{Name: key, Header: variant.Header()}
	rows, err := o.ledger.ReadRows(ctx, table)
	if err != nil {
		return table, nil, err
	}
	return table, rows, nil
}
