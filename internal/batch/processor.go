// Package batch implements the core batch processor of SPEC_FULL.md §4.2:
// the FIFO queue, the dual size-or-time flush trigger, the bounded
// worker pool, and the six-step per-batch pipeline. Its shape is adapted
// from the teacher's scheduler+worker pool pair — a dedicated dispatch
// loop feeding a handoff channel that a fixed pool of workers drains —
// generalized from job polling to variant batching.
package batch

import (
	"context"
	"crypto/rand"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/vareng/annotator/internal/annotation/model"
	"github.com/vareng/annotator/internal/annotation/repository"
	"github.com/vareng/annotator/internal/config"
	"github.com/vareng/annotator/internal/metrics"
	"github.com/vareng/annotator/internal/registry"
	"github.com/vareng/annotator/internal/scoring"
	"github.com/vareng/annotator/internal/variantkey"
	"github.com/vareng/annotator/internal/vep"
)

// Processor owns the queue, the dispatch loop, and the worker pool. It is
// the only component that ever transitions a registry entry away from
// Queued.
type Processor struct {
	cfg      config.BatchConfig
	queue    *variantQueue
	registry *registry.Registry
	store    repository.Store
	vepClient *vep.Client
	scorer   *scoring.Scorer
	metrics  *metrics.Metrics

	handoff chan []string
	stopCh  chan struct{}

	dispatchWG sync.WaitGroup
	workerWG   sync.WaitGroup

	entropy *ulid.MonotonicEntropy
	entropyMu sync.Mutex
}

// New constructs a Processor. Call Start to begin the dispatch loop and
// worker pool; call Enqueue to enqueue keys from the façade.
func New(cfg config.BatchConfig, reg *registry.Registry, store repository.Store, vepClient *vep.Client, scorer *scoring.Scorer, m *metrics.Metrics) *Processor {
	return &Processor{
		cfg:       cfg,
		queue:     newVariantQueue(),
		registry:  reg,
		store:     store,
		vepClient: vepClient,
		scorer:    scorer,
		metrics:   m,
		handoff:   make(chan []string, cfg.MaxWorkers),
		stopCh:    make(chan struct{}),
		entropy:   ulid.Monotonic(rand.Reader, 0),
	}
}

// Start spawns the dispatch loop and the worker pool.
func (p *Processor) Start() {
	p.dispatchWG.Add(1)
	go p.runDispatcher()

	for i := 0; i < p.cfg.MaxWorkers; i++ {
		p.workerWG.Add(1)
		go p.runWorker(i)
	}
	log.Printf("batch processor started with %d workers", p.cfg.MaxWorkers)
}

// Stop drains the queue into final batches of at most max_batch_size (the
// last possibly under-sized), processes every remaining batch to
// completion, then closes the worker
// pool. It blocks until all in-flight work has settled.
func (p *Processor) Stop() {
	log.Println("batch processor stopping...")
	close(p.stopCh)
	p.dispatchWG.Wait()
	close(p.handoff)
	p.workerWG.Wait()
	log.Println("batch processor stopped")
}

// Enqueue adds a variant key to the queue. Callers must have already
// created the registry entry; Enqueue only affects batching.
func (p *Processor) Enqueue(variantKey string) {
	p.queue.enqueue(variantKey)
	if p.metrics != nil {
		p.metrics.QueueDepth.Set(float64(p.queue.depth()))
	}
}

func (p *Processor) runDispatcher() {
	defer p.dispatchWG.Done()

	timer := time.NewTimer(p.cfg.MaxWaitTime)
	defer timer.Stop()

	for {
		select {
		case <-p.stopCh:
			p.flushAll()
			return
		case <-p.queue.notify:
		case <-timer.C:
		}

		p.tryFlush()
		resetTimer(timer, p.queue, p.cfg.MaxWaitTime)
	}
}

func resetTimer(timer *time.Timer, q *variantQueue, maxWait time.Duration) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}

	wait := maxWait
	if elapsed := q.oldestWait(); elapsed > 0 {
		remaining := maxWait - elapsed
		if remaining <= 0 {
			remaining = time.Millisecond
		}
		wait = remaining
	}
	timer.Reset(wait)
}

// tryFlush forms and dispatches one batch if either flush trigger holds:
// queue depth at or above max_batch_size, or the oldest entry has waited
// at or beyond max_wait_time.
func (p *Processor) tryFlush() {
	if p.queue.depth() == 0 {
		return
	}
	if p.queue.depth() < p.cfg.MaxBatchSize && p.queue.oldestWait() < p.cfg.MaxWaitTime {
		return
	}

	batchKeys := p.queue.drain(p.cfg.MaxBatchSize)
	if len(batchKeys) == 0 {
		return
	}
	p.dispatch(batchKeys)
}

// flushAll drains everything left in the queue into as many max-sized
// batches as needed, ignoring the wait-time trigger, then dispatches them.
func (p *Processor) flushAll() {
	for p.queue.depth() > 0 {
		batchKeys := p.queue.drain(p.cfg.MaxBatchSize)
		if len(batchKeys) == 0 {
			return
		}
		p.dispatch(batchKeys)
	}
}

func (p *Processor) dispatch(keys []string) {
	if p.metrics != nil {
		p.metrics.BatchesFormed.Inc()
		p.metrics.BatchSize.Observe(float64(len(keys)))
		p.metrics.QueueDepth.Set(float64(p.queue.depth()))
	}
	p.handoff <- keys
}

func (p *Processor) runWorker(id int) {
	defer p.workerWG.Done()

	for keys := range p.handoff {
		p.processBatch(id, keys)
	}
}

func (p *Processor) newBatchID() string {
	p.entropyMu.Lock()
	defer p.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), p.entropy).String()
}

// processBatch runs the six-step pipeline for one batch: mark, call VEP,
// parse, score, persist, publish. It always runs to completion against a
// background context — the VEP call carries its own timeout, the database
// write runs without a deadline, and an in-flight batch must not be
// abandoned mid-pipeline just because shutdown began after it was
// dispatched.
func (p *Processor) processBatch(workerID int, keys []string) {
	batchID := p.newBatchID()
	start := time.Now()
	defer func() {
		if p.metrics != nil {
			p.metrics.BatchDuration.Observe(time.Since(start).Seconds())
		}
	}()

	log.Printf("worker %d: batch %s: processing %d variants", workerID, batchID, len(keys))

	ctx := context.Background()

	// 1. Mark.
	descriptors := make([]vep.VariantDescriptor, 0, len(keys))
	markedKeys := make([]string, 0, len(keys))
	for _, key := range keys {
		if err := p.registry.Transition(key, registry.Processing, 0, nil, ""); err != nil {
			log.Printf("worker %d: batch %s: %v", workerID, batchID, err)
			continue
		}
		comp, err := variantkey.Parse(key)
		if err != nil {
			log.Printf("worker %d: batch %s: unparseable key %s: %v", workerID, batchID, key, err)
			p.failNonRetriable(key, "invalid_variant_key")
			continue
		}
		descriptors = append(descriptors, vep.VariantDescriptor{ID: key, Chrom: comp.Chrom, Pos: comp.Pos, Ref: comp.Ref, Alt: comp.Alt})
		markedKeys = append(markedKeys, key)
	}
	if len(markedKeys) == 0 {
		return
	}

	// 2. Call VEP.
	raw, err := p.vepClient.Annotate(ctx, descriptors)
	if err != nil {
		var transient *vep.TransientError
		if errors.As(err, &transient) {
			log.Printf("worker %d: batch %s: transient VEP failure: %v", workerID, batchID, err)
			p.failTransient(markedKeys, "transient_upstream")
			return
		}
		log.Printf("worker %d: batch %s: non-retriable VEP failure: %v", workerID, batchID, err)
		for _, key := range markedKeys {
			p.failNonRetriable(key, "vep_request_rejected")
		}
		return
	}

	// 3. Parse.
	parsed, err := vep.ParseBatch(raw, markedKeys)
	if err != nil {
		log.Printf("worker %d: batch %s: response unparseable: %v", workerID, batchID, err)
		p.failTransient(markedKeys, "transient_upstream")
		return
	}
	for _, failure := range parsed.Failures {
		p.failNonRetriable(failure.VariantKey, string(failure.Reason))
	}

	if len(parsed.Annotations) == 0 {
		return
	}

	// 4. Score.
	annotations := make([]model.Annotation, 0, len(parsed.Annotations))
	persistKeys := make([]string, 0, len(parsed.Annotations))
	for key, ann := range parsed.Annotations {
		fv := scoring.FeatureVector(ann.Record, ann.Transcripts)
		ann.Record.MLScore = p.scorer.Score(fv)
		annotations = append(annotations, ann)
		persistKeys = append(persistKeys, key)
	}

	// 5. Persist.
	if err := p.store.WriteBatch(ctx, annotations); err != nil {
		log.Printf("worker %d: batch %s: persist failed: %v", workerID, batchID, err)
		p.failTransient(persistKeys, "transient_upstream")
		return
	}

	// 6. Publish.
	for i := range annotations {
		record := annotations[i].Record
		if err := p.registry.Transition(record.VariantKey, registry.Completed, 0, record, ""); err != nil {
			log.Printf("worker %d: batch %s: %v", workerID, batchID, err)
			continue
		}
		if p.metrics != nil {
			p.metrics.VariantsCompleted.Inc()
		}
	}

	log.Printf("worker %d: batch %s: persisted %d/%d variants in %v", workerID, batchID, len(annotations), len(keys), time.Since(start))
}

// failTransient applies the whole-batch retry semantics of §4.2 step 6 to
// every key in keys: one attempt is consumed, and the entry becomes
// retry_available if attempts remain, else failed.
func (p *Processor) failTransient(keys []string, reason string) {
	for _, key := range keys {
		entry, ok := p.registry.Get(key)
		attempts := 0
		if ok {
			attempts = entry.Attempts
		}

		next := registry.RetryAvailable
		if attempts+1 >= p.cfg.MaxRetries {
			next = registry.Failed
		}

		if err := p.registry.Transition(key, next, 1, nil, reason); err != nil {
			log.Printf("batch: %v", err)
			continue
		}

		if p.metrics == nil {
			continue
		}
		if next == registry.Failed {
			p.metrics.VariantsFailed.Inc()
		} else {
			p.metrics.VariantsRetryable.Inc()
		}
	}
}

// failNonRetriable transitions key straight to failed, bypassing the retry
// budget — used for parse failures and malformed keys, which will never
// succeed no matter how many times they are retried.
func (p *Processor) failNonRetriable(key, reason string) {
	if err := p.registry.Transition(key, registry.Failed, 0, nil, reason); err != nil {
		log.Printf("batch: %v", err)
		return
	}
	if p.metrics != nil {
		p.metrics.VariantsFailed.Inc()
	}
}
