package batch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/vareng/annotator/internal/annotation/model"
	"github.com/vareng/annotator/internal/annotation/repository"
	"github.com/vareng/annotator/internal/config"
	"github.com/vareng/annotator/internal/registry"
	"github.com/vareng/annotator/internal/scoring"
	"github.com/vareng/annotator/internal/vep"
)

// fakeStore is an in-memory repository.Store for exercising the pipeline
// without a database.
type fakeStore struct {
	mu          sync.Mutex
	written     []model.Annotation
	writeErr    error
	writeCalls  int
}

func (s *fakeStore) GetAnnotation(ctx context.Context, variantKey string) (*model.Annotation, error) {
	return nil, nil
}

func (s *fakeStore) WriteBatch(ctx context.Context, annotations []model.Annotation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeCalls++
	if s.writeErr != nil {
		return s.writeErr
	}
	s.written = append(s.written, annotations...)
	return nil
}

func (s *fakeStore) Statistics(ctx context.Context) (repository.Statistics, error) {
	return repository.Statistics{}, nil
}

func testConfig() config.BatchConfig {
	return config.BatchConfig{
		MaxBatchSize:      3,
		MaxWaitTime:       30 * time.Millisecond,
		MaxWorkers:        2,
		MaxRetries:        3,
		VepTimeout:        time.Second,
		TerminalRetention: time.Second,
	}
}

func TestProcessor_SizeTriggerFlushesImmediately(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[
			{"id":"1:1:A>G","most_severe_consequence":"missense_variant","transcript_consequences":[{"transcript_id":"T1","gene_symbol":"G1","impact":"MODERATE"}]},
			{"id":"1:2:A>G","most_severe_consequence":"missense_variant","transcript_consequences":[{"transcript_id":"T2","gene_symbol":"G2","impact":"MODERATE"}]},
			{"id":"1:3:A>G","most_severe_consequence":"missense_variant","transcript_consequences":[{"transcript_id":"T3","gene_symbol":"G3","impact":"MODERATE"}]}
		]`)
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.MaxWaitTime = time.Hour // disable time trigger for this test
	reg := registry.New()
	store := &fakeStore{}
	vepClient := vep.New(server.URL, cfg.VepTimeout, nil)
	scorer, _ := scoring.New("")

	p := New(cfg, reg, store, vepClient, scorer, nil)
	p.Start()
	defer p.Stop()

	keys := []string{"1:1:A>G", "1:2:A>G", "1:3:A>G"}
	for _, k := range keys {
		reg.InsertIfAbsent(k)
		p.Enqueue(k)
	}

	deadline := time.After(2 * time.Second)
	for {
		completed := 0
		for _, k := range keys {
			if e, ok := reg.Get(k); ok && e.State == registry.Completed {
				completed++
			}
		}
		if completed == len(keys) {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for size-triggered batch to complete")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestProcessor_TimeTriggerFlushesUndersizedBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"id":"1:1:A>G","most_severe_consequence":"missense_variant","transcript_consequences":[{"transcript_id":"T1","gene_symbol":"G1","impact":"MODERATE"}]}]`)
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.MaxBatchSize = 200
	cfg.MaxWaitTime = 20 * time.Millisecond
	reg := registry.New()
	store := &fakeStore{}
	vepClient := vep.New(server.URL, cfg.VepTimeout, nil)
	scorer, _ := scoring.New("")

	p := New(cfg, reg, store, vepClient, scorer, nil)
	p.Start()
	defer p.Stop()

	reg.InsertIfAbsent("1:1:A>G")
	p.Enqueue("1:1:A>G")

	deadline := time.After(2 * time.Second)
	for {
		if e, ok := reg.Get("1:1:A>G"); ok && e.State == registry.Completed {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for time-triggered flush of an undersized batch")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestProcessor_VEPServerErrorMarksRetryAvailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.MaxBatchSize = 1
	reg := registry.New()
	store := &fakeStore{}
	vepClient := vep.New(server.URL, cfg.VepTimeout, nil)
	scorer, _ := scoring.New("")

	p := New(cfg, reg, store, vepClient, scorer, nil)
	p.Start()
	defer p.Stop()

	reg.InsertIfAbsent("1:1:A>G")
	p.Enqueue("1:1:A>G")

	deadline := time.After(2 * time.Second)
	for {
		if e, ok := reg.Get("1:1:A>G"); ok && e.State == registry.RetryAvailable {
			if e.Attempts != 1 {
				t.Fatalf("expected 1 attempt consumed, got %d", e.Attempts)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for transient failure to mark retry_available")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestProcessor_EmptyVEPResponseFailsEveryMember(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[]`)
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.MaxBatchSize = 1
	reg := registry.New()
	store := &fakeStore{}
	vepClient := vep.New(server.URL, cfg.VepTimeout, nil)
	scorer, _ := scoring.New("")

	p := New(cfg, reg, store, vepClient, scorer, nil)
	p.Start()
	defer p.Stop()

	reg.InsertIfAbsent("1:1:A>G")
	p.Enqueue("1:1:A>G")

	deadline := time.After(2 * time.Second)
	for {
		if e, ok := reg.Get("1:1:A>G"); ok && e.State == registry.Failed {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for no_annotation_returned failure")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestProcessor_ShutdownDrainsRemainingQueue(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"id":"1:1:A>G","most_severe_consequence":"missense_variant","transcript_consequences":[{"transcript_id":"T1","gene_symbol":"G1","impact":"MODERATE"}]}]`)
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.MaxBatchSize = 200
	cfg.MaxWaitTime = time.Hour
	reg := registry.New()
	store := &fakeStore{}
	vepClient := vep.New(server.URL, cfg.VepTimeout, nil)
	scorer, _ := scoring.New("")

	p := New(cfg, reg, store, vepClient, scorer, nil)
	p.Start()

	reg.InsertIfAbsent("1:1:A>G")
	p.Enqueue("1:1:A>G")

	p.Stop()

	entry, ok := reg.Get("1:1:A>G")
	if !ok || entry.State != registry.Completed {
		t.Fatalf("expected shutdown to drain and complete the remaining queue, got %+v ok=%v", entry, ok)
	}
}
