// Package coordinator implements the Multi-Repository Coordinator (C13):
// fan-out of one query across several repositories, progressive streaming
// of each sub-result as it completes, and an ordered textual merge. Sequential
// execution is the default per §4.12; Parallel mirrors the teacher's
// worker-pool fan-out (internal/indexer/indexer.go's Run) for deployments
// whose provider rate limits tolerate concurrent sub-requests.
package coordinator

import (
	"context"
	"fmt"
	"sync"

	"github.com/anhhai680/deepwiki-sub000/internal/config"
	"github.com/anhhai680/deepwiki-sub000/internal/query"
	"github.com/anhhai680/deepwiki-sub000/pkg/models"
)

// Sentinel is emitted exactly once, after every sub-result has been
// flushed, marking the end of the merged stream (§4.12 step 4). It is
// never interpreted as answer text by callers.
const Sentinel = "[DONE]"

// Sink receives progressive output: either one sub-result's streamed text
// fragment, or the terminal Sentinel.
type Sink func(fragment string)

// Coordinator runs one QueryRequest across multiple repository refs via a
// shared Query Pipeline, merging and streaming the sub-results in request
// order.
type Coordinator struct {
	Pipeline *query.Pipeline

	// Parallel runs sub-requests concurrently when true. The default
	// (false) runs them sequentially, per §4.12 step 2's default.
	Parallel bool
}

// New returns a Coordinator bound to one Query Pipeline, running
// sequentially by default.
func New(p *query.Pipeline) *Coordinator {
	return &Coordinator{Pipeline: p}
}

// subOutcome pairs one repository's QueryResult with its failure, if any,
// keeping per-repo identity through a parallel run.
type subOutcome struct {
	index  int
	result models.QueryResult
	err    error
}

// FanOut runs req against every ref in order, streaming each sub-result's
// text to sink as it completes and a Sentinel once all are flushed. It
// returns the per-repo results in request order (index-aligned with refs)
// alongside the first error encountered, if any; a failed sub-request
// still yields a placeholder result so callers can report which repo_id
// failed.
func (c *Coordinator) FanOut(ctx context.Context, sessionID string, refs []models.Descriptor, req models.QueryRequest, override config.Override, sink Sink) ([]models.QueryResult, error) {
	if len(refs) == 0 {
		sink(Sentinel)
		return nil, nil
	}

	outcomes := make([]subOutcome, len(refs))
	if c.Parallel {
		c.runParallel(ctx, sessionID, refs, req, override, outcomes, sink)
	} else {
		c.runSequential(ctx, sessionID, refs, req, override, outcomes, sink)
	}

	results := make([]models.QueryResult, len(refs))
	var firstErr error
	for i, o := range outcomes {
		results[i] = o.result
		if o.err != nil && firstErr == nil {
			firstErr = o.err
		}
	}
	sink(Sentinel)
	return results, firstErr
}

// runSequential executes sub-requests in request order, one at a time,
// piping each one's fragments to sink live as they arrive — genuinely
// progressive output, per §4.12 step 4, rather than buffering every
// sub-result until the whole fan-out has finished. Sections never
// interleave here since only one sub-request is in flight at a time.
func (c *Coordinator) runSequential(ctx context.Context, sessionID string, refs []models.Descriptor, req models.QueryRequest, override config.Override, outcomes []subOutcome, sink Sink) {
	for i, ref := range refs {
		sink(sectionHeader(ref.RepoID()))
		result, err := c.Pipeline.Run(ctx, sessionID, ref, req, override, sink)
		if err != nil {
			sink(fmt.Sprintf("error: %v\n\n", err))
		} else {
			sink("\n\n")
		}
		outcomes[i] = subOutcome{index: i, result: result, err: err}
	}
}

// runParallel executes every sub-request concurrently, writing each
// outcome to its own slot so per-repo identity survives regardless of
// completion order. Fragments are buffered per sub-request rather than
// streamed live — interleaving tokens from concurrent sub-streams would
// scramble the per-repo section grouping — but each section is still
// flushed to sink as soon as its own sub-request completes rather than
// waiting on the slowest one, which is what keeps this progressive
// instead of a single barrier at the end.
func (c *Coordinator) runParallel(ctx context.Context, sessionID string, refs []models.Descriptor, req models.QueryRequest, override config.Override, outcomes []subOutcome, sink Sink) {
	var wg sync.WaitGroup
	var mu sync.Mutex
	for i, ref := range refs {
		wg.Add(1)
		go func(i int, ref models.Descriptor) {
			defer wg.Done()
			result, err := c.Pipeline.Run(ctx, sessionID, ref, req, override, func(string) {})
			outcomes[i] = subOutcome{index: i, result: result, err: err}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				sink(fmt.Sprintf("### %s\nerror: %v\n\n", ref.RepoID(), err))
				return
			}
			sink(sectionHeader(ref.RepoID()))
			sink(result.AnswerText)
			sink("\n\n")
		}(i, ref)
	}
	wg.Wait()
}

func sectionHeader(repoID string) string {
	return fmt.Sprintf("### %s\n", repoID)
}
