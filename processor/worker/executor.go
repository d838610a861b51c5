package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/cardforge/mint-worker/entity"
	"github.com/cardforge/mint-worker/infra"
)

// Submitter is the boundary to the mint gateway. Failures come back as
// values, never as panics, so the executor does not branch on recovery
// for an expected outcome.
type Submitter interface {
	MintCard(ctx context.Context, request infra.MintRequest) (*infra.MintResponse, error)
}

// Outcome is the result of one submission attempt for one job.
type Outcome struct {
	Job          entity.MintJob
	Success      bool
	Digest       string
	ErrorMessage string
}

// Executor submits a batch of jobs in chunks of at most Concurrency,
// chunks strictly sequential, all jobs within a chunk in flight at once.
type Executor struct {
	Submitter   Submitter
	Concurrency int
}

func NewExecutor(submitter Submitter, concurrency int) *Executor {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Executor{
		Submitter:   submitter,
		Concurrency: concurrency,
	}
}

// Execute runs the batch and returns one outcome per submitted job.
// Cancellation is honored between chunks only: an in-flight chunk always
// runs to completion, jobs in chunks not yet started stay pending.
func (e *Executor) Execute(ctx context.Context, jobs []entity.MintJob) []Outcome {
	outcomes := make([]Outcome, 0, len(jobs))

	for start := 0; start < len(jobs); start += e.Concurrency {
		if start > 0 && ctx.Err() != nil {
			break
		}

		end := min(start+e.Concurrency, len(jobs))
		chunk := jobs[start:end]
		results := make([]Outcome, len(chunk))

		var wg sync.WaitGroup
		for i := range chunk {
			wg.Add(1)
			go func(i int, job entity.MintJob) {
				defer wg.Done()
				results[i] = e.submit(ctx, job)
			}(i, chunk[i])
		}
		wg.Wait()

		outcomes = append(outcomes, results...)
	}

	return outcomes
}

func (e *Executor) submit(ctx context.Context, job entity.MintJob) (out Outcome) {
	out = Outcome{Job: job}

	// One job's panic must not take down its chunk siblings.
	defer func() {
		if r := recover(); r != nil {
			out.Success = false
			out.Digest = ""
			out.ErrorMessage = fmt.Sprintf("panic during mint submission: %v", r)
		}
	}()

	response, err := e.Submitter.MintCard(ctx, infra.MintRequest{
		CardType:  job.CardType,
		Level:     job.Level,
		Title:     job.Title,
		Recipient: job.Recipient,
		Rarity:    job.Rarity,
		Rank:      job.Rank,
	})
	if err != nil {
		out.ErrorMessage = err.Error()
		return out
	}

	// Ambiguous or partial statuses count as failures for retry purposes.
	if response.Status != infra.MintStatusSuccess {
		message := response.Message
		if message == "" {
			message = "no detail provided"
		}
		out.ErrorMessage = fmt.Sprintf("mint gateway returned status %q: %s", response.Status, message)
		return out
	}

	out.Success = true
	out.Digest = response.Digest
	return out
}
