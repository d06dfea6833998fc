package runner

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/DanielPopoola/claims-settlement/internal/infrastructure/gateway"
	"golang.org/x/sync/semaphore"
)

// Executor performs a single integration call to completion.
type Executor interface {
	Execute(ctx context.Context, call gateway.Call) gateway.Outcome
}

// Runner executes batches of integration calls concurrently, one goroutine
// per call, optionally bounded by a ceiling on in-flight calls.
type Runner struct {
	exec   Executor
	sem    *semaphore.Weighted
	logger *slog.Logger
}

// New returns a Runner. maxInFlight <= 0 means no ceiling.
func New(exec Executor, maxInFlight int, logger *slog.Logger) *Runner {
	r := &Runner{exec: exec, logger: logger}
	if maxInFlight > 0 {
		r.sem = semaphore.NewWeighted(int64(maxInFlight))
	}
	return r
}

// RunAll runs every call and waits for all of them. The returned slice has
// one outcome per call, in submission order. A panic inside a call becomes
// that call's failure; it never affects the others. Calls that have not
// started when ctx is done finish with a timeout outcome without running.
func (r *Runner) RunAll(ctx context.Context, calls []gateway.Call) []gateway.Outcome {
	outcomes := make([]gateway.Outcome, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Go(func() {
			outcomes[i] = r.run(ctx, call)
		})
	}
	wg.Wait()

	return outcomes
}

func (r *Runner) run(ctx context.Context, call gateway.Call) (outcome gateway.Outcome) {
	if r.sem != nil {
		if err := r.sem.Acquire(ctx, 1); err != nil {
			return cancelled(call, err)
		}
		defer r.sem.Release(1)
	}
	if err := ctx.Err(); err != nil {
		return cancelled(call, err)
	}

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.ErrorContext(ctx, "integration task panicked",
				"partner", call.Partner,
				"operation", call.Operation,
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			outcome = gateway.Outcome{
				Call:    call,
				Elapsed: time.Since(start),
				Err: &gateway.IntegrationError{
					Kind:      gateway.KindInternal,
					Partner:   call.Partner,
					Operation: call.Operation,
					Reason:    fmt.Sprintf("panic: %v", rec),
				},
			}
		}
	}()

	return r.exec.Execute(ctx, call)
}

func cancelled(call gateway.Call, err error) gateway.Outcome {
	return gateway.Outcome{
		Call: call,
		Err: &gateway.IntegrationError{
			Kind:      gateway.KindTimeout,
			Partner:   call.Partner,
			Operation: call.Operation,
			Reason:    "not started before deadline",
			Err:       err,
		},
	}
}
