package inspect

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/wasm-inspect/errors"
)

// Input is one module to inspect. When Data is nil the module is read from
// Path by the worker.
type Input struct {
	Path string
	Data []byte
}

// Result is the outcome for one Input. Exactly one of Report and Err is set.
type Result struct {
	Report  *Report
	Err     error
	Path    string
	Elapsed time.Duration
}

// Batch inspects inputs on a bounded worker pool. Results are returned in
// input order. Each module gets opts.Timeout; a module that exceeds it is
// reported as a timeout and whatever the parse produces afterwards is
// discarded. Parsing itself cannot be interrupted.
func Batch(ctx context.Context, inputs []Input, opts Options) []Result {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	var v *Verifier
	if opts.Verify {
		v = NewVerifier(ctx)
		defer v.Close(ctx)
	}

	results := make([]Result, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, in := range inputs {
		g.Go(func() error {
			results[i] = run(gctx, in, opts, v)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	Logger().Info("batch finished",
		zap.Int("modules", len(inputs)),
		zap.Int("failed", failed),
		zap.Int("workers", workers),
	)
	return results
}

type outcome struct {
	report *Report
	err    error
}

func run(ctx context.Context, in Input, opts Options, v *Verifier) Result {
	start := time.Now()
	res := Result{Path: in.Path}
	defer func() {
		if res.Err != nil {
			Logger().Warn("module failed", zap.String("path", in.Path), zap.Error(res.Err))
		}
	}()

	if err := ctx.Err(); err != nil {
		res.Err = errors.Wrap(errors.PhaseLoad, errors.KindTimeout, err, "batch cancelled before start")
		return res
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	done := make(chan outcome, 1)
	go func() {
		data := in.Data
		if data == nil {
			var err error
			if data, err = LoadFile(in.Path, opts.MaxBytes); err != nil {
				done <- outcome{err: err}
				return
			}
		}
		r, m, err := inspect(in.Path, data, opts.Reader)
		if err == nil && v != nil {
			if err = v.Verify(ctx, data, m); err == nil {
				r.Verified = true
			}
		}
		done <- outcome{report: r, err: err}
	}()

	select {
	case o := <-done:
		res.Report, res.Err = o.report, o.err
		if res.Err != nil {
			res.Report = nil
		}
	case <-ctx.Done():
		res.Err = errors.Timeout(in.Path, ctx.Err())
	}
	res.Elapsed = time.Since(start)
	Logger().Debug("module inspected",
		zap.String("path", in.Path),
		zap.Duration("elapsed", res.Elapsed),
		zap.Bool("ok", res.Err == nil),
	)
	return res
}
