package validate

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"db-siard/internal/observer"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/afero"
)

// Run validates the archive at path with the configured chain.
func Run(ctx context.Context, fs afero.Fs, path string, opts Options) (*Report, error) {
	reg := opts.Registry
	if reg == nil {
		reg = Default()
	}
	chain, err := reg.Chain()
	if err != nil {
		return nil, err
	}

	obs := observer.OrNop(opts.Observer)
	names := make([]string, len(chain))
	for i, f := range chain {
		names[i] = f.Name
	}
	obs.ValidationStarted(path, names)

	env := newEnv(fs, path, opts)
	defer env.close()

	report := &Report{Archive: path, Passed: true}
	if opts.Parallel {
		report.Components = runParallel(ctx, env, chain, obs)
	} else {
		report.Components = runSequential(ctx, env, chain, obs)
	}
	report.settle()
	obs.ValidationDone(report.Passed)
	return report, nil
}

func runSequential(ctx context.Context, env *Env, chain []Factory, obs observer.Observer) []ComponentReport {
	out := make([]ComponentReport, 0, len(chain))
	halted := false
	for _, f := range chain {
		if halted || ctx.Err() != nil {
			out = append(out, ComponentReport{Name: f.Name, Status: StatusNotRun})
			continue
		}
		cr := runOne(ctx, env, f, obs)
		out = append(out, cr)
		halted = cr.Fatal && cr.Status != StatusPassed
	}
	return out
}

// runParallel executes every enabled component at once. Results after the
// first fatal failure in chain order are reported as not run.
func runParallel(ctx context.Context, env *Env, chain []Factory, obs observer.Observer) []ComponentReport {
	results := make([]ComponentReport, len(chain))
	p := pool.New().WithMaxGoroutines(runtime.GOMAXPROCS(0))
	for i, f := range chain {
		p.Go(func() {
			results[i] = runOne(ctx, env, f, obs)
		})
	}
	p.Wait()

	halted := false
	for i := range results {
		if halted {
			results[i] = ComponentReport{Name: results[i].Name, Status: StatusNotRun}
			continue
		}
		halted = results[i].Fatal && results[i].Status != StatusPassed
	}
	return results
}

func runOne(ctx context.Context, env *Env, f Factory, obs observer.Observer) (cr ComponentReport) {
	cr.Name = f.Name
	if !env.Opts.enabled(f) {
		cr.Status = StatusSkipped
		obs.ValidationFinished(f.Name, string(cr.Status))
		return cr
	}

	obs.ValidationStep(f.Name)
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			cr.Status = StatusError
			cr.Error = fmt.Sprintf("panic: %v", r)
		}
		cr.Duration = time.Since(start)
		env.Log.Debug("validator done", "component", f.Name, "status", cr.Status, "elapsed", cr.Duration)
		obs.ValidationFinished(f.Name, string(cr.Status))
	}()

	c := f.Build(env.Opts)
	// Clean runs once on every path, failed Setup and panics included.
	defer c.Clean()
	if err := c.Setup(env); err != nil {
		cr.Status = StatusError
		cr.Error = err.Error()
		return cr
	}

	outcome, err := c.Validate(ctx)
	cr.Fatal = outcome.Fatal
	cr.Diagnostics = outcome.Diagnostics
	switch {
	case err != nil:
		cr.Status = StatusError
		cr.Error = err.Error()
	case outcome.Passed:
		cr.Status = StatusPassed
	default:
		cr.Status = StatusFailed
	}
	return cr
}
