// Package fleet runs a batch of independent emulator instances
// concurrently. Each job gets its own core.Emulator (disjoint DRAM and
// register state), so jobs never share mutable state with each other.
package fleet

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vrisc/rv64emu/internal/core"
)

// Job describes one program to boot and run to completion or a cycle
// budget, whichever comes first.
type Job struct {
	ID        uuid.UUID
	Label     string
	Image     []byte
	DRAMBytes uint64
	MaxCycles uint64
}

// Result captures the outcome of one Job.
type Result struct {
	ID       uuid.UUID
	Label    string
	Cycles   uint64
	FinalPC  uint64
	Trap     *core.Exception
	TrapKind core.TrapKind
	Err      error
}

// Progress is called once per completed job, in no particular order; the
// caller may use it to drive a progress bar.
type Progress func(Result)

// Run executes jobs concurrently, bounded by limit (0 means unbounded),
// and returns one Result per job. A job that exits via a Fatal trap or a
// setup error is reported in its Result, not returned as the group error;
// Run's own error is reserved for context cancellation.
func Run(ctx context.Context, jobs []Job, limit int, onProgress Progress) ([]Result, error) {
	results := make([]Result, len(jobs))

	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res := runOne(job)
			results[i] = res
			if onProgress != nil {
				onProgress(res)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, fmt.Errorf("fleet: %w", err)
	}
	return results, nil
}

func runOne(job Job) Result {
	res := Result{ID: job.ID, Label: job.Label}

	if job.DRAMBytes == 0 {
		res.Err = fmt.Errorf("fleet: job %s: DRAMBytes must be > 0", job.Label)
		return res
	}

	e := core.NewEmu(job.DRAMBytes).WithDRAM(job.Image).WithPC(core.DRAMBase)
	start := uint64(core.DRAMBase)
	end := uint64(core.DRAMBase) + uint64(len(job.Image))

	for res.Cycles = 0; job.MaxCycles == 0 || res.Cycles < job.MaxCycles; res.Cycles++ {
		pc := e.PC()
		if pc < start || pc >= end {
			break
		}

		if _, err := e.Cycle(); err != nil {
			ex, ok := err.(core.Exception)
			if !ok {
				res.Err = err
				return res
			}

			kind := e.CatchException(ex)
			res.Trap = &ex
			res.TrapKind = kind

			if kind == core.Fatal {
				res.FinalPC = e.PC()
				return res
			}
		}
	}

	res.FinalPC = e.PC()
	return res
}
