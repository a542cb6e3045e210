// Package rt runs step loops on dedicated OS threads.
package rt

import (
	"context"
	"errors"
	"runtime"
	"strconv"

	"smoothstep/core"
)

// ErrBadCPU is returned for a CPU index the machine does not have.
var ErrBadCPU = errors.New("cpu index out of range")

// Runner is a step loop, normally a *core.Motor.
type Runner interface {
	Run(ctx context.Context) error
}

// RunPinned locks the calling goroutine to its OS thread, binds the thread
// to cpu and runs r until ctx is done. A negative cpu skips the binding.
func RunPinned(ctx context.Context, r Runner, cpu int) error {
	if cpu >= runtime.NumCPU() {
		return ErrBadCPU
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if cpu >= 0 {
		if err := pin(cpu); err != nil {
			return err
		}
		core.DebugPrintln("rt: step loop on cpu " + strconv.Itoa(cpu))
	}
	return r.Run(ctx)
}
