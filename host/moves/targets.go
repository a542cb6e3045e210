package moves

import (
	"context"
	"time"

	"smoothstep/core"
	"smoothstep/host/client"
)

// Local adapts a motor whose step loop runs in this process.
func Local(m *core.Motor) Target { return localTarget{m} }

type localTarget struct{ m *core.Motor }

func (l localTarget) MoveRelative(delta int64) error {
	l.m.MoveRelative(delta)
	return nil
}

func (l localTarget) MoveAbsolute(target int64) error {
	l.m.MoveAbsolute(target)
	return nil
}

func (l localTarget) Stop() error {
	l.m.Stop()
	return nil
}

func (l localTarget) ReturnToOrigin(includeRevolutions bool) error {
	l.m.ReturnToOrigin(includeRevolutions)
	return nil
}

func (l localTarget) ResetOrigin(ctx context.Context) error {
	return l.m.ResetOriginContext(ctx)
}

func (l localTarget) ConfigureAcceleration(minRPM, maxRPM float64, rampMs int64) error {
	return l.m.ConfigureAcceleration(minRPM, maxRPM, rampMs)
}

func (l localTarget) DisableAcceleration(rpm float64) error {
	l.m.DisableAcceleration(rpm)
	return nil
}

func (l localTarget) WaitIdle(ctx context.Context) error { return l.m.WaitIdle(ctx) }

func (l localTarget) Sleep(ctx context.Context, d time.Duration) error { return sleep(ctx, d) }

// Remote adapts a motor on a controller. State is polled every poll.
func Remote(m *client.Motor, poll time.Duration) Target { return remoteTarget{m, poll} }

type remoteTarget struct {
	m    *client.Motor
	poll time.Duration
}

func (r remoteTarget) MoveRelative(delta int64) error  { return r.m.MoveRelative(delta) }
func (r remoteTarget) MoveAbsolute(target int64) error { return r.m.MoveAbsolute(target) }
func (r remoteTarget) Stop() error                     { return r.m.Stop() }

func (r remoteTarget) ReturnToOrigin(includeRevolutions bool) error {
	return r.m.ReturnToOrigin(includeRevolutions)
}

func (r remoteTarget) ResetOrigin(ctx context.Context) error {
	return r.m.ResetOrigin(ctx, r.poll)
}

func (r remoteTarget) ConfigureAcceleration(minRPM, maxRPM float64, rampMs int64) error {
	return r.m.ConfigureAcceleration(minRPM, maxRPM, rampMs)
}

func (r remoteTarget) DisableAcceleration(rpm float64) error { return r.m.DisableAcceleration(rpm) }

func (r remoteTarget) WaitIdle(ctx context.Context) error {
	return r.m.WaitUntilIdle(ctx, r.poll)
}

func (r remoteTarget) Sleep(ctx context.Context, d time.Duration) error { return sleep(ctx, d) }

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
