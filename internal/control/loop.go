package control

import (
	"context"
	"time"

	"github.com/banshee-data/gaitcore/internal/actuate"
	"github.com/banshee-data/gaitcore/internal/config"
	"github.com/banshee-data/gaitcore/internal/estimate"
	"github.com/banshee-data/gaitcore/internal/fault"
	"github.com/banshee-data/gaitcore/internal/monitoring"
	"github.com/banshee-data/gaitcore/internal/observe"
	"github.com/banshee-data/gaitcore/internal/policy"
	"github.com/banshee-data/gaitcore/internal/robot"
	"github.com/banshee-data/gaitcore/internal/safety"
	"github.com/banshee-data/gaitcore/internal/timeutil"
	"github.com/banshee-data/gaitcore/internal/transport"
)

// FrequencyLogInterval is how often, in cycles, the achieved loop frequency
// is logged.
const FrequencyLogInterval = 100

// StateSink receives a copy of every snapshot the loop reads.
type StateSink interface {
	Store(snap *robot.Snapshot, at time.Time)
}

// Deps are the collaborators of a Loop. Transport and Policy are required.
type Deps struct {
	Transport transport.Transport
	Policy    policy.Policy
	Guard     safety.Guard        // defaults to safety.NewPowerGuard()
	Clock     timeutil.Clock      // defaults to timeutil.RealClock
	State     StateSink           // optional telemetry cache
	Metrics   *monitoring.Metrics // defaults to a private registry
	Cycles    *monitoring.CycleLog
}

// Loop is the control cycle driver. It is not safe for concurrent use; the
// single goroutine calling Run owns all control state.
type Loop struct {
	reader   *transport.Reader
	smoother *estimate.Smoother
	builder  *observe.Builder
	stack    *observe.Stack
	policy   policy.Policy
	mapper   *actuate.Mapper
	guard    safety.Guard

	clock   timeutil.Clock
	sink    StateSink
	metrics *monitoring.Metrics
	cycles  *monitoring.CycleLog
	overrun *monitoring.Throttle

	period      time.Duration
	schedule    Schedule
	powerLevel  int
	useSmoothed bool

	state      ControlLoopState
	prevAction []float64
}

// sizer is implemented by policies with a fixed shape, such as *policy.MLP.
type sizer interface {
	InSize() int
	OutSize() int
}

// NewFromConfig builds a Loop. Every configuration problem is returned as a
// *fault.ConfigurationError.
func NewFromConfig(cfg *config.ControlConfig, deps Deps) (*Loop, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Transport == nil {
		return nil, fault.Configf("transport", "no transport supplied")
	}
	if deps.Policy == nil {
		return nil, fault.Configf("policy", "no policy supplied")
	}
	if err := safety.ValidateLevel(cfg.GetPowerLimit()); err != nil {
		return nil, err
	}
	pose, err := cfg.GetDefaultPose()
	if err != nil {
		return nil, err
	}
	joints, err := cfg.GetJointMap()
	if err != nil {
		return nil, err
	}

	depth := cfg.GetHistoryDepth()
	inSize := (depth + 1) * observe.SliceLen
	if s, ok := deps.Policy.(sizer); ok {
		if s.InSize() != inSize || s.OutSize() != robot.NumJoints {
			return nil, fault.Configf("model", "policy maps %d -> %d, loop needs %d -> %d",
				s.InSize(), s.OutSize(), inSize, robot.NumJoints)
		}
	}

	if deps.Guard == nil {
		deps.Guard = safety.NewPowerGuard()
	}
	if deps.Clock == nil {
		deps.Clock = timeutil.RealClock{}
	}
	if deps.Metrics == nil {
		deps.Metrics = monitoring.NewMetrics(nil)
	}

	l := &Loop{
		reader: transport.NewReader(deps.Transport, transport.ReaderConfig{
			Timeout:  cfg.GetRecvTimeout(),
			MaxStale: cfg.GetMaxStaleCycles(),
		}),
		smoother: estimate.NewSmoother(estimate.Config{
			Strategy: estimate.StrategyByName(cfg.GetAngularVelocityEstimator()),
			Ratio:    cfg.GetSmoothingRatio(),
			Window:   cfg.GetSmoothingWindow(),
			Start:    deps.Clock.Now(),
		}),
		builder: observe.NewBuilder(observe.Config{
			VelocityGate: uint64(cfg.GetVelocityGateCycle()),
			CommandGate:  uint64(cfg.GetCommandGateCycle()),
			Scale:        cfg.GetCommandScale().Vec(),
			Deadband:     cfg.GetCommandDeadband().Vec(),
			Pose:         pose,
			Joints:       joints,
		}),
		stack:  observe.NewStack(depth, observe.SliceLen),
		policy: policy.Checked{Policy: deps.Policy, InSize: inSize, OutSize: robot.NumJoints},
		mapper: actuate.NewMapper(actuate.Config{
			Clip:   cfg.GetActionClip(),
			Scale:  cfg.GetActionScale(),
			Pose:   pose,
			Joints: joints,
		}),
		guard:   deps.Guard,
		clock:   deps.Clock,
		sink:    deps.State,
		metrics: deps.Metrics,
		cycles:  deps.Cycles,
		overrun: monitoring.NewThrottle(time.Second),

		period: cfg.GetPeriod(),
		schedule: Schedule{
			SoftCycles: uint64(cfg.GetSoftStartCycles()),
			FirmEnd:    uint64(cfg.GetFirmEndCycle()),
			Soft:       cfg.GetSoftGains(),
			Firm:       cfg.GetFirmGains(),
			Run:        cfg.GetRunGains(),
		},
		powerLevel:  cfg.GetPowerLimit(),
		useSmoothed: cfg.GetAngularVelocitySource() == config.SourceSmoothed,
		prevAction:  make([]float64, robot.NumJoints),
	}
	l.state = NewControlLoopState(l.schedule)
	l.metrics.Phase.Set(float64(l.state.Phase))
	return l, nil
}

// State returns the current cycle counter and phase.
func (l *Loop) State() ControlLoopState { return l.state }

// Run steps the loop until ctx is cancelled or a cycle fails. Cancellation
// is only observed between cycles or while waiting for a snapshot, so a
// started cycle always completes its send. A clean shutdown returns nil.
func (l *Loop) Run(ctx context.Context) error {
	monitoring.Logf("control loop starting: period=%s phase=%s power_limit=%d", l.period, l.state.Phase, l.powerLevel)
	for {
		if ctx.Err() != nil {
			monitoring.Logf("control loop stopping at cycle %d", l.state.Cycle)
			return nil
		}
		if err := l.Step(ctx); err != nil {
			if ctx.Err() != nil && !fault.IsFatal(err) {
				monitoring.Logf("control loop stopping at cycle %d", l.state.Cycle)
				return nil
			}
			monitoring.Logf("control loop failed at cycle %d, stage %s: %v", l.state.Cycle, fault.StageOf(err), err)
			return err
		}
	}
}

// Step runs one complete cycle.
func (l *Loop) Step(ctx context.Context) error {
	start := l.clock.Now()
	cycle := l.state.Cycle
	phase := l.state.Phase

	snap, err := l.reader.Read(ctx)
	if err != nil {
		return err
	}
	if l.sink != nil {
		l.sink.Store(snap, start)
	}

	est := l.smoother.Update(snap, l.clock.Now())
	angVel := snap.AngularRate
	if l.useSmoothed {
		angVel = est
	}
	obs := l.builder.Build(snap, angVel, l.prevAction, cycle)
	full := l.stack.Push(obs)

	gains := l.schedule.Gains(phase)
	var cmd robot.Command
	if phase == Run {
		inferStart := l.clock.Now()
		action, err := l.policy.Infer(full)
		l.metrics.InferenceLatency.Observe(l.clock.Since(inferStart).Seconds())
		if err != nil {
			return err
		}
		cmd, err = l.mapper.Map(action, gains)
		if err != nil {
			return &fault.InferenceError{Stage: fault.StageMap, Err: err}
		}
		copy(l.prevAction, action)
	} else {
		cmd = l.mapper.MapPose(l.mapper.Pose(), gains)
	}

	cmd = l.guard.Protect(cmd, snap, l.powerLevel)
	if err := l.reader.Write(context.WithoutCancel(ctx), &cmd); err != nil {
		return err
	}

	busy := l.clock.Since(start)
	sleep := l.period - busy
	if sleep < 0 {
		sleep = 0
		l.metrics.Overruns.Inc()
		l.overrun.Logf("cycle %d overran period %s (busy %s)", cycle, l.period, busy)
	}
	l.clock.Sleep(sleep)

	if cycle%FrequencyLogInterval == 0 {
		if elapsed := l.clock.Since(start); elapsed > 0 {
			monitoring.Logf("%d| frq: %.1f Hz", cycle, 1/elapsed.Seconds())
		}
	}
	l.metrics.CycleDuration.Observe(busy.Seconds())
	l.metrics.Cycles.Inc()
	if l.cycles != nil {
		l.cycles.Record(monitoring.CycleSample{Cycle: cycle, Phase: phase.String(), Busy: busy, Sleep: sleep})
	}

	if l.state.Advance(l.schedule) {
		l.metrics.Phase.Set(float64(l.state.Phase))
		monitoring.Logf("cycle %d: entering %s with gains %+v", l.state.Cycle, l.state.Phase, l.schedule.Gains(l.state.Phase))
	}
	return nil
}
