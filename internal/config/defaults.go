package config

import "time"

// Default tuning values. These are specific to the shipped walking policy and
// are mirrored in config/control.defaults.json.
const (
	DefaultPeriod         = 20 * time.Millisecond
	DefaultRecvTimeout    = 100 * time.Millisecond
	DefaultMaxStaleCycles = 25
	DefaultPowerLimit     = 9

	DefaultSoftStartCycles = 100
	DefaultFirmEndCycle    = 1100

	DefaultVelocityGateCycle = 1600
	DefaultCommandGateCycle  = 2000

	DefaultForwardScale  = 0.6
	DefaultLateralScale  = 0.5
	DefaultYawScale      = 0.8
	DefaultDeadband      = 0.10
	DefaultActionClip    = 100.0
	DefaultActionScale   = 0.25
	DefaultSmoothing     = 0.2
	DefaultSmoothWindow  = 12
	DefaultHistoryDepth  = 4
	DefaultTelemetryRate = 500.0 // Hz

	EstimatorExponential = "exponential"
	EstimatorWindowed    = "windowed"

	SourceRaw      = "raw"
	SourceSmoothed = "smoothed"
)

// Default gain schedule.
var (
	DefaultSoftGains = Gains{P: 5, D: 1}
	DefaultFirmGains = Gains{P: 50, D: 5}
	DefaultRunGains  = Gains{P: 20, D: 5}
)
