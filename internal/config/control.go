package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/gaitcore/internal/fault"
	"github.com/banshee-data/gaitcore/internal/robot"
)

// DefaultConfigPath is the path to the canonical control defaults file.
const DefaultConfigPath = "config/control.defaults.json"

// Gains is a proportional/derivative pair.
type Gains = robot.Gains

// CommandAxes holds one value per velocity-command channel.
type CommandAxes struct {
	Forward float64 `json:"forward"`
	Lateral float64 `json:"lateral"`
	Yaw     float64 `json:"yaw"`
}

// Vec returns the axes as forward, lateral, yaw.
func (a CommandAxes) Vec() robot.Vec3 { return robot.Vec3{a.Forward, a.Lateral, a.Yaw} }

// ControlConfig is the static configuration of the control core. Fields left
// out of the JSON fall back to the defaults in defaults.go.
type ControlConfig struct {
	// Timing
	Period         *string `json:"period,omitempty"`       // duration string like "20ms"
	RecvTimeout    *string `json:"recv_timeout,omitempty"` // duration string like "100ms"
	MaxStaleCycles *int    `json:"max_stale_cycles,omitempty"`

	// Safety gate
	PowerLimit *int `json:"power_limit,omitempty"`

	// Startup ramp and gain schedule
	SoftStartCycles *int   `json:"soft_start_cycles,omitempty"`
	FirmEndCycle    *int   `json:"firm_end_cycle,omitempty"`
	SoftGains       *Gains `json:"soft_gains,omitempty"`
	FirmGains       *Gains `json:"firm_gains,omitempty"`
	RunGains        *Gains `json:"run_gains,omitempty"`

	// Observation
	VelocityGateCycle *int         `json:"velocity_gate_cycle,omitempty"`
	CommandGateCycle  *int         `json:"command_gate_cycle,omitempty"`
	CommandScale      *CommandAxes `json:"command_scale,omitempty"`
	CommandDeadband   *CommandAxes `json:"command_deadband,omitempty"`
	HistoryDepth      *int         `json:"history_depth,omitempty"`

	// Action mapping
	ActionClip  *float64 `json:"action_clip,omitempty"`
	ActionScale *float64 `json:"action_scale,omitempty"`

	// Angular velocity
	SmoothingRatio           *float64 `json:"smoothing_ratio,omitempty"`
	SmoothingWindow          *int     `json:"smoothing_window,omitempty"`
	AngularVelocityEstimator *string  `json:"angular_velocity_estimator,omitempty"`
	AngularVelocitySource    *string  `json:"angular_velocity_source,omitempty"`

	// Robot geometry
	DefaultPose []float64      `json:"default_pose,omitempty"`
	JointMap    map[string]int `json:"joint_map,omitempty"`

	// Telemetry
	TelemetryRateHz *float64 `json:"telemetry_rate_hz,omitempty"`
}

// EmptyControlConfig returns a ControlConfig with every field unset, so every
// Get* method returns its default.
func EmptyControlConfig() *ControlConfig {
	return &ControlConfig{}
}

// LoadControlConfig loads a ControlConfig from a JSON file. The file must have
// a .json extension and be at most 1MB. Omitted fields keep their defaults.
func LoadControlConfig(path string) (*ControlConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyControlConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching parent directories
// so it works from any package directory. Panics on failure; intended for
// tests.
func MustLoadDefaultConfig() *ControlConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadControlConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks every set field. All failures are ConfigurationErrors.
func (c *ControlConfig) Validate() error {
	for field, v := range map[string]*string{"period": c.Period, "recv_timeout": c.RecvTimeout} {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return &fault.ConfigurationError{Field: field, Err: err}
		}
		if d <= 0 {
			return fault.Configf(field, "must be positive, got %s", d)
		}
	}

	if c.MaxStaleCycles != nil && *c.MaxStaleCycles < 0 {
		return fault.Configf("max_stale_cycles", "must be non-negative, got %d", *c.MaxStaleCycles)
	}

	if c.PowerLimit != nil && (*c.PowerLimit < 1 || *c.PowerLimit > 10) {
		return fault.Configf("power_limit", "must be between 1 and 10, got %d", *c.PowerLimit)
	}

	if c.GetSoftStartCycles() < 0 {
		return fault.Configf("soft_start_cycles", "must be non-negative, got %d", c.GetSoftStartCycles())
	}
	if c.GetFirmEndCycle() < c.GetSoftStartCycles() {
		return fault.Configf("firm_end_cycle", "must be >= soft_start_cycles (%d), got %d",
			c.GetSoftStartCycles(), c.GetFirmEndCycle())
	}

	for field, g := range map[string]*Gains{"soft_gains": c.SoftGains, "firm_gains": c.FirmGains, "run_gains": c.RunGains} {
		if g == nil {
			continue
		}
		if !finite(g.P) || !finite(g.D) || g.P < 0 || g.D < 0 {
			return fault.Configf(field, "gains must be finite and non-negative, got p=%v d=%v", g.P, g.D)
		}
	}

	for field, v := range map[string]*int{
		"velocity_gate_cycle": c.VelocityGateCycle,
		"command_gate_cycle":  c.CommandGateCycle,
	} {
		if v != nil && *v < 0 {
			return fault.Configf(field, "must be non-negative, got %d", *v)
		}
	}

	if s := c.CommandScale; s != nil && (!finite(s.Forward) || !finite(s.Lateral) || !finite(s.Yaw)) {
		return fault.Configf("command_scale", "must be finite, got %+v", *s)
	}
	if d := c.CommandDeadband; d != nil {
		if !finite(d.Forward) || !finite(d.Lateral) || !finite(d.Yaw) ||
			d.Forward < 0 || d.Lateral < 0 || d.Yaw < 0 {
			return fault.Configf("command_deadband", "must be finite and non-negative, got %+v", *d)
		}
	}

	if c.HistoryDepth != nil && *c.HistoryDepth < 0 {
		return fault.Configf("history_depth", "must be non-negative, got %d", *c.HistoryDepth)
	}

	for field, v := range map[string]*float64{"action_clip": c.ActionClip, "action_scale": c.ActionScale} {
		if v != nil && (!finite(*v) || *v <= 0) {
			return fault.Configf(field, "must be finite and positive, got %v", *v)
		}
	}

	if c.SmoothingRatio != nil && !(*c.SmoothingRatio > 0 && *c.SmoothingRatio <= 1) {
		return fault.Configf("smoothing_ratio", "must be in (0, 1], got %v", *c.SmoothingRatio)
	}
	if c.SmoothingWindow != nil && *c.SmoothingWindow < 1 {
		return fault.Configf("smoothing_window", "must be at least 1, got %d", *c.SmoothingWindow)
	}

	switch c.GetAngularVelocityEstimator() {
	case EstimatorExponential, EstimatorWindowed:
	default:
		return fault.Configf("angular_velocity_estimator", "unknown estimator %q", c.GetAngularVelocityEstimator())
	}
	switch c.GetAngularVelocitySource() {
	case SourceRaw, SourceSmoothed:
	default:
		return fault.Configf("angular_velocity_source", "unknown source %q", c.GetAngularVelocitySource())
	}

	if c.TelemetryRateHz != nil && (!finite(*c.TelemetryRateHz) || *c.TelemetryRateHz <= 0) {
		return fault.Configf("telemetry_rate_hz", "must be finite and positive, got %v", *c.TelemetryRateHz)
	}

	if _, err := c.GetDefaultPose(); err != nil {
		return err
	}
	if _, err := c.GetJointMap(); err != nil {
		return err
	}
	return nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func parseDurationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def
	}
	return d
}

// GetPeriod returns the fixed control period.
func (c *ControlConfig) GetPeriod() time.Duration {
	return parseDurationOr(c.Period, DefaultPeriod)
}

// GetRecvTimeout returns how long a snapshot read may block.
func (c *ControlConfig) GetRecvTimeout() time.Duration {
	return parseDurationOr(c.RecvTimeout, DefaultRecvTimeout)
}

// GetMaxStaleCycles returns how many consecutive reads may repeat a tick.
func (c *ControlConfig) GetMaxStaleCycles() int {
	if c.MaxStaleCycles == nil {
		return DefaultMaxStaleCycles
	}
	return *c.MaxStaleCycles
}

// GetPowerLimit returns the safety-gate power level.
func (c *ControlConfig) GetPowerLimit() int {
	if c.PowerLimit == nil {
		return DefaultPowerLimit
	}
	return *c.PowerLimit
}

// GetSoftStartCycles returns the number of soft-gain cycles.
func (c *ControlConfig) GetSoftStartCycles() int {
	if c.SoftStartCycles == nil {
		return DefaultSoftStartCycles
	}
	return *c.SoftStartCycles
}

// GetFirmEndCycle returns the last cycle of the firm startup phase.
func (c *ControlConfig) GetFirmEndCycle() int {
	if c.FirmEndCycle == nil {
		return DefaultFirmEndCycle
	}
	return *c.FirmEndCycle
}

// GetSoftGains returns the soft startup gains.
func (c *ControlConfig) GetSoftGains() Gains {
	if c.SoftGains == nil {
		return DefaultSoftGains
	}
	return *c.SoftGains
}

// GetFirmGains returns the firm startup gains.
func (c *ControlConfig) GetFirmGains() Gains {
	if c.FirmGains == nil {
		return DefaultFirmGains
	}
	return *c.FirmGains
}

// GetRunGains returns the steady-state gains.
func (c *ControlConfig) GetRunGains() Gains {
	if c.RunGains == nil {
		return DefaultRunGains
	}
	return *c.RunGains
}

// GetVelocityGateCycle returns the cycle after which angular and joint
// velocities reach the policy.
func (c *ControlConfig) GetVelocityGateCycle() int {
	if c.VelocityGateCycle == nil {
		return DefaultVelocityGateCycle
	}
	return *c.VelocityGateCycle
}

// GetCommandGateCycle returns the cycle after which remote commands reach the
// policy.
func (c *ControlConfig) GetCommandGateCycle() int {
	if c.CommandGateCycle == nil {
		return DefaultCommandGateCycle
	}
	return *c.CommandGateCycle
}

// GetCommandScale returns the forward, lateral and yaw stick scales.
func (c *ControlConfig) GetCommandScale() CommandAxes {
	if c.CommandScale == nil {
		return CommandAxes{Forward: DefaultForwardScale, Lateral: DefaultLateralScale, Yaw: DefaultYawScale}
	}
	return *c.CommandScale
}

// GetCommandDeadband returns the per-axis deadband.
func (c *ControlConfig) GetCommandDeadband() CommandAxes {
	if c.CommandDeadband == nil {
		return CommandAxes{Forward: DefaultDeadband, Lateral: DefaultDeadband, Yaw: DefaultDeadband}
	}
	return *c.CommandDeadband
}

// GetHistoryDepth returns how many past observation slices are stacked.
func (c *ControlConfig) GetHistoryDepth() int {
	if c.HistoryDepth == nil {
		return DefaultHistoryDepth
	}
	return *c.HistoryDepth
}

// GetActionClip returns the symmetric clip bound for raw actions.
func (c *ControlConfig) GetActionClip() float64 {
	if c.ActionClip == nil {
		return DefaultActionClip
	}
	return *c.ActionClip
}

// GetActionScale returns the action-to-radians scale.
func (c *ControlConfig) GetActionScale() float64 {
	if c.ActionScale == nil {
		return DefaultActionScale
	}
	return *c.ActionScale
}

// GetSmoothingRatio returns the angular-velocity blend factor.
func (c *ControlConfig) GetSmoothingRatio() float64 {
	if c.SmoothingRatio == nil {
		return DefaultSmoothing
	}
	return *c.SmoothingRatio
}

// GetSmoothingWindow returns the orientation history depth.
func (c *ControlConfig) GetSmoothingWindow() int {
	if c.SmoothingWindow == nil {
		return DefaultSmoothWindow
	}
	return *c.SmoothingWindow
}

// GetAngularVelocityEstimator returns the smoother strategy name.
func (c *ControlConfig) GetAngularVelocityEstimator() string {
	if c.AngularVelocityEstimator == nil || *c.AngularVelocityEstimator == "" {
		return EstimatorExponential
	}
	return *c.AngularVelocityEstimator
}

// GetAngularVelocitySource returns which angular velocity feeds the
// observation: the raw gyroscope or the smoother output.
func (c *ControlConfig) GetAngularVelocitySource() string {
	if c.AngularVelocitySource == nil || *c.AngularVelocitySource == "" {
		return SourceRaw
	}
	return *c.AngularVelocitySource
}

// GetTelemetryInterval returns the telemetry publish interval.
func (c *ControlConfig) GetTelemetryInterval() time.Duration {
	hz := DefaultTelemetryRate
	if c.TelemetryRateHz != nil {
		hz = *c.TelemetryRateHz
	}
	return time.Duration(float64(time.Second) / hz)
}

// GetDefaultPose returns the default stance in canonical order.
func (c *ControlConfig) GetDefaultPose() (robot.Pose, error) {
	if c.DefaultPose == nil {
		return robot.DefaultStance, nil
	}
	return robot.NewPose(c.DefaultPose)
}

// GetJointMap returns the validated joint map.
func (c *ControlConfig) GetJointMap() (robot.JointMap, error) {
	if c.JointMap == nil {
		return robot.DefaultJointMap(), nil
	}
	slots := make(map[robot.JointName]int, len(c.JointMap))
	for name, slot := range c.JointMap {
		slots[robot.JointName(name)] = slot
	}
	return robot.NewJointMap(slots)
}
