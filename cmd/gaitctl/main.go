// Command gaitctl runs the walking-policy control loop against a robot
// bridge, a recorded capture, or a simulated standing robot.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/gaitcore/internal/config"
	"github.com/banshee-data/gaitcore/internal/control"
	"github.com/banshee-data/gaitcore/internal/fault"
	"github.com/banshee-data/gaitcore/internal/monitoring"
	"github.com/banshee-data/gaitcore/internal/policy"
	"github.com/banshee-data/gaitcore/internal/robot"
	"github.com/banshee-data/gaitcore/internal/telemetry"
	"github.com/banshee-data/gaitcore/internal/transport"
	"github.com/banshee-data/gaitcore/internal/transport/fake"
	"github.com/banshee-data/gaitcore/internal/version"
)

// options are the command-line settings of one daemon run.
type options struct {
	ConfigPath  string
	ModelPath   string
	Transport   string
	Listen      string
	Robot       string
	ReplayPath  string
	ReplayPort  int
	Realtime    bool
	CapturePath string
	RecordPath  string
	RecordNote  string
	DebugListen string
	DryRun      bool
	Quiet       bool
	Version     bool
}

const (
	transportUDP    = "udp"
	transportReplay = "replay"

	// dryRunKeep is how many commands the simulated robot retains.
	dryRunKeep = 64
)

func parseFlags(fs *flag.FlagSet, args []string) (options, error) {
	var o options
	fs.StringVar(&o.ConfigPath, "config", "", "Control config JSON (defaults apply when empty)")
	fs.StringVar(&o.ModelPath, "model", "", "Policy weights JSON")
	fs.StringVar(&o.Transport, "transport", transportUDP, "Robot link: udp or replay")
	fs.StringVar(&o.Listen, "listen", ":8007", "UDP address state frames arrive on")
	fs.StringVar(&o.Robot, "robot", "", "UDP address for command frames (learned from state frames when empty)")
	fs.StringVar(&o.ReplayPath, "replay", "", "pcap/pcapng capture to replay (transport=replay)")
	fs.IntVar(&o.ReplayPort, "replay-port", 8007, "UDP destination port of state frames in the capture")
	fs.BoolVar(&o.Realtime, "realtime", true, "Pace replayed frames at their captured rate")
	fs.StringVar(&o.CapturePath, "capture", "", "Write received state frames to this pcap file")
	fs.StringVar(&o.RecordPath, "record", "", "Record telemetry to this SQLite database")
	fs.StringVar(&o.RecordNote, "note", "", "Note stored with the recorded run")
	fs.StringVar(&o.DebugListen, "debug-listen", "localhost:8080", "Debug HTTP listen address (empty disables)")
	fs.BoolVar(&o.DryRun, "dry-run", false, "Drive a simulated standing robot with a zero policy")
	fs.BoolVar(&o.Quiet, "quiet", false, "Silence loop diagnostics")
	fs.BoolVar(&o.Version, "version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.Version {
		return o, nil
	}

	switch {
	case o.DryRun:
	case o.Transport != transportUDP && o.Transport != transportReplay:
		return o, fmt.Errorf("unknown transport %q", o.Transport)
	case o.Transport == transportReplay && o.ReplayPath == "":
		return o, errors.New("-replay is required with -transport=replay")
	case o.ModelPath == "":
		return o, errors.New("-model is required unless -dry-run is set")
	}
	return o, nil
}

func loadConfig(path string) (*config.ControlConfig, error) {
	if path == "" {
		return config.EmptyControlConfig(), nil
	}
	return config.LoadControlConfig(path)
}

// standingSnapshot is a robot resting at the default pose.
func standingSnapshot(cfg *config.ControlConfig) (robot.Snapshot, error) {
	var s robot.Snapshot
	pose, err := cfg.GetDefaultPose()
	if err != nil {
		return s, err
	}
	joints, err := cfg.GetJointMap()
	if err != nil {
		return s, err
	}
	for i, q := range pose {
		s.Motors[joints.Slot(i)].Q = q
	}
	s.LinearAccel = robot.Vec3{0, 0, 9.81}
	return s, nil
}

func openTransport(o options, cfg *config.ControlConfig, metrics *monitoring.Metrics) (transport.Transport, func() error, error) {
	noop := func() error { return nil }
	switch {
	case o.DryRun:
		snap, err := standingSnapshot(cfg)
		if err != nil {
			return nil, noop, err
		}
		sim := fake.New(fake.Ticking(snap))
		sim.Keep = dryRunKeep
		return sim, noop, nil

	case o.Transport == transportReplay:
		r, err := transport.OpenReplay(transport.ReplayConfig{
			Path:     o.ReplayPath,
			Port:     o.ReplayPort,
			Realtime: o.Realtime,
			Stats:    metrics,
		})
		if err != nil {
			return nil, noop, err
		}
		return r, noop, nil
	}

	ucfg := transport.UDPConfig{
		ListenAddress: o.Listen,
		RobotAddress:  o.Robot,
		Stats:         metrics,
	}
	closeCapture := noop
	if o.CapturePath != "" {
		f, err := os.Create(o.CapturePath)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create capture file: %w", err)
		}
		src := &net.UDPAddr{IP: net.IPv4(192, 168, 123, 161), Port: o.ReplayPort}
		if o.Robot != "" {
			if a, err := net.ResolveUDPAddr("udp4", o.Robot); err == nil && a.IP != nil {
				src = a
			}
		}
		dst := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: o.ReplayPort}
		cw, err := transport.NewCaptureWriter(f, src, dst)
		if err != nil {
			f.Close()
			return nil, noop, err
		}
		ucfg.Capture = cw
		closeCapture = f.Close
		log.Printf("capturing state frames to %s", o.CapturePath)
	}
	u, err := transport.ListenUDP(ucfg)
	if err != nil {
		closeCapture()
		return nil, noop, err
	}
	log.Printf("listening for bridge state frames on %s", u.LocalAddr())
	return u, closeCapture, nil
}

func loadPolicy(o options) (policy.Policy, error) {
	if o.DryRun && o.ModelPath == "" {
		log.Printf("dry run: using zero policy")
		return policy.Zero(robot.NumJoints), nil
	}
	m, err := policy.LoadMLP(o.ModelPath)
	if err != nil {
		return nil, err
	}
	log.Printf("loaded policy %s: layers=%v activation=%s", o.ModelPath, m.Sizes(), m.Activation())
	return m, nil
}

// newDebugServer mounts the metrics and debug routes and binds addr. The
// server is not started.
func newDebugServer(addr string, reg *prometheus.Registry, routes *telemetry.AdminRoutes, recorder *telemetry.Recorder) (*http.Server, net.Listener, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	routes.AttachAdminRoutes(mux)
	if recorder != nil {
		if err := recorder.AttachAdminRoutes(mux); err != nil {
			return nil, nil, err
		}
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}, ln, nil
}

// run wires every component and blocks until ctx is done or the loop fails.
func run(ctx context.Context, o options) error {
	if o.Quiet {
		monitoring.SetLogger(nil)
	}
	cfg, err := loadConfig(o.ConfigPath)
	if err != nil {
		return err
	}
	joints, err := cfg.GetJointMap()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		version.Collector(),
	)
	metrics := monitoring.NewMetrics(reg)

	pol, err := loadPolicy(o)
	if err != nil {
		return err
	}
	link, closeCapture, err := openTransport(o, cfg, metrics)
	if err != nil {
		return err
	}
	defer closeCapture()
	defer link.Close()

	cache := telemetry.NewStateCache()
	hub := telemetry.NewHub(telemetry.DefaultSubscriberBuffer, metrics)
	defer hub.Close()
	cycles := monitoring.NewCycleLog(500)

	loop, err := control.NewFromConfig(cfg, control.Deps{
		Transport: link,
		Policy:    pol,
		State:     cache,
		Metrics:   metrics,
		Cycles:    cycles,
	})
	if err != nil {
		return err
	}

	var recorder *telemetry.Recorder
	if o.RecordPath != "" {
		recorder, err = telemetry.OpenRecorder(o.RecordPath, o.RecordNote)
		if err != nil {
			return err
		}
		defer recorder.Close()
	}

	publisher := telemetry.NewPublisher(cache, hub, telemetry.PublisherConfig{
		Interval: cfg.GetTelemetryInterval(),
		Joints:   joints,
	})

	// Everything that can fail is set up before the loop starts commanding
	// the robot.
	var (
		server *http.Server
		ln     net.Listener
	)
	if o.DebugListen != "" {
		routes := &telemetry.AdminRoutes{
			Hub:    hub,
			Cache:  cache,
			Joints: joints,
			Cycles: cycles,
			Period: cfg.GetPeriod(),
		}
		server, ln, err = newDebugServer(o.DebugListen, reg, routes, recorder)
		if err != nil {
			return err
		}
		log.Printf("debug server listening on http://%s/debug/", ln.Addr())
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := loop.Run(gctx)
		if o.Transport == transportReplay && errors.Is(err, transport.ErrClosed) {
			log.Printf("replay finished after %d cycles", loop.State().Cycle)
			err = nil
		}
		if err == nil {
			// a finished loop stops the rest of the daemon
			return context.Canceled
		}
		return err
	})

	g.Go(func() error { return publisher.Run(gctx) })

	if recorder != nil {
		g.Go(func() error { return recorder.Consume(gctx, hub, 100, time.Second) })
	}

	if server != nil {
		g.Go(func() error {
			if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("debug server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Printf("HTTP server shutdown error: %v", err)
				server.Close()
			}
			return nil
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if recorder != nil {
		if runs, rerr := recorder.Runs(); rerr == nil && len(runs) > 0 {
			log.Printf("recorded run %s: %d frames", recorder.RunID(), runs[0].Frames)
		}
	}
	return err
}

func main() {
	o, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}
	if o.Version {
		fmt.Println(version.String("gaitctl"))
		return
	}
	log.Print(version.String("gaitctl"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, o); err != nil {
		if stage := fault.StageOf(err); stage != "" {
			log.Fatalf("gaitctl: %s stage failed: %v", stage, err)
		}
		log.Fatalf("gaitctl: %v", err)
	}
	log.Printf("Graceful shutdown complete")
}
