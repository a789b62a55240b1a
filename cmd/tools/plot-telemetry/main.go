// Command plot-telemetry renders the channels of a recorded telemetry run to
// PNG time-series plots.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/gaitcore/internal/robot"
	"github.com/banshee-data/gaitcore/internal/security"
	"github.com/banshee-data/gaitcore/internal/telemetry"
	"github.com/banshee-data/gaitcore/internal/version"
)

var (
	dbPath   = flag.String("db", "telemetry.db", "Telemetry database written by gaitctl -record")
	runID    = flag.String("run", "", "Run ID to plot (latest run when empty)")
	outDir   = flag.String("out", "plots", "Output directory")
	channels = flag.String("channels", strings.Join(telemetry.Channels, ","), "Comma-separated channels to plot")
	list     = flag.Bool("list", false, "List recorded runs and exit")
	showVer  = flag.Bool("version", false, "Print version and exit")
)

var axisLabels = []string{"x", "y", "z"}

// seriesLabels names the components of a channel.
func seriesLabels(channel string) []string {
	switch channel {
	case telemetry.ChannelBaseAngVel, telemetry.ChannelLinAcc:
		return axisLabels
	}
	joints := robot.CanonicalJoints()
	labels := make([]string, len(joints))
	for i, j := range joints {
		labels[i] = string(j)
	}
	return labels
}

func channelUnits(channel string) string {
	switch channel {
	case telemetry.ChannelBaseAngVel, telemetry.ChannelDofVel:
		return "rad/s"
	case telemetry.ChannelDofPos:
		return "rad"
	case telemetry.ChannelDofTau:
		return "Nm"
	case telemetry.ChannelLinAcc:
		return "m/s²"
	}
	return ""
}

// plotChannel writes one PNG with a line per channel component against
// seconds since the first frame.
func plotChannel(frames []telemetry.Frame, channel, path string) error {
	if len(frames) == 0 {
		return errors.New("no frames to plot")
	}
	if frames[0].Channel(channel) == nil {
		return fmt.Errorf("unknown channel %q", channel)
	}
	labels := seriesLabels(channel)

	p := plot.New()
	p.Title.Text = channel
	p.X.Label.Text = "time (s)"
	p.Y.Label.Text = fmt.Sprintf("%s (%s)", channel, channelUnits(channel))
	p.Add(plotter.NewGrid())

	t0 := frames[0].At
	for i, label := range labels {
		pts := make(plotter.XYs, len(frames))
		for k := range frames {
			pts[k].X = frames[k].At.Sub(t0).Seconds()
			pts[k].Y = frames[k].Channel(channel)[i]
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("failed to create %s line: %w", label, err)
		}
		line.Color = plotutil.Color(i)
		line.Dashes = plotutil.Dashes(i / len(plotutil.DefaultColors))
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(label, line)
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	return p.Save(14*vg.Inch, 6*vg.Inch, path)
}

func main() {
	flag.Parse()
	if *showVer {
		fmt.Println(version.String("plot-telemetry"))
		return
	}

	rec, err := telemetry.OpenArchive(*dbPath)
	if err != nil {
		log.Fatalf("failed to open %s: %v", *dbPath, err)
	}
	defer rec.Close()

	runs, err := rec.Runs()
	if err != nil {
		log.Fatalf("failed to list runs: %v", err)
	}
	if *list {
		for _, r := range runs {
			fmt.Printf("%s  %s  %6d frames  %s\n", r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Frames, r.Note)
		}
		return
	}

	id := *runID
	if id == "" {
		for _, r := range runs {
			if r.Frames > 0 {
				id = r.ID
				break
			}
		}
		if id == "" {
			log.Fatal("no recorded runs with frames")
		}
	}

	frames, err := rec.Frames(id)
	if err != nil {
		log.Fatalf("failed to load run %s: %v", id, err)
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("failed to create output directory: %v", err)
	}

	prefix := id
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	for _, ch := range strings.Split(*channels, ",") {
		ch = strings.TrimSpace(ch)
		if ch == "" {
			continue
		}
		path, err := security.OutputPath(*outDir, fmt.Sprintf("%s_%s.png", prefix, ch))
		if err != nil {
			log.Fatal(err)
		}
		if err := plotChannel(frames, ch, path); err != nil {
			log.Fatalf("failed to plot %s: %v", ch, err)
		}
		log.Printf("wrote %s (%d frames)", path, len(frames))
	}
}
