// Package version carries build metadata injected with -ldflags, e.g.
//
//	go build -ldflags "-X github.com/banshee-data/gaitcore/internal/version.Version=v0.3.0"
package version

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Version is the release tag.
	Version = "dev"
	// GitSHA is the commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

// String formats the build metadata for logs and -version output.
func String(program string) string {
	return fmt.Sprintf("%s %s (%s, built %s)", program, Version, GitSHA, BuildTime)
}

// Collector exports the build metadata as a constant gaitcore_build_info
// gauge with value 1.
func Collector() prometheus.Collector {
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gaitcore",
		Name:      "build_info",
		Help:      "Build metadata of the running binary",
		ConstLabels: prometheus.Labels{
			"version":    Version,
			"git_sha":    GitSHA,
			"build_time": BuildTime,
		},
	})
	g.Set(1)
	return g
}
