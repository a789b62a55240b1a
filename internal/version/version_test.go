package version

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestString(t *testing.T) {
	s := String("gaitctl")
	assert.True(t, strings.HasPrefix(s, "gaitctl "+Version))
	assert.Contains(t, s, GitSHA)
}

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := Collector()
	require.NoError(t, reg.Register(c))
	assert.Equal(t, 1, testutil.CollectAndCount(c, "gaitcore_build_info"))
}
