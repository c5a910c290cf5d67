package recall

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecencyMultiplierBreakpoints(t *testing.T) {
	now := time.Now()

	require.InDelta(t, 1.5, RecencyMultiplier(now, now), 1e-9)
	require.InDelta(t, 1.3, RecencyMultiplier(now.Add(-1*time.Hour), now), 1e-9)
	require.InDelta(t, 1.1, RecencyMultiplier(now.Add(-24*time.Hour), now), 1e-9)
	require.InDelta(t, 1.0, RecencyMultiplier(now.Add(-168*time.Hour), now), 1e-9)
	require.InDelta(t, 1.0, RecencyMultiplier(now.Add(-500*time.Hour), now), 1e-9)
}
