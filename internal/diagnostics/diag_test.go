package diagnostics

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/arcaluminis-matrix/internal/scheduler"
)

func TestHealthyStatusHasNoDiagnostics(t *testing.T) {
	assert.Empty(t, FromStatus(scheduler.Status{State: scheduler.Idle, RefreshRate: 120}))
}

func TestFlagsBecomeDiagnostics(t *testing.T) {
	ds := FromStatus(scheduler.Status{
		State:       scheduler.Fault,
		Underrun:    true,
		RateLowered: true,
		Underruns:   3,
		RefreshRate: 90,
	})
	require.Len(t, ds, 3)
	assert.Equal(t, "engine_fault", ds[0].Code)
	assert.Equal(t, Err, ds[0].Severity)
	assert.Equal(t, uint64(3), ds[1].Evidence["underruns"])
	assert.Equal(t, 90, ds[2].Evidence["refresh_hz"])
}

func TestReportLogsAtSeverity(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)
	Report(log, FromStatus(scheduler.Status{RateLowered: true, RefreshRate: 60}))
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), `"code":"rate_lowered"`)
	assert.Contains(t, buf.String(), `"refresh_hz":60`)
}
