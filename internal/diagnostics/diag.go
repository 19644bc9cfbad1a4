package diagnostics

import (
	"github.com/rs/zerolog"

	"github.com/coreman2200/arcaluminis-matrix/internal/scheduler"
)

type Severity string

const (
	Info Severity = "info"
	Warn Severity = "warning"
	Err  Severity = "error"
)

type Diagnostic struct {
	Severity       Severity       `json:"severity"`
	Code           string         `json:"code"`
	Summary        string         `json:"summary"`
	Detail         string         `json:"detail,omitempty"`
	LikelyCauses   []string       `json:"likely_causes,omitempty"`
	SuggestedFixes []string       `json:"suggested_fixes,omitempty"`
	Evidence       map[string]any `json:"evidence,omitempty"`
}

// FromStatus explains the engine's sticky flags and state. A healthy
// engine yields nothing.
func FromStatus(st scheduler.Status) []Diagnostic {
	var out []Diagnostic
	if st.State == scheduler.Fault {
		out = append(out, Diagnostic{
			Severity:       Err,
			Code:           "engine_fault",
			Summary:        "refresh engine failed to configure",
			SuggestedFixes: []string{"check panel type, refresh_hz and max_buffer_bytes"},
		})
	}
	if st.Underrun {
		out = append(out, Diagnostic{
			Severity:     Warn,
			Code:         "ring_underrun",
			Summary:      "transport found the row buffer empty",
			Detail:       "the display was blanked until new rows arrived",
			LikelyCauses: []string{"CPU contention", "too few ring slots", "layers too slow to fill a row"},
			SuggestedFixes: []string{
				"raise ring_slots",
				"lower refresh_hz or depth",
			},
			Evidence: map[string]any{
				"underruns": st.Underruns,
				"queued":    st.Queued,
				"capacity":  st.Capacity,
			},
		})
	}
	if st.RateLowered {
		out = append(out, Diagnostic{
			Severity:       Warn,
			Code:           "rate_lowered",
			Summary:        "refresh rate was lowered to keep up",
			SuggestedFixes: []string{"reduce depth or chained panels", "set min_refresh_hz to the lowest acceptable rate"},
			Evidence: map[string]any{
				"refresh_hz": st.RefreshRate,
				"rate_drops": st.RateDrops,
			},
		})
	}
	return out
}

// Report logs each diagnostic at a level matching its severity.
func Report(log zerolog.Logger, ds []Diagnostic) {
	for _, d := range ds {
		var ev *zerolog.Event
		switch d.Severity {
		case Err:
			ev = log.Error()
		case Warn:
			ev = log.Warn()
		default:
			ev = log.Info()
		}
		ev.Str("code", d.Code).Fields(d.Evidence).Msg(d.Summary)
	}
}
