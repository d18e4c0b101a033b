package rewrite

import (
	"fmt"
	"sort"
)

// Stats aggregates the counters for one document run.
type Stats struct {
	TotalImageBytes      int64
	TotalCompressedBytes int64
	Embedded             int // references replaced, per occurrence
	Skipped              int // references left verbatim, per occurrence
	InputSize            int
	OutputSize           int
	// NonEmbedded holds the resolved identifiers of sources that could
	// not be embedded, for user-facing diagnostics.
	NonEmbedded map[string]struct{}
}

func newStats(inputSize int) *Stats {
	return &Stats{InputSize: inputSize, NonEmbedded: make(map[string]struct{})}
}

// NonEmbeddedList returns the non-embedded identifiers sorted for
// stable reporting.
func (s *Stats) NonEmbeddedList() []string {
	out := make([]string, 0, len(s.NonEmbedded))
	for id := range s.NonEmbedded {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// FormatSize renders a byte count in human-readable form.
func FormatSize(n int64) string {
	if n == 0 {
		return "0 B"
	}
	units := []string{"B", "KB", "MB", "GB", "TB"}
	f := float64(n)
	i := 0
	for f >= 1024 && i < len(units)-1 {
		f /= 1024
		i++
	}
	return fmt.Sprintf("%.1f %s", f, units[i])
}
