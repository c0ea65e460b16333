package sink

import (
	"context"
	"strings"

	"github.com/JonMunkholm/snapdiff/internal/core"
)

// Multi writes a report to several sinks in order and stops at the first
// failure.
type Multi []core.ReportSink

// Write returns the locations of every sink, comma-separated.
func (m Multi) Write(ctx context.Context, report core.Report) (string, error) {
	locs := make([]string, 0, len(m))
	for _, s := range m {
		loc, err := s.Write(ctx, report)
		if err != nil {
			return "", err
		}
		if loc != "" {
			locs = append(locs, loc)
		}
	}
	return strings.Join(locs, ","), nil
}
