package sink

import (
	"context"
	"errors"
	"time"

	"github.com/JonMunkholm/snapdiff/internal/core"
)

// ErrReportNotFound is returned by a Store when no report has the given ID.
var ErrReportNotFound = errors.New("report not found")

// ReportInfo is the listing entry of a stored report.
type ReportInfo struct {
	ID          string    `json:"id"`
	BaseSource  string    `json:"base_source"`
	KeyColumn   string    `json:"key_column"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Store is a sink that keeps reports for later retrieval.
type Store interface {
	core.ReportSink
	Get(ctx context.Context, id string) (*Document, error)
	List(ctx context.Context, limit int) ([]ReportInfo, error)
}

// DefaultListLimit caps List when the caller passes a non-positive limit.
const DefaultListLimit = 50

func listLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return DefaultListLimit
	}
	return limit
}
