package bunx

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"github.com/terraconstructs/estate/internal/telemetry"
)

// MetricsHook records every query in DatabaseMetrics. sql.ErrNoRows is not
// counted as a failure.
type MetricsHook struct {
	metrics *telemetry.DatabaseMetrics
}

var _ bun.QueryHook = (*MetricsHook)(nil)

func NewMetricsHook(m *telemetry.DatabaseMetrics) *MetricsHook {
	return &MetricsHook{metrics: m}
}

func (h *MetricsHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *MetricsHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	err := event.Err
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
	}
	h.metrics.RecordQuery(ctx, event.Operation(), float64(time.Since(event.StartTime).Microseconds())/1000, err)
}
