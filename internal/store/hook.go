package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/uptrace/bun"
)

// queryLogger logs every query at debug level and failed queries at warn.
type queryLogger struct {
	logger zerolog.Logger
}

var _ bun.QueryHook = (*queryLogger)(nil)

func (h *queryLogger) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *queryLogger) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	dur := time.Since(event.StartTime)

	if event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows) {
		h.logger.Warn().
			Err(event.Err).
			Str("query", event.Query).
			Dur("duration", dur).
			Msg("Query failed")
		return
	}

	h.logger.Debug().
		Str("operation", event.Operation()).
		Str("query", event.Query).
		Dur("duration", dur).
		Msg("Query executed")
}
