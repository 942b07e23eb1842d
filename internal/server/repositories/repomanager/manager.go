package repomanager

import (
	"context"
	"database/sql"

	"artfolio/internal/dbx"
	"artfolio/internal/server/repositories/counters"
	"artfolio/internal/server/repositories/events"
	"artfolio/internal/server/repositories/roots"
)

// RepositoryManager vends repositories bound to a DBTX, so a service can use
// the same repository code on a plain connection or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Events(db dbx.DBTX) events.Repository
	Counters(db dbx.DBTX) counters.Repository
	Roots(db dbx.DBTX) roots.Repository
}
