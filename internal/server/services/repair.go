package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"artfolio/internal/common"
	"artfolio/internal/logging"
	"artfolio/internal/server/invalidation"
	"artfolio/internal/server/models"
	"artfolio/internal/server/repositories/counters"
	"artfolio/internal/server/repositories/repomanager"
)

// repairKinds lists the root kinds scanned by the periodic repair pass.
var repairKinds = []models.RootKind{
	models.RootPhoto,
	models.RootCollection,
	models.RootComment,
	models.RootCategory,
	models.RootUser,
}

// RepairService recounts event-derived counters from their event relations
// and overwrites drifted values. Steady-state traffic keeps counters exact;
// repair exists for the out-of-band cases (bulk deletes, manual fixes,
// restored backups). Views counters have no event relation and are skipped.
type RepairService struct {
	db          *sql.DB
	repos       repomanager.RepositoryManager
	coordinator *invalidation.Coordinator
	logger      logging.Logger
	interval    time.Duration
	pageSize    int
}

func NewRepairService(db *sql.DB, repos repomanager.RepositoryManager, coordinator *invalidation.Coordinator, logger logging.Logger, interval time.Duration, pageSize int) *RepairService {
	if pageSize <= 0 {
		pageSize = 500
	}
	return &RepairService{
		db:          db,
		repos:       repos,
		coordinator: coordinator,
		logger:      logger.With("component", "repair"),
		interval:    interval,
		pageSize:    pageSize,
	}
}

// RepairRoot recounts one root's event-derived counters and overwrites any
// that drifted. Returns the number of counters fixed.
func (s *RepairService) RepairRoot(ctx context.Context, kind models.RootKind, id string) (int, error) {
	ev := s.repos.Events(s.db)
	ctr := s.repos.Counters(s.db)

	snap, err := ctr.Snapshot(ctx, kind, id)
	if err != nil {
		return 0, fmt.Errorf("repair %s %s: %w", kind, id, err)
	}

	fixed := 0
	for _, rc := range counters.Reconciled(kind) {
		var truth int64
		if rc.ByActor {
			truth, err = ev.CountLiveByActor(ctx, rc.EventKind, id)
		} else {
			truth, err = ev.CountLive(ctx, rc.EventKind, id)
		}
		if err != nil {
			return fixed, fmt.Errorf("recount %s.%s: %w", kind, rc.Counter, err)
		}

		stored := snap.Counters[rc.Counter]
		if stored == truth {
			continue
		}

		s.logger.Info(ctx, "counter drift detected",
			"root", string(kind), "id", id, "counter", rc.Counter,
			"stored", stored, "actual", truth)

		if err := ctr.Set(ctx, kind, id, rc.Counter, truth); err != nil {
			return fixed, fmt.Errorf("overwrite %s.%s: %w", kind, rc.Counter, err)
		}
		fixed++
	}

	if fixed > 0 {
		s.coordinator.Invalidate(ctx, invalidation.Target{Kind: kind, ID: id}, invalidation.ReasonRepair)
	}
	return fixed, nil
}

// RepairKind pages over all roots of a kind and repairs each. Roots deleted
// mid-scan are skipped.
func (s *RepairService) RepairKind(ctx context.Context, kind models.RootKind) (scanned, fixed int, err error) {
	roots := s.repos.Roots(s.db)

	for offset := 0; ; offset += s.pageSize {
		ids, err := roots.ListIDs(ctx, kind, s.pageSize, offset)
		if err != nil {
			return scanned, fixed, fmt.Errorf("list %s ids: %w", kind, err)
		}
		if len(ids) == 0 {
			return scanned, fixed, nil
		}

		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return scanned, fixed, err
			}
			n, err := s.RepairRoot(ctx, kind, id)
			if errors.Is(err, common.ErrNotFound) {
				continue
			}
			if err != nil {
				return scanned, fixed, err
			}
			scanned++
			fixed += n
		}
	}
}

// RepairAll runs a full drift-repair pass over every root kind.
func (s *RepairService) RepairAll(ctx context.Context) error {
	start := time.Now()
	totalScanned, totalFixed := 0, 0

	for _, kind := range repairKinds {
		scanned, fixed, err := s.RepairKind(ctx, kind)
		totalScanned += scanned
		totalFixed += fixed
		if err != nil {
			return fmt.Errorf("repair pass: %w", err)
		}
	}

	s.logger.Info(ctx, "drift repair pass finished",
		"scanned", totalScanned, "fixed", totalFixed, "took", time.Since(start).String())
	return nil
}

// Run executes repair passes on the configured interval until the context is
// cancelled. A failed pass is logged and the next tick tries again.
func (s *RepairService) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info(ctx, "drift repair disabled")
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.RepairAll(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error(ctx, "drift repair pass failed", "error", err)
			}
		}
	}
}
