// Package store provides the PostgreSQL implementations of the
// repository contracts. Tables live in two schemas: idx.* for index
// state (definitions, compositions, history, logs, checkpoints) and
// data.* for market reference data (fundamentals).
package store

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/helios/backend/internal/contracts"
)

// Store bundles all repositories over a single connection pool.
type Store struct {
	Indexes       contracts.IndexRepository
	Compositions  contracts.CompositionRepository
	History       contracts.HistoryRepository
	RebalanceLogs contracts.RebalanceLogRepository
	Checkpoints   contracts.CheckpointRepository
	Fundamentals  contracts.FundamentalsRepository
}

// New creates a Store backed by the given pool
func New(pool *pgxpool.Pool) *Store {
	return &Store{
		Indexes:       NewIndexRepository(pool),
		Compositions:  NewCompositionRepository(pool),
		History:       NewHistoryRepository(pool),
		RebalanceLogs: NewRebalanceLogRepository(pool),
		Checkpoints:   NewCheckpointRepository(pool),
		Fundamentals:  NewFundamentalsRepository(pool),
	}
}
