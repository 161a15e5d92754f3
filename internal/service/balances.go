package service

import (
	"gacha-bot/internal/config"
	"gacha-bot/internal/pkg/db"
	"gacha-bot/internal/repository"
)

// Balances groups the three spendable counters.
type Balances struct {
	Claims    *Counter
	Spins     *Counter
	Megaspins *Counter
}

// NewBalances builds the claim, spin and megaspin counters from cfg.
func NewBalances(pool db.Conn, cfg config.BalanceConfig, rec OpRecorder) *Balances {
	return &Balances{
		Claims:    NewCounter(pool, CounterConfig{Table: repository.ClaimsTable, Default: cfg.ClaimDefault}, rec),
		Spins:     NewCounter(pool, CounterConfig{Table: repository.SpinsTable, Default: cfg.SpinDefault}, rec),
		Megaspins: NewCounter(pool, CounterConfig{Table: repository.MegaspinsTable, Default: cfg.MegaspinDefault}, rec),
	}
}
