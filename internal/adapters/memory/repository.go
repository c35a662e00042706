package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"tradejournal/internal/domain"
	"tradejournal/internal/id"
	"tradejournal/internal/ports"
)

// Repository is an in-memory implementation of ports.TradeRepository and
// ports.AccountRepository. Records are copied on the way in and out.
type Repository struct {
	mu       sync.RWMutex
	trades   map[string]*domain.Trade
	accounts map[string]*domain.AccountConfig
}

// NewRepository creates an empty in-memory repository.
func NewRepository() *Repository {
	return &Repository{
		trades:   make(map[string]*domain.Trade),
		accounts: make(map[string]*domain.AccountConfig),
	}
}

// CreateTrade stores a copy of trade, assigning an ID when it has none.
func (r *Repository) CreateTrade(_ context.Context, trade *domain.Trade) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if trade.ID == "" {
		trade.ID = id.NewTradeID()
	}
	if _, exists := r.trades[trade.ID]; exists {
		return "", fmt.Errorf("trade %s: %w", trade.ID, ports.ErrDuplicateEntry)
	}
	r.trades[trade.ID] = copyTrade(trade)
	return trade.ID, nil
}

// UpdateTrade replaces a stored trade.
func (r *Repository) UpdateTrade(_ context.Context, trade *domain.Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.trades[trade.ID]; !exists {
		return fmt.Errorf("trade %s not found for update: %w", trade.ID, ports.ErrNotFound)
	}
	r.trades[trade.ID] = copyTrade(trade)
	return nil
}

// FindTradeByID returns nil, nil if the trade does not exist.
func (r *Repository) FindTradeByID(_ context.Context, tradeID string) (*domain.Trade, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.trades[tradeID]
	if !ok {
		return nil, nil
	}
	return copyTrade(t), nil
}

// FindTradesByUser returns a user's trades ordered by entry time.
func (r *Repository) FindTradesByUser(_ context.Context, userID string) ([]*domain.Trade, error) {
	return r.filter(func(t *domain.Trade) bool { return t.UserID == userID }), nil
}

// FindTradesBetween returns a user's trades entered in [from, to).
func (r *Repository) FindTradesBetween(_ context.Context, userID string, from, to time.Time) ([]*domain.Trade, error) {
	return r.filter(func(t *domain.Trade) bool {
		return t.UserID == userID && !t.EntryTime.Before(from) && t.EntryTime.Before(to)
	}), nil
}

func (r *Repository) filter(keep func(*domain.Trade) bool) []*domain.Trade {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Trade, 0)
	for _, t := range r.trades {
		if keep(t) {
			out = append(out, copyTrade(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EntryTime.Equal(out[j].EntryTime) {
			return out[i].EntryTime.Before(out[j].EntryTime)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// SaveAccount inserts or replaces an account configuration.
func (r *Repository) SaveAccount(_ context.Context, cfg *domain.AccountConfig) error {
	if cfg.UserID == "" {
		return fmt.Errorf("account user id is required: %w", ports.ErrInvalidRequest)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[cfg.UserID] = copyAccount(cfg)
	return nil
}

// FindAccount returns nil, nil when the user has no configuration.
func (r *Repository) FindAccount(_ context.Context, userID string) (*domain.AccountConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.accounts[userID]
	if !ok {
		return nil, nil
	}
	return copyAccount(cfg), nil
}

func copyTrade(t *domain.Trade) *domain.Trade {
	c := *t
	if t.ExitPrice != nil {
		c.ExitPrice = domain.Float(*t.ExitPrice)
	}
	if t.ExitTime != nil {
		c.ExitTime = domain.Time(*t.ExitTime)
	}
	if t.GrossPnL != nil {
		c.GrossPnL = domain.Float(*t.GrossPnL)
	}
	if t.NetPnL != nil {
		c.NetPnL = domain.Float(*t.NetPnL)
	}
	return &c
}

func copyAccount(cfg *domain.AccountConfig) *domain.AccountConfig {
	c := *cfg
	if cfg.DailyLossLimitAmount != nil {
		c.DailyLossLimitAmount = domain.Float(*cfg.DailyLossLimitAmount)
	}
	return &c
}
