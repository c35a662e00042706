package ports

import (
	"context"
	"time"

	"tradejournal/internal/domain"
)

// TradeRepository defines the interface for storing and retrieving journal trades.
type TradeRepository interface {
	// CreateTrade saves a new trade and returns its assigned ID.
	CreateTrade(ctx context.Context, trade *domain.Trade) (string, error)
	// UpdateTrade overwrites an existing trade.
	UpdateTrade(ctx context.Context, trade *domain.Trade) error
	// FindTradeByID retrieves a trade by ID.
	// Returns nil, nil if not found.
	FindTradeByID(ctx context.Context, id string) (*domain.Trade, error)
	// FindTradesByUser retrieves all trades of a user ordered by entry time ascending.
	FindTradesByUser(ctx context.Context, userID string) ([]*domain.Trade, error)
	// FindTradesBetween retrieves a user's trades entered in [from, to).
	FindTradesBetween(ctx context.Context, userID string, from, to time.Time) ([]*domain.Trade, error)
}

// AccountRepository defines the interface for account configuration storage.
type AccountRepository interface {
	// SaveAccount inserts or replaces the configuration for cfg.UserID.
	SaveAccount(ctx context.Context, cfg *domain.AccountConfig) error
	// FindAccount retrieves a user's configuration.
	// Returns nil, nil if the user has not configured an account.
	FindAccount(ctx context.Context, userID string) (*domain.AccountConfig, error)
}
