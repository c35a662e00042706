package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"tradejournal/internal/domain"
	"tradejournal/internal/pnl"
	"tradejournal/internal/ports"
	"tradejournal/internal/utils"
)

// maxImportBytes caps the size of an uploaded broker export.
const maxImportBytes = 10 << 20

type handlers struct {
	journal Journal
	logger  ports.Logger
}

func (h *handlers) register(api *gin.RouterGroup) {
	users := api.Group("/users/:user")
	{
		users.GET("/metrics", h.getMetrics)
		users.GET("/validation", h.getValidation)
		users.GET("/performance", h.getPerformance)
		users.GET("/trades", h.listTrades)
		users.POST("/trades", h.createTrade)
		users.POST("/imports", h.importTrades)
		users.PUT("/account", h.putAccount)
		users.POST("/payout", h.postPayout)
	}
	api.POST("/trades/:id/close", h.closeTrade)
}

// metricsResponse adds the clamped display buffers to the raw metrics.
type metricsResponse struct {
	*domain.AccountMetrics
	DisplayTrailingBuffer float64 `json:"displayTrailingBuffer"`
	DisplayDailyBuffer    float64 `json:"displayDailyBuffer"`
}

func (h *handlers) getMetrics(c *gin.Context) {
	m, err := h.journal.Dashboard(c.Request.Context(), c.Param("user"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, metricsResponse{
		AccountMetrics:        m,
		DisplayTrailingBuffer: m.DisplayTrailingBuffer(),
		DisplayDailyBuffer:    m.DisplayDailyBuffer(),
	})
}

func (h *handlers) getValidation(c *gin.Context) {
	c.JSON(http.StatusOK, h.journal.Diagnostics(c.Request.Context(), c.Param("user")))
}

func (h *handlers) getPerformance(c *gin.Context) {
	p, err := h.journal.Performance(c.Request.Context(), c.Param("user"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// listTrades returns every trade, or those entered in [from, to) when both RFC3339
// query parameters are given.
func (h *handlers) listTrades(c *gin.Context) {
	var (
		trades []*domain.Trade
		err    error
	)
	fromStr, toStr := c.Query("from"), c.Query("to")
	switch {
	case fromStr == "" && toStr == "":
		trades, err = h.journal.Trades(c.Request.Context(), c.Param("user"))
	case fromStr == "" || toStr == "":
		c.JSON(http.StatusBadRequest, gin.H{"error": "from and to must be given together"})
		return
	default:
		from, fromErr := time.Parse(time.RFC3339, fromStr)
		to, toErr := time.Parse(time.RFC3339, toStr)
		if err := errors.Join(fromErr, toErr); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		trades, err = h.journal.TradesBetween(c.Request.Context(), c.Param("user"), from, to)
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades, "count": len(trades)})
}

// tradeRequest is the body of POST /users/:user/trades. At most one of NetPnL and GrossPnL
// may be set; without either, P&L is computed from prices.
type tradeRequest struct {
	Symbol             string             `json:"symbol" binding:"required"`
	Side               domain.Side        `json:"side" binding:"required"`
	Quantity           float64            `json:"quantity" binding:"required"`
	EntryPrice         float64            `json:"entryPrice" binding:"required"`
	ExitPrice          *float64           `json:"exitPrice"`
	EntryTime          time.Time          `json:"entryTime" binding:"required"`
	ExitTime           *time.Time         `json:"exitTime"`
	Market             domain.Market      `json:"market"`
	Status             domain.TradeStatus `json:"status"`
	DataSource         domain.DataSource  `json:"dataSource"`
	Swap               float64            `json:"swap"`
	ContractMultiplier float64            `json:"contractMultiplier"`
	NetPnL             *float64           `json:"netPnl"`
	GrossPnL           *float64           `json:"grossPnl"`
}

func (r tradeRequest) known() (pnl.KnownFigure, error) {
	switch {
	case r.NetPnL != nil && r.GrossPnL != nil:
		return pnl.KnownFigure{}, errors.New("provide netPnl or grossPnl, not both")
	case r.NetPnL != nil:
		return pnl.KnownNet(*r.NetPnL), nil
	case r.GrossPnL != nil:
		return pnl.KnownGross(*r.GrossPnL), nil
	}
	return pnl.Forward(), nil
}

func (h *handlers) createTrade(c *gin.Context) {
	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	known, err := req.known()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	trade := &domain.Trade{
		Symbol:             req.Symbol,
		Side:               domain.Side(strings.ToUpper(string(req.Side))),
		Quantity:           req.Quantity,
		EntryPrice:         req.EntryPrice,
		ExitPrice:          req.ExitPrice,
		EntryTime:          req.EntryTime,
		ExitTime:           req.ExitTime,
		Market:             domain.Market(strings.ToUpper(string(req.Market))),
		Status:             domain.TradeStatus(strings.ToUpper(string(req.Status))),
		DataSource:         req.DataSource,
		Swap:               req.Swap,
		ContractMultiplier: req.ContractMultiplier,
	}
	recorded, err := h.journal.RecordTrade(c.Request.Context(), c.Param("user"), trade, known)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, recorded)
}

type closeRequest struct {
	ExitPrice float64   `json:"exitPrice" binding:"required"`
	ExitTime  time.Time `json:"exitTime"`
}

func (h *handlers) closeTrade(c *gin.Context) {
	var req closeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	trade, err := h.journal.CloseTrade(c.Request.Context(), c.Param("id"), req.ExitPrice, req.ExitTime)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, trade)
}

// importTrades accepts a CSV body; ?source= tags the rows with their broker export format.
// Timestamps without an offset are read in the account timezone.
func (h *handlers) importTrades(c *gin.Context) {
	loc, err := h.journal.Location(c.Request.Context(), c.Param("user"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	body := http.MaxBytesReader(c.Writer, c.Request.Body, maxImportBytes)
	rows, parseFailures, err := utils.ReadImportRows(body, loc)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	source := domain.DataSource(strings.ToLower(c.DefaultQuery("source", string(domain.SourceGenericCSV))))
	result, err := h.journal.ImportTrades(c.Request.Context(), c.Param("user"), source, rows)
	if err != nil {
		h.writeError(c, err)
		return
	}
	result.Failed = append(parseFailures, result.Failed...)
	c.JSON(http.StatusOK, result)
}

func (h *handlers) putAccount(c *gin.Context) {
	var cfg domain.AccountConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cfg.UserID = c.Param("user")
	cfg.AccountType = domain.AccountType(strings.ToUpper(string(cfg.AccountType)))
	if err := h.journal.ConfigureAccount(c.Request.Context(), &cfg); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (h *handlers) postPayout(c *gin.Context) {
	cfg, err := h.journal.RecordFirstPayout(c.Request.Context(), c.Param("user"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// writeError maps service errors onto HTTP statuses.
func (h *handlers) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ports.ErrNoAccountConfigured):
		c.JSON(http.StatusConflict, gin.H{"error": "no_account_configured"})
	case errors.Is(err, ports.ErrInvalidTradeInput),
		errors.Is(err, ports.ErrInvalidRequest),
		errors.Is(err, ports.ErrInvalidAccountConfig):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ports.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.logger.Error(c.Request.Context(), err, "Request failed", map[string]interface{}{"path": c.Request.URL.Path})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
