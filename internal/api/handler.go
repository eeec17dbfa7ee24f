package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/riel-labs/khqr-gateway/internal/khqr"
	"github.com/riel-labs/khqr-gateway/internal/ledger"
	"github.com/riel-labs/khqr-gateway/internal/monitor"
)

// DeeplinkGenerator is satisfied by bakong.Client.
// Decoupled here so handler tests can use a stub.
type DeeplinkGenerator interface {
	GenerateDeeplink(ctx context.Context, qr string) (string, error)
}

// Handler wires up all gateway routes onto a Gin engine.
type Handler struct {
	svc    *monitor.Service
	links  DeeplinkGenerator
	ledger *ledger.Ledger
	log    *zap.Logger
}

func NewHandler(svc *monitor.Service, links DeeplinkGenerator, l *ledger.Ledger, log *zap.Logger) *Handler {
	return &Handler{svc: svc, links: links, ledger: l, log: log}
}

func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/qr", h.handleGenerate)
	rg.GET("/qr/:md5", h.handleGet)
	rg.GET("/qr/:md5/image", h.handleImage)
	rg.POST("/qr/:md5/check", h.handleForceCheck)
	rg.DELETE("/qr/:md5", h.handleUnwatch)
	rg.GET("/session/:id/qr", h.handleSession)
	rg.GET("/stats", h.handleStats)
	rg.GET("/ledger", h.handleLedger)
}

// ── Generate ────────────────────────────────────────────────────────────────

type generateRequest struct {
	MerchantID    string  `json:"merchant_id" binding:"required"`
	MerchantName  string  `json:"merchant_name" binding:"required"`
	MerchantCity  string  `json:"merchant_city"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	StoreLabel    string  `json:"store_label"`
	MobileNumber  string  `json:"mobile_number"`
	BillNumber    string  `json:"bill_number"`
	TerminalLabel string  `json:"terminal_label"`
	Purpose       string  `json:"purpose"`
	Static        bool    `json:"static"`
	Deeplink      bool    `json:"deeplink"`
}

type generateResponse struct {
	QR        string `json:"qr"`
	MD5       string `json:"md5"`
	SessionID string `json:"session_id"`
	Deeplink  string `json:"deeplink,omitempty"`
}

func (h *Handler) handleGenerate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.MerchantCity == "" {
		req.MerchantCity = "Phnom Penh"
	}
	if req.Currency == "" {
		req.Currency = "USD"
	}

	qr, err := khqr.Encode(khqr.Params{
		MerchantID:    req.MerchantID,
		MerchantName:  req.MerchantName,
		MerchantCity:  req.MerchantCity,
		Amount:        req.Amount,
		Currency:      req.Currency,
		StoreLabel:    req.StoreLabel,
		MobileNumber:  req.MobileNumber,
		BillNumber:    req.BillNumber,
		TerminalLabel: req.TerminalLabel,
		Purpose:       req.Purpose,
		Static:        req.Static,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sessionID := c.GetHeader("X-Session-ID")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	md5 := khqr.Fingerprint(qr)
	entry, err := h.svc.Watch(monitor.Entry{
		Fingerprint:  md5,
		QR:           qr,
		MerchantName: req.MerchantName,
		Amount:       req.Amount,
		Currency:     req.Currency,
		SessionID:    sessionID,
	})
	if err != nil {
		if errors.Is(err, monitor.ErrDuplicateFingerprint) {
			c.JSON(http.StatusConflict, gin.H{"error": "payload already being watched", "md5": md5})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	resp := generateResponse{QR: qr, MD5: entry.Fingerprint, SessionID: sessionID}
	if req.Deeplink {
		link, err := h.links.GenerateDeeplink(c.Request.Context(), qr)
		if err != nil {
			// The QR itself is valid; a deeplink failure only degrades the response.
			h.log.Warn("deeplink generation failed", zap.String("md5", md5), zap.Error(err))
		} else {
			resp.Deeplink = link
		}
	}
	c.JSON(http.StatusCreated, resp)
}

// ── Lookup / lifecycle ───────────────────────────────────────────────────────

func (h *Handler) handleGet(c *gin.Context) {
	entry, ok := h.svc.Get(c.Param("md5"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not monitored"})
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *Handler) handleImage(c *gin.Context) {
	entry, ok := h.svc.Get(c.Param("md5"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not monitored"})
		return
	}
	size := 256
	if s := c.Query("size"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 64 && n <= 1024 {
			size = n
		}
	}
	png, err := khqr.ImagePNG(entry.QR, size)
	if err != nil {
		h.log.Error("qr render failed", zap.String("md5", entry.Fingerprint), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "render failed"})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (h *Handler) handleForceCheck(c *gin.Context) {
	entry, err := h.svc.ForceCheck(c.Request.Context(), c.Param("md5"))
	switch {
	case errors.Is(err, monitor.ErrNotMonitored):
		c.JSON(http.StatusNotFound, gin.H{"error": "not monitored"})
	case errors.Is(err, monitor.ErrCheckInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": "check already in flight"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	default:
		c.JSON(http.StatusOK, entry)
	}
}

func (h *Handler) handleUnwatch(c *gin.Context) {
	h.svc.Unwatch(c.Param("md5"))
	c.Status(http.StatusNoContent)
}

func (h *Handler) handleSession(c *gin.Context) {
	entries := h.svc.BySession(c.Param("id"))
	c.JSON(http.StatusOK, entries)
}

// ── Stats ────────────────────────────────────────────────────────────────────

func (h *Handler) handleStats(c *gin.Context) {
	totals, err := h.ledger.Totals(c.Request.Context())
	if err != nil {
		h.log.Error("ledger totals failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ledger unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"live":     h.svc.Stats(),
		"resolved": totals,
	})
}

func (h *Handler) handleLedger(c *gin.Context) {
	limit := int64(50)
	if s := c.Query("limit"); s != "" {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	records, err := h.ledger.Recent(c.Request.Context(), limit)
	if err != nil {
		h.log.Error("ledger read failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ledger unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}
