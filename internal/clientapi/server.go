// Package clientapi exposes the client orchestrator to a local UI over HTTP, with
// state and treasury notifications streamed as server-sent events.
package clientapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/MarkoPoloResearchLab/focusledger/internal/client"
	"github.com/MarkoPoloResearchLab/focusledger/internal/events"
	"github.com/MarkoPoloResearchLab/focusledger/internal/localstate"
	"github.com/MarkoPoloResearchLab/focusledger/pkg/economy"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultRequestTimeout = 45 * time.Second
	defaultAllowedOrigin  = "http://localhost:8000"
	heartbeatInterval     = 15 * time.Second
)

// Orchestrator is the client surface the HTTP API drives.
type Orchestrator interface {
	State() localstate.State
	Status(ctx context.Context) (client.Status, error)
	RefreshTreasury(ctx context.Context) (economy.Treasury, error)
	ClaimSessionReward(ctx context.Context) (client.ClaimResult, error)
	ResolvePendingClaims(ctx context.Context) ([]client.ClaimResult, error)
	PurchaseItem(ctx context.Context, itemID uint64, quantity uint64) (client.PurchaseResult, error)
	PurchasePet(ctx context.Context, speciesID uint64) (client.PurchaseResult, error)
	FeedPet(ctx context.Context, foodID uint64) (localstate.State, error)
	PlayWithPet(ctx context.Context, toyID *uint64) (localstate.State, error)
	ReviveDefaultPet(ctx context.Context) (localstate.State, error)
	SyncInventory(ctx context.Context) (localstate.State, error)
	RequestGas(ctx context.Context) (economy.Account, error)
}

// Subscriber streams notifications.
type Subscriber interface {
	Subscribe(ctx context.Context) <-chan events.Event
}

// Config tunes the HTTP surface.
type Config struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
}

func (config Config) withDefaults() Config {
	if len(config.AllowedOrigins) == 0 {
		config.AllowedOrigins = []string{defaultAllowedOrigin}
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = defaultRequestTimeout
	}
	return config
}

// NewRouter wires the routes.
func NewRouter(orchestrator Orchestrator, subscriber Subscriber, config Config, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	config = config.withDefaults()
	handler := &httpHandler{orchestrator: orchestrator, subscriber: subscriber, config: config, logger: logger}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: config.AllowedOrigins,
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Origin", "Accept"},
		MaxAge:       12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.GET("/state", handler.handleState)
	api.GET("/status", handler.handleStatus)
	api.GET("/treasury", handler.handleTreasury)
	api.POST("/claims", handler.handleClaim)
	api.POST("/claims/resolve", handler.handleResolveClaims)
	api.POST("/purchases", handler.handlePurchase)
	api.POST("/pets", handler.handleAdopt)
	api.POST("/pets/feed", handler.handleFeed)
	api.POST("/pets/play", handler.handlePlay)
	api.POST("/pets/revive", handler.handleRevive)
	api.POST("/inventory/sync", handler.handleSyncInventory)
	api.POST("/gas", handler.handleGas)
	api.GET("/events", handler.handleEvents)
	return router
}

type httpHandler struct {
	orchestrator Orchestrator
	subscriber   Subscriber
	config       Config
	logger       *zap.Logger
}

type purchaseRequest struct {
	ItemID   uint64 `json:"itemId" binding:"required"`
	Quantity uint64 `json:"quantity"`
}

type adoptRequest struct {
	SpeciesID uint64 `json:"speciesId" binding:"required"`
}

type feedRequest struct {
	FoodID uint64 `json:"foodId" binding:"required"`
}

type playRequest struct {
	ToyID *uint64 `json:"toyId"`
}

func (handler *httpHandler) handleState(ctx *gin.Context) {
	state := handler.orchestrator.State()
	ctx.JSON(http.StatusOK, gin.H{"state": state, "displayedHealth": state.DisplayedHealth()})
}

func (handler *httpHandler) handleStatus(ctx *gin.Context) {
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	status, err := handler.orchestrator.Status(requestCtx)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, status)
}

func (handler *httpHandler) handleTreasury(ctx *gin.Context) {
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	treasury, err := handler.orchestrator.RefreshTreasury(requestCtx)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"treasury": treasury, "balanceTokens": treasury.Balance.Tokens()})
}

func (handler *httpHandler) handleClaim(ctx *gin.Context) {
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	result, err := handler.orchestrator.ClaimSessionReward(requestCtx)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"claim": result, "state": handler.orchestrator.State()})
}

func (handler *httpHandler) handleResolveClaims(ctx *gin.Context) {
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	results, err := handler.orchestrator.ResolvePendingClaims(requestCtx)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	if results == nil {
		results = []client.ClaimResult{}
	}
	ctx.JSON(http.StatusOK, gin.H{"claims": results, "state": handler.orchestrator.State()})
}

func (handler *httpHandler) handlePurchase(ctx *gin.Context) {
	var request purchaseRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body with itemId", nil, false))
		return
	}
	if request.Quantity == 0 {
		request.Quantity = 1
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	result, err := handler.orchestrator.PurchaseItem(requestCtx, request.ItemID, request.Quantity)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

func (handler *httpHandler) handleAdopt(ctx *gin.Context) {
	var request adoptRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body with speciesId", nil, false))
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	result, err := handler.orchestrator.PurchasePet(requestCtx, request.SpeciesID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

func (handler *httpHandler) handleFeed(ctx *gin.Context) {
	var request feedRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body with foodId", nil, false))
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	state, err := handler.orchestrator.FeedPet(requestCtx, request.FoodID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"state": state})
}

func (handler *httpHandler) handlePlay(ctx *gin.Context) {
	var request playRequest
	if err := ctx.ShouldBindJSON(&request); err != nil && !errors.Is(err, io.EOF) {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body", nil, false))
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	state, err := handler.orchestrator.PlayWithPet(requestCtx, request.ToyID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"state": state})
}

func (handler *httpHandler) handleRevive(ctx *gin.Context) {
	state, err := handler.orchestrator.ReviveDefaultPet(ctx.Request.Context())
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"state": state})
}

func (handler *httpHandler) handleSyncInventory(ctx *gin.Context) {
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	state, err := handler.orchestrator.SyncInventory(requestCtx)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"state": state})
}

func (handler *httpHandler) handleGas(ctx *gin.Context) {
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	account, err := handler.orchestrator.RequestGas(requestCtx)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"account": account})
}

// handleEvents streams notifications until the client disconnects.
func (handler *httpHandler) handleEvents(ctx *gin.Context) {
	if handler.subscriber == nil {
		ctx.JSON(http.StatusNotImplemented, errorResponse("unavailable", "event stream disabled", nil, false))
		return
	}
	stream := handler.subscriber.Subscribe(ctx.Request.Context())
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	ctx.Header("Cache-Control", "no-cache")
	ctx.Header("X-Accel-Buffering", "no")
	ctx.SSEvent(string(events.TopicStateUpdated), handler.orchestrator.State())
	ctx.Writer.Flush()
	ctx.Stream(func(io.Writer) bool {
		select {
		case event, open := <-stream:
			if !open {
				return false
			}
			ctx.SSEvent(string(event.Topic), event.Payload)
			return true
		case <-heartbeat.C:
			ctx.SSEvent("heartbeat", gin.H{"at": time.Now().UnixMilli()})
			return true
		case <-ctx.Request.Context().Done():
			return false
		}
	})
}

func (handler *httpHandler) requestContext(ctx *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx.Request.Context(), handler.config.RequestTimeout)
}

func (handler *httpHandler) respondError(ctx *gin.Context, err error) {
	classified := client.Classify(client.StagePreflight, err)
	statusCode := statusForKind(classified.Kind)
	if statusCode >= http.StatusInternalServerError {
		handler.logger.Error("client operation failed", zap.String("kind", string(classified.Kind)), zap.String("stage", string(classified.Stage)), zap.Error(err))
	} else {
		handler.logger.Info("client operation refused", zap.String("kind", string(classified.Kind)), zap.String("stage", string(classified.Stage)), zap.Error(err))
	}
	ctx.JSON(statusCode, errorResponse(string(classified.Kind), classified.Message, classified.Detail, classified.CanRetry()))
}

func statusForKind(kind client.Kind) int {
	switch kind {
	case client.KindInvalidRequest:
		return http.StatusBadRequest
	case client.KindRejected:
		return http.StatusForbidden
	case client.KindInsufficientGas, client.KindInsufficientFunds:
		return http.StatusPaymentRequired
	case client.KindWrongNetwork, client.KindLedgerRuleViolation, client.KindObjectNotFound, client.KindInProgress:
		return http.StatusConflict
	case client.KindPending:
		return http.StatusAccepted
	case client.KindNetworkError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func errorResponse(code string, message string, detail map[string]string, canRetry bool) gin.H {
	body := gin.H{
		"code":      code,
		"message":   message,
		"can_retry": canRetry,
	}
	if len(detail) > 0 {
		body["detail"] = detail
	}
	return gin.H{"error": body}
}
