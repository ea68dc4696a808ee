package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samigerges/workflow-sub001/internal/allocation"
	"github.com/samigerges/workflow-sub001/internal/auth"
	"github.com/samigerges/workflow-sub001/internal/entities"
	"github.com/samigerges/workflow-sub001/internal/notify"
	"github.com/samigerges/workflow-sub001/internal/subjects"
	"github.com/samigerges/workflow-sub001/internal/users"
	"github.com/samigerges/workflow-sub001/internal/voting"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	voterIDContextKey        = "workflow_voter_id"
	defaultHeartbeatInterval = 25 * time.Second
)

var (
	errMissingSessionValidator = errors.New("session validator dependency required")
	errMissingVoterResolver    = errors.New("voter resolver dependency required")
	errMissingVotingService    = errors.New("voting service dependency required")
	errMissingAllocation       = errors.New("allocation service dependency required")
	errMissingDocumentGroups   = errors.New("document group resolver dependency required")
	errMissingEventStream      = errors.New("event stream dependency required")
)

// SessionValidator authenticates an incoming request.
type SessionValidator interface {
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
}

// VoterResolver maps authenticated claims onto the canonical voter identifier.
type VoterResolver interface {
	ResolveVoterID(ctx context.Context, claims auth.SessionClaims) (string, error)
}

type VotingService interface {
	SubmitVote(ctx context.Context, request voting.SubmitVoteRequest) (voting.AggregateDecision, error)
	GetAggregateDecision(ctx context.Context, subjectType voting.SubjectType, subjectID voting.SubjectID) (voting.AggregateDecision, error)
	ListVotes(ctx context.Context, subjectType voting.SubjectType, subjectID voting.SubjectID) ([]voting.VoteRecord, error)
}

type AllocationService interface {
	GetAllocationSummary(ctx context.Context, entityType allocation.EntityType, entityID allocation.EntityID) (allocation.Summary, error)
	NominateVessel(ctx context.Context, request allocation.NominateVesselRequest) (entities.Vessel, error)
	SetVesselQuantity(ctx context.Context, vesselID int64, quantity decimal.NullDecimal) (entities.Vessel, error)
	SetLetterOfCreditAllocation(ctx context.Context, letterOfCreditID allocation.EntityID, vesselID int64, quantity decimal.NullDecimal) (entities.LetterOfCreditVessel, error)
}

type DocumentGroupResolver interface {
	DocumentVoteGroups(ctx context.Context, ownerType voting.SubjectType, ownerID voting.SubjectID) ([]subjects.DocumentVoteGroup, error)
}

type EventStream interface {
	Subscribe(ctx context.Context) (<-chan notify.Event, func())
}

type Dependencies struct {
	Sessions          SessionValidator
	Voters            VoterResolver
	Voting            VotingService
	Allocation        AllocationService
	Documents         DocumentGroupResolver
	Events            EventStream
	MetricsHandler    http.Handler
	PromRegistry      prometheus.Registerer
	AllowedOrigins    []string
	HeartbeatInterval time.Duration
	Logger            *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Sessions == nil {
		return nil, errMissingSessionValidator
	}
	if deps.Voters == nil {
		return nil, errMissingVoterResolver
	}
	if deps.Voting == nil {
		return nil, errMissingVotingService
	}
	if deps.Allocation == nil {
		return nil, errMissingAllocation
	}
	if deps.Documents == nil {
		return nil, errMissingDocumentGroups
	}
	if deps.Events == nil {
		return nil, errMissingEventStream
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	heartbeat := deps.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(deps.AllowedOrigins))
	router.Use(newHTTPMetrics(deps.PromRegistry).middleware())

	handler := &httpHandler{
		sessions:   deps.Sessions,
		voters:     deps.Voters,
		voting:     deps.Voting,
		allocation: deps.Allocation,
		documents:  deps.Documents,
		events:     deps.Events,
		heartbeat:  heartbeat,
		logger:     logger,
	}

	router.GET("/healthz", handler.handleHealth)
	if deps.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(deps.MetricsHandler))
	}

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.POST("/subjects/:type/:id/votes", handler.handleSubmitVote)
	protected.GET("/subjects/:type/:id/votes", handler.handleListVotes)
	protected.GET("/subjects/:type/:id/decision", handler.handleGetDecision)
	protected.GET("/subjects/:type/:id/documents", handler.handleDocumentGroups)
	protected.GET("/allocations/:type/:id", handler.handleGetAllocation)
	protected.POST("/contracts/:id/vessels", handler.handleNominateVessel)
	protected.PUT("/vessels/:id/quantity", handler.handleSetVesselQuantity)
	protected.PUT("/letters-of-credit/:id/vessels/:vesselId", handler.handleSetLetterOfCreditAllocation)
	protected.GET("/events", handler.handleEventStream)

	return router, nil
}

type httpHandler struct {
	sessions   SessionValidator
	voters     VoterResolver
	voting     VotingService
	allocation AllocationService
	documents  DocumentGroupResolver
	events     EventStream
	heartbeat  time.Duration
	logger     *zap.Logger
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-TAuth-Tenant"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	origins := make([]string, 0, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	if len(origins) == 0 {
		// Credentialed requests cannot use the wildcard, so every origin is echoed back.
		config.AllowOriginFunc = func(string) bool { return true }
	} else {
		config.AllowOrigins = origins
	}
	return cors.New(config)
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	claims, err := h.sessions.ValidateRequest(c.Request)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredSessionToken) || errors.Is(err, auth.ErrMissingSessionToken) {
			h.logger.Info("session validation failed", zap.Error(err))
		} else {
			h.logger.Warn("session validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	voterID, err := h.voters.ResolveVoterID(c.Request.Context(), claims)
	if err != nil {
		if errors.Is(err, users.ErrInvalidIdentity) {
			h.logger.Warn("session identity rejected", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		h.logger.Error("voter identity resolution failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "identity_lookup_failed"})
		return
	}
	c.Set(voterIDContextKey, voterID)
	c.Next()
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
