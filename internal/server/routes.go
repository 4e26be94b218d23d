package server

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/zulandar/rostrum/internal/debate"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, opts StartOpts) {
	limiter := newRetryLimiter(opts.RetryLimit, time.Minute)

	api := router.Group("/api")
	api.POST("/sessions", handleCreateSession(opts.Orchestrator))
	api.GET("/sessions/:id", handleGetSession(opts.Orchestrator))
	api.POST("/sessions/:id/invitation", handleIssueInvitation(opts.Orchestrator))
	api.POST("/sessions/:id/join", handleJoin(opts.Orchestrator))
	api.POST("/sessions/:id/judge", handleJudge(opts.Orchestrator))
	api.POST("/sessions/:id/retry", handleRetry(opts.Orchestrator, limiter))
	api.POST("/sessions/:id/turns/:index/audio", handleAttachAudio(opts.Orchestrator))
	api.POST("/auth/socket-token", handleSocketToken(opts))

	if opts.Hub != nil {
		router.GET("/ws", handleSocket(opts))
	}
}

type createSessionRequest struct {
	Topic     string `json:"topic"`
	Rounds    int    `json:"rounds"`
	DebaterA  string `json:"debaterAId"`
	DebaterB  string `json:"debaterBId"`
	AutoJudge *bool  `json:"autoJudge"`
}

func handleCreateSession(orch *debate.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createSessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
			return
		}
		autoJudge := true
		if req.AutoJudge != nil {
			autoJudge = *req.AutoJudge
		}
		state, err := orch.CreateSession(c.Request.Context(), debate.CreateParams{
			Topic:     req.Topic,
			Rounds:    req.Rounds,
			DebaterA:  req.DebaterA,
			DebaterB:  req.DebaterB,
			AutoJudge: autoJudge,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, state)
	}
}

func handleGetSession(orch *debate.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		state, err := orch.LoadSession(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, state)
	}
}

func handleIssueInvitation(orch *debate.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		inv, err := orch.IssueInvitation(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, inv)
	}
}

type joinRequest struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
}

func handleJoin(orch *debate.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req joinRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" || req.UserID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "token and userId are required"})
			return
		}
		state, err := orch.RedeemInvitation(c.Request.Context(), c.Param("id"), req.Token, req.UserID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, state)
	}
}

type judgeRequest struct {
	Winner string `json:"winner"`
}

func handleJudge(orch *debate.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req judgeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
			return
		}
		state, err := orch.UserJudge(c.Request.Context(), c.Param("id"), req.Winner)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, state)
	}
}

func handleRetry(orch *debate.Orchestrator, limiter *retryLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if ok, wait := limiter.allow(id); !ok {
			writeError(c, &debate.RateLimitError{RetryAfter: wait})
			return
		}
		state, err := orch.RetryJudging(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, state)
	}
}

type audioRequest struct {
	Ref string `json:"ref"`
}

func handleAttachAudio(orch *debate.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		index, err := strconv.Atoi(c.Param("index"))
		if err != nil || index < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid turn index"})
			return
		}
		var req audioRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Ref == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ref is required"})
			return
		}
		if err := orch.AttachTurnAudio(c.Request.Context(), c.Param("id"), index, req.Ref); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

type socketTokenRequest struct {
	UserID string `json:"userId"`
}

func handleSocketToken(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req socketTokenRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
			return
		}
		raw, err := opts.Tokens.IssueTransport(req.UserID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": raw})
	}
}

// handleSocket authenticates the transport token, upgrades, and hands
// the connection to the hub. Auth happens before the upgrade so a bad
// token gets a clean HTTP status instead of a websocket close frame.
func handleSocket(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := opts.Tokens.VerifyTransport(c.Query("token"))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid transport token"})
			return
		}
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		opts.Hub.ServeConn(conn, userID)
	}
}

// writeError maps orchestrator errors to HTTP responses. Every typed
// error carries enough for the client to act; anything else is a 500
// with the detail kept server-side.
func writeError(c *gin.Context, err error) {
	var vErr *debate.ValidationError
	var conflict *debate.StateConflictError
	var tokErr *debate.TokenError
	var turnErr *debate.TurnError
	var upstream *debate.UpstreamError
	var limited *debate.RateLimitError

	switch {
	case errors.Is(err, debate.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error(), "field": vErr.Field})
	case errors.As(err, &tokErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": tokErr.Error(), "reason": tokErr.Reason})
	case errors.As(err, &conflict):
		// 400 with the actual current status so the caller can
		// resynchronize instead of blindly retrying.
		c.JSON(http.StatusBadRequest, gin.H{"error": conflict.Error(), "status": conflict.Current})
	case errors.As(err, &turnErr):
		c.JSON(http.StatusConflict, gin.H{"error": turnErr.Error(), "reason": turnErr.Reason})
	case errors.As(err, &limited):
		if limited.RetryAfter > 0 {
			seconds := int(limited.RetryAfter.Seconds())
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(seconds))
		}
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many retries"})
	case errors.As(err, &upstream):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "judging service unavailable"})
	default:
		log.Printf("server: internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
