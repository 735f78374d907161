package coordinator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"texttools/common"
	"texttools/storage"
)

// submitBody is accepted by the input endpoints: either a ready payload
// or an op/text pair the coordinator encodes the same way the frontend does.
type submitBody struct {
	Op      string `json:"op"`
	Text    string `json:"text"`
	Payload string `json:"payload"`
}

func (b submitBody) encode() (string, error) {
	if b.Payload != "" {
		return b.Payload, nil
	}
	return common.EncodePayload(common.Request{Op: b.Op, Text: b.Text})
}

// Router builds the gin engine serving the rollup protocol and the
// frontend API.
func (n *Node) Router() *gin.Engine {
	router := gin.Default()

	// Enable CORS for frontend
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5173", "http://localhost:3000", "http://127.0.0.1:5173"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Rollup protocol used by the DApp worker
	router.POST("/finish", n.handleFinish)
	router.POST("/notice", n.handleNotice)
	router.POST("/report", n.handleReport)

	api := router.Group("/api/v1")
	{
		api.POST("/inputs", n.submitInput)
		api.POST("/inspect", n.inspect)
		api.GET("/inputs", n.listInputs)
		api.GET("/inputs/:index", n.getInput)
	}

	return router
}

func (n *Node) handleFinish(c *gin.Context) {
	var body common.FinishRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req, err := n.Finish(c.Request.Context(), body.Status)
	switch {
	case errors.Is(err, ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid status %q", body.Status)})
	case err != nil:
		// Client went away while long-polling.
		c.Status(http.StatusServiceUnavailable)
	case req == nil:
		c.Status(http.StatusAccepted)
	default:
		c.JSON(http.StatusOK, req)
	}
}

func (n *Node) handleNotice(c *gin.Context) {
	var body common.PayloadBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	index, err := n.AddNotice(c.Request.Context(), body.Payload)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, common.IndexResponse{Index: index})
}

func (n *Node) handleReport(c *gin.Context) {
	var body common.PayloadBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := n.AddReport(c.Request.Context(), body.Payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusOK)
}

// submitInput queues an advance input.
// POST /api/v1/inputs {"op","text"} or {"payload"}
func (n *Node) submitInput(c *gin.Context) {
	rec, ok := n.bindAndSubmit(c, common.AdvanceState)
	if !ok {
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"id":    rec.ID,
		"index": rec.Index,
	})
}

// inspect queues an inspect request and waits for its verdict.
// POST /api/v1/inspect
func (n *Node) inspect(c *gin.Context) {
	rec, ok := n.bindAndSubmit(c, common.InspectState)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), n.opts.LongPoll)
	defer cancel()

	done, err := n.Wait(ctx, rec.Index)
	if err != nil {
		c.JSON(http.StatusGatewayTimeout, gin.H{
			"error": "inspect not processed in time",
			"index": rec.Index,
		})
		return
	}
	c.JSON(http.StatusOK, done)
}

func (n *Node) bindAndSubmit(c *gin.Context, requestType common.RequestType) (*storage.InputRecord, bool) {
	var body submitBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}

	payload, err := body.encode()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}

	rec, err := n.Submit(c.Request.Context(), requestType, payload)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid payload: %v", err)})
		return nil, false
	}
	return rec, true
}

func (n *Node) listInputs(c *gin.Context) {
	records := n.List()
	c.JSON(http.StatusOK, gin.H{
		"inputs": records,
		"count":  len(records),
	})
}

func (n *Node) getInput(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "index must be a non-negative integer"})
		return
	}

	rec, err := n.Get(c.Request.Context(), index)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("input %d not found", index)})
		return
	}
	if err != nil {
		n.logger.Warn("Failed to load input", zap.Int("index", index), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rec)
}
