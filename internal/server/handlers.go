package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/GriffinCanCode/tracekit/jobs"
	"github.com/GriffinCanCode/tracekit/tracing"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// JobConfirmOrder is the job enqueued for every accepted order
const JobConfirmOrder = "order.confirm"

// ErrOutOfStock is returned for orders above MaxQuantity
var ErrOutOfStock = errors.New("out of stock")

// MaxQuantity is the largest order the demo inventory accepts
const MaxQuantity = 100

// Order is the body of POST /orders
type Order struct {
	Item     string `json:"item" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,min=1"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in dev
	},
}

// Handlers serves the demo routes
type Handlers struct {
	client *tracing.Client
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewHandlers creates the route handlers
func NewHandlers(client *tracing.Client, queue *jobs.Queue, logger *zap.Logger) *Handlers {
	return &Handlers{client: client, queue: queue, logger: logger}
}

// Root describes the service
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": h.client.Config().ServiceName,
		"tracing": h.client.Enabled(),
	})
}

// Health reports liveness; it is excluded from tracing by default
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// CreateOrder reserves stock inside a child span and enqueues a
// confirmation job that continues the request's trace.
func (h *Handlers) CreateOrder(c *gin.Context) {
	var order Order
	if err := c.ShouldBindJSON(&order); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	err := h.client.Trace(ctx, "reserve inventory", func(ctx context.Context, span *tracing.Span) error {
		span.SetAttribute("order.item", order.Item)
		span.SetAttribute("order.quantity", strconv.Itoa(order.Quantity))
		if order.Quantity > MaxQuantity {
			return ErrOutOfStock
		}
		return nil
	})
	if err != nil {
		h.client.RecordLog(ctx, tracing.LevelWarn, "order rejected", map[string]string{"item": order.Item})
		_ = c.Error(err)
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	h.client.RecordHistogram("order.quantity", float64(order.Quantity), map[string]string{"item": order.Item})

	jobID, err := h.queue.Enqueue(ctx, JobConfirmOrder, order)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	h.client.RecordLog(ctx, tracing.LevelInfo, "order accepted", map[string]string{"job_id": jobID.String()})
	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID})
}

// ConfirmOrder is the JobConfirmOrder handler
func (h *Handlers) ConfirmOrder(ctx context.Context, env jobs.Envelope) error {
	var order Order
	if err := env.Unwrap(&order); err != nil {
		return err
	}

	h.client.RecordCount("orders.confirmed", 1, map[string]string{"item": order.Item})
	h.client.RecordLog(ctx, tracing.LevelInfo, "order confirmed", map[string]string{"item": order.Item})
	return nil
}

// Stream echoes websocket messages, recording one event per message
func (h *Handlers) Stream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	for {
		kind, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		h.client.RecordEvent(ctx, "ws.message", map[string]string{"ws.bytes": strconv.Itoa(len(msg))})
		if err := conn.WriteMessage(kind, msg); err != nil {
			return
		}
	}
}
