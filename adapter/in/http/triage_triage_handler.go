package http

import (
	"strings"

	"triage_server/core/domain"
	"triage_server/core/port/in"
	"triage_server/pkg/cache"
	"triage_server/pkg/metrics"
	"triage_server/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// CacheStatser exposes result cache counters.
type CacheStatser interface {
	Stats() cache.LRUStats
}

// TriageHandler runs ad hoc classifications and reports pipeline metrics.
type TriageHandler struct {
	triage  in.TriageUseCase
	metrics *metrics.TriageMetrics
	cache   CacheStatser
}

// NewTriageHandler creates the handler. cacheStats may be nil.
func NewTriageHandler(triage in.TriageUseCase, m *metrics.TriageMetrics, cacheStats CacheStatser) *TriageHandler {
	return &TriageHandler{triage: triage, metrics: m, cache: cacheStats}
}

func (h *TriageHandler) Register(app fiber.Router) {
	g := app.Group("/triage")
	g.Post("/classify", h.Classify)
	g.Post("/batch", h.ClassifyBatch)
	g.Get("/metrics", h.Metrics)
}

const maxBatchSize = 50

// Classify runs one message through the pipeline. The pipeline never fails;
// only malformed requests are rejected.
func (h *TriageHandler) Classify(c *fiber.Ctx) error {
	var msg domain.InboundMessage
	if err := c.BodyParser(&msg); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	if strings.TrimSpace(msg.ID) == "" {
		return response.BadRequest(c, "id is required")
	}
	if strings.TrimSpace(msg.Subject) == "" && strings.TrimSpace(msg.Body) == "" {
		return response.BadRequest(c, "subject or body is required")
	}

	return response.OK(c, h.triage.Classify(c.UserContext(), &msg))
}

type batchRequest struct {
	Messages []*domain.InboundMessage `json:"messages"`
}

// ClassifyBatch classifies up to 50 messages in order.
func (h *TriageHandler) ClassifyBatch(c *fiber.Ctx) error {
	var req batchRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	if len(req.Messages) > maxBatchSize {
		return response.BadRequest(c, "too many messages")
	}
	for _, m := range req.Messages {
		if m == nil {
			return response.BadRequest(c, "null message in batch")
		}
		if strings.TrimSpace(m.ID) == "" {
			return response.BadRequest(c, "every message needs an id")
		}
	}

	results := h.triage.ProcessBatch(c.UserContext(), req.Messages, nil)
	return response.OK(c, fiber.Map{"results": results})
}

func (h *TriageHandler) Metrics(c *fiber.Ctx) error {
	data := fiber.Map{}
	if h.metrics != nil {
		data["pipeline"] = h.metrics.Snapshot()
	}
	if h.cache != nil {
		data["cache"] = h.cache.Stats()
	}
	return response.OK(c, data)
}
