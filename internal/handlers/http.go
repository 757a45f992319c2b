package handlers

import (
	"github.com/gofiber/fiber/v2"

	"resumepdf/internal/domain"
	u "resumepdf/internal/utils"
)

// HTTPHandler exposes the Publisher over HTTP for local runs.
type HTTPHandler struct {
	publisher Publisher
}

// NewHTTPHandler creates an HTTPHandler.
func NewHTTPHandler(p Publisher) *HTTPHandler {
	return &HTTPHandler{publisher: p}
}

// HandleRender parses the JSON body and answers with the same payloads as the
// Lambda entrypoint.
func (h *HTTPHandler) HandleRender(c *fiber.Ctx) error {
	req, err := domain.ParseRenderRequest(c.Body())
	var url string
	if err == nil {
		url, err = h.publisher.Publish(c.UserContext(), req)
	}

	requestID := c.GetRespHeader(fiber.HeaderXRequestID)
	if err != nil {
		u.Warn("Request failed", "path", c.Path(), "request_id", requestID, "error", err)
	} else {
		u.Info("Request served", "path", c.Path(), "request_id", requestID)
	}

	status, payload := envelope(url, err)
	return c.Status(status).JSON(payload)
}
