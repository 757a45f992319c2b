package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"

	"resumepdf/internal/domain"
	u "resumepdf/internal/utils"
	"resumepdf/internal/warmer"
)

// Publisher is the render-and-publish operation.
type Publisher interface {
	Publish(ctx context.Context, req domain.RenderRequest) (string, error)
}

// WarmupHandler recognises and answers warm-up pings.
type WarmupHandler interface {
	Handle(ctx context.Context, raw []byte) (bool, error)
}

// LambdaHandler is the Lambda entrypoint.
type LambdaHandler struct {
	publisher Publisher
	warmer    WarmupHandler
}

// NewLambdaHandler creates a LambdaHandler. w may be nil to disable warm-up handling.
func NewLambdaHandler(p Publisher, w WarmupHandler) *LambdaHandler {
	return &LambdaHandler{publisher: p, warmer: w}
}

// Handle answers one invocation. Warm-up pings get the plain warmer.Sentinel;
// everything else gets an API Gateway proxy response.
func (h *LambdaHandler) Handle(ctx context.Context, raw json.RawMessage) (any, error) {
	if h.warmer != nil {
		warmed, err := h.warmer.Handle(ctx, raw)
		if warmed {
			if err != nil {
				u.Error("Warm-up failed", "error", err)
				return proxyResponse(envelope("", err)), nil
			}
			return warmer.Sentinel, nil
		}
	}

	requestID := ""
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		requestID = lc.AwsRequestID
	}

	url, err := h.serve(ctx, raw)
	if err != nil {
		u.Error("Request failed", "request_id", requestID, "error", err)
	} else {
		u.Info("Request served", "request_id", requestID)
	}
	return proxyResponse(envelope(url, err)), nil
}

func (h *LambdaHandler) serve(ctx context.Context, raw json.RawMessage) (string, error) {
	body, err := requestBody(raw)
	if err != nil {
		return "", err
	}
	req, err := domain.ParseRenderRequest(body)
	if err != nil {
		return "", err
	}
	return h.publisher.Publish(ctx, req)
}

// requestBody extracts the body of an API Gateway (REST or HTTP API) or Function
// URL event.
func requestBody(raw json.RawMessage) ([]byte, error) {
	var ev events.APIGatewayProxyRequest
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedRequest, err)
	}
	if !ev.IsBase64Encoded {
		return []byte(ev.Body), nil
	}
	body, err := base64.StdEncoding.DecodeString(ev.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: body is not valid base64: %v", domain.ErrMalformedRequest, err)
	}
	return body, nil
}

func proxyResponse(status int, payload any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(payload)
	if err != nil {
		body = []byte(`{"error":"response encoding failed"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":                "application/json",
			"Access-Control-Allow-Origin": "*",
		},
		Body: string(body),
	}
}
