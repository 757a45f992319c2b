package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resumepdf/internal/domain"
	"resumepdf/internal/warmer"
)

type fakePublisher struct {
	calls []domain.RenderRequest
	url   string
	err   error
}

func (f *fakePublisher) Publish(_ context.Context, req domain.RenderRequest) (string, error) {
	f.calls = append(f.calls, req)
	return f.url, f.err
}

type fakeWarmer struct {
	warm bool
	err  error
	seen int
}

func (f *fakeWarmer) Handle(_ context.Context, _ []byte) (bool, error) {
	f.seen++
	return f.warm, f.err
}

func proxyEvent(t *testing.T, body string, base64Encoded bool) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(events.APIGatewayProxyRequest{HTTPMethod: "POST", Body: body, IsBase64Encoded: base64Encoded})
	require.NoError(t, err)
	return raw
}

func decodeResponse(t *testing.T, out any) (events.APIGatewayProxyResponse, map[string]string) {
	t.Helper()
	resp, ok := out.(events.APIGatewayProxyResponse)
	require.True(t, ok, "expected a proxy response, got %T", out)
	var body map[string]string
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &body))
	return resp, body
}

func TestHandle_WarmupShortCircuits(t *testing.T) {
	pub := &fakePublisher{url: "https://signed"}
	h := NewLambdaHandler(pub, &fakeWarmer{warm: true})

	out, err := h.Handle(context.Background(), json.RawMessage(`{"warmer":true}`))
	require.NoError(t, err)
	assert.Equal(t, warmer.Sentinel, out)
	assert.Empty(t, pub.calls)
}

func TestHandle_WarmupWithRealWarmer(t *testing.T) {
	pub := &fakePublisher{url: "https://signed"}
	h := NewLambdaHandler(pub, warmer.New(nil, "resume-pdf", "1", 0))

	out, err := h.Handle(context.Background(), json.RawMessage(`{"warmer":true,"body":"{\"defaultPdf\":true}"}`))
	require.NoError(t, err)
	assert.Equal(t, "warmed", out)
	assert.Empty(t, pub.calls)
}

func TestHandle_LooselyTypedWarmupIsNotARequest(t *testing.T) {
	pub := &fakePublisher{url: "https://signed"}
	h := NewLambdaHandler(pub, warmer.New(nil, "resume-pdf", "1", 0))

	out, err := h.Handle(context.Background(), json.RawMessage(`{"warmer":true,"concurrency":"1"}`))
	require.NoError(t, err)
	assert.Equal(t, "warmed", out)
	assert.Empty(t, pub.calls)
}

func TestHandle_WarmupFailure(t *testing.T) {
	pub := &fakePublisher{}
	h := NewLambdaHandler(pub, &fakeWarmer{warm: true, err: errors.New("throttled")})

	out, err := h.Handle(context.Background(), json.RawMessage(`{"warmer":true,"concurrency":2}`))
	require.NoError(t, err)
	resp, body := decodeResponse(t, out)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, body["error"], "throttled")
	assert.Empty(t, pub.calls)
}

func TestHandle_DefaultPDF(t *testing.T) {
	pub := &fakePublisher{url: "https://resumes.s3.amazonaws.com/Curriculum.pdf?sig"}
	w := &fakeWarmer{}
	h := NewLambdaHandler(pub, w)

	out, err := h.Handle(context.Background(), proxyEvent(t, `{"defaultPdf": true}`, false))
	require.NoError(t, err)

	resp, body := decodeResponse(t, out)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, pub.url, body["url"])
	assert.Equal(t, "*", resp.Headers["Access-Control-Allow-Origin"])
	assert.Equal(t, "application/json", resp.Headers["Content-Type"])
	require.Len(t, pub.calls, 1)
	assert.True(t, pub.calls[0].DefaultPDF)
	assert.Equal(t, 1, w.seen)
}

func TestHandle_Base64Body(t *testing.T) {
	pub := &fakePublisher{url: "https://signed"}
	h := NewLambdaHandler(pub, nil)

	encoded := base64.StdEncoding.EncodeToString([]byte(`{"language":"br","darkTheme":false}`))
	out, err := h.Handle(context.Background(), proxyEvent(t, encoded, true))
	require.NoError(t, err)

	resp, _ := decodeResponse(t, out)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, pub.calls, 1)
	assert.Equal(t, domain.RenderRequest{Language: "br"}, pub.calls[0])
}

func TestHandle_MalformedBodyIs500(t *testing.T) {
	tests := []struct {
		name string
		raw  json.RawMessage
	}{
		{name: "broken json body", raw: proxyEvent(t, `{"language":`, false)},
		{name: "missing body", raw: json.RawMessage(`{"httpMethod":"POST"}`)},
		{name: "bad base64", raw: proxyEvent(t, "%%%", true)},
		{name: "event is not an object", raw: json.RawMessage(`"hello"`)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pub := &fakePublisher{}
			h := NewLambdaHandler(pub, nil)

			out, err := h.Handle(context.Background(), tc.raw)
			require.NoError(t, err)
			resp, body := decodeResponse(t, out)
			assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
			assert.Contains(t, body["error"], domain.ErrMalformedRequest.Error())
			_, hasURL := body["url"]
			assert.False(t, hasURL)
			assert.Empty(t, pub.calls)
		})
	}
}

func TestHandle_PublishFailureIs500(t *testing.T) {
	pub := &fakePublisher{err: errors.Join(domain.ErrRender, errors.New("waiting for #area-cv"))}
	h := NewLambdaHandler(pub, nil)

	out, err := h.Handle(context.Background(), proxyEvent(t, `{"language":"en","darkTheme":true}`, false))
	require.NoError(t, err)
	resp, body := decodeResponse(t, out)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, body["error"], "render failed")
}
