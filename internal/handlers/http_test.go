package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"resumepdf/internal/domain"
)

func TestHandleRender_HTTP(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		pub      *fakePublisher
		wantCode int
		wantKey  string
	}{
		{name: "success", body: `{"language":"en","darkTheme":true}`, pub: &fakePublisher{url: "https://signed"}, wantCode: fiber.StatusOK, wantKey: "url"},
		{name: "malformed", body: `{`, pub: &fakePublisher{}, wantCode: fiber.StatusInternalServerError, wantKey: "error"},
		{name: "publish error", body: `{"defaultPdf":true}`, pub: &fakePublisher{err: domain.ErrSign}, wantCode: fiber.StatusInternalServerError, wantKey: "error"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			app.Post("/v1/resume", NewHTTPHandler(tc.pub).HandleRender)

			req := httptest.NewRequest("POST", "/v1/resume", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			if resp.StatusCode != tc.wantCode {
				t.Fatalf("expected %d got %d", tc.wantCode, resp.StatusCode)
			}
			raw, _ := io.ReadAll(resp.Body)
			var body map[string]string
			if err := json.Unmarshal(raw, &body); err != nil {
				t.Fatalf("decode body %q: %v", raw, err)
			}
			if _, ok := body[tc.wantKey]; !ok {
				t.Fatalf("expected %q in body, got %s", tc.wantKey, raw)
			}
		})
	}
}

func TestEnvelope(t *testing.T) {
	status, payload := envelope("https://signed", nil)
	if status != 200 || payload.(URLBody).URL != "https://signed" {
		t.Fatalf("unexpected success envelope: %d %+v", status, payload)
	}
	status, payload = envelope("", errors.New("boom"))
	if status != 500 || payload.(ErrorBody).Error != "boom" {
		t.Fatalf("unexpected error envelope: %d %+v", status, payload)
	}
}
