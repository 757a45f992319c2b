package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// RenderRequest is the per-invocation input of the handler.
type RenderRequest struct {
	Language   string `json:"language"`
	DarkTheme  bool   `json:"darkTheme"`
	DefaultPDF bool   `json:"defaultPdf"`
}

// ParseRenderRequest decodes a JSON request body.
func ParseRenderRequest(body []byte) (RenderRequest, error) {
	var req RenderRequest
	if len(bytes.TrimSpace(body)) == 0 {
		return req, fmt.Errorf("%w: empty body", ErrMalformedRequest)
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return req, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	return req, nil
}

// TargetURL returns the page to render for language. Only localized languages get
// their own path segment; everything else renders the base page.
func TargetURL(base, language string, localized []string) string {
	if language == "" || !slices.Contains(localized, language) {
		return base
	}
	return strings.TrimRight(base, "/") + "/" + language
}
