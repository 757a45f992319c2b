package domain

import (
	"errors"
	"testing"
)

func TestTargetURL(t *testing.T) {
	localized := []string{"br"}
	tests := []struct {
		name     string
		base     string
		language string
		want     string
	}{
		{name: "br gets its own path", base: "https://cv.example.com", language: "br", want: "https://cv.example.com/br"},
		{name: "trailing slash not doubled", base: "https://cv.example.com/", language: "br", want: "https://cv.example.com/br"},
		{name: "english uses base", base: "https://cv.example.com", language: "en", want: "https://cv.example.com"},
		{name: "empty language uses base", base: "https://cv.example.com", language: "", want: "https://cv.example.com"},
		{name: "case sensitive", base: "https://cv.example.com", language: "BR", want: "https://cv.example.com"},
		{name: "unknown language", base: "https://cv.example.com/", language: "es", want: "https://cv.example.com/"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := TargetURL(tc.base, tc.language, localized); got != tc.want {
				t.Fatalf("TargetURL(%q, %q) = %q, want %q", tc.base, tc.language, got, tc.want)
			}
		})
	}
}

func TestParseRenderRequest(t *testing.T) {
	req, err := ParseRenderRequest([]byte(`{"language":"br","darkTheme":false,"defaultPdf":true}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Language != "br" || req.DarkTheme || !req.DefaultPDF {
		t.Fatalf("unexpected request: %+v", req)
	}

	req, err = ParseRenderRequest([]byte(`{"language":"en","darkTheme":true}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Language != "en" || !req.DarkTheme || req.DefaultPDF {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestParseRenderRequest_Malformed(t *testing.T) {
	for _, body := range []string{"", "   ", "{", "not json", `{"darkTheme":"yes"}`} {
		if _, err := ParseRenderRequest([]byte(body)); !errors.Is(err, ErrMalformedRequest) {
			t.Fatalf("body %q: expected ErrMalformedRequest, got %v", body, err)
		}
	}
}

func TestDomainErrors_AreDistinct(t *testing.T) {
	all := []error{ErrMalformedRequest, ErrRender, ErrCompose, ErrUpload, ErrSign}
	for i, a := range all {
		if a.Error() == "" {
			t.Fatalf("error %d has empty message", i)
		}
		for j, b := range all {
			if i != j && errors.Is(a, b) {
				t.Fatalf("errors %q and %q must be distinct", a, b)
			}
		}
		if !errors.Is(errors.Join(errors.New("context"), a), a) {
			t.Fatalf("expected errors.Is to match %q through a join", a)
		}
	}
}
