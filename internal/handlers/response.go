package handlers

import (
	"net/http"
)

// URLBody is the success payload.
type URLBody struct {
	URL string `json:"url"`
}

// ErrorBody is the failure payload.
type ErrorBody struct {
	Error string `json:"error"`
}

// envelope maps the outcome of Publish to a status code and payload. It is the
// only place where failures become status codes.
func envelope(url string, err error) (int, any) {
	if err != nil {
		return http.StatusInternalServerError, ErrorBody{Error: err.Error()}
	}
	return http.StatusOK, URLBody{URL: url}
}
