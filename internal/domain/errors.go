package domain

import "errors"

var (
	// ErrMalformedRequest signals a request body that is empty or not valid JSON.
	ErrMalformedRequest = errors.New("malformed request")
	// ErrRender signals that the page could not be loaded or captured.
	ErrRender = errors.New("render failed")
	// ErrCompose signals that the screenshot could not be assembled into a PDF.
	ErrCompose = errors.New("pdf assembly failed")
	// ErrUpload signals that the PDF could not be written to object storage.
	ErrUpload = errors.New("upload failed")
	// ErrSign signals that no download link could be generated.
	ErrSign = errors.New("url signing failed")
)
