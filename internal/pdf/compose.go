// Package pdf assembles captured screenshots into PDF documents.
package pdf

import (
	"bytes"
	"fmt"
	"image"
	_ "image/png"
	"math"

	"github.com/go-pdf/fpdf"

	"resumepdf/internal/domain"
	u "resumepdf/internal/utils"
)

const imageName = "screenshot"

// Portrait returns the page with its short side as width.
func Portrait(size u.PaperSize) u.PaperSize {
	return u.PaperSize{
		Width:  math.Min(size.Width, size.Height),
		Height: math.Max(size.Width, size.Height),
	}
}

// Compose builds a single-page PDF of the given format with the PNG stretched over
// the whole page.
func Compose(png []byte, size u.PaperSize) ([]byte, error) {
	if len(png) == 0 {
		return nil, fmt.Errorf("%w: empty screenshot", domain.ErrCompose)
	}
	if size.Width <= 0 || size.Height <= 0 {
		return nil, fmt.Errorf("%w: invalid page size %.0fx%.0f", domain.ErrCompose, size.Width, size.Height)
	}
	if _, format, err := image.DecodeConfig(bytes.NewReader(png)); err != nil || format != "png" {
		return nil, fmt.Errorf("%w: screenshot is not a png image", domain.ErrCompose)
	}

	page := Portrait(size)
	doc := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: page.Width, Ht: page.Height},
	})
	doc.SetMargins(0, 0, 0)
	doc.SetAutoPageBreak(false, 0)
	doc.AddPage()

	opts := fpdf.ImageOptions{ImageType: "PNG"}
	doc.RegisterImageOptionsReader(imageName, opts, bytes.NewReader(png))
	doc.ImageOptions(imageName, 0, 0, page.Width, page.Height, false, opts, 0, "")

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCompose, err)
	}
	return buf.Bytes(), nil
}
