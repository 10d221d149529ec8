// Package annotate stamps uploaded plan documents with the company footer,
// the upload date, the owner's display name, and the branding logo before
// they are stored. The transform is pure: bytes in, stamped bytes out.
package annotate

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// ErrMalformedDocument indicates the input could not be parsed as a PDF.
var ErrMalformedDocument = errors.New("annotate: malformed document")

// Branding holds the assets overlaid on every page.
type Branding struct {
	FooterText string
	LogoPNG    []byte // optional; skipped when empty
}

// Annotator produces a stamped copy of a plan document.
type Annotator interface {
	Annotate(doc []byte, ownerName string, date time.Time) ([]byte, error)
}

// pdfAnnotator implements Annotator with pdfcpu stamps.
type pdfAnnotator struct {
	branding Branding
}

// NewPDFAnnotator creates an Annotator for PDF plan documents.
func NewPDFAnnotator(branding Branding) Annotator {
	return &pdfAnnotator{branding: branding}
}

// Stamp placement mirrors the layout the plans have always shipped with:
// logo top-left, date top-right, owner name above the footer line,
// footer bottom-left. Offsets are in points from the anchor corner.
var textStampPositions = []struct {
	key  string
	desc string
}{
	{"date", "points:12, pos:tr, off:-60 -90, scale:1 abs, rot:0, fillc:#000000"},
	{"owner", "points:12, pos:bl, off:50 50, scale:1 abs, rot:0, fillc:#000000"},
	{"footer", "points:12, pos:bl, off:50 30, scale:1 abs, rot:0, fillc:#000000"},
}

// Annotate overlays the footer, date, owner name and logo on every page.
func (a *pdfAnnotator) Annotate(doc []byte, ownerName string, date time.Time) ([]byte, error) {
	if len(doc) == 0 {
		return nil, ErrMalformedDocument
	}

	texts := map[string]string{
		"date":   date.Format("02/01/2006"),
		"owner":  ownerName,
		"footer": a.branding.FooterText,
	}

	out := doc
	for _, stamp := range textStampPositions {
		text := texts[stamp.key]
		if text == "" {
			continue
		}
		wm, err := api.TextWatermark(text, stamp.desc, true, false, types.POINTS)
		if err != nil {
			return nil, err
		}
		out, err = applyStamp(out, wm)
		if err != nil {
			return nil, err
		}
	}

	if len(a.branding.LogoPNG) > 0 {
		wm, err := api.ImageWatermarkForReader(
			bytes.NewReader(a.branding.LogoPNG),
			"pos:tl, off:30 -30, scale:0.15 rel, rot:0",
			true, false, types.POINTS,
		)
		if err != nil {
			return nil, err
		}
		out, err = applyStamp(out, wm)
		if err != nil {
			return nil, err
		}
	}

	return out, nil
}

// applyStamp runs one watermark pass over every page. A parse failure on the
// input maps to ErrMalformedDocument.
func applyStamp(doc []byte, wm *model.Watermark) ([]byte, error) {
	var buf bytes.Buffer
	if err := api.AddWatermarks(bytes.NewReader(doc), &buf, nil, wm, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	return buf.Bytes(), nil
}
