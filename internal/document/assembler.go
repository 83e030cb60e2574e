// Package document renders project sections into .docx and .pptx files.
package document

import (
	"context"
	"errors"
	"fmt"
	"time"

	"documate/internal/helper"
	"documate/internal/models"
)

var (
	ErrInvalidTemplate = errors.New("invalid presentation template")
	ErrNoLayouts       = errors.New("presentation needs a title and a content layout")
	ErrUnsupportedKind = errors.New("unsupported document type")
)

// Document is an assembled file ready to be streamed to a client.
type Document struct {
	Data     []byte
	MIMEType string
	Filename string
}

// Assembler renders documents. It holds no per-call state and is safe for
// concurrent use.
type Assembler struct {
	images    ImageFetcher
	templates *TemplateStore
	now       func() time.Time
}

func NewAssembler(images ImageFetcher, templates *TemplateStore) *Assembler {
	if images == nil {
		images = NewHTTPImageFetcher(nil, 0, 0, 0)
	}
	return &Assembler{images: images, templates: templates, now: time.Now}
}

// Assemble renders kind ("word" or "powerpoint") and names the file after
// the title.
func (a *Assembler) Assemble(ctx context.Context, kind, title string, sections []models.SectionInput, templateID string) (*Document, error) {
	switch kind {
	case models.DocumentTypeWord:
		data, err := a.AssembleWordDocument(ctx, title, sections)
		if err != nil {
			return nil, err
		}
		return &Document{Data: data, MIMEType: models.MIMETypeWord, Filename: helper.SafeFilename(title, ".docx")}, nil

	case models.DocumentTypePowerPoint:
		if templateID == "" {
			templateID = models.DefaultTemplateID
		}
		data, err := a.AssembleSlideDeck(ctx, title, sections, templateID)
		if err != nil {
			return nil, err
		}
		return &Document{Data: data, MIMEType: models.MIMETypePowerPoint, Filename: helper.SafeFilename(title, ".pptx")}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, kind)
}
