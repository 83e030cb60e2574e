package main

import (
	"encoding/json"
	"fmt"
	"os"

	"documate/internal/config"
	"documate/internal/document"
	"documate/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// exportInput is the offline description of a project to render.
type exportInput struct {
	Title        string                `json:"title"`
	DocumentType string                `json:"document_type"`
	Template     string                `json:"ppt_template"`
	Sections     []models.SectionInput `json:"sections"`
}

func exportCmd(cfg *config.Config) *cobra.Command {
	var input, kind, template, out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Render a .docx or .pptx from a JSON project description",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(input)
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}
			var in exportInput
			if err := json.Unmarshal(data, &in); err != nil {
				return fmt.Errorf("failed to parse input: %w", err)
			}
			if kind != "" {
				in.DocumentType = kind
			}
			if template != "" {
				in.Template = template
			}

			images := document.NewHTTPImageFetcher(nil, cfg.Export.ImageTimeout, cfg.Export.ImageMaxBytes, cfg.Export.ImageMaxPixels)
			assembler := document.NewAssembler(images, document.NewTemplateStore(cfg.Export.TemplatesDir))
			doc, err := assembler.Assemble(cmd.Context(), in.DocumentType, in.Title, in.Sections, in.Template)
			if err != nil {
				return fmt.Errorf("document generation failed: %w", err)
			}

			if out == "" {
				out = doc.Filename
			}
			if err := os.WriteFile(out, doc.Data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}
			log.Info().Str("file", out).Int("bytes", len(doc.Data)).Int("sections", len(in.Sections)).Msg("Document written")
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "JSON file with title, document_type and sections")
	cmd.Flags().StringVarP(&kind, "type", "t", "", "override the document type: word|powerpoint")
	cmd.Flags().StringVar(&template, "template", "", "slide template id")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: derived from the title)")
	cmd.MarkFlagRequired("input")
	return cmd
}
