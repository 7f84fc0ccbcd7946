package label

import (
	"context"
	"embed"
	"errors"

	"shepherd/internal/checkin/models"
	"shepherd/pkg/platform/sentinel"
)

//go:embed templates/*.txt
var defaultTemplates embed.FS

var defaultFiles = map[models.LabelType]string{
	models.LabelChildTag:     "templates/child_tag.txt",
	models.LabelParentTicket: "templates/parent_ticket.txt",
	models.LabelAlert:        "templates/alert.txt",
}

// SeedDefaults publishes a plain-text template for every label type that has
// no active template yet. It returns how many were published.
func (g *Generator) SeedDefaults(ctx context.Context) (int, error) {
	published := 0
	for _, labelType := range []models.LabelType{models.LabelChildTag, models.LabelParentTicket, models.LabelAlert} {
		_, err := g.templates.ActiveByType(ctx, labelType)
		if err == nil {
			continue
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return published, err
		}
		content, err := defaultTemplates.ReadFile(defaultFiles[labelType])
		if err != nil {
			return published, err
		}
		if _, err := g.Publish(ctx, PublishRequest{
			Name:    "default " + string(labelType),
			Type:    labelType,
			Format:  models.LabelFormatText,
			Content: string(content),
		}); err != nil {
			return published, err
		}
		published++
	}
	return published, nil
}
