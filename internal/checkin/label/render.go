// Package label renders printable child tags, parent tickets and alert
// labels for an attendance from the active template of each type.
package label

import (
	"regexp"
	"strings"

	"shepherd/internal/checkin/models"
)

var mergeField = regexp.MustCompile(`\{\{\s*([A-Za-z][A-Za-z0-9_]*)\s*\}\}`)

// MergeData carries the values a template may reference. Empty fields
// render as empty strings.
type MergeData struct {
	PersonName   string
	FirstName    string
	LastName     string
	NickName     string
	GroupName    string
	LocationName string
	ScheduleName string
	SecurityCode string
	Date         string
	AlertNote    string
}

func (d MergeData) lookup(field string) string {
	switch field {
	case "PersonName":
		return d.PersonName
	case "FirstName":
		return d.FirstName
	case "LastName":
		return d.LastName
	case "NickName":
		return d.NickName
	case "GroupName":
		return d.GroupName
	case "LocationName":
		return d.LocationName
	case "ScheduleName":
		return d.ScheduleName
	case "SecurityCode":
		return d.SecurityCode
	case "Date":
		return d.Date
	case "AlertNote":
		return d.AlertNote
	default:
		return ""
	}
}

// zplControl strips characters that would start a new ZPL command inside a
// field value.
var zplControl = strings.NewReplacer("^", "", "~", "")

// Render substitutes data into t. It has no side effects.
func Render(t *models.LabelTemplate, data MergeData) models.LabelArtifact {
	content := mergeField.ReplaceAllStringFunc(t.Content, func(match string) string {
		value := data.lookup(mergeField.FindStringSubmatch(match)[1])
		if t.Format == models.LabelFormatZPL {
			value = zplControl.Replace(value)
		}
		return value
	})
	return models.LabelArtifact{Type: t.Type, Format: t.Format, Content: content}
}
