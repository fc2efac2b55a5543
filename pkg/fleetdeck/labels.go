package fleetdeck

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/randalmurphal/fleetdeck/pkg/fleetdeck/record"
)

// Labels are the display strings the widgets use.
type Labels struct {
	Details           string
	Reviews           string
	AddReview         string
	FullDetails       string
	PleaseSelectABoat string
}

// DefaultLabels returns the English labels.
func DefaultLabels() Labels {
	return Labels{
		Details:           "Details",
		Reviews:           "Reviews",
		AddReview:         "Add Review",
		FullDetails:       "Full Details",
		PleaseSelectABoat: "Please select a boat to view details.",
	}
}

// ColumnType is how a column's values are displayed.
type ColumnType string

// Column types.
const (
	ColumnText     ColumnType = "text"
	ColumnNumber   ColumnType = "number"
	ColumnCurrency ColumnType = "currency"
)

// Column describes one column of the search results table.
type Column struct {
	Label    string
	Field    string
	Type     ColumnType
	Editable bool
}

// Format renders r's value for this column.
func (c Column) Format(r record.Record) string {
	switch c.Field {
	case record.FieldName:
		return r.Name
	case record.FieldLength:
		return formatNumber(r.Length)
	case record.FieldPrice:
		return record.FormatPrice(r.Price)
	case record.FieldDescription:
		return r.Description
	default:
		if v, ok := record.FieldValue(r, c.Field); ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
		return ""
	}
}

// Columns are the search results columns, all editable inline.
var Columns = []Column{
	{Label: "Name", Field: record.FieldName, Type: ColumnText, Editable: true},
	{Label: "Length", Field: record.FieldLength, Type: ColumnNumber, Editable: true},
	{Label: "Price", Field: record.FieldPrice, Type: ColumnCurrency, Editable: true},
	{Label: "Description", Field: record.FieldDescription, Type: ColumnText, Editable: true},
}

func formatNumber(v float64) string {
	return message.NewPrinter(language.AmericanEnglish).Sprint(number.Decimal(v, number.MaxFractionDigits(2)))
}
