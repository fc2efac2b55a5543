// Package record defines boat records, the batch EditSet, and the remote
// record service port together with memory, SQLite, and Redis backends.
package record

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Field names as exposed to widgets. Only the editable fields may appear
// in an EditSet.
const (
	FieldID          = "Id"
	FieldName        = "Name"
	FieldBoatType    = "BoatTypeId"
	FieldLength      = "Length__c"
	FieldPrice       = "Price__c"
	FieldDescription = "Description__c"
)

// EditableFields lists the columns a result table allows editing, in
// display order.
var EditableFields = []string{FieldName, FieldLength, FieldPrice, FieldDescription}

// RecordType is the record type name used for navigation.
const RecordType = "Boat__c"

// Record is a single boat.
type Record struct {
	ID          string  `json:"Id" yaml:"id"`
	Name        string  `json:"Name" yaml:"name"`
	BoatTypeID  string  `json:"BoatTypeId" yaml:"boat_type_id"`
	Length      float64 `json:"Length__c" yaml:"length"`
	Price       float64 `json:"Price__c" yaml:"price"`
	Description string  `json:"Description__c" yaml:"description"`
}

// FieldValue returns the value of a named field.
// The second result is false for unknown field names.
func FieldValue(r Record, field string) (any, bool) {
	switch field {
	case FieldID:
		return r.ID, true
	case FieldName:
		return r.Name, true
	case FieldBoatType:
		return r.BoatTypeID, true
	case FieldLength:
		return r.Length, true
	case FieldPrice:
		return r.Price, true
	case FieldDescription:
		return r.Description, true
	default:
		return nil, false
	}
}

// ValidationError reports an edit the record service refused.
type ValidationError struct {
	RecordID string
	Field    string
	Reason   string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("Validation failed: %s on %s: %s", e.Field, e.RecordID, e.Reason)
	}
	return fmt.Sprintf("Validation failed: %s: %s", e.RecordID, e.Reason)
}

// With returns a copy of r with field set to value.
// Values for numeric fields may be numbers or numeric strings; table
// draft values usually arrive as strings.
func (r Record) With(field string, value any) (Record, error) {
	invalid := func(reason string) (Record, error) {
		return r, &ValidationError{RecordID: r.ID, Field: field, Reason: reason}
	}

	switch field {
	case FieldName:
		s, ok := value.(string)
		if !ok {
			return invalid("must be text")
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return invalid("cannot be empty")
		}
		r.Name = s
	case FieldDescription:
		s, ok := value.(string)
		if !ok {
			return invalid("must be text")
		}
		r.Description = s
	case FieldLength, FieldPrice:
		f, err := toFloat(value)
		if err != nil {
			return invalid(err.Error())
		}
		if f < 0 {
			return invalid("cannot be negative")
		}
		if field == FieldLength {
			r.Length = f
		} else {
			r.Price = f
		}
	default:
		return invalid("field is not editable")
	}
	return r, nil
}

func toFloat(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", v)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("unsupported value type %T", value)
	}
}

// FormatPrice renders a Price__c value for display, e.g. "$1,234.50".
func FormatPrice(price float64) string {
	p := message.NewPrinter(language.AmericanEnglish)
	return p.Sprintf("$%v", number.Decimal(price, number.Scale(2)))
}
