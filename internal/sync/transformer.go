package sync

import (
	"strconv"
	"time"

	"github.com/tributary-data/tributary/pkg/models"
)

// dateLayouts are tried in order when normalizing date columns.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Transformer applies row-level transformations: category-code
// substitution and date normalization. It holds no connections and no
// mutable state; Apply is a pure function of its inputs.
type Transformer struct {
	dateColumns     map[string]bool
	categoryMapping map[int]string
}

// NewTransformer creates a transformer from configured rules.
func NewTransformer(dateColumns []string, categoryMapping map[int]string) *Transformer {
	dates := make(map[string]bool, len(dateColumns))
	for _, col := range dateColumns {
		dates[col] = true
	}
	return &Transformer{
		dateColumns:     dates,
		categoryMapping: categoryMapping,
	}
}

// Apply transforms a single record in place and returns it. Category
// substitution only applies to the products table; codes absent from
// the lookup pass through unchanged. Date values that fail to parse
// become nil rather than failing the sync.
func (t *Transformer) Apply(table string, record models.Record) models.Record {
	for column := range t.dateColumns {
		value, ok := record[column]
		if !ok {
			continue
		}
		record[column] = normalizeDate(value)
	}

	if table == "products" {
		if code, ok := record["category_id"]; ok {
			if label, found := t.lookupCategory(code); found {
				record["category_id"] = label
			}
		}
	}

	return record
}

// lookupCategory resolves a category code to its label. Drivers deliver
// numeric codes as int, int64 or strings depending on the source, so
// the lookup normalizes before indexing.
func (t *Transformer) lookupCategory(code interface{}) (string, bool) {
	var key int
	switch v := code.(type) {
	case int:
		key = v
	case int32:
		key = int(v)
	case int64:
		key = int(v)
	case uint64:
		key = int(v)
	case float64:
		key = int(v)
	case string:
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return "", false
		}
		key = parsed
	default:
		return "", false
	}

	label, ok := t.categoryMapping[key]
	return label, ok
}

// normalizeDate coerces a value to time.Time, or nil when it cannot be
// parsed.
func normalizeDate(value interface{}) interface{} {
	switch v := value.(type) {
	case nil:
		return nil
	case time.Time:
		return v
	case string:
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, v); err == nil {
				return parsed
			}
		}
		return nil
	case []byte:
		return normalizeDate(string(v))
	default:
		return nil
	}
}
