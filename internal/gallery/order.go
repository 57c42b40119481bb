package gallery

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/starford/galdr/internal/models"
)

// Comparator reports whether a sorts before b. Assembly applies it with a
// stable sort over folder-name order, so items it considers equal keep that
// order.
type Comparator func(a, b *models.Item) bool

// ByNumericID orders items by the numeric value of their id. Ids that are
// not finite numbers ("NaN", "Inf" included) sort after all numeric ids.
func ByNumericID(a, b *models.Item) bool {
	na, okA := numericID(a.ID)
	nb, okB := numericID(b.ID)
	switch {
	case okA && okB:
		return na < nb
	case okA:
		return true
	default:
		return false
	}
}

// ByLexicalID orders items by plain string comparison of their id.
func ByLexicalID(a, b *models.Item) bool {
	return a.ID < b.ID
}

// InsertionOrder keeps folder-name order.
func InsertionOrder(_, _ *models.Item) bool {
	return false
}

// Order names accepted by ParseOrder.
const (
	OrderNumeric   = "numeric"
	OrderLexical   = "lexical"
	OrderInsertion = "insertion"
)

// ParseOrder maps a configured order name to its comparator.
func ParseOrder(name string) (Comparator, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", OrderNumeric:
		return ByNumericID, nil
	case OrderLexical:
		return ByLexicalID, nil
	case OrderInsertion:
		return InsertionOrder, nil
	default:
		return nil, fmt.Errorf("gallery: unknown order %q", name)
	}
}

func numericID(id string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(id), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
