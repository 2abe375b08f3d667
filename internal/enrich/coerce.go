package enrich

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/amishk599/jobscout/internal/model"
)

// Coerce converts a raw model answer into the Go value stored for type t:
// bool for boolean fields, int16 for smallint fields. Errors wrap
// model.ErrUnparseable.
func Coerce(t model.FieldType, answer string) (any, error) {
	switch t {
	case model.FieldBoolean:
		return coerceBool(answer)
	case model.FieldSmallint:
		return coerceSmallint(answer)
	default:
		return nil, fmt.Errorf("unknown field type %q: %w", t, model.ErrUnparseable)
	}
}

// coerceBool is true only for a bare "yes"; surrounding punctuation such
// as "Yes." is ignored.
func coerceBool(answer string) (bool, error) {
	s := strings.ToLower(strings.TrimSpace(answer))
	if s == "" {
		return false, fmt.Errorf("empty answer: %w", model.ErrUnparseable)
	}
	return strings.Trim(s, ".!?\"'") == "yes", nil
}

// coerceSmallint parses the first whitespace-delimited token as a float,
// truncates it toward zero and requires the result to fit a smallint.
func coerceSmallint(answer string) (int16, error) {
	tokens := strings.Fields(answer)
	if len(tokens) == 0 {
		return 0, fmt.Errorf("empty answer: %w", model.ErrUnparseable)
	}
	tok := strings.TrimRight(tokens[0], ",;:")
	f, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, fmt.Errorf("token %q is not a number: %w", tok, model.ErrUnparseable)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("token %q is not finite: %w", tok, model.ErrUnparseable)
	}
	v := math.Trunc(f)
	if v < math.MinInt16 || v > math.MaxInt16 {
		return 0, fmt.Errorf("value %v out of smallint range: %w", v, model.ErrUnparseable)
	}
	return int16(v), nil
}
