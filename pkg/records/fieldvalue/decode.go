package fieldvalue

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006",
}

func decodeString(f Field, raw any) (Value, error) {
	s, err := scalarString(raw)
	if err != nil {
		return nil, err
	}
	return New(f.Kind, "", s), nil
}

func decodeReference(f Field, raw any) (Value, error) {
	s, err := scalarString(raw)
	if err != nil {
		return nil, err
	}
	return New(f.Kind, "", strings.TrimSpace(s)), nil
}

// decodeRelationship keeps the query text of a relationship field. Lists of
// identifiers are joined with commas.
func decodeRelationship(f Field, raw any) (Value, error) {
	var parts []string
	switch v := raw.(type) {
	case []string:
		parts = v
	case []any:
		for _, item := range v {
			s, err := scalarString(item)
			if err != nil {
				return nil, err
			}
			parts = append(parts, s)
		}
	default:
		s, err := scalarString(v)
		if err != nil {
			return nil, err
		}
		return New(KindRelationship, "", s), nil
	}
	return New(KindRelationship, "", strings.Join(parts, ",")), nil
}

// decodeCategory accepts a comma separated string, a slice of scalars or a
// single scalar. A nil or empty input yields an empty, non-nil token list.
func decodeCategory(f Field, raw any) (Value, error) {
	tokens := []string{}
	switch v := raw.(type) {
	case nil:
	case string:
		tokens = splitTokens(v)
	case []string:
		for _, s := range v {
			tokens = append(tokens, splitTokens(s)...)
		}
	case []any:
		for _, item := range v {
			s, err := scalarString(item)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, splitTokens(s)...)
		}
	default:
		s, err := scalarString(v)
		if err != nil {
			return nil, err
		}
		tokens = splitTokens(s)
	}
	return New(KindCategory, "", tokens), nil
}

func decodeGeneric(f Field, raw any) (Value, error) {
	dt := f.DataType
	if dt == "" {
		dt = DataTypeText
	}
	switch dt {
	case DataTypeText:
		s, err := scalarString(raw)
		if err != nil {
			return nil, err
		}
		return New(KindGeneric, dt, s), nil
	case DataTypeInteger:
		i, err := toInt64(raw)
		if err != nil {
			return nil, err
		}
		return New(KindGeneric, dt, i), nil
	case DataTypeFloat:
		fl, err := toFloat64(raw)
		if err != nil {
			return nil, err
		}
		return New(KindGeneric, dt, fl), nil
	case DataTypeBool:
		b, err := toBool(raw)
		if err != nil {
			return nil, err
		}
		return New(KindGeneric, dt, b), nil
	case DataTypeDate:
		t, err := toTime(raw)
		if err != nil {
			return nil, err
		}
		return New(KindGeneric, dt, t), nil
	}
	return nil, fmt.Errorf("unknown data type %q", dt)
}

func splitTokens(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func scalarString(raw any) (string, error) {
	switch v := raw.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case fmt.Stringer:
		return v.String(), nil
	}
	return "", fmt.Errorf("%w: %T", ErrUnsupportedInput, raw)
}

func toInt64(raw any) (int64, error) {
	switch v := raw.(type) {
	case nil:
		return 0, nil
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int64", v)
		}
		return int64(v), nil
	case float32:
		return integral(float64(v))
	case float64:
		return integral(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, nil
		}
		f, err := v.Float64()
		if err != nil {
			return 0, err
		}
		return integral(f)
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, nil
		}
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not an integer", v)
		}
		return integral(f)
	}
	return 0, fmt.Errorf("%w: %T", ErrUnsupportedInput, raw)
}

func integral(f float64) (int64, error) {
	if f != math.Trunc(f) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("%v is not an integer", f)
	}
	return int64(f), nil
}

// toFloat64 rejects NaN and infinities, which have no JSON encoding.
func toFloat64(raw any) (float64, error) {
	f, err := floatValue(raw)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%v is not a finite number", raw)
	}
	return f, nil
}

func floatValue(raw any) (float64, error) {
	switch v := raw.(type) {
	case nil:
		return 0, nil
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", v)
		}
		return f, nil
	}
	return 0, fmt.Errorf("%w: %T", ErrUnsupportedInput, raw)
}

func toBool(raw any) (bool, error) {
	switch v := raw.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case int:
		return v != 0, nil
	case int64:
		return v != 0, nil
	case float64:
		return v != 0, nil
	case json.Number:
		return v.String() != "0", nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "", "false", "0", "no", "off":
			return false, nil
		case "true", "1", "yes", "on":
			return true, nil
		}
		return false, fmt.Errorf("%q is not a boolean", v)
	}
	return false, fmt.Errorf("%w: %T", ErrUnsupportedInput, raw)
}

// toTime accepts time values, the layouts in dateLayouts and epoch
// milliseconds. Results are normalized to UTC.
func toTime(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return v.UTC(), nil
	case *time.Time:
		if v == nil {
			return time.Time{}, nil
		}
		return v.UTC(), nil
	case int64:
		return time.UnixMilli(v).UTC(), nil
	case int:
		return time.UnixMilli(int64(v)).UTC(), nil
	case float64:
		ms, err := integral(v)
		if err != nil {
			return time.Time{}, err
		}
		return time.UnixMilli(ms).UTC(), nil
	case json.Number:
		ms, err := v.Int64()
		if err != nil {
			return time.Time{}, fmt.Errorf("%q is not epoch milliseconds", v)
		}
		return time.UnixMilli(ms).UTC(), nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return time.Time{}, nil
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), nil
			}
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC(), nil
		}
		return time.Time{}, fmt.Errorf("%q is not a date", v)
	}
	return time.Time{}, fmt.Errorf("%w: %T", ErrUnsupportedInput, raw)
}
