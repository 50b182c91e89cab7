package parser

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/datazip-inc/kvrdd/types"
	"github.com/goccy/go-json"
)

const jsonContentType = "application/json"

// Mapping turns a decoded record into an object: the key comes from
// KeyField, the indexes from IndexFields and the value is the whole record
// encoded as json
type Mapping struct {
	Bucket      string
	KeyField    string
	IndexFields []string
}

func (m *Mapping) Object(record map[string]any) (types.Object, error) {
	rawKey, found := record[m.KeyField]
	if !found || rawKey == nil {
		return types.Object{}, fmt.Errorf("record has no key field[%s]", m.KeyField)
	}
	key := strings.TrimSpace(fmt.Sprint(rawKey))
	if key == "" {
		return types.Object{}, fmt.Errorf("record has an empty key field[%s]", m.KeyField)
	}

	indexes := make(map[string]int64, len(m.IndexFields))
	for _, field := range m.IndexFields {
		raw, found := record[field]
		if !found || raw == nil {
			continue
		}
		// empty csv cells carry no index
		if text, ok := raw.(string); ok && strings.TrimSpace(text) == "" {
			continue
		}
		value, err := toInt64(raw)
		if err != nil {
			return types.Object{}, fmt.Errorf("record[%s]: index field[%s]: %s", key, field, err)
		}
		indexes[field] = value
	}

	value, err := json.Marshal(record)
	if err != nil {
		return types.Object{}, fmt.Errorf("record[%s]: failed to encode value: %s", key, err)
	}

	return types.Object{
		Bucket:       m.Bucket,
		Key:          key,
		ContentType:  jsonContentType,
		Value:        value,
		Indexes:      indexes,
		LastModified: time.Now().UTC(),
	}, nil
}

func toInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		if v != math.Trunc(v) || v >= math.MaxInt64 || v < math.MinInt64 {
			return 0, fmt.Errorf("%v is not an integer", v)
		}
		return int64(v), nil
	case json.Number:
		return v.Int64()
	case string:
		return strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	default:
		return 0, fmt.Errorf("unsupported index value type %T", value)
	}
}
