package pagination

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-json"
)

// ItemsKey is the envelope key holding the record sequence.
const ItemsKey = "items"

// Record is one semi-structured item of a collection. Numbers are kept as
// json.Number so that large identifiers survive decoding.
type Record map[string]any

// BodyKind tells which shape a page body had.
type BodyKind int

const (
	// BodyList is a bare JSON array of records.
	BodyList BodyKind = iota
	// BodyEnvelope is an object holding the records under ItemsKey plus metadata.
	BodyEnvelope
)

func (k BodyKind) String() string {
	switch k {
	case BodyList:
		return "list"
	case BodyEnvelope:
		return "envelope"
	default:
		return fmt.Sprintf("BodyKind(%d)", int(k))
	}
}

// Body is a page body resolved into one of its two shapes.
type Body struct {
	Kind  BodyKind
	Items []Record

	// Meta holds the envelope's other keys (total_count, incomplete_results, ...).
	// Always nil for BodyList.
	Meta map[string]any
}

var (
	errNotStructured = errors.New("body is not a JSON array or object")
	errNoItems       = errors.New(`object body has no "items" key`)
	errItemsNotList  = errors.New(`"items" is not an array`)
	errTrailingData  = errors.New("unexpected data after JSON value")
)

// ParseBody decodes a page body into a Body. Any body that is not valid JSON,
// or is not an array of objects / an envelope with an array of objects under
// "items", is rejected.
func ParseBody(data []byte) (*Body, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty body: %w", err)
		}
		return nil, fmt.Errorf("decode body: %w", err)
	}
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, errTrailingData
	}

	switch v := raw.(type) {
	case []any:
		items, err := toRecords(v)
		if err != nil {
			return nil, err
		}
		return &Body{Kind: BodyList, Items: items}, nil

	case map[string]any:
		rawItems, ok := v[ItemsKey]
		if !ok {
			return nil, errNoItems
		}
		list, ok := rawItems.([]any)
		if !ok {
			return nil, errItemsNotList
		}
		items, err := toRecords(list)
		if err != nil {
			return nil, err
		}
		meta := make(map[string]any, len(v)-1)
		for k, val := range v {
			if k != ItemsKey {
				meta[k] = val
			}
		}
		return &Body{Kind: BodyEnvelope, Items: items, Meta: meta}, nil

	default:
		return nil, errNotStructured
	}
}

func toRecords(list []any) ([]Record, error) {
	out := make([]Record, 0, len(list))
	for i, el := range list {
		obj, ok := el.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("item %d is %T, not an object", i, el)
		}
		out = append(out, Record(obj))
	}
	return out, nil
}
