package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ItemsShape is the detected shape of a body.items value.
type ItemsShape int

const (
	ShapeAbsent ItemsShape = iota
	ShapeArray
	ShapeWrappedArray
	ShapeWrappedObject
	ShapeUnknown
)

func (s ItemsShape) String() string {
	switch s {
	case ShapeAbsent:
		return "absent"
	case ShapeArray:
		return "array"
	case ShapeWrappedArray:
		return "item-array"
	case ShapeWrappedObject:
		return "item-object"
	default:
		return "unknown"
	}
}

// DetectShape classifies raw without decoding the item contents.
// items may be a bare array, an object whose "item" key holds an object or an
// array, or null/""/missing.
func DetectShape(raw json.RawMessage) (ItemsShape, json.RawMessage) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ShapeAbsent, nil
	}

	switch raw[0] {
	case '[':
		return ShapeArray, raw
	case 'n':
		return ShapeAbsent, nil
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && strings.TrimSpace(s) == "" {
			return ShapeAbsent, nil
		}
		return ShapeUnknown, nil
	case '{':
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(raw, &wrapper); err != nil {
			return ShapeUnknown, nil
		}
		inner, ok := wrapper["item"]
		if !ok {
			return ShapeAbsent, nil
		}
		inner = bytes.TrimSpace(inner)
		if len(inner) == 0 {
			return ShapeAbsent, nil
		}
		switch inner[0] {
		case '[':
			return ShapeWrappedArray, inner
		case '{':
			return ShapeWrappedObject, inner
		case 'n':
			return ShapeAbsent, nil
		}
	}
	return ShapeUnknown, nil
}

// NormalizeItems turns a body.items value of any supported shape into a flat
// item list. Absence yields an empty list and no error; an error is returned
// only when a recognized shape holds content that does not decode.
func NormalizeItems(raw json.RawMessage) ([]RawItem, ItemsShape, error) {
	shape, payload := DetectShape(raw)

	switch shape {
	case ShapeArray, ShapeWrappedArray:
		var items []RawItem
		if err := json.Unmarshal(payload, &items); err != nil {
			return nil, shape, fmt.Errorf("registry: decode %s items: %w", shape, err)
		}
		return items, shape, nil
	case ShapeWrappedObject:
		var item RawItem
		if err := json.Unmarshal(payload, &item); err != nil {
			return nil, shape, fmt.Errorf("registry: decode %s items: %w", shape, err)
		}
		return []RawItem{item}, shape, nil
	default:
		return []RawItem{}, shape, nil
	}
}

// DecodePage parses a full registry response body.
func DecodePage(body []byte) (*Page, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("registry: decode envelope: %w", err)
	}

	header := env.Response.Header
	b := env.Response.Body
	page := &Page{
		ResultCode: header.ResultCode.Value,
		ResultMsg:  header.ResultMsg.Value,
	}
	page.PageNo, _ = b.PageNo.Int()
	page.NumOfRows, _ = b.NumOfRows.Int()
	page.TotalCount, _ = b.TotalCount.Int()

	if !page.Success() {
		page.Items = []RawItem{}
		return page, nil
	}

	items, _, err := NormalizeItems(b.Items)
	if err != nil {
		return nil, err
	}
	page.Items = items
	return page, nil
}
