package fakestore

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// RawProduct is a decoded /products/{id} payload. It is kept as a loose map
// so that odd field types degrade to zero values instead of failing decode.
//
//	{"id":1,"title":"...","price":109.95,"description":"...","category":"...",
//	 "image":"https://...","rating":{"rate":3.9,"count":120}}
type RawProduct map[string]interface{}

func decodeRawProduct(body []byte) (RawProduct, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var raw RawProduct
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// valid reports whether the payload carries the minimum fields we need. The
// title is checked after normalization, so markup-only titles are rejected.
func (r RawProduct) valid() bool {
	return r.intField("id") > 0 && SanitizeText(r.stringField("title")) != ""
}

func (r RawProduct) rating() RawProduct {
	if m, ok := r["rating"].(map[string]interface{}); ok {
		return RawProduct(m)
	}
	return RawProduct{}
}

func (r RawProduct) stringField(key string) string {
	switch v := r[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

func (r RawProduct) floatField(key string) float64 {
	var f float64
	switch v := r[key].(type) {
	case json.Number:
		f, _ = v.Float64()
	case float64:
		f = v
	case string:
		f, _ = strconv.ParseFloat(strings.TrimSpace(v), 64)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// intField truncates toward zero and drops the sign.
func (r RawProduct) intField(key string) int {
	f := math.Abs(r.floatField(key))
	if f > math.MaxInt32 {
		return 0
	}
	return int(f)
}
