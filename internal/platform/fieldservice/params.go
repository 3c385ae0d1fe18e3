package fieldservice

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Params collects search filters using the remote's query conventions.
type Params struct {
	v url.Values
}

// NewParams returns an empty filter set.
func NewParams() Params {
	return Params{v: url.Values{}}
}

func (p Params) ensure() Params {
	if p.v == nil {
		p.v = url.Values{}
	}
	return p
}

// Set assigns a literal value.
func (p Params) Set(key, value string) Params {
	p = p.ensure()
	p.v.Set(key, value)
	return p
}

// SetInt assigns an integer value.
func (p Params) SetInt(key string, value int) Params {
	return p.Set(key, strconv.Itoa(value))
}

// SetInts assigns a list filter rendered as a JSON array.
func (p Params) SetInts(key string, values []int) Params {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, strconv.Itoa(v))
	}
	return p.Set(key, "["+strings.Join(parts, ",")+"]")
}

// SetStrings assigns a list filter of string values.
func (p Params) SetStrings(key string, values []string) Params {
	encoded, _ := json.Marshal(values)
	return p.Set(key, string(encoded))
}

// SetDateRange assigns an inclusive date range filter.
func (p Params) SetDateRange(key string, from, to time.Time) Params {
	filter := map[string]any{
		"operator": "BETWEEN",
		"value":    []string{FormatDate(from), FormatDate(to)},
	}
	encoded, _ := json.Marshal(filter)
	return p.Set(key, string(encoded))
}

// SetDateFrom assigns an open ended lower bound date filter.
func (p Params) SetDateFrom(key string, from time.Time) Params {
	filter := map[string]any{
		"operator": ">=",
		"value":    FormatDate(from),
	}
	encoded, _ := json.Marshal(filter)
	return p.Set(key, string(encoded))
}

// Page sets limit/offset from a 1-based page number.
func (p Params) Page(page, perPage int) Params {
	if perPage <= 0 {
		return p
	}
	if page < 1 {
		page = 1
	}
	p = p.SetInt("limit", perPage)
	return p.SetInt("offset", (page-1)*perPage)
}

// Get returns the raw value of key.
func (p Params) Get(key string) string {
	if p.v == nil {
		return ""
	}
	return p.v.Get(key)
}

func (p Params) values() url.Values {
	out := url.Values{}
	for k, vs := range p.v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}
