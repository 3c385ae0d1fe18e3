package httpx

import (
	"encoding/json"
	"net/http"
)

// Resource is a JSON:API resource object.
type Resource struct {
	Type          string                  `json:"type"`
	ID            string                  `json:"id"`
	Attributes    any                     `json:"attributes,omitempty"`
	Relationships map[string]Relationship `json:"relationships,omitempty"`
}

// Relationship links a resource to related resource identifiers.
type Relationship struct {
	Data any `json:"data"`
}

// Identifier is a resource linkage entry.
type Identifier struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// ToOne builds a to-one relationship.
func ToOne(typ, id string) Relationship {
	if id == "" {
		return Relationship{Data: nil}
	}
	return Relationship{Data: Identifier{Type: typ, ID: id}}
}

// ToMany builds a to-many relationship; an empty list encodes as [].
func ToMany(typ string, ids ...string) Relationship {
	data := make([]Identifier, 0, len(ids))
	for _, id := range ids {
		data = append(data, Identifier{Type: typ, ID: id})
	}
	return Relationship{Data: data}
}

// Document is a top-level JSON:API success document.
type Document struct {
	Data  any               `json:"data"`
	Meta  map[string]any    `json:"meta,omitempty"`
	Links map[string]string `json:"links,omitempty"`
}

// One wraps a single resource.
func One(resource Resource) Document {
	return Document{Data: resource}
}

// Many wraps a resource collection; nil becomes [].
func Many(resources []Resource) Document {
	if resources == nil {
		resources = []Resource{}
	}
	return Document{Data: resources}
}

// WithMeta returns a copy of d with an added meta member.
func (d Document) WithMeta(key string, value any) Document {
	meta := make(map[string]any, len(d.Meta)+1)
	for k, v := range d.Meta {
		meta[k] = v
	}
	meta[key] = value
	d.Meta = meta
	return d
}

// WithLinks returns a copy of d with links merged in; empty values are skipped.
func (d Document) WithLinks(links map[string]string) Document {
	merged := make(map[string]string, len(d.Links)+len(links))
	for k, v := range d.Links {
		merged[k] = v
	}
	for k, v := range links {
		if v != "" {
			merged[k] = v
		}
	}
	if len(merged) > 0 {
		d.Links = merged
	}
	return d
}

// WriteDocument encodes doc with the given status.
func WriteDocument(w http.ResponseWriter, status int, doc Document) {
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(doc)
}

// WriteNoContent answers 204.
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
