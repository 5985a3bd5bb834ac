package processing

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedDocument is returned for documents that are neither a JSON
// array nor a JSON object.
var ErrUnsupportedDocument = errors.New("unsupported document")

// Rule rewrites a single object field or array element. It returns the new
// value and whether the entry is kept. Array elements are passed with an
// empty key.
type Rule func(key string, value any) (any, bool)

// Cleaner applies Rules recursively to a decoded JSON document. The zero
// value applies no rules and only de-duplicates news items.
type Cleaner struct {
	Rules []Rule
}

// NewCleaner returns a Cleaner with DefaultRules.
func NewCleaner() *Cleaner {
	return &Cleaner{Rules: DefaultRules()}
}

// DefaultRules drops "_"-prefixed annotation keys and null values, and
// normalizes every string.
func DefaultRules() []Rule {
	return []Rule{DropAnnotations, DropNull, NormalizeStrings}
}

// DropAnnotations removes keys such as "_type" that carry service metadata
// rather than content.
func DropAnnotations(key string, value any) (any, bool) {
	return value, !strings.HasPrefix(key, "_")
}

// DropNull removes null values.
func DropNull(_ string, value any) (any, bool) {
	return value, value != nil
}

// NormalizeStrings runs NormalizeText over string values.
func NormalizeStrings(_ string, value any) (any, bool) {
	if s, ok := value.(string); ok {
		return NormalizeText(s), true
	}
	return value, true
}

// Clean returns a new document; the input is not modified. A top-level
// array is treated as a list of news items, an object carrying a "value"
// array as a search response envelope around one.
func (c *Cleaner) Clean(doc any) (any, error) {
	switch d := doc.(type) {
	case []any:
		return dedupeByURL(c.cleanArray(d)), nil
	case map[string]any:
		out := c.cleanObject(d)
		if items, ok := out["value"].([]any); ok {
			out["value"] = dedupeByURL(items)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: top-level %T", ErrUnsupportedDocument, doc)
	}
}

func (c *Cleaner) cleanValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return c.cleanObject(t)
	case []any:
		return c.cleanArray(t)
	default:
		return v
	}
}

func (c *Cleaner) cleanObject(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		if nv, keep := c.apply(k, c.cleanValue(v)); keep {
			out[k] = nv
		}
	}
	return out
}

// cleanArray also drops objects that the rules emptied, so an item made only
// of annotations does not survive as {}.
func (c *Cleaner) cleanArray(in []any) []any {
	out := make([]any, 0, len(in))
	for _, v := range in {
		cv := c.cleanValue(v)
		if emptied(v, cv) {
			continue
		}
		if nv, keep := c.apply("", cv); keep {
			out = append(out, nv)
		}
	}
	return out
}

func emptied(before, after any) bool {
	in, ok := before.(map[string]any)
	if !ok || len(in) == 0 {
		return false
	}
	out, ok := after.(map[string]any)
	return ok && len(out) == 0
}

func (c *Cleaner) apply(key string, v any) (any, bool) {
	for _, rule := range c.Rules {
		var keep bool
		if v, keep = rule(key, v); !keep {
			return nil, false
		}
	}
	return v, true
}

// dedupeByURL keeps the first object for every "url" value. Entries without
// a string url are always kept.
func dedupeByURL(items []any) []any {
	seen := make(map[string]struct{}, len(items))
	out := make([]any, 0, len(items))
	for _, item := range items {
		if obj, ok := item.(map[string]any); ok {
			if u, ok := obj["url"].(string); ok && u != "" {
				if _, dup := seen[u]; dup {
					continue
				}
				seen[u] = struct{}{}
			}
		}
		out = append(out, item)
	}
	return out
}

// NewsItems returns the news item objects contained in a cleaned document:
// the objects of a top-level array, of an envelope's "value" array, or the
// document itself when it is a single object with a "url".
func NewsItems(doc any) []map[string]any {
	var list []any
	switch d := doc.(type) {
	case []any:
		list = d
	case map[string]any:
		if v, ok := d["value"].([]any); ok {
			list = v
		} else if _, ok := d["url"].(string); ok {
			return []map[string]any{d}
		}
	}

	items := make([]map[string]any, 0, len(list))
	for _, v := range list {
		if obj, ok := v.(map[string]any); ok {
			items = append(items, obj)
		}
	}
	return items
}
