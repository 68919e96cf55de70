package locale

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Language is an upper-case language code used by the booking widget.
type Language string

const (
	EN Language = "EN"
	LV Language = "LV"
	RU Language = "RU"
)

// Supported lists the widget languages in resolution order after the requested one.
var Supported = []Language{EN, LV, RU}

// ParseLanguage normalizes a language code. Unknown codes report false.
func ParseLanguage(raw string) (Language, bool) {
	lang := Language(strings.ToUpper(strings.TrimSpace(raw)))
	for _, s := range Supported {
		if s == lang {
			return lang, true
		}
	}
	return "", false
}

// Name is a display name that is either a single plain string or a
// per-language mapping. It is decoded once where rows enter the process.
type Name struct {
	plain     string
	localized map[Language]string
}

// Plain wraps an unlocalized string.
func Plain(s string) Name {
	return Name{plain: s}
}

// Localized wraps a per-language mapping. The map is copied.
func Localized(m map[Language]string) Name {
	cp := make(map[Language]string, len(m))
	for k, v := range m {
		cp[Language(strings.ToUpper(string(k)))] = v
	}
	return Name{localized: cp}
}

// IsLocalized reports whether the name carries a per-language mapping.
func (n Name) IsLocalized() bool {
	return n.localized != nil
}

// Translations returns a copy of the per-language mapping, or nil for plain names.
func (n Name) Translations() map[Language]string {
	if n.localized == nil {
		return nil
	}
	cp := make(map[Language]string, len(n.localized))
	for k, v := range n.localized {
		cp[k] = v
	}
	return cp
}

// IsZero reports whether the name has no usable text in any language.
func (n Name) IsZero() bool {
	return n.Resolve(EN) == ""
}

// Resolve picks the display text for lang, then EN, then the first
// language present. It returns "" when nothing is usable.
func (n Name) Resolve(lang Language) string {
	if n.localized == nil {
		return strings.TrimSpace(n.plain)
	}
	if v := strings.TrimSpace(n.localized[lang]); v != "" {
		return v
	}
	if v := strings.TrimSpace(n.localized[EN]); v != "" {
		return v
	}
	for _, l := range Supported {
		if v := strings.TrimSpace(n.localized[l]); v != "" {
			return v
		}
	}
	// unknown codes, in a stable order
	keys := make([]string, 0, len(n.localized))
	for k := range n.localized {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v := strings.TrimSpace(n.localized[Language(k)]); v != "" {
			return v
		}
	}
	return ""
}

// ResolveOr is Resolve with a literal fallback for names with no usable text.
func (n Name) ResolveOr(lang Language, fallback string) string {
	if v := n.Resolve(lang); v != "" {
		return v
	}
	return fallback
}

// Decode interprets a flat string column. Strings holding an encoded JSON
// object become localized names; anything else, including JSON that fails
// to decode, is kept as a plain string.
func Decode(raw string) Name {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return Plain(raw)
	}
	m, err := decodeObject([]byte(trimmed))
	if err != nil {
		return Plain(raw)
	}
	return Name{localized: m}
}

func decodeObject(data []byte) (map[Language]string, error) {
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	out := make(map[Language]string, len(obj))
	for k, v := range obj {
		s, ok := v.(string)
		if !ok {
			continue
		}
		out[Language(strings.ToUpper(strings.TrimSpace(k)))] = s
	}
	return out, nil
}

// Scan implements sql.Scanner so repositories can scan text or jsonb columns directly.
func (n *Name) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*n = Name{}
	case string:
		*n = Decode(v)
	case []byte:
		*n = Decode(string(v))
	case map[string]any:
		out := make(map[Language]string, len(v))
		for k, val := range v {
			if s, ok := val.(string); ok {
				out[Language(strings.ToUpper(k))] = s
			}
		}
		*n = Name{localized: out}
	default:
		return fmt.Errorf("locale: cannot scan %T into Name", src)
	}
	return nil
}

// MarshalJSON encodes plain names as strings and localized names as objects.
func (n Name) MarshalJSON() ([]byte, error) {
	if n.localized != nil {
		return json.Marshal(n.localized)
	}
	return json.Marshal(n.plain)
}

// UnmarshalJSON accepts a string (itself possibly an encoded object), an object, or null.
func (n *Name) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*n = Name{}
		return nil
	case len(data) > 0 && data[0] == '{':
		m, err := decodeObject(data)
		if err != nil {
			return fmt.Errorf("locale: decode name object: %w", err)
		}
		*n = Name{localized: m}
		return nil
	default:
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("locale: decode name: %w", err)
		}
		*n = Decode(s)
		return nil
	}
}
