package domain

import "encoding/json"

// LocalizedString is a multi-lingual string keyed by locale code. The API
// accepts either an object ({"en": "...", "de": "..."}) or a plain string,
// which is treated as the "en" value.
type LocalizedString map[string]string

func (l LocalizedString) Any() string {
	if v, ok := l["en"]; ok && v != "" {
		return v
	}
	for _, v := range l {
		if v != "" {
			return v
		}
	}
	return ""
}

func (l *LocalizedString) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = LocalizedString{"en": s}
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*l = m
	return nil
}
