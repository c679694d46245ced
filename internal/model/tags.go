package model

import "encoding/json"

// EncodeTags serializes a tag list into the single-column form stored
// on a task. Order is preserved for display; an empty list encodes as
// the empty string.
func EncodeTags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return ""
	}
	return string(data)
}

// DecodeTags is the inverse of EncodeTags.
func DecodeTags(encoded string) []string {
	if encoded == "" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(encoded), &tags); err != nil {
		return nil
	}
	return tags
}
