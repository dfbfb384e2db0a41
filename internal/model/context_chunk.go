package model

import "fmt"

const (
	SourceResume = "resume"
	SourceJob    = "job"
)

const (
	MetaOwnerID = "owner_id"
	MetaSource  = "source"
	MetaIndex   = "idx"
)

// ContextChunk is one retrieved piece of a user's resume or job text.
type ContextChunk struct {
	ID       string                 `json:"id"`
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata"`
	Distance *float64               `json:"distance"`
}

func (c ContextChunk) OwnerID() string {
	return MetaString(c.Metadata, MetaOwnerID)
}

func (c ContextChunk) Source() string {
	return MetaString(c.Metadata, MetaSource)
}

// MetaString reads a metadata value as a string. Numbers decoded from JSON
// are formatted without a fractional part when they are whole.
func MetaString(meta map[string]interface{}, key string) string {
	if meta == nil {
		return ""
	}
	switch v := meta[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%v", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
