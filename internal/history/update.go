// Package history defines the update records kept for every document and
// the reverse-apply step used to rewind document content.
package history

import (
	"encoding/json"
	"fmt"
	"time"
)

// OpComponent is one step of a text operation. Pos counts Unicode code
// points. A component carries either Insert or Delete; a component with
// neither (a comment marker, for example) has no effect on the text.
type OpComponent struct {
	Pos    int    `json:"p" yaml:"p"`
	Insert string `json:"i,omitempty" yaml:"i,omitempty"`
	Delete string `json:"d,omitempty" yaml:"d,omitempty"`
}

// IsInsert reports whether the component inserts text.
func (c OpComponent) IsInsert() bool { return c.Insert != "" }

// IsDelete reports whether the component deletes text.
func (c OpComponent) IsDelete() bool { return c.Delete != "" }

// Meta carries the update's authoring metadata. Timestamps are epoch
// milliseconds.
type Meta struct {
	StartTS int64  `json:"start_ts" yaml:"start_ts"`
	EndTS   int64  `json:"end_ts" yaml:"end_ts"`
	UserID  string `json:"user_id,omitempty" yaml:"user_id,omitempty"`
}

// Update is one recorded edit of a document. Version is the document
// version the edit was applied to, so reverse-applying it yields the
// content at Version.
type Update struct {
	DocID   string        `json:"doc_id" yaml:"doc_id"`
	Op      []OpComponent `json:"op" yaml:"op"`
	Version int64         `json:"v" yaml:"v"`
	Meta    Meta          `json:"meta" yaml:"meta"`
}

// Timestamp returns when the update started, or the zero time if unknown.
func (u Update) Timestamp() time.Time {
	if u.Meta.StartTS == 0 {
		return time.Time{}
	}
	return time.UnixMilli(u.Meta.StartTS)
}

// EncodeOp serializes an op for storage.
func EncodeOp(op []OpComponent) (string, error) {
	if op == nil {
		op = []OpComponent{}
	}
	data, err := json.Marshal(op)
	if err != nil {
		return "", fmt.Errorf("encode op: %w", err)
	}
	return string(data), nil
}

// DecodeOp parses a stored op. An empty string decodes to an empty op.
func DecodeOp(s string) ([]OpComponent, error) {
	if s == "" {
		return []OpComponent{}, nil
	}
	var op []OpComponent
	if err := json.Unmarshal([]byte(s), &op); err != nil {
		return nil, fmt.Errorf("decode op: %w", err)
	}
	return op, nil
}
