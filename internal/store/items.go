// ABOUTME: Thread item content kinds and their JSON encoding
// ABOUTME: ItemContent is a closed set of six payload types keyed by ItemKind

package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// ItemKind tags the variant of a thread item
type ItemKind string

const (
	KindMessage    ItemKind = "message"
	KindToolCall   ItemKind = "tool_call"
	KindTask       ItemKind = "task"
	KindWorkflow   ItemKind = "workflow"
	KindAttachment ItemKind = "attachment"
	KindWidget     ItemKind = "widget"
)

var kindPrefixes = map[ItemKind]string{
	KindMessage:    "msg",
	KindToolCall:   "tool",
	KindTask:       "task",
	KindWorkflow:   "work",
	KindAttachment: "att",
	KindWidget:     "wdg",
}

// Prefix returns the id prefix for the kind. Unknown kinds use "item".
func (k ItemKind) Prefix() string {
	if p, ok := kindPrefixes[k]; ok {
		return p
	}
	return "item"
}

// Valid reports whether k is one of the known kinds
func (k ItemKind) Valid() bool {
	switch k {
	case KindMessage, KindToolCall, KindTask, KindWorkflow, KindAttachment, KindWidget:
		return true
	}
	return false
}

// ItemContent is implemented by the six payload types below.
type ItemContent interface {
	Kind() ItemKind
}

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// MessageContent is a chat message from the user or the assistant
type MessageContent struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// ToolCallContent records a tool invocation and, once known, its output
type ToolCallContent struct {
	Name      string          `json:"name"`
	CallID    string          `json:"call_id"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Output    json.RawMessage `json:"output,omitempty"`
	Status    string          `json:"status,omitempty"` // pending, completed
}

// TaskContent is a single unit of visible progress
type TaskContent struct {
	Title  string `json:"title"`
	Status string `json:"status,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// WorkflowContent groups tasks into one collapsible step
type WorkflowContent struct {
	Summary  string        `json:"summary"`
	Tasks    []TaskContent `json:"tasks,omitempty"`
	Expanded bool          `json:"expanded,omitempty"`
}

// AttachmentContent references an Attachment stored separately
type AttachmentContent struct {
	AttachmentID string `json:"attachment_id"`
	Name         string `json:"name,omitempty"`
	MimeType     string `json:"mime_type,omitempty"`
}

// WidgetContent is a rendered snapshot. Widget names the renderer and
// Payload holds the values it displays.
type WidgetContent struct {
	Widget   string          `json:"widget"`
	Payload  json.RawMessage `json:"payload"`
	CopyText string          `json:"copy_text,omitempty"`
}

func (MessageContent) Kind() ItemKind    { return KindMessage }
func (ToolCallContent) Kind() ItemKind   { return KindToolCall }
func (TaskContent) Kind() ItemKind       { return KindTask }
func (WorkflowContent) Kind() ItemKind   { return KindWorkflow }
func (AttachmentContent) Kind() ItemKind { return KindAttachment }
func (WidgetContent) Kind() ItemKind     { return KindWidget }

// encodeContent serializes content for storage
func encodeContent(c ItemContent) (ItemKind, []byte, error) {
	if c == nil {
		return "", nil, fmt.Errorf("item has no content")
	}
	b, err := json.Marshal(c)
	if err != nil {
		return "", nil, fmt.Errorf("encoding %s content: %w", c.Kind(), err)
	}
	return c.Kind(), b, nil
}

// decodeContent is the inverse of encodeContent
func decodeContent(kind ItemKind, raw []byte) (ItemContent, error) {
	var (
		content ItemContent
		err     error
	)
	switch kind {
	case KindMessage:
		var c MessageContent
		err = json.Unmarshal(raw, &c)
		content = c
	case KindToolCall:
		var c ToolCallContent
		err = json.Unmarshal(raw, &c)
		content = c
	case KindTask:
		var c TaskContent
		err = json.Unmarshal(raw, &c)
		content = c
	case KindWorkflow:
		var c WorkflowContent
		err = json.Unmarshal(raw, &c)
		content = c
	case KindAttachment:
		var c AttachmentContent
		err = json.Unmarshal(raw, &c)
		content = c
	case KindWidget:
		var c WidgetContent
		err = json.Unmarshal(raw, &c)
		content = c
	default:
		return nil, fmt.Errorf("unknown item kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s content: %w", kind, err)
	}
	return content, nil
}

// threadItemJSON is the wire shape of a ThreadItem
type threadItemJSON struct {
	ID        string          `json:"id"`
	ThreadID  string          `json:"thread_id"`
	CreatedAt time.Time       `json:"created_at"`
	Type      ItemKind        `json:"type"`
	Content   json.RawMessage `json:"content"`
}

// MarshalJSON writes the item with a "type" discriminator next to its content.
func (i ThreadItem) MarshalJSON() ([]byte, error) {
	kind, raw, err := encodeContent(i.Content)
	if err != nil {
		return nil, err
	}
	return json.Marshal(threadItemJSON{
		ID:        i.ID,
		ThreadID:  i.ThreadID,
		CreatedAt: i.CreatedAt,
		Type:      kind,
		Content:   raw,
	})
}

// UnmarshalJSON reads the shape written by MarshalJSON.
func (i *ThreadItem) UnmarshalJSON(b []byte) error {
	var w threadItemJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	content, err := decodeContent(w.Type, w.Content)
	if err != nil {
		return err
	}
	*i = ThreadItem{ID: w.ID, ThreadID: w.ThreadID, CreatedAt: w.CreatedAt, Content: content}
	return nil
}

// cloneItem returns a copy that shares no mutable slices with item
func cloneItem(item *ThreadItem) (*ThreadItem, error) {
	kind, raw, err := encodeContent(item.Content)
	if err != nil {
		return nil, err
	}
	content, err := decodeContent(kind, raw)
	if err != nil {
		return nil, err
	}
	c := *item
	c.Content = content
	return &c, nil
}
