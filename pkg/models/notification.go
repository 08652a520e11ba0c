package models

import "encoding/json"

// Notification types carried on the outbound notify stream.
const (
	NotifyTypeReminder          = "reminder"
	NotifyTypeEventReprompt     = "event_reprompt"
	NotifyTypeImageTagResult    = "image_tag_result"
	NotifyTypeIntentResult      = "intent_result"
	NotifyTypeFollowupResult    = "followup_result"
	NotifyTypeTaskMatchResult   = "task_match_result"
	NotifyTypeEventConfirmation = "event_confirmation"
	NotifyTypeJobFailed         = "job_failed"
)

// Notification is the wire contract on the outbound notify stream. Data holds
// the type-specific fields; on the wire they are flattened next to type and
// user_id in a single JSON object.
type Notification struct {
	Type   string
	UserID int64
	Data   map[string]any
}

// MarshalJSON flattens Data into the top-level object.
func (n Notification) MarshalJSON() ([]byte, error) {
	obj := make(map[string]any, len(n.Data)+2)
	for k, v := range n.Data {
		obj[k] = v
	}
	obj["type"] = n.Type
	obj["user_id"] = n.UserID
	return json.Marshal(obj)
}

// UnmarshalJSON splits type and user_id out of the flat object; everything
// else lands in Data.
func (n *Notification) UnmarshalJSON(raw []byte) error {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return err
	}
	if t, ok := obj["type"].(string); ok {
		n.Type = t
	}
	if id, ok := obj["user_id"].(float64); ok {
		n.UserID = int64(id)
	}
	delete(obj, "type")
	delete(obj, "user_id")
	n.Data = obj
	return nil
}
