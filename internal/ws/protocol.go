package ws

type MessageType string

const (
	// MsgWidgetUpdate carries a freshly rendered widget fragment.
	MsgWidgetUpdate MessageType = "widget_update"
	// MsgRefresh tells every viewer to reload the whole page. Sent out of
	// band (POST /api/reload), never by a refresh driver.
	MsgRefresh MessageType = "refresh"
)

// Envelope is the wire form of every message pushed to a viewer.
type Envelope struct {
	Type        MessageType `json:"type"`
	Integration string      `json:"integration,omitempty"`
	HTML        string      `json:"html,omitempty"`
}
