package state

// Impact kinds recorded on timeline events.
const (
	ImpactSystemMessage     = "system_message"
	ImpactUserChoice        = "user_choice"
	ImpactAssistantResponse = "assistant_response"
	ImpactGameStart         = "game_start"
	ImpactPaused            = "paused"
)

// Impact classifies an event. Migrated events carry only Turn (and Source for
// legacy save files).
type Impact struct {
	Type   string `json:"type,omitempty"`
	Turn   int    `json:"turn,omitempty"`
	Source string `json:"source,omitempty"`
}

// Event is one entry of the append-only timeline.
type Event struct {
	ID          string `json:"id"`
	Descr       string `json:"descr"`
	Timestamp   int    `json:"ts"`
	Impact      Impact `json:"impact"`
	RawResponse string `json:"raw_response,omitempty"`
}

// IsSystem reports whether the event holds the session instruction.
func (e Event) IsSystem() bool {
	return e.Impact.Type == ImpactSystemMessage
}

// IsUser reports whether the event is a player turn.
func (e Event) IsUser() bool {
	return e.Impact.Type == ImpactUserChoice
}

// IsNarration reports whether the event carries generated story text,
// including turns converted from legacy saves.
func (e Event) IsNarration() bool {
	switch e.Impact.Type {
	case ImpactAssistantResponse, ImpactPaused:
		return true
	case "":
		return e.Impact.Turn > 0
	}
	return false
}

// Text is the fullest content available for the event.
func (e Event) Text() string {
	if e.RawResponse != "" {
		return e.RawResponse
	}
	return e.Descr
}
