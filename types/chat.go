package types

import "time"

// ConversationMessage is one turn of the operator conversation.
type ConversationMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Button is a client-side follow-up action attached to a system message.
type Button struct {
	Label  string                 `json:"label"`
	Action string                 `json:"action"`
	Data   map[string]interface{} `json:"data,omitempty"`
}

// SystemMessage is an operator-facing notification kept in the bounded
// ring buffer and broadcast to all subscribers.
type SystemMessage struct {
	Message    string      `json:"message"`
	Sender     string      `json:"sender"`
	Timestamp  time.Time   `json:"timestamp"`
	Buttons    []Button    `json:"buttons,omitempty"`
	ObjectData *ObjectData `json:"objectData,omitempty"`
}

// ChatRequest is the inbound payload for the operator Q&A endpoint.
type ChatRequest struct {
	Question            string                `json:"question" binding:"required"`
	CurrentObject       *ObjectData           `json:"currentObject"`
	ConversationHistory []ConversationMessage `json:"conversationHistory"`
	ClientSummary       string                `json:"clientSummary"`
}

// ChatResponse always carries a response, apology text on upstream failure.
type ChatResponse struct {
	Response string `json:"response"`
}

// SummarizeRequest is the inbound payload for the rolling-summary endpoint.
type SummarizeRequest struct {
	Messages []ConversationMessage `json:"messages" binding:"required"`
}

// SummarizeResponse carries the condensed memory note, empty on failure.
type SummarizeResponse struct {
	Summary string `json:"summary"`
}
