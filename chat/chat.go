package chat

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"go-skywatch/types"
)

const (
	chatModel      = "gpt-4.1"
	summarizeModel = openai.GPT4oMini

	maxHistoryTurns   = 20
	maxSystemMessages = 100
	maxQnaInPrompt    = 6

	apologyText = "Error: Unable to process your request at this time. Please try again."
)

// baseSystemMessage is the fixed grounding and classification policy
// preamble. The target snapshot is appended to it on every rebuild.
var baseSystemMessage = strings.Join([]string{
	"FIVE Operational Assistant – Strict Response Policy:",
	"- Use ONLY information explicitly present in: CURRENT TARGET SNAPSHOT, client conversation history, client summary, or system messages.",
	"- If data is missing or uncertain, answer: \"לא ידוע\" and, if helpful, ask ONE concise clarifying question.",
	"- Do NOT invent numbers, locations, times, radar names, or events.",
	"- Use the units shown in the data (knots, feet, km). Do not convert unless asked.",
	"- Prefer Hebrew (עברית). Keep answers short and operational (1–3 sentences) unless asked for details.",
	"- When referencing facts, ground them in the visible fields (ID, Pos/Alt, Speed, Heading, Classification, Origin, Distance, Time, QnA).",
	"",
	"Classification Policy (authoritative):",
	"- Treat 'drone', 'rocket', and 'arrow' with no classification data as hostile (denforas target).",
	"- Treat 'plane', 'bird', and 'jet' as good (non-hostile) targets unless explicit hostile evidence is present.",
	"- Semantic note: 'jet' = 'fighter jet' (מטוס קרב).",
	"",
	"",
	"אתה FIVE – סוכן הבינה המלאכותית (AI) המבצעי של מערך הבקרה האווירית הישראלי. משימתך היא להעצים ולגבות את מפקדי ומפעילי התמונה האווירית, תוך שמירה על עליונות אווירית והגנה על שמי המדינה מפני כל איום. אינך מקבל החלטות סופיות, אלא משרת כרשת הביטחון הקוגניטיבית וכיועץ המבצעי המהיר ביותר.",
	"משימות קריטיות: גילוי, סיווג, פעולה, ושימור ידע. טון: חד, ברור, תכליתי, צבאי.",
}, "\n")

// Emitter delivers a notification to all connected subscribers.
type Emitter interface {
	EmitChatMessage(message types.SystemMessage)
}

// Completer is the outbound chat-completion call, satisfied by
// *openai.Client and by test fakes.
type Completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type deferredMessage struct {
	delay   time.Duration
	message types.SystemMessage
}

// Service owns the single process-wide conversation plus the notification
// ring buffer. All mutation goes through one mutex so rebuild+append+trim
// is a single critical section per request.
type Service struct {
	mu             sync.Mutex
	history        []types.ConversationMessage
	systemMessages []types.SystemMessage
	currentObject  *types.ObjectData

	openai  Completer
	emitter Emitter
	apiKey  string

	deferq chan deferredMessage
}

// NewService builds the conversation manager and starts its deferred
// follow-up worker.
func NewService(completer Completer, emitter Emitter, apiKey string) *Service {
	s := &Service{
		history: []types.ConversationMessage{
			{Role: openai.ChatMessageRoleSystem, Content: baseSystemMessage},
		},
		openai:  completer,
		emitter: emitter,
		apiKey:  apiKey,
		deferq:  make(chan deferredMessage, 64),
	}
	go s.runDeferred()
	return s
}

// runDeferred delivers scheduled follow-ups FIFO by enqueue order. The
// delays only sequence message rendering, they are not timing-critical.
func (s *Service) runDeferred() {
	for d := range s.deferq {
		time.Sleep(d.delay)
		s.SendSystemMessage(d.message)
	}
}

// compassDirection buckets a heading into the 8-sector compass rose, with
// North spanning the wraparound at 0°.
func compassDirection(degrees float64) string {
	normalized := math.Mod(degrees, 360)
	if normalized < 0 {
		normalized += 360
	}

	switch {
	case normalized >= 337.5 || normalized < 22.5:
		return "North"
	case normalized < 67.5:
		return "North-East"
	case normalized < 112.5:
		return "East"
	case normalized < 157.5:
		return "South-East"
	case normalized < 202.5:
		return "South"
	case normalized < 247.5:
		return "South-West"
	case normalized < 292.5:
		return "West"
	default:
		return "North-West"
	}
}

// targetSnapshot renders the focused object's facts for the system prompt.
func targetSnapshot(obj *types.ObjectData) string {
	var b strings.Builder
	b.WriteString("\n\n=== CURRENT TARGET SNAPSHOT (concise) ===\n")

	if obj.ID != "" {
		fmt.Fprintf(&b, "ID: %s\n", obj.ID)
	}
	if obj.Name != "" {
		fmt.Fprintf(&b, "Name: %s\n", obj.Name)
	}
	position := obj.Position
	if len(position) < 3 && len(obj.Plots) > 0 {
		position = obj.Plots[0].Position
	}
	if len(position) >= 3 {
		fmt.Fprintf(&b, "Pos: %.4f°, %.4f° | Alt: %gft\n", position[1], position[0], position[2])
	}
	fmt.Fprintf(&b, "Speed: %gkn\n", obj.Speed)
	if obj.Rotation != nil {
		fmt.Fprintf(&b, "Heading: %g° (%s)\n", *obj.Rotation, compassDirection(*obj.Rotation))
	}
	if c := obj.Classification; c != nil {
		parts := []string{}
		if c.CurrentIdentification != nil {
			parts = append(parts, fmt.Sprintf("Type: %s", *c.CurrentIdentification))
		}
		if c.SuggestedIdentification != nil {
			parts = append(parts, fmt.Sprintf("Suggest: %s", *c.SuggestedIdentification))
		}
		if c.CertaintyPercentage != nil {
			parts = append(parts, fmt.Sprintf("Certainty: %g%%", *c.CertaintyPercentage))
		}
		if len(parts) > 0 {
			b.WriteString(strings.Join(parts, " | ") + "\n")
		}
	}
	if d := obj.Description; d != nil {
		if d.OriginCountry != "" {
			fmt.Fprintf(&b, "Origin: %s\n", d.OriginCountry)
		}
		fmt.Fprintf(&b, "Distance from origin: %.2f km\n", d.DistanceFromOrigin)
	}
	fmt.Fprintf(&b, "Time: %s\n", time.Now().Format("15:04"))

	if len(obj.Qna) > 0 {
		b.WriteString("\nQnA (use these first if relevant):\n")
		capped := obj.Qna
		if len(capped) > maxQnaInPrompt {
			capped = capped[:maxQnaInPrompt]
		}
		for i, step := range capped {
			fmt.Fprintf(&b, "Q%d: %s\n", i+1, step.Question)
			for j, answer := range step.Answers {
				if len(step.Answers) == 1 {
					fmt.Fprintf(&b, "A: %s\n", answer)
				} else {
					fmt.Fprintf(&b, "A%d: %s\n", j+1, answer)
				}
			}
		}
		if omitted := len(obj.Qna) - maxQnaInPrompt; omitted > 0 {
			fmt.Fprintf(&b, "(+%d QnA omitted for brevity)\n", omitted)
		}
	}

	return b.String()
}

// rebuildSystemLocked replaces (never appends) the system turn at index 0.
// Caller must hold s.mu.
func (s *Service) rebuildSystemLocked() {
	content := baseSystemMessage
	if s.currentObject != nil {
		content += targetSnapshot(s.currentObject)
	}
	s.history[0] = types.ConversationMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: content,
	}
}

// trimHistoryLocked keeps the system turn plus the last 20 turns.
// Caller must hold s.mu.
func (s *Service) trimHistoryLocked() {
	if len(s.history) > maxHistoryTurns+1 {
		trimmed := make([]types.ConversationMessage, 0, maxHistoryTurns+1)
		trimmed = append(trimmed, s.history[0])
		trimmed = append(trimmed, s.history[len(s.history)-maxHistoryTurns:]...)
		s.history = trimmed
	}
}

// composeLocked builds the exact turn sequence for the model call: system
// turn, deduplicated union of client and server history capped to the most
// recent 20, optional client-summary note, then the user question.
// Caller must hold s.mu.
func (s *Service) composeLocked(req types.ChatRequest) []openai.ChatCompletionMessage {
	messages := []openai.ChatCompletionMessage{
		{Role: s.history[0].Role, Content: s.history[0].Content},
	}

	serverRecent := []types.ConversationMessage{}
	tail := s.history[1:]
	if len(tail) > maxHistoryTurns {
		tail = tail[len(tail)-maxHistoryTurns:]
	}
	for _, m := range tail {
		if m.Role == openai.ChatMessageRoleUser || m.Role == openai.ChatMessageRoleAssistant {
			serverRecent = append(serverRecent, m)
		}
	}

	seen := make(map[string]bool)
	combined := []types.ConversationMessage{}
	pushUnique := func(msgs []types.ConversationMessage) {
		for _, m := range msgs {
			key := m.Role + "|" + m.Content
			if !seen[key] {
				combined = append(combined, m)
				seen[key] = true
			}
		}
	}
	pushUnique(req.ConversationHistory)
	pushUnique(serverRecent)

	if len(combined) > maxHistoryTurns {
		combined = combined[len(combined)-maxHistoryTurns:]
	}
	for _, m := range combined {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	if strings.TrimSpace(req.ClientSummary) != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: "Client summary of prior chat and situation (UI-only, authoritative over history truncation):\n" + req.ClientSummary,
		})
	}

	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Question,
	})

	return messages
}

// ProcessMessage answers an operator question grounded in the current
// conversation context. The chat endpoint always returns a response field,
// apology text on upstream failure.
func (s *Service) ProcessMessage(ctx context.Context, req types.ChatRequest) types.ChatResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.CurrentObject != nil {
		s.currentObject = req.CurrentObject
	}
	s.rebuildSystemLocked()

	messages := s.composeLocked(req)
	log.Printf("Sending chat completion with %d messages", len(messages))

	resp, err := s.openai.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:            chatModel,
		Messages:         messages,
		MaxTokens:        260,
		Temperature:      0.0,
		TopP:             0.9,
		PresencePenalty:  0,
		FrequencyPenalty: 0,
	})
	if err != nil {
		log.Printf("Error calling OpenAI API: %v", err)
		return types.ChatResponse{Response: apologyText}
	}

	answer := "I apologize, but I could not generate a response."
	if len(resp.Choices) > 0 && resp.Choices[0].Message.Content != "" {
		answer = resp.Choices[0].Message.Content
	}

	s.history = append(s.history,
		types.ConversationMessage{Role: openai.ChatMessageRoleUser, Content: req.Question},
		types.ConversationMessage{Role: openai.ChatMessageRoleAssistant, Content: answer},
	)
	s.trimHistoryLocked()

	return types.ChatResponse{Response: answer}
}

// SummarizeMessages condenses a message list into a rolling memory note.
// Failures degrade to an empty summary.
func (s *Service) SummarizeMessages(ctx context.Context, rawMessages []types.ConversationMessage) types.SummarizeResponse {
	instruction := strings.Join([]string{
		"You are a summarizer for an operational air-control assistant. Summarize the conversation into a brief, high-signal memory. ",
		"- Keep under 1200 characters. ",
		"- Include target identifiers, current parameters (speed, altitude, classification, origin, timing), and any decisions/recommendations given. ",
		"- Include key Q&A facts mentioned. ",
		"- Prefer Hebrew (עברית) if the content is in Hebrew. ",
		"- No filler, only facts and outcomes. ",
	}, "")

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: instruction},
	}
	for _, m := range rawMessages {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := s.openai.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       summarizeModel,
		Messages:    messages,
		MaxTokens:   400,
		Temperature: 0.1,
	})
	if err != nil {
		log.Printf("Error summarizing messages: %v", err)
		return types.SummarizeResponse{Summary: ""}
	}
	if len(resp.Choices) == 0 {
		return types.SummarizeResponse{Summary: ""}
	}
	return types.SummarizeResponse{Summary: resp.Choices[0].Message.Content}
}

// SendSystemMessage records an operator notification in the ring buffer,
// appends it to the conversation as an assistant turn so future grounding
// reflects it, and fans it out to all subscribers.
func (s *Service) SendSystemMessage(msg types.SystemMessage) {
	if msg.Sender == "" {
		msg.Sender = "System"
	}
	msg.Timestamp = time.Now()

	s.mu.Lock()
	s.systemMessages = append(s.systemMessages, msg)
	if len(s.systemMessages) > maxSystemMessages {
		s.systemMessages = s.systemMessages[len(s.systemMessages)-maxSystemMessages:]
	}

	s.history = append(s.history, types.ConversationMessage{
		Role:    openai.ChatMessageRoleAssistant,
		Content: fmt.Sprintf("[%s] %s", msg.Sender, msg.Message),
	})
	s.trimHistoryLocked()
	s.mu.Unlock()

	if s.emitter != nil {
		s.emitter.EmitChatMessage(msg)
	}
}

// SendSystemMessageAfter schedules a follow-up notification on the deferred
// queue. Ordering is FIFO by enqueue; the triggering request never blocks.
func (s *Service) SendSystemMessageAfter(delay time.Duration, msg types.SystemMessage) {
	select {
	case s.deferq <- deferredMessage{delay: delay, message: msg}:
	default:
		log.Printf("Deferred queue full, sending follow-up immediately")
		go s.SendSystemMessage(msg)
	}
}

// SystemMessages returns the retained notifications, oldest first.
func (s *Service) SystemMessages() []types.SystemMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.SystemMessage, len(s.systemMessages))
	copy(out, s.systemMessages)
	return out
}

// ClearConversation drops everything but the system turn.
func (s *Service) ClearConversation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = s.history[:1]
}

// SetCurrentObject focuses the conversation on an object.
func (s *Service) SetCurrentObject(obj *types.ObjectData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentObject = obj
	s.rebuildSystemLocked()
}

// ClearCurrentObject removes the focused object.
func (s *Service) ClearCurrentObject() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentObject = nil
	s.rebuildSystemLocked()
}

// RecentConversation returns the last 20 user/assistant turns.
func (s *Service) RecentConversation() []types.ConversationMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	filtered := []types.ConversationMessage{}
	for _, m := range s.history {
		if m.Role == openai.ChatMessageRoleUser || m.Role == openai.ChatMessageRoleAssistant {
			filtered = append(filtered, m)
		}
	}
	if len(filtered) > maxHistoryTurns {
		filtered = filtered[len(filtered)-maxHistoryTurns:]
	}
	return filtered
}

// historyLen reports the current history length, for tests.
func (s *Service) historyLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}
