package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-skywatch/types"
)

type fakeCompleter struct {
	lastRequest openai.ChatCompletionRequest
	response    string
	err         error
	noChoices   bool
}

func (f *fakeCompleter) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.lastRequest = req
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	if f.noChoices {
		return openai.ChatCompletionResponse{}, nil
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: f.response}},
		},
	}, nil
}

type recordingEmitter struct {
	mu       sync.Mutex
	messages []types.SystemMessage
}

func (r *recordingEmitter) EmitChatMessage(msg types.SystemMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
}

func (r *recordingEmitter) emitted() []types.SystemMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.SystemMessage, len(r.messages))
	copy(out, r.messages)
	return out
}

func newChatService(completer *fakeCompleter) (*Service, *recordingEmitter) {
	emitter := &recordingEmitter{}
	return NewService(completer, emitter, "test-key"), emitter
}

func TestCompassDirection(t *testing.T) {
	cases := []struct {
		degrees  float64
		expected string
	}{
		{0, "North"},
		{359.9, "North"},
		{340, "North"},
		{22.4, "North"},
		{22.5, "North-East"},
		{45, "North-East"},
		{90, "East"},
		{135, "South-East"},
		{180, "South"},
		{225, "South-West"},
		{270, "West"},
		{315, "North-West"},
		{337.5, "North"},
		{-90, "West"},  // normalizes to 270
		{450, "East"},  // normalizes to 90
		{720, "North"}, // full turns collapse
	}
	for _, tc := range cases {
		assert.Equal(t, tc.expected, compassDirection(tc.degrees), "%g degrees", tc.degrees)
	}
}

func TestProcessMessageRequestShape(t *testing.T) {
	completer := &fakeCompleter{response: "המטרה בגובה 5000 רגל"}
	svc, _ := newChatService(completer)

	resp := svc.ProcessMessage(context.Background(), types.ChatRequest{Question: "מה הגובה?"})
	assert.Equal(t, "המטרה בגובה 5000 רגל", resp.Response)

	req := completer.lastRequest
	assert.Equal(t, "gpt-4.1", req.Model)
	assert.Equal(t, 260, req.MaxTokens)
	assert.Equal(t, float32(0.0), req.Temperature)
	assert.Equal(t, float32(0.9), req.TopP)

	require.GreaterOrEqual(t, len(req.Messages), 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
	last := req.Messages[len(req.Messages)-1]
	assert.Equal(t, openai.ChatMessageRoleUser, last.Role)
	assert.Equal(t, "מה הגובה?", last.Content)

	// The exchange lands in server history: system + user + assistant.
	assert.Equal(t, 3, svc.historyLen())
}

func TestProcessMessageApologyOnError(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("rate limited")}
	svc, _ := newChatService(completer)

	resp := svc.ProcessMessage(context.Background(), types.ChatRequest{Question: "מה המצב?"})
	assert.Equal(t, apologyText, resp.Response)
	// Failed exchanges are not recorded.
	assert.Equal(t, 1, svc.historyLen())
}

func TestProcessMessageEmptyChoicesFallback(t *testing.T) {
	completer := &fakeCompleter{noChoices: true}
	svc, _ := newChatService(completer)

	resp := svc.ProcessMessage(context.Background(), types.ChatRequest{Question: "שאלה"})
	assert.Equal(t, "I apologize, but I could not generate a response.", resp.Response)
}

func TestHistoryTrimsToWindow(t *testing.T) {
	completer := &fakeCompleter{response: "ok"}
	svc, _ := newChatService(completer)

	for i := 0; i < 40; i++ {
		svc.SendSystemMessage(types.SystemMessage{Message: fmt.Sprintf("event %d", i)})
	}
	// System turn plus at most 20 conversation turns.
	assert.Equal(t, maxHistoryTurns+1, svc.historyLen())

	recent := svc.RecentConversation()
	require.Len(t, recent, maxHistoryTurns)
	assert.Equal(t, "[System] event 39", recent[len(recent)-1].Content)
	assert.Equal(t, "[System] event 20", recent[0].Content)
}

func TestComposeDedupesClientAndServerHistory(t *testing.T) {
	completer := &fakeCompleter{response: "first answer"}
	svc, _ := newChatService(completer)

	svc.ProcessMessage(context.Background(), types.ChatRequest{Question: "first question"})

	// Client replays the same exchange it already saw.
	clientHistory := []types.ConversationMessage{
		{Role: openai.ChatMessageRoleUser, Content: "first question"},
		{Role: openai.ChatMessageRoleAssistant, Content: "first answer"},
	}
	completer.response = "second answer"
	svc.ProcessMessage(context.Background(), types.ChatRequest{
		Question:            "second question",
		ConversationHistory: clientHistory,
	})

	questionCount := 0
	for _, m := range completer.lastRequest.Messages {
		if m.Content == "first question" {
			questionCount++
		}
	}
	assert.Equal(t, 1, questionCount)

	// Client-supplied turns come before server-only turns.
	roles := []string{}
	for _, m := range completer.lastRequest.Messages {
		roles = append(roles, m.Role)
	}
	assert.Equal(t, openai.ChatMessageRoleSystem, roles[0])
	assert.Equal(t, openai.ChatMessageRoleUser, roles[len(roles)-1])
}

func TestComposeAppendsClientSummaryNote(t *testing.T) {
	completer := &fakeCompleter{response: "ok"}
	svc, _ := newChatService(completer)

	svc.ProcessMessage(context.Background(), types.ChatRequest{
		Question:      "מה השתנה?",
		ClientSummary: "המטרה סווגה ככטב\"ם בוודאות 85%",
	})

	msgs := completer.lastRequest.Messages
	require.GreaterOrEqual(t, len(msgs), 3)
	summaryNote := msgs[len(msgs)-2]
	assert.Equal(t, openai.ChatMessageRoleSystem, summaryNote.Role)
	assert.Contains(t, summaryNote.Content, "Client summary")
	assert.Contains(t, summaryNote.Content, "כטב\"ם")
}

func TestSystemTurnReplacedNotAppended(t *testing.T) {
	completer := &fakeCompleter{response: "ok"}
	svc, _ := newChatService(completer)

	rotation := 45.0
	svc.SetCurrentObject(&types.ObjectData{
		ID:       "target-1",
		Position: []float64{34.9, 31.5, 5000},
		Speed:    80,
		Rotation: &rotation,
	})
	svc.SetCurrentObject(&types.ObjectData{
		ID:       "target-2",
		Position: []float64{35.1, 32.0, 8000},
		Speed:    120,
	})

	assert.Equal(t, 1, svc.historyLen())

	svc.ProcessMessage(context.Background(), types.ChatRequest{Question: "על מה אנחנו מסתכלים?"})
	system := completer.lastRequest.Messages[0].Content
	assert.Equal(t, 1, strings.Count(system, "CURRENT TARGET SNAPSHOT"))
	assert.Contains(t, system, "target-2")
	assert.NotContains(t, system, "target-1")
}

func TestSnapshotRendersFactsAndCapsQna(t *testing.T) {
	rotation := 10.0
	certainty := 85.0
	drone := types.ClassDrone
	obj := &types.ObjectData{
		ID:       "target-7",
		Position: []float64{34.8700, 31.5000, 5000},
		Speed:    80,
		Rotation: &rotation,
		Classification: &types.Classification{
			SuggestedIdentification: &drone,
			CertaintyPercentage:     &certainty,
		},
		Description: &types.Description{
			OriginCountry:      "Lebanon",
			DistanceFromOrigin: 42.5,
		},
	}
	for i := 0; i < 8; i++ {
		obj.Qna = append(obj.Qna, types.QnaStep{
			Question: fmt.Sprintf("question %d", i),
			Answers:  []string{"answer"},
		})
	}

	snapshot := targetSnapshot(obj)
	assert.Contains(t, snapshot, "ID: target-7")
	assert.Contains(t, snapshot, "Pos: 31.5000°, 34.8700° | Alt: 5000ft")
	assert.Contains(t, snapshot, "Speed: 80kn")
	assert.Contains(t, snapshot, "Heading: 10° (North)")
	assert.Contains(t, snapshot, "Suggest: drone | Certainty: 85%")
	assert.Contains(t, snapshot, "Origin: Lebanon")
	assert.Contains(t, snapshot, "Distance from origin: 42.50 km")
	assert.Contains(t, snapshot, "Q6: question 5")
	assert.NotContains(t, snapshot, "question 6")
	assert.Contains(t, snapshot, "(+2 QnA omitted for brevity)")
}

func TestSendSystemMessageDefaultsAndEmits(t *testing.T) {
	completer := &fakeCompleter{}
	svc, emitter := newChatService(completer)

	svc.SendSystemMessage(types.SystemMessage{Message: "radar sweep complete"})
	svc.SendSystemMessage(types.SystemMessage{Message: "new contact", Sender: "Classification System"})

	emitted := emitter.emitted()
	require.Len(t, emitted, 2)
	assert.Equal(t, "System", emitted[0].Sender)
	assert.False(t, emitted[0].Timestamp.IsZero())
	assert.Equal(t, "Classification System", emitted[1].Sender)

	recent := svc.RecentConversation()
	require.Len(t, recent, 2)
	assert.Equal(t, openai.ChatMessageRoleAssistant, recent[0].Role)
	assert.Equal(t, "[System] radar sweep complete", recent[0].Content)
	assert.Equal(t, "[Classification System] new contact", recent[1].Content)
}

func TestSystemMessagesRingBuffer(t *testing.T) {
	completer := &fakeCompleter{}
	svc, _ := newChatService(completer)

	for i := 0; i < maxSystemMessages+25; i++ {
		svc.SendSystemMessage(types.SystemMessage{Message: fmt.Sprintf("n%d", i)})
	}

	retained := svc.SystemMessages()
	require.Len(t, retained, maxSystemMessages)
	assert.Equal(t, "n25", retained[0].Message)
	assert.Equal(t, fmt.Sprintf("n%d", maxSystemMessages+24), retained[len(retained)-1].Message)
}

func TestDeferredMessagesDeliverInOrder(t *testing.T) {
	completer := &fakeCompleter{}
	svc, emitter := newChatService(completer)

	svc.SendSystemMessageAfter(5*time.Millisecond, types.SystemMessage{Message: "follow-up one"})
	svc.SendSystemMessageAfter(1*time.Millisecond, types.SystemMessage{Message: "follow-up two"})

	require.Eventually(t, func() bool {
		return len(emitter.emitted()) == 2
	}, time.Second, 5*time.Millisecond)

	// FIFO by enqueue order even when the second delay is shorter.
	emitted := emitter.emitted()
	assert.Equal(t, "follow-up one", emitted[0].Message)
	assert.Equal(t, "follow-up two", emitted[1].Message)
}

func TestClearConversationKeepsSystemTurn(t *testing.T) {
	completer := &fakeCompleter{response: "ok"}
	svc, _ := newChatService(completer)

	svc.ProcessMessage(context.Background(), types.ChatRequest{Question: "q"})
	svc.SendSystemMessage(types.SystemMessage{Message: "note"})
	require.Greater(t, svc.historyLen(), 1)

	svc.ClearConversation()
	assert.Equal(t, 1, svc.historyLen())
	assert.Empty(t, svc.RecentConversation())
}

func TestSummarizeMessages(t *testing.T) {
	completer := &fakeCompleter{response: "סיכום: מטרה אחת פעילה"}
	svc, _ := newChatService(completer)

	resp := svc.SummarizeMessages(context.Background(), []types.ConversationMessage{
		{Role: openai.ChatMessageRoleUser, Content: "מה קורה?"},
		{Role: openai.ChatMessageRoleAssistant, Content: "מטרה אחת פעילה"},
	})
	assert.Equal(t, "סיכום: מטרה אחת פעילה", resp.Summary)
	assert.Equal(t, openai.GPT4oMini, completer.lastRequest.Model)
	assert.Equal(t, 400, completer.lastRequest.MaxTokens)
}

func TestSummarizeMessagesErrorYieldsEmptySummary(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("upstream down")}
	svc, _ := newChatService(completer)

	resp := svc.SummarizeMessages(context.Background(), nil)
	assert.Equal(t, "", resp.Summary)
}
