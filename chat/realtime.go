package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const realtimeSessionsURL = "https://api.openai.com/v1/realtime/sessions"

var realtimeHTTPClient = &http.Client{Timeout: 15 * time.Second}

// voiceInstructions extends the base policy with voice-mode guidance and
// the focused-object context.
func (s *Service) voiceInstructions() string {
	s.mu.Lock()
	obj := s.currentObject
	s.mu.Unlock()

	var b strings.Builder
	b.WriteString(baseSystemMessage)
	b.WriteString("\n\n=== VOICE CHAT MODE ===\n")
	b.WriteString("You are now in voice chat mode. Keep your responses CLEAR and CONVERSATIONAL.")
	b.WriteString("\n- Speak in Hebrew (עברית) when conversing with the operator.")
	b.WriteString("\n- Use clear, concise military terminology.")
	b.WriteString("\n- When asked about objects, refer to the current object context.")
	b.WriteString("\n- If system messages arrive during the conversation, relay them immediately to the operator.")
	b.WriteString("\n- Provide complete answers - don't cut yourself off mid-sentence.")
	b.WriteString("\n- Be thorough but concise. 2-4 sentences is ideal for most responses.")
	b.WriteString("\n- Classification Policy: 'drone', 'rocket', and 'arrow' with no data are denforas (hostile). 'plane', 'bird', and 'jet' are good/non-hostile unless explicit hostile evidence exists. 'jet' means fighter jet.")

	if obj != nil {
		b.WriteString("\n\n=== CURRENTLY SELECTED OBJECT ===\n")
		b.WriteString("The operator is currently viewing this object:\n")
		if len(obj.Position) >= 3 {
			fmt.Fprintf(&b, "Position: %.4f°N, %.4f°E, %g feet\n", obj.Position[1], obj.Position[0], obj.Position[2])
		}
		fmt.Fprintf(&b, "Speed: %g knots\n", obj.Speed)
		if obj.Classification != nil && obj.Classification.CurrentIdentification != nil {
			fmt.Fprintf(&b, "Classification: %s\n", *obj.Classification.CurrentIdentification)
		}
		if obj.ID != "" {
			fmt.Fprintf(&b, "Target ID: %s\n", obj.ID)
		}

		if len(obj.Qna) > 0 {
			b.WriteString("\n=== TARGET Q&A INFORMATION ===\n")
			b.WriteString("Additional intelligence about this target:\n")
			for i, step := range obj.Qna {
				fmt.Fprintf(&b, "Q%d: %s\n", i+1, step.Question)
				for j, answer := range step.Answers {
					if len(step.Answers) == 1 {
						fmt.Fprintf(&b, "A: %s\n", answer)
					} else {
						fmt.Fprintf(&b, "A%d: %s\n", j+1, answer)
					}
				}
				b.WriteString("\n")
			}
			b.WriteString("Use this Q&A information when answering questions about the target.\n")
		}
	}

	return b.String()
}

// CreateRealtimeSession asks the upstream realtime endpoint for a voice
// session carrying the current context and recent conversation. This is a
// stateless proxy: upstream failure propagates to the caller as-is, there
// is no meaningful fallback here.
func (s *Service) CreateRealtimeSession(ctx context.Context, voice string) (map[string]interface{}, error) {
	if voice == "" {
		voice = "alloy"
	}

	body := map[string]interface{}{
		"model":        "gpt-4o-realtime-preview-2024-12-17",
		"voice":        voice,
		"instructions": s.voiceInstructions(),
		"input_audio_transcription": map[string]interface{}{
			"model": "whisper-1",
		},
		"turn_detection": map[string]interface{}{
			"type":                "server_vad",
			"threshold":           0.35,
			"prefix_padding_ms":   150,
			"silence_duration_ms": 450,
		},
		"temperature":                0.6,
		"max_response_output_tokens": 600,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal realtime session request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, realtimeSessionsURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build realtime session request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := realtimeHTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("realtime session request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read realtime session response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to create realtime session: %s", string(raw))
	}

	var session map[string]interface{}
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("failed to decode realtime session response: %w", err)
	}

	// Recent history rides along so the client can replay it over the data
	// channel once the session opens.
	session["conversation_history"] = s.RecentConversation()

	return session, nil
}
