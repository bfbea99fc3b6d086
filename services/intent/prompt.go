package intent

import (
	"fmt"
	"strings"
	"time"

	"convene/models"
)

const promptHeader = `You are the intent classifier for a meeting scheduling assistant.
Classify the user message into exactly one intent and extract parameters.
Respond with a single JSON object and nothing else, using this shape:

{
  "intent": "create_meeting" | "check_schedule" | "slot_selection" | "general_query",
  "params": {
    "title": "",
    "date": "YYYY-MM-DD",
    "time": "HH:MM",
    "durationMinutes": 0,
    "attendees": ["email@example.com"],
    "description": "",
    "provider": "google" | "outlook" | ""
  },
  "slotIndex": 0,
  "cancel": false
}

Rules:
- Omit or leave empty any parameter the message does not state.
- Normalize relative dates ("tomorrow", "next Monday") to YYYY-MM-DD.
- Normalize times to 24-hour HH:MM.
- "slotIndex" is only set for slot_selection, 1-based.
- Set "cancel" to true when the user abandons the scheduling request.
- Never invent attendees or titles.`

// classifyPrompt builds the full prompt, anchoring relative dates to today
// and telling the model which follow-up answer it may be looking at.
func classifyPrompt(utterance string, conv Context, now time.Time) string {
	var sb strings.Builder
	sb.WriteString(promptHeader)
	fmt.Fprintf(&sb, "\n\nToday is %s (%s).", now.Format(models.DateLayout), now.Weekday())

	if conv.Stage == models.StageCollectingParams && len(conv.MissingFields) > 0 {
		fmt.Fprintf(&sb,
			"\nThe assistant just asked the user for the meeting %s; a short answer is likely that value, with intent create_meeting.",
			conv.MissingFields[0])
	}
	if conv.Stage == models.StageAwaitingSlotChoice {
		fmt.Fprintf(&sb,
			"\nThe assistant just offered %d time slots; a choice should be slot_selection.",
			conv.OfferedCount)
	}

	fmt.Fprintf(&sb, "\n\nUser message: %q\n", utterance)
	return sb.String()
}
