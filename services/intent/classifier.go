package intent

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"convene/models"

	"go.uber.org/zap"
)

// Type is one of the closed set of chat intents.
type Type string

const (
	TypeCreateMeeting Type = "create_meeting"
	TypeCheckSchedule Type = "check_schedule"
	TypeSlotSelection Type = "slot_selection"
	TypeGeneralQuery  Type = "general_query"
)

// Intent is the classifier output: an intent type plus whatever meeting
// parameters could be extracted.
type Intent struct {
	Type   Type
	Params models.MeetingParams

	// Slot-selection payload: a 1-based index, an HH:MM literal, or cancel.
	SlotIndex int
	SlotTime  string
	Cancel    bool
}

// Context is the slice of conversation state the classifier may see.
type Context struct {
	Stage         models.NegotiationStage
	MissingFields []string
	OfferedCount  int
}

// Classifier maps a raw utterance to an Intent. Implementations never
// surface model errors: on failure they degrade to general_query.
type Classifier interface {
	Classify(ctx context.Context, utterance string, conv Context) (Intent, error)
}

// Generator is the language-model sub-routine.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// GeminiClassifier uses Gemini for the open-ended cases and resolves
// unambiguous slot answers locally.
type GeminiClassifier struct {
	Gen    Generator
	Logger *zap.Logger
	Now    func() time.Time
}

func NewGeminiClassifier(gen Generator, logger *zap.Logger) *GeminiClassifier {
	return &GeminiClassifier{Gen: gen, Logger: logger, Now: time.Now}
}

var timeLiteralRe = regexp.MustCompile(`^([01]?\d|2[0-3]):[0-5]\d$`)

func (c *GeminiClassifier) Classify(ctx context.Context, utterance string, conv Context) (Intent, error) {
	trimmed := strings.TrimSpace(utterance)

	// Bare indices, time literals and "cancel" while a slot choice is
	// pending are unambiguous; they must not pay for a model round-trip.
	if conv.Stage == models.StageAwaitingSlotChoice {
		if in, ok := localSlotAnswer(trimmed); ok {
			return in, nil
		}
	}

	// "cancel" mid-collection is just as unambiguous.
	if conv.Stage == models.StageCollectingParams && strings.EqualFold(trimmed, "cancel") {
		return Intent{Type: TypeGeneralQuery, Cancel: true}, nil
	}

	prompt := classifyPrompt(utterance, conv, c.Now())
	raw, err := c.Gen.GenerateContent(ctx, prompt)
	if err != nil {
		c.Logger.Warn("intent model call failed, degrading to general_query", zap.Error(err))
		return Intent{Type: TypeGeneralQuery}, nil
	}

	in, ok := parseModelOutput(raw)
	if !ok {
		c.Logger.Warn("unparsable intent model output, degrading to general_query",
			zap.String("output", truncate(raw, 200)))
		return Intent{Type: TypeGeneralQuery}, nil
	}
	return in, nil
}

// localSlotAnswer resolves the short-circuit forms without the model.
func localSlotAnswer(trimmed string) (Intent, bool) {
	lower := strings.ToLower(trimmed)
	if lower == "cancel" {
		return Intent{Type: TypeSlotSelection, Cancel: true}, true
	}
	if n, err := strconv.Atoi(trimmed); err == nil {
		return Intent{Type: TypeSlotSelection, SlotIndex: n}, true
	}
	if timeLiteralRe.MatchString(trimmed) {
		return Intent{Type: TypeSlotSelection, SlotTime: normalizeClock(trimmed)}, true
	}
	return Intent{}, false
}

// modelOutput is the JSON contract with the language model.
type modelOutput struct {
	Intent string `json:"intent"`
	Params struct {
		Title           string   `json:"title"`
		Date            string   `json:"date"`
		Time            string   `json:"time"`
		DurationMinutes int      `json:"durationMinutes"`
		Attendees       []string `json:"attendees"`
		Description     string   `json:"description"`
		Provider        string   `json:"provider"`
	} `json:"params"`
	SlotIndex int  `json:"slotIndex"`
	Cancel    bool `json:"cancel"`
}

// parseModelOutput decodes and validates the model's JSON. Invalid field
// values are dropped rather than repaired so MeetingParams never carries a
// malformed value.
func parseModelOutput(raw string) (Intent, bool) {
	payload := extractJSON(raw)
	if payload == "" {
		return Intent{}, false
	}

	var out modelOutput
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		return Intent{}, false
	}

	var in Intent
	switch Type(out.Intent) {
	case TypeCreateMeeting, TypeCheckSchedule, TypeSlotSelection, TypeGeneralQuery:
		in.Type = Type(out.Intent)
	default:
		return Intent{}, false
	}

	in.Params.Title = strings.TrimSpace(out.Params.Title)
	in.Params.Description = strings.TrimSpace(out.Params.Description)
	if _, err := time.Parse(models.DateLayout, out.Params.Date); err == nil {
		in.Params.Date = out.Params.Date
	}
	if timeLiteralRe.MatchString(out.Params.Time) {
		in.Params.Time = normalizeClock(out.Params.Time)
	}
	if out.Params.DurationMinutes > 0 {
		in.Params.DurationMinutes = out.Params.DurationMinutes
	}
	for _, a := range out.Params.Attendees {
		a = strings.TrimSpace(a)
		if strings.Contains(a, "@") {
			in.Params.Attendees = append(in.Params.Attendees, a)
		}
	}
	in.Params.Provider = models.ParseProvider(strings.ToLower(out.Params.Provider))

	in.SlotIndex = out.SlotIndex
	in.Cancel = out.Cancel
	return in, true
}

// extractJSON pulls the first JSON object out of the model reply, tolerating
// markdown code fences.
func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

// normalizeClock pads "9:30" to "09:30".
func normalizeClock(s string) string {
	if len(s) == 4 {
		return "0" + s
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
