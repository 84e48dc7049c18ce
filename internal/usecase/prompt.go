package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"tour-guide-agent/internal/domain"
)

// promptVersion tags every instruction template below; bump it whenever the
// wording changes so traces and logs can tell prompt revisions apart.
const promptVersion = "tour-v1"

// turnPayload is the structured user block sent with every tour turn and kept
// verbatim in session history.
type turnPayload struct {
	CurrentCity     domain.City       `json:"current_city"`
	NearbyLandmarks []domain.Location `json:"near_by_landmarks"`
	NewQuery        string            `json:"new_query"`
}

var (
	tourGuideTemplate = prompt.FromMessages(schema.GoTemplate,
		schema.SystemMessage(tourGuideInstructions()),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{{.turn}}"),
	)

	intentTemplate = prompt.FromMessages(schema.GoTemplate,
		schema.SystemMessage(intentInstructions()),
		schema.UserMessage("Conversation so far:\n{{.history}}\n\nLatest visitor message:\n{{.query}}"),
	)

	languageTemplate = prompt.FromMessages(schema.GoTemplate,
		schema.SystemMessage(languageInstructions()),
		schema.UserMessage("{{.text}}"),
	)

	translationTemplate = prompt.FromMessages(schema.GoTemplate,
		schema.SystemMessage(translationInstructions()),
		schema.UserMessage("{{.text}}"),
	)

	preferenceTemplate = prompt.FromMessages(schema.GoTemplate,
		schema.SystemMessage(preferenceInstructions()),
		schema.UserMessage("Conversation so far:\n{{.history}}"),
	)
)

func tourGuideInstructions() string {
	return strings.Join([]string{
		"Role:",
		"You are a professional personal tour guide taking a visitor on a city walk.",
		"",
		"Language:",
		"Always answer in {{.language}}, whatever language the visitor or the context uses.",
		"Only switch language if the visitor explicitly asks you to.",
		"",
		"Task:",
		"Each visitor message is JSON with current_city (their position), near_by_landmarks",
		"(tourist attractions within 5 km, with coordinates and ratings) and new_query.",
		"Use it, the conversation so far and the supplementary context to answer and to give",
		"the visitor a memorable walk.",
		"",
		"Supplementary context (JSON, may be empty; use it only when relevant):",
		"{{.enrichment}}",
		"",
		"Visitor profile learned so far (JSON, null when nothing is known yet):",
		"{{.preferences}}",
		"",
		"Behavior Rules:",
		"1) Ask clarifying questions about interests, time and pace before recommending when you know too little.",
		"2) Whenever you recommend, return the places as locations and describe the walk in speech.",
		"3) Order locations as a walking route that avoids backtracking; the order you give is the order walked.",
		"4) Prefer places from near_by_landmarks and copy their coordinates, names and ratings exactly.",
		"5) Keep the tone relaxed and friendly; light jokes are welcome.",
		"6) If the visitor says something like \"let's restart\" or \"start over\", start the conversation afresh.",
		"",
		"Reply Modes (examples):",
		"- recommendation: {\"locations\": [location 1, location 2, location 3], \"speech\": \"How about a walk from location 1 to location 3? It takes about two hours.\"}",
		"- clarifying question: {\"locations\": [], \"speech\": \"To get started, what are you interested in seeing, and how much time do you have?\"}",
		"- information: {\"locations\": [], \"speech\": \"Great Mall opened in 1992 and is the largest shopping mall in the city.\"}",
		"- greeting: {\"locations\": [], \"speech\": \"Hello! I am your personal tour guide. What would you like to see today?\"}",
		"- revised recommendation: {\"locations\": [location 1, location 4], \"speech\": \"Based on what you told me, I think you would enjoy these instead.\"}",
		"- reset: {\"locations\": [], \"speech\": \"Sure! Let's start over. What would you like to see today?\"}",
		"",
		"Output Contract:",
		"Return JSON only with keys locations (array of {latitude, longitude, displayName, rating})",
		"and speech (non-empty string). locations is empty when you are not recommending places.",
	}, "\n")
}

func intentInstructions() string {
	return strings.Join([]string{
		"Role:",
		"You classify the latest message of a visitor talking to a city tour guide.",
		"",
		"Task:",
		"Decide whether the latest message asks for information about one specific, named place.",
		"",
		"Rules:",
		"1) A question naming a single place (a landmark, museum, street, building) is information seeking.",
		"2) Broad requests such as \"what should I see\" or \"plan my afternoon\" are not information seeking.",
		"3) Greetings, preferences and feedback on a route are not information seeking.",
		"4) When several place names appear, return the most specific (innermost) one.",
		"5) Use the conversation only to resolve references like \"that tower\" to a named place.",
		"",
		"Examples:",
		"- \"Tell me about the Statue of Liberty\" -> {\"is_information_seeking\": true, \"location\": \"Statue of Liberty\"}",
		"- \"When was the Louvre's pyramid built?\" -> {\"is_information_seeking\": true, \"location\": \"Louvre Pyramid\"}",
		"- \"What should I see around here?\" -> {\"is_information_seeking\": false, \"location\": \"\"}",
		"- \"Hello\" -> {\"is_information_seeking\": false, \"location\": \"\"}",
		"- \"I love modern art, any ideas?\" -> {\"is_information_seeking\": false, \"location\": \"\"}",
		"",
		"Output Contract:",
		"Return JSON only with keys is_information_seeking (boolean) and location (string, empty when none).",
	}, "\n")
}

func languageInstructions() string {
	return strings.Join([]string{
		"Identify the language the user message is written in.",
		"Return JSON only with key language: the English name of the language in lowercase, e.g. \"english\", \"french\", \"japanese\".",
		"For very short or ambiguous messages pick the most likely language.",
	}, "\n")
}

func translationInstructions() string {
	return strings.Join([]string{
		"Translate the user message into {{.language}}.",
		"Keep names of places as they are commonly written in {{.language}}. If the message is already in {{.language}}, return it unchanged.",
		"If the message explicitly asks the guide to speak another language from now on, set language_switch to that language's",
		"English name in lowercase; otherwise set language_switch to an empty string.",
		"Return JSON only with keys translation (string) and language_switch (string).",
	}, "\n")
}

func preferenceInstructions() string {
	return strings.Join([]string{
		"Role:",
		"You maintain a visitor profile for a city tour guide.",
		"",
		"Task:",
		"Read the whole conversation and extract only what the visitor explicitly stated about themselves.",
		"",
		"Rules:",
		"1) likes and dislikes: things the visitor said they enjoy or want to avoid. Later statements override earlier ones.",
		"2) age, education, profession: only if the visitor stated them; otherwise an empty string.",
		"3) visited_places: short summaries of places the visitor said they already visited.",
		"4) Never infer anything from landmarks or locations the guide showed the visitor.",
		"5) Never guess or assume; leave a field empty when the visitor did not say it.",
		"",
		"Output Contract:",
		"Return JSON only with keys likes, dislikes, visited_places (arrays of strings) and age, education, profession (strings).",
	}, "\n")
}

// tourPromptInput is everything bound into one tour completion.
type tourPromptInput struct {
	Language    string
	Enrichment  domain.Enrichment
	Preferences *domain.PreferenceProfile
	History     []domain.ChatMessage
	Turn        string
}

// renderTourPrompt binds the pinned language, enrichment and known profile into
// the system instructions and appends the unmodified history plus the new turn block.
func renderTourPrompt(ctx context.Context, in tourPromptInput) ([]domain.ChatMessage, error) {
	enrichmentJSON, err := json.Marshal(in.Enrichment)
	if err != nil {
		return nil, fmt.Errorf("usecase: marshal enrichment: %w", err)
	}
	preferencesJSON, err := json.Marshal(in.Preferences)
	if err != nil {
		return nil, fmt.Errorf("usecase: marshal preferences: %w", err)
	}
	msgs, err := tourGuideTemplate.Format(ctx, map[string]any{
		"language":    in.Language,
		"enrichment":  string(enrichmentJSON),
		"preferences": string(preferencesJSON),
		"history":     toSchemaMessages(in.History),
		"turn":        in.Turn,
	})
	if err != nil {
		return nil, fmt.Errorf("usecase: render tour prompt: %w", err)
	}
	return fromSchemaMessages(msgs), nil
}

func renderIntentPrompt(ctx context.Context, query string, history []domain.ChatMessage) ([]domain.ChatMessage, error) {
	msgs, err := intentTemplate.Format(ctx, map[string]any{
		"history": formatHistory(history),
		"query":   query,
	})
	if err != nil {
		return nil, fmt.Errorf("usecase: render intent prompt: %w", err)
	}
	return fromSchemaMessages(msgs), nil
}

func renderLanguagePrompt(ctx context.Context, text string) ([]domain.ChatMessage, error) {
	msgs, err := languageTemplate.Format(ctx, map[string]any{"text": text})
	if err != nil {
		return nil, fmt.Errorf("usecase: render language prompt: %w", err)
	}
	return fromSchemaMessages(msgs), nil
}

func renderTranslationPrompt(ctx context.Context, text, language string) ([]domain.ChatMessage, error) {
	msgs, err := translationTemplate.Format(ctx, map[string]any{"text": text, "language": language})
	if err != nil {
		return nil, fmt.Errorf("usecase: render translation prompt: %w", err)
	}
	return fromSchemaMessages(msgs), nil
}

func renderPreferencePrompt(ctx context.Context, history []domain.ChatMessage) ([]domain.ChatMessage, error) {
	msgs, err := preferenceTemplate.Format(ctx, map[string]any{"history": formatHistory(history)})
	if err != nil {
		return nil, fmt.Errorf("usecase: render preference prompt: %w", err)
	}
	return fromSchemaMessages(msgs), nil
}

func encodeTurn(city domain.City, landmarks []domain.Location, query string) (string, error) {
	if landmarks == nil {
		landmarks = []domain.Location{}
	}
	b, err := json.Marshal(turnPayload{CurrentCity: city, NearbyLandmarks: landmarks, NewQuery: query})
	if err != nil {
		return "", fmt.Errorf("usecase: marshal turn: %w", err)
	}
	return string(b), nil
}

// formatHistory renders history as plain dialogue lines for the classifier and
// preference prompts. Tour turn blocks are reduced to the visitor's query so
// landmark data never leaks into preference extraction.
func formatHistory(history []domain.ChatMessage) string {
	if len(history) == 0 {
		return "(no previous messages)"
	}
	var b strings.Builder
	for _, m := range history {
		content := strings.TrimSpace(m.Content)
		switch m.Role {
		case domain.RoleUser:
			var turn turnPayload
			if err := json.Unmarshal([]byte(content), &turn); err == nil && turn.NewQuery != "" {
				content = turn.NewQuery
			}
			b.WriteString("Visitor: ")
		case domain.RoleAssistant:
			b.WriteString("Guide: ")
		default:
			continue
		}
		b.WriteString(content)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func toSchemaMessages(history []domain.ChatMessage) []*schema.Message {
	out := make([]*schema.Message, 0, len(history))
	for _, m := range history {
		out = append(out, &schema.Message{Role: schema.RoleType(m.Role), Content: m.Content})
	}
	return out
}

func fromSchemaMessages(msgs []*schema.Message) []domain.ChatMessage {
	out := make([]domain.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, domain.ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	return out
}
