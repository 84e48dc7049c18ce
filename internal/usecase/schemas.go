package usecase

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"tour-guide-agent/internal/domain"
)

// Output schemas declared on every model call. Strict mode requires every
// property to be listed in required and additionalProperties to be false.
var (
	tourReplySchema = &domain.OutputSchema{
		Name: "tour_reply",
		Definition: json.RawMessage(`{
			"type":"object",
			"additionalProperties":false,
			"properties":{
				"locations":{
					"type":"array",
					"items":{
						"type":"object",
						"additionalProperties":false,
						"properties":{
							"latitude":{"type":"number"},
							"longitude":{"type":"number"},
							"displayName":{"type":"string"},
							"rating":{"type":"number"}
						},
						"required":["latitude","longitude","displayName","rating"]
					}
				},
				"speech":{"type":"string"}
			},
			"required":["locations","speech"]
		}`),
	}

	intentSchema = &domain.OutputSchema{
		Name: "information_seeking",
		Definition: json.RawMessage(`{
			"type":"object",
			"additionalProperties":false,
			"properties":{
				"is_information_seeking":{"type":"boolean"},
				"location":{"type":"string"}
			},
			"required":["is_information_seeking","location"]
		}`),
	}

	languageSchema = &domain.OutputSchema{
		Name: "language_detection",
		Definition: json.RawMessage(`{
			"type":"object",
			"additionalProperties":false,
			"properties":{"language":{"type":"string"}},
			"required":["language"]
		}`),
	}

	translationSchema = &domain.OutputSchema{
		Name: "translation",
		Definition: json.RawMessage(`{
			"type":"object",
			"additionalProperties":false,
			"properties":{
				"translation":{"type":"string"},
				"language_switch":{"type":"string"}
			},
			"required":["translation","language_switch"]
		}`),
	}

	preferenceSchema = &domain.OutputSchema{
		Name: "preference_profile",
		Definition: json.RawMessage(`{
			"type":"object",
			"additionalProperties":false,
			"properties":{
				"likes":{"type":"array","items":{"type":"string"}},
				"dislikes":{"type":"array","items":{"type":"string"}},
				"age":{"type":"string"},
				"education":{"type":"string"},
				"profession":{"type":"string"},
				"visited_places":{"type":"array","items":{"type":"string"}}
			},
			"required":["likes","dislikes","age","education","profession","visited_places"]
		}`),
	}
)

// Response types use pointers and nil slices so an absent required key is
// told apart from its zero value.
type tourReplyResponse struct {
	Locations []locationResponse `json:"locations"`
	Speech    *string            `json:"speech"`
}

type locationResponse struct {
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	DisplayName *string  `json:"displayName"`
	Rating      *float64 `json:"rating"`
}

type intentResponse struct {
	IsInformationSeeking *bool   `json:"is_information_seeking"`
	Location             *string `json:"location"`
}

type languageResponse struct {
	Language *string `json:"language"`
}

type translationPayload struct {
	Translation    *string `json:"translation"`
	LanguageSwitch *string `json:"language_switch"`
}

// translationResponse is a parsed translation with the switch normalized.
type translationResponse struct {
	Translation    string
	LanguageSwitch string
}

type preferenceResponse struct {
	Likes         []string `json:"likes"`
	Dislikes      []string `json:"dislikes"`
	Age           *string  `json:"age"`
	Education     *string  `json:"education"`
	Profession    *string  `json:"profession"`
	VisitedPlaces []string `json:"visited_places"`
}

func missingKey(label, key string) error {
	return fmt.Errorf("usecase: %s missing required key %q", label, key)
}

// decodeStrict decodes exactly one JSON value into T, rejecting unknown fields
// and trailing data.
func decodeStrict[T any](raw, label string) (T, error) {
	var out T
	dec := json.NewDecoder(bytes.NewBufferString(strings.TrimSpace(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		var zero T
		return zero, fmt.Errorf("usecase: decode %s: %w", label, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		var zero T
		if err == nil {
			return zero, fmt.Errorf("usecase: decode %s: multiple JSON values", label)
		}
		return zero, fmt.Errorf("usecase: decode %s trailing data: %w", label, err)
	}
	return out, nil
}

func parseTourReply(raw string) (domain.StructuredReply, error) {
	out, err := decodeStrict[tourReplyResponse](raw, "tour reply")
	if err != nil {
		return domain.StructuredReply{}, err
	}
	if out.Locations == nil {
		return domain.StructuredReply{}, missingKey("tour reply", "locations")
	}
	if out.Speech == nil {
		return domain.StructuredReply{}, missingKey("tour reply", "speech")
	}
	if strings.TrimSpace(*out.Speech) == "" {
		return domain.StructuredReply{}, errors.New("usecase: tour reply missing speech")
	}
	locations := make([]domain.Location, 0, len(out.Locations))
	for i, loc := range out.Locations {
		label := fmt.Sprintf("tour reply location %d", i)
		switch {
		case loc.Latitude == nil:
			return domain.StructuredReply{}, missingKey(label, "latitude")
		case loc.Longitude == nil:
			return domain.StructuredReply{}, missingKey(label, "longitude")
		case loc.DisplayName == nil:
			return domain.StructuredReply{}, missingKey(label, "displayName")
		case loc.Rating == nil:
			return domain.StructuredReply{}, missingKey(label, "rating")
		}
		if strings.TrimSpace(*loc.DisplayName) == "" {
			return domain.StructuredReply{}, fmt.Errorf("usecase: %s missing displayName", label)
		}
		locations = append(locations, domain.Location{
			Latitude:    *loc.Latitude,
			Longitude:   *loc.Longitude,
			DisplayName: *loc.DisplayName,
			Rating:      *loc.Rating,
		})
	}
	return domain.StructuredReply{Locations: locations, Speech: *out.Speech}, nil
}

func parseIntent(raw string) (domain.IntentClassification, error) {
	out, err := decodeStrict[intentResponse](raw, "intent")
	if err != nil {
		return domain.IntentClassification{}, err
	}
	if out.IsInformationSeeking == nil {
		return domain.IntentClassification{}, missingKey("intent", "is_information_seeking")
	}
	if out.Location == nil {
		return domain.IntentClassification{}, missingKey("intent", "location")
	}
	return domain.IntentClassification{
		InformationSeeking: *out.IsInformationSeeking,
		Location:           strings.TrimSpace(*out.Location),
	}, nil
}

func parseLanguage(raw string) (string, error) {
	out, err := decodeStrict[languageResponse](raw, "language")
	if err != nil {
		return "", err
	}
	if out.Language == nil {
		return "", missingKey("language", "language")
	}
	lang := normalizeLanguage(*out.Language)
	if lang == "" {
		return "", errors.New("usecase: language detection returned no language")
	}
	return lang, nil
}

func parseTranslation(raw string) (translationResponse, error) {
	out, err := decodeStrict[translationPayload](raw, "translation")
	if err != nil {
		return translationResponse{}, err
	}
	if out.Translation == nil {
		return translationResponse{}, missingKey("translation", "translation")
	}
	if out.LanguageSwitch == nil {
		return translationResponse{}, missingKey("translation", "language_switch")
	}
	text := strings.TrimSpace(*out.Translation)
	if text == "" {
		return translationResponse{}, errors.New("usecase: translation is empty")
	}
	return translationResponse{Translation: text, LanguageSwitch: normalizeLanguage(*out.LanguageSwitch)}, nil
}

func parsePreferences(raw string) (domain.PreferenceProfile, error) {
	out, err := decodeStrict[preferenceResponse](raw, "preferences")
	if err != nil {
		return domain.PreferenceProfile{}, err
	}
	switch {
	case out.Likes == nil:
		return domain.PreferenceProfile{}, missingKey("preferences", "likes")
	case out.Dislikes == nil:
		return domain.PreferenceProfile{}, missingKey("preferences", "dislikes")
	case out.Age == nil:
		return domain.PreferenceProfile{}, missingKey("preferences", "age")
	case out.Education == nil:
		return domain.PreferenceProfile{}, missingKey("preferences", "education")
	case out.Profession == nil:
		return domain.PreferenceProfile{}, missingKey("preferences", "profession")
	case out.VisitedPlaces == nil:
		return domain.PreferenceProfile{}, missingKey("preferences", "visited_places")
	}
	return domain.PreferenceProfile{
		Likes:         cleanList(out.Likes),
		Dislikes:      cleanList(out.Dislikes),
		Age:           strings.TrimSpace(*out.Age),
		Education:     strings.TrimSpace(*out.Education),
		Profession:    strings.TrimSpace(*out.Profession),
		VisitedPlaces: cleanList(out.VisitedPlaces),
	}, nil
}

func normalizeLanguage(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// cleanList trims entries and drops blanks and case-insensitive duplicates.
func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}
