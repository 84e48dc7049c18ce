package usecase

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"tour-guide-agent/internal/domain"
)

func TestOutputSchemas_AreStrictJSON(t *testing.T) {
	for _, s := range []*domain.OutputSchema{tourReplySchema, intentSchema, languageSchema, translationSchema, preferenceSchema} {
		var def struct {
			AdditionalProperties bool                       `json:"additionalProperties"`
			Properties           map[string]json.RawMessage `json:"properties"`
			Required             []string                   `json:"required"`
		}
		require.NoError(t, json.Unmarshal(s.Definition, &def), s.Name)
		require.False(t, def.AdditionalProperties, s.Name)
		require.Len(t, def.Required, len(def.Properties), s.Name)
		for _, r := range def.Required {
			require.Contains(t, def.Properties, r, s.Name)
		}
	}
}

func TestParseTourReply(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    domain.StructuredReply
		wantErr string
	}{
		{
			name: "recommendation",
			raw:  `{"locations":[{"latitude":1.5,"longitude":2.5,"displayName":"A","rating":4}],"speech":"Go to A."}`,
			want: domain.StructuredReply{
				Locations: []domain.Location{{Latitude: 1.5, Longitude: 2.5, DisplayName: "A", Rating: 4}},
				Speech:    "Go to A.",
			},
		},
		{
			name: "empty locations",
			raw:  `{"locations":[],"speech":"Hi!"}`,
			want: domain.StructuredReply{Locations: []domain.Location{}, Speech: "Hi!"},
		},
		{name: "missing locations", raw: `{"speech":"hi"}`, wantErr: `missing required key "locations"`},
		{name: "null locations", raw: `{"locations":null,"speech":"hi"}`, wantErr: `missing required key "locations"`},
		{name: "missing speech key", raw: `{"locations":[]}`, wantErr: `missing required key "speech"`},
		{name: "location without coordinates", raw: `{"locations":[{"displayName":"A","rating":4}],"speech":"x"}`, wantErr: `location 0 missing required key "latitude"`},
		{name: "location without longitude", raw: `{"locations":[{"latitude":1,"displayName":"A","rating":4}],"speech":"x"}`, wantErr: `location 0 missing required key "longitude"`},
		{name: "location without name", raw: `{"locations":[{"latitude":1,"longitude":2,"rating":4}],"speech":"x"}`, wantErr: `location 0 missing required key "displayName"`},
		{name: "location without rating", raw: `{"locations":[{"latitude":1,"longitude":2,"displayName":"A"},{"latitude":1}],"speech":"x"}`, wantErr: `location 0 missing required key "rating"`},
		{name: "empty speech", raw: `{"locations":[],"speech":"  "}`, wantErr: "missing speech"},
		{name: "nameless location", raw: `{"locations":[{"latitude":1,"longitude":2,"displayName":"","rating":1}],"speech":"x"}`, wantErr: "missing displayName"},
		{name: "unknown field", raw: `{"locations":[],"speech":"x","extra":1}`, wantErr: "unknown field"},
		{name: "trailing data", raw: `{"locations":[],"speech":"x"}{}`, wantErr: "multiple JSON values"},
		{name: "not json", raw: `Sure! Here you go`, wantErr: "decode tour reply"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseTourReply(tc.raw)
			if tc.wantErr != "" {
				require.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestParseIntent(t *testing.T) {
	got, err := parseIntent(`{"is_information_seeking":true,"location":"  Statue of Liberty "}`)
	require.NoError(t, err)
	require.Equal(t, domain.IntentClassification{InformationSeeking: true, Location: "Statue of Liberty"}, got)

	got, err = parseIntent(`{"is_information_seeking":false,"location":""}`)
	require.NoError(t, err)
	require.Equal(t, domain.IntentClassification{}, got)

	_, err = parseIntent(`{"is_information_seeking":true}{"x":1}`)
	require.Error(t, err)

	_, err = parseIntent(`{}`)
	require.ErrorContains(t, err, `missing required key "is_information_seeking"`)

	_, err = parseIntent(`{"is_information_seeking":true}`)
	require.ErrorContains(t, err, `missing required key "location"`)
}

func TestParseLanguage(t *testing.T) {
	got, err := parseLanguage(`{"language":" French "}`)
	require.NoError(t, err)
	require.Equal(t, "french", got)

	_, err = parseLanguage(`{"language":""}`)
	require.ErrorContains(t, err, "no language")

	_, err = parseLanguage(`{}`)
	require.ErrorContains(t, err, `missing required key "language"`)
}

func TestParseTranslation(t *testing.T) {
	got, err := parseTranslation(`{"translation":" Bonjour ","language_switch":" Spanish"}`)
	require.NoError(t, err)
	require.Equal(t, translationResponse{Translation: "Bonjour", LanguageSwitch: "spanish"}, got)

	_, err = parseTranslation(`{"translation":"","language_switch":""}`)
	require.ErrorContains(t, err, "empty")

	_, err = parseTranslation(`{"translation":"Bonjour"}`)
	require.ErrorContains(t, err, `missing required key "language_switch"`)
}

func TestParsePreferences(t *testing.T) {
	got, err := parsePreferences(`{"likes":["Museums","museums",""],"dislikes":[],"age":" 34 ","education":"","profession":"","visited_places":["Louvre, last spring"]}`)
	require.NoError(t, err)
	require.Equal(t, domain.PreferenceProfile{
		Likes:         []string{"Museums"},
		Dislikes:      []string{},
		Age:           "34",
		VisitedPlaces: []string{"Louvre, last spring"},
	}, got)

	_, err = parsePreferences(`{"likes":[]}` + "\n" + `trailing`)
	require.Error(t, err)

	_, err = parsePreferences(`{}`)
	require.ErrorContains(t, err, `missing required key "likes"`)

	_, err = parsePreferences(`{"likes":[],"dislikes":[],"age":"","education":"","profession":""}`)
	require.ErrorContains(t, err, `missing required key "visited_places"`)
}
