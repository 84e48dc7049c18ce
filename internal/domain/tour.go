package domain

// Coordinates is a point on the map.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// City is the visitor's current position as reported by the client. Name is
// optional and only forwarded to the model.
type City struct {
	Name      string  `json:"name,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (c City) Coordinates() Coordinates {
	return Coordinates{Latitude: c.Latitude, Longitude: c.Longitude}
}

// Location is a point of interest as produced by the places lookup.
type Location struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	DisplayName string  `json:"displayName"`
	Rating      float64 `json:"rating"`
}

// StructuredReply is what a turn hands back to the caller. Locations are in
// suggested walking order.
type StructuredReply struct {
	Locations []Location `json:"locations"`
	Speech    string     `json:"speech"`
}

// PreferenceProfile is derived from the full conversation after every turn.
type PreferenceProfile struct {
	Likes         []string `json:"likes"`
	Dislikes      []string `json:"dislikes"`
	Age           string   `json:"age,omitempty"`
	Education     string   `json:"education,omitempty"`
	Profession    string   `json:"profession,omitempty"`
	VisitedPlaces []string `json:"visitedPlaces"`
}

// IntentClassification labels the latest user turn. Location is empty when no
// specific place was named.
type IntentClassification struct {
	InformationSeeking bool
	Location           string
}

// PlaceReview is a single provider review.
type PlaceReview struct {
	Rating float64 `json:"rating"`
	Text   string  `json:"text"`
}

// PlaceDetails is the best text-search match for a named place.
type PlaceDetails struct {
	Name       string        `json:"name"`
	Address    string        `json:"address,omitempty"`
	PriceLevel string        `json:"priceLevel,omitempty"`
	Rating     float64       `json:"rating,omitempty"`
	Summary    string        `json:"summary,omitempty"`
	Reviews    []PlaceReview `json:"reviews,omitempty"`
}

// Enrichment is the supplementary context injected into a turn's prompt.
type Enrichment struct {
	Place   *PlaceDetails `json:"place,omitempty"`
	Article string        `json:"article,omitempty"`
}

// Empty reports whether no enrichment was gathered.
func (e Enrichment) Empty() bool {
	return e.Place == nil && e.Article == ""
}
