package types

// LatLng is a geographic coordinate used to bias place lookups.
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// SearchRequest asks for an answer grounded in web search or, when UseMaps
// is set, in place data near Location.
type SearchRequest struct {
	Prompt   string  `json:"prompt"`
	UseMaps  bool    `json:"use_maps,omitempty"`
	Location *LatLng `json:"location,omitempty"`
}

// Citation is a source backing a grounded answer.
type Citation struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

type SearchResult struct {
	Text      string     `json:"text"`
	Citations []Citation `json:"citations"`
}
