package state

// Location is a place in the world. Template locations are static fixtures
// shared by every game; custom locations are generated during play and are
// append-only once created.
type Location struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Biome       string   `json:"biome"`
	Danger      int      `json:"danger"` // [1, 20]
	Features    []string `json:"features,omitempty"`
	Connections []string `json:"connections,omitempty"`
	Lore        string   `json:"lore,omitempty"`
}

// StartingLocationID is where every new game begins.
const StartingLocationID = "loc_awakening_plaza"

// templateLocations is the static starting-area fixture set.
var templateLocations = map[string]Location{
	StartingLocationID: {
		ID:          StartingLocationID,
		Name:        "Awakening Plaza",
		Biome:       "urban",
		Danger:      1,
		Features:    []string{"training constructs", "stone fountain", "notice board"},
		Connections: []string{"loc_training_grounds", "loc_whisperwood_edge"},
		Lore:        "Where the newly integrated first open their eyes.",
	},
	"loc_training_grounds": {
		ID:          "loc_training_grounds",
		Name:        "Training Grounds",
		Biome:       "urban",
		Danger:      2,
		Features:    []string{"sparring ring", "weapon racks"},
		Connections: []string{StartingLocationID},
	},
	"loc_whisperwood_edge": {
		ID:          "loc_whisperwood_edge",
		Name:        "Edge of the Whisperwood",
		Biome:       "forest",
		Danger:      4,
		Features:    []string{"overgrown path", "standing stones"},
		Connections: []string{StartingLocationID, "loc_whisperwood_deep"},
		Lore:        "The trees murmur to those who listen.",
	},
	"loc_whisperwood_deep": {
		ID:          "loc_whisperwood_deep",
		Name:        "Deep Whisperwood",
		Biome:       "forest",
		Danger:      8,
		Connections: []string{"loc_whisperwood_edge"},
	},
}

// TemplateLocation returns the static fixture with the given id.
func TemplateLocation(id string) (Location, bool) {
	loc, ok := templateLocations[id]
	return loc, ok
}

// TemplateLocationIDs returns the ids of all static fixtures.
func TemplateLocationIDs() []string {
	ids := make([]string, 0, len(templateLocations))
	for id := range templateLocations {
		ids = append(ids, id)
	}
	return ids
}
