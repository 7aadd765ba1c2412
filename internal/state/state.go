package state

import "fmt"

// InvariantError reports a violated state invariant. These indicate bugs:
// the orchestrator aborts the session after one snapshot attempt when a
// transition produces one.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string {
	return "state: invariant violated: " + e.Msg
}

// PlayerPreferences is free-text play-style guidance surfaced to the
// GameMaster and the planner.
type PlayerPreferences struct {
	Playstyle            string `json:"playstyle,omitempty" yaml:"playstyle"`
	PlaystyleDescription string `json:"playstyleDescription,omitempty" yaml:"playstyle_description"`
}

// GameState is the root of the world model for a single game. It is owned
// exclusively by the turn orchestrator; everything else reads snapshots.
type GameState struct {
	GameID     string     `json:"gameId"`
	PlayerName string     `json:"playerName"`
	Backstory  string     `json:"backstory,omitempty"`
	SystemType SystemType `json:"systemType"`
	Difficulty Difficulty `json:"difficulty"`

	CharacterSheet CharacterSheet `json:"characterSheet"`

	CurrentLocationID   string              `json:"currentLocationId"`
	DiscoveredLocations map[string]struct{} `json:"discoveredLocations"`
	CustomLocations     map[string]Location `json:"customLocations"`

	NPCs map[string]NPC `json:"npcs"`

	ActiveQuests    map[string]Quest    `json:"activeQuests"`
	CompletedQuests map[string]struct{} `json:"completedQuests"`

	PlotGraph PlotGraph `json:"plotGraph"`

	DeathCount               int               `json:"deathCount"`
	HasOpeningNarrationPlayed bool             `json:"hasOpeningNarrationPlayed"`
	PlayerPreferences        PlayerPreferences `json:"playerPreferences"`
}

// NewGame creates the initial state for a fresh game. The character starts
// at the template starting location with it already discovered.
func NewGame(gameID, playerName, backstory string, sys SystemType, diff Difficulty, sheet CharacterSheet, prefs PlayerPreferences) GameState {
	return GameState{
		GameID:              gameID,
		PlayerName:          playerName,
		Backstory:           backstory,
		SystemType:          sys,
		Difficulty:          diff,
		CharacterSheet:      sheet,
		CurrentLocationID:   StartingLocationID,
		DiscoveredLocations: map[string]struct{}{StartingLocationID: {}},
		CustomLocations:     make(map[string]Location),
		NPCs:                make(map[string]NPC),
		ActiveQuests:        make(map[string]Quest),
		CompletedQuests:     make(map[string]struct{}),
		PlotGraph:           NewPlotGraph(),
		PlayerPreferences:   prefs,
	}
}

// Clone returns a deep copy of s. Transitions clone first, then mutate the
// copy, so earlier snapshots stay valid for concurrent readers.
func (s GameState) Clone() GameState {
	cp := s
	cp.CharacterSheet = s.CharacterSheet.clone()
	cp.DiscoveredLocations = make(map[string]struct{}, len(s.DiscoveredLocations))
	for k := range s.DiscoveredLocations {
		cp.DiscoveredLocations[k] = struct{}{}
	}
	cp.CustomLocations = make(map[string]Location, len(s.CustomLocations))
	for k, v := range s.CustomLocations {
		cp.CustomLocations[k] = v
	}
	cp.NPCs = make(map[string]NPC, len(s.NPCs))
	for k, v := range s.NPCs {
		cp.NPCs[k] = v.clone()
	}
	cp.ActiveQuests = make(map[string]Quest, len(s.ActiveQuests))
	for k, v := range s.ActiveQuests {
		cp.ActiveQuests[k] = v.clone()
	}
	cp.CompletedQuests = make(map[string]struct{}, len(s.CompletedQuests))
	for k := range s.CompletedQuests {
		cp.CompletedQuests[k] = struct{}{}
	}
	cp.PlotGraph = s.PlotGraph.Clone()
	return cp
}

// Location resolves a location id against template fixtures first, then
// custom locations.
func (s GameState) Location(id string) (Location, bool) {
	if loc, ok := TemplateLocation(id); ok {
		return loc, true
	}
	loc, ok := s.CustomLocations[id]
	return loc, ok
}

// CurrentLocation returns the location the character stands in.
func (s GameState) CurrentLocation() (Location, bool) {
	return s.Location(s.CurrentLocationID)
}

// NPCsAt returns all NPCs whose location matches locationID.
func (s GameState) NPCsAt(locationID string) []NPC {
	var here []NPC
	for _, n := range s.NPCs {
		if n.LocationID == locationID {
			here = append(here, n)
		}
	}
	return here
}

// NPCByName returns the NPC with the given (case-sensitive) name.
func (s GameState) NPCByName(name string) (NPC, bool) {
	for _, n := range s.NPCs {
		if n.Name == name {
			return n, true
		}
	}
	return NPC{}, false
}

// CheckInvariants verifies the structural invariants of the state. A non-nil
// result is always an [InvariantError].
func (s GameState) CheckInvariants() error {
	for id := range s.ActiveQuests {
		if _, done := s.CompletedQuests[id]; done {
			return &InvariantError{Msg: fmt.Sprintf("quest %s both active and completed", id)}
		}
	}
	for id, q := range s.ActiveQuests {
		for _, o := range q.Objectives {
			if o.CurrentProgress > o.TargetProgress {
				return &InvariantError{Msg: fmt.Sprintf("quest %s objective %s progress %d exceeds target %d", id, o.ID, o.CurrentProgress, o.TargetProgress)}
			}
		}
	}
	if _, ok := s.Location(s.CurrentLocationID); !ok {
		return &InvariantError{Msg: "current location " + s.CurrentLocationID + " does not exist"}
	}
	for id, n := range s.NPCs {
		if _, ok := s.Location(n.LocationID); !ok {
			return &InvariantError{Msg: fmt.Sprintf("npc %s placed at unknown location %s", id, n.LocationID)}
		}
	}
	res := s.CharacterSheet.Resources
	for name, p := range map[string]ResourcePool{"hp": res.HP, "mp": res.MP, "energy": res.Energy} {
		if p.Current > p.Max {
			return &InvariantError{Msg: fmt.Sprintf("resource %s current %d exceeds max %d", name, p.Current, p.Max)}
		}
	}
	return s.PlotGraph.CheckInvariants()
}
