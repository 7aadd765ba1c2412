package intent

import (
	"testing"

	"github.com/loreforge/loreforge/internal/state"
)

func testState(withNPC bool, locationID string) state.GameState {
	sheet := state.NewCharacterSheet(state.AllocateStats(state.AllocBalanced, state.Stats{}, nil))
	st := state.NewGame("g1", "Tester", "", state.SystemIntegration, state.DifficultyNormal, sheet, state.PlayerPreferences{})
	if locationID != "" {
		st.CurrentLocationID = locationID
		st.DiscoveredLocations[locationID] = struct{}{}
	}
	if withNPC {
		st.NPCs["n1"] = state.NPC{ID: "n1", Name: "Sergeant Vale", LocationID: st.CurrentLocationID}
	}
	return st
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		withNPC  bool
		location string
		want     Complexity
	}{
		{"npc present forces complex", "look around", true, "", Complex},
		{"attack keyword", "attack the slime", false, "", Complex},
		{"quest without list", "accept the quest", false, "", Complex},
		{"quest list stays simple", "quest list", false, "", Simple},
		{"explore in dangerous area", "explore the woods", false, "loc_whisperwood_edge", Complex},
		{"explore in safe area", "explore the plaza", false, "", Simple},
		{"status", "status", false, "", Simple},
		{"status stays simple with npc present", "status", true, "", Simple},
		{"quest list stays simple with npc present", "quest list", true, "", Simple},
		{"inventory", "open inventory", false, "", Simple},
		{"plain text, no npcs, safe", "walk north", false, "", Simple},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := testState(tt.withNPC, tt.location)
			if got := Classify(tt.input, st); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestClassifyIsStable(t *testing.T) {
	st := testState(false, "")
	first := Classify("attack the construct", st)
	for i := 0; i < 10; i++ {
		if got := Classify("attack the construct", st); got != first {
			t.Fatal("classifier not stable for fixed input and state")
		}
	}
}

func TestAnalyze(t *testing.T) {
	tests := []struct {
		input      string
		want       Intent
		wantTarget string
	}{
		{"status", StatusMenu, ""},
		{"show my inventory", InventoryMenu, ""},
		{"quest list", SystemQuery, ""},
		{"turn in quest", QuestAction, ""},
		{"accept the quest", QuestAction, ""},
		{"attack the training construct", Combat, "training construct"},
		{"fight slime", Combat, "slime"},
		{"talk to the sergeant", NPCDialogue, "sergeant"},
		{"use power strike", UseSkill, "power strike"},
		{"open the skill menu", SkillMenu, ""},
		{"evolve my blade skill", SkillEvolution, ""},
		{"fuse fireball and wind cutter", SkillFusion, ""},
		{"choose a class", ClassSelection, ""},
		{"i want to be a beastmaster", ClassSelection, ""},
		{"wander toward the fountain", Exploration, ""},
	}
	st := testState(false, "")
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := Analyze(tt.input, st)
			if got.Intent != tt.want {
				t.Errorf("Analyze(%q).Intent = %s, want %s", tt.input, got.Intent, tt.want)
			}
			if got.Target != tt.wantTarget {
				t.Errorf("Analyze(%q).Target = %q, want %q", tt.input, got.Target, tt.wantTarget)
			}
		})
	}
}

func TestMatchNPC(t *testing.T) {
	npcs := []state.NPC{
		{ID: "n1", Name: "Sergeant Vale"},
		{ID: "n2", Name: "Mirren the Archivist"},
	}

	tests := []struct {
		fragment string
		wantID   string
		wantOK   bool
	}{
		{"sergeant vale", "n1", true},
		{"vale", "n1", true},
		{"seargent vale", "n1", true}, // misspelling, phonetic match
		{"mirren", "n2", true},
		{"the archivist", "n2", true},
		{"borok", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.fragment, func(t *testing.T) {
			npc, ok := MatchNPC(tt.fragment, npcs)
			if ok != tt.wantOK {
				t.Fatalf("MatchNPC(%q) ok = %v, want %v", tt.fragment, ok, tt.wantOK)
			}
			if ok && npc.ID != tt.wantID {
				t.Errorf("MatchNPC(%q) = %s, want %s", tt.fragment, npc.ID, tt.wantID)
			}
		})
	}
}

func TestMatchNameEmptyCandidates(t *testing.T) {
	if _, ok := MatchName("anything", nil); ok {
		t.Error("match against empty candidate list")
	}
}
