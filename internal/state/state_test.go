package state

import (
	"math/rand"
	"testing"
)

func newSheet() CharacterSheet {
	return NewCharacterSheet(AllocateStats(AllocBalanced, Stats{}, nil))
}

func newGame(sys SystemType) GameState {
	return NewGame("g1", "Tester", "", sys, DifficultyNormal, newSheet(), PlayerPreferences{})
}

func TestAllocationPresetsRespectBudget(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, alloc := range []StatAllocation{AllocBalanced, AllocWarrior, AllocMage, AllocRogue, AllocTank, AllocRandom} {
		t.Run(string(alloc), func(t *testing.T) {
			s := AllocateStats(alloc, Stats{}, rng)
			if s.Total() != allocationBudget {
				t.Errorf("total = %d, want %d", s.Total(), allocationBudget)
			}
			if !s.InRange() {
				t.Errorf("stats out of range: %+v", s)
			}
		})
	}
}

func TestGradeForLevel(t *testing.T) {
	tests := []struct {
		level int
		want  Grade
	}{
		{1, GradeE}, {9, GradeE}, {10, GradeD}, {19, GradeD},
		{20, GradeC}, {30, GradeB}, {40, GradeA}, {50, GradeS}, {99, GradeS},
	}
	for _, tt := range tests {
		if got := GradeForLevel(tt.level); got != tt.want {
			t.Errorf("GradeForLevel(%d) = %s, want %s", tt.level, got, tt.want)
		}
	}
}

func TestXPThresholdGrowth(t *testing.T) {
	if got := XPThreshold(1, DifficultyNormal); got != 100 {
		t.Errorf("XPThreshold(1) = %d, want 100", got)
	}
	if got := XPThreshold(2, DifficultyNormal); got != 115 {
		t.Errorf("XPThreshold(2) = %d, want 115", got)
	}
	for lvl := 1; lvl < 30; lvl++ {
		if XPThreshold(lvl+1, DifficultyNormal) <= XPThreshold(lvl, DifficultyNormal) {
			t.Fatalf("threshold not strictly increasing at level %d", lvl)
		}
	}
	if XPThreshold(5, DifficultyNightmare) <= XPThreshold(5, DifficultyEasy) {
		t.Error("nightmare threshold not above easy")
	}
}

func TestCloneIsDeep(t *testing.T) {
	st := newGame(SystemIntegration)
	st.NPCs["n1"] = NPC{ID: "n1", Name: "Guide", LocationID: StartingLocationID}
	st.ActiveQuests["q1"] = Quest{ID: "q1", Objectives: []Objective{{ID: "o1", TargetProgress: 3}}}
	st.CharacterSheet.Inventory["i1"] = InventoryItem{Item: Item{ID: "i1", Name: "Rock"}, Quantity: 1}

	cp := st.Clone()
	cp.NPCs["n2"] = NPC{ID: "n2", LocationID: StartingLocationID}
	q := cp.ActiveQuests["q1"]
	q.Objectives[0].CurrentProgress = 3
	cp.ActiveQuests["q1"] = q
	delete(cp.CharacterSheet.Inventory, "i1")

	if _, leaked := st.NPCs["n2"]; leaked {
		t.Error("NPC map shared between clone and original")
	}
	if st.ActiveQuests["q1"].Objectives[0].CurrentProgress != 0 {
		t.Error("objective slice shared between clone and original")
	}
	if _, ok := st.CharacterSheet.Inventory["i1"]; !ok {
		t.Error("inventory map shared between clone and original")
	}
}

func TestCheckInvariants(t *testing.T) {
	t.Run("fresh game is valid", func(t *testing.T) {
		if err := newGame(SystemIntegration).CheckInvariants(); err != nil {
			t.Fatalf("CheckInvariants: %v", err)
		}
	})

	t.Run("quest both active and completed", func(t *testing.T) {
		st := newGame(SystemIntegration)
		st.ActiveQuests["q1"] = Quest{ID: "q1"}
		st.CompletedQuests["q1"] = struct{}{}
		if err := st.CheckInvariants(); err == nil {
			t.Fatal("expected invariant violation")
		}
	})

	t.Run("objective progress over target", func(t *testing.T) {
		st := newGame(SystemIntegration)
		st.ActiveQuests["q1"] = Quest{ID: "q1", Objectives: []Objective{
			{ID: "o1", TargetProgress: 1, CurrentProgress: 2},
		}}
		if err := st.CheckInvariants(); err == nil {
			t.Fatal("expected invariant violation")
		}
	})

	t.Run("unknown current location", func(t *testing.T) {
		st := newGame(SystemIntegration)
		st.CurrentLocationID = "loc_nowhere"
		if err := st.CheckInvariants(); err == nil {
			t.Fatal("expected invariant violation")
		}
	})

	t.Run("resource over max", func(t *testing.T) {
		st := newGame(SystemIntegration)
		st.CharacterSheet.Resources.HP.Current = st.CharacterSheet.Resources.HP.Max + 1
		if err := st.CheckInvariants(); err == nil {
			t.Fatal("expected invariant violation")
		}
	})

	t.Run("custom location satisfies lookup", func(t *testing.T) {
		st := newGame(SystemIntegration)
		st.CustomLocations["loc_cave"] = Location{ID: "loc_cave", Name: "Hidden Cave", Danger: 3}
		st.CurrentLocationID = "loc_cave"
		if err := st.CheckInvariants(); err != nil {
			t.Fatalf("CheckInvariants: %v", err)
		}
	})
}

func TestPlotGraphStatusTransitionsIdempotent(t *testing.T) {
	g := NewPlotGraph().
		WithNode(PlotNode{ID: "p1", Beat: Beat{Type: BeatRevelation, TriggerLevel: 1}}).
		WithNode(PlotNode{ID: "p2", Beat: Beat{Type: BeatVictory, TriggerLevel: 5}})
	g = g.WithEdge(PlotEdge{From: "p1", To: "p2", Type: EdgeLeadsTo})

	g = g.MarkTriggered("p1")
	g = g.MarkTriggered("p1")
	if !g.Nodes["p1"].Triggered {
		t.Fatal("p1 not triggered")
	}

	g = g.MarkCompleted("p1")
	g = g.MarkAbandoned("p1") // completed wins, abandon is a no-op
	if g.Nodes["p1"].Abandoned {
		t.Error("completed node was abandoned")
	}
	if err := g.CheckInvariants(); err != nil {
		t.Errorf("invariants: %v", err)
	}

	// Completing marks triggered implicitly.
	g = g.MarkCompleted("p2")
	if n := g.Nodes["p2"]; !n.Triggered || !n.Completed {
		t.Errorf("p2 = %+v, want triggered and completed", n)
	}

	if got := g.CompletionRatio(); got != 1.0 {
		t.Errorf("CompletionRatio = %v, want 1.0", got)
	}
}

func TestPlotGraphReadyNodes(t *testing.T) {
	g := NewPlotGraph().
		WithNode(PlotNode{ID: "low", Beat: Beat{TriggerLevel: 1}}).
		WithNode(PlotNode{ID: "high", Beat: Beat{TriggerLevel: 10}}).
		WithNode(PlotNode{ID: "done", Beat: Beat{TriggerLevel: 1}, Triggered: true, Completed: true})

	ready := g.ReadyNodes(5)
	if len(ready) != 1 || ready[0].ID != "low" {
		t.Errorf("ReadyNodes(5) = %v, want [low]", ready)
	}
}

func TestPlotGraphDropsDanglingEdges(t *testing.T) {
	g := NewPlotGraph().WithNode(PlotNode{ID: "p1"})
	g = g.WithEdge(PlotEdge{From: "p1", To: "ghost", Type: EdgeLeadsTo})
	if len(g.Edges) != 0 {
		t.Errorf("dangling edge kept: %v", g.Edges)
	}
}

func TestNPCHistoryRingBuffer(t *testing.T) {
	n := NPC{ID: "n1", Name: "Guide"}
	for i := 0; i < maxNPCHistory+5; i++ {
		n = n.WithExchange(DialogueExchange{PlayerText: "hi", NPCText: "hello"})
	}
	if len(n.History) != maxNPCHistory {
		t.Errorf("history length = %d, want %d", len(n.History), maxNPCHistory)
	}
}

func TestNPCRelationshipClamped(t *testing.T) {
	n := NPC{ID: "n1"}
	if got := n.WithRelationship(500).Relationship; got != 100 {
		t.Errorf("relationship = %d, want 100", got)
	}
	if got := n.WithRelationship(-500).Relationship; got != -100 {
		t.Errorf("relationship = %d, want -100", got)
	}
}

func TestInventoryStackingAndCapacity(t *testing.T) {
	sheet := newSheet()
	potion := Item{ID: "potion", Name: "Potion"}

	if !sheet.AddItem(potion, 1) || !sheet.AddItem(potion, 2) {
		t.Fatal("AddItem failed")
	}
	if got := sheet.Inventory["potion"].Quantity; got != 3 {
		t.Errorf("stack quantity = %d, want 3", got)
	}

	for i := 0; len(sheet.Inventory) < maxInventorySlots; i++ {
		sheet.AddItem(Item{ID: string(rune('a' + i)), Name: "Filler"}, 1)
	}
	if sheet.AddItem(Item{ID: "overflow"}, 1) {
		t.Error("AddItem succeeded past capacity")
	}
	// Existing stacks still accept quantity when full.
	if !sheet.AddItem(potion, 1) {
		t.Error("stacking rejected on full inventory")
	}
}

func TestAgentMemoryTokenEstimation(t *testing.T) {
	m := AgentMemory{AgentID: "gm", GameID: "g1"}
	if m.NeedsConsolidation(100) {
		t.Error("empty memory needs consolidation")
	}
	m.Messages = append(m.Messages, Message{Role: "user", Content: string(make([]byte, 4096))})
	if m.EstimateTokens() < 1000 {
		t.Errorf("EstimateTokens = %d, want >= 1000", m.EstimateTokens())
	}
	if !m.NeedsConsolidation(100) {
		t.Error("large memory not flagged for consolidation")
	}
}

func TestDeathSemanticsBySystemType(t *testing.T) {
	if DeathLoop.DeathSemantics() != DeathRespawnStronger {
		t.Error("DEATH_LOOP should respawn stronger")
	}
	if DungeonDelve.DeathSemantics() != DeathPermanent {
		t.Error("DUNGEON_DELVE should be permanent")
	}
	if SystemIntegration.DeathSemantics() != DeathXPPenalty {
		t.Error("default should be XP penalty")
	}
}
