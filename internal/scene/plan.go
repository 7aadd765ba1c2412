// Package scene holds the GameMaster/Narrator pipeline: planning a scene
// from player input, executing nothing itself (mechanics stay in the rules
// engine), and rendering plans plus mechanical results into prose.
package scene

import "github.com/loreforge/loreforge/internal/state"

// ActionType classifies the primary action of a scene plan.
// Unknown strings decode to the default, EXPLORATION.
type ActionType string

const (
	ActionCombat      ActionType = "COMBAT"
	ActionExploration ActionType = "EXPLORATION"
	ActionDialogue    ActionType = "DIALOGUE"
	ActionSystemQuery ActionType = "SYSTEM_QUERY"
	ActionQuestAction ActionType = "QUEST_ACTION"
	ActionMovement    ActionType = "MOVEMENT"
	ActionInteraction ActionType = "INTERACTION"
)

// ReactionTiming places an NPC reaction relative to the narration.
// Unknown strings decode to the default, AFTER.
type ReactionTiming string

const (
	TimingBefore ReactionTiming = "BEFORE"
	TimingDuring ReactionTiming = "DURING"
	TimingAfter  ReactionTiming = "AFTER"
	TimingNone   ReactionTiming = "NONE"
)

// BeatKind classifies a narrative beat inside a scene.
// Unknown strings decode to the default, WORLD_BUILDING.
type BeatKind string

const (
	BeatForeshadowing   BeatKind = "FORESHADOWING"
	BeatCallback        BeatKind = "CALLBACK"
	BeatTensionBuild    BeatKind = "TENSION_BUILD"
	BeatRelief          BeatKind = "RELIEF"
	BeatWorldBuilding   BeatKind = "WORLD_BUILDING"
	BeatCharacterMoment BeatKind = "CHARACTER_MOMENT"
)

// Prominence weighs a narrative beat. Unknown strings decode to the
// default, MODERATE.
type Prominence string

const (
	ProminenceSubtle    Prominence = "SUBTLE"
	ProminenceModerate  Prominence = "MODERATE"
	ProminenceProminent Prominence = "PROMINENT"
)

// RiskLevel grades a suggested action. Unknown strings decode to MODERATE.
type RiskLevel string

const (
	RiskSafe      RiskLevel = "SAFE"
	RiskModerate  RiskLevel = "MODERATE"
	RiskRisky     RiskLevel = "RISKY"
	RiskDangerous RiskLevel = "DANGEROUS"
)

// SceneTone sets the mood of the narration. Unknown strings decode to the
// default, PEACEFUL.
type SceneTone string

const (
	TonePeaceful   SceneTone = "PEACEFUL"
	ToneTense      SceneTone = "TENSE"
	ToneMysterious SceneTone = "MYSTERIOUS"
	ToneComedic    SceneTone = "COMEDIC"
	ToneTragic     SceneTone = "TRAGIC"
	ToneTriumphant SceneTone = "TRIUMPHANT"
	ToneForeboding SceneTone = "FOREBODING"
	ToneFrantic    SceneTone = "FRANTIC"
)

// EventTiming schedules a triggered event. Unknown strings decode to the
// default, IMMEDIATE.
type EventTiming string

const (
	EventImmediate EventTiming = "IMMEDIATE"
	EventDelayed   EventTiming = "DELAYED"
	EventSetup     EventTiming = "SETUP"
)

// PrimaryAction is what the player's input amounts to this turn.
type PrimaryAction struct {
	Type             ActionType `json:"type"`
	Target           string     `json:"target,omitempty"`
	Description      string     `json:"description"`
	NarrativeContext string     `json:"narrativeContext,omitempty"`
}

// NPCReaction is one NPC's response within the scene.
type NPCReaction struct {
	NPCName       string         `json:"npcName"`
	Reaction      string         `json:"reaction"`
	DeliveryStyle string         `json:"deliveryStyle,omitempty"`
	Timing        ReactionTiming `json:"timing"`
	Dialogue      string         `json:"dialogue,omitempty"`
}

// NarrativeBeat is a story note woven into the narration.
type NarrativeBeat struct {
	Type       BeatKind   `json:"type"`
	Content    string     `json:"content"`
	Prominence Prominence `json:"prominence"`
}

// SuggestedAction is one follow-up option offered to the player.
type SuggestedAction struct {
	Action    string    `json:"action"`
	Type      string    `json:"type,omitempty"`
	RiskLevel RiskLevel `json:"riskLevel"`
	Context   string    `json:"context,omitempty"`
}

// TriggeredEvent is a consequence the plan schedules.
type TriggeredEvent struct {
	EventType   string      `json:"eventType"`
	Description string      `json:"description"`
	Timing      EventTiming `json:"timing"`
}

// ScenePlan is the GameMaster's structured directive for one turn.
type ScenePlan struct {
	PrimaryAction        PrimaryAction     `json:"primaryAction"`
	NPCReactions         []NPCReaction     `json:"npcReactions,omitempty"`
	EnvironmentalEffects []string          `json:"environmentalEffects,omitempty"`
	NarrativeBeats       []NarrativeBeat   `json:"narrativeBeats,omitempty"`
	SuggestedActions     []SuggestedAction `json:"suggestedActions,omitempty"`
	SceneTone            SceneTone         `json:"sceneTone"`
	TriggeredEvents      []TriggeredEvent  `json:"triggeredEvents,omitempty"`
}

// MinimalPlan is the fallback when the GameMaster's reply cannot be parsed:
// a plain exploration beat with two safe options.
func MinimalPlan() ScenePlan {
	return ScenePlan{
		PrimaryAction: PrimaryAction{
			Type:        ActionExploration,
			Description: "You take stock of your surroundings.",
		},
		SuggestedActions: []SuggestedAction{
			{Action: "Look around", RiskLevel: RiskSafe},
			{Action: "Continue onward", RiskLevel: RiskSafe},
		},
		SceneTone: TonePeaceful,
	}
}

// SceneResults is the mechanical outcome of executing a plan against the
// rules engine. The narrator renders it; the orchestrator emits events
// from it.
type SceneResults struct {
	CombatTarget        string
	DamageDealt         int
	Critical            bool
	EnemyDefeated       bool
	XPBefore            int
	XPGained            int
	LevelsGained        int
	NewLevel            int
	GradeAdvanced       bool
	NewGrade            state.Grade
	GoldGained          int
	ItemsGained         []state.Item
	LocationsDiscovered []string
	SkillGranted        *state.Skill
	QuestUpdates        []string
	StateChanges        []string
	NPCDialogue         map[string]string // npcName → spoken line
}
