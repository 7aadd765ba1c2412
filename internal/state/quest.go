package state

// QuestType classifies how a quest entered the game.
type QuestType string

const (
	QuestTypeTutorial QuestType = "TUTORIAL"
	QuestTypeMain     QuestType = "MAIN"
	QuestTypeSide     QuestType = "SIDE"
	QuestTypeSystem   QuestType = "SYSTEM"
)

// ObjectiveType determines which turn intents advance an objective.
type ObjectiveType string

const (
	ObjectiveKill          ObjectiveType = "KILL"
	ObjectiveReachLocation ObjectiveType = "REACH_LOCATION"
	ObjectiveExplore       ObjectiveType = "EXPLORE"
	ObjectiveTalk          ObjectiveType = "TALK"
	ObjectiveUseSkill      ObjectiveType = "USE_SKILL"
	ObjectiveCustom        ObjectiveType = "CUSTOM"
)

// Objective is one step of a quest.
// Invariant: 0 ≤ CurrentProgress ≤ TargetProgress.
type Objective struct {
	ID              string        `json:"id"`
	Description     string        `json:"description"`
	Type            ObjectiveType `json:"type"`
	TargetID        string        `json:"targetId"`
	TargetProgress  int           `json:"targetProgress"`
	CurrentProgress int           `json:"currentProgress"`
}

// Complete reports whether the objective has reached its target.
func (o Objective) Complete() bool {
	return o.CurrentProgress >= o.TargetProgress
}

// Rewards are applied exactly once, when the quest is explicitly turned in.
type Rewards struct {
	XP    int    `json:"xp"`
	Gold  int    `json:"gold"`
	Items []Item `json:"items,omitempty"`
	// SkillID optionally grants a skill on turn-in.
	SkillID string `json:"skillId,omitempty"`
}

// Quest is an accepted quest with ordered objectives.
type Quest struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Type       QuestType   `json:"type"`
	Giver      string      `json:"giver,omitempty"`
	Objectives []Objective `json:"objectives"`
	Rewards    Rewards     `json:"rewards"`
}

// Complete reports whether every objective is complete. Completion flags the
// quest ready for turn-in; it does not apply rewards.
func (q Quest) Complete() bool {
	for _, o := range q.Objectives {
		if !o.Complete() {
			return false
		}
	}
	return len(q.Objectives) > 0
}

// ObjectiveByID returns the index of the objective with the given id, or -1.
func (q Quest) ObjectiveByID(id string) int {
	for i, o := range q.Objectives {
		if o.ID == id {
			return i
		}
	}
	return -1
}

// NextObjective returns the first incomplete objective, or nil.
func (q Quest) NextObjective() *Objective {
	for i := range q.Objectives {
		if !q.Objectives[i].Complete() {
			o := q.Objectives[i]
			return &o
		}
	}
	return nil
}

// clone returns a deep copy of q.
func (q Quest) clone() Quest {
	cp := q
	cp.Objectives = make([]Objective, len(q.Objectives))
	copy(cp.Objectives, q.Objectives)
	cp.Rewards.Items = make([]Item, len(q.Rewards.Items))
	copy(cp.Rewards.Items, q.Rewards.Items)
	return cp
}
