package state

// Rarity grades items and skills.
type Rarity string

const (
	RarityCommon    Rarity = "COMMON"
	RarityUncommon  Rarity = "UNCOMMON"
	RarityRare      Rarity = "RARE"
	RarityEpic      Rarity = "EPIC"
	RarityLegendary Rarity = "LEGENDARY"
)

// skillMaxLevel is the level at which a skill stops gaining XP and becomes
// eligible for evolution.
const skillMaxLevel = 10

// ResourceCost is the per-use cost of an active skill.
type ResourceCost struct {
	MP     int `json:"mp"`
	Energy int `json:"energy"`
}

// Skill is a learned ability. Only active skills may be invoked; passive
// skills apply continuously and carry no cooldown.
type Skill struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	Rarity          Rarity       `json:"rarity"`
	Level           int          `json:"level"`
	XP              int          `json:"xp"`
	IsActive        bool         `json:"isActive"`
	Cost            ResourceCost `json:"cost"`
	MaxCooldown     int          `json:"maxCooldown"`
	CurrentCooldown int          `json:"currentCooldown"`
	BaseDamage      int          `json:"baseDamage,omitempty"`
	BaseHealing     int          `json:"baseHealing,omitempty"`
	// EvolvesTo lists skill ids this skill may evolve into once max level
	// is reached and the evolution requirement holds.
	EvolvesTo   []string `json:"evolvesTo,omitempty"`
	Description string   `json:"description,omitempty"`
}

// AtMaxLevel reports whether the skill can no longer gain levels and is
// therefore evolution-eligible (if it has an evolution path).
func (s Skill) AtMaxLevel() bool {
	return s.Level >= skillMaxLevel
}

// SkillXPThreshold returns the XP a skill needs to advance from level.
func SkillXPThreshold(level int) int {
	return 50 * level
}

// PartialSkill tracks progress toward discovering a full skill through
// repeated action patterns. When Observations reaches Required the rules
// engine materialises the full [Skill].
type PartialSkill struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Keywords     []string `json:"keywords"`
	Observations int      `json:"observations"`
	Required     int      `json:"required"`
}
