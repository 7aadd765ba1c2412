package state

import (
	"math"
	"math/rand"
)

// Stat bounds for base stats at creation time.
const (
	StatMin = 3
	StatMax = 30
)

// maxInventorySlots bounds the number of distinct item stacks a character
// can carry.
const maxInventorySlots = 30

// Class is the character's combat archetype. NONE until the tutorial choice.
type Class string

const (
	ClassNone    Class = "NONE"
	ClassWarrior Class = "WARRIOR"
	ClassMage    Class = "MAGE"
	ClassRogue   Class = "ROGUE"
	ClassTank    Class = "TANK"
	ClassHealer  Class = "HEALER"
)

// Classes lists every selectable class, in presentation order.
var Classes = []Class{ClassWarrior, ClassMage, ClassRogue, ClassTank, ClassHealer}

// IsValid reports whether c is a recognised class (including NONE).
func (c Class) IsValid() bool {
	switch c {
	case ClassNone, ClassWarrior, ClassMage, ClassRogue, ClassTank, ClassHealer:
		return true
	}
	return false
}

// Grade is the coarse character-power tier, advancing E→D→C→B→A→S at fixed
// level thresholds.
type Grade string

const (
	GradeE Grade = "E"
	GradeD Grade = "D"
	GradeC Grade = "C"
	GradeB Grade = "B"
	GradeA Grade = "A"
	GradeS Grade = "S"
)

// gradeThresholds maps the minimum level for each grade, ascending.
var gradeThresholds = []struct {
	level int
	grade Grade
}{
	{1, GradeE},
	{10, GradeD},
	{20, GradeC},
	{30, GradeB},
	{40, GradeA},
	{50, GradeS},
}

// GradeForLevel returns the grade a character of the given level holds.
func GradeForLevel(level int) Grade {
	g := GradeE
	for _, t := range gradeThresholds {
		if level >= t.level {
			g = t.grade
		}
	}
	return g
}

// Stats is the six-stat block used for both base stats and equipment bonuses.
type Stats struct {
	Strength     int `json:"strength"`
	Agility      int `json:"agility"`
	Vitality     int `json:"vitality"`
	Intelligence int `json:"intelligence"`
	Wisdom       int `json:"wisdom"`
	Luck         int `json:"luck"`
}

// Add returns the component-wise sum of s and o.
func (s Stats) Add(o Stats) Stats {
	return Stats{
		Strength:     s.Strength + o.Strength,
		Agility:      s.Agility + o.Agility,
		Vitality:     s.Vitality + o.Vitality,
		Intelligence: s.Intelligence + o.Intelligence,
		Wisdom:       s.Wisdom + o.Wisdom,
		Luck:         s.Luck + o.Luck,
	}
}

// AddAll returns s with n added to every stat.
func (s Stats) AddAll(n int) Stats {
	return s.Add(Stats{n, n, n, n, n, n})
}

// Total returns the sum of all six stats.
func (s Stats) Total() int {
	return s.Strength + s.Agility + s.Vitality + s.Intelligence + s.Wisdom + s.Luck
}

// InRange reports whether every stat lies in [StatMin, StatMax].
func (s Stats) InRange() bool {
	for _, v := range []int{s.Strength, s.Agility, s.Vitality, s.Intelligence, s.Wisdom, s.Luck} {
		if v < StatMin || v > StatMax {
			return false
		}
	}
	return true
}

// StatAllocation is the character-creation stat preset.
type StatAllocation string

const (
	AllocBalanced StatAllocation = "BALANCED"
	AllocWarrior  StatAllocation = "WARRIOR"
	AllocMage     StatAllocation = "MAGE"
	AllocRogue    StatAllocation = "ROGUE"
	AllocTank     StatAllocation = "TANK"
	AllocRandom   StatAllocation = "RANDOM"
	AllocCustom   StatAllocation = "CUSTOM"
)

// IsValid reports whether a is a recognised allocation preset.
func (a StatAllocation) IsValid() bool {
	switch a {
	case AllocBalanced, AllocWarrior, AllocMage, AllocRogue, AllocTank, AllocRandom, AllocCustom:
		return true
	}
	return false
}

// allocationBudget is the stat-point total every preset distributes. All
// fixed presets sum to this; RANDOM and CUSTOM are normalised against it.
const allocationBudget = 60

// AllocateStats resolves a preset to a concrete stat block. RANDOM draws from
// rng (callers pass the seeded engine RNG for reproducibility); CUSTOM uses
// the supplied custom block, which must already be validated with
// [Stats.InRange].
func AllocateStats(alloc StatAllocation, custom Stats, rng *rand.Rand) Stats {
	switch alloc {
	case AllocWarrior:
		return Stats{Strength: 15, Agility: 10, Vitality: 13, Intelligence: 6, Wisdom: 6, Luck: 10}
	case AllocMage:
		return Stats{Strength: 5, Agility: 8, Vitality: 8, Intelligence: 16, Wisdom: 14, Luck: 9}
	case AllocRogue:
		return Stats{Strength: 9, Agility: 16, Vitality: 9, Intelligence: 8, Wisdom: 6, Luck: 12}
	case AllocTank:
		return Stats{Strength: 12, Agility: 6, Vitality: 17, Intelligence: 6, Wisdom: 9, Luck: 10}
	case AllocRandom:
		return randomStats(rng)
	case AllocCustom:
		return custom
	default: // BALANCED
		return Stats{Strength: 10, Agility: 10, Vitality: 10, Intelligence: 10, Wisdom: 10, Luck: 10}
	}
}

// randomStats distributes the allocation budget over six stats, keeping each
// within [StatMin, StatMax].
func randomStats(rng *rand.Rand) Stats {
	vals := [6]int{StatMin, StatMin, StatMin, StatMin, StatMin, StatMin}
	remaining := allocationBudget - 6*StatMin
	for remaining > 0 {
		i := rng.Intn(6)
		if vals[i] < StatMax {
			vals[i]++
			remaining--
		}
	}
	return Stats{vals[0], vals[1], vals[2], vals[3], vals[4], vals[5]}
}

// EquipmentSlot names a wearable slot.
type EquipmentSlot string

const (
	SlotWeapon    EquipmentSlot = "WEAPON"
	SlotArmor     EquipmentSlot = "ARMOR"
	SlotAccessory EquipmentSlot = "ACCESSORY"
)

// Item is a concrete object: gear, consumable, or quest reward.
type Item struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Rarity      Rarity        `json:"rarity"`
	Slot        EquipmentSlot `json:"slot,omitempty"`
	StatBonuses Stats         `json:"statBonuses"`
	Damage      int           `json:"damage,omitempty"`
	Description string        `json:"description,omitempty"`
}

// InventoryItem is an item stack in the inventory.
type InventoryItem struct {
	Item     Item `json:"item"`
	Quantity int  `json:"quantity"`
}

// Equipment holds the three optional gear slots.
type Equipment struct {
	Weapon    *Item `json:"weapon,omitempty"`
	Armor     *Item `json:"armor,omitempty"`
	Accessory *Item `json:"accessory,omitempty"`
}

// Bonuses returns the summed stat bonuses of all equipped items.
func (e Equipment) Bonuses() Stats {
	var b Stats
	for _, it := range []*Item{e.Weapon, e.Armor, e.Accessory} {
		if it != nil {
			b = b.Add(it.StatBonuses)
		}
	}
	return b
}

// clone returns a deep copy of e.
func (e Equipment) clone() Equipment {
	cp := func(it *Item) *Item {
		if it == nil {
			return nil
		}
		c := *it
		return &c
	}
	return Equipment{Weapon: cp(e.Weapon), Armor: cp(e.Armor), Accessory: cp(e.Accessory)}
}

// ResourcePool is a depletable resource (HP, MP, Energy).
// Invariant: 0 ≤ Current ≤ Max.
type ResourcePool struct {
	Current int `json:"current"`
	Max     int `json:"max"`
}

// Resources groups the three character resource pools.
type Resources struct {
	HP     ResourcePool `json:"hp"`
	MP     ResourcePool `json:"mp"`
	Energy ResourcePool `json:"energy"`
}

// Restored returns r with every pool at its maximum.
func (r Resources) Restored() Resources {
	r.HP.Current = r.HP.Max
	r.MP.Current = r.MP.Max
	r.Energy.Current = r.Energy.Max
	return r
}

// CharacterSheet is the full mechanical description of the player character.
type CharacterSheet struct {
	Level             int                     `json:"level"`
	XP                int                     `json:"xp"`
	Class             Class                   `json:"class"`
	CustomClassName   string                  `json:"customClassName,omitempty"`
	Grade             Grade                   `json:"grade"`
	BaseStats         Stats                   `json:"baseStats"`
	Resources         Resources               `json:"resources"`
	Equipment         Equipment               `json:"equipment"`
	Inventory         map[string]InventoryItem `json:"inventory"`
	Gold              int                     `json:"gold"`
	Skills            []Skill                 `json:"skills"`
	PartialSkills     map[string]PartialSkill `json:"partialSkills"`
	DiscoveredFusions map[string]struct{}     `json:"discoveredFusions"`
	UnspentStatPoints int                     `json:"unspentStatPoints"`
	Dead              bool                    `json:"dead"`
}

// NewCharacterSheet creates a level-1 sheet from a resolved stat block.
// Resource maxima derive from vitality, intelligence, and agility.
func NewCharacterSheet(base Stats) CharacterSheet {
	sheet := CharacterSheet{
		Level:             1,
		Class:             ClassNone,
		Grade:             GradeE,
		BaseStats:         base,
		Inventory:         make(map[string]InventoryItem),
		PartialSkills:     make(map[string]PartialSkill),
		DiscoveredFusions: make(map[string]struct{}),
	}
	sheet.Resources = ResourcesFor(base, 1)
	return sheet
}

// ResourcesFor derives full resource pools from stats and level.
func ResourcesFor(s Stats, level int) Resources {
	hp := 50 + s.Vitality*5 + (level-1)*10
	mp := 20 + s.Intelligence*3 + s.Wisdom*2 + (level-1)*5
	en := 30 + s.Agility*3 + (level-1)*5
	return Resources{
		HP:     ResourcePool{Current: hp, Max: hp},
		MP:     ResourcePool{Current: mp, Max: mp},
		Energy: ResourcePool{Current: en, Max: en},
	}
}

// EffectiveStats returns base stats plus equipment bonuses.
func (c CharacterSheet) EffectiveStats() Stats {
	return c.BaseStats.Add(c.Equipment.Bonuses())
}

// SkillByID returns the index of the skill with the given id, or -1.
func (c CharacterSheet) SkillByID(id string) int {
	for i, sk := range c.Skills {
		if sk.ID == id {
			return i
		}
	}
	return -1
}

// AddItem adds quantity of item to the inventory, stacking by item ID.
// Returns false when the inventory is full and the item holds no existing
// stack.
func (c *CharacterSheet) AddItem(item Item, quantity int) bool {
	if stack, ok := c.Inventory[item.ID]; ok {
		stack.Quantity += quantity
		c.Inventory[item.ID] = stack
		return true
	}
	if len(c.Inventory) >= maxInventorySlots {
		return false
	}
	c.Inventory[item.ID] = InventoryItem{Item: item, Quantity: quantity}
	return true
}

// clone returns a deep copy of c.
func (c CharacterSheet) clone() CharacterSheet {
	cp := c
	cp.Equipment = c.Equipment.clone()
	cp.Inventory = make(map[string]InventoryItem, len(c.Inventory))
	for k, v := range c.Inventory {
		cp.Inventory[k] = v
	}
	cp.Skills = make([]Skill, len(c.Skills))
	copy(cp.Skills, c.Skills)
	cp.PartialSkills = make(map[string]PartialSkill, len(c.PartialSkills))
	for k, v := range c.PartialSkills {
		cp.PartialSkills[k] = v
	}
	cp.DiscoveredFusions = make(map[string]struct{}, len(c.DiscoveredFusions))
	for k := range c.DiscoveredFusions {
		cp.DiscoveredFusions[k] = struct{}{}
	}
	return cp
}

// XPThreshold returns the XP required to advance from the given level,
// scaled by difficulty: 100 · 1.15^(level−1).
func XPThreshold(level int, d Difficulty) int {
	base := 100 * math.Pow(1.15, float64(level-1))
	return int(math.Ceil(base * d.XPScale()))
}
