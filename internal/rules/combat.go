package rules

import (
	"math"

	"github.com/loreforge/loreforge/internal/state"
)

// EnemyTarget describes the opponent of a single combat action. Danger sits
// on the same [1, 20] scale as location danger; enemy HP is abstract and one
// call resolves one action, not a whole encounter.
type EnemyTarget struct {
	Name   string
	Danger int
}

// CombatResult is the outcome of one resolved combat action.
type CombatResult struct {
	TargetName  string
	DamageDealt int
	Critical    bool
	Defeated    bool
	XPAwarded   int
	Gold        int
	Loot        []state.Item
	LevelUps    XPResult
}

// lootTable is the rolled drop pool, cheapest first.
var lootTable = []state.Item{
	{ID: "item_monster_hide", Name: "Monster Hide", Rarity: state.RarityCommon},
	{ID: "item_mana_shard", Name: "Mana Shard", Rarity: state.RarityUncommon, StatBonuses: state.Stats{Intelligence: 1}},
	{ID: "item_beast_fang", Name: "Beast Fang", Rarity: state.RarityRare, Slot: state.SlotAccessory, StatBonuses: state.Stats{Strength: 2}},
}

// critThreshold is the damage a blow must exceed to count as critical.
// Higher agility lowers the bar.
func critThreshold(agility int) int {
	t := 40 - agility
	if t < 5 {
		t = 5
	}
	return t
}

// ResolveCombat resolves one attack against target: damage from effective
// stats and the equipped weapon, a critical bonus when damage clears the
// agility-derived threshold, then XP, gold, and loot scaled by target danger
// and difficulty. Level-ups cascade through [Engine.GainXP].
func (e *Engine) ResolveCombat(st state.GameState, target EnemyTarget) (state.GameState, CombatResult) {
	sheet := st.CharacterSheet
	stats := sheet.EffectiveStats()

	weaponDamage := 0
	if sheet.Equipment.Weapon != nil {
		weaponDamage = sheet.Equipment.Weapon.Damage
	}

	danger := target.Danger
	if danger < 1 {
		danger = 1
	}
	scaledDanger := int(math.Round(float64(danger) * e.difficulty.DangerScale()))
	if scaledDanger < 1 {
		scaledDanger = 1
	}

	damage := stats.Strength*2 + weaponDamage + e.rng.Intn(stats.Agility+1)
	crit := damage > critThreshold(stats.Agility)
	if crit {
		damage += damage / 2
	}

	// One action defeats the enemy when the blow overwhelms its danger
	// rating; tougher enemies survive and the scene continues.
	defeated := damage >= scaledDanger*8

	result := CombatResult{
		TargetName:  target.Name,
		DamageDealt: damage,
		Critical:    crit,
		Defeated:    defeated,
	}

	if defeated {
		result.XPAwarded = scaledDanger * 15
		result.Gold = scaledDanger*3 + e.rng.Intn(scaledDanger*2+1)
		if e.rng.Intn(100) < 20+stats.Luck {
			result.Loot = []state.Item{lootTable[e.rng.Intn(len(lootTable))]}
		}
	}

	next := st.Clone()
	next.CharacterSheet.Gold += result.Gold
	for _, it := range result.Loot {
		next.CharacterSheet.AddItem(it, 1)
	}
	if result.XPAwarded > 0 {
		var xp XPResult
		next, xp = e.GainXP(next, result.XPAwarded)
		result.LevelUps = xp
	}

	e.log.Debug("combat resolved",
		"target", target.Name,
		"damage", damage,
		"critical", crit,
		"defeated", defeated,
		"xp", result.XPAwarded)
	return next, result
}
