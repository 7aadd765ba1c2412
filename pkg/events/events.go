// Package events defines the typed event stream emitted to the host UI.
//
// Every turn produces a finite, ordered sequence of [Event] values. The
// concrete variants form a closed sum type — consumers dispatch with an
// exhaustive type switch:
//
//	switch e := ev.(type) {
//	case events.NarratorText:
//	    fmt.Println(e.Text)
//	case events.QuestUpdate:
//	    …
//	}
//
// Events are immutable values; none of the variants carry pointers into
// game state.
package events

import "fmt"

// Event is the closed interface implemented by every event variant.
type Event interface {
	isEvent()
}

// QuestStatus is the lifecycle stage reported by a [QuestUpdate].
type QuestStatus string

const (
	QuestNew        QuestStatus = "NEW"
	QuestInProgress QuestStatus = "IN_PROGRESS"
	QuestCompleted  QuestStatus = "COMPLETED"
	QuestFailed     QuestStatus = "FAILED"
)

// NarratorText is prose from the narrator, rendered verbatim to the player.
type NarratorText struct {
	Text string
}

// NPCDialogue is a line spoken by a specific NPC.
type NPCDialogue struct {
	NPCID   string
	NPCName string
	Text    string
}

// CombatLog is a mechanical combat message (damage rolls, crits).
type CombatLog struct {
	Text string
}

// StatChange reports a numeric stat transition (xp, level, hp, …).
type StatChange struct {
	StatName string
	OldValue int
	NewValue int
}

// ItemGained reports loot or reward items entering the inventory.
type ItemGained struct {
	ItemID   string
	ItemName string
	Quantity int
}

// QuestUpdate reports a quest lifecycle transition.
type QuestUpdate struct {
	QuestID   string
	QuestName string
	Status    QuestStatus
}

// SystemNotification is neutral out-of-world text: menu output, validation
// failures, degradation notices.
type SystemNotification struct {
	Text string
}

func (NarratorText) isEvent()       {}
func (NPCDialogue) isEvent()        {}
func (CombatLog) isEvent()          {}
func (StatChange) isEvent()         {}
func (ItemGained) isEvent()         {}
func (QuestUpdate) isEvent()        {}
func (SystemNotification) isEvent() {}

// Describe renders a one-line text summary of e, used when recent events are
// fed back into agent prompts.
func Describe(e Event) string {
	switch ev := e.(type) {
	case NarratorText:
		return "Narration: " + ev.Text
	case NPCDialogue:
		return fmt.Sprintf("%s says: %s", ev.NPCName, ev.Text)
	case CombatLog:
		return "Combat: " + ev.Text
	case StatChange:
		return fmt.Sprintf("Stat %s changed from %d to %d", ev.StatName, ev.OldValue, ev.NewValue)
	case ItemGained:
		return fmt.Sprintf("Gained %dx %s", ev.Quantity, ev.ItemName)
	case QuestUpdate:
		return fmt.Sprintf("Quest %q is now %s", ev.QuestName, ev.Status)
	case SystemNotification:
		return "System: " + ev.Text
	default:
		return fmt.Sprintf("%T", e)
	}
}
