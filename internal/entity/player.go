package entity

// InventoryCapacity caps how many items a player may carry at once.
const InventoryCapacity = 2

type Player struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
	IsHost bool   `json:"is_host,omitempty"`

	Life    int `json:"life"`
	MaxLife int `json:"max_life"`
	Speed   int `json:"speed"`
	Attack  int `json:"attack"`
	Defense int `json:"defense"`

	CurrentMP int `json:"current_mp"`
	CurrentAP int `json:"current_ap"`

	Items []int `json:"items,omitempty"`

	WinCount       int `json:"win_count"`
	LoseCount      int `json:"lose_count"`
	FleeCount      int `json:"flee_count"`
	AmountEscape   int `json:"amount_escape"`
	DamageDealt    int `json:"damage_dealt"`
	DamageReceived int `json:"damage_received"`
}

// PickUpItem adds an item if the inventory has room.
func (that *Player) PickUpItem(item int) bool {
	if len(that.Items) >= InventoryCapacity {
		return false
	}
	that.Items = append(that.Items, item)
	return true
}

// ResetForTurn restores the per-turn budgets from the player's stats.
func (that *Player) ResetForTurn(actionPoints int) {
	that.CurrentMP = that.Speed
	that.CurrentAP = actionPoints
}
