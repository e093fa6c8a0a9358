package entity

// Map sizes understood by MaxPlayersForMapSize.
const (
	MapSizeSmall  = "small"
	MapSizeMedium = "medium"
	MapSizeLarge  = "large"
)

type GameLobby struct {
	ID         string    `json:"id"`
	GameID     string    `json:"game_id"`
	Players    []*Player `json:"players"`
	IsLocked   bool      `json:"is_locked"`
	MaxPlayers int       `json:"max_players"`
}

// MaxPlayersForMapSize derives the lobby capacity from the template's map
// size. Unknown sizes fall back to the smallest capacity.
func MaxPlayersForMapSize(mapSize string) int {
	switch mapSize {
	case MapSizeSmall:
		return 2
	case MapSizeMedium:
		return 4
	case MapSizeLarge:
		return 6
	default:
		return 2
	}
}

func (that *GameLobby) IsFull() bool {
	return len(that.Players) >= that.MaxPlayers
}

func (that *GameLobby) FindPlayer(name string) *Player {
	for _, player := range that.Players {
		if player.Name == name {
			return player
		}
	}
	return nil
}

// Host returns the hosting player, or nil when the lobby is empty.
func (that *GameLobby) Host() *Player {
	for _, player := range that.Players {
		if player.IsHost {
			return player
		}
	}
	return nil
}

// RemovePlayer drops the named player and reports whether a removal
// happened and whether the removed player was the host.
func (that *GameLobby) RemovePlayer(name string) (removed, wasHost bool) {
	for i, player := range that.Players {
		if player.Name != name {
			continue
		}
		wasHost = player.IsHost
		that.Players = append(that.Players[:i], that.Players[i+1:]...)
		return true, wasHost
	}
	return false, false
}
