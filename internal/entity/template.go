package entity

// GameTemplate is the board definition a game starts from. Template CRUD is
// owned by an external admin service; the engine only reads templates and
// the REST surface exposes a thin seed endpoint.
type GameTemplate struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	MapSize    string  `json:"map_size"`
	Board      [][]int `json:"board"`
	Visibility string  `json:"visibility,omitempty"`
}

// SpawnPoints lists every tile carrying a spawn object, row by row.
func (that *GameTemplate) SpawnPoints() []Coordinates {
	var spawns []Coordinates
	for y, row := range that.Board {
		for x, code := range row {
			if _, object := DecodeTile(code); object == ObjectSpawn {
				spawns = append(spawns, Coordinates{X: x, Y: y})
			}
		}
	}
	return spawns
}
