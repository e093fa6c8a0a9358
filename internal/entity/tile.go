package entity

import "math"

// TileDelimiter separates the terrain digit from the object digit in a
// combined tile code: code = type + object*10.
const TileDelimiter = 10

type TileType int

const (
	TileGrass TileType = iota
	TileWater
	TileIce
	TileDoorClosed
	TileDoorOpen
	TileWall
)

type ObjectType int

const (
	ObjectNone ObjectType = iota
	ObjectBoots
	ObjectSword
	ObjectPotion
	ObjectWand
	ObjectCrystal
	ObjectSpawn
	ObjectRandom
)

type Coordinates struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// NoSpot is the sentinel returned when no valid tile can be found.
var NoSpot = Coordinates{X: -1, Y: -1}

// DecodeTile splits a combined code into its terrain and object parts.
// Negative codes decode to an invalid terrain type so that MovementCost
// treats them as impassable.
func DecodeTile(code int) (TileType, ObjectType) {
	if code < 0 {
		return TileType(-1), ObjectNone
	}
	return TileType(code % TileDelimiter), ObjectType(code / TileDelimiter)
}

// EncodeTile packs a terrain type and an object type into a combined code.
func EncodeTile(tile TileType, object ObjectType) int {
	return int(tile) + int(object)*TileDelimiter
}

// MovementCost returns the cost of stepping onto a tile of this terrain.
// Walls and closed doors are impassable; any unknown type is impassable too.
func (that TileType) MovementCost() float64 {
	switch that {
	case TileGrass, TileDoorOpen:
		return 1
	case TileIce:
		return 0
	case TileWater:
		return 2
	default:
		return math.Inf(1)
	}
}

// IsTerrain reports whether the value is one of the known terrain types.
func (that TileType) IsTerrain() bool {
	return that >= TileGrass && that <= TileWall
}
