package entity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeTile(t *testing.T) {
	tests := []struct {
		name   string
		code   int
		tile   TileType
		object ObjectType
	}{
		{name: "bare grass", code: 0, tile: TileGrass, object: ObjectNone},
		{name: "bare wall", code: 5, tile: TileWall, object: ObjectNone},
		{name: "grass with spawn", code: 60, tile: TileGrass, object: ObjectSpawn},
		{name: "ice with sword", code: 22, tile: TileIce, object: ObjectSword},
		{name: "water with random item", code: 71, tile: TileWater, object: ObjectRandom},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			tile, object := DecodeTile(test.code)
			assert.Equal(t, test.tile, tile)
			assert.Equal(t, test.object, object)
		})
	}

	t.Run("negative code is not terrain", func(t *testing.T) {
		tile, object := DecodeTile(-1)
		assert.False(t, tile.IsTerrain())
		assert.Equal(t, ObjectNone, object)
	})
}

func TestEncodeTile(t *testing.T) {
	// Encode and decode must round-trip for every known combination.
	for tile := TileGrass; tile <= TileWall; tile++ {
		for object := ObjectNone; object <= ObjectRandom; object++ {
			gotTile, gotObject := DecodeTile(EncodeTile(tile, object))
			assert.Equal(t, tile, gotTile)
			assert.Equal(t, object, gotObject)
		}
	}
}

func TestMovementCost(t *testing.T) {
	assert.InDelta(t, 1, TileGrass.MovementCost(), 0)
	assert.InDelta(t, 1, TileDoorOpen.MovementCost(), 0)
	assert.InDelta(t, 0, TileIce.MovementCost(), 0)
	assert.InDelta(t, 2, TileWater.MovementCost(), 0)

	assert.True(t, math.IsInf(TileWall.MovementCost(), 1))
	assert.True(t, math.IsInf(TileDoorClosed.MovementCost(), 1))
	assert.True(t, math.IsInf(TileType(-1).MovementCost(), 1))
	assert.True(t, math.IsInf(TileType(9).MovementCost(), 1))
}
