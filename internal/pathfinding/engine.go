// Package pathfinding computes movement legality, shortest paths and
// reachable sets over a GameState snapshot. Every function is total: malformed
// or partial state degrades to Inf, false or an empty result, never a panic,
// because these calls sit on the hot request path shared by a whole room.
package pathfinding

import (
	"container/heap"
	"math"
	"sort"

	"github.com/polygrid/tactics-backend/internal/entity"
)

// Neighbor order is part of the deterministic tie-break: up, right, down, left.
var neighborOffsets = [4]entity.Coordinates{
	{X: 0, Y: -1},
	{X: 1, Y: 0},
	{X: 0, Y: 1},
	{X: -1, Y: 0},
}

// GetMovementCost returns the terrain cost of stepping onto pos, or +Inf when
// the state, board or position is unusable.
func GetMovementCost(state *entity.GameState, pos entity.Coordinates) float64 {
	if state == nil || len(state.Board) == 0 {
		return math.Inf(1)
	}

	code := state.TileAt(pos)
	if code < 0 {
		return math.Inf(1)
	}

	tile, _ := entity.DecodeTile(code)
	if !tile.IsTerrain() {
		return math.Inf(1)
	}

	return tile.MovementCost()
}

// IsPositionInBounds is a strict rectangular check against the board.
func IsPositionInBounds(state *entity.GameState, pos entity.Coordinates) bool {
	if state == nil || pos.Y < 0 || pos.Y >= len(state.Board) {
		return false
	}
	return pos.X >= 0 && pos.X < len(state.Board[pos.Y])
}

// IsPositionOccupied reports whether a player other than the current player
// stands on pos. The mover's own tile never counts as occupied so paths can
// originate from it.
func IsPositionOccupied(state *entity.GameState, pos entity.Coordinates) bool {
	if state == nil {
		return false
	}

	for id, position := range state.PlayerPositions {
		if id == state.CurrentPlayer {
			continue
		}
		if position == pos {
			return true
		}
	}

	return false
}

// IsValidPosition - in bounds, unoccupied and passable.
func IsValidPosition(state *entity.GameState, pos entity.Coordinates) bool {
	if !IsPositionInBounds(state, pos) {
		return false
	}
	if IsPositionOccupied(state, pos) {
		return false
	}
	return !math.IsInf(GetMovementCost(state, pos), 1)
}

type pathNode struct {
	pos    entity.Coordinates
	dist   float64
	tie    int
	order  int
	index  int
	parent *pathNode
}

type pathQueue []*pathNode

func (pq pathQueue) Len() int { return len(pq) }

func (pq pathQueue) Less(i, j int) bool {
	if pq[i].dist != pq[j].dist {
		return pq[i].dist < pq[j].dist
	}
	if pq[i].tie != pq[j].tie {
		return pq[i].tie < pq[j].tie
	}
	return pq[i].order < pq[j].order
}

func (pq pathQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *pathQueue) Push(x any) {
	n := len(*pq)
	item := x.(*pathNode)
	item.index = n
	*pq = append(*pq, item)
}

func (pq *pathQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[:n-1]
	return item
}

func manhattan(a, b entity.Coordinates) int {
	dx := a.X - b.X
	dy := a.Y - b.Y
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

// FindShortestPath runs a Dijkstra search over 4-connected neighbors with the
// destination tile's terrain cost as edge weight. The returned path includes
// both start and end. It is empty when the end is out of bounds, occupied,
// impassable, or costs more than maxMovementPoints to reach. Ties resolve by
// Manhattan distance to the goal, then by discovery order, so a fixed input
// always yields the same path.
func FindShortestPath(state *entity.GameState, start, end entity.Coordinates, maxMovementPoints int) []entity.Coordinates {
	if state == nil || !IsValidPosition(state, end) || !IsPositionInBounds(state, start) {
		return nil
	}

	if start == end {
		return []entity.Coordinates{start}
	}

	open := &pathQueue{}
	heap.Init(open)

	counter := 0
	heap.Push(open, &pathNode{pos: start, dist: 0, tie: manhattan(start, end), order: counter})

	budget := float64(maxMovementPoints)
	best := map[entity.Coordinates]float64{start: 0}
	closed := make(map[entity.Coordinates]struct{})

	for open.Len() > 0 {
		current := heap.Pop(open).(*pathNode)
		if _, seen := closed[current.pos]; seen {
			continue
		}
		closed[current.pos] = struct{}{}

		if current.pos == end {
			return reconstructPath(current)
		}

		for _, delta := range neighborOffsets {
			next := entity.Coordinates{X: current.pos.X + delta.X, Y: current.pos.Y + delta.Y}
			if _, seen := closed[next]; seen {
				continue
			}
			if !IsValidPosition(state, next) {
				continue
			}

			dist := current.dist + GetMovementCost(state, next)
			if dist > budget {
				continue
			}
			if prev, ok := best[next]; ok && dist >= prev {
				continue
			}

			best[next] = dist
			counter++
			heap.Push(open, &pathNode{
				pos:    next,
				dist:   dist,
				tie:    manhattan(next, end),
				order:  counter,
				parent: current,
			})
		}
	}

	return nil
}

func reconstructPath(end *pathNode) []entity.Coordinates {
	if end == nil {
		return nil
	}

	var path []entity.Coordinates
	for node := end; node != nil; node = node.parent {
		path = append(path, node.pos)
	}

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}

	return path
}

// FindReachablePositions returns every tile reachable from start with a
// cumulative cost within maxMovementPoints, excluding the start tile itself
// and any occupied tile. The result is sorted row-major so broadcasts are
// stable. It is empty when the start is unusable or the budget is spent.
func FindReachablePositions(state *entity.GameState, start entity.Coordinates, maxMovementPoints int) []entity.Coordinates {
	if state == nil || maxMovementPoints <= 0 || !IsPositionInBounds(state, start) {
		return nil
	}

	budget := float64(maxMovementPoints)
	best := map[entity.Coordinates]float64{start: 0}
	frontier := []entity.Coordinates{start}

	for len(frontier) > 0 {
		current := frontier[0]
		frontier = frontier[1:]

		for _, delta := range neighborOffsets {
			next := entity.Coordinates{X: current.X + delta.X, Y: current.Y + delta.Y}
			if !IsValidPosition(state, next) {
				continue
			}

			dist := best[current] + GetMovementCost(state, next)
			if dist > budget {
				continue
			}
			if prev, ok := best[next]; ok && dist >= prev {
				continue
			}

			best[next] = dist
			frontier = append(frontier, next)
		}
	}

	reachable := make([]entity.Coordinates, 0, len(best)-1)
	for pos := range best {
		if pos == start {
			continue
		}
		reachable = append(reachable, pos)
	}

	sort.Slice(reachable, func(i, j int) bool {
		if reachable[i].Y != reachable[j].Y {
			return reachable[i].Y < reachable[j].Y
		}
		return reachable[i].X < reachable[j].X
	})

	return reachable
}

// FindClosestAvailableSpot searches outward from start, ring by ring, for the
// nearest in-bounds, unoccupied, passable tile. start itself is returned when
// it already qualifies; NoSpot when the whole board is exhausted.
func FindClosestAvailableSpot(state *entity.GameState, start entity.Coordinates) entity.Coordinates {
	if state == nil || !IsPositionInBounds(state, start) {
		return entity.NoSpot
	}

	if IsValidPosition(state, start) {
		return start
	}

	visited := map[entity.Coordinates]struct{}{start: {}}
	queue := []entity.Coordinates{start}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, delta := range neighborOffsets {
			next := entity.Coordinates{X: current.X + delta.X, Y: current.Y + delta.Y}
			if _, seen := visited[next]; seen {
				continue
			}
			if !IsPositionInBounds(state, next) {
				continue
			}

			if IsValidPosition(state, next) {
				return next
			}

			visited[next] = struct{}{}
			queue = append(queue, next)
		}
	}

	return entity.NoSpot
}
