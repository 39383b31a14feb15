package player

import (
	"sort"

	"github.com/fed135/mine-land/internal/grid"
)

// Registry owns every player record and keeps three lookup indices in step:
// player id, connection id, and session id, plus a position index for blast
// and viewport queries. Like Player it is engine-locked, not self-locked.
type Registry struct {
	players   map[string]*Player
	byConn    map[string]*Player
	bySession map[string]*Player
	byPos     map[grid.Pos]map[string]*Player
}

func NewRegistry() *Registry {
	return &Registry{
		players:   make(map[string]*Player),
		byConn:    make(map[string]*Player),
		bySession: make(map[string]*Player),
		byPos:     make(map[grid.Pos]map[string]*Player),
	}
}

// Add indexes a new player. Existing entries under the same id are replaced.
func (r *Registry) Add(p *Player) {
	if p == nil || p.ID == "" {
		return
	}
	if old := r.players[p.ID]; old != nil {
		r.Remove(old.ID)
	}
	r.players[p.ID] = p
	if p.ConnID != "" {
		r.byConn[p.ConnID] = p
	}
	if p.SessionID != "" {
		r.bySession[p.SessionID] = p
	}
	r.indexPos(p)
}

// Remove forgets the player and every index entry pointing at it.
func (r *Registry) Remove(id string) *Player {
	p := r.players[id]
	if p == nil {
		return nil
	}
	delete(r.players, id)
	if p.ConnID != "" {
		delete(r.byConn, p.ConnID)
	}
	if p.SessionID != "" {
		delete(r.bySession, p.SessionID)
	}
	r.unindexPos(p)
	return p
}

func (r *Registry) Get(id string) *Player {
	return r.players[id]
}

func (r *Registry) ByConnection(connID string) *Player {
	return r.byConn[connID]
}

func (r *Registry) BySession(sessionID string) *Player {
	return r.bySession[sessionID]
}

// SetConnection rebinds the player to a connection id; empty detaches.
func (r *Registry) SetConnection(id, connID string) {
	p := r.players[id]
	if p == nil {
		return
	}
	if p.ConnID != "" {
		delete(r.byConn, p.ConnID)
	}
	p.ConnID = connID
	if connID != "" {
		r.byConn[connID] = p
	}
}

// SetSession rebinds the player to a session id; empty detaches.
func (r *Registry) SetSession(id, sessionID string) {
	p := r.players[id]
	if p == nil {
		return
	}
	if p.SessionID != "" {
		delete(r.bySession, p.SessionID)
	}
	p.SessionID = sessionID
	if sessionID != "" {
		r.bySession[sessionID] = p
	}
}

// MoveTo updates the player position and the position index.
func (r *Registry) MoveTo(id string, pos grid.Pos) {
	p := r.players[id]
	if p == nil {
		return
	}
	r.unindexPos(p)
	p.Pos = pos
	r.indexPos(p)
}

func (r *Registry) indexPos(p *Player) {
	cell := r.byPos[p.Pos]
	if cell == nil {
		cell = make(map[string]*Player, 1)
		r.byPos[p.Pos] = cell
	}
	cell[p.ID] = p
}

func (r *Registry) unindexPos(p *Player) {
	cell := r.byPos[p.Pos]
	if cell == nil {
		return
	}
	delete(cell, p.ID)
	if len(cell) == 0 {
		delete(r.byPos, p.Pos)
	}
}

// At returns the players standing on pos, sorted by id.
func (r *Registry) At(pos grid.Pos) []*Player {
	cell := r.byPos[pos]
	if len(cell) == 0 {
		return nil
	}
	found := make([]*Player, 0, len(cell))
	for _, p := range cell {
		found = append(found, p)
	}
	sortByID(found)
	return found
}

// WithinEuclidean returns the players whose squared distance to center is at
// most radius². It probes the position index cell by cell, so the cost
// scales with the blast footprint, not the population.
func (r *Registry) WithinEuclidean(center grid.Pos, radius int) []*Player {
	if radius < 0 {
		return nil
	}
	var found []*Player
	r2 := radius * radius
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy > r2 {
				continue
			}
			cell := r.byPos[grid.Pos{X: center.X + dx, Y: center.Y + dy}]
			for _, p := range cell {
				found = append(found, p)
			}
		}
	}
	sortByID(found)
	return found
}

// All returns every player, sorted by id for deterministic iteration.
func (r *Registry) All() []*Player {
	all := make([]*Player, 0, len(r.players))
	for _, p := range r.players {
		all = append(all, p)
	}
	sortByID(all)
	return all
}

// Len reports the number of registered players.
func (r *Registry) Len() int {
	return len(r.players)
}

// Leaderboard returns up to limit players with a positive score, ordered by
// score descending with username and id as tie-breakers.
func (r *Registry) Leaderboard(limit int) []*Player {
	ranked := make([]*Player, 0, len(r.players))
	for _, p := range r.players {
		if p.Score > 0 {
			ranked = append(ranked, p)
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		if ranked[i].Username != ranked[j].Username {
			return ranked[i].Username < ranked[j].Username
		}
		return ranked[i].ID < ranked[j].ID
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func sortByID(players []*Player) {
	sort.Slice(players, func(i, j int) bool { return players[i].ID < players[j].ID })
}
