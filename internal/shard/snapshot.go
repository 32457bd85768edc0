package shard

import (
	"sort"
	"time"
)

// WorldInfo сведения о загруженном мире для статистики
type WorldInfo struct {
	Name      string    `json:"name"`
	ID        uint32    `json:"id"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Players   int       `json:"players"`
	OwnerID   int32     `json:"owner_id"`
	Objects   int       `json:"objects"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot состояние шарда на момент последнего тика. Между шардами
// снимки не согласованы.
type Snapshot struct {
	Shard     int         `json:"shard"`
	Worlds    []WorldInfo `json:"worlds"`
	Players   int         `json:"players"`
	Waiting   int         `json:"waiting"` // Игроки, ждущие загрузки мира
	Scheduled int         `json:"scheduled"`
	Jobs      int         `json:"jobs"` // Задания воркера хранения в очереди
	TakenAt   time.Time   `json:"taken_at"`
}

func (s *Shard) refreshSnapshot() {
	snap := &Snapshot{
		Shard:     s.opts.ID,
		Worlds:    make([]WorldInfo, 0, len(s.worlds)),
		Players:   len(s.players),
		Scheduled: s.sched.Len(),
		Jobs:      s.persist.pending(),
		TakenAt:   s.opts.Now(),
	}
	for _, list := range s.pending {
		snap.Waiting += len(list)
	}
	for _, ws := range s.worlds {
		w := ws.w
		snap.Worlds = append(snap.Worlds, WorldInfo{
			Name:      w.Name,
			ID:        w.ID,
			Width:     w.Width,
			Height:    w.Height,
			Players:   w.PlayerCount(),
			OwnerID:   w.OwnerID,
			Objects:   w.ObjectCount(),
			UpdatedAt: w.UpdatedAt,
		})
	}
	sort.Slice(snap.Worlds, func(i, j int) bool { return snap.Worlds[i].Name < snap.Worlds[j].Name })
	s.snapshot.Store(snap)
	s.metrics.gauges(snap)
}
