package services

import "sync/atomic"

// Generation tags asynchronous work with the route it was started for.
// Results are applied only while their generation is still current.
type Generation struct {
	n atomic.Uint64
}

// Next starts a new generation and returns its id.
func (g *Generation) Next() uint64 { return g.n.Add(1) }

func (g *Generation) Current() uint64 { return g.n.Load() }

func (g *Generation) IsCurrent(id uint64) bool { return g.n.Load() == id }
