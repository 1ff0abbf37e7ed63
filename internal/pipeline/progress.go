package pipeline

import "sync/atomic"

// Progress counts files handed to the indexer. It only grows.
type Progress struct {
	n atomic.Uint64
}

// NewProgress returns a counter starting at seed
func NewProgress(seed uint64) *Progress {
	p := &Progress{}
	p.n.Store(seed)
	return p
}

// Add increments the counter by one and returns the new value
func (p *Progress) Add() uint64 {
	return p.n.Add(1)
}

// Load returns the current value
func (p *Progress) Load() uint64 {
	return p.n.Load()
}
