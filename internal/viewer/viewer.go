// Package viewer implements the per-IMU consumers that stand in for the
// 3D view: console printout, websocket push, MQTT publish, and an SSD1306
// OLED. Each consumer exposes the same two-step contract: SetOrientation
// is a pure state update, Render draws whatever state is current.
package viewer

import (
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

// Viewer is the consumer for one source id. The scheduler calls
// SetOrientation followed by Render exactly once per tick per source with
// a pending update.
type Viewer interface {
	SetOrientation(q mgl64.Quat)
	Render() error
}

// Factory builds the viewer for a source id the first time it is sighted.
// The registry grows lazily, so this runs mid-session without disturbing
// viewers already attached to other ids.
type Factory func(id uint8) (Viewer, error)

// Multi fans one source out to several viewers. Render errors are logged
// per viewer and the remaining viewers still render.
func Multi(views ...Viewer) Viewer {
	return multiViewer(views)
}

type multiViewer []Viewer

func (m multiViewer) SetOrientation(q mgl64.Quat) {
	for _, v := range m {
		v.SetOrientation(q)
	}
}

func (m multiViewer) Render() error {
	var firstErr error
	for _, v := range m {
		if err := v.Render(); err != nil {
			log.Printf("viewer render error: %v", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Set owns the id → viewer arena, creating entries through the factory on
// first sighting.
type Set struct {
	mu      sync.Mutex
	factory Factory
	views   map[uint8]Viewer
}

func NewSet(factory Factory) *Set {
	return &Set{factory: factory, views: make(map[uint8]Viewer)}
}

// For returns the viewer for id, creating it if this id has never been
// seen. A factory failure is returned to the caller and nothing is stored,
// so a later sighting retries.
func (s *Set) For(id uint8) (Viewer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.views[id]; ok {
		return v, nil
	}
	v, err := s.factory(id)
	if err != nil {
		return nil, fmt.Errorf("failed to create viewer for IMU %d: %w", id, err)
	}
	s.views[id] = v
	log.Printf("created viewer for IMU %d", id)
	return v, nil
}

// IDs lists the ids with attached viewers, ascending.
func (s *Set) IDs() []uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uint8, 0, len(s.views))
	for id := range s.views {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Reset drops all viewers, closing the ones that support it. Called on
// full disconnect together with the registry reset.
func (s *Set) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, v := range s.views {
		if c, ok := v.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				log.Printf("viewer close error for IMU %d: %v", id, err)
			}
		}
	}
	s.views = make(map[uint8]Viewer)
}
