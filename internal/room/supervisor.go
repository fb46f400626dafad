package room

import (
	"context"
	"log/slog"
	"sync"

	"syncroom/internal/merge"
	"syncroom/internal/metrics"
	"syncroom/internal/store"
)

// Supervisor owns the room map: rooms are created lazily on first use,
// exactly one live Room exists per id, and eviction is left to process
// lifecycle (rooms stay resident until shutdown).
type Supervisor struct {
	engine merge.Engine
	kv     store.KV
	cfg    Config
	log    *slog.Logger

	mu    sync.RWMutex
	rooms map[string]*Room
}

// NewSupervisor creates the room supervisor.
func NewSupervisor(engine merge.Engine, kv store.KV, cfg Config, log *slog.Logger) *Supervisor {
	return &Supervisor{
		engine: engine,
		kv:     kv,
		cfg:    cfg,
		log:    log,
		rooms:  make(map[string]*Room),
	}
}

// Room returns the live room for id, creating and starting it if needed.
func (sv *Supervisor) Room(id string) *Room {
	sv.mu.RLock()
	r, ok := sv.rooms[id]
	sv.mu.RUnlock()
	if ok {
		return r
	}

	sv.mu.Lock()
	defer sv.mu.Unlock()
	if r, ok := sv.rooms[id]; ok {
		return r
	}
	r = newRoom(id, sv.engine, sv.kv, sv.cfg, sv.log)
	sv.rooms[id] = r
	metrics.RoomsActive.Inc()
	sv.log.Info("room created", "room", id)
	return r
}

// Lookup returns the live room for id without creating one.
func (sv *Supervisor) Lookup(id string) (*Room, bool) {
	sv.mu.RLock()
	defer sv.mu.RUnlock()
	r, ok := sv.rooms[id]
	return r, ok
}

// Reset resets the live room for id, or, when none is resident, deletes
// any persisted snapshot so the next connection starts empty either way.
func (sv *Supervisor) Reset(ctx context.Context, id string) error {
	if r, ok := sv.Lookup(id); ok {
		return r.Reset(ctx)
	}
	return sv.kv.Delete(ctx, store.DocKey(id))
}

// Len returns the number of resident rooms.
func (sv *Supervisor) Len() int {
	sv.mu.RLock()
	defer sv.mu.RUnlock()
	return len(sv.rooms)
}

// Shutdown stops every room, letting each flush pending state.
func (sv *Supervisor) Shutdown(ctx context.Context) {
	sv.mu.Lock()
	rooms := make([]*Room, 0, len(sv.rooms))
	for _, r := range sv.rooms {
		rooms = append(rooms, r)
	}
	sv.rooms = make(map[string]*Room)
	sv.mu.Unlock()

	for _, r := range rooms {
		if err := r.stop(ctx); err != nil {
			sv.log.Warn("room shutdown error", "room", r.ID(), "error", err)
		}
		metrics.RoomsActive.Dec()
	}
}
