package room

import (
	"context"
	"time"

	"syncroom/internal/metrics"
	"syncroom/internal/store"
)

// scheduleFlush arms (or re-arms) the debounce window. Each qualifying
// change restarts the window; only a quiet period lets the flush fire.
func (r *Room) scheduleFlush() {
	if r.flushTimer != nil {
		r.flushTimer.Stop()
	}
	r.flushTimer = time.AfterFunc(r.cfg.FlushInterval, func() {
		select {
		case r.events <- flushTickEvent{}:
		case <-r.done:
		}
	})
}

func (r *Room) stopFlushTimer() {
	if r.flushTimer != nil {
		r.flushTimer.Stop()
		r.flushTimer = nil
	}
}

// doFlush snapshots inside the event loop (cheap, consistent) and writes
// asynchronously so a slow store never stalls message routing. At most one
// write is in flight per room; a flush requested meanwhile is queued, not
// raced.
func (r *Room) doFlush() {
	if !r.dirty || r.holder == nil {
		return
	}
	if r.flushInFlight {
		r.flushQueued = true
		return
	}
	snapshot := r.holder.Snapshot()
	r.dirty = false
	r.flushInFlight = true

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), storageTimeout)
		defer cancel()
		err := r.kv.Put(ctx, store.DocKey(r.id), snapshot)
		select {
		case r.events <- flushDoneEvent{err: err}:
		case <-r.done:
		}
	}()
}

func (r *Room) handleFlushDone(err error) {
	r.flushInFlight = false
	if err != nil {
		metrics.FlushesTotal.WithLabelValues("error").Inc()
		r.log.Error("persist failed", "error", err)
		// Forfeit this cycle; the state stays dirty and is retried on the
		// next qualifying change or disconnect.
		r.dirty = true
	} else {
		metrics.FlushesTotal.WithLabelValues("ok").Inc()
		r.lastFlush = time.Now()
		r.log.Debug("state persisted")
	}
	if r.flushQueued {
		r.flushQueued = false
		r.doFlush()
	}
}
