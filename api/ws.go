package api

import (
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/crisslavik/xStage/engine"
	"github.com/crisslavik/xStage/types"
)

// handleProgress streams one job's phase-boundary progress events over a
// websocket until the job reaches its done phase or the client goes away.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// Subscribe before inspecting the state so a job finishing in between
	// cannot slip past both.
	events, cancel := s.engine.Hub().Subscribe(id)
	defer cancel()

	view, ok := s.engine.Job(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "JOB_NOT_FOUND", "no job with id "+id)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket accept failed", zap.String("job_id", id), zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx := r.Context()

	if view.State == engine.StateFinished {
		_ = wsjson.Write(ctx, conn, engine.ProgressEvent{
			JobID:    id,
			Phase:    types.PhaseDone,
			Fraction: 1,
			Time:     time.Now(),
		})
		return
	}

	for {
		select {
		case ev := <-events:
			if err := wsjson.Write(ctx, conn, ev); err != nil {
				return
			}
			if ev.Phase == types.PhaseDone {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
