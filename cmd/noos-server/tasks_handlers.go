package main

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/retaildata/noosengine/pkg/tasks"
)

// handleTaskStatus implements GET /api/tasks/{id}: a snapshot of the
// task's current durable state.
func (s *server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	task, err := s.engine.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, task)
}

// handleTaskCancel implements POST /api/tasks/{id}/cancel: flags the task
// for cooperative cancellation. The handler observes the flag at its own
// checkpoints; this call never stops anything by itself.
func (s *server) handleTaskCancel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.engine.RequestCancel(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	task, err := s.engine.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, task)
}

// handleTaskResult implements GET /api/tasks/{id}/result: streams the
// completed artifact a download task produced, identified by
// the resultUrl embedded in the task's result payload. Only DOWNLOAD
// tasks carry a filesystem artifact directly; upload error artifacts are
// surfaced through /api/file/status's errorFiles map instead.
func (s *server) handleTaskResult(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	task, err := s.engine.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if task.Status != tasks.StatusCompleted {
		writeError(w, tasks.NewError(tasks.KindConflict, "task has not completed", nil))
		return
	}

	var res downloadResult
	if err := json.Unmarshal(task.Result, &res); err != nil || res.ResultURL == "" {
		writeData(w, task)
		return
	}

	f, err := os.Open(res.ResultURL)
	if err != nil {
		writeError(w, tasks.NewError(tasks.KindInternal, "failed to open result artifact", err))
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "text/tab-separated-values")
	w.Header().Set("Content-Disposition", "attachment; filename=\""+string(task.Type)+"-"+id+".tsv\"")
	_, _ = io.Copy(w, f)
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleTaskStream implements GET /api/tasks/{id}/stream: replays the
// task's current snapshot, then pushes every durable state transition
// until it reaches a terminal state, at which point the socket is closed.
func (s *server) handleTaskStream(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ctx := r.Context()

	ch, err := s.engine.Subscribe(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorf("websocket upgrade failed for task %s: %v", id, err)
		return
	}
	defer conn.Close()

	// Drain client pings so the connection's read side doesn't back up;
	// the task's updates are the only payload this socket ever sends.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	conn.SetReadDeadline(time.Now().Add(24 * time.Hour))
	for task := range ch {
		if err := conn.WriteJSON(task); err != nil {
			return
		}
	}
}
