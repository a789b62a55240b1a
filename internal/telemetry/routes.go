package telemetry

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"tailscale.com/tsweb"

	"github.com/banshee-data/gaitcore/internal/httputil"
	"github.com/banshee-data/gaitcore/internal/monitoring"
	"github.com/banshee-data/gaitcore/internal/robot"
)

// defaultEvery is the default decimation for streaming routes: one frame in
// ten, 50 Hz at the default publish rate.
const defaultEvery = 10

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// debug routes are already restricted to local access by tsweb
	CheckOrigin: func(*http.Request) bool { return true },
}

// AdminRoutes are the debug endpoints of the telemetry stack.
type AdminRoutes struct {
	Hub    *Hub
	Cache  *StateCache
	Joints robot.JointMap
	Cycles *monitoring.CycleLog
	Period time.Duration
}

// parseEvery reads the "every" query parameter (stream one frame in N).
func parseEvery(r *http.Request) int {
	if v := r.URL.Query().Get("every"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return defaultEvery
}

// AttachAdminRoutes attaches the telemetry debugging endpoints to the given
// HTTP mux served at /debug/.
func (a *AdminRoutes) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("telemetry", "Latest telemetry frame as JSON", func(w http.ResponseWriter, r *http.Request) {
		s, ok := a.Cache.Load()
		if !ok {
			httputil.WriteJSONError(w, http.StatusServiceUnavailable, "no snapshot received yet")
			return
		}
		frame := NewFrame(s, a.Joints)
		httputil.WriteJSON(w, http.StatusOK, &frame)
	})

	if a.Cycles != nil {
		debug.Handle("cycles", "Recent control cycle timing", monitoring.CycleChartHandler(a.Cycles, a.Period))
	}

	// Server-Sent Events stream of telemetry frames.
	debug.HandleSilentFunc("telemetry-tail", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httputil.MethodNotAllowed(w, http.MethodGet)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		every := parseEvery(r)
		id, c := a.Hub.Subscribe()
		defer a.Hub.Unsubscribe(id)

		w.Write([]byte(": ping\n\n"))
		flusher.Flush()

		n := 0
		for {
			select {
			case frame, ok := <-c:
				if !ok {
					return
				}
				n++
				if (n-1)%every != 0 {
					continue
				}
				payload, err := json.Marshal(&frame)
				if err != nil {
					return
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
					return
				}
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	})

	// Websocket stream of telemetry frames, one JSON message per frame.
	debug.HandleSilentFunc("telemetry-ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			monitoring.Logf("telemetry websocket upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		every := parseEvery(r)
		id, c := a.Hub.Subscribe()
		defer a.Hub.Unsubscribe(id)

		// The client never sends; reading detects its close.
		gone := make(chan struct{})
		go func() {
			defer close(gone)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		n := 0
		for {
			select {
			case frame, ok := <-c:
				if !ok {
					conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
					return
				}
				n++
				if (n-1)%every != 0 {
					continue
				}
				conn.SetWriteDeadline(time.Now().Add(time.Second))
				if err := conn.WriteJSON(&frame); err != nil {
					return
				}
			case <-gone:
				return
			case <-r.Context().Done():
				return
			}
		}
	})
}
