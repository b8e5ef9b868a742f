package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"nmeafix/internal/nmea"
)

const (
	wsWriteWait  = 5 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 50 * time.Second
	wsBuffer     = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// Handler serves the JSON API and the live record feed. logs and feed may
// be nil; their routes then answer 404.
func Handler(store Store, status *Status, feed *Broadcaster, logs *LogBuffer) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if !allowGet(w, r) {
			return
		}
		writeJSON(w, status.Snapshot(time.Now().UTC()))
	})

	mux.HandleFunc("/api/records", func(w http.ResponseWriter, r *http.Request) {
		if !allowGet(w, r) {
			return
		}
		recs := store.Records()
		if q := r.URL.Query().Get("complete"); q == "1" || strings.EqualFold(q, "true") {
			kept := recs[:0]
			for _, rec := range recs {
				if rec.IsComplete() {
					kept = append(kept, rec)
				}
			}
			recs = kept
		}
		writeJSON(w, recs)
	})

	mux.HandleFunc("/api/records/", func(w http.ResponseWriter, r *http.Request) {
		if !allowGet(w, r) {
			return
		}
		key, err := nmea.NormalizeUTC(strings.TrimPrefix(r.URL.Path, "/api/records/"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		rec, ok := store.Record(key)
		if !ok {
			http.Error(w, "record not found", http.StatusNotFound)
			return
		}
		writeJSON(w, rec)
	})

	if logs != nil {
		mux.Handle("/api/logs", logs.Handler())
	}
	if feed != nil {
		mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
			serveFeed(w, r, feed)
		})
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		if !allowGet(w, r) {
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(indexHTML))
	})

	return mux
}

// serveFeed streams finished records to one websocket client. The client
// is only read from to notice pongs and close frames.
func serveFeed(w http.ResponseWriter, r *http.Request, feed *Broadcaster) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	defer conn.Close()

	id, ch := feed.Subscribe(wsBuffer)
	defer feed.Unsubscribe(id)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case rec, ok := <-ch:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			if err := conn.WriteJSON(rec); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func allowGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return true
	}
	w.Header().Set("Allow", http.MethodGet)
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	return false
}

func writeJSON(w http.ResponseWriter, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(b)
	_, _ = w.Write([]byte("\n"))
}

// Serve runs the HTTP server until ctx is done. There is no write timeout
// because /ws connections are long-lived.
func Serve(ctx context.Context, listenAddr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MiB
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

const indexHTML = `<!doctype html>
<html>
<head><meta charset="utf-8"><title>nmeafix</title></head>
<body>
<h1>nmeafix</h1>
<p><a href="/api/status">status</a> | <a href="/api/records">records</a> | <a href="/api/logs?format=text">logs</a></p>
<pre id="feed"></pre>
<script>
const feed = document.getElementById("feed");
const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
ws.onmessage = (ev) => {
  feed.textContent = JSON.stringify(JSON.parse(ev.data), null, 2) + "\n" + feed.textContent.slice(0, 20000);
};
</script>
</body>
</html>
`
