package web

import (
	"runtime"
	"runtime/debug"
	"time"

	"nmeafix/internal/gps"
	"nmeafix/internal/nmea"
)

// Store is the read side of the ingest service.
type Store interface {
	Snapshot() gps.Snapshot
	Records() []nmea.Record
	Record(key string) (nmea.Record, bool)
}

type BuildInfo struct {
	GoVersion  string `json:"go_version"`
	ModulePath string `json:"module_path,omitempty"`
	Version    string `json:"version,omitempty"`
	Commit     string `json:"commit,omitempty"`
	Dirty      bool   `json:"dirty,omitempty"`
	BuildTime  string `json:"build_time,omitempty"`
}

type StatusSnapshot struct {
	Service     string       `json:"service"`
	NowUTC      string       `json:"now_utc"`
	UptimeSec   int64        `json:"uptime_sec"`
	Build       BuildInfo    `json:"build"`
	GPS         gps.Snapshot `json:"gps"`
	Subscribers int          `json:"ws_subscribers"`
}

// Status assembles /api/status from the store and the live feed.
type Status struct {
	started time.Time
	store   Store
	feed    *Broadcaster
	build   BuildInfo
}

func NewStatus(store Store, feed *Broadcaster) *Status {
	return &Status{
		started: time.Now().UTC(),
		store:   store,
		feed:    feed,
		build:   readBuildInfo(),
	}
}

func (s *Status) Snapshot(now time.Time) StatusSnapshot {
	out := StatusSnapshot{
		Service:   "nmeafix",
		NowUTC:    now.UTC().Format(time.RFC3339Nano),
		UptimeSec: int64(now.Sub(s.started).Seconds()),
		Build:     s.build,
	}
	if out.UptimeSec < 0 {
		out.UptimeSec = 0
	}
	if s.store != nil {
		out.GPS = s.store.Snapshot()
	}
	if s.feed != nil {
		out.Subscribers = s.feed.Count()
	}
	return out
}

func readBuildInfo() BuildInfo {
	out := BuildInfo{GoVersion: runtime.Version()}
	bi, ok := debug.ReadBuildInfo()
	if !ok || bi == nil {
		return out
	}
	out.ModulePath = bi.Main.Path
	out.Version = bi.Main.Version
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			out.Commit = s.Value
		case "vcs.modified":
			out.Dirty = s.Value == "true"
		case "vcs.time":
			out.BuildTime = s.Value
		}
	}
	return out
}
