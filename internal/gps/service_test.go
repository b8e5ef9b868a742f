package gps

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nmeafix/internal/nmea"
)

const (
	rmc1 = "$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A"
	gga1 = "$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47"
	gsa  = "$GPGSA,A,3,04,05,,09,12,,,24,,,,,2.5,1.3,2.1*39"
	rmc2 = "$GPRMC,123520,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W"
	gga3 = "$GPGGA,123521,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,"
)

type finished struct {
	mu   sync.Mutex
	recs []nmea.Record
}

func (f *finished) add(r nmea.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs = append(f.recs, r)
}

func (f *finished) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.recs))
	for _, r := range f.recs {
		out = append(out, r.UTC)
	}
	return out
}

func newTestService(cfg Config) (*Service, *finished) {
	f := &finished{}
	cfg.OnFinish = f.add
	if cfg.Quality == (nmea.Quality{}) {
		cfg.Quality = nmea.DefaultQuality()
	}
	return New(cfg), f
}

func feed(t *testing.T, s *Service, lines ...string) {
	t.Helper()
	for _, l := range lines {
		require.NoError(t, s.HandleLine(l), l)
	}
}

func TestService_FinishesWhenCursorMoves(t *testing.T) {
	s, f := newTestService(Config{CompleteOnly: true, FilterQuality: true})

	feed(t, s, rmc1, gsa)
	assert.Empty(t, f.keys(), "nothing finishes while the cursor stays")

	feed(t, s, rmc2)
	require.Equal(t, []string{"123519"}, f.keys())

	rec := f.recs[0]
	assert.True(t, rec.IsComplete())
	require.NotNil(t, rec.HDOP)
	assert.Equal(t, 1.3, *rec.HDOP)
	require.NotNil(t, rec.Unix)
	assert.Equal(t, int64(764426119), *rec.Unix)

	snap := s.Snapshot()
	assert.Equal(t, "123520", snap.Cursor)
	assert.Equal(t, 2, snap.Records)
	assert.Equal(t, uint64(3), snap.Counts.Parsed)
	assert.Equal(t, uint64(1), snap.Counts.Finished)
	assert.Equal(t, uint64(1), snap.Counts.Published)
	require.NotNil(t, snap.LastFinished)
	assert.Equal(t, "123519", snap.LastFinished.UTC)
}

func TestService_CompleteOnlyRejectsDatelessRecords(t *testing.T) {
	s, f := newTestService(Config{CompleteOnly: true})
	feed(t, s, gga1, rmc2)

	assert.Empty(t, f.keys(), "GGA alone carries no date")
	snap := s.Snapshot()
	assert.Equal(t, uint64(1), snap.Counts.Rejected)
	assert.Equal(t, uint64(0), snap.Counts.Published)

	s2, f2 := newTestService(Config{})
	feed(t, s2, gga1, rmc2)
	assert.Equal(t, []string{"123519"}, f2.keys())
}

func TestService_QualityFilter(t *testing.T) {
	strict := nmea.Quality{MinSatellites: 4, MaxHDOP: 1.0, MaxVDOP: 10}
	s, f := newTestService(Config{FilterQuality: true, Quality: strict})
	feed(t, s, rmc1, gsa, rmc2)
	assert.Empty(t, f.keys(), "hdop 1.3 exceeds 1.0")

	s2, f2 := newTestService(Config{FilterQuality: false, Quality: strict})
	feed(t, s2, rmc1, gsa, rmc2)
	assert.Equal(t, []string{"123519"}, f2.keys())
}

func TestService_ChecksumMismatch(t *testing.T) {
	s, _ := newTestService(Config{})
	bad := rmc1[:len(rmc1)-2] + "00"

	err := s.HandleLine(bad)
	require.ErrorIs(t, err, nmea.ErrChecksum)
	snap := s.Snapshot()
	assert.Equal(t, 0, snap.Records)
	assert.Equal(t, uint64(1), snap.Counts.Checksum)
	assert.Contains(t, snap.LastError, "checksum")

	s2, _ := newTestService(Config{Checksum: nmea.ChecksumIgnore})
	require.NoError(t, s2.HandleLine(bad))
	assert.Equal(t, 1, s2.Snapshot().Records)
}

func TestService_RequireChecksum(t *testing.T) {
	s, _ := newTestService(Config{Checksum: nmea.ChecksumRequire})
	assert.ErrorIs(t, s.HandleLine(rmc2), nmea.ErrChecksum)
	assert.NoError(t, s.HandleLine(rmc1))
}

func TestService_CountsParseOutcomes(t *testing.T) {
	s, _ := newTestService(Config{})

	assert.ErrorIs(t, s.HandleLine(gsa), nmea.ErrNoCursor)
	assert.ErrorIs(t, s.HandleLine("$GP"), nmea.ErrMalformedSentence)
	assert.ErrorIs(t, s.HandleLine("$GPGGA,abc"), nmea.ErrFieldCountMismatch)
	assert.ErrorIs(t, s.HandleLine("$GPGGA,12:35,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,"), nmea.ErrMalformedTimestamp)
	assert.ErrorIs(t, s.HandleLine("$GPGGA,123519,4807.038,N,01131.000,E,1,x,0.9,545.4,M,46.9,M,,"), nmea.ErrMalformedField)
	assert.NoError(t, s.HandleLine("$PGRMZ,246,f,3*1B"))

	c := s.Snapshot().Counts
	assert.Equal(t, Counters{
		Lines:        6,
		Unrecognized: 1,
		Malformed:    1,
		FieldCount:   1,
		Timestamp:    1,
		BadField:     1,
		NoCursor:     1,
	}, c)
}

func TestService_MaxRecordsPrunesOldest(t *testing.T) {
	s, f := newTestService(Config{MaxRecords: 2})
	feed(t, s, gga1, rmc2, gga3,
		"$GPGGA,123522,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,")

	assert.Equal(t, []string{"123519", "123520", "123521"}, f.keys())
	recs := s.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, "123521", recs[0].UTC)
	assert.Equal(t, "123522", recs[1].UTC)
	assert.Equal(t, uint64(2), s.Snapshot().Counts.Pruned)
}

func TestService_MaxRecordsKeepsCursor(t *testing.T) {
	s, _ := newTestService(Config{MaxRecords: 1})
	feed(t, s, gga1, rmc2)

	recs := s.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, "123520", recs[0].UTC)
}

func TestService_RecordLookup(t *testing.T) {
	s, _ := newTestService(Config{})
	feed(t, s, rmc1)

	rec, ok := s.Record("123519.00")
	require.True(t, ok)
	assert.Equal(t, "230394", rec.Date)

	_, ok = s.Record("junk")
	assert.False(t, ok)
	_, ok = s.Record("000000")
	assert.False(t, ok)
}

type fakeRecorder struct {
	lines []string
	err   error
}

func (r *fakeRecorder) WriteLine(_ time.Time, s string) error {
	r.lines = append(r.lines, s)
	return r.err
}

func TestService_RecorderSeesEveryLine(t *testing.T) {
	rec := &fakeRecorder{}
	s, _ := newTestService(Config{Recorder: rec})
	_ = s.HandleLine(rmc1)
	_ = s.HandleLine("$GPGGA,abc")
	assert.Equal(t, []string{rmc1, "$GPGGA,abc"}, rec.lines)

	rec.err = errors.New("disk full")
	require.NoError(t, s.HandleLine(gsa))
	snap := s.Snapshot()
	assert.Equal(t, uint64(1), snap.Counts.RecordErrors)
	assert.Equal(t, "record: disk full", snap.LastError)
}

type sliceSource struct {
	lines []string
	block bool
}

func (s *sliceSource) Run(ctx context.Context, onLine func(string) error) error {
	for _, l := range s.lines {
		if err := onLine(l); err != nil {
			return err
		}
	}
	if s.block {
		<-ctx.Done()
	}
	return nil
}

func TestService_StartFlushesLastRecord(t *testing.T) {
	src := &sliceSource{lines: []string{rmc1, gsa, "$GPGGA,abc", rmc2}}
	s, f := newTestService(Config{Source: src, SourceName: "test", CompleteOnly: true})

	require.NoError(t, s.Start(context.Background()))
	s.Wait()

	assert.Equal(t, []string{"123519", "123520"}, f.keys())
	snap := s.Snapshot()
	assert.False(t, snap.Running)
	assert.Equal(t, "test", snap.Source)
	assert.Equal(t, uint64(4), snap.Counts.Lines)
	assert.Equal(t, uint64(1), snap.Counts.FieldCount)
}

func TestService_CloseStopsSource(t *testing.T) {
	src := &sliceSource{lines: []string{rmc1}, block: true}
	s, f := newTestService(Config{Source: src})

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()), "second Start is a no-op")

	deadline := time.Now().Add(2 * time.Second)
	for !s.Snapshot().Running || s.Snapshot().Records == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("service did not start")
		}
		time.Sleep(time.Millisecond)
	}

	s.Close()
	assert.False(t, s.Snapshot().Running)
	assert.Equal(t, []string{"123519"}, f.keys())
}

func TestService_StartRequiresSource(t *testing.T) {
	s := New(Config{})
	require.EqualError(t, s.Start(context.Background()), "gps source is required")
}
