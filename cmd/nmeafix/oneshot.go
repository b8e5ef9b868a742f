package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"nmeafix/internal/config"
	"nmeafix/internal/gps"
	"nmeafix/internal/nmea"
	"nmeafix/internal/replay"
	"nmeafix/internal/source"
)

// runOneShot parses the whole input, then prints the records (or the
// summary) to out. Rejected lines are counted, never fatal.
func runOneShot(ctx context.Context, cfg config.Config, opts options, stdin io.Reader, out io.Writer) error {
	in := stdin
	if opts.Input != "-" {
		f, err := os.Open(opts.Input)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	svc := gps.New(gps.Config{
		SourceName: opts.Input,
		Checksum:   cfg.GPS.ChecksumMode(),
		Quality:    cfg.Quality.Threshold(),
	})
	handle := func(line string) error {
		_ = svc.HandleLine(line)
		return nil
	}

	if opts.Capture {
		recs, err := replay.NewReader(in).ReadAll()
		if err != nil {
			return err
		}
		for _, r := range recs {
			if r.Start {
				continue
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			_ = handle(r.Sentence)
		}
	} else if err := source.ReadLines(ctx, in, handle); err != nil {
		return err
	}
	svc.Flush()

	recs := svc.Records()
	quality := cfg.Quality.Threshold()
	if opts.Summary {
		s := summarize(recs, svc.Snapshot().Counts, quality)
		return s.write(out)
	}

	kept := make([]nmea.Record, 0, len(recs))
	for _, r := range recs {
		if opts.CompleteOnly && !r.IsComplete() {
			continue
		}
		if opts.Quality && !quality.Accept(r) {
			continue
		}
		kept = append(kept, r)
	}
	b, err := json.MarshalIndent(kept, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal records: %w", err)
	}
	if _, err := out.Write(append(b, '\n')); err != nil {
		return err
	}
	return nil
}
