package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"nmeafix/internal/config"
	"nmeafix/internal/gps"
	"nmeafix/internal/publish"
	"nmeafix/internal/replay"
	"nmeafix/internal/source"
	"nmeafix/internal/web"
)

// newSource builds the configured line source.
func newSource(cfg config.GPSConfig) (source.Source, error) {
	switch cfg.Source {
	case config.SourceSerial:
		return &source.Serial{Device: cfg.Device, Baud: cfg.Baud, ReconnectDelay: cfg.Reconnect}, nil
	case config.SourceTCP:
		return source.NewLineClient(source.LineClientConfig{
			Name:           "tcp",
			Addr:           cfg.Addr,
			ReconnectDelay: cfg.Reconnect,
		})
	case config.SourceGPSD:
		return source.NewGPSDClient(cfg.Addr, cfg.Reconnect)
	case config.SourceFile:
		return &source.File{Path: cfg.Path, Follow: cfg.Follow}, nil
	case config.SourceReplay:
		return &replay.Source{Path: cfg.Path, Speed: cfg.ReplaySpeed, Loop: cfg.ReplayLoop}, nil
	default:
		return nil, fmt.Errorf("unknown gps.source %q", cfg.Source)
	}
}

// newSinks opens every enabled output. The web feed, when given, is
// always included.
func newSinks(cfg config.Config, feed *web.Broadcaster) (publish.Multi, error) {
	var sinks publish.Multi
	if feed != nil {
		sinks = append(sinks, feed)
	}
	if cfg.MQTT.Enable {
		m, err := publish.NewMQTT(publish.MQTTConfig{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Topic:    cfg.MQTT.Topic,
			QoS:      byte(cfg.MQTT.QoS),
			Retain:   cfg.MQTT.Retain,
		})
		if err != nil {
			_ = sinks.Close()
			return nil, fmt.Errorf("mqtt init failed: %w", err)
		}
		log.Info("mqtt enabled", "broker", cfg.MQTT.Broker, "topic", cfg.MQTT.Topic)
		sinks = append(sinks, m)
	}
	if cfg.UDP.Enable {
		u, err := publish.NewUDP(cfg.UDP.Dest)
		if err != nil {
			_ = sinks.Close()
			return nil, fmt.Errorf("udp init failed: %w", err)
		}
		log.Info("udp enabled", "dest", cfg.UDP.Dest)
		sinks = append(sinks, u)
	}
	return sinks, nil
}

// runService ingests from the configured source until ctx is done or the
// source is exhausted.
func runService(ctx context.Context, cfg config.Config, console io.Writer) error {
	var logs *web.LogBuffer
	var logExtra io.Writer
	if cfg.Web.Enable {
		logs = web.NewLogBuffer(2000)
		logExtra = logs
	}
	closeLogs, err := setupLogging(cfg.Log, console, logExtra)
	if err != nil {
		return err
	}
	defer closeLogs()

	src, err := newSource(cfg.GPS)
	if err != nil {
		return err
	}

	var feed *web.Broadcaster
	if cfg.Web.Enable {
		feed = web.NewBroadcaster()
	}
	sinks, err := newSinks(cfg, feed)
	if err != nil {
		return err
	}
	defer func() {
		if err := sinks.Close(); err != nil {
			log.Warn("sink close failed", "err", err)
		}
	}()

	var recorder gps.LineRecorder
	if cfg.GPS.Record.Enable {
		w, err := replay.CreateWriter(cfg.GPS.Record.Path)
		if err != nil {
			return fmt.Errorf("record init failed: %w", err)
		}
		defer func() {
			if err := w.Close(); err != nil {
				log.Warn("record close failed", "path", cfg.GPS.Record.Path, "err", err)
			}
		}()
		log.Info("recording enabled", "path", cfg.GPS.Record.Path)
		recorder = w
	}

	svc := gps.New(gps.Config{
		Source:        src,
		SourceName:    cfg.GPS.Source,
		Checksum:      cfg.GPS.ChecksumMode(),
		Quality:       cfg.Quality.Threshold(),
		CompleteOnly:  cfg.Publish.CompleteOnly,
		FilterQuality: cfg.Publish.FilterQuality,
		MaxRecords:    cfg.GPS.MaxRecords,
		Recorder:      recorder,
		OnFinish:      publish.Handler(sinks),
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	webErr := make(chan error, 1)
	if cfg.Web.Enable {
		h := web.Handler(svc, web.NewStatus(svc, feed), feed, logs)
		go func() {
			log.Info("web enabled", "listen", cfg.Web.Listen)
			webErr <- web.Serve(ctx, cfg.Web.Listen, h)
		}()
	}

	log.Info("nmeafix starting", "source", cfg.GPS.Source)
	if err := svc.Start(ctx); err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		svc.Wait()
		close(done)
	}()
	var sourceDone <-chan struct{} = done

	// With the web server up, an exhausted source leaves the final store
	// browsable until interrupted.
	var runErr error
	webDone := !cfg.Web.Enable
wait:
	for {
		select {
		case <-ctx.Done():
			break wait
		case <-sourceDone:
			sourceDone = nil
			log.Info("gps source exhausted")
			if !cfg.Web.Enable {
				break wait
			}
		case err := <-webErr:
			webDone = true
			if err != nil && !errors.Is(err, context.Canceled) {
				runErr = fmt.Errorf("web server: %w", err)
			}
			break wait
		}
	}

	log.Info("nmeafix stopping")
	svc.Close()
	cancel()
	if !webDone {
		<-webErr
	}
	snap := svc.Snapshot()
	log.Info("gps summary",
		"lines", snap.Counts.Lines,
		"parsed", snap.Counts.Parsed,
		"finished", snap.Counts.Finished,
		"published", snap.Counts.Published,
		"records", snap.Records,
	)
	return runErr
}
