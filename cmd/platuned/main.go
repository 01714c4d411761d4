// Command platuned is a minimal driver that exercises the playback
// engine end-to-end: it builds a queue from its arguments, starts
// playback, prints lifecycle events as they happen, and accepts a
// handful of line commands on stdin.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	charmlog "github.com/charmbracelet/log"

	"github.com/jrmoore/platune/internal/config"
	"github.com/jrmoore/platune/internal/engine"
	"github.com/jrmoore/platune/internal/events"
	"github.com/jrmoore/platune/internal/output"
	"github.com/jrmoore/platune/internal/resolver"
	"github.com/jrmoore/platune/pkg/platune"
)

var (
	configPath = flag.String("config", "", "path to configuration file")
	debug      = flag.Bool("debug", false, "enable debug logging")
	device     = flag.String("device", "", "output device name (default system device)")
	listDevs   = flag.Bool("list-devices", false, "print output devices and exit")
)

func main() {
	flag.Parse()

	ui := charmlog.NewWithOptions(os.Stderr, charmlog.Options{Prefix: "platuned"})
	if *debug {
		ui.SetLevel(charmlog.DebugLevel)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		ui.Fatal("load config", "err", err)
	}
	if *debug {
		cfg.Debug = true
	}

	if err := output.Initialize(); err != nil {
		ui.Fatal("initialize audio backend", "err", err)
	}
	defer output.Terminate()

	if *listDevs {
		devices, err := output.ListDevices()
		if err != nil {
			ui.Fatal("list devices", "err", err)
		}
		for _, d := range devices {
			fmt.Println(d)
		}
		return
	}

	deviceName := cfg.Output.DeviceName
	if *device != "" {
		deviceName = *device
	}

	reg := resolver.NewDefault(resolver.DefaultOptions{
		RequestsPerSecond: float64(cfg.Resolver.RateLimit.RequestsPerSecond),
		BurstSize:         cfg.Resolver.RateLimit.BurstSize,
	})

	eng, err := engine.New(engine.Config{
		OutputDeviceName: deviceName,
		OutputSampleRate: cfg.Output.SampleRate,
		OutputChannels:   cfg.Output.Channels,
		EnableResampling: cfg.Player.EnableResampling,
		ResampleChunk:    cfg.Player.ResampleChunkSize,
	}, reg)
	if err != nil {
		ui.Fatal("start engine", "err", err)
	}

	eng.SetVolume(float32(cfg.Player.DefaultVolume))

	sub := eng.Subscribe()
	go logEvents(ui, sub)

	tracks := tracksFromArgs(flag.Args())
	if len(tracks) > 0 {
		eng.SetQueue(tracks)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go readCommands(ctx, ui, eng)

	<-ctx.Done()
	ui.Info("shutting down")

	joinCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := eng.Join(joinCtx); err != nil {
		ui.Error("shutdown", "err", err)
	}
	sub.Unsubscribe()
}

func tracksFromArgs(args []string) []platune.Track {
	tracks := make([]platune.Track, 0, len(args))
	for _, a := range args {
		tracks = append(tracks, platune.Track{URL: a})
	}
	return tracks
}

func logEvents(ui *charmlog.Logger, sub *events.Subscription) {
	for evt := range sub.Events {
		ui.Info(evt.Kind.String(), "status", evt.State.Status, "position", evt.State.QueuePosition)
	}
}

// readCommands accepts simple line commands for interactive testing:
// pause, resume, toggle, stop, next, prev, seek <seconds>, volume <0..1>,
// status.
func readCommands(ctx context.Context, ui *charmlog.Logger, eng *engine.Engine) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch strings.ToLower(fields[0]) {
		case "pause":
			eng.Pause()
		case "resume":
			eng.Resume()
		case "toggle":
			eng.Toggle()
		case "stop":
			eng.Stop()
		case "next":
			eng.Next()
		case "prev", "previous":
			eng.Previous()
		case "seek":
			if len(fields) < 2 {
				continue
			}
			secs, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				ui.Error("seek", "err", err)
				continue
			}
			eng.Seek(time.Duration(secs*float64(time.Second)), platune.SeekAbsolute)
		case "volume":
			if len(fields) < 2 {
				continue
			}
			v, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				ui.Error("volume", "err", err)
				continue
			}
			eng.SetVolume(float32(v))
		case "status":
			statusCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			status, err := eng.GetCurrentStatus(statusCtx)
			cancel()
			if err != nil {
				ui.Error("status", "err", err)
				continue
			}
			ui.Info("status", "state", status.TrackStatus.Status, "queue_pos", status.TrackStatus.State.QueuePosition)
		default:
			ui.Warn("unknown command", "cmd", fields[0])
		}
	}
}
