// Command nczxplay is the reference host application: it loads one
// cartridge, wires a console.Spec, drives runtime.Loop at a fixed tick
// rate, and presents the result through the video/audio collaborator
// backends. It is explicitly an example of the out-of-core-scope
// "application shell" collaborator — hosts embedding this module are
// expected to write their own, shaped like this one.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"
	_ "go.uber.org/automaxprocs"
	"golang.design/x/clipboard"

	"github.com/nczxlabs/nczx-core/audio"
	"github.com/nczxlabs/nczx-core/cartridge"
	"github.com/nczxlabs/nczx-core/config"
	"github.com/nczxlabs/nczx-core/console"
	"github.com/nczxlabs/nczx-core/monitor"
	"github.com/nczxlabs/nczx-core/rollback"
	"github.com/nczxlabs/nczx-core/runtime"
	"github.com/nczxlabs/nczx-core/sandbox"
	"github.com/nczxlabs/nczx-core/state"
	"github.com/nczxlabs/nczx-core/video"
)

// systemClipboard adapts golang.design/x/clipboard to monitor.ClipboardWriter,
// lazily initializing the platform clipboard on first use so a headless run
// never pays for (or fails on) clipboard setup it doesn't need.
type systemClipboard struct {
	ready bool
	err   error
}

func (c *systemClipboard) Write(text string) error {
	if !c.ready {
		c.err = clipboard.Init()
		c.ready = true
	}
	if c.err != nil {
		return fmt.Errorf("clipboard unavailable: %w", c.err)
	}
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}

// zeroInput is the InputSource used until a real keyboard/gamepad
// collaborator is wired in; it lets the loop run and render a cartridge
// with no live input for smoke-testing and headless playback.
type zeroInput struct{}

func (zeroInput) Sample(uint64) state.Input { return state.Input{} }

func main() {
	cartPath := flag.String("cart", "", "path to an NCZX cartridge container (required)")
	specPath := flag.String("spec", "", "path to a console spec TOML file (optional, defaults to console.Reference)")
	headless := flag.Bool("headless", false, "run without a window or audio device")
	debugUI := flag.Bool("debug", false, "attach a terminal monitor overlay over the cartridge's debug registry")
	flag.Parse()

	if *cartPath == "" {
		fmt.Fprintln(os.Stderr, "usage: nczxplay -cart game.nczx [-spec console.toml] [-headless] [-debug]")
		os.Exit(1)
	}

	if err := run(*cartPath, *specPath, *headless, *debugUI); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(cartPath, specPath string, headless, debugUI bool) error {
	log := console.NewStdLogger()

	spec := console.Reference
	if specPath != "" {
		s, err := config.LoadConsoleSpec(specPath)
		if err != nil {
			return fmt.Errorf("load console spec: %w", err)
		}
		spec = s
	}

	data, err := os.ReadFile(cartPath)
	if err != nil {
		return fmt.Errorf("read cartridge: %w", err)
	}
	cart, err := cartridge.Parse(data)
	if err != nil {
		return fmt.Errorf("parse cartridge: %w", err)
	}

	ctx := context.Background()
	engine := sandbox.NewEngine(ctx, log)
	defer engine.Close(ctx)

	loop := runtime.New(spec, engine, log)
	if err := loop.LoadGame(ctx, cart, rollback.KindLocal, 1, 0, 8); err != nil {
		return fmt.Errorf("load game: %w", err)
	}
	defer loop.Close(ctx)

	// Registry() and Monitor() are populated by the cartridge's own init()
	// export through the sandbox debug FFI namespace; the UI only needs to
	// be pointed at them, never constructed with its own copies.
	var debugMon *monitor.UI
	if debugUI && !headless {
		screen, err := tcell.NewScreen()
		if err != nil {
			return fmt.Errorf("create debug monitor screen: %w", err)
		}
		debugMon = monitor.New(loop.Registry(), loop.Monitor(), &systemClipboard{})
		if err := debugMon.Attach(screen); err != nil {
			return fmt.Errorf("attach debug monitor: %w", err)
		}
		defer debugMon.Close()
	}

	videoBackend := video.BackendEbiten
	audioBackend := audio.BackendOto
	if headless {
		videoBackend = video.BackendHeadless
		audioBackend = audio.BackendHeadless
	}

	out, err := video.New(videoBackend)
	if err != nil {
		return fmt.Errorf("create video backend: %w", err)
	}
	if err := out.SetDisplayConfig(video.DisplayConfig{
		Width:       spec.Resolution.Width,
		Height:      spec.Resolution.Height,
		Scale:       1,
		RefreshRate: loop.TickRate(),
	}); err != nil {
		return fmt.Errorf("configure video: %w", err)
	}
	if err := out.Start(); err != nil {
		return fmt.Errorf("start video: %w", err)
	}
	defer out.Close()

	compositor := video.NewCompositor(out, nil)

	mixer := audio.NewMixer(nil)
	player, err := audio.New(audioBackend, 44100, mixer)
	if err != nil {
		return fmt.Errorf("create audio backend: %w", err)
	}
	if err := player.Start(); err != nil {
		return fmt.Errorf("start audio: %w", err)
	}
	defer player.Close()

	in := zeroInput{}
	for frames := 0; frames < 600; frames++ {
		if _, _, err := loop.Advance(ctx, time.Now(), in); err != nil {
			return fmt.Errorf("advance: %w", err)
		}

		output, err := loop.Render(ctx)
		if err != nil {
			return fmt.Errorf("render: %w", err)
		}
		mixer.Submit(output)
		if err := compositor.Present(output); err != nil {
			log.Warnf("present frame: %v", err)
		}
		if debugMon != nil {
			debugMon.Tick(loop.InstanceMemory(), loop.CurrentFrame())
			debugMon.Render()
		}
		_ = out.WaitForVSync()
	}

	return nil
}
