package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/coreman2200/arcaluminis-matrix/internal/config"
	"github.com/coreman2200/arcaluminis-matrix/internal/diagnostics"
	"github.com/coreman2200/arcaluminis-matrix/internal/encoder"
	"github.com/coreman2200/arcaluminis-matrix/internal/layer"
	"github.com/coreman2200/arcaluminis-matrix/internal/scheduler"
	"github.com/coreman2200/arcaluminis-matrix/internal/transport"
)

func main() {
	def := config.Default()

	// ---- Flags (config file keys override them) ----
	var (
		display    = flag.String("display", def.Display, "display type: hub75 | apa102")
		transp     = flag.String("transport", def.Transport, "transport: sim | gpio | gpiocdev | spi | periph")
		panel      = flag.String("panel", def.Panel, "HUB75 panel type")
		panels     = flag.Int("panels", def.Panels, "HUB75 panels chained horizontally")
		depth      = flag.Int("depth", def.Depth, "bits per color channel")
		width      = flag.Int("width", def.Width, "APA102 pixels per row")
		height     = flag.Int("height", def.Height, "APA102 rows")
		refresh    = flag.Int("refresh-hz", def.RefreshRate, "target refresh rate")
		brightness = flag.Int("brightness", def.Brightness, "global brightness 0..255")
		rotation   = flag.Int("rotation", def.Rotation, "rotation: 0 | 90 | 180 | 270")
		colorOrder = flag.String("color", def.ColorOrder, "color order (e.g. RGB, BGR)")
		pattern    = flag.String("pattern", def.Pattern, "calibration pattern: index_sweep | rgb_channels | row_plane")
		logLevel   = flag.String("log-level", def.LogLevel, "log level")
		configPath = flag.String("config", "matrix.yaml", "path to matrix.yaml")
		simOnly    = flag.Bool("sim-only", false, "force simulation (no hardware output)")
	)
	flag.Parse()

	// ---- Logging ----
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})

	cfg := def
	cfg.Display, cfg.Transport, cfg.Panel = *display, *transp, *panel
	cfg.Panels, cfg.Depth = *panels, *depth
	cfg.Width, cfg.Height = *width, *height
	cfg.RefreshRate, cfg.Brightness, cfg.Rotation = *refresh, *brightness, *rotation
	cfg.ColorOrder, cfg.Pattern, cfg.LogLevel = *colorOrder, *pattern, *logLevel

	// ---- Load matrix.yaml (optional) ----
	if err := config.LoadInto(*configPath, cfg); err != nil {
		log.Warn().Err(err).Str("path", *configPath).Msg("config load failed; proceeding with flags")
	}
	if *simOnly {
		cfg.Transport = "sim"
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	if cfg.Transport != "sim" {
		if _, err := host.Init(); err != nil {
			log.Warn().Err(err).Msg("periph host init failed; falling back to SIM")
			cfg.Transport = "sim"
		}
	}

	// ---- Encoder ----
	var (
		enc  scheduler.Encoder
		w, h int
		dec  transport.RowDecoder
	)
	switch cfg.Display {
	case "hub75":
		e, err := encoder.NewHUB75(cfg.HUB75())
		if err != nil {
			log.Fatal().Err(err).Msg("hub75 setup")
		}
		p := e.Plan()
		log.Info().Str("panel", cfg.Panel).Int("transition_bit", p.TransitionBit).Uint32("unit_ticks", p.Unit).
			Int("passes", p.Passes).Int("buffer_bytes", p.BufferBytes).Int("refresh_hz", p.RefreshRate).Msg("bit-plane plan")
		enc, w, h, dec = e, e.Width(), e.Height(), e.Decoder()
	case "apa102":
		e, err := encoder.NewAPA102(cfg.APA102())
		if err != nil {
			log.Fatal().Err(err).Msg("apa102 setup")
		}
		enc, w, h, dec = e, e.Width(), e.Height(), e.Decoder()
	}

	// ---- Layers ----
	chain := &layer.Chain{}
	bg := layer.NewBackground(w, h)
	drawGradient(bg)
	chain.Add(bg)
	if cfg.Pattern != "" {
		chain.Add(layer.NewPattern(w, h, layer.PatternKind(cfg.Pattern), 4))
	}

	// ---- Transport selection with SIM fallback ----
	tr, closer := openTransport(cfg, enc, dec, w, h)

	eng, err := scheduler.New(enc, chain, tr, cfg.Scheduler(), log.With().Str("component", "scheduler").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("scheduler setup")
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := eng.Run(ctx); err != nil {
			log.Error().Err(err).Msg("refresh loop stopped")
		}
	}()
	if err := eng.Start(); err != nil {
		log.Fatal().Err(err).Msg("refresh start")
	}
	log.Info().Str("display", cfg.Display).Str("transport", cfg.Transport).Int("width", w).Int("height", h).Msg("matrix running")

	// ---- Periodic diagnostics ----
	go func() {
		t := time.NewTicker(5 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				st := eng.Status()
				log.Debug().Int("refresh_hz", st.RefreshRate).Uint64("frames", st.Frames).Int("queued", st.Queued).Msg("status")
				diagnostics.Report(log.Logger, diagnostics.FromStatus(st))
				eng.ClearFlags()
			}
		}
	}()

	// ---- Graceful shutdown ----
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	s := <-ch
	log.Info().Str("signal", s.String()).Msg("shutting down")

	cancel()
	if err := eng.Stop(); err != nil {
		log.Warn().Err(err).Msg("transport stop")
	}
	if closer != nil {
		_ = closer()
	}
}

func openTransport(cfg *config.Config, enc scheduler.Encoder, dec transport.RowDecoder, w, h int) (transport.Transport, func() error) {
	tlog := log.With().Str("component", "transport").Str("transport", cfg.Transport).Logger()
	sim := func() transport.Transport {
		return transport.NewSim(transport.SimOptions{
			Width: w, Height: h, Rows: enc.Rows(), RefreshRate: enc.RefreshRate(), Decoder: dec, Log: tlog,
		})
	}
	hub75 := transport.HUB75Options{Rows: enc.Rows(), RefreshRate: enc.RefreshRate(), TimerHz: cfg.HUB75().Timer.TimerHz, Log: tlog}
	apa := transport.APA102Options{
		Width: w, Height: h, RefreshRate: enc.RefreshRate(),
		Speed: physic.Frequency(cfg.SPI.SpeedHz) * physic.Hertz, Log: tlog,
	}

	switch cfg.Transport {
	case "sim":
		return sim(), nil

	case "gpio":
		bus, err := transport.OpenPeriphPinBus(cfg.PinMap())
		if err != nil {
			log.Warn().Err(err).Msg("periph GPIO init failed; falling back to SIM")
			return sim(), nil
		}
		return transport.NewHUB75GPIO(bus, hub75), bus.Close

	case "gpiocdev":
		bus, err := transport.OpenCdevPinBus(cfg.GPIO.Chip, cfg.PinMap())
		if err != nil {
			log.Warn().Err(err).Str("chip", cfg.GPIO.Chip).Msg("gpiocdev init failed; falling back to SIM")
			return sim(), nil
		}
		return transport.NewHUB75GPIO(bus, hub75), bus.Close

	case "spi":
		t, port, err := transport.OpenSPIAPA102(cfg.SPI.Dev, apa)
		if err != nil {
			log.Warn().Err(err).Str("dev", cfg.SPI.Dev).Int("speed_hz", cfg.SPI.SpeedHz).Msg("SPI init failed; falling back to SIM")
			return sim(), nil
		}
		return t, port.Close

	case "periph":
		port, err := spireg.Open(cfg.SPI.Dev)
		if err != nil {
			log.Warn().Err(err).Str("dev", cfg.SPI.Dev).Msg("SPI open failed; falling back to SIM")
			return sim(), nil
		}
		t, err := transport.NewPeriphAPA102(port, dec, apa)
		if err != nil {
			_ = port.Close()
			log.Warn().Err(err).Msg("apa102 init failed; falling back to SIM")
			return sim(), nil
		}
		return t, port.Close
	}
	log.Warn().Str("transport", cfg.Transport).Msg("unknown transport; using SIM")
	return sim(), nil
}

// drawGradient fills bg with a diagonal test gradient.
func drawGradient(bg *layer.Background) {
	w, h := bg.Size()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			bg.SetPixel(x, y, layer.RGB24{
				R: uint8(x * 255 / max(w-1, 1)),
				G: uint8(y * 255 / max(h-1, 1)),
				B: 64,
			})
		}
	}
	bg.Swap(false)
}
