package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jamo/photoframe/internal/database"
	"github.com/jamo/photoframe/internal/downloads"
	"github.com/jamo/photoframe/internal/geocode"
	"github.com/jamo/photoframe/internal/library"
	"github.com/jamo/photoframe/internal/logging"
	"github.com/jamo/photoframe/internal/slideshow"
	"github.com/jamo/photoframe/internal/voice"
	"github.com/jamo/photoframe/internal/web"
)

var (
	listenAddr string
	voiceStdin bool
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Run the slideshow",
	Long: `Starts the slideshow and serves the fullscreen display page. Open the
printed URL in a browser in kiosk mode to show it.

Controls:
  Escape        stop the slideshow
  Space         pause / resume
  Left, Right   previous / next photo
  Shift         toggle the filename overlay
  Click         previous photo, double click for next

With voice_commands_enabled the page listens for "next", "back", "pause"
and "resume".`,
	RunE: runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().StringVar(&listenAddr, "addr", "localhost:8080", "Address for the display page")
	playCmd.Flags().BoolVar(&voiceStdin, "voice-stdin", false, "Read voice commands as text lines from stdin")
}

func runPlay(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(paths.LibraryDB())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	watcher := downloads.NewWatcher(paths.SignalFile(), logger)
	provider := library.NewProvider(db, cfg, watcher, logger)
	photos, err := provider.Load()
	if errors.Is(err, library.ErrNoPhotos) {
		return fmt.Errorf("%w. Run 'photoframe import <dir>' or 'photoframe sync' first", err)
	}
	if err != nil {
		return fmt.Errorf("failed to load photos: %w", err)
	}

	locations := geocode.NewCache(paths.LocationCacheFile(), geocode.NewNominatim(cfg.GeocoderURL), logger)

	display, err := web.NewServer(web.OptionsFromConfig(cfg), logger)
	if err != nil {
		return fmt.Errorf("failed to start display: %w", err)
	}

	controller, err := slideshow.New(photos, slideshow.OptionsFromConfig(cfg), slideshow.Deps{
		Renderer:  display,
		Locator:   locations,
		Refresher: provider,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	display.Attach(controller)

	httpServer := &http.Server{Addr: listenAddr, Handler: display}
	serveErr := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	fmt.Printf("Slideshow of %d photos on http://%s/\n", photos.Len(), listenAddr)
	fmt.Println("Press Ctrl+C to stop")

	if cfg.VoiceCommandsEnabled || voiceStdin {
		service, err := newVoiceService(controller)
		if err != nil {
			return err
		}
		defer service.Wait()
		if cfg.VoiceCommandsEnabled {
			go service.Run(ctx, display.Utterances())
		}
		if voiceStdin {
			go service.Run(ctx, voice.LineSource(ctx, os.Stdin))
		}
	}

	runErr := make(chan error, 1)
	go func() { runErr <- controller.Run(ctx) }()

	select {
	case err := <-serveErr:
		controller.Stop()
		<-runErr
		return fmt.Errorf("display server: %w", err)
	case err := <-runErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	logger.Info("slideshow stopped", "status", controller.Status().State.String())
	return nil
}

func newVoiceService(target voice.Target) (*voice.Service, error) {
	matcher := voice.DefaultMatcher()
	if cfg.VoiceCommandVariantsPath != "" {
		m, err := voice.NewMatcher(cfg.VoiceCommandVariantsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load voice variants: %w", err)
		}
		matcher = m
	}
	if err := matcher.AddCustomVariants(cfg.CustomVoiceVariants); err != nil {
		logger.Warn("ignoring custom voice variants", logging.Error(err))
	}
	delay := time.Duration(cfg.VoiceCommandDelayMS) * time.Millisecond
	return voice.NewService(matcher, nil, target, delay, logger), nil
}
