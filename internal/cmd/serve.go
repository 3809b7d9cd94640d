package cmd

import (
	"context"
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/MeKo-Tech/textilegen/internal/effects"
	"github.com/MeKo-Tech/textilegen/internal/history"
	"github.com/MeKo-Tech/textilegen/internal/server"
	"github.com/MeKo-Tech/textilegen/internal/studio"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the preview and studio HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	addSettingsFlags(viper.GetViper(), serveCmd, "serve")

	serveCmd.Flags().String("addr", "127.0.0.1:8080", "Listen address (host:port)")
	serveCmd.Flags().Int("max-concurrent-generations", runtime.NumCPU(), "Max concurrent preview renders")
	serveCmd.Flags().Duration("generation-timeout", 30*time.Second, "Timeout per preview render")
	serveCmd.Flags().Int("max-dimension", 2048, "Largest width or height a request may ask for")
	serveCmd.Flags().String("cache-control", "no-store", "Cache-Control header for rendered previews")
	serveCmd.Flags().Int("history-size", history.DefaultCapacity, "Studio history capacity")
	serveCmd.Flags().Bool("keep-canvas", false, "Layer studio results onto the previous canvas")
	serveCmd.Flags().Bool("puff", false, "Publish a puff map for every studio canvas")

	mustBind("serve.addr", serveCmd, "addr")
	mustBind("serve.max_concurrent_generations", serveCmd, "max-concurrent-generations")
	mustBind("serve.generation_timeout", serveCmd, "generation-timeout")
	mustBind("serve.max_dimension", serveCmd, "max-dimension")
	mustBind("serve.cache_control", serveCmd, "cache-control")
	mustBind("serve.history_size", serveCmd, "history-size")
	mustBind("serve.keep_canvas", serveCmd, "keep-canvas")
	mustBind("serve.puff", serveCmd, "puff")
}

func runServe(cmd *cobra.Command, args []string) error {
	v := viper.GetViper()

	defaults, ns, err := resolveSettings(v, "serve")
	if err != nil {
		return err
	}
	presets, err := loadPresets(v)
	if err != nil {
		return err
	}
	previewPresets := make(map[string]server.Preset, len(presets))
	for name, p := range presets {
		previewPresets[name] = server.Preset{Settings: p.Settings, Noise: p.Noise}
	}

	studioCfg := studio.Config{
		HistorySize: v.GetInt("serve.history_size"),
		KeepCanvas:  v.GetBool("serve.keep_canvas"),
	}
	if v.GetBool("serve.puff") {
		p := effects.DefaultPuffParams()
		studioCfg.Puff = &p
	}

	opts := server.Options{
		Preview: server.PreviewConfig{
			Defaults:          defaults,
			Noise:             ns,
			Presets:           previewPresets,
			CacheControl:      v.GetString("serve.cache_control"),
			MaxDimension:      v.GetInt("serve.max_dimension"),
			MaxConcurrent:     v.GetInt("serve.max_concurrent_generations"),
			GenerationTimeout: v.GetDuration("serve.generation_timeout"),
		},
		Studio: studio.New(studioCfg, logger),
	}

	libraryPath := v.GetString("library")
	if libraryPath != "" {
		store, err := openLibrary(libraryPath)
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Error("Failed to close library", "error", err)
			}
		}()
		opts.Library = store
		opts.Saver = store
	}

	srv := server.New(opts, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/api/", srv.Handler())

	addr := v.GetString("serve.addr")
	logger.Info("Preview server listening",
		"addr", addr,
		"library", libraryPath,
		"presets", len(presets),
		"max_concurrent_generations", opts.Preview.MaxConcurrent,
	)

	httpSrv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-cmd.Context().Done():
	}

	logger.Info("Shutting down preview server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
