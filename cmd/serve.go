package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/StreyKenD/AutoTranslationJPEN/pkg/cycle"
	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the overlay daemon",
	Long: `Run the overlay daemon with an HTTP control surface.

  POST /api/cycle   capture and translate the region
  POST /api/toggle  show or hide the overlay
  POST /api/stop    cancel the running cycle
  GET  /api/status  current cycle state
  GET  /overlay.png latest composited overlay`,
	RunE: runServe,
}

func init() {
	RootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", "", "Address of the control surface (overrides control.listen)")
}

// controller is the part of the cycle machine the control surface drives
type controller interface {
	Run(ctx context.Context) (*cycle.Result, error)
	Running() bool
	Cancel() bool
	ToggleVisibility() (bool, error)
	State() cycle.State
}

type snapshotter interface {
	Snapshot() image.Image
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.Control.Listen = listen
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := buildPipeline(ctx, cfg, newCapturer(cfg))
	if err != nil {
		return err
	}
	defer p.Close()

	srv := &http.Server{
		Addr:              cfg.Control.Listen,
		Handler:           newControlHandler(ctx, p.machine, p.surface),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("Shutting down overlay daemon")
		p.machine.Cancel()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Control surface shutdown failed", "err", err)
		}
	}()

	slog.Info("Overlay daemon listening",
		"url", "http://"+cfg.Control.Listen,
		"region", cfg.Region,
		"overlay", cfg.Overlay.Output)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// newControlHandler exposes the run/toggle/stop triggers. Cycles started over
// HTTP run on ctx, not on the request context.
func newControlHandler(ctx context.Context, c controller, overlay snapshotter) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/cycle", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if c.Running() {
			writeJSON(w, http.StatusConflict, map[string]any{"error": cycle.ErrBusy.Error(), "state": c.State()})
			return
		}
		go func() {
			if _, err := c.Run(ctx); err != nil && !errors.Is(err, cycle.ErrBusy) {
				slog.Debug("Cycle triggered over HTTP ended with error", "err", err)
			}
		}()
		writeJSON(w, http.StatusAccepted, map[string]any{"started": true})
	})

	mux.HandleFunc("/api/toggle", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		visible, err := c.ToggleVisibility()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"visible": visible})
	})

	mux.HandleFunc("/api/stop", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"cancelled": c.Cancel()})
	})

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, c.State())
	})

	mux.HandleFunc("/overlay.png", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		img := overlay.Snapshot()
		if img == nil {
			http.Error(w, "No overlay yet", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		if err := imaging.Encode(w, img, imaging.PNG); err != nil {
			slog.Error("Failed to encode overlay", "err", err)
		}
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "err", err)
	}
}
