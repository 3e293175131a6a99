package cmd

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rubiojr/storefront/cmd/web/components"
	"github.com/rubiojr/storefront/cmd/web/components/types"
	"github.com/rubiojr/storefront/pkg/api"
	"github.com/rubiojr/storefront/pkg/log"
	"github.com/rubiojr/storefront/pkg/realtime"
	"github.com/rubiojr/storefront/pkg/storage"
	"github.com/rubiojr/storefront/pkg/version"
	"github.com/urfave/cli/v3"
)

//go:embed web/static/*
var staticFS embed.FS

const seedTimeout = 15 * time.Second

// WebCommand creates the web command with both API and UI
func WebCommand() *cli.Command {
	return &cli.Command{
		Name:  "web",
		Usage: "Start the storefront navbar page, autocomplete API and websocket sessions",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "port",
				Usage: "Port to listen on",
				Value: "8080",
			},
			&cli.StringFlag{
				Name:  "host",
				Usage: "Host to bind to",
				Value: "localhost",
			},
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "Do not record selections or show recent ones as seeds",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return startWebServer(ctx, c.String("config"), c.String("host"), c.String("port"), !c.Bool("no-history"))
		},
	}
}

// WebServer holds the page handlers and the API server they share config with.
type WebServer struct {
	apiServer *api.Server
	log       *log.Logger
}

// NewWebServer wraps apiServer with the page and static handlers.
func NewWebServer(apiServer *api.Server) *WebServer {
	return &WebServer{apiServer: apiServer, log: log.ForService("web")}
}

// Handler returns the complete HTTP handler. The websocket route is kept
// outside the gzip wrapper since hijacked connections cannot be compressed.
func (s *WebServer) Handler() http.Handler {
	inner := http.NewServeMux()
	s.apiServer.RegisterRoutes(inner)
	inner.HandleFunc("/", s.handleHome)
	inner.HandleFunc("/static/", s.handleStatic)

	outer := http.NewServeMux()
	s.apiServer.RegisterWebSocket(outer)
	outer.Handle("/", gzhttp.GzipHandler(inner))

	return api.CorsMiddleware(outer)
}

// startWebServer starts the web server with both API and UI
func startWebServer(ctx context.Context, configPath, host, port string, withHistory bool) error {
	l := log.ForService("web")

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	var history *storage.History
	if withHistory {
		history, err = storage.OpenHistoryIn(cfg.StorageDir)
		if err != nil {
			l.Warnf("history disabled: %v", err)
			history = nil
		} else {
			defer func() {
				if err := history.Close(); err != nil {
					l.Warnf("failed to close history: %v", err)
				}
			}()
		}
	}

	deps, err := newDeps(cfg, history)
	if err != nil {
		return err
	}

	apiServer := api.NewServer(deps, realtime.NewHub(0))
	defer apiServer.Close()
	loadSeeds(ctx, apiServer, l)

	webServer := NewWebServer(apiServer)
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", host, port),
		Handler:           webServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		l.Infof("Starting web server on http://%s:%s", host, port)
		l.Infof("Available endpoints:")
		l.Infof("  GET / - Navbar page with the search box")
		l.Infof("  GET /go - Resolve a selection and redirect")
		l.Infof("  GET /api/autocomplete - Categorized autocomplete results")
		l.Infof("  POST /api/resolve - Resolve free text to a storefront page")
		l.Infof("  GET /api/config - Public navbar configuration")
		l.Infof("  GET /api/ws - Websocket widget session")
		l.Infof("  GET /health - Health check")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	go watchConfig(watchCtx, configPath, func() {
		reloadConfiguration(watchCtx, configPath, apiServer, history, l)
	}, l)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-sigCh:
	case <-ctx.Done():
	case err := <-serverErr:
		return fmt.Errorf("web server: %w", err)
	}

	l.Infof("Shutting down web server...")
	stopWatch()
	apiServer.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}

func loadSeeds(ctx context.Context, apiServer *api.Server, l *log.Logger) {
	seedCtx, cancel := context.WithTimeout(ctx, seedTimeout)
	defer cancel()
	if err := apiServer.LoadSeeds(seedCtx); err != nil {
		l.Warnf("failed to load seed results: %v", err)
	}
}

// watchConfig calls reload whenever configPath changes, until ctx is done.
func watchConfig(ctx context.Context, configPath string, reload func(), l *log.Logger) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		l.Warnf("failed to create config file watcher: %v", err)
		return
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			l.Warnf("failed to close config file watcher: %v", err)
		}
	}()

	if err := watcher.Add(configPath); err != nil {
		l.Warnf("failed to watch config file %s: %v", configPath, err)
		return
	}
	l.Infof("Watching config file for changes: %s", configPath)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			// Editors often replace the file with an atomic rename.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			l.Infof("Config file changed: %s (event: %s), reloading configuration...", event.Name, event.Op.String())

			if event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				time.Sleep(200 * time.Millisecond)
				if _, err := os.Stat(configPath); os.IsNotExist(err) {
					l.Warnf("Config file was removed and not replaced, skipping reload")
					continue
				}
				if err := watcher.Add(configPath); err != nil {
					l.Warnf("failed to re-add config file to watcher: %v", err)
				}
			} else {
				time.Sleep(100 * time.Millisecond)
			}
			reload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			l.Errorf("Config file watcher error: %v", err)
		}
	}
}

// reloadConfiguration swaps the API server dependencies. Existing websocket
// sessions keep their backend; new sessions use the new one.
func reloadConfiguration(ctx context.Context, configPath string, apiServer *api.Server, history *storage.History, l *log.Logger) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		l.Errorf("Failed to reload configuration: %v", err)
		return
	}
	deps, err := newDeps(cfg, history)
	if err != nil {
		l.Errorf("Failed to reload configuration: %v", err)
		return
	}
	apiServer.Update(deps)
	loadSeeds(ctx, apiServer, l)
	l.Infof("Configuration reloaded successfully")
}

// handleHome serves the navbar page
func (s *WebServer) handleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	cfg := s.apiServer.Config()
	public := api.PublicConfigFrom(cfg)
	data := types.PageData{
		Title:           "Storefront",
		Links:           public.Links,
		Filter:          public.Filter,
		ShowSearch:      public.ShowSearch,
		DefaultToSearch: public.DefaultToSearch,
		Query:           strings.TrimSpace(r.URL.Query().Get("q")),
		Notice:          r.URL.Query().Get("notice"),
		DebounceMS:      public.DebounceMS,
		Version:         version.APIVersion(),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := components.Page(data).Render(r.Context(), w); err != nil {
		s.log.Errorf("rendering page: %v", err)
		http.Error(w, fmt.Sprintf("Template error: %v", err), http.StatusInternalServerError)
	}
}

// handleStatic serves static assets from embedded files
func (s *WebServer) handleStatic(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/static/")
	if name == "" || strings.Contains(name, "..") {
		http.NotFound(w, r)
		return
	}

	content, err := staticFS.ReadFile("web/static/" + name)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(content)
}
