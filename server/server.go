package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"time"

	"racer/models"
	"racer/reinforcement"
	"racer/server/fastview"
	"racer/server/root_view"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

const shutdownGracePeriod = 5 * time.Second

// Runner is the training surface the server controls.
type Runner interface {
	StartRun(ctx context.Context, numVehicles, numSteps int) error
	Stop(id int) error
	StopAll()
	Wait() (reinforcement.RunResult, error)
	Snapshots() []models.Snapshot
}

// Server serves the track page and its websocket, plus a small api to start and stop runs.
// The page's ele-update channel is single-consumer: concurrent pages split the updates
// between them.
type Server struct {
	addr       string
	ctx        context.Context
	runner     Runner
	rootView   *root_view.RootView
	logger     zerolog.Logger
	onFinished func(reinforcement.RunResult)
}

// Option configures a Server.
type Option func(*Server)

// WithRunFinished registers a callback for runs started through the api, called once
// each run has been waited on.
func WithRunFinished(fn func(reinforcement.RunResult)) Option {
	return func(server *Server) {
		server.onFinished = fn
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(server *Server) {
		server.logger = logger
	}
}

// NewServer initializes the views over the frames channel and returns a server. Runs
// started through the api live as long as ctx.
func NewServer(
	ctx context.Context,
	addr string,
	track *models.Track,
	runner Runner,
	frames <-chan []models.Snapshot,
	opts ...Option,
) (*Server, error) {
	rootView, err := root_view.NewRootView(ctx, track, frames)
	if err != nil {
		return nil, fmt.Errorf("building views: %w", err)
	}

	server := &Server{
		addr:     addr,
		ctx:      ctx,
		runner:   runner,
		rootView: rootView,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(server)
	}
	return server, nil
}

// Router returns the server's routes.
func (server *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/", server.serveIndex).Methods(http.MethodGet)
	router.HandleFunc("/ws", server.serveWebsocket)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/run", server.startRun).Methods(http.MethodPost)
	api.HandleFunc("/stop", server.stopAll).Methods(http.MethodPost)
	api.HandleFunc("/vehicles/{id:[0-9]+}/stop", server.stopVehicle).Methods(http.MethodPost)
	api.HandleFunc("/snapshots", server.serveSnapshots).Methods(http.MethodGet)
	return router
}

// Serve listens until the server's context is cancelled.
func (server *Server) Serve() error {
	srv := &http.Server{
		Addr:    server.addr,
		Handler: server.Router(),
	}

	go func() {
		<-server.ctx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	server.logger.Info().Str("addr", server.addr).Msg("serving")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// serveWebsocket publishes view updates to the client until it disconnects.
func (server *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	cli, err := fastview.NewClient(
		server.rootView.Updates(),
		w,
		r,
		fastview.WithInitial(server.rootView.Render(server.runner.Snapshots())),
		fastview.WithLogger[[]fastview.EleUpdate](server.logger),
	)
	if err != nil {
		server.logger.Warn().Err(err).Msg("websocket")
		return
	}

	if err = cli.Sync(); err != nil {
		server.logger.Warn().Err(err).Msg("websocket client sync")
	}
}

// Serve the index.html main page.
func (server *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	page := server.rootView.Page(server.runner.Snapshots())
	if err := renderTemplate(w, server.rootView, page); err != nil {
		server.logger.Error().Err(err).Msg("rendering index")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (server *Server) startRun(w http.ResponseWriter, r *http.Request) {
	numVehicles, numSteps, err := reinforcement.ParseRunRequest(r.FormValue("vehicles"), r.FormValue("steps"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = server.runner.StartRun(server.ctx, numVehicles, numSteps)
	switch {
	case errors.Is(err, reinforcement.ErrRunInProgress):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case errors.Is(err, models.ErrInvalidConfiguration):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		server.logger.Error().Err(err).Msg("starting run")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	go server.awaitRun()
	w.WriteHeader(http.StatusAccepted)
}

func (server *Server) awaitRun() {
	result, err := server.runner.Wait()
	if err != nil {
		server.logger.Warn().Err(err).Msg("awaiting run")
		return
	}
	if server.onFinished != nil {
		server.onFinished(result)
	}
}

func (server *Server) stopAll(w http.ResponseWriter, r *http.Request) {
	server.runner.StopAll()
	w.WriteHeader(http.StatusAccepted)
}

func (server *Server) stopVehicle(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err = server.runner.Stop(id); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (server *Server) serveSnapshots(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	snaps := server.runner.Snapshots()
	if snaps == nil {
		snaps = []models.Snapshot{}
	}
	if err := json.NewEncoder(w).Encode(snaps); err != nil {
		server.logger.Warn().Err(err).Msg("encoding snapshots")
	}
}

func renderTemplate(
	w io.Writer,
	vc fastview.ViewComponent,
	data interface{},
) (err error) {
	t := template.New("index.html")
	var tname string
	if tname, err = vc.Parse(t); err != nil {
		return
	}
	if _, err = t.Parse(`{{ template "` + tname + `" . }}`); err != nil {
		return
	}

	err = t.Execute(w, data)
	return
}
