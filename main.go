/*
Racer trains a fleet of cars around an elliptical track. Every car learns on its own
goroutine with a small table policy: keep an action that paid off from an observation,
explore when it did not. Progress is shown in the terminal, and optionally in a browser
page fed by a websocket. Finished runs are recorded in a local sqlite history.
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"racer/console"
	"racer/history"
	"racer/reinforcement"
	"racer/server"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

const defaultConfigFile = "config.yaml"

var (
	configFile  string
	historyPath string
	logLevel    string
	vehicles    int
	steps       int
	seed        int64
	tick        string
	serveAddr   string
	live        bool
	limit       int
)

// flagKeys maps train flags onto their config keys; a flag set on the command line
// overrides the config file.
var flagKeys = map[string]string{
	"vehicles": "def.fleet.vehicles",
	"steps":    "def.fleet.steps",
	"seed":     "def.seed",
	"tick":     "def.timing.tickinterval",
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "racer",
		Short:        "race a fleet of learning cars around a track",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&historyPath, "history", "racer.db", "run history database, empty to disable")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level")

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "list finished runs",
		Args:  cobra.NoArgs,
		RunE:  listHistory,
	}
	historyCmd.Flags().IntVar(&limit, "limit", 20, "most recent runs to show, 0 for all")

	rootCmd.AddCommand(newTrainCommand(), historyCmd)
	return rootCmd
}

func newTrainCommand() *cobra.Command {
	trainCmd := &cobra.Command{
		Use:   "train",
		Short: "train a fleet",
		Args:  cobra.NoArgs,
		RunE:  runTrain,
	}
	trainCmd.Flags().StringVar(&configFile, "config", defaultConfigFile, "config file path (yaml)")
	trainCmd.Flags().IntVar(&vehicles, "vehicles", 5, "number of cars")
	trainCmd.Flags().IntVar(&steps, "steps", reinforcement.MaxSteps, "steps per car")
	trainCmd.Flags().Int64Var(&seed, "seed", 0, "random seed, 0 for a time based seed")
	trainCmd.Flags().StringVar(&tick, "tick", reinforcement.DefaultTickInterval.String(), "pause between steps of one car")
	trainCmd.Flags().StringVar(&serveAddr, "serve", "", "serve the track view on this address, e.g. :8080")
	trainCmd.Flags().BoolVar(&live, "live", false, "show live standings while training")
	return trainCmd
}

func newLogger() (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("log level: %w", err)
	}
	// the live view owns the terminal
	if live && level < zerolog.ErrorLevel {
		level = zerolog.ErrorLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().
		Timestamp().
		Logger(), nil
}

// loadConfig reads the config file, if any, and overrides it with the train flags set on
// the command line. A missing default config file is not an error.
func loadConfig(cmd *cobra.Command) (*reinforcement.TrainingConfig, error) {
	vp := viper.New()
	if configFile != "" {
		_, err := os.Stat(configFile)
		switch {
		case err == nil:
			vp.SetConfigFile(configFile)
			vp.SetConfigType("yaml")
			if err = vp.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("reading %s: %w", configFile, err)
			}
		case errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config"):
		default:
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	for name, key := range flagKeys {
		flag := cmd.Flags().Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		if err := vp.BindPFlag(key, flag); err != nil {
			return nil, err
		}
	}
	return reinforcement.FromViper(vp)
}

// boardRunner clears the leaderboard before each run started from the web page.
type boardRunner struct {
	*reinforcement.Trainer
	board *console.Leaderboard
}

func (br *boardRunner) StartRun(ctx context.Context, numVehicles, numSteps int) error {
	br.board.Reset()
	return br.Trainer.StartRun(ctx, numVehicles, numSteps)
}

func runTrain(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	track, err := cfg.Track()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store *history.Store
	if historyPath != "" {
		if store, err = history.Open(historyPath, logger); err != nil {
			return err
		}
		defer store.Close()
	}

	board := console.NewLeaderboard()
	sinks := reinforcement.MultiSink{board}
	var publisher *server.Publisher
	if serveAddr != "" {
		publisher = server.NewPublisher()
		sinks = append(sinks, publisher)
	}

	trainer, err := reinforcement.NewTrainer(cfg, sinks, logger)
	if err != nil {
		return err
	}
	if err = trainer.StartRun(ctx, cfg.Fleet.Vehicles, cfg.Fleet.Steps); err != nil {
		return err
	}

	report := func(result reinforcement.RunResult) {
		fmt.Println(console.RenderResult(result))
		if plot := board.Plot(0, 70, 12); plot != "" {
			fmt.Println(plot)
		}
		for _, err := range result.Errors {
			logger.Warn().Err(err).Msg("run error")
		}
		if store == nil {
			return
		}
		if _, err := store.Save(context.Background(), result); err != nil {
			logger.Error().Err(err).Msg("saving run")
		}
	}

	if serveAddr == "" {
		result, err := awaitRun(trainer, board)
		if err != nil {
			return err
		}
		report(result)
		return nil
	}

	srv, err := server.NewServer(
		ctx,
		serveAddr,
		track,
		&boardRunner{Trainer: trainer, board: board},
		publisher.Frames(),
		server.WithLogger(logger),
		server.WithRunFinished(report),
	)
	if err != nil {
		return err
	}

	group := errgroup.Group{}
	group.Go(func() error {
		result, err := awaitRun(trainer, board)
		if err != nil {
			return err
		}
		report(result)
		logger.Info().Str("addr", serveAddr).Msg("run finished, serving until interrupted")
		return nil
	})
	group.Go(srv.Serve)
	return group.Wait()
}

// awaitRun waits for the current run, showing the live view when requested. Quitting
// the live view stops every car.
func awaitRun(trainer *reinforcement.Trainer, board *console.Leaderboard) (reinforcement.RunResult, error) {
	if !live {
		return trainer.Wait()
	}

	var (
		result  reinforcement.RunResult
		waitErr error
	)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		result, waitErr = trainer.Wait()
	}()

	quit, err := console.RunLive(board, finished)
	if quit || err != nil {
		trainer.StopAll()
	}
	<-finished
	if err != nil {
		return result, fmt.Errorf("live view: %w", err)
	}
	return result, waitErr
}

func listHistory(cmd *cobra.Command, args []string) error {
	if historyPath == "" {
		return errors.New("no history database given")
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}
	store, err := history.Open(historyPath, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}
	fmt.Println(console.RenderHistory(runs))
	return nil
}
