// Command mascotd hosts one or more mascot Environments, drives their tick
// loop against an EbitenHost sprite surface, and serves the IPC Protocol
// over a Unix domain socket for companion clients (spec.md §4.G, §6).
// Drawing the host's sprites to a window is left to the embedding
// compositor; mascotd's Host is a state adapter, not a renderer.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	mascot "github.com/mascotrt/mascot"
	"github.com/mascotrt/mascot/config"
	"github.com/mascotrt/mascot/ipc"
	"github.com/mascotrt/mascot/render"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// errExit is a sentinel error returned by cobra RunE functions to signal
// non-zero exit after the command has already written its own message.
var errExit = errors.New("exit")

func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		return 1
	}
	return 0
}

var configFlag string

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "mascotd",
		Short:         "mascotd hosts desktop mascot companions",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&configFlag, "config", "mascotd.conf",
		"path to the runtime configuration file (spec.md §6 key=value format)")
	root.AddCommand(
		newServeCmd(stdout, stderr),
		newValidateCmd(stdout, stderr),
		newConfigCmd(stdout, stderr),
	)
	return root
}

// setupLogging configures the package-level logrus logger every other
// mascot package logs through (environment.go, ipc/server.go use
// logrus.WithField against this same default logger): human-readable
// text on a terminal, structured JSON otherwise.
func setupLogging(stderr io.Writer) {
	logrus.SetOutput(stderr)
	if isatty(stderr) {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
}

func isatty(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}

// environmentSet is the daemon-wide mascot.Environment registry backing
// ipc.EnvironmentSet. A desktop daemon hosts one Environment per monitor.
type environmentSet struct {
	byID map[uint32]*mascot.Environment
	all  []*mascot.Environment
}

func newEnvironmentSet(envs ...*mascot.Environment) *environmentSet {
	s := &environmentSet{byID: make(map[uint32]*mascot.Environment, len(envs)), all: envs}
	for _, e := range envs {
		s.byID[e.EnvID()] = e
	}
	return s
}

func (s *environmentSet) ByID(id uint32) *mascot.Environment { return s.byID[id] }
func (s *environmentSet) All() []*mascot.Environment          { return s.all }

func newServeCmd(stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the mascot daemon: tick environments and serve the IPC socket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cmdServe(stdout, stderr); err != nil {
				fmt.Fprintf(stderr, "mascotd serve: %v\n", err) //nolint:errcheck
				return errExit
			}
			return nil
		},
	}
}

func cmdServe(stdout, stderr io.Writer) error {
	setupLogging(stderr)
	log := logrus.WithField("component", "mascotd")

	watcher, err := config.NewWatcher(configFlag)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	defer watcher.Close()
	cfg := watcher.Current()

	store := mascot.NewStore()
	if cfg.PrototypesLocation != "" {
		n, err := loadPrototypes(store, cfg.PrototypesLocation, log)
		if err != nil {
			return fmt.Errorf("load prototypes: %w", err)
		}
		log.WithField("count", n).Info("loaded prototypes")
	}

	scene := render.NewScene()
	host := render.NewEbitenHost(scene)
	host.Resize(mascot.Rect{Width: 1280, Height: 720}, 1280, 720, 1)

	env := mascot.NewEnvironment(host, store, cfg, nil)
	arbiter := mascot.NewArbiter()
	envs := newEnvironmentSet(env)

	srv := ipc.NewServer(envs, store, watcher)
	ln, err := listenSocket(cfg.SocketLocation)
	if err != nil {
		return fmt.Errorf("listen socket: %w", err)
	}
	defer ln.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		if err := srv.Serve(ctx, ln); err != nil {
			log.WithError(err).Warn("ipc server stopped")
		}
	}()

	log.WithField("socket", cfg.SocketLocation).Info("mascotd serving")
	return runTickLoop(ctx, env, host, arbiter)
}

// runTickLoop drives the Environment at mascot.TickInterval until ctx is
// canceled. Drawing the claimed sprites to a window is the embedding
// compositor's job, not this package's: mascotd only keeps Environment and
// Host state current for whatever process reads it next over IPC.
func runTickLoop(ctx context.Context, env *mascot.Environment, host *render.EbitenHost, arbiter *mascot.Arbiter) error {
	ticker := time.NewTicker(mascot.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for _, a := range env.Agents() {
				host.Claim(a)
			}
			env.Tick()
			env.SetPointerSnapshot(arbiter.Current())
		}
	}
}

func loadPrototypes(store *mascot.Store, root string, log *logrus.Entry) (int, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		proto, err := mascot.LoadPackage(dir)
		if err != nil {
			log.WithError(err).WithField("dir", dir).Warn("skipping prototype")
			continue
		}
		if err := store.Add(proto); err != nil {
			log.WithError(err).WithField("dir", dir).Warn("rejecting prototype")
			continue
		}
		count++
	}
	return count, nil
}

func listenSocket(path string) (net.Listener, error) {
	if path == "" {
		path = "/tmp/mascotd.sock"
	}
	_ = os.Remove(path)
	return net.Listen("unix", path)
}

func newValidateCmd(stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <package-dir>",
		Short: "Load a prototype package and report its manifest summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmdValidate(args[0], stdout, stderr) != 0 {
				return errExit
			}
			return nil
		},
	}
}

func cmdValidate(dir string, stdout, stderr io.Writer) int {
	proto, err := mascot.LoadPackage(dir)
	if err != nil {
		fmt.Fprintf(stderr, "mascotd validate: %v\n", err) //nolint:errcheck
		return 1
	}
	spriteCount := 0
	if proto.AtlasData != nil {
		spriteCount = len(proto.AtlasData.Sprites)
	}
	fmt.Fprintf(stdout, "%s (%s): %d actions, %d behaviours, %d sprites, content hash %x\n",
		proto.DisplayName, proto.Name, len(proto.Actions), len(proto.Behaviours),
		spriteCount, proto.ContentHash)
	return 0
}

func newConfigCmd(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the runtime configuration file",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Parse the config file and report errors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.Load(configFlag); err != nil {
				fmt.Fprintf(stderr, "mascotd config validate: %v\n", err) //nolint:errcheck
				return errExit
			}
			fmt.Fprintln(stdout, "ok") //nolint:errcheck
			return nil
		},
	})
	return cmd
}
