// Command gridfleet runs the grid logistics simulation described by a
// JSON config file, ticking the scheduler to completion or timeout and
// optionally serving a live dashboard over HTTP.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	channerics "github.com/niceyeti/channerics/channels"

	"github.com/gridfleet/gridfleet/config"
	"github.com/gridfleet/gridfleet/corridor"
	"github.com/gridfleet/gridfleet/dashboard"
	"github.com/gridfleet/gridfleet/deadlock"
	"github.com/gridfleet/gridfleet/events"
	"github.com/gridfleet/gridfleet/grid"
	"github.com/gridfleet/gridfleet/pathfinder"
	"github.com/gridfleet/gridfleet/penalty"
	"github.com/gridfleet/gridfleet/scheduler"
	"github.com/gridfleet/gridfleet/taskmanager"
)

var (
	configPath string
	dbg        bool
	serve      bool
	addr       string
	logDir     string
)

func init() {
	flag.StringVar(&configPath, "config", "config.json", "path to the simulation config file")
	flag.BoolVar(&dbg, "dbg", false, "enable verbose per-tick logging")
	flag.BoolVar(&serve, "serve", false, "serve a live dashboard while the simulation runs")
	flag.StringVar(&addr, "addr", ":8080", "dashboard listen address, when -serve is set")
	flag.StringVar(&logDir, "logdir", "", "directory to write a per-run, per-agent log file set (disabled if empty)")
	flag.Parse()
}

// openRunLog opens the combined run log under a fresh, uuid-tagged
// subdirectory of dir, giving each run a unique home for a combined log
// plus one file per agent. Returns os.Stdout alone, with no run directory,
// when dir is empty.
func openRunLog(dir string) (io.Writer, string, error) {
	if dir == "" {
		return os.Stdout, "", nil
	}
	runID := uuid.NewString()
	runDir := filepath.Join(dir, "run-"+runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, "", fmt.Errorf("creating log dir %s: %w", runDir, err)
	}
	f, err := os.OpenFile(filepath.Join(runDir, "run.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, "", fmt.Errorf("opening run log: %w", err)
	}
	return io.MultiWriter(os.Stdout, f), runDir, nil
}

// openAgentLogs opens one append-only log file per agent under runDir,
// named after the agent, for subsystems that want a per-agent trace
// separate from the combined run log. Returns nil if runDir is empty.
func openAgentLogs(runDir string, names []string) (map[string]*log.Logger, error) {
	if runDir == "" {
		return nil, nil
	}
	loggers := make(map[string]*log.Logger, len(names))
	for _, name := range names {
		f, err := os.OpenFile(filepath.Join(runDir, name+".log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening agent log for %s: %w", name, err)
		}
		loggers[name] = log.New(f, "", log.LstdFlags)
	}
	return loggers, nil
}

func main() {
	if err := runApp(); err != nil {
		log.Fatal(err)
	}
}

func runApp() error {
	runWriter, runDir, err := openRunLog(logDir)
	if err != nil {
		return err
	}
	logger := log.New(runWriter, "", log.LstdFlags)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	f := config.BuildFleet(cfg)

	if runDir != "" {
		names := make([]string, 0, len(f.AgentIDs()))
		for _, id := range f.AgentIDs() {
			names = append(names, f.Agent(id).Name)
		}
		agentLogs, err := openAgentLogs(runDir, names)
		if err != nil {
			return err
		}
		for _, id := range f.AgentIDs() {
			a := f.Agent(id)
			if al, ok := agentLogs[a.Name]; ok {
				al.Printf("agent %s spawned at %v, home %v", a.Name, a.Pos, a.Home)
			}
		}
	}

	cm := corridor.Build(cfg.Grid, packagePickups(cfg), packageDropoffs(cfg))

	pf := pathfinder.New(cfg.Grid, cm, pathfinder.Tunables{
		TurnPenalty:    cfg.Tunables.TurnPenalty,
		CorridorBonus:  cfg.Tunables.CorridorBonus,
		WaitCost:       cfg.Tunables.WaitCost,
		MaxWaitActions: cfg.Tunables.MaxWaitActions,
		TimeHorizon:    cfg.Tunables.MaxSteps,
	}, corridor.NewRouteCache(256), nil)

	tm := taskmanager.New(cfg.Grid, pf, cfg.Tunables, logger)
	dl := deadlock.New(cfg.Grid, cm, cfg.Tunables.YieldThreshold, cfg.Tunables.DecisionWaitThreshold,
		cfg.Tunables.ForceMoveThreshold, cfg.Tunables.DeadlockThreshold)
	pm := penalty.New(cfg.Tunables.Rows, cfg.Tunables.Cols)
	tm.SetPenaltyMap(pm)

	logSink := events.SinkFunc(func(e events.Event) {
		if dbg {
			logger.Printf("[EVENT] %+v", e)
		}
	})
	recorder := &events.Recorder{}
	broadcaster := events.NewBroadcaster(32, logSink, recorder)
	defer broadcaster.Close()

	sched := scheduler.New(f, cfg.Grid, cm, pf, tm, dl, pm, cfg.Tunables, broadcaster, logger)

	var dashSrv *dashboard.Server
	var snapshots chan dashboard.Snapshot
	if serve {
		snapshots = make(chan dashboard.Snapshot, 8)
		dashSrv = dashboard.NewServer(addr, dashboard.BuildLayout(cfg.Grid, f), snapshots)
		go func() {
			if err := dashSrv.Serve(); err != nil {
				logger.Printf("dashboard server stopped: %v", err)
			}
		}()
		logger.Printf("dashboard listening on %s", addr)
	}

	sleep := time.Duration(cfg.Tunables.Sleep * float64(time.Second))

	done := make(chan struct{})
	defer close(done)
	var pacer <-chan time.Time
	if sleep > 0 {
		pacer = channerics.NewTicker(done, sleep)
	}

	for !sched.Done() {
		if sched.Tick() >= cfg.Tunables.MaxSteps {
			return fmt.Errorf("simulation did not complete within %d ticks", cfg.Tunables.MaxSteps)
		}
		sched.Step()

		if serve {
			select {
			case snapshots <- dashboard.BuildSnapshot(sched.Tick(), f):
			default:
			}
		}
		if pacer != nil {
			<-pacer
		}
	}

	logger.Printf("simulation complete after %d ticks, %d events recorded", sched.Tick(), len(recorder.Events))
	return nil
}

func packagePickups(cfg *config.SimConfig) []grid.Cell {
	out := make([]grid.Cell, 0, len(cfg.Packages))
	for _, p := range cfg.Packages {
		out = append(out, grid.Cell{Row: p.Pickup[0], Col: p.Pickup[1]})
	}
	return out
}

func packageDropoffs(cfg *config.SimConfig) []grid.Cell {
	out := make([]grid.Cell, 0, len(cfg.Packages))
	for _, p := range cfg.Packages {
		out = append(out, grid.Cell{Row: p.Dropoff[0], Col: p.Dropoff[1]})
	}
	return out
}
