// Package config loads and validates the simulation's JSON configuration
// file: grid dimensions, walls, robots, packages, and tunables. It is an
// external collaborator to the core engine, not part of its hard
// engineering, but still carries the same library conventions as the
// rest of the repository.
package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"

	"github.com/gridfleet/gridfleet/fleet"
	"github.com/gridfleet/gridfleet/grid"
)

// Tunables are the decisive-action ladder thresholds and search
// parameters. The original Python settings module did not ship literal
// values alongside the retrieved sources; these defaults preserve the
// documented ordering (Yield < DecisionWait < ForceMove < Deadlock) and
// are overridable from the config file's "settings" block.
type Tunables struct {
	Rows     int
	Cols     int
	Sleep    float64
	MaxWait  int
	MaxSteps int

	YieldThreshold         int
	DecisionWaitThreshold  int
	ForceMoveThreshold     int
	DeadlockThreshold      int
	ReassignThreshold      int
	OrphanCheckInterval    int
	IdleRecheckInterval    int
	MaxWaitActions         int
	TurnPenalty            float64
	CorridorBonus          float64
	WaitCost               float64
	EvacuatingTimeout      int
	YieldingTimeout        int
	OscillationWindow      int
	OscillationUniqueCells int
}

// DefaultTunables returns the documented thresholds used when the config
// file's "settings" block omits them.
func DefaultTunables() Tunables {
	return Tunables{
		Rows: 10, Cols: 10, Sleep: 0.1, MaxWait: 30, MaxSteps: 2000,
		YieldThreshold: 3, DecisionWaitThreshold: 6, ForceMoveThreshold: 10, DeadlockThreshold: 15,
		ReassignThreshold: 8, OrphanCheckInterval: 10, IdleRecheckInterval: 5,
		MaxWaitActions: 3, TurnPenalty: 1.0, CorridorBonus: 0.85, WaitCost: 1.2,
		EvacuatingTimeout: 15, YieldingTimeout: 10,
		OscillationWindow: 5, OscillationUniqueCells: 3,
	}
}

// RobotSpec is a single robot entry from the config file.
type RobotSpec struct {
	ID   *int   `mapstructure:"id"`
	Name string `mapstructure:"name"`
	Pos  [2]int `mapstructure:"pos"`
}

// PackageSpec is a single package entry from the config file.
type PackageSpec struct {
	Name    string `mapstructure:"name"`
	Pickup  [2]int `mapstructure:"pickup"`
	Dropoff [2]int `mapstructure:"dropoff"`
}

// SettingsOverride captures the optional overrides block.
type SettingsOverride struct {
	Rows     *int     `mapstructure:"rows"`
	Cols     *int     `mapstructure:"cols"`
	Sleep    *float64 `mapstructure:"sleep"`
	MaxWait  *int     `mapstructure:"max_wait"`
	MaxSteps *int     `mapstructure:"max_steps"`
}

// RawConfig is the shape of the JSON file before normalization.
type RawConfig struct {
	Settings SettingsOverride `mapstructure:"settings"`
	Walls    [][4]int         `mapstructure:"walls"`
	Robots   []RobotSpec      `mapstructure:"robots"`
	Packages []PackageSpec    `mapstructure:"packages"`
}

// SimConfig is the fully loaded, validated simulation setup.
type SimConfig struct {
	Tunables  Tunables
	Grid      *grid.Grid
	Robots    []RobotSpec
	Packages  []PackageSpec
}

// ValidationError aggregates every configuration problem found, so the
// caller can report all of them before aborting, rather than one at a
// time.
type ValidationError struct {
	Errors []error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%d configuration error(s): %s", len(e.Errors), errors.Join(e.Errors...))
}

func (e *ValidationError) Unwrap() []error { return e.Errors }

// Load reads and validates the JSON config file at path.
func Load(path string) (*SimConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var raw RawConfig
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	tunables := DefaultTunables()
	applyOverrides(&tunables, raw.Settings)

	obstacles := make(map[grid.Cell]struct{})
	var wallErrs []error
	for i, w := range raw.Walls {
		cells, err := grid.WallRect(w[0], w[1], w[2], w[3])
		if err != nil {
			wallErrs = append(wallErrs, fmt.Errorf("wall[%d]: %w", i, err))
			continue
		}
		for c := range cells {
			obstacles[c] = struct{}{}
		}
	}

	g := grid.New(tunables.Rows, tunables.Cols, obstacles)

	cfg := &SimConfig{Tunables: tunables, Grid: g, Robots: raw.Robots, Packages: raw.Packages}

	if errs := validate(cfg, wallErrs); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}
	return cfg, nil
}

func applyOverrides(t *Tunables, s SettingsOverride) {
	if s.Rows != nil {
		t.Rows = *s.Rows
	}
	if s.Cols != nil {
		t.Cols = *s.Cols
	}
	if s.Sleep != nil {
		t.Sleep = *s.Sleep
	}
	if s.MaxWait != nil {
		t.MaxWait = *s.MaxWait
	}
	if s.MaxSteps != nil {
		t.MaxSteps = *s.MaxSteps
	}
}

func validate(cfg *SimConfig, wallErrs []error) []error {
	var errs []error
	errs = append(errs, wallErrs...)

	for i, r := range cfg.Robots {
		pos := grid.Cell{Row: r.Pos[0], Col: r.Pos[1]}
		if !cfg.Grid.InBounds(pos) {
			errs = append(errs, fmt.Errorf("robot[%d]: position %v out of bounds", i, pos))
			continue
		}
		if cfg.Grid.IsObstacle(pos) {
			errs = append(errs, fmt.Errorf("robot[%d]: position %v is an obstacle", i, pos))
		}
	}

	for i, p := range cfg.Packages {
		pickup := grid.Cell{Row: p.Pickup[0], Col: p.Pickup[1]}
		dropoff := grid.Cell{Row: p.Dropoff[0], Col: p.Dropoff[1]}
		if !cfg.Grid.InBounds(pickup) || cfg.Grid.IsObstacle(pickup) {
			errs = append(errs, fmt.Errorf("package[%d]: pickup %v invalid", i, pickup))
		}
		if !cfg.Grid.InBounds(dropoff) || cfg.Grid.IsObstacle(dropoff) {
			errs = append(errs, fmt.Errorf("package[%d]: dropoff %v invalid", i, dropoff))
		}
	}

	return errs
}

// BuildFleet materializes a fleet.Fleet from the validated spec entries,
// defaulting robot ids to their 1-based list position and names to
// "R<id>", and package ids to their 1-based list position.
func BuildFleet(cfg *SimConfig) *fleet.Fleet {
	f := fleet.New()
	for i, r := range cfg.Robots {
		id := i + 1
		if r.ID != nil {
			id = *r.ID
		}
		name := r.Name
		if name == "" {
			name = fmt.Sprintf("R%d", id)
		}
		pos := grid.Cell{Row: r.Pos[0], Col: r.Pos[1]}
		f.AddAgent(&fleet.Agent{
			ID:   fleet.AgentID(id),
			Name: name,
			Home: pos,
			Pos:  pos,
			State: fleet.IDLE,
		})
	}
	for i, p := range cfg.Packages {
		id := i + 1
		name := p.Name
		if name == "" {
			name = fmt.Sprintf("P%d", id)
		}
		f.AddPackage(&fleet.Package{
			ID:      fleet.PackageID(id),
			Name:    name,
			Pickup:  grid.Cell{Row: p.Pickup[0], Col: p.Pickup[1]},
			Dropoff: grid.Cell{Row: p.Dropoff[0], Col: p.Dropoff[1]},
			Status:  fleet.Waiting,
		})
	}
	return f
}
