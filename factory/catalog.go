/*
Package factory builds the economy catalog from JSON or TOML.

PURPOSE:
  Converts catalog files into the validated runtime objects the engine
  uses: badge definitions, the task list, the level ladder and the lottery
  payout table. Families can tune rewards without code changes.

FILE SCHEMA (JSON):
  {
    "badges":  [{"key": "tasks_10", "title": "Helping Hand", "icon": "🖐️",
                 "metric": "task_count", "requirement": 10}],
    "tasks":   [{"key": "dishes", "title": "Wash dishes",
                 "category": "chores", "points": 5}],
    "levels":  [{"level": 1, "minPoints": 0, "title": "Seedling"}],
    "lottery": [{"tier": 0, "minPoints": 0, "maxPoints": 0, "probability": 30}]
  }

FILE SCHEMA (TOML):
  [[badges]]
  key = "tasks_10"
  metric = "task_count"
  requirement = 10

  [[lottery]]
  tier = 1
  min_points = 1
  max_points = 5
  probability = "40"     # decimal percent, quoted

  A section that is absent or empty keeps the built-in defaults.

USAGE:
  cat, err := factory.LoadFile("catalog.toml")
  engine := badges.NewEngine(store, cat.Badges, calendar, logger)

SEE ALSO:
  - badges/catalog.go: Definition and validation
  - lottery/tiers.go: Tier table and validation
  - levels/levels.go: Threshold ladder
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/warp/points-engine/badges"
	"github.com/warp/points-engine/bank"
	"github.com/warp/points-engine/levels"
	"github.com/warp/points-engine/lottery"
)

// =============================================================================
// FILE SCHEMA
// =============================================================================

// Spec is the serialized form of a catalog.
type Spec struct {
	Badges  []badges.Definition `json:"badges,omitempty" toml:"badges"`
	Tasks   []bank.Task         `json:"tasks,omitempty" toml:"tasks"`
	Levels  []levels.Threshold  `json:"levels,omitempty" toml:"levels"`
	Lottery []lottery.Tier      `json:"lottery,omitempty" toml:"lottery"`
}

// DefaultTasks is the built-in task list.
var DefaultTasks = []bank.Task{
	{Key: "make_bed", Title: "Make the bed", Category: "chores", Points: 2},
	{Key: "dishes", Title: "Wash the dishes", Category: "chores", Points: 5},
	{Key: "tidy_room", Title: "Tidy your room", Category: "chores", Points: 5},
	{Key: "take_out_trash", Title: "Take out the trash", Category: "chores", Points: 3},
	{Key: "homework", Title: "Finish homework", Category: "study", Points: 10},
	{Key: "reading", Title: "Read for 30 minutes", Category: "study", Points: 5},
	{Key: "practice", Title: "Practice an instrument", Category: "study", Points: 8},
	{Key: "exercise", Title: "Exercise outside", Category: "health", Points: 5},
	{Key: "brush_teeth", Title: "Brush teeth twice", Category: "health", Points: 1},
}

// =============================================================================
// CATALOG
// =============================================================================

// Catalog is the validated runtime catalog.
type Catalog struct {
	Badges  *badges.Catalog
	Tasks   *TaskCatalog
	Levels  *levels.Calculator
	Lottery *lottery.Table
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Build(Spec{})
	if err != nil {
		panic(err)
	}
	return c
}

// Build validates spec, filling empty sections with defaults.
func Build(spec Spec) (*Catalog, error) {
	if len(spec.Badges) == 0 {
		spec.Badges = badges.DefaultDefinitions
	}
	if len(spec.Tasks) == 0 {
		spec.Tasks = DefaultTasks
	}
	if len(spec.Levels) == 0 {
		spec.Levels = levels.DefaultTable
	}
	if len(spec.Lottery) == 0 {
		spec.Lottery = lottery.DefaultTiers
	}

	bc, err := badges.NewCatalog(spec.Badges)
	if err != nil {
		return nil, fmt.Errorf("badges: %w", err)
	}
	tc, err := NewTaskCatalog(spec.Tasks)
	if err != nil {
		return nil, fmt.Errorf("tasks: %w", err)
	}
	lc, err := levels.NewCalculator(spec.Levels)
	if err != nil {
		return nil, fmt.Errorf("levels: %w", err)
	}
	lt, err := lottery.NewTable(spec.Lottery)
	if err != nil {
		return nil, fmt.Errorf("lottery: %w", err)
	}
	return &Catalog{Badges: bc, Tasks: tc, Levels: lc, Lottery: lt}, nil
}

// Spec returns the serializable form of c.
func (c *Catalog) Spec() Spec {
	return Spec{
		Badges:  c.Badges.Definitions(),
		Tasks:   c.Tasks.List(),
		Levels:  c.Levels.Table(),
		Lottery: c.Lottery.Tiers(),
	}
}

// =============================================================================
// PARSING
// =============================================================================

// ParseJSON parses and validates a JSON catalog.
func ParseJSON(data []byte) (*Catalog, error) {
	var spec Spec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse catalog JSON: %w", err)
	}
	return Build(spec)
}

// ParseTOML parses and validates a TOML catalog. Unknown keys are rejected.
func ParseTOML(data []byte) (*Catalog, error) {
	var spec Spec
	md, err := toml.Decode(string(data), &spec)
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog TOML: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, bank.Invalidf("unknown catalog keys: %v", undecoded)
	}
	return Build(spec)
}

// LoadFile reads a catalog, choosing the format by extension.
// An empty path returns the defaults.
func LoadFile(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ParseJSON(data)
	case ".toml":
		return ParseTOML(data)
	default:
		return nil, bank.Invalidf("unsupported catalog format %q", filepath.Ext(path))
	}
}

// =============================================================================
// TASKS
// =============================================================================

// TaskCatalog is an ordered, validated task list.
type TaskCatalog struct {
	tasks []bank.Task
	byKey map[string]int
}

// NewTaskCatalog validates tasks: unique keys, a title and positive points.
func NewTaskCatalog(tasks []bank.Task) (*TaskCatalog, error) {
	c := &TaskCatalog{byKey: make(map[string]int, len(tasks))}
	for i, t := range tasks {
		switch {
		case t.Key == "":
			return nil, bank.Invalidf("task %d has no key", i)
		case t.Title == "":
			return nil, bank.Invalidf("task %q has no title", t.Key)
		case t.Points <= 0:
			return nil, bank.Invalidf("task %q points must be positive", t.Key)
		}
		if _, dup := c.byKey[t.Key]; dup {
			return nil, bank.Invalidf("duplicate task key %q", t.Key)
		}
		c.byKey[t.Key] = len(c.tasks)
		c.tasks = append(c.tasks, t)
	}
	return c, nil
}

// List returns the tasks in catalog order.
func (c *TaskCatalog) List() []bank.Task {
	return append([]bank.Task(nil), c.tasks...)
}

// Lookup returns the task for key or ErrTaskNotFound.
func (c *TaskCatalog) Lookup(key string) (bank.Task, error) {
	i, ok := c.byKey[key]
	if !ok {
		return bank.Task{}, fmt.Errorf("%w: %s", bank.ErrTaskNotFound, key)
	}
	return c.tasks[i], nil
}
