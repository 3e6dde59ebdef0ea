package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sandeepkv93/dailyd/internal/model"
)

var ErrInvalidCatalog = errors.New("config: invalid task catalog")

// CatalogEntry is one task in tasks.yaml.
type CatalogEntry struct {
	ID             string `yaml:"id" json:"id"`
	Title          string `yaml:"title" json:"title"`
	Description    string `yaml:"description,omitempty" json:"description,omitempty"`
	SubtractedDays int    `yaml:"subtracted_days" json:"subtracted_days"`
	Completion     string `yaml:"completion,omitempty" json:"completion"`
	OncePerDay     bool   `yaml:"once_per_day,omitempty" json:"once_per_day"`
}

type catalogFile struct {
	Tasks []CatalogEntry `yaml:"tasks"`
}

// Catalog is the ordered set of tasks a user can start.
type Catalog struct {
	tasks []model.TaskDefinition
	byID  map[string]int
}

func NewCatalog(defs []model.TaskDefinition) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]int, len(defs))}
	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
		}
		if _, dup := c.byID[def.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate task id %q", ErrInvalidCatalog, def.ID)
		}
		c.byID[def.ID] = len(c.tasks)
		c.tasks = append(c.tasks, def)
	}
	return c, nil
}

func (c *Catalog) Lookup(id string) (model.TaskDefinition, bool) {
	i, ok := c.byID[id]
	if !ok {
		return model.TaskDefinition{}, false
	}
	return c.tasks[i], true
}

func (c *Catalog) Tasks() []model.TaskDefinition {
	out := make([]model.TaskDefinition, len(c.tasks))
	copy(out, c.tasks)
	return out
}

func (c *Catalog) Len() int { return len(c.tasks) }

// LoadCatalog reads path, or returns DefaultCatalog when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(bytes.NewReader(data))
}

// ParseCatalog decodes a catalog document, rejecting unknown fields.
func ParseCatalog(r io.Reader) (*Catalog, error) {
	var file catalogFile
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if len(file.Tasks) == 0 {
		return nil, fmt.Errorf("%w: no tasks", ErrInvalidCatalog)
	}

	defs := make([]model.TaskDefinition, 0, len(file.Tasks))
	for _, entry := range file.Tasks {
		def, err := entry.Definition()
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return NewCatalog(defs)
}

func (e CatalogEntry) Definition() (model.TaskDefinition, error) {
	completion, err := model.ParseCompletion(e.Completion)
	if err != nil {
		return model.TaskDefinition{}, fmt.Errorf("%w: task %q: %v", ErrInvalidCatalog, e.ID, err)
	}
	return model.TaskDefinition{
		ID:             e.ID,
		Title:          e.Title,
		Description:    e.Description,
		SubtractedDays: e.SubtractedDays,
		Completion:     completion,
		OncePerDay:     e.OncePerDay,
	}, nil
}

// MarshalCatalog renders c back to the tasks.yaml format.
func MarshalCatalog(c *Catalog) ([]byte, error) {
	file := catalogFile{Tasks: make([]CatalogEntry, 0, c.Len())}
	for _, def := range c.tasks {
		file.Tasks = append(file.Tasks, EntryFor(def))
	}
	return yaml.Marshal(file)
}

func EntryFor(def model.TaskDefinition) CatalogEntry {
	return CatalogEntry{
		ID:             def.ID,
		Title:          def.Title,
		Description:    def.Description,
		SubtractedDays: def.SubtractedDays,
		Completion:     def.Completion.String(),
		OncePerDay:     def.OncePerDay,
	}
}

const defaultCatalogYAML = `tasks:
  - id: water
    title: Drink a glass of water
    description: |
      Quick win. Completes **immediately** and then stays done until the
      next daily reset.
    subtracted_days: 0
    completion: immediate
  - id: read
    title: Read for fifteen minutes
    description: |
      Start the timer, read, and the task completes after *15 minutes*.
      Once per day.
    subtracted_days: 1
    completion: 15m
    once_per_day: true
  - id: walk
    title: Go for a walk
    description: |
      Completes after 15 minutes. Can be repeated during the day.
    subtracted_days: 2
    completion: 15m
  - id: journal
    title: Write the journal
    description: |
      Counts at the **daily reset**, so it can be started late in the
      evening and still lands on the right day.
    subtracted_days: 1
    completion: reset
`

// DefaultCatalog is used when no catalog file is configured.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(bytes.NewReader([]byte(defaultCatalogYAML)))
	if err != nil {
		panic(err)
	}
	return c
}
