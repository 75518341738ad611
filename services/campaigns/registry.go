// Package campaigns loads the landing page campaigns and the form schema each one uses.
package campaigns

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"land_leads_app_go/services/leadform"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed campaigns.yaml
var defaultCampaigns []byte

// ErrUnknownCampaign is returned for slugs that are not in the registry
var ErrUnknownCampaign = errors.New("unknown campaign")

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// Campaign is one landing page and the form it collects
type Campaign struct {
	Slug       string
	Title      string
	State      string
	SchemaName string
	Schema     *leadform.Schema
}

type fieldConfig struct {
	Name           string   `yaml:"name"`
	Label          string   `yaml:"label"`
	Type           string   `yaml:"type"`
	Required       bool     `yaml:"required"`
	MinLength      int      `yaml:"min_length"`
	MaxLength      int      `yaml:"max_length"`
	Pattern        string   `yaml:"pattern"`
	PatternMessage string   `yaml:"pattern_message"`
	Values         []string `yaml:"values"`
	Default        string   `yaml:"default"`
}

type campaignConfig struct {
	Slug   string `yaml:"slug"`
	Title  string `yaml:"title"`
	State  string `yaml:"state"`
	Schema string `yaml:"schema"`
}

type fileConfig struct {
	Schemas   map[string][]fieldConfig `yaml:"schemas"`
	Campaigns []campaignConfig         `yaml:"campaigns"`
}

// Parse decodes a campaigns document and builds every schema it declares
func Parse(data []byte) (map[string]*Campaign, error) {
	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse campaigns: %w", err)
	}
	if len(cfg.Campaigns) == 0 {
		return nil, errors.New("parse campaigns: no campaigns defined")
	}

	schemas := make(map[string]*leadform.Schema, len(cfg.Schemas))
	for name, fields := range cfg.Schemas {
		schema, err := buildSchema(fields)
		if err != nil {
			return nil, fmt.Errorf("schema %q: %w", name, err)
		}
		schemas[name] = schema
	}

	out := make(map[string]*Campaign, len(cfg.Campaigns))
	for _, c := range cfg.Campaigns {
		if !slugPattern.MatchString(c.Slug) {
			return nil, fmt.Errorf("campaign %q: slug must be lowercase letters, digits and dashes", c.Slug)
		}
		if _, dup := out[c.Slug]; dup {
			return nil, fmt.Errorf("campaign %q: defined twice", c.Slug)
		}
		schema, ok := schemas[c.Schema]
		if !ok {
			return nil, fmt.Errorf("campaign %q: unknown schema %q", c.Slug, c.Schema)
		}
		title := c.Title
		if title == "" {
			title = c.Slug
		}
		out[c.Slug] = &Campaign{
			Slug:       c.Slug,
			Title:      title,
			State:      strings.ToUpper(c.State),
			SchemaName: c.Schema,
			Schema:     schema,
		}
	}

	return out, nil
}

func buildSchema(fields []fieldConfig) (*leadform.Schema, error) {
	built := make([]leadform.Field, 0, len(fields))
	for _, fc := range fields {
		f := leadform.Field{
			Name:           fc.Name,
			Label:          fc.Label,
			Type:           leadform.FieldType(fc.Type),
			Required:       fc.Required,
			MinLength:      fc.MinLength,
			MaxLength:      fc.MaxLength,
			PatternMessage: fc.PatternMessage,
			AllowedValues:  fc.Values,
			Default:        fc.Default,
		}
		if fc.Pattern != "" {
			re, err := regexp.Compile(fc.Pattern)
			if err != nil {
				return nil, fmt.Errorf("field %q: bad pattern: %w", fc.Name, err)
			}
			f.Pattern = re
		}
		built = append(built, f)
	}
	return leadform.NewSchema(built...)
}

// Registry holds the current campaign set. It is safe for concurrent use;
// Reload swaps the whole set atomically.
type Registry struct {
	path   string
	logger *zap.Logger

	mu        sync.RWMutex
	campaigns map[string]*Campaign
}

// NewRegistry loads campaigns from path, or from the built-in defaults when path is empty
func NewRegistry(path string, logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{path: path, logger: logger}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Path returns the watched file, empty for the built-in defaults
func (r *Registry) Path() string {
	return r.path
}

// Get returns the campaign with the given slug
func (r *Registry) Get(slug string) (*Campaign, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.campaigns[slug]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCampaign, slug)
	}
	return c, nil
}

// List returns all campaigns ordered by slug
func (r *Registry) List() []*Campaign {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Campaign, 0, len(r.campaigns))
	for _, c := range r.campaigns {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b *Campaign) int { return strings.Compare(a.Slug, b.Slug) })
	return out
}

// Reload re-reads the campaign source. On any error the previous set stays active.
func (r *Registry) Reload() error {
	data := defaultCampaigns
	if r.path != "" {
		var err error
		data, err = os.ReadFile(r.path)
		if err != nil {
			return fmt.Errorf("read campaigns file: %w", err)
		}
	}

	parsed, err := Parse(data)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.campaigns = parsed
	r.mu.Unlock()

	r.logger.Info("campaigns loaded", zap.Int("count", len(parsed)), zap.String("source", r.source()))
	return nil
}

func (r *Registry) source() string {
	if r.path == "" {
		return "embedded"
	}
	return r.path
}

const reloadDebounce = 200 * time.Millisecond

// Watch reloads the campaigns file whenever it changes until ctx is done.
// The parent directory is watched so editors that replace the file are picked up.
func (r *Registry) Watch(ctx context.Context) error {
	if r.path == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(r.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(r.path), err)
	}

	target := filepath.Clean(r.path)
	var debounce <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				debounce = time.After(reloadDebounce)
			}

		case <-debounce:
			debounce = nil
			if err := r.Reload(); err != nil {
				r.logger.Warn("campaigns reload failed, keeping previous set", zap.Error(err))
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("campaigns watcher error", zap.Error(err))
		}
	}
}
