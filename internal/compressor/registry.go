package compressor

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/CodingLucasLi/Clawome/internal/config"
	"github.com/CodingLucasLi/Clawome/internal/dom"
)

// ValidationError rejects a profile write or delete: bad syntax, reserved
// name, or missing file.
type ValidationError struct {
	Name   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("profile %q: %s", e.Name, e.Reason)
}

var validProfileName = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Registry selects and runs compressor profiles. Built-ins are compiled in;
// user profiles are YAML files in dir, loaded lazily and cached by mtime so
// an on-disk edit is picked up transparently.
type Registry struct {
	dir   string
	store *config.Store
	log   zerolog.Logger

	mu    sync.Mutex
	cache map[string]cacheEntry
	globs map[string]glob.Glob
}

type cacheEntry struct {
	mtime   time.Time
	profile *Profile
}

// NewRegistry returns a registry reading user profiles from dir (may be
// empty for builtins-only operation).
func NewRegistry(dir string, store *config.Store, logger zerolog.Logger) *Registry {
	return &Registry{
		dir:   dir,
		store: store,
		log:   logger,
		cache: map[string]cacheEntry{},
		globs: map[string]glob.Glob{},
	}
}

// Get loads a profile by name, builtin or user-defined.
func (r *Registry) Get(name string) (*Profile, error) {
	if p, ok := builtinProfiles[name]; ok {
		return p, nil
	}
	return r.loadUser(name)
}

func (r *Registry) loadUser(name string) (*Profile, error) {
	if r.dir == "" {
		return nil, &ValidationError{Name: name, Reason: "not found"}
	}
	path := r.userPath(name)
	info, err := os.Stat(path)
	if err != nil {
		r.mu.Lock()
		delete(r.cache, name)
		r.mu.Unlock()
		return nil, fmt.Errorf("stat profile %q: %w", name, err)
	}

	r.mu.Lock()
	if entry, ok := r.cache[name]; ok && entry.mtime.Equal(info.ModTime()) {
		r.mu.Unlock()
		return entry.profile, nil
	}
	r.mu.Unlock()

	data, err := os.ReadFile(path) //nolint:gosec // path is derived from a validated name
	if err != nil {
		return nil, fmt.Errorf("read profile %q: %w", name, err)
	}
	p, err := parseProfile(name, data)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[name] = cacheEntry{mtime: info.ModTime(), profile: p}
	r.mu.Unlock()
	r.log.Debug().Str("profile", name).Msg("loaded user profile")
	return p, nil
}

func (r *Registry) userPath(name string) string {
	return filepath.Join(r.dir, name+".yaml")
}

func parseProfile(name string, data []byte) (*Profile, error) {
	var p Profile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, &ValidationError{Name: name, Reason: err.Error()}
	}
	p.Name = name
	p.Builtin = false
	return &p, nil
}

func (r *Registry) userNames() []string {
	if r.dir == "" {
		return nil
	}
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := filepath.Ext(name)
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		base := strings.TrimSuffix(name, ext)
		if base == "" || strings.HasPrefix(base, "_") {
			continue
		}
		names = append(names, base)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) isDisabled(name string) bool {
	for _, d := range r.store.Get().DisabledCompressors {
		if d == name {
			return true
		}
	}
	return false
}

func (r *Registry) matchGlob(pattern, url string) bool {
	if pattern == "" {
		return false
	}
	r.mu.Lock()
	g, ok := r.globs[pattern]
	r.mu.Unlock()
	if !ok {
		var err error
		g, err = glob.Compile(pattern)
		if err != nil {
			r.log.Warn().Str("pattern", pattern).Err(err).Msg("bad url pattern")
			return false
		}
		r.mu.Lock()
		r.globs[pattern] = g
		r.mu.Unlock()
	}
	return g.Match(url)
}

// Match returns the profile name for the URL. User rules from configuration
// win (first match); then profile-declared url_patterns (disabled profiles
// skipped); fallback "default".
func (r *Registry) Match(url string) string {
	cfg := r.store.Get()
	for _, rule := range cfg.CompressorRules {
		if rule.Pattern == "" || rule.Script == "" {
			continue
		}
		if r.matchGlob(rule.Pattern, url) {
			return rule.Script
		}
	}

	for _, name := range r.candidateNames() {
		if name == "default" || r.isDisabled(name) {
			continue
		}
		p, err := r.Get(name)
		if err != nil {
			continue
		}
		for _, pattern := range p.URLPatterns {
			if r.matchGlob(pattern, url) {
				return name
			}
		}
	}
	return "default"
}

func (r *Registry) candidateNames() []string {
	seen := map[string]bool{}
	var names []string
	for name := range builtinProfiles {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for _, name := range r.userNames() {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// ResolveSettings merges the profile's setting defaults with per-profile
// overrides from configuration.
func (r *Registry) ResolveSettings(name string) map[string]any {
	settings := map[string]any{}
	if p, err := r.Get(name); err == nil {
		settings = p.DefaultSettings()
	}
	for k, v := range r.store.Get().CompressorSettings[name] {
		settings[k] = v
	}
	return settings
}

// Run selects a profile by URL and filters the nodes with it. A profile
// that fails is the only silently recovered error: the registry logs a
// warning and falls back to the default pipeline. Returns the filtered
// nodes and the name of the profile that produced them.
func (r *Registry) Run(url string, nodes []dom.Node) ([]dom.Node, string) {
	name := r.Match(url)
	p, err := r.Get(name)
	if err != nil {
		r.log.Warn().Str("profile", name).Err(err).Msg("profile load failed, using default")
		name = "default"
		p = builtinProfiles["default"]
	}
	filtered, err := r.runSafe(p, nodes, r.ResolveSettings(name))
	if err != nil {
		r.log.Warn().Str("profile", name).Err(err).Msg("profile failed, falling back to default")
		name = "default"
		filtered, _ = r.runSafe(builtinProfiles["default"], nodes, r.ResolveSettings("default"))
	}
	return filtered, name
}

func (r *Registry) runSafe(p *Profile, nodes []dom.Node, settings map[string]any) (out []dom.Node, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("profile %q: %v", p.Name, rec)
		}
	}()
	return p.Process(nodes, settings), nil
}

// Info describes one profile for listing.
type Info struct {
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	Version        string         `json:"version"`
	Builtin        bool           `json:"builtin"`
	Official       bool           `json:"official"`
	Enabled        bool           `json:"enabled"`
	URLPatterns    []string       `json:"url_patterns"`
	Settings       []SettingSpec  `json:"settings"`
	SettingsValues map[string]any `json:"settings_values"`
	Source         string         `json:"source,omitempty"`
}

// List returns metadata for every known profile, builtin and user-defined
// together, sorted by name.
func (r *Registry) List() []Info {
	var infos []Info
	for _, name := range r.candidateNames() {
		p, err := r.Get(name)
		if err != nil {
			continue
		}
		info := Info{
			Name:           name,
			Description:    p.Description,
			Version:        p.Version,
			Builtin:        p.Builtin,
			Official:       officialNames[name],
			Enabled:        !r.isDisabled(name),
			URLPatterns:    p.URLPatterns,
			Settings:       p.Settings,
			SettingsValues: r.ResolveSettings(name),
		}
		if !p.Builtin {
			if src, err := r.ReadSource(name); err == nil {
				info.Source = src
			}
		}
		infos = append(infos, info)
	}
	return infos
}

// ReadSource returns the YAML source of a profile; builtins are rendered
// from their compiled form.
func (r *Registry) ReadSource(name string) (string, error) {
	if p, ok := builtinProfiles[name]; ok {
		data, err := yaml.Marshal(p)
		if err != nil {
			return "", fmt.Errorf("encode profile %q: %w", name, err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(r.userPath(name)) //nolint:gosec // path is derived from a validated name
	if err != nil {
		return "", fmt.Errorf("read profile %q: %w", name, err)
	}
	return string(data), nil
}

// Write creates or updates a user profile after validating its name and
// syntax. Built-in names are reserved.
func (r *Registry) Write(name string, data []byte) error {
	if name == "default" {
		return &ValidationError{Name: name, Reason: "cannot overwrite the default profile"}
	}
	if officialNames[name] {
		return &ValidationError{Name: name, Reason: "cannot overwrite an official profile"}
	}
	if !validProfileName.MatchString(name) {
		return &ValidationError{Name: name, Reason: "invalid name"}
	}
	if _, err := parseProfile(name, data); err != nil {
		return err
	}
	if err := os.MkdirAll(r.dir, 0o750); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}
	if err := os.WriteFile(r.userPath(name), data, 0o600); err != nil {
		return fmt.Errorf("write profile %q: %w", name, err)
	}
	r.mu.Lock()
	delete(r.cache, name)
	r.mu.Unlock()
	r.log.Info().Str("profile", name).Msg("profile written")
	return nil
}

// Delete removes a user profile. Built-in names are reserved.
func (r *Registry) Delete(name string) error {
	if name == "default" {
		return &ValidationError{Name: name, Reason: "cannot delete the default profile"}
	}
	if officialNames[name] {
		return &ValidationError{Name: name, Reason: "cannot delete an official profile"}
	}
	if err := os.Remove(r.userPath(name)); err != nil {
		if os.IsNotExist(err) {
			return &ValidationError{Name: name, Reason: "not found"}
		}
		return fmt.Errorf("delete profile %q: %w", name, err)
	}
	r.mu.Lock()
	delete(r.cache, name)
	r.mu.Unlock()
	r.log.Info().Str("profile", name).Msg("profile deleted")
	return nil
}
