// Package config centralizes every tunable of the extraction core. Values
// have built-in defaults, can be overridden from a YAML file, and can be
// changed at runtime; readers always see a consistent copy.
package config

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Rule maps a URL glob pattern to a compressor profile name.
type Rule struct {
	Pattern string `yaml:"pattern" json:"pattern"`
	Script  string `yaml:"script" json:"script"`
}

// Config holds all recognized keys. Timeouts and waits are milliseconds.
type Config struct {
	// walker emission caps
	MaxNodes int `yaml:"max_nodes" json:"max_nodes"`
	MaxDepth int `yaml:"max_depth" json:"max_depth"`

	// navigation / settle budgets
	NavTimeout      int `yaml:"nav_timeout" json:"nav_timeout"`
	ReloadTimeout   int `yaml:"reload_timeout" json:"reload_timeout"`
	LoadWait        int `yaml:"load_wait" json:"load_wait"`
	NetworkIdleWait int `yaml:"network_idle_wait" json:"network_idle_wait"`
	DOMSettleWait   int `yaml:"dom_settle_wait" json:"dom_settle_wait"`

	// interaction budgets
	ClickTimeout          int `yaml:"click_timeout" json:"click_timeout"`
	InputTimeout          int `yaml:"input_timeout" json:"input_timeout"`
	HoverTimeout          int `yaml:"hover_timeout" json:"hover_timeout"`
	ScrollTimeout         int `yaml:"scroll_timeout" json:"scroll_timeout"`
	WaitForElementTimeout int `yaml:"wait_for_element_timeout" json:"wait_for_element_timeout"`
	TypeDelay             int `yaml:"type_delay" json:"type_delay"`
	ScrollPixels          int `yaml:"scroll_pixels" json:"scroll_pixels"`

	// walker heuristics (gray-text / icon-size are reserved: declared and
	// passed through to the walker but not consumed by the current phases)
	GrayTextMinRGB  int `yaml:"gray_text_min_rgb" json:"gray_text_min_rgb"`
	GrayTextMaxDiff int `yaml:"gray_text_max_diff" json:"gray_text_max_diff"`
	IconMaxSize     int `yaml:"icon_max_size" json:"icon_max_size"`

	// walker hint lists
	IconClassPrefixes      []string `yaml:"icon_class_prefixes" json:"icon_class_prefixes"`
	MaterialIconClasses    []string `yaml:"material_icon_classes" json:"material_icon_classes"`
	SemanticKeywords       []string `yaml:"semantic_keywords" json:"semantic_keywords"`
	CarouselCloneSelectors []string `yaml:"carousel_clone_selectors" json:"carousel_clone_selectors"`
	SwitchableStateClasses []string `yaml:"switchable_state_classes" json:"switchable_state_classes"`

	// lite-mode text truncation
	LiteTextMax  int `yaml:"lite_text_max" json:"lite_text_max"`
	LiteTextHead int `yaml:"lite_text_head" json:"lite_text_head"`

	Headless bool `yaml:"headless" json:"headless"`

	BenchmarkTimeout  int `yaml:"benchmark_timeout" json:"benchmark_timeout"`
	BenchmarkIdleWait int `yaml:"benchmark_idle_wait" json:"benchmark_idle_wait"`

	// compressor selection
	CompressorRules     []Rule                    `yaml:"compressor_rules" json:"compressor_rules"`
	DisabledCompressors []string                  `yaml:"disabled_compressors" json:"disabled_compressors"`
	CompressorSettings  map[string]map[string]any `yaml:"compressor_settings" json:"compressor_settings"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		MaxNodes: 20000,
		MaxDepth: 50,

		NavTimeout:      15000,
		ReloadTimeout:   15000,
		LoadWait:        1500,
		NetworkIdleWait: 500,
		DOMSettleWait:   500,

		ClickTimeout:          5000,
		InputTimeout:          5000,
		HoverTimeout:          5000,
		ScrollTimeout:         5000,
		WaitForElementTimeout: 10000,
		TypeDelay:             20,
		ScrollPixels:          500,

		GrayTextMinRGB:  150,
		GrayTextMaxDiff: 20,
		IconMaxSize:     80,

		IconClassPrefixes: []string{
			"fa", "fas", "far", "fab", "fal", "fad",
			"bi", "icon", "anticon", "glyphicon",
			"mdi", "ri", "el-icon", "lucide", "heroicon",
		},
		MaterialIconClasses: []string{
			"material-icons", "material-icons-outlined",
			"material-icons-round", "material-icons-sharp",
			"material-icons-two-tone", "material-symbols-outlined",
			"material-symbols-rounded", "material-symbols-sharp",
		},
		SemanticKeywords: []string{
			"search", "login", "logout", "signin", "signout",
			"signup", "register",
			"cart", "checkout", "payment",
			"subscribe", "unsubscribe",
			"contact", "comment", "reply", "send", "message",
			"share", "repost", "forward",
			"download", "upload", "export", "import",
			"filter", "sort", "reset",
			"close", "cancel", "dismiss",
			"delete", "remove", "trash",
			"edit", "modify", "rename",
			"save", "submit", "confirm", "apply",
			"add", "create", "new",
			"copy", "paste", "duplicate",
			"undo", "redo",
			"prev", "next", "back", "forward",
			"expand", "collapse", "toggle",
			"menu", "sidebar", "drawer", "dropdown",
			"play", "pause", "stop", "mute", "unmute", "volume",
			"fullscreen", "minimize", "maximize",
			"like", "dislike", "favorite", "bookmark", "star",
			"follow", "unfollow",
			"print", "refresh", "reload", "sync",
			"settings", "config", "preferences", "options",
			"help", "info", "warning", "error",
			"notification", "bell", "alert",
			"profile", "avatar", "account", "user",
			"home", "dashboard",
			"calendar", "date", "time",
			"location", "map", "pin",
			"phone", "call", "email", "mail",
			"camera", "photo", "image", "gallery",
			"file", "folder", "document", "attach",
			"link", "unlink", "external",
			"lock", "unlock", "password", "key",
			"eye", "visible", "hidden", "show", "hide",
			"zoom-in", "zoom-out", "magnify",
			"theme", "dark-mode", "light-mode",
			"language", "translate", "globe",
		},
		CarouselCloneSelectors: []string{
			".swiper-slide-duplicate",
			".slick-cloned",
			".owl-item.cloned",
			".flickity-slider > .is-selected ~ .is-duplicate",
		},
		SwitchableStateClasses: []string{
			"active", "current", "show", "showing", "on", "selected", "open",
			"visible", "hide", "hidden", "fade", "in", "out",
			"collapsed", "expanded", "collapsing",
		},

		LiteTextMax:  50,
		LiteTextHead: 30,

		Headless: false,

		BenchmarkTimeout:  30000,
		BenchmarkIdleWait: 8000,

		DisabledCompressors: []string{
			"google_search", "wikipedia", "youtube", "stackoverflow",
		},
		CompressorSettings: map[string]map[string]any{},
	}
}

// Store guards a Config for concurrent readers and runtime updates. The path
// (optional) is where overrides persist.
type Store struct {
	mu   sync.RWMutex
	cfg  Config
	path string
}

// NewStore returns a store initialized to defaults.
func NewStore() *Store {
	return &Store{cfg: Defaults()}
}

// Load reads overrides from a YAML file on top of defaults. A missing file
// is not an error; future Save calls write to the same path.
func Load(path string) (*Store, error) {
	s := &Store{cfg: Defaults(), path: path}
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &s.cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return s, nil
}

// Get returns a copy of the current configuration.
func (s *Store) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Set applies updates given as a map of yaml keys. Unknown keys are ignored;
// values that cannot coerce to the field type fail the whole update.
func (s *Store) Set(updates map[string]any) error {
	data, err := yaml.Marshal(updates)
	if err != nil {
		return fmt.Errorf("encode updates: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.cfg
	if err := yaml.Unmarshal(data, &next); err != nil {
		return fmt.Errorf("apply updates: %w", err)
	}
	s.cfg = next
	return nil
}

// Update mutates the configuration under the lock.
func (s *Store) Update(fn func(*Config)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.cfg)
}

// Reset restores defaults, dropping all overrides.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = Defaults()
}

// Save persists the current configuration to the load path, if any.
func (s *Store) Save() error {
	s.mu.RLock()
	path := s.path
	cfg := s.cfg
	s.mu.RUnlock()
	if path == "" {
		return nil
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
