package compressor

import (
	"strings"

	"github.com/CodingLucasLi/Clawome/internal/dom"
)

// SettingSpec describes one tunable a profile exposes to its users.
type SettingSpec struct {
	Key     string `yaml:"key" json:"key"`
	Label   string `yaml:"label" json:"label"`
	Type    string `yaml:"type" json:"type"`
	Default any    `yaml:"default" json:"default"`
	Desc    string `yaml:"desc" json:"desc"`
}

// NoiseRule drops nodes by tag, tag substring, exact text, or attribute
// substring. When names a boolean setting gating the rule; an empty When
// applies unconditionally. AttrExcludes vetoes an attribute match when any
// of its substrings is also present.
type NoiseRule struct {
	When         string   `yaml:"when,omitempty" json:"when,omitempty"`
	Tags         []string `yaml:"tags,omitempty" json:"tags,omitempty"`
	TagContains  []string `yaml:"tag_contains,omitempty" json:"tag_contains,omitempty"`
	Texts        []string `yaml:"texts,omitempty" json:"texts,omitempty"`
	AttrContains []string `yaml:"attr_contains,omitempty" json:"attr_contains,omitempty"`
	AttrExcludes []string `yaml:"attr_excludes,omitempty" json:"attr_excludes,omitempty"`
}

// Profile is a data-driven compressor: a noise pre-filter plus tuned
// thresholds for the shared 6-stage pipeline. Profiles replace loadable
// scripts; the pipeline stages themselves are fixed.
type Profile struct {
	Name        string        `yaml:"name" json:"name"`
	Description string        `yaml:"description" json:"description"`
	Version     string        `yaml:"version,omitempty" json:"version,omitempty"`
	URLPatterns []string      `yaml:"url_patterns,omitempty" json:"url_patterns,omitempty"`
	Settings    []SettingSpec `yaml:"settings,omitempty" json:"settings,omitempty"`
	Noise       []NoiseRule   `yaml:"noise,omitempty" json:"noise,omitempty"`

	// heading-section skipping (linear scan by depth)
	SkipSections     []string `yaml:"skip_sections,omitempty" json:"skip_sections,omitempty"`
	SkipSectionsWhen string   `yaml:"skip_sections_when,omitempty" json:"skip_sections_when,omitempty"`
	SectionTags      []string `yaml:"section_tags,omitempty" json:"section_tags,omitempty"`

	Builtin bool `yaml:"-" json:"builtin"`
}

// DefaultSettings returns the profile's setting defaults.
func (p *Profile) DefaultSettings() map[string]any {
	out := make(map[string]any, len(p.Settings))
	for _, s := range p.Settings {
		out[s.Key] = s.Default
	}
	return out
}

func intSetting(settings map[string]any, key string, fallback int) int {
	switch v := settings[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return fallback
}

func boolSetting(settings map[string]any, key string, fallback bool) bool {
	if v, ok := settings[key].(bool); ok {
		return v
	}
	return fallback
}

func (r *NoiseRule) matches(n *dom.Node) bool {
	for _, t := range r.Tags {
		if n.Tag == t {
			return true
		}
	}
	for _, sub := range r.TagContains {
		if strings.Contains(n.Tag, sub) {
			return true
		}
	}
	if len(r.Texts) > 0 {
		text := strings.TrimSpace(n.Text)
		for _, t := range r.Texts {
			if text == t {
				return true
			}
		}
	}
	if len(r.AttrContains) > 0 {
		attrs := strings.ToLower(n.Attrs)
		for _, sub := range r.AttrContains {
			if strings.Contains(attrs, strings.ToLower(sub)) {
				excluded := false
				for _, ex := range r.AttrExcludes {
					if strings.Contains(attrs, strings.ToLower(ex)) {
						excluded = true
						break
					}
				}
				if !excluded {
					return true
				}
			}
		}
	}
	return false
}

func (p *Profile) isNoise(n *dom.Node, settings map[string]any) bool {
	for i := range p.Noise {
		rule := &p.Noise[i]
		if rule.When != "" && !boolSetting(settings, rule.When, true) {
			continue
		}
		if rule.matches(n) {
			return true
		}
	}
	return false
}

// skipSectionHeading reports whether the node is a heading opening a section
// that should be dropped wholesale.
func (p *Profile) skipSectionHeading(n *dom.Node) bool {
	title := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(n.Text), "[edit]"))
	for _, s := range p.SkipSections {
		if title == s {
			return true
		}
	}
	return false
}

func (p *Profile) isSectionTag(tag string) bool {
	for _, t := range p.SectionTags {
		if tag == t {
			return true
		}
	}
	return false
}

// dropSections removes every node inside a skipped heading's section,
// exiting when a same- or higher-level heading appears.
func (p *Profile) dropSections(nodes []dom.Node) []dom.Node {
	result := make([]dom.Node, 0, len(nodes))
	skipDepth := -1
	for i := range nodes {
		n := &nodes[i]
		if p.isSectionTag(n.Tag) && p.skipSectionHeading(n) {
			skipDepth = n.Depth
			continue
		}
		if skipDepth >= 0 {
			if p.isSectionTag(n.Tag) && n.Depth <= skipDepth {
				skipDepth = -1
			} else {
				continue
			}
		}
		result = append(result, *n)
	}
	return result
}

// Process filters noise per the profile's rules, optionally drops skipped
// sections, then delegates to the shared pipeline with the profile's
// thresholds.
func (p *Profile) Process(nodes []dom.Node, settings map[string]any) []dom.Node {
	if settings == nil {
		settings = p.DefaultSettings()
	}
	filtered := nodes
	if len(p.Noise) > 0 {
		filtered = make([]dom.Node, 0, len(nodes))
		for i := range nodes {
			if !p.isNoise(&nodes[i], settings) {
				filtered = append(filtered, nodes[i])
			}
		}
	}
	if len(p.SkipSections) > 0 &&
		(p.SkipSectionsWhen == "" || boolSetting(settings, p.SkipSectionsWhen, true)) {
		filtered = p.dropSections(filtered)
	}
	return runPipeline(filtered,
		intSetting(settings, "max_items", defaultMaxItems),
		intSetting(settings, "show_head", defaultShowHead))
}
