package dom

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/CodingLucasLi/Clawome/internal/config"
)

//go:embed walker.js
var walkerScript string

// Evaluator runs a script inside the active page and returns its
// JSON-serializable result. playwright.Page satisfies it.
type Evaluator interface {
	Evaluate(expression string, options ...any) (any, error)
}

// ClickInterceptorScript is installed on the browser context before any page
// script runs. It records every element that receives a click-like listener
// in window.__bClickEls, which the walker consults for action detection.
// Framework-agnostic: works with jQuery, React, Vue and vanilla handlers.
const ClickInterceptorScript = `
(() => {
    const CLICK_TYPES = new Set([
        'click', 'mousedown', 'mouseup', 'pointerdown', 'pointerup',
        'tap', 'touchstart'
    ]);
    const clickEls = new Set();
    window.__bClickEls = clickEls;
    const origAdd = EventTarget.prototype.addEventListener;
    EventTarget.prototype.addEventListener = function(type, listener, options) {
        if (CLICK_TYPES.has(type) && this && this.nodeType === 1) {
            clickEls.add(this);
        }
        return origAdd.call(this, type, listener, options);
    };
})();
`

var (
	skipTags = []string{
		"script", "style", "meta", "link", "noscript",
		"head", "br", "hr", "iframe", "object", "embed",
		"template", "slot", "col",
	}
	inlineTags = []string{
		"a", "span", "strong", "em", "b", "i", "u", "s",
		"code", "kbd", "mark", "small", "sub", "sup",
		"abbr", "cite", "time", "label",
	}
	attrRules = map[string][]string{
		"a":        {"href"},
		"img":      {"src", "alt"},
		"input":    {"type", "name", "placeholder", "value"},
		"textarea": {"name", "placeholder"},
		"select":   {"name"},
		"option":   {"value"},
		"button":   {"type"},
		"form":     {"action", "method"},
		"video":    {"src"},
		"audio":    {"src"},
		"source":   {"src", "type"},
		"th":       {"colspan", "rowspan"},
		"td":       {"colspan", "rowspan"},
	}
	globalAttrs = []string{"id", "role", "aria-label", "title"}
	stateAttrs  = []string{
		"disabled", "checked", "readonly", "required",
		"aria-expanded", "aria-selected", "aria-checked",
		"aria-pressed", "aria-current",
		"aria-valuenow", "aria-valuemin", "aria-valuemax",
	}
	typeableInputTypes  = []string{"text", "search", "email", "password", "url", "tel", "number", ""}
	clickableInputTypes = []string{"submit", "button", "reset", "image"}
)

// walkerConfig is the argument object handed to walker.js.
type walkerConfig struct {
	SkipTags            []string            `json:"skipTags"`
	InlineTags          []string            `json:"inlineTags"`
	AttrRules           map[string][]string `json:"attrRules"`
	GlobalAttrs         []string            `json:"globalAttrs"`
	StateAttrs          []string            `json:"stateAttrs"`
	MaxDepth            int                 `json:"maxDepth"`
	MaxNodes            int                 `json:"maxNodes"`
	IconPrefixes        string              `json:"iconPrefixes"`
	MaterialClasses     string              `json:"materialClasses"`
	SemanticKeywords    []string            `json:"semanticKeywords"`
	CloneSelectors      string              `json:"cloneSelectors"`
	StateClasses        []string            `json:"stateClasses"`
	TypeableInputTypes  []string            `json:"typeableInputTypes"`
	ClickableInputTypes []string            `json:"clickableInputTypes"`
	GrayTextMinRGB      int                 `json:"grayTextMinRgb"`
	GrayTextMaxDiff     int                 `json:"grayTextMaxDiff"`
	IconMaxSize         int                 `json:"iconMaxSize"`
}

func buildWalkerConfig(cfg config.Config) walkerConfig {
	material := make([]string, 0, len(cfg.MaterialIconClasses))
	for _, c := range cfg.MaterialIconClasses {
		material = append(material, strings.ReplaceAll(c, "-", "[_-]"))
	}
	return walkerConfig{
		SkipTags:            skipTags,
		InlineTags:          inlineTags,
		AttrRules:           attrRules,
		GlobalAttrs:         globalAttrs,
		StateAttrs:          stateAttrs,
		MaxDepth:            cfg.MaxDepth,
		MaxNodes:            cfg.MaxNodes,
		IconPrefixes:        strings.Join(cfg.IconClassPrefixes, "|"),
		MaterialClasses:     strings.Join(material, "|"),
		SemanticKeywords:    cfg.SemanticKeywords,
		CloneSelectors:      strings.Join(cfg.CarouselCloneSelectors, ", "),
		StateClasses:        cfg.SwitchableStateClasses,
		TypeableInputTypes:  typeableInputTypes,
		ClickableInputTypes: clickableInputTypes,
		GrayTextMinRGB:      cfg.GrayTextMinRGB,
		GrayTextMaxDiff:     cfg.GrayTextMaxDiff,
		IconMaxSize:         cfg.IconMaxSize,
	}
}

// Walk runs the in-page walker against the active page and returns the raw
// flat node list in document pre-order.
func Walk(page Evaluator, cfg config.Config) ([]Node, error) {
	val, err := page.Evaluate(walkerScript, buildWalkerConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("walk dom: %w", err)
	}
	data, err := json.Marshal(val)
	if err != nil {
		return nil, fmt.Errorf("encode walker result: %w", err)
	}
	var nodes []Node
	if err := json.Unmarshal(data, &nodes); err != nil {
		return nil, fmt.Errorf("decode walker result: %w", err)
	}
	return nodes, nil
}
