package compressor

// Built-in profiles. They cannot be overwritten or deleted; site-specific
// ones ship disabled by default and are enabled through configuration.

const builtinVersion = "2025.01.15.1"

var builtinProfiles = map[string]*Profile{
	"default": {
		Name:        "default",
		Description: "General-purpose node filtering and simplification",
		Version:     builtinVersion,
		Builtin:     true,
		Settings: []SettingSpec{
			{Key: "max_items", Label: "Max List Items", Type: "number", Default: 50, Desc: "Maximum items before truncation"},
			{Key: "show_head", Label: "Show Head", Type: "number", Default: 10, Desc: "Items to keep when truncating"},
		},
	},
	"google_search": {
		Name:        "google_search",
		Description: "Google Search — extract search results, knowledge panels, and navigation",
		Version:     builtinVersion,
		Builtin:     true,
		URLPatterns: []string{"*google.com/search*", "*google.*/search*"},
		Settings: []SettingSpec{
			{Key: "max_items", Label: "Max List Items", Type: "number", Default: 30, Desc: "Maximum items before truncation"},
			{Key: "show_head", Label: "Show Head", Type: "number", Default: 10, Desc: "Items to keep when truncating"},
			{Key: "remove_footer", Label: "Remove Footer", Type: "boolean", Default: true, Desc: "Strip footer navigation and links"},
		},
		Noise: []NoiseRule{
			{Tags: []string{"footer", "style", "script", "noscript", "svg", "path"}},
			{Texts: []string{"Sign in", "Settings", "Privacy", "Terms", "Advertising", "Business", "About", "How Search works"}},
			{When: "remove_footer", AttrContains: []string{`role="contentinfo"`}},
		},
	},
	"wikipedia": {
		Name:        "wikipedia",
		Description: "Wikipedia — focus on article content, table of contents, and infoboxes",
		Version:     builtinVersion,
		Builtin:     true,
		URLPatterns: []string{"*wikipedia.org/wiki/*", "*wikipedia.org/w/*"},
		Settings: []SettingSpec{
			{Key: "max_items", Label: "Max List Items", Type: "number", Default: 40, Desc: "Maximum items before truncation"},
			{Key: "show_head", Label: "Show Head", Type: "number", Default: 15, Desc: "Items to keep when truncating"},
			{Key: "skip_references", Label: "Skip References", Type: "boolean", Default: true, Desc: "Remove References/External links sections"},
			{Key: "remove_edit_links", Label: "Remove Edit Links", Type: "boolean", Default: true, Desc: "Strip [edit] and [citation needed] links"},
		},
		Noise: []NoiseRule{
			{Tags: []string{"footer", "style", "script", "noscript", "svg", "sup"}},
			{AttrContains: []string{`role="navigation"`}, AttrExcludes: []string{"mw-"}},
			{When: "remove_edit_links", Texts: []string{"[edit]", "[citation needed]"}},
		},
		SkipSections: []string{
			"External links", "References", "Notes", "Citations",
			"Further reading", "Bibliography",
		},
		SkipSectionsWhen: "skip_references",
		SectionTags:      []string{"h2", "h3"},
	},
	"stackoverflow": {
		Name:        "stackoverflow",
		Description: "Stack Overflow — extract question, answers, votes, and comments",
		Version:     builtinVersion,
		Builtin:     true,
		URLPatterns: []string{"*stackoverflow.com/questions/*", "*stackexchange.com/questions/*"},
		Settings: []SettingSpec{
			{Key: "max_items", Label: "Max List Items", Type: "number", Default: 30, Desc: "Maximum items before truncation"},
			{Key: "show_head", Label: "Show Head", Type: "number", Default: 10, Desc: "Items to keep when truncating"},
			{Key: "remove_sidebar", Label: "Remove Sidebar", Type: "boolean", Default: true, Desc: "Strip right sidebar (ads, related questions)"},
		},
		Noise: []NoiseRule{
			{Tags: []string{"footer", "style", "script", "noscript", "svg"}},
			{Texts: []string{"Teams", "Advertising", "Talent", "Company", "Stack Overflow for Teams"}},
			{When: "remove_sidebar", AttrContains: []string{"js-sidebar-zone", "sidebar"}},
			{AttrContains: []string{"js-consent-banner"}},
		},
	},
	"youtube": {
		Name:        "youtube",
		Description: "YouTube — extract video info, search results, and comments",
		Version:     builtinVersion,
		Builtin:     true,
		URLPatterns: []string{"*youtube.com/*", "*youtu.be/*"},
		Settings: []SettingSpec{
			{Key: "max_items", Label: "Max List Items", Type: "number", Default: 20, Desc: "Maximum items before truncation"},
			{Key: "show_head", Label: "Show Head", Type: "number", Default: 8, Desc: "Items to keep when truncating"},
			{Key: "remove_miniplayer", Label: "Remove Miniplayer", Type: "boolean", Default: true, Desc: "Strip miniplayer overlay"},
			{Key: "remove_guide", Label: "Remove Guide Drawer", Type: "boolean", Default: true, Desc: "Strip sidebar navigation drawer"},
		},
		Noise: []NoiseRule{
			{Tags: []string{"footer", "style", "script", "noscript", "svg", "path"}},
			{Texts: []string{"Terms", "Privacy", "Policy & Safety", "How YouTube works", "Test new features", "NFL Sunday Ticket"}},
			{When: "remove_miniplayer", TagContains: []string{"ytd-miniplayer", "ytd-popup"}},
			{When: "remove_guide", TagContains: []string{"tp-yt-app-drawer", "ytd-guide"}},
		},
	},
}

// officialNames are bundled profiles (default excluded) that are protected
// from overwrite and delete.
var officialNames = map[string]bool{
	"google_search": true,
	"wikipedia":     true,
	"youtube":       true,
	"stackoverflow": true,
}
