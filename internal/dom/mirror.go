package dom

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/net/html"

	"github.com/CodingLucasLi/Clawome/internal/config"
)

// ParseHTML is the server-side mirror of the in-page walker: it produces the
// same raw node list from serialized HTML. Computed-style visibility and
// listener-based click detection are unavailable on this path; the walker's
// marker attributes (data-bid, data-bhidden, data-bicon, data-bgroup) are
// honored when the markup carries them.
func ParseHTML(rawHTML string, cfg config.Config) ([]Node, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	var root *html.Node
	if body := doc.Find("body"); len(body.Nodes) > 0 {
		root = body.Nodes[0]
	} else if len(doc.Selection.Nodes) > 0 {
		root = doc.Selection.Nodes[0]
	} else {
		return nil, nil
	}
	w := &mirrorWalker{
		maxNodes: cfg.MaxNodes,
		maxDepth: cfg.MaxDepth,
	}
	w.walk(root, 0)
	return w.nodes, nil
}

var (
	// the serialized path cannot classify icons, so svg subtrees are skipped
	// outright where the live walker leaves them to the compressor
	skipTagSet   = mapset.NewSet(append([]string{"svg"}, skipTags...)...)
	inlineTagSet = mapset.NewSet(inlineTags...)
	typeableSet  = mapset.NewSet(typeableInputTypes...)
	clickableSet = mapset.NewSet(clickableInputTypes...)

	reDisplayNone      = regexp.MustCompile(`(?i)display\s*:\s*none`)
	reVisibilityHidden = regexp.MustCompile(`(?i)visibility\s*:\s*hidden`)
	reWhitespace       = regexp.MustCompile(`\s+`)
)

type mirrorWalker struct {
	nodes    []Node
	count    int
	maxNodes int
	maxDepth int
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func attrVal(n *html.Node, key string) string {
	v, _ := attr(n, key)
	return v
}

func elemChildren(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, c)
		}
	}
	return out
}

func isHidden(n *html.Node) bool {
	if attrVal(n, "data-bgroup") == "active" {
		return false
	}
	if attrVal(n, "data-bhidden") == "1" {
		return true
	}
	if _, ok := attr(n, "hidden"); ok {
		return true
	}
	if strings.EqualFold(attrVal(n, "aria-hidden"), "true") {
		return true
	}
	if n.Data == "input" && strings.EqualFold(attrVal(n, "type"), "hidden") {
		return true
	}
	if n.Data == "dialog" {
		if _, open := attr(n, "open"); !open {
			return true
		}
	}
	if style := attrVal(n, "style"); style != "" {
		if reDisplayNone.MatchString(style) || reVisibilityHidden.MatchString(style) {
			return true
		}
	}
	return false
}

func squash(s string) string {
	return strings.TrimSpace(reWhitespace.ReplaceAllString(s, " "))
}

// fullText returns the whitespace-squashed text of the whole subtree.
func fullText(n *html.Node) string {
	var b strings.Builder
	var rec func(*html.Node)
	rec = func(node *html.Node) {
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.TextNode:
				b.WriteString(c.Data)
				b.WriteByte(' ')
			case html.ElementNode:
				rec(c)
			}
		}
	}
	rec(n)
	return squash(b.String())
}

func detectActions(tag, role, inputType string) []string {
	switch {
	case tag == "a" || role == "link":
		return []string{"click"}
	case tag == "button" || role == "button":
		return []string{"click"}
	case tag == "input":
		t := strings.ToLower(inputType)
		if typeableSet.Contains(t) {
			return []string{"type"}
		}
		if clickableSet.Contains(t) || t == "checkbox" || t == "radio" {
			return []string{"click"}
		}
		return nil
	case tag == "textarea" || role == "combobox":
		return []string{"type"}
	case tag == "select":
		return []string{"select"}
	}
	switch role {
	case "checkbox", "radio", "switch", "tab", "menuitem", "option":
		return []string{"click"}
	}
	return nil
}

func nodeActions(n *html.Node) []string {
	return detectActions(n.Data, attrVal(n, "role"), attrVal(n, "type"))
}

// collectText concatenates direct text nodes and inline-children text;
// inline children that carry an action are wrapped in ⟨ ⟩ markers.
func collectText(n *html.Node) string {
	var parts []string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			if t := squash(c.Data); t != "" {
				parts = append(parts, t)
			}
		case html.ElementNode:
			if !inlineTagSet.Contains(c.Data) {
				continue
			}
			t := fullText(c)
			if t == "" {
				continue
			}
			if len(nodeActions(c)) > 0 {
				parts = append(parts, "⟨"+t+"⟩")
			} else {
				parts = append(parts, t)
			}
		}
	}
	return strings.Join(parts, " ")
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) > max {
		return string(r[:max]) + "…"
	}
	return s
}

func srcBasename(src string) string {
	name := src
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	return name
}

func formatAttrs(n *html.Node) string {
	keys := append([]string{}, globalAttrs...)
	keys = append(keys, attrRules[n.Data]...)
	var pairs []string
	for _, k := range keys {
		v, ok := attr(n, k)
		if !ok {
			continue
		}
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		switch k {
		case "href":
			pairs = append(pairs, k)
		case "src":
			if !strings.HasPrefix(v, "data:") {
				if name := srcBasename(v); name != "" && len(name) <= 80 {
					pairs = append(pairs, fmt.Sprintf("src=%q", name))
					continue
				}
			}
			pairs = append(pairs, k)
		case "action":
			path := v
			if i := strings.Index(path, "?"); i >= 0 {
				path = path[:i]
			}
			if len(path) > 60 {
				path = path[:60] + "…"
			}
			pairs = append(pairs, fmt.Sprintf("action=%q", path))
		default:
			pairs = append(pairs, fmt.Sprintf("%s=%q", k, truncateRunes(v, 80)))
		}
	}
	return strings.Join(pairs, ", ")
}

func detectState(n *html.Node) map[string]string {
	state := map[string]string{}
	for _, key := range stateAttrs {
		if v, ok := attr(n, key); ok {
			if v == "" {
				v = "true"
			}
			state[key] = v
		}
	}
	switch n.Data {
	case "input", "textarea", "select":
		if v, ok := attr(n, "value"); ok && v != "" {
			state["value"] = truncateRunes(v, 80)
		}
	}
	switch attrVal(n, "data-bgroup") {
	case "active":
		state["selected"] = "true"
	case "inactive":
		state["hidden"] = "true"
	}
	return state
}

func escapeSelectorValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	return strings.ReplaceAll(v, `"`, `\"`)
}

func cssSelector(n *html.Node) string {
	if bid := attrVal(n, "data-bid"); bid != "" {
		return fmt.Sprintf(`[data-bid="%s"]`, bid)
	}
	if id := attrVal(n, "id"); id != "" {
		return "#" + id
	}
	if aria := attrVal(n, "aria-label"); aria != "" {
		return fmt.Sprintf(`%s[aria-label="%s"]`, n.Data, escapeSelectorValue(aria))
	}
	if name := attrVal(n, "name"); name != "" {
		return fmt.Sprintf(`%s[name="%s"]`, n.Data, name)
	}
	var parts []string
	for el := n; el != nil && el.Type == html.ElementNode; {
		parent := el.Parent
		if parent == nil || parent.Type != html.ElementNode {
			parts = append(parts, el.Data)
			break
		}
		if id := attrVal(el, "id"); id != "" {
			parts = append(parts, "#"+id)
			break
		}
		same := sameTagSiblings(parent, el.Data)
		if len(same) == 1 {
			parts = append(parts, el.Data)
		} else {
			parts = append(parts, fmt.Sprintf("%s:nth-of-type(%d)", el.Data, indexOf(same, el)+1))
		}
		el = parent
	}
	reverse(parts)
	return strings.Join(parts, " > ")
}

func xpathSelector(n *html.Node) string {
	var parts []string
	for el := n; el != nil && el.Type == html.ElementNode; {
		parent := el.Parent
		if parent == nil || parent.Type != html.ElementNode {
			parts = append(parts, el.Data)
			break
		}
		same := sameTagSiblings(parent, el.Data)
		if len(same) == 1 {
			parts = append(parts, el.Data)
		} else {
			parts = append(parts, fmt.Sprintf("%s[%d]", el.Data, indexOf(same, el)+1))
		}
		el = parent
	}
	reverse(parts)
	return "/" + strings.Join(parts, "/")
}

func sameTagSiblings(parent *html.Node, tag string) []*html.Node {
	var out []*html.Node
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			out = append(out, c)
		}
	}
	return out
}

func indexOf(nodes []*html.Node, target *html.Node) int {
	for i, n := range nodes {
		if n == target {
			return i
		}
	}
	return -1
}

func reverse(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func hasInteractiveDescendant(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if skipTagSet.Contains(c.Data) {
			continue
		}
		if len(nodeActions(c)) > 0 {
			return true
		}
		if hasInteractiveDescendant(c) {
			return true
		}
	}
	return false
}

func (w *mirrorWalker) emitRow(row *html.Node, depth int) {
	var cells []string
	var cellEls []*html.Node
	for c := row.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || (c.Data != "td" && c.Data != "th") {
			continue
		}
		t := collectText(c)
		if t == "" {
			t = fullText(c)
		}
		cells = append(cells, truncateRunes(t, 500))
		cellEls = append(cellEls, c)
	}
	rowText := strings.Join(cells, " | ")
	w.count++
	w.nodes = append(w.nodes, Node{
		Idx:      w.count,
		Depth:    depth,
		Tag:      "tr",
		Attrs:    formatAttrs(row),
		Text:     rowText,
		Selector: cssSelector(row),
		XPath:    xpathSelector(row),
		Actions:  []string{},
		Label:    rowText,
		State:    detectState(row),
	})
	for _, cell := range cellEls {
		if hasInteractiveDescendant(cell) {
			w.walk(cell, depth+1)
		}
	}
}

func (w *mirrorWalker) walk(el *html.Node, depth int) {
	if w.count >= w.maxNodes || depth > w.maxDepth {
		return
	}
	for child := el.FirstChild; child != nil; child = child.NextSibling {
		if w.count >= w.maxNodes {
			return
		}
		if child.Type != html.ElementNode {
			continue
		}
		if skipTagSet.Contains(child.Data) {
			continue
		}
		if isHidden(child) {
			continue
		}
		if child.Data == "tr" {
			w.emitRow(child, depth)
			continue
		}

		text := collectText(child)
		actions := nodeActions(child)
		icon := attrVal(child, "data-bicon")

		imgName := ""
		switch child.Data {
		case "img", "video", "audio", "source":
			if src := attrVal(child, "src"); src != "" && !strings.HasPrefix(src, "data:") {
				name := srcBasename(src)
				if i := strings.LastIndex(name, "."); i >= 0 {
					name = name[:i]
				}
				imgName = name
			}
		}

		label := firstNonEmpty(
			text,
			attrVal(child, "aria-label"),
			attrVal(child, "title"),
			iconLabel(icon),
			attrVal(child, "placeholder"),
			attrVal(child, "alt"),
			imgLabel(imgName),
			attrVal(child, "value"),
		)
		label = truncateRunes(label, 500)

		blockChildren := false
		for _, c := range elemChildren(child) {
			if !skipTagSet.Contains(c.Data) {
				blockChildren = true
				break
			}
		}

		isInlined := inlineTagSet.Contains(child.Data) && len(actions) > 0 && !blockChildren
		displayText := ""
		if !isInlined {
			displayText = text
			if displayText == "" && icon != "" {
				displayText = iconLabel(icon)
			}
		}

		w.count++
		w.nodes = append(w.nodes, Node{
			Idx:      w.count,
			Depth:    depth,
			Tag:      child.Data,
			Attrs:    formatAttrs(child),
			Text:     displayText,
			Selector: cssSelector(child),
			XPath:    xpathSelector(child),
			Actions:  actions,
			Label:    label,
			State:    detectState(child),
			Inlined:  isInlined,
		})

		if blockChildren {
			w.walk(child, depth+1)
		}
	}
}

func iconLabel(icon string) string {
	if icon == "" {
		return ""
	}
	return "[icon: " + icon + "]"
}

func imgLabel(name string) string {
	if name == "" {
		return ""
	}
	return "[img: " + name + "]"
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
