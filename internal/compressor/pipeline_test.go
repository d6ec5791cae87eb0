package compressor

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodingLucasLi/Clawome/internal/dom"
)

func node(idx, depth int, tag, text string) dom.Node {
	return dom.Node{
		Idx:      idx,
		Depth:    depth,
		Tag:      tag,
		Text:     text,
		Selector: fmt.Sprintf(`[data-bid="%d"]`, idx),
		XPath:    fmt.Sprintf("/body/x[%d]", idx),
		Actions:  []string{},
		State:    map[string]string{},
	}
}

func withAttrs(n dom.Node, attrs string) dom.Node {
	n.Attrs = attrs
	return n
}

func withActions(n dom.Node, actions ...string) dom.Node {
	n.Actions = actions
	return n
}

func TestProcessCollapsesWrappers(t *testing.T) {
	// <body><div><div><span>Hello</span></div></div></body>
	nodes := []dom.Node{
		node(1, 0, "div", "Hello"),
		node(2, 1, "div", "Hello"),
		node(3, 2, "span", "Hello"),
	}
	out := Process(nodes)
	require.Len(t, out, 1)
	assert.Equal(t, "1", out[0].Hid)
	assert.Equal(t, "span", out[0].Tag)
	assert.Equal(t, "Hello", out[0].Text)
	assert.Equal(t, 0, out[0].Depth)
}

func TestParentTextClearedWhenChildrenRepeatIt(t *testing.T) {
	nodes := []dom.Node{
		withAttrs(node(1, 0, "div", "Hello"), `role="main"`),
		node(2, 1, "p", "Hello"),
	}
	out := Process(nodes)
	require.Len(t, out, 2)
	assert.Equal(t, "", out[0].Text)
	assert.Equal(t, "Hello", out[1].Text)
}

func TestOverlapPruningClearsInertChildText(t *testing.T) {
	nodes := []dom.Node{
		withAttrs(node(1, 0, "div", "Great product for testing"), `role="main"`),
		withAttrs(node(2, 1, "p", "Great product"), `title="keep"`),
		withActions(withAttrs(node(3, 1, "a", "Great product"), "href"), "click"),
	}
	out := Process(nodes)
	require.Len(t, out, 3)
	// inert child overlapping parent loses its text, actionable child keeps it
	assert.Equal(t, "", out[1].Text)
	assert.Equal(t, "Great product", out[2].Text)
}

func TestInlineMarkerProtectsWrapper(t *testing.T) {
	nodes := []dom.Node{
		node(1, 0, "div", "see ⟨details⟩"),
	}
	out := Process(nodes)
	require.Len(t, out, 1)
	assert.Equal(t, "see ⟨details⟩", out[0].Text)
}

func TestSelectedStateBlocksWrapperCollapse(t *testing.T) {
	sel := node(1, 0, "div", "")
	sel.State["selected"] = "true"
	nodes := []dom.Node{
		sel,
		node(2, 1, "p", "tab body"),
	}
	out := Process(nodes)
	require.Len(t, out, 2)
	assert.Equal(t, "div", out[0].Tag)
}

func TestCollapsePopups(t *testing.T) {
	nodes := []dom.Node{
		withAttrs(node(1, 0, "div", ""), `role="dialog"`),
	}
	for i := 0; i < 40; i++ {
		nodes = append(nodes, node(i+2, 1, "p", fmt.Sprintf("line %d", i)))
	}
	out := Process(nodes)
	require.Len(t, out, 1)
	assert.Equal(t, "··· 40 children", out[0].Text)
}

func TestCustomElementDialogCollapses(t *testing.T) {
	nodes := []dom.Node{
		node(1, 0, "my-dialog", ""),
		node(2, 1, "p", "inner"),
	}
	out := Process(nodes)
	require.Len(t, out, 1)
	assert.Equal(t, "··· 1 children", out[0].Text)
}

func TestTruncateLongInertList(t *testing.T) {
	nodes := []dom.Node{
		withAttrs(node(1, 0, "ul", ""), `id="list"`),
	}
	for i := 0; i < 60; i++ {
		nodes = append(nodes, node(i+2, 1, "li", fmt.Sprintf("item %d", i)))
	}
	out := Process(nodes)
	require.Len(t, out, 12) // ul + 10 head + placeholder
	last := out[len(out)-1]
	assert.Equal(t, "…", last.Tag)
	assert.Equal(t, "+50 more (60 total)", last.Text)
	assert.Equal(t, "1.11", last.Hid)
}

func TestInteractiveListNotTruncated(t *testing.T) {
	nodes := []dom.Node{
		withAttrs(node(1, 0, "ul", ""), `id="menu"`),
	}
	for i := 0; i < 60; i++ {
		nodes = append(nodes, withActions(node(i+2, 1, "li", fmt.Sprintf("choice %d", i)), "click"))
	}
	out := Process(nodes)
	assert.Len(t, out, 61)
}

func TestMixedTagListNotTruncated(t *testing.T) {
	nodes := []dom.Node{
		withAttrs(node(1, 0, "div", ""), `role="feed"`),
	}
	for i := 0; i < 60; i++ {
		tag := "p"
		if i%2 == 0 {
			tag = "section"
		}
		nodes = append(nodes, withAttrs(node(i+2, 1, tag, fmt.Sprintf("block %d", i)), `title="x"`))
	}
	out := Process(nodes)
	assert.Len(t, out, 61)
}

func TestPruneEmptyLeaves(t *testing.T) {
	nodes := []dom.Node{
		withAttrs(node(1, 0, "p", "kept"), ""),
		withAttrs(node(2, 0, "p", ""), `id="only-id"`),
		withAttrs(node(3, 0, "img", ""), `src="logo.png"`),
	}
	out := Process(nodes)
	require.Len(t, out, 2)
	assert.Equal(t, "p", out[0].Tag)
	assert.Equal(t, "img", out[1].Tag)
}

func TestRoundTripPreservesFields(t *testing.T) {
	nodes := []dom.Node{
		withAttrs(node(1, 0, "form", ""), `action="/s"`),
		withActions(withAttrs(node(2, 1, "input", ""), `type="text", name="q"`), "type"),
		withActions(withAttrs(node(3, 1, "button", "Go"), `type="submit"`), "click"),
	}
	nodes[1].State["value"] = "query"
	flat := treeToFlat(flatToTree(nodes))
	require.Len(t, flat, 3)
	for i := range nodes {
		assert.Equal(t, nodes[i].Tag, flat[i].Tag)
		assert.Equal(t, nodes[i].Text, flat[i].Text)
		assert.Equal(t, nodes[i].Attrs, flat[i].Attrs)
		assert.Equal(t, nodes[i].Actions, flat[i].Actions)
		assert.Equal(t, nodes[i].State, flat[i].State)
		assert.Equal(t, nodes[i].Selector, flat[i].Selector)
		assert.Equal(t, nodes[i].XPath, flat[i].XPath)
	}
	assert.Equal(t, "1", flat[0].Hid)
	assert.Equal(t, "1.1", flat[1].Hid)
	assert.Equal(t, "1.2", flat[2].Hid)
}

func TestSimplifyReachesFixedPoint(t *testing.T) {
	var nodes []dom.Node
	idx := 0
	for i := 0; i < 5; i++ {
		idx++
		nodes = append(nodes, node(idx, 0, "div", ""))
		idx++
		nodes = append(nodes, node(idx, 1, "div", ""))
		idx++
		nodes = append(nodes, withActions(node(idx, 2, "button", fmt.Sprintf("b%d", i)), "click"))
	}
	once := Process(nodes)
	twice := Process(once)
	assert.Len(t, twice, len(once))
}

func TestProcessNeverGrows(t *testing.T) {
	var nodes []dom.Node
	for i := 0; i < 100; i++ {
		nodes = append(nodes, node(i+1, i%5, "div", fmt.Sprintf("t%d", i%7)))
	}
	out := Process(nodes)
	assert.LessOrEqual(t, len(out), len(nodes))
}

func TestGoogleProfileFiltersNoise(t *testing.T) {
	p := builtinProfiles["google_search"]
	nodes := []dom.Node{
		withAttrs(node(1, 0, "div", "result one"), `title="r1"`),
		node(2, 0, "footer", "legal stuff"),
		withAttrs(node(3, 0, "p", "Sign in"), `title="nav"`),
		withAttrs(node(4, 0, "div", "footer links"), `role="contentinfo"`),
	}
	out := p.Process(nodes, nil)
	require.Len(t, out, 1)
	assert.Equal(t, "result one", out[0].Text)
}

func TestGoogleProfileRespectsSettings(t *testing.T) {
	p := builtinProfiles["google_search"]
	nodes := []dom.Node{
		withAttrs(node(1, 0, "div", "result"), `title="r"`),
		withAttrs(node(2, 0, "div", "footer links"), `role="contentinfo"`),
	}
	out := p.Process(nodes, map[string]any{"remove_footer": false})
	assert.Len(t, out, 2)
}

func TestWikipediaProfileSkipsSections(t *testing.T) {
	p := builtinProfiles["wikipedia"]
	nodes := []dom.Node{
		withAttrs(node(1, 0, "h2", "History"), `id="h-history"`),
		withAttrs(node(2, 1, "p", "Founded long ago."), `title="k"`),
		withAttrs(node(3, 0, "h2", "References"), `id="h-refs"`),
		withAttrs(node(4, 1, "p", "Citation one."), `title="k"`),
		withAttrs(node(5, 1, "p", "Citation two."), `title="k"`),
		withAttrs(node(6, 0, "h2", "Legacy"), `id="h-legacy"`),
		withAttrs(node(7, 1, "p", "Still relevant."), `title="k"`),
	}
	out := p.Process(nodes, nil)
	var texts []string
	for _, n := range out {
		texts = append(texts, n.Text)
	}
	assert.NotContains(t, texts, "Citation one.")
	assert.NotContains(t, texts, "References")
	assert.Contains(t, texts, "Founded long ago.")
	assert.Contains(t, texts, "Still relevant.")
}

func TestWikipediaProfileKeepsMwNavigation(t *testing.T) {
	p := builtinProfiles["wikipedia"]
	nodes := []dom.Node{
		withAttrs(node(1, 0, "div", "toc"), `role="navigation", id="mw-toc"`),
		withAttrs(node(2, 0, "div", "site nav"), `role="navigation", id="sitenav"`),
	}
	out := p.Process(nodes, nil)
	require.Len(t, out, 1)
	assert.Equal(t, "toc", out[0].Text)
}

func TestYoutubeProfileStripsCustomElements(t *testing.T) {
	p := builtinProfiles["youtube"]
	nodes := []dom.Node{
		withAttrs(node(1, 0, "ytd-miniplayer", "mini"), `id="mini"`),
		withAttrs(node(2, 0, "div", "video title"), `title="v"`),
	}
	out := p.Process(nodes, nil)
	require.Len(t, out, 1)
	assert.Equal(t, "video title", out[0].Text)
}
