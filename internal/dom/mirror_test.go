package dom_test

import (
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodingLucasLi/Clawome/internal/compressor"
	"github.com/CodingLucasLi/Clawome/internal/config"
	"github.com/CodingLucasLi/Clawome/internal/dom"
)

func snapshotHTML(t *testing.T, rawHTML string) dom.Snapshot {
	t.Helper()
	nodes, err := dom.ParseHTML(rawHTML, config.Defaults())
	require.NoError(t, err)
	filtered := compressor.Process(nodes)
	return dom.Assemble(nodes, filtered, len(rawHTML))
}

func TestWrapperChainCollapsesToSingleLine(t *testing.T) {
	snap := snapshotHTML(t, `<body><div><div><span>Hello</span></div></div></body>`)
	assert.Equal(t, "[1] span: Hello", snap.Tree)
}

func TestIconOnlyButton(t *testing.T) {
	snap := snapshotHTML(t, `<body><button aria-label="Close"><svg><use href="#icon-x"/></svg></button></body>`)
	assert.Equal(t, `[1] button(aria-label="Close") [click]`, snap.Tree)
	require.Len(t, snap.Interactive, 1)
	assert.Equal(t, "Close", snap.Interactive[0].Label)
	assert.Equal(t, []string{"click"}, snap.Interactive[0].Actions)
}

func TestLongInertListTruncated(t *testing.T) {
	var b strings.Builder
	b.WriteString(`<body><ul id="items">`)
	for i := 0; i < 60; i++ {
		b.WriteString("<li>item " + strconv.Itoa(i) + "</li>")
	}
	b.WriteString(`</ul></body>`)

	snap := snapshotHTML(t, b.String())
	lines := strings.Split(snap.Tree, "\n")
	require.Len(t, lines, 12)
	assert.Equal(t, `[1] ul(id="items")`, lines[0])
	assert.Equal(t, "  [1.1] li: item 0", lines[1])
	assert.Equal(t, "  [1.10] li: item 9", lines[10])
	assert.Equal(t, "  [1.11] …: +50 more (60 total)", lines[11])
}

func TestTableRowRendersPipeJoined(t *testing.T) {
	snap := snapshotHTML(t, `<body><table><tr><td>Name</td><td>Value</td><td><button>Edit</button></td></tr></table></body>`)
	lines := strings.Split(snap.Tree, "\n")
	var rowLine, buttonLine string
	for _, ln := range lines {
		if strings.Contains(ln, "tr") {
			rowLine = ln
		}
		if strings.Contains(ln, "button") {
			buttonLine = ln
		}
	}
	assert.Contains(t, rowLine, "tr: Name | Value | Edit")
	assert.Contains(t, buttonLine, "[click]")
	assert.Contains(t, buttonLine, "Edit")
	// static cells produce no lines of their own
	for _, ln := range lines {
		assert.NotContains(t, ln, "td:")
	}
}

func TestInlineLinkBecomesMarker(t *testing.T) {
	snap := snapshotHTML(t, `<body><p>read the <a href="/docs">manual</a> first</p></body>`)
	assert.Equal(t, "[1] p: read the ⟨manual⟩ first", snap.Tree)
	// the inlined link never gets its own line or map entry
	assert.Len(t, snap.NodeMap, 1)
}

func TestSwitchableGroupMarkersBecomeState(t *testing.T) {
	snap := snapshotHTML(t, `<body><ul id="tabs">`+
		`<li class="tab active" data-bgroup="active">One</li>`+
		`<li class="tab active" data-bgroup="active">Two</li>`+
		`<li class="tab" data-bgroup="inactive">Three</li>`+
		`</ul></body>`)
	lines := strings.Split(snap.Tree, "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[1], "{selected}: One")
	assert.Contains(t, lines[2], "{selected}: Two")
	assert.Contains(t, lines[3], "{hidden}: Three")
}

func TestHiddenRules(t *testing.T) {
	snap := snapshotHTML(t, `<body>`+
		`<p hidden>gone</p>`+
		`<p aria-hidden="true">gone</p>`+
		`<input type="hidden" value="tok">`+
		`<dialog><p>closed dialog</p></dialog>`+
		`<p style="display:none">gone</p>`+
		`<p style="visibility: hidden">gone</p>`+
		`<p>visible</p>`+
		`</body>`)
	assert.Equal(t, "[1] p: visible", snap.Tree)
}

func TestOpenDialogCollapsesToSummary(t *testing.T) {
	snap := snapshotHTML(t, `<body><dialog open role="dialog"><p>a</p><p>b</p><p>c</p></dialog></body>`)
	assert.Contains(t, snap.Tree, "··· 3 children")
}

func TestAttrRendering(t *testing.T) {
	snap := snapshotHTML(t, `<body>`+
		`<a href="https://example.com/very/long/path?q=1"><div>home</div></a>`+
		`<img src="https://cdn.example.com/assets/logo.png?v=2" alt="Logo">`+
		`<form action="/search?utm=x"><input type="text" name="q" value="golang"></form>`+
		`</body>`)
	assert.Contains(t, snap.Tree, "a(href)")
	assert.Contains(t, snap.Tree, `img(src="logo.png", alt="Logo")`)
	assert.Contains(t, snap.Tree, `form(action="/search")`)
	assert.Contains(t, snap.Tree, `{value="golang"}`)
	assert.Contains(t, snap.Tree, "[type]")
}

func TestWalkerStateAttrs(t *testing.T) {
	snap := snapshotHTML(t, `<body><button disabled aria-expanded="false">More</button></body>`)
	assert.Contains(t, snap.Tree, `{aria-expanded="false", disabled}`)
}

func TestSelectorPriority(t *testing.T) {
	nodes, err := dom.ParseHTML(`<body>`+
		`<div data-bid="42">a</div>`+
		`<div id="main">b</div>`+
		`<div aria-label="Menu">c</div>`+
		`<input name="q">`+
		`<p>x</p><p>y</p>`+
		`</body>`, config.Defaults())
	require.NoError(t, err)
	bySel := map[string]bool{}
	for _, n := range nodes {
		bySel[n.Selector] = true
	}
	assert.Contains(t, bySel, `[data-bid="42"]`)
	assert.Contains(t, bySel, "#main")
	assert.Contains(t, bySel, `div[aria-label="Menu"]`)
	assert.Contains(t, bySel, `input[name="q"]`)
	assert.Contains(t, bySel, "html > body > p:nth-of-type(2)")
}

func TestXPathIndices(t *testing.T) {
	nodes, err := dom.ParseHTML(`<body><ul><li>a</li><li>b</li></ul></body>`, config.Defaults())
	require.NoError(t, err)
	var xpaths []string
	for _, n := range nodes {
		xpaths = append(xpaths, n.XPath)
	}
	assert.Contains(t, xpaths, "/html/body/ul/li[1]")
	assert.Contains(t, xpaths, "/html/body/ul/li[2]")
}

func TestMaxNodesCap(t *testing.T) {
	cfg := config.Defaults()
	cfg.MaxNodes = 5
	var b strings.Builder
	b.WriteString("<body>")
	for i := 0; i < 50; i++ {
		b.WriteString("<p>x</p>")
	}
	b.WriteString("</body>")
	nodes, err := dom.ParseHTML(b.String(), cfg)
	require.NoError(t, err)
	assert.Len(t, nodes, 5)
}

// hids sorted as dotted integer tuples must reproduce pre-order traversal.
func TestHidOrderIsPreOrder(t *testing.T) {
	snap := snapshotHTML(t, `<body>`+
		`<ul id="a"><li>1</li><li>2</li><li><em>3</em></li></ul>`+
		`<ul id="b"><li>4</li></ul>`+
		`</body>`)
	var hids []string
	for _, ln := range strings.Split(snap.Tree, "\n") {
		start := strings.Index(ln, "[")
		end := strings.Index(ln, "]")
		hids = append(hids, ln[start+1:end])
	}
	shuffled := append([]string(nil), hids...)
	sort.Sort(sort.Reverse(sort.StringSlice(shuffled)))
	sort.Slice(shuffled, func(i, j int) bool { return hidLess(shuffled[i], shuffled[j]) })
	assert.Equal(t, hids, shuffled)

	seen := map[string]bool{}
	for _, h := range hids {
		assert.False(t, seen[h], "duplicate hid %s", h)
		seen[h] = true
	}
}

func hidLess(a, b string) bool {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		ai, _ := strconv.Atoi(as[i])
		bi, _ := strconv.Atoi(bs[i])
		if ai != bi {
			return ai < bi
		}
	}
	return len(as) < len(bs)
}
