package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filteredNode(hid string, depth int, tag, text string) Node {
	return Node{
		Hid:      hid,
		Depth:    depth,
		Tag:      tag,
		Text:     text,
		Selector: `[data-bid="` + hid + `"]`,
		XPath:    "/body/" + tag,
		Actions:  []string{},
		State:    map[string]string{},
	}
}

func TestFormatTreeLine(t *testing.T) {
	n := filteredNode("1.2", 1, "button", "Save")
	n.Attrs = `type="submit"`
	n.Actions = []string{"click"}
	n.State = map[string]string{"disabled": "true", "aria-pressed": "false"}
	n.FormLabel = "Profile"

	tree := FormatTree([]Node{n})
	assert.Equal(t, `  [1.2] button(type="submit") [click] {aria-pressed="false", disabled} «Profile»: Save`, tree)
}

func TestFormatTreeOmitsEmptySegments(t *testing.T) {
	tree := FormatTree([]Node{filteredNode("1", 0, "p", "")})
	assert.Equal(t, "[1] p", tree)

	tree = FormatTree([]Node{filteredNode("2", 0, "p", "hi")})
	assert.Equal(t, "[2] p: hi", tree)
}

func TestFormatTreeSkipsInlined(t *testing.T) {
	parent := filteredNode("1", 0, "div", "go ⟨here⟩")
	inlined := filteredNode("1.1", 1, "a", "")
	inlined.Inlined = true
	inlined.Actions = []string{"click"}

	tree := FormatTree([]Node{parent, inlined})
	assert.Equal(t, "[1] div: go ⟨here⟩", tree)
}

func TestAssembleMapsAndInteractive(t *testing.T) {
	raw := make([]Node, 5)
	link := filteredNode("1.1", 1, "a", "Docs")
	link.Actions = []string{"click"}
	nodes := []Node{
		filteredNode("1", 0, "div", "intro"),
		link,
		filteredNode("1.2", 1, "p", "body"),
	}
	snap := Assemble(raw, nodes, 10000)

	assert.Len(t, snap.NodeMap, 3)
	assert.Len(t, snap.XPathMap, 3)
	require.Len(t, snap.Interactive, 1)
	assert.Equal(t, "1.1", snap.Interactive[0].Hid)
	assert.Equal(t, "Docs", snap.Interactive[0].Label)

	// every map entry references a hid present in the tree
	for hid := range snap.NodeMap {
		assert.Contains(t, snap.Tree, "["+hid+"]")
	}
	assert.Equal(t, 5, snap.Stats.NodesBeforeFilter)
	assert.Equal(t, 3, snap.Stats.NodesAfterFilter)
	assert.Equal(t, len(snap.Tree), snap.Stats.TreeChars)
	assert.Equal(t, 10000/4, snap.Stats.RawHTMLTokens)
	assert.InDelta(t, float64(len(snap.Tree))/10000.0, snap.Stats.CompressionRatio, 0.001)
}

func TestAssembleExcludesInlinedFromMaps(t *testing.T) {
	inlined := filteredNode("1.1", 1, "a", "")
	inlined.Inlined = true
	inlined.Actions = []string{"click"}
	nodes := []Node{
		filteredNode("1", 0, "div", "go ⟨here⟩"),
		inlined,
	}
	snap := Assemble(nodes, nodes, 100)
	assert.NotContains(t, snap.NodeMap, "1.1")
	assert.NotContains(t, snap.XPathMap, "1.1")
	assert.Empty(t, snap.Interactive)
	assert.NotContains(t, snap.Tree, "[1.1]")
}

func TestAssembleLiteTruncatesTextOnly(t *testing.T) {
	long := filteredNode("1", 0, "p", "abcdefghijklmnopqrstuvwxyz")
	full := Assemble(nil, []Node{long}, 100)
	lite := AssembleLite(nil, []Node{long}, 100, 10, 5)

	assert.Contains(t, full.Tree, "abcdefghijklmnopqrstuvwxyz")
	assert.Contains(t, lite.Tree, "abcde…(21 chars omitted)")
	// identical ids in both modes
	assert.Equal(t, full.NodeMap, lite.NodeMap)
}

func TestStatsGuardAgainstZeroHTML(t *testing.T) {
	snap := Assemble(nil, nil, 0)
	assert.Equal(t, 0.0, snap.Stats.CompressionRatio)
	assert.Equal(t, 0, snap.Stats.NodesAfterFilter)
}
