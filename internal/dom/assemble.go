package dom

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// FormatTree renders filtered nodes into the final textual tree, one line per
// non-inlined node:
//
//	<indent>[hid] tag(attrs) [action/action] {state} «formLabel»: text
//
// Empty segments are omitted together with their delimiters.
func FormatTree(nodes []Node) string {
	return formatTree(nodes, 0, 0)
}

func formatTree(nodes []Node, textMax, textHead int) string {
	var lines []string
	for _, n := range nodes {
		if n.Inlined {
			continue
		}
		var b strings.Builder
		b.WriteString(strings.Repeat("  ", n.Depth))
		b.WriteString("[" + n.Hid + "] ")
		b.WriteString(n.Tag)
		if n.Attrs != "" {
			b.WriteString("(" + n.Attrs + ")")
		}
		if len(n.Actions) > 0 {
			b.WriteString(" [" + strings.Join(n.Actions, "/") + "]")
		}
		if len(n.State) > 0 {
			b.WriteString(" {" + formatState(n.State) + "}")
		}
		if n.FormLabel != "" {
			b.WriteString(" «" + n.FormLabel + "»")
		}
		if n.Text != "" {
			b.WriteString(": " + liteText(n.Text, textMax, textHead))
		}
		lines = append(lines, b.String())
	}
	return strings.Join(lines, "\n")
}

// formatState renders booleans as bare keys, other values as k="v",
// in sorted key order.
func formatState(state map[string]string) string {
	keys := make([]string, 0, len(state))
	for k := range state {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if state[k] == "true" {
			parts = append(parts, k)
		} else {
			parts = append(parts, fmt.Sprintf("%s=%q", k, state[k]))
		}
	}
	return strings.Join(parts, ", ")
}

func liteText(text string, max, head int) string {
	if max <= 0 {
		return text
	}
	r := []rune(text)
	if len(r) <= max {
		return text
	}
	if head > len(r) {
		head = len(r)
	}
	return fmt.Sprintf("%s…(%d chars omitted)", string(r[:head]), len(r)-head)
}

// Assemble wraps filtered nodes into the snapshot record: rendered tree,
// hid→selector and hid→xpath maps, the interactive list, and stats computed
// against the caller-supplied raw HTML length. Inlined nodes contribute only
// to their parent's text and are excluded from the tree and all maps.
func Assemble(rawNodes, filtered []Node, htmlLen int) Snapshot {
	return assemble(rawNodes, filtered, htmlLen, 0, 0)
}

// AssembleLite is Assemble with text truncated to textMax runes, keeping the
// first textHead. The walk is unchanged, so hids are identical to full mode.
func AssembleLite(rawNodes, filtered []Node, htmlLen, textMax, textHead int) Snapshot {
	return assemble(rawNodes, filtered, htmlLen, textMax, textHead)
}

func assemble(rawNodes, filtered []Node, htmlLen, textMax, textHead int) Snapshot {
	tree := formatTree(filtered, textMax, textHead)

	nodeMap := make(map[string]string)
	xpathMap := make(map[string]string)
	var interactive []Interactive
	after := 0
	for i := range filtered {
		n := &filtered[i]
		after++
		if n.Inlined {
			continue
		}
		nodeMap[n.Hid] = n.Selector
		xpathMap[n.Hid] = n.XPath
		if n.HasActions() {
			label := n.Label
			if label == "" {
				label = n.Text
			}
			interactive = append(interactive, Interactive{
				Hid:      n.Hid,
				Depth:    n.Depth,
				Tag:      n.Tag,
				Label:    label,
				Selector: n.Selector,
				XPath:    n.XPath,
				Actions:  n.Actions,
				State:    n.State,
			})
		}
	}

	ratio := float64(len(tree)) / float64(maxInt(htmlLen, 1))
	return Snapshot{
		Tree:        tree,
		NodeMap:     nodeMap,
		XPathMap:    xpathMap,
		Interactive: interactive,
		Stats: Stats{
			RawHTMLChars:      htmlLen,
			RawHTMLTokens:     htmlLen / 4,
			TreeChars:         len(tree),
			TreeTokens:        len(tree) / 4,
			CompressionRatio:  math.Round(ratio*1000) / 1000,
			NodesBeforeFilter: len(rawNodes),
			NodesAfterFilter:  after,
		},
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
