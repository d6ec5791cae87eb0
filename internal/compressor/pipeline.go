// Package compressor reshapes the walker's raw flat node list into a compact
// filtered list keyed by hierarchical IDs. The default pipeline is fixed;
// profiles add a data-driven noise pre-filter and tuned thresholds on top.
package compressor

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/CodingLucasLi/Clawome/internal/dom"
)

const (
	defaultMaxItems = 50
	defaultShowHead = 10

	simplifyMaxPasses = 10
)

var wrapperTags = map[string]bool{
	"div": true, "span": true, "section": true, "article": true, "main": true,
	"header": true, "footer": true, "aside": true, "figure": true, "figcaption": true,
	"nav": true, "details": true, "summary": true, "hgroup": true,
	"center": true, "font": true, "big": true, "nobr": true, "marquee": true,
	"thead": true, "tbody": true, "tfoot": true, "colgroup": true,
}

var (
	reTransparentRole = regexp.MustCompile(`,?\s*role="(?:none|presentation)"`)
	reIDAttr          = regexp.MustCompile(`,?\s*id="[^"]*"`)
)

type treeNode struct {
	dom.Node
	children []*treeNode
}

// flatToTree rebuilds the parent/child hierarchy from the depth-tagged flat
// list with a stack: pop until the top has lesser depth, then attach. O(N).
func flatToTree(nodes []dom.Node) []*treeNode {
	var roots []*treeNode
	type frame struct {
		depth int
		node  *treeNode
	}
	stack := []frame{{depth: -1}}
	for i := range nodes {
		tn := &treeNode{Node: nodes[i]}
		d := nodes[i].Depth
		for len(stack) > 1 && stack[len(stack)-1].depth >= d {
			stack = stack[:len(stack)-1]
		}
		parent := stack[len(stack)-1].node
		if parent == nil {
			roots = append(roots, tn)
		} else {
			parent.children = append(parent.children, tn)
		}
		stack = append(stack, frame{depth: d, node: tn})
	}
	return roots
}

// treeToFlat assigns hierarchical IDs in pre-order: the k-th child of a node
// with hid P becomes P.k; roots become 1, 2, 3, …
func treeToFlat(roots []*treeNode) []dom.Node {
	var flat []dom.Node
	var walk func(nodes []*treeNode, depth int, prefix string)
	walk = func(nodes []*treeNode, depth int, prefix string) {
		for i, tn := range nodes {
			n := tn.Node
			n.Idx = 0
			n.Hid = fmt.Sprintf("%s%d", prefix, i+1)
			n.Depth = depth
			flat = append(flat, n)
			walk(tn.children, depth+1, n.Hid+".")
		}
	}
	walk(roots, 0, "")
	return flat
}

func countNodes(roots []*treeNode) int {
	total := 0
	for _, n := range roots {
		total += 1 + countNodes(n.children)
	}
	return total
}

func isCollapsible(n *treeNode) bool {
	if n.State["selected"] != "" {
		return false
	}
	if strings.Contains(n.Text, "⟨") && strings.Contains(n.Text, "⟩") {
		return false
	}
	if wrapperTags[n.Tag] {
		return true
	}
	return reTransparentRole.MatchString(n.Attrs)
}

// meaningfulAttrs strips transparent-role and id attributes; what remains
// counts as content that protects a wrapper from collapsing.
func meaningfulAttrs(attrs string) string {
	s := reTransparentRole.ReplaceAllString(attrs, "")
	s = reIDAttr.ReplaceAllString(s, "")
	return strings.Trim(s, ", ")
}

func childrenText(n *treeNode) string {
	var parts []string
	for _, c := range n.children {
		if c.Text != "" {
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, " ")
}

func textOverlap(parentText, childText string) bool {
	p := strings.TrimSpace(parentText)
	c := strings.TrimSpace(childText)
	if p == "" || c == "" {
		return false
	}
	if p == c {
		return true
	}
	shorter, longer := c, p
	if len(c) > len(p) {
		shorter, longer = p, c
	}
	return strings.Contains(longer, shorter) &&
		len(shorter) >= 8 &&
		float64(len(shorter)) > float64(len(longer))*0.5
}

// simplify runs one post-order pass of the three per-node operations:
// parent/child text de-duplication, overlap pruning, wrapper collapse.
// Callers iterate it to a fixed point.
func simplify(children []*treeNode) []*treeNode {
	var result []*treeNode
	for _, node := range children {
		node.children = simplify(node.children)

		if node.Text != "" && len(node.children) > 0 {
			ct := childrenText(node)
			if ct != "" && (node.Text == ct ||
				strings.HasPrefix(ct, node.Text) ||
				(strings.HasPrefix(node.Text, ct) && float64(len(ct)) >= float64(len(node.Text))*0.8)) {
				node.Text = ""
			}
		}

		if node.Text != "" && len(node.children) > 0 {
			for _, child := range node.children {
				if child.Text != "" && !child.HasActions() && textOverlap(node.Text, child.Text) {
					child.Text = ""
				}
			}
		}

		hasContent := node.Text != "" || meaningfulAttrs(node.Attrs) != ""
		if isCollapsible(node) && !hasContent {
			switch len(node.children) {
			case 0:
				continue
			case 1:
				result = append(result, node.children[0])
				continue
			default:
				result = append(result, node.children...)
				continue
			}
		}
		result = append(result, node)
	}
	return result
}

func isPopup(n *treeNode) bool {
	if strings.Contains(n.Attrs, `role="dialog"`) || strings.Contains(n.Attrs, `role="alertdialog"`) {
		return true
	}
	return strings.Contains(n.Tag, "-") && strings.Contains(strings.ToLower(n.Tag), "dialog")
}

// collapsePopups folds dialog subtrees into a one-line summary so a stray
// modal cannot dominate the snapshot.
func collapsePopups(roots []*treeNode) []*treeNode {
	result := make([]*treeNode, 0, len(roots))
	for _, node := range roots {
		if isPopup(node) && len(node.children) > 0 {
			node.Text = fmt.Sprintf("··· %d children", countNodes(node.children))
			node.children = nil
			result = append(result, node)
			continue
		}
		node.children = collapsePopups(node.children)
		result = append(result, node)
	}
	return result
}

func hasInteractive(n *treeNode) bool {
	if n.HasActions() {
		return true
	}
	for _, c := range n.children {
		if hasInteractive(c) {
			return true
		}
	}
	return false
}

// truncateLongLists keeps the head of homogeneous long child lists. A list
// is truncated only when >=70% of children share one tag and <=30% contain
// an interactive descendant.
func truncateLongLists(roots []*treeNode, maxItems, showHead int) []*treeNode {
	for _, node := range roots {
		node.children = truncateLongLists(node.children, maxItems, showHead)
		n := len(node.children)
		if n <= maxItems {
			continue
		}
		tagFreq := map[string]int{}
		topCount := 0
		for _, c := range node.children {
			tagFreq[c.Tag]++
			if tagFreq[c.Tag] > topCount {
				topCount = tagFreq[c.Tag]
			}
		}
		if float64(topCount) < float64(n)*0.7 {
			continue
		}
		interactive := 0
		for _, c := range node.children {
			if hasInteractive(c) {
				interactive++
			}
		}
		if float64(interactive) > float64(n)*0.3 {
			continue
		}
		keep := showHead
		if keep > n {
			keep = n
		}
		head := node.children[:keep:keep]
		node.children = append(head, &treeNode{Node: dom.Node{
			Tag:     "…",
			Text:    fmt.Sprintf("+%d more (%d total)", n-keep, n),
			Actions: []string{},
			State:   map[string]string{},
		}})
	}
	return roots
}

func pruneEmptyLeaves(roots []*treeNode) []*treeNode {
	var result []*treeNode
	for _, node := range roots {
		node.children = pruneEmptyLeaves(node.children)
		if len(node.children) == 0 &&
			strings.TrimSpace(node.Text) == "" &&
			!node.HasActions() &&
			meaningfulAttrs(node.Attrs) == "" {
			continue
		}
		result = append(result, node)
	}
	return result
}

// runPipeline is the fixed 6-stage default pipeline.
func runPipeline(nodes []dom.Node, maxItems, showHead int) []dom.Node {
	if maxItems <= 0 {
		maxItems = defaultMaxItems
	}
	if showHead <= 0 {
		showHead = defaultShowHead
	}
	tree := flatToTree(nodes)
	for i := 0; i < simplifyMaxPasses; i++ {
		before := countNodes(tree)
		tree = simplify(tree)
		if countNodes(tree) == before {
			break
		}
	}
	tree = collapsePopups(tree)
	tree = truncateLongLists(tree, maxItems, showHead)
	tree = pruneEmptyLeaves(tree)
	return treeToFlat(tree)
}

// Process runs the default pipeline with default thresholds.
func Process(nodes []dom.Node) []dom.Node {
	return runPipeline(nodes, defaultMaxItems, defaultShowHead)
}
