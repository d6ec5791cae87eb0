// Package dom holds the node model shared by the walker, the compressor
// pipeline, the assembler and the differ, plus the walker itself.
package dom

// Node is one element emitted by the walker. The raw list coming out of the
// walker carries Idx; after the compressor pipeline runs, nodes carry Hid
// (hierarchical id like "1.3.2") instead.
type Node struct {
	Idx       int               `json:"idx,omitempty"`
	Hid       string            `json:"hid,omitempty"`
	Depth     int               `json:"depth"`
	Tag       string            `json:"tag"`
	Attrs     string            `json:"attrs"`
	Text      string            `json:"text"`
	Selector  string            `json:"selector"`
	XPath     string            `json:"xpath"`
	Actions   []string          `json:"actions"`
	Label     string            `json:"label"`
	FormLabel string            `json:"formLabel,omitempty"`
	State     map[string]string `json:"state"`
	Inlined   bool              `json:"inlined,omitempty"`
}

// HasActions reports whether the node carries any interaction affordance.
func (n *Node) HasActions() bool {
	return len(n.Actions) > 0
}

// Clone returns a deep copy (actions slice and state map included).
func (n Node) Clone() Node {
	c := n
	if n.Actions != nil {
		c.Actions = append([]string(nil), n.Actions...)
	}
	if n.State != nil {
		c.State = make(map[string]string, len(n.State))
		for k, v := range n.State {
			c.State[k] = v
		}
	}
	return c
}

// Interactive is one entry of the snapshot's interactive list.
type Interactive struct {
	Hid      string            `json:"hid"`
	Depth    int               `json:"depth"`
	Tag      string            `json:"tag"`
	Label    string            `json:"label"`
	Selector string            `json:"selector"`
	XPath    string            `json:"xpath"`
	Actions  []string          `json:"actions"`
	State    map[string]string `json:"state"`
}

// Stats describes how much the pipeline shrank the page.
type Stats struct {
	RawHTMLChars      int     `json:"raw_html_chars"`
	RawHTMLTokens     int     `json:"raw_html_tokens"`
	TreeChars         int     `json:"tree_chars"`
	TreeTokens        int     `json:"tree_tokens"`
	CompressionRatio  float64 `json:"compression_ratio"`
	NodesBeforeFilter int     `json:"nodes_before_filter"`
	NodesAfterFilter  int     `json:"nodes_after_filter"`
}

// Snapshot is the assembled view of one walk: the rendered tree, both
// locator maps, the interactive list and compression stats.
type Snapshot struct {
	Tree        string            `json:"tree"`
	NodeMap     map[string]string `json:"node_map"`
	XPathMap    map[string]string `json:"xpath_map"`
	Interactive []Interactive     `json:"interactive"`
	Stats       Stats             `json:"stats"`
}
