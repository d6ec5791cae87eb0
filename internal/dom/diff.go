package dom

import (
	"fmt"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// DefaultDiffMaxItems caps each diff category.
const DefaultDiffMaxItems = 20

// Brief is a compact reference to an added or removed node.
type Brief struct {
	Hid     string   `json:"hid"`
	Tag     string   `json:"tag"`
	Label   string   `json:"label"`
	Actions []string `json:"actions"`
}

// Change records one field-level difference on a surviving node. Field is
// one of "hid", "text", "state.<key>", "actions".
type Change struct {
	Hid    string `json:"hid"`
	Tag    string `json:"tag"`
	Label  string `json:"label"`
	Field  string `json:"field"`
	Before string `json:"before"`
	After  string `json:"after"`
}

// DiffResult classifies change between two filtered-node snapshots.
type DiffResult struct {
	HasChanges bool     `json:"has_changes"`
	Summary    string   `json:"summary"`
	Added      []Brief  `json:"added"`
	Removed    []Brief  `json:"removed"`
	Changed    []Change `json:"changed"`
}

// Diff compares two filtered-node lists by stable identity: the CSS selector
// string, anchored on data-bid. The walker re-stamps data-bid in document
// order on every walk, so a key matches across walks only while the element
// instance persists and no element before it was inserted or removed; hids
// additionally shift with the filtered tree. Nodes without a selector
// (synthetic placeholders) are
// excluded. Each category is capped at maxItems (<=0 means the default).
func Diff(before, after []Node, maxItems int) DiffResult {
	if maxItems <= 0 {
		maxItems = DefaultDiffMaxItems
	}
	bmap := bySelector(before)
	amap := bySelector(after)

	bkeys := mapset.NewSet[string]()
	for k := range bmap {
		bkeys.Add(k)
	}
	akeys := mapset.NewSet[string]()
	for k := range amap {
		akeys.Add(k)
	}

	addedKeys := sortedKeys(akeys.Difference(bkeys))
	removedKeys := sortedKeys(bkeys.Difference(akeys))
	commonKeys := sortedKeys(bkeys.Intersect(akeys))

	var added, removed []Brief
	for _, k := range addedKeys {
		added = append(added, brief(amap[k]))
	}
	for _, k := range removedKeys {
		removed = append(removed, brief(bmap[k]))
	}

	var changed []Change
	for _, key := range commonKeys {
		bn, an := bmap[key], amap[key]
		if bn.Hid != an.Hid {
			changed = append(changed, Change{
				Hid:    an.Hid,
				Tag:    an.Tag,
				Label:  truncateRunes(an.Label, 120),
				Field:  "hid",
				Before: bn.Hid,
				After:  an.Hid,
			})
		}
		if bn.Text != an.Text {
			label := an.Label
			if label == "" {
				label = an.Text
			}
			changed = append(changed, Change{
				Hid:    an.Hid,
				Tag:    an.Tag,
				Label:  truncateRunes(label, 120),
				Field:  "text",
				Before: truncateRunes(bn.Text, 80),
				After:  truncateRunes(an.Text, 80),
			})
		}
		for _, sk := range stateKeys(bn.State, an.State) {
			bv, av := bn.State[sk], an.State[sk]
			if bv == av {
				continue
			}
			changed = append(changed, Change{
				Hid:    an.Hid,
				Tag:    an.Tag,
				Label:  truncateRunes(an.Label, 120),
				Field:  "state." + sk,
				Before: bv,
				After:  av,
			})
		}
		if strings.Join(bn.Actions, "/") != strings.Join(an.Actions, "/") {
			changed = append(changed, Change{
				Hid:    an.Hid,
				Tag:    an.Tag,
				Label:  truncateRunes(an.Label, 120),
				Field:  "actions",
				Before: strings.Join(bn.Actions, "/"),
				After:  strings.Join(an.Actions, "/"),
			})
		}
	}

	var parts []string
	if len(added) > 0 {
		parts = append(parts, fmt.Sprintf("%d added", len(added)))
	}
	if len(removed) > 0 {
		parts = append(parts, fmt.Sprintf("%d removed", len(removed)))
	}
	if len(changed) > 0 {
		parts = append(parts, fmt.Sprintf("%d changes", len(changed)))
	}
	summary := "no changes"
	if len(parts) > 0 {
		summary = strings.Join(parts, ", ")
	}

	return DiffResult{
		HasChanges: len(added) > 0 || len(removed) > 0 || len(changed) > 0,
		Summary:    summary,
		Added:      capBriefs(added, maxItems),
		Removed:    capBriefs(removed, maxItems),
		Changed:    capChanges(changed, maxItems),
	}
}

func bySelector(nodes []Node) map[string]*Node {
	m := make(map[string]*Node, len(nodes))
	for i := range nodes {
		if sel := nodes[i].Selector; sel != "" {
			m[sel] = &nodes[i]
		}
	}
	return m
}

func sortedKeys(s mapset.Set[string]) []string {
	keys := s.ToSlice()
	sort.Strings(keys)
	return keys
}

func stateKeys(before, after map[string]string) []string {
	set := mapset.NewSet[string]()
	for k := range before {
		set.Add(k)
	}
	for k := range after {
		set.Add(k)
	}
	return sortedKeys(set)
}

func brief(n *Node) Brief {
	label := n.Label
	if label == "" {
		label = n.Text
	}
	return Brief{
		Hid:     n.Hid,
		Tag:     n.Tag,
		Label:   truncateRunes(label, 120),
		Actions: n.Actions,
	}
}

func capBriefs(items []Brief, max int) []Brief {
	if len(items) > max {
		return items[:max]
	}
	return items
}

func capChanges(items []Change, max int) []Change {
	if len(items) > max {
		return items[:max]
	}
	return items
}
