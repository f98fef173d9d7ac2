// Package dot renders ownership structures as Graphviz DOT text. It keeps
// the register tooling's drawing conventions: companies as teal boxes keyed
// ICO_<ico>, foreign subjects as orange boxes keyed FID_<id>, persons as
// black ellipses with wrapped left-aligned HTML labels, edges drawn with
// reversed arrowheads, and one rank bucket per level.
package dot

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"html"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jakubhajek6/mdg-ubo-tool/internal/ownership/ico"
)

const (
	companyFill = "#2EA39C"
	foreignFill = "#E67E22"
	personFill  = "#000000"

	personWidth      = "2.0"
	basePersonHeight = 0.80
	lineHeightIn     = 0.18
	wrapMaxChars     = 22
)

var bareID = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

type attribute struct {
	key   string
	value string
	// raw values are emitted without quoting, used for HTML labels
	raw bool
}

type node struct {
	id    string
	attrs []attribute
}

type edgeKey struct {
	tail string
	head string
}

// Graph accumulates nodes and edges and serializes them as a DOT document.
// Nodes are deduplicated by id, edges by (tail, head) with the label filled
// in or replaced when a later occurrence carries one.
type Graph struct {
	title  string
	nodes  []node
	seen   map[string]bool
	levels map[string]int
	edges  []edgeKey
	labels map[edgeKey]string
}

// NewGraph creates an empty graph. An empty title falls back to "Ownership".
func NewGraph(title string) *Graph {
	if title == "" {
		title = "Ownership"
	}
	return &Graph{
		title:  title,
		seen:   make(map[string]bool),
		levels: make(map[string]int),
		labels: make(map[edgeKey]string),
	}
}

// CompanyNodeID returns the node id a company gets in the graph.
func CompanyNodeID(companyIco string) string {
	return "ICO_" + ico.Normalize(companyIco)
}

// ForeignNodeID returns the node id a foreign subject gets in the graph.
func ForeignNodeID(fid string) string {
	return "FID_" + normalizeFID(fid)
}

// AddCompany adds a company box. Re-adding the same ico keeps the first
// label but can still move the node to a deeper level.
func (g *Graph) AddCompany(companyIco, name string, level int) string {
	companyIco = ico.Normalize(companyIco)
	id := CompanyNodeID(companyIco)
	g.addNode(id, level, []attribute{
		{key: "label", value: fmt.Sprintf("%s\n(IČO %s)", name, companyIco)},
		{key: "shape", value: "box"},
		{key: "style", value: "filled"},
		{key: "fillcolor", value: companyFill},
		{key: "color", value: companyFill},
	})
	return id
}

// AddForeign adds a box for a foreign subject identified by its register id.
func (g *Graph) AddForeign(fid, name string, level int) string {
	fid = normalizeFID(fid)
	id := ForeignNodeID(fid)
	g.addNode(id, level, []attribute{
		{key: "label", value: fmt.Sprintf("%s\n(ID %s)", name, fid)},
		{key: "shape", value: "box"},
		{key: "style", value: "filled"},
		{key: "fillcolor", value: foreignFill},
		{key: "color", value: foreignFill},
	})
	return id
}

// AddPerson adds a fixed-width ellipse for a natural person. The node id is
// derived from key, so the caller decides which occurrences collapse into
// one node. Height grows with the number of wrapped label lines.
func (g *Graph) AddPerson(label, key string, level int) string {
	sum := sha1.Sum([]byte(key))
	id := "P_" + hex.EncodeToString(sum[:])[:12]

	lines := wrapText(label, wrapMaxChars)
	n := len(lines)
	if n < 1 {
		n = 1
	}
	height := basePersonHeight + float64(n-1)*lineHeightIn

	g.addNode(id, level, []attribute{
		{key: "label", value: htmlLabel(lines), raw: true},
		{key: "shape", value: "ellipse"},
		{key: "style", value: "filled"},
		{key: "fillcolor", value: personFill},
		{key: "color", value: personFill},
		{key: "fixedsize", value: "true"},
		{key: "width", value: personWidth},
		{key: "height", value: strconv.FormatFloat(height, 'f', 2, 64)},
		{key: "penwidth", value: "1"},
	})
	return id
}

// AddEdge records an edge from tail to head. Self-loops and blank endpoints
// are dropped. A repeated edge is emitted once; a non-empty label from any
// occurrence wins over an earlier empty one.
func (g *Graph) AddEdge(tail, head, label string) {
	if tail == "" || head == "" || tail == head {
		return
	}
	key := edgeKey{tail: tail, head: head}
	if _, ok := g.labels[key]; !ok {
		g.edges = append(g.edges, key)
		g.labels[key] = ""
	}
	if trimmed := strings.TrimSpace(label); trimmed != "" {
		g.labels[key] = trimmed
	}
}

func (g *Graph) addNode(id string, level int, attrs []attribute) {
	if !g.seen[id] {
		g.seen[id] = true
		g.nodes = append(g.nodes, node{id: id, attrs: attrs})
		g.levels[id] = level
		return
	}
	// a node referenced again deeper in the structure sinks to that level
	if level > g.levels[id] {
		g.levels[id] = level
	}
}

// String serializes the graph as a DOT document. Nodes and edges keep
// insertion order; rank buckets are emitted per level so companies and
// their owners land on separate rows.
func (g *Graph) String() string {
	var b strings.Builder
	b.WriteString("digraph ownership {\n")
	fmt.Fprintf(&b, "\tlabel=%s;\n", quote(g.title))
	b.WriteString("\tlabelloc=\"t\";\n")
	b.WriteString("\tfontsize=\"20\";\n")
	b.WriteString("\trankdir=\"TB\";\n")
	b.WriteString("\tsplines=\"true\";\n")
	b.WriteString("\toverlap=\"false\";\n")
	b.WriteString("\tfontname=\"Helvetica\";\n")
	b.WriteString("\tranksep=\"0.7\";\n")
	b.WriteString("\tnodesep=\"0.35\";\n")
	b.WriteString("\tnode [fontcolor=\"white\", fontname=\"Helvetica\", fontsize=\"10\", margin=\"0.05,0.04\"];\n")
	b.WriteString("\tedge [dir=\"back\", color=\"gray40\", fontname=\"Helvetica\", fontsize=\"10\", fontcolor=\"black\"];\n")

	for _, n := range g.nodes {
		fmt.Fprintf(&b, "\t%s [", identifier(n.id))
		for i, a := range n.attrs {
			if i > 0 {
				b.WriteString(", ")
			}
			if a.raw {
				fmt.Fprintf(&b, "%s=%s", a.key, a.value)
			} else {
				fmt.Fprintf(&b, "%s=%s", a.key, quote(a.value))
			}
		}
		b.WriteString("];\n")
	}

	for _, key := range g.edges {
		if label := g.labels[key]; label != "" {
			fmt.Fprintf(&b, "\t%s -> %s [label=%s];\n", identifier(key.tail), identifier(key.head), quote(label))
		} else {
			fmt.Fprintf(&b, "\t%s -> %s;\n", identifier(key.tail), identifier(key.head))
		}
	}

	byLevel := make(map[int][]string)
	for _, n := range g.nodes {
		lvl := g.levels[n.id]
		byLevel[lvl] = append(byLevel[lvl], n.id)
	}
	levels := make([]int, 0, len(byLevel))
	for lvl := range byLevel {
		levels = append(levels, lvl)
	}
	sort.Ints(levels)
	for _, lvl := range levels {
		fmt.Fprintf(&b, "\tsubgraph rank_%d {\n", lvl)
		b.WriteString("\t\trank=\"same\";\n")
		for _, id := range byLevel[lvl] {
			fmt.Fprintf(&b, "\t\t%s;\n", identifier(id))
		}
		b.WriteString("\t}\n")
	}

	b.WriteString("}\n")
	return b.String()
}

func normalizeFID(fid string) string {
	return strings.ToUpper(strings.TrimSpace(fid))
}

func identifier(id string) string {
	if bareID.MatchString(id) {
		return id
	}
	return quote(id)
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return `"` + s + `"`
}

// wrapText greedily wraps words so no line exceeds maxChars characters,
// counted in runes so diacritics do not skew the width.
func wrapText(text string, maxChars int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var lines []string
	var cur []string
	curLen := 0
	for _, w := range words {
		wlen := len([]rune(w))
		switch {
		case curLen == 0:
			cur = append(cur, w)
			curLen = wlen
		case curLen+1+wlen <= maxChars:
			cur = append(cur, w)
			curLen += 1 + wlen
		default:
			lines = append(lines, strings.Join(cur, " "))
			cur = []string{w}
			curLen = wlen
		}
	}
	if len(cur) > 0 {
		lines = append(lines, strings.Join(cur, " "))
	}
	return lines
}

func htmlLabel(lines []string) string {
	if len(lines) == 0 {
		lines = []string{""}
	}
	var b strings.Builder
	b.WriteString("<\n<TABLE BORDER=\"0\" CELLBORDER=\"0\" CELLPADDING=\"0\" CELLSPACING=\"0\">\n")
	for _, line := range lines {
		fmt.Fprintf(&b, "  <TR><TD ALIGN=\"LEFT\"><FONT FACE=\"Helvetica\" POINT-SIZE=\"10\" COLOR=\"white\">%s</FONT></TD></TR>\n", html.EscapeString(line))
	}
	b.WriteString("</TABLE>\n>")
	return b.String()
}
