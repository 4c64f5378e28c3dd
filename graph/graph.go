// Package graph describes plan trees for explain output and renders them as Graphviz dot.
package graph

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/awalterschulze/gographviz"
)

type Field struct {
	Name, Value string
}

type Child struct {
	Name string
	Node *Node
}

type Node struct {
	Name     string
	Fields   []Field
	Children []Child
}

func NewNode(name string) *Node {
	return &Node{
		Name: name,
	}
}

func (n *Node) AddField(name, value string) {
	n.Fields = append(n.Fields, Field{
		Name:  name,
		Value: value,
	})
}

func (n *Node) AddChild(name string, node *Node) {
	n.Children = append(n.Children, Child{
		Name: name,
		Node: node,
	})
}

// Show builds a left-to-right directed graph with one record-shaped graphviz node per tree node.
func Show(node *Node) (*gographviz.Graph, error) {
	graph := gographviz.NewGraph()
	if err := graph.SetDir(true); err != nil {
		return nil, err
	}
	if err := graph.AddAttr("", "rankdir", "LR"); err != nil {
		return nil, err
	}
	builder := &graphBuilder{
		graph:        graph,
		nameCounters: make(map[string]int),
	}

	if _, err := builder.addNode(node); err != nil {
		return nil, err
	}
	return graph, nil
}

type graphBuilder struct {
	graph        *gographviz.Graph
	nameCounters map[string]int
}

func (gb *graphBuilder) getID(name string) string {
	count := gb.nameCounters[name]
	gb.nameCounters[name]++
	return fmt.Sprintf("%s_%d", identifier(name), count)
}

// identifier turns a name into a valid unquoted dot identifier.
func identifier(name string) string {
	out := []rune(name)
	for i, r := range out {
		if !(r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)) {
			out[i] = '_'
		}
	}
	if len(out) == 0 || unicode.IsDigit(out[0]) {
		return "n_" + string(out)
	}
	return string(out)
}

func (gb *graphBuilder) addNode(node *Node) (string, error) {
	var labelParts []string
	labelParts = append(labelParts, fmt.Sprintf("<f0> %s", escape(node.Name)))

	if len(node.Fields) > 0 {
		fields := make([]string, len(node.Fields))
		for i, field := range node.Fields {
			fields[i] = fmt.Sprintf("%s: %s", escape(field.Name), escape(field.Value))
		}
		labelParts = append(labelParts, strings.Join(fields, "|"))
	}
	if len(node.Children) > 0 {
		childPorts := make([]string, len(node.Children))
		for i, child := range node.Children {
			childPorts[i] = fmt.Sprintf("<%s> %s", portName(i), escape(child.Name))
		}
		labelParts = append(labelParts, strings.Join(childPorts, "|"))
	}

	id := gb.getID(node.Name)
	if err := gb.graph.AddNode("", id, map[string]string{
		"shape": "record",
		"label": fmt.Sprintf("\"{{%s}}\"", strings.Join(labelParts, "}|{")),
	}); err != nil {
		return "", fmt.Errorf("couldn't add node %s: %w", id, err)
	}

	for i, child := range node.Children {
		childID, err := gb.addNode(child.Node)
		if err != nil {
			return "", err
		}
		if err := gb.graph.AddPortEdge(id, portName(i), childID, "", true, nil); err != nil {
			return "", fmt.Errorf("couldn't add edge from %s to %s: %w", id, childID, err)
		}
	}
	return id, nil
}

func portName(childIndex int) string {
	return fmt.Sprintf("c%d", childIndex)
}

var labelEscaper = strings.NewReplacer(
	`"`, `\"`,
	"{", `\{`,
	"}", `\}`,
	"|", `\|`,
	"<", `\<`,
	">", `\>`,
)

func escape(s string) string {
	return labelEscaper.Replace(s)
}
