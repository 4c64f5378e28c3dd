package physical

import (
	"fmt"

	"github.com/cube2222/arrowexec/graph"
)

func DescribeNode(node Node) *graph.Node {
	var out *graph.Node
	switch node.NodeType {
	case NodeTypeJSON:
		out = graph.NewNode("json")
		out.AddField("path", node.JSON.Path)
		if node.JSON.Tail {
			out.AddField("tail", "true")
		}
		describeSchema(out, node.JSON.Schema)

	case NodeTypeValues:
		out = graph.NewNode("values")
		describeSchema(out, node.Values.Schema)
		var rows, watermarks int
		for _, batch := range node.Values.Batches {
			rows += len(batch.Rows)
			if batch.Watermark != nil {
				watermarks++
			}
		}
		out.AddField("rows", fmt.Sprint(rows))
		out.AddField("watermarks", fmt.Sprint(watermarks))

	case NodeTypeFilter:
		out = graph.NewNode("filter")
		out.AddChild("predicate", DescribeExpr(node.Filter.Predicate))
		out.AddChild("source", DescribeNode(node.Filter.Source))

	case NodeTypeMap:
		out = graph.NewNode("map")
		for i := range node.Map.Fields {
			out.AddChild(node.Map.Fields[i].Name, DescribeExpr(node.Map.Fields[i].Expression))
		}
		out.AddChild("source", DescribeNode(node.Map.Source))

	case NodeTypeLimit:
		out = graph.NewNode("limit")
		out.AddField("limit", fmt.Sprint(node.Limit.Limit))
		out.AddChild("source", DescribeNode(node.Limit.Source))

	case NodeTypeMaxDiffWatermark:
		out = graph.NewNode("max difference watermark")
		out.AddField("time field", node.MaxDiffWatermark.TimeField)
		out.AddField("max difference", node.MaxDiffWatermark.MaxDifference.String())
		out.AddChild("source", DescribeNode(node.MaxDiffWatermark.Source))

	case NodeTypeUnionAll:
		out = graph.NewNode("union all")
		for i := range node.UnionAll.Sources {
			out.AddChild(fmt.Sprintf("source_%d", i), DescribeNode(node.UnionAll.Sources[i]))
		}

	default:
		out = graph.NewNode("invalid")
		out.AddField("type", string(node.NodeType))
	}

	return out
}

func describeSchema(out *graph.Node, fields []Field) {
	for _, field := range fields {
		out.AddField(field.Name, field.Type)
	}
}

func DescribeExpr(expr Expression) *graph.Node {
	var out *graph.Node
	switch expr.Type {
	case ExpressionTypeColumn:
		out = graph.NewNode("column")
		out.AddField("name", expr.Name)

	case ExpressionTypeConstant:
		out = graph.NewNode("constant")
		out.AddField("value", fmt.Sprint(expr.Value))

	case ExpressionTypeParameter:
		out = graph.NewNode("parameter")
		out.AddField("name", expr.Name)

	case ExpressionTypeFunction:
		out = graph.NewNode("function")
		out.AddField(expr.Name, "")
		for i := range expr.Args {
			out.AddChild(fmt.Sprintf("arg_%d", i), DescribeExpr(expr.Args[i]))
		}

	default:
		out = graph.NewNode("invalid")
		out.AddField("type", string(expr.Type))
	}

	return out
}
