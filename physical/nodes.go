package physical

import (
	"fmt"
	"os"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"gopkg.in/yaml.v3"

	"github.com/cube2222/arrowexec/config"
	"github.com/cube2222/arrowexec/datasources/json"
	"github.com/cube2222/arrowexec/execution"
	"github.com/cube2222/arrowexec/nodes"
)

// Plan is a physical plan file.
type Plan struct {
	Parameters []Field `yaml:"parameters"`
	Root       Node    `yaml:"node"`
}

func ReadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("couldn't read plan file: %w", err)
	}
	return ParsePlan(data)
}

func ParsePlan(data []byte) (*Plan, error) {
	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("couldn't decode plan: %w", err)
	}
	return &plan, nil
}

// Environment returns the materialization environment for this plan.
func (plan *Plan) Environment(cfg *config.Config) (Environment, error) {
	parameters := make(map[string]arrow.DataType, len(plan.Parameters))
	for _, param := range plan.Parameters {
		dt, err := ParseType(param.Type)
		if err != nil {
			return Environment{}, fmt.Errorf("invalid type of parameter '%s': %w", param.Name, err)
		}
		parameters[param.Name] = dt
	}
	return Environment{
		Config:     cfg,
		Parameters: parameters,
	}, nil
}

type Environment struct {
	Config *config.Config
	// Parameters are the declared query parameters with their types.
	Parameters map[string]arrow.DataType
}

type NodeType string

const (
	NodeTypeJSON             NodeType = "json"
	NodeTypeValues           NodeType = "values"
	NodeTypeFilter           NodeType = "filter"
	NodeTypeMap              NodeType = "map"
	NodeTypeLimit            NodeType = "limit"
	NodeTypeMaxDiffWatermark NodeType = "max_diff_watermark"
	NodeTypeUnionAll         NodeType = "union_all"
)

type Node struct {
	NodeType NodeType
	// Only one of the below may be non-null.
	JSON             *JSON
	Values           *Values
	Filter           *Filter
	Map              *Map
	Limit            *Limit
	MaxDiffWatermark *MaxDiffWatermark
	UnionAll         *UnionAll
}

type JSON struct {
	Path   string  `yaml:"path"`
	Schema []Field `yaml:"schema"`
	// Tail keeps following the file for new lines, making the source unbounded.
	Tail bool `yaml:"tail"`
}

type Values struct {
	Schema  []Field       `yaml:"schema"`
	Batches []ValuesBatch `yaml:"batches"`
}

type ValuesBatch struct {
	Rows [][]interface{} `yaml:"rows"`
	// Watermark, if set, is sent after the rows of this batch.
	Watermark *time.Time `yaml:"watermark"`
}

type Filter struct {
	Predicate Expression `yaml:"predicate"`
	Source    Node       `yaml:"source"`
}

type Map struct {
	Fields []MapField `yaml:"fields"`
	Source Node       `yaml:"source"`
}

type MapField struct {
	Name       string     `yaml:"name"`
	Expression Expression `yaml:"expression"`
}

type Limit struct {
	Limit  int64 `yaml:"limit"`
	Source Node  `yaml:"source"`
}

type MaxDiffWatermark struct {
	TimeField     string        `yaml:"time_field"`
	MaxDifference time.Duration `yaml:"max_difference"`
	Source        Node          `yaml:"source"`
}

type UnionAll struct {
	Sources []Node `yaml:"sources"`
}

func (node *Node) UnmarshalYAML(value *yaml.Node) error {
	var header struct {
		Type NodeType `yaml:"type"`
	}
	if err := value.Decode(&header); err != nil {
		return err
	}

	node.NodeType = header.Type
	var err error
	switch header.Type {
	case NodeTypeJSON:
		node.JSON = &JSON{}
		err = value.Decode(node.JSON)
	case NodeTypeValues:
		node.Values = &Values{}
		err = value.Decode(node.Values)
	case NodeTypeFilter:
		node.Filter = &Filter{}
		err = value.Decode(node.Filter)
	case NodeTypeMap:
		node.Map = &Map{}
		err = value.Decode(node.Map)
	case NodeTypeLimit:
		node.Limit = &Limit{}
		err = value.Decode(node.Limit)
	case NodeTypeMaxDiffWatermark:
		node.MaxDiffWatermark = &MaxDiffWatermark{}
		err = value.Decode(node.MaxDiffWatermark)
	case NodeTypeUnionAll:
		node.UnionAll = &UnionAll{}
		err = value.Decode(node.UnionAll)
	default:
		return fmt.Errorf("line %d: unknown node type '%s'", value.Line, header.Type)
	}
	if err != nil {
		return fmt.Errorf("couldn't decode %s node: %w", header.Type, err)
	}
	return nil
}

func (node *Node) Materialize(env Environment) (execution.Node, error) {
	switch node.NodeType {
	case NodeTypeJSON:
		schema, err := SchemaFromFields(node.JSON.Schema)
		if err != nil {
			return nil, fmt.Errorf("invalid json source schema: %w", err)
		}
		return json.NewDatasourceExecuting(node.JSON.Path, schema, env.Config.Execution.BatchSize, node.JSON.Tail), nil

	case NodeTypeValues:
		schema, err := SchemaFromFields(node.Values.Schema)
		if err != nil {
			return nil, fmt.Errorf("invalid values schema: %w", err)
		}
		items, err := valuesStreamItems(schema, node.Values.Batches)
		if err != nil {
			return nil, fmt.Errorf("invalid values: %w", err)
		}
		return nodes.NewInMemoryStream(schema, items), nil

	case NodeTypeFilter:
		source, err := node.Filter.Source.Materialize(env)
		if err != nil {
			return nil, fmt.Errorf("couldn't materialize filter source: %w", err)
		}
		predicate, predicateType, err := node.Filter.Predicate.Materialize(env, source.LogicalMetadata().Schema)
		if err != nil {
			return nil, fmt.Errorf("couldn't materialize filter predicate: %w", err)
		}
		if predicateType.ID() != arrow.BOOL {
			return nil, &execution.TypeMismatchError{
				Context:  "filter predicate",
				Expected: arrow.FixedWidthTypes.Boolean,
				Actual:   predicateType,
			}
		}
		if env.Config.Execution.RebatchFilter {
			return nodes.NewRebatchingFilter(source, predicate, env.Config.Execution.BatchSize), nil
		}
		return nodes.NewFilter(source, predicate), nil

	case NodeTypeMap:
		source, err := node.Map.Source.Materialize(env)
		if err != nil {
			return nil, fmt.Errorf("couldn't materialize map source: %w", err)
		}
		sourceSchema := source.LogicalMetadata().Schema
		exprs := make([]execution.Expression, len(node.Map.Fields))
		fields := make([]arrow.Field, len(node.Map.Fields))
		for i, field := range node.Map.Fields {
			expr, dt, err := field.Expression.Materialize(env, sourceSchema)
			if err != nil {
				return nil, fmt.Errorf("couldn't materialize map expression '%s': %w", field.Name, err)
			}
			exprs[i] = expr
			fields[i] = arrow.Field{Name: field.Name, Type: dt, Nullable: true}
		}
		return nodes.NewMap(arrow.NewSchema(fields, nil), source, exprs)

	case NodeTypeLimit:
		source, err := node.Limit.Source.Materialize(env)
		if err != nil {
			return nil, fmt.Errorf("couldn't materialize limit source: %w", err)
		}
		return nodes.NewLimit(source, node.Limit.Limit), nil

	case NodeTypeMaxDiffWatermark:
		source, err := node.MaxDiffWatermark.Source.Materialize(env)
		if err != nil {
			return nil, fmt.Errorf("couldn't materialize watermark source: %w", err)
		}
		schema := source.LogicalMetadata().Schema
		indices := schema.FieldIndices(node.MaxDiffWatermark.TimeField)
		if len(indices) == 0 {
			return nil, fmt.Errorf("unknown time field '%s', available columns: %v", node.MaxDiffWatermark.TimeField, fieldNames(schema))
		}
		return nodes.NewMaxDifferenceWatermark(source, node.MaxDiffWatermark.MaxDifference, indices[0])

	case NodeTypeUnionAll:
		sources := make([]execution.Node, len(node.UnionAll.Sources))
		for i := range node.UnionAll.Sources {
			source, err := node.UnionAll.Sources[i].Materialize(env)
			if err != nil {
				return nil, fmt.Errorf("couldn't materialize union all source %d: %w", i, err)
			}
			sources[i] = source
		}
		return nodes.NewUnionAll(sources)
	}

	return nil, fmt.Errorf("unknown node type '%s'", node.NodeType)
}
