package filter

// Node is a node in the parsed query tree.
type Node interface {
	node()
}

// Equality represents a plain field/value pair, e.g. {"device": "s1"}.
type Equality struct {
	Field string
	Value any
}

func (*Equality) node() {}

// Op is a comparison operator drawn from the closed set the query object
// model supports.
type Op string

const (
	OpEq  Op = "$eq"
	OpNe  Op = "$ne"
	OpLt  Op = "$lt"
	OpLte Op = "$lte"
	OpGt  Op = "$gt"
	OpGte Op = "$gte"
	OpIn  Op = "$in"
	OpNin Op = "$nin"
)

// Operator represents one operator entry of an operator object,
// e.g. the $gt of {"temperature": {"$gt": 20}}. For $in/$nin the value is
// a list.
type Operator struct {
	Field string
	Op    Op
	Value any
}

func (*Operator) node() {}

// CombinatorKind is the logical composition of a Combinator's children.
type CombinatorKind int

const (
	And CombinatorKind = iota
	Or
)

// Combinator represents $and/$or over an ordered list of child trees. An
// implicit And is also used when a query object holds several entries.
type Combinator struct {
	Kind     CombinatorKind
	Children []Node
}

func (*Combinator) node() {}
