package servicegraph

// Strategy selects how the manager resolves the neighbours of a service while
// propagating a cascade. Both strategies yield the same behaviour; they only
// trade construction work for evaluation work.
type Strategy interface {
	// Name is used in the logs.
	Name() string
	evaluator(g *Graph) evaluator
}

// evaluator answers adjacency queries by node index.
type evaluator interface {
	requires(i int) []int
	requiredBy(i int) []int
}

// Interpreted resolves edges by id through the graph index on every
// evaluation.
func Interpreted() Strategy {
	return interpreted{}
}

// Compiled resolves every edge once, when the manager is created, into dense
// index slices.
func Compiled() Strategy {
	return compiled{}
}

// StrategyByName returns the strategy with the given name, or false.
func StrategyByName(name string) (Strategy, bool) {
	switch name {
	case "interpreted":
		return Interpreted(), true
	case "compiled":
		return Compiled(), true
	default:
		return nil, false
	}
}

type interpreted struct{}

func (interpreted) Name() string { return "interpreted" }

func (interpreted) evaluator(g *Graph) evaluator {
	return &interpreter{graph: g}
}

type interpreter struct {
	graph *Graph
}

func (e *interpreter) requires(i int) []int {
	return e.resolve(e.graph.nodes[i].requires)
}

func (e *interpreter) requiredBy(i int) []int {
	return e.resolve(e.graph.nodes[i].requiredBy)
}

func (e *interpreter) resolve(ids []string) []int {
	res := make([]int, len(ids))
	for i, id := range ids {
		res[i] = e.graph.index[id]
	}
	return res
}

type compiled struct{}

func (compiled) Name() string { return "compiled" }

func (compiled) evaluator(g *Graph) evaluator {
	interp := &interpreter{graph: g}
	p := &program{
		req:   make([][]int, len(g.nodes)),
		reqBy: make([][]int, len(g.nodes)),
	}
	for i := range g.nodes {
		p.req[i] = interp.requires(i)
		p.reqBy[i] = interp.requiredBy(i)
	}
	return p
}

type program struct {
	req   [][]int
	reqBy [][]int
}

func (p *program) requires(i int) []int   { return p.req[i] }
func (p *program) requiredBy(i int) []int { return p.reqBy[i] }
