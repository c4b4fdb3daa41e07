// Package layout вычисляет координаты узлов иерархической схемы.
// Алгоритмы чистые: на входе узлы и рёбра родитель-потомок, на выходе
// карта координат; записью в хранилище занимается сервисный слой.
package layout

// Edge - направленная связь родитель-потомок
type Edge struct {
	Source int64
	Target int64
}

// Point - вычисленные координаты узла
type Point struct {
	X float64
	Y float64
}

// Options задаёт геометрию сетки раскладки
type Options struct {
	NodeWidth float64
	Padding   float64
	VSpacing  float64
	BaseX     float64
	BaseY     float64
}

// Unit - горизонтальный шаг сетки: ширина узла плюс зазор
func (o Options) Unit() float64 {
	return o.NodeWidth + o.Padding
}

// PositionOptions - сетка раскладки должностей внутри структуры
func PositionOptions() Options {
	return Options{NodeWidth: 200, Padding: 100, VSpacing: 250, BaseX: 100, BaseY: 100}
}

// DiagramOptions - сетка раскладки диаграммы структур
func DiagramOptions() Options {
	return Options{NodeWidth: 400, Padding: 0, VSpacing: 400, BaseX: 0, BaseY: 0}
}

// graph - подготовленная смежность: дети в порядке появления рёбер,
// корни - узлы без входящего ребра
type graph struct {
	nodes    []int64
	children map[int64][]int64
	hasIn    map[int64]bool
	roots    []int64
}

func buildGraph(ids []int64, edges []Edge) *graph {
	g := &graph{
		nodes:    ids,
		children: make(map[int64][]int64),
		hasIn:    make(map[int64]bool),
	}
	present := make(map[int64]bool, len(ids))
	for _, id := range ids {
		present[id] = true
	}
	seen := make(map[Edge]bool, len(edges))
	for _, e := range edges {
		if e.Source == e.Target || !present[e.Source] || !present[e.Target] || seen[e] {
			continue
		}
		seen[e] = true
		g.children[e.Source] = append(g.children[e.Source], e.Target)
		g.hasIn[e.Target] = true
	}
	for _, id := range ids {
		if !g.hasIn[id] {
			g.roots = append(g.roots, id)
		}
	}
	return g
}

// scale переводит координаты из единиц сетки в пиксели и сдвигает лес так,
// чтобы минимальный x был равен нулю
func scale(x map[int64]float64, depth map[int64]int, opts Options) map[int64]Point {
	minX := 0.0
	first := true
	for _, v := range x {
		if first || v < minX {
			minX = v
			first = false
		}
	}
	out := make(map[int64]Point, len(x))
	for id, v := range x {
		out[id] = Point{
			X: opts.BaseX + (v-minX)*opts.Unit(),
			Y: opts.BaseY + float64(depth[id])*opts.VSpacing,
		}
	}
	return out
}

// placeOrphans размещает узлы, не достижимые из корней (остатки циклов),
// одним рядом справа от леса на базовом уровне
func placeOrphans(g *graph, x map[int64]float64, depth map[int64]int) {
	maxX := 0.0
	for _, v := range x {
		if v > maxX {
			maxX = v
		}
	}
	next := maxX + 2
	for _, id := range g.nodes {
		if _, ok := x[id]; ok {
			continue
		}
		x[id] = next
		depth[id] = 0
		next++
	}
}
