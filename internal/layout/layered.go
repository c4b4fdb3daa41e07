package layout

import (
	"github.com/organigram-api/internal/domain"
)

// Layered раскладывает лес по уровням обхода в ширину: корни на нулевом
// уровне, уровень узла равен его глубине BFS. Узлы одного уровня
// расставляются равномерно и центрируются относительно общей вертикали.
func Layered(ids []int64, edges []Edge, opts Options) (map[int64]Point, error) {
	if len(ids) == 0 {
		return map[int64]Point{}, nil
	}
	g := buildGraph(ids, edges)
	if len(g.roots) == 0 {
		return nil, domain.ErrNoRootNodes
	}

	depth := make(map[int64]int, len(ids))
	visited := make(map[int64]bool, len(ids))
	var levels [][]int64

	queue := make([]int64, 0, len(ids))
	for _, root := range g.roots {
		visited[root] = true
		depth[root] = 0
		queue = append(queue, root)
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		level := depth[id]
		for len(levels) <= level {
			levels = append(levels, nil)
		}
		levels[level] = append(levels[level], id)
		for _, c := range g.children[id] {
			if visited[c] {
				continue
			}
			visited[c] = true
			depth[c] = level + 1
			queue = append(queue, c)
		}
	}

	x := make(map[int64]float64, len(ids))
	for _, level := range levels {
		n := len(level)
		for i, id := range level {
			x[id] = float64(i) - float64(n-1)/2
		}
	}

	placeOrphans(g, x, depth)
	return scale(x, depth, opts), nil
}
