package layout

import (
	"github.com/organigram-api/internal/domain"
)

// Subtree раскладывает лес методом центрирования поддеревьев. Обход
// в пост-порядке: лист занимает один шаг сетки, родитель центрируется над
// крайними детьми. Пересечение соседних поддеревьев обнаруживается
// сравнением правого контура уже размещённых братьев с левым контуром
// нового поддерева; при пересечении всё правое поддерево сдвигается
// вправо целиком, после чего родитель центрируется заново.
//
// Пустой набор узлов - не ошибка. Отсутствие корней при непустом наборе
// означает цикл и возвращает domain.ErrNoRootNodes.
func Subtree(ids []int64, edges []Edge, opts Options) (map[int64]Point, error) {
	if len(ids) == 0 {
		return map[int64]Point{}, nil
	}
	g := buildGraph(ids, edges)
	if len(g.roots) == 0 {
		return nil, domain.ErrNoRootNodes
	}

	x := make(map[int64]float64, len(ids))
	depth := make(map[int64]int, len(ids))
	visited := make(map[int64]bool, len(ids))
	// дерево размещения: дети, реально посещённые из данного узла;
	// в отличие от g.children оно гарантированно ациклично
	kids := make(map[int64][]int64, len(ids))

	var place func(id int64, level int) (left, right []float64)
	place = func(id int64, level int) ([]float64, []float64) {
		visited[id] = true
		depth[id] = level

		var children []int64
		for _, c := range g.children[id] {
			if !visited[c] {
				children = append(children, c)
			}
		}
		kids[id] = children
		if len(children) == 0 {
			x[id] = 0
			return []float64{0}, []float64{0}
		}

		var accLeft, accRight []float64
		for i, child := range children {
			l, r := place(child, level+1)
			if i == 0 {
				accLeft, accRight = l, r
				continue
			}
			// требуемый сдвиг: правое поддерево должно отстоять от уже
			// размещённых минимум на один шаг сетки на каждом общем уровне
			shift := 0.0
			for k := 0; k < len(accRight) && k < len(l); k++ {
				if need := accRight[k] + 1 - l[k]; need > shift {
					shift = need
				}
			}
			if shift > 0 {
				shiftSubtree(kids, x, child, shift)
				for k := range l {
					l[k] += shift
					r[k] += shift
				}
			}
			accLeft, accRight = mergeContours(accLeft, accRight, l, r)
		}

		x[id] = (x[children[0]] + x[children[len(children)-1]]) / 2
		left := append([]float64{x[id]}, accLeft...)
		right := append([]float64{x[id]}, accRight...)
		return left, right
	}

	var forestRight []float64
	for _, root := range g.roots {
		l, r := place(root, 0)
		if forestRight == nil {
			forestRight = r
			continue
		}
		shift := 0.0
		for k := 0; k < len(forestRight) && k < len(l); k++ {
			if need := forestRight[k] + 1 - l[k]; need > shift {
				shift = need
			}
		}
		if shift > 0 {
			shiftSubtree(kids, x, root, shift)
			for k := range r {
				r[k] += shift
			}
		}
		_, forestRight = mergeContours(nil, forestRight, nil, r)
	}

	placeOrphans(g, x, depth)
	return scale(x, depth, opts), nil
}

// shiftSubtree сдвигает узел и всех его потомков по дереву размещения
// на delta единиц вправо
func shiftSubtree(kids map[int64][]int64, x map[int64]float64, id int64, delta float64) {
	x[id] += delta
	for _, c := range kids[id] {
		shiftSubtree(kids, x, c, delta)
	}
}

// mergeContours объединяет контуры размещённых поддеревьев с контурами
// только что добавленного правого поддерева
func mergeContours(accLeft, accRight, left, right []float64) ([]float64, []float64) {
	for k := 0; k < len(left); k++ {
		if k < len(accLeft) {
			if left[k] < accLeft[k] {
				accLeft[k] = left[k]
			}
		} else {
			accLeft = append(accLeft, left[k])
		}
	}
	for k := 0; k < len(right); k++ {
		if k < len(accRight) {
			if right[k] > accRight[k] {
				accRight[k] = right[k]
			}
		} else {
			accRight = append(accRight, right[k])
		}
	}
	return accLeft, accRight
}
