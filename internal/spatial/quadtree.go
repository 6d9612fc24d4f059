package spatial

import "math"

// Quadtree is a point quadtree over values of type T. Internal nodes split their square
// extent into four quadrants; leaves hold a chain of points sharing the same coordinates.
// Points with NaN or infinite coordinates are ignored.
type Quadtree[T any] struct {
	x  func(T) float64
	y  func(T) float64
	x0 float64
	y0 float64
	x1 float64
	y1 float64

	root *Node[T]
	size int
}

// Node is either internal (children set) or a leaf (one or more co-located points)
type Node[T any] struct {
	children [4]*Node[T]
	leaf     *leafPoint[T]
}

type leafPoint[T any] struct {
	data T
	x, y float64
	next *leafPoint[T]
}

// IsLeaf reports whether n holds points rather than children
func (n *Node[T]) IsLeaf() bool {
	return n.leaf != nil
}

// Each calls fn for every point chained on a leaf
func (n *Node[T]) Each(fn func(data T, x, y float64)) {
	for p := n.leaf; p != nil; p = p.next {
		fn(p.data, p.x, p.y)
	}
}

// NewQuadtree builds a quadtree over data using the given coordinate accessors
func NewQuadtree[T any](x, y func(T) float64, data []T) *Quadtree[T] {
	q := &Quadtree[T]{x: x, y: y, x0: math.NaN(), y0: math.NaN(), x1: math.NaN(), y1: math.NaN()}
	q.AddAll(data)
	return q
}

// Size is the number of indexed points
func (q *Quadtree[T]) Size() int {
	return q.size
}

// Extent returns the square covered by the root node
func (q *Quadtree[T]) Extent() (x0, y0, x1, y1 float64) {
	return q.x0, q.y0, q.x1, q.y1
}

// AddAll covers the bounds of data once and inserts every point
func (q *Quadtree[T]) AddAll(data []T) {
	xs := make([]float64, len(data))
	ys := make([]float64, len(data))
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for i, d := range data {
		x, y := q.x(d), q.y(d)
		xs[i], ys[i] = x, y
		if !finitePoint(x, y) {
			continue
		}
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}
	if minX > maxX || minY > maxY {
		return
	}
	q.cover(minX, minY)
	q.cover(maxX, maxY)
	for i, d := range data {
		q.add(xs[i], ys[i], d)
	}
}

// Add inserts one point, growing the extent when needed
func (q *Quadtree[T]) Add(d T) {
	x, y := q.x(d), q.y(d)
	if !finitePoint(x, y) {
		return
	}
	q.cover(x, y)
	q.add(x, y, d)
}

// cover doubles the root extent until it contains (x, y)
func (q *Quadtree[T]) cover(x, y float64) {
	if !finitePoint(x, y) {
		return
	}
	if math.IsNaN(q.x0) {
		q.x0, q.y0 = math.Floor(x), math.Floor(y)
		q.x1, q.y1 = q.x0+1, q.y0+1
		return
	}

	z := q.x1 - q.x0
	if z == 0 {
		z = 1
	}
	node := q.root
	grew := false
	for q.x0 > x || x >= q.x1 || q.y0 > y || y >= q.y1 {
		i := 0
		if y < q.y0 {
			i |= 2
		}
		if x < q.x0 {
			i |= 1
		}
		parent := &Node[T]{}
		parent.children[i] = node
		node = parent
		grew = true
		z *= 2
		switch i {
		case 0:
			q.x1, q.y1 = q.x0+z, q.y0+z
		case 1:
			q.x0, q.y1 = q.x1-z, q.y0+z
		case 2:
			q.x1, q.y0 = q.x0+z, q.y1-z
		case 3:
			q.x0, q.y0 = q.x1-z, q.y1-z
		}
	}
	// a lone leaf needs no wrapping
	if grew && q.root != nil && !q.root.IsLeaf() {
		q.root = node
	}
}

func (q *Quadtree[T]) add(x, y float64, d T) {
	if !finitePoint(x, y) {
		return
	}
	q.size++
	lp := &leafPoint[T]{data: d, x: x, y: y}
	leaf := &Node[T]{leaf: lp}

	if q.root == nil {
		q.root = leaf
		return
	}

	x0, y0, x1, y1 := q.x0, q.y0, q.x1, q.y1
	var parent *Node[T]
	node := q.root
	i := 0
	for !node.IsLeaf() {
		xm, ym := (x0+x1)/2, (y0+y1)/2
		i = 0
		if x >= xm {
			x0 = xm
			i |= 1
		} else {
			x1 = xm
		}
		if y >= ym {
			y0 = ym
			i |= 2
		} else {
			y1 = ym
		}
		parent = node
		node = node.children[i]
		if node == nil {
			parent.children[i] = leaf
			return
		}
	}

	xp, yp := node.leaf.x, node.leaf.y
	if x == xp && y == yp {
		lp.next = node.leaf
		node.leaf = lp
		return
	}

	// split until the two points fall in different quadrants
	for {
		next := &Node[T]{}
		if parent == nil {
			q.root = next
		} else {
			parent.children[i] = next
		}
		parent = next

		xm, ym := (x0+x1)/2, (y0+y1)/2
		i = 0
		if x >= xm {
			x0 = xm
			i |= 1
		} else {
			x1 = xm
		}
		if y >= ym {
			y0 = ym
			i |= 2
		} else {
			y1 = ym
		}
		j := 0
		if xp >= xm {
			j |= 1
		}
		if yp >= ym {
			j |= 2
		}
		if i != j {
			parent.children[j] = node
			parent.children[i] = leaf
			return
		}
	}
}

func finitePoint(x, y float64) bool {
	return !math.IsNaN(x) && !math.IsNaN(y) && !math.IsInf(x, 0) && !math.IsInf(y, 0)
}

// Visit walks the tree in pre-order. Returning true from fn skips the node's children.
func (q *Quadtree[T]) Visit(fn func(n *Node[T], x0, y0, x1, y1 float64) bool) {
	if q.root == nil {
		return
	}
	type quad struct {
		n              *Node[T]
		x0, y0, x1, y1 float64
	}
	stack := []quad{{q.root, q.x0, q.y0, q.x1, q.y1}}
	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if fn(c.n, c.x0, c.y0, c.x1, c.y1) || c.n.IsLeaf() {
			continue
		}
		xm, ym := (c.x0+c.x1)/2, (c.y0+c.y1)/2
		// pushed in reverse so quadrants pop in order 0..3
		if ch := c.n.children[3]; ch != nil {
			stack = append(stack, quad{ch, xm, ym, c.x1, c.y1})
		}
		if ch := c.n.children[2]; ch != nil {
			stack = append(stack, quad{ch, c.x0, ym, xm, c.y1})
		}
		if ch := c.n.children[1]; ch != nil {
			stack = append(stack, quad{ch, xm, c.y0, c.x1, ym})
		}
		if ch := c.n.children[0]; ch != nil {
			stack = append(stack, quad{ch, c.x0, c.y0, xm, ym})
		}
	}
}

// InRect returns every point inside the half-open rectangle [x0, x3) x [y0, y3).
// Nodes whose extent lies entirely outside the rectangle are pruned.
func (q *Quadtree[T]) InRect(x0, y0, x3, y3 float64) []T {
	var out []T
	q.Visit(func(n *Node[T], nx0, ny0, nx1, ny1 float64) bool {
		if n.IsLeaf() {
			n.Each(func(d T, x, y float64) {
				if x >= x0 && x < x3 && y >= y0 && y < y3 {
					out = append(out, d)
				}
			})
		}
		return nx0 >= x3 || ny0 >= y3 || nx1 < x0 || ny1 < y0
	})
	return out
}
