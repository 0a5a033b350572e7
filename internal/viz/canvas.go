package viz

// Canvas is a plain rune grid for terminal drawing.
type Canvas struct {
	w, h int
	grid [][]rune
}

func NewCanvas(w, h int) *Canvas {
	grid := make([][]rune, h)
	for i := range grid {
		grid[i] = make([]rune, w)
	}
	c := &Canvas{w: w, h: h, grid: grid}
	c.Clear()
	return c
}

func (c *Canvas) Clear() {
	for y := range c.grid {
		for x := range c.grid[y] {
			c.grid[y][x] = ' '
		}
	}
}

func (c *Canvas) Set(x, y int, r rune) {
	if x >= 0 && x < c.w && y >= 0 && y < c.h {
		c.grid[y][x] = r
	}
}

// Line draws with Bresenham's algorithm.
func (c *Canvas) Line(x1, y1, x2, y2 int, r rune) {
	dx := abs(x2 - x1)
	dy := abs(y2 - y1)
	sx, sy := 1, 1
	if x1 > x2 {
		sx = -1
	}
	if y1 > y2 {
		sy = -1
	}
	err := dx - dy
	for {
		c.Set(x1, y1, r)
		if x1 == x2 && y1 == y2 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

func (c *Canvas) String() string {
	out := make([]rune, 0, (c.w+1)*c.h)
	for _, row := range c.grid {
		out = append(out, row...)
		out = append(out, '\n')
	}
	return string(out)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
