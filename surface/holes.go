package surface

// boundaryLoops chains boundary edges into closed vertex loops. Vertices
// with more than two boundary edges make the boundary ambiguous; loops
// touching them are skipped rather than guessed at.
func (m *Mesh) boundaryLoops() [][]int {
	next := make(map[int][]int)
	for _, e := range m.BoundaryEdges() {
		next[e[0]] = append(next[e[0]], e[1])
		next[e[1]] = append(next[e[1]], e[0])
	}

	visited := make(map[int]bool)
	var loops [][]int

	for start, nbrs := range next {
		if visited[start] || len(nbrs) != 2 {
			continue
		}

		loop := []int{start}
		visited[start] = true
		prev, cur := start, nbrs[0]

		ok := true
		for cur != start {
			if visited[cur] || len(next[cur]) != 2 {
				ok = false
				break
			}
			visited[cur] = true
			loop = append(loop, cur)

			candidates := next[cur]
			if candidates[0] == prev {
				prev, cur = cur, candidates[1]
			} else {
				prev, cur = cur, candidates[0]
			}
		}

		if ok && len(loop) >= 3 {
			loops = append(loops, loop)
		}
	}

	return loops
}

func (m *Mesh) loopArea(loop []int) float64 {
	// Newell's formula: half the length of the summed cross products.
	var n Vector
	for i, a := range loop {
		b := loop[(i+1)%len(loop)]
		n = n.Add(m.Vertices[a].Cross(m.Vertices[b]))
	}

	return n.Length() / 2
}

// FillHoles closes boundary loops whose spanned area is at most maxArea by
// fanning triangles around the loop centroid. Larger openings are left
// alone, matching the usual treatment of the brainstem cut.
func (m *Mesh) FillHoles(maxArea float64) *Mesh {
	out := m.Clone()
	if maxArea <= 0 {
		return out
	}

	for _, loop := range out.boundaryLoops() {
		if out.loopArea(loop) > maxArea {
			continue
		}

		var centroid Vector
		var scalar float64
		for _, idx := range loop {
			centroid = centroid.Add(out.Vertices[idx])
			if out.Scalars != nil {
				scalar += out.Scalars[idx]
			}
		}
		centroid = centroid.Scale(1 / float64(len(loop)))

		centerIdx := len(out.Vertices)
		out.Vertices = append(out.Vertices, centroid)
		if out.Scalars != nil {
			out.Scalars = append(out.Scalars, scalar/float64(len(loop)))
		}

		for i, a := range loop {
			b := loop[(i+1)%len(loop)]
			out.Faces = append(out.Faces, [3]int{a, b, centerIdx})
		}
	}

	return out
}
