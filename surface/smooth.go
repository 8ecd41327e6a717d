package surface

// laplacianPass moves every vertex toward the unweighted mean of its
// neighbors, scaled by factor. A negative factor pushes outward, which is
// how the Taubin smoother undoes shrinkage.
func laplacianPass(vertices []Vector, adj [][]int, factor float64) []Vector {
	out := make([]Vector, len(vertices))

	for i, v := range vertices {
		nbrs := adj[i]
		if len(nbrs) == 0 {
			out[i] = v
			continue
		}

		var mean Vector
		for _, j := range nbrs {
			mean = mean.Add(vertices[j])
		}
		mean = mean.Scale(1 / float64(len(nbrs)))

		out[i] = v.Add(mean.Sub(v).Scale(factor))
	}

	return out
}

// LaplacianSmooth relaxes the mesh toward local neighborhood means. Simple
// and fast, but shrinks the surface a little with every iteration; the
// pipeline uses it for the initial de-staircasing right after marching
// cubes.
func (m *Mesh) LaplacianSmooth(iterations int, relaxation float64) *Mesh {
	out := m.Clone()
	if iterations < 1 || relaxation == 0 || len(out.Vertices) == 0 {
		return out
	}

	adj := out.neighbors()
	for it := 0; it < iterations; it++ {
		out.Vertices = laplacianPass(out.Vertices, adj, relaxation)
	}

	return out
}

const taubinLambda = 0.33

// TaubinSmooth is the final low-pass polish: each iteration pairs a shrink
// step with a compensating inflate step, so the surface smooths without
// losing volume. passband sets the spatial frequency cutoff, smaller being
// smoother; values in (0, 2) are sensible.
func (m *Mesh) TaubinSmooth(iterations int, passband float64) *Mesh {
	out := m.Clone()
	if iterations < 1 || len(out.Vertices) == 0 {
		return out
	}

	if passband <= 0 {
		passband = 0.1
	}
	if passband >= 1/taubinLambda {
		passband = 2
	}

	// mu < -lambda follows from passband = 1/lambda + 1/mu.
	mu := 1 / (passband - 1/taubinLambda)

	adj := out.neighbors()
	for it := 0; it < iterations; it++ {
		out.Vertices = laplacianPass(out.Vertices, adj, taubinLambda)
		out.Vertices = laplacianPass(out.Vertices, adj, mu)
	}

	return out
}

// SmoothScalars diffuses the per-vertex scalar field with the same pairwise
// shrink/inflate scheme used for geometry, softening voxel blockiness in
// mapped activations without flattening peaks.
func (m *Mesh) SmoothScalars(iterations int, passband float64) *Mesh {
	out := m.Clone()
	if out.Scalars == nil || iterations < 1 || len(out.Vertices) == 0 {
		return out
	}

	if passband <= 0 {
		passband = 0.1
	}
	if passband >= 1/taubinLambda {
		passband = 2
	}
	mu := 1 / (passband - 1/taubinLambda)

	adj := out.neighbors()

	pass := func(values []float64, factor float64) []float64 {
		next := make([]float64, len(values))
		for i, v := range values {
			nbrs := adj[i]
			if len(nbrs) == 0 {
				next[i] = v
				continue
			}

			var mean float64
			for _, j := range nbrs {
				mean += values[j]
			}
			mean /= float64(len(nbrs))

			next[i] = v + factor*(mean-v)
		}
		return next
	}

	for it := 0; it < iterations; it++ {
		out.Scalars = pass(out.Scalars, taubinLambda)
		out.Scalars = pass(out.Scalars, mu)
	}

	return out
}
