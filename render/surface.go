package render

import (
	"image"
	"math"

	"github.com/fogleman/fauxgl"

	"github.com/neuroviz/neuroviz/surface"
)

// Camera geometry shared by every surface render. The mesh is first fit to
// the bi-unit cube, so these do not depend on subject anatomy.
const (
	surfaceFovy        = 30.0
	surfaceNear        = 1.0
	surfaceFar         = 10.0
	cameraDistance     = 3.5
	scalarFreeGray     = 0.75
	surfaceSupersample = 2
)

// SurfaceOptions control one render of a cortical mesh.
type SurfaceOptions struct {
	Width, Height int

	// Camera direction in degrees. Azimuth 0 looks along +x; elevation 90
	// looks straight down the z axis.
	Azimuth, Elevation float64

	// Background fills the frame when Transparent is false.
	Background [3]float64

	// Transparent leaves non-mesh pixels at alpha zero so the caller can
	// composite the render over a volume backdrop.
	Transparent bool

	// Colormap and Saturation turn vertex scalars into colors: the top of
	// the map is reached at Saturation times the scalar maximum. Meshes
	// without scalars render in a uniform gray.
	Colormap   Colormap
	Saturation float64
}

func (o SurfaceOptions) eye() (fauxgl.Vector, fauxgl.Vector) {
	az := fauxgl.Radians(o.Azimuth)
	el := fauxgl.Radians(o.Elevation)

	eye := fauxgl.V(
		math.Cos(el)*math.Cos(az),
		math.Cos(el)*math.Sin(az),
		math.Sin(el),
	).MulScalar(cameraDistance)

	up := fauxgl.V(0, 0, 1)
	if math.Abs(math.Cos(el)) < 1e-6 {
		// Looking along the up axis; any horizontal up vector works.
		up = fauxgl.V(0, 1, 0)
	}

	return eye, up
}

// ScalarScaleTop returns the scalar value at which the colormap tops out:
// the scalar maximum damped by the saturation fraction, so a few hot
// vertices do not wash out the rest of the map. Colorbars drawn next to a
// surface figure must use the same ceiling.
func ScalarScaleTop(scalars []float64, saturation float64) float64 {
	var max float64
	for _, s := range scalars {
		if s > max {
			max = s
		}
	}

	if saturation <= 0 || saturation > 1 {
		saturation = 1
	}
	top := max * saturation
	if top == 0 {
		top = 1
	}

	return top
}

func vertexColors(mesh *surface.Mesh, cmap Colormap, saturation float64) []fauxgl.Color {
	colors := make([]fauxgl.Color, mesh.VertexCount())

	if len(mesh.Scalars) != mesh.VertexCount() || cmap == nil {
		for i := range colors {
			colors[i] = fauxgl.Color{R: scalarFreeGray, G: scalarFreeGray, B: scalarFreeGray, A: 1}
		}
		return colors
	}

	top := ScalarScaleTop(mesh.Scalars, saturation)

	for i, s := range mesh.Scalars {
		c := cmap(s / top)
		colors[i] = fauxgl.Color{
			R: float64(c.R) / 255,
			G: float64(c.G) / 255,
			B: float64(c.B) / 255,
			A: 1,
		}
	}

	return colors
}

// SurfaceImage renders the mesh with a Phong shader honoring per-vertex
// scalar colors. The render is supersampled and downsampled once for
// antialiasing.
func SurfaceImage(mesh *surface.Mesh, opts SurfaceOptions) image.Image {
	if opts.Width < 1 {
		opts.Width = 800
	}
	if opts.Height < 1 {
		opts.Height = 800
	}

	if mesh.FaceCount() == 0 {
		img := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
		if !opts.Transparent {
			fillBackground(img, opts.Background)
		}
		return img
	}

	normals := mesh.VertexNormals()
	colors := vertexColors(mesh, opts.Colormap, opts.Saturation)

	triangles := make([]*fauxgl.Triangle, 0, mesh.FaceCount())
	for _, f := range mesh.Faces {
		var tri fauxgl.Triangle
		for i, vi := range f {
			v := fauxgl.Vertex{
				Position: fauxgl.V(mesh.Vertices[vi].X, mesh.Vertices[vi].Y, mesh.Vertices[vi].Z),
				Normal:   fauxgl.V(normals[vi].X, normals[vi].Y, normals[vi].Z),
				Color:    colors[vi],
			}
			switch i {
			case 0:
				tri.V1 = v
			case 1:
				tri.V2 = v
			case 2:
				tri.V3 = v
			}
		}
		triangles = append(triangles, &tri)
	}

	fm := fauxgl.NewTriangleMesh(triangles)
	fm.BiUnitCube()

	ctx := fauxgl.NewContext(opts.Width*surfaceSupersample, opts.Height*surfaceSupersample)
	if opts.Transparent {
		ctx.ClearColorBufferWith(fauxgl.Color{})
	} else {
		ctx.ClearColorBufferWith(fauxgl.Color{
			R: opts.Background[0],
			G: opts.Background[1],
			B: opts.Background[2],
			A: 1,
		})
	}

	eye, up := opts.eye()
	center := fauxgl.V(0, 0, 0)
	aspect := float64(opts.Width) / float64(opts.Height)
	matrix := fauxgl.LookAt(eye, center, up).Perspective(surfaceFovy, aspect, surfaceNear, surfaceFar)

	// Headlight: keeps every viewing angle usable without configuring
	// light positions.
	shader := fauxgl.NewPhongShader(matrix, eye.Normalize(), eye)
	ctx.Shader = shader
	ctx.DrawMesh(fm)

	return downsample2(ctx.Image())
}

func fillBackground(img *image.RGBA, bg [3]float64) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			i := img.PixOffset(x, y)
			img.Pix[i+0] = channel(bg[0])
			img.Pix[i+1] = channel(bg[1])
			img.Pix[i+2] = channel(bg[2])
			img.Pix[i+3] = 255
		}
	}
}

// downsample2 halves the supersampled frame with a box filter, preserving
// alpha for later compositing.
func downsample2(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx()/surfaceSupersample, b.Dy()/surfaceSupersample

	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var r, g, bl, a uint32
			for dy := 0; dy < surfaceSupersample; dy++ {
				for dx := 0; dx < surfaceSupersample; dx++ {
					pr, pg, pb, pa := img.At(b.Min.X+x*surfaceSupersample+dx, b.Min.Y+y*surfaceSupersample+dy).RGBA()
					r += pr
					g += pg
					bl += pb
					a += pa
				}
			}
			n := uint32(surfaceSupersample * surfaceSupersample)
			i := out.PixOffset(x, y)
			out.Pix[i+0] = uint8(r / n >> 8)
			out.Pix[i+1] = uint8(g / n >> 8)
			out.Pix[i+2] = uint8(bl / n >> 8)
			out.Pix[i+3] = uint8(a / n >> 8)
		}
	}

	return out
}
