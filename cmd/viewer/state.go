package main

import (
	"image"
	"math"
	"os"

	"github.com/neuroviz/neuroviz"
	"github.com/neuroviz/neuroviz/bids"
	"github.com/neuroviz/neuroviz/nifti"
	"github.com/neuroviz/neuroviz/render"
	"github.com/neuroviz/neuroviz/surface"
)

// Modalities the slice panels can show, in display order. Each maps to one
// file the pipeline knows how to locate for the current subject.
var modalities = []string{"raw", "preproc", "brain", "aligned", "bold"}

func (g *Global) modalityPath(modality, subject string) (string, error) {
	switch modality {
	case "raw":
		return g.layout.T1Path(subject), nil
	case "preproc":
		return g.layout.PreprocessedT1Path(subject), nil
	case "brain":
		return g.layout.BrainPath(subject), nil
	case "aligned":
		return g.layout.AlignedT1Path(subject), nil
	case "bold":
		return g.layout.FMRIPath(subject), nil
	}

	return "", neuroviz.DataErrorf("viewer: unknown modality %q", modality)
}

// loadSubject switches the viewer to a subject, dropping the previous
// subject's cached volumes. Volumes load lazily on first display; only the
// mesh and electrodes are read eagerly because the pages report on them.
func (g *Global) loadSubject(subject string) {
	subject = bids.NormalizeSubject(subject)
	if g.subject == subject {
		return
	}

	g.subject = subject
	g.volumes = make(map[string]*loadedVolume)
	g.mesh = nil
	g.electrodes = nil

	for _, path := range []string{g.layout.MappedSurfacePath(subject), g.layout.SurfacePath(subject)} {
		mesh, err := loadMesh(path)
		if err != nil {
			g.log.Println(err)
			continue
		}
		if mesh != nil {
			g.mesh = mesh
			break
		}
	}

	if electrodesPath := g.layout.ElectrodesPath(subject); exists(electrodesPath) {
		electrodes, err := bids.LoadElectrodes(electrodesPath)
		if err != nil {
			g.log.Println(err)
		} else {
			g.electrodes = electrodes
		}
	}

	g.display = displaySettings{
		Modality:       "raw",
		Opacity:        g.cfg.GUI.SurfaceOpacity,
		ShowElectrodes: g.cfg.Visualization.ShowElectrodes,
		Azimuth:        30,
		Elevation:      20,
	}
}

// loadMesh reads a saved surface; a missing file is not an error, since the
// stages that produce meshes may simply not have run yet.
func loadMesh(path string) (*surface.Mesh, error) {
	if !exists(path) {
		return nil, nil
	}

	return surface.Load(path)
}

// volume returns the cached volume for a modality, reading it on first use.
func (g *Global) volume(modality string) (*loadedVolume, error) {
	if g.subject == "" {
		return nil, neuroviz.DataErrorf("viewer: no subject selected")
	}

	if lv, ok := g.volumes[modality]; ok {
		return lv, nil
	}

	path, err := g.modalityPath(modality, g.subject)
	if err != nil {
		return nil, err
	}

	vol, err := nifti.Load(path)
	if err != nil {
		return nil, err
	}

	_, max := vol.MinMax()
	lv := &loadedVolume{vol: vol, max: float64(max)}
	g.volumes[modality] = lv

	return lv, nil
}

func (g *Global) colormapFor(modality string) (render.Colormap, error) {
	name := g.cfg.Visualization.ColormapT1
	if modality == "bold" {
		name = g.cfg.Visualization.ColormapFMRI
	}

	return render.ColormapByName(name)
}

// electrodeSlabHalfWidth is how many slices on either side of the current
// index still show an electrode marker.
const electrodeSlabHalfWidth = 2

// electrodePoints projects the electrodes near the current slice into the
// slice image's pixel frame, matching the row flip the slice renderer
// applies.
func electrodePoints(vol *nifti.Volume, plane render.Plane, index int, electrodes []bids.Electrode) []image.Point {
	var points []image.Point
	for _, e := range electrodes {
		var along float64
		var pt image.Point

		switch plane {
		case render.Coronal:
			along = e.Y
			pt = image.Pt(int(math.Round(e.X)), vol.Nz-1-int(math.Round(e.Z)))
		case render.Sagittal:
			along = e.X
			pt = image.Pt(int(math.Round(e.Y)), vol.Nz-1-int(math.Round(e.Z)))
		default:
			along = e.Z
			pt = image.Pt(int(math.Round(e.X)), vol.Ny-1-int(math.Round(e.Y)))
		}

		if math.Abs(along-float64(index)) > electrodeSlabHalfWidth {
			continue
		}
		points = append(points, pt)
	}

	return points
}

// subjectStatus is one row of the index page: a subject plus which
// derivatives the pipeline has produced for it so far.
type subjectStatus struct {
	Subject    string
	HasPreproc bool
	HasAligned bool
	HasSurface bool
	HasMapped  bool
	HasEEG     bool
}

func (g *Global) subjectStatuses() ([]subjectStatus, error) {
	subjects, err := g.layout.Subjects()
	if err != nil {
		return nil, err
	}

	statuses := make([]subjectStatus, 0, len(subjects))
	for _, subject := range subjects {
		statuses = append(statuses, subjectStatus{
			Subject:    subject,
			HasPreproc: exists(g.layout.PreprocessedT1Path(subject)),
			HasAligned: exists(g.layout.AlignedT1Path(subject)),
			HasSurface: exists(g.layout.SurfacePath(subject)),
			HasMapped:  exists(g.layout.MappedSurfacePath(subject)),
			HasEEG:     exists(g.layout.EEGPath(subject)),
		})
	}

	return statuses, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
