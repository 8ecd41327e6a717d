package main

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"runtime"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/gorilla/mux"

	"github.com/neuroviz/neuroviz/render"
	"github.com/neuroviz/neuroviz/runlog"
)

const ledgerRowLimit = 25

var electrodeMarker = color.RGBA{R: 255, G: 64, B: 64, A: 255}

func (h *handler) Index(w http.ResponseWriter, r *http.Request) {
	h.Global.mu.Lock()
	defer h.Global.mu.Unlock()

	statuses, err := h.Global.subjectStatuses()
	if err != nil {
		HTTPError(h, w, r, err)
		return
	}

	stages, err := h.Global.ledger.RecentStages(ledgerRowLimit)
	if err != nil {
		h.log.Println(err)
	}

	output := struct {
		Subjects []subjectStatus
		Stages   interface{}
		LedgerOn bool
	}{
		Subjects: statuses,
		Stages:   stages,
		LedgerOn: h.Global.ledger.Enabled(),
	}

	Render(h, w, r, h.Global.Site, "index.html", output, nil)
}

// slicePanel describes one plane's slider on the subject page.
type slicePanel struct {
	Plane  string
	Count  int
	Middle int
}

func (h *handler) Subject(w http.ResponseWriter, r *http.Request) {
	h.Global.mu.Lock()
	defer h.Global.mu.Unlock()

	h.Global.loadSubject(mux.Vars(r)["subject"])
	h.updateDisplay(r)

	lv, err := h.Global.volume(h.Global.display.Modality)
	if err != nil {
		HTTPError(h, w, r, err)
		return
	}

	var panels []slicePanel
	for i, plane := range render.Planes {
		if i >= h.Global.cfg.Visualization.SlicePlanes {
			break
		}
		count := render.SliceCount(lv.vol, plane)
		panels = append(panels, slicePanel{Plane: plane.String(), Count: count, Middle: count / 2})
	}

	available := make([]string, 0, len(modalities))
	for _, modality := range modalities {
		path, err := h.Global.modalityPath(modality, h.Global.subject)
		if err == nil && exists(path) {
			available = append(available, modality)
		}
	}

	output := struct {
		Subject       string
		Modalities    []string
		Display       displaySettings
		Panels        []slicePanel
		Frames        int
		HasMesh       bool
		HasElectrodes bool
	}{
		Subject:       h.Global.subject,
		Modalities:    available,
		Display:       h.Global.display,
		Panels:        panels,
		Frames:        lv.vol.Nt,
		HasMesh:       h.Global.mesh != nil,
		HasElectrodes: len(h.Global.electrodes) > 0,
	}

	Render(h, w, r, h.Global.subject, "subject.html", output, nil)
}

func (h *handler) Surface(w http.ResponseWriter, r *http.Request) {
	h.Global.mu.Lock()
	defer h.Global.mu.Unlock()

	h.Global.loadSubject(mux.Vars(r)["subject"])
	h.updateDisplay(r)

	output := struct {
		Subject    string
		Display    displaySettings
		HasMesh    bool
		HasScalars bool
		Vertices   int
		Faces      int
	}{
		Subject: h.Global.subject,
		Display: h.Global.display,
		HasMesh: h.Global.mesh != nil,
	}
	if h.Global.mesh != nil {
		output.HasScalars = len(h.Global.mesh.Scalars) > 0
		output.Vertices = h.Global.mesh.VertexCount()
		output.Faces = h.Global.mesh.FaceCount()
	}

	Render(h, w, r, h.Global.subject+" surface", "surface.html", output, nil)
}

// updateDisplay folds recognized query parameters into the sticky display
// settings, so reloading a page keeps what the user last chose.
func (h *handler) updateDisplay(r *http.Request) {
	d := &h.Global.display

	if modality := r.URL.Query().Get("mod"); modality != "" {
		for _, known := range modalities {
			if modality == known {
				d.Modality = modality
				break
			}
		}
	}
	if v := r.URL.Query().Get("t"); v != "" {
		d.Timepoint = atoiDefault(v, d.Timepoint)
	}
	if v := r.URL.Query().Get("opacity"); v != "" {
		d.Opacity = clampInt(atoiDefault(v, d.Opacity), 0, 100)
	}
	if v := r.URL.Query().Get("electrodes"); v != "" {
		d.ShowElectrodes = v == "1" || v == "on"
	}
	if v := r.URL.Query().Get("az"); v != "" {
		d.Azimuth = atofDefault(v, d.Azimuth)
	}
	if v := r.URL.Query().Get("el"); v != "" {
		d.Elevation = atofDefault(v, d.Elevation)
	}
}

func (h *handler) SliceImage(w http.ResponseWriter, r *http.Request) {
	h.Global.mu.Lock()
	defer h.Global.mu.Unlock()

	vars := mux.Vars(r)

	plane, err := render.ParsePlane(vars["plane"])
	if err != nil {
		imageError(h, w, r, err, http.StatusBadRequest)
		return
	}

	index, err := strconv.Atoi(vars["index"])
	if err != nil {
		imageError(h, w, r, err, http.StatusBadRequest)
		return
	}

	img, err := h.sliceFigure(vars["modality"], plane, index,
		atoiDefault(r.URL.Query().Get("t"), h.Global.display.Timepoint),
		r.URL.Query().Get("electrodes") == "1")
	if err != nil {
		imageError(h, w, r, err, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, img); err != nil {
		h.log.Println(err)
	}
}

func (h *handler) SurfacePNG(w http.ResponseWriter, r *http.Request) {
	h.Global.mu.Lock()
	defer h.Global.mu.Unlock()

	h.updateDisplay(r)

	img, err := h.surfaceFigure()
	if err != nil {
		imageError(h, w, r, err, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, img); err != nil {
		h.log.Println(err)
	}
}

// sliceFigure renders one slice panel. The caller holds the global mutex.
func (h *handler) sliceFigure(modality string, plane render.Plane, index, timepoint int, electrodes bool) (image.Image, error) {
	lv, err := h.Global.volume(modality)
	if err != nil {
		return nil, err
	}

	cmap, err := h.Global.colormapFor(modality)
	if err != nil {
		return nil, err
	}

	timepoint = clampInt(timepoint, 0, lv.vol.Nt-1)
	var img image.Image = render.SliceRGBA(lv.vol, plane, index, timepoint, lv.max, cmap)

	if electrodes && len(h.Global.electrodes) > 0 {
		points := electrodePoints(lv.vol, plane, index, h.Global.electrodes)
		img = render.MarkPoints(img, points, electrodeMarker, 3)
	}

	return img, nil
}

// surfaceFigure renders the mesh from the current camera, composited over a
// middle axial backdrop of the displayed volume when one is loadable. The
// caller holds the global mutex.
func (h *handler) surfaceFigure() (image.Image, error) {
	mesh := h.Global.mesh
	if mesh == nil {
		return nil, fmt.Errorf("no surface for %s yet; run reconsurface first", h.Global.subject)
	}

	d := h.Global.display
	side := h.Global.cfg.GUI.WindowHeight

	opts := render.SurfaceOptions{
		Width:      side,
		Height:     side,
		Azimuth:    d.Azimuth,
		Elevation:  d.Elevation,
		Background: h.Global.cfg.GUI.Background,
		Saturation: h.Global.cfg.Visualization.ScalarSaturation,
	}
	if len(mesh.Scalars) > 0 {
		cmap, err := render.ColormapByName(h.Global.cfg.Visualization.ColormapFMRI)
		if err != nil {
			return nil, err
		}
		opts.Colormap = cmap
	}

	lv, err := h.Global.volume(d.Modality)
	if err != nil {
		// Without a backdrop the surface still renders, just opaque.
		h.log.Println(err)
		return render.SurfaceImage(mesh, opts), nil
	}

	opts.Transparent = true
	surfaceImg := render.SurfaceImage(mesh, opts)

	backdrop := imaging.Resize(
		render.SliceRGBA(lv.vol, render.Axial, lv.vol.Nz/2, clampInt(d.Timepoint, 0, lv.vol.Nt-1), lv.max, render.Gray),
		side, side, imaging.Lanczos)

	return render.CompositeOverlay(backdrop, surfaceImg, float64(d.Opacity)/100), nil
}

func (h *handler) ExportFigure(w http.ResponseWriter, r *http.Request) {
	h.Global.mu.Lock()
	defer h.Global.mu.Unlock()

	if h.Global.subject == "" {
		HTTPError(h, w, r, fmt.Errorf("no subject selected"), http.StatusBadRequest)
		return
	}

	var img image.Image
	var name string
	var err error

	switch r.PostFormValue("what") {
	case "surface":
		img, err = h.surfaceFigure()
		name = fmt.Sprintf("%s_surface_az%.0f_el%.0f", h.Global.subject, h.Global.display.Azimuth, h.Global.display.Elevation)
	default:
		var plane render.Plane
		plane, err = render.ParsePlane(r.PostFormValue("plane"))
		if err != nil {
			HTTPError(h, w, r, err, http.StatusBadRequest)
			return
		}

		index := atoiDefault(r.PostFormValue("index"), 0)
		modality := r.PostFormValue("mod")
		img, err = h.sliceFigure(modality, plane, index, h.Global.display.Timepoint, h.Global.display.ShowElectrodes)
		name = fmt.Sprintf("%s_%s_%s_%03d", h.Global.subject, modality, plane, index)
	}
	if err != nil {
		HTTPError(h, w, r, err)
		return
	}

	// An export click is an explicit request, so the save_figures gate does
	// not apply here.
	exporter := *h.Global.exporter
	exporter.SaveFigures = true

	path, err := exporter.Figure(img, name)
	if err != nil {
		HTTPError(h, w, r, err)
		return
	}

	h.log.Println("exported", path)
	Render(h, w, r, "Exported", "export.html", struct{ Path string }{path}, nil)
}

func (h *handler) ExportData(w http.ResponseWriter, r *http.Request) {
	h.Global.mu.Lock()
	defer h.Global.mu.Unlock()

	if h.Global.mesh == nil {
		HTTPError(h, w, r, fmt.Errorf("no surface loaded; nothing to export"), http.StatusBadRequest)
		return
	}

	path, err := h.Global.exporter.Data(h.Global.mesh, h.Global.subject+"_vertex_activations")
	if err != nil {
		HTTPError(h, w, r, err)
		return
	}

	h.log.Println("exported", path)
	Render(h, w, r, "Exported", "export.html", struct{ Path string }{path}, nil)
}

func (h *handler) StagesJSON(w http.ResponseWriter, r *http.Request) {
	h.Global.mu.Lock()
	defer h.Global.mu.Unlock()

	stages, err := h.Global.ledger.RecentStages(ledgerRowLimit)
	if err != nil {
		h.log.Println(err)
	}
	if stages == nil {
		stages = []runlog.StageRow{}
	}

	opts := NewRenderOpts()
	opts.OutputFormat = JSON
	Render(h, w, r, "Stages", "", stages, opts)
}

func (h *handler) Goroutines(w http.ResponseWriter, r *http.Request) {
	goroutines := fmt.Sprintf("%d goroutines are currently active\n", runtime.NumGoroutine())

	w.Write([]byte(goroutines))
}

func atoiDefault(s string, def int) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func atofDefault(s string, def float64) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
