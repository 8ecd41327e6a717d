// dicom2nifti stacks a directory of single-frame DICOM slices into one
// NIfTI volume. Slices are ordered by InstanceNumber (falling back to
// SliceLocation when instance numbers collide or are missing), pixel data
// is taken as int16, and the voxel grid spacing comes from PixelSpacing and
// SliceThickness. Encapsulated transfer syntaxes are not handled; export
// uncompressed DICOM from the scanner console first.
package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/dicomtag"
	"github.com/suyashkumar/dicom/element"

	"github.com/neuroviz/neuroviz"
	_ "github.com/neuroviz/neuroviz/compileinfoprint"
	"github.com/neuroviz/neuroviz/nifti"
)

func main() {
	var dir, out string

	flag.StringVar(&dir, "dir", "", "Directory holding the DICOM slices of one series.")
	flag.StringVar(&out, "out", "", "Output volume path (.nii or .nii.gz).")
	flag.Parse()

	if dir == "" || out == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := run(dir, out); err != nil {
		log.Println(err)
		os.Exit(neuroviz.ExitCode(err))
	}
}

// dicomSlice is one parsed slice with just enough metadata to stack it.
type dicomSlice struct {
	instance int
	location float64

	rows, cols int
	pixels     []int16

	pixelW, pixelH, thick float64
}

func run(dir, out string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return neuroviz.DataErrorf("dicom2nifti: %v", err)
	}

	var slices []*dicomSlice
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		s, err := readSlice(filepath.Join(dir, entry.Name()))
		if err != nil {
			log.Printf("skipping %s: %v", entry.Name(), err)
			continue
		}
		slices = append(slices, s)
	}

	if len(slices) == 0 {
		return neuroviz.DataErrorf("dicom2nifti: no readable DICOM slices in %s", dir)
	}

	sort.Slice(slices, func(i, j int) bool {
		if slices[i].instance != slices[j].instance {
			return slices[i].instance < slices[j].instance
		}
		return slices[i].location < slices[j].location
	})

	first := slices[0]
	for _, s := range slices[1:] {
		if s.rows != first.rows || s.cols != first.cols {
			return neuroviz.DataErrorf("dicom2nifti: slice grids differ (%dx%d vs %dx%d); is %s a single series?",
				first.cols, first.rows, s.cols, s.rows, dir)
		}
	}

	vol := nifti.NewVolume(first.cols, first.rows, len(slices), 1,
		[3]float32{float32(first.pixelW), float32(first.pixelH), float32(first.thick)})

	for z, s := range slices {
		for y := 0; y < s.rows; y++ {
			for x := 0; x < s.cols; x++ {
				vol.SetAt(x, y, z, 0, float32(s.pixels[y*s.cols+x]))
			}
		}
	}

	if err := nifti.Save(out, vol); err != nil {
		return err
	}

	log.Printf("wrote %s: %d x %d x %d voxels at %g x %g x %g mm",
		out, vol.Nx, vol.Ny, vol.Nz, first.pixelW, first.pixelH, first.thick)

	return nil
}

func readSlice(path string) (*dicomSlice, error) {
	dcm, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	p, err := dicom.NewParserFromBytes(dcm, nil)
	if err != nil {
		return nil, err
	}

	parsedData, err := p.Parse(dicom.ParseOptions{DropPixelData: false})
	if parsedData == nil || err != nil {
		return nil, neuroviz.DataErrorf("parsing: %v", err)
	}

	out := &dicomSlice{pixelW: 1, pixelH: 1, thick: 1}

	for _, elem := range parsedData.Elements {
		switch {
		case elem.Tag == dicomtag.Rows:
			if v, ok := elem.Value[0].(uint16); ok {
				out.rows = int(v)
			}
		case elem.Tag == dicomtag.Columns:
			if v, ok := elem.Value[0].(uint16); ok {
				out.cols = int(v)
			}
		case elem.Tag == dicomtag.InstanceNumber:
			if v, ok := elem.Value[0].(string); ok {
				out.instance, _ = strconv.Atoi(strings.TrimSpace(v))
			}
		case elem.Tag == dicomtag.SliceLocation:
			if v, ok := elem.Value[0].(string); ok {
				out.location, _ = strconv.ParseFloat(strings.TrimSpace(v), 64)
			}
		case elem.Tag == dicomtag.PixelSpacing:
			// Row spacing first, then column spacing.
			for i, raw := range elem.Value {
				v, ok := raw.(string)
				if !ok {
					continue
				}
				switch i {
				case 0:
					out.pixelH, _ = strconv.ParseFloat(strings.TrimSpace(v), 64)
				case 1:
					out.pixelW, _ = strconv.ParseFloat(strings.TrimSpace(v), 64)
				}
			}
		case elem.Tag == dicomtag.SliceThickness:
			if v, ok := elem.Value[0].(string); ok {
				out.thick, _ = strconv.ParseFloat(strings.TrimSpace(v), 64)
			}
		case elem.Tag == dicomtag.PixelData:
			data, ok := elem.Value[0].(element.PixelDataInfo)
			if !ok {
				return nil, neuroviz.DataErrorf("unexpected pixel data layout")
			}

			for _, frame := range data.Frames {
				if frame.IsEncapsulated {
					return nil, neuroviz.DataErrorf("encapsulated transfer syntax is not supported")
				}
				for j := 0; j < len(frame.NativeData.Data); j++ {
					out.pixels = append(out.pixels, int16(frame.NativeData.Data[j][0]))
				}
			}
		}
	}

	if out.rows == 0 || out.cols == 0 {
		return nil, neuroviz.DataErrorf("missing Rows/Columns tags")
	}
	if len(out.pixels) != out.rows*out.cols {
		return nil, neuroviz.DataErrorf("pixel payload is %d values, want %d", len(out.pixels), out.rows*out.cols)
	}

	return out, nil
}
