package nifti

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"io"
	"math"
	"os"
	"strings"

	"github.com/carbocation/pfx"
)

// Save writes the volume as a single-file NIFTI-1 image. A .gz suffix on the
// path selects gzip compression. Data is written as float32 without scaling,
// and the affine is stored in the sform, so a load-save cycle preserves the
// grid dimensions, spacing, and transform exactly.
func Save(path string, vol *Volume) error {
	f, err := os.Create(path)
	if err != nil {
		return pfx.Err(err)
	}
	defer f.Close()

	var w io.Writer = f

	if strings.HasSuffix(path, ".gz") {
		gz := gzip.NewWriter(f)
		defer gz.Close()
		w = gz
	}

	return SaveWriter(w, vol)
}

// SaveWriter encodes the volume onto w, uncompressed.
func SaveWriter(w io.Writer, vol *Volume) error {
	hdr := headerForVolume(vol)

	bw := bufio.NewWriter(w)

	if err := binary.Write(bw, binary.LittleEndian, &hdr); err != nil {
		return pfx.Err(err)
	}

	// Four zero bytes signal an empty extension list.
	if _, err := bw.Write([]byte{0, 0, 0, 0}); err != nil {
		return pfx.Err(err)
	}

	buf := make([]byte, 4)
	for _, v := range vol.Data {
		binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
		if _, err := bw.Write(buf); err != nil {
			return pfx.Err(err)
		}
	}

	return pfx.Err(bw.Flush())
}

// headerForVolume rebuilds the on-disk header from the in-memory volume,
// carrying over provenance fields from the header the volume was loaded
// with where they remain truthful.
func headerForVolume(vol *Volume) Header {
	hdr := vol.Hdr

	hdr.SizeOfHdr = headerSize
	hdr.Magic = magicSingleFile
	hdr.DataType = DTFloat32
	hdr.BitPix = 32
	hdr.VoxOffset = dataOffset
	hdr.SclSlope = 1
	hdr.SclInter = 0

	ndim := int16(3)
	if vol.Nt > 1 {
		ndim = 4
	}
	hdr.Dim = [8]int16{ndim, int16(vol.Nx), int16(vol.Ny), int16(vol.Nz), int16(vol.Nt), 1, 1, 1}

	qfac := hdr.PixDim[0]
	if qfac != -1 {
		qfac = 1
	}
	hdr.PixDim = [8]float32{qfac, vol.PixDim[0], vol.PixDim[1], vol.PixDim[2], float32(vol.TR), 0, 0, 0}

	// Millimeters and seconds.
	hdr.XYZTUnits = 2 | 8

	// The affine is authoritative for the grid we hold, whatever transform
	// the source header carried.
	hdr.SFormCode = 1
	if vol.Hdr.SFormCode > 1 {
		hdr.SFormCode = vol.Hdr.SFormCode
	}
	for col := 0; col < 4; col++ {
		hdr.SRowX[col] = float32(vol.Affine[0][col])
		hdr.SRowY[col] = float32(vol.Affine[1][col])
		hdr.SRowZ[col] = float32(vol.Affine[2][col])
	}

	return hdr
}
