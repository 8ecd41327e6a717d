package nifti

import (
	"bytes"
	"encoding/binary"
	"math"
	"path/filepath"
	"testing"
)

func testVolume() *Volume {
	vol := NewVolume(4, 3, 2, 1, [3]float32{1.5, 2.0, 2.5})

	for i := range vol.Data {
		vol.Data[i] = float32(i) * 0.5
	}

	// A non-trivial affine with rotation-free scaling plus translation
	vol.Affine = [4][4]float64{
		{1.5, 0, 0, -10},
		{0, 2.0, 0, 12.5},
		{0, 0, 2.5, -7},
		{0, 0, 0, 1},
	}

	return vol
}

func TestRoundTrip(t *testing.T) {
	for _, name := range []string{"vol.nii", "vol.nii.gz"} {
		path := filepath.Join(t.TempDir(), name)

		orig := testVolume()
		if err := Save(path, orig); err != nil {
			t.Fatalf("%s: %v", name, err)
		}

		loaded, err := Load(path)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}

		if loaded.Nx != orig.Nx || loaded.Ny != orig.Ny || loaded.Nz != orig.Nz || loaded.Nt != orig.Nt {
			t.Errorf("%s: dims changed: got %dx%dx%dx%d", name, loaded.Nx, loaded.Ny, loaded.Nz, loaded.Nt)
		}

		if loaded.PixDim != orig.PixDim {
			t.Errorf("%s: pixdim changed: got %v want %v", name, loaded.PixDim, orig.PixDim)
		}

		if loaded.Affine != orig.Affine {
			t.Errorf("%s: affine changed:\ngot  %v\nwant %v", name, loaded.Affine, orig.Affine)
		}

		for i := range orig.Data {
			if loaded.Data[i] != orig.Data[i] {
				t.Fatalf("%s: voxel %d changed: got %f want %f", name, i, loaded.Data[i], orig.Data[i])
			}
		}
	}
}

func TestRoundTrip4D(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bold.nii.gz")

	orig := NewVolume(3, 3, 3, 5, [3]float32{2, 2, 2})
	orig.TR = 2.5
	for i := range orig.Data {
		orig.Data[i] = float32(i % 7)
	}

	if err := Save(path, orig); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if !loaded.Is4D() || loaded.Nt != 5 {
		t.Errorf("expected a 4D volume with 5 timepoints, got Nt=%d", loaded.Nt)
	}

	if loaded.TR != 2.5 {
		t.Errorf("TR changed: got %f want 2.5", loaded.TR)
	}

	sub, err := loaded.VolumeAt(2)
	if err != nil {
		t.Fatal(err)
	}
	if sub.Nt != 1 || sub.At(1, 1, 1, 0) != loaded.At(1, 1, 1, 2) {
		t.Errorf("VolumeAt(2) does not view timepoint 2")
	}
}

func TestBigEndianInference(t *testing.T) {
	vol := testVolume()
	hdr := headerForVolume(vol)

	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.BigEndian, &hdr); err != nil {
		t.Fatal(err)
	}
	buf.Write([]byte{0, 0, 0, 0})

	scratch := make([]byte, 4)
	for _, v := range vol.Data {
		binary.BigEndian.PutUint32(scratch, math.Float32bits(v))
		buf.Write(scratch)
	}

	loaded, err := LoadReader(buf)
	if err != nil {
		t.Fatal(err)
	}

	if loaded.At(3, 2, 1, 0) != vol.At(3, 2, 1, 0) {
		t.Errorf("big-endian decode mismatch: got %f want %f",
			loaded.At(3, 2, 1, 0), vol.At(3, 2, 1, 0))
	}
}

func TestBadHeaders(t *testing.T) {
	type expectations struct {
		alter   func(*Header)
		message string
	}

	for _, v := range []expectations{
		{func(h *Header) { h.SizeOfHdr = 344 }, "header size"},
		{func(h *Header) { h.Magic = magicPairFile }, "two-file"},
		{func(h *Header) { h.Magic = [4]int8{'x', 'y', 'z', 0} }, "bad magic"},
		{func(h *Header) { h.DataType = 1 }, "datatype"},
	} {
		hdr := headerForVolume(testVolume())
		v.alter(&hdr)

		buf := &bytes.Buffer{}
		if err := binary.Write(buf, binary.LittleEndian, &hdr); err != nil {
			t.Fatal(err)
		}

		if _, _, err := decodeHeader(buf.Bytes()); err == nil {
			t.Errorf("%s: expected a decode error, got none", v.message)
		}
	}
}

func TestScaling(t *testing.T) {
	// int16 data with slope 2 and intercept -1 must come back scaled
	vol := NewVolume(2, 2, 2, 1, [3]float32{1, 1, 1})
	hdr := headerForVolume(vol)
	hdr.DataType = DTInt16
	hdr.BitPix = 16
	hdr.SclSlope = 2
	hdr.SclInter = -1

	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, &hdr); err != nil {
		t.Fatal(err)
	}
	buf.Write([]byte{0, 0, 0, 0})

	for i := 0; i < 8; i++ {
		if err := binary.Write(buf, binary.LittleEndian, int16(i)); err != nil {
			t.Fatal(err)
		}
	}

	loaded, err := LoadReader(buf)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 8; i++ {
		if want := float32(2*i - 1); loaded.Data[i] != want {
			t.Errorf("voxel %d: got %f want %f", i, loaded.Data[i], want)
		}
	}
}

func TestAffinePreference(t *testing.T) {
	hdr := Header{}
	hdr.PixDim = [8]float32{1, 3, 3, 3, 0, 0, 0, 0}

	// No codes set: pixdim diagonal
	aff := AffineFromHeader(hdr)
	if aff[0][0] != 3 || aff[1][1] != 3 || aff[2][2] != 3 {
		t.Errorf("pixdim fallback: got %v", aff)
	}

	// qform with an identity quaternion: scaled diagonal plus offsets
	hdr.QFormCode = 1
	hdr.QOffsetX = 5
	aff = AffineFromHeader(hdr)
	if aff[0][0] != 3 || aff[0][3] != 5 {
		t.Errorf("qform: got %v", aff)
	}

	// qfac of -1 flips the z column
	hdr.PixDim[0] = -1
	aff = AffineFromHeader(hdr)
	if aff[2][2] != -3 {
		t.Errorf("qfac flip: got %v", aff)
	}

	// sform wins over qform
	hdr.SFormCode = 2
	hdr.SRowX = [4]float32{0, 0, 1, 0}
	hdr.SRowY = [4]float32{1, 0, 0, 0}
	hdr.SRowZ = [4]float32{0, 1, 0, 0}
	aff = AffineFromHeader(hdr)
	if aff[0][2] != 1 || aff[1][0] != 1 || aff[2][1] != 1 {
		t.Errorf("sform preference: got %v", aff)
	}
}

func TestInvertAffine(t *testing.T) {
	vol := testVolume()

	inv, err := InvertAffine(vol.Affine)
	if err != nil {
		t.Fatal(err)
	}

	x, y, z := VoxelToWorld(vol.Affine, 2, 1, 1)
	i, j, k := VoxelToWorld(inv, x, y, z)

	if math.Abs(i-2) > 1e-9 || math.Abs(j-1) > 1e-9 || math.Abs(k-1) > 1e-9 {
		t.Errorf("inverse does not undo the affine: got (%f, %f, %f)", i, j, k)
	}
}
