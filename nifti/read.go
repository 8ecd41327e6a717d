package nifti

import (
	"bytes"
	"encoding/binary"
	"io"
	"io/ioutil"
	"math"

	"github.com/carbocation/pfx"

	"github.com/neuroviz/neuroviz"
)

// Load reads a .nii or .nii.gz volume. The path may point into Google
// Storage with a gs:// prefix; purely local reads never touch the network.
func Load(path string) (*Volume, error) {
	client, err := neuroviz.NewStorageClientIfNeeded(path)
	if err != nil {
		return nil, neuroviz.DataErrorf("nifti: %s: %v", path, err)
	}

	f, _, err := neuroviz.MaybeOpenFromGoogleStorage(path, client)
	if err != nil {
		return nil, neuroviz.DataErrorf("nifti: %v", err)
	}
	defer f.Close()

	vol, err := LoadReader(f)
	if err != nil {
		return nil, neuroviz.DataErrorf("nifti: %s: %v", path, err)
	}

	return vol, nil
}

// LoadReader decodes a volume from a stream, transparently handling gzip.
func LoadReader(r io.Reader) (*Volume, error) {
	plain, err := neuroviz.MaybeDecompress(r)
	if err != nil {
		return nil, err
	}

	raw, err := ioutil.ReadAll(plain)
	if err != nil {
		return nil, pfx.Err(err)
	}

	hdr, order, err := decodeHeader(raw)
	if err != nil {
		return nil, err
	}

	return decodeVolume(hdr, order, raw)
}

// LoadHeader reads only the header of a .nii or .nii.gz file.
func LoadHeader(path string) (Header, error) {
	client, err := neuroviz.NewStorageClientIfNeeded(path)
	if err != nil {
		return Header{}, neuroviz.DataErrorf("nifti: %s: %v", path, err)
	}

	f, _, err := neuroviz.MaybeOpenFromGoogleStorage(path, client)
	if err != nil {
		return Header{}, neuroviz.DataErrorf("nifti: %v", err)
	}
	defer f.Close()

	plain, err := neuroviz.MaybeDecompress(f)
	if err != nil {
		return Header{}, err
	}

	raw := make([]byte, headerSize)
	if _, err := io.ReadFull(plain, raw); err != nil {
		return Header{}, neuroviz.DataErrorf("nifti: short header: %v", err)
	}

	hdr, _, err := decodeHeader(raw)

	return hdr, err
}

// decodeHeader parses the 348-byte header, inferring the byte order from
// dim[0], which must land in 1..7 under the correct ordering.
func decodeHeader(raw []byte) (Header, binary.ByteOrder, error) {
	if len(raw) < headerSize {
		return Header{}, nil, neuroviz.DataErrorf("nifti: file is %d bytes, smaller than the %d byte header", len(raw), headerSize)
	}

	var hdr Header
	var order binary.ByteOrder = binary.LittleEndian

	if err := binary.Read(bytes.NewReader(raw[:headerSize]), order, &hdr); err != nil {
		return Header{}, nil, pfx.Err(err)
	}

	if hdr.Dim[0] < 1 || hdr.Dim[0] > maxDimensions {
		order = binary.BigEndian
		if err := binary.Read(bytes.NewReader(raw[:headerSize]), order, &hdr); err != nil {
			return Header{}, nil, pfx.Err(err)
		}
	}

	if err := hdr.Valid(); err != nil {
		return Header{}, nil, err
	}

	return hdr, order, nil
}

func decodeVolume(hdr Header, order binary.ByteOrder, raw []byte) (*Volume, error) {
	nx, ny, nz, nt := 1, 1, 1, 1
	if hdr.Dim[0] >= 1 {
		nx = int(hdr.Dim[1])
	}
	if hdr.Dim[0] >= 2 {
		ny = int(hdr.Dim[2])
	}
	if hdr.Dim[0] >= 3 {
		nz = int(hdr.Dim[3])
	}
	if hdr.Dim[0] >= 4 {
		nt = int(hdr.Dim[4])
	}
	if nt < 1 {
		nt = 1
	}

	if nx < 1 || ny < 1 || nz < 1 {
		return nil, neuroviz.DataErrorf("nifti: non-positive grid %dx%dx%d", nx, ny, nz)
	}

	nvox := nx * ny * nz * nt
	nbyper := bytesPerVoxel(hdr.DataType)

	offset := int(hdr.VoxOffset)
	if offset < dataOffset {
		offset = dataOffset
	}

	need := offset + nvox*nbyper
	if len(raw) < need {
		return nil, neuroviz.DataErrorf("nifti: truncated image: have %d bytes, need %d", len(raw), need)
	}

	body := raw[offset : offset+nvox*nbyper]

	// scl_slope of zero conventionally means "no scaling".
	slope := hdr.SclSlope
	inter := hdr.SclInter
	if slope == 0 {
		slope = 1
		inter = 0
	}

	data := make([]float32, nvox)
	switch hdr.DataType {
	case DTUint8:
		for i := range data {
			data[i] = slope*float32(body[i]) + inter
		}
	case DTInt8:
		for i := range data {
			data[i] = slope*float32(int8(body[i])) + inter
		}
	case DTInt16:
		for i := range data {
			data[i] = slope*float32(int16(order.Uint16(body[2*i:]))) + inter
		}
	case DTUint16:
		for i := range data {
			data[i] = slope*float32(order.Uint16(body[2*i:])) + inter
		}
	case DTInt32:
		for i := range data {
			data[i] = slope*float32(int32(order.Uint32(body[4*i:]))) + inter
		}
	case DTFloat32:
		for i := range data {
			data[i] = slope*math.Float32frombits(order.Uint32(body[4*i:])) + inter
		}
	case DTFloat64:
		for i := range data {
			data[i] = slope*float32(math.Float64frombits(order.Uint64(body[8*i:]))) + inter
		}
	default:
		return nil, neuroviz.DataErrorf("nifti: unsupported datatype code %d", hdr.DataType)
	}

	vol := &Volume{
		Nx:     nx,
		Ny:     ny,
		Nz:     nz,
		Nt:     nt,
		Data:   data,
		PixDim: [3]float32{hdr.PixDim[1], hdr.PixDim[2], hdr.PixDim[3]},
		Affine: AffineFromHeader(hdr),
		Hdr:    hdr,
	}

	if nt > 1 {
		vol.TR = timeToSeconds(hdr)
	}

	return vol, nil
}

// timeToSeconds converts pixdim[4] to seconds using the header time units.
func timeToSeconds(hdr Header) float64 {
	tr := float64(hdr.PixDim[4])

	// Upper 3 bits of xyzt_units carry the time unit code.
	switch hdr.XYZTUnits & 0x38 {
	case 16: // milliseconds
		tr /= 1e3
	case 24: // microseconds
		tr /= 1e6
	}

	return tr
}
