// Package nifti reads and writes single-file NIFTI-1 volumes (.nii and
// .nii.gz). Voxel data is normalized to float32 with the header's scaling
// slope and intercept applied, and the voxel-to-world affine is always
// populated, from the sform when present, the qform otherwise, and the pixel
// dimensions as a last resort. The layout follows the official definition at
// https://nifti.nimh.nih.gov/pub/dist/src/niftilib/nifti1.h
package nifti

import (
	"github.com/neuroviz/neuroviz"
)

// Header is the on-disk NIFTI-1 header. Field types mirror the C struct:
// int becomes int32, float becomes float32, short becomes int16, and char
// becomes int8.
type Header struct {
	SizeOfHdr          int32    // Must be 348
	UnusedDataType     [10]int8 // Unused
	UnusedDbName       [18]int8 // Unused
	UnusedExtents      int32    // Unused
	UnusedSessionError int16    // Unused
	UnusedRegular      int8     // Unused
	DimInfo            int8     // MRI slice ordering

	Dim           [8]int16   // Data array dimensions
	IntentP1      float32    // 1st intent parameter
	IntentP2      float32    // 2nd intent parameter
	IntentP3      float32    // 3rd intent parameter
	IntentCode    int16      // NIFTI_INTENT_* code
	DataType      int16      // Defines data type
	BitPix        int16      // Number bits/voxel
	SliceStart    int16      // First slice index
	PixDim        [8]float32 // Grid spacing
	VoxOffset     float32    // Offset into .nii file
	SclSlope      float32    // Data scaling: slope
	SclInter      float32    // Data scaling: offset
	SliceEnd      int16      // Last slice index
	SliceCode     int8       // Slice timing order
	XYZTUnits     int8       // Units of pixdim[1..4]
	CalMax        float32    // Max display intensity
	CalMin        float32    // Min display intensity
	SliceDuration float32    // Time for 1 slice
	TOffset       float32    // Time axis shift
	UnusedGlmax   int32      // Unused
	UnusedGlmin   int32      // Unused

	Descrip [80]int8 // Any text you like
	AuxFile [24]int8 // Auxiliary filename

	QFormCode int16 // NIFTI_XFORM_* code
	SFormCode int16 // NIFTI_XFORM_* code

	QuaternB float32 // Quaternion b param
	QuaternC float32 // Quaternion c param
	QuaternD float32 // Quaternion d param
	QOffsetX float32 // Quaternion x shift
	QOffsetY float32 // Quaternion y shift
	QOffsetZ float32 // Quaternion z shift

	SRowX [4]float32 // 1st row affine transform
	SRowY [4]float32 // 2nd row affine transform
	SRowZ [4]float32 // 3rd row affine transform

	IntentName [16]int8 // 'name' or meaning of data

	Magic [4]int8 // Must be "ni1\0" or "n+1\0"
}

const (
	headerSize    = 348
	dataOffset    = 352 // header + 4 extension indicator bytes
	maxDimensions = 7
)

// NIFTI-1 datatype codes for the voxel types this package decodes.
const (
	DTUint8   = 2
	DTInt16   = 4
	DTInt32   = 8
	DTFloat32 = 16
	DTFloat64 = 64
	DTInt8    = 256
	DTUint16  = 512
)

var magicSingleFile = [4]int8{'n', '+', '1', 0}
var magicPairFile = [4]int8{'n', 'i', '1', 0}

func bytesPerVoxel(datatype int16) int {
	switch datatype {
	case DTUint8, DTInt8:
		return 1
	case DTInt16, DTUint16:
		return 2
	case DTInt32, DTFloat32:
		return 4
	case DTFloat64:
		return 8
	}

	return 0
}

// Valid confirms the fixed header fields. A two-file ni1 pair is recognized
// but refused, since this package only handles single-file volumes.
func (h Header) Valid() error {
	if h.SizeOfHdr != headerSize {
		return neuroviz.DataErrorf("nifti: header size is %d, expected %d", h.SizeOfHdr, headerSize)
	}

	if h.Magic == magicPairFile {
		return neuroviz.DataErrorf("nifti: two-file (.hdr/.img) volumes are not supported")
	}

	if h.Magic != magicSingleFile {
		return neuroviz.DataErrorf("nifti: bad magic %v, not a NIFTI-1 file", h.Magic)
	}

	if h.Dim[0] < 1 || h.Dim[0] > maxDimensions {
		return neuroviz.DataErrorf("nifti: dim[0] is %d, expected 1..%d", h.Dim[0], maxDimensions)
	}

	if bytesPerVoxel(h.DataType) == 0 {
		return neuroviz.DataErrorf("nifti: unsupported datatype code %d", h.DataType)
	}

	return nil
}

// NDim reports the number of meaningful dimensions.
func (h Header) NDim() int { return int(h.Dim[0]) }

// Descript returns the free-text description field without trailing NULs.
func (h Header) Descript() string {
	out := make([]byte, 0, len(h.Descrip))
	for _, c := range h.Descrip {
		if c == 0 {
			break
		}
		out = append(out, byte(c))
	}

	return string(out)
}

// SetDescript stores s in the description field, truncating past 79 bytes.
func (h *Header) SetDescript(s string) {
	h.Descrip = [80]int8{}
	for i := 0; i < len(s) && i < len(h.Descrip)-1; i++ {
		h.Descrip[i] = int8(s[i])
	}
}
