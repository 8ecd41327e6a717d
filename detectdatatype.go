package neuroviz

import (
	"bufio"
	"compress/gzip"
	"io"

	"github.com/carbocation/pfx"
)

type DataType byte

const (
	DataTypeInvalid DataType = iota
	DataTypeNoCompression
	DataTypeGzip
	DataTypeZip
	DataTypeXZ
	DataTypeZ
	DataTypeBZip2
)

func (d DataType) String() string {
	switch d {
	case DataTypeNoCompression:
		return "uncompressed"
	case DataTypeGzip:
		return "gzip"
	case DataTypeZip:
		return "zip"
	case DataTypeXZ:
		return "xz"
	case DataTypeZ:
		return "compress"
	case DataTypeBZip2:
		return "bzip2"
	}

	return "invalid"
}

var byteCodeSigs = map[DataType][]byte{
	DataTypeGzip:  {0x1f, 0x8b, 0x08},
	DataTypeZip:   {0x50, 0x4b, 0x03, 0x04},
	DataTypeXZ:    {0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00},
	DataTypeZ:     {0x1f, 0x9d},
	DataTypeBZip2: {0x42, 0x5a, 0x68},
}

// DetectDataType attempts to detect the data type of a stream by checking
// against a set of known data types.  Byte code signatures from
// https://stackoverflow.com/a/19127748/199475
func DetectDataType(sig []byte) DataType {
Outer:
	for dt, want := range byteCodeSigs {
		if len(sig) < len(want) {
			continue
		}
		for position := range want {
			if sig[position] != want[position] {
				continue Outer
			}
		}
		return dt
	}

	return DataTypeNoCompression
}

// MaybeDecompress wraps r in a gzip reader when the stream carries the gzip
// signature. Volume files are conventionally either bare .nii or gzipped
// .nii.gz; anything else compressed is refused rather than misparsed.
func MaybeDecompress(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)

	sig, err := br.Peek(6)
	if err != nil && err != io.EOF {
		return nil, pfx.Err(err)
	}

	switch dt := DetectDataType(sig); dt {
	case DataTypeGzip:
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, pfx.Err(err)
		}
		return gz, nil
	case DataTypeNoCompression:
		return br, nil
	default:
		return nil, DataErrorf("stream is %s-compressed, which is not supported for volumes", dt)
	}
}
