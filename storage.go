package neuroviz

import (
	"context"
	"fmt"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
)

// MaybeOpenFromGoogleStorage opens a local file, or an object in Google
// Storage if the path begins with gs:// and a non-nil client is given. The
// returned size is the full object size.
func MaybeOpenFromGoogleStorage(path string, client *storage.Client) (ReaderAtCloser, int64, error) {
	if client != nil && strings.HasPrefix(path, "gs://") {
		// Detect the bucket and the path to the actual file
		pathParts := strings.SplitN(strings.TrimPrefix(path, "gs://"), "/", 2)
		if len(pathParts) != 2 {
			return nil, 0, pfx.Err(fmt.Errorf("tried to split your google storage path into 2 parts, but got %d: %v", len(pathParts), pathParts))
		}
		bucketName := pathParts[0]
		pathName := pathParts[1]

		// Open the bucket with default credentials
		bkt := client.Bucket(bucketName)
		handle := bkt.Object(pathName)

		wrappedHandle := &GSReaderAtCloser{
			ObjectHandle: handle,
			Context:      context.Background(),

			// Because Close() is called after every read, the final Close() is a
			// nop for this type, and can be left nil
		}

		// Make a hard call to get the filesize
		attrs, err := wrappedHandle.ObjectHandle.Attrs(wrappedHandle.Context)
		if err != nil {
			return nil, 0, pfx.Err(fmt.Errorf("%s: %s", path, err))
		}

		return wrappedHandle, attrs.Size, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return f, 0, err
	}
	fstat, err := f.Stat()
	if err != nil {
		return f, 0, err
	}
	return f, fstat.Size(), nil
}

// NewStorageClientIfNeeded creates a Google Storage client when any of the
// given paths points into a bucket. Purely local invocations get a nil
// client and never touch the network.
func NewStorageClientIfNeeded(paths ...string) (*storage.Client, error) {
	needed := false
	for _, p := range paths {
		if strings.HasPrefix(p, "gs://") {
			needed = true
			break
		}
	}

	if !needed {
		return nil, nil
	}

	client, err := storage.NewClient(context.Background())
	if err != nil {
		return nil, pfx.Err(err)
	}

	return client, nil
}
