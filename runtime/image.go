package runtime

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

var gzipMagic = []byte{0x1f, 0x8b}

// decodeImage gunzips images carrying the gzip magic. Other images are
// returned as is. max caps the decompressed size; 0 means unlimited.
func decodeImage(image []byte, max int64) ([]byte, error) {
	if !bytes.HasPrefix(image, gzipMagic) {
		return image, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(image))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var r io.Reader = zr
	if max > 0 {
		r = io.LimitReader(zr, max+1)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if max > 0 && int64(len(out)) > max {
		return nil, fmt.Errorf("decompressed image exceeds %d bytes", max)
	}
	return out, nil
}
