package transport

import (
	"bytes"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/gzip"
)

// encode serializes records to a JSON array, gzipped when compress is set.
func encode(records any, compress bool) ([]byte, error) {
	body, err := sonic.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}
	if !compress {
		return body, nil
	}

	var buf bytes.Buffer
	gz, err := gzip.NewWriterLevel(&buf, gzip.BestSpeed)
	if err != nil {
		return nil, fmt.Errorf("compress batch: %w", err)
	}
	if _, err := gz.Write(body); err != nil {
		return nil, fmt.Errorf("compress batch: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("compress batch: %w", err)
	}
	return buf.Bytes(), nil
}
