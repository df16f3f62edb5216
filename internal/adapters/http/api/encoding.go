package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// capped fails once more than max bytes have been read through it.
type capped struct {
	r    io.Reader
	read int64
	max  int64
}

func (c *capped) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.read += int64(n)
	if c.read > c.max {
		return n, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, c.max)
	}
	return n, err
}

// decodeBody decodes a JSON request body, inflating it first when the
// client sent Content-Encoding gzip or zstd. maxBytes bounds both the wire
// body and the inflated document.
func decodeBody(w http.ResponseWriter, r *http.Request, maxBytes int64, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBytes)
	defer body.Close()

	var reader io.Reader = body
	switch enc := strings.ToLower(strings.TrimSpace(r.Header.Get("Content-Encoding"))); enc {
	case "", "identity":
	case "gzip":
		zr, err := gzip.NewReader(body)
		if err != nil {
			return fmt.Errorf("%w: gzip: %w", ErrBadRequest, err)
		}
		defer zr.Close()
		reader = zr
	case "zstd":
		zr, err := zstd.NewReader(body, zstd.WithDecoderMaxMemory(uint64(maxBytes)), zstd.WithDecoderConcurrency(1))
		if err != nil {
			return fmt.Errorf("%w: zstd: %w", ErrBadRequest, err)
		}
		defer zr.Close()
		reader = zr
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedEncoding, enc)
	}

	if err := json.NewDecoder(&capped{r: reader, max: maxBytes}).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, tooLarge.Limit)
		case errors.Is(err, ErrBodyTooLarge):
			return err
		default:
			return fmt.Errorf("%w: %w", ErrBadRequest, err)
		}
	}
	return nil
}
