package repository

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
)

// Bucket payloads are CBOR arrays compressed with zstd. The encoder uses
// core deterministic encoding so equal buckets produce equal bytes.
var (
	encMode     cbor.EncMode
	decMode     cbor.DecMode
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() { //nolint:gochecknoinits // codec setup
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("repository: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("repository: CBOR decoder initialization failed: " + err.Error())
	}

	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("repository: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("repository: zstd decoder initialization failed: " + err.Error())
	}
}

func encodePayload[T any](items []T) ([]byte, error) {
	raw, err := encMode.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return zstdEncoder.EncodeAll(raw, nil), nil
}

func decodePayload[T any](payload []byte) ([]T, error) {
	raw, err := zstdDecoder.DecodeAll(payload, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress payload: %w", err)
	}
	var items []T
	if err := decMode.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return items, nil
}
