package artifact

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

var (
	encoder     *zstd.Encoder
	decoder     *zstd.Decoder
	encoderErr  error
	decoderErr  error
	encoderOnce sync.Once
	decoderOnce sync.Once
)

func compress(data []byte) ([]byte, error) {
	encoderOnce.Do(func() {
		encoder, encoderErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	})
	if encoderErr != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", encoderErr)
	}
	return encoder.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

func decompress(data []byte, rawSize int64) ([]byte, error) {
	decoderOnce.Do(func() {
		// A value of 0 uses GOMAXPROCS goroutines.
		decoder, decoderErr = zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(0),
			zstd.WithDecoderLowmem(false))
	})
	if decoderErr != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", decoderErr)
	}
	out, err := decoder.DecodeAll(data, make([]byte, 0, rawSize))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress data section: %w", err)
	}
	if int64(len(out)) != rawSize {
		return nil, fmt.Errorf("%w: decompressed %d bytes, header says %d", ErrTruncated, len(out), rawSize)
	}
	return out, nil
}
