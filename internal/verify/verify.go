package verify

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"hash"
	"io"

	"checkflac/internal/jobs"
)

// Producer turns a file path into a verification outcome. Implementations
// must be safe for concurrent use and must not modify the file.
type Producer interface {
	Verify(ctx context.Context, path string) jobs.Outcome
}

// StreamInfo carries the header fields the checksum depends on.
type StreamInfo struct {
	Channels      int
	BitsPerSample int
	SampleRate    int
	TotalSamples  uint64
	MD5           [md5.Size]byte
}

// HasMD5 reports whether the encoder stored a reference signature. An
// all-zero signature means none was computed.
func (i StreamInfo) HasMD5() bool {
	return i.MD5 != [md5.Size]byte{}
}

// Stream yields decoded audio one block at a time.
type Stream interface {
	Info() StreamInfo
	// Next returns the samples of the next block, one slice per channel.
	// It returns io.EOF after the last block.
	Next() ([][]int32, error)
	Close() error
}

// Decoder opens streams for reading.
type Decoder interface {
	Open(path string) (Stream, error)
}

const (
	minBitsPerSample = 4
	maxBitsPerSample = 32
)

// Verifier is the Producer used by check runs.
type Verifier struct {
	Decoder Decoder
}

// NewVerifier returns a Verifier that decodes with FLACDecoder.
func NewVerifier() *Verifier {
	return &Verifier{Decoder: FLACDecoder{}}
}

// Verify decodes the whole file and compares its audio checksum with the one
// recorded in the header. Verify runs to completion even if ctx is cancelled.
func (v *Verifier) Verify(_ context.Context, path string) (outcome jobs.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = jobs.OutcomeError(fmt.Sprintf("decoder panic: %v", r))
		}
	}()

	dec := v.Decoder
	if dec == nil {
		dec = FLACDecoder{}
	}
	stream, err := dec.Open(path)
	if err != nil {
		return jobs.OutcomeFromError(err)
	}
	defer stream.Close()

	info := stream.Info()
	if info.BitsPerSample < minBitsPerSample || info.BitsPerSample > maxBitsPerSample {
		return jobs.OutcomeError(fmt.Sprintf("unsupported bits per sample: %d", info.BitsPerSample))
	}
	if info.Channels <= 0 {
		return jobs.OutcomeError(fmt.Sprintf("invalid channel count: %d", info.Channels))
	}

	sum, err := hashStream(stream, info)
	if err != nil {
		return jobs.OutcomeFromError(err)
	}
	if !info.HasMD5() {
		return jobs.OutcomeOK()
	}
	if sum != info.MD5 {
		return jobs.OutcomeBad(jobs.VerificationFailedMessage)
	}
	return jobs.OutcomeOK()
}

// hashStream feeds every sample to MD5 in the reference layout: interleaved
// by channel, little-endian, (bps+7)/8 bytes per sample.
func hashStream(stream Stream, info StreamInfo) ([md5.Size]byte, error) {
	var out [md5.Size]byte
	h := md5.New()
	width := (info.BitsPerSample + 7) / 8
	var buf []byte

	for {
		block, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return out, fmt.Errorf("decode: %w", err)
		}
		if len(block) != info.Channels {
			return out, fmt.Errorf("decode: block has %d channels, stream has %d", len(block), info.Channels)
		}
		n := len(block[0])
		for ch := 1; ch < len(block); ch++ {
			if len(block[ch]) != n {
				return out, fmt.Errorf("decode: channel %d has %d samples, channel 0 has %d", ch, len(block[ch]), n)
			}
		}
		buf = appendInterleaved(buf[:0], block, n, width)
		writeAll(h, buf)
	}
	copy(out[:], h.Sum(nil))
	return out, nil
}

func appendInterleaved(buf []byte, block [][]int32, n, width int) []byte {
	for i := 0; i < n; i++ {
		for ch := range block {
			v := uint32(block[ch][i])
			for b := 0; b < width; b++ {
				buf = append(buf, byte(v>>(8*b)))
			}
		}
	}
	return buf
}

func writeAll(h hash.Hash, data []byte) {
	// hash.Hash never returns an error from Write.
	_, _ = h.Write(data)
}
