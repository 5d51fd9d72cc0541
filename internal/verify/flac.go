package verify

import (
	"errors"
	"fmt"
	"io"

	"github.com/mewkiz/flac"
)

// FLACDecoder opens files with github.com/mewkiz/flac.
type FLACDecoder struct{}

// Open parses the stream header of the file at path.
func (FLACDecoder) Open(path string) (Stream, error) {
	stream, err := flac.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if stream.Info == nil {
		_ = stream.Close()
		return nil, fmt.Errorf("open %s: missing STREAMINFO block", path)
	}
	return &flacStream{stream: stream}, nil
}

type flacStream struct {
	stream *flac.Stream
}

func (s *flacStream) Info() StreamInfo {
	info := s.stream.Info
	return StreamInfo{
		Channels:      int(info.NChannels),
		BitsPerSample: int(info.BitsPerSample),
		SampleRate:    int(info.SampleRate),
		TotalSamples:  info.NSamples,
		MD5:           info.MD5sum,
	}
}

func (s *flacStream) Next() ([][]int32, error) {
	frame, err := s.stream.ParseNext()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, err
	}
	block := make([][]int32, len(frame.Subframes))
	for ch, sub := range frame.Subframes {
		block[ch] = sub.Samples
	}
	return block, nil
}

func (s *flacStream) Close() error {
	return s.stream.Close()
}
