// Package wav encodes and decodes self-contained RIFF/WAVE PCM16 byte
// buffers. No library in the retrieval pack provides this narrow binary
// format (see DESIGN.md); it is a handful of fixed-offset writes/reads
// against the stdlib encoding/binary package.
package wav

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	headerSize  = 44
	bitsPerSamp = 16
	numChannels = 1
)

// Encode produces a self-contained RIFF/WAVE byte buffer: PCM, mono,
// 16-bit, at sampleRate.
func Encode(samples []int16, sampleRate int) []byte {
	dataSize := len(samples) * 2
	buf := bytes.NewBuffer(make([]byte, 0, headerSize+dataSize))

	byteRate := sampleRate * numChannels * bitsPerSamp / 8
	blockAlign := numChannels * bitsPerSamp / 8

	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16)) // PCM fmt chunk size
	_ = binary.Write(buf, binary.LittleEndian, uint16(1))  // PCM format tag
	_ = binary.Write(buf, binary.LittleEndian, uint16(numChannels))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	_ = binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(buf, binary.LittleEndian, uint16(bitsPerSamp))

	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, uint32(dataSize))
	_ = binary.Write(buf, binary.LittleEndian, samples)

	return buf.Bytes()
}

// Decode parses a RIFF/WAVE PCM16 mono buffer back into samples and its
// sample rate. Used by the round-trip property in spec.md §8.
func Decode(data []byte) ([]int16, int, error) {
	if len(data) < headerSize {
		return nil, 0, fmt.Errorf("wav: buffer too short (%d bytes)", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("wav: not a RIFF/WAVE buffer")
	}
	if string(data[12:16]) != "fmt " {
		return nil, 0, fmt.Errorf("wav: missing fmt chunk")
	}

	channels := binary.LittleEndian.Uint16(data[22:24])
	if channels != numChannels {
		return nil, 0, fmt.Errorf("wav: expected mono, got %d channels", channels)
	}
	sampleRate := int(binary.LittleEndian.Uint32(data[24:28]))
	bits := binary.LittleEndian.Uint16(data[34:36])
	if bits != bitsPerSamp {
		return nil, 0, fmt.Errorf("wav: expected 16-bit samples, got %d", bits)
	}
	if string(data[36:40]) != "data" {
		return nil, 0, fmt.Errorf("wav: missing data chunk")
	}
	dataSize := int(binary.LittleEndian.Uint32(data[40:44]))
	if headerSize+dataSize > len(data) {
		return nil, 0, fmt.Errorf("wav: data chunk truncated")
	}

	samples := make([]int16, dataSize/2)
	if err := binary.Read(bytes.NewReader(data[headerSize:headerSize+dataSize]), binary.LittleEndian, &samples); err != nil {
		return nil, 0, fmt.Errorf("wav: decode samples: %w", err)
	}
	return samples, sampleRate, nil
}
