package voice

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
)

// buildWAV creates a simple RIFF/WAVE header for 16-bit PCM and returns the
// concatenated bytes (header + data). sampleRate in Hz, channels, bitsPerSample
// (commonly 16) are used to populate the header.
func buildWAV(pcm []byte, sampleRate, channels, bitsPerSample int) []byte {
	byteRate := uint32(sampleRate * channels * bitsPerSample / 8)
	blockAlign := uint16(channels * bitsPerSample / 8)
	dataLen := uint32(len(pcm))
	riffSize := uint32(4 + (8 + 16) + (8 + dataLen))

	buf := &bytes.Buffer{}
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, riffSize)
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1))
	binary.Write(buf, binary.LittleEndian, uint16(channels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, blockAlign)
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataLen))
	buf.Write(pcm)
	return buf.Bytes()
}

// readWAV loads a 16-bit PCM WAV file and returns its raw sample data plus
// format fields. Only the canonical 44-byte header layout produced by
// buildWAV and ffmpeg's pcm_s16le muxer is supported.
func readWAV(path string) (pcm []byte, sampleRate, channels int, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, 0, err
	}
	if len(b) < 44 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return nil, 0, 0, fmt.Errorf("not a RIFF/WAVE file: %s", path)
	}
	channels = int(binary.LittleEndian.Uint16(b[22:24]))
	sampleRate = int(binary.LittleEndian.Uint32(b[24:28]))
	dataLen := int(binary.LittleEndian.Uint32(b[40:44]))
	if dataLen > len(b)-44 {
		dataLen = len(b) - 44
	}
	return b[44 : 44+dataLen], sampleRate, channels, nil
}

// pcmToBytes serializes int16 samples as little-endian PCM.
func pcmToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// rmsOf computes the root-mean-square amplitude of the samples, the crude
// loudness proxy used by the quality gate and the silence boundary.
func rmsOf(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sumSq float64
	for _, s := range samples {
		v := float64(s)
		sumSq += v * v
	}
	return math.Sqrt(sumSq / float64(len(samples)))
}
