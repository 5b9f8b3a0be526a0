package audio

import (
	"bytes"
	"encoding/binary"
)

// EncodeWAV renders float32 PCM samples as a 16-bit mono/stereo WAV blob.
func EncodeWAV(samples []float32, sampleRate, channels int) []byte {
	header := []byte{
		'R', 'I', 'F', 'F',
		0, 0, 0, 0, // file size, filled below
		'W', 'A', 'V', 'E',

		'f', 'm', 't', ' ',
		16, 0, 0, 0, // fmt chunk size
		1, 0, // PCM
		0, 0, // channels, filled below
		0, 0, 0, 0, // sample rate, filled below
		0, 0, 0, 0, // byte rate, filled below
		0, 0, // block align, filled below
		16, 0, // bits per sample

		'd', 'a', 't', 'a',
		0, 0, 0, 0, // data size, filled below
	}

	ch := uint16(channels)
	rate := uint32(sampleRate)
	bitsPerSample := uint16(16)
	byteRate := rate * uint32(ch) * uint32(bitsPerSample) / 8
	blockAlign := ch * bitsPerSample / 8
	dataSize := uint32(len(samples) * 2)
	fileSize := uint32(len(header)) + dataSize - 8

	binary.LittleEndian.PutUint32(header[4:8], fileSize)
	binary.LittleEndian.PutUint16(header[22:24], ch)
	binary.LittleEndian.PutUint32(header[24:28], rate)
	binary.LittleEndian.PutUint32(header[28:32], byteRate)
	binary.LittleEndian.PutUint16(header[32:34], blockAlign)
	binary.LittleEndian.PutUint32(header[40:44], dataSize)

	buf := bytes.NewBuffer(make([]byte, 0, len(header)+int(dataSize)))
	buf.Write(header)

	for _, sample := range samples {
		if sample > 1 {
			sample = 1
		} else if sample < -1 {
			sample = -1
		}
		intSample := int16(sample * 32767)
		var pair [2]byte
		binary.LittleEndian.PutUint16(pair[:], uint16(intSample))
		buf.Write(pair[:])
	}

	return buf.Bytes()
}
