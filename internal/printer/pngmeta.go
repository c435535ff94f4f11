package printer

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"image"
	"image/png"
	"io"
)

// TextChunk is a PNG tEXt keyword/value pair. Values must be Latin-1.
type TextChunk struct {
	Keyword string
	Text    string
}

// DefaultText returns the metadata stamped on every written page.
func DefaultText() []TextChunk {
	return []TextChunk{
		{Keyword: "Software", Text: "tuibooth"},
		{Keyword: "Author", Text: "tuibooth"},
		{Keyword: "Copyright", Text: "Copyright tuibooth. All Rights Reserved."},
	}
}

// pngHeaderLen covers the signature and the IHDR chunk.
const pngHeaderLen = 8 + 4 + 4 + 13 + 4

// EncodePNG writes img as PNG with text chunks placed after IHDR.
func EncodePNG(w io.Writer, img image.Image, text []TextChunk) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("failed to encode png: %w", err)
	}
	data := buf.Bytes()
	if len(data) < pngHeaderLen || string(data[12:16]) != "IHDR" {
		return fmt.Errorf("unexpected png layout")
	}
	if _, err := w.Write(data[:pngHeaderLen]); err != nil {
		return err
	}
	for _, chunk := range text {
		if err := writeTextChunk(w, chunk); err != nil {
			return err
		}
	}
	_, err := w.Write(data[pngHeaderLen:])
	return err
}

func writeTextChunk(w io.Writer, chunk TextChunk) error {
	if chunk.Keyword == "" || len(chunk.Keyword) > 79 {
		return fmt.Errorf("invalid png text keyword %q", chunk.Keyword)
	}
	payload := make([]byte, 0, len(chunk.Keyword)+1+len(chunk.Text))
	payload = append(payload, chunk.Keyword...)
	payload = append(payload, 0)
	payload = append(payload, chunk.Text...)

	var header [8]byte
	binary.BigEndian.PutUint32(header[:4], uint32(len(payload)))
	copy(header[4:], "tEXt")
	crc := crc32.NewIEEE()
	_, _ = crc.Write(header[4:])
	_, _ = crc.Write(payload)
	var trailer [4]byte
	binary.BigEndian.PutUint32(trailer[:], crc.Sum32())

	for _, part := range [][]byte{header[:], payload, trailer[:]} {
		if _, err := w.Write(part); err != nil {
			return err
		}
	}
	return nil
}

// ReadText returns the tEXt chunks of an encoded PNG.
func ReadText(data []byte) (map[string]string, error) {
	if len(data) < 8 || string(data[1:4]) != "PNG" {
		return nil, fmt.Errorf("not a png")
	}
	out := map[string]string{}
	for off := 8; off+12 <= len(data); {
		n := int(binary.BigEndian.Uint32(data[off : off+4]))
		kind := string(data[off+4 : off+8])
		end := off + 12 + n
		if end > len(data) {
			return nil, fmt.Errorf("truncated %s chunk", kind)
		}
		if kind == "tEXt" {
			payload := data[off+8 : off+8+n]
			if i := bytes.IndexByte(payload, 0); i > 0 {
				out[string(payload[:i])] = string(payload[i+1:])
			}
		}
		if kind == "IEND" {
			break
		}
		off = end
	}
	return out, nil
}
