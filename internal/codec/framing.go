package codec

import (
	"encoding/binary"
	"fmt"
)

// Content values are containers of length-framed byte sections: each section
// is a uvarint length followed by that many bytes. The framing is fixed per
// selector, so decoding is unambiguous without self-describing headers.

func appendSection(dst, section []byte) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(section)))
	return append(dst, section...)
}

func readSection(src []byte) (section, rest []byte, err error) {
	n, width := binary.Uvarint(src)
	if width <= 0 {
		return nil, nil, fmt.Errorf("bad section length prefix")
	}
	src = src[width:]
	if uint64(len(src)) < n {
		return nil, nil, fmt.Errorf("section truncated: have %d bytes, want %d", len(src), n)
	}
	return src[:n], src[n:], nil
}

func readSections(src []byte, count int) ([][]byte, error) {
	out := make([][]byte, 0, count)
	for i := 0; i < count; i++ {
		section, rest, err := readSection(src)
		if err != nil {
			return nil, fmt.Errorf("section %d: %w", i, err)
		}
		out = append(out, section)
		src = rest
	}
	if len(src) != 0 {
		return nil, fmt.Errorf("%d trailing bytes after %d sections", len(src), count)
	}
	return out, nil
}
