package datalog

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// lineReader yields the log one line at a time. Lines longer than max are
// consumed whole and reported as oversized without their content.
type lineReader struct {
	r   *bufio.Reader
	max int
}

func newLineReader(r io.Reader, max int) *lineReader {
	return &lineReader{r: bufio.NewReaderSize(r, 64*1024), max: max}
}

// next returns io.EOF once the input is exhausted.
func (lr *lineReader) next() (line string, oversized bool, err error) {
	var (
		buf  []byte
		read int
	)
	for {
		chunk, err := lr.r.ReadSlice('\n')
		read += len(chunk)
		if !oversized {
			buf = append(buf, chunk...)
			if len(bytes.TrimRight(buf, "\r\n")) > lr.max {
				oversized = true
				buf = nil
			}
		}
		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if read == 0 {
				return "", false, io.EOF
			}
		case err != nil:
			return "", false, err
		}
		return string(bytes.TrimRight(buf, "\n")), oversized, nil
	}
}
