package runner

import (
	"fmt"
	"io"
)

// prefixedWriter adds a prefix to each line written.
type prefixedWriter struct {
	prefix string
	writer io.Writer
	buf    []byte
}

func (w *prefixedWriter) Write(p []byte) (n int, err error) {
	n = len(p)
	w.buf = append(w.buf, p...)

	for {
		idx := -1

		for i, b := range w.buf {
			if b == '\n' {
				idx = i

				break
			}
		}

		if idx == -1 {
			break
		}

		line := w.buf[:idx+1]
		w.buf = w.buf[idx+1:]

		if _, err := fmt.Fprintf(w.writer, "%s%s", w.prefix, line); err != nil {
			return n, err
		}
	}

	return n, nil
}
