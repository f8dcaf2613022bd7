package export

import (
	"encoding/csv"
	"io"
)

// BOM lets Excel on Windows detect UTF-8.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteCSV writes the attempt table of a thread, one row per attempt.
func WriteCSV(w io.Writer, thread Thread) error {
	if _, err := w.Write(BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(attemptColumns); err != nil {
		return err
	}
	for i := range thread.Attempts {
		if err := cw.Write(attemptRow(&thread.Attempts[i])); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
