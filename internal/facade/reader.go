package facade

import "os"

// OSReader is the production sessioncore.SourceReader: it reads
// canonical host paths directly off the local filesystem. The facade
// wires this in so SessionCore itself never touches os directly
// (spec.md §4.4's SourceReader boundary).
type OSReader struct{}

func (OSReader) ReadSource(canonicalPath string) (string, error) {
	data, err := os.ReadFile(canonicalPath)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
