// Package loader reads recorded traces from delimited text files.
package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/ftl/tracescope/channel"
)

// Extensions lists the file extensions that are offered when browsing for a trace.
var Extensions = []string{".csv", ".xls", ".txt"}

// FileAccessError indicates that the input file is missing or cannot be read.
type FileAccessError struct {
	Path string
	Err  error
}

func (e *FileAccessError) Error() string {
	return fmt.Sprintf("cannot access %s: %v", e.Path, e.Err)
}

func (e *FileAccessError) Unwrap() error {
	return e.Err
}

// CSVLoader reads comma separated rows. It does not skip any header row.
type CSVLoader struct {
	Comma rune
}

func NewCSVLoader() *CSVLoader {
	return &CSVLoader{Comma: ','}
}

// Load reads all rows of the given file.
func (l *CSVLoader) Load(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &FileAccessError{Path: path, Err: err}
	}
	defer file.Close()

	rows, err := l.Read(file)
	if err != nil {
		var parseErr *channel.ParseError
		if errors.As(err, &parseErr) {
			return nil, err
		}
		return nil, &FileAccessError{Path: path, Err: err}
	}
	log.WithField("path", path).Debugf("%d rows read", len(rows))
	return rows, nil
}

// Read reads all rows from the given reader. The rows are not validated here, the
// channel checks the two numeric fields contract.
func (l *CSVLoader) Read(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.Comma = l.comma()
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var result [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			return result, nil
		}
		var csvErr *csv.ParseError
		if errors.As(err, &csvErr) {
			return nil, &channel.ParseError{Row: len(result), Column: -1, Err: csvErr.Err}
		}
		if err != nil {
			return nil, err
		}
		result = append(result, row)
	}
}

func (l *CSVLoader) comma() rune {
	if l.Comma == 0 {
		return ','
	}
	return l.Comma
}

// Accepted indicates if the given path has one of the offered extensions.
func Accepted(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// StaticBrowser hands out preselected paths per channel, replacing an interactive file dialog.
// A channel without a path is treated like a cancelled dialog.
type StaticBrowser struct {
	paths [channel.Count]string
}

func NewStaticBrowser(paths ...string) *StaticBrowser {
	result := new(StaticBrowser)
	for i, path := range paths {
		if i >= channel.Count {
			log.Warnf("only %d channels available, ignoring %s", channel.Count, path)
			continue
		}
		result.paths[i] = path
	}
	return result
}

// Select sets the path for the given channel.
func (b *StaticBrowser) Select(id channel.ID, path string) {
	if !id.Valid() {
		return
	}
	b.paths[id] = path
}

// Browse returns the path for the given channel. ok is false if no path is selected.
func (b *StaticBrowser) Browse(id channel.ID) (string, bool) {
	if !id.Valid() || b.paths[id] == "" {
		return "", false
	}
	return b.paths[id], true
}
