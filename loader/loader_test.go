package loader

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ftl/tracescope/channel"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.csv")
	require.NoError(t, os.WriteFile(path, []byte("0.0,1.0\n0.1, 2.0\n\n0.2,1.5\n"), 0o644))

	rows, err := NewCSVLoader().Load(path)

	require.NoError(t, err)
	assert.Equal(t, [][]string{{"0.0", "1.0"}, {"0.1", "2.0"}, {"0.2", "1.5"}}, rows)
}

func TestLoad_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.csv")

	rows, err := NewCSVLoader().Load(path)

	assert.Nil(t, rows)
	var accessErr *FileAccessError
	require.True(t, errors.As(err, &accessErr))
	assert.Equal(t, path, accessErr.Path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestRead_KeepsFieldCountForValidation(t *testing.T) {
	rows, err := NewCSVLoader().Read(strings.NewReader("1,2,3\n4\n"))

	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", "2", "3"}, {"4"}}, rows)

	_, err = channel.ParseRows(rows)
	assert.ErrorIs(t, err, channel.ErrFieldCount)
}

func TestRead_QuoteErrorIsParseError(t *testing.T) {
	_, err := NewCSVLoader().Read(strings.NewReader("1,2\n\"3,4\n"))

	var parseErr *channel.ParseError
	require.True(t, errors.As(err, &parseErr), "error: %v", err)
}

func TestRead_CustomComma(t *testing.T) {
	rows, err := (&CSVLoader{Comma: ';'}).Read(strings.NewReader("1;2\n"))

	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", "2"}}, rows)
}

func TestAccepted(t *testing.T) {
	assert.True(t, Accepted("data/ecg.CSV"))
	assert.True(t, Accepted("signal.txt"))
	assert.False(t, Accepted("signal.wav"))
}

func TestStaticBrowser(t *testing.T) {
	browser := NewStaticBrowser("a.csv", "", "c.csv", "ignored.csv")

	path, ok := browser.Browse(0)
	assert.True(t, ok)
	assert.Equal(t, "a.csv", path)

	_, ok = browser.Browse(1)
	assert.False(t, ok)

	browser.Select(1, "b.csv")
	path, ok = browser.Browse(1)
	assert.True(t, ok)
	assert.Equal(t, "b.csv", path)

	_, ok = browser.Browse(3)
	assert.False(t, ok)
}
