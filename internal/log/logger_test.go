package log

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitByConfigDefaultsToStdout(t *testing.T) {
	err := initByConfig(&LoggerConfig{Level: "info"})
	require.NoError(t, err)
	require.NotNil(t, GetLogger())
}

func TestInitByConfigUnknownAppender(t *testing.T) {
	err := initByConfig(&LoggerConfig{
		Level:     "info",
		Appenders: []AppenderConfig{{Type: "carrier-pigeon"}},
	})
	require.Error(t, err)
}

func TestInitByConfigFileAppenderMissingFilename(t *testing.T) {
	err := initByConfig(&LoggerConfig{
		Level: "info",
		Appenders: []AppenderConfig{{
			Type:    "file",
			Options: map[string]interface{}{"max_size": 10},
		}},
	})
	// lumberjack tolerates an empty filename by deferring the error to
	// first write, so this only exercises the decode path.
	require.NoError(t, err)
}

func TestMultiWriterFansOutToAllWriters(t *testing.T) {
	var a, b countingWriter
	mw := NewMultiWriter().Add(&a).Add(&b)
	n, err := mw.Write([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, 1, a.calls)
	require.Equal(t, 1, b.calls)
}

type countingWriter struct{ calls int }

func (c *countingWriter) Write(p []byte) (int, error) {
	c.calls++
	return len(p), nil
}
