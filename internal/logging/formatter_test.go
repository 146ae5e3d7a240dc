package logging

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatterOrdersFields(t *testing.T) {
	f := &Formatter{TimestampFormat: time.RFC3339, DisableColors: true}
	entry := &logrus.Entry{
		Logger:  logrus.New(),
		Time:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Level:   logrus.WarnLevel,
		Message: "scroll height unchanged",
		Data: logrus.Fields{
			"fail_count": 3,
			"tweet_id":   "1790000000000000000",
			"session":    "abc",
			"error":      errors.New("boom"),
		},
	}

	out, err := f.Format(entry)
	require.NoError(t, err)

	assert.Equal(t,
		`2024-05-01T12:00:00Z WARNING scroll height unchanged session="abc" tweet_id="1790000000000000000" error="boom" fail_count=3`+"\n",
		string(out))
}

func TestNewWithOutputInvalidLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput(&buf, "chatty")

	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	assert.Contains(t, buf.String(), "Invalid log level")
}
