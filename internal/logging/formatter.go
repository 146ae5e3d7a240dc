package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

// Formatter renders entries as a colored "time LEVEL msg key=value" line.
type Formatter struct {
	TimestampFormat string
	DisableColors   bool
}

func NewFormatter() *Formatter {
	return &Formatter{TimestampFormat: time.RFC3339}
}

// New creates a logger writing to stderr at the given level. Unknown
// levels fall back to info.
func New(level string) *logrus.Logger {
	return NewWithOutput(os.Stderr, level)
}

func NewWithOutput(out io.Writer, level string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	log.SetFormatter(NewFormatter())

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		log.SetLevel(logrus.InfoLevel)
		log.WithFields(logrus.Fields{
			"attempted_level": level,
			"default_level":   "INFO",
		}).Warn("Invalid log level specified, defaulting to INFO")
		return log
	}
	log.SetLevel(lvl)
	return log
}

// Discard returns an entry that drops everything. Used by tests.
func Discard() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func (f *Formatter) Format(entry *logrus.Entry) ([]byte, error) {
	b := entry.Buffer
	if b == nil {
		b = &bytes.Buffer{}
	}

	sprint := func(c *color.Color, s string) string {
		if f.DisableColors {
			return s
		}
		return c.Sprint(s)
	}

	levelColor := levelColor(entry.Level)
	b.WriteString(sprint(color.New(color.FgYellow), entry.Time.Format(f.TimestampFormat)))
	b.WriteByte(' ')
	b.WriteString(sprint(levelColor, fmt.Sprintf("%-7s", strings.ToUpper(entry.Level.String()))))
	b.WriteByte(' ')
	b.WriteString(sprint(levelColor, entry.Message))

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sortFields(keys)

	for _, k := range keys {
		fieldColor := color.New(color.FgCyan)
		if isImportantField(k) {
			fieldColor = color.New(color.FgGreen)
		}
		b.WriteByte(' ')
		b.WriteString(sprint(fieldColor, k+"="))
		b.WriteString(formatValue(entry.Data[k]))
	}

	b.WriteByte('\n')
	return b.Bytes(), nil
}

func formatValue(v interface{}) string {
	switch v := v.(type) {
	case string:
		return fmt.Sprintf("%q", v)
	case error:
		return fmt.Sprintf("%q", v.Error())
	case fmt.Stringer:
		return fmt.Sprintf("%q", v.String())
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

func levelColor(level logrus.Level) *color.Color {
	switch level {
	case logrus.DebugLevel, logrus.TraceLevel:
		return color.New(color.FgBlue)
	case logrus.InfoLevel:
		return color.New(color.FgGreen)
	case logrus.WarnLevel:
		return color.New(color.FgYellow)
	case logrus.ErrorLevel:
		return color.New(color.FgRed)
	default:
		return color.New(color.FgRed, color.Bold)
	}
}

var fieldPriority = map[string]int{
	"session":  1,
	"route":    2,
	"tweet_id": 3,
	"error":    4,
}

func isImportantField(field string) bool {
	return field == "tweet_id" || field == "error"
}

func sortFields(keys []string) {
	sort.Slice(keys, func(i, j int) bool {
		pi, pj := fieldPriority[keys[i]], fieldPriority[keys[j]]
		switch {
		case pi != 0 && pj != 0:
			return pi < pj
		case pi != 0:
			return true
		case pj != 0:
			return false
		}
		return keys[i] < keys[j]
	})
}
