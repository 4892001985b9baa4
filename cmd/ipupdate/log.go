package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

const logTimeFormat = "2006-01-02 15:04:05,000"

// lineFormatter writes "<time> - <LEVEL> - <message>" followed by any fields as key=value.
type lineFormatter struct{}

func (lineFormatter) Format(e *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer
	b.WriteString(e.Time.Format(logTimeFormat))
	b.WriteString(" - ")
	b.WriteString(strings.ToUpper(e.Level.String()))
	b.WriteString(" - ")
	b.WriteString(e.Message)

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Data[k])
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

// openLog truncates the log file at path and returns a logger writing to it,
// and to mirror as well when mirror is not nil.
func openLog(path string, mirror io.Writer) (*logrus.Logger, func() error, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to open log file \"%s\": %w", path, err)
	}
	var out io.Writer = f
	if mirror != nil {
		out = io.MultiWriter(f, mirror)
	}

	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetFormatter(lineFormatter{})
	logger.SetLevel(logrus.DebugLevel)
	return logger, f.Close, nil
}
