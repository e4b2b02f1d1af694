package measurement

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const dataSetKey = "data_set:"

// LineError reports a malformed data row.
type LineError struct {
	Line int
	Text string
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d %q: %v", e.Line, e.Text, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// LoadFile opens and loads a data file.
func LoadFile(path string) ([]*DataSet1D, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Load(file)
}

// Load reads an ORSO text file or a bare column file. Rows are Qz R sR and an
// optional sQz, separated by whitespace or commas. Comment lines start with
// '#'; an ORSO "data_set:" entry starts a new dataset whose header is parsed as
// YAML. Without any data_set entry the file is a single dataset named "0".
func Load(r io.Reader) ([]*DataSet1D, error) {
	var (
		sets    []*DataSet1D
		current *DataSet1D
		header  []string
		lineNum int
	)

	finish := func() {
		if current == nil {
			return
		}
		current.Header = parseHeader(header)
		if current.Name == "" {
			current.Name = strconv.Itoa(len(sets))
		}
		sets = append(sets, current)
		current = nil
		header = nil
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "#") {
			text := strings.TrimPrefix(line, "#")
			text = strings.TrimPrefix(text, " ")
			if name, ok := strings.CutPrefix(strings.TrimSpace(text), dataSetKey); ok && !strings.HasPrefix(text, " ") {
				if current != nil && current.Len() > 0 {
					finish()
				}
				if current == nil {
					current = &DataSet1D{}
				}
				current.Name = strings.Trim(strings.TrimSpace(name), `"'`)
			}
			header = append(header, text)
			continue
		}

		row, err := parseRow(line)
		if err != nil {
			return nil, &LineError{Line: lineNum, Text: line, Err: err}
		}
		if current == nil {
			current = &DataSet1D{}
		}
		current.X = append(current.X, row[0])
		current.Y = append(current.Y, row[1])
		current.YErr = append(current.YErr, row[2])
		current.XErr = append(current.XErr, row[3])
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	finish()

	out := sets[:0]
	for _, ds := range sets {
		if ds.Len() > 0 {
			out = append(out, ds)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoData
	}
	return out, nil
}

func parseRow(line string) ([4]float64, error) {
	var row [4]float64
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ' ' || r == '\t' || r == ','
	})
	if len(fields) < 3 {
		return row, fmt.Errorf("expected at least 3 columns, got %d", len(fields))
	}
	for i := 0; i < len(fields) && i < 4; i++ {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return row, err
		}
		row[i] = v
	}
	return row, nil
}

// parseHeader decodes the commented ORSO header. The column caption that
// closes a header is not YAML, so a failed decode is retried without the last
// line. Anything still undecodable yields no header.
func parseHeader(lines []string) map[string]any {
	for len(lines) > 0 {
		var out map[string]any
		if err := yaml.Unmarshal([]byte(strings.Join(lines, "\n")), &out); err == nil {
			return out
		}
		lines = lines[:len(lines)-1]
	}
	return nil
}
