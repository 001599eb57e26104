// Package labelmap reads the category map that ships with the detection model.
package labelmap

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

var (
	// ErrParse is returned for a missing or malformed label map file.
	ErrParse = errors.New("label map parse error")
	// ErrUnknownClass is returned when a class id has no entry in the map.
	ErrUnknownClass = errors.New("unknown class id")
)

// Category is a single label map entry.
type Category struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// LabelMap maps a class id to its category.
type LabelMap map[int]Category

// Load reads a label map file from disk.
func Load(path string) (LabelMap, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads pbtxt style item blocks:
//
//	item {
//	  id: 1
//	  name: "malignant"
//	}
//
// Every line containing "id" carries the class id after its last colon and
// the line right after it carries the quoted name.
func Parse(r io.Reader) (LabelMap, error) {
	labels := make(LabelMap)
	scanner := bufio.NewScanner(r)
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if !strings.Contains(line, "id") {
			continue
		}

		id, err := strconv.Atoi(strings.TrimSpace(afterLastColon(line)))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: invalid id %q", ErrParse, lineNo, line)
		}

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrParse, err)
			}
			return nil, fmt.Errorf("%w: line %d: id %d has no name line", ErrParse, lineNo, id)
		}
		lineNo++

		name := strings.Trim(strings.TrimSpace(afterLastColon(scanner.Text())), `"`)
		if name == "" {
			return nil, fmt.Errorf("%w: line %d: empty name for id %d", ErrParse, lineNo, id)
		}

		labels[id] = Category{ID: id, Name: name}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	return labels, nil
}

func afterLastColon(line string) string {
	if i := strings.LastIndex(line, ":"); i >= 0 {
		return line[i+1:]
	}
	return line
}

// Name returns the display name for a class id.
func (m LabelMap) Name(id int) (string, error) {
	category, ok := m[id]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrUnknownClass, id)
	}
	return category.Name, nil
}

// IDs returns the class ids in ascending order.
func (m LabelMap) IDs() []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
