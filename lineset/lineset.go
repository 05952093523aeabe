// Package lineset implements set operations over line-delimited text files.
//
// Lines are compared exactly: only the terminating '\n' is removed, so two lines
// that differ in trailing spaces or a '\r' are distinct.
package lineset

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
)

// Read returns every line of r.
func Read(r io.Reader) ([]string, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	var lines []string
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			lines = append(lines, strings.TrimSuffix(line, "\n"))
		}
		if errors.Is(err, io.EOF) {
			return lines, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// ReadFile returns every line of the file at path.
func ReadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	lines, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return lines, nil
}

// Write writes each line followed by '\n'.
func Write(w io.Writer, lines []string) error {
	bw := bufio.NewWriter(w)
	for _, line := range lines {
		if _, err := bw.WriteString(line); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile replaces the file at path with lines.
func WriteFile(path string, lines []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := Write(f, lines); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// Unique returns just the unique items in list.
// order is preserved.
func Unique[T comparable](list []T) []T {
	idx := make(map[T]struct{}, len(list))
	result := make([]T, 0, len(list))
	for _, item := range list {
		if _, present := idx[item]; !present {
			idx[item] = struct{}{}
			result = append(result, item)
		}
	}
	return result
}

// UniqueSorted returns the unique lines of list in ascending order.
func UniqueSorted(list []string) []string {
	out := Unique(list)
	slices.Sort(out)
	return out
}

// Intersect returns the lines present in both a and b, sorted.
func Intersect(a, b []string) []string {
	inB := make(map[string]struct{}, len(b))
	for _, line := range b {
		inB[line] = struct{}{}
	}
	common := []string{}
	for _, line := range Unique(a) {
		if _, ok := inB[line]; ok {
			common = append(common, line)
		}
	}
	slices.Sort(common)
	return common
}

// CountNonBlank counts lines containing something other than whitespace.
func CountNonBlank(list []string) int {
	n := 0
	for _, line := range list {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}

// DedupeStats reports the effect of DedupeFile.
type DedupeStats struct {
	Read    int
	Written int
}

// DedupeFile coalesces duplicate lines of src into dst, sorting when sorted is true.
// src and dst may be the same path.
func DedupeFile(src, dst string, sorted bool) (DedupeStats, error) {
	lines, err := ReadFile(src)
	if err != nil {
		return DedupeStats{}, err
	}
	var out []string
	if sorted {
		out = UniqueSorted(lines)
	} else {
		out = Unique(lines)
	}
	if err := WriteFile(dst, out); err != nil {
		return DedupeStats{}, err
	}
	return DedupeStats{Read: len(lines), Written: len(out)}, nil
}

// IntersectFiles writes the lines common to a and b into dst and returns how many there were.
func IntersectFiles(a, b, dst string) (int, error) {
	linesA, err := ReadFile(a)
	if err != nil {
		return 0, err
	}
	linesB, err := ReadFile(b)
	if err != nil {
		return 0, err
	}
	common := Intersect(linesA, linesB)
	if err := WriteFile(dst, common); err != nil {
		return 0, err
	}
	return len(common), nil
}
