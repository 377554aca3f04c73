package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

// ErrNotArray is returned when a file holds JSON that is not an array.
var ErrNotArray = errors.New("does not contain a JSON array")

// WriteArray writes items to path as one indented JSON array.
func WriteArray(path string, items any) error {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// DecodeArray streams the elements of a top-level JSON array from r, calling
// fn with each raw element in order.
func DecodeArray(r io.Reader, fn func(json.RawMessage) error) error {
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return ErrNotArray
	}
	for dec.More() {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		if err := fn(raw); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// ReadArray loads every element of the JSON array in path.
func ReadArray(path string) ([]json.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	items := make([]json.RawMessage, 0)
	err = DecodeArray(f, func(raw json.RawMessage) error {
		items = append(items, raw)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return items, nil
}

var trailingNumber = regexp.MustCompile(`(\d+)\.json$`)

// SortNumbered orders paths by the number before their .json suffix, so
// part_2.json sorts before part_10.json. Paths without a number sort first,
// lexically.
func SortNumbered(paths []string) {
	key := func(p string) (int, bool) {
		m := trailingNumber.FindStringSubmatch(filepath.Base(p))
		if m == nil {
			return 0, false
		}
		n, err := strconv.Atoi(m[1])
		return n, err == nil
	}
	sort.SliceStable(paths, func(i, j int) bool {
		ni, oki := key(paths[i])
		nj, okj := key(paths[j])
		switch {
		case oki != okj:
			return !oki
		case !oki:
			return paths[i] < paths[j]
		case ni != nj:
			return ni < nj
		default:
			return paths[i] < paths[j]
		}
	})
}

// Combine concatenates the arrays in paths, in numeric suffix order. Any
// file that is not a JSON array is an error.
func Combine(paths []string) ([]json.RawMessage, error) {
	ordered := append([]string(nil), paths...)
	SortNumbered(ordered)

	combined := make([]json.RawMessage, 0)
	for _, p := range ordered {
		items, err := ReadArray(p)
		if err != nil {
			return nil, err
		}
		combined = append(combined, items...)
	}
	return combined, nil
}

// CountDuplicates returns how many items repeat an earlier item with
// identical content.
func CountDuplicates(items []json.RawMessage) int {
	seen := make(map[string]struct{}, len(items))
	dups := 0
	var buf bytes.Buffer
	for _, item := range items {
		buf.Reset()
		key := string(item)
		if err := json.Compact(&buf, item); err == nil {
			key = buf.String()
		}
		if _, ok := seen[key]; ok {
			dups++
			continue
		}
		seen[key] = struct{}{}
	}
	return dups
}
