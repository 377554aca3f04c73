package output

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rec struct {
	ID int `json:"id"`
}

func TestStreamWriter_BatchesFormOneArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	w, err := Create(path)
	require.NoError(t, err)

	const total, batchSize = 250, 100
	for start := 0; start < total; start += batchSize {
		var batch []any
		for i := start; i < start+batchSize && i < total; i++ {
			batch = append(batch, rec{ID: i})
		}
		require.NoError(t, w.WriteBatch(batch))
	}
	require.NoError(t, w.Close())
	require.NoError(t, w.Close(), "second close is a no-op")

	assert.Equal(t, 3, w.Batches())
	assert.Equal(t, total, w.Count())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got []rec
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got, total)
	for i, r := range got {
		assert.Equal(t, i, r.ID)
	}
}

func TestStreamWriter_ValidWhenEmptyOrInterrupted(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewStreamWriter(&buf)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	var got []rec
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Empty(t, got)

	buf.Reset()
	w, err = NewStreamWriter(&buf)
	require.NoError(t, err)
	require.NoError(t, w.WriteBatch([]any{rec{ID: 1}}))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("[\n{\n  \"id\": 1\n}")), "batch is flushed before close")
	require.NoError(t, w.Close())
	assert.Error(t, w.WriteBatch([]any{rec{ID: 2}}))

	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, []rec{{ID: 1}}, got)
}

func TestLineWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewLineWriter(&buf)
	require.NoError(t, w.WriteLines([][]byte{[]byte(`{"a":1}`), []byte(`{"a":2}`)}))
	require.NoError(t, w.Close())

	assert.Equal(t, "{\"a\":1}\n{\"a\":2}\n", buf.String())
	assert.Equal(t, 2, w.Count())
}

func TestDecodeArray_RejectsNonArrays(t *testing.T) {
	err := DecodeArray(bytes.NewReader([]byte(`{"a":1}`)), func(json.RawMessage) error { return nil })
	assert.ErrorIs(t, err, ErrNotArray)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestSortNumbered(t *testing.T) {
	paths := []string{"out/part_10.json", "out/part_2.json", "out/extra.json", "out/part_1.json"}
	SortNumbered(paths)
	assert.Equal(t, []string{"out/extra.json", "out/part_1.json", "out/part_2.json", "out/part_10.json"}, paths)
}

func TestCombine(t *testing.T) {
	dir := t.TempDir()
	p10 := writeFile(t, dir, "enriched_10.json", `[{"id":3}]`)
	p2 := writeFile(t, dir, "enriched_2.json", `[{"id":1},{"id":2}]`)
	p3 := writeFile(t, dir, "enriched_3.json", `[{"id": 2}]`)

	items, err := Combine([]string{p10, p2, p3})
	require.NoError(t, err)

	var ids []int
	for _, raw := range items {
		var r rec
		require.NoError(t, json.Unmarshal(raw, &r))
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []int{1, 2, 2, 3}, ids)
	assert.Equal(t, 1, CountDuplicates(items), "whitespace differences do not hide a duplicate")

	bad := writeFile(t, dir, "enriched_4.json", `{"id":4}`)
	_, err = Combine([]string{p2, bad})
	assert.ErrorIs(t, err, ErrNotArray)
}
