package bridge

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/relay/internal/shared/types"
)

type inner struct {
	Name string `relay:"name"`
}

type sample struct {
	Title    string            `relay:"title"`
	Count    int               `relay:"count"`
	Score    float64           `relay:"score,optional"`
	Note     *string           `relay:"note,optional"`
	Year     *int              `relay:"year,optional"`
	Active   bool              `relay:"active,optional"`
	Tags     []string          `relay:"tags,default"`
	Links    []string          `relay:"links,optional"`
	Headers  map[string]string `relay:"headers,optional"`
	Child    inner             `relay:"child,optional"`
	Children []inner           `relay:"children,optional"`
	Ignored  string
}

func TestConvertPopulatesRecord(t *testing.T) {
	raw := map[string]interface{}{
		"title":    "Naruto",
		"count":    int64(3),
		"score":    8.5,
		"note":     "hello",
		"year":     float64(2002),
		"active":   true,
		"tags":     []interface{}{"action", "ninja"},
		"headers":  map[string]interface{}{"Referer": "https://example.com"},
		"child":    map[string]interface{}{"name": "a"},
		"children": []interface{}{map[string]interface{}{"name": "b"}},
		"Ignored":  "not decoded",
	}

	got, err := Convert[sample](raw)
	require.NoError(t, err)

	assert.Equal(t, "Naruto", got.Title)
	assert.Equal(t, 3, got.Count)
	assert.Equal(t, 8.5, got.Score)
	require.NotNil(t, got.Note)
	assert.Equal(t, "hello", *got.Note)
	require.NotNil(t, got.Year)
	assert.Equal(t, 2002, *got.Year)
	assert.True(t, got.Active)
	assert.Equal(t, []string{"action", "ninja"}, got.Tags)
	assert.Nil(t, got.Links)
	assert.Equal(t, map[string]string{"Referer": "https://example.com"}, got.Headers)
	assert.Equal(t, "a", got.Child.Name)
	assert.Equal(t, []inner{{Name: "b"}}, got.Children)
	assert.Empty(t, got.Ignored)
}

func TestConvertOptionalAndDefault(t *testing.T) {
	raw := map[string]interface{}{
		"title": "x",
		"count": int64(0),
		"note":  nil,
		"links": nil,
	}

	got, err := Convert[sample](raw)
	require.NoError(t, err)

	// Optional fields stay unset
	assert.Nil(t, got.Note)
	assert.Nil(t, got.Year)
	assert.Nil(t, got.Links)
	assert.Nil(t, got.Headers)

	// Defaulted fields take the contract default
	assert.NotNil(t, got.Tags)
	assert.Empty(t, got.Tags)
}

func TestConvertFailures(t *testing.T) {
	tests := []struct {
		name     string
		raw      interface{}
		path     string
		expected string
		actual   string
		missing  bool
	}{
		{
			name:     "missing required",
			raw:      map[string]interface{}{"count": int64(1)},
			path:     "title",
			expected: "string",
			missing:  true,
		},
		{
			name:     "null required",
			raw:      map[string]interface{}{"title": nil, "count": int64(1)},
			path:     "title",
			expected: "string",
			missing:  true,
		},
		{
			name:     "string expected number given",
			raw:      map[string]interface{}{"title": int64(5), "count": int64(1)},
			path:     "title",
			expected: "string",
			actual:   "integer",
		},
		{
			name:     "integer expected fraction given",
			raw:      map[string]interface{}{"title": "t", "count": 1.5},
			path:     "count",
			expected: "integer",
			actual:   "number",
		},
		{
			name:     "array expected object given",
			raw:      map[string]interface{}{"title": "t", "count": int64(1), "tags": map[string]interface{}{}},
			path:     "tags",
			expected: "array of string",
			actual:   "object",
		},
		{
			name:     "nested element",
			raw:      map[string]interface{}{"title": "t", "count": int64(1), "children": []interface{}{map[string]interface{}{"name": "ok"}, map[string]interface{}{}}},
			path:     "children[1].name",
			expected: "string",
			missing:  true,
		},
		{
			name:     "array element mismatch",
			raw:      map[string]interface{}{"title": "t", "count": int64(1), "tags": []interface{}{"a", true}},
			path:     "tags[1]",
			expected: "string",
			actual:   "boolean",
		},
		{
			name:     "map value mismatch",
			raw:      map[string]interface{}{"title": "t", "count": int64(1), "headers": map[string]interface{}{"X": int64(1)}},
			path:     "headers.X",
			expected: "string",
			actual:   "integer",
		},
		{
			name:     "root not an object",
			raw:      "nope",
			path:     "",
			expected: "object",
			actual:   "string",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Convert[sample](tt.raw)
			require.Error(t, err)
			assert.Equal(t, sample{}, got)

			var failure *ConversionFailure
			require.True(t, errors.As(err, &failure))
			assert.Equal(t, tt.path, failure.Path)
			assert.Equal(t, tt.expected, failure.Expected)
			assert.Equal(t, tt.actual, failure.Actual)
			assert.Equal(t, tt.missing, failure.Missing)

			if tt.missing {
				assert.ErrorIs(t, err, ErrMissingField)
			} else {
				assert.ErrorIs(t, err, ErrTypeMismatch)
			}
		})
	}
}

func TestConvertSearchResultNamesFirstMissingTitle(t *testing.T) {
	raw := map[string]interface{}{
		"results": []interface{}{
			map[string]interface{}{"url": "/a", "poster": "a.jpg"},
			map[string]interface{}{"url": "/b", "poster": "b.jpg"},
		},
	}

	_, err := Convert[types.SearchResult](raw)

	var failure *ConversionFailure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, "results[0].title", failure.Path)
	assert.True(t, failure.Missing)
}

func TestConvertTopLevelArray(t *testing.T) {
	raw := []interface{}{
		map[string]interface{}{
			"title": "Sub",
			"list": []interface{}{
				map[string]interface{}{"name": "Server 1", "url": "https://s1"},
			},
		},
	}

	got, err := Convert[[]types.SourceList](raw)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Server 1", got[0].List[0].Name)

	_, err = Convert[[]types.SourceList]([]interface{}{map[string]interface{}{"title": "Dub"}})
	var failure *ConversionFailure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, "[0].list", failure.Path)
}

func TestDecodeLeavesTargetUntouchedOnFailure(t *testing.T) {
	target := sample{Title: "keep"}

	err := Decode(map[string]interface{}{"title": "new"}, &target)
	require.Error(t, err)
	assert.Equal(t, "keep", target.Title)

	assert.Error(t, Decode(map[string]interface{}{}, target))
}

func TestConversionFailureMessage(t *testing.T) {
	missing := &ConversionFailure{Path: "results[0].title", Expected: "string", Missing: true}
	assert.Contains(t, missing.Error(), `"results[0].title"`)

	mismatch := &ConversionFailure{Path: "count", Expected: "integer", Actual: "string"}
	assert.Equal(t, `field "count": expected integer, got string`, mismatch.Error())
}
