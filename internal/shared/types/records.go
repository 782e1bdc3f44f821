package types

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ============================================================================
// Search
// ============================================================================

// SearchResult is the output of the search operation
type SearchResult struct {
	Info    *SearchInfo  `relay:"info,optional" json:"info,omitempty" yaml:"info,omitempty"`
	Results []SearchItem `relay:"results" json:"results" yaml:"results"`
}

// SearchInfo carries pagination details for a search
type SearchInfo struct {
	Pages int `relay:"pages" json:"pages" yaml:"pages"`
}

// SearchItem is a single search hit
type SearchItem struct {
	URL       string  `relay:"url" json:"url" yaml:"url"`
	Title     string  `relay:"title" json:"title" yaml:"title"`
	Poster    string  `relay:"poster" json:"poster" yaml:"poster"`
	Indicator *string `relay:"indicator,optional" json:"indicator,omitempty" yaml:"indicator,omitempty"`
	Current   *int    `relay:"current,optional" json:"current,omitempty" yaml:"current,omitempty"`
	Total     *int    `relay:"total,optional" json:"total,omitempty" yaml:"total,omitempty"`
}

// ============================================================================
// Info
// ============================================================================

// InfoData is the output of the info operation
type InfoData struct {
	URL          *string     `relay:"url,optional" json:"url,omitempty" yaml:"url,omitempty"`
	Titles       Titles      `relay:"titles" json:"titles" yaml:"titles"`
	Description  string      `relay:"description" json:"description" yaml:"description"`
	Poster       string      `relay:"poster" json:"poster" yaml:"poster"`
	Banner       *string     `relay:"banner,optional" json:"banner,omitempty" yaml:"banner,omitempty"`
	Status       *string     `relay:"status,optional" json:"status,omitempty" yaml:"status,omitempty"`
	MediaType    string      `relay:"mediaType" json:"mediaType" yaml:"mediaType"`
	YearReleased *int        `relay:"yearReleased,optional" json:"yearReleased,omitempty" yaml:"yearReleased,omitempty"`
	Rating       *float64    `relay:"rating,optional" json:"rating,omitempty" yaml:"rating,omitempty"`
	Tags         []string    `relay:"tags,default" json:"tags" yaml:"tags"`
	Seasons      []Season    `relay:"seasons,default" json:"seasons" yaml:"seasons"`
	MediaList    []MediaList `relay:"mediaList,default" json:"mediaList" yaml:"mediaList"`
}

// Titles holds the primary and alternate title of an entry
type Titles struct {
	Primary   string  `relay:"primary" json:"primary" yaml:"primary"`
	Secondary *string `relay:"secondary,optional" json:"secondary,omitempty" yaml:"secondary,omitempty"`
}

// Season links to another entry of the same series
type Season struct {
	Name     string `relay:"name" json:"name" yaml:"name"`
	URL      string `relay:"url" json:"url" yaml:"url"`
	Selected *bool  `relay:"selected,optional" json:"selected,omitempty" yaml:"selected,omitempty"`
}

var descriptionPolicy = bluemonday.StrictPolicy()

// SanitizedDescription returns the description with all markup removed
func (i *InfoData) SanitizedDescription() string {
	stripped := descriptionPolicy.Sanitize(i.Description)
	return strings.TrimSpace(html.UnescapeString(stripped))
}

// ============================================================================
// Media
// ============================================================================

// MediaList groups paginated media items under a title (e.g. "Episodes")
type MediaList struct {
	Title      string            `relay:"title" json:"title" yaml:"title"`
	Pagination []MediaPagination `relay:"pagination" json:"pagination" yaml:"pagination"`
}

// MediaPagination is one page of media items
type MediaPagination struct {
	ID    string      `relay:"id" json:"id" yaml:"id"`
	Title *string     `relay:"title,optional" json:"title,omitempty" yaml:"title,omitempty"`
	Items []MediaItem `relay:"items" json:"items" yaml:"items"`
}

// MediaItem is a single episode or chapter
type MediaItem struct {
	URL         string  `relay:"url" json:"url" yaml:"url"`
	Number      float64 `relay:"number" json:"number" yaml:"number"`
	Title       *string `relay:"title,optional" json:"title,omitempty" yaml:"title,omitempty"`
	Thumbnail   *string `relay:"thumbnail,optional" json:"thumbnail,omitempty" yaml:"thumbnail,omitempty"`
	Description *string `relay:"description,optional" json:"description,omitempty" yaml:"description,omitempty"`
	Language    *string `relay:"language,optional" json:"language,omitempty" yaml:"language,omitempty"`
}

// ============================================================================
// Sources and Streams
// ============================================================================

// SourceList groups servers under a title (e.g. "Sub", "Dub")
type SourceList struct {
	Title string       `relay:"title" json:"title" yaml:"title"`
	List  []SourceData `relay:"list" json:"list" yaml:"list"`
}

// SourceData is a named server offering a stream
type SourceData struct {
	Name string `relay:"name" json:"name" yaml:"name"`
	URL  string `relay:"url" json:"url" yaml:"url"`
}

// MediaStream is the playable output of the streams operation
type MediaStream struct {
	Streams   []Stream          `relay:"streams" json:"streams" yaml:"streams"`
	Subtitles []Subtitle        `relay:"subtitles,default" json:"subtitles" yaml:"subtitles"`
	Skips     []SkipTime        `relay:"skips,default" json:"skips" yaml:"skips"`
	Headers   map[string]string `relay:"headers,optional" json:"headers,omitempty" yaml:"headers,omitempty"`
}

// Stream is one playable file at a given quality
type Stream struct {
	File    string `relay:"file" json:"file" yaml:"file"`
	Type    string `relay:"type" json:"type" yaml:"type"`
	Quality string `relay:"quality" json:"quality" yaml:"quality"`
}

// Subtitle is a subtitle track
type Subtitle struct {
	URL      string `relay:"url" json:"url" yaml:"url"`
	Language string `relay:"language" json:"language" yaml:"language"`
}

// SkipTime marks a skippable segment such as an intro, in seconds
type SkipTime struct {
	Start float64 `relay:"start" json:"start" yaml:"start"`
	End   float64 `relay:"end" json:"end" yaml:"end"`
	Type  string  `relay:"type" json:"type" yaml:"type"`
}

// ============================================================================
// Discover
// ============================================================================

// DiscoverSection is a titled carousel of entries
type DiscoverSection struct {
	Title string         `relay:"title" json:"title" yaml:"title"`
	Type  *int           `relay:"type,optional" json:"type,omitempty" yaml:"type,omitempty"`
	Data  []DiscoverData `relay:"data" json:"data" yaml:"data"`
}

// DiscoverData is one entry of a discover section
type DiscoverData struct {
	URL         string  `relay:"url" json:"url" yaml:"url"`
	Titles      Titles  `relay:"titles" json:"titles" yaml:"titles"`
	Poster      string  `relay:"poster" json:"poster" yaml:"poster"`
	Description *string `relay:"description,optional" json:"description,omitempty" yaml:"description,omitempty"`
	Label       *string `relay:"label,optional" json:"label,omitempty" yaml:"label,omitempty"`
	Indicator   *string `relay:"indicator,optional" json:"indicator,omitempty" yaml:"indicator,omitempty"`
	Current     *int    `relay:"current,optional" json:"current,omitempty" yaml:"current,omitempty"`
	Total       *int    `relay:"total,optional" json:"total,omitempty" yaml:"total,omitempty"`
}
