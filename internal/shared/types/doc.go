// Package types provides shared data structures for the Relay runtime.
//
// This package defines the records a module produces and the values that
// cross the host boundary, so every component agrees on one shape.
//
// Provider Records:
//   - SearchResult, SearchItem: Search operation output
//   - InfoData, Titles, Season, MediaList: Info operation output
//   - MediaList, MediaPagination, MediaItem: Media operation output
//   - SourceList, SourceData: Sources operation output
//   - MediaStream, Stream, Subtitle, SkipTime: Streams operation output
//   - DiscoverSection, DiscoverData: Discover operation output
//
// Host Values:
//   - HostRequest: Immutable network request issued by guest code
//   - HostResponse: Normalized response handed back to the guest
//   - Method: HTTP method enum
//
// Operations:
//   - Operation: Provider operation name (info, search, ...)
//
// Record fields carry `relay` tags describing the guest-side key and
// whether the field is required, optional or defaulted. The value bridge
// reads these tags; json/yaml tags drive API and CLI output.
//
// Example Usage:
//
//	req, err := types.NewHostRequest("https://example.com", types.MethodGet, nil, nil)
//	if err != nil {
//	    return err
//	}
//	resp, err := executor.Execute(ctx, req)
package types
