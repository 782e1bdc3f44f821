package relay

import (
	"context"
	"fmt"

	"github.com/GriffinCanCode/relay/internal/shared/types"
)

// Request selects one provider operation and its input
type Request struct {
	Operation types.Operation
	Reference string // query for search, entry URL otherwise
	Page      int    // search only
}

// Search queries the module
func (h *Handle) Search(ctx context.Context, query string, page int) (*types.SearchResult, error) {
	result, err := Invoke[types.SearchResult](ctx, h, types.OpSearch, query, page)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Info fetches details for an entry
func (h *Handle) Info(ctx context.Context, ref string) (*types.InfoData, error) {
	result, err := Invoke[types.InfoData](ctx, h, types.OpInfo, ref)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Media lists an entry's media
func (h *Handle) Media(ctx context.Context, ref string) ([]types.MediaList, error) {
	return Invoke[[]types.MediaList](ctx, h, types.OpMedia, ref)
}

// Sources lists servers for a media item
func (h *Handle) Sources(ctx context.Context, ref string) ([]types.SourceList, error) {
	return Invoke[[]types.SourceList](ctx, h, types.OpSources, ref)
}

// Streams resolves playable streams for a source
func (h *Handle) Streams(ctx context.Context, ref string) (*types.MediaStream, error) {
	result, err := Invoke[types.MediaStream](ctx, h, types.OpStreams, ref)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Pages returns image URLs for a book chapter
func (h *Handle) Pages(ctx context.Context, ref string) ([]string, error) {
	return Invoke[[]string](ctx, h, types.OpPages, ref)
}

// Discover returns the module's landing sections. Modules may omit it.
func (h *Handle) Discover(ctx context.Context) ([]types.DiscoverSection, error) {
	return Invoke[[]types.DiscoverSection](ctx, h, types.OpDiscover)
}

// Run dispatches req to the matching typed operation
func (h *Handle) Run(ctx context.Context, req Request) (interface{}, error) {
	switch req.Operation {
	case types.OpSearch:
		return h.Search(ctx, req.Reference, req.Page)
	case types.OpInfo:
		return h.Info(ctx, req.Reference)
	case types.OpMedia:
		return h.Media(ctx, req.Reference)
	case types.OpSources:
		return h.Sources(ctx, req.Reference)
	case types.OpStreams:
		return h.Streams(ctx, req.Reference)
	case types.OpPages:
		return h.Pages(ctx, req.Reference)
	case types.OpDiscover:
		return h.Discover(ctx)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, req.Operation)
	}
}
