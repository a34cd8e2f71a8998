package bookshelf

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ByteRange is an inclusive byte interval within a blob.
type ByteRange struct {
	Start int64
	End   int64
}

// Length returns the number of bytes covered by the range.
func (r ByteRange) Length() int64 { return r.End - r.Start + 1 }

// ParseRange parses a single-range "bytes=" header against a blob of the
// given size. Bounds are clamped to [0, size-1]. It returns false when the
// header is absent or cannot be honoured, in which case the full blob should
// be served.
func ParseRange(header string, size int64) (ByteRange, bool) {
	if size <= 0 {
		return ByteRange{}, false
	}
	byteRange, ok := strings.CutPrefix(strings.TrimSpace(header), "bytes=")
	if !ok || strings.Contains(byteRange, ",") {
		return ByteRange{}, false
	}
	startStr, endStr, ok := strings.Cut(strings.TrimSpace(byteRange), "-")
	if !ok {
		return ByteRange{}, false
	}
	startStr, endStr = strings.TrimSpace(startStr), strings.TrimSpace(endStr)

	var r ByteRange
	if startStr == "" {
		// suffix range: last n bytes
		n, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || n <= 0 {
			return ByteRange{}, false
		}
		r.Start = max(size-n, 0)
		r.End = size - 1
		return r, true
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 {
		return ByteRange{}, false
	}
	end := size - 1
	if endStr != "" {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil {
			return ByteRange{}, false
		}
	}

	r.Start = min(start, size-1)
	r.End = min(end, size-1)
	if r.End < r.Start {
		return ByteRange{}, false
	}
	return r, true
}

// Stream is a readable blob response. When Partial is set, Body yields
// exactly Range.Length() bytes.
type Stream struct {
	Body         io.ReadCloser
	ContentType  string
	Total        int64
	Range        ByteRange
	Partial      bool
	AcceptRanges string
}

// ContentLength returns the number of bytes Body will produce.
func (s *Stream) ContentLength() int64 {
	if s.Partial {
		return s.Range.Length()
	}
	return s.Total
}

// ContentRange returns the Content-Range header value for partial streams.
func (s *Stream) ContentRange() string {
	return fmt.Sprintf("bytes %d-%d/%d", s.Range.Start, s.Range.End, s.Total)
}

// StreamingGateway serves stored blobs honouring byte ranges.
type StreamingGateway struct {
	assets AssetStore
}

// NewStreamingGateway creates a gateway reading from the given asset store.
func NewStreamingGateway(assets AssetStore) *StreamingGateway {
	return &StreamingGateway{assets: assets}
}

// Stream opens the blob behind loc. rangeHeader is the raw Range header and
// may be empty. A missing blob returns an error wrapping ErrNotFound.
func (g *StreamingGateway) Stream(ctx context.Context, loc Locator, rangeHeader string) (*Stream, error) {
	info, err := g.assets.Stat(ctx, loc)
	if err != nil {
		return nil, err
	}

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	stream := &Stream{
		ContentType:  contentType,
		Total:        info.Size,
		Range:        ByteRange{Start: 0, End: info.Size - 1},
		AcceptRanges: "bytes",
	}

	if r, ok := ParseRange(rangeHeader, info.Size); ok {
		stream.Range = r
		stream.Partial = true
	}

	body, err := g.assets.ReadRange(ctx, loc, stream.Range.Start, stream.ContentLength())
	if err != nil {
		return nil, err
	}
	stream.Body = body
	return stream, nil
}
