package bookshelf_test

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-bookshelf/pkg/bookshelf"
	"github.com/tendant/simple-bookshelf/pkg/bookshelf/storage/fallback"
	fsstorage "github.com/tendant/simple-bookshelf/pkg/bookshelf/storage/fs"
)

func TestParseRange(t *testing.T) {
	tests := []struct {
		name   string
		header string
		size   int64
		want   bookshelf.ByteRange
		wantOK bool
	}{
		{"first hundred bytes", "bytes=0-99", 1000, bookshelf.ByteRange{Start: 0, End: 99}, true},
		{"open ended", "bytes=500-", 1000, bookshelf.ByteRange{Start: 500, End: 999}, true},
		{"end clamped", "bytes=900-5000", 1000, bookshelf.ByteRange{Start: 900, End: 999}, true},
		{"both bounds past the end", "bytes=2000-3000", 1000, bookshelf.ByteRange{Start: 999, End: 999}, true},
		{"suffix", "bytes=-100", 1000, bookshelf.ByteRange{Start: 900, End: 999}, true},
		{"suffix longer than blob", "bytes=-5000", 1000, bookshelf.ByteRange{Start: 0, End: 999}, true},
		{"single byte", "bytes=0-0", 1, bookshelf.ByteRange{Start: 0, End: 0}, true},
		{"surrounding whitespace", "  bytes= 10 - 19 ", 1000, bookshelf.ByteRange{Start: 10, End: 19}, true},
		{"empty header", "", 1000, bookshelf.ByteRange{}, false},
		{"wrong unit", "items=0-10", 1000, bookshelf.ByteRange{}, false},
		{"multiple ranges", "bytes=0-10,20-30", 1000, bookshelf.ByteRange{}, false},
		{"inverted", "bytes=50-10", 1000, bookshelf.ByteRange{}, false},
		{"garbage", "bytes=abc-def", 1000, bookshelf.ByteRange{}, false},
		{"no dash", "bytes=100", 1000, bookshelf.ByteRange{}, false},
		{"zero suffix", "bytes=-0", 1000, bookshelf.ByteRange{}, false},
		{"empty blob", "bytes=0-10", 0, bookshelf.ByteRange{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := bookshelf.ParseRange(tt.header, tt.size)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func newLocalGateway(t *testing.T, data []byte) (*bookshelf.StreamingGateway, bookshelf.Locator) {
	t.Helper()

	local, err := fsstorage.New(fsstorage.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)
	assets, err := fallback.New(local)
	require.NoError(t, err)

	loc, err := assets.Store(context.Background(), bookshelf.SlotContent,
		bookshelf.Upload{FileName: "book.pdf", ContentType: "application/pdf", Data: data})
	require.NoError(t, err)
	require.Equal(t, bookshelf.BackendLocal, loc.Backend)

	return bookshelf.NewStreamingGateway(assets), loc
}

func readStream(t *testing.T, s *bookshelf.Stream) []byte {
	t.Helper()
	defer s.Body.Close()
	data, err := io.ReadAll(s.Body)
	require.NoError(t, err)
	return data
}

func TestStreamPartial(t *testing.T) {
	data := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("x"), 991)...)
	require.Len(t, data, 1000)
	gateway, loc := newLocalGateway(t, data)

	stream, err := gateway.Stream(context.Background(), loc, "bytes=0-99")
	require.NoError(t, err)
	assert.True(t, stream.Partial)
	assert.Equal(t, int64(1000), stream.Total)
	assert.Equal(t, int64(100), stream.ContentLength())
	assert.Equal(t, "bytes 0-99/1000", stream.ContentRange())
	assert.Equal(t, "bytes", stream.AcceptRanges)
	assert.Equal(t, "application/pdf", stream.ContentType)
	assert.Equal(t, data[:100], readStream(t, stream))
}

func TestStreamClampsOutOfBounds(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789"), 100)
	gateway, loc := newLocalGateway(t, data)

	stream, err := gateway.Stream(context.Background(), loc, "bytes=2000-3000")
	require.NoError(t, err)
	assert.True(t, stream.Partial)
	assert.Equal(t, "bytes 999-999/1000", stream.ContentRange())
	assert.Equal(t, []byte("9"), readStream(t, stream))
}

func TestStreamFullWhenRangeUnusable(t *testing.T) {
	data := bytes.Repeat([]byte("ab"), 50)
	gateway, loc := newLocalGateway(t, data)

	for _, header := range []string{"", "bytes=10-5", "bytes=0-1,5-6", "nonsense"} {
		stream, err := gateway.Stream(context.Background(), loc, header)
		require.NoError(t, err, header)
		assert.False(t, stream.Partial, header)
		assert.Equal(t, int64(100), stream.ContentLength(), header)
		assert.Equal(t, data, readStream(t, stream), header)
	}
}

func TestStreamMissingBlob(t *testing.T) {
	gateway, _ := newLocalGateway(t, []byte("%PDF-1.4"))

	_, err := gateway.Stream(context.Background(), bookshelf.Locator{
		Backend: bookshelf.BackendLocal,
		Ref:     "/uploads/pdfs/pdf-1-2.pdf",
	}, "")
	assert.ErrorIs(t, err, bookshelf.ErrNotFound)

	_, err = gateway.Stream(context.Background(), bookshelf.Locator{
		Backend: bookshelf.BackendRemote,
		Ref:     "https://objects.memory.local/islamic_books/pdfs/obj000001.pdf",
	}, "")
	assert.ErrorIs(t, err, bookshelf.ErrStorageUnavailable)
}

func TestStreamRemoteBlob(t *testing.T) {
	env := newTestEnv(t)
	book := env.submit(t, env.writer, "Remote book")
	require.Equal(t, bookshelf.BackendRemote, book.Content.Backend)

	gateway := bookshelf.NewStreamingGateway(env.assets)
	stream, err := gateway.Stream(context.Background(), book.Content, "bytes=0-3")
	require.NoError(t, err)
	assert.Equal(t, int64(len(pdfData)), stream.Total)
	assert.Equal(t, []byte("%PDF"), readStream(t, stream))
}
