package handler

import (
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/chunkstream/api/internal/service"
	"github.com/chunkstream/api/internal/signing"
	"github.com/chunkstream/api/internal/storage"
	"github.com/chunkstream/api/internal/stream"
	"github.com/chunkstream/api/pkg/response"
)

// StreamHandler serves chunk delivery, timestamp addressing, manifests and
// prefetch listings.
type StreamHandler struct {
	resolver      *stream.Resolver
	signer        *signing.Signer
	streams       *service.StreamService
	layout        *storage.Layout
	requireGrants bool
	grantTTL      time.Duration
}

func NewStreamHandler(resolver *stream.Resolver, signer *signing.Signer, streams *service.StreamService, layout *storage.Layout, requireGrants bool, grantTTL time.Duration) *StreamHandler {
	return &StreamHandler{
		resolver:      resolver,
		signer:        signer,
		streams:       streams,
		layout:        layout,
		requireGrants: requireGrants,
		grantTTL:      grantTTL,
	}
}

// GetChunk handles GET /api/videos/:videoId/chunks/:quality/:index
func (h *StreamHandler) GetChunk(c *fiber.Ctx) error {
	videoID := c.Params("videoId")
	quality := c.Params("quality")

	index, err := strconv.Atoi(c.Params("index"))
	if err != nil {
		return response.ValidationError(c, "Chunk index must be an integer", nil)
	}

	if err := h.checkGrant(c, videoID, quality, index); err != nil {
		return err
	}

	desc, err := h.resolver.ResolveChunk(videoID, quality, index)
	if err != nil {
		return streamError(c, err)
	}
	return h.serveChunk(c, desc)
}

// GetChunkByTimestamp handles GET /api/videos/:videoId/stream/:quality?t=...
func (h *StreamHandler) GetChunkByTimestamp(c *fiber.Ctx) error {
	videoID := c.Params("videoId")
	quality := c.Params("quality")

	// Reject unsigned requests before touching the resolver so enforcement
	// does not reveal which assets exist. The index-dependent signature
	// check has to wait until the timestamp resolves to a chunk.
	if h.requireGrants && !grantPresented(c) {
		return response.Unauthorized(c, "Signed grant required")
	}

	timestamp, err := stream.ParseTimecode(c.Query("t"))
	if err != nil {
		return response.ValidationError(c, "Invalid timestamp", fiber.Map{"t": c.Query("t")})
	}

	desc, err := h.resolver.ResolveByTimestamp(videoID, quality, timestamp)
	if err != nil {
		return streamError(c, err)
	}

	if err := h.checkGrant(c, videoID, desc.Quality, desc.Index); err != nil {
		return err
	}
	return h.serveChunk(c, desc)
}

// serveChunk streams the resolved chunk, honoring a single byte range.
// An unusable Range header means "serve the full entity", never an error.
func (h *StreamHandler) serveChunk(c *fiber.Ctx, desc *stream.ChunkDescriptor) error {
	f, err := desc.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to open chunk")
	}

	c.Set(fiber.HeaderAcceptRanges, "bytes")
	c.Set(fiber.HeaderContentType, "video/mp2t")
	c.Set("X-Video-Id", desc.VideoID)
	c.Set("X-Quality", desc.Quality)
	c.Set("X-Chunk-Index", strconv.Itoa(desc.Index))

	if r := stream.ParseByteRange(c.Get(fiber.HeaderRange), desc.Size); r != nil {
		if _, err := f.Seek(r.Start, io.SeekStart); err != nil {
			f.Close()
			return response.ServiceError(c, "Failed to seek chunk")
		}
		c.Set(fiber.HeaderContentRange, r.ContentRange(desc.Size))
		c.Status(fiber.StatusPartialContent)
		return c.SendStream(rangeBody{io.LimitReader(f, r.Length), f}, int(r.Length))
	}

	return c.SendStream(f, int(desc.Size))
}

// rangeBody limits the response to the requested window while keeping the
// chunk file closable: the body stream is only closed after the response is
// written when it implements io.Closer, which io.LimitReader alone does not.
type rangeBody struct {
	io.Reader
	io.Closer
}

// checkGrant verifies the expires/signature query pair. Verification runs
// whenever a signature is presented; it is mandatory when grants are
// enforced.
func grantPresented(c *fiber.Ctx) bool {
	return c.Query("signature") != "" || c.Query("expires") != ""
}

func (h *StreamHandler) checkGrant(c *fiber.Ctx, videoID, quality string, index int) error {
	signature := c.Query("signature")
	expiresStr := c.Query("expires")

	if signature == "" && expiresStr == "" {
		if h.requireGrants {
			return response.Unauthorized(c, "Signed grant required")
		}
		return nil
	}

	expiresAt, err := strconv.ParseInt(expiresStr, 10, 64)
	if err != nil {
		return response.ValidationError(c, "Invalid expires parameter", nil)
	}

	switch err := h.signer.Verify(videoID, quality, index, expiresAt, signature); {
	case errors.Is(err, signing.ErrGrantExpired):
		return response.Forbidden(c, response.CodeGrantExpired, "Grant expired")
	case errors.Is(err, signing.ErrSignatureMismatch):
		return response.Forbidden(c, response.CodeSignatureMismatch, "Signature mismatch")
	case err != nil:
		return response.ServiceError(c, "Grant verification failed")
	}
	return nil
}

// GetManifest handles GET /api/videos/:videoId/manifest/:quality
func (h *StreamHandler) GetManifest(c *fiber.Ctx) error {
	videoID := c.Params("videoId")
	quality := c.Params("quality")
	sign := c.QueryBool("sign")

	ttl := h.grantTTL
	if s := c.Query("ttl"); s != "" {
		seconds, err := strconv.Atoi(s)
		if err != nil || seconds <= 0 {
			return response.ValidationError(c, "Invalid ttl parameter", nil)
		}
		ttl = time.Duration(seconds) * time.Second
	}

	manifest, err := h.streams.Manifest(videoID, quality, sign, ttl)
	if err != nil {
		return streamError(c, err)
	}
	return response.OK(c, manifest)
}

// Prefetch handles GET /api/videos/:videoId/prefetch/:quality?start=&count=
func (h *StreamHandler) Prefetch(c *fiber.Ctx) error {
	videoID := c.Params("videoId")
	quality := c.Params("quality")
	start := c.QueryInt("start", 0)
	count := c.QueryInt("count", 5)

	if start < 0 || count <= 0 || count > 50 {
		return response.ValidationError(c, "Invalid start or count", nil)
	}

	summaries, err := h.resolver.GetChunkRange(videoID, quality, start, count)
	if err != nil {
		return streamError(c, err)
	}
	return response.OK(c, fiber.Map{
		"videoId": videoID,
		"quality": quality,
		"chunks":  summaries,
	})
}

// GetMetadata handles GET /api/videos/:videoId
func (h *StreamHandler) GetMetadata(c *fiber.Ctx) error {
	meta, err := h.streams.Metadata(c.Params("videoId"))
	if err != nil {
		return streamError(c, err)
	}
	return response.OK(c, meta)
}

// GetThumbnail handles GET /api/videos/:videoId/thumbnail
func (h *StreamHandler) GetThumbnail(c *fiber.Ctx) error {
	videoID := c.Params("videoId")
	path := h.layout.ThumbnailPath(videoID)
	if err := c.SendFile(path); err != nil {
		return response.NotFound(c, "Thumbnail not found")
	}
	return nil
}

// streamError maps resolver errors to structured client responses.
func streamError(c *fiber.Ctx, err error) error {
	var outOfRange *stream.OutOfRangeError
	var unavailable *stream.QualityUnavailableError

	switch {
	case errors.Is(err, storage.ErrVideoNotFound):
		return response.NotFound(c, "Video not found")
	case errors.As(err, &outOfRange):
		return response.NotFoundWith(c, response.CodeChunkOutOfRange, "Chunk index out of range", fiber.Map{
			"requestedIndex": outOfRange.RequestedIndex,
			"totalChunks":    outOfRange.TotalChunks,
		})
	case errors.As(err, &unavailable):
		return response.NotFoundWith(c, response.CodeQualityUnavailable, "Quality unavailable", fiber.Map{
			"requested": unavailable.Requested,
			"available": unavailable.Available,
		})
	case errors.Is(err, stream.ErrChunkNotFound):
		// Expected while an encode is still in flight.
		return response.NotFound(c, "Chunk not available yet")
	case errors.Is(err, stream.ErrInvalidTimecode):
		return response.ValidationError(c, "Invalid timestamp", nil)
	default:
		return response.ServiceError(c, err.Error())
	}
}
