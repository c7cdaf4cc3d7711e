package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/chunkstream/api/internal/model"
	"github.com/chunkstream/api/internal/service"
	"github.com/chunkstream/api/internal/signing"
	"github.com/chunkstream/api/internal/storage"
	"github.com/chunkstream/api/internal/stream"
)

const testSigningSecret = "test-signing-secret"

type streamFixture struct {
	app    *fiber.App
	signer *signing.Signer
	layout *storage.Layout
	meta   *storage.MetadataStore
}

func setupStreamApp(t *testing.T, requireGrants bool) *streamFixture {
	t.Helper()

	layout := storage.NewLayout(t.TempDir())
	meta := storage.NewMetadataStore(layout)
	resolver := stream.NewResolver(layout, meta, "720p")
	signer := signing.NewSigner(testSigningSecret)
	streams := service.NewStreamService(resolver, signer, meta)

	h := NewStreamHandler(resolver, signer, streams, layout, requireGrants, time.Hour)

	app := fiber.New()
	videos := app.Group("/api/videos")
	videos.Get("/:videoId", h.GetMetadata)
	videos.Get("/:videoId/chunks/:quality/:index", h.GetChunk)
	videos.Get("/:videoId/stream/:quality", h.GetChunkByTimestamp)
	videos.Get("/:videoId/manifest/:quality", h.GetManifest)
	videos.Get("/:videoId/prefetch/:quality", h.Prefetch)

	return &streamFixture{app: app, signer: signer, layout: layout, meta: meta}
}

func (fx *streamFixture) writeAsset(t *testing.T, videoID string, qualities []string, totalChunks, writtenChunks int, chunkBody string) {
	t.Helper()
	err := fx.meta.Write(videoID, &model.VideoMetadata{
		Title:         "clip",
		Duration:      float64(totalChunks * 5),
		ChunkDuration: 5,
		TotalChunks:   totalChunks,
		Qualities:     qualities,
		CreatedAt:     time.Now(),
	})
	if err != nil {
		t.Fatalf("write metadata: %v", err)
	}
	for _, q := range qualities {
		if _, err := fx.layout.EnsureChunkDir(videoID, q); err != nil {
			t.Fatal(err)
		}
		for i := 0; i < writtenChunks; i++ {
			if err := os.WriteFile(fx.layout.ChunkPath(videoID, q, i), []byte(chunkBody), 0o644); err != nil {
				t.Fatal(err)
			}
		}
	}
}

func doGet(t *testing.T, app *fiber.App, path string, headers map[string]string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request %s: %v", path, err)
	}
	return resp
}

func TestGetChunkFullEntity(t *testing.T) {
	fx := setupStreamApp(t, false)
	fx.writeAsset(t, "vid1", []string{"720p"}, 3, 3, "0123456789")

	resp := doGet(t, fx.app, "/api/videos/vid1/chunks/720p/1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Accept-Ranges"); got != "bytes" {
		t.Errorf("Accept-Ranges = %q", got)
	}
	if got := resp.Header.Get("X-Chunk-Index"); got != "1" {
		t.Errorf("X-Chunk-Index = %q", got)
	}
	if got := resp.Header.Get("X-Video-Id"); got != "vid1" {
		t.Errorf("X-Video-Id = %q", got)
	}
	if got := resp.Header.Get("X-Quality"); got != "720p" {
		t.Errorf("X-Quality = %q", got)
	}

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "0123456789" {
		t.Errorf("body = %q", body)
	}
}

func TestGetChunkPartialRange(t *testing.T) {
	fx := setupStreamApp(t, false)
	fx.writeAsset(t, "vid1", []string{"720p"}, 3, 3, "0123456789")

	resp := doGet(t, fx.app, "/api/videos/vid1/chunks/720p/0", map[string]string{"Range": "bytes=2-5"})
	if resp.StatusCode != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Range"); got != "bytes 2-5/10" {
		t.Errorf("Content-Range = %q", got)
	}

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "2345" {
		t.Errorf("body = %q, want 2345", body)
	}
}

func TestGetChunkUnusableRangeServesFullEntity(t *testing.T) {
	fx := setupStreamApp(t, false)
	fx.writeAsset(t, "vid1", []string{"720p"}, 3, 3, "0123456789")

	resp := doGet(t, fx.app, "/api/videos/vid1/chunks/720p/0", map[string]string{"Range": "bytes=50-99"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 (full entity)", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if len(body) != 10 {
		t.Errorf("body length = %d", len(body))
	}
}

func TestGetChunkOutOfRangeDetails(t *testing.T) {
	fx := setupStreamApp(t, false)
	fx.writeAsset(t, "vid1", []string{"720p"}, 3, 3, "x")

	resp := doGet(t, fx.app, "/api/videos/vid1/chunks/720p/9", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var parsed struct {
		Error struct {
			Code    string `json:"code"`
			Details struct {
				RequestedIndex int `json:"requestedIndex"`
				TotalChunks    int `json:"totalChunks"`
			} `json:"details"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if parsed.Error.Code != "CHUNK_OUT_OF_RANGE" {
		t.Errorf("code = %q", parsed.Error.Code)
	}
	if parsed.Error.Details.RequestedIndex != 9 || parsed.Error.Details.TotalChunks != 3 {
		t.Errorf("details = %+v", parsed.Error.Details)
	}
}

func TestGetChunkQualityFallback(t *testing.T) {
	fx := setupStreamApp(t, false)
	fx.writeAsset(t, "vid1", []string{"720p"}, 3, 3, "x")

	// The substituted tier is visible in X-Quality, not hidden.
	resp := doGet(t, fx.app, "/api/videos/vid1/chunks/1080p/0", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Quality"); got != "720p" {
		t.Errorf("X-Quality = %q, want substituted 720p", got)
	}
}

func TestGetChunkByTimestamp(t *testing.T) {
	fx := setupStreamApp(t, false)
	fx.writeAsset(t, "vid1", []string{"720p"}, 3, 3, "x")

	resp := doGet(t, fx.app, "/api/videos/vid1/stream/720p?t=12", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Chunk-Index"); got != "2" {
		t.Errorf("X-Chunk-Index = %q, want 2", got)
	}

	resp = doGet(t, fx.app, "/api/videos/vid1/stream/720p?t=ab:cd", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed timestamp status = %d, want 400", resp.StatusCode)
	}
}

func TestGetChunkSignedGrants(t *testing.T) {
	fx := setupStreamApp(t, true)
	fx.writeAsset(t, "vid1", []string{"720p"}, 3, 3, "x")

	// Unsigned request is rejected when grants are enforced.
	resp := doGet(t, fx.app, "/api/videos/vid1/chunks/720p/0", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unsigned status = %d, want 401", resp.StatusCode)
	}

	grant := fx.signer.Issue("vid1", "720p", 0, time.Hour)
	url := fmt.Sprintf("/api/videos/vid1/chunks/720p/0?expires=%d&signature=%s", grant.ExpiresAt, grant.Signature)
	resp = doGet(t, fx.app, url, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("signed status = %d, want 200", resp.StatusCode)
	}

	// Tampered signature.
	bad := fmt.Sprintf("/api/videos/vid1/chunks/720p/0?expires=%d&signature=%s", grant.ExpiresAt, "deadbeef")
	resp = doGet(t, fx.app, bad, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("tampered status = %d, want 403", resp.StatusCode)
	}

	// Expired grant.
	expired := fmt.Sprintf("/api/videos/vid1/chunks/720p/0?expires=%d&signature=%s", time.Now().Add(-time.Hour).Unix(), grant.Signature)
	resp = doGet(t, fx.app, expired, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expired status = %d, want 403", resp.StatusCode)
	}
}

func countOpenFiles(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		t.Skipf("cannot inspect open descriptors: %v", err)
	}
	return len(entries)
}

func TestRangedRequestsDoNotLeakDescriptors(t *testing.T) {
	fx := setupStreamApp(t, false)
	fx.writeAsset(t, "vid1", []string{"720p"}, 3, 3, "0123456789")

	before := countOpenFiles(t)
	for i := 0; i < 50; i++ {
		resp := doGet(t, fx.app, "/api/videos/vid1/chunks/720p/0", map[string]string{"Range": "bytes=0-3"})
		if resp.StatusCode != http.StatusPartialContent {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
	after := countOpenFiles(t)

	// Each 206 must close its chunk file once the body is written; allow a
	// little slack for unrelated runtime descriptors.
	if after > before+3 {
		t.Errorf("open descriptors grew from %d to %d across 50 ranged requests", before, after)
	}
}

func TestTimestampEnforcementDoesNotRevealAssets(t *testing.T) {
	fx := setupStreamApp(t, true)
	fx.writeAsset(t, "vid1", []string{"720p"}, 3, 3, "x")

	// Unsigned timestamp requests are rejected identically whether or not
	// the asset exists.
	for _, path := range []string{
		"/api/videos/vid1/stream/720p?t=0",
		"/api/videos/no-such-video/stream/720p?t=0",
		"/api/videos/vid1/stream/720p?t=999",
	} {
		resp := doGet(t, fx.app, path, nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s status = %d, want 401", path, resp.StatusCode)
		}
	}

	// A signed request still resolves and verifies against the chunk the
	// timestamp maps to.
	grant := fx.signer.Issue("vid1", "720p", 2, time.Hour)
	signed := fmt.Sprintf("/api/videos/vid1/stream/720p?t=12&expires=%d&signature=%s", grant.ExpiresAt, grant.Signature)
	resp := doGet(t, fx.app, signed, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("signed status = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Chunk-Index"); got != "2" {
		t.Errorf("X-Chunk-Index = %q, want 2", got)
	}
}

func TestPrefetchDegradesGracefully(t *testing.T) {
	fx := setupStreamApp(t, false)
	fx.writeAsset(t, "vid1", []string{"720p"}, 3, 3, "x")

	resp := doGet(t, fx.app, "/api/videos/vid1/prefetch/720p?start=0&count=5", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var parsed struct {
		Chunks []model.ChunkSummary `json:"chunks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(parsed.Chunks) != 3 {
		t.Errorf("got %d chunks, want 3", len(parsed.Chunks))
	}
}

func TestManifestWithGrants(t *testing.T) {
	fx := setupStreamApp(t, false)
	fx.writeAsset(t, "vid1", []string{"720p"}, 3, 2, "x")

	resp := doGet(t, fx.app, "/api/videos/vid1/manifest/720p?sign=true", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var manifest model.Manifest
	if err := json.NewDecoder(resp.Body).Decode(&manifest); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	// All declared chunks are listed even while the encode is in flight.
	if manifest.TotalChunks != 3 || len(manifest.Chunks) != 3 {
		t.Fatalf("manifest = %d/%d chunks", manifest.TotalChunks, len(manifest.Chunks))
	}
	for _, chunk := range manifest.Chunks {
		if chunk.Signature == "" {
			t.Errorf("chunk %d has no grant", chunk.Index)
			continue
		}
		if err := fx.signer.Verify("vid1", "720p", chunk.Index, chunk.ExpiresAt, chunk.Signature); err != nil {
			t.Errorf("chunk %d grant does not verify: %v", chunk.Index, err)
		}
	}
}

func TestGetMetadata(t *testing.T) {
	fx := setupStreamApp(t, false)
	fx.writeAsset(t, "vid1", []string{"720p"}, 3, 3, "x")

	resp := doGet(t, fx.app, "/api/videos/vid1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var meta model.VideoResponse
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if meta.VideoID != "vid1" || meta.TotalChunks != 3 {
		t.Errorf("got %+v", meta)
	}

	resp = doGet(t, fx.app, "/api/videos/unknown", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown video status = %d, want 404", resp.StatusCode)
	}
}
