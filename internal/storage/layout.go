package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// Layout maps video identifiers to their on-disk locations:
//
//	{root}/{videoId}/metadata.json
//	{root}/{videoId}/thumbnail.jpg
//	{root}/{videoId}/chunks/{quality}/chunk_{index:06d}.ts
type Layout struct {
	Root string
}

func NewLayout(root string) *Layout {
	return &Layout{Root: root}
}

func (l *Layout) VideoDir(videoID string) string {
	return filepath.Join(l.Root, videoID)
}

func (l *Layout) MetadataPath(videoID string) string {
	return filepath.Join(l.Root, videoID, "metadata.json")
}

func (l *Layout) ThumbnailPath(videoID string) string {
	return filepath.Join(l.Root, videoID, "thumbnail.jpg")
}

func (l *Layout) ChunkDir(videoID, quality string) string {
	return filepath.Join(l.Root, videoID, "chunks", quality)
}

func (l *Layout) ChunkPath(videoID, quality string, index int) string {
	return filepath.Join(l.ChunkDir(videoID, quality), ChunkFileName(index))
}

// ChunkFileName formats the zero-padded segment file name for an index.
func ChunkFileName(index int) string {
	return fmt.Sprintf("chunk_%06d.ts", index)
}

// EnsureChunkDir creates the chunk directory for a quality tier.
func (l *Layout) EnsureChunkDir(videoID, quality string) (string, error) {
	dir := l.ChunkDir(videoID, quality)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create chunk dir: %w", err)
	}
	return dir, nil
}

// EnsureVideoDir creates the asset root directory.
func (l *Layout) EnsureVideoDir(videoID string) (string, error) {
	dir := l.VideoDir(videoID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create video dir: %w", err)
	}
	return dir, nil
}
