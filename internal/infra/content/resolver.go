package content

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"community_broadcast_bot/internal/domain/content"
)

// FileResolver serves notification content from per-group asset directories.
// Each group directory holds "<kind>.txt" (required greeting text) and
// optionally "<kind>.png" (image attachment). Files are read fresh on each
// call; assets may be swapped on disk between sends.
type FileResolver struct {
	assetDirs map[int64]string
}

func NewFileResolver(assetDirs map[int64]string) *FileResolver {
	return &FileResolver{assetDirs: assetDirs}
}

func (r *FileResolver) Resolve(groupID int64, kind content.Kind) (*content.Bundle, error) {
	dir, ok := r.assetDirs[groupID]
	if !ok {
		return nil, fmt.Errorf("no asset directory configured for group %d: %w", groupID, content.ErrContentNotFound)
	}

	textPath := filepath.Join(dir, string(kind)+".txt")
	raw, err := os.ReadFile(textPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("missing %s for group %d: %w", textPath, groupID, content.ErrContentNotFound)
		}
		return nil, fmt.Errorf("error reading %s: %w", textPath, err)
	}

	bundle := &content.Bundle{Text: strings.TrimRight(string(raw), "\n")}

	imagePath := filepath.Join(dir, string(kind)+".png")
	if _, err := os.Stat(imagePath); err == nil {
		bundle.AttachmentPath = imagePath
	}
	return bundle, nil
}
