package storage

import (
	"path"
	"time"

	"github.com/viant/afs/storage"
	"github.com/viant/afs/url"

	"github.com/relforge/tagship/format"
)

// Asset describes a file or directory in storage; Size carries the raw byte
// count, HumanSize its humanized rendering.
type Asset struct {
	URL         string          `json:"url"`
	Name        string          `json:"name"`
	IsDir       bool            `json:"isDir"`
	Mode        string          `json:"mode,omitempty"`
	Size        int64           `json:"size,omitempty"`
	HumanSize   format.ByteSize `json:"humanSize,omitempty"`
	ModTime     time.Time       `json:"modTime,omitempty"`
	Data        []byte          `json:"data,omitempty"`
	ContentType string          `json:"contentType,omitempty"`
}

// newAsset builds an asset view of a storage object.
func newAsset(assetURL string, object storage.Object) *Asset {
	return &Asset{
		URL:         assetURL,
		Name:        path.Base(assetURL),
		IsDir:       object.IsDir(),
		Mode:        object.Mode().String(),
		Size:        object.Size(),
		HumanSize:   format.ByteSize(object.Size()),
		ModTime:     object.ModTime(),
		ContentType: contentType(url.Path(assetURL)),
	}
}
