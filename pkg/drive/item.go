package drive

import (
	"path"
	"strings"
	"time"
)

// Item is a single entry in a drive listing: a folder or a file with its
// metadata facets. Items are immutable after fetch.
type Item struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	CreatedAt  time.Time       `json:"createdDateTime"`
	ModifiedAt time.Time       `json:"lastModifiedDateTime"`
	WebURL     string          `json:"webUrl,omitempty"`
	File       *FileFacet      `json:"file,omitempty"`
	Folder     *FolderFacet    `json:"folder,omitempty"`

	// DownloadURL is the pre-authorized direct download location the
	// store embeds in item metadata. It is time-limited; fetch promptly.
	DownloadURL string `json:"@microsoft.graph.downloadUrl,omitempty"`

	Thumbnails []ThumbnailSet `json:"thumbnails,omitempty"`
}

// FileFacet is present on file items.
type FileFacet struct {
	MimeType string `json:"mimeType"`
}

// FolderFacet is present on folder items.
type FolderFacet struct {
	ChildCount int `json:"childCount"`
}

// ThumbnailSet holds the server-generated thumbnail renditions of a file.
type ThumbnailSet struct {
	Small  *Thumbnail `json:"small,omitempty"`
	Medium *Thumbnail `json:"medium,omitempty"`
	Large  *Thumbnail `json:"large,omitempty"`
}

// Thumbnail is a single thumbnail rendition.
type Thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// IsFolder reports whether the item is a folder.
func (i *Item) IsFolder() bool {
	return i.Folder != nil
}

// IsFile reports whether the item is a file.
func (i *Item) IsFile() bool {
	return i.File != nil
}

// MimeType returns the file's mime type or "" for folders.
func (i *Item) MimeType() string {
	if i.File == nil {
		return ""
	}
	return i.File.MimeType
}

// IsImage reports whether the item is an image file.
func (i *Item) IsImage() bool {
	return i.File != nil && strings.HasPrefix(i.File.MimeType, "image/")
}

// IsMarkdown reports whether the item is a markdown file, by mime type or
// by the .md extension (the store often serves markdown as text/plain or
// application/octet-stream).
func (i *Item) IsMarkdown() bool {
	if i.File == nil {
		return false
	}
	if strings.Contains(i.File.MimeType, "text/markdown") {
		return true
	}
	return strings.EqualFold(path.Ext(i.Name), ".md")
}

// IsYearFolder reports whether the item is a folder named by a 4-digit
// year, e.g. "2024". "abc", "202" and "20245" are not years.
func (i *Item) IsYearFolder() bool {
	if i.Folder == nil || len(i.Name) != 4 {
		return false
	}
	for _, r := range i.Name {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// listing is one page of a children listing. NextLink, when set, points at
// the continuation page.
type listing struct {
	Value    []Item `json:"value"`
	NextLink string `json:"@odata.nextLink"`
}
