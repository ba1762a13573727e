package browse

import "time"

// Object is one object directly under a listing prefix.
type Object struct {
	// RelativeKey is the key with the listing prefix removed. It never
	// contains "/".
	RelativeKey  string    `json:"relative_key" yaml:"relative_key"`
	Size         int64     `json:"size" yaml:"size"`
	LastModified time.Time `json:"last_modified" yaml:"last_modified"`
	ETag         string    `json:"etag,omitempty" yaml:"etag,omitempty"`
}

// Listing is one page of a single hierarchy level.
//
// Deeper keys are represented only by their folder entry.
type Listing struct {
	Prefix  Prefix   `json:"prefix" yaml:"prefix"`
	Folders []Prefix `json:"folders" yaml:"folders"`
	Objects []Object `json:"objects" yaml:"objects"`

	// NextToken resumes the listing; empty on the last page.
	NextToken string `json:"next_token,omitempty" yaml:"next_token,omitempty"`
	Truncated bool   `json:"truncated,omitempty" yaml:"truncated,omitempty"`
}

// FullKey returns the bucket key of an object in this listing.
func (l Listing) FullKey(o Object) string {
	return string(l.Prefix) + o.RelativeKey
}

// Keys returns every selectable key: folders first, then objects.
func (l Listing) Keys() []string {
	keys := make([]string, 0, len(l.Folders)+len(l.Objects))
	for _, f := range l.Folders {
		keys = append(keys, string(f))
	}
	for _, o := range l.Objects {
		keys = append(keys, l.FullKey(o))
	}
	return keys
}

// Has reports whether key is one of the page's folder or object keys.
func (l Listing) Has(key string) bool {
	if IsFolderKey(key) {
		for _, f := range l.Folders {
			if string(f) == key {
				return true
			}
		}
		return false
	}
	for _, o := range l.Objects {
		if l.FullKey(o) == key {
			return true
		}
	}
	return false
}

// Len returns the number of entries on the page.
func (l Listing) Len() int {
	return len(l.Folders) + len(l.Objects)
}

// IsEmpty reports whether the page has no folders and no objects.
func (l Listing) IsEmpty() bool {
	return l.Len() == 0
}

// TotalSize sums object sizes on the page.
func (l Listing) TotalSize() int64 {
	var total int64
	for _, o := range l.Objects {
		total += o.Size
	}
	return total
}
