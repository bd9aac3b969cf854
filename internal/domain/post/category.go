// internal/domain/post/category.go
package post

// Category is the lifecycle state of a tracked post. A record belongs to
// exactly one category index at a time.
type Category string

const (
	CategoryNone            Category = ""
	CategoryActive          Category = "active"
	CategoryPendingResponse Category = "pendingResponse"
	CategoryNoResponse      Category = "noResponse"
	CategoryFiltered        Category = "filtered"
	CategoryDeleted         Category = "deleted"
	CategoryRemoved         Category = "removed"
	CategorySafe            Category = "safe"
)

// Categories lists every category that owns an index.
var Categories = []Category{
	CategoryActive,
	CategoryPendingResponse,
	CategoryNoResponse,
	CategoryFiltered,
	CategoryDeleted,
	CategoryRemoved,
	CategorySafe,
}

// IndexKey is the sorted-set key holding the members of the category.
func (c Category) IndexKey() string {
	return "posts:" + string(c)
}

// Terminal reports whether sweeps and moderator actions must leave the record alone.
func (c Category) Terminal() bool {
	return c == CategorySafe || c == CategoryDeleted
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory converts a stored value back into a Category.
func ParseCategory(s string) (Category, bool) {
	c := Category(s)
	if c == CategoryNone {
		return CategoryNone, true
	}
	return c, c.Valid()
}
