// internal/domain/post/repository.go
package post

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrRecordNotFound = errors.New("post record not found")

const (
	recordPrefix       = "post:"
	conversationPrefix = "conversation:"
	commentPrefix      = "comment:"
	linkField          = "postId"
)

func recordKey(postID string) string { return recordPrefix + postID }

// Repository reads and writes post records and their category indexes on top
// of a Store. The category field of the record hash is authoritative; indexes
// are kept in step by SetCategory.
type Repository struct {
	store Store
}

func NewRepository(store Store) *Repository {
	return &Repository{store: store}
}

// Load returns ErrRecordNotFound when no hash exists for the post.
func (r *Repository) Load(ctx context.Context, postID string) (*Record, error) {
	fields, err := r.store.GetFields(ctx, recordKey(postID))
	if err != nil {
		return nil, fmt.Errorf("failed to load record %s: %w", postID, err)
	}
	if len(fields) == 0 {
		return nil, ErrRecordNotFound
	}
	rec, err := DecodeFields(postID, fields)
	if err != nil {
		return nil, err
	}
	if rec.Category == CategoryNone {
		// Older hashes carry no category field.
		for _, c := range Categories {
			ok, err := r.store.IndexContains(ctx, c.IndexKey(), postID)
			if err != nil {
				return nil, fmt.Errorf("failed to probe %s index for %s: %w", c, postID, err)
			}
			if ok {
				rec.Category = c
				break
			}
		}
	}
	return rec, nil
}

// Save writes every record field.
func (r *Repository) Save(ctx context.Context, rec *Record) error {
	if err := r.store.SetFields(ctx, recordKey(rec.PostID), EncodeFields(rec)); err != nil {
		return fmt.Errorf("failed to save record %s: %w", rec.PostID, err)
	}
	return nil
}

// SetCategory moves the record into c: the hash is written first, then the id
// is dropped from every other index and added to the index of c.
func (r *Repository) SetCategory(ctx context.Context, rec *Record, c Category) error {
	if !c.Valid() {
		return fmt.Errorf("cannot move %s to unknown category %q", rec.PostID, c)
	}
	rec.applyCategory(c)
	if err := r.Save(ctx, rec); err != nil {
		return err
	}

	others := make([]string, 0, len(Categories)-1)
	for _, other := range Categories {
		if other != c {
			others = append(others, other.IndexKey())
		}
	}
	if bulk, ok := r.store.(BulkIndexRemover); ok {
		if err := bulk.RemoveFromIndexes(ctx, others, rec.PostID); err != nil {
			return fmt.Errorf("failed to clear indexes for %s: %w", rec.PostID, err)
		}
	} else {
		for _, idx := range others {
			if err := r.store.RemoveFromIndex(ctx, idx, rec.PostID); err != nil {
				return fmt.Errorf("failed to remove %s from %s: %w", rec.PostID, idx, err)
			}
		}
	}

	if err := r.store.AddToIndex(ctx, c.IndexKey(), rec.PostID, rec.CreatedAt.UnixMilli()); err != nil {
		return fmt.Errorf("failed to add %s to %s: %w", rec.PostID, c.IndexKey(), err)
	}
	return nil
}

func (r *Repository) InCategory(ctx context.Context, c Category, postID string) (bool, error) {
	ok, err := r.store.IndexContains(ctx, c.IndexKey(), postID)
	if err != nil {
		return false, fmt.Errorf("failed to check %s index for %s: %w", c, postID, err)
	}
	return ok, nil
}

// ListCategory returns the ids in a category index, oldest first.
func (r *Repository) ListCategory(ctx context.Context, c Category) ([]string, error) {
	ids, err := r.store.ScanIndex(ctx, c.IndexKey())
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s index: %w", c, err)
	}
	return ids, nil
}

// DropFromCategory removes a single index membership without touching the hash.
func (r *Repository) DropFromCategory(ctx context.Context, c Category, postID string) error {
	if err := r.store.RemoveFromIndex(ctx, c.IndexKey(), postID); err != nil {
		return fmt.Errorf("failed to drop %s from %s: %w", postID, c, err)
	}
	return nil
}

func (r *Repository) LinkConversation(ctx context.Context, conversationID, postID string) error {
	return r.link(ctx, conversationPrefix+conversationID, postID)
}

func (r *Repository) LinkComment(ctx context.Context, commentID, postID string) error {
	return r.link(ctx, commentPrefix+commentID, postID)
}

func (r *Repository) link(ctx context.Context, key, postID string) error {
	if err := r.store.SetFields(ctx, key, map[string]string{linkField: postID}); err != nil {
		return fmt.Errorf("failed to associate %s with %s: %w", key, postID, err)
	}
	return nil
}

// PostIDForConversation returns ErrRecordNotFound when the conversation is unknown.
func (r *Repository) PostIDForConversation(ctx context.Context, conversationID string) (string, error) {
	return r.resolve(ctx, conversationPrefix+conversationID)
}

// PostIDForComment returns ErrRecordNotFound when the comment is unknown.
func (r *Repository) PostIDForComment(ctx context.Context, commentID string) (string, error) {
	return r.resolve(ctx, commentPrefix+commentID)
}

func (r *Repository) resolve(ctx context.Context, key string) (string, error) {
	fields, err := r.store.GetFields(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", key, err)
	}
	id := fields[linkField]
	if id == "" {
		return "", ErrRecordNotFound
	}
	return id, nil
}

// AllPostIDs lists every post that has a record hash.
func (r *Repository) AllPostIDs(ctx context.Context) ([]string, error) {
	keys, err := r.store.ScanKeys(ctx, recordPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to scan record keys: %w", err)
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, strings.TrimPrefix(k, recordPrefix))
	}
	return ids, nil
}
