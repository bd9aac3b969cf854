// internal/domain/post/codec.go
package post

import (
	"fmt"
	"strconv"
	"time"
)

// fieldCodec maps one Record attribute to a hash field.
type fieldCodec struct {
	name   string
	encode func(r *Record) string
	decode func(r *Record, v string) error
}

func stringField(name string, ptr func(r *Record) *string) fieldCodec {
	return fieldCodec{
		name:   name,
		encode: func(r *Record) string { return *ptr(r) },
		decode: func(r *Record, v string) error { *ptr(r) = v; return nil },
	}
}

func boolField(name string, ptr func(r *Record) *bool) fieldCodec {
	return fieldCodec{
		name:   name,
		encode: func(r *Record) string { return strconv.FormatBool(*ptr(r)) },
		decode: func(r *Record, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid boolean for %s: %w", name, err)
			}
			*ptr(r) = b
			return nil
		},
	}
}

// recordFields is the serialization table for Record. PostID is the key and
// never stored as a field.
var recordFields = []fieldCodec{
	stringField("author", func(r *Record) *string { return &r.Author }),
	{
		name:   "category",
		encode: func(r *Record) string { return string(r.Category) },
		decode: func(r *Record, v string) error {
			c, ok := ParseCategory(v)
			if !ok {
				return fmt.Errorf("unknown category %q", v)
			}
			r.Category = c
			return nil
		},
	},
	{
		name:   "createdAt",
		encode: func(r *Record) string { return strconv.FormatInt(r.CreatedAt.UnixMilli(), 10) },
		decode: func(r *Record, v string) error {
			ms, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid createdAt: %w", err)
			}
			r.CreatedAt = time.UnixMilli(ms)
			return nil
		},
	},
	stringField("commentId", func(r *Record) *string { return &r.CommentID }),
	stringField("sentConversationId", func(r *Record) *string { return &r.SentConversationID }),
	stringField("responseId", func(r *Record) *string { return &r.ResponseID }),
	boolField("deleted", func(r *Record) *bool { return &r.Deleted }),
	boolField("filtered", func(r *Record) *bool { return &r.Filtered }),
	boolField("removed", func(r *Record) *bool { return &r.Removed }),
	boolField("safe", func(r *Record) *bool { return &r.Safe }),
}

// EncodeFields returns the hash representation of the record. Every field is
// written, empty strings included, so a save always overwrites stale values.
func EncodeFields(r *Record) map[string]string {
	out := make(map[string]string, len(recordFields))
	for _, f := range recordFields {
		out[f.name] = f.encode(r)
	}
	return out
}

// DecodeFields rebuilds a record from its hash. Unknown fields are ignored and
// missing ones keep their zero value.
func DecodeFields(postID string, fields map[string]string) (*Record, error) {
	r := &Record{PostID: postID}
	for _, f := range recordFields {
		v, ok := fields[f.name]
		if !ok {
			continue
		}
		if err := f.decode(r, v); err != nil {
			return nil, fmt.Errorf("failed to decode record %s: %w", postID, err)
		}
	}
	return r, nil
}
