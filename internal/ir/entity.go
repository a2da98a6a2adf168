package ir

import (
	"strings"

	"github.com/holiman/uint256"
)

// Channel is the creator or viewer identity behind an address. Created the
// first time any event references the address; never mutated afterwards.
type Channel struct {
	ID        string
	Owner     string
	CreatedAt int64
}

// Video is the materialized state of one published video. Counters are kept
// in step with the child rows by the mapping handlers.
type Video struct {
	ID           string
	Title        string
	Description  string
	Category     string
	Location     string
	ThumbnailRef string
	ContentRef   string
	Channel      string
	EOA          string
	TipAmount    *uint256.Int
	LikeCount    int64
	CommentCount int64
	ReportCount  int64
	Flagged      bool
	Removed      bool
	CreatedAt    int64
	UpdatedAt    int64
}

// Tip is an append-only payment record.
type Tip struct {
	ID        string
	Video     string
	Amount    *uint256.Int
	From      string
	TxRef     string
	CreatedAt int64
}

// Like is the toggle entity: its presence means the viewer currently likes
// the video.
type Like struct {
	ID        string
	Video     string
	LikedBy   string
	CreatedAt int64
}

// Comment is an append-only comment record.
type Comment struct {
	ID        string
	Video     string
	Author    string
	Content   string
	CreatedAt int64
}

// Report is an append-only moderation report.
type Report struct {
	ID          string
	Video       string
	Reason      ReportReason
	Description string
	Reporter    string
	CreatedAt   int64
}

// FieldType is the scalar type of an entity field as exposed to readers.
type FieldType int

const (
	FieldString FieldType = iota
	FieldInt
	FieldBool
	// FieldBigInt is an unsigned 256-bit integer stored as decimal text.
	FieldBigInt
)

func (t FieldType) String() string {
	switch t {
	case FieldString:
		return "string"
	case FieldInt:
		return "int"
	case FieldBool:
		return "bool"
	case FieldBigInt:
		return "bigint"
	default:
		return "unknown"
	}
}

// Field maps an outbound field name onto its storage column.
type Field struct {
	Name   string
	Column string
	Type   FieldType
}

// EntitySchema describes one entity type for snapshots and the Read API.
type EntitySchema struct {
	Name   string
	Table  string
	Fields []Field
}

// Field looks up a field by its outbound name.
func (s EntitySchema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Columns returns the storage columns in declaration order.
func (s EntitySchema) Columns() []string {
	cols := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		cols[i] = f.Column
	}
	return cols
}

const (
	EntityChannel = "channel"
	EntityVideo   = "video"
	EntityTip     = "tip"
	EntityLike    = "like"
	EntityComment = "comment"
	EntityReport  = "report"
)

var catalog = []EntitySchema{
	{
		Name:  EntityChannel,
		Table: "channels",
		Fields: []Field{
			{"id", "id", FieldString},
			{"owner", "owner", FieldString},
			{"createdAt", "created_at", FieldInt},
		},
	},
	{
		Name:  EntityVideo,
		Table: "videos",
		Fields: []Field{
			{"id", "id", FieldString},
			{"title", "title", FieldString},
			{"description", "description", FieldString},
			{"category", "category", FieldString},
			{"location", "location", FieldString},
			{"thumbnailRef", "thumbnail_ref", FieldString},
			{"contentRef", "content_ref", FieldString},
			{"channel", "channel", FieldString},
			{"eoa", "eoa", FieldString},
			{"tipAmount", "tip_amount", FieldBigInt},
			{"likeCount", "like_count", FieldInt},
			{"commentCount", "comment_count", FieldInt},
			{"reportCount", "report_count", FieldInt},
			{"flagged", "flagged", FieldBool},
			{"removed", "removed", FieldBool},
			{"createdAt", "created_at", FieldInt},
			{"updatedAt", "updated_at", FieldInt},
		},
	},
	{
		Name:  EntityTip,
		Table: "tips",
		Fields: []Field{
			{"id", "id", FieldString},
			{"video", "video", FieldString},
			{"amount", "amount", FieldBigInt},
			{"from", "from_channel", FieldString},
			{"txRef", "tx_ref", FieldString},
			{"createdAt", "created_at", FieldInt},
		},
	},
	{
		Name:  EntityLike,
		Table: "likes",
		Fields: []Field{
			{"id", "id", FieldString},
			{"video", "video", FieldString},
			{"likedBy", "liked_by", FieldString},
			{"createdAt", "created_at", FieldInt},
		},
	},
	{
		Name:  EntityComment,
		Table: "comments",
		Fields: []Field{
			{"id", "id", FieldString},
			{"video", "video", FieldString},
			{"author", "author", FieldString},
			{"content", "content", FieldString},
			{"createdAt", "created_at", FieldInt},
		},
	},
	{
		Name:  EntityReport,
		Table: "reports",
		Fields: []Field{
			{"id", "id", FieldString},
			{"video", "video", FieldString},
			{"reason", "reason", FieldString},
			{"description", "description", FieldString},
			{"reporter", "reporter", FieldString},
			{"createdAt", "created_at", FieldInt},
		},
	},
}

// Catalog returns the schema of every entity type in snapshot order.
func Catalog() []EntitySchema {
	return catalog
}

// LookupEntity finds an entity schema by name. Plural and capitalized forms
// ("Videos") are accepted.
func LookupEntity(name string) (EntitySchema, bool) {
	n := strings.ToLower(name)
	for _, s := range catalog {
		if n == s.Name || n == s.Name+"s" || n == s.Table {
			return s, true
		}
	}
	return EntitySchema{}, false
}
