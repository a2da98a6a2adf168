package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Kind names one of the ledger event types the indexer understands.
type Kind string

const (
	KindVideoAdded       Kind = "VideoAdded"
	KindVideoInfoUpdated Kind = "VideoInfoUpdated"
	KindVideoTipped      Kind = "VideoTipped"
	KindVideoLikeToggled Kind = "VideoLikeToggled"
	KindVideoCommented   Kind = "VideoCommented"
	KindVideoReported    Kind = "VideoReported"
	KindVideoRemoved     Kind = "VideoRemoved"
	KindVideoFlagToggled Kind = "VideoFlagToggled"
)

var payloadDecoders = map[Kind]func(json.RawMessage) (Payload, error){
	KindVideoAdded:       decodePayload[VideoAdded],
	KindVideoInfoUpdated: decodePayload[VideoInfoUpdated],
	KindVideoTipped:      decodePayload[VideoTipped],
	KindVideoLikeToggled: decodePayload[VideoLikeToggled],
	KindVideoCommented:   decodePayload[VideoCommented],
	KindVideoReported:    decodePayload[VideoReported],
	KindVideoRemoved:     decodePayload[VideoRemoved],
	KindVideoFlagToggled: decodePayload[VideoFlagToggled],
}

// Kinds returns every known event kind in declaration order.
func Kinds() []Kind {
	return []Kind{
		KindVideoAdded,
		KindVideoInfoUpdated,
		KindVideoTipped,
		KindVideoLikeToggled,
		KindVideoCommented,
		KindVideoReported,
		KindVideoRemoved,
		KindVideoFlagToggled,
	}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	_, ok := payloadDecoders[k]
	return ok
}

// Event is one finalized ledger fact. Timestamp is the producer's block time
// in unix seconds and is copied verbatim onto every entity the event touches.
type Event struct {
	Kind      Kind
	Position  Position
	Timestamp int64
	TxHash    common.Hash
	Payload   Payload
}

// Payload is the sealed set of kind-specific event bodies.
type Payload interface {
	Kind() Kind
	validate() error
	toIR() IRObject
}

// VideoAdded publishes a new video.
type VideoAdded struct {
	ID            uint64         `json:"id"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Category      string         `json:"category"`
	Location      string         `json:"location"`
	ThumbnailHash string         `json:"thumbnail_hash"`
	VideoHash     string         `json:"video_hash"`
	Owner         common.Address `json:"owner"`
	// EOA is the externally owned account behind a smart-account owner.
	EOA common.Address `json:"eoa"`
}

// VideoInfoUpdated overwrites the editable metadata of a video.
type VideoInfoUpdated struct {
	ID            uint64 `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	Category      string `json:"category"`
	Location      string `json:"location"`
	ThumbnailHash string `json:"thumbnail_hash"`
}

// VideoTipped records a payment to a video's owner.
type VideoTipped struct {
	TipID   uint64
	VideoID uint64
	Amount  *uint256.Int
	From    common.Address
}

// VideoLikeToggled flips the like state of one viewer on one video.
type VideoLikeToggled struct {
	VideoID uint64         `json:"video_id"`
	User    common.Address `json:"user"`
}

// VideoCommented appends a comment.
type VideoCommented struct {
	CommentID uint64         `json:"comment_id"`
	VideoID   uint64         `json:"video_id"`
	Author    common.Address `json:"author"`
	Content   string         `json:"content"`
}

// VideoReported files a moderation report. Reason is the raw ledger code.
type VideoReported struct {
	ReportID    uint64         `json:"report_id"`
	VideoID     uint64         `json:"video_id"`
	Reason      uint64         `json:"reason"`
	Description string         `json:"description"`
	Reporter    common.Address `json:"reporter"`
}

// VideoRemoved takes a video down. There is no inverse event.
type VideoRemoved struct {
	VideoID uint64 `json:"video_id"`
}

// VideoFlagToggled sets the moderation flag to an explicit value.
type VideoFlagToggled struct {
	VideoID   uint64 `json:"video_id"`
	IsFlagged bool   `json:"is_flagged"`
}

func (VideoAdded) Kind() Kind       { return KindVideoAdded }
func (VideoInfoUpdated) Kind() Kind { return KindVideoInfoUpdated }
func (VideoTipped) Kind() Kind      { return KindVideoTipped }
func (VideoLikeToggled) Kind() Kind { return KindVideoLikeToggled }
func (VideoCommented) Kind() Kind   { return KindVideoCommented }
func (VideoReported) Kind() Kind    { return KindVideoReported }
func (VideoRemoved) Kind() Kind     { return KindVideoRemoved }
func (VideoFlagToggled) Kind() Kind { return KindVideoFlagToggled }

type wireTip struct {
	TipID   uint64         `json:"tip_id"`
	VideoID uint64         `json:"video_id"`
	Amount  string         `json:"amount"`
	From    common.Address `json:"from"`
}

// UnmarshalJSON reads the amount as a decimal string so that values above
// 2^64 survive the trip through JSON.
func (p *VideoTipped) UnmarshalJSON(data []byte) error {
	var w wireTip
	if err := decodeStrict(data, &w); err != nil {
		return err
	}
	if w.Amount == "" {
		return schemaErrorf("amount", "", "required")
	}
	amount, err := uint256.FromDecimal(w.Amount)
	if err != nil {
		return schemaErrorf("amount", w.Amount, "not an unsigned 256-bit decimal: %v", err)
	}
	*p = VideoTipped{TipID: w.TipID, VideoID: w.VideoID, Amount: amount, From: w.From}
	return nil
}

// MarshalJSON mirrors UnmarshalJSON.
func (p VideoTipped) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.toIR())
}

// DecodeEvent parses one wire-format event. Unknown fields, unknown kinds and
// malformed values are reported as *SchemaError. When the envelope itself
// parsed, the returned Event carries Kind and Position even on error so the
// caller can report where the stream broke.
func DecodeEvent(data []byte) (Event, error) {
	// encoding/json would silently replace invalid bytes with U+FFFD.
	if !validUTF8(data) {
		return Event{}, schemaErrorf("event", "", "not valid UTF-8")
	}
	var env struct {
		Kind      Kind            `json:"kind"`
		Position  Position        `json:"position"`
		Timestamp int64           `json:"timestamp"`
		TxHash    common.Hash     `json:"tx_hash"`
		Payload   json.RawMessage `json:"payload"`
	}
	if err := decodeStrict(data, &env); err != nil {
		return Event{}, schemaErrorf("event", "", "%v", err)
	}

	ev := Event{Kind: env.Kind, Position: env.Position, Timestamp: env.Timestamp, TxHash: env.TxHash}
	decode, ok := payloadDecoders[env.Kind]
	if !ok {
		return ev, schemaErrorf("kind", string(env.Kind), "unknown event kind")
	}
	if len(env.Payload) == 0 {
		return ev, schemaErrorf("payload", "", "required")
	}
	p, err := decode(env.Payload)
	if err != nil {
		if IsSchemaError(err) {
			return ev, err
		}
		return ev, schemaErrorf("payload", "", "%v", err)
	}
	ev.Payload = p
	return ev, nil
}

func decodePayload[T Payload](raw json.RawMessage) (Payload, error) {
	var p T
	if err := decodeStrict(raw, &p); err != nil {
		return nil, err
	}
	return p, nil
}

func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("trailing data after JSON value")
	}
	return nil
}

// Validate checks every field against its domain. A failing event must not
// touch the store.
func (e Event) Validate() error {
	if !e.Kind.Valid() {
		return schemaErrorf("kind", string(e.Kind), "unknown event kind")
	}
	if e.Payload == nil {
		return schemaErrorf("payload", "", "required")
	}
	if e.Payload.Kind() != e.Kind {
		return schemaErrorf("payload", string(e.Payload.Kind()), "does not match kind %s", e.Kind)
	}
	if e.Timestamp < 0 {
		return schemaErrorf("timestamp", fmt.Sprint(e.Timestamp), "must not be negative")
	}
	if e.Position.Block > math.MaxInt64 {
		return schemaErrorf("position.block", fmt.Sprint(e.Position.Block), "out of range")
	}
	return e.Payload.validate()
}

// ToIR returns the wire form of the event as an IRObject.
func (e Event) ToIR() (IRObject, error) {
	if e.Payload == nil {
		return nil, schemaErrorf("payload", "", "required")
	}
	return IRObject{
		"kind":      IRString(e.Kind),
		"position":  e.Position.toIR(),
		"timestamp": IRInt(e.Timestamp),
		"tx_hash":   IRString(e.TxHash.Hex()),
		"payload":   e.Payload.toIR(),
	}, nil
}

// Canonical returns the RFC 8785 encoding of the event's wire form. It is
// what the event log stores and what EventHash digests.
func (e Event) Canonical() ([]byte, error) {
	obj, err := e.ToIR()
	if err != nil {
		return nil, err
	}
	return MarshalCanonical(obj)
}

func checkID(field string, id uint64) error {
	if id > math.MaxInt64 {
		return schemaErrorf(field, fmt.Sprint(id), "out of range")
	}
	return nil
}

func checkActor(field string, addr common.Address) error {
	if addr == (common.Address{}) {
		return schemaErrorf(field, addr.Hex(), "acting address must not be zero")
	}
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (p VideoAdded) validate() error {
	return firstErr(checkID("id", p.ID), checkActor("owner", p.Owner),
		checkText("title", p.Title), checkText("description", p.Description),
		checkText("category", p.Category), checkText("location", p.Location),
		checkText("thumbnail_hash", p.ThumbnailHash), checkText("video_hash", p.VideoHash))
}

func (p VideoInfoUpdated) validate() error {
	return firstErr(checkID("id", p.ID),
		checkText("title", p.Title), checkText("description", p.Description),
		checkText("category", p.Category), checkText("location", p.Location),
		checkText("thumbnail_hash", p.ThumbnailHash))
}

func (p VideoTipped) validate() error {
	if p.Amount == nil {
		return schemaErrorf("amount", "", "required")
	}
	return firstErr(checkID("tip_id", p.TipID), checkID("video_id", p.VideoID), checkActor("from", p.From))
}

func (p VideoLikeToggled) validate() error {
	return firstErr(checkID("video_id", p.VideoID), checkActor("user", p.User))
}

func (p VideoCommented) validate() error {
	return firstErr(checkID("comment_id", p.CommentID), checkID("video_id", p.VideoID), checkActor("author", p.Author),
		checkText("content", p.Content))
}

func (p VideoReported) validate() error {
	if _, err := ReasonFromCode(p.Reason); err != nil {
		return err
	}
	return firstErr(checkID("report_id", p.ReportID), checkID("video_id", p.VideoID), checkActor("reporter", p.Reporter),
		checkText("description", p.Description))
}

func (p VideoRemoved) validate() error {
	return checkID("video_id", p.VideoID)
}

func (p VideoFlagToggled) validate() error {
	return checkID("video_id", p.VideoID)
}

func idIR(id uint64) IRInt { return IRInt(int64(id)) }

func addrIR(a common.Address) IRString { return IRString(ChannelKey(a)) }

func (p VideoAdded) toIR() IRObject {
	return IRObject{
		"id":             idIR(p.ID),
		"title":          IRString(p.Title),
		"description":    IRString(p.Description),
		"category":       IRString(p.Category),
		"location":       IRString(p.Location),
		"thumbnail_hash": IRString(p.ThumbnailHash),
		"video_hash":     IRString(p.VideoHash),
		"owner":          addrIR(p.Owner),
		"eoa":            addrIR(p.EOA),
	}
}

func (p VideoInfoUpdated) toIR() IRObject {
	return IRObject{
		"id":             idIR(p.ID),
		"title":          IRString(p.Title),
		"description":    IRString(p.Description),
		"category":       IRString(p.Category),
		"location":       IRString(p.Location),
		"thumbnail_hash": IRString(p.ThumbnailHash),
	}
}

func (p VideoTipped) toIR() IRObject {
	amount := "0"
	if p.Amount != nil {
		amount = p.Amount.Dec()
	}
	return IRObject{
		"tip_id":   idIR(p.TipID),
		"video_id": idIR(p.VideoID),
		"amount":   IRString(amount),
		"from":     addrIR(p.From),
	}
}

func (p VideoLikeToggled) toIR() IRObject {
	return IRObject{
		"video_id": idIR(p.VideoID),
		"user":     addrIR(p.User),
	}
}

func (p VideoCommented) toIR() IRObject {
	return IRObject{
		"comment_id": idIR(p.CommentID),
		"video_id":   idIR(p.VideoID),
		"author":     addrIR(p.Author),
		"content":    IRString(p.Content),
	}
}

func (p VideoReported) toIR() IRObject {
	return IRObject{
		"report_id":   idIR(p.ReportID),
		"video_id":    idIR(p.VideoID),
		"reason":      IRInt(int64(p.Reason)),
		"description": IRString(p.Description),
		"reporter":    addrIR(p.Reporter),
	}
}

func (p VideoRemoved) toIR() IRObject {
	return IRObject{"video_id": idIR(p.VideoID)}
}

func (p VideoFlagToggled) toIR() IRObject {
	return IRObject{
		"video_id":   idIR(p.VideoID),
		"is_flagged": IRBool(p.IsFlagged),
	}
}
