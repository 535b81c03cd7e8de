// Package convert defines the JSON wire shapes shared by the HTTP services and
// the client, and converts them to and from domain types.
package convert

import (
	"time"

	u "github.com/gofrs/uuid/v5"
)

// ListDTO is the wire form of model.List.
type ListDTO struct {
	ID        u.UUID    `json:"id"`
	OwnerID   u.UUID    `json:"owner_id"`
	Name      string    `json:"name"`
	Rev       int64     `json:"rev"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ItemDTO is the wire form of model.Item.
type ItemDTO struct {
	ID        u.UUID     `json:"id"`
	ListID    u.UUID     `json:"list_id"`
	Name      string     `json:"name"`
	Category  *string    `json:"category"`
	Checked   bool       `json:"checked"`
	Position  int        `json:"position"`
	CheckedAt *time.Time `json:"checked_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Rev       int64      `json:"rev"`
	Deleted   bool       `json:"deleted,omitempty"`
}

// MemberDTO is the wire form of model.ListMember.
type MemberDTO struct {
	ListID    u.UUID    `json:"list_id"`
	UserID    u.UUID    `json:"user_id"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// NewItemDTO is an item creation body.
type NewItemDTO struct {
	ID       *u.UUID `json:"id,omitempty"`
	Name     string  `json:"name"`
	Category *string `json:"category,omitempty"`
	Position *int    `json:"position,omitempty"`
}

// ItemPatchDTO is a partial item update body.
type ItemPatchDTO struct {
	Name     *string `json:"name,omitempty"`
	Category *string `json:"category,omitempty"`
	Position *int    `json:"position,omitempty"`
	Checked  *bool   `json:"checked,omitempty"`
	BaseRev  *int64  `json:"base_rev,omitempty"`
}

// BulkItemsRequest adds many items at once.
type BulkItemsRequest struct {
	Items []NewItemDTO `json:"items"`
}

// ToggleRequest carries the optional concurrency guard of a toggle.
type ToggleRequest struct {
	BaseRev *int64 `json:"base_rev,omitempty"`
}

// NameRequest creates or renames a list.
type NameRequest struct {
	Name string `json:"name"`
}

// AddMemberRequest shares a list.
type AddMemberRequest struct {
	UserID u.UUID `json:"user_id"`
	Role   string `json:"role"`
}

// RoleRequest changes a member's role.
type RoleRequest struct {
	Role string `json:"role"`
}

// ChangesDTO is a page of the change feed.
type ChangesDTO struct {
	ListRev int64     `json:"list_rev"`
	Items   []ItemDTO `json:"items"`
}

// SyncOpDTO is one queued offline write. Add uses name/category/position;
// update uses any patch field; every op may carry base_rev.
type SyncOpDTO struct {
	Op       string  `json:"op"`
	ItemID   u.UUID  `json:"item_id"`
	Name     *string `json:"name,omitempty"`
	Category *string `json:"category,omitempty"`
	Position *int    `json:"position,omitempty"`
	Checked  *bool   `json:"checked,omitempty"`
	BaseRev  *int64  `json:"base_rev,omitempty"`
}

// SyncRequest replays queued writes.
type SyncRequest struct {
	Ops []SyncOpDTO `json:"ops"`
}

// SyncResultDTO is the outcome of one replayed op.
type SyncResultDTO struct {
	ItemID u.UUID   `json:"item_id"`
	Status string   `json:"status"`
	Item   *ItemDTO `json:"item,omitempty"`
	Error  string   `json:"error,omitempty"`
}

// SyncResponse lists per-op outcomes in request order.
type SyncResponse struct {
	Results []SyncResultDTO `json:"results"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ParsedItemDTO is one candidate extracted from a document.
type ParsedItemDTO struct {
	Name     string  `json:"name"`
	Category *string `json:"category"`
	Original string  `json:"original"`
	Quantity string  `json:"quantity,omitempty"`
}

// ParseResponse is the document parse reply.
type ParseResponse struct {
	Success       bool            `json:"success"`
	Filename      string          `json:"filename"`
	ExtractedText string          `json:"extracted_text"`
	Items         []ParsedItemDTO `json:"items"`
	Count         int             `json:"count"`
	ListID        *string         `json:"list_id,omitempty"`
}

// ExtractTextResponse is the raw text extraction reply.
type ExtractTextResponse struct {
	Success bool   `json:"success"`
	Text    string `json:"text"`
}

// VoiceRequest carries a speech transcription.
type VoiceRequest struct {
	Text string `json:"text"`
}

// VoiceResponse lists items found in a transcription.
type VoiceResponse struct {
	Success bool            `json:"success"`
	Items   []ParsedItemDTO `json:"items"`
	Count   int             `json:"count"`
}
