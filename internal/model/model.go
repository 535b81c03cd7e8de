// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Role is a list membership role.
type Role string

// Membership roles, strongest first.
const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleEditor, RoleViewer:
		return true
	}
	return false
}

// CanEdit reports whether the role may mutate items.
func (r Role) CanEdit() bool { return r == RoleOwner || r == RoleEditor }

// AtLeast reports whether r grants every permission of other.
func (r Role) AtLeast(other Role) bool { return r.rank() >= other.rank() }

func (r Role) rank() int {
	switch r {
	case RoleOwner:
		return 3
	case RoleEditor:
		return 2
	case RoleViewer:
		return 1
	}
	return 0
}

// List is a named collection of items owned by a user.
type List struct {
	ID        uuid.UUID
	OwnerID   uuid.UUID // JWT subject of the creator
	Name      string
	Rev       int64 // bumped on every item mutation
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Item is a single purchasable entry of a list.
type Item struct {
	ID        uuid.UUID
	ListID    uuid.UUID
	Name      string
	Category  *string
	Checked   bool
	Position  int
	CheckedAt *time.Time // set iff Checked
	CreatedAt time.Time
	UpdatedAt time.Time
	Rev       int64 // list rev at the item's last mutation
	Deleted   bool  // tombstone flag
}

// ListMember grants a user a role on a list.
type ListMember struct {
	ListID    uuid.UUID
	UserID    uuid.UUID
	Role      Role
	CreatedAt time.Time
}

// NewItem is an item creation intent.
type NewItem struct {
	ID       uuid.UUID // optional client-generated id; generated when Nil
	Name     string
	Category *string
	Position *int // appended after the last item when nil
}

// ItemPatch is a partial item update. Nil fields are left untouched.
type ItemPatch struct {
	Name     *string
	Category *string
	Position *int
	Checked  *bool
	BaseRev  *int64 // optimistic concurrency guard when set
}

// Empty reports whether the patch changes nothing.
func (p ItemPatch) Empty() bool {
	return p.Name == nil && p.Category == nil && p.Position == nil && p.Checked == nil
}

// Changes is a slice of the rev-ordered change feed of a list.
type Changes struct {
	ListRev int64
	Items   []Item // includes tombstones, ordered by Rev ASC
}

// OpKind enumerates replayable offline operations.
type OpKind string

// Replayable operations.
const (
	OpAdd    OpKind = "add"
	OpUpdate OpKind = "update"
	OpToggle OpKind = "toggle"
	OpDelete OpKind = "delete"
)

// SyncOp is one queued client write replayed on reconnect.
type SyncOp struct {
	Kind   OpKind
	ItemID uuid.UUID
	Add    NewItem   // for OpAdd
	Patch  ItemPatch // for OpUpdate; BaseRev applies to every kind
}

// SyncStatus is the outcome of one replayed op.
type SyncStatus string

// Per-op outcomes.
const (
	SyncApplied  SyncStatus = "applied"
	SyncConflict SyncStatus = "conflict"
	SyncNotFound SyncStatus = "not_found"
	SyncInvalid  SyncStatus = "invalid"
)

// SyncResult reports a replayed op and the authoritative item afterwards.
type SyncResult struct {
	ItemID uuid.UUID
	Status SyncStatus
	Item   *Item // server state (nil when not found)
	Error  string
}

// Change describes a single item mutation delivered over the real-time channel.
type Change struct {
	ListID uuid.UUID `json:"list_id"`
	ItemID uuid.UUID `json:"item_id"`
	Op     string    `json:"op"`
	Rev    int64     `json:"rev"`
	Resync bool      `json:"resync,omitempty"` // subscriber missed events
}
