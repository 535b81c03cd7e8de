package convert

import (
	u "github.com/gofrs/uuid/v5"

	model "github.com/and161185/grocerly/internal/model"
)

// ToList converts a domain list to its wire form.
func ToList(l model.List) ListDTO {
	return ListDTO{ID: l.ID, OwnerID: l.OwnerID, Name: l.Name, Rev: l.Rev, CreatedAt: l.CreatedAt, UpdatedAt: l.UpdatedAt}
}

// ToLists converts a slice of lists.
func ToLists(in []model.List) []ListDTO {
	out := make([]ListDTO, 0, len(in))
	for _, l := range in {
		out = append(out, ToList(l))
	}
	return out
}

// FromList converts a wire list to the domain type.
func FromList(d ListDTO) model.List {
	return model.List{ID: d.ID, OwnerID: d.OwnerID, Name: d.Name, Rev: d.Rev, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt}
}

// ToItem converts a domain item to its wire form.
func ToItem(it model.Item) ItemDTO {
	return ItemDTO{
		ID: it.ID, ListID: it.ListID, Name: it.Name, Category: it.Category,
		Checked: it.Checked, Position: it.Position, CheckedAt: it.CheckedAt,
		CreatedAt: it.CreatedAt, UpdatedAt: it.UpdatedAt, Rev: it.Rev, Deleted: it.Deleted,
	}
}

// ToItems converts a slice of items.
func ToItems(in []model.Item) []ItemDTO {
	out := make([]ItemDTO, 0, len(in))
	for _, it := range in {
		out = append(out, ToItem(it))
	}
	return out
}

// FromItem converts a wire item to the domain type.
func FromItem(d ItemDTO) model.Item {
	return model.Item{
		ID: d.ID, ListID: d.ListID, Name: d.Name, Category: d.Category,
		Checked: d.Checked, Position: d.Position, CheckedAt: d.CheckedAt,
		CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt, Rev: d.Rev, Deleted: d.Deleted,
	}
}

// FromItems converts a slice of wire items.
func FromItems(in []ItemDTO) []model.Item {
	out := make([]model.Item, 0, len(in))
	for _, d := range in {
		out = append(out, FromItem(d))
	}
	return out
}

// ToMember converts a membership to its wire form.
func ToMember(m model.ListMember) MemberDTO {
	return MemberDTO{ListID: m.ListID, UserID: m.UserID, Role: string(m.Role), CreatedAt: m.CreatedAt}
}

// ToMembers converts a slice of memberships.
func ToMembers(in []model.ListMember) []MemberDTO {
	out := make([]MemberDTO, 0, len(in))
	for _, m := range in {
		out = append(out, ToMember(m))
	}
	return out
}

// FromMember converts a wire membership to the domain type.
func FromMember(d MemberDTO) model.ListMember {
	return model.ListMember{ListID: d.ListID, UserID: d.UserID, Role: model.Role(d.Role), CreatedAt: d.CreatedAt}
}

// FromNewItem converts a creation body.
func FromNewItem(d NewItemDTO) model.NewItem {
	ni := model.NewItem{Name: d.Name, Category: d.Category, Position: d.Position}
	if d.ID != nil {
		ni.ID = *d.ID
	}
	return ni
}

// ToNewItem converts a creation intent to its wire form.
func ToNewItem(ni model.NewItem) NewItemDTO {
	d := NewItemDTO{Name: ni.Name, Category: ni.Category, Position: ni.Position}
	if ni.ID != u.Nil {
		id := ni.ID
		d.ID = &id
	}
	return d
}

// FromItemPatch converts a patch body.
func FromItemPatch(d ItemPatchDTO) model.ItemPatch {
	return model.ItemPatch{Name: d.Name, Category: d.Category, Position: d.Position, Checked: d.Checked, BaseRev: d.BaseRev}
}

// ToItemPatch converts a domain patch to its wire form.
func ToItemPatch(p model.ItemPatch) ItemPatchDTO {
	return ItemPatchDTO{Name: p.Name, Category: p.Category, Position: p.Position, Checked: p.Checked, BaseRev: p.BaseRev}
}

// ToChanges converts a change feed page.
func ToChanges(c model.Changes) ChangesDTO {
	return ChangesDTO{ListRev: c.ListRev, Items: ToItems(c.Items)}
}

// FromChanges converts a wire change feed page.
func FromChanges(d ChangesDTO) model.Changes {
	return model.Changes{ListRev: d.ListRev, Items: FromItems(d.Items)}
}

// FromSyncOp converts a wire op. Unknown kinds pass through so the service
// can report them per op.
func FromSyncOp(d SyncOpDTO) model.SyncOp {
	op := model.SyncOp{Kind: model.OpKind(d.Op), ItemID: d.ItemID}
	switch op.Kind {
	case model.OpAdd:
		ni := model.NewItem{ID: d.ItemID, Category: d.Category, Position: d.Position}
		if d.Name != nil {
			ni.Name = *d.Name
		}
		op.Add = ni
		op.Patch.BaseRev = d.BaseRev
	case model.OpUpdate:
		op.Patch = model.ItemPatch{Name: d.Name, Category: d.Category, Position: d.Position, Checked: d.Checked, BaseRev: d.BaseRev}
	default:
		op.Patch.BaseRev = d.BaseRev
	}
	return op
}

// FromSyncOps converts a batch of wire ops.
func FromSyncOps(in []SyncOpDTO) []model.SyncOp {
	out := make([]model.SyncOp, 0, len(in))
	for _, d := range in {
		out = append(out, FromSyncOp(d))
	}
	return out
}

// ToSyncOp converts a domain op to its wire form.
func ToSyncOp(op model.SyncOp) SyncOpDTO {
	d := SyncOpDTO{Op: string(op.Kind), ItemID: op.ItemID, BaseRev: op.Patch.BaseRev}
	switch op.Kind {
	case model.OpAdd:
		name := op.Add.Name
		d.Name, d.Category, d.Position = &name, op.Add.Category, op.Add.Position
	case model.OpUpdate:
		d.Name, d.Category, d.Position, d.Checked = op.Patch.Name, op.Patch.Category, op.Patch.Position, op.Patch.Checked
	}
	return d
}

// ToSyncResults converts replay outcomes.
func ToSyncResults(in []model.SyncResult) []SyncResultDTO {
	out := make([]SyncResultDTO, 0, len(in))
	for _, r := range in {
		d := SyncResultDTO{ItemID: r.ItemID, Status: string(r.Status), Error: r.Error}
		if r.Item != nil {
			it := ToItem(*r.Item)
			d.Item = &it
		}
		out = append(out, d)
	}
	return out
}

// FromSyncResults converts wire replay outcomes.
func FromSyncResults(in []SyncResultDTO) []model.SyncResult {
	out := make([]model.SyncResult, 0, len(in))
	for _, d := range in {
		r := model.SyncResult{ItemID: d.ItemID, Status: model.SyncStatus(d.Status), Error: d.Error}
		if d.Item != nil {
			it := FromItem(*d.Item)
			r.Item = &it
		}
		out = append(out, r)
	}
	return out
}
