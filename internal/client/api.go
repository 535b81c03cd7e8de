// Package client talks to the grocery API and keeps a local-first copy of list state.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/grocerly/internal/convert"
	"github.com/and161185/grocerly/internal/errs"
	"github.com/and161185/grocerly/internal/model"
)

// APIError is a non-2xx reply. It matches the errs sentinels for its status.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.Status)
	}
	return fmt.Sprintf("http %d: %s", e.Status, e.Message)
}

// Is lets errors.Is(err, errs.ErrNotFound) and friends work on replies.
func (e *APIError) Is(target error) bool {
	switch e.Status {
	case http.StatusBadRequest:
		return target == errs.ErrValidation
	case http.StatusUnauthorized:
		return target == errs.ErrUnauthorized
	case http.StatusForbidden:
		return target == errs.ErrForbidden
	case http.StatusNotFound:
		return target == errs.ErrNotFound
	case http.StatusConflict:
		if strings.Contains(e.Message, errs.ErrAlreadyExists.Error()) {
			return target == errs.ErrAlreadyExists
		}
		return target == errs.ErrVersionConflict
	case http.StatusTooManyRequests:
		return target == errs.ErrRateLimited
	}
	return false
}

// Transient reports whether err may succeed on retry: transport failures,
// rate limiting and 5xx replies. Those writes are queued for later.
func Transient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Status >= 500 || ae.Status == http.StatusTooManyRequests
	}
	return true
}

// API is a typed client for the list API and the document parser.
type API struct {
	base    string
	docBase string
	token   string
	hc      *http.Client
	stream  *http.Client
}

// NewAPI returns a client. docBase may be empty when document import is unused.
func NewAPI(base, docBase, token string, hc *http.Client) *API {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	// event streams outlive any request timeout
	stream := *hc
	stream.Timeout = 0
	return &API{
		base:    strings.TrimRight(base, "/"),
		docBase: strings.TrimRight(docBase, "/"),
		token:   token,
		hc:      hc,
		stream:  &stream,
	}
}

func (a *API) do(ctx context.Context, method, base, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return a.send(a.hc, req, out)
}

func (a *API) send(hc *http.Client, req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return readError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func readError(resp *http.Response) error {
	var e convert.ErrorResponse
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(b, &e) != nil || e.Error == "" {
		e.Error = strings.TrimSpace(string(b))
	}
	return &APIError{Status: resp.StatusCode, Message: e.Error}
}

func listPath(listID uuid.UUID, rest string) string {
	return "/api/lists/" + listID.String() + rest
}

func itemPath(listID, itemID uuid.UUID, rest string) string {
	return listPath(listID, "/items/"+itemID.String()+rest)
}

// Lists returns the caller's lists.
func (a *API) Lists(ctx context.Context) ([]model.List, error) {
	var out []convert.ListDTO
	if err := a.do(ctx, http.MethodGet, a.base, "/api/lists", nil, &out); err != nil {
		return nil, err
	}
	res := make([]model.List, len(out))
	for i, d := range out {
		res[i] = convert.FromList(d)
	}
	return res, nil
}

func (a *API) listCall(ctx context.Context, method, path string, in any) (*model.List, error) {
	var out convert.ListDTO
	if err := a.do(ctx, method, a.base, path, in, &out); err != nil {
		return nil, err
	}
	l := convert.FromList(out)
	return &l, nil
}

// CreateList makes a list owned by the caller.
func (a *API) CreateList(ctx context.Context, name string) (*model.List, error) {
	return a.listCall(ctx, http.MethodPost, "/api/lists", convert.NameRequest{Name: name})
}

// GetList fetches one list.
func (a *API) GetList(ctx context.Context, listID uuid.UUID) (*model.List, error) {
	return a.listCall(ctx, http.MethodGet, listPath(listID, ""), nil)
}

// RenameList renames a list.
func (a *API) RenameList(ctx context.Context, listID uuid.UUID, name string) (*model.List, error) {
	return a.listCall(ctx, http.MethodPatch, listPath(listID, ""), convert.NameRequest{Name: name})
}

// DeleteList removes a list.
func (a *API) DeleteList(ctx context.Context, listID uuid.UUID) error {
	return a.do(ctx, http.MethodDelete, a.base, listPath(listID, ""), nil, nil)
}

// Items returns live items of a list.
func (a *API) Items(ctx context.Context, listID uuid.UUID) ([]model.Item, error) {
	var out []convert.ItemDTO
	if err := a.do(ctx, http.MethodGet, a.base, listPath(listID, "/items"), nil, &out); err != nil {
		return nil, err
	}
	return convert.FromItems(out), nil
}

func (a *API) itemCall(ctx context.Context, method, path string, in any) (*model.Item, error) {
	var out convert.ItemDTO
	if err := a.do(ctx, method, a.base, path, in, &out); err != nil {
		return nil, err
	}
	it := convert.FromItem(out)
	return &it, nil
}

// AddItem creates one item; a non-nil in.ID makes the call idempotent.
func (a *API) AddItem(ctx context.Context, listID uuid.UUID, in model.NewItem) (*model.Item, error) {
	return a.itemCall(ctx, http.MethodPost, listPath(listID, "/items"), convert.ToNewItem(in))
}

// AddItems creates many items in one transaction.
func (a *API) AddItems(ctx context.Context, listID uuid.UUID, in []model.NewItem) ([]model.Item, error) {
	req := convert.BulkItemsRequest{Items: make([]convert.NewItemDTO, len(in))}
	for i, ni := range in {
		req.Items[i] = convert.ToNewItem(ni)
	}
	var out []convert.ItemDTO
	if err := a.do(ctx, http.MethodPost, a.base, listPath(listID, "/items/bulk"), req, &out); err != nil {
		return nil, err
	}
	return convert.FromItems(out), nil
}

// UpdateItem applies a partial patch.
func (a *API) UpdateItem(ctx context.Context, listID, itemID uuid.UUID, p model.ItemPatch) (*model.Item, error) {
	return a.itemCall(ctx, http.MethodPatch, itemPath(listID, itemID, ""), convert.ToItemPatch(p))
}

// ToggleItem flips the checked flag.
func (a *API) ToggleItem(ctx context.Context, listID, itemID uuid.UUID, baseRev *int64) (*model.Item, error) {
	return a.itemCall(ctx, http.MethodPost, itemPath(listID, itemID, "/toggle"), convert.ToggleRequest{BaseRev: baseRev})
}

// DeleteItem tombstones an item and returns the tombstone.
func (a *API) DeleteItem(ctx context.Context, listID, itemID uuid.UUID, baseRev *int64) (*model.Item, error) {
	path := itemPath(listID, itemID, "")
	if baseRev != nil {
		path += "?base_rev=" + strconv.FormatInt(*baseRev, 10)
	}
	return a.itemCall(ctx, http.MethodDelete, path, nil)
}

// Changes returns items with rev > since, tombstones included.
func (a *API) Changes(ctx context.Context, listID uuid.UUID, since int64) (model.Changes, error) {
	var out convert.ChangesDTO
	path := listPath(listID, "/changes?since="+strconv.FormatInt(since, 10))
	if err := a.do(ctx, http.MethodGet, a.base, path, nil, &out); err != nil {
		return model.Changes{}, err
	}
	return convert.FromChanges(out), nil
}

// Sync replays queued ops.
func (a *API) Sync(ctx context.Context, listID uuid.UUID, ops []model.SyncOp) ([]model.SyncResult, error) {
	req := convert.SyncRequest{Ops: make([]convert.SyncOpDTO, len(ops))}
	for i, op := range ops {
		req.Ops[i] = convert.ToSyncOp(op)
	}
	var out convert.SyncResponse
	if err := a.do(ctx, http.MethodPost, a.base, listPath(listID, "/sync"), req, &out); err != nil {
		return nil, err
	}
	return convert.FromSyncResults(out.Results), nil
}

// Members returns the members of a list.
func (a *API) Members(ctx context.Context, listID uuid.UUID) ([]model.ListMember, error) {
	var out []convert.MemberDTO
	if err := a.do(ctx, http.MethodGet, a.base, listPath(listID, "/members"), nil, &out); err != nil {
		return nil, err
	}
	res := make([]model.ListMember, len(out))
	for i, d := range out {
		res[i] = convert.FromMember(d)
	}
	return res, nil
}

// AddMember shares a list.
func (a *API) AddMember(ctx context.Context, listID, userID uuid.UUID, role model.Role) (*model.ListMember, error) {
	var out convert.MemberDTO
	req := convert.AddMemberRequest{UserID: userID, Role: string(role)}
	if err := a.do(ctx, http.MethodPost, a.base, listPath(listID, "/members"), req, &out); err != nil {
		return nil, err
	}
	m := convert.FromMember(out)
	return &m, nil
}

// SetRole changes a member's role.
func (a *API) SetRole(ctx context.Context, listID, userID uuid.UUID, role model.Role) error {
	return a.do(ctx, http.MethodPatch, a.base, listPath(listID, "/members/"+userID.String()), convert.RoleRequest{Role: string(role)}, nil)
}

// RemoveMember revokes a membership.
func (a *API) RemoveMember(ctx context.Context, listID, userID uuid.UUID) error {
	return a.do(ctx, http.MethodDelete, a.base, listPath(listID, "/members/"+userID.String()), nil, nil)
}

// ParseDocument uploads a document to the parser and returns its candidates.
func (a *API) ParseDocument(ctx context.Context, filename, contentType string, r io.Reader) (*convert.ParseResponse, error) {
	if a.docBase == "" {
		return nil, errors.New("document parser url not configured")
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.docBase+"/api/documents/parse", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	var out convert.ParseResponse
	if err := a.send(a.hc, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Events streams list changes until ctx ends or the stream breaks.
// fn runs on the reading goroutine.
func (a *API) Events(ctx context.Context, listID uuid.UUID, fn func(model.Change)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.base+listPath(listID, "/events"), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	resp, err := a.stream.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return readError(resp)
	}
	return readEvents(resp.Body, fn)
}

// readEvents parses an SSE stream and calls fn for each "change" event.
func readEvents(r io.Reader, fn func(model.Change)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	var event string
	var data strings.Builder
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if event == "change" && data.Len() > 0 {
				var c model.Change
				if err := json.Unmarshal([]byte(data.String()), &c); err == nil {
					fn(c)
				}
			}
			event = ""
			data.Reset()
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return io.ErrUnexpectedEOF
}
