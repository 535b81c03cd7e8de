package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/grocerly/internal/convert"
	"github.com/and161185/grocerly/internal/model"
)

// Pending is one queued write waiting for connectivity.
type Pending struct {
	ListID   uuid.UUID         `json:"list_id"`
	Op       convert.SyncOpDTO `json:"op"`
	QueuedAt time.Time         `json:"queued_at"`

	sent bool // handed to Take and not yet acked or released
}

// Queue is a FIFO of offline writes persisted to a JSON file.
// Every mutation rewrites the file so the queue survives restarts.
type Queue struct {
	mu   sync.Mutex
	path string
	ops  []Pending
}

// OpenQueue loads the queue at path. A missing file is an empty queue.
func OpenQueue(path string) (*Queue, error) {
	q := &Queue{path: path}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return q, nil
	}
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return q, nil
	}
	if err := json.Unmarshal(b, &q.ops); err != nil {
		return nil, fmt.Errorf("queue %s: %w", path, err)
	}
	return q, nil
}

// Push appends op for listID. A toggle directly following a queued toggle
// of the same item cancels it instead.
func (q *Queue) Push(listID uuid.UUID, op model.SyncOp) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if op.Kind == model.OpToggle {
		for i := len(q.ops) - 1; i >= 0; i-- {
			p := q.ops[i]
			if p.ListID != listID || p.Op.ItemID != op.ItemID {
				continue
			}
			if !p.sent && p.Op.Op == string(model.OpToggle) {
				q.ops = append(q.ops[:i], q.ops[i+1:]...)
				return q.save()
			}
			break
		}
	}
	q.ops = append(q.ops, Pending{ListID: listID, Op: convert.ToSyncOp(op), QueuedAt: time.Now().UTC()})
	return q.save()
}

// ForList returns the queued ops of listID in FIFO order.
func (q *Queue) ForList(listID uuid.UUID) []model.SyncOp {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []model.SyncOp
	for _, p := range q.ops {
		if p.ListID == listID {
			out = append(out, convert.FromSyncOp(p.Op))
		}
	}
	return out
}

// Take marks the queued ops of listID as in flight and returns them.
// In-flight ops are never cancelled by Push. Follow with Ack or Release.
func (q *Queue) Take(listID uuid.UUID) []model.SyncOp {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []model.SyncOp
	for i := range q.ops {
		if q.ops[i].ListID == listID && !q.ops[i].sent {
			q.ops[i].sent = true
			out = append(out, convert.FromSyncOp(q.ops[i].Op))
		}
	}
	return out
}

// Ack drops the in-flight ops of listID once the server has answered them.
func (q *Queue) Ack(listID uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.ops[:0]
	for _, p := range q.ops {
		if p.ListID == listID && p.sent {
			continue
		}
		kept = append(kept, p)
	}
	q.ops = kept
	return q.save()
}

// Release returns the in-flight ops of listID to the queue after a failed replay.
func (q *Queue) Release(listID uuid.UUID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.ops {
		if q.ops[i].ListID == listID {
			q.ops[i].sent = false
		}
	}
}

// Len is the total number of queued ops.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

// Lists returns the ids of lists with queued ops, first-queued first.
func (q *Queue) Lists() []uuid.UUID {
	q.mu.Lock()
	defer q.mu.Unlock()
	seen := map[uuid.UUID]bool{}
	var out []uuid.UUID
	for _, p := range q.ops {
		if !seen[p.ListID] {
			seen[p.ListID] = true
			out = append(out, p.ListID)
		}
	}
	return out
}

// Pending reports whether itemID has a queued op.
func (q *Queue) Pending(itemID uuid.UUID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, p := range q.ops {
		if p.Op.ItemID == itemID {
			return true
		}
	}
	return false
}

func (q *Queue) save() error {
	if q.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(q.path), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(q.ops, "", "  ")
	if err != nil {
		return err
	}
	tmp := q.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, q.path)
}
