// Package coordinator implements a development stand-in for the rollup
// node: it queues inputs submitted over a REST API and hands them to a
// single DApp worker through /finish, collecting notices and reports.
package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"texttools/common"
	"texttools/logging"
	"texttools/storage"
)

var (
	// ErrNotProcessing is returned for a notice or report with no input in flight.
	ErrNotProcessing = errors.New("no input is being processed")

	// ErrInvalidStatus is returned by Finish for anything but accept/reject.
	ErrInvalidStatus = errors.New("invalid status")
)

// ZeroAddress is the default msg_sender attached to advance inputs.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// Options configures a Node.
type Options struct {
	// LongPoll is how long /finish waits for an input before answering 202.
	LongPoll time.Duration
	// Retention is how long finished inputs stay in memory.
	Retention time.Duration
	// MsgSender is reported in advance metadata.
	MsgSender string
}

// DefaultOptions returns the options used by the coordinator binary.
func DefaultOptions() Options {
	return Options{
		LongPoll:  10 * time.Second,
		Retention: time.Hour,
		MsgSender: ZeroAddress,
	}
}

// Node holds the coordinator state.
type Node struct {
	opts   Options
	store  storage.Store
	logger *zap.Logger

	mu        sync.Mutex
	inputs    map[int]*storage.InputRecord
	queue     []int
	current   *storage.InputRecord
	nextIndex int
	// wake is closed and replaced whenever an input is queued.
	wake chan struct{}
	// done holds one channel per unfinished input, closed on its verdict.
	done map[int]chan struct{}
}

// NewNode creates a Node. store may be nil (memory only).
func NewNode(opts Options, store storage.Store, logger *zap.Logger) *Node {
	if opts.MsgSender == "" {
		opts.MsgSender = ZeroAddress
	}
	return &Node{
		opts:   opts,
		store:  store,
		logger: logging.OrNop(logger).Named("coordinator"),
		inputs: make(map[int]*storage.InputRecord),
		wake:   make(chan struct{}),
		done:   make(map[int]chan struct{}),
	}
}

// Submit queues an input. payload must be 0x-prefixed hex.
func (n *Node) Submit(ctx context.Context, requestType common.RequestType, payload string) (*storage.InputRecord, error) {
	if _, err := common.DecodeHex(payload); err != nil {
		return nil, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	record := &storage.InputRecord{
		ID:          uuid.NewString(),
		Index:       n.nextIndex,
		RequestType: requestType,
		Payload:     payload,
		Status:      storage.InputPending,
		CreatedAt:   time.Now().UTC(),
	}
	n.nextIndex++

	n.inputs[record.Index] = record
	n.queue = append(n.queue, record.Index)
	n.done[record.Index] = make(chan struct{})
	n.persist(ctx, record)

	close(n.wake)
	n.wake = make(chan struct{})

	n.logger.Info("Input queued",
		zap.Int("index", record.Index),
		zap.String("request_type", string(requestType)))
	return cloneRecord(record), nil
}

// Finish records status for the input in flight, then waits up to the
// long-poll window for the next one. It returns nil when nothing arrived.
func (n *Node) Finish(ctx context.Context, status common.Status) (*common.RollupRequest, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	n.mu.Lock()
	n.finishCurrent(ctx, status)
	n.mu.Unlock()

	timer := time.NewTimer(n.opts.LongPoll)
	defer timer.Stop()

	for {
		n.mu.Lock()
		if req := n.startNext(ctx); req != nil {
			n.mu.Unlock()
			return req, nil
		}
		wake := n.wake
		n.mu.Unlock()

		select {
		case <-wake:
		case <-timer.C:
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// finishCurrent must be called with n.mu held.
func (n *Node) finishCurrent(ctx context.Context, status common.Status) {
	rec := n.current
	if rec == nil {
		return
	}
	n.current = nil

	now := time.Now().UTC()
	rec.FinishedAt = &now
	if status == common.StatusAccept {
		rec.Status = storage.InputAccepted
	} else {
		rec.Status = storage.InputRejected
	}
	n.persist(ctx, rec)

	if ch, ok := n.done[rec.Index]; ok {
		close(ch)
		delete(n.done, rec.Index)
	}

	n.logger.Info("Input finished",
		zap.Int("index", rec.Index),
		zap.String("status", string(rec.Status)),
		zap.Int("notices", len(rec.Notices)),
		zap.Int("reports", len(rec.Reports)))
}

// startNext must be called with n.mu held.
func (n *Node) startNext(ctx context.Context) *common.RollupRequest {
	if len(n.queue) == 0 {
		return nil
	}
	index := n.queue[0]
	n.queue = n.queue[1:]

	rec := n.inputs[index]
	rec.Status = storage.InputProcessing
	n.current = rec
	n.persist(ctx, rec)

	req := &common.RollupRequest{
		RequestType: rec.RequestType,
		Data:        common.RequestData{Payload: rec.Payload},
	}
	if rec.RequestType == common.AdvanceState {
		req.Data.Metadata = &common.Metadata{
			MsgSender:   n.opts.MsgSender,
			InputIndex:  uint64(rec.Index),
			BlockNumber: uint64(rec.Index) + 1,
			Timestamp:   rec.CreatedAt.Unix(),
		}
	}
	return req
}

// AddNotice attaches a notice to the input in flight and returns its
// position among that input's notices.
func (n *Node) AddNotice(ctx context.Context, payload string) (int, error) {
	return n.addOutput(ctx, payload, true)
}

// AddReport attaches a report to the input in flight.
func (n *Node) AddReport(ctx context.Context, payload string) error {
	_, err := n.addOutput(ctx, payload, false)
	return err
}

func (n *Node) addOutput(ctx context.Context, payload string, notice bool) (int, error) {
	raw, err := common.DecodeHex(payload)
	if err != nil {
		return 0, err
	}
	out := storage.Output{Payload: payload}
	if json.Valid(raw) {
		out.JSON = json.RawMessage(raw)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	rec := n.current
	if rec == nil {
		return 0, ErrNotProcessing
	}

	var index int
	if notice {
		index = len(rec.Notices)
		rec.Notices = append(rec.Notices, out)
	} else {
		index = len(rec.Reports)
		rec.Reports = append(rec.Reports, out)
	}
	n.persist(ctx, rec)
	return index, nil
}

// Wait blocks until the input at index has a verdict, then returns it.
func (n *Node) Wait(ctx context.Context, index int) (*storage.InputRecord, error) {
	n.mu.Lock()
	ch, pending := n.done[index]
	rec, ok := n.inputs[index]
	n.mu.Unlock()

	if !ok {
		return nil, storage.ErrNotFound
	}
	if pending {
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	return cloneRecord(rec), nil
}

// Get returns the record at index, falling back to the store for inputs
// already pruned from memory.
func (n *Node) Get(ctx context.Context, index int) (*storage.InputRecord, error) {
	n.mu.Lock()
	rec, ok := n.inputs[index]
	if ok {
		defer n.mu.Unlock()
		return cloneRecord(rec), nil
	}
	n.mu.Unlock()

	if n.store == nil {
		return nil, storage.ErrNotFound
	}
	return n.store.LoadInput(ctx, index)
}

// List returns the in-memory records ordered by index.
func (n *Node) List() []*storage.InputRecord {
	n.mu.Lock()
	defer n.mu.Unlock()

	records := make([]*storage.InputRecord, 0, len(n.inputs))
	for _, rec := range n.inputs {
		records = append(records, cloneRecord(rec))
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Index < records[j].Index })
	return records
}

// Restore loads records from the store. Inputs that were pending or in
// flight when the previous process stopped are queued again.
func (n *Node) Restore(ctx context.Context) error {
	if n.store == nil {
		return nil
	}

	records, err := n.store.RestoreAllInputs(ctx)
	if err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	indexes := make([]int, 0, len(records))
	for index := range records {
		indexes = append(indexes, index)
	}
	sort.Ints(indexes)

	requeued := 0
	for _, index := range indexes {
		rec := records[index]
		n.inputs[index] = rec
		if index >= n.nextIndex {
			n.nextIndex = index + 1
		}
		if !rec.Status.Finished() {
			rec.Status = storage.InputPending
			rec.Notices, rec.Reports = nil, nil
			n.queue = append(n.queue, index)
			n.done[index] = make(chan struct{})
			requeued++
		}
	}

	n.logger.Info("State restored",
		zap.Int("inputs", len(records)),
		zap.Int("requeued", requeued))
	return nil
}

// Prune drops finished inputs older than the retention from memory.
func (n *Node) Prune(now time.Time) int {
	n.mu.Lock()
	defer n.mu.Unlock()

	pruned := 0
	for index, rec := range n.inputs {
		if rec.FinishedAt != nil && now.Sub(*rec.FinishedAt) > n.opts.Retention {
			delete(n.inputs, index)
			pruned++
		}
	}
	if pruned > 0 {
		n.logger.Info("Pruned finished inputs", zap.Int("count", pruned))
	}
	return pruned
}

// PruneLoop calls Prune every interval until ctx is done.
func (n *Node) PruneLoop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			n.Prune(now)
		}
	}
}

// persist must be called with n.mu held. Storage failures are logged; the
// in-memory state stays authoritative.
func (n *Node) persist(ctx context.Context, rec *storage.InputRecord) {
	if n.store == nil {
		return
	}
	if err := n.store.SaveInput(ctx, rec); err != nil {
		n.logger.Warn("Failed to persist input", zap.Int("index", rec.Index), zap.Error(err))
	}
}

func cloneRecord(rec *storage.InputRecord) *storage.InputRecord {
	c := *rec
	c.Notices = make([]storage.Output, len(rec.Notices))
	copy(c.Notices, rec.Notices)
	c.Reports = make([]storage.Output, len(rec.Reports))
	copy(c.Reports, rec.Reports)
	return &c
}
