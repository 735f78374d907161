package dapp

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"go.uber.org/goleak"

	"texttools/common"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type call struct {
	kind string // "notice" or "report"
	obj  interface{}
}

// recordingReporter stores every outcome it is asked to deliver and can be
// told to fail notices and/or reports.
type recordingReporter struct {
	mu        sync.Mutex
	calls     []call
	noticeErr error
	reportErr error
}

func (r *recordingReporter) Notice(_ context.Context, obj interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{kind: "notice", obj: obj})
	return r.noticeErr
}

func (r *recordingReporter) Report(_ context.Context, obj interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{kind: "report", obj: obj})
	return r.reportErr
}

func (r *recordingReporter) snapshot() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]call(nil), r.calls...)
}

// asJSON renders an outcome the way it would cross the wire.
func asJSON(t *testing.T, obj interface{}) string {
	t.Helper()
	b, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}

func advance(payload string) *common.RollupRequest {
	return &common.RollupRequest{
		RequestType: common.AdvanceState,
		Data:        common.RequestData{Payload: payload},
	}
}

func inspect(payload string) *common.RollupRequest {
	return &common.RollupRequest{
		RequestType: common.InspectState,
		Data:        common.RequestData{Payload: payload},
	}
}

func hexJSON(s string) string {
	return common.EncodeHex([]byte(s))
}
