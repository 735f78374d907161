package rollup

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"texttools/common"
)

type recorded struct {
	path string
	body map[string]string
}

type fakeRollup struct {
	mu         sync.Mutex
	calls      []recorded
	finish     func(w http.ResponseWriter)
	submitCode int
}

func (f *fakeRollup) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	f.calls = append(f.calls, recorded{path: r.URL.Path, body: body})
	f.mu.Unlock()

	switch r.URL.Path {
	case "/finish":
		f.finish(w)
	case "/notice", "/report":
		code := f.submitCode
		if code == 0 {
			code = http.StatusOK
		}
		w.WriteHeader(code)
		_, _ = w.Write([]byte(`{"index":0}`))
	default:
		http.NotFound(w, r)
	}
}

func newClient(t *testing.T, f *fakeRollup) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", 2*time.Second, time.Second)
}

func TestFinish(t *testing.T) {
	f := &fakeRollup{finish: func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"request_type":"advance_state","data":{"payload":"0x7b7d","metadata":{"input_index":3,"msg_sender":"0xabc"}}}`))
	}}
	c := newClient(t, f)

	req, err := c.Finish(context.Background(), common.StatusReject)
	require.NoError(t, err)
	assert.Equal(t, common.AdvanceState, req.RequestType)
	assert.Equal(t, "0x7b7d", req.Data.Payload)
	require.NotNil(t, req.Data.Metadata)
	assert.Equal(t, uint64(3), req.Data.Metadata.InputIndex)

	require.Len(t, f.calls, 1)
	assert.Equal(t, "/finish", f.calls[0].path)
	assert.Equal(t, "reject", f.calls[0].body["status"])
}

func TestFinish_NoPendingInput(t *testing.T) {
	f := &fakeRollup{finish: func(w http.ResponseWriter) {
		w.WriteHeader(http.StatusAccepted)
	}}
	c := newClient(t, f)

	_, err := c.Finish(context.Background(), common.StatusAccept)
	assert.ErrorIs(t, err, ErrNoPendingInput)
	assert.False(t, common.IsTransportError(err))
}

func TestFinish_TransportErrors(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		f := &fakeRollup{finish: func(w http.ResponseWriter) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}}
		_, err := newClient(t, f).Finish(context.Background(), common.StatusAccept)
		require.Error(t, err)

		var te *common.TransportError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, http.StatusInternalServerError, te.StatusCode)
		assert.Contains(t, te.Error(), "boom")
	})

	t.Run("garbage body", func(t *testing.T) {
		f := &fakeRollup{finish: func(w http.ResponseWriter) {
			_, _ = w.Write([]byte("not json"))
		}}
		_, err := newClient(t, f).Finish(context.Background(), common.StatusAccept)
		assert.True(t, common.IsTransportError(err))
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := NewClient(url, time.Second, time.Second).Finish(context.Background(), common.StatusAccept)
		assert.True(t, common.IsTransportError(err))
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-release
		}))
		defer srv.Close()
		defer close(release)

		_, err := NewClient(srv.URL, 50*time.Millisecond, time.Second).Finish(context.Background(), common.StatusAccept)
		assert.True(t, common.IsTransportError(err))
	})
}

func TestNoticeAndReport(t *testing.T) {
	f := &fakeRollup{}
	c := newClient(t, f)

	require.NoError(t, c.Notice(context.Background(), common.Request{Op: "shout", Text: "HI"}))
	require.NoError(t, c.Report(context.Background(), common.ErrorDetail{Error: "bad input: x"}))

	require.Len(t, f.calls, 2)
	assert.Equal(t, "/notice", f.calls[0].path)
	assert.Equal(t, "/report", f.calls[1].path)

	raw, err := common.DecodeHex(f.calls[0].body["payload"])
	require.NoError(t, err)
	assert.JSONEq(t, `{"op":"shout","text":"HI"}`, string(raw))

	raw, err = common.DecodeHex(f.calls[1].body["payload"])
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"bad input: x"}`, string(raw))
}

func TestSubmit_NonSuccess(t *testing.T) {
	f := &fakeRollup{submitCode: http.StatusBadRequest}
	c := newClient(t, f)

	err := c.Notice(context.Background(), common.ErrorDetail{Error: "x"})
	var te *common.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "/notice", te.Endpoint)
	assert.Equal(t, http.StatusBadRequest, te.StatusCode)
}

func TestSubmit_EncodeFailure(t *testing.T) {
	f := &fakeRollup{}
	c := newClient(t, f)

	err := c.Report(context.Background(), make(chan int))
	require.Error(t, err)
	assert.False(t, common.IsTransportError(err))
	assert.Empty(t, f.calls)
}
