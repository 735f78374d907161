package dapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"texttools/common"
	"texttools/logging"
	"texttools/textops"
)

// Reporter delivers outcomes to the coordinator. A notice commits state;
// a report is diagnostic only. Errors are returned as is so the loop can
// tell transport failures apart.
type Reporter interface {
	Notice(ctx context.Context, obj interface{}) error
	Report(ctx context.Context, obj interface{}) error
}

// Example is the sample request advertised by inspect.
var Example = common.Request{Op: "stats", Text: "Hello, Cartesi!"}

// Dispatcher turns one work item into exactly one notice or report and
// a status.
type Dispatcher struct {
	reporter Reporter
	registry *textops.Registry
	logger   *zap.Logger
}

// NewDispatcher creates a Dispatcher. A nil registry means textops.Default().
func NewDispatcher(reporter Reporter, registry *textops.Registry, logger *zap.Logger) *Dispatcher {
	if registry == nil {
		registry = textops.Default()
	}
	return &Dispatcher{
		reporter: reporter,
		registry: registry,
		logger:   logging.OrNop(logger).Named("dispatch"),
	}
}

// Dispatch routes a work item by request type. The returned status is the
// verdict for the item even when err is non-nil; err is only set when the
// outcome could not be delivered.
func (d *Dispatcher) Dispatch(ctx context.Context, req *common.RollupRequest) (common.Status, error) {
	switch req.RequestType {
	case common.AdvanceState:
		data, err := common.DecodeHex(req.Data.Payload)
		if err != nil {
			return common.StatusReject, d.report(ctx, badInput(err))
		}
		return d.HandleAdvance(ctx, data)
	case common.InspectState:
		// Inspect ignores its payload, including undecodable hex.
		data, _ := common.DecodeHex(req.Data.Payload)
		return d.HandleInspect(ctx, data)
	default:
		return common.StatusReject, d.report(ctx, fmt.Sprintf("unknown request_type: %s", req.RequestType))
	}
}

// HandleAdvance decodes data as a Request, runs the named operation and
// emits its result as a notice.
//
//	malformed input      -> report "bad input: ..."      reject
//	unknown operation    -> report "unsupported op: ..." accept
//	operation succeeded  -> notice(result)               accept
func (d *Dispatcher) HandleAdvance(ctx context.Context, data []byte) (common.Status, error) {
	op, rawText, err := decodeFields(data)
	if err != nil {
		d.logger.Debug("Rejecting malformed input", zap.Error(err))
		return common.StatusReject, d.report(ctx, badInput(err))
	}

	fn, err := d.registry.Lookup(op)
	if err != nil {
		d.logger.Debug("Unsupported operation", zap.String("op", op))
		return common.StatusAccept, d.report(ctx, err.Error())
	}

	text, err := textField(rawText)
	if err != nil {
		return common.StatusReject, d.report(ctx, badInput(err))
	}

	result, err := invoke(fn, text)
	if err != nil {
		return common.StatusReject, d.report(ctx, badInput(err))
	}

	if err := d.reporter.Notice(ctx, result); err != nil {
		d.logger.Warn("Notice failed", zap.String("op", op), zap.Error(err))
		return common.StatusReject, d.report(ctx, badInput(err))
	}
	return common.StatusAccept, nil
}

// HandleInspect ignores its payload and always emits the same description
// of the supported operations.
func (d *Dispatcher) HandleInspect(ctx context.Context, _ []byte) (common.Status, error) {
	if err := d.reporter.Notice(ctx, d.InspectInfo()); err != nil {
		d.logger.Warn("Inspect notice failed", zap.Error(err))
		return common.StatusReject, d.report(ctx, fmt.Sprintf("inspect failed: %v", err))
	}
	return common.StatusAccept, nil
}

// InspectInfo describes the supported operations and request shape.
func (d *Dispatcher) InspectInfo() common.InspectInfo {
	names := d.registry.Names()
	return common.InspectInfo{
		Ops:     names,
		Format:  common.RequestFormat{Op: strings.Join(names, "|"), Text: "string"},
		Example: Example,
	}
}

func (d *Dispatcher) report(ctx context.Context, msg string) error {
	return d.reporter.Report(ctx, common.ErrorDetail{Error: msg})
}

func badInput(err error) string {
	return "bad input: " + err.Error()
}

// invoke runs fn, turning a panic into an error.
func invoke(fn textops.Func, text string) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &common.UnexpectedError{Err: fmt.Errorf("%v", r)}
		}
	}()
	return fn(text), nil
}

var jsonNull = []byte("null")

// DecodeRequest parses UTF-8 JSON into a Request. The payload must be a
// JSON object; "text" must be a string when present and defaults to "".
// A non-string "op" is kept as its JSON text so it surfaces as an
// unsupported operation.
func DecodeRequest(data []byte) (common.Request, error) {
	op, rawText, err := decodeFields(data)
	if err != nil {
		return common.Request{}, err
	}
	text, err := textField(rawText)
	if err != nil {
		return common.Request{}, err
	}
	return common.Request{Op: op, Text: text}, nil
}

// decodeFields checks the envelope only. "text" is left raw: its type
// matters only once the operation is known.
func decodeFields(data []byte) (op string, text json.RawMessage, err error) {
	if !utf8.Valid(data) {
		return "", nil, &common.DecodeError{Layer: common.LayerUTF8, Err: errors.New("invalid UTF-8 sequence")}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return "", nil, &common.DecodeError{Layer: common.LayerJSON, Err: err}
	}
	if fields == nil {
		return "", nil, &common.DecodeError{Layer: common.LayerJSON, Err: errors.New("expected a JSON object, got null")}
	}

	if raw, ok := fields["op"]; ok {
		if err := json.Unmarshal(raw, &op); err != nil || bytes.Equal(raw, jsonNull) {
			op = string(raw)
		}
	}
	return op, fields["text"], nil
}

func textField(raw json.RawMessage) (string, error) {
	if raw == nil {
		return "", nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil || bytes.Equal(raw, jsonNull) {
		return "", &common.DecodeError{Layer: common.LayerJSON, Err: errors.New(`field "text" must be a string`)}
	}
	return text, nil
}
