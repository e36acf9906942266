package decoder

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCaller records every wire call and serves canned results per
// method name.
type fakeCaller struct {
	calls   []recordedCall
	results map[string]string
	errs    map[string]error
}

type recordedCall struct {
	method string
	params []interface{}
}

func (f *fakeCaller) Call(_ context.Context, method string, params ...interface{}) (string, error) {
	f.calls = append(f.calls, recordedCall{method: method, params: params})
	if err, ok := f.errs[method]; ok {
		return "", err
	}
	return f.results[method], nil
}

func newFake() *fakeCaller {
	return &fakeCaller{results: map[string]string{}, errs: map[string]error{}}
}

func TestRxLength(t *testing.T) {
	f := newFake()
	f.results["text.get_rx_length"] = "1234"
	c := NewClient(f)

	n, err := c.RxLength(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1234, n)
}

func TestRxLengthRejectsGarbage(t *testing.T) {
	f := newFake()
	f.results["text.get_rx_length"] = "not a number"
	c := NewClient(f)

	_, err := c.RxLength(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected integer")
}

func TestRxTextPassesOffsetAndLength(t *testing.T) {
	f := newFake()
	f.results["text.get_rx"] = "CQ CQ"
	c := NewClient(f)

	text, err := c.RxText(context.Background(), 100, 5)
	require.NoError(t, err)
	assert.Equal(t, "CQ CQ", text)
	require.Len(t, f.calls, 1)
	assert.Equal(t, []interface{}{100, 5}, f.calls[0].params)
}

func TestFrequencyParsesFloat(t *testing.T) {
	f := newFake()
	f.results["main.get_frequency"] = "7030.25"
	c := NewClient(f)

	hz, err := c.Frequency(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7030.25, hz)
}

func TestDetectedSpeedTruncatesFraction(t *testing.T) {
	f := newFake()
	f.results["cw.get_speed"] = "23.8"
	c := NewClient(f)

	wpm, err := c.DetectedSpeed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 23, wpm)
}

func TestSignalQuality(t *testing.T) {
	f := newFake()
	f.results["modem.get_quality"] = "0.92"
	c := NewClient(f)

	q, err := c.SignalQuality(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.92, q)
}

func TestSetTxSpeedSendsInteger(t *testing.T) {
	f := newFake()
	c := NewClient(f)

	require.NoError(t, c.SetTxSpeed(context.Background(), 22))
	require.Len(t, f.calls, 1)
	assert.Equal(t, "cw.set_speed", f.calls[0].method)
	assert.Equal(t, []interface{}{22}, f.calls[0].params)
}

func TestEachMethodIssuesExactlyOneCall(t *testing.T) {
	f := newFake()
	f.results["text.get_rx_length"] = "0"
	f.results["text.get_tx_length"] = "0"
	f.results["main.get_frequency"] = "0"
	f.results["modem.get_quality"] = "0"
	f.results["cw.get_speed"] = "0"
	c := NewClient(f)
	ctx := context.Background()

	_, _ = c.Version(ctx)
	_, _ = c.RxLength(ctx)
	_, _ = c.RxText(ctx, 0, 0)
	_, _ = c.Mode(ctx)
	_ = c.SetMode(ctx, "CW")
	_, _ = c.Frequency(ctx)
	_ = c.SetFrequency(ctx, 7030)
	_, _ = c.SignalQuality(ctx)
	_, _ = c.DetectedSpeed(ctx)
	_ = c.AddTxText(ctx, "TEST")
	_, _ = c.TxLength(ctx)
	_ = c.Abort(ctx)
	_ = c.StartTx(ctx)
	_ = c.StopTx(ctx)
	_ = c.SetTxSpeed(ctx, 18)

	assert.Len(t, f.calls, 15, "one wire call per semantic operation")
}

func TestTransportErrorsPropagate(t *testing.T) {
	f := newFake()
	f.errs["main.get_version"] = fmt.Errorf("connection refused")
	c := NewClient(f)

	_, err := c.Version(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
