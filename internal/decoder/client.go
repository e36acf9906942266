// Package decoder provides the typed façade over the decoder's XML-RPC
// control surface. Each method maps to exactly one wire call and coerces
// the string result to its real type. There is no retry or buffering
// here; all resilience lives with the callers.
package decoder

import (
	"context"
	"fmt"
	"strconv"
)

// Wire method names of the decoder control surface. Any compatible
// decoder implementing these is usable.
const (
	methodVersion       = "main.get_version"
	methodRxLength      = "text.get_rx_length"
	methodRxText        = "text.get_rx"
	methodGetMode       = "modem.get_name"
	methodSetMode       = "modem.set_by_name"
	methodGetFrequency  = "main.get_frequency"
	methodSetFrequency  = "main.set_frequency"
	methodSignalQuality = "modem.get_quality"
	methodDetectedSpeed = "cw.get_speed"
	methodAddTxText     = "text.add_tx"
	methodTxLength      = "text.get_tx_length"
	methodAbort         = "main.abort"
	methodStartTx       = "main.tx"
	methodStopTx        = "main.rx"
	methodSetTxSpeed    = "cw.set_speed"
)

// Caller is the transport surface this client needs. Satisfied by
// *xmlrpc.Client; tests substitute their own.
type Caller interface {
	Call(ctx context.Context, method string, params ...interface{}) (string, error)
}

// Client is the typed decoder façade.
type Client struct {
	rpc Caller
}

// NewClient wraps an XML-RPC caller.
func NewClient(rpc Caller) *Client {
	return &Client{rpc: rpc}
}

// Version returns the decoder's identity string. It doubles as the
// liveness probe during connect.
func (c *Client) Version(ctx context.Context) (string, error) {
	return c.rpc.Call(ctx, methodVersion)
}

// RxLength returns the current length of the decoder's receive buffer.
func (c *Client) RxLength(ctx context.Context) (int, error) {
	return c.callInt(ctx, methodRxLength)
}

// RxText reads length bytes of the receive buffer starting at start.
func (c *Client) RxText(ctx context.Context, start, length int) (string, error) {
	return c.rpc.Call(ctx, methodRxText, start, length)
}

// Mode returns the active modem name.
func (c *Client) Mode(ctx context.Context) (string, error) {
	return c.rpc.Call(ctx, methodGetMode)
}

// SetMode selects a modem by name.
func (c *Client) SetMode(ctx context.Context, name string) error {
	_, err := c.rpc.Call(ctx, methodSetMode, name)
	return err
}

// Frequency returns the operating frequency in Hz.
func (c *Client) Frequency(ctx context.Context) (float64, error) {
	return c.callFloat(ctx, methodGetFrequency)
}

// SetFrequency tunes the decoder to hz.
func (c *Client) SetFrequency(ctx context.Context, hz float64) error {
	_, err := c.rpc.Call(ctx, methodSetFrequency, hz)
	return err
}

// SignalQuality returns the decoder's current signal quality metric.
func (c *Client) SignalQuality(ctx context.Context) (float64, error) {
	return c.callFloat(ctx, methodSignalQuality)
}

// DetectedSpeed returns the receive speed in WPM as tracked by the
// decoder. Some decoders report fractional WPM; the fraction carries no
// information for speed matching and is truncated.
func (c *Client) DetectedSpeed(ctx context.Context) (int, error) {
	v, err := c.callFloat(ctx, methodDetectedSpeed)
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

// AddTxText appends text to the transmit buffer.
func (c *Client) AddTxText(ctx context.Context, text string) error {
	_, err := c.rpc.Call(ctx, methodAddTxText, text)
	return err
}

// TxLength returns the current length of the transmit buffer.
func (c *Client) TxLength(ctx context.Context) (int, error) {
	return c.callInt(ctx, methodTxLength)
}

// Abort immediately stops any transmission in progress.
func (c *Client) Abort(ctx context.Context) error {
	_, err := c.rpc.Call(ctx, methodAbort)
	return err
}

// StartTx begins transmitting the transmit buffer.
func (c *Client) StartTx(ctx context.Context) error {
	_, err := c.rpc.Call(ctx, methodStartTx)
	return err
}

// StopTx returns the decoder to receive.
func (c *Client) StopTx(ctx context.Context) error {
	_, err := c.rpc.Call(ctx, methodStopTx)
	return err
}

// SetTxSpeed sets the keying speed in WPM.
func (c *Client) SetTxSpeed(ctx context.Context, wpm int) error {
	_, err := c.rpc.Call(ctx, methodSetTxSpeed, wpm)
	return err
}

func (c *Client) callInt(ctx context.Context, method string) (int, error) {
	raw, err := c.rpc.Call(ctx, method)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("decoder: %s returned %q, expected integer", method, raw)
	}
	return v, nil
}

func (c *Client) callFloat(ctx context.Context, method string) (float64, error) {
	raw, err := c.rpc.Call(ctx, method)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("decoder: %s returned %q, expected number", method, raw)
	}
	return v, nil
}
