// Package xmlrpc implements the minimal XML-RPC client used to talk to
// the CW decoder's control endpoint. It covers exactly the subset the
// link needs: one method call per request, scalar parameters, a single
// scalar return value, and fault detection.
package xmlrpc

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const (
	// DefaultTimeout bounds each call when the caller's context carries
	// no tighter deadline.
	DefaultTimeout = 5 * time.Second

	// DefaultMaxResponseBytes caps how much response body we are willing
	// to buffer from the remote.
	DefaultMaxResponseBytes = 1_000_000
)

// Client is a single-endpoint XML-RPC caller. It is safe for use from
// multiple goroutines; the underlying http.Client handles connection
// reuse.
type Client struct {
	endpoint    string
	httpClient  *http.Client
	maxResponse int64
}

// NewClient creates a client for the decoder control endpoint at
// host:port. A non-positive timeout selects DefaultTimeout.
func NewClient(host string, port int, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		endpoint: fmt.Sprintf("http://%s:%d/RPC2", host, port),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxResponse: DefaultMaxResponseBytes,
	}
}

// SetMaxResponseBytes overrides the response size ceiling. Used by tests.
func (c *Client) SetMaxResponseBytes(n int64) {
	c.maxResponse = n
}

// Call issues one methodCall and returns the single result value as a
// string; the caller knows the expected type and coerces it. Supported
// parameter types: string, int, float64, bool, []byte. A fault response
// is returned as *Fault; timeouts satisfy IsTimeout; everything else is
// a plain transport error.
func (c *Client) Call(ctx context.Context, method string, params ...interface{}) (string, error) {
	body, err := encodeRequest(method, params)
	if err != nil {
		return "", fmt.Errorf("xmlrpc: encode %s: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("xmlrpc: %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "text/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("xmlrpc: %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("xmlrpc: %s: unexpected HTTP status %d", method, resp.StatusCode)
	}

	// Read one byte past the ceiling so we can tell "exactly at the
	// limit" apart from "over it".
	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponse+1))
	if err != nil {
		return "", fmt.Errorf("xmlrpc: %s: read response: %w", method, err)
	}
	if int64(len(raw)) > c.maxResponse {
		return "", fmt.Errorf("xmlrpc: %s: %w", method, ErrResponseTooLarge)
	}

	value, err := parseResponse(raw)
	if err != nil {
		return "", fmt.Errorf("xmlrpc: %s: %w", method, err)
	}
	return value, nil
}

func encodeRequest(method string, params []interface{}) ([]byte, error) {
	var b bytes.Buffer
	b.WriteString(xml.Header)
	b.WriteString("<methodCall><methodName>")
	if err := xml.EscapeText(&b, []byte(method)); err != nil {
		return nil, err
	}
	b.WriteString("</methodName><params>")
	for _, p := range params {
		b.WriteString("<param><value>")
		switch v := p.(type) {
		case string:
			b.WriteString("<string>")
			if err := xml.EscapeText(&b, []byte(v)); err != nil {
				return nil, err
			}
			b.WriteString("</string>")
		case int:
			b.WriteString("<i4>")
			b.WriteString(strconv.Itoa(v))
			b.WriteString("</i4>")
		case float64:
			b.WriteString("<double>")
			b.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
			b.WriteString("</double>")
		case bool:
			if v {
				b.WriteString("<boolean>1</boolean>")
			} else {
				b.WriteString("<boolean>0</boolean>")
			}
		case []byte:
			b.WriteString("<base64>")
			b.WriteString(base64.StdEncoding.EncodeToString(v))
			b.WriteString("</base64>")
		default:
			return nil, fmt.Errorf("unsupported parameter type %T", p)
		}
		b.WriteString("</value></param>")
	}
	b.WriteString("</params></methodCall>")
	return b.Bytes(), nil
}

// rpcValue accepts both the typed wrapper form and a bare value. Typed
// fields win over chardata so indentation around a wrapper never leaks
// into the result.
type rpcValue struct {
	String   *string     `xml:"string"`
	Int      *string     `xml:"int"`
	I4       *string     `xml:"i4"`
	Double   *string     `xml:"double"`
	Boolean  *string     `xml:"boolean"`
	Base64   *string     `xml:"base64"`
	Members  []rpcMember `xml:"struct>member"`
	Chardata string      `xml:",chardata"`
}

type rpcMember struct {
	Name  string   `xml:"name"`
	Value rpcValue `xml:"value"`
}

type methodResponse struct {
	XMLName xml.Name   `xml:"methodResponse"`
	Params  []rpcValue `xml:"params>param>value"`
	Fault   *rpcValue  `xml:"fault>value"`
}

func parseResponse(raw []byte) (string, error) {
	var mr methodResponse
	if err := xml.Unmarshal(raw, &mr); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}

	if mr.Fault != nil {
		return "", faultFromValue(mr.Fault)
	}
	if len(mr.Params) == 0 {
		// A void response; fldigi-style servers return these for set
		// operations.
		return "", nil
	}
	return flattenValue(&mr.Params[0])
}

func flattenValue(v *rpcValue) (string, error) {
	switch {
	case v.String != nil:
		return *v.String, nil
	case v.Int != nil:
		return *v.Int, nil
	case v.I4 != nil:
		return *v.I4, nil
	case v.Double != nil:
		return *v.Double, nil
	case v.Boolean != nil:
		return *v.Boolean, nil
	case v.Base64 != nil:
		decoded, err := base64.StdEncoding.DecodeString(*v.Base64)
		if err != nil {
			return "", fmt.Errorf("parse base64 value: %w", err)
		}
		return string(decoded), nil
	default:
		return v.Chardata, nil
	}
}

func faultFromValue(v *rpcValue) error {
	f := &Fault{}
	for _, m := range v.Members {
		switch m.Name {
		case "faultCode":
			code, err := flattenValue(&m.Value)
			if err == nil {
				f.Code, _ = strconv.Atoi(code)
			}
		case "faultString":
			msg, err := flattenValue(&m.Value)
			if err == nil {
				f.Message = msg
			}
		}
	}
	if f.Message == "" {
		f.Message = "unspecified fault"
	}
	return f
}
