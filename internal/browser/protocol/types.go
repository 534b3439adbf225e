package protocol

import (
	"errors"
	"fmt"
	"strings"

	json "github.com/json-iterator/go"
)

// NodeID identifies a DOM node within the current document. Zero means no node.
type NodeID int64

// ObjectID identifies a remote JavaScript object.
type ObjectID string

// Quad is four x,y corner pairs in clockwise order from the top left.
type Quad [8]float64

// Center returns the midpoint of the diagonal between the first and third
// corners.
func (q Quad) Center() (x, y float64) {
	return (q[0] + q[4]) / 2, (q[1] + q[5]) / 2
}

// NavigateResult is the browser's reply to a navigation request.
type NavigateResult struct {
	FrameID  string
	LoaderID string
	// ErrorText is set when the navigation failed, for example on DNS errors.
	ErrorText string
}

// Mouse event types and buttons.
const (
	MousePressed  = "mousePressed"
	MouseReleased = "mouseReleased"
	MouseMoved    = "mouseMoved"

	ButtonLeft = "left"
)

// MouseEvent is a synthetic pointer event in viewport coordinates.
type MouseEvent struct {
	Type       string
	X, Y       float64
	Button     string
	ClickCount int
}

// KeyChar is the key event type that inserts text.
const KeyChar = "char"

// KeyEvent is a synthetic keyboard event.
type KeyEvent struct {
	Type string
	Text string
}

// RequestPhase is a point in a network request's lifecycle.
type RequestPhase int

const (
	RequestStarted RequestPhase = iota
	RequestFinished
	RequestFailed
)

func (p RequestPhase) String() string {
	switch p {
	case RequestStarted:
		return "started"
	case RequestFinished:
		return "finished"
	case RequestFailed:
		return "failed"
	default:
		return fmt.Sprintf("RequestPhase(%d)", int(p))
	}
}

// RequestEvent reports a network request lifecycle transition.
type RequestEvent struct {
	RequestID string
	Phase     RequestPhase
	URL       string
}

// ErrStaleNode is returned when a node id no longer refers to a live node.
var ErrStaleNode = errors.New("node is stale or detached")

// staleMessages are the error texts the browser uses for unknown node ids.
var staleMessages = []string{
	"No node with given id",
	"Could not find node with given id",
	"Node with given id does not belong to the document",
	"Cannot find context with specified id",
}

// classify maps protocol errors onto package errors.
func classify(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	for _, s := range staleMessages {
		if strings.Contains(msg, s) {
			return fmt.Errorf("%w: %v", ErrStaleNode, err)
		}
	}
	return err
}

// EvaluationError is a JavaScript exception thrown in page context.
type EvaluationError struct {
	Text        string
	Description string
}

func (e *EvaluationError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("javascript exception: %s: %s", e.Text, e.Description)
	}
	return "javascript exception: " + e.Text
}

// RemoteValue is a JavaScript value returned by value from the page.
type RemoteValue struct {
	// Type is the JavaScript type name, such as "string" or "undefined".
	Type string
	Raw  []byte
}

// IsUndefined reports whether the value is undefined or null.
func (v RemoteValue) IsUndefined() bool {
	return v.Type == "undefined" || len(v.Raw) == 0 || string(v.Raw) == "null"
}

// AsString decodes a string value. Undefined and null read as "".
func (v RemoteValue) AsString() (string, error) {
	if v.IsUndefined() {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(v.Raw, &s); err != nil {
		return "", fmt.Errorf("expected string result, got %s: %w", v.Type, err)
	}
	return s, nil
}

// AsBool decodes a boolean value. Undefined and null read as false.
func (v RemoteValue) AsBool() (bool, error) {
	if v.IsUndefined() {
		return false, nil
	}
	var b bool
	if err := json.Unmarshal(v.Raw, &b); err != nil {
		return false, fmt.Errorf("expected boolean result, got %s: %w", v.Type, err)
	}
	return b, nil
}

// Decode unmarshals the value into dst.
func (v RemoteValue) Decode(dst any) error {
	if v.IsUndefined() {
		return fmt.Errorf("cannot decode %s result", v.Type)
	}
	if err := json.Unmarshal(v.Raw, dst); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", v.Type, err)
	}
	return nil
}
