// Package browsertest provides an in-memory page that satisfies
// protocol.Transport, for exercising the engine without a browser.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/assure-cli/internal/browser/protocol"
)

// Element is one node of the fake document, addressed by its exact selector.
type Element struct {
	Selector string
	// Text holds successive textContent reads; the last one repeats.
	Text []string
	// Hidden, when set, is the reason the visibility probe reports.
	Hidden string
	// Blocked, when set, is the reason the clickable probe reports.
	Blocked string
	// StyleHidden makes the computed-style check report false.
	StyleHidden bool
	// StyleErr fails the computed-style check.
	StyleErr error
	// PresentAfter is how many queries miss before the element appears.
	PresentAfter int
	Quad         protocol.Quad
	Value        string
	// Stale makes node operations fail as if the node detached.
	Stale bool

	id      protocol.NodeID
	queries int
	reads   int
}

// ID returns the node id assigned by AddElement.
func (e *Element) ID() protocol.NodeID { return e.id }

// Transport is a scriptable page. Exported fields are read under the lock
// and may be set before the transport is shared.
type Transport struct {
	mu sync.Mutex

	Title      string
	URL        string
	ReadyState string

	// NavigateErr fails Page.navigate; NavigateErrorText is reported as a
	// browser side navigation failure.
	NavigateErr       error
	NavigateErrorText string
	// NoLoad suppresses the load event after navigation.
	NoLoad bool
	// EnableErr fails domain enabling, keyed by "page", "runtime", "dom" or "network".
	EnableErr map[string]error
	// EvalErr fails every Evaluate call.
	EvalErr error

	elements map[string]*Element
	byID     map[protocol.NodeID]*Element
	nextID   protocol.NodeID

	loadSubs    map[int]chan struct{}
	requestSubs map[int]func(protocol.RequestEvent)
	nextSub     int

	navigations []string
	mouse       []protocol.MouseEvent
	keys        []protocol.KeyEvent
	focused     protocol.NodeID
	closed      bool
}

// New returns an empty page at about:blank that is fully loaded.
func New() *Transport {
	return &Transport{
		URL:         "about:blank",
		ReadyState:  "complete",
		elements:    make(map[string]*Element),
		byID:        make(map[protocol.NodeID]*Element),
		loadSubs:    make(map[int]chan struct{}),
		requestSubs: make(map[int]func(protocol.RequestEvent)),
		nextID:      100,
	}
}

// AddElement inserts el into the document and returns it.
func (t *Transport) AddElement(el *Element) *Element {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	el.id = t.nextID
	t.elements[el.Selector] = el
	t.byID[el.id] = el
	return el
}

// Set mutates page state under the lock.
func (t *Transport) Set(fn func(p *Transport)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(t)
}

// Emit delivers a request event to every subscriber.
func (t *Transport) Emit(ev protocol.RequestEvent) {
	t.mu.Lock()
	subs := make([]func(protocol.RequestEvent), 0, len(t.requestSubs))
	for _, fn := range t.requestSubs {
		subs = append(subs, fn)
	}
	t.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

// Navigations lists every URL passed to Navigate.
func (t *Transport) Navigations() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.navigations...)
}

// MouseEvents lists dispatched pointer events.
func (t *Transport) MouseEvents() []protocol.MouseEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]protocol.MouseEvent(nil), t.mouse...)
}

// KeyEvents lists dispatched key events.
func (t *Transport) KeyEvents() []protocol.KeyEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]protocol.KeyEvent(nil), t.keys...)
}

// Typed concatenates the text of every key event.
func (t *Transport) Typed() string {
	var b strings.Builder
	for _, k := range t.KeyEvents() {
		b.WriteString(k.Text)
	}
	return b.String()
}

// Focused returns the node last focused.
func (t *Transport) Focused() protocol.NodeID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.focused
}

// Subscribers reports live load and request subscriptions.
func (t *Transport) Subscribers() (load, requests int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.loadSubs), len(t.requestSubs)
}

// Closed reports whether Close was called.
func (t *Transport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *Transport) enable(domain string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.EnableErr[domain]
}

func (t *Transport) EnablePage(context.Context) error    { return t.enable("page") }
func (t *Transport) EnableRuntime(context.Context) error { return t.enable("runtime") }
func (t *Transport) EnableDOM(context.Context) error     { return t.enable("dom") }
func (t *Transport) EnableNetwork(context.Context) error { return t.enable("network") }

func (t *Transport) Navigate(ctx context.Context, url string) (protocol.NavigateResult, error) {
	if err := ctx.Err(); err != nil {
		return protocol.NavigateResult{}, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.navigations = append(t.navigations, url)
	if t.NavigateErr != nil {
		return protocol.NavigateResult{}, t.NavigateErr
	}
	res := protocol.NavigateResult{FrameID: "frame-1", LoaderID: fmt.Sprintf("loader-%d", len(t.navigations))}
	if t.NavigateErrorText != "" {
		res.ErrorText = t.NavigateErrorText
		return res, nil
	}
	t.URL = url
	if !t.NoLoad {
		for _, ch := range t.loadSubs {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	}
	return res, nil
}

func (t *Transport) SubscribeLoad(ctx context.Context) (<-chan struct{}, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextSub
	t.nextSub++
	ch := make(chan struct{}, 1)
	t.loadSubs[id] = ch
	return ch, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.loadSubs, id)
	}
}

func (t *Transport) SubscribeRequests(ctx context.Context, fn func(protocol.RequestEvent)) func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextSub
	t.nextSub++
	t.requestSubs[id] = fn
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.requestSubs, id)
	}
}

func (t *Transport) Evaluate(ctx context.Context, expression string) (protocol.RemoteValue, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.EvalErr != nil {
		return protocol.RemoteValue{}, t.EvalErr
	}
	switch expression {
	case "document.title":
		return value(t.Title), nil
	case "window.location.href":
		return value(t.URL), nil
	case "document.readyState":
		return value(t.ReadyState), nil
	}
	return protocol.RemoteValue{}, &protocol.EvaluationError{Text: "Uncaught", Description: "unsupported expression: " + expression}
}

func (t *Transport) CallFunctionOn(ctx context.Context, object protocol.ObjectID, function string) (protocol.RemoteValue, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	el, err := t.elementByObject(object)
	if err != nil {
		return protocol.RemoteValue{}, err
	}
	switch {
	case strings.Contains(function, "textContent"):
		if len(el.Text) == 0 {
			return value(""), nil
		}
		i := min(el.reads, len(el.Text)-1)
		el.reads++
		return value(el.Text[i]), nil
	case strings.Contains(function, "elementFromPoint"):
		if el.Hidden != "" {
			return value(probe{Reason: el.Hidden}), nil
		}
		if el.Blocked != "" {
			return value(probe{Reason: el.Blocked}), nil
		}
		return value(probe{OK: true}), nil
	case strings.Contains(function, "scrollIntoView"):
		if el.Hidden != "" {
			return value(probe{Reason: el.Hidden}), nil
		}
		return value(probe{OK: true}), nil
	case strings.Contains(function, "getComputedStyle"):
		if el.StyleErr != nil {
			return protocol.RemoteValue{}, el.StyleErr
		}
		return value(!el.StyleHidden), nil
	case strings.Contains(function, "this.value = ''"):
		el.Value = ""
		return protocol.RemoteValue{Type: "undefined"}, nil
	}
	return protocol.RemoteValue{}, &protocol.EvaluationError{Text: "Uncaught", Description: "unsupported function"}
}

func (t *Transport) GetDocument(context.Context) (protocol.NodeID, error) { return 1, nil }

func (t *Transport) QuerySelector(_ context.Context, root protocol.NodeID, selector string) (protocol.NodeID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if root != 1 {
		return 0, fmt.Errorf("%w: root %d", protocol.ErrStaleNode, root)
	}
	el, ok := t.elements[selector]
	if !ok {
		return 0, nil
	}
	el.queries++
	if el.queries <= el.PresentAfter {
		return 0, nil
	}
	return el.id, nil
}

func (t *Transport) GetContentQuad(_ context.Context, node protocol.NodeID) (protocol.Quad, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	el, err := t.element(node)
	if err != nil {
		return protocol.Quad{}, err
	}
	return el.Quad, nil
}

func (t *Transport) ResolveNode(_ context.Context, node protocol.NodeID) (protocol.ObjectID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.element(node); err != nil {
		return "", err
	}
	return protocol.ObjectID(fmt.Sprintf("object-%d", node)), nil
}

func (t *Transport) Focus(_ context.Context, node protocol.NodeID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.element(node); err != nil {
		return err
	}
	t.focused = node
	return nil
}

func (t *Transport) DispatchMouseEvent(_ context.Context, ev protocol.MouseEvent) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mouse = append(t.mouse, ev)
	return nil
}

func (t *Transport) DispatchKeyEvent(_ context.Context, ev protocol.KeyEvent) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.keys = append(t.keys, ev)
	if el, ok := t.byID[t.focused]; ok && ev.Type == protocol.KeyChar {
		el.Value += ev.Text
	}
	return nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *Transport) element(node protocol.NodeID) (*Element, error) {
	el, ok := t.byID[node]
	if !ok || el.Stale {
		return nil, fmt.Errorf("%w: No node with given id %d", protocol.ErrStaleNode, node)
	}
	return el, nil
}

func (t *Transport) elementByObject(object protocol.ObjectID) (*Element, error) {
	var node protocol.NodeID
	if _, err := fmt.Sscanf(string(object), "object-%d", &node); err != nil {
		return nil, errors.New("unknown remote object " + string(object))
	}
	return t.element(node)
}

type probe struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

func value(v any) protocol.RemoteValue {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	typ := "object"
	switch v.(type) {
	case string:
		typ = "string"
	case bool:
		typ = "boolean"
	}
	return protocol.RemoteValue{Type: typ, Raw: raw}
}
