// Package protocol exposes the slice of the Chrome DevTools Protocol the
// automation engine uses, one narrow interface per domain.
package protocol

import "context"

// Page covers navigation and the page lifecycle.
type Page interface {
	EnablePage(ctx context.Context) error
	Navigate(ctx context.Context, url string) (NavigateResult, error)
	// SubscribeLoad delivers one value per Page.loadEventFired until the
	// returned function is called or ctx is done.
	SubscribeLoad(ctx context.Context) (<-chan struct{}, func())
}

// Runtime covers script evaluation.
type Runtime interface {
	EnableRuntime(ctx context.Context) error
	Evaluate(ctx context.Context, expression string) (RemoteValue, error)
	// CallFunctionOn invokes function with this bound to the object.
	CallFunctionOn(ctx context.Context, object ObjectID, function string) (RemoteValue, error)
}

// DOM covers node lookup and geometry.
type DOM interface {
	EnableDOM(ctx context.Context) error
	GetDocument(ctx context.Context) (NodeID, error)
	// QuerySelector returns 0 when nothing matches.
	QuerySelector(ctx context.Context, root NodeID, selector string) (NodeID, error)
	GetContentQuad(ctx context.Context, node NodeID) (Quad, error)
	ResolveNode(ctx context.Context, node NodeID) (ObjectID, error)
	Focus(ctx context.Context, node NodeID) error
}

// Input covers synthetic pointer and keyboard events.
type Input interface {
	DispatchMouseEvent(ctx context.Context, ev MouseEvent) error
	DispatchKeyEvent(ctx context.Context, ev KeyEvent) error
}

// Network covers request lifecycle events.
type Network interface {
	EnableNetwork(ctx context.Context) error
	// SubscribeRequests calls fn for each request transition until the
	// returned function is called or ctx is done. fn must not block.
	SubscribeRequests(ctx context.Context, fn func(RequestEvent)) func()
}

// Transport is a live channel to one browser page.
type Transport interface {
	Page
	Runtime
	DOM
	Input
	Network
	Close() error
}
