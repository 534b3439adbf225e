// internal/browser/protocol/client.go
package protocol

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Client implements Transport over a chromedp connection to a remote browser.
type Client struct {
	// ctx is the chromedp target context. Every call derives from it.
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	logger      *zap.Logger
	closeOnce   sync.Once
	closeErr    error
}

var _ Transport = (*Client)(nil)

// Dial connects to the browser debugging endpoint at wsURL and attaches to a
// new page target. A ws://host:port URL without a path is resolved through
// the /json/version endpoint. The connection lives until Close or until
// parent is canceled.
func Dial(parent context.Context, wsURL string, logger *zap.Logger) (*Client, error) {
	log := logger.Named("cdp")
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(parent, wsURL)

	sugar := log.Sugar()
	ctx, cancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(sugar.Errorf),
		chromedp.WithLogf(sugar.Debugf),
	)

	// The first Run connects and creates the target. It must receive the
	// target context itself; a derived context would tie the connection to
	// its lifetime.
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("failed to attach to %s: %w", wsURL, err)
	}

	return &Client{ctx: ctx, cancel: cancel, allocCancel: allocCancel, logger: log}, nil
}

// run executes fn against the target, bounded by both the connection and ctx.
func (c *Client) run(ctx context.Context, fn func(ctx context.Context) error) error {
	runCtx, cancel := CombineContext(c.ctx, ctx)
	defer cancel()
	return classify(chromedp.Run(runCtx, chromedp.ActionFunc(fn)))
}

func (c *Client) EnablePage(ctx context.Context) error {
	return c.run(ctx, func(ctx context.Context) error { return page.Enable().Do(ctx) })
}

func (c *Client) EnableRuntime(ctx context.Context) error {
	return c.run(ctx, func(ctx context.Context) error { return runtime.Enable().Do(ctx) })
}

func (c *Client) EnableDOM(ctx context.Context) error {
	return c.run(ctx, func(ctx context.Context) error { return dom.Enable().Do(ctx) })
}

func (c *Client) EnableNetwork(ctx context.Context) error {
	return c.run(ctx, func(ctx context.Context) error { return network.Enable().Do(ctx) })
}

func (c *Client) Navigate(ctx context.Context, url string) (NavigateResult, error) {
	var res page.NavigateReturns
	err := c.run(ctx, func(ctx context.Context) error {
		return cdp.Execute(ctx, page.CommandNavigate, page.Navigate(url), &res)
	})
	if err != nil {
		return NavigateResult{}, err
	}
	return NavigateResult{
		FrameID:   string(res.FrameID),
		LoaderID:  string(res.LoaderID),
		ErrorText: res.ErrorText,
	}, nil
}

func (c *Client) SubscribeLoad(ctx context.Context) (<-chan struct{}, func()) {
	listenCtx, cancel := CombineContext(c.ctx, ctx)
	ch := make(chan struct{}, 1)
	chromedp.ListenTarget(listenCtx, func(ev interface{}) {
		if _, ok := ev.(*page.EventLoadEventFired); ok {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	})
	return ch, cancel
}

func (c *Client) SubscribeRequests(ctx context.Context, fn func(RequestEvent)) func() {
	listenCtx, cancel := CombineContext(c.ctx, ctx)
	chromedp.ListenTarget(listenCtx, func(ev interface{}) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			url := ""
			if e.Request != nil {
				url = e.Request.URL
			}
			fn(RequestEvent{RequestID: string(e.RequestID), Phase: RequestStarted, URL: url})
		case *network.EventLoadingFinished:
			fn(RequestEvent{RequestID: string(e.RequestID), Phase: RequestFinished})
		case *network.EventLoadingFailed:
			fn(RequestEvent{RequestID: string(e.RequestID), Phase: RequestFailed})
		}
	})
	return cancel
}

func remoteValue(obj *runtime.RemoteObject, exc *runtime.ExceptionDetails) (RemoteValue, error) {
	if exc != nil {
		evalErr := &EvaluationError{Text: exc.Text}
		if exc.Exception != nil {
			evalErr.Description = exc.Exception.Description
		}
		return RemoteValue{}, evalErr
	}
	if obj == nil {
		return RemoteValue{Type: "undefined"}, nil
	}
	return RemoteValue{Type: string(obj.Type), Raw: []byte(obj.Value)}, nil
}

func (c *Client) Evaluate(ctx context.Context, expression string) (RemoteValue, error) {
	var (
		obj *runtime.RemoteObject
		exc *runtime.ExceptionDetails
	)
	err := c.run(ctx, func(ctx context.Context) error {
		var err error
		obj, exc, err = runtime.Evaluate(expression).
			WithReturnByValue(true).
			WithAwaitPromise(true).
			Do(ctx)
		return err
	})
	if err != nil {
		return RemoteValue{}, err
	}
	return remoteValue(obj, exc)
}

func (c *Client) CallFunctionOn(ctx context.Context, object ObjectID, function string) (RemoteValue, error) {
	var (
		obj *runtime.RemoteObject
		exc *runtime.ExceptionDetails
	)
	err := c.run(ctx, func(ctx context.Context) error {
		var err error
		obj, exc, err = runtime.CallFunctionOn(function).
			WithObjectID(runtime.RemoteObjectID(object)).
			WithReturnByValue(true).
			WithAwaitPromise(true).
			Do(ctx)
		return err
	})
	if err != nil {
		return RemoteValue{}, err
	}
	return remoteValue(obj, exc)
}

func (c *Client) GetDocument(ctx context.Context) (NodeID, error) {
	var root *cdp.Node
	err := c.run(ctx, func(ctx context.Context) error {
		var err error
		root, err = dom.GetDocument().Do(ctx)
		return err
	})
	if err != nil {
		return 0, err
	}
	if root == nil {
		return 0, fmt.Errorf("browser returned no document")
	}
	return NodeID(root.NodeID), nil
}

func (c *Client) QuerySelector(ctx context.Context, root NodeID, selector string) (NodeID, error) {
	var id cdp.NodeID
	err := c.run(ctx, func(ctx context.Context) error {
		var err error
		id, err = dom.QuerySelector(cdp.NodeID(root), selector).Do(ctx)
		return err
	})
	return NodeID(id), err
}

func (c *Client) GetContentQuad(ctx context.Context, node NodeID) (Quad, error) {
	var model *dom.BoxModel
	err := c.run(ctx, func(ctx context.Context) error {
		var err error
		model, err = dom.GetBoxModel().WithNodeID(cdp.NodeID(node)).Do(ctx)
		return err
	})
	if err != nil {
		return Quad{}, err
	}
	if model == nil || len(model.Content) < 8 {
		return Quad{}, fmt.Errorf("node %d has no content box", node)
	}
	var q Quad
	copy(q[:], model.Content)
	return q, nil
}

func (c *Client) ResolveNode(ctx context.Context, node NodeID) (ObjectID, error) {
	var obj *runtime.RemoteObject
	err := c.run(ctx, func(ctx context.Context) error {
		var err error
		obj, err = dom.ResolveNode().WithNodeID(cdp.NodeID(node)).Do(ctx)
		return err
	})
	if err != nil {
		return "", err
	}
	if obj == nil || obj.ObjectID == "" {
		return "", fmt.Errorf("%w: node %d did not resolve", ErrStaleNode, node)
	}
	return ObjectID(obj.ObjectID), nil
}

func (c *Client) Focus(ctx context.Context, node NodeID) error {
	return c.run(ctx, func(ctx context.Context) error {
		return dom.Focus().WithNodeID(cdp.NodeID(node)).Do(ctx)
	})
}

func (c *Client) DispatchMouseEvent(ctx context.Context, ev MouseEvent) error {
	p := input.DispatchMouseEvent(input.MouseType(ev.Type), ev.X, ev.Y)
	if ev.Button != "" {
		p = p.WithButton(input.MouseButton(ev.Button))
	}
	if ev.ClickCount > 0 {
		p = p.WithClickCount(int64(ev.ClickCount))
	}
	return c.run(ctx, func(ctx context.Context) error { return p.Do(ctx) })
}

func (c *Client) DispatchKeyEvent(ctx context.Context, ev KeyEvent) error {
	p := input.DispatchKeyEvent(input.KeyType(ev.Type)).WithText(ev.Text)
	return c.run(ctx, func(ctx context.Context) error { return p.Do(ctx) })
}

// Close closes the page target and drops the connection. It does not stop
// the browser process. Later calls return the first result.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		if err := chromedp.Cancel(c.ctx); err != nil && !errors.Is(err, context.Canceled) {
			c.closeErr = fmt.Errorf("failed to close target: %w", err)
		}
		c.cancel()
		c.allocCancel()
	})
	return c.closeErr
}
