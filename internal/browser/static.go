package browser

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/IshaanNene/dealstalk/internal/types"
)

// Source loads documents for the static backend.
type Source interface {
	Load(ctx context.Context, req *types.Request) (*types.Response, error)
}

// StaticBrowser serves pages parsed from a Source. Nothing is rendered and
// no script runs, so a document never changes after it has loaded.
type StaticBrowser struct {
	source Source
	logger *slog.Logger
	closed bool
}

// NewStaticBrowser creates a static backend reading from src.
func NewStaticBrowser(src Source, logger *slog.Logger) *StaticBrowser {
	return &StaticBrowser{
		source: src,
		logger: logger.With("component", "static_browser"),
	}
}

// NewPage opens an empty page.
func (b *StaticBrowser) NewPage(ctx context.Context) (Page, error) {
	if b.closed {
		return nil, types.ErrSessionClosed
	}
	return &staticPage{browser: b, url: "about:blank", ready: "complete"}, nil
}

// Close marks the browser closed. Pages opened from it stop working.
func (b *StaticBrowser) Close() error {
	b.closed = true
	return nil
}

type staticPage struct {
	browser *StaticBrowser
	doc     *html.Node
	url     string
	ready   string
	status  int
	closed  bool
}

func (p *staticPage) alive() error {
	if p.closed || p.browser.closed {
		return types.ErrSessionClosed
	}
	return nil
}

func (p *staticPage) Navigate(ctx context.Context, rawURL string) error {
	req, err := types.NewRequest(rawURL)
	if err != nil {
		return &types.FetchError{URL: rawURL, Err: err}
	}
	if err := p.load(ctx, req); err != nil {
		return err
	}
	return StatusError(p.url, p.status)
}

func (p *staticPage) load(ctx context.Context, req *types.Request) error {
	if err := p.alive(); err != nil {
		return err
	}
	if p.url != "about:blank" {
		req.Referer = p.url
	}

	resp, err := p.browser.source.Load(ctx, req)
	if err != nil {
		return err
	}

	doc, err := html.Parse(bytes.NewReader(resp.Body))
	if err != nil {
		return &types.FetchError{URL: req.URLString(), Err: fmt.Errorf("parse document: %w", err)}
	}

	p.doc = doc
	p.url = resp.FinalURL
	if p.url == "" {
		p.url = req.URLString()
	}
	p.ready = "complete"
	p.status = resp.StatusCode

	p.browser.logger.Debug("document loaded",
		"method", req.Method,
		"url", p.url,
		"size", len(resp.Body),
	)
	return nil
}

func (p *staticPage) URL(ctx context.Context) (string, error) {
	if err := p.alive(); err != nil {
		return "", err
	}
	return p.url, nil
}

func (p *staticPage) Status(ctx context.Context) (int, error) {
	if err := p.alive(); err != nil {
		return 0, err
	}
	return p.status, nil
}

func (p *staticPage) ReadyState(ctx context.Context) (string, error) {
	if err := p.alive(); err != nil {
		return "", err
	}
	return p.ready, nil
}

func (p *staticPage) Find(ctx context.Context, sel Selector, _ time.Duration) (Element, error) {
	els, err := p.FindAll(ctx, sel)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, notFound(sel)
	}
	return els[0], nil
}

func (p *staticPage) FindAll(ctx context.Context, sel Selector) ([]Element, error) {
	if err := p.alive(); err != nil {
		return nil, err
	}
	if p.doc == nil {
		return nil, nil
	}
	return p.query(p.doc, sel)
}

func (p *staticPage) Close() error {
	p.closed = true
	return nil
}

func (p *staticPage) query(n *html.Node, sel Selector) ([]Element, error) {
	var nodes []*html.Node
	switch sel.Kind {
	case XPath:
		found, err := htmlquery.QueryAll(n, sel.Expr)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", sel, err)
		}
		nodes = found
	default:
		// goquery.Find silently matches nothing on a bad selector.
		matcher, err := cascadia.Compile(sel.Expr)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", sel, err)
		}
		nodes = goquery.NewDocumentFromNode(n).FindMatcher(matcher).Nodes
	}

	out := make([]Element, 0, len(nodes))
	for _, node := range nodes {
		if node.Type != html.ElementNode {
			continue
		}
		out = append(out, &staticElement{page: p, node: node})
	}
	return out, nil
}

type staticElement struct {
	page *staticPage
	node *html.Node
}

func (e *staticElement) Find(ctx context.Context, sel Selector, _ time.Duration) (Element, error) {
	els, err := e.FindAll(ctx, sel)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, notFound(sel)
	}
	return els[0], nil
}

func (e *staticElement) FindAll(ctx context.Context, sel Selector) ([]Element, error) {
	if err := e.page.alive(); err != nil {
		return nil, err
	}
	return e.page.query(e.node, sel)
}

func (e *staticElement) Text(ctx context.Context) (string, error) {
	if err := e.page.alive(); err != nil {
		return "", err
	}
	return htmlquery.InnerText(e.node), nil
}

func (e *staticElement) Attr(ctx context.Context, name string) (*string, error) {
	if err := e.page.alive(); err != nil {
		return nil, err
	}
	v, ok := goquery.NewDocumentFromNode(e.node).Selection.Attr(name)
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (e *staticElement) Input(ctx context.Context, text string) error {
	if err := e.page.alive(); err != nil {
		return err
	}
	setAttr(e.node, "value", text)
	return nil
}

// Click follows a link or submits the enclosing form of a submit control.
func (e *staticElement) Click(ctx context.Context) error {
	if err := e.page.alive(); err != nil {
		return err
	}

	if link := closest(e.node, atom.A); link != nil {
		if href, ok := attr(link, "href"); ok && href != "" && !strings.HasPrefix(href, "#") {
			target, err := resolve(e.page.url, href)
			if err != nil {
				return fmt.Errorf("resolve link %q: %w", href, err)
			}
			return e.page.Navigate(ctx, target)
		}
	}

	if isSubmitControl(e.node) {
		form := closest(e.node, atom.Form)
		if form == nil {
			return fmt.Errorf("submit control outside a form")
		}
		req, err := buildFormRequest(e.page.url, form, e.node)
		if err != nil {
			return err
		}
		return e.page.load(ctx, req)
	}

	return fmt.Errorf("click <%s>: element is not a link or submit control", e.node.Data)
}

func isSubmitControl(n *html.Node) bool {
	typ, _ := attr(n, "type")
	typ = strings.ToLower(typ)
	switch n.DataAtom {
	case atom.Button:
		return typ == "" || typ == "submit"
	case atom.Input:
		return typ == "submit" || typ == "image"
	}
	return false
}

// buildFormRequest serialises the form's controls the way a browser would
// for application/x-www-form-urlencoded.
func buildFormRequest(pageURL string, form, submitter *html.Node) (*types.Request, error) {
	action, _ := attr(form, "action")
	target, err := resolve(pageURL, action)
	if err != nil {
		return nil, fmt.Errorf("resolve form action %q: %w", action, err)
	}
	method, _ := attr(form, "method")
	method = strings.ToUpper(strings.TrimSpace(method))
	if method != http.MethodPost {
		method = http.MethodGet
	}

	values := url.Values{}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			addControlValue(values, n, submitter)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(form)

	req, err := types.NewRequest(target)
	if err != nil {
		return nil, err
	}
	req.Method = method
	encoded := values.Encode()
	if method == http.MethodGet {
		req.URL.RawQuery = encoded
	} else {
		req.Body = []byte(encoded)
		req.Headers.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	return req, nil
}

func addControlValue(values url.Values, n, submitter *html.Node) {
	name, ok := attr(n, "name")
	if !ok || name == "" {
		return
	}
	if _, disabled := attr(n, "disabled"); disabled {
		return
	}

	switch n.DataAtom {
	case atom.Input:
		typ, _ := attr(n, "type")
		switch strings.ToLower(typ) {
		case "submit", "image", "button":
			if n != submitter {
				return
			}
		case "reset", "file":
			return
		case "checkbox", "radio":
			if _, checked := attr(n, "checked"); !checked {
				return
			}
			v, ok := attr(n, "value")
			if !ok {
				v = "on"
			}
			values.Add(name, v)
			return
		}
		v, _ := attr(n, "value")
		values.Add(name, v)
	case atom.Button:
		if n != submitter {
			return
		}
		v, _ := attr(n, "value")
		values.Add(name, v)
	case atom.Textarea:
		if v, ok := attr(n, "value"); ok {
			values.Add(name, v)
			return
		}
		values.Add(name, htmlquery.InnerText(n))
	}
}

func closest(n *html.Node, a atom.Atom) *html.Node {
	for ; n != nil; n = n.Parent {
		if n.Type == html.ElementNode && n.DataAtom == a {
			return n
		}
	}
	return nil
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func resolve(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", err
	}
	return b.ResolveReference(r).String(), nil
}
