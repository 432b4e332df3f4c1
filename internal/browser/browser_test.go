package browser

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/IshaanNene/dealstalk/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

const listingHTML = `<html><body>
<div id="banner">Best Sellers in Kitchen</div>
<div class="item"><a class="link" href="/dp/1">
  <span class="title"> Pan </span><span class="price">₹499</span></a></div>
<div class="item"><a class="link" href="https://shop.test/dp/2"><span class="title">Pot</span></a></div>
<ul><li class="a-last"><a href="?page=2">Next</a></li></ul>
</body></html>`

const signinHTML = `<html><body>
<form name="signIn" method="post" action="/ap/signin/password">
  <input type="hidden" name="appAction" value="SIGNIN">
  <input type="email" id="ap_email" name="email">
  <input type="checkbox" name="remember">
  <input type="submit" id="continue" name="continue" value="Continue">
  <input type="submit" id="other" name="other" value="Other">
</form>
</body></html>`

func newStaticPage(t *testing.T, src *MapSource, rawURL string) Page {
	t.Helper()
	b := NewStaticBrowser(src, testLogger)
	p, err := b.NewPage(context.Background())
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	if err := p.Navigate(context.Background(), rawURL); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	return p
}

// --- Selector Tests ---

func TestParseSelector(t *testing.T) {
	tests := []struct {
		raw  string
		kind SelectorKind
		expr string
	}{
		{"#ap_email", CSS, "#ap_email"},
		{"css: div.item", CSS, "div.item"},
		{"xpath://li/a", XPath, "//li/a"},
		{"//div[@id='x']", XPath, "//div[@id='x']"},
		{".//span", XPath, ".//span"},
		{"(//a)[1]", XPath, "(//a)[1]"},
		{"span.a-price-whole", CSS, "span.a-price-whole"},
	}
	for _, tt := range tests {
		sel, err := ParseSelector(tt.raw)
		if err != nil {
			t.Fatalf("ParseSelector(%q): %v", tt.raw, err)
		}
		if sel.Kind != tt.kind || sel.Expr != tt.expr {
			t.Errorf("ParseSelector(%q) = %v, want %s:%s", tt.raw, sel, tt.kind, tt.expr)
		}
	}

	for _, raw := range []string{"", "  ", "css:", "xpath: "} {
		if _, err := ParseSelector(raw); !errors.Is(err, types.ErrEmptyInput) {
			t.Errorf("ParseSelector(%q): expected ErrEmptyInput, got %v", raw, err)
		}
	}
}

// --- Static Backend Tests ---

func TestStaticFind(t *testing.T) {
	ctx := context.Background()
	src := NewMapSource(map[string]string{"https://shop.test/list": listingHTML})
	p := newStaticPage(t, src, "https://shop.test/list")

	banner, err := p.Find(ctx, MustParseSelector("#banner"), time.Second)
	if err != nil {
		t.Fatalf("Find banner: %v", err)
	}
	if text, _ := banner.Text(ctx); text != "Best Sellers in Kitchen" {
		t.Errorf("banner text = %q", text)
	}

	items, err := p.FindAll(ctx, MustParseSelector(`//div[@class="item"]`))
	if err != nil {
		t.Fatalf("FindAll: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	// relative XPath stays inside the element
	price, err := items[0].Find(ctx, MustParseSelector(`.//span[@class="price"]`), time.Second)
	if err != nil {
		t.Fatalf("Find price: %v", err)
	}
	if text, _ := price.Text(ctx); text != "₹499" {
		t.Errorf("price text = %q", text)
	}
	if _, err := items[1].Find(ctx, MustParseSelector("span.price"), time.Second); !errors.Is(err, types.ErrElementNotFound) {
		t.Errorf("expected ErrElementNotFound, got %v", err)
	}

	link, err := items[0].Find(ctx, MustParseSelector("a.link"), time.Second)
	if err != nil {
		t.Fatalf("Find link: %v", err)
	}
	href, _ := link.Attr(ctx, "href")
	if href == nil || *href != "/dp/1" {
		t.Errorf("href = %v", href)
	}
	if missing, _ := link.Attr(ctx, "data-missing"); missing != nil {
		t.Errorf("expected nil attribute, got %q", *missing)
	}

	if _, err := p.FindAll(ctx, Selector{Kind: CSS, Expr: "div[["}); err == nil {
		t.Error("expected error for invalid CSS")
	}
	if _, err := p.FindAll(ctx, Selector{Kind: XPath, Expr: "//div[@"}); err == nil {
		t.Error("expected error for invalid XPath")
	}
}

func TestStaticClickLink(t *testing.T) {
	ctx := context.Background()
	src := NewMapSource(map[string]string{
		"https://shop.test/list": listingHTML,
	})
	src.Set("https://shop.test/list?page=2", "<html><body><p id='p2'>two</p></body></html>")
	p := newStaticPage(t, src, "https://shop.test/list")

	next, err := p.Find(ctx, MustParseSelector(`//li[@class="a-last"]/a`), time.Second)
	if err != nil {
		t.Fatalf("Find next: %v", err)
	}
	if err := next.Click(ctx); err != nil {
		t.Fatalf("Click: %v", err)
	}
	u, _ := p.URL(ctx)
	if u != "https://shop.test/list?page=2" {
		t.Errorf("url = %q", u)
	}
	if _, err := p.Find(ctx, MustParseSelector("#p2"), time.Second); err != nil {
		t.Errorf("page 2 not loaded: %v", err)
	}
	visits := src.Visits()
	if len(visits) != 2 || visits[1].Referer != "https://shop.test/list" {
		t.Errorf("unexpected visits: %+v", visits)
	}
}

func TestStaticFormSubmit(t *testing.T) {
	ctx := context.Background()
	src := NewMapSource(map[string]string{"https://shop.test/ap/signin": signinHTML})

	var got url.Values
	src.Handle("https://shop.test/ap/signin/password", func(req *types.Request) (*types.Response, error) {
		if req.Method != http.MethodPost {
			t.Errorf("method = %s", req.Method)
		}
		got, _ = url.ParseQuery(string(req.Body))
		return HTMLResponse(req.URLString(), "<html><body>password step</body></html>"), nil
	})

	p := newStaticPage(t, src, "https://shop.test/ap/signin")
	email, err := p.Find(ctx, MustParseSelector("#ap_email"), time.Second)
	if err != nil {
		t.Fatalf("Find email: %v", err)
	}
	if err := email.Input(ctx, "user@example.com"); err != nil {
		t.Fatalf("Input: %v", err)
	}
	cont, err := p.Find(ctx, MustParseSelector("#continue"), time.Second)
	if err != nil {
		t.Fatalf("Find continue: %v", err)
	}
	if err := cont.Click(ctx); err != nil {
		t.Fatalf("Click: %v", err)
	}

	if got.Get("email") != "user@example.com" {
		t.Errorf("email = %q", got.Get("email"))
	}
	if got.Get("appAction") != "SIGNIN" {
		t.Errorf("hidden field lost: %v", got)
	}
	if got.Get("continue") != "Continue" {
		t.Errorf("submitter value missing: %v", got)
	}
	if got.Has("other") || got.Has("remember") {
		t.Errorf("unexpected controls submitted: %v", got)
	}
	u, _ := p.URL(ctx)
	if u != "https://shop.test/ap/signin/password" {
		t.Errorf("url = %q", u)
	}
}

func TestStaticClickNotClickable(t *testing.T) {
	ctx := context.Background()
	src := NewMapSource(map[string]string{"https://shop.test/list": listingHTML})
	p := newStaticPage(t, src, "https://shop.test/list")
	banner, _ := p.Find(ctx, MustParseSelector("#banner"), time.Second)
	if err := banner.Click(ctx); err == nil {
		t.Error("expected error clicking a plain div")
	}
}

func TestStaticNavigateMissing(t *testing.T) {
	b := NewStaticBrowser(NewMapSource(nil), testLogger)
	p, _ := b.NewPage(context.Background())
	err := p.Navigate(context.Background(), "https://shop.test/nowhere")
	var fe *types.FetchError
	if !errors.As(err, &fe) || fe.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 FetchError, got %v", err)
	}
}

func TestStaticClosed(t *testing.T) {
	src := NewMapSource(map[string]string{"https://shop.test/list": listingHTML})
	b := NewStaticBrowser(src, testLogger)
	p, _ := b.NewPage(context.Background())
	_ = b.Close()
	if err := p.Navigate(context.Background(), "https://shop.test/list"); !errors.Is(err, types.ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
	if _, err := b.NewPage(context.Background()); !errors.Is(err, types.ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
}

// --- Wait Tests ---

func TestWaitUntil(t *testing.T) {
	calls := 0
	err := WaitUntil(context.Background(), time.Second, time.Millisecond, func(ctx context.Context) (bool, error) {
		calls++
		return calls >= 3, nil
	})
	if err != nil {
		t.Fatalf("WaitUntil: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d", calls)
	}
}

func TestWaitUntilTimeout(t *testing.T) {
	boom := errors.New("execution context destroyed")
	err := WaitUntil(context.Background(), 20*time.Millisecond, 5*time.Millisecond, func(ctx context.Context) (bool, error) {
		return false, boom
	})
	if !errors.Is(err, ErrWaitTimeout) {
		t.Errorf("expected ErrWaitTimeout, got %v", err)
	}
}

func TestWaitUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WaitUntil(ctx, time.Second, 10*time.Millisecond, func(ctx context.Context) (bool, error) {
		return false, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestConditions(t *testing.T) {
	ctx := context.Background()
	src := NewMapSource(map[string]string{"https://shop.test/list": listingHTML})
	p := newStaticPage(t, src, "https://shop.test/list")

	cond := AllOf(DocumentReady(p), ElementPresent(p, MustParseSelector("#banner")))
	if ok, err := cond(ctx); !ok || err != nil {
		t.Errorf("expected ready and present, got %v %v", ok, err)
	}
	if ok, _ := ElementPresent(p, MustParseSelector("#nope"))(ctx); ok {
		t.Error("expected #nope absent")
	}
	if ok, _ := URLChanged(p, "https://shop.test/list")(ctx); ok {
		t.Error("URL should be unchanged")
	}
	if ok, _ := URLChanged(p, "about:blank")(ctx); !ok {
		t.Error("URL should differ from about:blank")
	}
}

// --- Status Tests ---

func TestStatusError(t *testing.T) {
	tests := []struct {
		status    int
		wantErr   bool
		retryable bool
	}{
		{0, false, false},
		{200, false, false},
		{304, false, false},
		{404, true, false},
		{429, true, true},
		{500, true, false},
		{503, true, true},
	}
	for _, tt := range tests {
		err := StatusError("https://shop.test/x", tt.status)
		if (err != nil) != tt.wantErr {
			t.Errorf("status %d: err = %v", tt.status, err)
			continue
		}
		if err == nil {
			continue
		}
		var fe *types.FetchError
		if !errors.As(err, &fe) || fe.StatusCode != tt.status {
			t.Errorf("status %d: expected FetchError, got %v", tt.status, err)
		}
		if fe.IsRetryable() != tt.retryable || errors.Is(err, types.ErrRateLimited) != tt.retryable {
			t.Errorf("status %d: retryable = %v", tt.status, fe.IsRetryable())
		}
	}
}

func sorryResponse(url string) *types.Response {
	resp := HTMLResponse(url, "<html><body><p>Sorry, slow down</p></body></html>")
	resp.StatusCode = http.StatusServiceUnavailable
	return resp
}

func TestStaticStatusAfterClick(t *testing.T) {
	ctx := context.Background()
	src := NewMapSource(map[string]string{"https://shop.test/list": listingHTML})
	src.Handle("https://shop.test/list?page=2", func(req *types.Request) (*types.Response, error) {
		return sorryResponse(req.URLString()), nil
	})
	p := newStaticPage(t, src, "https://shop.test/list")

	if status, err := p.Status(ctx); err != nil || status != http.StatusOK {
		t.Fatalf("initial status = %d, %v", status, err)
	}
	next, err := p.Find(ctx, MustParseSelector(`//li[@class="a-last"]/a`), time.Second)
	if err != nil {
		t.Fatalf("Find next: %v", err)
	}
	if err := next.Click(ctx); err != nil {
		t.Fatalf("Click should load the error document, got %v", err)
	}
	if status, _ := p.Status(ctx); status != http.StatusServiceUnavailable {
		t.Errorf("status after click = %d", status)
	}

	err = p.Navigate(ctx, "https://shop.test/list?page=2")
	if !errors.Is(err, types.ErrRateLimited) {
		t.Errorf("Navigate to a 503 page: expected rate limit error, got %v", err)
	}
}
