package browser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-rod/rod"

	"github.com/IshaanNene/dealstalk/internal/config"
	"github.com/IshaanNene/dealstalk/internal/types"
)

// --- Rod Tests ---

func TestLookupError(t *testing.T) {
	sel := MustParseSelector("#missing")

	if err := lookupError(context.Background(), sel, context.DeadlineExceeded); !errors.Is(err, types.ErrElementNotFound) {
		t.Errorf("deadline: expected ErrElementNotFound, got %v", err)
	}
	if err := lookupError(context.Background(), sel, &rod.ElementNotFoundError{}); !errors.Is(err, types.ErrElementNotFound) {
		t.Errorf("not found: expected ErrElementNotFound, got %v", err)
	}
	other := errors.New("cdp closed")
	if err := lookupError(context.Background(), sel, other); !errors.Is(err, other) || errors.Is(err, types.ErrElementNotFound) {
		t.Errorf("other: got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := lookupError(ctx, sel, context.DeadlineExceeded); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled: expected context.Canceled, got %v", err)
	}
}

func TestActivationError(t *testing.T) {
	err := activationError("click", fmt.Errorf("wait interactable: %w", context.DeadlineExceeded))
	if !errors.Is(err, context.DeadlineExceeded) || !strings.Contains(err.Error(), "not actionable") {
		t.Errorf("deadline: got %v", err)
	}
	other := errors.New("cdp closed")
	if err := activationError("input", other); !errors.Is(err, other) || strings.Contains(err.Error(), "not actionable") {
		t.Errorf("other: got %v", err)
	}
}

// TestRodBrowser drives a real Chromium. It runs only when DEALSTALK_ROD_TEST
// is set.
func TestRodBrowser(t *testing.T) {
	if testing.Short() || os.Getenv("DEALSTALK_ROD_TEST") == "" {
		t.Skip("skipping rod browser test (set DEALSTALK_ROD_TEST=1)")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/list", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, listingHTML)
	})
	mux.HandleFunc("/busy", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, "slow down")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.Browser.Stealth = false
	cfg.Timeouts.Navigation = 20 * time.Second
	b, err := NewRodBrowser(cfg, testLogger)
	if err != nil {
		t.Fatalf("NewRodBrowser: %v", err)
	}
	defer b.Close()

	ctx := context.Background()
	p, err := b.NewPage(ctx)
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	if err := p.Navigate(ctx, srv.URL+"/list"); err != nil {
		t.Fatalf("Navigate: %v", err)
	}

	banner, err := p.Find(ctx, MustParseSelector("#banner"), time.Second)
	if err != nil {
		t.Fatalf("Find banner: %v", err)
	}
	if text, _ := banner.Text(ctx); text != "Best Sellers in Kitchen" {
		t.Errorf("banner = %q", text)
	}
	items, err := p.FindAll(ctx, MustParseSelector(`xpath://div[@class="item"]`))
	if err != nil || len(items) != 2 {
		t.Fatalf("FindAll: %d items, err %v", len(items), err)
	}
	if _, err := p.Find(ctx, MustParseSelector("#nope"), 200*time.Millisecond); !errors.Is(err, types.ErrElementNotFound) {
		t.Errorf("expected ErrElementNotFound, got %v", err)
	}

	err = p.Navigate(ctx, srv.URL+"/busy")
	var fe *types.FetchError
	if !errors.As(err, &fe) || !fe.IsRetryable() || !errors.Is(err, types.ErrRateLimited) {
		t.Errorf("expected retryable rate-limit error, got %v", err)
	}
}
