package services

import (
	"context"
	"errors"
	"ideafeed/internal/cache"
	"ideafeed/internal/db/dbtest"
	"ideafeed/internal/models"
	"ideafeed/internal/utils"
	"math"
	"strings"
	"testing"
	"time"
)

func newTestFeed(t *testing.T, ttl time.Duration) *FeedService {
	gdb := dbtest.New(t)
	gc, err := utils.NewGlobalCache(64)
	if err != nil {
		t.Fatalf("NewGlobalCache: %v", err)
	}
	s := NewFeedService(gdb, cache.NewLocalStore(gc), FeedOptions{CacheTTL: ttl})
	s.now = fixedClock
	return s
}

func scores(page *FeedPage) []float64 {
	out := make([]float64, len(page.Items))
	for i, it := range page.Items {
		out[i] = it.ViralityScore
	}
	return out
}

func TestListTenantIsolation(t *testing.T) {
	s := newTestFeed(t, 0)
	seedPost(t, s.db, models.Post{TenantID: 1, ViralityScore: 300})
	seedPost(t, s.db, models.Post{TenantID: 1, ViralityScore: 200})
	seedPost(t, s.db, models.Post{TenantID: 2, ViralityScore: 20000, ViralityTier: models.TierGlobal})

	page, err := s.List(context.Background(), FeedQuery{TenantID: 1, Limit: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Items) != 2 {
		t.Fatalf("items = %v, want 2 tenant-1 posts", scores(page))
	}
	for _, it := range page.Items {
		if it.TenantID != 1 {
			t.Errorf("leaked post from tenant %d", it.TenantID)
		}
	}
}

func TestListCursorPagination(t *testing.T) {
	s := newTestFeed(t, 0)
	for _, sc := range []float64{500, 400, 300, 200, 100} {
		seedPost(t, s.db, models.Post{TenantID: 1, ViralityScore: sc})
	}
	ctx := context.Background()

	var seen []float64
	var cursor *float64
	pages := 0
	for {
		page, err := s.List(ctx, FeedQuery{TenantID: 1, Limit: 2, Cursor: cursor})
		if err != nil {
			t.Fatalf("List page %d: %v", pages, err)
		}
		pages++
		seen = append(seen, scores(page)...)
		if !page.HasMore {
			break
		}
		if page.NextCursor == nil {
			t.Fatal("has_more without next_cursor")
		}
		cursor = page.NextCursor
		if pages > 5 {
			t.Fatal("pagination did not terminate")
		}
	}

	if pages != 3 {
		t.Errorf("pages = %d, want 3", pages)
	}
	want := []float64{500, 400, 300, 200, 100}
	if len(seen) != len(want) {
		t.Fatalf("seen = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("seen[%d] = %v, want %v", i, seen[i], want[i])
		}
	}
}

func TestListNextCursorIsLastScore(t *testing.T) {
	s := newTestFeed(t, 0)
	seedPost(t, s.db, models.Post{TenantID: 1, ViralityScore: 90})
	seedPost(t, s.db, models.Post{TenantID: 1, ViralityScore: 70})

	page, err := s.List(context.Background(), FeedQuery{TenantID: 1, Limit: 5})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.HasMore {
		t.Error("has_more = true on last page")
	}
	if page.NextCursor == nil || *page.NextCursor != 70 {
		t.Errorf("next_cursor = %v, want 70", page.NextCursor)
	}

	empty, err := s.List(context.Background(), FeedQuery{TenantID: 9})
	if err != nil {
		t.Fatalf("List empty: %v", err)
	}
	if len(empty.Items) != 0 || empty.NextCursor != nil || empty.HasMore {
		t.Errorf("empty page = %+v", empty)
	}
}

func TestListTieBreaksByRecency(t *testing.T) {
	s := newTestFeed(t, 0)
	older := seedPost(t, s.db, models.Post{TenantID: 1, ViralityScore: 100, CreatedAt: ago(5 * time.Hour)})
	newer := seedPost(t, s.db, models.Post{TenantID: 1, ViralityScore: 100, CreatedAt: ago(time.Hour)})

	page, err := s.List(context.Background(), FeedQuery{TenantID: 1})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Items) != 2 || page.Items[0].ID != newer.ID || page.Items[1].ID != older.ID {
		t.Errorf("order = %v, want newer first", page.Items)
	}
}

func TestListVisibilityWindow(t *testing.T) {
	s := newTestFeed(t, 0)
	seedPost(t, s.db, models.Post{TenantID: 1, ViralityScore: 99999, CreatedAt: ago(31 * 24 * time.Hour)})
	recent := seedPost(t, s.db, models.Post{TenantID: 1, ViralityScore: 10, CreatedAt: ago(29 * 24 * time.Hour)})

	page, err := s.List(context.Background(), FeedQuery{TenantID: 1})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != recent.ID {
		t.Errorf("items = %v, want only the post inside 30 days", scores(page))
	}
}

func TestListTagFilter(t *testing.T) {
	s := newTestFeed(t, 0)
	tagged := seedPost(t, s.db, models.Post{TenantID: 1, ViralityScore: 10})
	seedPost(t, s.db, models.Post{TenantID: 1, ViralityScore: 500})
	foreign := seedPost(t, s.db, models.Post{TenantID: 2, ViralityScore: 900})

	tag, err := EnsureTag(s.db, 1, "Go")
	if err != nil {
		t.Fatalf("EnsureTag: %v", err)
	}
	if err := LinkPostTag(s.db, tagged.ID, tag.ID); err != nil {
		t.Fatalf("LinkPostTag: %v", err)
	}
	// 另一个租户的同名标签
	other, _ := EnsureTag(s.db, 2, "go")
	LinkPostTag(s.db, foreign.ID, other.ID)

	page, err := s.List(context.Background(), FeedQuery{TenantID: 1, Tag: "  GO "})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != tagged.ID {
		t.Fatalf("items = %v, want only the tagged tenant-1 post", scores(page))
	}
	if got := page.Items[0].TagNames; len(got) != 1 || got[0] != "go" {
		t.Errorf("tags = %v, want [go]", got)
	}
}

func TestListValidation(t *testing.T) {
	s := newTestFeed(t, 0)
	ctx := context.Background()

	for _, limit := range []int{-1, 101} {
		_, err := s.List(ctx, FeedQuery{TenantID: 1, Limit: limit})
		if !errors.Is(err, ErrInvalidLimit) {
			t.Errorf("limit %d: err = %v, want ErrInvalidLimit", limit, err)
		}
	}
	nan := math.NaN()
	if _, err := s.List(ctx, FeedQuery{TenantID: 1, Cursor: &nan}); !errors.Is(err, ErrInvalidCursor) {
		t.Errorf("NaN cursor: err = %v, want ErrInvalidCursor", err)
	}
	if _, err := s.List(ctx, FeedQuery{TenantID: 1, Limit: 100}); err != nil {
		t.Errorf("limit 100: %v", err)
	}
}

func TestListRendersContent(t *testing.T) {
	s := newTestFeed(t, 0)
	seedPost(t, s.db, models.Post{TenantID: 1, Content: "**bold** <script>alert(1)</script>"})

	page, err := s.List(context.Background(), FeedQuery{TenantID: 1})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	html := page.Items[0].ContentHTML
	if !strings.Contains(html, "<strong>bold</strong>") {
		t.Errorf("content_html = %q, want rendered markdown", html)
	}
	if strings.Contains(html, "<script>") {
		t.Errorf("content_html = %q, script not sanitized", html)
	}
}

func TestListCachesFirstPage(t *testing.T) {
	s := newTestFeed(t, time.Minute)
	ctx := context.Background()
	seedPost(t, s.db, models.Post{TenantID: 1, ViralityScore: 100})

	first, err := s.List(ctx, FeedQuery{TenantID: 1})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	seedPost(t, s.db, models.Post{TenantID: 1, ViralityScore: 200})

	cached, err := s.List(ctx, FeedQuery{TenantID: 1})
	if err != nil {
		t.Fatalf("List cached: %v", err)
	}
	if len(cached.Items) != len(first.Items) {
		t.Errorf("cached items = %d, want %d", len(cached.Items), len(first.Items))
	}

	if err := s.cache.DeletePrefix(ctx, cache.TenantPrefix(1)); err != nil {
		t.Fatalf("DeletePrefix: %v", err)
	}
	fresh, err := s.List(ctx, FeedQuery{TenantID: 1})
	if err != nil {
		t.Fatalf("List fresh: %v", err)
	}
	if len(fresh.Items) != 2 {
		t.Errorf("fresh items = %d, want 2", len(fresh.Items))
	}
}

func TestListCanceledContext(t *testing.T) {
	s := newTestFeed(t, 0)
	seedPost(t, s.db, models.Post{TenantID: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	page, err := s.List(ctx, FeedQuery{TenantID: 1})
	if err == nil || page != nil {
		t.Fatalf("List = %v, %v; want error and no page", page, err)
	}
	if !IsRetryable(err) {
		t.Errorf("IsRetryable(%v) = false", err)
	}
}

func TestGetPostIsTenantScoped(t *testing.T) {
	s := newTestFeed(t, 0)
	p := seedPost(t, s.db, models.Post{TenantID: 1, Content: "hello"})
	ctx := context.Background()

	got, err := s.Get(ctx, 1, p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != p.ID || !strings.Contains(got.ContentHTML, "hello") {
		t.Errorf("Get = %+v", got)
	}
	if _, err := s.Get(ctx, 2, p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-tenant Get err = %v, want ErrNotFound", err)
	}
}
