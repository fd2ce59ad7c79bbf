package messages

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"msgtree/internal/domain"
	"msgtree/internal/domain/models"
	"msgtree/internal/domain/services"
)

func pageRequest(maxCount int, desc bool, gt, lt *string) *services.MessagePageRequest {
	req := &services.MessagePageRequest{MaxCount: maxCount, Desc: desc}
	if gt != nil {
		req.GT = *gt
	}
	if lt != nil {
		req.LT = *lt
	}
	return req
}

// seedLinear inserts n roots with strictly increasing created_date and returns them in order
func (f *fixture) seedLinear(n int) []*models.Message {
	out := make([]*models.Message, n)
	for i := 0; i < n; i++ {
		out[i] = f.add(string(rune('1'+i)), nil, float64(i+1), clientA)
	}
	return out
}

func cursorOf(m *models.Message) string {
	return m.Cursor().String()
}

func TestPageExample(t *testing.T) {
	f := newFixture(t, nil)
	msgs := f.seedLinear(5)
	ctx := context.Background()

	page, err := f.svc.ListMessagesPage(ctx, trusted, pageRequest(2, false, nil, nil))
	if err != nil {
		t.Fatalf("ListMessagesPage() error = %v", err)
	}
	assertTexts(t, page.Items, "1", "2")
	if page.Prev != nil {
		t.Errorf("Prev = %q, want nil", *page.Prev)
	}
	if page.Next == nil || *page.Next != cursorOf(msgs[1]) {
		t.Fatalf("Next = %v, want %s", page.Next, cursorOf(msgs[1]))
	}
	if page.SortKey != "created_date" || page.Order != "asc" {
		t.Errorf("sort = %s %s, want created_date asc", page.SortKey, page.Order)
	}

	page, err = f.svc.ListMessagesPage(ctx, trusted, pageRequest(2, false, page.Next, nil))
	if err != nil {
		t.Fatalf("ListMessagesPage(gt) error = %v", err)
	}
	assertTexts(t, page.Items, "3", "4")
	if page.Prev == nil || *page.Prev != cursorOf(msgs[2]) {
		t.Errorf("Prev = %v, want %s", page.Prev, cursorOf(msgs[2]))
	}
}

// collect walks forward through every page starting without bounds
func collect(t *testing.T, svc services.MessageService, k int, desc bool) []models.Message {
	t.Helper()
	var (
		all  []models.Message
		next *string
	)
	for i := 0; i < 100; i++ {
		req := pageRequest(k, desc, nil, nil)
		if next != nil {
			if desc {
				req.LT = *next
			} else {
				req.GT = *next
			}
		}
		page, err := svc.ListMessagesPage(context.Background(), trusted, req)
		if err != nil {
			t.Fatalf("ListMessagesPage() error = %v", err)
		}
		all = append(all, page.Items...)
		if page.Next == nil || len(page.Items) == 0 {
			return all
		}
		next = page.Next
	}
	t.Fatalf("pagination did not terminate")
	return nil
}

func TestPaginationRoundTrip(t *testing.T) {
	f := newFixture(t, nil)
	// Shared timestamps force the id tiebreak across page boundaries
	for i, at := range []float64{1, 2, 2, 2, 3, 4, 4} {
		f.add(string(rune('a'+i)), nil, at, clientA)
	}

	for _, desc := range []bool{false, true} {
		full, err := f.svc.ListMessagesPage(context.Background(), trusted, pageRequest(100, desc, nil, nil))
		if err != nil {
			t.Fatalf("unpaginated query error = %v", err)
		}
		for k := 1; k <= 8; k++ {
			got := collect(t, f.svc, k, desc)
			if len(got) != len(full.Items) {
				t.Fatalf("desc=%v k=%d: %d rows, want %d", desc, k, len(got), len(full.Items))
			}
			for i := range got {
				if got[i].ID != full.Items[i].ID {
					t.Fatalf("desc=%v k=%d: row %d = %s, want %s", desc, k, i, got[i].Text, full.Items[i].Text)
				}
			}
		}
	}
}

func TestPaginationStableUnderInsert(t *testing.T) {
	f := newFixture(t, nil)
	f.seedLinear(5)
	ctx := context.Background()

	first, err := f.svc.ListMessagesPage(ctx, trusted, pageRequest(2, false, nil, nil))
	if err != nil {
		t.Fatalf("ListMessagesPage() error = %v", err)
	}

	// One row lands after the cursor, one before it
	f.add("late", nil, 2.5, clientA)
	f.add("early", nil, 0.5, clientA)

	var rest []models.Message
	next := first.Next
	for next != nil {
		page, err := f.svc.ListMessagesPage(ctx, trusted, pageRequest(2, false, next, nil))
		if err != nil {
			t.Fatalf("ListMessagesPage() error = %v", err)
		}
		rest = append(rest, page.Items...)
		if len(page.Items) == 0 {
			break
		}
		next = page.Next
	}
	assertTexts(t, append(first.Items, rest...), "1", "2", "late", "3", "4", "5")
}

func TestPaginationBackward(t *testing.T) {
	f := newFixture(t, nil)
	msgs := f.seedLinear(5)
	lt := cursorOf(msgs[4])

	page, err := f.svc.ListMessagesPage(context.Background(), trusted, pageRequest(2, false, nil, &lt))
	if err != nil {
		t.Fatalf("ListMessagesPage() error = %v", err)
	}
	assertTexts(t, page.Items, "3", "4")
	if page.Prev == nil || *page.Prev != cursorOf(msgs[2]) {
		t.Errorf("Prev = %v, want %s", page.Prev, cursorOf(msgs[2]))
	}
	if page.Next == nil || *page.Next != cursorOf(msgs[3]) {
		t.Errorf("Next = %v, want %s", page.Next, cursorOf(msgs[3]))
	}
}

func TestPaginationDescending(t *testing.T) {
	f := newFixture(t, nil)
	msgs := f.seedLinear(5)

	page, err := f.svc.ListMessagesPage(context.Background(), trusted, pageRequest(2, true, nil, nil))
	if err != nil {
		t.Fatalf("ListMessagesPage() error = %v", err)
	}
	assertTexts(t, page.Items, "5", "4")
	if page.Order != "desc" {
		t.Errorf("Order = %s, want desc", page.Order)
	}
	if page.Next == nil || *page.Next != cursorOf(msgs[3]) {
		t.Fatalf("Next = %v, want %s", page.Next, cursorOf(msgs[3]))
	}

	page, err = f.svc.ListMessagesPage(context.Background(), trusted, pageRequest(2, true, nil, page.Next))
	if err != nil {
		t.Fatalf("ListMessagesPage(lt) error = %v", err)
	}
	assertTexts(t, page.Items, "3", "2")
}

func TestPaginationDescendingTokens(t *testing.T) {
	f := newFixture(t, nil)
	msgs := f.seedLinear(5)
	c := func(i int) *string {
		s := cursorOf(msgs[i])
		return &s
	}

	tests := []struct {
		name     string
		limit    int
		gt, lt   *string
		want     []string
		wantPrev *string
		wantNext *string
	}{
		{name: "gt only", limit: 10, gt: c(0), want: []string{"5", "4", "3", "2"}, wantPrev: c(4)},
		{name: "gt only full page", limit: 2, gt: c(0), want: []string{"5", "4"}, wantPrev: c(4), wantNext: c(3)},
		{name: "lt only", limit: 10, lt: c(3), want: []string{"3", "2", "1"}, wantNext: c(0)},
		{name: "lt only full page", limit: 2, lt: c(3), want: []string{"3", "2"}, wantPrev: c(2), wantNext: c(1)},
		{name: "both bounds", limit: 10, gt: c(0), lt: c(4), want: []string{"4", "3", "2"}, wantPrev: c(3), wantNext: c(1)},
		{name: "no bounds", limit: 10, want: []string{"5", "4", "3", "2", "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := f.svc.ListMessagesPage(context.Background(), trusted, pageRequest(tt.limit, true, tt.gt, tt.lt))
			if err != nil {
				t.Fatalf("ListMessagesPage() error = %v", err)
			}
			assertTexts(t, page.Items, tt.want...)
			assertToken(t, "Prev", page.Prev, tt.wantPrev)
			assertToken(t, "Next", page.Next, tt.wantNext)
		})
	}
}

func assertToken(t *testing.T, name string, got, want *string) {
	t.Helper()
	switch {
	case want == nil && got != nil:
		t.Errorf("%s = %q, want nil", name, *got)
	case want != nil && got == nil:
		t.Errorf("%s = nil, want %s", name, *want)
	case want != nil && *got != *want:
		t.Errorf("%s = %s, want %s", name, *got, *want)
	}
}

func TestPaginationDescendingEmptyPageEchoesBounds(t *testing.T) {
	f := newFixture(t, nil)
	msgs := f.seedLinear(3)
	lt := cursorOf(msgs[0])

	page, err := f.svc.ListMessagesPage(context.Background(), trusted, pageRequest(2, true, nil, &lt))
	if err != nil {
		t.Fatalf("ListMessagesPage() error = %v", err)
	}
	if len(page.Items) != 0 {
		t.Fatalf("items = %v, want none", texts(page.Items))
	}
	want := msgs[0].Cursor().TimestampOnly().String()
	assertToken(t, "Prev", page.Prev, nil)
	assertToken(t, "Next", page.Next, &want)
}

func TestPaginationFarBounds(t *testing.T) {
	f := newFixture(t, nil)
	f.seedLinear(3)
	farFuture := "9999-12-31T23:59:59Z"
	farPast := "1500-01-01T00:00:00Z"

	page, err := f.svc.ListMessagesPage(context.Background(), trusted, pageRequest(10, false, nil, &farFuture))
	if err != nil {
		t.Fatalf("ListMessagesPage(lt) error = %v", err)
	}
	assertTexts(t, page.Items, "1", "2", "3")

	page, err = f.svc.ListMessagesPage(context.Background(), trusted, pageRequest(10, true, &farPast, nil))
	if err != nil {
		t.Fatalf("ListMessagesPage(gt) error = %v", err)
	}
	assertTexts(t, page.Items, "3", "2", "1")
}

func TestPaginationEmptyPageEchoesBounds(t *testing.T) {
	f := newFixture(t, nil)
	msgs := f.seedLinear(3)
	gt := cursorOf(msgs[2])

	page, err := f.svc.ListMessagesPage(context.Background(), trusted, pageRequest(2, false, &gt, nil))
	if err != nil {
		t.Fatalf("ListMessagesPage() error = %v", err)
	}
	if len(page.Items) != 0 {
		t.Fatalf("items = %v, want none", texts(page.Items))
	}
	want := msgs[2].Cursor().TimestampOnly().String()
	if page.Prev == nil || *page.Prev != want {
		t.Errorf("Prev = %v, want %s", page.Prev, want)
	}
	if page.Next != nil {
		t.Errorf("Next = %q, want nil", *page.Next)
	}
}

func TestPaginationTimestampOnlyBound(t *testing.T) {
	f := newFixture(t, nil)
	msgs := f.seedLinear(4)
	gt := msgs[1].CreatedDate.UTC().Format("2006-01-02T15:04:05Z07:00")

	page, err := f.svc.ListMessagesPage(context.Background(), trusted, pageRequest(10, false, &gt, nil))
	if err != nil {
		t.Fatalf("ListMessagesPage() error = %v", err)
	}
	// Timestamp-only bounds are inclusive
	assertTexts(t, page.Items, "2", "3", "4")
}

func TestPaginationValidation(t *testing.T) {
	f := newFixture(t, nil)
	bad := "not-a-cursor"
	badID := "ABCDEF$2024-01-01T00:00:00Z"

	tests := []struct {
		name   string
		caller models.Caller
		req    *services.MessagePageRequest
		want   error
	}{
		{"malformed gt", trusted, pageRequest(10, false, &bad, nil), domain.ErrInvalidCursor},
		{"malformed lt", trusted, pageRequest(10, false, nil, &badID), domain.ErrInvalidCursor},
		{"zero max_count", trusted, pageRequest(0, false, nil, nil), domain.ErrValidation},
		{"max_count too large", trusted, pageRequest(1001, false, nil, nil), domain.ErrValidation},
		{"username without auth_method", trusted, &services.MessagePageRequest{
			MaxCount:       10,
			MessageFilters: services.MessageFilters{Username: "alice"},
		}, domain.ErrValidation},
		{"other client's messages", untrusted, &services.MessagePageRequest{
			MaxCount:       10,
			MessageFilters: services.MessageFilters{APIClientID: &clientB},
		}, domain.ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := f.svc.ListMessagesPage(context.Background(), tt.caller, tt.req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			if page != nil {
				t.Errorf("page = %+v, want nil", page)
			}
		})
	}
}

func TestUntrustedListingIsScoped(t *testing.T) {
	f := newFixture(t, nil)
	f.add("mine", nil, 1, clientA)
	f.add("theirs", nil, 2, clientB)
	ctx := context.Background()

	page, err := f.svc.ListMessagesPage(ctx, untrusted, pageRequest(10, false, nil, nil))
	if err != nil {
		t.Fatalf("ListMessagesPage() error = %v", err)
	}
	assertTexts(t, page.Items, "mine")

	page, err = f.svc.ListMessagesPage(ctx, trusted, pageRequest(10, false, nil, nil))
	if err != nil {
		t.Fatalf("ListMessagesPage(trusted) error = %v", err)
	}
	assertTexts(t, page.Items, "mine", "theirs")

	list, err := f.svc.ListMessages(ctx, untrusted, &services.ListMessagesRequest{MaxCount: 10, Desc: true})
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	assertTexts(t, list, "mine")
}

func TestListMessagesDateWindow(t *testing.T) {
	f := newFixture(t, nil)
	msgs := f.seedLinear(5)
	ctx := context.Background()

	start, end := msgs[1].CreatedDate, msgs[3].CreatedDate
	list, err := f.svc.ListMessages(ctx, trusted, &services.ListMessagesRequest{
		StartDate: &start,
		EndDate:   &end,
		Desc:      true,
		MaxCount:  10,
	})
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	assertTexts(t, list, "4", "3", "2")

	_, err = f.svc.ListMessages(ctx, trusted, &services.ListMessagesRequest{StartDate: &end, EndDate: &start, MaxCount: 10})
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("inverted window error = %v, want ErrValidation", err)
	}
}

func TestListMessagesOnlyRootsAndDeleted(t *testing.T) {
	f := newFixture(t, nil)
	m := f.example()
	ctx := context.Background()
	if err := f.svc.DeleteMessage(ctx, trusted, m["B"].ID); err != nil {
		t.Fatalf("DeleteMessage() error = %v", err)
	}

	roots, err := f.svc.ListMessages(ctx, trusted, &services.ListMessagesRequest{
		MaxCount:       10,
		MessageFilters: services.MessageFilters{OnlyRoots: true},
	})
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	assertTexts(t, roots, "R")

	withDeleted, err := f.svc.ListMessages(ctx, trusted, &services.ListMessagesRequest{
		MaxCount:       10,
		MessageFilters: services.MessageFilters{IncludeDeleted: true},
	})
	if err != nil {
		t.Fatalf("ListMessages(include_deleted) error = %v", err)
	}
	assertTexts(t, withDeleted, "R", "A", "B", "C")

	visible, err := f.svc.ListMessages(ctx, trusted, &services.ListMessagesRequest{MaxCount: 10})
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	assertTexts(t, visible, "R", "A", "C")
}

func TestGetMessageNotFound(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.svc.GetMessage(context.Background(), uuid.New()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}
