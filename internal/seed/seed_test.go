package seed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"msgtree/internal/domain"
	"msgtree/internal/domain/models"
	"msgtree/internal/repository/sqlite"
)

func openStore(t *testing.T) (*sqlite.Store, *slog.Logger) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "seed.db"), logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Messages().EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return store, logger
}

func TestApplySample(t *testing.T) {
	ctx := context.Background()
	store, logger := openStore(t)

	fx, err := Sample()
	if err != nil {
		t.Fatalf("Sample() error = %v", err)
	}

	res, err := NewSeeder(store.Messages(), store.Transactions(), logger).Apply(ctx, fx)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if res.Users != 2 || res.Messages != 8 || len(res.TreeIDs) != 2 {
		t.Fatalf("result = %+v", res)
	}

	rows, err := store.Messages().GetTreeMessages(ctx, res.TreeIDs[0], models.TreeFilter{IncludeDeleted: true})
	if err != nil {
		t.Fatalf("GetTreeMessages() error = %v", err)
	}
	if len(rows) != 6 {
		t.Fatalf("tree rows = %d, want 6", len(rows))
	}

	byText := make(map[string]models.Message, len(rows))
	for _, m := range rows {
		if m.MessageTreeID != res.TreeIDs[0] {
			t.Errorf("%q tree id = %s", m.Text, m.MessageTreeID)
		}
		byText[m.Text] = m
	}

	leaf := byText["Wide nodes keep the tree shallow, so a lookup touches few disk pages."]
	if leaf.Depth != 3 || !leaf.Synthetic || leaf.ModelName == nil || *leaf.ModelName != "sample-model" {
		t.Errorf("leaf = %+v", leaf)
	}
	if !byText["It is a self-balancing tree."].Deleted {
		t.Error("deleted flag not seeded")
	}

	root := byText["What is a B-tree?"]
	if !root.IsRoot() || root.UserID == nil || !root.Reviewed {
		t.Errorf("root = %+v", root)
	}
	want := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	if !root.CreatedDate.Equal(want) {
		t.Errorf("root created_date = %v, want %v", root.CreatedDate, want)
	}
	// Depth-first stamping: the first reply follows the root by one step
	first := byText["A balanced search tree whose nodes hold many keys."]
	if !first.CreatedDate.Equal(want.Add(30 * time.Second)) {
		t.Errorf("first reply created_date = %v", first.CreatedDate)
	}
}

func TestApplyIsAtomic(t *testing.T) {
	ctx := context.Background()
	store, logger := openStore(t)
	seeder := NewSeeder(store.Messages(), store.Transactions(), logger)

	fx, err := Sample()
	if err != nil {
		t.Fatalf("Sample() error = %v", err)
	}
	if _, err := seeder.Apply(ctx, fx); err != nil {
		t.Fatalf("first Apply() error = %v", err)
	}

	// Users are unique per (username, auth_method), so a second run fails as a whole
	if _, err := seeder.Apply(ctx, fx); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("second Apply() error = %v, want ErrValidation", err)
	}

	all, err := store.Messages().QueryMessages(ctx, &models.MessageQuery{IncludeDeleted: true, Limit: 100})
	if err != nil {
		t.Fatalf("QueryMessages() error = %v", err)
	}
	if len(all) != 8 {
		t.Errorf("messages after failed run = %d, want 8", len(all))
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown field", "api_client_id: 00000000-0000-0000-0000-0000000000c1\ncolour: red\n"},
		{"missing role", "api_client_id: 00000000-0000-0000-0000-0000000000c1\ntrees:\n  - text: hi\n"},
		{"bad role", "api_client_id: 00000000-0000-0000-0000-0000000000c1\ntrees:\n  - role: narrator\n    text: hi\n"},
		{"unknown user", "api_client_id: 00000000-0000-0000-0000-0000000000c1\ntrees:\n  - role: prompter\n    text: hi\n    user: zed\n"},
		{"no client", "trees:\n  - role: prompter\n    text: hi\n"},
		{"nested error", "api_client_id: 00000000-0000-0000-0000-0000000000c1\ntrees:\n  - role: prompter\n    text: hi\n    replies:\n      - role: assistant\n"},
		{"duplicate user", "users:\n  - {username: a, auth_method: local}\n  - {username: a, auth_method: local}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(strings.NewReader(tt.yaml)); !errors.Is(err, domain.ErrValidation) {
				t.Errorf("Load() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	fx, err := Load(strings.NewReader("api_client_id: 00000000-0000-0000-0000-0000000000c1\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if fx.Step != time.Second || fx.Start.IsZero() {
		t.Errorf("defaults = step %v, start %v", fx.Step, fx.Start)
	}
}
