package messages

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"msgtree/internal/domain"
	"msgtree/internal/domain/models"
	"msgtree/internal/domain/repositories"
)

// CascadePolicy decides which messages a delete flags besides the target itself
type CascadePolicy interface {
	Name() string
	// Targets returns the ids to flag as deleted, target first
	Targets(ctx context.Context, reader repositories.MessageReader, target *models.Message) ([]uuid.UUID, error)
}

// Cascade policy names accepted by ParseCascadePolicy
const (
	CascadeNone    = "none"
	CascadeSubtree = "subtree"
)

// ParseCascadePolicy resolves a configured policy name; empty means none
func ParseCascadePolicy(name string) (CascadePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", CascadeNone:
		return noCascade{}, nil
	case CascadeSubtree:
		return subtreeCascade{}, nil
	default:
		return nil, fmt.Errorf("unknown delete cascade policy %q: %w", name, domain.ErrValidation)
	}
}

// noCascade flags only the target; replies keep pointing at a deleted parent
type noCascade struct{}

func (noCascade) Name() string { return CascadeNone }

func (noCascade) Targets(_ context.Context, _ repositories.MessageReader, target *models.Message) ([]uuid.UUID, error) {
	return []uuid.UUID{target.ID}, nil
}

// subtreeCascade flags the target and every message below it
type subtreeCascade struct{}

func (subtreeCascade) Name() string { return CascadeSubtree }

func (subtreeCascade) Targets(ctx context.Context, reader repositories.MessageReader, target *models.Message) ([]uuid.UUID, error) {
	rows, err := reader.GetTreeMessages(ctx, target.MessageTreeID, models.TreeFilter{IncludeDeleted: true})
	if err != nil {
		return nil, fmt.Errorf("load tree %s: %w", target.MessageTreeID, err)
	}

	idx := newTreeIndex(target.MessageTreeID, rows)
	ids := []uuid.UUID{target.ID}
	seen := map[uuid.UUID]bool{target.ID: true}
	queue := []uuid.UUID{target.ID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, child := range idx.children[id] {
			if seen[child.ID] {
				continue
			}
			seen[child.ID] = true
			queue = append(queue, child.ID)
			if !child.Deleted {
				ids = append(ids, child.ID)
			}
		}
	}
	return ids, nil
}
