package seed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"msgtree/internal/domain/models"
	"msgtree/internal/domain/repositories"
)

// Result counts what Apply inserted
type Result struct {
	Users    int
	Messages int
	TreeIDs  []uuid.UUID
}

// Seeder inserts fixtures through the repository layer
type Seeder struct {
	repo      repositories.MessageRepository
	txManager repositories.TransactionManager
	logger    *slog.Logger
}

// NewSeeder creates a new seeder
func NewSeeder(repo repositories.MessageRepository, txManager repositories.TransactionManager, logger *slog.Logger) *Seeder {
	return &Seeder{repo: repo, txManager: txManager, logger: logger}
}

// Apply inserts the fixture in one write transaction.
// Tree ids and depths are derived from the nesting; a fixture is all-or-nothing.
func (s *Seeder) Apply(ctx context.Context, fx *Fixture) (*Result, error) {
	res := &Result{}
	err := s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		users := make(map[string]uuid.UUID, len(fx.Users))
		for _, u := range fx.Users {
			user := &models.User{
				ID:          uuid.New(),
				Username:    u.Username,
				AuthMethod:  u.AuthMethod,
				DisplayName: u.DisplayName,
				CreatedDate: fx.Start,
			}
			if u.ID != nil {
				user.ID = *u.ID
			}
			if err := s.repo.CreateUser(ctx, user); err != nil {
				return fmt.Errorf("create user %s: %w", u.Username, err)
			}
			users[u.Username] = user.ID
			res.Users++
		}

		clock := fx.Start
		var insert func(n *Node, parent *models.Message) (*models.Message, error)
		insert = func(n *Node, parent *models.Message) (*models.Message, error) {
			msg := &models.Message{
				ID:          uuid.New(),
				APIClientID: fx.APIClientID,
				Role:        n.Role,
				Text:        n.Text,
				Lang:        n.Lang,
				ReviewCount: n.ReviewCount,
				Reviewed:    n.Reviewed,
				Deleted:     n.Deleted,
				Synthetic:   n.Synthetic,
				ModelName:   n.ModelName,
				CreatedDate: clock,
			}
			clock = clock.Add(fx.Step)
			if n.ID != nil {
				msg.ID = *n.ID
			}
			if n.APIClientID != nil {
				msg.APIClientID = *n.APIClientID
			}
			if id, ok := users[n.User]; ok {
				msg.UserID = &id
			}
			if parent == nil {
				msg.MessageTreeID = msg.ID
			} else {
				parentID := parent.ID
				msg.ParentID = &parentID
				msg.MessageTreeID = parent.MessageTreeID
				msg.Depth = parent.Depth + 1
			}

			if err := s.repo.CreateMessage(ctx, msg); err != nil {
				return nil, fmt.Errorf("create message %s: %w", msg.ID, err)
			}
			res.Messages++

			for i := range n.Replies {
				if _, err := insert(&n.Replies[i], msg); err != nil {
					return nil, err
				}
			}
			return msg, nil
		}

		for i := range fx.Trees {
			root, err := insert(&fx.Trees[i], nil)
			if err != nil {
				return err
			}
			res.TreeIDs = append(res.TreeIDs, root.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("fixture applied",
		"users", res.Users,
		"messages", res.Messages,
		"trees", len(res.TreeIDs),
		"span", time.Duration(res.Messages)*fx.Step,
	)
	return res, nil
}
