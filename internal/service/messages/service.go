// Package messages implements the message tree query engine: conversation paths,
// subtrees, structural analyzers, cursor pagination and soft deletion.
package messages

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"msgtree/internal/config"
	"msgtree/internal/domain"
	"msgtree/internal/domain/models"
	"msgtree/internal/domain/repositories"
	"msgtree/internal/domain/services"
	"msgtree/internal/metrics"
	"msgtree/internal/service/auth"
)

// Options tunes the engine
type Options struct {
	Cascade          CascadePolicy
	Authorizer       services.CallerAuthorizer
	PathSafetyMargin int
}

// Service implements services.MessageService on top of a message repository
type Service struct {
	repo      repositories.MessageRepository
	txManager repositories.TransactionManager
	cascade   CascadePolicy
	authz     services.CallerAuthorizer
	margin    int
	metrics   *metrics.Recorder
	logger    *slog.Logger
}

// NewService creates a new message service
func NewService(
	repo repositories.MessageRepository,
	txManager repositories.TransactionManager,
	opts Options,
	recorder *metrics.Recorder,
	logger *slog.Logger,
) services.MessageService {
	if opts.Cascade == nil {
		opts.Cascade = noCascade{}
	}
	if opts.Authorizer == nil {
		opts.Authorizer = auth.NewTrustAuthorizer()
	}
	if opts.PathSafetyMargin <= 0 {
		opts.PathSafetyMargin = config.DefaultPathSafetyMargin
	}
	return &Service{
		repo:      repo,
		txManager: txManager,
		cascade:   opts.Cascade,
		authz:     opts.Authorizer,
		margin:    opts.PathSafetyMargin,
		metrics:   recorder,
		logger:    logger,
	}
}

func (s *Service) observe(op string, start time.Time, errp *error) {
	s.metrics.Observe(op, start, *errp)
}

// loadTree fetches a visible message and bulk-loads its whole tree, deleted rows included
func (s *Service) loadTree(ctx context.Context, op string, id uuid.UUID) (*models.Message, *treeIndex, error) {
	msg, err := s.repo.GetMessage(ctx, id, false)
	if err != nil {
		return nil, nil, err
	}

	rows, err := s.repo.GetTreeMessages(ctx, msg.MessageTreeID, models.TreeFilter{IncludeDeleted: true})
	if err != nil {
		return nil, nil, fmt.Errorf("load tree %s: %w", msg.MessageTreeID, err)
	}
	s.metrics.TreeRows(op, len(rows))

	idx := newTreeIndex(msg.MessageTreeID, rows)
	if _, ok := idx.byID[msg.ID]; !ok {
		return nil, nil, s.integrityFailure(idx.integrityErr(msg.ID, "message not listed under its tree id"))
	}
	return msg, idx, nil
}

// integrityFailure logs corrupt tree linkage; the request fails, nothing is repaired
func (s *Service) integrityFailure(err error) error {
	var integrityErr *domain.TreeIntegrityError
	if errors.As(err, &integrityErr) {
		s.logger.Error("message tree integrity violation",
			"tree_id", integrityErr.TreeID,
			"message_id", integrityErr.MessageID,
			"reason", integrityErr.Reason,
		)
	}
	return err
}

// ListMessages returns messages matching the filters within an inclusive date window
func (s *Service) ListMessages(ctx context.Context, caller models.Caller, req *services.ListMessagesRequest) (result []models.Message, err error) {
	defer s.observe("list_messages", time.Now(), &err)

	if err := validateListRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	filters, err := s.authz.ScopeFilters(caller, req.MessageFilters)
	if err != nil {
		return nil, err
	}

	q := toQuery(filters, req.MaxCount, req.Desc)
	if req.StartDate != nil {
		q.After = &models.Cursor{Time: *req.StartDate}
	}
	if req.EndDate != nil {
		q.Before = &models.Cursor{Time: *req.EndDate}
	}

	err = s.txManager.ReadTx(ctx, func(txCtx context.Context) error {
		result, err = s.repo.QueryMessages(txCtx, q)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListMessagesPage returns one cursor-delimited page with its continuation tokens
func (s *Service) ListMessagesPage(ctx context.Context, caller models.Caller, req *services.MessagePageRequest) (page *models.MessagePage, err error) {
	defer s.observe("list_messages_page", time.Now(), &err)

	if err := validatePageRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	gt, err := parseOptionalCursor(req.GT)
	if err != nil {
		return nil, err
	}
	lt, err := parseOptionalCursor(req.LT)
	if err != nil {
		return nil, err
	}
	filters, err := s.authz.ScopeFilters(caller, req.MessageFilters)
	if err != nil {
		return nil, err
	}

	plan := planPage(filters, gt, lt, req.MaxCount, req.Desc)

	var rows []models.Message
	err = s.txManager.ReadTx(ctx, func(txCtx context.Context) error {
		rows, err = s.repo.QueryMessages(txCtx, plan.query)
		return err
	})
	if err != nil {
		return nil, err
	}
	return plan.buildPage(rows, req.Desc), nil
}

// GetMessage retrieves a single visible message
func (s *Service) GetMessage(ctx context.Context, id uuid.UUID) (msg *models.Message, err error) {
	defer s.observe("get_message", time.Now(), &err)

	err = s.txManager.ReadTx(ctx, func(txCtx context.Context) error {
		msg, err = s.repo.GetMessage(txCtx, id, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// GetConversation returns root..message
func (s *Service) GetConversation(ctx context.Context, id uuid.UUID) (conv *models.Conversation, err error) {
	defer s.observe("get_conversation", time.Now(), &err)

	err = s.txManager.ReadTx(ctx, func(txCtx context.Context) error {
		msg, idx, err := s.loadTree(txCtx, "get_conversation", id)
		if err != nil {
			return err
		}
		path, err := idx.ancestorPath(idx.byID[msg.ID], s.margin)
		if err != nil {
			return s.integrityFailure(err)
		}
		conv = &models.Conversation{Messages: path}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// GetTree returns the visible messages of the message's tree
func (s *Service) GetTree(ctx context.Context, id uuid.UUID, reviewedOnly bool) (tree *models.MessageTree, err error) {
	defer s.observe("get_tree", time.Now(), &err)

	err = s.txManager.ReadTx(ctx, func(txCtx context.Context) error {
		msg, err := s.repo.GetMessage(txCtx, id, false)
		if err != nil {
			return err
		}
		rows, err := s.repo.GetTreeMessages(txCtx, msg.MessageTreeID, models.TreeFilter{ReviewedOnly: reviewedOnly})
		if err != nil {
			return fmt.Errorf("load tree %s: %w", msg.MessageTreeID, err)
		}
		s.metrics.TreeRows("get_tree", len(rows))
		tree = &models.MessageTree{ID: msg.MessageTreeID, Messages: rows}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tree, nil
}

// GetChildren returns the visible direct replies to a visible message
func (s *Service) GetChildren(ctx context.Context, id uuid.UUID) (children []models.Message, err error) {
	defer s.observe("get_children", time.Now(), &err)

	err = s.txManager.ReadTx(ctx, func(txCtx context.Context) error {
		if _, err := s.repo.GetMessage(txCtx, id, false); err != nil {
			return err
		}
		children, err = s.repo.GetChildren(txCtx, id, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return children, nil
}

// GetDescendants returns the message and its visible subtree, breadth-first
func (s *Service) GetDescendants(ctx context.Context, id uuid.UUID) (tree *models.MessageTree, err error) {
	defer s.observe("get_descendants", time.Now(), &err)

	err = s.txManager.ReadTx(ctx, func(txCtx context.Context) error {
		msg, idx, err := s.loadTree(txCtx, "get_descendants", id)
		if err != nil {
			return err
		}
		tree = &models.MessageTree{ID: msg.ID, Messages: idx.descendants(idx.byID[msg.ID])}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tree, nil
}

// GetLongestConversation returns the path to the deepest leaf of the message's tree
func (s *Service) GetLongestConversation(ctx context.Context, id uuid.UUID) (conv *models.Conversation, err error) {
	defer s.observe("get_longest_conversation", time.Now(), &err)

	err = s.txManager.ReadTx(ctx, func(txCtx context.Context) error {
		_, idx, err := s.loadTree(txCtx, "get_longest_conversation", id)
		if err != nil {
			return err
		}
		leaf, err := idx.deepestLeaf()
		if err != nil {
			return s.integrityFailure(err)
		}
		path, err := idx.ancestorPath(leaf, s.margin)
		if err != nil {
			return s.integrityFailure(err)
		}
		conv = &models.Conversation{Messages: path}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// GetNodeWithMostChildren returns the most-replied message of the tree followed by its replies
func (s *Service) GetNodeWithMostChildren(ctx context.Context, id uuid.UUID) (tree *models.MessageTree, err error) {
	defer s.observe("get_node_with_most_children", time.Now(), &err)

	err = s.txManager.ReadTx(ctx, func(txCtx context.Context) error {
		_, idx, err := s.loadTree(txCtx, "get_node_with_most_children", id)
		if err != nil {
			return err
		}
		parent, children, err := idx.mostChildren()
		if err != nil {
			return s.integrityFailure(err)
		}
		messages := make([]models.Message, 0, len(children)+1)
		messages = append(messages, *parent)
		messages = append(messages, children...)
		tree = &models.MessageTree{ID: parent.ID, Messages: messages}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tree, nil
}

// DeleteMessage soft-deletes a message according to the cascade policy
func (s *Service) DeleteMessage(ctx context.Context, caller models.Caller, id uuid.UUID) (err error) {
	defer s.observe("delete_message", time.Now(), &err)

	if err := s.authz.CanDelete(caller, id); err != nil {
		return err
	}

	var changed int64
	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		msg, err := s.repo.GetMessage(txCtx, id, true)
		if err != nil {
			return err
		}
		ids, err := s.cascade.Targets(txCtx, s.repo, msg)
		if err != nil {
			return err
		}
		changed, err = s.repo.MarkDeleted(txCtx, ids)
		return err
	})
	if err != nil {
		return err
	}

	s.metrics.Deleted(changed)
	s.logger.Info("message deleted",
		"message_id", id,
		"api_client_id", caller.APIClientID,
		"cascade", s.cascade.Name(),
		"flagged", changed,
	)
	return nil
}
