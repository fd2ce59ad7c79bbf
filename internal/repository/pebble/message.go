package pebble

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"

	"msgtree/internal/domain"
	"msgtree/internal/domain/models"
)

const schemaVersion = "1"

// PebbleMessageRepository implements the MessageRepository interface on Pebble
type PebbleMessageRepository struct {
	store  *Store
	logger *slog.Logger
}

// getValue copies the value stored at key; found is false when the key is absent
func getValue(r reader, key []byte) ([]byte, bool, error) {
	v, closer, err := r.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer closer.Close()
	return append([]byte(nil), v...), true, nil
}

func loadMessage(r reader, id uuid.UUID) (*models.Message, bool, error) {
	v, found, err := getValue(r, messageKey(id))
	if err != nil || !found {
		return nil, found, err
	}
	var msg models.Message
	if err := json.Unmarshal(v, &msg); err != nil {
		return nil, false, fmt.Errorf("decode message %s: %w", id, err)
	}
	return &msg, true, nil
}

// scanIndex walks an index range in key order (or reverse) and calls visit with
// the id at the end of each key until visit returns false
func scanIndex(r reader, lower, upper []byte, reverse bool, visit func(id uuid.UUID) (bool, error)) error {
	iter, err := r.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return err
	}
	defer iter.Close()

	step := iter.Next
	valid := iter.First()
	if reverse {
		step = iter.Prev
		valid = iter.Last()
	}

	for ; valid; valid = step() {
		id, ok := trailingID(iter.Key())
		if !ok {
			continue
		}
		more, err := visit(id)
		if err != nil {
			return err
		}
		if !more {
			break
		}
	}
	return iter.Error()
}

// loadIndexed loads every message referenced by an index prefix, in (created_date, id) order
func loadIndexed(r reader, prefix []byte, keep func(*models.Message) bool) ([]models.Message, error) {
	messages := []models.Message{}
	err := scanIndex(r, prefix, prefixUpperBound(prefix), false, func(id uuid.UUID) (bool, error) {
		msg, found, err := loadMessage(r, id)
		if err != nil {
			return false, err
		}
		if found && keep(msg) {
			messages = append(messages, *msg)
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// GetMessage retrieves a message by ID
func (r *PebbleMessageRepository) GetMessage(ctx context.Context, id uuid.UUID, includeDeleted bool) (*models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeErr("get message", err)
	}

	msg, found, err := loadMessage(r.store.readerFor(ctx), id)
	if err != nil {
		return nil, storeErr("get message", err)
	}
	if !found || (msg.Deleted && !includeDeleted) {
		return nil, fmt.Errorf("message %s: %w", id, domain.ErrNotFound)
	}
	return msg, nil
}

// GetChildren retrieves the direct replies to a message
func (r *PebbleMessageRepository) GetChildren(ctx context.Context, parentID uuid.UUID, includeDeleted bool) ([]models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeErr("get children", err)
	}

	messages, err := loadIndexed(r.store.readerFor(ctx), parentPrefix(parentID), func(m *models.Message) bool {
		return includeDeleted || !m.Deleted
	})
	if err != nil {
		return nil, storeErr("get children", err)
	}
	return messages, nil
}

// GetTreeMessages loads a whole tree through the tree index
func (r *PebbleMessageRepository) GetTreeMessages(ctx context.Context, treeID uuid.UUID, filter models.TreeFilter) ([]models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeErr("get tree messages", err)
	}

	messages, err := loadIndexed(r.store.readerFor(ctx), treePrefix(treeID), func(m *models.Message) bool {
		if m.Deleted && !filter.IncludeDeleted {
			return false
		}
		return m.Reviewed || !filter.ReviewedOnly
	})
	if err != nil {
		return nil, storeErr("get tree messages", err)
	}
	return messages, nil
}

// createdRange converts the query's cursor bounds to a key range over the created_date index.
// Id-carrying cursors are exclusive; timestamp-only cursors are inclusive.
func createdRange(q *models.MessageQuery) (lower, upper []byte) {
	lower = []byte(prefixCreated)
	upper = prefixUpperBound(lower)

	if q.After != nil {
		if q.After.ID != nil {
			lower = append(createdKey(q.After.Time, *q.After.ID), 0)
		} else {
			lower = concat([]byte(prefixCreated), encodeTime(q.After.Time))
		}
	}
	if q.Before != nil {
		if q.Before.ID != nil {
			upper = createdKey(q.Before.Time, *q.Before.ID)
		} else {
			upper = concat([]byte(prefixCreated), encodeTime(q.Before.Time.Add(1)))
		}
	}
	return lower, upper
}

// QueryMessages scans the created_date index in the requested direction, applying the
// predicates to each message until the limit is reached
func (r *PebbleMessageRepository) QueryMessages(ctx context.Context, q *models.MessageQuery) ([]models.Message, error) {
	rd := r.store.readerFor(ctx)
	messages := []models.Message{}

	userID := q.UserID
	if q.Username != "" || q.AuthMethod != "" {
		v, found, err := getValue(rd, userNameKey(q.AuthMethod, q.Username))
		if err != nil {
			return nil, storeErr("query messages", err)
		}
		if !found {
			return messages, nil
		}
		resolved, err := uuid.FromBytes(v)
		if err != nil {
			return nil, storeErr("query messages", err)
		}
		if userID != nil && *userID != resolved {
			return messages, nil
		}
		userID = &resolved
	}

	lower, upper := createdRange(q)
	if bytes.Compare(lower, upper) >= 0 {
		return messages, nil
	}

	err := scanIndex(rd, lower, upper, q.Desc, func(id uuid.UUID) (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		msg, found, err := loadMessage(rd, id)
		if err != nil {
			return false, err
		}
		if !found || !matches(msg, q, userID) {
			return true, nil
		}
		messages = append(messages, *msg)
		return len(messages) < q.Limit, nil
	})
	if err != nil {
		return nil, storeErr("query messages", err)
	}
	return messages, nil
}

func matches(m *models.Message, q *models.MessageQuery, userID *uuid.UUID) bool {
	if m.Deleted && !q.IncludeDeleted {
		return false
	}
	if q.OnlyRoots && !m.IsRoot() {
		return false
	}
	if userID != nil && (m.UserID == nil || *m.UserID != *userID) {
		return false
	}
	if q.APIClientID != nil && m.APIClientID != *q.APIClientID {
		return false
	}
	return true
}

// write runs fn inside the write transaction in ctx, or a new one
func (r *PebbleMessageRepository) write(ctx context.Context, fn func(b *pebble.Batch) error) error {
	return r.store.Transactions().ExecTx(ctx, func(txCtx context.Context) error {
		st := txCtx.Value(txKey).(*txState)
		return fn(st.batch)
	})
}

// CreateUser stores an author identity
func (r *PebbleMessageRepository) CreateUser(ctx context.Context, user *models.User) error {
	return r.write(ctx, func(b *pebble.Batch) error {
		nameKey := userNameKey(user.AuthMethod, user.Username)
		if _, found, err := getValue(b, nameKey); err != nil {
			return storeErr("create user", err)
		} else if found {
			return fmt.Errorf("user %s/%s already exists: %w", user.AuthMethod, user.Username, domain.ErrValidation)
		}
		if _, found, err := getValue(b, userKey(user.ID)); err != nil {
			return storeErr("create user", err)
		} else if found {
			return fmt.Errorf("user %s already exists: %w", user.ID, domain.ErrValidation)
		}

		stored := *user
		stored.CreatedDate = stored.CreatedDate.UTC()
		value, err := json.Marshal(&stored)
		if err != nil {
			return fmt.Errorf("encode user: %w", err)
		}
		if err := b.Set(userKey(user.ID), value, nil); err != nil {
			return storeErr("create user", err)
		}
		if err := b.Set(nameKey, user.ID[:], nil); err != nil {
			return storeErr("create user", err)
		}
		return nil
	})
}

// CreateMessage stores a message and its index entries
func (r *PebbleMessageRepository) CreateMessage(ctx context.Context, msg *models.Message) error {
	return r.write(ctx, func(b *pebble.Batch) error {
		if _, found, err := getValue(b, messageKey(msg.ID)); err != nil {
			return storeErr("create message", err)
		} else if found {
			return fmt.Errorf("message %s already exists: %w", msg.ID, domain.ErrValidation)
		}
		if msg.ParentID != nil {
			if _, found, err := getValue(b, messageKey(*msg.ParentID)); err != nil {
				return storeErr("create message", err)
			} else if !found {
				return fmt.Errorf("parent %s of message %s: %w", msg.ParentID, msg.ID, domain.ErrNotFound)
			}
		}
		if msg.UserID != nil {
			if _, found, err := getValue(b, userKey(*msg.UserID)); err != nil {
				return storeErr("create message", err)
			} else if !found {
				return fmt.Errorf("user %s of message %s: %w", msg.UserID, msg.ID, domain.ErrNotFound)
			}
		}

		stored := *msg
		stored.CreatedDate = stored.CreatedDate.UTC()
		value, err := json.Marshal(&stored)
		if err != nil {
			return fmt.Errorf("encode message: %w", err)
		}

		writes := [][2][]byte{
			{messageKey(msg.ID), value},
			{createdKey(stored.CreatedDate, msg.ID), nil},
			{treeKey(msg.MessageTreeID, stored.CreatedDate, msg.ID), nil},
		}
		if msg.ParentID != nil {
			writes = append(writes, [2][]byte{parentKey(*msg.ParentID, stored.CreatedDate, msg.ID), nil})
		}
		for _, w := range writes {
			if err := b.Set(w[0], w[1], nil); err != nil {
				return storeErr("create message", err)
			}
		}
		return nil
	})
}

// MarkDeleted flags messages as deleted; messages already deleted or absent are skipped
func (r *PebbleMessageRepository) MarkDeleted(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	var changed int64
	err := r.write(ctx, func(b *pebble.Batch) error {
		changed = 0
		for _, id := range ids {
			msg, found, err := loadMessage(b, id)
			if err != nil {
				return storeErr("mark messages deleted", err)
			}
			if !found || msg.Deleted {
				continue
			}
			msg.Deleted = true
			value, err := json.Marshal(msg)
			if err != nil {
				return fmt.Errorf("encode message: %w", err)
			}
			if err := b.Set(messageKey(id), value, nil); err != nil {
				return storeErr("mark messages deleted", err)
			}
			changed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}

// EnsureSchema records the key layout version. Pebble needs no DDL; a database
// written with a different layout is rejected.
func (r *PebbleMessageRepository) EnsureSchema(ctx context.Context) error {
	return r.write(ctx, func(b *pebble.Batch) error {
		v, found, err := getValue(b, []byte(keySchema))
		if err != nil {
			return storeErr("ensure schema", err)
		}
		if found {
			if string(v) != schemaVersion {
				return domain.NewStoreError("ensure schema", fmt.Errorf("unsupported key layout version %q", v))
			}
			return nil
		}
		r.logger.Debug("schema ready", "driver", "pebble", "version", schemaVersion)
		return b.Set([]byte(keySchema), []byte(schemaVersion), nil)
	})
}
