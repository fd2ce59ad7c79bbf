package messages

import (
	"fmt"
	"slices"

	"github.com/google/uuid"

	"msgtree/internal/domain"
	"msgtree/internal/domain/models"
)

// compareMessages orders by (created_date, id)
func compareMessages(a, b models.Message) int {
	if c := a.CreatedDate.Compare(b.CreatedDate); c != 0 {
		return c
	}
	return models.CompareIDs(a.ID, b.ID)
}

// treeIndex is the in-memory adjacency of one bulk-loaded tree.
// rows include deleted messages so deleted interior nodes keep their subtrees reachable.
type treeIndex struct {
	treeID   uuid.UUID
	byID     map[uuid.UUID]*models.Message
	children map[uuid.UUID][]*models.Message
	maxDepth int
}

func newTreeIndex(treeID uuid.UUID, rows []models.Message) *treeIndex {
	idx := &treeIndex{
		treeID:   treeID,
		byID:     make(map[uuid.UUID]*models.Message, len(rows)),
		children: make(map[uuid.UUID][]*models.Message),
	}
	for i := range rows {
		m := &rows[i]
		idx.byID[m.ID] = m
		if m.ParentID != nil {
			idx.children[*m.ParentID] = append(idx.children[*m.ParentID], m)
		}
		if m.Depth > idx.maxDepth {
			idx.maxDepth = m.Depth
		}
	}
	for _, kids := range idx.children {
		slices.SortFunc(kids, func(a, b *models.Message) int { return compareMessages(*a, *b) })
	}
	return idx
}

func (idx *treeIndex) integrityErr(id uuid.UUID, format string, args ...any) error {
	return &domain.TreeIntegrityError{
		TreeID:    idx.treeID.String(),
		MessageID: id.String(),
		Reason:    fmt.Sprintf(format, args...),
	}
}

// ancestorPath walks parent links from target up to the root and returns root..target.
// The walk is bounded by the tree's maximum stored depth plus margin hops.
func (idx *treeIndex) ancestorPath(target *models.Message, margin int) ([]models.Message, error) {
	maxHops := idx.maxDepth + margin
	path := []models.Message{*target}
	seen := map[uuid.UUID]bool{target.ID: true}

	cur := target
	for cur.ParentID != nil {
		if len(path) > maxHops {
			return nil, idx.integrityErr(target.ID, "parent chain exceeds %d hops", maxHops)
		}
		parent, ok := idx.byID[*cur.ParentID]
		if !ok {
			return nil, idx.integrityErr(cur.ID, "parent %s not in tree", cur.ParentID)
		}
		if seen[parent.ID] {
			return nil, idx.integrityErr(target.ID, "cycle at %s", parent.ID)
		}
		seen[parent.ID] = true
		path = append(path, *parent)
		cur = parent
	}

	if cur.ID != idx.treeID || cur.MessageTreeID != idx.treeID {
		return nil, idx.integrityErr(target.ID, "chain ends at %s which is not the tree root", cur.ID)
	}

	slices.Reverse(path)
	return path, nil
}

// descendants returns top followed by its subtree in breadth-first order, siblings by
// (created_date, id). Deleted messages are traversed but left out of the result.
func (idx *treeIndex) descendants(top *models.Message) []models.Message {
	out := []models.Message{*top}
	visited := map[uuid.UUID]bool{top.ID: true}
	queue := []uuid.UUID{top.ID}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, child := range idx.children[id] {
			if visited[child.ID] {
				continue
			}
			visited[child.ID] = true
			queue = append(queue, child.ID)
			if !child.Deleted {
				out = append(out, *child)
			}
		}
	}
	return out
}

func (idx *treeIndex) visibleChildren(id uuid.UUID) []models.Message {
	out := []models.Message{}
	for _, child := range idx.children[id] {
		if !child.Deleted {
			out = append(out, *child)
		}
	}
	return out
}

// depths computes the ancestor-walk length of every message, failing on cycles and
// dangling parents
func (idx *treeIndex) depths() (map[uuid.UUID]int, error) {
	depth := make(map[uuid.UUID]int, len(idx.byID))
	onStack := map[uuid.UUID]bool{}

	for id := range idx.byID {
		var stack []*models.Message
		cur := idx.byID[id]
		base := -1
		for {
			if d, ok := depth[cur.ID]; ok {
				base = d
				break
			}
			if onStack[cur.ID] {
				return nil, idx.integrityErr(cur.ID, "cycle in parent chain")
			}
			onStack[cur.ID] = true
			stack = append(stack, cur)
			if cur.ParentID == nil {
				if cur.ID != idx.treeID {
					return nil, idx.integrityErr(cur.ID, "second root in tree")
				}
				break
			}
			parent, ok := idx.byID[*cur.ParentID]
			if !ok {
				return nil, idx.integrityErr(cur.ID, "parent %s not in tree", cur.ParentID)
			}
			cur = parent
		}
		for i := len(stack) - 1; i >= 0; i-- {
			base++
			depth[stack[i].ID] = base
			delete(onStack, stack[i].ID)
		}
	}
	return depth, nil
}

// deepestLeaf picks the leaf (non-deleted, no non-deleted children) with the longest
// ancestor path; ties go to the earliest created_date, then id
func (idx *treeIndex) deepestLeaf() (*models.Message, error) {
	depth, err := idx.depths()
	if err != nil {
		return nil, err
	}

	var best *models.Message
	for _, m := range idx.byID {
		if m.Deleted || len(idx.visibleChildren(m.ID)) > 0 {
			continue
		}
		if best == nil ||
			depth[m.ID] > depth[best.ID] ||
			(depth[m.ID] == depth[best.ID] && compareMessages(*m, *best) < 0) {
			best = m
		}
	}
	return best, nil
}

// mostChildren picks the non-deleted message with the most non-deleted children; ties go
// to the earliest created_date, then id. Without any replies the root wins.
func (idx *treeIndex) mostChildren() (*models.Message, []models.Message, error) {
	var (
		best     *models.Message
		bestKids []models.Message
	)
	for _, m := range idx.byID {
		if m.Deleted {
			continue
		}
		kids := idx.visibleChildren(m.ID)
		if len(kids) == 0 {
			continue
		}
		if best == nil ||
			len(kids) > len(bestKids) ||
			(len(kids) == len(bestKids) && compareMessages(*m, *best) < 0) {
			best, bestKids = m, kids
		}
	}

	if best == nil {
		root, ok := idx.byID[idx.treeID]
		if !ok {
			return nil, nil, idx.integrityErr(idx.treeID, "tree root missing")
		}
		return root, []models.Message{}, nil
	}
	return best, bestKids, nil
}
