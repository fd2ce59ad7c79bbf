package messages

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"msgtree/internal/domain"
	"msgtree/internal/domain/models"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// treeBuilder assembles in-memory trees for the algorithm tests
type treeBuilder struct {
	rows []models.Message
}

func (b *treeBuilder) add(name string, parent *models.Message, at int) *models.Message {
	msg := models.Message{
		ID:          uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)),
		Text:        name,
		CreatedDate: t0.Add(time.Duration(at) * time.Second),
	}
	if parent == nil {
		msg.MessageTreeID = msg.ID
	} else {
		pid := parent.ID
		msg.ParentID = &pid
		msg.MessageTreeID = parent.MessageTreeID
		msg.Depth = parent.Depth + 1
	}
	b.rows = append(b.rows, msg)
	return &b.rows[len(b.rows)-1]
}

func (b *treeBuilder) index(treeID uuid.UUID) *treeIndex {
	rows := append([]models.Message(nil), b.rows...)
	return newTreeIndex(treeID, rows)
}

func texts(messages []models.Message) []string {
	out := make([]string, len(messages))
	for i, m := range messages {
		out[i] = m.Text
	}
	return out
}

func assertTexts(t *testing.T, got []models.Message, want ...string) {
	t.Helper()
	g := texts(got)
	if len(g) != len(want) {
		t.Fatalf("got %v, want %v", g, want)
	}
	for i := range want {
		if g[i] != want[i] {
			t.Fatalf("got %v, want %v", g, want)
		}
	}
}

// exampleTree is R(100) -> A(101), B(102); A -> C(103)
func exampleTree() (*treeBuilder, map[string]uuid.UUID) {
	b := &treeBuilder{}
	ids := map[string]uuid.UUID{}
	r := b.add("R", nil, 100)
	ids["R"] = r.ID
	a := b.add("A", r, 101)
	ids["A"] = a.ID
	ids["B"] = b.add("B", r, 102).ID
	ids["C"] = b.add("C", a, 103).ID
	return b, ids
}

func TestAncestorPath(t *testing.T) {
	b, ids := exampleTree()
	idx := b.index(ids["R"])

	path, err := idx.ancestorPath(idx.byID[ids["C"]], 4)
	if err != nil {
		t.Fatalf("ancestorPath() error = %v", err)
	}
	assertTexts(t, path, "R", "A", "C")

	path, err = idx.ancestorPath(idx.byID[ids["R"]], 4)
	if err != nil {
		t.Fatalf("ancestorPath(root) error = %v", err)
	}
	assertTexts(t, path, "R")
}

func TestAncestorPathIntegrity(t *testing.T) {
	tests := []struct {
		name    string
		corrupt func(b *treeBuilder, ids map[string]uuid.UUID)
	}{
		{
			name: "cycle",
			corrupt: func(b *treeBuilder, ids map[string]uuid.UUID) {
				// A points at C, C points at A
				c := ids["C"]
				for i := range b.rows {
					if b.rows[i].ID == ids["A"] {
						b.rows[i].ParentID = &c
					}
				}
			},
		},
		{
			name: "dangling parent",
			corrupt: func(b *treeBuilder, ids map[string]uuid.UUID) {
				missing := uuid.New()
				for i := range b.rows {
					if b.rows[i].ID == ids["A"] {
						b.rows[i].ParentID = &missing
					}
				}
			},
		},
		{
			name: "root is not the tree id",
			corrupt: func(b *treeBuilder, ids map[string]uuid.UUID) {
				for i := range b.rows {
					if b.rows[i].ID == ids["R"] {
						b.rows[i].MessageTreeID = uuid.New()
					}
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, ids := exampleTree()
			tt.corrupt(b, ids)
			idx := b.index(ids["R"])

			_, err := idx.ancestorPath(idx.byID[ids["C"]], 4)
			var integrityErr *domain.TreeIntegrityError
			if !errors.As(err, &integrityErr) {
				t.Fatalf("error = %v, want TreeIntegrityError", err)
			}
			if !errors.Is(err, domain.ErrTreeIntegrity) {
				t.Errorf("errors.Is(err, ErrTreeIntegrity) = false")
			}
		})
	}
}

func TestAncestorPathHopBound(t *testing.T) {
	b := &treeBuilder{}
	root := b.add("R", nil, 0)
	prev := root
	for i := 1; i <= 5; i++ {
		prev = b.add(string(rune('a'+i)), prev, i)
	}
	// Stored depths understate the real chain
	for i := range b.rows {
		b.rows[i].Depth = 0
	}
	idx := b.index(root.ID)

	if _, err := idx.ancestorPath(idx.byID[prev.ID], 2); !errors.Is(err, domain.ErrTreeIntegrity) {
		t.Fatalf("error = %v, want ErrTreeIntegrity", err)
	}
	if _, err := idx.ancestorPath(idx.byID[prev.ID], 5); err != nil {
		t.Fatalf("ancestorPath() with enough margin error = %v", err)
	}
}

func TestDescendants(t *testing.T) {
	b, ids := exampleTree()
	idx := b.index(ids["R"])

	assertTexts(t, idx.descendants(idx.byID[ids["R"]]), "R", "A", "B", "C")
	assertTexts(t, idx.descendants(idx.byID[ids["A"]]), "A", "C")
	assertTexts(t, idx.descendants(idx.byID[ids["B"]]), "B")
}

func TestDescendantsSkipsDeletedButKeepsTheirSubtree(t *testing.T) {
	b, ids := exampleTree()
	for i := range b.rows {
		if b.rows[i].ID == ids["A"] {
			b.rows[i].Deleted = true
		}
	}
	idx := b.index(ids["R"])

	assertTexts(t, idx.descendants(idx.byID[ids["R"]]), "R", "B", "C")
}

func TestDescendantsSiblingOrder(t *testing.T) {
	b := &treeBuilder{}
	r := b.add("R", nil, 0)
	b.add("late", r, 9)
	b.add("early", r, 1)
	b.add("mid", r, 5)
	idx := b.index(r.ID)

	assertTexts(t, idx.descendants(idx.byID[r.ID]), "R", "early", "mid", "late")
}

func TestDeepestLeaf(t *testing.T) {
	b, ids := exampleTree()
	idx := b.index(ids["R"])

	leaf, err := idx.deepestLeaf()
	if err != nil {
		t.Fatalf("deepestLeaf() error = %v", err)
	}
	if leaf.ID != ids["C"] {
		t.Errorf("deepestLeaf() = %s, want C", leaf.Text)
	}
}

func TestDeepestLeafTieBreak(t *testing.T) {
	b := &treeBuilder{}
	r := b.add("R", nil, 0)
	x := b.add("X", r, 1)
	y := b.add("Y", r, 2)
	b.add("y-leaf", y, 3)
	b.add("x-leaf", x, 4)
	idx := b.index(r.ID)

	leaf, err := idx.deepestLeaf()
	if err != nil {
		t.Fatalf("deepestLeaf() error = %v", err)
	}
	if leaf.Text != "y-leaf" {
		t.Errorf("deepestLeaf() = %s, want y-leaf (earliest created)", leaf.Text)
	}
}

func TestDeepestLeafIgnoresDeletedChildren(t *testing.T) {
	b, ids := exampleTree()
	for i := range b.rows {
		if b.rows[i].ID == ids["C"] {
			b.rows[i].Deleted = true
		}
	}
	idx := b.index(ids["R"])

	leaf, err := idx.deepestLeaf()
	if err != nil {
		t.Fatalf("deepestLeaf() error = %v", err)
	}
	// A has no visible children left, so A and B tie at depth 1 and A is older
	if leaf.ID != ids["A"] {
		t.Errorf("deepestLeaf() = %s, want A", leaf.Text)
	}
}

func TestDeepestLeafCycle(t *testing.T) {
	b, ids := exampleTree()
	c := ids["C"]
	for i := range b.rows {
		if b.rows[i].ID == ids["A"] {
			b.rows[i].ParentID = &c
		}
	}
	idx := b.index(ids["R"])

	if _, err := idx.deepestLeaf(); !errors.Is(err, domain.ErrTreeIntegrity) {
		t.Fatalf("error = %v, want ErrTreeIntegrity", err)
	}
}

func TestMostChildren(t *testing.T) {
	b, ids := exampleTree()
	idx := b.index(ids["R"])

	parent, kids, err := idx.mostChildren()
	if err != nil {
		t.Fatalf("mostChildren() error = %v", err)
	}
	if parent.ID != ids["R"] {
		t.Errorf("parent = %s, want R", parent.Text)
	}
	assertTexts(t, kids, "A", "B")
}

func TestMostChildrenTieBreak(t *testing.T) {
	b := &treeBuilder{}
	r := b.add("R", nil, 0)
	x := b.add("X", r, 1)
	b.add("x1", x, 3)
	b.add("x2", x, 4)
	y := b.add("Y", r, 2)
	b.add("y1", y, 5)
	b.add("y2", y, 6)
	// R, X and Y all have two children; R is the oldest
	idx := b.index(r.ID)

	parent, _, err := idx.mostChildren()
	if err != nil {
		t.Fatalf("mostChildren() error = %v", err)
	}
	if parent.Text != "R" {
		t.Errorf("parent = %s, want R", parent.Text)
	}

	// Deleting one of R's replies leaves X and Y tied; X is older
	for i := range b.rows {
		if b.rows[i].Text == "Y" {
			b.rows[i].Deleted = true
		}
	}
	idx = b.index(r.ID)
	parent, kids, err := idx.mostChildren()
	if err != nil {
		t.Fatalf("mostChildren() error = %v", err)
	}
	if parent.Text != "X" {
		t.Errorf("parent = %s, want X", parent.Text)
	}
	assertTexts(t, kids, "x1", "x2")
}

func TestMostChildrenSingleRoot(t *testing.T) {
	b := &treeBuilder{}
	r := b.add("R", nil, 0)
	idx := b.index(r.ID)

	parent, kids, err := idx.mostChildren()
	if err != nil {
		t.Fatalf("mostChildren() error = %v", err)
	}
	if parent.ID != r.ID || len(kids) != 0 {
		t.Errorf("mostChildren() = %s with %d children, want root with none", parent.Text, len(kids))
	}
}
