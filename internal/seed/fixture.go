// Package seed loads message trees from YAML fixtures into any message store.
package seed

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"msgtree/internal/config"
	"msgtree/internal/domain"
	"msgtree/internal/domain/models"
)

// Fixture is a set of users and message trees.
// Messages are stamped Start, Start+Step, ... in depth-first order.
type Fixture struct {
	APIClientID uuid.UUID     `yaml:"api_client_id"`
	Start       time.Time     `yaml:"start"`
	Step        time.Duration `yaml:"step"`
	Users       []UserFixture `yaml:"users"`
	Trees       []Node        `yaml:"trees"`
}

// UserFixture is an author identity referenced by Node.User
type UserFixture struct {
	ID          *uuid.UUID `yaml:"id"`
	Username    string     `yaml:"username"`
	AuthMethod  string     `yaml:"auth_method"`
	DisplayName string     `yaml:"display_name"`
}

// Node is one message and its replies
type Node struct {
	ID          *uuid.UUID `yaml:"id"`
	APIClientID *uuid.UUID `yaml:"api_client_id"`
	User        string     `yaml:"user"`
	Role        string     `yaml:"role"`
	Text        string     `yaml:"text"`
	Lang        string     `yaml:"lang"`
	Reviewed    bool       `yaml:"reviewed"`
	ReviewCount int        `yaml:"review_count"`
	Deleted     bool       `yaml:"deleted"`
	Synthetic   bool       `yaml:"synthetic"`
	ModelName   *string    `yaml:"model_name"`
	Replies     []Node     `yaml:"replies"`
}

// LoadFile reads a fixture from a YAML file
func LoadFile(path string) (*Fixture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes and validates a YAML fixture
func Load(r io.Reader) (*Fixture, error) {
	var fx Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fx); err != nil {
		return nil, fmt.Errorf("%w: decode fixture: %v", domain.ErrValidation, err)
	}
	if fx.Start.IsZero() {
		fx.Start = time.Now().UTC().Truncate(time.Second)
	}
	if fx.Step <= 0 {
		fx.Step = time.Second
	}
	if err := fx.validate(); err != nil {
		return nil, err
	}
	return &fx, nil
}

func (fx *Fixture) validate() error {
	known := make(map[string]bool, len(fx.Users))
	for i := range fx.Users {
		u := &fx.Users[i]
		err := validation.ValidateStruct(u,
			validation.Field(&u.Username, validation.Required, validation.Length(1, config.MaxUsernameLength)),
			validation.Field(&u.AuthMethod, validation.Required),
		)
		if err != nil {
			return fmt.Errorf("%w: user %d: %v", domain.ErrValidation, i, err)
		}
		if known[u.Username] {
			return fmt.Errorf("%w: duplicate user %q", domain.ErrValidation, u.Username)
		}
		known[u.Username] = true
	}

	var walk func(n *Node, path string) error
	walk = func(n *Node, path string) error {
		err := validation.ValidateStruct(n,
			validation.Field(&n.Role, validation.Required, validation.In(models.RolePrompter, models.RoleAssistant)),
			validation.Field(&n.Text, validation.Required),
		)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", domain.ErrValidation, path, err)
		}
		if n.User != "" && !known[n.User] {
			return fmt.Errorf("%w: %s: unknown user %q", domain.ErrValidation, path, n.User)
		}
		if n.APIClientID == nil && fx.APIClientID == uuid.Nil {
			return fmt.Errorf("%w: %s: api_client_id is required", domain.ErrValidation, path)
		}
		for i := range n.Replies {
			if err := walk(&n.Replies[i], fmt.Sprintf("%s.replies[%d]", path, i)); err != nil {
				return err
			}
		}
		return nil
	}
	for i := range fx.Trees {
		if err := walk(&fx.Trees[i], fmt.Sprintf("trees[%d]", i)); err != nil {
			return err
		}
	}
	return nil
}

//go:embed fixtures/sample.yaml
var sampleFixture []byte

// Sample returns the bundled demonstration fixture
func Sample() (*Fixture, error) {
	return Load(bytes.NewReader(sampleFixture))
}
