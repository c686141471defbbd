package skilltree

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/ivaspavlo/staff-management-system/internal/models"
)

var ErrCyclicSkill = errors.New("cyclic skill hierarchy")

// Node is a skill with its children. When the skill is rated, the rating
// fields are merged in and ID holds the rating id.
type Node struct {
	ID        bson.ObjectID         `json:"_id"`
	Name      string                `json:"name"`
	Parent    *bson.ObjectID        `json:"parent,omitempty"`
	Priority  int                   `json:"priority"`
	Skill     *bson.ObjectID        `json:"skill,omitempty"`
	Employee  *bson.ObjectID        `json:"employee,omitempty"`
	Value     *int                  `json:"value,omitempty"`
	StartDate *time.Time            `json:"startDate,omitempty"`
	EndDate   *time.Time            `json:"endDate,omitempty"`
	History   []models.SkillHistory `json:"history,omitempty"`
	CreatedAt time.Time             `json:"createdAt,omitzero"`
	UpdatedAt time.Time             `json:"updatedAt,omitzero"`
	Childs    []*Node               `json:"childs,omitempty"`

	skillID bson.ObjectID
}

func newNode(s *models.Skill) *Node {
	return &Node{
		ID:        s.ID,
		Name:      s.Name,
		Parent:    s.Parent,
		Priority:  s.Priority,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
		skillID:   s.ID,
	}
}

func (n *Node) merge(r *models.EmployeeSkill) {
	skill, employee := r.Skill, r.Employee
	n.ID = r.ID
	n.Skill = &skill
	n.Employee = &employee
	n.Value = r.Value
	n.StartDate = r.StartDate
	n.EndDate = r.EndDate
	n.History = r.History
	n.CreatedAt = r.CreatedAt
	n.UpdatedAt = r.UpdatedAt
}

type Options struct {
	// DedupeRootsByName folds distinct root skills sharing a name into one
	// root node.
	DedupeRootsByName bool
	// MergeParentsByName keeps one node per parent name, so children of
	// distinct parents sharing a name end up under the same node.
	MergeParentsByName bool
	// RateRoots merges the rating of a rated root skill into its node.
	// Otherwise roots are emitted bare.
	RateRoots bool
}

// DefaultOptions folds roots and parents by name and emits roots bare.
func DefaultOptions() Options {
	return Options{DedupeRootsByName: true, MergeParentsByName: true}
}

type builder struct {
	opts   Options
	skills map[bson.ObjectID]*models.Skill
	nodes  map[bson.ObjectID]*Node
	byName map[string]*Node
	roots  []*Node
}

// StructureEmployeeSkills builds the forest of rated skills: every rated
// skill hangs under its ancestors up to a root. Skills whose ancestor chain
// breaks on an unknown parent are dropped.
func StructureEmployeeSkills(skills []models.Skill, ratings []models.EmployeeSkill, opts Options) ([]*Node, error) {
	b := &builder{
		opts:   opts,
		skills: make(map[bson.ObjectID]*models.Skill, len(skills)),
		nodes:  map[bson.ObjectID]*Node{},
		byName: map[string]*Node{},
	}
	for i := range skills {
		b.skills[skills[i].ID] = &skills[i]
	}

	for i := range skills {
		for j := range ratings {
			if ratings[j].Skill != skills[i].ID {
				continue
			}
			n := b.node(&skills[i], false)
			if skills[i].Parent != nil || opts.RateRoots {
				n.merge(&ratings[j])
			}
			visited := map[bson.ObjectID]bool{skills[i].ID: true}
			if err := b.attach(n, visited); err != nil {
				return nil, err
			}
		}
	}
	if b.roots == nil {
		return []*Node{}, nil
	}
	return b.roots, nil
}

// nameKey is the key s is folded under by name, if any.
func (b *builder) nameKey(s *models.Skill, asParent bool) (string, bool) {
	if s.Parent == nil {
		return "root:" + s.Name, b.opts.DedupeRootsByName
	}
	return "parent:" + s.Name, asParent && b.opts.MergeParentsByName
}

// node returns the single node representing s.
func (b *builder) node(s *models.Skill, asParent bool) *Node {
	key, byName := b.nameKey(s, asParent)
	if n, ok := b.nodes[s.ID]; ok {
		if _, seen := b.byName[key]; byName && !seen {
			b.byName[key] = n
		}
		return n
	}
	if byName {
		if n, ok := b.byName[key]; ok {
			b.nodes[s.ID] = n
			return n
		}
	}
	n := newNode(s)
	b.nodes[s.ID] = n
	if byName {
		b.byName[key] = n
	}
	return n
}

func (b *builder) attach(n *Node, visited map[bson.ObjectID]bool) error {
	if n.Parent == nil {
		if !slices.Contains(b.roots, n) {
			b.roots = append(b.roots, n)
		}
		return nil
	}
	parent, ok := b.skills[*n.Parent]
	if !ok {
		return nil
	}
	if visited[parent.ID] {
		return fmt.Errorf("%w: skill %s", ErrCyclicSkill, parent.ID.Hex())
	}
	visited[parent.ID] = true

	p := b.node(parent, true)
	if !slices.Contains(p.Childs, n) {
		p.Childs = append(p.Childs, n)
	}
	return b.attach(p, visited)
}

// StructureSkills arranges all skills top-down starting from the roots.
func StructureSkills(skills []models.Skill) []*Node {
	children := map[bson.ObjectID][]*models.Skill{}
	var roots []*models.Skill
	for i := range skills {
		s := &skills[i]
		if s.Parent == nil {
			roots = append(roots, s)
			continue
		}
		children[*s.Parent] = append(children[*s.Parent], s)
	}

	var build func(level []*models.Skill) []*Node
	build = func(level []*models.Skill) []*Node {
		out := make([]*Node, 0, len(level))
		for _, s := range level {
			n := newNode(s)
			n.Childs = build(children[s.ID])
			out = append(out, n)
		}
		return out
	}
	return build(roots)
}
