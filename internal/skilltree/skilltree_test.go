package skilltree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/ivaspavlo/staff-management-system/internal/models"
)

func skill(name string, parent *models.Skill) models.Skill {
	s := models.Skill{ID: bson.NewObjectID(), Name: name, Priority: 1}
	if parent != nil {
		id := parent.ID
		s.Parent = &id
	}
	return s
}

func rating(s models.Skill, value int) models.EmployeeSkill {
	return models.EmployeeSkill{ID: bson.NewObjectID(), Skill: s.ID, Employee: bson.NewObjectID(), Value: &value}
}

var dedupe = Options{DedupeRootsByName: true}

func TestStructureEmployeeSkills_KeepsDepth(t *testing.T) {
	lang := skill("Languages", nil)
	goLang := skill("Go", &lang)
	generics := skill("Generics", &goLang)
	r := rating(generics, 7)

	tree, err := StructureEmployeeSkills([]models.Skill{lang, goLang, generics}, []models.EmployeeSkill{r}, dedupe)
	require.NoError(t, err)
	require.Len(t, tree, 1)

	root := tree[0]
	assert.Equal(t, "Languages", root.Name)
	require.Len(t, root.Childs, 1)
	require.Len(t, root.Childs[0].Childs, 1)

	leaf := root.Childs[0].Childs[0]
	assert.Equal(t, "Generics", leaf.Name)
	require.NotNil(t, leaf.Value)
	assert.Equal(t, 7, *leaf.Value)
	assert.Equal(t, r.ID, leaf.ID)
	assert.Equal(t, generics.ID, *leaf.Skill)
}

func TestStructureEmployeeSkills_SingleRootForSharedAncestor(t *testing.T) {
	lang := skill("Languages", nil)
	goLang := skill("Go", &lang)
	rust := skill("Rust", &lang)

	tree, err := StructureEmployeeSkills(
		[]models.Skill{lang, goLang, rust},
		[]models.EmployeeSkill{rating(goLang, 5), rating(rust, 3)},
		dedupe,
	)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	assert.Len(t, tree[0].Childs, 2)
}

func TestStructureEmployeeSkills_RootsDedupedByName(t *testing.T) {
	first := skill("Soft skills", nil)
	second := skill("Soft skills", nil)
	a := skill("Mentoring", &first)
	b := skill("Speaking", &second)
	skills := []models.Skill{first, second, a, b}
	ratings := []models.EmployeeSkill{rating(a, 4), rating(b, 6)}

	tree, err := StructureEmployeeSkills(skills, ratings, dedupe)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	assert.Len(t, tree[0].Childs, 2)

	tree, err = StructureEmployeeSkills(skills, ratings, Options{})
	require.NoError(t, err)
	assert.Len(t, tree, 2)
}

func TestStructureEmployeeSkills_DropsOrphans(t *testing.T) {
	ghost := skill("Ghost", nil)
	orphan := skill("Orphan", &ghost)

	tree, err := StructureEmployeeSkills([]models.Skill{orphan}, []models.EmployeeSkill{rating(orphan, 2)}, dedupe)
	require.NoError(t, err)
	assert.Empty(t, tree)
}

func TestStructureEmployeeSkills_RatedRootKeepsChildren(t *testing.T) {
	lang := skill("Languages", nil)
	goLang := skill("Go", &lang)

	tree, err := StructureEmployeeSkills(
		[]models.Skill{lang, goLang},
		[]models.EmployeeSkill{rating(lang, 9), rating(goLang, 5)},
		Options{DedupeRootsByName: true, RateRoots: true},
	)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	require.NotNil(t, tree[0].Value)
	assert.Equal(t, 9, *tree[0].Value)
	require.Len(t, tree[0].Childs, 1)
	assert.Equal(t, "Go", tree[0].Childs[0].Name)
}

func TestStructureEmployeeSkills_RootsEmittedBare(t *testing.T) {
	lang := skill("Languages", nil)
	goLang := skill("Go", &lang)

	tree, err := StructureEmployeeSkills(
		[]models.Skill{lang, goLang},
		[]models.EmployeeSkill{rating(lang, 9), rating(goLang, 5)},
		DefaultOptions(),
	)
	require.NoError(t, err)
	require.Len(t, tree, 1)

	root := tree[0]
	assert.Equal(t, lang.ID, root.ID)
	assert.Nil(t, root.Value)
	assert.Nil(t, root.Skill)
	require.Len(t, root.Childs, 1)
	require.NotNil(t, root.Childs[0].Value)
	assert.Equal(t, 5, *root.Childs[0].Value)

	tree, err = StructureEmployeeSkills([]models.Skill{lang}, []models.EmployeeSkill{rating(lang, 9)}, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, tree, 1)
	assert.Nil(t, tree[0].Value)
}

func TestStructureEmployeeSkills_ParentsMergedByName(t *testing.T) {
	frontend := skill("Frontend", nil)
	backend := skill("Backend", nil)
	otherFront := skill("Other", &frontend)
	otherBack := skill("Other", &backend)
	jquery := skill("jQuery", &otherFront)
	perl := skill("Perl", &otherBack)
	skills := []models.Skill{frontend, backend, otherFront, otherBack, jquery, perl}
	ratings := []models.EmployeeSkill{rating(jquery, 4), rating(perl, 6)}

	tree, err := StructureEmployeeSkills(skills, ratings, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, tree, 1)
	assert.Equal(t, "Frontend", tree[0].Name)
	require.Len(t, tree[0].Childs, 1)
	other := tree[0].Childs[0]
	assert.Equal(t, "Other", other.Name)
	require.Len(t, other.Childs, 2)
	assert.Equal(t, "jQuery", other.Childs[0].Name)
	assert.Equal(t, "Perl", other.Childs[1].Name)

	tree, err = StructureEmployeeSkills(skills, ratings, dedupe)
	require.NoError(t, err)
	require.Len(t, tree, 2)
	assert.Equal(t, "Frontend", tree[0].Name)
	assert.Equal(t, "Backend", tree[1].Name)
	assert.Len(t, tree[0].Childs[0].Childs, 1)
	assert.Len(t, tree[1].Childs[0].Childs, 1)
}

func TestStructureEmployeeSkills_NoDuplicateChildren(t *testing.T) {
	lang := skill("Languages", nil)
	goLang := skill("Go", &lang)
	generics := skill("Generics", &goLang)
	channels := skill("Channels", &goLang)

	tree, err := StructureEmployeeSkills(
		[]models.Skill{lang, goLang, generics, channels},
		[]models.EmployeeSkill{rating(generics, 5), rating(channels, 6)},
		dedupe,
	)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	require.Len(t, tree[0].Childs, 1)
	assert.Len(t, tree[0].Childs[0].Childs, 2)
}

func TestStructureEmployeeSkills_DetectsCycles(t *testing.T) {
	a := models.Skill{ID: bson.NewObjectID(), Name: "A"}
	b := models.Skill{ID: bson.NewObjectID(), Name: "B"}
	a.Parent = &b.ID
	b.Parent = &a.ID

	_, err := StructureEmployeeSkills([]models.Skill{a, b}, []models.EmployeeSkill{rating(a, 1)}, dedupe)
	assert.ErrorIs(t, err, ErrCyclicSkill)
}

func TestStructureEmployeeSkills_Empty(t *testing.T) {
	tree, err := StructureEmployeeSkills(nil, nil, dedupe)
	require.NoError(t, err)
	assert.NotNil(t, tree)
	assert.Empty(t, tree)
}

func TestStructureSkills(t *testing.T) {
	lang := skill("Languages", nil)
	goLang := skill("Go", &lang)
	rust := skill("Rust", &lang)
	tools := skill("Tools", nil)
	generics := skill("Generics", &goLang)

	tree := StructureSkills([]models.Skill{lang, goLang, rust, tools, generics})
	require.Len(t, tree, 2)
	assert.Equal(t, "Languages", tree[0].Name)
	assert.Equal(t, "Tools", tree[1].Name)
	require.Len(t, tree[0].Childs, 2)
	assert.Equal(t, "Go", tree[0].Childs[0].Name)
	assert.Equal(t, "Generics", tree[0].Childs[0].Childs[0].Name)
	assert.Empty(t, tree[1].Childs)
	assert.Nil(t, tree[0].Skill)
}
