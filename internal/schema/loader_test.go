package schema

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KilimcininKorOglu/obacore/internal/entry"
)

func TestDefaultSchema(t *testing.T) {
	s := Default()

	for _, class := range []string{"object", "extensibleobject", "tombstone", "account", "person", "group"} {
		assert.NotNil(t, s.GetObjectClass(class), class)
	}
	assert.Contains(t, s.IndexedAttributes(), "name")
	assert.Contains(t, s.IndexedAttributes(), "member")

	account := entry.New(1, map[string][]string{
		"class": {"account"},
		"uuid":  {uuid.NewString()},
		"name":  {"alice"},
		"mail":  {"alice@example.com"},
	})
	assert.NoError(t, s.Validate(account))

	person := entry.New(2, map[string][]string{
		"class": {"person"},
		"uuid":  {uuid.NewString()},
		"name":  {"bob"},
	})
	err := s.Validate(person)
	var v *Violation
	require.ErrorAs(t, err, &v)
	assert.Equal(t, "displayname", v.Attribute)
	assert.Equal(t, ReasonMissingRequired, v.Reason)

	tombstone := account.Tombstone()
	assert.NoError(t, s.Validate(tombstone))
}

func TestDefaultReturnsIndependentCopies(t *testing.T) {
	a := Default()
	require.NoError(t, a.AddAttributeType(NewAttributeType("shoesize", SyntaxInteger)))

	b := Default()
	assert.Nil(t, b.GetAttributeType("shoesize"))
}

func TestMerge(t *testing.T) {
	base := Default()

	merged, err := base.Merge([]byte(`
attributes:
  - name: employeeid
    syntax: integer
    indexed: true
classes:
  - name: employee
    extends: [person]
    must: [employeeid]
`))
	require.NoError(t, err)

	require.NotNil(t, merged.GetObjectClass("employee"))
	assert.Nil(t, base.GetObjectClass("employee"))

	cs, err := merged.Resolve("employee")
	require.NoError(t, err)
	assert.Equal(t, []string{"account", "employee", "object", "person"}, cs.Classes)
	assert.Equal(t, []string{"class", "displayname", "employeeid", "name", "uuid"}, cs.Required())

	_, err = base.Merge([]byte("classes:\n  - name: account\n"))
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "site.yaml")
	require.NoError(t, os.WriteFile(path, []byte("attributes:\n  - name: room\n    syntax: string\nclasses:\n  - name: office\n    must: [room]\n"), 0o600))

	s, err := LoadFile(path)
	require.NoError(t, err)
	assert.NotNil(t, s.GetObjectClass("office"))

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, ErrSchemaFileNotFound)

	s, err = Load(strings.NewReader(""))
	require.NoError(t, err)
	assert.Len(t, s.AttributeTypes, 2)
}
