package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSimpleFilters(t *testing.T) {
	tests := []struct {
		input string
		typ   FilterType
		attr  string
		value string
	}{
		{"(name=alice)", FilterEquality, "name", "alice"},
		{"name=alice", FilterEquality, "name", "alice"},
		{"(uidnumber>=100)", FilterGreaterOrEqual, "uidnumber", "100"},
		{"(uidnumber<=100)", FilterLessOrEqual, "uidnumber", "100"},
		{"(mail=*)", FilterPresent, "mail", ""},
		{`(name=a\2ab)`, FilterEquality, "name", "a*b"},
		{`(description=\28x\29)`, FilterEquality, "description", "(x)"},
		{"(name=)", FilterEquality, "name", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			f, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.typ, f.Type)
			assert.Equal(t, tt.attr, f.Attribute)
			assert.Equal(t, tt.value, f.Value)
		})
	}
}

func TestParseSubstring(t *testing.T) {
	tests := []struct {
		input   string
		initial string
		any     []string
		final   string
	}{
		{"(name=al*)", "al", []string{}, ""},
		{"(name=*ce)", "", []string{}, "ce"},
		{"(name=*li*)", "", []string{"li"}, ""},
		{"(name=a*l*i*e)", "a", []string{"l", "i"}, "e"},
		{"(name=a**e)", "a", []string{}, "e"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			f, err := Parse(tt.input)
			require.NoError(t, err)
			require.Equal(t, FilterSubstring, f.Type)
			assert.Equal(t, "name", f.Attribute)
			assert.Equal(t, tt.initial, f.Substring.Initial)
			assert.Equal(t, tt.final, f.Substring.Final)
			if len(tt.any) == 0 {
				assert.Empty(t, f.Substring.Any)
			} else {
				assert.Equal(t, tt.any, f.Substring.Any)
			}
		})
	}
}

func TestParseComposite(t *testing.T) {
	f, err := Parse("(&(class=account)(|(name=alice)(name=bob))(!(enabled=false)))")
	require.NoError(t, err)

	require.Equal(t, FilterAnd, f.Type)
	require.Len(t, f.Children, 3)
	assert.Equal(t, FilterEquality, f.Children[0].Type)

	or := f.Children[1]
	require.Equal(t, FilterOr, or.Type)
	assert.Len(t, or.Children, 2)

	not := f.Children[2]
	require.Equal(t, FilterNot, not.Type)
	assert.Equal(t, "enabled", not.Child.Attribute)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		input string
		err   error
	}{
		{"", ErrEmptyFilter},
		{"   ", ErrEmptyFilter},
		{"()", ErrEmptyFilter},
		{"(&)", ErrInvalidFilter},
		{"(&(a=b)", ErrUnbalancedParens},
		{"(a=b))", ErrInvalidFilter},
		{"(a=b)(c=d)", ErrInvalidFilter},
		{"(=b)", ErrMissingAttribute},
		{"(novalue)", ErrInvalidFilter},
		{`(a=\2)`, ErrInvalidEscape},
		{`(a=\zz)`, ErrInvalidEscape},
		{"(&x)", ErrInvalidFilter},
		{"(a~=b)", ErrInvalidFilter},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := Parse(tt.input)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestStringRoundTrip(t *testing.T) {
	for _, s := range []string{
		"(name=alice)",
		"(&(class=account)(!(enabled=false)))",
		"(|(mail=*)(uidnumber>=10)(uidnumber<=20))",
		"(name=a*l*e)",
		"(name=*li*)",
		`(name=a\2ab)`,
	} {
		f, err := Parse(s)
		require.NoError(t, err, s)
		assert.Equal(t, s, f.String())
	}
}

func TestFromAttributes(t *testing.T) {
	f := FromAttributes(map[string][]string{
		"name":  {"alice"},
		"class": {"account", "person"},
	})
	assert.Equal(t, "(&(class=account)(class=person)(name=alice))", f.String())
}

func TestMustParsePanics(t *testing.T) {
	assert.Panics(t, func() { MustParse("(") })
	assert.NotPanics(t, func() { MustParse("(a=b)") })
}
