package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLabelFromSlug(t *testing.T) {
	cases := map[string]string{
		"security.evidence": "Security Evidence",
		"people.person":     "People Person",
		"view":              "View",
		"settings.users":    "Settings Users",
		"a-b_c":             "A B C",
	}
	for slug, want := range cases {
		require.Equal(t, want, labelFromSlug(slug), "slug %q", slug)
	}
}

func TestSeedVocabularyUnique(t *testing.T) {
	modules := make(map[string]struct{})
	for _, m := range seedModules {
		_, dup := modules[m.slug]
		require.False(t, dup, "duplicate module %s", m.slug)
		require.NotEmpty(t, m.category)
		modules[m.slug] = struct{}{}
	}

	actions := make(map[string]struct{})
	for _, a := range seedActions {
		_, dup := actions[a.slug]
		require.False(t, dup, "duplicate action %s", a.slug)
		actions[a.slug] = struct{}{}
	}
}
