package watcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilters(t *testing.T) {
	testCases := []struct {
		path   string
		hidden bool
		temp   bool
	}{
		{"/site/src/styles/main.scss", true, true},
		{"/site/src/.git/HEAD", false, true},
		{"/site/src/styles/.main.scss.swp", false, false},
		{"/site/src/styles/main.scss~", true, false},
		{"/site/src/styles/4913", true, false},
		{"/site/src/templates/.#index.twig", false, false},
		{"../site/src/a.js", true, true},
	}

	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			assert.Equal(t, tc.hidden, NoHiddenFilter(tc.path))
			assert.Equal(t, tc.temp, NoEditorTempFilter(tc.path))
		})
	}
}

func TestValidatePath(t *testing.T) {
	_, err := validatePath("src/../../etc")
	assert.Error(t, err)

	_, err = validatePath("")
	assert.Error(t, err)

	p, err := validatePath("./src/styles/")
	assert.NoError(t, err)
	assert.Equal(t, "src/styles", p)
}
