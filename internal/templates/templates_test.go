package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/stagekit/internal/domain"
)

func TestTemplatesAreValid(t *testing.T) {
	list := List()
	require.Len(t, list, 10)

	for _, tpl := range list {
		t.Run(tpl.Name, func(t *testing.T) {
			require.NotEmpty(t, tpl.Items)
			stageSeen := false
			for _, it := range tpl.Items {
				require.NoError(t, it.Properties.Validate())
				switch it.Properties.Type() {
				case domain.TypeStage:
					stageSeen = true
				case domain.TypeTruss:
					assert.True(t, stageSeen, "truss must follow a stage")
				}
			}
		})
	}
}

func TestGet(t *testing.T) {
	tpl, err := Get("dj-booth")
	require.NoError(t, err)
	assert.Len(t, tpl.Items, 3)

	_, err = Get("rave")
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}
