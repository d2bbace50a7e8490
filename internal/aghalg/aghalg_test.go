package aghalg_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vrajesh2188/6lowpan-nd/internal/aghalg"
)

func TestCoalesce(t *testing.T) {
	assert.Equal(t, 5, aghalg.Coalesce(0, 5, 7))
	assert.Equal(t, 0, aghalg.Coalesce(0, 0))
}

func TestUniqChecker(t *testing.T) {
	uc := aghalg.UniqChecker[int]{}
	uc.Add(1, 2, 3)
	assert.NoError(t, uc.Validate())

	uc.Add(2)
	assert.Error(t, uc.Validate())
}
