package database

import (
	"testing"

	modelspkg "duet/internal/models"

	"github.com/stretchr/testify/require"
)

func TestPersistentModels_IncludesGameSlot(t *testing.T) {
	found := false
	for _, model := range PersistentModels() {
		if _, ok := model.(*modelspkg.GameSlot); ok {
			found = true
			break
		}
	}
	require.True(t, found, "PersistentModels should include GameSlot")
}
