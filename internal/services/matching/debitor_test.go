package matching

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"club-reconciliation-backend/internal/models"
)

func TestDebitorMatcher_SplitTokens(t *testing.T) {
	court := models.Debitor{ID: uuid.New(), Name: "Landesoberkasse", Token1: "AZ 12 M", Token2: "345/23"}
	m, err := NewDebitorMatcher([]models.Debitor{court})
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len())

	// Token wrapped across reference columns.
	d, ok := m.Match("Pfaendung AZ 12 M 34 5/23")
	require.True(t, ok)
	assert.Equal(t, court.ID, d.ID)

	_, ok = m.Match("Pfaendung AZ 12 M 999/23")
	assert.False(t, ok)
}

func TestDebitorMatcher_LiteralTokens(t *testing.T) {
	// Regex metacharacters in tokens are matched literally.
	d := models.Debitor{ID: uuid.New(), Token1: "A.B*(1)"}
	m, err := NewDebitorMatcher([]models.Debitor{d})
	require.NoError(t, err)

	_, ok := m.Match("ref a.b*(1) x")
	assert.True(t, ok)
	_, ok = m.Match("ref AXB(1)")
	assert.False(t, ok)
}

func TestDebitorMatcher_FirstWins(t *testing.T) {
	first := models.Debitor{ID: uuid.New(), Token1: "KASSE"}
	second := models.Debitor{ID: uuid.New(), Token1: "Landes", Token2: "kasse"}
	m, err := NewDebitorMatcher([]models.Debitor{first, second})
	require.NoError(t, err)

	d, ok := m.Match("Landes Kasse")
	require.True(t, ok)
	assert.Equal(t, first.ID, d.ID)
}

func TestDebitorMatcher_SkipsEmpty(t *testing.T) {
	m, err := NewDebitorMatcher([]models.Debitor{{ID: uuid.New(), Token1: "  ", Token2: ""}})
	require.NoError(t, err)
	assert.Zero(t, m.Len())

	_, ok := m.Match("anything")
	assert.False(t, ok)
}

func TestDebitorMatcher_Nil(t *testing.T) {
	var m *DebitorMatcher
	_, ok := m.Match("anything")
	assert.False(t, ok)
	assert.Zero(t, m.Len())
}

func TestDebitorMatcher_SnapshotIsolation(t *testing.T) {
	debitors := []models.Debitor{{ID: uuid.New(), Token1: "OLD"}}
	m, err := NewDebitorMatcher(debitors)
	require.NoError(t, err)

	debitors[0].Token1 = "NEW"
	_, ok := m.Match("old token")
	assert.True(t, ok)
	_, ok = m.Match("new token")
	assert.False(t, ok)
}
