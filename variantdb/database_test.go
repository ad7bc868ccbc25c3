package variantdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoversBasic(t *testing.T) {
	b := NewBuilder()
	b.Add(100, 101) // SNP at 100
	b.Add(200, 210) // indel-ish span
	db := b.Build()

	assert.True(t, db.Covers(100))
	assert.False(t, db.Covers(101))
	assert.True(t, db.Covers(205))
	assert.False(t, db.Covers(210))
	assert.False(t, db.Covers(50))
	assert.Equal(t, 2, db.Len())
}

func TestCoversOverlapping(t *testing.T) {
	b := NewBuilder()
	// Two overlapping intervals; neither alone covers 150 except the wider one.
	b.Add(140, 145)
	b.Add(100, 200)
	db := b.Build()

	assert.True(t, db.Covers(150))
	assert.True(t, db.Covers(142))
	assert.False(t, db.Covers(200))
}

func TestCoversUnsortedInput(t *testing.T) {
	b := NewBuilder()
	b.Add(300, 301)
	b.Add(50, 51)
	b.Add(150, 151)
	db := b.Build()

	assert.True(t, db.Covers(50))
	assert.True(t, db.Covers(150))
	assert.True(t, db.Covers(300))
	assert.False(t, db.Covers(151))
}

func TestCoversEmptyDatabase(t *testing.T) {
	db := NewBuilder().Build()
	assert.False(t, db.Covers(0))
	assert.Equal(t, 0, db.Len())
}
