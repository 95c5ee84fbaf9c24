package njs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNativeTag_RoundTrip(t *testing.T) {
	for _, tag := range []ObjectTag{0, 1, 0xFF, 0x200, 1 << 20, 1 << 30, 1<<31 + 7, 0xFFFFFFFF, MaxObjectTag} {
		n := NativeTagFromObjectTag(tag)
		assert.True(t, IsNativeTag(n), "tag %#x", tag)
		assert.Equal(t, tag, ObjectTagFromNativeTag(n))
	}
}

func TestNativeTag_PointerLikeValuesAreNotTags(t *testing.T) {
	for _, n := range []NativeTag{0, 8, 16, 0x7fff_0000_1000, 1} {
		assert.False(t, IsNativeTag(n), "%#x", uint64(n))
	}
}

func TestNativeTag_DistinctTagsStayDistinct(t *testing.T) {
	assert.NotEqual(t, NativeTagFromObjectTag(1), NativeTagFromObjectTag(2))
}

func TestNativeTag_HighTagsDoNotAliasLowOnes(t *testing.T) {
	assert.NotEqual(t, NativeTagFromObjectTag(0), NativeTagFromObjectTag(1<<30))
	assert.NotEqual(t, NativeTagFromObjectTag(1), NativeTagFromObjectTag(1<<31|1))
	assert.Equal(t, ObjectTag(0xFFFFFFFF), MaxObjectTag)
}
