package njs

// ObjectTag identifies the native type wrapped by a JS object.
type ObjectTag uint32

// NativeTag is the slot-1 encoding of an ObjectTag.
type NativeTag uint64

const (
	nativeTagShift  = 2
	nativeTagMarker = 0x2
	nativeTagMask   = 0x3

	// MaxObjectTag is the largest tag. Every uint32 survives the encoding.
	MaxObjectTag ObjectTag = 1<<32 - 1
)

// NativeTagFromObjectTag encodes tag. The low bits carry a marker that no
// aligned pointer has, so a slot holding an address is never mistaken for
// a tag.
func NativeTagFromObjectTag(tag ObjectTag) NativeTag {
	return NativeTag(uint64(tag)<<nativeTagShift | nativeTagMarker)
}

// ObjectTagFromNativeTag decodes a value produced by NativeTagFromObjectTag.
func ObjectTagFromNativeTag(n NativeTag) ObjectTag {
	return ObjectTag(uint64(n) >> nativeTagShift)
}

// IsNativeTag reports whether n carries the tag marker.
func IsNativeTag(n NativeTag) bool {
	return uint64(n)&nativeTagMask == nativeTagMarker
}
