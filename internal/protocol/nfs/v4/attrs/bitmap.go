package attrs

// MaxBitmapWords bounds request bitmaps accepted from clients.
const MaxBitmapWords = 8

// IsBitSet reports whether attribute bit is set in bitmap.
func IsBitSet(bitmap []uint32, bit uint32) bool {
	word := bit / 32
	if word >= uint32(len(bitmap)) {
		return false
	}
	return bitmap[word]&(1<<(bit%32)) != 0
}

// SetBit sets attribute bit, growing bitmap as needed.
func SetBit(bitmap *[]uint32, bit uint32) {
	word := int(bit / 32)
	for len(*bitmap) <= word {
		*bitmap = append(*bitmap, 0)
	}
	(*bitmap)[word] |= 1 << (bit % 32)
}

// Intersect returns the bits set in both a and b, trimmed of trailing zero
// words.
func Intersect(a, b []uint32) []uint32 {
	n := min(len(a), len(b))
	out := make([]uint32, n)
	for i := range out {
		out[i] = a[i] & b[i]
	}
	for len(out) > 0 && out[len(out)-1] == 0 {
		out = out[:len(out)-1]
	}
	return out
}

// Bits lists the set bits of bitmap in ascending order.
func Bits(bitmap []uint32) []uint32 {
	var bits []uint32
	for w, word := range bitmap {
		for i := uint32(0); i < 32; i++ {
			if word&(1<<i) != 0 {
				bits = append(bits, uint32(w)*32+i)
			}
		}
	}
	return bits
}
