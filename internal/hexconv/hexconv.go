package hexconv

// Invalid marks bytes that aren't hex digits in the Halfbyte table.
const Invalid = 0xFF

// Halfbyte maps an ASCII hex digit onto its value. Everything else maps onto Invalid.
var Halfbyte = func() (table [256]byte) {
	for i := range table {
		table[i] = Invalid
	}

	for c := byte('0'); c <= '9'; c++ {
		table[c] = c - '0'
	}

	for c := byte('a'); c <= 'f'; c++ {
		table[c] = c - 'a' + 10
		table[c-'a'+'A'] = c - 'a' + 10
	}

	return table
}()

// Parse decodes a whole hex string. ok is false if any of the characters isn't a hex digit
// or the value doesn't fit into 64 bits.
func Parse[T ~string | ~[]byte](str T) (value uint64, ok bool) {
	if len(str) == 0 || len(str) > 16 {
		return 0, false
	}

	for i := 0; i < len(str); i++ {
		digit := Halfbyte[str[i]]
		if digit == Invalid {
			return 0, false
		}

		value = value<<4 | uint64(digit)
	}

	return value, true
}
