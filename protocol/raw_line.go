package protocol

// SplitRawLine splits a raw input line on commas, honoring backslash as an
// escape character. This mirrors the delimiting of the source datasets, where
// a literal comma inside a field is written as "\,".
func SplitRawLine(line string) []string {
	var fields []string
	var current []byte

	escaped := false
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case escaped:
			current = append(current, c)
			escaped = false
		case c == '\\':
			escaped = true
		case c == ',':
			fields = append(fields, string(current))
			current = current[:0]
		default:
			current = append(current, c)
		}
	}
	// A trailing backslash escapes nothing; keep it verbatim
	if escaped {
		current = append(current, '\\')
	}
	fields = append(fields, string(current))

	return fields
}
