package bitstream

import "strings"

// ProfileLevel is a codec profile, level and tier by their names in the
// codec standard, e.g. {"High", "4.1", ""} for H.264 or
// {"Main10", "5.1", "Main"} for H.265. Fields the codec or the parsed
// syntax does not define are empty.
type ProfileLevel struct {
	Profile string
	Level   string
	Tier    string
}

// String joins the non-empty fields, e.g. "Main10@5.1 (High tier)".
func (pl ProfileLevel) String() string {
	var b strings.Builder
	b.WriteString(pl.Profile)
	if pl.Level != "" {
		b.WriteString("@")
		b.WriteString(pl.Level)
	}
	if pl.Tier != "" {
		b.WriteString(" (")
		b.WriteString(pl.Tier)
		b.WriteString(" tier)")
	}
	return b.String()
}
