package ddns

// Detector remembers the last address published for each family.
//
// It is owned by a single Syncer and is not safe for concurrent use.
type Detector struct {
	last map[Family]string
}

func NewDetector() *Detector {
	return &Detector{last: map[Family]string{}}
}

// ShouldSync reports whether resolved is known and differs from the committed address.
func (d *Detector) ShouldSync(family Family, resolved string) bool {
	return resolved != "" && resolved != d.last[family]
}

// Commit records resolved as the published address.
// Empty values are ignored so a failed resolution never erases known state.
func (d *Detector) Commit(family Family, resolved string) {
	if resolved == "" {
		return
	}
	d.last[family] = resolved
}

// Last returns the committed address, or "" if nothing has been committed yet.
func (d *Detector) Last(family Family) string {
	return d.last[family]
}
