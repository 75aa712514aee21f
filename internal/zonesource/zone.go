package zonesource

// ContactZone is a timezone discovered in an address book, together with the
// first contact that referenced it. It decouples the UI from vCard parsing.
type ContactZone struct {
	// ID is a timezone identifier resolvable by engine.LoadZone.
	ID string

	// Contact is the display name (Formatted Name or Structured Name).
	Contact string
}

// Merge appends the imported zones to the configured secondary list, in
// import order, skipping identifiers that are already configured. The
// configured list itself is returned untouched, duplicates included.
func Merge(configured []string, imported []ContactZone) []string {
	out := append([]string(nil), configured...)

	seen := make(map[string]bool, len(configured))
	for _, id := range configured {
		seen[id] = true
	}
	for _, z := range imported {
		if seen[z.ID] {
			continue
		}
		seen[z.ID] = true
		out = append(out, z.ID)
	}
	return out
}
