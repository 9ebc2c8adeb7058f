package native

// ContextMenu is the verb handler for one shell item.
type ContextMenu struct {
	object
	target string
	folder bool
}

// Verbs lists the canonical verbs the menu offers for its target.
func (m *ContextMenu) Verbs() ([]string, Status) {
	if st := m.enter(); st.Failed() {
		return nil, st
	}
	verbs := []string{"open"}
	if m.folder {
		verbs = append(verbs, "explore", "find")
	}
	verbs = append(verbs, "cut", "copy", "delete", "rename", "properties")
	return verbs, StatusOK
}

// Target returns the path of the item the menu was created for.
func (m *ContextMenu) Target() string {
	return m.target
}
