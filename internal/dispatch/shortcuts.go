package dispatch

import "strings"

// KeyEvent is a key press forwarded by the dashboard
type KeyEvent struct {
	Key  string
	Ctrl bool
	Meta bool
	// InTextInput is set when focus is in a text field
	InTextInput bool
}

func (k KeyEvent) modified() bool { return k.Ctrl || k.Meta }

// HandleKey runs the shortcut bound to k and reports whether one matched.
// The caller should suppress the browser default when it returns true.
//
//	Escape      clear selection
//	Space       reset camera
//	Tab         toggle minimap
//	?           toggle shortcut help
//	b           toggle sidebar
//	Ctrl+A      select all idle agents
//	Ctrl+1..9   save selection as control group
//	1..9        recall control group
func (c *Controller) HandleKey(k KeyEvent) bool {
	if k.InTextInput {
		return false
	}

	key := strings.ToLower(k.Key)
	switch key {
	case "escape":
		c.sel.Clear()
		return true
	case " ":
		c.store.ResetCamera()
		return true
	case "tab":
		c.store.ToggleMinimap()
		return true
	case "?":
		c.store.ToggleShortcuts()
		return true
	case "b":
		c.store.ToggleSidebar()
		return true
	case "a":
		if k.modified() {
			c.SelectAllIdle()
			return true
		}
		return false
	}

	if len(key) == 1 && key[0] >= '1' && key[0] <= '9' {
		n := int(key[0] - '0')
		if k.modified() {
			c.SaveControlGroup(n)
		} else {
			c.RecallControlGroup(n)
		}
		return true
	}
	return false
}
