package store

import "github.com/qninhdt/c3/server/internal/models"

// Zoom limits for the command map camera
const (
	MinZoom = 0.5
	MaxZoom = 3.0
)

// Camera is the command map viewpoint
type Camera struct {
	Position models.Position3D `json:"position"`
	Target   models.Position3D `json:"target"`
	Zoom     float64           `json:"zoom"`
}

// DefaultCamera looks down at the origin from above and behind
func DefaultCamera() Camera {
	return Camera{
		Position: models.Position3D{X: 0, Y: 50, Z: 50},
		Zoom:     1,
	}
}

// PanelTab is the tab shown in the side panel
type PanelTab string

const (
	TabAgents   PanelTab = "agents"
	TabMissions PanelTab = "missions"
	TabSettings PanelTab = "settings"
)

// UI is the dashboard chrome state
type UI struct {
	SidebarOpen       bool     `json:"sidebar_open"`
	RightPanelOpen    bool     `json:"right_panel_open"`
	ActivePanelTab    PanelTab `json:"active_panel_tab"`
	ShowMinimap       bool     `json:"show_minimap"`
	ShowShortcuts     bool     `json:"show_shortcuts"`
	CreateMissionOpen bool     `json:"create_mission_open"`
}

// DefaultUI opens the sidebar and minimap
func DefaultUI() UI {
	return UI{
		SidebarOpen:    true,
		ActivePanelTab: TabAgents,
		ShowMinimap:    true,
	}
}

// Camera returns the camera state
func (s *Store) Camera() Camera {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.camera
}

// SetCameraPosition moves the camera
func (s *Store) SetCameraPosition(p models.Position3D) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.camera.Position = p
}

// SetCameraTarget points the camera
func (s *Store) SetCameraTarget(p models.Position3D) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.camera.Target = p
}

// SetCameraZoom sets the zoom, clamped to [MinZoom, MaxZoom]
func (s *Store) SetCameraZoom(z float64) {
	if z < MinZoom {
		z = MinZoom
	}
	if z > MaxZoom {
		z = MaxZoom
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.camera.Zoom = z
}

// ResetCamera restores the default camera
func (s *Store) ResetCamera() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.camera = DefaultCamera()
}

// UI returns the chrome state
func (s *Store) UI() UI {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ui
}

// ToggleSidebar flips the sidebar
func (s *Store) ToggleSidebar() { s.updateUI(func(u *UI) { u.SidebarOpen = !u.SidebarOpen }) }

// ToggleRightPanel flips the right panel
func (s *Store) ToggleRightPanel() { s.updateUI(func(u *UI) { u.RightPanelOpen = !u.RightPanelOpen }) }

// ToggleMinimap flips the minimap
func (s *Store) ToggleMinimap() { s.updateUI(func(u *UI) { u.ShowMinimap = !u.ShowMinimap }) }

// ToggleShortcuts flips the shortcut help overlay
func (s *Store) ToggleShortcuts() { s.updateUI(func(u *UI) { u.ShowShortcuts = !u.ShowShortcuts }) }

// SetActivePanelTab switches the side panel tab
func (s *Store) SetActivePanelTab(tab PanelTab) { s.updateUI(func(u *UI) { u.ActivePanelTab = tab }) }

// SetCreateMissionOpen shows or hides the create-mission form
func (s *Store) SetCreateMissionOpen(open bool) {
	s.updateUI(func(u *UI) { u.CreateMissionOpen = open })
}

func (s *Store) updateUI(fn func(*UI)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.ui)
}
