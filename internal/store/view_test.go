package store

import "testing"

// TestCameraZoomClamp tests zoom clamping
func TestCameraZoomClamp(t *testing.T) {
	s := New(nil)

	s.SetCameraZoom(10)
	if s.Camera().Zoom != MaxZoom {
		t.Errorf("Expected zoom %v, got %v", MaxZoom, s.Camera().Zoom)
	}

	s.SetCameraZoom(0.1)
	if s.Camera().Zoom != MinZoom {
		t.Errorf("Expected zoom %v, got %v", MinZoom, s.Camera().Zoom)
	}

	s.SetCameraZoom(2)
	if s.Camera().Zoom != 2 {
		t.Errorf("Expected zoom 2, got %v", s.Camera().Zoom)
	}
}

// TestResetCamera tests the default camera
func TestResetCamera(t *testing.T) {
	s := New(nil)
	s.SetCameraZoom(2.5)
	s.SetCameraTarget(s.Camera().Position)

	s.ResetCamera()

	c := s.Camera()
	if c.Position.Y != 50 || c.Position.Z != 50 || c.Position.X != 0 {
		t.Errorf("Expected position (0,50,50), got %+v", c.Position)
	}

	if c.Target.X != 0 || c.Target.Y != 0 || c.Target.Z != 0 {
		t.Errorf("Expected target origin, got %+v", c.Target)
	}

	if c.Zoom != 1 {
		t.Errorf("Expected zoom 1, got %v", c.Zoom)
	}
}

// TestToggles tests the UI toggles
func TestToggles(t *testing.T) {
	s := New(nil)

	s.ToggleSidebar()
	s.ToggleMinimap()
	s.ToggleShortcuts()
	s.ToggleRightPanel()
	s.SetActivePanelTab(TabMissions)
	s.SetCreateMissionOpen(true)

	ui := s.UI()
	if ui.SidebarOpen {
		t.Error("Expected sidebar closed")
	}
	if ui.ShowMinimap {
		t.Error("Expected minimap hidden")
	}
	if !ui.ShowShortcuts || !ui.RightPanelOpen || !ui.CreateMissionOpen {
		t.Errorf("Expected shortcuts, right panel and form open, got %+v", ui)
	}
	if ui.ActivePanelTab != TabMissions {
		t.Errorf("Expected tab missions, got %s", ui.ActivePanelTab)
	}
}
