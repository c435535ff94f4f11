package tui

import (
	"strconv"

	"github.com/verte-zerg/tuibooth/internal/model"
)

// Settings screen bounds.
const (
	minCountdown = 1
	maxCountdown = 10
	maxWebcam    = 9
)

type settingItem struct {
	label  string
	value  func(model.Settings) string
	change func(s *model.Settings, delta int)
}

func settingItems() []settingItem {
	return []settingItem{
		{
			label:  "Camera simulation",
			value:  func(s model.Settings) string { return onOff(s.CameraSimulation) },
			change: func(s *model.Settings, _ int) { s.CameraSimulation = !s.CameraSimulation },
		},
		{
			label:  "Printer simulation",
			value:  func(s model.Settings) string { return onOff(s.PrinterSimulation) },
			change: func(s *model.Settings, _ int) { s.PrinterSimulation = !s.PrinterSimulation },
		},
		{
			label:  "Mirror camera",
			value:  func(s model.Settings) string { return onOff(s.InvertCamera) },
			change: func(s *model.Settings, _ int) { s.InvertCamera = !s.InvertCamera },
		},
		{
			label: "Countdown seconds",
			value: func(s model.Settings) string { return strconv.Itoa(s.CountdownSeconds) },
			change: func(s *model.Settings, delta int) {
				s.CountdownSeconds = clamp(s.CountdownSeconds+delta, minCountdown, maxCountdown)
			},
		},
		{
			label: "Webcam index",
			value: func(s model.Settings) string { return strconv.Itoa(s.WebcamIndex) },
			change: func(s *model.Settings, delta int) {
				s.WebcamIndex = clamp(s.WebcamIndex+delta, 0, maxWebcam)
			},
		},
	}
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
