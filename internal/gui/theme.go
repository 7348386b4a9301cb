package gui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

// Drop zone sizing
const (
	dropZoneHeight    = 140
	dropZoneStroke    = 2
	dropZoneRadius    = 8
	rowStatusMinWidth = 120
)

// nimbusTheme is the application theme
type nimbusTheme struct{}

var _ fyne.Theme = (*nimbusTheme)(nil)

func (t *nimbusTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNamePrimary, theme.ColorNameFocus:
		return color.NRGBA{R: 0x2E, G: 0x6F, B: 0xD9, A: 0xFF}
	case theme.ColorNameButton:
		return color.NRGBA{R: 0x2E, G: 0x6F, B: 0xD9, A: 0xFF}
	case theme.ColorNameSuccess:
		return color.NRGBA{R: 0x2E, G: 0xA0, B: 0x4F, A: 0xFF}
	case theme.ColorNameError:
		return color.NRGBA{R: 0xD9, G: 0x3A, B: 0x2E, A: 0xFF}
	case theme.ColorNameWarning:
		return color.NRGBA{R: 0xE8, G: 0x8E, B: 0x00, A: 0xFF}
	default:
		return theme.DefaultTheme().Color(name, variant)
	}
}

func (t *nimbusTheme) Font(style fyne.TextStyle) fyne.Resource {
	return theme.DefaultTheme().Font(style)
}

func (t *nimbusTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return theme.DefaultTheme().Icon(name)
}

func (t *nimbusTheme) Size(name fyne.ThemeSizeName) float32 {
	switch name {
	case theme.SizeNameText:
		return 13
	case theme.SizeNameHeadingText:
		return 18
	default:
		return theme.DefaultTheme().Size(name)
	}
}
