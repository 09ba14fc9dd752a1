package model

import "fmt"

const (
	// MaxTextBoxes is the number of caption regions a template can define
	MaxTextBoxes = 5
	// DefaultTextBoxes is the number of regions used when a template doesn't say
	DefaultTextBoxes = 2
	// DefaultImageSize is the width and height assumed for template images
	DefaultImageSize = 500
)

// TemplateID identifies a caption template
type TemplateID string

// TextBox is a caption region on a template image.
// Position and size are percentages of the image dimensions.
type TextBox struct {
	Label    string
	X        float64
	Y        float64
	FontSize int
	Width    float64
	Height   float64
}

// Template is a prompt image with its caption layout
type Template struct {
	ID           TemplateID
	Name         string
	ImageRef     string
	ImageWidth   int
	ImageHeight  int
	NumTextBoxes int
	TextBoxes    [MaxTextBoxes]TextBox
	Active       bool
}

// DefaultLayout returns the standard position of each caption region
func DefaultLayout() [MaxTextBoxes]TextBox {
	positions := [MaxTextBoxes][2]float64{{50, 20}, {50, 80}, {50, 50}, {25, 35}, {75, 65}}
	var boxes [MaxTextBoxes]TextBox
	for i, pos := range positions {
		boxes[i] = TextBox{
			Label:    fmt.Sprintf("Text %d", i+1),
			X:        pos[0],
			Y:        pos[1],
			FontSize: 24,
			Width:    30,
			Height:   10,
		}
	}
	return boxes
}

// NewTemplate creates an active template with the default layout
func NewTemplate(id TemplateID, name, imageRef string) Template {
	return Template{
		ID:           id,
		Name:         name,
		ImageRef:     imageRef,
		ImageWidth:   DefaultImageSize,
		ImageHeight:  DefaultImageSize,
		NumTextBoxes: DefaultTextBoxes,
		TextBoxes:    DefaultLayout(),
		Active:       true,
	}
}

// Boxes returns the caption regions in use
func (t Template) Boxes() []TextBox {
	n := min(max(t.NumTextBoxes, 0), MaxTextBoxes)
	return t.TextBoxes[:n]
}

// Validate checks the template layout
func (t Template) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidTemplate)
	}
	if t.NumTextBoxes < 1 || t.NumTextBoxes > MaxTextBoxes {
		return fmt.Errorf("%w: %s has %d text boxes", ErrInvalidTemplate, t.ID, t.NumTextBoxes)
	}
	if t.ImageWidth <= 0 || t.ImageHeight <= 0 {
		return fmt.Errorf("%w: %s has no image size", ErrInvalidTemplate, t.ID)
	}
	for i, box := range t.Boxes() {
		if !percent(box.X) || !percent(box.Y) || !percent(box.Width) || !percent(box.Height) {
			return fmt.Errorf("%w: %s box %d out of bounds", ErrInvalidTemplate, t.ID, i+1)
		}
		if box.FontSize <= 0 {
			return fmt.Errorf("%w: %s box %d has no font size", ErrInvalidTemplate, t.ID, i+1)
		}
	}
	return nil
}

func percent(v float64) bool {
	return v >= 0 && v <= 100
}
