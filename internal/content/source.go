package content

import (
	"context"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/mcoot/makeitmeme/internal/model"
)

// StaticSource serves a fixed list of templates
type StaticSource struct {
	templates []model.Template
}

// NewStaticSource creates a source over the given templates
func NewStaticSource(templates ...model.Template) *StaticSource {
	return &StaticSource{templates: templates}
}

func (s *StaticSource) ActiveTemplates(ctx context.Context) ([]model.Template, error) {
	return slices.Clone(s.templates), nil
}

// DemoTemplates is the catalogue served when no templates file is configured
func DemoTemplates() []model.Template {
	return []model.Template{
		model.NewTemplate("distracted", "Distracted Boyfriend", "templates/distracted.jpg"),
		model.NewTemplate("drake", "Drake Hotline", "templates/drake.jpg"),
		model.NewTemplate("two-buttons", "Two Buttons", "templates/two-buttons.jpg"),
		model.NewTemplate("change-my-mind", "Change My Mind", "templates/change-my-mind.jpg"),
		model.NewTemplate("this-is-fine", "This Is Fine", "templates/this-is-fine.jpg"),
		model.NewTemplate("brain", "Expanding Brain", "templates/brain.jpg"),
		model.NewTemplate("stonks", "Stonks", "templates/stonks.jpg"),
		model.NewTemplate("surprised", "Surprised Pikachu", "templates/surprised.jpg"),
		model.NewTemplate("woman-cat", "Woman Yelling at Cat", "templates/woman-cat.jpg"),
		model.NewTemplate("gru", "Gru's Plan", "templates/gru.jpg"),
	}
}

// FileSource reads the template catalogue from a YAML file on every fetch
type FileSource struct {
	path string
}

// NewFileSource creates a source reading the given file
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

type catalogueFile struct {
	Templates []templateEntry `yaml:"templates"`
}

type templateEntry struct {
	ID           string     `yaml:"id"`
	Name         string     `yaml:"name"`
	Image        string     `yaml:"image"`
	ImageWidth   int        `yaml:"image_width"`
	ImageHeight  int        `yaml:"image_height"`
	NumTextBoxes int        `yaml:"num_text_boxes"`
	TextBoxes    []boxEntry `yaml:"text_boxes"`
	Active       *bool      `yaml:"active"`
}

type boxEntry struct {
	Label    string   `yaml:"label"`
	X        *float64 `yaml:"x"`
	Y        *float64 `yaml:"y"`
	FontSize int      `yaml:"font_size"`
	Width    *float64 `yaml:"width"`
	Height   *float64 `yaml:"height"`
}

func (s *FileSource) ActiveTemplates(ctx context.Context) ([]model.Template, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read templates file: %w", err)
	}
	return ParseCatalogue(data)
}

// ParseCatalogue decodes a YAML catalogue, filling unset fields with the
// default layout and validating every template
func ParseCatalogue(data []byte) ([]model.Template, error) {
	var file catalogueFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse templates file: %w", err)
	}

	templates := make([]model.Template, 0, len(file.Templates))
	for _, entry := range file.Templates {
		t := entry.toTemplate()
		if err := t.Validate(); err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, nil
}

func (e templateEntry) toTemplate() model.Template {
	t := model.NewTemplate(model.TemplateID(e.ID), e.Name, e.Image)
	if e.ImageWidth != 0 {
		t.ImageWidth = e.ImageWidth
	}
	if e.ImageHeight != 0 {
		t.ImageHeight = e.ImageHeight
	}
	if e.Active != nil {
		t.Active = *e.Active
	}
	switch {
	case e.NumTextBoxes != 0:
		t.NumTextBoxes = e.NumTextBoxes
	case len(e.TextBoxes) > 0:
		t.NumTextBoxes = len(e.TextBoxes)
	}

	for i, box := range e.TextBoxes {
		if i >= model.MaxTextBoxes {
			// Reported by Validate through NumTextBoxes
			break
		}
		dst := &t.TextBoxes[i]
		if box.Label != "" {
			dst.Label = box.Label
		}
		if box.FontSize != 0 {
			dst.FontSize = box.FontSize
		}
		setIfPresent(&dst.X, box.X)
		setIfPresent(&dst.Y, box.Y)
		setIfPresent(&dst.Width, box.Width)
		setIfPresent(&dst.Height, box.Height)
	}
	return t
}

func setIfPresent(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}
