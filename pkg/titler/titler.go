// Package titler decides the new title for a matched activity: either the
// plain region name or an AI caption of the rendered path.
package titler

import (
	"context"
	"fmt"
	"strings"

	"github.com/aceriverson/titlesv2/pkg/errs"
	"github.com/aceriverson/titlesv2/pkg/geometry"
	"github.com/aceriverson/titlesv2/pkg/model"
)

// titleTag marks plainly-titled activities so renamed titles are
// recognisable in the feed.
const titleTag = " · titles"

// TitleUpdate is the value the dispatcher applies upstream. Composition
// never mutates upstream state itself.
type TitleUpdate struct {
	Name        string
	Description string
}

// Renderer draws the activity path for the captioner.
type Renderer interface {
	Render(path []geometry.Point) ([]byte, error)
}

// Composer builds title updates.
type Composer struct {
	renderer  Renderer
	captioner Captioner
}

// NewComposer constructs a title composer.
func NewComposer(renderer Renderer, captioner Captioner) *Composer {
	return &Composer{renderer: renderer, captioner: captioner}
}

// Compose returns the title update for an activity, or nil when nothing
// should change (no region hit and captioning disabled).
//
// With captioning enabled, a render or caption failure fails the whole
// event with ErrCaptioning rather than silently falling back to the plain
// name, so the failure stays observable.
func (c *Composer) Compose(ctx context.Context, matched *model.MatchResult, path []geometry.Point, sportType string, aiEnabled bool) (*TitleUpdate, error) {
	if !aiEnabled {
		if matched == nil {
			return nil, nil
		}
		return &TitleUpdate{Name: matched.Name + titleTag}, nil
	}

	image, err := c.renderer.Render(path)
	if err != nil {
		return nil, fmt.Errorf("%w: render: %v", errs.ErrCaptioning, err)
	}

	caption, err := c.captioner.Caption(ctx, captionPrompt(sportType, matched), image)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrCaptioning, err)
	}

	return &TitleUpdate{Name: caption}, nil
}

// captionPrompt asks for a short title for the rendered path. A matched
// region's name is passed along as a hint.
func captionPrompt(sportType string, matched *model.MatchResult) string {
	var parts []string
	parts = append(parts, "You are a fitness app assistant. The attached image shows the GPS trace of a recorded activity, start marked green and finish marked red.")
	if sportType != "" {
		parts = append(parts, fmt.Sprintf("Activity type: %s", sportType))
	}
	if matched != nil {
		parts = append(parts, fmt.Sprintf("The activity started in an area the athlete calls %q; feel free to reference it.", matched.Name))
	}
	parts = append(parts, "Generate a short, descriptive title for this activity (max 50 characters).")
	parts = append(parts, "Respond with ONLY the title, nothing else.")
	return strings.Join(parts, "\n")
}
