package theme

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var (
	ErrNotFound       = errors.New("theme not found")
	ErrNoActiveTheme  = errors.New("no active theme")
	ErrNameTaken      = errors.New("theme name already exists")
	ErrInvalidPalette = errors.New("invalid palette")
)

var validate = validator.New()

// Palette holds the hex colours a seasonal theme overrides.
type Palette struct {
	Primary    string `json:"primary" yaml:"primary" validate:"required,hexcolor"`
	Secondary  string `json:"secondary" yaml:"secondary" validate:"required,hexcolor"`
	Accent     string `json:"accent" yaml:"accent" validate:"required,hexcolor"`
	Background string `json:"background" yaml:"background" validate:"required,hexcolor"`
	Surface    string `json:"surface" yaml:"surface" validate:"required,hexcolor"`
	Text       string `json:"text" yaml:"text" validate:"required,hexcolor"`
}

func (p Palette) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPalette, err)
	}

	return nil
}

type Theme struct {
	ID          uuid.UUID
	Name        string
	Description string
	Palette     Palette
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ETag identifies this version of the theme for conditional requests.
func (t *Theme) ETag() string {
	return fmt.Sprintf(`"%s-%d"`, t.ID, t.UpdatedAt.UnixNano())
}
