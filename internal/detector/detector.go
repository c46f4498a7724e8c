package detector

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Kunal6688/PestDetect/internal/models"
)

// ErrDetectionEngine marks every failure reported by or while calling the engine.
var ErrDetectionEngine = errors.New("detection engine failure")

// DefaultClasses are the pest classes the bundled model was trained on.
var DefaultClasses = []string{
	"aphid", "whitefly", "thrips", "mite", "caterpillar",
	"beetle", "grasshopper", "leafhopper", "scale_insect", "mealybug",
}

// Result is what an engine returns for one image.
type Result struct {
	Findings []models.Finding
}

// Engine turns an image into findings.
type Engine interface {
	Detect(ctx context.Context, image []byte) (Result, error)
}

// validate rejects malformed findings and normalizes class names.
func validate(findings []models.Finding) ([]models.Finding, error) {
	out := make([]models.Finding, 0, len(findings))
	for i, f := range findings {
		f.ClassName = strings.TrimSpace(f.ClassName)
		if f.ClassName == "" {
			return nil, fmt.Errorf("%w: finding %d has no class", ErrDetectionEngine, i)
		}
		if f.Confidence < 0 || f.Confidence > 1 {
			return nil, fmt.Errorf("%w: finding %d confidence %v outside [0,1]", ErrDetectionEngine, i, f.Confidence)
		}
		out = append(out, f)
	}
	return out, nil
}
