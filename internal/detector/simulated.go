package detector

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/Kunal6688/PestDetect/internal/models"
)

const (
	simMaxFindings   = 3
	simMinConfidence = 0.3
	simFrameWidth    = 640
	simFrameHeight   = 480
)

// Simulated produces random findings without a model.
type Simulated struct {
	mu          sync.Mutex
	rnd         *rand.Rand
	classes     []string
	failureRate float64
}

func NewSimulated(classes []string, failureRate float64) *Simulated {
	if len(classes) == 0 {
		classes = DefaultClasses
	}
	return &Simulated{
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
		classes:     classes,
		failureRate: failureRate,
	}
}

func (s *Simulated) Detect(ctx context.Context, image []byte) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrDetectionEngine, err)
	}
	if len(image) == 0 {
		return Result{}, fmt.Errorf("%w: empty image", ErrDetectionEngine)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rnd.Float64() < s.failureRate {
		return Result{}, fmt.Errorf("%w: simulated inference failure", ErrDetectionEngine)
	}

	n := s.rnd.Intn(simMaxFindings + 1)
	findings := make([]models.Finding, 0, n)
	for i := 0; i < n; i++ {
		id := s.rnd.Intn(len(s.classes))
		x1 := s.rnd.Float64() * simFrameWidth * 0.8
		y1 := s.rnd.Float64() * simFrameHeight * 0.8
		findings = append(findings, models.Finding{
			ClassName:  s.classes[id],
			ClassID:    id,
			Confidence: simMinConfidence + s.rnd.Float64()*(0.99-simMinConfidence),
			BBox:       [4]float64{x1, y1, x1 + 20 + s.rnd.Float64()*60, y1 + 20 + s.rnd.Float64()*60},
		})
	}
	return Result{Findings: findings}, nil
}
