package services

import (
	"context"
	"strings"

	"beijjati-server/middleware"

	"github.com/sirupsen/logrus"
)

// TextExtractor turns an image into whatever text optical recognition finds in it.
type TextExtractor interface {
	ExtractText(ctx context.Context, image []byte) (string, error)
}

var questionTokens = []string{"q1", "q2", "q3", "q4"}

// ClassifyEvidenceText accepts text mentioning "solved" and at least one of q1..q4,
// ignoring case.
func ClassifyEvidenceText(text string) bool {
	lower := strings.ToLower(text)
	if !strings.Contains(lower, "solved") {
		return false
	}
	for _, token := range questionTokens {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}

// EvidenceService gates beijjati posts on a photo of the work.
type EvidenceService struct {
	extractor TextExtractor
	metrics   *middleware.Metrics
	logger    logrus.FieldLogger
}

func NewEvidenceService(extractor TextExtractor, metrics *middleware.Metrics, logger logrus.FieldLogger) *EvidenceService {
	return &EvidenceService{extractor: extractor, metrics: metrics, logger: logger}
}

// LooksLikeEvidence never errors: an empty image or a failed extraction is a rejection.
func (s *EvidenceService) LooksLikeEvidence(ctx context.Context, image []byte) bool {
	accepted := false
	if len(image) > 0 {
		text, err := s.extractor.ExtractText(ctx, image)
		if err != nil {
			s.logger.WithError(err).Warn("Text extraction failed, rejecting evidence")
		} else {
			accepted = ClassifyEvidenceText(text)
		}
	}
	s.metrics.EvidenceVerdict(accepted)
	s.logger.WithField("accepted", accepted).Info("Evidence checked")
	return accepted
}
