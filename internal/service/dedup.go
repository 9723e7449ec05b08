package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dan9191/card-service/internal/models"
	"github.com/Dan9191/card-service/internal/repository"
	"github.com/Dan9191/card-service/internal/utils"
	"github.com/sirupsen/logrus"
)

// duplicateIDs returns the ids of cards whose space-stripped number was already
// seen earlier in cards. The first card of each number is kept, so with the
// store's newest-first ordering the most recent record of a group survives.
func duplicateIDs(cards []models.Card) []int64 {
	seen := make(map[string]int64, len(cards))
	var duplicates []int64
	for _, card := range cards {
		number := utils.NormalizeCardNumber(card.CardNumber)
		if _, ok := seen[number]; ok {
			duplicates = append(duplicates, card.ID)
			continue
		}
		seen[number] = card.ID
	}
	return duplicates
}

// reportTimeout bounds the sweep report delivery
const reportTimeout = 30 * time.Second

// RemoveDuplicates deletes every card whose number matches a newer card.
// Deletes run one at a time; a failed delete is logged and skipped.
// A duplicate that is already gone counts neither as removed nor as failed.
func (s *Service) RemoveDuplicates(ctx context.Context) (*models.DedupResult, error) {
	start := time.Now()

	cards, err := s.repo.ListCards(ctx)
	if err != nil {
		return nil, s.storeError("list cards for dedup", err)
	}

	duplicates := duplicateIDs(cards)
	result := &models.DedupResult{}
	for _, id := range duplicates {
		if err := s.repo.DeleteCard(ctx, id); err != nil {
			if errors.Is(err, repository.ErrCardNotFound) {
				s.log.WithField("card_id", id).Debug("Duplicate card already deleted")
				continue
			}
			result.Failed++
			s.log.WithError(err).WithField("card_id", id).Warn("Failed to delete duplicate card")
			continue
		}
		result.Removed++
	}

	result.Message = fmt.Sprintf("Removed %d duplicate card(s)", result.Removed)
	if result.Failed > 0 {
		result.Message += fmt.Sprintf(", %d could not be removed", result.Failed)
	}

	s.metrics.ObserveSweep(result.Removed, result.Failed, start)
	s.log.WithFields(logrus.Fields{
		"scanned": len(cards),
		"removed": result.Removed,
		"failed":  result.Failed,
	}).Info("Duplicate sweep finished")

	if s.reporter != nil && (result.Removed > 0 || result.Failed > 0) {
		reportCtx, cancel := context.WithTimeout(ctx, reportTimeout)
		err := s.reporter.SendSweepReport(reportCtx, *result)
		cancel()
		if err != nil {
			s.log.WithError(err).Warn("Failed to send sweep report")
		}
	}

	return result, nil
}
