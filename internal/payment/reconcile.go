package payment

import (
	"context"
	"errors"
	"fmt"

	"elimu_payments/internal/domain"
	"elimu_payments/internal/events"
	"elimu_payments/internal/store"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ResolveResult describes an operator resolution
type ResolveResult struct {
	CallbackID uint `json:"callback_id"`
	UserID     uint `json:"user_id"`
	ResourceID uint `json:"resource_id"`
	Unlocked   bool `json:"unlocked"` // A new entitlement was created
}

// Resolve attributes an UNRESOLVED callback to a user and resource and
// unlocks the pair. The Transaction recorded for the callback is left as is.
// Repeating a resolution with the same pair is a no-op.
func (s *Service) Resolve(ctx context.Context, callbackID, userID, resourceID uint) (*ResolveResult, error) {
	if userID == 0 || resourceID == 0 {
		return nil, invalid("user_id and resource_id are required")
	}
	callbacks := store.NewCallbackStore(s.db)
	ev, err := callbacks.Get(ctx, callbackID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("callback %d: %w", callbackID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if ev.Outcome != domain.OutcomeUnresolved {
		return nil, invalid(fmt.Sprintf("callback %d is %s, only UNRESOLVED callbacks can be resolved", callbackID, ev.Outcome))
	}
	if ev.ResolvedAt != nil {
		return sameResolution(ev, userID, resourceID)
	}

	if ok, err := s.users.Exists(ctx, userID); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}
	if ok, err := s.resources.Exists(ctx, resourceID); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("resource %d: %w", resourceID, ErrNotFound)
	}

	result := &ResolveResult{CallbackID: callbackID, UserID: userID, ResourceID: resourceID}
	var raced bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		marked, err := callbacks.WithTx(tx).MarkResolved(ctx, callbackID, userID, resourceID, s.now().UTC())
		if err != nil {
			return err
		}
		if !marked {
			raced = true
			return nil
		}
		result.Unlocked, err = s.entitlements.WithTx(tx).Unlock(ctx, userID, resourceID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if raced {
		ev, err := callbacks.Get(ctx, callbackID)
		if err != nil {
			return nil, err
		}
		return sameResolution(ev, userID, resourceID)
	}

	logrus.WithFields(logrus.Fields{
		"callback_id": callbackID,
		"user_id":     userID,
		"resource_id": resourceID,
		"new":         result.Unlocked,
	}).Info("Unresolved callback reconciled")
	if result.Unlocked {
		s.publish(events.SubjectEntitlementUnlocked, UnlockedEvent{
			UserID:     userID,
			ResourceID: resourceID,
			CallbackID: callbackID,
			Source:     SourceReconciliation,
			At:         s.now().UTC(),
		})
	}
	return result, nil
}

func sameResolution(ev *domain.CallbackEvent, userID, resourceID uint) (*ResolveResult, error) {
	if ev.ResolvedUserID == nil || ev.ResolvedResourceID == nil ||
		*ev.ResolvedUserID != userID || *ev.ResolvedResourceID != resourceID {
		return nil, invalid(fmt.Sprintf("callback %d was already resolved to another user or resource", ev.ID))
	}
	return &ResolveResult{CallbackID: ev.ID, UserID: userID, ResourceID: resourceID}, nil
}
