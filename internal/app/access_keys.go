package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pplcallmesatz/gst-auditor-report/internal/domain"
	"github.com/pplcallmesatz/gst-auditor-report/internal/store"
)

const accessKeyBytes = 32

// AccessKeys manages the webhook secret lifecycle.
type AccessKeys struct {
	repo   AccessKeyRepository
	events EventPublisher
	logger *slog.Logger
	now    func() time.Time
}

func NewAccessKeys(repo AccessKeyRepository, events EventPublisher, logger *slog.Logger) *AccessKeys {
	return &AccessKeys{repo: repo, events: events, logger: logger, now: time.Now}
}

func generateKeyValue() (string, error) {
	buf := make([]byte, accessKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate access key: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func (k *AccessKeys) newKey() (domain.AccessKey, error) {
	value, err := generateKeyValue()
	if err != nil {
		return domain.AccessKey{}, err
	}
	return domain.AccessKey{
		ID:        uuid.New(),
		Value:     value,
		IsActive:  true,
		CreatedAt: k.now().UTC(),
	}, nil
}

// CurrentKey returns the active key, creating one when none exists. A caller that
// loses a concurrent bootstrap re-reads the winner's key.
func (k *AccessKeys) CurrentKey(ctx context.Context) (*domain.AccessKey, error) {
	key, err := k.repo.ActiveKey(ctx)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, store.ErrNoActiveKey) {
		return nil, err
	}

	fresh, err := k.newKey()
	if err != nil {
		return nil, err
	}
	if err := k.repo.InsertActiveKey(ctx, fresh); err != nil {
		if errors.Is(err, store.ErrActiveKeyExists) {
			return k.repo.ActiveKey(ctx)
		}
		return nil, err
	}
	k.logger.Info("webhook access key created", "key_id", fresh.ID)
	return &fresh, nil
}

// Rotate replaces the active key. The previous key stops matching immediately.
func (k *AccessKeys) Rotate(ctx context.Context) (*domain.AccessKey, error) {
	fresh, err := k.newKey()
	if err != nil {
		return nil, err
	}
	if err := k.repo.RotateKey(ctx, fresh); err != nil {
		return nil, fmt.Errorf("rotate access key: %w", err)
	}

	k.logger.Info("webhook access key rotated", "key_id", fresh.ID)
	publishEvent(ctx, k.events, k.logger, EventAccessKeyRotated, KeyRotatedEvent{KeyID: fresh.ID, RotatedAt: fresh.CreatedAt})
	return &fresh, nil
}

// Lookup returns the active key whose value equals value. Empty values never match.
func (k *AccessKeys) Lookup(ctx context.Context, value string) (*domain.AccessKey, bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, false, nil
	}
	key, err := k.repo.FindActiveKey(ctx, value)
	if err != nil {
		if errors.Is(err, store.ErrNoActiveKey) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return key, true, nil
}

// History lists keys newest first.
func (k *AccessKeys) History(ctx context.Context, limit int) ([]domain.AccessKey, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return k.repo.ListKeys(ctx, limit)
}
