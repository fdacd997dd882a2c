package services

import (
	"context"
	"errors"

	"modmail-relay/internal/domain/thread"
	"modmail-relay/internal/redis"
	"modmail-relay/internal/repository"
	"modmail-relay/pkg/logger"
	relay_errors "modmail-relay/pkg/errors"
)

// ThreadResolver routes inbound events to their thread: open-thread lookup
// by user (cache read-through) and by inbox channel.
type ThreadResolver struct {
	threads repository.ThreadRepository
	cache   *redis.CacheStore
	log     *logger.Logger
}

func NewThreadResolver(threads repository.ThreadRepository, cache *redis.CacheStore, log *logger.Logger) *ThreadResolver {
	if log == nil {
		log = logger.NewNop()
	}
	return &ThreadResolver{threads: threads, cache: cache, log: log}
}

// FindOpenThreadByUserID returns the user's open thread, consulting the
// cache first. A cache fault falls back to the database.
func (r *ThreadResolver) FindOpenThreadByUserID(ctx context.Context, userID string) (thread.Thread, error) {
	if r.cache != nil {
		cached, err := r.cache.GetOpenThread(ctx, userID)
		if err != nil {
			r.log.Errorf("Thread cache lookup failed for user %s: %v", userID, err)
		} else if cached != nil {
			t, err := r.threads.GetByID(ctx, cached.ThreadID)
			if err == nil && t.Status == thread.StatusOpen {
				return t, nil
			}
			// Stale pointer; drop it and fall through.
			_ = r.cache.InvalidateOpenThread(ctx, userID)
		}
	}

	t, err := r.threads.GetOpenByUserID(ctx, userID)
	if err != nil {
		return thread.Thread{}, err
	}

	if r.cache != nil {
		if err := r.cache.SetOpenThread(ctx, redis.ThreadCache{
			ThreadID:  t.ID,
			UserID:    t.UserID,
			ChannelID: t.ChannelID,
		}); err != nil {
			r.log.Errorf("Thread cache store failed for user %s: %v", userID, err)
		}
	}
	return t, nil
}

// FindThreadByChannelID resolves the thread bound to an inbox channel.
func (r *ThreadResolver) FindThreadByChannelID(ctx context.Context, channelID string) (thread.Thread, error) {
	return r.threads.GetByChannelID(ctx, channelID)
}

// CreateThreadForUser opens a new thread bound to the given inbox channel.
// Fails with ErrConflict when the user already has an open thread.
func (r *ThreadResolver) CreateThreadForUser(ctx context.Context, userID, userName, channelID string) (thread.Thread, error) {
	if userID == "" || channelID == "" {
		return thread.Thread{}, relay_errors.ErrInvalidInput
	}

	if _, err := r.threads.GetOpenByUserID(ctx, userID); err == nil {
		return thread.Thread{}, relay_errors.ErrConflict
	} else if !errors.Is(err, relay_errors.ErrNotFound) {
		return thread.Thread{}, err
	}

	t := thread.Thread{
		Status:    thread.StatusOpen,
		UserID:    userID,
		UserName:  userName,
		ChannelID: channelID,
	}
	if err := r.threads.Create(ctx, &t); err != nil {
		return thread.Thread{}, err
	}

	if r.cache != nil {
		_ = r.cache.SetOpenThread(ctx, redis.ThreadCache{
			ThreadID:  t.ID,
			UserID:    t.UserID,
			ChannelID: t.ChannelID,
		})
	}
	return t, nil
}
