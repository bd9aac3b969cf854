package app

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"explain_yourself_bot/internal/domain/post"
)

var ErrAdminNotAuthorized = fmt.Errorf("performing user is not authorized as an admin")
var ErrPostNotTracked = fmt.Errorf("post is not tracked")

// AdminService backs the moderator chat commands.
type AdminService struct {
	svc             *Service
	sched           Scheduler
	adminTelegramID int64
}

func NewAdminService(svc *Service, sched Scheduler, adminID int64) *AdminService {
	return &AdminService{
		svc:             svc,
		sched:           sched,
		adminTelegramID: adminID,
	}
}

// PostStatus is what a lookup reports about one post.
type PostStatus struct {
	Record  *post.Record
	Indexes []post.Category // every index the id is found in, normally one
}

// Lookup reports the stored state of a post.
func (s *AdminService) Lookup(ctx context.Context, performingAdminID int64, postID string) (*PostStatus, error) {
	if performingAdminID != s.adminTelegramID {
		return nil, ErrAdminNotAuthorized
	}
	rec, err := s.svc.repo.Load(ctx, postID)
	if errors.Is(err, post.ErrRecordNotFound) {
		return nil, ErrPostNotTracked
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load post: %w", err)
	}
	status := &PostStatus{Record: rec}
	for _, c := range post.Categories {
		ok, err := s.svc.repo.InCategory(ctx, c, postID)
		if err != nil {
			return nil, err
		}
		if ok {
			status.Indexes = append(status.Indexes, c)
		}
	}
	return status, nil
}

// CategoryCounts returns the size of every category index.
func (s *AdminService) CategoryCounts(ctx context.Context, performingAdminID int64) (map[post.Category]int, error) {
	if performingAdminID != s.adminTelegramID {
		return nil, ErrAdminNotAuthorized
	}
	counts := make(map[post.Category]int, len(post.Categories))
	for _, c := range post.Categories {
		ids, err := s.svc.repo.ListCategory(ctx, c)
		if err != nil {
			return nil, err
		}
		counts[c] = len(ids)
	}
	return counts, nil
}

// RebuildIndexes re-applies the category of every stored record to the
// indexes, repairing memberships left behind by interrupted transitions.
func (s *AdminService) RebuildIndexes(ctx context.Context, performingAdminID int64) (int, error) {
	if performingAdminID != s.adminTelegramID {
		return 0, ErrAdminNotAuthorized
	}
	inv, err := s.svc.begin("rebuild_indexes", nil)
	if err != nil {
		return 0, err
	}
	ids, err := s.svc.repo.AllPostIDs(ctx)
	if err != nil {
		return 0, err
	}
	fixed := 0
	for _, id := range ids {
		rec, err := s.svc.repo.Load(ctx, id)
		if err != nil {
			inv.log.WithError(err).WithField("post_id", id).Error("Failed to load record")
			continue
		}
		if rec.Category == post.CategoryNone {
			continue
		}
		if err := s.svc.repo.SetCategory(ctx, rec, rec.Category); err != nil {
			inv.log.WithError(err).WithField("post_id", id).Error("Failed to rebuild index entry")
			continue
		}
		fixed++
	}
	inv.log.WithField("records", fixed).Info("Rebuilt category indexes")
	return fixed, nil
}

// Jobs lists the scheduled job names.
func (s *AdminService) Jobs(performingAdminID int64) ([]string, error) {
	if performingAdminID != s.adminTelegramID {
		return nil, ErrAdminNotAuthorized
	}
	jobs := s.sched.ListJobs()
	sort.Strings(jobs)
	return jobs, nil
}
