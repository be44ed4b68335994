package trigger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// DeletionReport is the outcome of one DeleteGroup call.
type DeletionReport struct {
	Group        string   `json:"group"`
	Status       string   `json:"status"`
	DeletedCount int      `json:"deleted_count"`
	Total        int      `json:"total"`
	Errors       []string `json:"errors"`
	GroupDeleted bool     `json:"group_deleted"`
}

// Cleaner deletes every trigger of a group.
type Cleaner struct {
	sub  Substrate
	pool *pool
	log  *zap.Logger
}

func NewCleaner(sub Substrate, opts Options, log *zap.Logger) *Cleaner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cleaner{sub: sub, pool: newPool(opts), log: log}
}

// DeleteGroup deletes all triggers in group. A missing group, or a member
// that is already gone, is not an error. With force the group itself is
// removed once it is empty.
func (c *Cleaner) DeleteGroup(ctx context.Context, group string, force bool) DeletionReport {
	report := DeletionReport{Group: group, Errors: []string{}}

	list, err := c.sub.ListTriggers(ctx, group)
	if errors.Is(err, ErrGroupNotFound) {
		report.Status = StatusSuccess
		return report
	}
	if err != nil {
		report.Status = StatusError
		report.Errors = append(report.Errors, fmt.Sprintf("list %s: %v", group, err))
		return report
	}
	report.Total = len(list)

	var mu sync.Mutex
	notStarted := c.pool.run(ctx, len(list), func(callCtx context.Context, i int) {
		name := list[i].Name
		err := c.sub.DeleteTrigger(callCtx, name, group)

		mu.Lock()
		defer mu.Unlock()
		if err == nil || errors.Is(err, ErrNotFound) {
			report.DeletedCount++
			return
		}
		report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", name, err))
		c.log.Warn("failed to delete trigger", zap.String("trigger", name), zap.Error(err))
	})
	for _, i := range notStarted {
		report.Errors = append(report.Errors, fmt.Sprintf("%s: not attempted: %v", list[i].Name, ctx.Err()))
	}

	report.Status = deletionStatus(report.DeletedCount, report.Total)

	if force {
		c.deleteEmptyGroup(ctx, &report)
	}

	c.log.Info("group cleanup finished",
		zap.String("group", group),
		zap.String("status", report.Status),
		zap.Int("deleted", report.DeletedCount),
		zap.Int("total", report.Total),
		zap.Bool("group_deleted", report.GroupDeleted))
	return report
}

func (c *Cleaner) deleteEmptyGroup(ctx context.Context, report *DeletionReport) {
	if report.DeletedCount < report.Total {
		report.Errors = append(report.Errors, fmt.Sprintf("group %s kept: %d triggers remain",
			report.Group, report.Total-report.DeletedCount))
		return
	}
	if ctx.Err() != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("group %s kept: %v", report.Group, ctx.Err()))
		report.Status = StatusPartialSuccess
		return
	}
	err := c.sub.DeleteGroup(ctx, report.Group)
	if err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrGroupNotFound) {
		report.GroupDeleted = true
		return
	}
	report.Errors = append(report.Errors, fmt.Sprintf("delete group %s: %v", report.Group, err))
	if report.Total == 0 {
		report.Status = StatusError
		return
	}
	report.Status = StatusPartialSuccess
}

func deletionStatus(deleted, total int) string {
	switch {
	case deleted == total:
		return StatusSuccess
	case deleted == 0:
		return StatusError
	default:
		return StatusPartialSuccess
	}
}
