package scheduler

import (
	"context"
	"time"

	"tomatodo/internal/model"

	"github.com/sirupsen/logrus"
)

// DailyReset 每日重置任务。
//
// 独立于请求处理运行：每天在设定的时刻对全表执行一次重置扫描，
// 把已完成的待办恢复为未完成，并把番茄钟计数清零。
// 扫描本身是一个事务，失败只记录日志，等待下一个周期，不影响宿主进程。
type DailyReset struct {
	repo   model.Repository
	hour   int
	minute int

	// 测试钩子，默认 time.Now
	now func() time.Time
}

// NewDailyReset 创建每日重置任务实例
func NewDailyReset(repo model.Repository, hour, minute int) *DailyReset {
	if hour < 0 || hour > 23 {
		hour = 0
	}
	if minute < 0 || minute > 59 {
		minute = 0
	}
	return &DailyReset{
		repo:   repo,
		hour:   hour,
		minute: minute,
		now:    time.Now,
	}
}

// Run 启动调度循环，阻塞直到 ctx 取消。
// 按"距离下一个触发时刻"定时，而不是固定间隔轮询，
// 因此进程重启不会在当天补跑已经错过的任务。
func (j *DailyReset) Run(ctx context.Context) {
	logrus.WithFields(logrus.Fields{
		"hour":   j.hour,
		"minute": j.minute,
	}).Info("daily_reset_scheduler_started")

	for {
		wait := j.untilNextRun()
		timer := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()
			logrus.Info("daily_reset_scheduler_stopped")
			return
		case <-timer.C:
			j.runOnce(ctx)
		}
	}
}

// RunOnce 立即执行一次重置扫描，返回两条语句各自影响的行数。
func (j *DailyReset) RunOnce(ctx context.Context) (int64, int64, error) {
	return j.repo.ResetTodos(ctx, nil)
}

func (j *DailyReset) runOnce(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	started := j.now()
	resetCompleted, resetCounters, err := j.RunOnce(sweepCtx)
	if err != nil {
		// 本轮失败不重试，等下一个触发时刻
		logrus.WithError(err).Error("daily_reset_failed")
		return
	}
	logrus.WithFields(logrus.Fields{
		"reset_completed": resetCompleted,
		"reset_counters":  resetCounters,
		"duration":        time.Since(started).String(),
	}).Info("daily_reset_done")
}

// untilNextRun 计算距离下一个触发时刻的时长。
// 今天的触发时刻已过则顺延到明天。
func (j *DailyReset) untilNextRun() time.Duration {
	now := j.now()
	next := time.Date(now.Year(), now.Month(), now.Day(), j.hour, j.minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}
