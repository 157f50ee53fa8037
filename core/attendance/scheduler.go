package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/kinderhub/core"
	"github.com/trezcool/kinderhub/core/child"
)

const resetTimeout = time.Minute

// ResetScheduler soft-resets every child to ABSENT on a cron schedule.
type ResetScheduler struct {
	cron     *cron.Cron
	childSvc child.ServiceInterface
	logger   core.Logger
}

// NewResetScheduler returns nil when conf.Attendance.DailyResetSchedule is empty.
func NewResetScheduler(conf *core.Config, childSvc child.ServiceInterface, logger core.Logger) (*ResetScheduler, error) {
	schedule := conf.Attendance.DailyResetSchedule
	if schedule == "" {
		return nil, nil
	}

	loc := conf.Attendance.Timezone
	if loc == nil {
		loc = time.UTC
	}
	s := &ResetScheduler{
		cron:     cron.New(cron.WithLocation(loc), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		childSvc: childSvc,
		logger:   logger,
	}
	if _, err := s.cron.AddFunc(schedule, s.Run); err != nil {
		return nil, errors.Wrapf(err, "scheduling daily reset %q", schedule)
	}
	return s, nil
}

// Run resets the statuses once.
func (s *ResetScheduler) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), resetTimeout)
	defer cancel()

	n, err := s.childSvc.ResetStatuses(ctx)
	if err != nil {
		s.logger.Error(fmt.Sprintf("attendance: daily reset: %v", err), err)
		return
	}
	s.logger.Info(fmt.Sprintf("attendance: daily reset: %d children set to ABSENT", n))
}

func (s *ResetScheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for a running reset to finish.
func (s *ResetScheduler) Stop() {
	<-s.cron.Stop().Done()
}
