package app

import (
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
	"github.com/talkincode/waconsole/internal/domain"
	"github.com/talkincode/waconsole/internal/session"
	"github.com/talkincode/waconsole/pkg/metrics"
	"go.uber.org/zap"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

func (a *Application) initJob() {
	loc, _ := time.LoadLocation(a.appConfig.System.Location)
	a.sched = cron.New(cron.WithLocation(loc), cron.WithParser(cronParser))

	var err error
	_, err = a.sched.AddFunc("@every 30s", func() {
		go a.SchedSystemMonitorTask()
		go a.SchedProcessMonitorTask()
	})
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	_, err = a.sched.AddFunc("@every 1m", func() {
		go a.SchedSessionMonitorTask()
	})
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	_, err = a.sched.AddFunc("@daily", func() {
		a.SchedClearExpireData()
	})
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	a.sched.Start()
}

// SchedSystemMonitorTask system monitor
func (a *Application) SchedSystemMonitorTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	// Collect CPU usage
	_cpuuse, err := cpu.Percent(0, false)
	if err == nil && len(_cpuuse) > 0 {
		metrics.SetGauge("system_cpuuse", int64(_cpuuse[0]*100)) // Store as percentage * 100
	}

	// Collect memory usage
	_meminfo, err := mem.VirtualMemory()
	if err == nil {
		metrics.SetGauge("system_memuse", int64(_meminfo.Used/1024/1024))
	}
}

// SchedProcessMonitorTask app process monitor
func (a *Application) SchedProcessMonitorTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return
	}

	// Collect process CPU usage
	cpuuse, err := p.CPUPercent()
	if err == nil {
		metrics.SetGauge("waconsole_cpuuse", int64(cpuuse*100)) // Store as percentage * 100
	}

	// Collect process memory usage
	meminfo, err := p.MemoryInfo()
	if err == nil {
		metrics.SetGauge("waconsole_memuse", int64(meminfo.RSS/1024/1024))
	}
}

// SchedSessionMonitorTask tracks session state distribution and stale
// disconnected sessions. Disconnected sessions are kept indefinitely; the
// gauge lets operators spot ones worth cleaning up.
func (a *Application) SchedSessionMonitorTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	var ready, disconnected, failed, stale int64
	staleBefore := time.Now().Add(-24 * time.Hour)
	for _, s := range a.registry.List() {
		switch s.State {
		case session.StateReady:
			ready++
		case session.StateDisconnected:
			disconnected++
			if s.LastActivity.Before(staleBefore) {
				stale++
			}
		case session.StateFailed:
			failed++
		}
	}
	metrics.SetGauge("sessions_ready", ready)
	metrics.SetGauge("sessions_disconnected", disconnected)
	metrics.SetGauge("sessions_failed", failed)
	metrics.SetGauge("sessions_stale", stale)
	metrics.SetGauge("hub_subscribers", int64(a.eventHub.SubscriberCount()))
}

// SchedClearExpireData removes aged history rows.
func (a *Application) SchedClearExpireData() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	// Message history older than 90 days
	a.gormDB.
		Where("created_at < ? ", time.Now().
			Add(-time.Hour*24*90)).Delete(&domain.Message{})

	// Campaign logs older than 90 days
	a.gormDB.
		Where("created_at < ? ", time.Now().
			Add(-time.Hour*24*90)).Delete(&domain.CampaignLog{})

	// Operator logs older than a year
	a.gormDB.
		Where("opt_time < ? ", time.Now().
			Add(-time.Hour*24*365)).Delete(&domain.SysOprLog{})
}
