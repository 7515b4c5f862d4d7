// Пакет для управления периодическими задачами сервиса: автосохранение открытых документов
// и закрытие неактивных сессий редактора.
//
// Основные возможности:
//   - Загрузка задач из реестра.
//   - Добавление и удаление задач из cron-расписания.
//   - Запуск и остановка cron-диспетчера.
package cronmanager

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

type CronJobFunc func()

type Job struct {
	Func     CronJobFunc
	Schedule string
}

type JobRegistry map[string]Job

type CronManager struct {
	dispatcher  *cron.Cron
	jobs        map[string]cron.EntryID
	mu          sync.Mutex
	jobRegistry JobRegistry
}

// NewCronManager создает менеджер для задач из реестра.
func NewCronManager(jobRegistry JobRegistry) *CronManager {
	dispatcher := cron.New(
		cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
	)

	return &CronManager{
		dispatcher:  dispatcher,
		jobs:        make(map[string]cron.EntryID),
		jobRegistry: jobRegistry,
	}
}

// LoadJobs пересоздаёт расписание из реестра. Возвращает первую ошибку разбора расписания,
// остальные задачи при этом всё равно добавляются.
func (cm *CronManager) LoadJobs() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	for name, entryID := range cm.jobs {
		cm.dispatcher.Remove(entryID)
		delete(cm.jobs, name)
	}

	var firstErr error
	for name := range cm.jobRegistry {
		if err := cm.addJob(name); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (cm *CronManager) addJob(name string) error {
	job, exists := cm.jobRegistry[name]
	if !exists {
		return fmt.Errorf("no job function registered for name: %s", name)
	}

	id, err := cm.dispatcher.AddFunc(job.Schedule, job.Func)
	if err != nil {
		slog.Error("Failed to add job", "name", name, "schedule", job.Schedule, "err", err)
		return fmt.Errorf("failed to add job '%s': %w", name, err)
	}
	cm.jobs[name] = id
	return nil
}

// RemoveJob убирает задачу из расписания.
func (cm *CronManager) RemoveJob(name string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if entryID, exists := cm.jobs[name]; exists {
		cm.dispatcher.Remove(entryID)
		delete(cm.jobs, name)
	}
}

// Jobs возвращает имена задач в расписании.
func (cm *CronManager) Jobs() []string {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	res := make([]string, 0, len(cm.jobs))
	for name := range cm.jobs {
		res = append(res, name)
	}
	return res
}

func (cm *CronManager) Start() {
	cm.dispatcher.Start()
}

// Stop останавливает диспетчер и ждёт завершения выполняющихся задач.
func (cm *CronManager) Stop() {
	ctx := cm.dispatcher.Stop()
	<-ctx.Done()
}
