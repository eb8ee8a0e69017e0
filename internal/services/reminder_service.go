package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"ticus/internal/models"
)

// ReminderService fires a session_due event when a timetable slot's
// start time arrives, once per week per slot.
type ReminderService struct {
	scheduler gocron.Scheduler
	timetable *TimetableService
	notify    *NotifyService
	loc       *time.Location

	mu       sync.Mutex
	jobs     map[string]gocron.Job // slotID -> job
	userJobs map[string][]string   // userID -> slot IDs
}

// NewReminderService creates a new reminder service.
func NewReminderService(timetable *TimetableService, notify *NotifyService, loc *time.Location) (*ReminderService, error) {
	scheduler, err := gocron.NewScheduler(
		gocron.WithLocation(loc),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return &ReminderService{
		scheduler: scheduler,
		timetable: timetable,
		notify:    notify,
		loc:       loc,
		jobs:      make(map[string]gocron.Job),
		userJobs:  make(map[string][]string),
	}, nil
}

// Start loads every slot in the database and begins firing reminders.
func (s *ReminderService) Start(ctx context.Context) error {
	log.Println("⏰ Starting reminder service...")

	entries, err := s.timetable.ListAll(ctx)
	if err != nil {
		log.Printf("⚠️  Failed to load timetable slots: %v", err)
	}

	var count int
	for i := range entries {
		if err := s.registerSlot(&entries[i]); err != nil {
			log.Printf("⚠️  Failed to register slot %s: %v", entries[i].ID, err)
			continue
		}
		count++
	}

	s.scheduler.Start()
	log.Printf("✅ Reminder service started (%d slots)", count)
	return nil
}

// Stop shuts the scheduler down.
func (s *ReminderService) Stop() error {
	log.Println("⏹️ Stopping reminder service...")
	return s.scheduler.Shutdown()
}

// Refresh re-registers all reminders for one user after a timetable
// change.
func (s *ReminderService) Refresh(ctx context.Context, userID string) error {
	s.removeUserJobs(userID)

	entries, err := s.timetable.List(ctx, userID)
	if err != nil {
		return err
	}
	for i := range entries {
		if err := s.registerSlot(&entries[i]); err != nil {
			log.Printf("⚠️  Failed to register slot %s: %v", entries[i].ID, err)
		}
	}
	return nil
}

func (s *ReminderService) registerSlot(entry *models.TimetableEntry) error {
	hour, minute, err := models.ParseClockTime(entry.StartTime)
	if err != nil {
		return err
	}

	slot := *entry
	job, err := s.scheduler.NewJob(
		gocron.WeeklyJob(
			1,
			gocron.NewWeekdays(time.Weekday(slot.Weekday)),
			gocron.NewAtTimes(gocron.NewAtTime(uint(hour), uint(minute), 0)),
		),
		gocron.NewTask(func() {
			s.fire(&slot)
		}),
		gocron.WithName("slot_"+slot.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule slot: %w", err)
	}

	s.mu.Lock()
	s.jobs[slot.ID] = job
	s.userJobs[slot.UserID] = append(s.userJobs[slot.UserID], slot.ID)
	s.mu.Unlock()
	return nil
}

func (s *ReminderService) fire(slot *models.TimetableEntry) {
	s.notify.Notify(slot.UserID, models.SessionEvent{
		Type:      models.EventSessionDue,
		Timestamp: time.Now().In(s.loc),
		Subject:   slot.Subject,
		Message:   fmt.Sprintf("Time to study %s (%d min)", slot.Subject, slot.DurationMinutes),
	})
}

func (s *ReminderService) removeUserJobs(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, slotID := range s.userJobs[userID] {
		if job, ok := s.jobs[slotID]; ok {
			if err := s.scheduler.RemoveJob(job.ID()); err != nil {
				log.Printf("⚠️  Failed to remove reminder job %s: %v", slotID, err)
			}
			delete(s.jobs, slotID)
		}
	}
	delete(s.userJobs, userID)
}
