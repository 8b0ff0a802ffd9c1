package workers

import (
	"log"
	"sync"

	"github.com/Novakiki/kindredbackend/models"
	"github.com/Novakiki/kindredbackend/repository"
)

// Messenger delivers an invite over its channel (SMS or email). Delivery
// mechanics live outside this repo; the worker only coordinates.
type Messenger interface {
	SendInvite(invite models.Invite, claimURL string) error
}

// InviteJob is one queued delivery.
type InviteJob struct {
	InviteID uint
	ClaimURL string
}

// InviteDispatcher drains a queue of pending invite deliveries and advances
// each invite to sent once its message has gone out.
type InviteDispatcher struct {
	JobQueue  chan InviteJob
	Invites   repository.InviteRepositoryInterface
	Messenger Messenger
	Wg        sync.WaitGroup
	StopChan  chan struct{}
	Pending   map[uint]bool
	Mutex     sync.Mutex
}

func NewInviteDispatcher(invites repository.InviteRepositoryInterface, messenger Messenger, queueSize, numWorkers int) *InviteDispatcher {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if queueSize <= 0 {
		queueSize = 100
	}

	d := &InviteDispatcher{
		JobQueue:  make(chan InviteJob, queueSize),
		Invites:   invites,
		Messenger: messenger,
		StopChan:  make(chan struct{}),
		Pending:   make(map[uint]bool),
	}

	d.Wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go d.worker(i)
	}
	log.Printf("started %d invite delivery worker(s) with queue size %d", numWorkers, queueSize)

	return d
}

func (d *InviteDispatcher) worker(id int) {
	defer d.Wg.Done()
	log.Printf("invite worker %d started", id)
	for {
		select {
		case job, ok := <-d.JobQueue:
			if !ok {
				log.Printf("invite worker %d stopping: job queue closed", id)
				return
			}
			d.processJob(job)
			d.Mutex.Lock()
			delete(d.Pending, job.InviteID)
			d.Mutex.Unlock()

		case <-d.StopChan:
			log.Printf("invite worker %d stopping: stop signal received", id)
			return
		}
	}
}

func (d *InviteDispatcher) processJob(job InviteJob) {
	invite, err := d.Invites.GetByID(job.InviteID)
	if err != nil {
		log.Printf("ERROR loading invite %d for delivery: %v", job.InviteID, err)
		return
	}
	if !invite.IsValid() {
		log.Printf("invite %d no longer valid, skipping delivery", job.InviteID)
		return
	}
	if !invite.CanTransitionTo(models.InviteStatusSent) {
		log.Printf("invite %d already past sending (status %s), skipping delivery", invite.ID, invite.Status)
		return
	}

	if err := d.Messenger.SendInvite(*invite, job.ClaimURL); err != nil {
		log.Printf("ERROR delivering invite %d via %s: %v", invite.ID, invite.Channel, err)
		return
	}

	if err := d.Invites.UpdateStatus(invite.ID, models.InviteStatusSent); err != nil {
		log.Printf("ERROR marking invite %d sent after delivery: %v", invite.ID, err)
		return
	}
	log.Printf("delivered invite %d to %s via %s", invite.ID, invite.RecipientName, invite.Channel)
}

// QueueJob enqueues a delivery unless one is already pending for the invite.
func (d *InviteDispatcher) QueueJob(job InviteJob) bool {
	d.Mutex.Lock()
	if d.Pending[job.InviteID] {
		d.Mutex.Unlock()
		log.Printf("delivery for invite %d already pending, skipping queue", job.InviteID)
		return false
	}
	d.Pending[job.InviteID] = true
	d.Mutex.Unlock()

	select {
	case d.JobQueue <- job:
		return true
	default:
		d.Mutex.Lock()
		delete(d.Pending, job.InviteID)
		d.Mutex.Unlock()
		log.Printf("invite delivery queue full, dropping job for invite %d", job.InviteID)
		return false
	}
}

// Stop signals all workers to finish and waits for them.
func (d *InviteDispatcher) Stop() {
	close(d.StopChan)
	d.Wg.Wait()
	log.Println("invite dispatcher stopped")
}

// LogMessenger is the default Messenger when no delivery integration is
// configured; it only logs what would have been sent.
type LogMessenger struct{}

func (LogMessenger) SendInvite(invite models.Invite, claimURL string) error {
	log.Printf("invite %d for %s (%s): %s", invite.ID, invite.RecipientName, invite.Channel, claimURL)
	return nil
}
