package publicholiday

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/leave-engine/events"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// SERVICE - trigger entry points
// =============================================================================

// Options tune a Service.
type Options struct {
	// DeduplicatePerContact skips a (contact, absence type, date) that already
	// has a public holiday leave request. With it off, a contact with two
	// overlapping contracts gets one request per contract, still created once.
	DeduplicatePerContact bool

	// Now is the clock used to decide which holidays are in the future.
	Now func() time.Time
}

func DefaultOptions() Options {
	return Options{DeduplicatePerContact: true, Now: time.Now}
}

// Result summarises one pass.
type Result struct {
	Created     []leave.LeaveRequest
	Skipped     int
	NothingToDo bool
}

func (r *Result) merge(other Result) {
	r.Created = append(r.Created, other.Created...)
	r.Skipped += other.Skipped
}

// Service runs the resolve, generate, reconcile pipeline for each trigger.
type Service struct {
	store     leave.TxStore
	resolver  *Resolver
	adjuster  *Adjuster
	publisher events.Publisher
	logger    logrus.FieldLogger
	opts      Options
}

func NewService(store leave.TxStore, publisher events.Publisher, logger logrus.FieldLogger, opts Options) *Service {
	if publisher == nil {
		publisher = events.Discard{}
	}
	if logger == nil {
		logger = discardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:     store,
		resolver:  NewResolver(store),
		adjuster:  NewAdjuster(store, publisher, logger),
		publisher: publisher,
		logger:    logger,
		opts:      opts,
	}
}

// Adjuster returns the adjuster the service reconciles with. Callers that
// reconcile outside the service must use it so they share its day locks.
func (s *Service) Adjuster() *Adjuster { return s.adjuster }

// CreateForAbsenceType creates public holiday leave for every contract
// covering a future holiday. No future holidays is reported through
// Result.NothingToDo, not as an error. The pass stops at the first failure;
// requests created before it stay.
func (s *Service) CreateForAbsenceType(ctx context.Context, absenceType leave.AbsenceType) (Result, error) {
	if err := checkFlagged(absenceType); err != nil {
		return Result{}, err
	}

	log := s.logger.WithField("absence_type_id", absenceType.ID)
	matches, err := s.resolver.Resolve(ctx, s.opts.Now())
	if errors.Is(err, leave.ErrNoHolidays) {
		log.Info("no future public holidays, nothing to do")
		return Result{NothingToDo: true}, nil
	}
	if err != nil {
		return Result{}, err
	}

	res, err := s.createMatches(ctx, absenceType, matches)
	log.WithFields(logrus.Fields{
		"matches": len(matches),
		"created": len(res.Created),
		"skipped": res.Skipped,
	}).Info("public holiday leave pass finished")
	return res, err
}

// CreateForContact creates the public holiday request of one contact for one
// holiday, using the absence type flagged to take public holidays as leave.
func (s *Service) CreateForContact(ctx context.Context, contactID leave.ContactID, holiday leave.PublicHoliday) (Result, error) {
	absenceType, err := s.store.GetPublicHolidayAbsenceType(ctx)
	if err != nil {
		return Result{}, err
	}
	return s.create(ctx, absenceType, leave.Contract{ContactID: contactID}, holiday)
}

// CreateForHoliday creates leave for a newly added holiday on every contract
// covering its date. Inactive or past holidays, or no flagged absence type,
// leave nothing to do.
func (s *Service) CreateForHoliday(ctx context.Context, holiday leave.PublicHoliday) (Result, error) {
	if !holiday.IsActive || holiday.Date.Before(leave.DateOf(s.opts.Now())) {
		return Result{NothingToDo: true}, nil
	}
	absenceType, ok, err := s.flaggedType(ctx)
	if err != nil || !ok {
		return Result{NothingToDo: !ok && err == nil}, err
	}

	matches, err := s.resolver.ForHoliday(ctx, holiday)
	if err != nil {
		return Result{}, err
	}
	return s.createMatches(ctx, absenceType, matches)
}

// CreateForContract creates leave for a newly added contract on every future
// holiday it covers.
func (s *Service) CreateForContract(ctx context.Context, contract leave.Contract) (Result, error) {
	absenceType, ok, err := s.flaggedType(ctx)
	if err != nil || !ok {
		return Result{NothingToDo: !ok && err == nil}, err
	}

	matches, err := s.resolver.ForContract(ctx, contract, s.opts.Now())
	if err != nil {
		return Result{}, err
	}
	if len(matches) == 0 {
		return Result{NothingToDo: true}, nil
	}
	return s.createMatches(ctx, absenceType, matches)
}

func (s *Service) flaggedType(ctx context.Context) (leave.AbsenceType, bool, error) {
	t, err := s.store.GetPublicHolidayAbsenceType(ctx)
	if errors.Is(err, leave.ErrNoPublicHolidayAbsenceType) {
		return leave.AbsenceType{}, false, nil
	}
	if err != nil {
		return leave.AbsenceType{}, false, err
	}
	return t, true, nil
}

func (s *Service) createMatches(ctx context.Context, absenceType leave.AbsenceType, matches []Match) (Result, error) {
	var res Result
	for _, m := range matches {
		one, err := s.create(ctx, absenceType, m.Contract, m.Holiday)
		if err != nil {
			return res, err
		}
		res.merge(one)
	}
	return res, nil
}

// create generates and reconciles one request in a single transaction while
// holding the day lock. A contract without an ID stands for just its contact.
// A holiday already booked for the contact, or for the contract when
// deduplication is off, is skipped.
func (s *Service) create(ctx context.Context, absenceType leave.AbsenceType, contract leave.Contract, holiday leave.PublicHoliday) (Result, error) {
	if err := checkFlagged(absenceType); err != nil {
		return Result{}, err
	}
	contactID := contract.ContactID

	log := s.logger.WithFields(logrus.Fields{
		"contact_id":      contactID,
		"absence_type_id": absenceType.ID,
		"holiday_date":    holiday.Date.String(),
	})

	unlock := s.adjuster.Lock(contactID, holiday.Date)
	defer unlock()

	var (
		req     leave.LeaveRequest
		skipped bool
	)
	err := s.store.WithTx(ctx, func(tx leave.Store) error {
		q := leave.PublicHolidayRequestQuery{ContactID: contactID, TypeID: absenceType.ID, Date: holiday.Date}
		if !s.opts.DeduplicatePerContact {
			q.ContractID = contract.ID
		}
		exists, err := tx.HasPublicHolidayRequest(ctx, q)
		if err != nil {
			return err
		}
		if exists {
			skipped = true
			return nil
		}

		req, err = NewGenerator(tx).GenerateForContract(ctx, contract, absenceType, holiday)
		if err != nil {
			return err
		}
		_, err = s.adjuster.ReconcileIn(ctx, tx, req)
		return err
	})
	if err != nil {
		log.WithError(err).Error("public holiday leave creation failed")
		return Result{}, fmt.Errorf("create public holiday leave for contact %s on %s: %w", contactID, holiday.Date, err)
	}
	if skipped {
		log.Debug("public holiday leave already exists, skipped")
		return Result{Skipped: 1}, nil
	}

	log.WithField("leave_request_id", req.ID).Info("public holiday leave created")
	s.publisher.Publish(ctx, events.Event{
		Topic:          events.TopicLeaveRequestCreated,
		ContactID:      contactID,
		LeaveRequestID: req.ID,
	})
	s.publisher.Publish(ctx, events.Event{
		Topic:          events.TopicBalanceChanged,
		ContactID:      contactID,
		LeaveRequestID: req.ID,
	})
	return Result{Created: []leave.LeaveRequest{req}}, nil
}

func checkFlagged(t leave.AbsenceType) error {
	if t.MustTakePublicHolidayAsLeave {
		return nil
	}
	return &leave.InvalidConfigurationError{
		AbsenceTypeID: t.ID,
		Reason:        "absence type does not take public holidays as leave",
	}
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
