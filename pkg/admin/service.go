// Package admin implements the create, update and delete flow shared by the
// speakers and partners management screens.
package admin

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/madhesh-litfest/mlf/pkg/backend"
	"github.com/madhesh-litfest/mlf/pkg/collection"
	"github.com/madhesh-litfest/mlf/pkg/content"
	mlferrors "github.com/madhesh-litfest/mlf/pkg/errors"
	"github.com/madhesh-litfest/mlf/pkg/notify"
)

// Payload is a validated form submission for one collection.
type Payload interface {
	Collection() string
	Title() string
	Validate() error
	Fields() map[string]any
}

// Notifier receives content change events after successful writes.
type Notifier interface {
	Notify(ctx context.Context, event *notify.Event) error
}

type options struct {
	notifier Notifier
	logger   *zap.Logger
	dev      bool
	now      func() time.Time
}

// Option configures a Service.
type Option func(*options)

// WithNotifier publishes a change event after every successful write.
func WithNotifier(n Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithDevDiagnostics logs full payloads on every write.
func WithDevDiagnostics(dev bool) Option {
	return func(o *options) { o.dev = dev }
}

// WithClock replaces time.Now for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// Service manages one collection on behalf of a signed-in administrator.
type Service[T any, P Payload] struct {
	name    string
	records backend.RecordStore
	auth    backend.Authenticator
	mapRow  collection.MapFunc[T]
	opts    options
	logger  *zap.Logger
}

// NewService builds the service for collection name.
func NewService[T any, P Payload](name string, b backend.Backend, mapRow collection.MapFunc[T], opts ...Option) *Service[T, P] {
	o := options{logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Service[T, P]{
		name:    name,
		records: b.Records,
		auth:    b.Auth,
		mapRow:  mapRow,
		opts:    o,
		logger:  o.logger.Named("admin").With(zap.String("collection", name)),
	}
}

// Speakers returns the speakers service.
func Speakers(b backend.Backend, opts ...Option) *Service[content.SpeakerCard, content.SpeakerInput] {
	return NewService[content.SpeakerCard, content.SpeakerInput](content.CollectionSpeakers, b, collection.SpeakerCard, opts...)
}

// Partners returns the partners service.
func Partners(b backend.Backend, opts ...Option) *Service[content.PartnerCard, content.PartnerInput] {
	return NewService[content.PartnerCard, content.PartnerInput](content.CollectionPartners, b, collection.PartnerCard, opts...)
}

// Name is the collection name.
func (s *Service[T, P]) Name() string { return s.name }

// Singular is the display noun for one record ("speaker").
func (s *Service[T, P]) Singular() string { return strings.TrimSuffix(s.name, "s") }

// List fetches the whole collection, newest first.
func (s *Service[T, P]) List(ctx context.Context, session *backend.Session) collection.Snapshot[T] {
	return collection.New(s.records, s.name, s.mapRow, s.logger).WithSession(session).Load(ctx)
}

// Get loads one record for the edit form.
func (s *Service[T, P]) Get(ctx context.Context, session *backend.Session, id string) (T, error) {
	var zero T
	if s.records == nil {
		return zero, errStoreMissing()
	}
	row, err := s.records.Get(ctx, session, s.name, id)
	if err != nil {
		return zero, mlferrors.Remote(err, "Failed to load "+s.Singular())
	}
	rec, err := s.mapRow(row)
	if err != nil {
		return zero, mlferrors.Wrap(err, mlferrors.ErrCodeRemoteCall, "unreadable row").
			WithContext("id", id).
			WithUserMessage("Failed to read " + s.Singular())
	}
	return rec, nil
}

// Save validates payload, re-verifies the administrator with the
// authenticator and then inserts (empty id) or updates the record. An update
// that touches no rows is reported as ErrCodeNoRowsAffected.
func (s *Service[T, P]) Save(ctx context.Context, session *backend.Session, id string, payload P) (T, error) {
	var zero T
	if err := payload.Validate(); err != nil {
		return zero, err
	}
	user, err := s.verify(ctx, session)
	if err != nil {
		return zero, err
	}
	if s.records == nil {
		return zero, errStoreMissing()
	}

	fields := payload.Fields()
	if s.opts.dev {
		s.logger.Debug("saving record", zap.String("id", id), zap.Any("fields", fields))
	}

	var (
		row backend.Row
		op  notify.Op
	)
	if id == "" {
		op = notify.OpCreated
		row, err = s.records.Insert(ctx, session, s.name, fields)
		if err != nil {
			s.logger.Warn("insert failed", zap.Error(err))
			return zero, mlferrors.Remote(err, "Failed to save "+s.Singular())
		}
	} else {
		op = notify.OpUpdated
		rows, err := s.records.Update(ctx, session, s.name, id, fields)
		if err != nil {
			s.logger.Warn("update failed", zap.String("id", id), zap.Error(err))
			return zero, mlferrors.Remote(err, "Failed to save "+s.Singular())
		}
		if len(rows) == 0 {
			s.logger.Warn("update affected zero rows", zap.String("id", id), zap.String("user", user.Email))
			return zero, mlferrors.NoRowsAffected(s.name, id)
		}
		row = rows[0]
	}

	rec, err := s.mapRow(row)
	if err != nil {
		return zero, mlferrors.Wrap(err, mlferrors.ErrCodeRemoteCall, "unreadable row").
			WithUserMessage("Failed to read saved " + s.Singular())
	}
	recordID := row.String("id")
	if recordID == "" {
		recordID = id
	}
	s.logger.Info("record saved", zap.String("op", string(op)), zap.String("id", recordID), zap.String("user", user.Email))
	s.publish(ctx, op, recordID, payload.Title(), user)
	return rec, nil
}

// Delete removes a record. Without confirmed it returns
// ErrCodeConfirmationRequired and touches nothing.
func (s *Service[T, P]) Delete(ctx context.Context, session *backend.Session, id string, confirmed bool) error {
	if !confirmed {
		return mlferrors.New(mlferrors.ErrCodeConfirmationRequired, "delete not confirmed").
			WithContext("id", id).
			WithUserMessage("Are you sure you want to delete this " + s.Singular() + "?")
	}
	user, err := s.verify(ctx, session)
	if err != nil {
		return err
	}
	if s.records == nil {
		return errStoreMissing()
	}
	if err := s.records.Delete(ctx, session, s.name, id); err != nil {
		s.logger.Warn("delete failed", zap.String("id", id), zap.Error(err))
		return mlferrors.Remote(err, "Failed to delete "+s.Singular())
	}
	s.logger.Info("record deleted", zap.String("id", id), zap.String("user", user.Email))
	s.publish(ctx, notify.OpDeleted, id, "", user)
	return nil
}

// verify asks the authenticator who owns session. Nothing cached locally is
// trusted.
func (s *Service[T, P]) verify(ctx context.Context, session *backend.Session) (*backend.User, error) {
	if s.auth == nil {
		return nil, mlferrors.New(mlferrors.ErrCodeConfigInvalid, "no authenticator").
			WithUserMessage("Authentication is not configured")
	}
	if session == nil {
		return nil, mlferrors.Unauthorized("Not authenticated")
	}
	user, err := s.auth.CurrentUser(ctx, session)
	if err != nil {
		if mlferrors.IsCode(err, mlferrors.ErrCodeUnauthorized) {
			return nil, err
		}
		return nil, mlferrors.Wrap(err, mlferrors.ErrCodeUnauthorized, "verify session").
			WithUserMessage("Not authenticated")
	}
	if user == nil {
		return nil, mlferrors.Unauthorized("Not authenticated")
	}
	return user, nil
}

func (s *Service[T, P]) publish(ctx context.Context, op notify.Op, id, title string, user *backend.User) {
	if s.opts.notifier == nil {
		return
	}
	event := &notify.Event{
		ID:         uuid.NewString(),
		Collection: s.name,
		Op:         op,
		RecordID:   id,
		Title:      title,
		Actor:      user.Email,
		Timestamp:  s.opts.now().UTC(),
	}
	if err := s.opts.notifier.Notify(ctx, event); err != nil {
		s.logger.Warn("change notification failed", zap.String("id", id), zap.Error(err))
	}
}

func errStoreMissing() *mlferrors.Error {
	return mlferrors.New(mlferrors.ErrCodeConfigInvalid, "no record store").
		WithUserMessage("The content store is not configured")
}
