package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"eastviewpta.org/internal/pta"
)

func normalizeEvent(e pta.Event) pta.Event {
	e.Attendees = nonNil(e.Attendees)
	e.Volunteers = nonNil(e.Volunteers)
	return e
}

func (s *Store) CreateEvent(ctx context.Context, e pta.Event) (pta.Event, error) {
	e = normalizeEvent(e)
	if _, err := s.events.InsertOne(ctx, e); err != nil {
		return pta.Event{}, mapError("event", err)
	}
	return e, nil
}

func (s *Store) GetEvent(ctx context.Context, id string) (pta.Event, error) {
	var e pta.Event
	if err := s.events.FindOne(ctx, bson.M{"_id": id}).Decode(&e); err != nil {
		return pta.Event{}, mapError("event", err)
	}
	return e, nil
}

func eventFilter(f pta.EventFilter) bson.M {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	start := bson.M{}
	if f.From != nil {
		start["$gte"] = *f.From
	}
	if f.To != nil {
		start["$lte"] = *f.To
	}
	if len(start) > 0 {
		filter["start_date"] = start
	}
	if f.EndedBy != nil {
		filter["end_date"] = bson.M{"$lte": *f.EndedBy}
	}
	return filter
}

func (s *Store) ListEvents(ctx context.Context, f pta.EventFilter) ([]pta.Event, error) {
	cur, err := s.events.Find(ctx, eventFilter(f),
		options.Find().SetSort(bson.D{{Key: "start_date", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	out := make([]pta.Event, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateEvent leaves attendees and volunteers alone; those are owned by the
// registration calls.
func (s *Store) UpdateEvent(ctx context.Context, e pta.Event) (pta.Event, error) {
	set, err := setFields(e, "attendees", "volunteers")
	if err != nil {
		return pta.Event{}, err
	}
	return s.modifyEvent(ctx, bson.M{"_id": e.ID}, bson.M{"$set": set})
}

// registrationFilter matches the event only while the user has no live entry
// and a registered spot is still free.
func registrationFilter(eventID, userID string) bson.M {
	registered := bson.M{"$size": bson.M{"$filter": bson.M{
		"input": bson.M{"$ifNull": bson.A{"$attendees", bson.A{}}},
		"as":    "a",
		"cond":  bson.M{"$eq": bson.A{"$$a.status", pta.RegistrationRegistered}},
	}}}
	return bson.M{
		"_id": eventID,
		"attendees": bson.M{"$not": bson.M{"$elemMatch": bson.M{
			"user_id": userID,
			"status":  bson.M{"$ne": pta.RegistrationCancelled},
		}}},
		"$expr": bson.M{"$or": bson.A{
			bson.M{"$lte": bson.A{bson.M{"$ifNull": bson.A{"$max_attendees", 0}}, 0}},
			bson.M{"$lt": bson.A{registered, "$max_attendees"}},
		}},
	}
}

// AddRegistration appends the entry in one conditional update. When nothing
// matches, the event is re-read to report why.
func (s *Store) AddRegistration(ctx context.Context, eventID string, r pta.Registration) (pta.Event, error) {
	for range maxRegisterAttempts {
		e, err := s.modifyEvent(ctx, registrationFilter(eventID, r.UserID), bson.M{"$push": bson.M{"attendees": r}})
		if !errors.Is(err, pta.ErrNotFound) {
			return e, err
		}
		cur, err := s.GetEvent(ctx, eventID)
		if err != nil {
			return pta.Event{}, err
		}
		if _, dup := cur.ActiveRegistration(r.UserID); dup {
			return pta.Event{}, pta.ErrAlreadyRegistered
		}
		if cur.IsFull() {
			return pta.Event{}, pta.ErrEventFull
		}
	}
	return pta.Event{}, fmt.Errorf("event registration kept changing: %w", pta.ErrConflict)
}

func (s *Store) SetRegistrationStatus(ctx context.Context, eventID, userID string, from []pta.RegistrationStatus, to pta.RegistrationStatus) (pta.Event, error) {
	e, err := s.modifyEvent(ctx,
		bson.M{"_id": eventID, "attendees": bson.M{"$elemMatch": bson.M{"user_id": userID, "status": bson.M{"$in": from}}}},
		bson.M{"$set": bson.M{"attendees.$.status": to}})
	if !errors.Is(err, pta.ErrNotFound) {
		return e, err
	}
	if _, err := s.GetEvent(ctx, eventID); err != nil {
		return pta.Event{}, err
	}
	return pta.Event{}, notFound("registration")
}

func (s *Store) modifyEvent(ctx context.Context, filter, update bson.M) (pta.Event, error) {
	var e pta.Event
	err := s.events.FindOneAndUpdate(ctx, filter, update, returnAfter).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return pta.Event{}, notFound("event")
	}
	if err != nil {
		return pta.Event{}, err
	}
	return e, nil
}
