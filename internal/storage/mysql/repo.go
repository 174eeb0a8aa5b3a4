package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"channex_sync/internal/domain"
)

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullStr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

func notFound(err error, what, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", what, id, domain.ErrNotFound)
	}
	return err
}

func scanProperty(s scanner) (domain.Property, error) {
	var p domain.Property
	var groupID, channexID sql.NullString
	if err := s.Scan(&p.ID, &groupID, &p.Title, &p.Currency, &channexID); err != nil {
		return domain.Property{}, err
	}
	p.GroupID = nullStr(groupID)
	p.ChannexPropertyID = nullStr(channexID)
	return p, nil
}

func (r *Repo) GetProperty(ctx context.Context, id string) (domain.Property, error) {
	p, err := scanProperty(r.db.QueryRowContext(ctx, getPropertySQL, id))
	if err != nil {
		return domain.Property{}, notFound(err, "property", id)
	}
	return p, nil
}

func (r *Repo) FindPropertyByChannexID(ctx context.Context, channexID string) (domain.Property, error) {
	p, err := scanProperty(r.db.QueryRowContext(ctx, findPropertyByChannexIDSQL, channexID))
	if err != nil {
		return domain.Property{}, notFound(err, "channex property", channexID)
	}
	return p, nil
}

func (r *Repo) GetGroup(ctx context.Context, id string) (domain.Group, error) {
	var g domain.Group
	if err := r.db.QueryRowContext(ctx, getGroupSQL, id).Scan(&g.ID, &g.Title); err != nil {
		return domain.Group{}, notFound(err, "group", id)
	}
	return g, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRoomType(s scanner) (domain.RoomType, error) {
	var rt domain.RoomType
	err := s.Scan(
		&rt.ID,
		&rt.PropertyID,
		&rt.Title,
		&rt.OccAdults, &rt.OccChildren, &rt.OccInfants,
		&rt.CountOfRooms,
		&rt.Capacity,
		&rt.DefaultOccupancy,
	)
	return rt, err
}

func (r *Repo) GetRoomType(ctx context.Context, id string) (domain.RoomType, error) {
	rt, err := scanRoomType(r.db.QueryRowContext(ctx, getRoomTypeSQL, id))
	if err != nil {
		return domain.RoomType{}, notFound(err, "room type", id)
	}
	return rt, nil
}

func (r *Repo) ListRoomTypes(ctx context.Context, propertyID string) ([]domain.RoomType, error) {
	rows, err := r.db.QueryContext(ctx, listRoomTypesSQL, propertyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RoomType
	for rows.Next() {
		rt, err := scanRoomType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rt)
	}
	return out, rows.Err()
}

func (r *Repo) GetTax(ctx context.Context, id string) (domain.Tax, error) {
	var t domain.Tax
	var currency sql.NullString
	err := r.db.QueryRowContext(ctx, getTaxSQL, id).Scan(
		&t.ID, &t.PropertyID, &t.Title, &t.Logic, &t.Type, &t.Rate, &t.IsInclusive, &currency,
	)
	if err != nil {
		return domain.Tax{}, notFound(err, "tax", id)
	}
	t.Currency = nullStr(currency)
	return t, nil
}

func (r *Repo) GetRatePlan(ctx context.Context, id string) (domain.RatePlan, error) {
	var rp domain.RatePlan
	err := r.db.QueryRowContext(ctx, getRatePlanSQL, id).Scan(
		&rp.ID, &rp.PropertyID, &rp.RoomTypeID, &rp.Title, &rp.Currency, &rp.SellMode, &rp.RateMode,
	)
	if err != nil {
		return domain.RatePlan{}, notFound(err, "rate plan", id)
	}

	rows, err := r.db.QueryContext(ctx, listRatePlanOptionsSQL, id)
	if err != nil {
		return domain.RatePlan{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var o domain.RatePlanOption
		if err := rows.Scan(&o.Occupancy, &o.IsPrimary, &o.Rate); err != nil {
			return domain.RatePlan{}, err
		}
		rp.Options = append(rp.Options, o)
	}
	return rp, rows.Err()
}

func (r *Repo) ListAvailability(ctx context.Context, propertyID string, dr domain.DateRange) ([]domain.AvailabilityRecord, error) {
	rows, err := r.db.QueryContext(ctx, listAvailabilitySQL,
		propertyID,
		domain.Day(dr.Start).Format(domain.DateLayout),
		domain.Day(dr.End).Format(domain.DateLayout),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AvailabilityRecord
	for rows.Next() {
		var rec domain.AvailabilityRecord
		if err := rows.Scan(&rec.RoomTypeID, &rec.Date, &rec.Availability); err != nil {
			return nil, err
		}
		rec.Date = domain.Day(rec.Date)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *Repo) ListEntityIDs(ctx context.Context, propertyID string, t domain.EntityType) ([]string, error) {
	var q string
	switch t {
	case domain.EntityGroup:
		q = listPropertyGroupIDsSQL
	case domain.EntityRoomType:
		q = listRoomTypeIDsSQL
	case domain.EntityTax:
		q = listTaxIDsSQL
	case domain.EntityRatePlan:
		q = listRatePlanIDsSQL
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownEntity, t)
	}

	rows, err := r.db.QueryContext(ctx, q, propertyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *Repo) LogSync(ctx context.Context, l domain.SyncLog) error {
	var at any
	if !l.At.IsZero() {
		at = l.At.UTC()
	}
	_, err := r.db.ExecContext(ctx, insertSyncLogSQL,
		string(l.EntityType),
		l.LocalID,
		valStr(l.ExternalID),
		string(l.Op),
		l.Status,
		valStr(l.Message),
		at,
	)
	return err
}
