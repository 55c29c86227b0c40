package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"questlog/internal/model"
	"questlog/pkg/civil"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

type user struct {
	ID            uuid.UUID `db:"id"`
	Timezone      string    `db:"timezone"`
	XP            int       `db:"xp"`
	Streak        int       `db:"streak"`
	LastActiveDay *string   `db:"last_active_day"`
	CreatedAt     time.Time `db:"created_at"`
}

func (u user) toModel() *model.User {
	m := &model.User{
		ID:        u.ID,
		Timezone:  u.Timezone,
		XP:        u.XP,
		Streak:    u.Streak,
		CreatedAt: u.CreatedAt,
	}
	if u.LastActiveDay != nil {
		d := civil.Date(*u.LastActiveDay)
		m.LastActiveDay = &d
	}
	return m
}

func (r *Repository) CreateUser(ctx context.Context, u *model.User) error {
	query, args, err := squirrel.
		Insert("users").
		SetMap(map[string]interface{}{
			"id":         u.ID,
			"timezone":   u.Timezone,
			"xp":         u.XP,
			"streak":     u.Streak,
			"created_at": u.CreatedAt,
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build user insert query: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query, args, err := squirrel.
		Select("id", "timezone", "xp", "streak", "last_active_day", "created_at").
		From("users").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var u user
	err = r.db.GetContext(ctx, &u, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return u.toModel(), nil
}

func (r *Repository) ListUsers(ctx context.Context) ([]*model.User, error) {
	query, args, err := squirrel.
		Select("id", "timezone", "xp", "streak", "last_active_day", "created_at").
		From("users").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []user
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, err
	}

	users := make([]*model.User, len(rows))
	for i, u := range rows {
		users[i] = u.toModel()
	}
	return users, nil
}

func (r *Repository) ReadUserXP(ctx context.Context, id uuid.UUID) (int, error) {
	query, args, err := squirrel.
		Select("xp").
		From("users").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return 0, err
	}

	var xp int
	err = r.db.GetContext(ctx, &xp, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}

	return xp, nil
}

func (r *Repository) AdjustUserXP(ctx context.Context, id uuid.UUID, delta int) error {
	query, args, err := squirrel.
		Update("users").
		Set("xp", squirrel.Expr("xp + ?", delta)).
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (r *Repository) UpdateUserTimezone(ctx context.Context, id uuid.UUID, timezone string) error {
	query, args, err := squirrel.
		Update("users").
		Set("timezone", timezone).
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (r *Repository) WriteUserStreak(ctx context.Context, id uuid.UUID, streak int, lastActive *civil.Date) error {
	var lastActiveDay *string
	if lastActive != nil {
		s := lastActive.String()
		lastActiveDay = &s
	}

	query, args, err := squirrel.
		Update("users").
		SetMap(map[string]interface{}{
			"streak":          streak,
			"last_active_day": lastActiveDay,
		}).
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (r *Repository) TopUsers(ctx context.Context, limit int) ([]*model.User, error) {
	query, args, err := squirrel.
		Select("id", "timezone", "xp", "streak", "last_active_day", "created_at").
		From("users").
		OrderBy("xp DESC").
		Limit(uint64(limit)).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []user
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, err
	}

	users := make([]*model.User, len(rows))
	for i, u := range rows {
		users[i] = u.toModel()
	}
	return users, nil
}
