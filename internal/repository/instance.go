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
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type questInstance struct {
	ID          uuid.UUID  `db:"id"`
	UserID      uuid.UUID  `db:"user_id"`
	TemplateID  *uuid.UUID `db:"template_id"`
	Day         string     `db:"day"`
	Title       string     `db:"title"`
	BasePoints  int        `db:"base_points"`
	Completed   bool       `db:"completed"`
	CompletedAt *time.Time `db:"completed_at"`
	XPReward    *int       `db:"xp_reward"`
}

func (q questInstance) toModel() *model.QuestInstance {
	return &model.QuestInstance{
		ID:          q.ID,
		UserID:      q.UserID,
		TemplateID:  q.TemplateID,
		Day:         civil.Date(q.Day),
		Title:       q.Title,
		BasePoints:  q.BasePoints,
		Completed:   q.Completed,
		CompletedAt: q.CompletedAt,
		XPReward:    q.XPReward,
	}
}

var instanceColumns = []string{
	"id", "user_id", "template_id", "day", "title",
	"base_points", "completed", "completed_at", "xp_reward",
}

// UpsertInstances inserts the given instances, silently skipping any
// that collide with an existing (user, template, day) row. The unique
// index is what enforces the at-most-one-instance-per-day invariant, so
// concurrent generation runs stay idempotent. Returns the number of
// rows actually inserted.
func (r *Repository) UpsertInstances(ctx context.Context, userID uuid.UUID, instances []*model.QuestInstance) (int, error) {
	if len(instances) == 0 {
		return 0, nil
	}

	builder := squirrel.
		Insert("quest_instances").
		Columns(instanceColumns...)

	for _, inst := range instances {
		builder = builder.Values(
			inst.ID, userID, inst.TemplateID, inst.Day.String(), inst.Title,
			inst.BasePoints, inst.Completed, inst.CompletedAt, inst.XPReward,
		)
	}

	query, args, err := builder.
		Suffix("ON CONFLICT (user_id, template_id, day) DO NOTHING").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build instance insert query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert instances: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(rows), nil
}

func (r *Repository) GetInstance(ctx context.Context, id uuid.UUID) (*model.QuestInstance, error) {
	query, args, err := squirrel.
		Select(instanceColumns...).
		From("quest_instances").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var inst questInstance
	err = r.db.GetContext(ctx, &inst, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInstanceNotFound
		}
		return nil, err
	}

	return inst.toModel(), nil
}

func (r *Repository) ListInstances(ctx context.Context, userID uuid.UUID, day civil.Date) ([]*model.QuestInstance, error) {
	query, args, err := squirrel.
		Select(instanceColumns...).
		From("quest_instances").
		Where(squirrel.Eq{"user_id": userID, "day": day.String()}).
		OrderBy("day", "title").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []questInstance
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, err
	}

	instances := make([]*model.QuestInstance, len(rows))
	for i, inst := range rows {
		instances[i] = inst.toModel()
	}
	return instances, nil
}

func (r *Repository) ListUnsettledCompleted(ctx context.Context, userID uuid.UUID, day civil.Date) ([]*model.QuestInstance, error) {
	query, args, err := squirrel.
		Select(instanceColumns...).
		From("quest_instances").
		Where(squirrel.Eq{"user_id": userID, "day": day.String(), "completed": true}).
		Where("xp_reward IS NULL").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []questInstance
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, err
	}

	instances := make([]*model.QuestInstance, len(rows))
	for i, inst := range rows {
		instances[i] = inst.toModel()
	}
	return instances, nil
}

func (r *Repository) SetInstanceCompleted(ctx context.Context, id uuid.UUID, completed bool, completedAt *time.Time) error {
	query, args, err := squirrel.
		Update("quest_instances").
		SetMap(map[string]interface{}{
			"completed":    completed,
			"completed_at": completedAt,
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
		return ErrInstanceNotFound
	}

	return nil
}

// UpdateInstanceReward writes the settled reward (or nil to mark the
// instance unsettled again).
func (r *Repository) UpdateInstanceReward(ctx context.Context, id uuid.UUID, reward *int) error {
	query, args, err := squirrel.
		Update("quest_instances").
		Set("xp_reward", reward).
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
		return ErrInstanceNotFound
	}

	return nil
}

// ApplySettlement writes the instance reward and the matching user XP
// adjustment in one transaction. A reward must never land on the
// instance without the user-total side, or vice versa.
func (r *Repository) ApplySettlement(ctx context.Context, instanceID uuid.UUID, reward *int, userID uuid.UUID, xpDelta int) error {
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		rewardQuery, rewardArgs, err := squirrel.
			Update("quest_instances").
			Set("xp_reward", reward).
			Where(squirrel.Eq{"id": instanceID, "user_id": userID}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, rewardQuery, rewardArgs...)
		if err != nil {
			return fmt.Errorf("failed to update instance reward: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrInstanceNotFound
		}

		xpQuery, xpArgs, err := squirrel.
			Update("users").
			Set("xp", squirrel.Expr("GREATEST(0, xp + ?)", xpDelta)).
			Where(squirrel.Eq{"id": userID}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}

		result, err = tx.ExecContext(ctx, xpQuery, xpArgs...)
		if err != nil {
			return fmt.Errorf("failed to adjust user xp: %w", err)
		}
		rows, err = result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrUserNotFound
		}

		return nil
	})
}

// ConsumedXP sums the already-settled rewards for a (user, day). Null
// rewards count as zero; this is the single source of truth for pool
// consumption.
func (r *Repository) ConsumedXP(ctx context.Context, userID uuid.UUID, day civil.Date) (int, error) {
	query, args, err := squirrel.
		Select("COALESCE(SUM(xp_reward), 0)").
		From("quest_instances").
		Where(squirrel.Eq{"user_id": userID, "day": day.String()}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return 0, err
	}

	var consumed int
	err = r.db.GetContext(ctx, &consumed, query, args...)
	if err != nil {
		return 0, err
	}

	return consumed, nil
}

// ListActiveDays returns the distinct days on which the user completed
// at least one instance, newest first.
func (r *Repository) ListActiveDays(ctx context.Context, userID uuid.UUID) ([]civil.Date, error) {
	query, args, err := squirrel.
		Select("COALESCE(ARRAY_AGG(DISTINCT day ORDER BY day DESC), '{}')").
		From("quest_instances").
		Where(squirrel.Eq{"user_id": userID, "completed": true}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var raw []string
	err = r.db.QueryRowContext(ctx, query, args...).Scan(pq.Array(&raw))
	if err != nil {
		return nil, err
	}

	days := make([]civil.Date, len(raw))
	for i, d := range raw {
		days[i] = civil.Date(d)
	}
	return days, nil
}

// HasInstanceForTemplate reports whether any instance, on any day, was
// ever generated from the template. Used to keep bare one-shot
// templates from materializing more than once.
func (r *Repository) HasInstanceForTemplate(ctx context.Context, templateID uuid.UUID) (bool, error) {
	query, args, err := squirrel.
		Select("COUNT(1)").
		From("quest_instances").
		Where(squirrel.Eq{"template_id": templateID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return false, err
	}

	var count int
	err = r.db.GetContext(ctx, &count, query, args...)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}
