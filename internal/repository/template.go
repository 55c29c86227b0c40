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

type questTemplate struct {
	ID         uuid.UUID `db:"id"`
	UserID     uuid.UUID `db:"user_id"`
	Title      string    `db:"title"`
	Recurrence *string   `db:"recurrence"`
	DueDay     *string   `db:"due_day"`
	BasePoints int       `db:"base_points"`
	Active     bool      `db:"active"`
	CreatedAt  time.Time `db:"created_at"`
}

func (t questTemplate) toModel() *model.QuestTemplate {
	m := &model.QuestTemplate{
		ID:         t.ID,
		UserID:     t.UserID,
		Title:      t.Title,
		Recurrence: t.Recurrence,
		BasePoints: t.BasePoints,
		Active:     t.Active,
		CreatedAt:  t.CreatedAt,
	}
	if t.DueDay != nil {
		d := civil.Date(*t.DueDay)
		m.DueDay = &d
	}
	return m
}

func (r *Repository) CreateTemplate(ctx context.Context, t *model.QuestTemplate) error {
	var dueDay *string
	if t.DueDay != nil {
		s := t.DueDay.String()
		dueDay = &s
	}

	query, args, err := squirrel.
		Insert("quest_templates").
		SetMap(map[string]interface{}{
			"id":          t.ID,
			"user_id":     t.UserID,
			"title":       t.Title,
			"recurrence":  t.Recurrence,
			"due_day":     dueDay,
			"base_points": t.BasePoints,
			"active":      t.Active,
			"created_at":  t.CreatedAt,
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build template insert query: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to insert template: %w", err)
	}

	return nil
}

func (r *Repository) GetTemplate(ctx context.Context, id uuid.UUID) (*model.QuestTemplate, error) {
	query, args, err := squirrel.
		Select("id", "user_id", "title", "recurrence", "due_day", "base_points", "active", "created_at").
		From("quest_templates").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var t questTemplate
	err = r.db.GetContext(ctx, &t, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}

	return t.toModel(), nil
}

func (r *Repository) ListActiveTemplates(ctx context.Context, userID uuid.UUID) ([]*model.QuestTemplate, error) {
	query, args, err := squirrel.
		Select("id", "user_id", "title", "recurrence", "due_day", "base_points", "active", "created_at").
		From("quest_templates").
		Where(squirrel.Eq{"user_id": userID, "active": true}).
		OrderBy("created_at").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []questTemplate
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, err
	}

	templates := make([]*model.QuestTemplate, len(rows))
	for i, t := range rows {
		templates[i] = t.toModel()
	}
	return templates, nil
}

func (r *Repository) UpdateTemplate(ctx context.Context, t *model.QuestTemplate) error {
	var dueDay *string
	if t.DueDay != nil {
		s := t.DueDay.String()
		dueDay = &s
	}

	query, args, err := squirrel.
		Update("quest_templates").
		SetMap(map[string]interface{}{
			"title":       t.Title,
			"recurrence":  t.Recurrence,
			"due_day":     dueDay,
			"base_points": t.BasePoints,
			"active":      t.Active,
		}).
		Where(squirrel.Eq{"id": t.ID, "user_id": t.UserID}).
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
		return ErrTemplateNotFound
	}

	return nil
}

func (r *Repository) DeactivateTemplate(ctx context.Context, userID, id uuid.UUID) error {
	query, args, err := squirrel.
		Update("quest_templates").
		Set("active", false).
		Where(squirrel.Eq{"id": id, "user_id": userID}).
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
		return ErrTemplateNotFound
	}

	return nil
}
