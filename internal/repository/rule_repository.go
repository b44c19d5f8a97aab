package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tenantbot/internal/entities"
)

type RuleRepository struct {
	db    *pgxpool.Pool
	guard *Guard
}

func NewRuleRepository(db *pgxpool.Pool, guard *Guard) *RuleRepository {
	return &RuleRepository{db: db, guard: guard}
}

// exec runs a statement under the guard.
func (r *RuleRepository) exec(ctx context.Context, sql string, args ...any) error {
	return r.guard.Do(ctx, func() error {
		_, err := r.db.Exec(ctx, sql, args...)
		return mapError(err)
	})
}

// Badwords

func (r *RuleRepository) ListBadwords(ctx context.Context, tenantID int) ([]entities.BadwordRule, error) {
	var rules []entities.BadwordRule
	err := r.guard.Do(ctx, func() error {
		rows, err := r.db.Query(ctx,
			"SELECT id, tenant_id, phrase, penalty, case_sensitive FROM badwords WHERE tenant_id = $1 ORDER BY id",
			tenantID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var b entities.BadwordRule
			if err := rows.Scan(&b.ID, &b.TenantID, &b.Phrase, &b.Penalty, &b.CaseSensitive); err != nil {
				return err
			}
			rules = append(rules, b)
		}
		return rows.Err()
	})
	return rules, mapError(err)
}

func (r *RuleRepository) UpsertBadword(ctx context.Context, rule entities.BadwordRule) (entities.BadwordRule, error) {
	err := r.guard.Do(ctx, func() error {
		return r.db.QueryRow(ctx, `
			INSERT INTO badwords (tenant_id, phrase, penalty, case_sensitive)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (tenant_id, phrase, case_sensitive) DO UPDATE SET penalty = EXCLUDED.penalty
			RETURNING id`,
			rule.TenantID, rule.Phrase, rule.Penalty, rule.CaseSensitive).Scan(&rule.ID)
	})
	return rule, mapError(err)
}

func (r *RuleRepository) DeleteBadword(ctx context.Context, tenantID, id int) error {
	return r.exec(ctx, "DELETE FROM badwords WHERE tenant_id = $1 AND id = $2", tenantID, id)
}

// Custom redactions

func (r *RuleRepository) ListRedactions(ctx context.Context, tenantID int) ([]entities.RedactionRule, error) {
	var rules []entities.RedactionRule
	err := r.guard.Do(ctx, func() error {
		rows, err := r.db.Query(ctx, `
			SELECT id, tenant_id, original_phrase, replacement_phrase, penalty, case_sensitive
			FROM custom_redactions WHERE tenant_id = $1 ORDER BY id`, tenantID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var c entities.RedactionRule
			if err := rows.Scan(&c.ID, &c.TenantID, &c.Original, &c.Replacement, &c.Penalty, &c.CaseSensitive); err != nil {
				return err
			}
			rules = append(rules, c)
		}
		return rows.Err()
	})
	return rules, mapError(err)
}

func (r *RuleRepository) UpsertRedaction(ctx context.Context, rule entities.RedactionRule) (entities.RedactionRule, error) {
	err := r.guard.Do(ctx, func() error {
		return r.db.QueryRow(ctx, `
			INSERT INTO custom_redactions (tenant_id, original_phrase, replacement_phrase, penalty, case_sensitive)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (tenant_id, original_phrase) DO UPDATE
			SET replacement_phrase = EXCLUDED.replacement_phrase,
			    penalty = EXCLUDED.penalty,
			    case_sensitive = EXCLUDED.case_sensitive
			RETURNING id`,
			rule.TenantID, rule.Original, rule.Replacement, rule.Penalty, rule.CaseSensitive).Scan(&rule.ID)
	})
	return rule, mapError(err)
}

func (r *RuleRepository) DeleteRedaction(ctx context.Context, tenantID, id int) error {
	return r.exec(ctx, "DELETE FROM custom_redactions WHERE tenant_id = $1 AND id = $2", tenantID, id)
}

// Whitelist

func (r *RuleRepository) ListWhitelist(ctx context.Context, tenantID int) ([]entities.WhitelistPhrase, error) {
	var phrases []entities.WhitelistPhrase
	err := r.guard.Do(ctx, func() error {
		rows, err := r.db.Query(ctx,
			"SELECT id, tenant_id, phrase, case_sensitive FROM whitelist_phrases WHERE tenant_id = $1 ORDER BY id",
			tenantID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var w entities.WhitelistPhrase
			if err := rows.Scan(&w.ID, &w.TenantID, &w.Phrase, &w.CaseSensitive); err != nil {
				return err
			}
			phrases = append(phrases, w)
		}
		return rows.Err()
	})
	return phrases, mapError(err)
}

func (r *RuleRepository) UpsertWhitelist(ctx context.Context, phrase entities.WhitelistPhrase) (entities.WhitelistPhrase, error) {
	err := r.guard.Do(ctx, func() error {
		return r.db.QueryRow(ctx, `
			INSERT INTO whitelist_phrases (tenant_id, phrase, case_sensitive)
			VALUES ($1, $2, $3)
			ON CONFLICT (tenant_id, phrase, case_sensitive) DO UPDATE SET phrase = EXCLUDED.phrase
			RETURNING id`,
			phrase.TenantID, phrase.Phrase, phrase.CaseSensitive).Scan(&phrase.ID)
	})
	return phrase, mapError(err)
}

func (r *RuleRepository) DeleteWhitelist(ctx context.Context, tenantID, id int) error {
	return r.exec(ctx, "DELETE FROM whitelist_phrases WHERE tenant_id = $1 AND id = $2", tenantID, id)
}

// Energy costs

func (r *RuleRepository) ListEnergyCosts(ctx context.Context, tenantID int) ([]entities.EnergyCost, error) {
	var costs []entities.EnergyCost
	err := r.guard.Do(ctx, func() error {
		rows, err := r.db.Query(ctx,
			"SELECT tenant_id, content_type, cost FROM energy_costs WHERE tenant_id = $1 ORDER BY content_type",
			tenantID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var c entities.EnergyCost
			var contentType string
			if err := rows.Scan(&c.TenantID, &contentType, &c.Cost); err != nil {
				return err
			}
			c.ContentType = entities.ContentType(contentType)
			costs = append(costs, c)
		}
		return rows.Err()
	})
	return costs, mapError(err)
}

func (r *RuleRepository) GetEnergyCost(ctx context.Context, tenantID int, contentType entities.ContentType) (int, bool, error) {
	var cost int
	err := r.guard.Do(ctx, func() error {
		return r.db.QueryRow(ctx,
			"SELECT cost FROM energy_costs WHERE tenant_id = $1 AND content_type = $2",
			tenantID, string(contentType)).Scan(&cost)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, mapError(err)
	}
	return cost, true, nil
}

func (r *RuleRepository) UpsertEnergyCost(ctx context.Context, cost entities.EnergyCost) error {
	return r.exec(ctx, `
		INSERT INTO energy_costs (tenant_id, content_type, cost) VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id, content_type) DO UPDATE SET cost = EXCLUDED.cost`,
		cost.TenantID, string(cost.ContentType), cost.Cost)
}

func (r *RuleRepository) DeleteEnergyCost(ctx context.Context, tenantID int, contentType entities.ContentType) error {
	return r.exec(ctx, "DELETE FROM energy_costs WHERE tenant_id = $1 AND content_type = $2", tenantID, string(contentType))
}

// Autocorrect

func (r *RuleRepository) GetAutocorrect(ctx context.Context, tenantID int) (entities.AutocorrectSetting, error) {
	setting := entities.AutocorrectSetting{TenantID: tenantID}
	err := r.guard.Do(ctx, func() error {
		return r.db.QueryRow(ctx,
			"SELECT enabled, penalty_per_correction FROM autocorrect_settings WHERE tenant_id = $1",
			tenantID).Scan(&setting.Enabled, &setting.PenaltyPerCorrection)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return setting, nil // Disabled by default
	}
	return setting, mapError(err)
}

func (r *RuleRepository) SetAutocorrect(ctx context.Context, setting entities.AutocorrectSetting) error {
	return r.exec(ctx, `
		INSERT INTO autocorrect_settings (tenant_id, enabled, penalty_per_correction) VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id) DO UPDATE
		SET enabled = EXCLUDED.enabled, penalty_per_correction = EXCLUDED.penalty_per_correction`,
		setting.TenantID, setting.Enabled, setting.PenaltyPerCorrection)
}

// Custom low-energy notices

func (r *RuleRepository) ListPowerMessages(ctx context.Context, tenantID int) ([]entities.PowerMessage, error) {
	var msgs []entities.PowerMessage
	err := r.guard.Do(ctx, func() error {
		rows, err := r.db.Query(ctx,
			"SELECT id, tenant_id, text, active FROM power_messages WHERE tenant_id = $1 ORDER BY id",
			tenantID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var m entities.PowerMessage
			if err := rows.Scan(&m.ID, &m.TenantID, &m.Text, &m.Active); err != nil {
				return err
			}
			msgs = append(msgs, m)
		}
		return rows.Err()
	})
	return msgs, mapError(err)
}

func (r *RuleRepository) UpsertPowerMessage(ctx context.Context, msg entities.PowerMessage) (entities.PowerMessage, error) {
	err := r.guard.Do(ctx, func() error {
		if msg.ID == 0 {
			return r.db.QueryRow(ctx,
				"INSERT INTO power_messages (tenant_id, text, active) VALUES ($1, $2, $3) RETURNING id",
				msg.TenantID, msg.Text, msg.Active).Scan(&msg.ID)
		}
		tag, err := r.db.Exec(ctx,
			"UPDATE power_messages SET text = $3, active = $4 WHERE tenant_id = $1 AND id = $2",
			msg.TenantID, msg.ID, msg.Text, msg.Active)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return entities.ErrInvalidRule
		}
		return nil
	})
	return msg, mapError(err)
}

func (r *RuleRepository) DeletePowerMessage(ctx context.Context, tenantID, id int) error {
	return r.exec(ctx, "DELETE FROM power_messages WHERE tenant_id = $1 AND id = $2", tenantID, id)
}

// Chat scope

func (r *RuleRepository) GetChatScope(ctx context.Context, tenantID int) (entities.ChatScope, error) {
	scope := entities.ChatScope{Mode: entities.ChatListBlacklist}
	err := r.guard.Do(ctx, func() error {
		var mode string
		err := r.db.QueryRow(ctx, "SELECT mode FROM chat_scope_settings WHERE tenant_id = $1", tenantID).Scan(&mode)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		if mode != "" {
			scope.Mode = entities.ChatListMode(mode)
		}

		rows, err := r.db.Query(ctx, "SELECT chat_id FROM chat_scope_entries WHERE tenant_id = $1 ORDER BY chat_id", tenantID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var chatID string
			if err := rows.Scan(&chatID); err != nil {
				return err
			}
			scope.Chats = append(scope.Chats, chatID)
		}
		return rows.Err()
	})
	return scope, mapError(err)
}

func (r *RuleRepository) SetChatScope(ctx context.Context, tenantID int, scope entities.ChatScope) error {
	return r.guard.Do(ctx, func() error {
		tx, err := r.db.Begin(ctx)
		if err != nil {
			return mapError(err)
		}
		defer tx.Rollback(ctx)

		if _, err := tx.Exec(ctx, `
			INSERT INTO chat_scope_settings (tenant_id, mode) VALUES ($1, $2)
			ON CONFLICT (tenant_id) DO UPDATE SET mode = EXCLUDED.mode`,
			tenantID, string(scope.Mode)); err != nil {
			return mapError(err)
		}
		if _, err := tx.Exec(ctx, "DELETE FROM chat_scope_entries WHERE tenant_id = $1", tenantID); err != nil {
			return mapError(err)
		}
		for _, chatID := range scope.Chats {
			if _, err := tx.Exec(ctx,
				"INSERT INTO chat_scope_entries (tenant_id, chat_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
				tenantID, chatID); err != nil {
				return mapError(err)
			}
		}
		return mapError(tx.Commit(ctx))
	})
}
