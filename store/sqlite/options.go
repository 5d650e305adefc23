package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// OPTION VALUES (leave.OptionStore)
// =============================================================================

func (s *queries) SaveOption(ctx context.Context, o *leave.OptionValue) error {
	switch {
	case !o.Group.Valid():
		return &leave.ValidationError{Field: "group", Message: "is not a known option group"}
	case o.Value == "":
		return &leave.ValidationError{Field: "value", Message: "is required"}
	case o.Label == "":
		return &leave.ValidationError{Field: "label", Message: "is required"}
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO option_values (option_group, value, name, label, weight, is_active)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(option_group, value) DO UPDATE SET
			name = excluded.name,
			label = excluded.label,
			weight = excluded.weight,
			is_active = excluded.is_active
	`, string(o.Group), o.Value, o.Name, o.Label, o.Weight, o.IsActive)
	if err != nil {
		return fmt.Errorf("failed to save option value: %w", err)
	}
	return nil
}

func (s *queries) ListOptions(ctx context.Context, group leave.OptionGroup) ([]leave.OptionValue, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT option_group, value, name, label, weight, is_active FROM option_values
		WHERE option_group = ?
		ORDER BY weight, value
	`, string(group))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []leave.OptionValue
	for rows.Next() {
		var o leave.OptionValue
		if err := rows.Scan(&o.Group, &o.Value, &o.Name, &o.Label, &o.Weight, &o.IsActive); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *queries) GetOption(ctx context.Context, group leave.OptionGroup, value string) (leave.OptionValue, error) {
	var o leave.OptionValue
	err := s.q.QueryRowContext(ctx, `
		SELECT option_group, value, name, label, weight, is_active FROM option_values
		WHERE option_group = ? AND value = ?
	`, string(group), value).Scan(&o.Group, &o.Value, &o.Name, &o.Label, &o.Weight, &o.IsActive)
	if err != nil {
		return leave.OptionValue{}, notFoundOr(err, "option value", string(group)+"/"+value)
	}
	return o, nil
}

// ResolveOptionValue maps an active option label to its stored value.
func (s *queries) ResolveOptionValue(ctx context.Context, group leave.OptionGroup, label string) (string, error) {
	var value string
	err := s.q.QueryRowContext(ctx, `
		SELECT value FROM option_values
		WHERE option_group = ? AND label = ? AND is_active = 1
		ORDER BY weight
		LIMIT 1
	`, string(group), label).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", &leave.OptionNotFoundError{Group: group, Label: label}
	}
	if err != nil {
		return "", fmt.Errorf("resolve option %s/%s: %w", group, label, err)
	}
	return value, nil
}
