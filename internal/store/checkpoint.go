package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrNotFound 表示没有找到对应的检查点。
var ErrNotFound = errors.New("store: checkpoint not found")

// SaveFields 在一个事务中以 JSON 保存 owner 的多个命名字段，已存在的字段被覆盖。
func (s *Store) SaveFields(ctx context.Context, owner string, fields map[string]any) error {
	if owner == "" {
		return errors.New("store: owner 不能为空")
	}
	if len(fields) == 0 {
		return nil
	}

	names := make([]string, 0, len(fields))
	payloads := make(map[string][]byte, len(fields))
	for name, value := range fields {
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("store: 序列化字段 %s 失败: %w", name, err)
		}
		names = append(names, name)
		payloads[name] = data
	}
	sort.Strings(names)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: 开启事务失败: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, name := range names {
		_, err := tx.ExecContext(ctx, `
INSERT INTO checkpoints (owner, field, payload, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(owner, field) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
			owner, name, string(payloads[name]), now,
		)
		if err != nil {
			return fmt.Errorf("store: 写入字段 %s 失败: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: 提交事务失败: %w", err)
	}
	return nil
}

// LoadFields 将 owner 已保存的字段解码到 targets 中对应的指针。
// owner 没有任何检查点时返回 ErrNotFound；targets 中缺失的字段保持原值。
func (s *Store) LoadFields(ctx context.Context, owner string, targets map[string]any) error {
	raw, err := s.LoadRaw(ctx, owner)
	if err != nil {
		return err
	}

	for name, target := range targets {
		data, ok := raw[name]
		if !ok {
			continue
		}
		if err := json.Unmarshal(data, target); err != nil {
			return fmt.Errorf("store: 解析字段 %s 失败: %w", name, err)
		}
	}
	return nil
}

// LoadRaw 返回 owner 全部字段的原始 JSON。
func (s *Store) LoadRaw(ctx context.Context, owner string) (map[string][]byte, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT field, payload FROM checkpoints WHERE owner = ?`, owner)
	if err != nil {
		return nil, fmt.Errorf("store: 查询检查点失败: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var field, payload string
		if err := rows.Scan(&field, &payload); err != nil {
			return nil, fmt.Errorf("store: 读取检查点失败: %w", err)
		}
		out[field] = []byte(payload)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: 遍历检查点失败: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, owner)
	}
	return out, nil
}

// Owners 返回存在检查点的全部 owner。
func (s *Store) Owners(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT owner FROM checkpoints ORDER BY owner`)
	if err != nil {
		return nil, fmt.Errorf("store: 查询 owner 失败: %w", err)
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, fmt.Errorf("store: 读取 owner 失败: %w", err)
		}
		owners = append(owners, owner)
	}
	return owners, rows.Err()
}
