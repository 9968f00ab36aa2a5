package market

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC3339,
}

// CSVSupplier 从目录中的 <TICKER>.csv 或 <TICKER>_<interval>.csv 读取价格。
type CSVSupplier struct {
	dir string
}

// NewCSVSupplier 创建 CSVSupplier。
func NewCSVSupplier(dir string) *CSVSupplier {
	return &CSVSupplier{dir: dir}
}

func (s *CSVSupplier) Name() string { return "csv" }

// Series 读取并解析指定标的的 CSV 文件。
func (s *CSVSupplier) Series(ctx context.Context, ticker, interval string) (Series, error) {
	if err := ctx.Err(); err != nil {
		return Series{}, err
	}

	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return Series{}, fmt.Errorf("%w: 标的为空", ErrInvalidInput)
	}

	candidates := []string{filepath.Join(s.dir, ticker+".csv")}
	if interval != "" {
		candidates = append([]string{filepath.Join(s.dir, fmt.Sprintf("%s_%s.csv", ticker, interval))}, candidates...)
	}

	for _, path := range candidates {
		file, err := os.Open(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return Series{}, fmt.Errorf("market: 打开 %s 失败: %w", path, err)
		}
		series, parseErr := ParseCSV(file, ticker, interval)
		_ = file.Close()
		if parseErr != nil {
			return Series{}, fmt.Errorf("market: 解析 %s 失败: %w", path, parseErr)
		}
		return series, nil
	}

	return Series{}, fmt.Errorf("%w: 未找到 %s 的价格文件 (目录 %s)", ErrInvalidInput, ticker, s.dir)
}

// ParseCSV 解析带表头的价格 CSV，需要 timestamp 与 close（或 adjusted_close）列。
func ParseCSV(r io.Reader, ticker, interval string) (Series, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Series{}, fmt.Errorf("%w: CSV 为空", ErrInvalidInput)
		}
		return Series{}, err
	}

	tsIdx, closeIdx := -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "timestamp", "date", "datetime", "time":
			if tsIdx == -1 {
				tsIdx = i
			}
		case "close":
			if closeIdx == -1 {
				closeIdx = i
			}
		case "adjusted_close", "adj_close", "adj close":
			// 复权价优先
			closeIdx = i
		}
	}
	if tsIdx == -1 || closeIdx == -1 {
		return Series{}, fmt.Errorf("%w: CSV 缺少 timestamp 或 close 列: %v", ErrInvalidInput, header)
	}

	points := make([]Point, 0, 256)
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return Series{}, fmt.Errorf("%w: 第 %d 行: %v", ErrInvalidInput, line, err)
		}

		ts, err := parseTimestamp(record[tsIdx])
		if err != nil {
			return Series{}, fmt.Errorf("%w: 第 %d 行时间戳 %q 非法", ErrInvalidInput, line, record[tsIdx])
		}
		closePrice, err := strconv.ParseFloat(strings.TrimSpace(record[closeIdx]), 64)
		if err != nil {
			return Series{}, fmt.Errorf("%w: 第 %d 行收盘价 %q 非法", ErrInvalidInput, line, record[closeIdx])
		}

		points = append(points, Point{Timestamp: ts, Close: closePrice})
	}

	return NewSeries(ticker, interval, points), nil
}

func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("无法解析时间戳 %q", raw)
}
