/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Seednode/triviabox/questions"
)

func humanReadableSize(bytes int64) string {
	const unit int64 = 1000
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := unit, 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB",
		float64(bytes)/float64(div),
		"kMGTPE"[exp])
}

func loadQuestions(path string) (*questions.Bank, error) {
	startTime := time.Now()

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open question bank: %w", err)
	}

	bank, err := questions.Load(path)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("path", path).
		Str("size", humanReadableSize(info.Size())).
		Int("questions", bank.Len()).
		Dur("took", time.Since(startTime).Round(time.Microsecond)).
		Msg("loaded question bank")

	return bank, nil
}
