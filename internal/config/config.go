// Package config provides configuration utilities for the application.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/shelfwise/shelfwise/internal/common"
	"github.com/shelfwise/shelfwise/internal/matcher"
)

// Settings is the resolved application configuration. It follows this
// precedence: flags bound into Viper, then config file / SHELFWISE_ env
// vars, then defaults.
type Settings struct {
	DatabasePath string
	UserID       string
	Matcher      matcher.Config
}

// Load builds Settings from Viper.
func Load() (Settings, error) {
	settings := Settings{
		DatabasePath: viper.GetString("database.path"),
		UserID:       viper.GetString("user.id"),
		Matcher:      matcher.DefaultConfig(),
	}

	if settings.DatabasePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Settings{}, fmt.Errorf("%w: failed to resolve home directory: %v", common.ErrMissingConfig, err)
		}
		settings.DatabasePath = filepath.Join(home, ".local", "share", "shelfwise", "shelfwise.db")
	} else {
		settings.DatabasePath = ExpandPath(settings.DatabasePath)
	}

	if settings.UserID == "" {
		settings.UserID = "default"
	}

	loadMatcherOverrides(&settings.Matcher)
	if err := validateMatcher(settings.Matcher); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

// loadMatcherOverrides applies per-weight overrides from configuration. Only
// keys the user actually set are applied; the rest keep their defaults.
func loadMatcherOverrides(cfg *matcher.Config) {
	if viper.IsSet("matcher.score_floor") {
		cfg.ScoreFloor = viper.GetInt("matcher.score_floor")
	}
	if viper.IsSet("matcher.auto_confirm_threshold") {
		cfg.AutoConfirmThreshold = viper.GetInt("matcher.auto_confirm_threshold")
	}
	if viper.IsSet("matcher.auto_confirm_margin") {
		cfg.AutoConfirmMargin = viper.GetInt("matcher.auto_confirm_margin")
	}
	if viper.IsSet("matcher.learned_mapping_bonus") {
		cfg.LearnedMappingBonus = viper.GetFloat64("matcher.learned_mapping_bonus")
	}
	if viper.IsSet("matcher.token_overlap_weight") {
		cfg.TokenOverlapWeight = viper.GetFloat64("matcher.token_overlap_weight")
	}
	if viper.IsSet("matcher.category_bonus") {
		cfg.CategoryBonus = viper.GetFloat64("matcher.category_bonus")
	}
	if viper.IsSet("matcher.price_bonus") {
		cfg.PriceBonus = viper.GetFloat64("matcher.price_bonus")
	}
	if viper.IsSet("matcher.price_tolerance") {
		cfg.PriceTolerance = viper.GetFloat64("matcher.price_tolerance")
	}
	if viper.IsSet("matcher.fuzzy_threshold") {
		cfg.FuzzyThreshold = viper.GetFloat64("matcher.fuzzy_threshold")
	}
	if viper.IsSet("matcher.fuzzy_weight") {
		cfg.FuzzyWeight = viper.GetFloat64("matcher.fuzzy_weight")
	}
}

func validateMatcher(cfg matcher.Config) error {
	if cfg.ScoreFloor < 0 || cfg.ScoreFloor > 100 {
		return fmt.Errorf("%w: matcher.score_floor must be 0..100", common.ErrInvalidConfig)
	}
	if cfg.AutoConfirmThreshold < cfg.ScoreFloor || cfg.AutoConfirmThreshold > 100 {
		return fmt.Errorf("%w: matcher.auto_confirm_threshold must be between the floor and 100", common.ErrInvalidConfig)
	}
	if cfg.AutoConfirmMargin < 0 {
		return fmt.Errorf("%w: matcher.auto_confirm_margin cannot be negative", common.ErrInvalidConfig)
	}
	if cfg.PriceTolerance <= 0 {
		return fmt.Errorf("%w: matcher.price_tolerance must be positive", common.ErrInvalidConfig)
	}
	if cfg.FuzzyThreshold < 0 || cfg.FuzzyThreshold > 1 {
		return fmt.Errorf("%w: matcher.fuzzy_threshold must be 0..1", common.ErrInvalidConfig)
	}
	return nil
}
