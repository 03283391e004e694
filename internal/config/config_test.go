package config

import (
	"errors"
	"testing"

	"github.com/spf13/viper"

	"github.com/shelfwise/shelfwise/internal/common"
)

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	settings, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.DatabasePath == "" {
		t.Error("Expected a default database path")
	}
	if settings.UserID != "default" {
		t.Errorf("UserID = %q, want default", settings.UserID)
	}
	if settings.Matcher.AutoConfirmThreshold != 85 {
		t.Errorf("AutoConfirmThreshold = %d, want default 85", settings.Matcher.AutoConfirmThreshold)
	}
}

func TestLoad_MatcherOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("matcher.auto_confirm_threshold", 90)
	viper.Set("matcher.price_tolerance", 0.25)

	settings, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.Matcher.AutoConfirmThreshold != 90 {
		t.Errorf("AutoConfirmThreshold = %d, want 90", settings.Matcher.AutoConfirmThreshold)
	}
	if settings.Matcher.PriceTolerance != 0.25 {
		t.Errorf("PriceTolerance = %v, want 0.25", settings.Matcher.PriceTolerance)
	}
	// Untouched keys keep defaults.
	if settings.Matcher.ScoreFloor != 30 {
		t.Errorf("ScoreFloor = %d, want default 30", settings.Matcher.ScoreFloor)
	}
}

func TestLoad_RejectsInvalidMatcherConfig(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value any
	}{
		{name: "negative floor", key: "matcher.score_floor", value: -1},
		{name: "threshold above 100", key: "matcher.auto_confirm_threshold", value: 150},
		{name: "negative margin", key: "matcher.auto_confirm_margin", value: -5},
		{name: "zero price tolerance", key: "matcher.price_tolerance", value: 0.0},
		{name: "fuzzy threshold above 1", key: "matcher.fuzzy_threshold", value: 1.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			t.Cleanup(viper.Reset)
			viper.Set(tt.key, tt.value)

			_, err := Load()
			if !errors.Is(err, common.ErrInvalidConfig) {
				t.Errorf("Load() = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	t.Setenv("SHELFWISE_TEST_DIR", "/tmp/shelfwise")

	got := ExpandPath("$SHELFWISE_TEST_DIR/data.db")
	if got != "/tmp/shelfwise/data.db" {
		t.Errorf("ExpandPath = %q, want /tmp/shelfwise/data.db", got)
	}

	if ExpandPath("") != "" {
		t.Error("ExpandPath(\"\") should stay empty")
	}
}
